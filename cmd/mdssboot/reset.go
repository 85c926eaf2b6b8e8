// File: cmd/mdssboot/reset.go
// Brief: `mdssboot reset` — clear checkpoint markers.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newResetCommand(opts *globalOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset [STEP...]",
		Short: "Clear checkpoint markers so steps reinstall on the next run",
		Long: `Reset removes checkpoint markers. With step names it clears only
those steps; without arguments it clears every marker, so the next
'mdssboot install' rebuilds the whole stack from scratch. Target
directories are not touched here; the runner wipes each step's
directory when it reinstalls it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := loadPlan(opts)
			if err != nil {
				return err
			}
			store := openStore(p.Root)

			if len(args) > 0 {
				for _, name := range args {
					if _, ok := p.ByName[name]; !ok {
						return fmt.Errorf("unknown step %q", name)
					}
				}
				for _, name := range args {
					if err := store.ClearStep(name); err != nil {
						return fmt.Errorf("clear %s: %w", name, err)
					}
					fmt.Fprintf(os.Stdout, "cleared %s\n", name)
				}
				return nil
			}

			prompt := fmt.Sprintf("Clear ALL checkpoint markers under %s? The next install rebuilds every step. Type 'yes' to continue:", p.Root)
			if err := confirmAction(cmd.Context(), os.Stdin, os.Stderr, yes, prompt); err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, "cleared all checkpoint markers")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}
