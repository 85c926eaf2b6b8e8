// File: cmd/mdssboot/env.go
// Brief: `mdssboot env` — inspect and apply profile export lines.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/mdssboot/internal/bootstrap"
	"github.com/example/mdssboot/internal/envfile"
)

func newEnvCommand(opts *globalOptions) *cobra.Command {
	var (
		showDiff   bool
		apply      bool
		envProfile = defaultEnvProfile
	)
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Show the export lines the manifest contributes to the profile",
		Long: `Env collects every step's export lines in plan order. By default it
prints them; --diff compares them against the profile file, and
--apply appends the missing ones (appending is idempotent, lines
already present are left alone).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := loadPlan(opts)
			if err != nil {
				return err
			}
			var lines []string
			for _, name := range p.Order {
				lines = append(lines, bootstrap.ExportLines(p.ByName[name].Env)...)
			}
			if len(lines) == 0 {
				fmt.Fprintln(os.Stderr, "the manifest declares no env exports")
				return nil
			}

			switch {
			case apply:
				added, err := envfile.Append(envProfile, lines)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "appended %d line(s) to %s\n", added, envProfile)
				return nil
			case showDiff:
				diff, err := envfile.Diff(envProfile, lines)
				if err != nil {
					return err
				}
				if diff == "" {
					fmt.Fprintf(os.Stdout, "%s is up to date\n", envProfile)
					return nil
				}
				fmt.Fprint(os.Stdout, diff)
				return nil
			default:
				for _, line := range lines {
					fmt.Fprintln(os.Stdout, line)
				}
				return nil
			}
		},
	}
	cmd.Flags().BoolVar(&showDiff, "diff", false, "Diff the export lines against the profile file")
	cmd.Flags().BoolVar(&apply, "apply", false, "Append missing export lines to the profile file")
	cmd.Flags().StringVar(&envProfile, "env-profile", envProfile, "Profile file that receives export lines")
	cmd.MarkFlagsMutuallyExclusive("diff", "apply")
	return cmd
}
