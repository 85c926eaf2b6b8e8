// File: cmd/mdssboot/init.go
// Brief: `mdssboot init` — write the built-in manifest as a starting point.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/mdssboot/internal/bootstrap"
)

func newInitCommand(opts *globalOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the built-in manifest to <dir>/bootstrap.yaml for editing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(opts)
			if err != nil {
				return err
			}
			path := filepath.Join(root, "bootstrap.yaml")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.MkdirAll(root, 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, bootstrap.DefaultManifestBytes(), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing bootstrap.yaml")
	return cmd
}
