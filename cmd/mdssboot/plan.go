// File: cmd/mdssboot/plan.go
// Brief: `mdssboot plan` — print the resolved step order.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/mdssboot/internal/bootstrap"
)

func newPlanCommand(opts *globalOptions) *cobra.Command {
	var (
		only   []string
		skip   []string
		output = "table"
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the resolved step order without running anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := loadPlan(opts)
			if err != nil {
				return err
			}
			p, dropped, err := bootstrap.Select(p, only, skip)
			if err != nil {
				return err
			}
			if len(dropped) > 0 {
				fmt.Fprintf(os.Stderr, "warning: also skipping dependents: %s\n", strings.Join(dropped, ", "))
			}
			switch strings.ToLower(strings.TrimSpace(output)) {
			case "json":
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			case "table", "":
				return bootstrap.PrintPlanTable(os.Stdout, p)
			default:
				return fmt.Errorf("unknown output format %q (expected table or json)", output)
			}
		},
	}
	cmd.Flags().StringSliceVar(&only, "only", nil, "Plan only these steps plus their dependencies")
	cmd.Flags().StringSliceVar(&skip, "skip", nil, "Skip these steps and everything that depends on them")
	cmd.Flags().StringVarP(&output, "output", "o", output, "Output format: table or json")
	return cmd
}
