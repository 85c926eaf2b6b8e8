// File: cmd/mdssboot/status.go
// Brief: `mdssboot status` — checkpoint state per step.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/mdssboot/internal/bootstrap"
)

func newStatusCommand(opts *globalOptions) *cobra.Command {
	output := "table"
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which steps are checkpointed as completed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := loadPlan(opts)
			if err != nil {
				return err
			}
			store := openStore(p.Root)
			completed := map[string]bool{}
			for _, name := range p.Order {
				done, err := store.Completed(name)
				if err != nil {
					return fmt.Errorf("checkpoint lookup for %s: %w", name, err)
				}
				completed[name] = done
			}
			lastRun, err := latestRunSummary(cmd.Context(), p.Root)
			if err != nil {
				return fmt.Errorf("read journal: %w", err)
			}
			switch strings.ToLower(strings.TrimSpace(output)) {
			case "json":
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Root      string                `json:"root"`
					Completed map[string]bool       `json:"completed"`
					Order     []string              `json:"order"`
					LastRun   *bootstrap.RunSummary `json:"lastRun,omitempty"`
				}{Root: p.Root, Completed: completed, Order: p.Order, LastRun: lastRun})
			case "table", "":
				if err := bootstrap.PrintStatusTable(os.Stdout, p, completed); err != nil {
					return err
				}
				return bootstrap.PrintLastRun(os.Stdout, lastRun)
			default:
				return fmt.Errorf("unknown output format %q (expected table or json)", output)
			}
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", output, "Output format: table or json")
	return cmd
}
