// File: cmd/mdssboot/runs.go
// Brief: `mdssboot runs` — journaled run history.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/mdssboot/internal/bootstrap"
)

func newRunsCommand(opts *globalOptions) *cobra.Command {
	var (
		limit  int
		output = "table"
		runID  string
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded bootstrap runs from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(opts)
			if err != nil {
				return err
			}
			journal, err := bootstrap.OpenJournal(root, true)
			if err != nil {
				if os.IsNotExist(err) {
					return fmt.Errorf("no journal at %s (nothing has been installed yet?)", root)
				}
				return err
			}
			defer journal.Close()

			if id := strings.TrimSpace(runID); id != "" {
				summary, err := journal.GetRunSummary(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("run %s: %w", id, err)
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}

			entries, err := journal.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			switch strings.ToLower(strings.TrimSpace(output)) {
			case "json":
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			case "table", "":
				return bootstrap.PrintRunsTable(os.Stdout, entries)
			default:
				return fmt.Errorf("unknown output format %q (expected table or json)", output)
			}
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "Show the full summary of a single run as JSON")
	cmd.Flags().StringVarP(&output, "output", "o", output, "Output format: table or json")
	return cmd
}
