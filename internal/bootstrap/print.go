// File: internal/bootstrap/print.go
// Brief: Human-friendly plan and status printing.

package bootstrap

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"
)

func PrintPlanTable(w io.Writer, p *Plan) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	if p.ManifestName != "" {
		fmt.Fprintf(tw, "MANIFEST\t%s\n", p.ManifestName)
	}
	fmt.Fprintf(tw, "ROOT\t%s\n", p.Root)
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "ORDER\tWAVE\tSTEP\tDIR\tNEEDS\tACTIONS")
	for i, name := range p.Order {
		st := p.ByName[name]
		dir := st.Dir
		if dir != "" {
			if rel, err := filepath.Rel(p.Root, dir); err == nil && !strings.HasPrefix(rel, "..") {
				dir = rel
			}
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%d\n",
			i+1, st.Wave, st.Name, dir, strings.Join(st.Needs, ","), len(st.Actions))
	}
	return nil
}

// PrintStatusTable renders checkpoint state for every step in the plan.
func PrintStatusTable(w io.Writer, p *Plan, completed map[string]bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "STEP\tSTATE\tDESCRIPTION")
	for _, name := range p.Order {
		st := p.ByName[name]
		state := "pending"
		if completed[name] {
			state = "completed"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", st.Name, state, st.Description)
	}
	return nil
}

// PrintLastRun renders the most recent journaled run below the status
// table. A nil summary (fresh machine, no journal yet) prints nothing.
func PrintLastRun(w io.Writer, s *RunSummary) error {
	if s == nil {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "LAST RUN\t%s\n", s.RunID)
	fmt.Fprintf(tw, "STATUS\t%s\n", s.Status)
	fmt.Fprintf(tw, "STARTED\t%s\n", s.StartedAt)
	fmt.Fprintf(tw, "TOTALS\t%d ok, %d failed, %d skipped of %d planned\n",
		s.Totals.Succeeded, s.Totals.Failed, s.Totals.Skipped, s.Totals.Planned)
	return nil
}

// PrintRunsTable renders journal entries for `mdssboot runs`.
func PrintRunsTable(w io.Writer, entries []RunIndexEntry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "RUN\tSTATUS\tSTARTED\tOK\tFAILED\tSKIPPED\tPLANNED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			e.RunID, e.Status, e.StartedAt,
			e.Totals.Succeeded, e.Totals.Failed, e.Totals.Skipped, e.Totals.Planned)
	}
	return nil
}
