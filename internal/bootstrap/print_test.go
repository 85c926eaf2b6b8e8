package bootstrap

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintStatusTableWithLastRun(t *testing.T) {
	p := compilePlan(t, t.TempDir(),
		touchStep("petsc", "built"),
		step2("cgns", "touch built", "petsc"),
	)
	var buf bytes.Buffer
	if err := PrintStatusTable(&buf, p, map[string]bool{"petsc": true}); err != nil {
		t.Fatalf("status table: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "petsc") || !strings.Contains(out, "completed") {
		t.Fatalf("status table missing completed step:\n%s", out)
	}
	if !strings.Contains(out, "pending") {
		t.Fatalf("status table missing pending step:\n%s", out)
	}

	summary := &RunSummary{
		RunID:     "20260101-000000-beef",
		Status:    "failed",
		StartedAt: "2026-01-01T00:00:00Z",
		Totals:    RunTotals{Planned: 2, Succeeded: 1, Failed: 1},
	}
	buf.Reset()
	if err := PrintLastRun(&buf, summary); err != nil {
		t.Fatalf("last run: %v", err)
	}
	out = buf.String()
	for _, want := range []string{"LAST RUN", "20260101-000000-beef", "failed", "1 ok, 1 failed, 0 skipped of 2 planned"} {
		if !strings.Contains(out, want) {
			t.Fatalf("last-run block missing %q:\n%s", want, out)
		}
	}

	// A fresh machine has no journaled run; nothing is printed.
	buf.Reset()
	if err := PrintLastRun(&buf, nil); err != nil {
		t.Fatalf("nil summary: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("nil summary printed output: %q", buf.String())
	}
}
