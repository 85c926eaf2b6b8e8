// File: internal/bootstrap/summary.go
// Brief: Per-run summary accumulation.

package bootstrap

import (
	"sync"
	"time"
)

type RunTotals struct {
	Planned   int `json:"planned"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

type StepSummary struct {
	Status  string `json:"status"`
	Attempt int    `json:"attempt"`
	Error   string `json:"error,omitempty"`
}

// RunSummary is the compact run record stored in the journal and shown
// by `mdssboot status` and `mdssboot runs`.
type RunSummary struct {
	APIVersion string                 `json:"apiVersion"`
	RunID      string                 `json:"runId"`
	Status     string                 `json:"status"`
	StartedAt  string                 `json:"startedAt"`
	UpdatedAt  string                 `json:"updatedAt"`
	Totals     RunTotals              `json:"totals"`
	Steps      map[string]StepSummary `json:"steps"`
	Order      []string               `json:"order,omitempty"`
}

type runSummary struct {
	mu  sync.Mutex
	cur RunSummary
}

func newRunSummary(runID string, p *Plan) *runSummary {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	s := &runSummary{
		cur: RunSummary{
			APIVersion: "mdssboot.dev/run/v1",
			RunID:      runID,
			Status:     "running",
			StartedAt:  now,
			UpdatedAt:  now,
			Totals:     RunTotals{Planned: len(p.Order)},
			Steps:      make(map[string]StepSummary, len(p.Order)),
			Order:      append([]string(nil), p.Order...),
		},
	}
	for _, name := range p.Order {
		s.cur.Steps[name] = StepSummary{Status: "planned"}
	}
	return s
}

func (s *runSummary) observe(ev RunEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.UpdatedAt = ev.TS

	switch ev.Type {
	case StepRunning, StepSucceeded, StepFailed, StepSkipped:
		ss := s.cur.Steps[ev.Step]
		if ev.Attempt > ss.Attempt {
			ss.Attempt = ev.Attempt
		}
		switch ev.Type {
		case StepRunning:
			ss.Status = "running"
		case StepSucceeded:
			ss.Status = "succeeded"
		case StepSkipped:
			ss.Status = "skipped"
		case StepFailed:
			ss.Status = "failed"
			if ev.Error != nil {
				ss.Error = ev.Error.Message
			} else {
				ss.Error = ev.Message
			}
		}
		s.cur.Steps[ev.Step] = ss
	case RunCompleted:
		if ev.Message != "" {
			s.cur.Status = ev.Message
		} else {
			s.cur.Status = "completed"
		}
	}
}

func (s *runSummary) snapshot() *RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.cur
	out.Steps = make(map[string]StepSummary, len(s.cur.Steps))
	out.Totals = RunTotals{Planned: s.cur.Totals.Planned}
	for name, ss := range s.cur.Steps {
		out.Steps[name] = ss
		switch ss.Status {
		case "succeeded":
			out.Totals.Succeeded++
		case "failed":
			out.Totals.Failed++
		case "skipped":
			out.Totals.Skipped++
		}
	}
	out.Order = append([]string(nil), s.cur.Order...)
	return &out
}
