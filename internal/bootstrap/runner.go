// File: internal/bootstrap/runner.go
// Brief: Sequential bootstrap runner (skip, clean slate, fail fast).

package bootstrap

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/mdssboot/internal/checkpoint"
	"github.com/example/mdssboot/internal/envfile"
)

// StepError is the single fatal error kind of a bootstrap run: the
// first action failure inside a step aborts the whole run.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("step %s failed: %v", e.Step, e.Err) }
func (e *StepError) Unwrap() error { return e.Err }

// EnvWriter receives a step's export lines after the step succeeds.
type EnvWriter interface {
	Append(lines []string) (int, error)
}

type RunOptions struct {
	Plan  *Plan
	Store checkpoint.Store

	// Journal is optional; when set, run metadata and durable events
	// are persisted to sqlite.
	Journal *Journal

	// EnvWriter is optional; when nil, env exports are not written.
	EnvWriter EnvWriter

	DryRun bool
	RunID  string

	Observers []RunEventObserver
	Logger    *zap.Logger
}

// Run executes the plan's steps strictly sequentially in Order. A step
// whose checkpoint marker exists is skipped. Otherwise its target
// directory is wiped and recreated, its actions run in order, its env
// exports are appended, and only then is the marker written. The first
// failure aborts the run.
func Run(ctx context.Context, opts RunOptions) error {
	if opts.Plan == nil {
		return fmt.Errorf("plan is required")
	}
	if opts.Store == nil && !opts.DryRun {
		return fmt.Errorf("checkpoint store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := strings.TrimSpace(opts.RunID)
	if runID == "" {
		runID = NewRunID()
	}
	journal := opts.Journal
	if opts.DryRun {
		journal = nil
	}

	summary := newRunSummary(runID, opts.Plan)
	emit := func(ev RunEvent) {
		summary.observe(ev)
		for _, obs := range opts.Observers {
			if obs != nil {
				obs.ObserveRunEvent(ev)
			}
		}
		if journal != nil && ev.Type != ActionLog {
			if err := journal.AppendEvent(ctx, runID, ev); err != nil {
				logger.Warn("journal append failed", zap.String("runId", runID), zap.Error(err))
			}
		}
	}

	if journal != nil {
		if err := journal.CreateRun(ctx, runID, opts.Plan); err != nil {
			return fmt.Errorf("create journal run: %w", err)
		}
		defer func() {
			if err := journal.WriteSummary(context.Background(), runID, summary.snapshot()); err != nil {
				logger.Warn("journal summary failed", zap.String("runId", runID), zap.Error(err))
			}
		}()
	}

	emitRun := func(typ RunEventType, msg string, runErr *RunError) {
		emit(RunEvent{TS: nowRFC3339(), Type: typ, Message: msg, Error: runErr})
	}

	emitRun(RunStarted, fmt.Sprintf("%d steps planned", len(opts.Plan.Order)), nil)
	logger.Info("bootstrap run started",
		zap.String("runId", runID),
		zap.String("root", opts.Plan.Root),
		zap.Int("steps", len(opts.Plan.Order)),
		zap.Bool("dryRun", opts.DryRun))

	for _, name := range opts.Plan.Order {
		st := opts.Plan.ByName[name]
		if err := ctx.Err(); err != nil {
			emitRun(RunCompleted, "canceled", &RunError{Class: "CANCELED", Message: err.Error()})
			return err
		}

		if done, err := stepCompleted(opts, st.Name); err != nil {
			emitRun(RunCompleted, "failed", &RunError{Class: "CHECKPOINT", Message: err.Error()})
			return fmt.Errorf("checkpoint lookup for step %s: %w", st.Name, err)
		} else if done {
			emit(stepEvent(st, StepSkipped, "already completed", nil))
			logger.Debug("step skipped", zap.String("step", st.Name))
			continue
		}

		emit(stepEvent(st, StepRunning, st.Description, nil))

		if err := runStep(ctx, opts, runID, st, emit); err != nil {
			stepErr := &StepError{Step: st.Name, Err: err}
			re := &RunError{Class: classifyError(err), Message: err.Error()}
			emit(stepEvent(st, StepFailed, stepErr.Error(), re))
			emitRun(RunCompleted, "failed", re)
			logger.Error("step failed", zap.String("step", st.Name), zap.Error(err))
			return stepErr
		}

		if !opts.DryRun {
			if err := opts.Store.MarkCompleted(st.Name); err != nil {
				stepErr := &StepError{Step: st.Name, Err: fmt.Errorf("write checkpoint marker: %w", err)}
				re := &RunError{Class: "CHECKPOINT", Message: err.Error()}
				emit(stepEvent(st, StepFailed, stepErr.Error(), re))
				emitRun(RunCompleted, "failed", re)
				return stepErr
			}
		}
		emit(stepEvent(st, StepSucceeded, "", nil))
		logger.Info("step succeeded", zap.String("step", st.Name))
	}

	emitRun(RunCompleted, "succeeded", nil)
	logger.Info("bootstrap run completed", zap.String("runId", runID))
	return nil
}

func stepCompleted(opts RunOptions, name string) (bool, error) {
	if opts.Store == nil {
		return false, nil
	}
	return opts.Store.Completed(name)
}

func runStep(ctx context.Context, opts RunOptions, runID string, st *ResolvedStep, emit func(RunEvent)) error {
	ac := actionContext{
		root:    opts.Plan.Root,
		runID:   runID,
		step:    st,
		attempt: 1,
		emit:    emit,
	}

	if opts.DryRun {
		if st.Dir != "" {
			if _, err := os.Stat(st.Dir); err == nil {
				emitEvent(ac, ActionLog, fmt.Sprintf("would remove and recreate %s", st.Dir), nil)
			}
		}
		for _, a := range st.Actions {
			emitEvent(ac, ActionLog, "would "+DescribeAction(a), nil)
		}
		for _, e := range st.Env {
			emitEvent(ac, ActionLog, "would append "+envfile.ExportLine(e.Name, e.Value), nil)
		}
		return nil
	}

	// Clean-slate reinstall: a step without a marker starts from an
	// empty target directory, even if a previous attempt left files.
	if st.Dir != "" {
		if err := os.RemoveAll(st.Dir); err != nil {
			return fmt.Errorf("clean %s: %w", st.Dir, err)
		}
		if err := os.MkdirAll(st.Dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", st.Dir, err)
		}
	}

	for i, a := range st.Actions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := runAction(ctx, ac, a); err != nil {
			return fmt.Errorf("actions[%d] %s: %w", i, DescribeAction(a), err)
		}
	}

	if len(st.Env) > 0 && opts.EnvWriter != nil {
		added, err := opts.EnvWriter.Append(ExportLines(st.Env))
		if err != nil {
			return fmt.Errorf("append env exports: %w", err)
		}
		if added > 0 {
			emitEvent(ac, ActionLog, fmt.Sprintf("appended %d env export(s)", added), nil)
		}
	}
	return nil
}

func stepEvent(st *ResolvedStep, typ RunEventType, msg string, runErr *RunError) RunEvent {
	return RunEvent{
		TS:      nowRFC3339(),
		Type:    typ,
		Step:    st.Name,
		Attempt: 1,
		Message: msg,
		Error:   runErr,
	}
}

// ExportLines renders env exports into profile lines.
func ExportLines(exports []EnvExport) []string {
	lines := make([]string, 0, len(exports))
	for _, e := range exports {
		lines = append(lines, envfile.ExportLine(e.Name, e.Value))
	}
	return lines
}

// DescribeAction renders a one-line human summary of an action.
func DescribeAction(a ActionSpec) string {
	switch {
	case a.Run != nil:
		cmd := strings.TrimSpace(a.Run.Command)
		if a.Run.Shell {
			return "run (shell): " + cmd
		}
		return "run: " + cmd
	case a.Fetch != nil:
		s := "fetch: " + strings.TrimSpace(a.Fetch.URL)
		if a.Fetch.ExtractTo != "" {
			s += " -> " + a.Fetch.ExtractTo
		}
		return s
	default:
		return "(empty action)"
	}
}

// NewRunID returns a sortable, collision-resistant run identifier.
func NewRunID() string {
	return fmt.Sprintf("%s-%04x", time.Now().UTC().Format("20060102-150405"), rand.Intn(1<<16))
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
