package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/example/mdssboot/internal/checkpoint"
)

type memEnvWriter struct {
	lines []string
}

func (w *memEnvWriter) Append(lines []string) (int, error) {
	added := 0
	for _, line := range lines {
		seen := false
		for _, have := range w.lines {
			if have == line {
				seen = true
				break
			}
		}
		if !seen {
			w.lines = append(w.lines, line)
			added++
		}
	}
	return added, nil
}

type eventRecorder struct {
	events []RunEvent
}

func (r *eventRecorder) ObserveRunEvent(ev RunEvent) { r.events = append(r.events, ev) }

func (r *eventRecorder) ofType(typ RunEventType) []RunEvent {
	var out []RunEvent
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func compilePlan(t *testing.T, root string, steps ...StepSpec) *Plan {
	t.Helper()
	p, err := Compile(chainManifest(steps...), root)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return p
}

func newStore(t *testing.T, root string) checkpoint.Store {
	t.Helper()
	return checkpoint.NewDirStore(filepath.Join(root, ".mdssboot", "checkpoints"))
}

func touchStep(name, file string) StepSpec {
	return StepSpec{
		Name:    name,
		Actions: []ActionSpec{{Run: &RunAction{Command: "touch " + file}}},
	}
}

func TestRunFreshMachineRunsEveryStep(t *testing.T) {
	root := t.TempDir()
	p := compilePlan(t, root,
		touchStep("petsc", "built"),
		step2("cgns", "touch built", "petsc"),
	)
	store := newStore(t, root)
	rec := &eventRecorder{}

	err := Run(context.Background(), RunOptions{Plan: p, Store: store, Observers: []RunEventObserver{rec}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := len(rec.ofType(StepSucceeded)); got != 2 {
		t.Fatalf("succeeded steps = %d, want 2", got)
	}
	for _, name := range []string{"petsc", "cgns"} {
		if _, err := os.Stat(filepath.Join(root, name, "built")); err != nil {
			t.Fatalf("step %s did not run its action: %v", name, err)
		}
		done, err := store.Completed(name)
		if err != nil || !done {
			t.Fatalf("marker missing for %s (done=%v err=%v)", name, done, err)
		}
	}
}

func step2(name, cmd string, needs ...string) StepSpec {
	return StepSpec{
		Name:    name,
		Needs:   needs,
		Actions: []ActionSpec{{Run: &RunAction{Command: cmd}}},
	}
}

func TestRunSecondInvocationSkipsEverything(t *testing.T) {
	root := t.TempDir()
	p := compilePlan(t, root, touchStep("petsc", "built"))
	store := newStore(t, root)

	if err := Run(context.Background(), RunOptions{Plan: p, Store: store}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	// Delete the artifact; a skipped step must not rebuild it.
	if err := os.Remove(filepath.Join(root, "petsc", "built")); err != nil {
		t.Fatalf("remove artifact: %v", err)
	}

	rec := &eventRecorder{}
	if err := Run(context.Background(), RunOptions{Plan: p, Store: store, Observers: []RunEventObserver{rec}}); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if got := len(rec.ofType(StepSkipped)); got != 1 {
		t.Fatalf("skipped steps = %d, want 1", got)
	}
	if len(rec.ofType(StepRunning)) != 0 {
		t.Fatal("second run re-executed a completed step")
	}
	if _, err := os.Stat(filepath.Join(root, "petsc", "built")); !os.IsNotExist(err) {
		t.Fatal("skipped step touched its target directory")
	}
}

func TestRunCleanSlateWipesStaleDir(t *testing.T) {
	root := t.TempDir()
	p := compilePlan(t, root, touchStep("petsc", "built"))
	store := newStore(t, root)

	stale := filepath.Join(root, "petsc", "half-finished.o")
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Run(context.Background(), RunOptions{Plan: p, Store: store}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("stale file survived the clean-slate reinstall")
	}
	if _, err := os.Stat(filepath.Join(root, "petsc", "built")); err != nil {
		t.Fatalf("action artifact missing after reinstall: %v", err)
	}
}

func TestRunFailFastAbortsRemainingSteps(t *testing.T) {
	root := t.TempDir()
	p := compilePlan(t, root,
		touchStep("petsc", "built"),
		StepSpec{Name: "cgns", Needs: []string{"petsc"}, Actions: []ActionSpec{{Run: &RunAction{Command: "false"}}}},
		step2("idwarp", "touch built", "cgns"),
	)
	store := newStore(t, root)
	rec := &eventRecorder{}

	err := Run(context.Background(), RunOptions{Plan: p, Store: store, Observers: []RunEventObserver{rec}})
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("want *StepError, got %v", err)
	}
	if stepErr.Step != "cgns" {
		t.Fatalf("error names step %q, want cgns", stepErr.Step)
	}

	// petsc succeeded and is checkpointed; idwarp never started.
	if done, _ := store.Completed("petsc"); !done {
		t.Fatal("petsc marker missing after successful step")
	}
	if done, _ := store.Completed("cgns"); done {
		t.Fatal("failed step must not be checkpointed")
	}
	if _, err := os.Stat(filepath.Join(root, "idwarp")); !os.IsNotExist(err) {
		t.Fatal("step after the failure still ran")
	}
	runEnd := rec.ofType(RunCompleted)
	if len(runEnd) != 1 || runEnd[0].Message != "failed" {
		t.Fatalf("run completion event = %+v", runEnd)
	}

	// Resuming after a fix re-runs only the failed step onward.
	p2 := compilePlan(t, root,
		touchStep("petsc", "built"),
		step2("cgns", "touch built", "petsc"),
		step2("idwarp", "touch built", "cgns"),
	)
	rec2 := &eventRecorder{}
	if err := Run(context.Background(), RunOptions{Plan: p2, Store: store, Observers: []RunEventObserver{rec2}}); err != nil {
		t.Fatalf("resume run: %v", err)
	}
	if len(rec2.ofType(StepSkipped)) != 1 {
		t.Fatal("petsc should be skipped on resume")
	}
	if len(rec2.ofType(StepSucceeded)) != 2 {
		t.Fatal("cgns and idwarp should run on resume")
	}
}

func TestRunAppendsEnvExportsOnce(t *testing.T) {
	root := t.TempDir()
	spec := touchStep("petsc", "built")
	spec.Env = []EnvExport{
		{Name: "PETSC_DIR", Value: filepath.Join(root, "petsc")},
		{Name: "PETSC_ARCH", Value: "real-opt"},
	}
	p := compilePlan(t, root, spec)
	store := newStore(t, root)
	w := &memEnvWriter{}

	if err := Run(context.Background(), RunOptions{Plan: p, Store: store, EnvWriter: w}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(w.lines) != 2 {
		t.Fatalf("want 2 export lines, got %v", w.lines)
	}
	if !strings.HasPrefix(w.lines[0], `export PETSC_DIR="`) {
		t.Fatalf("unexpected export line %q", w.lines[0])
	}

	// Re-run after clearing the marker: the guarded append stays stable.
	if err := store.ClearStep("petsc"); err != nil {
		t.Fatal(err)
	}
	if err := Run(context.Background(), RunOptions{Plan: p, Store: store, EnvWriter: w}); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if len(w.lines) != 2 {
		t.Fatalf("env exports duplicated: %v", w.lines)
	}
}

func TestRunFailureSkipsEnvExports(t *testing.T) {
	root := t.TempDir()
	spec := StepSpec{
		Name:    "cgns",
		Actions: []ActionSpec{{Run: &RunAction{Command: "false"}}},
		Env:     []EnvExport{{Name: "CGNS_HOME", Value: "/opt/cgns"}},
	}
	p := compilePlan(t, root, spec)
	w := &memEnvWriter{}

	err := Run(context.Background(), RunOptions{Plan: p, Store: newStore(t, root), EnvWriter: w})
	if err == nil {
		t.Fatal("expected step failure")
	}
	if len(w.lines) != 0 {
		t.Fatalf("failed step exported env lines: %v", w.lines)
	}
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	root := t.TempDir()
	spec := touchStep("petsc", "built")
	spec.Env = []EnvExport{{Name: "PETSC_DIR", Value: "/x"}}
	p := compilePlan(t, root, spec)
	rec := &eventRecorder{}
	w := &memEnvWriter{}

	if err := Run(context.Background(), RunOptions{Plan: p, DryRun: true, EnvWriter: w, Observers: []RunEventObserver{rec}}); err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "petsc")); !os.IsNotExist(err) {
		t.Fatal("dry run created the step directory")
	}
	if len(w.lines) != 0 {
		t.Fatal("dry run wrote env exports")
	}
	var wouldLines int
	for _, ev := range rec.ofType(ActionLog) {
		if strings.HasPrefix(ev.Message, "would ") {
			wouldLines++
		}
	}
	if wouldLines != 2 {
		t.Fatalf("dry run narrated %d actions, want 2", wouldLines)
	}
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	root := t.TempDir()
	p := compilePlan(t, root, touchStep("petsc", "built"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, RunOptions{Plan: p, Store: newStore(t, root)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "petsc")); !os.IsNotExist(err) {
		t.Fatal("canceled run created the step directory")
	}
}

func TestRunInjectsStepEnvironment(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "env.txt")
	spec := StepSpec{
		Name: "probe",
		Actions: []ActionSpec{{Run: &RunAction{
			Command: `sh -c 'echo "$MDSS_STEP:$MDSS_STEP_DIR" > ` + out + `'`,
		}}},
	}
	p := compilePlan(t, root, spec)

	if err := Run(context.Background(), RunOptions{Plan: p, Store: newStore(t, root)}); err != nil {
		t.Fatalf("run: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("probe output: %v", err)
	}
	want := "probe:" + filepath.Join(root, "probe")
	if strings.TrimSpace(string(data)) != want {
		t.Fatalf("env probe = %q, want %q", strings.TrimSpace(string(data)), want)
	}
}

func TestRunDryRunHonorsCheckpoints(t *testing.T) {
	root := t.TempDir()
	p := compilePlan(t, root,
		touchStep("petsc", "built"),
		step2("cgns", "touch built", "petsc"),
	)
	store := newStore(t, root)
	if err := store.MarkCompleted("petsc"); err != nil {
		t.Fatal(err)
	}

	rec := &eventRecorder{}
	if err := Run(context.Background(), RunOptions{Plan: p, Store: store, DryRun: true, Observers: []RunEventObserver{rec}}); err != nil {
		t.Fatalf("dry run: %v", err)
	}
	// The checkpointed step is narrated as a skip, not as pending work.
	if got := len(rec.ofType(StepSkipped)); got != 1 {
		t.Fatalf("skipped steps = %d, want 1", got)
	}
	for _, ev := range rec.ofType(ActionLog) {
		if ev.Step == "petsc" {
			t.Fatalf("dry run narrated work for a checkpointed step: %q", ev.Message)
		}
	}
	if got := len(rec.ofType(StepRunning)); got != 1 {
		t.Fatalf("running steps = %d, want 1 (cgns only)", got)
	}
	if _, err := os.Stat(filepath.Join(root, "cgns")); !os.IsNotExist(err) {
		t.Fatal("dry run created a step directory")
	}
}

func TestRunStepWithoutTargetDirectory(t *testing.T) {
	root := t.TempDir()
	spec := StepSpec{
		Name:    "pip-only",
		Dir:     strPtr(""),
		Actions: []ActionSpec{{Run: &RunAction{Command: "touch installed"}}},
	}
	p := compilePlan(t, root, spec)
	store := newStore(t, root)

	if err := Run(context.Background(), RunOptions{Plan: p, Store: store}); err != nil {
		t.Fatalf("run: %v", err)
	}
	// No target directory means no clean-slate wipe and no per-step
	// directory; the action runs from the install root.
	if _, err := os.Stat(filepath.Join(root, "pip-only")); !os.IsNotExist(err) {
		t.Fatal("dirless step still got a target directory")
	}
	if _, err := os.Stat(filepath.Join(root, "installed")); err != nil {
		t.Fatalf("action did not run from the install root: %v", err)
	}
	if done, _ := store.Completed("pip-only"); !done {
		t.Fatal("dirless step was not checkpointed")
	}
}

func TestRunActionRetryPolicy(t *testing.T) {
	t.Run("deterministic failure is not retried", func(t *testing.T) {
		root := t.TempDir()
		retries := 2
		spec := StepSpec{
			Name:    "build",
			Actions: []ActionSpec{{Run: &RunAction{Command: "false", Retries: &retries}}},
		}
		p := compilePlan(t, root, spec)
		rec := &eventRecorder{}

		err := Run(context.Background(), RunOptions{Plan: p, Store: newStore(t, root), Observers: []RunEventObserver{rec}})
		if err == nil {
			t.Fatal("expected step failure")
		}
		if got := len(rec.ofType(RetryScheduled)); got != 0 {
			t.Fatalf("exit-status failure scheduled %d retries, want 0", got)
		}
	})

	t.Run("timeout is retried", func(t *testing.T) {
		root := t.TempDir()
		retries := 1
		timeout := Duration(50 * time.Millisecond)
		spec := StepSpec{
			Name:    "slow",
			Actions: []ActionSpec{{Run: &RunAction{Command: "sleep 5", Timeout: &timeout, Retries: &retries}}},
		}
		p := compilePlan(t, root, spec)
		rec := &eventRecorder{}

		err := Run(context.Background(), RunOptions{Plan: p, Store: newStore(t, root), Observers: []RunEventObserver{rec}})
		if err == nil {
			t.Fatal("expected step failure")
		}
		if !strings.Contains(err.Error(), "timeout") {
			t.Fatalf("error should carry the timeout class, got: %v", err)
		}
		if got := len(rec.ofType(RetryScheduled)); got != 1 {
			t.Fatalf("timed-out action scheduled %d retries, want 1", got)
		}
	})
}
