// File: internal/bootstrap/actions.go
// Brief: Step action execution (subprocess and fetch).

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/example/mdssboot/internal/fetch"
)

const defaultActionTimeout = 30 * time.Minute

type actionContext struct {
	root    string
	runID   string
	step    *ResolvedStep
	attempt int
	emit    func(RunEvent)
}

func runAction(ctx context.Context, ac actionContext, a ActionSpec) error {
	switch {
	case a.Run != nil:
		return runCommandAction(ctx, ac, a.Run)
	case a.Fetch != nil:
		return runFetchAction(ctx, ac, a.Fetch)
	default:
		return fmt.Errorf("action has no kind")
	}
}

func runCommandAction(ctx context.Context, ac actionContext, ra *RunAction) error {
	argv, err := commandArgv(ac.step, ra)
	if err != nil {
		return err
	}

	maxAttempts := 1
	if ra.Retries != nil && *ra.Retries > 0 {
		maxAttempts = 1 + *ra.Retries
	}
	timeout := defaultActionTimeout
	if ra.Timeout != nil {
		timeout = time.Duration(*ra.Timeout)
	}

	var lastErr error
	for try := 1; try <= maxAttempts; try++ {
		tryCtx := ctx
		cancel := func() {}
		if timeout > 0 {
			tryCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		lastErr = runCommandOnce(tryCtx, ac, ra, argv)
		if lastErr != nil && errors.Is(tryCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			lastErr = fmt.Errorf("timeout after %s: %w", timeout, lastErr)
		}
		cancel()
		if lastErr == nil {
			return nil
		}
		// Retries are reserved for transient failures; a deterministic
		// build or configure error fails the step on the first attempt.
		class := classifyError(lastErr)
		if try >= maxAttempts || !isRetryableClass(class) {
			return lastErr
		}
		backoff := retryBackoff(try)
		emitEvent(ac, RetryScheduled, fmt.Sprintf("%s failed (attempt %d/%d, %s): %v (retrying in %s)",
			argv[0], try, maxAttempts, class, lastErr, backoff.Round(time.Millisecond)), nil)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return lastErr
}

func runCommandOnce(ctx context.Context, ac actionContext, ra *RunAction, argv []string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = actionWorkDir(ac, ra)
	cmd.Env = buildActionEnv(ac, ra)
	out, err := cmd.CombinedOutput()
	emitActionOutput(ac, out)
	if err != nil {
		return fmt.Errorf("%s: %w", strings.Join(argv, " "), err)
	}
	return nil
}

func commandArgv(st *ResolvedStep, ra *RunAction) ([]string, error) {
	command := strings.TrimSpace(ra.Command)
	if command == "" {
		return nil, fmt.Errorf("run.command is required")
	}
	if ra.Shell {
		shell, err := shellwords.Parse(st.Shell)
		if err != nil {
			return nil, fmt.Errorf("parse shell %q: %w", st.Shell, err)
		}
		if len(shell) == 0 {
			return nil, fmt.Errorf("step %s has no shell configured", st.Name)
		}
		return append(shell, "-c", command), nil
	}
	argv, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", command, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("run.command is empty after parsing")
	}
	return argv, nil
}

func actionWorkDir(ac actionContext, ra *RunAction) string {
	if wd := strings.TrimSpace(ra.WorkDir); wd != "" {
		if filepath.IsAbs(wd) {
			return wd
		}
		if ac.step.Dir != "" {
			return filepath.Join(ac.step.Dir, wd)
		}
		return filepath.Join(ac.root, wd)
	}
	if ac.step.Dir != "" {
		return ac.step.Dir
	}
	return ac.root
}

func buildActionEnv(ac actionContext, ra *RunAction) []string {
	env := append([]string(nil), os.Environ()...)
	env = append(env,
		"MDSS_ROOT="+ac.root,
		"MDSS_STEP="+ac.step.Name,
		"MDSS_STEP_DIR="+ac.step.Dir,
		"MDSS_RUN_ID="+ac.runID,
	)
	env = append(env, sortedEnv(ac.step.BaseEnv)...)
	if ra != nil {
		env = append(env, sortedEnv(ra.Env)...)
	}
	return env
}

func sortedEnv(m map[string]string) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+m[k])
	}
	return out
}

func runFetchAction(ctx context.Context, ac actionContext, fa *FetchAction) error {
	dest := fetchDest(ac, fa)

	maxAttempts := 3
	if fa.Retries != nil {
		maxAttempts = 1 + *fa.Retries
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for try := 1; try <= maxAttempts; try++ {
		lastErr = fetch.Download(ctx, fa.URL, dest, fa.SHA256)
		if lastErr == nil {
			break
		}
		class := classifyError(lastErr)
		if try >= maxAttempts || !isRetryableClass(class) {
			return lastErr
		}
		backoff := retryBackoff(try)
		emitEvent(ac, RetryScheduled, fmt.Sprintf("fetch %s failed (attempt %d/%d, %s): %v (retrying in %s)",
			fa.URL, try, maxAttempts, class, lastErr, backoff.Round(time.Millisecond)), nil)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	if lastErr != nil {
		return lastErr
	}
	emitEvent(ac, ActionLog, fmt.Sprintf("fetched %s", fa.URL), nil)

	if extractTo := strings.TrimSpace(fa.ExtractTo); extractTo != "" {
		dir := extractTo
		if !filepath.IsAbs(dir) {
			if ac.step.Dir != "" {
				dir = filepath.Join(ac.step.Dir, dir)
			} else {
				dir = filepath.Join(ac.root, dir)
			}
		}
		if err := fetch.ExtractTarGz(dest, dir); err != nil {
			return err
		}
		emitEvent(ac, ActionLog, fmt.Sprintf("extracted %s into %s", filepath.Base(dest), dir), nil)
	}
	return nil
}

func fetchDest(ac actionContext, fa *FetchAction) string {
	if d := strings.TrimSpace(fa.Dest); d != "" {
		if filepath.IsAbs(d) {
			return d
		}
		if ac.step.Dir != "" {
			return filepath.Join(ac.step.Dir, d)
		}
		return filepath.Join(ac.root, d)
	}
	name := "archive.tar.gz"
	if u, err := url.Parse(fa.URL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "." && base != "/" {
			name = base
		}
	}
	return filepath.Join(ac.root, "archives", name)
}

func emitActionOutput(ac actionContext, output []byte) {
	if len(output) == 0 {
		return
	}
	text := strings.ReplaceAll(string(output), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		emitEvent(ac, ActionLog, line, nil)
	}
}

func emitEvent(ac actionContext, typ RunEventType, msg string, runErr *RunError) {
	if ac.emit == nil {
		return
	}
	ac.emit(RunEvent{
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
		Type:    typ,
		Step:    ac.step.Name,
		Attempt: ac.attempt,
		Message: msg,
		Error:   runErr,
	})
}
