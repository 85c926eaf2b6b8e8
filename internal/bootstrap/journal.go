// File: internal/bootstrap/journal.go
// Brief: Sqlite-backed run journal under the install root.

package bootstrap

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const journalRelPath = ".mdssboot/state.sqlite"

// Journal persists bootstrap runs, per-step outcomes, and durable
// events in a single-writer sqlite database under the install root.
type Journal struct {
	db       *sql.DB
	path     string
	readOnly bool
}

func OpenJournal(root string, readOnly bool) (*Journal, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(absRoot, journalRelPath)
	if readOnly {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	dsn := path
	if readOnly {
		u := url.URL{Scheme: "file", Path: path}
		q := u.Query()
		q.Set("mode", "ro")
		q.Set("_busy_timeout", "5000")
		u.RawQuery = q.Encode()
		dsn = u.String()
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	j := &Journal{db: db, path: path, readOnly: readOnly}
	if !readOnly {
		if err := j.initSchema(ctx); err != nil {
			_ = j.Close()
			return nil, err
		}
	}
	return j, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func (j *Journal) Path() string { return j.path }

func (j *Journal) initSchema(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA foreign_keys=ON;`,
		`PRAGMA busy_timeout=5000;`,
		`
CREATE TABLE IF NOT EXISTS mdssboot_runs (
  run_id TEXT PRIMARY KEY,
  root TEXT NOT NULL,
  manifest_name TEXT NOT NULL,
  status TEXT NOT NULL,
  created_at_ns INTEGER NOT NULL,
  updated_at_ns INTEGER NOT NULL,
  plan_json TEXT NOT NULL,
  summary_json TEXT NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS mdssboot_steps (
  run_id TEXT NOT NULL,
  step TEXT NOT NULL,
  status TEXT NOT NULL,
  attempt INTEGER NOT NULL,
  error TEXT NOT NULL,
  PRIMARY KEY (run_id, step),
  FOREIGN KEY (run_id) REFERENCES mdssboot_runs(run_id) ON DELETE CASCADE
);`,
		`
CREATE TABLE IF NOT EXISTS mdssboot_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT NOT NULL,
  ts_ns INTEGER NOT NULL,
  step TEXT NOT NULL,
  type TEXT NOT NULL,
  attempt INTEGER NOT NULL,
  message TEXT NOT NULL,
  error_class TEXT NOT NULL,
  error_message TEXT NOT NULL,
  FOREIGN KEY (run_id) REFERENCES mdssboot_runs(run_id) ON DELETE CASCADE
);`,
		`CREATE INDEX IF NOT EXISTS idx_mdssboot_events_run_id_id ON mdssboot_events(run_id, id);`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (j *Journal) CreateRun(ctx context.Context, runID string, p *Plan) error {
	now := time.Now().UTC()

	planJSON, err := json.Marshal(p)
	if err != nil {
		return err
	}
	empty := RunSummary{
		APIVersion: "mdssboot.dev/run/v1",
		RunID:      runID,
		Status:     "running",
		StartedAt:  now.Format(time.RFC3339Nano),
		UpdatedAt:  now.Format(time.RFC3339Nano),
		Totals:     RunTotals{Planned: len(p.Order)},
		Steps:      map[string]StepSummary{},
		Order:      append([]string(nil), p.Order...),
	}
	for _, name := range p.Order {
		empty.Steps[name] = StepSummary{Status: "planned"}
	}
	summaryJSON, err := json.Marshal(empty)
	if err != nil {
		return err
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO mdssboot_runs (run_id, root, manifest_name, status, created_at_ns, updated_at_ns, plan_json, summary_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, runID, p.Root, p.ManifestName, "running", now.UnixNano(), now.UnixNano(), string(planJSON), string(summaryJSON))
	if err != nil {
		return err
	}

	for _, name := range p.Order {
		_, err := tx.ExecContext(ctx, `
INSERT INTO mdssboot_steps (run_id, step, status, attempt, error)
VALUES (?, ?, ?, ?, ?)
`, runID, name, "planned", 0, "")
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (j *Journal) AppendEvent(ctx context.Context, runID string, ev RunEvent) error {
	ts, err := time.Parse(time.RFC3339Nano, ev.TS)
	if err != nil {
		ts = time.Now().UTC()
	}
	errClass := ""
	errMsg := ""
	if ev.Error != nil {
		errClass = strings.TrimSpace(ev.Error.Class)
		errMsg = strings.TrimSpace(ev.Error.Message)
	}
	_, err = j.db.ExecContext(ctx, `
INSERT INTO mdssboot_events (run_id, ts_ns, step, type, attempt, message, error_class, error_message)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`, runID, ts.UnixNano(), strings.TrimSpace(ev.Step), string(ev.Type), ev.Attempt, strings.TrimSpace(ev.Message), errClass, errMsg)
	if err != nil {
		return err
	}

	updatedAt := time.Now().UTC().UnixNano()
	_, _ = j.db.ExecContext(ctx, `UPDATE mdssboot_runs SET updated_at_ns = ? WHERE run_id = ?`, updatedAt, runID)

	switch ev.Type {
	case StepRunning, StepSucceeded, StepFailed, StepSkipped:
		status := ""
		switch ev.Type {
		case StepRunning:
			status = "running"
		case StepSucceeded:
			status = "succeeded"
		case StepFailed:
			status = "failed"
		case StepSkipped:
			status = "skipped"
		}
		stepErr := ""
		if status == "failed" {
			stepErr = errMsg
		}
		_, _ = j.db.ExecContext(ctx, `
UPDATE mdssboot_steps
SET status = ?, attempt = CASE WHEN ? > attempt THEN ? ELSE attempt END, error = ?
WHERE run_id = ? AND step = ?
`, status, ev.Attempt, ev.Attempt, stepErr, runID, ev.Step)
	case RunCompleted:
		status := strings.TrimSpace(ev.Message)
		if status == "" {
			status = "completed"
		}
		_, _ = j.db.ExecContext(ctx, `UPDATE mdssboot_runs SET status = ?, updated_at_ns = ? WHERE run_id = ?`, status, updatedAt, runID)
	}
	return nil
}

func (j *Journal) WriteSummary(ctx context.Context, runID string, summary *RunSummary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	updatedAt := time.Now().UTC().UnixNano()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `UPDATE mdssboot_runs SET summary_json = ?, status = ?, updated_at_ns = ? WHERE run_id = ?`,
		string(raw), summary.Status, updatedAt, runID)
	if err != nil {
		return err
	}
	for step, ss := range summary.Steps {
		_, err := tx.ExecContext(ctx, `
UPDATE mdssboot_steps
SET status = ?, attempt = ?, error = ?
WHERE run_id = ? AND step = ?
`, ss.Status, ss.Attempt, strings.TrimSpace(ss.Error), runID, step)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (j *Journal) GetRunSummary(ctx context.Context, runID string) (*RunSummary, error) {
	var raw string
	err := j.db.QueryRowContext(ctx, `SELECT summary_json FROM mdssboot_runs WHERE run_id = ?`, runID).Scan(&raw)
	if err != nil {
		return nil, err
	}
	var s RunSummary
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// MostRecentRunID returns the newest journaled run, or "" when the
// journal holds no runs yet.
func (j *Journal) MostRecentRunID(ctx context.Context) (string, error) {
	var runID string
	err := j.db.QueryRowContext(ctx, `SELECT run_id FROM mdssboot_runs ORDER BY created_at_ns DESC LIMIT 1`).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return runID, err
}

// RunIndexEntry is a compact run record shown by `mdssboot runs`.
type RunIndexEntry struct {
	RunID      string    `json:"runId"`
	Status     string    `json:"status,omitempty"`
	StartedAt  string    `json:"startedAt,omitempty"`
	UpdatedAt  string    `json:"updatedAt,omitempty"`
	Totals     RunTotals `json:"totals,omitempty"`
	HasSummary bool      `json:"hasSummary"`
}

func (j *Journal) ListRuns(ctx context.Context, limit int) ([]RunIndexEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `
SELECT run_id, summary_json
FROM mdssboot_runs
ORDER BY created_at_ns DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RunIndexEntry
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		var s RunSummary
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			out = append(out, RunIndexEntry{RunID: id, HasSummary: false})
			continue
		}
		out = append(out, RunIndexEntry{
			RunID:      id,
			Status:     s.Status,
			StartedAt:  s.StartedAt,
			UpdatedAt:  s.UpdatedAt,
			Totals:     s.Totals,
			HasSummary: true,
		})
	}
	return out, rows.Err()
}
