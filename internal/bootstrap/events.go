// File: internal/bootstrap/events.go
// Brief: Structured run events consumed by the console and the journal.

package bootstrap

// RunEventType enumerates structured bootstrap run events.
//
// These values are persisted in the sqlite journal and consumed by
// `mdssboot status` and `mdssboot runs`.
type RunEventType string

const (
	RunStarted   RunEventType = "RUN_STARTED"
	RunCompleted RunEventType = "RUN_COMPLETED"

	StepRunning   RunEventType = "STEP_RUNNING"
	StepSucceeded RunEventType = "STEP_SUCCEEDED"
	StepFailed    RunEventType = "STEP_FAILED"
	StepSkipped   RunEventType = "STEP_SKIPPED"

	RetryScheduled RunEventType = "RETRY_SCHEDULED"

	// ActionLog is an ephemeral event carrying subprocess output lines;
	// it is rendered in verbose mode and not stored in sqlite.
	ActionLog RunEventType = "ACTION_LOG"
)

type RunError struct {
	Class   string `json:"class,omitempty"`
	Message string `json:"message,omitempty"`
}

type RunEvent struct {
	TS      string       `json:"ts"`
	Type    RunEventType `json:"type"`
	Step    string       `json:"step,omitempty"`
	Attempt int          `json:"attempt,omitempty"`
	Message string       `json:"message,omitempty"`
	Error   *RunError    `json:"error,omitempty"`
}

type RunEventObserver interface {
	ObserveRunEvent(RunEvent)
}
