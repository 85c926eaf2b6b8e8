// File: internal/checkpoint/store.go
// Brief: Completed-step tracking injected into the bootstrap runner.

// Package checkpoint persists which installation steps have already
// completed, so repeated bootstrap invocations skip finished work.
package checkpoint

// Store records step completion. A step whose marker exists is never
// re-executed until the marker is cleared.
type Store interface {
	Completed(name string) (bool, error)
	MarkCompleted(name string) error
	ClearStep(name string) error
	Clear() error
	List() ([]string, error)
}
