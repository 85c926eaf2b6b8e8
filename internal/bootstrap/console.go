// File: internal/bootstrap/console.go
// Brief: Line-oriented console rendering of run events.

package bootstrap

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
)

type ConsoleOptions struct {
	// Verbose includes subprocess output (ACTION_LOG events).
	Verbose bool
	// Color toggles ANSI styling.
	Color bool
}

// Console renders run events as prefixed lines. It is an event sink:
// feed it via ObserveRunEvent.
type Console struct {
	out  io.Writer
	opts ConsoleOptions

	mu       sync.Mutex
	total    int
	position int
	started  map[string]time.Time

	ok   *color.Color
	bad  *color.Color
	dim  *color.Color
	head *color.Color
}

func NewConsole(out io.Writer, total int, opts ConsoleOptions) *Console {
	c := &Console{
		out:     out,
		opts:    opts,
		total:   total,
		started: map[string]time.Time{},
		ok:      color.New(color.FgGreen),
		bad:     color.New(color.FgRed, color.Bold),
		dim:     color.New(color.Faint),
		head:    color.New(color.FgCyan),
	}
	if !opts.Color {
		for _, cl := range []*color.Color{c.ok, c.bad, c.dim, c.head} {
			cl.DisableColor()
		}
	}
	return c
}

func (c *Console) ObserveRunEvent(ev RunEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Type {
	case RunStarted:
		fmt.Fprintln(c.out, c.head.Sprintf("bootstrap: %s", ev.Message))
	case StepRunning:
		c.position++
		c.started[ev.Step] = time.Now()
		label := ev.Step
		if ev.Message != "" {
			label += " (" + ev.Message + ")"
		}
		fmt.Fprintf(c.out, "%s %s\n", c.head.Sprintf("[%d/%d]", c.position, c.total), label)
	case StepSucceeded:
		fmt.Fprintln(c.out, c.ok.Sprintf("  ok %s%s", ev.Step, c.elapsed(ev.Step)))
	case StepSkipped:
		c.position++
		fmt.Fprintln(c.out, c.dim.Sprintf("  skip %s (already completed)", ev.Step))
	case StepFailed:
		fmt.Fprintln(c.out, c.bad.Sprintf("  FAIL %s", ev.Message))
	case RetryScheduled:
		fmt.Fprintln(c.out, c.dim.Sprintf("  retry %s: %s", ev.Step, ev.Message))
	case ActionLog:
		if c.opts.Verbose {
			fmt.Fprintln(c.out, c.dim.Sprintf("    %s", ev.Message))
		}
	case RunCompleted:
		switch ev.Message {
		case "succeeded":
			fmt.Fprintln(c.out, c.ok.Sprint("bootstrap: all steps completed"))
		case "failed":
			fmt.Fprintln(c.out, c.bad.Sprint("bootstrap: aborted on first failure"))
		default:
			fmt.Fprintf(c.out, "bootstrap: %s\n", ev.Message)
		}
	}
}

func (c *Console) elapsed(step string) string {
	start, ok := c.started[step]
	if !ok {
		return ""
	}
	return fmt.Sprintf(" (%s)", time.Since(start).Round(time.Millisecond))
}
