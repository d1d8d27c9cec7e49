// Package strategy implements the two orchestration modes that coordinate
// child agent processes: on-demand delegation to a named role, and a fixed
// sequential pipeline with output chaining.
package strategy

import (
	"context"
	"strings"

	"github.com/ShayCichocki/foreman/internal/launcher"
	"github.com/ShayCichocki/foreman/internal/stream"
	"github.com/ShayCichocki/foreman/internal/tracker"
	"github.com/ShayCichocki/foreman/pkg/models"
)

// Handle is the slice of a launched process the strategies consume: the
// progress-event stream, the completion future, and termination.
type Handle interface {
	Events() <-chan stream.Event
	Done() <-chan launcher.Completion
	Kill() error
}

// Runner launches a child process for a profile and task.
// This abstraction allows scripting child behavior in tests.
type Runner interface {
	Launch(ctx context.Context, p models.Profile, task string, opts launcher.Options) Handle
}

// launcherRunner adapts *launcher.Launcher to Runner.
type launcherRunner struct {
	l *launcher.Launcher
}

// NewRunner wraps a launcher as a Runner.
func NewRunner(l *launcher.Launcher) Runner {
	return launcherRunner{l: l}
}

func (r launcherRunner) Launch(ctx context.Context, p models.Profile, task string, opts launcher.Options) Handle {
	return r.l.Launch(ctx, p, task, opts)
}

// consume drains a handle's event stream into the unit of work and then
// awaits the completion future. Events mutate the unit in exactly the
// order the child emitted them.
func consume(tr *tracker.Tracker, id string, h Handle) launcher.Completion {
	for ev := range h.Events() {
		switch ev.Type {
		case stream.EventText:
			tr.AppendText(id, ev.Delta)
			if line := activityLine(ev.Delta); line != "" {
				tr.Note(id, line)
			}
		case stream.EventTool:
			tr.Note(id, "using "+ev.Tool)
		}
	}
	return <-h.Done()
}

// activityLine reduces a text fragment to its last non-empty line for the
// status display.
func activityLine(delta string) string {
	lines := strings.Split(strings.TrimRight(delta, "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// outcomeFrom converts a completion into the uniform outcome shape.
func outcomeFrom(c launcher.Completion, role string) models.Outcome {
	o := models.Outcome{Role: role, Step: -1, Elapsed: c.Elapsed}
	switch {
	case c.Succeeded:
		o.Kind = models.OutcomeSuccess
		o.Text = c.OutputText
	case c.Cancelled:
		o.Kind = models.OutcomeCancelled
		o.Text = c.Diagnostic
	case c.TimedOut:
		o.Kind = models.OutcomeTimedOut
		o.Text = c.Diagnostic
	default:
		o.Kind = models.OutcomeFailure
		o.Text = c.Diagnostic
	}
	return o
}
