package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ShayCichocki/foreman/internal/launcher"
	"github.com/ShayCichocki/foreman/internal/logging"
	"github.com/ShayCichocki/foreman/internal/profile"
	"github.com/ShayCichocki/foreman/internal/tracker"
	"github.com/ShayCichocki/foreman/pkg/models"
)

// DelegateTool is the single capability the dispatcher exposes to the
// parent agent. Every other capability is stripped from the parent.
const DelegateTool = "delegate"

// Dispatcher forwards tasks to named roles on demand. The parent agent
// cannot act directly while this strategy is active; it can only delegate.
type Dispatcher struct {
	registry *profile.Registry
	tracker  *tracker.Tracker
	runner   Runner
	logger   *logging.DebugLogger

	// Timeout is the per-dispatch deadline applied to every delegation.
	// Zero means no deadline.
	Timeout time.Duration

	mu   sync.Mutex
	live map[string]Handle
}

// NewDispatcher creates a dispatcher over the given role catalog.
// The registry is passed in explicitly; the strategy never reads a shared
// global role catalog.
func NewDispatcher(registry *profile.Registry, tr *tracker.Tracker, runner Runner, logger *logging.DebugLogger) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		tracker:  tr,
		runner:   runner,
		logger:   logger,
		live:     make(map[string]Handle),
	}
	for _, p := range registry.List() {
		tr.Register(p.Name, p.Name)
	}
	return d
}

// ParentTools returns the capability list the parent agent is reduced to.
func (d *Dispatcher) ParentTools() []string {
	return []string{DelegateTool}
}

// Instructions builds the parent's guiding instructions fresh from the
// current registry contents. The result fully replaces the parent's
// defaults; it is rebuilt before every turn because the role catalog can
// change between turns.
func (d *Dispatcher) Instructions() string {
	var b strings.Builder
	b.WriteString("You are an orchestrator. You cannot read, write, or run anything yourself; ")
	b.WriteString("your only capability is delegate(role, task).\n\n")
	b.WriteString("Available roles:\n")
	for _, p := range d.registry.List() {
		fmt.Fprintf(&b, "- %s: %s\n", p.Name, p.Description)
	}
	b.WriteString("\nDelegate each piece of work to the most suitable role, ")
	b.WriteString("then compose the returned results into your answer.")
	return b.String()
}

// Delegate runs one role on one task and awaits its result. Every failure
// mode is returned as a structured outcome; nothing is raised into the
// parent agent's control flow.
func (d *Dispatcher) Delegate(ctx context.Context, role, task string) models.Outcome {
	p, err := d.registry.Lookup(role)
	if err != nil {
		return models.Outcome{
			Kind: models.OutcomeNotFound,
			Role: role,
			Step: -1,
			Text: fmt.Sprintf("unknown role %q; available roles: %s", role, strings.Join(d.registry.Names(), ", ")),
		}
	}

	// The registry may have gained this role since construction.
	d.tracker.Register(role, role)

	// The busy check is synchronous: a role with a running process is
	// rejected immediately, never queued. It also keeps the role's
	// continuation channel off two concurrent processes.
	if err := d.tracker.Begin(role); err != nil {
		if errors.Is(err, tracker.ErrBusy) {
			return models.Outcome{
				Kind: models.OutcomeBusy,
				Role: role,
				Step: -1,
				Text: fmt.Sprintf("role %q is busy with an earlier dispatch", role),
			}
		}
		return models.Failure(err.Error())
	}

	d.logger.Log("delegate role=%s task=%q", role, task)

	h := d.runner.Launch(ctx, p, task, launcher.Options{
		Channel: role,
		Timeout: d.Timeout,
	})
	d.setLive(role, h)
	defer d.clearLive(role)

	c := consume(d.tracker, role, h)
	d.tracker.Finish(role, c.Succeeded)

	return outcomeFrom(c, role)
}

// Cancel terminates the role's running dispatch, if any. The completion
// future resolves with a cancelled result rather than staying pending.
func (d *Dispatcher) Cancel(role string) bool {
	d.mu.Lock()
	h, ok := d.live[role]
	d.mu.Unlock()

	if !ok {
		return false
	}
	h.Kill()
	return true
}

func (d *Dispatcher) setLive(role string, h Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.live[role] = h
}

func (d *Dispatcher) clearLive(role string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.live, role)
}
