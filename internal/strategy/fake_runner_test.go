package strategy

import (
	"context"
	"sync"

	"github.com/ShayCichocki/foreman/internal/launcher"
	"github.com/ShayCichocki/foreman/internal/stream"
	"github.com/ShayCichocki/foreman/pkg/models"
)

// fakeHandle plays back a scripted event sequence and completion.
type fakeHandle struct {
	events chan stream.Event
	done   chan launcher.Completion

	mu     sync.Mutex
	killed bool
}

func (h *fakeHandle) Events() <-chan stream.Event        { return h.events }
func (h *fakeHandle) Done() <-chan launcher.Completion   { return h.done }
func (h *fakeHandle) Kill() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.killed = true
	return nil
}

// launchCall records one Launch invocation.
type launchCall struct {
	role string
	task string
	opts launcher.Options
	// completedBefore is how many earlier fake dispatches had already
	// resolved when this launch happened.
	completedBefore int
}

// fakeRunner scripts child behavior per launch. The respond hook runs on
// the playback goroutine, so it may block to hold a dispatch in flight.
type fakeRunner struct {
	mu        sync.Mutex
	calls     []launchCall
	completed int

	respond func(p models.Profile, task string) ([]stream.Event, launcher.Completion)
}

func newFakeRunner(respond func(p models.Profile, task string) ([]stream.Event, launcher.Completion)) *fakeRunner {
	return &fakeRunner{respond: respond}
}

func (r *fakeRunner) Launch(ctx context.Context, p models.Profile, task string, opts launcher.Options) Handle {
	r.mu.Lock()
	r.calls = append(r.calls, launchCall{
		role:            p.Name,
		task:            task,
		opts:            opts,
		completedBefore: r.completed,
	})
	r.mu.Unlock()

	h := &fakeHandle{
		events: make(chan stream.Event, 16),
		done:   make(chan launcher.Completion, 1),
	}

	go func() {
		events, c := r.respond(p, task)
		for _, ev := range events {
			h.events <- ev
		}
		close(h.events)

		r.mu.Lock()
		r.completed++
		r.mu.Unlock()
		h.done <- c
	}()

	return h
}

func (r *fakeRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *fakeRunner) call(i int) launchCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[i]
}

// succeedWith scripts a run that streams one text fragment and succeeds.
func succeedWith(text string) ([]stream.Event, launcher.Completion) {
	return []stream.Event{
			{Type: stream.EventText, Delta: text},
			{Type: stream.EventDone, ExitStatus: 0},
		}, launcher.Completion{
			OutputText: text,
			Succeeded:  true,
		}
}
