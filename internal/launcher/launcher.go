// Package launcher starts child agent processes and exposes each one as a
// handle with a progress-event stream and a completion future.
package launcher

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/foreman/internal/logging"
	"github.com/ShayCichocki/foreman/internal/session"
	"github.com/ShayCichocki/foreman/pkg/models"
)

// DefaultBinary is the child agent binary when none is configured.
const DefaultBinary = "claude"

// ConversationStore resolves continuation channels to persistent
// conversation records. Satisfied by session.Store.
type ConversationStore interface {
	Ensure(channel, role string) (session.Record, bool, error)
}

// Options contains optional parameters for one launch.
type Options struct {
	// Channel names a continuation channel. When a prior record exists for
	// it, the child is started in continue mode so it can recall earlier
	// work with the same role.
	Channel string
	// Timeout is the per-dispatch deadline. Zero means no deadline.
	Timeout time.Duration
}

// Launcher builds and starts child agent processes for role profiles.
type Launcher struct {
	// Binary is the child agent executable. Defaults to DefaultBinary.
	Binary string
	// Model is the model identifier passed to every child, inherited from
	// the parent session or a fixed fallback.
	Model string
	// WorkDir is the working directory for children, if non-empty.
	WorkDir string
	// Store resolves continuation channels. Optional.
	Store ConversationStore
	// Logger receives debug lines. Optional.
	Logger *logging.DebugLogger
}

// Launch starts a child process for the profile and task and returns its
// handle. Launch never fails synchronously: if the process cannot start at
// all, the handle's completion future resolves immediately with a
// diagnostic, so callers always await a uniform result shape.
func (l *Launcher) Launch(ctx context.Context, p models.Profile, task string, opts Options) *Handle {
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	h := newHandle(cancel)
	dispatchID := uuid.New().String()[:8]

	conversation := ""
	resume := false
	if opts.Channel != "" && l.Store != nil {
		rec, existed, err := l.Store.Ensure(opts.Channel, p.Name)
		if err != nil {
			h.failNow(fmt.Sprintf("resolve continuation channel %q: %v", opts.Channel, err))
			return h
		}
		conversation = rec.Path
		resume = existed
	}

	args := buildArgs(l.Model, p, task, conversation, resume)
	binary := l.Binary
	if binary == "" {
		binary = DefaultBinary
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	if l.WorkDir != "" {
		cmd.Dir = l.WorkDir
	}

	l.Logger.Log("[%s] launching role %s: %s %s", dispatchID, p.Name, binary, strings.Join(args, " "))

	if err := h.start(cmd); err != nil {
		l.Logger.Log("[%s] launch failed: %v", dispatchID, err)
		h.failNow(fmt.Sprintf("launch %s: %v", binary, err))
		return h
	}

	go h.run(ctx, dispatchID, l.Logger)
	return h
}

// buildArgs assembles the child invocation: minimal tool list, instruction
// injection, plugin suppression, continuation flags, then the task text as
// the final positional argument.
func buildArgs(model string, p models.Profile, task, conversation string, resume bool) []string {
	args := []string{
		"--output-format", "stream-json",
		"--print",
		"--verbose",
		"--strict-mcp-config",
		"--allowedTools", strings.Join(p.Tools, ","),
	}

	if model != "" {
		args = append(args, "--model", model)
	}

	if p.Instructions != "" {
		if p.ReplaceIdentity {
			args = append(args, "--system-prompt", p.Instructions)
		} else {
			args = append(args, "--append-system-prompt", p.Instructions)
		}
	}

	if conversation != "" {
		args = append(args, "--conversation", conversation)
		if resume {
			args = append(args, "--continue")
		}
	}

	return append(args, task)
}
