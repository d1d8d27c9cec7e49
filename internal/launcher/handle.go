package launcher

import (
	"context"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/ShayCichocki/foreman/internal/logging"
	"github.com/ShayCichocki/foreman/internal/stream"
)

// stderrTailLen bounds the stderr excerpt carried in diagnostics.
const stderrTailLen = 500

// Completion is the result a handle's future resolves to. It is resolved
// exactly once regardless of stream error, process error, or normal exit.
type Completion struct {
	// OutputText is the concatenation of the child's text fragments.
	OutputText string
	// Succeeded is true when the child reported and exited success.
	Succeeded bool
	// Elapsed is the wall-clock run duration.
	Elapsed time.Duration
	// Cancelled is true when the dispatch was killed by the operator.
	Cancelled bool
	// TimedOut is true when the per-dispatch deadline expired.
	TimedOut bool
	// Diagnostic describes the failure, including a stderr excerpt.
	Diagnostic string
}

// Handle wraps one live child process: its progress-event stream, start
// timestamp, and completion future. It is owned by the launcher for its
// lifetime and is done once its result has been delivered.
//
// Callers must drain Events until it closes; the completion future
// resolves only after the event stream has been finalized.
type Handle struct {
	events     chan stream.Event
	done       chan Completion
	startedAt  time.Time
	cancel     context.CancelFunc
	resolve    sync.Once
	stderrDone chan struct{}

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	stderr    io.ReadCloser
	stderrBuf []byte
	output    []byte
	exit      int
	sawDone   bool
	killed    bool
}

func newHandle(cancel context.CancelFunc) *Handle {
	return &Handle{
		events:     make(chan stream.Event, 256),
		done:       make(chan Completion, 1),
		startedAt:  time.Now(),
		cancel:     cancel,
		stderrDone: make(chan struct{}),
	}
}

// Events returns the stream of decoded progress events, in exactly the
// order their source lines appeared. Closed when the stream ends.
func (h *Handle) Events() <-chan stream.Event {
	return h.events
}

// Done returns the completion future.
func (h *Handle) Done() <-chan Completion {
	return h.done
}

// StartedAt is when the launch was initiated.
func (h *Handle) StartedAt() time.Time {
	return h.startedAt
}

// PID returns the child's process id, or 0 if it never started.
func (h *Handle) PID() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cmd != nil && h.cmd.Process != nil {
		return h.cmd.Process.Pid
	}
	return 0
}

// Kill terminates the child's whole process tree. The stdout pipe closes,
// the decoder flushes and finalizes, and the completion future resolves
// with a cancelled result, so the unit of work never remains running
// forever.
func (h *Handle) Kill() error {
	h.mu.Lock()
	h.killed = true
	h.mu.Unlock()

	h.cancel()
	return h.killNow()
}

// killNow kills the process group and closes both pipe read ends. The
// child's subprocesses inherit the pipe write ends, so killing only the
// direct child would leave the decode loop blocked on a half-open pipe;
// the explicit close unblocks it no matter what survives.
func (h *Handle) killNow() error {
	h.mu.Lock()
	cmd := h.cmd
	stdout := h.stdout
	stderr := h.stderr
	h.mu.Unlock()

	var err error
	if cmd != nil {
		err = killGroup(cmd)
	}
	if stdout != nil {
		stdout.Close()
	}
	if stderr != nil {
		stderr.Close()
	}
	return err
}

// start wires the pipes and spawns the process in its own process group.
func (h *Handle) start(cmd *exec.Cmd) error {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	setProcGroup(cmd)
	cmd.Cancel = h.killNow

	h.mu.Lock()
	h.cmd = cmd
	h.stdout = stdout
	h.stderr = stderr
	h.mu.Unlock()

	if err := cmd.Start(); err != nil {
		return err
	}

	// Stderr is diagnostic-only and is never parsed as structured data.
	go h.drainStderr(stderr)
	return nil
}

// run consumes the child's stdout to completion and resolves the future.
func (h *Handle) run(ctx context.Context, dispatchID string, logger *logging.DebugLogger) {
	decodeErr := stream.Decode(h.stdout, h.emit)
	close(h.events)

	// The stderr drain must see EOF before Wait closes the pipe out from
	// under it, or a late excerpt is lost.
	<-h.stderrDone

	waitErr := h.cmd.Wait()
	elapsed := time.Since(h.startedAt)

	h.mu.Lock()
	output := string(h.output)
	sawDone := h.sawDone
	exit := h.exit
	killed := h.killed
	stderrTail := tail(h.stderrBuf, stderrTailLen)
	h.mu.Unlock()

	c := Completion{
		OutputText: output,
		Elapsed:    elapsed,
	}

	switch {
	case killed || (ctx.Err() == context.Canceled && waitErr != nil):
		c.Cancelled = true
		c.Diagnostic = "dispatch cancelled"
	case ctx.Err() == context.DeadlineExceeded:
		c.TimedOut = true
		c.Diagnostic = "dispatch deadline exceeded"
	case waitErr != nil:
		c.Diagnostic = describeFailure("process exited with error: "+waitErr.Error(), stderrTail)
	case decodeErr != nil:
		c.Diagnostic = describeFailure("read output stream: "+decodeErr.Error(), stderrTail)
	case sawDone && exit != 0:
		c.Diagnostic = describeFailure("child reported exit status "+strconv.Itoa(exit), stderrTail)
	default:
		c.Succeeded = true
	}

	logger.Log("[%s] completed: succeeded=%v elapsed=%s %s", dispatchID, c.Succeeded, c.Elapsed.Round(time.Millisecond), c.Diagnostic)
	h.deliver(c)
}

// emit forwards one decoded event to the consumer and folds text and
// completion markers into the handle's collected state.
func (h *Handle) emit(ev stream.Event) {
	h.mu.Lock()
	switch ev.Type {
	case stream.EventText:
		h.output = append(h.output, ev.Delta...)
	case stream.EventDone:
		h.sawDone = true
		h.exit = ev.ExitStatus
	}
	h.mu.Unlock()

	h.events <- ev
}

func (h *Handle) drainStderr(r io.Reader) {
	defer close(h.stderrDone)

	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.mu.Lock()
			h.stderrBuf = append(h.stderrBuf, buf[:n]...)
			h.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// failNow resolves the future immediately for a process that never ran.
func (h *Handle) failNow(diagnostic string) {
	close(h.events)
	h.deliver(Completion{Diagnostic: diagnostic})
}

// deliver resolves the completion future exactly once.
func (h *Handle) deliver(c Completion) {
	h.resolve.Do(func() {
		h.done <- c
		h.cancel()
	})
}

func describeFailure(msg, stderrTail string) string {
	if stderrTail != "" {
		return msg + "; stderr: " + stderrTail
	}
	return msg
}

func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return "..." + string(b[len(b)-n:])
}

