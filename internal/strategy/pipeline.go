package strategy

import (
	"context"
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

// PipelineTool is the single capability the pipeline exposes. Unlike the
// dispatcher, the parent agent keeps its full default capability set; the
// pipeline is an optional escalation path.
const PipelineTool = "run_pipeline"

// Placeholders substituted into each step's template.
const (
	// PreviousOutputPlaceholder resolves to the prior step's result text,
	// or to the original task for the first step.
	PreviousOutputPlaceholder = "{{PREVIOUS_OUTPUT}}"
	// OriginalTaskPlaceholder always resolves to the user's initial task,
	// for every step regardless of position.
	OriginalTaskPlaceholder = "{{ORIGINAL_TASK}}"
)

// DefaultStepTemplate is used for steps that declare no template.
const DefaultStepTemplate = "Original task:\n" + OriginalTaskPlaceholder +
	"\n\nInput from the previous step:\n" + PreviousOutputPlaceholder

// Step declares one position in the fixed role sequence.
type Step struct {
	// Role is the profile the step dispatches to.
	Role string `mapstructure:"role" yaml:"role"`
	// Template is the step's instruction template. Empty selects
	// DefaultStepTemplate.
	Template string `mapstructure:"template" yaml:"template"`
}

// Pipeline executes a fixed ordered role sequence with output chaining.
type Pipeline struct {
	registry *profile.Registry
	tracker  *tracker.Tracker
	runner   Runner
	logger   *logging.DebugLogger
	steps    []Step

	// Timeout is the per-step deadline. Zero means no deadline.
	Timeout time.Duration

	mu     sync.Mutex
	live   Handle
	active bool
}

// NewPipeline creates a pipeline over the declared step sequence and
// registers one unit of work per step.
func NewPipeline(registry *profile.Registry, tr *tracker.Tracker, runner Runner, steps []Step, logger *logging.DebugLogger) *Pipeline {
	p := &Pipeline{
		registry: registry,
		tracker:  tr,
		runner:   runner,
		logger:   logger,
		steps:    steps,
	}
	for i, s := range steps {
		tr.Register(stepID(i, s.Role), stepLabel(i, s.Role))
	}
	return p
}

// Steps returns the declared sequence.
func (p *Pipeline) Steps() []Step {
	return p.steps
}

// Instructions returns guidance to be concatenated with the parent
// agent's default instructions, never replacing them.
func (p *Pipeline) Instructions() string {
	var b strings.Builder
	b.WriteString("\n\nA fixed pipeline is available through run_pipeline(task): ")
	roles := make([]string, len(p.steps))
	for i, s := range p.steps {
		roles[i] = s.Role
	}
	b.WriteString(strings.Join(roles, " -> "))
	b.WriteString(".\nPrefer acting directly for small, local changes. Escalate to the ")
	b.WriteString("pipeline when the task spans several stages of work that benefit ")
	b.WriteString("from fresh context per stage.")
	return b.String()
}

// Run executes the steps strictly in declared order. Any step failure
// halts the run immediately: remaining steps stay Idle and the result
// names the failing step. On full success the final step's output is
// returned.
func (p *Pipeline) Run(ctx context.Context, task string) models.Outcome {
	// One run at a time: a re-run while a step is still going must be
	// rejected, not allowed to reset the running unit and launch a second
	// process for the same role.
	p.mu.Lock()
	if p.active {
		p.mu.Unlock()
		return p.busyOutcome()
	}
	p.active = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.active = false
		p.mu.Unlock()
	}()

	start := time.Now()

	// A fresh invocation resets every step to Idle.
	for i, s := range p.steps {
		p.tracker.Reset(stepID(i, s.Role))
	}

	prev := task
	for i, s := range p.steps {
		id := stepID(i, s.Role)

		prof, err := p.registry.Lookup(s.Role)
		if err != nil {
			return models.Outcome{
				Kind: models.OutcomeNotFound,
				Role: s.Role,
				Step: i,
				Text: fmt.Sprintf("step %d (%s): unknown role", i+1, s.Role),
			}
		}

		if err := p.tracker.Begin(id); err != nil {
			return models.Outcome{
				Kind: models.OutcomeBusy,
				Role: s.Role,
				Step: i,
				Text: fmt.Sprintf("step %d (%s) already has a running process", i+1, s.Role),
			}
		}

		prompt := renderStep(s.Template, prev, task)
		p.logger.Log("pipeline step %d/%d role=%s", i+1, len(p.steps), s.Role)

		h := p.runner.Launch(ctx, prof, prompt, launcher.Options{Timeout: p.Timeout})
		p.setLive(h)

		c := consume(p.tracker, id, h)
		p.clearLive()
		p.tracker.Finish(id, c.Succeeded)

		if !c.Succeeded {
			o := outcomeFrom(c, s.Role)
			o.Step = i
			o.Text = fmt.Sprintf("step %d (%s) failed: %s", i+1, s.Role, c.Diagnostic)
			return o
		}
		prev = c.OutputText
	}

	return models.Success(prev, time.Since(start))
}

// busyOutcome names the step the in-flight run is currently on.
func (p *Pipeline) busyOutcome() models.Outcome {
	for i, s := range p.steps {
		if u, ok := p.tracker.Get(stepID(i, s.Role)); ok && u.Status == models.UnitRunning {
			return models.Outcome{
				Kind: models.OutcomeBusy,
				Role: s.Role,
				Step: i,
				Text: fmt.Sprintf("a pipeline run is already in progress at step %d (%s)", i+1, s.Role),
			}
		}
	}
	return models.Outcome{
		Kind: models.OutcomeBusy,
		Step: -1,
		Text: "a pipeline run is already in progress",
	}
}

// Cancel terminates the currently running step, if any.
func (p *Pipeline) Cancel() bool {
	p.mu.Lock()
	h := p.live
	p.mu.Unlock()

	if h == nil {
		return false
	}
	h.Kill()
	return true
}

func (p *Pipeline) setLive(h Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.live = h
}

func (p *Pipeline) clearLive() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.live = nil
}

// renderStep substitutes the placeholders into a step template. For the
// first step the previous output is the original task itself.
func renderStep(template, prev, original string) string {
	if template == "" {
		template = DefaultStepTemplate
	}
	out := strings.ReplaceAll(template, PreviousOutputPlaceholder, prev)
	return strings.ReplaceAll(out, OriginalTaskPlaceholder, original)
}

func stepID(i int, role string) string {
	return fmt.Sprintf("step-%d-%s", i+1, role)
}

func stepLabel(i int, role string) string {
	return fmt.Sprintf("%d. %s", i+1, role)
}
