package strategy

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/foreman/internal/launcher"
	"github.com/ShayCichocki/foreman/internal/logging"
	"github.com/ShayCichocki/foreman/internal/stream"
	"github.com/ShayCichocki/foreman/internal/tracker"
	"github.com/ShayCichocki/foreman/pkg/models"
)

func twoSteps() []Step {
	return []Step{
		{Role: "scout", Template: "Investigate: " + PreviousOutputPlaceholder},
		{Role: "builder", Template: "Plan: " + PreviousOutputPlaceholder + "\nGoal: " + OriginalTaskPlaceholder},
	}
}

func TestPipelineSuccessChainsOutput(t *testing.T) {
	reg := testRegistry(t)
	tr := tracker.New()
	fr := newFakeRunner(func(p models.Profile, task string) ([]stream.Event, launcher.Completion) {
		time.Sleep(2 * time.Millisecond)
		return succeedWith(p.Name + " output")
	})
	pl := NewPipeline(reg, tr, fr, twoSteps(), logging.NopLogger())

	o := pl.Run(context.Background(), "ship the feature")

	if o.Kind != models.OutcomeSuccess {
		t.Fatalf("Kind = %v, want success (text %q)", o.Kind, o.Text)
	}
	if o.Text != "builder output" {
		t.Errorf("Text = %q, want final step's output", o.Text)
	}
	if o.Elapsed <= 0 {
		t.Error("Elapsed = 0, want the run's wall-clock duration")
	}

	if fr.callCount() != 2 {
		t.Fatalf("launch count = %d, want 2", fr.callCount())
	}

	// First step: previous output resolves to the original task.
	first := fr.call(0)
	if first.task != "Investigate: ship the feature" {
		t.Errorf("step 1 prompt = %q, want original task substituted", first.task)
	}

	// Second step: previous output is step 1's result; original task is
	// still the user's initial task.
	second := fr.call(1)
	if second.task != "Plan: scout output\nGoal: ship the feature" {
		t.Errorf("step 2 prompt = %q", second.task)
	}
}

func TestPipelineStrictSequencing(t *testing.T) {
	reg := testRegistry(t)
	tr := tracker.New()
	fr := newFakeRunner(func(p models.Profile, task string) ([]stream.Event, launcher.Completion) {
		return succeedWith(p.Name)
	})
	pl := NewPipeline(reg, tr, fr, twoSteps(), logging.NopLogger())

	pl.Run(context.Background(), "task")

	// Step 2 must not have been launched until step 1's future resolved.
	if got := fr.call(1).completedBefore; got != 1 {
		t.Errorf("dispatches resolved before step 2 launch = %d, want 1", got)
	}
}

func TestPipelineFailFast(t *testing.T) {
	// Scenario: step 1's child exits non-zero; the run halts, step 2 stays
	// Idle, and the overall result names step 1.
	reg := testRegistry(t)
	tr := tracker.New()
	fr := newFakeRunner(func(p models.Profile, task string) ([]stream.Event, launcher.Completion) {
		return []stream.Event{{Type: stream.EventText, Delta: "partial scout work"}},
			launcher.Completion{Diagnostic: "exit status 1"}
	})
	pl := NewPipeline(reg, tr, fr, twoSteps(), logging.NopLogger())

	o := pl.Run(context.Background(), "task")

	if o.Kind != models.OutcomeFailure {
		t.Fatalf("Kind = %v, want failure", o.Kind)
	}
	if o.Step != 0 {
		t.Errorf("Step = %d, want 0", o.Step)
	}
	if !strings.Contains(o.Text, "step 1 (scout)") {
		t.Errorf("Text = %q, want failing step named", o.Text)
	}
	if !strings.Contains(o.Text, "exit status 1") {
		t.Errorf("Text = %q, want diagnostic included", o.Text)
	}

	if fr.callCount() != 1 {
		t.Errorf("launch count = %d, want 1", fr.callCount())
	}

	u1, _ := tr.Get("step-1-scout")
	if u1.Status != models.UnitError {
		t.Errorf("step 1 Status = %q, want %q", u1.Status, models.UnitError)
	}
	u2, _ := tr.Get("step-2-builder")
	if u2.Status != models.UnitIdle {
		t.Errorf("step 2 Status = %q, want %q", u2.Status, models.UnitIdle)
	}
}

func TestPipelineRerunWhileRunningIsBusy(t *testing.T) {
	// A re-run while a step is still in flight must be rejected; it must
	// not reset the running unit and launch a second process for the role.
	reg := testRegistry(t)
	tr := tracker.New()

	release := make(chan struct{})
	fr := newFakeRunner(func(p models.Profile, task string) ([]stream.Event, launcher.Completion) {
		if p.Name == "scout" {
			<-release
		}
		ev, c := succeedWith(p.Name + " ok")
		return ev, c
	})
	pl := NewPipeline(reg, tr, fr, twoSteps(), logging.NopLogger())

	first := make(chan models.Outcome, 1)
	go func() {
		first <- pl.Run(context.Background(), "task")
	}()
	waitForStatus(t, tr, "step-1-scout", models.UnitRunning)

	o := pl.Run(context.Background(), "task again")
	if o.Kind != models.OutcomeBusy {
		t.Fatalf("Kind = %v, want busy", o.Kind)
	}
	if o.Role != "scout" || o.Step != 0 {
		t.Errorf("busy outcome Role = %q Step = %d, want the running step", o.Role, o.Step)
	}
	if fr.callCount() != 1 {
		t.Errorf("launch count = %d, want 1: second Run must not start a process", fr.callCount())
	}

	if u, _ := tr.Get("step-1-scout"); u.Status != models.UnitRunning {
		t.Errorf("step 1 Status = %q, want %q after rejected re-run", u.Status, models.UnitRunning)
	}

	close(release)
	if fo := <-first; fo.Kind != models.OutcomeSuccess {
		t.Fatalf("first run Kind = %v, want success (text %q)", fo.Kind, fo.Text)
	}
	if fr.callCount() != 2 {
		t.Errorf("launch count = %d, want 2 after first run finished", fr.callCount())
	}
}

func TestPipelineRerunResetsSteps(t *testing.T) {
	reg := testRegistry(t)
	tr := tracker.New()
	failFirst := true
	fr := newFakeRunner(func(p models.Profile, task string) ([]stream.Event, launcher.Completion) {
		if failFirst && p.Name == "scout" {
			failFirst = false
			return nil, launcher.Completion{Diagnostic: "flaky"}
		}
		return succeedWith(p.Name + " ok")
	})
	pl := NewPipeline(reg, tr, fr, twoSteps(), logging.NopLogger())

	if o := pl.Run(context.Background(), "task"); o.Kind != models.OutcomeFailure {
		t.Fatalf("first run Kind = %v, want failure", o.Kind)
	}

	o := pl.Run(context.Background(), "task")
	if o.Kind != models.OutcomeSuccess {
		t.Fatalf("second run Kind = %v, want success (text %q)", o.Kind, o.Text)
	}

	for _, id := range []string{"step-1-scout", "step-2-builder"} {
		u, _ := tr.Get(id)
		if u.Status != models.UnitDone {
			t.Errorf("unit %s Status = %q, want %q", id, u.Status, models.UnitDone)
		}
	}
}

func TestPipelineUnknownRole(t *testing.T) {
	reg := testRegistry(t)
	tr := tracker.New()
	fr := newFakeRunner(func(p models.Profile, task string) ([]stream.Event, launcher.Completion) {
		return succeedWith("unused")
	})
	steps := []Step{{Role: "ghost"}}
	pl := NewPipeline(reg, tr, fr, steps, logging.NopLogger())

	o := pl.Run(context.Background(), "task")
	if o.Kind != models.OutcomeNotFound {
		t.Fatalf("Kind = %v, want not_found", o.Kind)
	}
	if o.Step != 0 {
		t.Errorf("Step = %d, want 0", o.Step)
	}
	if fr.callCount() != 0 {
		t.Errorf("launch count = %d, want 0", fr.callCount())
	}
}

func TestPipelineDefaultTemplate(t *testing.T) {
	reg := testRegistry(t)
	tr := tracker.New()
	fr := newFakeRunner(func(p models.Profile, task string) ([]stream.Event, launcher.Completion) {
		return succeedWith("ok")
	})
	pl := NewPipeline(reg, tr, fr, []Step{{Role: "scout"}}, logging.NopLogger())

	pl.Run(context.Background(), "the task")

	prompt := fr.call(0).task
	if !strings.Contains(prompt, "Original task:\nthe task") {
		t.Errorf("prompt = %q, want default template with original task", prompt)
	}
	if !strings.Contains(prompt, "previous step:\nthe task") {
		t.Errorf("prompt = %q, want previous output = original task for step 1", prompt)
	}
}

func TestPipelineInstructionsAugment(t *testing.T) {
	reg := testRegistry(t)
	pl := NewPipeline(reg, tracker.New(), newFakeRunner(nil), twoSteps(), logging.NopLogger())

	instr := pl.Instructions()
	if !strings.HasPrefix(instr, "\n\n") {
		t.Error("pipeline instructions must concatenate onto the parent's defaults")
	}
	if !strings.Contains(instr, "scout -> builder") {
		t.Errorf("instructions missing step sequence:\n%s", instr)
	}
}

func TestRenderStep(t *testing.T) {
	tests := []struct {
		name     string
		template string
		prev     string
		original string
		want     string
	}{
		{
			name:     "both placeholders",
			template: "p=" + PreviousOutputPlaceholder + " o=" + OriginalTaskPlaceholder,
			prev:     "prior",
			original: "orig",
			want:     "p=prior o=orig",
		},
		{
			name:     "repeated placeholder",
			template: OriginalTaskPlaceholder + "/" + OriginalTaskPlaceholder,
			prev:     "x",
			original: "t",
			want:     "t/t",
		},
		{
			name:     "no placeholders",
			template: "fixed prompt",
			prev:     "x",
			original: "y",
			want:     "fixed prompt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderStep(tt.template, tt.prev, tt.original)
			if got != tt.want {
				t.Errorf("renderStep() = %q, want %q", got, tt.want)
			}
		})
	}
}
