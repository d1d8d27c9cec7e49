package tracker

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/ShayCichocki/foreman/pkg/models"
)

func TestRegisterStartsIdle(t *testing.T) {
	tr := New()
	tr.Register("scout", "scout")

	u, ok := tr.Get("scout")
	if !ok {
		t.Fatal("unit not found after Register")
	}
	if u.Status != models.UnitIdle {
		t.Errorf("Status = %q, want %q", u.Status, models.UnitIdle)
	}
}

func TestRegisterIdempotent(t *testing.T) {
	tr := New()
	tr.Register("scout", "scout")
	if err := tr.Begin("scout"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	// Re-registering (e.g. after a profile reload) must not clobber state.
	tr.Register("scout", "scout")

	u, _ := tr.Get("scout")
	if u.Status != models.UnitRunning {
		t.Errorf("Status = %q, want %q", u.Status, models.UnitRunning)
	}
}

func TestBeginUnknownUnit(t *testing.T) {
	tr := New()
	err := tr.Begin("ghost")
	if !errors.Is(err, ErrUnknownUnit) {
		t.Errorf("Begin() error = %v, want ErrUnknownUnit", err)
	}
}

func TestBeginWhileRunningIsBusy(t *testing.T) {
	tr := New()
	tr.Register("scout", "scout")

	if err := tr.Begin("scout"); err != nil {
		t.Fatalf("first Begin() error = %v", err)
	}
	err := tr.Begin("scout")
	if !errors.Is(err, ErrBusy) {
		t.Errorf("second Begin() error = %v, want ErrBusy", err)
	}

	u, _ := tr.Get("scout")
	if u.Status != models.UnitRunning {
		t.Errorf("Status after rejected Begin = %q, want %q", u.Status, models.UnitRunning)
	}
}

func TestFinishTransitions(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
		want models.UnitStatus
	}{
		{"success", true, models.UnitDone},
		{"failure", false, models.UnitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New()
			tr.Register("builder", "builder")
			if err := tr.Begin("builder"); err != nil {
				t.Fatalf("Begin() error = %v", err)
			}
			tr.Finish("builder", tt.ok)

			u, _ := tr.Get("builder")
			if u.Status != tt.want {
				t.Errorf("Status = %q, want %q", u.Status, tt.want)
			}
		})
	}
}

func TestFinishWithoutBeginIsNoop(t *testing.T) {
	tr := New()
	tr.Register("scout", "scout")
	tr.Finish("scout", true)

	u, _ := tr.Get("scout")
	if u.Status != models.UnitIdle {
		t.Errorf("Status = %q, want %q", u.Status, models.UnitIdle)
	}
}

func TestBeginAfterTerminalState(t *testing.T) {
	tr := New()
	tr.Register("scout", "scout")
	if err := tr.Begin("scout"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	tr.AppendText("scout", "old output")
	tr.Finish("scout", false)

	if err := tr.Begin("scout"); err != nil {
		t.Fatalf("Begin() after Error state error = %v", err)
	}
	u, _ := tr.Get("scout")
	if u.Status != models.UnitRunning {
		t.Errorf("Status = %q, want %q", u.Status, models.UnitRunning)
	}
	if u.Output != "" {
		t.Errorf("Output = %q, want empty after re-dispatch", u.Output)
	}
}

func TestResetAll(t *testing.T) {
	tr := New()
	tr.Register("a", "a")
	tr.Register("b", "b")
	if err := tr.Begin("a"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	tr.Finish("a", true)

	tr.ResetAll()

	for _, u := range tr.Snapshot() {
		if u.Status != models.UnitIdle {
			t.Errorf("unit %s Status = %q, want %q", u.ID, u.Status, models.UnitIdle)
		}
		if u.Output != "" || u.LastActivity != "" || u.ElapsedMs != 0 {
			t.Errorf("unit %s not fully cleared: %+v", u.ID, u)
		}
	}
}

func TestTickMonotonicElapsed(t *testing.T) {
	tr := New()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	current := base
	tr.SetClock(func() time.Time { return current })

	tr.Register("scout", "scout")
	if err := tr.Begin("scout"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	current = base.Add(2 * time.Second)
	tr.Tick()
	u, _ := tr.Get("scout")
	if u.ElapsedMs != 2000 {
		t.Errorf("ElapsedMs = %d, want 2000", u.ElapsedMs)
	}

	// A clock stepping backwards must never decrease elapsed time.
	current = base.Add(1 * time.Second)
	tr.Tick()
	u, _ = tr.Get("scout")
	if u.ElapsedMs != 2000 {
		t.Errorf("ElapsedMs after backwards clock = %d, want 2000", u.ElapsedMs)
	}

	current = base.Add(5 * time.Second)
	tr.Finish("scout", true)
	u, _ = tr.Get("scout")
	if u.ElapsedMs != 5000 {
		t.Errorf("ElapsedMs after Finish = %d, want 5000", u.ElapsedMs)
	}
}

func TestNoteTruncatesLongLines(t *testing.T) {
	tr := New()
	tr.Register("scout", "scout")

	long := ""
	for i := 0; i < 40; i++ {
		long += "abcdefgh"
	}
	tr.Note("scout", long)

	u, _ := tr.Get("scout")
	if len(u.LastActivity) != maxActivityLen {
		t.Errorf("len(LastActivity) = %d, want %d", len(u.LastActivity), maxActivityLen)
	}
	if u.LastActivity[len(u.LastActivity)-3:] != "..." {
		t.Errorf("LastActivity does not end with ellipsis: %q", u.LastActivity)
	}
}

func TestNoteTruncatesOnRuneBoundary(t *testing.T) {
	tr := New()
	tr.Register("scout", "scout")

	// Multibyte runes straddling every possible cut position.
	long := strings.Repeat("日本語", 60)
	tr.Note("scout", long)

	u, _ := tr.Get("scout")
	if !utf8.ValidString(u.LastActivity) {
		t.Errorf("LastActivity is not valid UTF-8: %q", u.LastActivity)
	}
	if len(u.LastActivity) > maxActivityLen {
		t.Errorf("len(LastActivity) = %d, want <= %d", len(u.LastActivity), maxActivityLen)
	}
	if !strings.HasSuffix(u.LastActivity, "...") {
		t.Errorf("LastActivity does not end with ellipsis: %q", u.LastActivity)
	}
}

func TestSnapshotPreservesRegistrationOrder(t *testing.T) {
	tr := New()
	for _, id := range []string{"z", "a", "m"} {
		tr.Register(id, id)
	}

	snap := tr.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("len(Snapshot()) = %d, want 3", len(snap))
	}
	for i, want := range []string{"z", "a", "m"} {
		if snap[i].ID != want {
			t.Errorf("Snapshot()[%d].ID = %q, want %q", i, snap[i].ID, want)
		}
	}
}

func TestSnapshotReturnsCopies(t *testing.T) {
	tr := New()
	tr.Register("scout", "scout")

	snap := tr.Snapshot()
	snap[0].Status = models.UnitError

	u, _ := tr.Get("scout")
	if u.Status != models.UnitIdle {
		t.Errorf("mutating snapshot leaked into tracker: Status = %q", u.Status)
	}
}
