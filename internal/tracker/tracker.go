// Package tracker maintains the per-role and per-step unit-of-work records
// that strategies mutate and the status projector reads.
package tracker

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ShayCichocki/foreman/pkg/models"
)

// maxActivityLen bounds the stored last-activity line.
const maxActivityLen = 120

var (
	// ErrBusy is returned when a dispatch targets a unit that is already
	// Running. The request is rejected synchronously, never queued.
	ErrBusy = errors.New("unit is busy")
	// ErrUnknownUnit is returned for operations on an unregistered id.
	ErrUnknownUnit = errors.New("unknown unit")
)

// Tracker holds one models.Unit per tracked role or pipeline step.
// All methods are safe for concurrent use.
type Tracker struct {
	mu    sync.RWMutex
	units map[string]*models.Unit
	order []string
	now   func() time.Time
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{
		units: make(map[string]*models.Unit),
		now:   time.Now,
	}
}

// Register adds a unit in Idle state. Registering an existing id is a
// no-op so strategies can re-sync after a profile reload.
func (t *Tracker) Register(id, label string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.units[id]; ok {
		return
	}
	t.units[id] = &models.Unit{ID: id, Label: label, Status: models.UnitIdle}
	t.order = append(t.order, id)
}

// Begin transitions a unit from Idle (or a terminal state) to Running.
// A unit that is already Running yields ErrBusy without any state change.
func (t *Tracker) Begin(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	u, ok := t.units[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUnit, id)
	}
	if u.Status == models.UnitRunning {
		return fmt.Errorf("%w: %s", ErrBusy, id)
	}

	u.Status = models.UnitRunning
	u.StartedAt = t.now()
	u.ElapsedMs = 0
	u.LastActivity = ""
	u.Output = ""
	return nil
}

// Finish transitions a Running unit to Done or Error and freezes its
// elapsed time.
func (t *Tracker) Finish(id string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	u, present := t.units[id]
	if !present || u.Status != models.UnitRunning {
		return
	}

	if ok {
		u.Status = models.UnitDone
	} else {
		u.Status = models.UnitError
	}
	if ms := t.now().Sub(u.StartedAt).Milliseconds(); ms > u.ElapsedMs {
		u.ElapsedMs = ms
	}
}

// Reset returns a unit to Idle, clearing its accumulated state.
func (t *Tracker) Reset(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetLocked(id)
}

// ResetAll returns every unit to Idle, as at session start or an explicit
// pipeline re-run.
func (t *Tracker) ResetAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, id := range t.order {
		t.resetLocked(id)
	}
}

func (t *Tracker) resetLocked(id string) {
	u, ok := t.units[id]
	if !ok {
		return
	}
	u.Status = models.UnitIdle
	u.StartedAt = time.Time{}
	u.ElapsedMs = 0
	u.LastActivity = ""
	u.Output = ""
}

// Note records the unit's most recent one-line activity description.
func (t *Tracker) Note(id, line string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	u, ok := t.units[id]
	if !ok {
		return
	}
	if len(line) > maxActivityLen {
		cut := maxActivityLen - 3
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		line = line[:cut] + "..."
	}
	u.LastActivity = line
}

// AppendText accumulates a streamed text fragment onto the unit's output.
func (t *Tracker) AppendText(id, delta string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	u, ok := t.units[id]
	if !ok {
		return
	}
	u.Output += delta
}

// Tick recomputes ElapsedMs for every Running unit from its stored start
// timestamp. Elapsed time never decreases while a unit is Running.
func (t *Tracker) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for _, u := range t.units {
		if u.Status != models.UnitRunning {
			continue
		}
		if ms := now.Sub(u.StartedAt).Milliseconds(); ms > u.ElapsedMs {
			u.ElapsedMs = ms
		}
	}
}

// Get returns a copy of one unit.
func (t *Tracker) Get(id string) (models.Unit, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	u, ok := t.units[id]
	if !ok {
		return models.Unit{}, false
	}
	return *u, true
}

// Snapshot returns copies of all units in registration order.
func (t *Tracker) Snapshot() []models.Unit {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]models.Unit, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.units[id])
	}
	return out
}

// SetClock overrides the time source. Intended for tests.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}
