package models

import "time"

// UnitStatus represents the current state of a unit of work.
type UnitStatus string

const (
	// UnitIdle indicates the unit has not started in the current run.
	UnitIdle UnitStatus = "idle"
	// UnitRunning indicates a child process is actively working.
	UnitRunning UnitStatus = "running"
	// UnitDone indicates the last dispatch completed successfully.
	UnitDone UnitStatus = "done"
	// UnitError indicates the last dispatch failed.
	UnitError UnitStatus = "error"
)

// Valid returns true if the status is a known value.
func (s UnitStatus) Valid() bool {
	switch s {
	case UnitIdle, UnitRunning, UnitDone, UnitError:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status marks a finished dispatch.
func (s UnitStatus) Terminal() bool {
	return s == UnitDone || s == UnitError
}

// Unit is the tracked status record for one role (dispatcher mode) or one
// pipeline step (pipeline mode). It is created Idle at registration and
// mutated in place by the tracker as decoded progress events arrive.
type Unit struct {
	// ID identifies the unit: the role name, or a step id in pipeline mode.
	ID string `json:"id"`
	// Label is the display name for status rows.
	Label string `json:"label"`
	// Status is the unit's position in the Idle/Running/Done/Error machine.
	Status UnitStatus `json:"status"`
	// StartedAt is when the current or last dispatch began.
	StartedAt time.Time `json:"started_at"`
	// ElapsedMs is the elapsed time recomputed from StartedAt by the
	// tracker's tick; it never decreases while the unit is Running.
	ElapsedMs int64 `json:"elapsed_ms"`
	// LastActivity is the most recent one-line activity description.
	LastActivity string `json:"last_activity"`
	// Output accumulates the text fragments streamed by the child.
	Output string `json:"output"`
}
