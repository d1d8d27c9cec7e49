package models

import "time"

// OutcomeKind represents the final classification of a dispatch or
// pipeline run. It unifies the success/failure/busy states that would
// otherwise be scattered across ad hoc return values.
type OutcomeKind int

const (
	// OutcomeSuccess indicates the dispatch completed and produced output.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeBusy indicates the target role already had a running process.
	OutcomeBusy
	// OutcomeNotFound indicates the requested role is not registered.
	OutcomeNotFound
	// OutcomeFailure indicates the child process ran but exited with failure.
	OutcomeFailure
	// OutcomeCancelled indicates the dispatch was cancelled by the operator.
	OutcomeCancelled
	// OutcomeTimedOut indicates the dispatch exceeded its deadline.
	OutcomeTimedOut
)

// String returns a human-readable kind name.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeBusy:
		return "busy"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeFailure:
		return "failure"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Outcome is the uniform result shape every strategy capability returns.
// Failures are carried here as data, never raised into the parent agent's
// control flow, so the parent always receives a result it can reason about.
type Outcome struct {
	// Kind classifies the result.
	Kind OutcomeKind
	// Text is the collected output on success, or a diagnostic otherwise.
	Text string
	// Role is the role name the outcome concerns, if applicable.
	Role string
	// Step is the zero-based failing step index for pipeline failures,
	// -1 otherwise.
	Step int
	// Elapsed is the wall-clock duration of the dispatch.
	Elapsed time.Duration
}

// OK returns true for successful outcomes.
func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

// Success builds a successful outcome carrying the collected output text.
func Success(text string, elapsed time.Duration) Outcome {
	return Outcome{Kind: OutcomeSuccess, Text: text, Step: -1, Elapsed: elapsed}
}

// Failure builds a failure outcome carrying a diagnostic.
func Failure(text string) Outcome {
	return Outcome{Kind: OutcomeFailure, Text: text, Step: -1}
}
