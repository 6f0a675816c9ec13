package scraping

// Status represents the lifecycle states of a scraping session. It is
// implemented as a value object using a string type to ensure type safety.
// The status transitions form a state machine that enforces valid lifecycle
// progression.
type Status string

const (
	// StatusPending indicates the session has been created but the worker has
	// not started. Sessions only hold this status during creation; the
	// coordinator advances them to running immediately.
	StatusPending Status = "PENDING"

	// StatusRunning indicates the execution loop is actively collecting and
	// ingesting records.
	StatusRunning Status = "RUNNING"

	// StatusCompleted indicates all pages or batches were exhausted normally,
	// or the all-exist heuristic fired. Terminal.
	StatusCompleted Status = "COMPLETED"

	// StatusFailed indicates the error count crossed the configured threshold.
	// Terminal.
	StatusFailed Status = "FAILED"

	// StatusStopped indicates the caller cancelled the run, or the loop exited
	// early without an error-threshold breach. Terminal.
	StatusStopped Status = "STOPPED"
)

// validTransitions defines the allowed status transitions for sessions.
// Empty slices indicate terminal states with no allowed transitions; terminal
// states are sticky and finalization never overwrites them.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusRunning, StatusStopped},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusStopped},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusStopped:   {},
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s Status) IsTerminal() bool { return len(validTransitions[s]) == 0 }
