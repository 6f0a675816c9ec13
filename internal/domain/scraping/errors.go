package scraping

import (
	"fmt"
	"strings"
)

// ErrorKind identifies specific types of errors that can occur while driving a
// scraping session. It enables error handling code to make decisions based on
// the type of error.
type ErrorKind int

const (
	// ErrKindInvalidStateTransition indicates an attempt to transition to an
	// invalid session status.
	ErrKindInvalidStateTransition ErrorKind = iota

	// ErrKindInvalidOutcome indicates an unrecognized record outcome tag.
	ErrKindInvalidOutcome

	// ErrKindCounterInvariant indicates the session counters no longer satisfy
	// processed == created + existing + errors.
	ErrKindCounterInvariant

	// ErrKindSessionNotRunning indicates a mutation attempted outside the
	// running status.
	ErrKindSessionNotRunning
)

// SessionError represents domain-specific errors raised by the session state
// machine. It provides context about the type of error to enable appropriate
// handling.
type SessionError struct {
	msg  string
	kind ErrorKind
}

// Error returns the error message. This implements the error interface.
func (e *SessionError) Error() string { return e.msg }

// Is enables error matching by comparing error kinds.
func (e *SessionError) Is(target error) bool {
	t, ok := target.(*SessionError)
	if !ok {
		return false
	}
	return e.kind == t.kind
}

func newInvalidStateTransitionError(from, to Status) error {
	return &SessionError{
		msg:  fmt.Sprintf("cannot transition from %s to %s", from, to),
		kind: ErrKindInvalidStateTransition,
	}
}

func newInvalidOutcomeError(outcome Outcome) error {
	return &SessionError{
		msg:  fmt.Sprintf("invalid record outcome %q", outcome),
		kind: ErrKindInvalidOutcome,
	}
}

func newCounterInvariantError(c *Counters) error {
	return &SessionError{
		msg: fmt.Sprintf("counter invariant violated: processed=%d created=%d existing=%d errors=%d",
			c.itemsProcessed, c.itemsCreated, c.itemsExisting, c.errorsCount),
		kind: ErrKindCounterInvariant,
	}
}

func newSessionNotRunningError(status Status) error {
	return &SessionError{
		msg:  fmt.Sprintf("session is %s, mutations require a running session", status),
		kind: ErrKindSessionNotRunning,
	}
}

// FieldError names a single offending run parameter.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports bad or missing run parameters. It is returned to the
// caller before any session is created.
type ValidationError struct {
	Fields []FieldError
}

// Error returns a message naming every offending field.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "invalid run parameters: " + strings.Join(parts, "; ")
}

// NewValidationError creates a ValidationError for the given field problems.
func NewValidationError(fields ...FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

// ConfigError reports that scraping is disabled for an agency and enforcement
// type. Like ValidationError it is returned before any session is created.
type ConfigError struct {
	Agency          string
	EnforcementType string
}

// Error returns the config error message.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("scraping disabled for agency %s (%s)", e.Agency, e.EnforcementType)
}

// NetworkError wraps an opaque fetch failure with the agency and fetch stage
// that produced it. A single network error counts as one record error; only
// the cumulative error threshold terminates a session.
type NetworkError struct {
	Agency string
	Stage  string // "list" or "detail"
	Err    error
}

// Error returns the network error message.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s fetch failed: %v", e.Agency, e.Stage, e.Err)
}

// Unwrap exposes the underlying transport error.
func (e *NetworkError) Unwrap() error { return e.Err }

// NewNetworkError wraps a transport failure for the given agency and stage.
func NewNetworkError(agency, stage string, err error) *NetworkError {
	return &NetworkError{Agency: agency, Stage: stage, Err: err}
}
