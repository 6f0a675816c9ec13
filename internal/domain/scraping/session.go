// Package scraping contains the session aggregate and supporting value objects
// for orchestrating enforcement-record scraping runs.
package scraping

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
)

// Session is the aggregate root for one tracked scraping run. It owns the
// locator, the progress counters and the status state machine, and enforces
// the counter invariant on every mutation.
//
// A session has exactly one logical writer: the worker driving its execution
// loop. Increments and boundary advances are therefore strictly ordered and
// need no internal locking; the monotonicity of published counters depends on
// this single-writer assumption.
type Session struct {
	// Identity.
	id              uuid.UUID
	agency          enforcement.Agency
	enforcementType enforcement.Type
	actor           string

	// Collection position.
	locator Locator

	// Current state.
	status        Status
	failureReason string
	counters      *Counters
	timeline      *Timeline

	timeProvider TimeProvider
}

// SessionOption configures a Session during construction.
type SessionOption func(*Session)

// WithSessionTimeProvider sets a custom time provider, used by tests for
// deterministic timelines.
func WithSessionTimeProvider(tp TimeProvider) SessionOption {
	return func(s *Session) {
		s.timeProvider = tp
		s.timeline = NewTimeline(tp)
	}
}

// NewSession creates a new pending Session for the given agency and
// enforcement type. The domain owns identity generation to keep the aggregate
// consistent.
func NewSession(
	agency enforcement.Agency,
	enforcementType enforcement.Type,
	locator Locator,
	actor string,
	opts ...SessionOption,
) *Session {
	s := &Session{
		id:              uuid.New(),
		agency:          agency,
		enforcementType: enforcementType,
		actor:           actor,
		locator:         locator,
		status:          StatusPending,
		counters:        NewCounters(),
		timeProvider:    realTimeProvider{},
	}
	s.timeline = NewTimeline(s.timeProvider)

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReconstructSession creates a Session from persisted data without generating
// new identities or enforcing creation-time invariants. This should only be
// used by repositories when reconstructing from storage.
func ReconstructSession(
	id uuid.UUID,
	agency enforcement.Agency,
	enforcementType enforcement.Type,
	actor string,
	locator Locator,
	status Status,
	failureReason string,
	counters *Counters,
	timeline *Timeline,
) *Session {
	return &Session{
		id:              id,
		agency:          agency,
		enforcementType: enforcementType,
		actor:           actor,
		locator:         locator,
		status:          status,
		failureReason:   failureReason,
		counters:        counters,
		timeline:        timeline,
		timeProvider:    realTimeProvider{},
	}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Agency returns the regulator this session scrapes.
func (s *Session) Agency() enforcement.Agency { return s.agency }

// EnforcementType returns the record kind this session collects.
func (s *Session) EnforcementType() enforcement.Type { return s.enforcementType }

// Actor returns the user context that started this session.
func (s *Session) Actor() string { return s.actor }

// Locator returns the session's collection position.
func (s *Session) Locator() Locator { return s.locator }

// Status returns the session's lifecycle status.
func (s *Session) Status() Status { return s.status }

// FailureReason returns why the session failed, if it did.
func (s *Session) FailureReason() string { return s.failureReason }

// Counters returns the session's progress counters.
func (s *Session) Counters() *Counters { return s.counters }

// Timeline returns the session's timestamps.
func (s *Session) Timeline() *Timeline { return s.timeline }

// CanTransitionTo validates if a status transition is allowed.
func (s *Session) CanTransitionTo(target Status) bool {
	for _, allowed := range validTransitions[s.status] {
		if target == allowed {
			return true
		}
	}
	return false
}

// MarkRunning transitions the session from pending to running.
func (s *Session) MarkRunning() error {
	if !s.CanTransitionTo(StatusRunning) {
		return newInvalidStateTransitionError(s.status, StatusRunning)
	}
	s.setStatus(StatusRunning)
	return nil
}

// MarkCompleted transitions a running session to completed. Terminal states
// are sticky: completing an already failed or stopped session is rejected.
func (s *Session) MarkCompleted() error {
	if !s.CanTransitionTo(StatusCompleted) {
		return newInvalidStateTransitionError(s.status, StatusCompleted)
	}
	s.setStatus(StatusCompleted)
	s.timeline.MarkCompleted()
	return nil
}

// MarkFailed transitions a running session to failed with a reason.
func (s *Session) MarkFailed(reason string) error {
	if !s.CanTransitionTo(StatusFailed) {
		return newInvalidStateTransitionError(s.status, StatusFailed)
	}
	s.failureReason = reason
	s.setStatus(StatusFailed)
	s.timeline.MarkCompleted()
	return nil
}

// MarkStopped transitions the session to stopped after an explicit
// cancellation or an early loop exit.
func (s *Session) MarkStopped() error {
	if !s.CanTransitionTo(StatusStopped) {
		return newInvalidStateTransitionError(s.status, StatusStopped)
	}
	s.setStatus(StatusStopped)
	s.timeline.MarkCompleted()
	return nil
}

// RecordItem applies one record outcome to the counters. Only running sessions
// accept increments; the counter invariant is verified after the mutation.
func (s *Session) RecordItem(outcome Outcome) error {
	if s.status != StatusRunning {
		return newSessionNotRunningError(s.status)
	}

	if err := s.counters.RecordOutcome(outcome); err != nil {
		return err
	}
	if !s.counters.Consistent() {
		return newCounterInvariantError(s.counters)
	}

	s.timeline.UpdateLastUpdate()
	return nil
}

// CompleteBoundary marks one page or batch boundary as done: it bumps the
// boundary counter and moves a page cursor to the next page. Date-range
// locators have a single implicit batch and no cursor to move.
func (s *Session) CompleteBoundary() error {
	if s.status != StatusRunning {
		return newSessionNotRunningError(s.status)
	}

	s.counters.IncrementPagesProcessed()
	if cursor, ok := s.locator.(*PageCursor); ok {
		cursor.Advance()
	}

	s.timeline.UpdateLastUpdate()
	return nil
}

func (s *Session) setStatus(status Status) {
	s.status = status
	s.timeline.UpdateLastUpdate()
}

// Snapshot is an immutable copy of the session's externally visible state,
// embedded in published events and returned from status queries.
type Snapshot struct {
	SessionID       uuid.UUID          `json:"session_id"`
	Agency          enforcement.Agency `json:"agency"`
	EnforcementType enforcement.Type   `json:"enforcement_type"`
	Actor           string             `json:"actor,omitempty"`
	Status          Status             `json:"status"`
	FailureReason   string             `json:"failure_reason,omitempty"`
	ItemsFound      int                `json:"items_found"`
	ItemsProcessed  int                `json:"items_processed"`
	ItemsCreated    int                `json:"items_created"`
	ItemsExisting   int                `json:"items_existing"`
	ErrorsCount     int                `json:"errors_count"`
	PagesProcessed  int                `json:"batches_or_pages_processed"`
	StartedAt       time.Time          `json:"started_at"`
	LastUpdate      time.Time          `json:"last_update"`
	Duration        time.Duration      `json:"duration"`
}

// Snapshot captures the session's current state for observers.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		SessionID:       s.id,
		Agency:          s.agency,
		EnforcementType: s.enforcementType,
		Actor:           s.actor,
		Status:          s.status,
		FailureReason:   s.failureReason,
		ItemsFound:      s.counters.ItemsFound(),
		ItemsProcessed:  s.counters.ItemsProcessed(),
		ItemsCreated:    s.counters.ItemsCreated(),
		ItemsExisting:   s.counters.ItemsExisting(),
		ErrorsCount:     s.counters.ErrorsCount(),
		PagesProcessed:  s.counters.PagesProcessed(),
		StartedAt:       s.timeline.StartedAt(),
		LastUpdate:      s.timeline.LastUpdate(),
		Duration:        s.timeline.Duration(),
	}
}

// MarshalJSON serializes the Session into a JSON byte array.
func (s *Session) MarshalJSON() ([]byte, error) {
	locator, err := MarshalLocator(s.locator)
	if err != nil {
		return nil, err
	}

	return json.Marshal(&struct {
		SessionID       uuid.UUID          `json:"session_id"`
		Agency          enforcement.Agency `json:"agency"`
		EnforcementType enforcement.Type   `json:"enforcement_type"`
		Actor           string             `json:"actor,omitempty"`
		Locator         json.RawMessage    `json:"locator"`
		Status          Status             `json:"status"`
		FailureReason   string             `json:"failure_reason,omitempty"`
		Counters        *Counters          `json:"counters"`
		Timeline        *Timeline          `json:"timeline"`
	}{
		SessionID:       s.id,
		Agency:          s.agency,
		EnforcementType: s.enforcementType,
		Actor:           s.actor,
		Locator:         locator,
		Status:          s.status,
		FailureReason:   s.failureReason,
		Counters:        s.counters,
		Timeline:        s.timeline,
	})
}
