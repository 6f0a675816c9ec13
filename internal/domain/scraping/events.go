package scraping

import (
	"time"

	"github.com/google/uuid"

	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
	"github.com/regscan/enforcement-ingest/internal/domain/events"
)

// Event types emitted by the scraping engine. One event follows every state
// mutation; delivery is at-least-once and best-effort for observers only.
const (
	EventTypeSessionCreated   events.EventType = "SessionCreated"
	EventTypeRecordProcessed  events.EventType = "RecordProcessed"
	EventTypeBatchCompleted   events.EventType = "BatchCompleted"
	EventTypeSessionCompleted events.EventType = "SessionCompleted"
	EventTypeSessionFailed    events.EventType = "SessionFailed"
	EventTypeSessionStopped   events.EventType = "SessionStopped"
	EventTypeScrapeError      events.EventType = "ScrapeError"
)

// SessionCreatedEvent signals a new session has been created and started.
type SessionCreatedEvent struct {
	occurredAt time.Time
	Session    Snapshot `json:"session"`
}

// NewSessionCreatedEvent constructs a SessionCreatedEvent from a snapshot.
func NewSessionCreatedEvent(snapshot Snapshot) SessionCreatedEvent {
	return SessionCreatedEvent{occurredAt: time.Now(), Session: snapshot}
}

// EventType satisfies the events.DomainEvent interface.
func (e SessionCreatedEvent) EventType() events.EventType { return EventTypeSessionCreated }

// OccurredAt satisfies the events.DomainEvent interface.
func (e SessionCreatedEvent) OccurredAt() time.Time { return e.occurredAt }

// RecordProcessedEvent signals one record finished the fetch-and-ingest
// pipeline with the given outcome.
type RecordProcessedEvent struct {
	occurredAt time.Time
	Session    Snapshot    `json:"session"`
	Outcome    Outcome     `json:"outcome"`
	Item       ItemSummary `json:"item"`
}

// NewRecordProcessedEvent constructs a RecordProcessedEvent.
func NewRecordProcessedEvent(snapshot Snapshot, outcome Outcome, item ItemSummary) RecordProcessedEvent {
	return RecordProcessedEvent{occurredAt: time.Now(), Session: snapshot, Outcome: outcome, Item: item}
}

// EventType satisfies the events.DomainEvent interface.
func (e RecordProcessedEvent) EventType() events.EventType { return EventTypeRecordProcessed }

// OccurredAt satisfies the events.DomainEvent interface.
func (e RecordProcessedEvent) OccurredAt() time.Time { return e.occurredAt }

// BatchCompletedEvent signals a page or batch boundary was completed and its
// processing log written.
type BatchCompletedEvent struct {
	occurredAt    time.Time
	Session       Snapshot `json:"session"`
	BoundaryIndex int      `json:"boundary_index"`
	ItemsFound    int      `json:"items_found"`
	ItemsCreated  int      `json:"items_created"`
	ItemsExisting int      `json:"items_existing"`
	ItemsFailed   int      `json:"items_failed"`
}

// NewBatchCompletedEvent constructs a BatchCompletedEvent from the boundary's
// processing log.
func NewBatchCompletedEvent(snapshot Snapshot, log *ProcessingLog) BatchCompletedEvent {
	return BatchCompletedEvent{
		occurredAt:    time.Now(),
		Session:       snapshot,
		BoundaryIndex: log.BoundaryIndex(),
		ItemsFound:    log.ItemsFound(),
		ItemsCreated:  log.ItemsCreated(),
		ItemsExisting: log.ItemsExisting(),
		ItemsFailed:   log.ItemsFailed(),
	}
}

// EventType satisfies the events.DomainEvent interface.
func (e BatchCompletedEvent) EventType() events.EventType { return EventTypeBatchCompleted }

// OccurredAt satisfies the events.DomainEvent interface.
func (e BatchCompletedEvent) OccurredAt() time.Time { return e.occurredAt }

// SessionCompletedEvent signals a session reached the completed status.
type SessionCompletedEvent struct {
	occurredAt time.Time
	Session    Snapshot `json:"session"`
}

// NewSessionCompletedEvent constructs a SessionCompletedEvent.
func NewSessionCompletedEvent(snapshot Snapshot) SessionCompletedEvent {
	return SessionCompletedEvent{occurredAt: time.Now(), Session: snapshot}
}

// EventType satisfies the events.DomainEvent interface.
func (e SessionCompletedEvent) EventType() events.EventType { return EventTypeSessionCompleted }

// OccurredAt satisfies the events.DomainEvent interface.
func (e SessionCompletedEvent) OccurredAt() time.Time { return e.occurredAt }

// SessionFailedEvent signals the error threshold terminated a session.
type SessionFailedEvent struct {
	occurredAt time.Time
	Session    Snapshot `json:"session"`
	Reason     string   `json:"reason"`
}

// NewSessionFailedEvent constructs a SessionFailedEvent.
func NewSessionFailedEvent(snapshot Snapshot, reason string) SessionFailedEvent {
	return SessionFailedEvent{occurredAt: time.Now(), Session: snapshot, Reason: reason}
}

// EventType satisfies the events.DomainEvent interface.
func (e SessionFailedEvent) EventType() events.EventType { return EventTypeSessionFailed }

// OccurredAt satisfies the events.DomainEvent interface.
func (e SessionFailedEvent) OccurredAt() time.Time { return e.occurredAt }

// SessionStoppedEvent signals a caller cancelled the session.
type SessionStoppedEvent struct {
	occurredAt time.Time
	Session    Snapshot `json:"session"`
}

// NewSessionStoppedEvent constructs a SessionStoppedEvent.
func NewSessionStoppedEvent(snapshot Snapshot) SessionStoppedEvent {
	return SessionStoppedEvent{occurredAt: time.Now(), Session: snapshot}
}

// EventType satisfies the events.DomainEvent interface.
func (e SessionStoppedEvent) EventType() events.EventType { return EventTypeSessionStopped }

// OccurredAt satisfies the events.DomainEvent interface.
func (e SessionStoppedEvent) OccurredAt() time.Time { return e.occurredAt }

// ScrapeErrorEvent signals a record or page-level failure that was absorbed by
// the loop.
type ScrapeErrorEvent struct {
	occurredAt time.Time
	SessionID  uuid.UUID          `json:"session_id"`
	Agency     enforcement.Agency `json:"agency"`
	Stage      string             `json:"stage"`
	Message    string             `json:"message"`
}

// NewScrapeErrorEvent constructs a ScrapeErrorEvent.
func NewScrapeErrorEvent(sessionID uuid.UUID, agency enforcement.Agency, stage, message string) ScrapeErrorEvent {
	return ScrapeErrorEvent{
		occurredAt: time.Now(),
		SessionID:  sessionID,
		Agency:     agency,
		Stage:      stage,
		Message:    message,
	}
}

// EventType satisfies the events.DomainEvent interface.
func (e ScrapeErrorEvent) EventType() events.EventType { return EventTypeScrapeError }

// OccurredAt satisfies the events.DomainEvent interface.
func (e ScrapeErrorEvent) OccurredAt() time.Time { return e.occurredAt }
