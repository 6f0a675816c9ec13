package events

import "time"

// EventType represents a domain event category, enabling type-safe event routing
// and handling. It distinguishes between session lifecycle changes, per-record
// progress and scrape errors.
type EventType string

// DomainEvent is implemented by every event the scraping engine emits. Events
// describe something that has already happened; consumers must treat them as
// immutable facts.
type DomainEvent interface {
	// EventType returns the category used to route this event.
	EventType() EventType

	// OccurredAt returns the time the event was created.
	OccurredAt() time.Time
}

// EventEnvelope wraps a domain event with the metadata the transport needs,
// providing a standardized format for event processing and distribution.
type EventEnvelope struct {
	// Type identifies the category of this event for routing and handling.
	Type EventType

	// Key enables consistent event routing, typically containing a business
	// identifier like a session ID that events can be partitioned by.
	Key string

	// Headers contain metadata key-value pairs attached to the event.
	Headers map[string]string

	// Timestamp records when this event was created.
	Timestamp time.Time

	// Payload contains the actual event data. The concrete type depends on
	// the EventType.
	Payload any
}
