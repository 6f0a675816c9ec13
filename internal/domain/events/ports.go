// Package events provides domain event handling capabilities for communicating
// state changes across system boundaries in a decoupled way.
package events

import "context"

// DomainEventPublisher publishes domain events to notify other parts of the
// system about important domain changes. It provides a technology-agnostic
// interface to decouple event producers from the underlying messaging
// infrastructure.
type DomainEventPublisher interface {
	// PublishDomainEvent sends a domain event to interested subscribers. The
	// provided context controls cancellation and deadlines. Optional
	// PublishOptions configure routing behavior.
	PublishDomainEvent(ctx context.Context, event DomainEvent, opts ...PublishOption) error
}

// EventBus carries event envelopes across system boundaries. It abstracts the
// messaging infrastructure (Kafka here) to keep domain logic focused on
// business concerns rather than transport mechanics. The scraping engine only
// ever publishes; consumption happens in downstream presentation services.
type EventBus interface {
	// Publish broadcasts an event envelope to interested subscribers. Optional
	// PublishOptions configure delivery behavior.
	Publish(ctx context.Context, event EventEnvelope, opts ...PublishOption) error

	// Close gracefully shuts down the event bus and releases associated
	// resources.
	Close() error
}
