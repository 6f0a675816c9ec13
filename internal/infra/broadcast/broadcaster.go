// Package broadcast adapts domain progress events onto the event bus for
// downstream observers (progress UIs, alerting, audit consumers).
package broadcast

import (
	"context"

	"github.com/google/uuid"

	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
	"github.com/regscan/enforcement-ingest/internal/domain/events"
	"github.com/regscan/enforcement-ingest/internal/domain/scraping"
	"github.com/regscan/enforcement-ingest/pkg/common/logger"
)

// ProgressBroadcaster publishes the scraping engine's progress events.
// Publishing is best-effort: a failed publish is logged and dropped, it never
// stalls or fails the scraping run. Events are keyed by session ID so one
// session's stream stays ordered within a partition.
type ProgressBroadcaster struct {
	publisher events.DomainEventPublisher
	logger    *logger.Logger
}

// NewProgressBroadcaster creates a broadcaster publishing through the given
// domain event publisher.
func NewProgressBroadcaster(publisher events.DomainEventPublisher, log *logger.Logger) *ProgressBroadcaster {
	return &ProgressBroadcaster{publisher: publisher, logger: log}
}

func (b *ProgressBroadcaster) publish(ctx context.Context, event events.DomainEvent, key string) {
	if err := b.publisher.PublishDomainEvent(ctx, event, events.WithKey(key)); err != nil {
		b.logger.Warn(ctx, "progress event publish failed",
			"event_type", event.EventType(), "key", key, "error", err)
	}
}

func (b *ProgressBroadcaster) SessionCreated(ctx context.Context, snapshot scraping.Snapshot) {
	b.publish(ctx, scraping.NewSessionCreatedEvent(snapshot), snapshot.SessionID.String())
}

func (b *ProgressBroadcaster) RecordProcessed(ctx context.Context, snapshot scraping.Snapshot, outcome scraping.Outcome, item scraping.ItemSummary) {
	b.publish(ctx, scraping.NewRecordProcessedEvent(snapshot, outcome, item), snapshot.SessionID.String())
}

func (b *ProgressBroadcaster) BatchCompleted(ctx context.Context, snapshot scraping.Snapshot, log *scraping.ProcessingLog) {
	b.publish(ctx, scraping.NewBatchCompletedEvent(snapshot, log), snapshot.SessionID.String())
}

func (b *ProgressBroadcaster) SessionCompleted(ctx context.Context, snapshot scraping.Snapshot) {
	b.publish(ctx, scraping.NewSessionCompletedEvent(snapshot), snapshot.SessionID.String())
}

func (b *ProgressBroadcaster) SessionFailed(ctx context.Context, snapshot scraping.Snapshot, reason string) {
	b.publish(ctx, scraping.NewSessionFailedEvent(snapshot, reason), snapshot.SessionID.String())
}

func (b *ProgressBroadcaster) SessionStopped(ctx context.Context, snapshot scraping.Snapshot) {
	b.publish(ctx, scraping.NewSessionStoppedEvent(snapshot), snapshot.SessionID.String())
}

func (b *ProgressBroadcaster) ScrapeError(ctx context.Context, sessionID uuid.UUID, agency enforcement.Agency, stage, message string) {
	b.publish(ctx, scraping.NewScrapeErrorEvent(sessionID, agency, stage, message), sessionID.String())
}
