package scraping

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
	"github.com/regscan/enforcement-ingest/internal/domain/scraping"
	"github.com/regscan/enforcement-ingest/pkg/common/logger"
)

// UpsertPipeline writes fully enriched records into the durable store and
// classifies each write as created or existing. Idempotency rests on the
// repository's create-or-conflict contract: replaying a page against records
// already present yields existing outcomes and no duplicates.
type UpsertPipeline struct {
	records enforcement.RecordRepository

	logger *logger.Logger
	tracer trace.Tracer
}

// NewUpsertPipeline creates a pipeline writing to the given record repository.
func NewUpsertPipeline(records enforcement.RecordRepository, log *logger.Logger, tracer trace.Tracer) *UpsertPipeline {
	return &UpsertPipeline{records: records, logger: log, tracer: tracer}
}

// Write persists one enriched record and returns its outcome tag. Duplicate
// keys classify as existing and refresh the stored record's sync timestamp.
// Storage failures classify as an error outcome with the item error attached;
// the session loop carries on.
func (p *UpsertPipeline) Write(ctx context.Context, record *enforcement.Record) (scraping.Outcome, *scraping.ItemError) {
	ctx, span := p.tracer.Start(ctx, "upsert_pipeline.write",
		trace.WithAttributes(
			attribute.String("agency", string(record.Agency)),
			attribute.String("natural_key", record.NaturalKey),
		))
	defer span.End()

	err := p.records.Create(ctx, record)
	if err == nil {
		span.AddEvent("record_created")
		return scraping.OutcomeCreated, nil
	}

	if !errors.Is(err, enforcement.ErrDuplicateRecord) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record create failed")
		p.logger.Error(ctx, "upsert pipeline: create failed",
			"agency", record.Agency, "natural_key", record.NaturalKey, "error", err)
		return scraping.OutcomeError, &scraping.ItemError{
			NaturalKey: record.NaturalKey,
			Message:    fmt.Sprintf("create failed: %v", err),
		}
	}

	span.AddEvent("record_already_exists")
	p.touchExisting(ctx, record)
	return scraping.OutcomeExisting, nil
}

// touchExisting refreshes the stored record's last-synced timestamp. A failed
// refresh does not change the outcome: the record provably exists.
func (p *UpsertPipeline) touchExisting(ctx context.Context, record *enforcement.Record) {
	existing, err := p.records.FindByNaturalKey(ctx, record.Agency, record.NaturalKey)
	if err != nil || existing == nil {
		p.logger.Warn(ctx, "upsert pipeline: lookup after duplicate failed",
			"agency", record.Agency, "natural_key", record.NaturalKey, "error", err)
		return
	}

	if err := p.records.TouchLastSynced(ctx, existing.ID); err != nil {
		p.logger.Warn(ctx, "upsert pipeline: sync timestamp refresh failed",
			"agency", record.Agency, "natural_key", record.NaturalKey, "error", err)
	}
}
