package scraping

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
	"github.com/regscan/enforcement-ingest/internal/domain/scraping"
)

// ScrapeMetrics defines the metrics operations the scraping engine reports.
type ScrapeMetrics interface {
	// Session lifecycle metrics.
	IncSessionsStarted(ctx context.Context, agency enforcement.Agency)
	IncSessionsCompleted(ctx context.Context, agency enforcement.Agency)
	IncSessionsFailed(ctx context.Context, agency enforcement.Agency)
	IncSessionsStopped(ctx context.Context, agency enforcement.Agency)
	ObserveSessionDuration(ctx context.Context, agency enforcement.Agency, duration time.Duration)

	// Record pipeline metrics.
	IncRecordsProcessed(ctx context.Context, agency enforcement.Agency, outcome scraping.Outcome)
	IncFetchErrors(ctx context.Context, agency enforcement.Agency, stage string)
	ObserveBoundarySize(ctx context.Context, agency enforcement.Agency, size int)
}

type scrapeMetrics struct {
	sessionsStarted   metric.Int64Counter
	sessionsCompleted metric.Int64Counter
	sessionsFailed    metric.Int64Counter
	sessionsStopped   metric.Int64Counter
	sessionDuration   metric.Float64Histogram

	recordsProcessed metric.Int64Counter
	fetchErrors      metric.Int64Counter
	boundarySize     metric.Int64Histogram

	messagesPublished metric.Int64Counter
	publishErrors     metric.Int64Counter
}

const namespace = "scraper"

// NewScrapeMetrics creates a new scraping metrics instance.
func NewScrapeMetrics(mp metric.MeterProvider) (*scrapeMetrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(scrapeMetrics)
	var err error

	if m.sessionsStarted, err = meter.Int64Counter(
		"sessions_started_total",
		metric.WithDescription("Total number of scraping sessions started"),
	); err != nil {
		return nil, err
	}

	if m.sessionsCompleted, err = meter.Int64Counter(
		"sessions_completed_total",
		metric.WithDescription("Total number of scraping sessions that completed"),
	); err != nil {
		return nil, err
	}

	if m.sessionsFailed, err = meter.Int64Counter(
		"sessions_failed_total",
		metric.WithDescription("Total number of scraping sessions that failed"),
	); err != nil {
		return nil, err
	}

	if m.sessionsStopped, err = meter.Int64Counter(
		"sessions_stopped_total",
		metric.WithDescription("Total number of scraping sessions stopped by a caller"),
	); err != nil {
		return nil, err
	}

	if m.sessionDuration, err = meter.Float64Histogram(
		"session_duration_seconds",
		metric.WithDescription("Time from session start to its terminal status"),
	); err != nil {
		return nil, err
	}

	if m.recordsProcessed, err = meter.Int64Counter(
		"records_processed_total",
		metric.WithDescription("Total number of records processed, by outcome"),
	); err != nil {
		return nil, err
	}

	if m.fetchErrors, err = meter.Int64Counter(
		"fetch_errors_total",
		metric.WithDescription("Total number of list and detail fetch failures"),
	); err != nil {
		return nil, err
	}

	if m.boundarySize, err = meter.Int64Histogram(
		"boundary_size",
		metric.WithDescription("Records found per page or batch boundary"),
	); err != nil {
		return nil, err
	}

	if m.messagesPublished, err = meter.Int64Counter(
		"messages_published_total",
		metric.WithDescription("Total number of event bus messages published"),
	); err != nil {
		return nil, err
	}

	if m.publishErrors, err = meter.Int64Counter(
		"publish_errors_total",
		metric.WithDescription("Total number of event bus publish failures"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func agencyAttr(agency enforcement.Agency) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("agency", string(agency)))
}

func (m *scrapeMetrics) IncSessionsStarted(ctx context.Context, agency enforcement.Agency) {
	m.sessionsStarted.Add(ctx, 1, agencyAttr(agency))
}

func (m *scrapeMetrics) IncSessionsCompleted(ctx context.Context, agency enforcement.Agency) {
	m.sessionsCompleted.Add(ctx, 1, agencyAttr(agency))
}

func (m *scrapeMetrics) IncSessionsFailed(ctx context.Context, agency enforcement.Agency) {
	m.sessionsFailed.Add(ctx, 1, agencyAttr(agency))
}

func (m *scrapeMetrics) IncSessionsStopped(ctx context.Context, agency enforcement.Agency) {
	m.sessionsStopped.Add(ctx, 1, agencyAttr(agency))
}

func (m *scrapeMetrics) ObserveSessionDuration(ctx context.Context, agency enforcement.Agency, duration time.Duration) {
	m.sessionDuration.Record(ctx, duration.Seconds(), agencyAttr(agency))
}

func (m *scrapeMetrics) IncRecordsProcessed(ctx context.Context, agency enforcement.Agency, outcome scraping.Outcome) {
	m.recordsProcessed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agency", string(agency)),
		attribute.String("outcome", string(outcome)),
	))
}

func (m *scrapeMetrics) IncFetchErrors(ctx context.Context, agency enforcement.Agency, stage string) {
	m.fetchErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agency", string(agency)),
		attribute.String("stage", stage),
	))
}

func (m *scrapeMetrics) ObserveBoundarySize(ctx context.Context, agency enforcement.Agency, size int) {
	m.boundarySize.Record(ctx, int64(size), agencyAttr(agency))
}

func (m *scrapeMetrics) IncMessagePublished(ctx context.Context, topic string) {
	m.messagesPublished.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}

func (m *scrapeMetrics) IncPublishError(ctx context.Context, topic string) {
	m.publishErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", topic)))
}
