package scraping

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
	"github.com/regscan/enforcement-ingest/internal/domain/scraping"
	"github.com/regscan/enforcement-ingest/pkg/common"
	"github.com/regscan/enforcement-ingest/pkg/common/logger"
)

// Coordinator drives the execution loop for one session: fetch a boundary's
// summaries, enrich and upsert each record, write the audit log and repeat
// until a stop condition fires. It is the single writer for the sessions it
// runs; all state changes go through the SessionManager.
type Coordinator struct {
	manager  *SessionManager
	fetchers scraping.FetcherFactory
	pipeline *UpsertPipeline

	logger  *logger.Logger
	metrics ScrapeMetrics
	tracer  trace.Tracer
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(
	manager *SessionManager,
	fetchers scraping.FetcherFactory,
	pipeline *UpsertPipeline,
	log *logger.Logger,
	metrics ScrapeMetrics,
	tracer trace.Tracer,
) *Coordinator {
	return &Coordinator{
		manager:  manager,
		fetchers: fetchers,
		pipeline: pipeline,
		logger:   log,
		metrics:  metrics,
		tracer:   tracer,
	}
}

// Run executes a session to a terminal status. Cancellation of ctx is
// cooperative: the loop checks it between fetches and between records, and a
// cancelled run lands in the stopped status with all progress persisted.
func (c *Coordinator) Run(ctx context.Context, session *scraping.Session, strategy Strategy, params *ValidatedParams) error {
	ctx, span := c.tracer.Start(ctx, "coordinator.run",
		trace.WithAttributes(
			attribute.String("session_id", session.ID().String()),
			attribute.String("strategy", strategy.Name()),
		))
	defer span.End()

	fetcher, err := c.fetchers.FetcherFor(session.Agency(), session.EnforcementType())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no fetcher for session")
		if failErr := c.manager.failSession(ctx, session, fmt.Sprintf("no fetcher available: %v", err)); failErr != nil {
			return failErr
		}
		return err
	}

	switch strategy.Granularity() {
	case GranularityPage:
		err = c.runPages(ctx, fetcher, session, params)
	case GranularityDateRange:
		err = c.runDateRange(ctx, fetcher, session, params)
	default:
		err = fmt.Errorf("unknown granularity %q", strategy.Granularity())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session run failed")
		return err
	}

	span.SetAttributes(attribute.String("final_status", string(session.Status())))
	return nil
}

// runPages walks numbered register pages until a stop condition fires: page
// budget spent, all-exist boundary, error threshold or cancellation.
func (c *Coordinator) runPages(ctx context.Context, fetcher scraping.RecordFetcher, session *scraping.Session, params *ValidatedParams) error {
	limiter := newPoliteLimiter(params.PauseBetweenPages)
	firstPage := true

	for c.manager.ShouldContinue(session) {
		if ctx.Err() != nil {
			return c.manager.Finalize(ctx, session)
		}
		if !firstPage && limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return c.manager.Finalize(ctx, session)
			}
		}
		firstPage = false

		cursor, ok := session.Locator().(*scraping.PageCursor)
		if !ok {
			return fmt.Errorf("page run requires a page cursor, got %T", session.Locator())
		}
		page := cursor.CurrentPage()

		result, failed, err := c.processBoundary(ctx, fetcher, session, session.Locator(), "page", params)
		if err != nil || failed {
			return err
		}
		if ctx.Err() != nil {
			return c.manager.Finalize(ctx, session)
		}

		done, err := c.manager.CompleteBoundary(ctx, session, page, result, true, params)
		if err != nil || done {
			return err
		}
	}

	return c.manager.Finalize(ctx, session)
}

// runDateRange fetches one batch per action type within the session's date
// window. The batch counter advances once, after the final action type.
func (c *Coordinator) runDateRange(ctx context.Context, fetcher scraping.RecordFetcher, session *scraping.Session, params *ValidatedParams) error {
	window, ok := session.Locator().(*scraping.DateRange)
	if !ok {
		return fmt.Errorf("date-range run requires a date range, got %T", session.Locator())
	}
	limiter := newPoliteLimiter(params.PauseBetweenPages)

	actionTypes := window.ActionTypes()
	for i, actionType := range actionTypes {
		if !c.manager.ShouldContinue(session) || ctx.Err() != nil {
			break
		}
		if i > 0 && limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		}

		narrowed := window.ForActionType(actionType)
		result, failed, err := c.processBoundary(ctx, fetcher, session, narrowed, "batch", params)
		if err != nil || failed {
			return err
		}
		if ctx.Err() != nil {
			break
		}

		lastBatch := i == len(actionTypes)-1
		done, err := c.manager.CompleteBoundary(ctx, session, i, result, lastBatch, params)
		if err != nil || done {
			return err
		}
	}

	return c.manager.Finalize(ctx, session)
}

// processBoundary fetches one boundary's summaries and runs every record
// through the enrich-and-upsert pipeline. A failed list fetch is one error
// outcome against the session, not a crash: the boundary simply yields
// nothing. failed=true means the session crossed its error threshold and has
// been marked failed.
func (c *Coordinator) processBoundary(
	ctx context.Context,
	fetcher scraping.RecordFetcher,
	session *scraping.Session,
	locator scraping.Locator,
	kind string,
	params *ValidatedParams,
) (*scraping.BoundaryResult, bool, error) {
	result := new(scraping.BoundaryResult)

	summaries, err := c.fetchList(ctx, fetcher, locator, params)
	if err != nil {
		if ctx.Err() != nil {
			return result, false, nil
		}
		netErr := scraping.NewNetworkError(string(session.Agency()), "list", err)
		c.metrics.IncFetchErrors(ctx, session.Agency(), "list")
		c.logger.Warn(ctx, "list fetch failed",
			"session_id", session.ID(), "position", locator.Describe(), "error", err)

		itemErr := &scraping.ItemError{Message: netErr.Error()}
		result.Record(scraping.OutcomeError, scraping.ItemSummary{}, itemErr)
		failed, err := c.manager.RecordItem(ctx, session, params, scraping.OutcomeError, scraping.ItemSummary{}, itemErr)
		return result, failed, err
	}

	c.logger.Debug(ctx, "boundary fetched",
		"session_id", session.ID(), "kind", kind,
		"position", locator.Describe(), "summaries", len(summaries))

	for _, summary := range summaries {
		if ctx.Err() != nil {
			return result, false, nil
		}
		// Rows without a regulator-assigned identifier cannot be deduplicated
		// and are skipped without touching any counter.
		if summary.NaturalKey == "" {
			c.logger.Warn(ctx, "skipping summary without natural key",
				"session_id", session.ID(), "subject", summary.SubjectName)
			continue
		}

		outcome, item, itemErr := c.processRecord(ctx, fetcher, session, summary, params)
		result.Record(outcome, item, itemErr)

		failed, err := c.manager.RecordItem(ctx, session, params, outcome, item, itemErr)
		if err != nil || failed {
			return result, failed, err
		}
	}

	return result, false, nil
}

// processRecord enriches one summary through the detail fetch and writes the
// result. Detail fetch failures classify as an error outcome carrying the
// summary's natural key.
func (c *Coordinator) processRecord(
	ctx context.Context,
	fetcher scraping.RecordFetcher,
	session *scraping.Session,
	summary enforcement.RawSummary,
	params *ValidatedParams,
) (scraping.Outcome, scraping.ItemSummary, *scraping.ItemError) {
	item := scraping.ItemSummary{
		NaturalKey:  summary.NaturalKey,
		SubjectName: summary.SubjectName,
		Date:        summary.Date,
	}

	detailCtx, cancel := context.WithTimeout(ctx, params.NetworkTimeout)
	record, err := fetcher.Detail(detailCtx, summary)
	cancel()
	if err != nil {
		netErr := scraping.NewNetworkError(string(session.Agency()), "detail", err)
		c.metrics.IncFetchErrors(ctx, session.Agency(), "detail")
		c.logger.Warn(ctx, "detail fetch failed",
			"session_id", session.ID(), "natural_key", summary.NaturalKey, "error", err)
		return scraping.OutcomeError, item, &scraping.ItemError{
			NaturalKey: summary.NaturalKey,
			Message:    netErr.Error(),
		}
	}

	item.SubjectName = record.SubjectName
	item.Date = record.Date
	item.MonetaryAmount = record.MonetaryAmount

	outcome, itemErr := c.pipeline.Write(ctx, record)
	return outcome, item, itemErr
}

// fetchList runs the list fetch under the per-fetch network timeout.
func (c *Coordinator) fetchList(ctx context.Context, fetcher scraping.RecordFetcher, locator scraping.Locator, params *ValidatedParams) ([]enforcement.RawSummary, error) {
	listCtx, cancel := context.WithTimeout(ctx, params.NetworkTimeout)
	defer cancel()
	return fetcher.List(listCtx, locator)
}

// newPoliteLimiter builds the politeness limiter enforcing the configured
// pause between boundary fetches. A non-positive pause disables it.
func newPoliteLimiter(pause time.Duration) *common.RateLimiter {
	if pause <= 0 {
		return nil
	}
	return common.NewRateLimiter(1/pause.Seconds(), 1)
}
