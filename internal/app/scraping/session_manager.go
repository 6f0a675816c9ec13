package scraping

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/google/uuid"

	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
	"github.com/regscan/enforcement-ingest/internal/domain/scraping"
	"github.com/regscan/enforcement-ingest/pkg/common/logger"
)

// Broadcaster publishes session progress to observers. Publishing is
// best-effort: implementations log failures and return, they never block or
// fail the scraping run.
type Broadcaster interface {
	SessionCreated(ctx context.Context, snapshot scraping.Snapshot)
	RecordProcessed(ctx context.Context, snapshot scraping.Snapshot, outcome scraping.Outcome, item scraping.ItemSummary)
	BatchCompleted(ctx context.Context, snapshot scraping.Snapshot, log *scraping.ProcessingLog)
	SessionCompleted(ctx context.Context, snapshot scraping.Snapshot)
	SessionFailed(ctx context.Context, snapshot scraping.Snapshot, reason string)
	SessionStopped(ctx context.Context, snapshot scraping.Snapshot)
	ScrapeError(ctx context.Context, sessionID uuid.UUID, agency enforcement.Agency, stage, message string)
}

// SessionManager owns session state in the application layer: it applies
// domain transitions, persists each mutation and broadcasts progress. The
// execution loop calls it after every record and at every boundary; all stop
// decisions funnel through here so the precedence between them lives in one
// place.
type SessionManager struct {
	sessionRepo scraping.SessionRepository
	logRepo     scraping.ProcessingLogRepository
	broadcaster Broadcaster

	logger  *logger.Logger
	metrics ScrapeMetrics
	tracer  trace.Tracer
}

// NewSessionManager creates a SessionManager persisting through the given
// repositories.
func NewSessionManager(
	sessionRepo scraping.SessionRepository,
	logRepo scraping.ProcessingLogRepository,
	broadcaster Broadcaster,
	log *logger.Logger,
	metrics ScrapeMetrics,
	tracer trace.Tracer,
) *SessionManager {
	return &SessionManager{
		sessionRepo: sessionRepo,
		logRepo:     logRepo,
		broadcaster: broadcaster,
		logger:      log,
		metrics:     metrics,
		tracer:      tracer,
	}
}

// StartSession creates a pending session from validated parameters, persists
// it, then transitions it to running. The pending row is saved first so a
// crash between the two writes leaves an inspectable session behind.
func (m *SessionManager) StartSession(ctx context.Context, strategy Strategy, params *ValidatedParams) (*scraping.Session, error) {
	ctx, span := m.tracer.Start(ctx, "session_manager.start_session",
		trace.WithAttributes(
			attribute.String("agency", string(strategy.Agency())),
			attribute.String("strategy", strategy.Name()),
		))
	defer span.End()

	session := scraping.NewSession(
		strategy.Agency(),
		strategy.EnforcementType(),
		strategy.NewLocator(params),
		params.Actor,
	)
	span.SetAttributes(attribute.String("session_id", session.ID().String()))

	if err := m.sessionRepo.Save(ctx, session); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist pending session")
		return nil, fmt.Errorf("saving pending session: %w", err)
	}

	if err := session.MarkRunning(); err != nil {
		return nil, fmt.Errorf("marking session running: %w", err)
	}
	if err := m.sessionRepo.Save(ctx, session); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist running session")
		return nil, fmt.Errorf("saving running session: %w", err)
	}

	span.AddEvent("session_started")
	m.metrics.IncSessionsStarted(ctx, session.Agency())
	m.broadcaster.SessionCreated(ctx, session.Snapshot())
	m.logger.Info(ctx, "session started",
		"session_id", session.ID(),
		"agency", session.Agency(),
		"enforcement_type", session.EnforcementType(),
		"position", session.Locator().Describe())
	return session, nil
}

// RecordItem applies one record outcome, persists the counters and broadcasts
// progress. It returns failed=true when the cumulative error count reaches the
// session's error threshold, in which case the session has already been marked
// failed and persisted.
func (m *SessionManager) RecordItem(
	ctx context.Context,
	session *scraping.Session,
	params *ValidatedParams,
	outcome scraping.Outcome,
	item scraping.ItemSummary,
	itemErr *scraping.ItemError,
) (failed bool, err error) {
	if err := session.RecordItem(outcome); err != nil {
		return false, fmt.Errorf("recording item outcome: %w", err)
	}
	if err := m.sessionRepo.Save(ctx, session); err != nil {
		return false, fmt.Errorf("saving session counters: %w", err)
	}

	m.metrics.IncRecordsProcessed(ctx, session.Agency(), outcome)
	m.broadcaster.RecordProcessed(ctx, session.Snapshot(), outcome, item)
	if outcome == scraping.OutcomeError && itemErr != nil {
		m.broadcaster.ScrapeError(ctx, session.ID(), session.Agency(), "record", itemErr.Message)
	}

	if session.Counters().ErrorsCount() >= params.MaxConsecutiveErrors {
		reason := fmt.Sprintf("error threshold reached: %d errors (limit %d)",
			session.Counters().ErrorsCount(), params.MaxConsecutiveErrors)
		if err := m.failSession(ctx, session, reason); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// CompleteBoundary writes the boundary's audit log, advances the session past
// the boundary and evaluates the stop heuristics. advanceCursor is false for
// the intermediate action types of a date-range run, whose batch counter moves
// once per window.
//
// The error threshold is evaluated before the all-exist heuristic: a boundary
// that trips both fails the session.
func (m *SessionManager) CompleteBoundary(
	ctx context.Context,
	session *scraping.Session,
	boundaryIndex int,
	result *scraping.BoundaryResult,
	advanceCursor bool,
	params *ValidatedParams,
) (done bool, err error) {
	ctx, span := m.tracer.Start(ctx, "session_manager.complete_boundary",
		trace.WithAttributes(
			attribute.String("session_id", session.ID().String()),
			attribute.Int("boundary_index", boundaryIndex),
			attribute.Int("items_found", result.ItemsFound),
		))
	defer span.End()

	capped := *result
	if params.BatchSize > 0 && len(capped.Items) > params.BatchSize {
		capped.Items = capped.Items[:params.BatchSize]
	}
	log := scraping.NewProcessingLog(session.ID(), session.Agency(), boundaryIndex, &capped)
	if err := m.logRepo.Save(ctx, log); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist processing log")
		return false, fmt.Errorf("saving processing log: %w", err)
	}

	if advanceCursor {
		if err := session.CompleteBoundary(); err != nil {
			return false, fmt.Errorf("completing boundary: %w", err)
		}
	}

	m.metrics.ObserveBoundarySize(ctx, session.Agency(), result.ItemsFound)

	if session.Counters().ErrorsCount() >= params.MaxConsecutiveErrors {
		reason := fmt.Sprintf("error threshold reached: %d errors (limit %d)",
			session.Counters().ErrorsCount(), params.MaxConsecutiveErrors)
		if err := m.failSession(ctx, session, reason); err != nil {
			return false, err
		}
		span.AddEvent("session_failed_on_error_threshold")
		return true, nil
	}

	if result.AllExisting() && result.ItemsFound >= params.ExistingThreshold {
		if err := m.completeSession(ctx, session); err != nil {
			return false, err
		}
		span.AddEvent("session_completed_all_existing")
		m.logger.Info(ctx, "all records at boundary already ingested, completing early",
			"session_id", session.ID(), "boundary_index", boundaryIndex)
		return true, nil
	}

	if err := m.sessionRepo.Save(ctx, session); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist session after boundary")
		return false, fmt.Errorf("saving session after boundary: %w", err)
	}

	span.AddEvent("boundary_completed")
	m.broadcaster.BatchCompleted(ctx, session.Snapshot(), log)
	return false, nil
}

// ShouldContinue reports whether the execution loop has another boundary to
// process: the session is still running and, for page walks, the page budget
// is not yet spent.
func (m *SessionManager) ShouldContinue(session *scraping.Session) bool {
	if session.Status() != scraping.StatusRunning {
		return false
	}
	if cursor, ok := session.Locator().(*scraping.PageCursor); ok {
		return session.Counters().PagesProcessed() < cursor.MaxPages()
	}
	return true
}

// Finalize moves a still-running session to its natural terminal status once
// the loop exits: stopped when the context was cancelled, completed otherwise.
// Terminal sessions are left untouched.
func (m *SessionManager) Finalize(ctx context.Context, session *scraping.Session) error {
	if session.Status().IsTerminal() {
		return nil
	}

	if ctx.Err() != nil {
		return m.stopSession(session)
	}
	return m.completeSession(ctx, session)
}

func (m *SessionManager) completeSession(ctx context.Context, session *scraping.Session) error {
	if err := session.MarkCompleted(); err != nil {
		return fmt.Errorf("marking session completed: %w", err)
	}
	if err := m.sessionRepo.Save(ctx, session); err != nil {
		return fmt.Errorf("saving completed session: %w", err)
	}

	m.metrics.IncSessionsCompleted(ctx, session.Agency())
	m.metrics.ObserveSessionDuration(ctx, session.Agency(), session.Timeline().Duration())
	m.broadcaster.SessionCompleted(ctx, session.Snapshot())
	m.logger.Info(ctx, "session completed",
		"session_id", session.ID(),
		"items_processed", session.Counters().ItemsProcessed(),
		"items_created", session.Counters().ItemsCreated())
	return nil
}

func (m *SessionManager) failSession(ctx context.Context, session *scraping.Session, reason string) error {
	if err := session.MarkFailed(reason); err != nil {
		return fmt.Errorf("marking session failed: %w", err)
	}
	if err := m.sessionRepo.Save(ctx, session); err != nil {
		return fmt.Errorf("saving failed session: %w", err)
	}

	m.metrics.IncSessionsFailed(ctx, session.Agency())
	m.metrics.ObserveSessionDuration(ctx, session.Agency(), session.Timeline().Duration())
	m.broadcaster.SessionFailed(ctx, session.Snapshot(), reason)
	m.logger.Error(ctx, "session failed", "session_id", session.ID(), "reason", reason)
	return nil
}

// stopSession persists the stop with a fresh context: the session's own
// context is already cancelled by the time a stop is recorded.
func (m *SessionManager) stopSession(session *scraping.Session) error {
	if err := session.MarkStopped(); err != nil {
		return fmt.Errorf("marking session stopped: %w", err)
	}

	ctx := context.Background()
	if err := m.sessionRepo.Save(ctx, session); err != nil {
		return fmt.Errorf("saving stopped session: %w", err)
	}

	m.metrics.IncSessionsStopped(ctx, session.Agency())
	m.metrics.ObserveSessionDuration(ctx, session.Agency(), session.Timeline().Duration())
	m.broadcaster.SessionStopped(ctx, session.Snapshot())
	m.logger.Info(ctx, "session stopped", "session_id", session.ID())
	return nil
}
