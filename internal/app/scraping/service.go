package scraping

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/google/uuid"

	"github.com/regscan/enforcement-ingest/internal/config"
	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
	"github.com/regscan/enforcement-ingest/internal/domain/scraping"
	"github.com/regscan/enforcement-ingest/pkg/common/logger"
)

// ErrSessionNotFound reports a status or stop request for an unknown session.
var ErrSessionNotFound = errors.New("session not found")

// SessionHandle is the immediate response to a start request: the session is
// identified and running, while collection continues in the background.
type SessionHandle struct {
	SessionID       uuid.UUID
	Agency          enforcement.Agency
	EnforcementType enforcement.Type
	StrategyName    string
}

// SessionStatus combines a session's snapshot with its strategy-specific
// progress view.
type SessionStatus struct {
	Snapshot scraping.Snapshot
	Progress float64
	Display  DisplayCounters
}

// Service is the entry point for scraping runs. Start validates, creates the
// session and hands it to a background worker; Stop cancels a worker's
// context; Status reads persisted session state. One worker per session is the
// concurrency model: two sessions never share state.
type Service struct {
	registry    *Registry
	settings    *config.Settings
	manager     *SessionManager
	coordinator *Coordinator
	sessionRepo scraping.SessionRepository

	logger *logger.Logger
	tracer trace.Tracer

	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
	wg      sync.WaitGroup
}

// NewService creates the scraping service.
func NewService(
	registry *Registry,
	settings *config.Settings,
	manager *SessionManager,
	coordinator *Coordinator,
	sessionRepo scraping.SessionRepository,
	log *logger.Logger,
	tracer trace.Tracer,
) *Service {
	return &Service{
		registry:    registry,
		settings:    settings,
		manager:     manager,
		coordinator: coordinator,
		sessionRepo: sessionRepo,
		logger:      log,
		tracer:      tracer,
		running:     make(map[uuid.UUID]context.CancelFunc),
	}
}

// Start validates the request, creates a running session and launches its
// worker. Validation and feature-flag rejections happen before any session
// exists; nothing is persisted for a rejected request.
func (s *Service) Start(
	ctx context.Context,
	agency enforcement.Agency,
	enforcementType enforcement.Type,
	raw RawParams,
	actor string,
) (*SessionHandle, error) {
	ctx, span := s.tracer.Start(ctx, "scraping_service.start",
		trace.WithAttributes(
			attribute.String("agency", string(agency)),
			attribute.String("enforcement_type", string(enforcementType)),
		))
	defer span.End()

	if !s.settings.Enabled(agency, enforcementType) {
		span.AddEvent("scraping_disabled")
		return nil, &scraping.ConfigError{
			Agency:          string(agency),
			EnforcementType: string(enforcementType),
		}
	}

	strategy, err := s.registry.Lookup(agency, enforcementType)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	params, err := strategy.ValidateParams(raw, s.settings)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid run parameters")
		return nil, err
	}
	params.Actor = actor

	session, err := s.manager.StartSession(ctx, strategy, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session start failed")
		return nil, err
	}

	// The worker outlives the start request; it stops through its own cancel
	// func, not the caller's context.
	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.running[session.ID()] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(session.ID())

		if err := s.coordinator.Run(runCtx, session, strategy, params); err != nil {
			s.logger.Error(runCtx, "session worker exited with error",
				"session_id", session.ID(), "error", err)
		}
	}()

	span.SetAttributes(attribute.String("session_id", session.ID().String()))
	return &SessionHandle{
		SessionID:       session.ID(),
		Agency:          agency,
		EnforcementType: enforcementType,
		StrategyName:    strategy.Name(),
	}, nil
}

// Stop requests cooperative cancellation of a running session's worker. The
// worker finishes its in-flight record, persists progress and parks the
// session in the stopped status.
func (s *Service) Stop(ctx context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	cancel, ok := s.running[sessionID]
	s.mu.Unlock()
	if ok {
		s.logger.Info(ctx, "stop requested", "session_id", sessionID)
		cancel()
		return nil
	}

	// No worker here; the session may be terminal already or unknown.
	session, err := s.sessionRepo.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	return nil
}

// Status returns the persisted state of a session together with the
// strategy's progress estimate.
func (s *Service) Status(ctx context.Context, sessionID uuid.UUID) (*SessionStatus, error) {
	session, err := s.sessionRepo.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	strategy, err := s.registry.Lookup(session.Agency(), session.EnforcementType())
	if err != nil {
		return nil, err
	}

	return &SessionStatus{
		Snapshot: session.Snapshot(),
		Progress: strategy.CalculateProgress(session),
		Display:  strategy.FormatProgressDisplay(session),
	}, nil
}

// ListSessions returns the most recent sessions.
func (s *Service) ListSessions(ctx context.Context, limit int) ([]*scraping.Session, error) {
	return s.sessionRepo.List(ctx, limit)
}

// ActiveSessions returns every pending or running session.
func (s *Service) ActiveSessions(ctx context.Context) ([]*scraping.Session, error) {
	return s.sessionRepo.GetActive(ctx)
}

// StopAll cancels every running worker, used during shutdown.
func (s *Service) StopAll() {
	s.mu.Lock()
	for id, cancel := range s.running {
		s.logger.Info(context.Background(), "stopping session worker", "session_id", id)
		cancel()
	}
	s.mu.Unlock()
}

// Wait blocks until every worker has exited.
func (s *Service) Wait() { s.wg.Wait() }

func (s *Service) release(sessionID uuid.UUID) {
	s.mu.Lock()
	if cancel, ok := s.running[sessionID]; ok {
		cancel()
		delete(s.running, sessionID)
	}
	s.mu.Unlock()
}
