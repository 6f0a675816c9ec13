// Package memory provides in-memory scraping stores for testing and
// development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/regscan/enforcement-ingest/internal/domain/scraping"
)

var _ scraping.SessionRepository = (*SessionStore)(nil)

// SessionStore provides an in-memory implementation of SessionRepository.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*scraping.Session
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[uuid.UUID]*scraping.Session)}
}

// Save persists a deep copy of the session so later mutations of the caller's
// aggregate do not leak into the store.
func (s *SessionStore) Save(ctx context.Context, session *scraping.Session) error {
	copied, err := deepCopySession(session)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = copied
	return nil
}

// Load retrieves a session by ID, or nil when none exists.
func (s *SessionStore) Load(ctx context.Context, id uuid.UUID) (*scraping.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[id]
	if !exists {
		return nil, nil
	}
	return deepCopySession(session)
}

// GetActive returns all pending or running sessions ordered by start time.
func (s *SessionStore) GetActive(ctx context.Context) ([]*scraping.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var active []*scraping.Session
	for _, session := range s.sessions {
		if session.Status() == scraping.StatusPending || session.Status() == scraping.StatusRunning {
			copied, err := deepCopySession(session)
			if err != nil {
				return nil, err
			}
			active = append(active, copied)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].Timeline().StartedAt().Before(active[j].Timeline().StartedAt())
	})
	return active, nil
}

// List returns the most recently started sessions, limited by count.
func (s *SessionStore) List(ctx context.Context, limit int) ([]*scraping.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]*scraping.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		copied, err := deepCopySession(session)
		if err != nil {
			return nil, err
		}
		all = append(all, copied)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Timeline().StartedAt().After(all[j].Timeline().StartedAt())
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func deepCopySession(session *scraping.Session) (*scraping.Session, error) {
	raw, err := scraping.MarshalLocator(session.Locator())
	if err != nil {
		return nil, fmt.Errorf("copying locator: %w", err)
	}
	locator, err := scraping.UnmarshalLocator(raw)
	if err != nil {
		return nil, fmt.Errorf("copying locator: %w", err)
	}

	counters := session.Counters()
	timeline := session.Timeline()
	return scraping.ReconstructSession(
		session.ID(),
		session.Agency(),
		session.EnforcementType(),
		session.Actor(),
		locator,
		session.Status(),
		session.FailureReason(),
		scraping.ReconstructCounters(
			counters.ItemsFound(),
			counters.ItemsProcessed(),
			counters.ItemsCreated(),
			counters.ItemsExisting(),
			counters.ErrorsCount(),
			counters.PagesProcessed(),
		),
		scraping.ReconstructTimeline(timeline.StartedAt(), timeline.CompletedAt(), timeline.LastUpdate()),
	), nil
}

var _ scraping.ProcessingLogRepository = (*ProcessingLogStore)(nil)

// ProcessingLogStore provides an in-memory implementation of
// ProcessingLogRepository.
type ProcessingLogStore struct {
	mu   sync.Mutex
	logs map[uuid.UUID][]*scraping.ProcessingLog
}

// NewProcessingLogStore creates a new in-memory processing log store.
func NewProcessingLogStore() *ProcessingLogStore {
	return &ProcessingLogStore{logs: make(map[uuid.UUID][]*scraping.ProcessingLog)}
}

// Save appends a deep copy of the processing log to its session's history.
func (s *ProcessingLogStore) Save(ctx context.Context, log *scraping.ProcessingLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[log.SessionID()] = append(s.logs[log.SessionID()], deepCopyProcessingLog(log))
	return nil
}

// ListBySession returns every log for the session in boundary order.
func (s *ProcessingLogStore) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*scraping.ProcessingLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.logs[sessionID]
	listed := make([]*scraping.ProcessingLog, 0, len(stored))
	for _, log := range stored {
		listed = append(listed, deepCopyProcessingLog(log))
	}
	sort.Slice(listed, func(i, j int) bool {
		return listed[i].BoundaryIndex() < listed[j].BoundaryIndex()
	})
	return listed, nil
}

func deepCopyProcessingLog(log *scraping.ProcessingLog) *scraping.ProcessingLog {
	creationErrors := make([]scraping.ItemError, len(log.CreationErrors()))
	copy(creationErrors, log.CreationErrors())
	items := make([]scraping.ItemSummary, len(log.Items()))
	copy(items, log.Items())

	return scraping.ReconstructProcessingLog(
		log.ID(),
		log.SessionID(),
		log.Agency(),
		log.BoundaryIndex(),
		log.ItemsFound(),
		log.ItemsCreated(),
		log.ItemsExisting(),
		log.ItemsFailed(),
		creationErrors,
		items,
		log.CreatedAt(),
	)
}
