// Package postgres persists scraping sessions and their processing logs.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
	"github.com/regscan/enforcement-ingest/internal/domain/scraping"
	"github.com/regscan/enforcement-ingest/internal/infra/storage"
)

var _ scraping.SessionRepository = (*SessionStore)(nil)

// SessionStore provides persistent storage for scraping sessions in postgres.
type SessionStore struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

// NewSessionStore creates a session store using the provided connection pool.
func NewSessionStore(pool *pgxpool.Pool, tracer trace.Tracer) *SessionStore {
	return &SessionStore{pool: pool, tracer: tracer}
}

const upsertSessionQuery = `
INSERT INTO scrape_sessions (
	id, agency, enforcement_type, actor, locator, status, failure_reason,
	items_found, items_processed, items_created, items_existing, errors_count, pages_processed,
	started_at, completed_at, last_update
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (id) DO UPDATE SET
	locator = EXCLUDED.locator,
	status = EXCLUDED.status,
	failure_reason = EXCLUDED.failure_reason,
	items_found = EXCLUDED.items_found,
	items_processed = EXCLUDED.items_processed,
	items_created = EXCLUDED.items_created,
	items_existing = EXCLUDED.items_existing,
	errors_count = EXCLUDED.errors_count,
	pages_processed = EXCLUDED.pages_processed,
	completed_at = EXCLUDED.completed_at,
	last_update = EXCLUDED.last_update`

// Save persists the session, inserting or updating as needed.
func (s *SessionStore) Save(ctx context.Context, session *scraping.Session) error {
	return storage.ExecuteAndTrace(ctx, s.tracer, "postgres.save_session", []attribute.KeyValue{
		attribute.String("session_id", session.ID().String()),
		attribute.String("status", string(session.Status())),
	}, func(ctx context.Context) error {
		locator, err := scraping.MarshalLocator(session.Locator())
		if err != nil {
			return fmt.Errorf("marshaling locator: %w", err)
		}

		counters := session.Counters()
		timeline := session.Timeline()
		completedAt := pgtype.Timestamptz{
			Time:  timeline.CompletedAt(),
			Valid: !timeline.CompletedAt().IsZero(),
		}

		_, err = s.pool.Exec(ctx, upsertSessionQuery,
			session.ID(),
			string(session.Agency()),
			string(session.EnforcementType()),
			session.Actor(),
			locator,
			string(session.Status()),
			session.FailureReason(),
			counters.ItemsFound(),
			counters.ItemsProcessed(),
			counters.ItemsCreated(),
			counters.ItemsExisting(),
			counters.ErrorsCount(),
			counters.PagesProcessed(),
			timeline.StartedAt(),
			completedAt,
			timeline.LastUpdate(),
		)
		if err != nil {
			return fmt.Errorf("saving session: %w", err)
		}
		return nil
	})
}

const selectSessionColumns = `
	id, agency, enforcement_type, actor, locator, status, failure_reason,
	items_found, items_processed, items_created, items_existing, errors_count, pages_processed,
	started_at, completed_at, last_update`

// Load retrieves a session by ID. Returns nil without error when no session
// exists.
func (s *SessionStore) Load(ctx context.Context, id uuid.UUID) (*scraping.Session, error) {
	var session *scraping.Session
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.load_session", []attribute.KeyValue{
		attribute.String("session_id", id.String()),
	}, func(ctx context.Context) error {
		row := s.pool.QueryRow(ctx,
			`SELECT `+selectSessionColumns+` FROM scrape_sessions WHERE id = $1`, id)

		loaded, err := scanSession(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("loading session: %w", err)
		}
		session = loaded
		return nil
	})
	return session, err
}

// GetActive returns every session that is pending or running.
func (s *SessionStore) GetActive(ctx context.Context) ([]*scraping.Session, error) {
	var sessions []*scraping.Session
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.get_active_sessions", nil,
		func(ctx context.Context) error {
			rows, err := s.pool.Query(ctx,
				`SELECT `+selectSessionColumns+` FROM scrape_sessions
				 WHERE status = ANY($1) ORDER BY started_at`,
				[]string{string(scraping.StatusPending), string(scraping.StatusRunning)})
			if err != nil {
				return fmt.Errorf("querying active sessions: %w", err)
			}
			defer rows.Close()

			sessions, err = collectSessions(rows)
			return err
		})
	return sessions, err
}

// List returns the most recent sessions, limited by count.
func (s *SessionStore) List(ctx context.Context, limit int) ([]*scraping.Session, error) {
	var sessions []*scraping.Session
	err := storage.ExecuteAndTrace(ctx, s.tracer, "postgres.list_sessions", []attribute.KeyValue{
		attribute.Int("limit", limit),
	}, func(ctx context.Context) error {
		rows, err := s.pool.Query(ctx,
			`SELECT `+selectSessionColumns+` FROM scrape_sessions
			 ORDER BY started_at DESC LIMIT $1`, limit)
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}
		defer rows.Close()

		sessions, err = collectSessions(rows)
		return err
	})
	return sessions, err
}

func collectSessions(rows pgx.Rows) ([]*scraping.Session, error) {
	var sessions []*scraping.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func scanSession(row pgx.Row) (*scraping.Session, error) {
	var (
		id              uuid.UUID
		agency          string
		enforcementType string
		actor           string
		locatorRaw      []byte
		status          string
		failureReason   string

		itemsFound, itemsProcessed, itemsCreated, itemsExisting int
		errorsCount, pagesProcessed                             int

		startedAt   time.Time
		completedAt pgtype.Timestamptz
		lastUpdate  time.Time
	)

	if err := row.Scan(
		&id, &agency, &enforcementType, &actor, &locatorRaw, &status, &failureReason,
		&itemsFound, &itemsProcessed, &itemsCreated, &itemsExisting, &errorsCount, &pagesProcessed,
		&startedAt, &completedAt, &lastUpdate,
	); err != nil {
		return nil, err
	}

	locator, err := scraping.UnmarshalLocator(locatorRaw)
	if err != nil {
		return nil, fmt.Errorf("unmarshaling locator: %w", err)
	}

	var completed time.Time
	if completedAt.Valid {
		completed = completedAt.Time
	}

	return scraping.ReconstructSession(
		id,
		enforcement.Agency(agency),
		enforcement.Type(enforcementType),
		actor,
		locator,
		scraping.Status(status),
		failureReason,
		scraping.ReconstructCounters(itemsFound, itemsProcessed, itemsCreated, itemsExisting, errorsCount, pagesProcessed),
		scraping.ReconstructTimeline(startedAt, completed, lastUpdate),
	), nil
}
