package scraping

import (
	"context"

	"github.com/google/uuid"

	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
)

// SessionRepository provides persistent storage for scraping sessions.
type SessionRepository interface {
	// Save persists the session, inserting or updating as needed.
	Save(ctx context.Context, session *Session) error

	// Load retrieves a session by ID. Returns nil without error when no
	// session exists.
	Load(ctx context.Context, id uuid.UUID) (*Session, error)

	// GetActive returns every session that is pending or running.
	GetActive(ctx context.Context) ([]*Session, error)

	// List returns the most recent sessions, limited by count.
	List(ctx context.Context, limit int) ([]*Session, error)
}

// ProcessingLogRepository provides persistent storage for the immutable
// per-boundary audit records.
type ProcessingLogRepository interface {
	// Save persists a processing log. Logs are insert-only.
	Save(ctx context.Context, log *ProcessingLog) error

	// ListBySession returns a session's logs ordered by boundary index.
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*ProcessingLog, error)
}

// RecordFetcher is the two-stage network capability for a single agency:
// a cheap list enumeration followed by per-record detail enrichment. Fetch
// errors are opaque to the engine and surface as NetworkError.
type RecordFetcher interface {
	// List fetches the record summaries at the locator's current position:
	// one page for page cursors, one action type's matching set for narrowed
	// date ranges.
	List(ctx context.Context, locator Locator) ([]enforcement.RawSummary, error)

	// Detail fetches the full record behind a summary.
	Detail(ctx context.Context, summary enforcement.RawSummary) (*enforcement.Record, error)
}

// FetcherFactory resolves the RecordFetcher for an agency and enforcement
// type.
type FetcherFactory interface {
	FetcherFor(agency enforcement.Agency, enforcementType enforcement.Type) (RecordFetcher, error)
}
