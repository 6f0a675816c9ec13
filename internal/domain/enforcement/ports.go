package enforcement

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrDuplicateRecord reports a natural-key collision on create. It is not a
// failure: the upsert pipeline classifies the colliding record as existing and
// refreshes its sync timestamp instead.
var ErrDuplicateRecord = errors.New("enforcement record already exists")

// RecordRepository is the durable store for enforcement records. The scraping
// engine relies on its atomic create-or-conflict semantics: Create must either
// persist the record or return ErrDuplicateRecord when the (agency, natural
// key) pair is already present, never both.
type RecordRepository interface {
	// Create persists a new enforcement record. Returns ErrDuplicateRecord
	// (possibly wrapped) on a natural-key collision.
	Create(ctx context.Context, record *Record) error

	// FindByNaturalKey retrieves the record with the given regulator-assigned
	// identifier. Returns nil without error when no record exists.
	FindByNaturalKey(ctx context.Context, agency Agency, naturalKey string) (*Record, error)

	// TouchLastSynced refreshes the record's last-synced timestamp, marking it
	// as seen by the current scraping run.
	TouchLastSynced(ctx context.Context, id uuid.UUID) error
}
