package scraping

import (
	"time"

	"github.com/google/uuid"

	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
)

// ProcessingLog is the immutable audit record for one page or batch of one
// session. It is created once, after every record in its boundary has been
// processed, and never mutated afterward. Logs exist for audit and debugging;
// sessions never resume from them.
type ProcessingLog struct {
	id            uuid.UUID
	sessionID     uuid.UUID
	agency        enforcement.Agency
	boundaryIndex int

	itemsFound    int
	itemsCreated  int
	itemsExisting int
	itemsFailed   int

	creationErrors []ItemError
	items          []ItemSummary

	createdAt time.Time
}

// NewProcessingLog creates the audit record for a completed boundary.
func NewProcessingLog(
	sessionID uuid.UUID,
	agency enforcement.Agency,
	boundaryIndex int,
	result *BoundaryResult,
) *ProcessingLog {
	return &ProcessingLog{
		id:             uuid.New(),
		sessionID:      sessionID,
		agency:         agency,
		boundaryIndex:  boundaryIndex,
		itemsFound:     result.ItemsFound,
		itemsCreated:   result.ItemsCreated,
		itemsExisting:  result.ItemsExisting,
		itemsFailed:    result.ItemsFailed,
		creationErrors: result.Errors,
		items:          result.Items,
		createdAt:      time.Now(),
	}
}

// ReconstructProcessingLog creates a ProcessingLog from persisted data.
func ReconstructProcessingLog(
	id uuid.UUID,
	sessionID uuid.UUID,
	agency enforcement.Agency,
	boundaryIndex int,
	itemsFound, itemsCreated, itemsExisting, itemsFailed int,
	creationErrors []ItemError,
	items []ItemSummary,
	createdAt time.Time,
) *ProcessingLog {
	return &ProcessingLog{
		id:             id,
		sessionID:      sessionID,
		agency:         agency,
		boundaryIndex:  boundaryIndex,
		itemsFound:     itemsFound,
		itemsCreated:   itemsCreated,
		itemsExisting:  itemsExisting,
		itemsFailed:    itemsFailed,
		creationErrors: creationErrors,
		items:          items,
		createdAt:      createdAt,
	}
}

// ID returns the log identifier.
func (l *ProcessingLog) ID() uuid.UUID { return l.id }

// SessionID returns the session this boundary belonged to.
func (l *ProcessingLog) SessionID() uuid.UUID { return l.sessionID }

// Agency returns the regulator scraped in this boundary.
func (l *ProcessingLog) Agency() enforcement.Agency { return l.agency }

// BoundaryIndex returns the page number or batch index of this boundary.
func (l *ProcessingLog) BoundaryIndex() int { return l.boundaryIndex }

// ItemsFound returns how many records the boundary yielded.
func (l *ProcessingLog) ItemsFound() int { return l.itemsFound }

// ItemsCreated returns how many new records this boundary persisted.
func (l *ProcessingLog) ItemsCreated() int { return l.itemsCreated }

// ItemsExisting returns how many records were already ingested.
func (l *ProcessingLog) ItemsExisting() int { return l.itemsExisting }

// ItemsFailed returns how many records failed in this boundary.
func (l *ProcessingLog) ItemsFailed() int { return l.itemsFailed }

// CreationErrors returns the per-record failure details.
func (l *ProcessingLog) CreationErrors() []ItemError { return l.creationErrors }

// Items returns the compact summaries of every scraped record.
func (l *ProcessingLog) Items() []ItemSummary { return l.items }

// CreatedAt returns when the boundary completed.
func (l *ProcessingLog) CreatedAt() time.Time { return l.createdAt }
