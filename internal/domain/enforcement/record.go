package enforcement

import (
	"time"

	"github.com/google/uuid"
)

// RawSummary is the cheap list-stage representation of one enforcement record.
// It carries just enough to decide whether a detail fetch is worthwhile and to
// address that fetch. Summaries are transient and never persisted.
type RawSummary struct {
	Agency          Agency
	EnforcementType Type

	// NaturalKey is the regulator-assigned identifier (case number or notice
	// number). Summaries without one are skipped by the execution loop.
	NaturalKey string

	SubjectName string
	Date        time.Time
	ActionType  ActionType

	// DetailURL addresses the enrichment fetch for this summary.
	DetailURL string
}

// Record is the fully enriched representation of one enforcement record,
// produced by the detail fetch stage and handed to the upsert pipeline. The
// natural key is unique per agency; re-scraping the same listing must resolve
// to the already-ingested record.
type Record struct {
	ID              uuid.UUID
	Agency          Agency
	EnforcementType Type
	NaturalKey      string
	SubjectName     string
	Date            time.Time
	ActionType      ActionType

	// MonetaryAmount holds the fine or penalty in pounds when the record
	// carries one. Nil for notices and unpenalized outcomes.
	MonetaryAmount *float64

	// Description summarizes the breach or the notice requirements.
	Description string

	// Region is the regulator-reported location, e.g. the HSE country filter
	// value or the EA area name.
	Region string

	DetailURL    string
	LastSyncedAt time.Time
}

// NewRecord creates an enriched record from a summary plus the detail-stage
// fields. The repository assigns LastSyncedAt on create.
func NewRecord(summary RawSummary) *Record {
	return &Record{
		ID:              uuid.New(),
		Agency:          summary.Agency,
		EnforcementType: summary.EnforcementType,
		NaturalKey:      summary.NaturalKey,
		SubjectName:     summary.SubjectName,
		Date:            summary.Date,
		ActionType:      summary.ActionType,
		DetailURL:       summary.DetailURL,
	}
}
