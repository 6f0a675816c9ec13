package scraping

import "encoding/json"

// Outcome tags the result of ingesting one enforcement record.
type Outcome string

const (
	// OutcomeCreated indicates a brand new record was persisted.
	OutcomeCreated Outcome = "created"

	// OutcomeExisting indicates the record's natural key was already ingested.
	// Duplicates are expected when re-scraping and are not errors.
	OutcomeExisting Outcome = "existing"

	// OutcomeError indicates the record could not be fetched or persisted.
	OutcomeError Outcome = "error"
)

// Counters is a value object tracking a session's aggregate progress. Every
// counter is monotonically non-decreasing while the session runs, and the
// invariant itemsProcessed == itemsCreated + itemsExisting + errorsCount holds
// after every mutation.
type Counters struct {
	itemsFound     int
	itemsProcessed int
	itemsCreated   int
	itemsExisting  int
	errorsCount    int
	pagesProcessed int
}

// NewCounters creates a Counters instance with zeroed values.
func NewCounters() *Counters { return new(Counters) }

// ReconstructCounters creates a Counters instance from persisted data.
func ReconstructCounters(found, processed, created, existing, errs, pages int) *Counters {
	return &Counters{
		itemsFound:     found,
		itemsProcessed: processed,
		itemsCreated:   created,
		itemsExisting:  existing,
		errorsCount:    errs,
		pagesProcessed: pages,
	}
}

// ItemsFound returns how many records have been encountered.
func (c *Counters) ItemsFound() int { return c.itemsFound }

// ItemsProcessed returns how many records have completed the pipeline.
func (c *Counters) ItemsProcessed() int { return c.itemsProcessed }

// ItemsCreated returns how many new records were persisted.
func (c *Counters) ItemsCreated() int { return c.itemsCreated }

// ItemsExisting returns how many records were already ingested.
func (c *Counters) ItemsExisting() int { return c.itemsExisting }

// ErrorsCount returns how many records failed to fetch or persist.
func (c *Counters) ErrorsCount() int { return c.errorsCount }

// PagesProcessed returns how many page or batch boundaries have completed.
func (c *Counters) PagesProcessed() int { return c.pagesProcessed }

// RecordOutcome bumps itemsFound, itemsProcessed and the counter matching the
// outcome by one each. Returns an error for unrecognized outcomes, leaving all
// counters untouched.
func (c *Counters) RecordOutcome(outcome Outcome) error {
	switch outcome {
	case OutcomeCreated:
		c.itemsCreated++
	case OutcomeExisting:
		c.itemsExisting++
	case OutcomeError:
		c.errorsCount++
	default:
		return newInvalidOutcomeError(outcome)
	}

	c.itemsFound++
	c.itemsProcessed++
	return nil
}

// IncrementPagesProcessed bumps the page/batch boundary counter by one.
func (c *Counters) IncrementPagesProcessed() { c.pagesProcessed++ }

// Consistent reports whether processed == created + existing + errors.
func (c *Counters) Consistent() bool {
	return c.itemsProcessed == c.itemsCreated+c.itemsExisting+c.errorsCount
}

// MarshalJSON serializes Counters with the unified counter names used across
// agencies.
func (c *Counters) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		ItemsFound     int `json:"items_found"`
		ItemsProcessed int `json:"items_processed"`
		ItemsCreated   int `json:"items_created"`
		ItemsExisting  int `json:"items_existing"`
		ErrorsCount    int `json:"errors_count"`
		PagesProcessed int `json:"batches_or_pages_processed"`
	}{
		ItemsFound:     c.itemsFound,
		ItemsProcessed: c.itemsProcessed,
		ItemsCreated:   c.itemsCreated,
		ItemsExisting:  c.itemsExisting,
		ErrorsCount:    c.errorsCount,
		PagesProcessed: c.pagesProcessed,
	})
}

// UnmarshalJSON deserializes JSON into Counters.
func (c *Counters) UnmarshalJSON(data []byte) error {
	aux := &struct {
		ItemsFound     int `json:"items_found"`
		ItemsProcessed int `json:"items_processed"`
		ItemsCreated   int `json:"items_created"`
		ItemsExisting  int `json:"items_existing"`
		ErrorsCount    int `json:"errors_count"`
		PagesProcessed int `json:"batches_or_pages_processed"`
	}{}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	c.itemsFound = aux.ItemsFound
	c.itemsProcessed = aux.ItemsProcessed
	c.itemsCreated = aux.ItemsCreated
	c.itemsExisting = aux.ItemsExisting
	c.errorsCount = aux.ErrorsCount
	c.pagesProcessed = aux.PagesProcessed

	return nil
}
