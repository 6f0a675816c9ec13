package scraping

import "time"

// ItemSummary is the compact audit form of one scraped record, captured in the
// processing log for a boundary.
type ItemSummary struct {
	NaturalKey     string    `json:"natural_key"`
	SubjectName    string    `json:"subject_name"`
	Date           time.Time `json:"date"`
	MonetaryAmount *float64  `json:"monetary_amount,omitempty"`
}

// ItemError captures why one record failed to be created.
type ItemError struct {
	NaturalKey string `json:"natural_key"`
	Message    string `json:"message"`
}

// BoundaryResult accumulates the outcomes of one page or batch while the
// execution loop processes it. It feeds both the processing log written at the
// boundary and the all-exist stop heuristic.
type BoundaryResult struct {
	ItemsFound    int
	ItemsCreated  int
	ItemsExisting int
	ItemsFailed   int

	Errors []ItemError
	Items  []ItemSummary
}

// Record accumulates one record outcome into the boundary tally. itemErr is
// only consulted for error outcomes.
func (r *BoundaryResult) Record(outcome Outcome, item ItemSummary, itemErr *ItemError) {
	r.ItemsFound++
	switch outcome {
	case OutcomeCreated:
		r.ItemsCreated++
	case OutcomeExisting:
		r.ItemsExisting++
	case OutcomeError:
		r.ItemsFailed++
		if itemErr != nil {
			r.Errors = append(r.Errors, *itemErr)
		}
	}
	r.Items = append(r.Items, item)
}

// AllExisting reports whether every processed record in this boundary was
// already ingested. Regulators re-publish already-seen listings; an all-exist
// boundary signals the rest of the walk would be a pointless re-scrape.
func (r *BoundaryResult) AllExisting() bool {
	return r.ItemsFound > 0 && r.ItemsExisting == r.ItemsFound
}
