package scraping

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
)

// LocatorKind tags the two collection models regulators expose.
type LocatorKind string

const (
	// LocatorKindPage drives paginated register walks (HSE).
	LocatorKindPage LocatorKind = "page"

	// LocatorKindDateRange drives date-window filtered collection (EA).
	LocatorKindDateRange LocatorKind = "date_range"
)

// Locator is the position descriptor driving collection for one session:
// either a page cursor or a date range plus action-type filter. Dispatch is by
// tagged variant; there is no behavior shared between the two shapes beyond
// identification and logging.
type Locator interface {
	// Kind returns the locator's collection model.
	Kind() LocatorKind

	// Describe returns a human-readable position for logging.
	Describe() string
}

// PageCursor locates a page-based session within a paginated register.
type PageCursor struct {
	startPage   int
	currentPage int
	maxPages    int
	database    enforcement.HSEDatabase
	country     string
}

// NewPageCursor creates a cursor positioned at startPage.
func NewPageCursor(startPage, maxPages int, database enforcement.HSEDatabase, country string) *PageCursor {
	return &PageCursor{
		startPage:   startPage,
		currentPage: startPage,
		maxPages:    maxPages,
		database:    database,
		country:     country,
	}
}

// ReconstructPageCursor creates a cursor from persisted data.
func ReconstructPageCursor(startPage, currentPage, maxPages int, database enforcement.HSEDatabase, country string) *PageCursor {
	return &PageCursor{
		startPage:   startPage,
		currentPage: currentPage,
		maxPages:    maxPages,
		database:    database,
		country:     country,
	}
}

// Kind returns LocatorKindPage.
func (p *PageCursor) Kind() LocatorKind { return LocatorKindPage }

// Describe returns the cursor position for logging.
func (p *PageCursor) Describe() string {
	return fmt.Sprintf("%s page %d (start %d, max %d)", p.database, p.currentPage, p.startPage, p.maxPages)
}

// StartPage returns the first page of the walk.
func (p *PageCursor) StartPage() int { return p.startPage }

// CurrentPage returns the page the next list fetch will target.
func (p *PageCursor) CurrentPage() int { return p.currentPage }

// MaxPages returns the page budget for the session.
func (p *PageCursor) MaxPages() int { return p.maxPages }

// Database returns the HSE register being walked.
func (p *PageCursor) Database() enforcement.HSEDatabase { return p.database }

// Country returns the optional country filter.
func (p *PageCursor) Country() string { return p.country }

// Advance moves the cursor to the next page.
func (p *PageCursor) Advance() { p.currentPage++ }

// DateRange locates a range-based session: a date window plus the action types
// to collect within it.
type DateRange struct {
	from        time.Time
	to          time.Time
	actionTypes []enforcement.ActionType
}

// NewDateRange creates a date-range locator.
func NewDateRange(from, to time.Time, actionTypes []enforcement.ActionType) *DateRange {
	return &DateRange{from: from, to: to, actionTypes: actionTypes}
}

// Kind returns LocatorKindDateRange.
func (d *DateRange) Kind() LocatorKind { return LocatorKindDateRange }

// Describe returns the range position for logging.
func (d *DateRange) Describe() string {
	return fmt.Sprintf("%s..%s (%d action types)",
		d.from.Format("2006-01-02"), d.to.Format("2006-01-02"), len(d.actionTypes))
}

// From returns the inclusive start of the window.
func (d *DateRange) From() time.Time { return d.from }

// To returns the inclusive end of the window.
func (d *DateRange) To() time.Time { return d.to }

// ActionTypes returns the action-type filter.
func (d *DateRange) ActionTypes() []enforcement.ActionType { return d.actionTypes }

// ForActionType narrows the range to a single action type. The execution loop
// uses this to issue one list fetch per action type.
func (d *DateRange) ForActionType(at enforcement.ActionType) *DateRange {
	return &DateRange{from: d.from, to: d.to, actionTypes: []enforcement.ActionType{at}}
}

// locatorEnvelope is the kind-tagged wire form used when persisting locators.
type locatorEnvelope struct {
	Kind LocatorKind `json:"kind"`

	StartPage   int                     `json:"start_page,omitempty"`
	CurrentPage int                     `json:"current_page,omitempty"`
	MaxPages    int                     `json:"max_pages,omitempty"`
	Database    enforcement.HSEDatabase `json:"database,omitempty"`
	Country     string                  `json:"country,omitempty"`

	DateFrom    time.Time                `json:"date_from,omitempty"`
	DateTo      time.Time                `json:"date_to,omitempty"`
	ActionTypes []enforcement.ActionType `json:"action_types,omitempty"`
}

// MarshalLocator serializes a locator for persistence.
func MarshalLocator(loc Locator) ([]byte, error) {
	switch l := loc.(type) {
	case *PageCursor:
		return json.Marshal(locatorEnvelope{
			Kind:        LocatorKindPage,
			StartPage:   l.startPage,
			CurrentPage: l.currentPage,
			MaxPages:    l.maxPages,
			Database:    l.database,
			Country:     l.country,
		})
	case *DateRange:
		return json.Marshal(locatorEnvelope{
			Kind:        LocatorKindDateRange,
			DateFrom:    l.from,
			DateTo:      l.to,
			ActionTypes: l.actionTypes,
		})
	}
	return nil, fmt.Errorf("unknown locator type %T", loc)
}

// UnmarshalLocator deserializes a persisted locator.
func UnmarshalLocator(data []byte) (Locator, error) {
	var env locatorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	switch env.Kind {
	case LocatorKindPage:
		return ReconstructPageCursor(env.StartPage, env.CurrentPage, env.MaxPages, env.Database, env.Country), nil
	case LocatorKindDateRange:
		return NewDateRange(env.DateFrom, env.DateTo, env.ActionTypes), nil
	}
	return nil, fmt.Errorf("unknown locator kind %q", env.Kind)
}
