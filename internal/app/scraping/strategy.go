package scraping

import (
	"fmt"

	"github.com/regscan/enforcement-ingest/internal/config"
	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
	"github.com/regscan/enforcement-ingest/internal/domain/scraping"
)

// Granularity identifies the collection loop a strategy drives: sequential
// numbered pages or a single date window partitioned by action type.
type Granularity string

const (
	GranularityPage      Granularity = "page"
	GranularityDateRange Granularity = "date_range"
)

// DisplayCounters is the agency-facing progress view for a session. Counter
// keys use the strategy's own vocabulary (cases vs notices) rather than the
// internal counter names.
type DisplayCounters struct {
	StrategyName string
	Position     string
	Counters     map[string]int
}

// Strategy encapsulates everything that differs between agencies and
// enforcement types: parameter validation, locator construction and how
// progress is reported. The execution loop itself is shared.
type Strategy interface {
	Name() string
	Agency() enforcement.Agency
	EnforcementType() enforcement.Type
	Granularity() Granularity

	// ValidateParams normalizes raw caller input into ValidatedParams,
	// applying defaults and collecting every violation into a single
	// ValidationError.
	ValidateParams(raw RawParams, settings *config.Settings) (*ValidatedParams, error)

	// NewLocator builds the initial position marker for a session.
	NewLocator(params *ValidatedParams) scraping.Locator

	// CalculateProgress estimates completion as a percentage in [0, 100].
	CalculateProgress(session *scraping.Session) float64

	// FormatProgressDisplay renders counters under the strategy's own
	// vocabulary for progress consumers.
	FormatProgressDisplay(session *scraping.Session) DisplayCounters
}

type strategyKey struct {
	agency enforcement.Agency
	kind   enforcement.Type
}

// Registry resolves the strategy for an (agency, enforcement type) pair.
type Registry struct {
	strategies map[strategyKey]Strategy
}

// NewRegistry builds a registry holding every supported strategy.
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[strategyKey]Strategy)}
	r.register(newHSECaseStrategy())
	r.register(newHSENoticeStrategy())
	r.register(newEACaseStrategy())
	r.register(newEANoticeStrategy())
	return r
}

func (r *Registry) register(s Strategy) {
	r.strategies[strategyKey{agency: s.Agency(), kind: s.EnforcementType()}] = s
}

// Lookup returns the strategy for the pair, or a ValidationError when the
// combination is not supported.
func (r *Registry) Lookup(agency enforcement.Agency, kind enforcement.Type) (Strategy, error) {
	s, ok := r.strategies[strategyKey{agency: agency, kind: kind}]
	if !ok {
		return nil, scraping.NewValidationError(scraping.FieldError{
			Field:   "agency",
			Message: fmt.Sprintf("no strategy for agency %q with enforcement type %q", agency, kind),
		})
	}
	return s, nil
}

// clampPercent bounds a progress estimate to [0, 100].
func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// displayCounters renders the session counters using the given noun for the
// per-item counters and label for the boundary counter.
func displayCounters(snap scraping.Snapshot, noun, boundaryLabel string) map[string]int {
	return map[string]int{
		noun + "_found":    snap.ItemsFound,
		noun + "_created":  snap.ItemsCreated,
		noun + "_existing": snap.ItemsExisting,
		"errors":           snap.ErrorsCount,
		boundaryLabel:      snap.PagesProcessed,
	}
}
