package scraping

import (
	"fmt"

	"github.com/regscan/enforcement-ingest/internal/config"
	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
	"github.com/regscan/enforcement-ingest/internal/domain/scraping"
)

// hseStrategy holds the page-walk behavior shared by both HSE strategies.
// Case and notice runs differ only in which registers they may target and
// in the vocabulary used for progress counters.
type hseStrategy struct {
	name             string
	enforcementType  enforcement.Type
	noun             string
	defaultDatabase  enforcement.HSEDatabase
	allowedDatabases map[enforcement.HSEDatabase]bool
}

func newHSECaseStrategy() *hseStrategy {
	return &hseStrategy{
		name:            "hse_cases",
		enforcementType: enforcement.TypeCase,
		noun:            "cases",
		defaultDatabase: enforcement.HSEDatabaseConvictions,
		allowedDatabases: map[enforcement.HSEDatabase]bool{
			enforcement.HSEDatabaseConvictions: true,
			enforcement.HSEDatabaseAppeals:     true,
		},
	}
}

func newHSENoticeStrategy() *hseStrategy {
	return &hseStrategy{
		name:            "hse_notices",
		enforcementType: enforcement.TypeNotice,
		noun:            "notices",
		defaultDatabase: enforcement.HSEDatabaseNotices,
		allowedDatabases: map[enforcement.HSEDatabase]bool{
			enforcement.HSEDatabaseNotices: true,
		},
	}
}

func (s *hseStrategy) Name() string                      { return s.name }
func (s *hseStrategy) Agency() enforcement.Agency        { return enforcement.AgencyHSE }
func (s *hseStrategy) EnforcementType() enforcement.Type { return s.enforcementType }
func (s *hseStrategy) Granularity() Granularity          { return GranularityPage }

func (s *hseStrategy) ValidateParams(raw RawParams, settings *config.Settings) (*ValidatedParams, error) {
	var fields []scraping.FieldError

	startPage := 1
	if n, ok, err := raw.intValue("start_page"); err != nil {
		fields = append(fields, scraping.FieldError{Field: "start_page", Message: err.Error()})
	} else if ok {
		startPage = n
	}
	if startPage < 1 {
		fields = append(fields, scraping.FieldError{
			Field:   "start_page",
			Message: fmt.Sprintf("must be a positive integer, got %d", startPage),
		})
	}

	maxPages := settings.MaxPagesPerSession
	if n, ok, err := raw.intValue("max_pages"); err != nil {
		fields = append(fields, scraping.FieldError{Field: "max_pages", Message: err.Error()})
	} else if ok {
		maxPages = n
	}
	if maxPages < 1 {
		fields = append(fields, scraping.FieldError{
			Field:   "max_pages",
			Message: fmt.Sprintf("must be a positive integer, got %d", maxPages),
		})
	}

	database := s.defaultDatabase
	if name, ok := raw.stringValue("database"); ok {
		db, err := enforcement.ParseHSEDatabase(name)
		if err != nil {
			fields = append(fields, scraping.FieldError{Field: "database", Message: err.Error()})
		} else if !s.allowedDatabases[db] {
			fields = append(fields, scraping.FieldError{
				Field:   "database",
				Message: fmt.Sprintf("database %q is not valid for %s", db, s.name),
			})
		} else {
			database = db
		}
	}

	country, _ := raw.stringValue("country")

	if len(fields) > 0 {
		return nil, scraping.NewValidationError(fields...)
	}

	return &ValidatedParams{
		Agency:          enforcement.AgencyHSE,
		EnforcementType: s.enforcementType,
		StartPage:       startPage,
		MaxPages:        maxPages,
		Database:        database,
		Country:         country,

		NetworkTimeout:       settings.NetworkTimeout,
		MaxConsecutiveErrors: settings.MaxConsecutiveErrors,
		PauseBetweenPages:    settings.PauseBetweenPages,
		BatchSize:            settings.BatchSize,
		ExistingThreshold:    settings.ConsecutiveExistingThreshold,
	}, nil
}

func (s *hseStrategy) NewLocator(params *ValidatedParams) scraping.Locator {
	return scraping.NewPageCursor(params.StartPage, params.MaxPages, params.Database, params.Country)
}

// CalculateProgress reports pages walked against the page budget. The estimate
// is coarse: the register may run out of content before the budget is spent.
func (s *hseStrategy) CalculateProgress(session *scraping.Session) float64 {
	cursor, ok := session.Locator().(*scraping.PageCursor)
	if !ok || cursor.MaxPages() <= 0 {
		return 0
	}
	done := session.Counters().PagesProcessed()
	return clampPercent(float64(done) / float64(cursor.MaxPages()) * 100)
}

func (s *hseStrategy) FormatProgressDisplay(session *scraping.Session) DisplayCounters {
	return DisplayCounters{
		StrategyName: s.name,
		Position:     session.Locator().Describe(),
		Counters:     displayCounters(session.Snapshot(), s.noun, "pages_processed"),
	}
}
