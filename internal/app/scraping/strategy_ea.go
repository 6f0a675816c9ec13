package scraping

import (
	"fmt"

	"github.com/regscan/enforcement-ingest/internal/config"
	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
	"github.com/regscan/enforcement-ingest/internal/domain/scraping"
)

// eaStrategy holds the date-range behavior shared by both EA strategies. Case
// runs accept an action-type filter; notice runs are pinned to enforcement
// notices.
type eaStrategy struct {
	name               string
	enforcementType    enforcement.Type
	noun               string
	fixedActionTypes   []enforcement.ActionType
	allowedActionTypes map[enforcement.ActionType]bool
}

func newEACaseStrategy() *eaStrategy {
	return &eaStrategy{
		name:            "ea_cases",
		enforcementType: enforcement.TypeCase,
		noun:            "cases",
		allowedActionTypes: map[enforcement.ActionType]bool{
			enforcement.ActionTypeCourtCase: true,
			enforcement.ActionTypeCaution:   true,
		},
	}
}

func newEANoticeStrategy() *eaStrategy {
	return &eaStrategy{
		name:             "ea_notices",
		enforcementType:  enforcement.TypeNotice,
		noun:             "notices",
		fixedActionTypes: []enforcement.ActionType{enforcement.ActionTypeEnforcementNotice},
	}
}

func (s *eaStrategy) Name() string                      { return s.name }
func (s *eaStrategy) Agency() enforcement.Agency        { return enforcement.AgencyEA }
func (s *eaStrategy) EnforcementType() enforcement.Type { return s.enforcementType }
func (s *eaStrategy) Granularity() Granularity          { return GranularityDateRange }

func (s *eaStrategy) ValidateParams(raw RawParams, settings *config.Settings) (*ValidatedParams, error) {
	var fields []scraping.FieldError

	from, ok, err := raw.dateValue("date_from")
	if err != nil {
		fields = append(fields, scraping.FieldError{Field: "date_from", Message: err.Error()})
	} else if !ok {
		fields = append(fields, scraping.FieldError{Field: "date_from", Message: "required"})
	}

	to, ok, err := raw.dateValue("date_to")
	if err != nil {
		fields = append(fields, scraping.FieldError{Field: "date_to", Message: err.Error()})
	} else if !ok {
		fields = append(fields, scraping.FieldError{Field: "date_to", Message: "required"})
	}

	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		fields = append(fields, scraping.FieldError{
			Field:   "date_to",
			Message: fmt.Sprintf("must not precede date_from (%s)", from.Format("2006-01-02")),
		})
	}

	actionTypes := s.fixedActionTypes
	if s.fixedActionTypes == nil {
		actionTypes = []enforcement.ActionType{
			enforcement.ActionTypeCourtCase,
			enforcement.ActionTypeCaution,
		}
		names, ok, err := raw.stringSlice("action_types")
		if err != nil {
			fields = append(fields, scraping.FieldError{Field: "action_types", Message: err.Error()})
		} else if ok {
			actionTypes = actionTypes[:0]
			for _, name := range names {
				at, err := enforcement.ParseActionType(name)
				if err != nil {
					fields = append(fields, scraping.FieldError{Field: "action_types", Message: err.Error()})
					continue
				}
				if !s.allowedActionTypes[at] {
					fields = append(fields, scraping.FieldError{
						Field:   "action_types",
						Message: fmt.Sprintf("action type %q is not valid for %s", at, s.name),
					})
					continue
				}
				actionTypes = append(actionTypes, at)
			}
			if len(actionTypes) == 0 && len(fields) == 0 {
				fields = append(fields, scraping.FieldError{Field: "action_types", Message: "must not be empty"})
			}
		}
	}

	if len(fields) > 0 {
		return nil, scraping.NewValidationError(fields...)
	}

	return &ValidatedParams{
		Agency:          enforcement.AgencyEA,
		EnforcementType: s.enforcementType,
		DateFrom:        from,
		DateTo:          to,
		ActionTypes:     actionTypes,

		NetworkTimeout:       settings.NetworkTimeout,
		MaxConsecutiveErrors: settings.MaxConsecutiveErrors,
		PauseBetweenPages:    settings.PauseBetweenPages,
		BatchSize:            settings.BatchSize,
		ExistingThreshold:    settings.ConsecutiveExistingThreshold,
	}, nil
}

func (s *eaStrategy) NewLocator(params *ValidatedParams) scraping.Locator {
	return scraping.NewDateRange(params.DateFrom, params.DateTo, params.ActionTypes)
}

// CalculateProgress reports items processed against items found. The window is
// fetched per action type, so the estimate climbs in steps.
func (s *eaStrategy) CalculateProgress(session *scraping.Session) float64 {
	counters := session.Counters()
	if counters.ItemsFound() == 0 {
		return 0
	}
	return clampPercent(float64(counters.ItemsProcessed()) / float64(counters.ItemsFound()) * 100)
}

func (s *eaStrategy) FormatProgressDisplay(session *scraping.Session) DisplayCounters {
	return DisplayCounters{
		StrategyName: s.name,
		Position:     session.Locator().Describe(),
		Counters:     displayCounters(session.Snapshot(), s.noun, "batches_processed"),
	}
}
