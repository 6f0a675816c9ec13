// Package enforcement defines the regulatory enforcement records the scraping
// engine produces and the agencies it collects them from.
package enforcement

import "fmt"

// Agency identifies a regulator whose published enforcement records we ingest.
type Agency string

const (
	// AgencyHSE is the Health and Safety Executive. Its public registers are
	// paginated HTML databases.
	AgencyHSE Agency = "hse"

	// AgencyEA is the Environment Agency. Its enforcement actions are exposed
	// through a date-range filtered API.
	AgencyEA Agency = "ea"
)

// ParseAgency validates and converts a raw agency identifier.
func ParseAgency(s string) (Agency, error) {
	switch Agency(s) {
	case AgencyHSE, AgencyEA:
		return Agency(s), nil
	}
	return "", fmt.Errorf("unknown agency %q", s)
}

// Type distinguishes the two kinds of enforcement record a regulator publishes.
type Type string

const (
	// TypeCase covers prosecutions: convictions and appeal outcomes.
	TypeCase Type = "case"

	// TypeNotice covers enforcement notices served on duty holders.
	TypeNotice Type = "notice"
)

// ParseType validates and converts a raw enforcement type identifier.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeCase, TypeNotice:
		return Type(s), nil
	}
	return "", fmt.Errorf("unknown enforcement type %q", s)
}

// ActionType narrows a date-range collection to a class of enforcement action.
type ActionType string

const (
	ActionTypeCourtCase         ActionType = "court_case"
	ActionTypeCaution           ActionType = "caution"
	ActionTypeEnforcementNotice ActionType = "enforcement_notice"
)

// ParseActionType validates and converts a raw action type identifier.
func ParseActionType(s string) (ActionType, error) {
	switch ActionType(s) {
	case ActionTypeCourtCase, ActionTypeCaution, ActionTypeEnforcementNotice:
		return ActionType(s), nil
	}
	return "", fmt.Errorf("unknown action type %q", s)
}

// HSEDatabase selects which of the HSE public registers a page-based session
// walks.
type HSEDatabase string

const (
	HSEDatabaseConvictions HSEDatabase = "convictions"
	HSEDatabaseAppeals     HSEDatabase = "appeals"
	HSEDatabaseNotices     HSEDatabase = "notices"
)

// ParseHSEDatabase validates and converts a raw HSE database identifier.
func ParseHSEDatabase(s string) (HSEDatabase, error) {
	switch HSEDatabase(s) {
	case HSEDatabaseConvictions, HSEDatabaseAppeals, HSEDatabaseNotices:
		return HSEDatabase(s), nil
	}
	return "", fmt.Errorf("unknown HSE database %q", s)
}
