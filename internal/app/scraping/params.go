package scraping

import (
	"fmt"
	"strconv"
	"time"

	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
)

// RawParams is the untyped run configuration supplied by callers. Values may
// arrive as strings (form input) or as native types; strategies coerce and
// validate them.
type RawParams map[string]any

// stringValue coerces the value at key to a string. The second return reports
// whether the key was present.
func (p RawParams) stringValue(key string) (string, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	default:
		return fmt.Sprintf("%v", val), true
	}
}

// intValue coerces the value at key to an int. The error reports values that
// are present but not integer-like.
func (p RawParams) intValue(key string) (int, bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch val := v.(type) {
	case int:
		return val, true, nil
	case int64:
		return int(val), true, nil
	case float64:
		return int(val), true, nil
	case string:
		n, err := strconv.Atoi(val)
		if err != nil {
			return 0, true, fmt.Errorf("not an integer: %q", val)
		}
		return n, true, nil
	}
	return 0, true, fmt.Errorf("unsupported type %T", v)
}

// stringSlice coerces the value at key to a string slice. Scalar strings are
// treated as a single-element slice.
func (p RawParams) stringSlice(key string) ([]string, bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, false, nil
	}
	switch val := v.(type) {
	case []string:
		return val, true, nil
	case string:
		return []string{val}, true, nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, true, fmt.Errorf("element %v is not a string", item)
			}
			out = append(out, s)
		}
		return out, true, nil
	}
	return nil, true, fmt.Errorf("unsupported type %T", v)
}

// dateValue coerces the value at key to a date in ISO 8601 form.
func (p RawParams) dateValue(key string) (time.Time, bool, error) {
	s, ok := p.stringValue(key)
	if !ok {
		return time.Time{}, false, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, true, fmt.Errorf("not a date (want YYYY-MM-DD): %q", s)
	}
	return t, true, nil
}

// ValidatedParams is a strategy's normalized, defaulted and range-checked run
// configuration. It is carried alongside the session through the execution
// loop and never persisted on its own.
type ValidatedParams struct {
	Agency          enforcement.Agency
	EnforcementType enforcement.Type
	Actor           string

	// Page-based collection.
	StartPage int
	MaxPages  int
	Database  enforcement.HSEDatabase
	Country   string

	// Date-range collection.
	DateFrom    time.Time
	DateTo      time.Time
	ActionTypes []enforcement.ActionType

	// Ambient limits, filled from the active configuration.
	NetworkTimeout       time.Duration
	MaxConsecutiveErrors int
	PauseBetweenPages    time.Duration
	BatchSize            int
	ExistingThreshold    int
}
