package scraping

import (
	"encoding/json"
	"time"
)

// TimeProvider abstracts time for deterministic tests.
type TimeProvider interface {
	Now() time.Time
}

type realTimeProvider struct{}

func (realTimeProvider) Now() time.Time { return time.Now() }

// Timeline is a value object that tracks the temporal aspects of a session:
// when it started, when it reached a terminal status, and when it was last
// mutated. Durations are derived from these timestamps.
type Timeline struct {
	startedAt    time.Time
	completedAt  time.Time
	lastUpdate   time.Time
	timeProvider TimeProvider
}

// NewTimeline creates a new Timeline with the provided TimeProvider. Both
// startedAt and lastUpdate are initialized to the current time.
func NewTimeline(timeProvider TimeProvider) *Timeline {
	now := timeProvider.Now()
	return &Timeline{
		startedAt:    now,
		lastUpdate:   now,
		timeProvider: timeProvider,
	}
}

// ReconstructTimeline creates a Timeline from persisted timestamp data.
func ReconstructTimeline(startedAt, completedAt, lastUpdate time.Time) *Timeline {
	return &Timeline{
		startedAt:    startedAt,
		completedAt:  completedAt,
		lastUpdate:   lastUpdate,
		timeProvider: realTimeProvider{},
	}
}

// StartedAt returns when the session was created.
func (t *Timeline) StartedAt() time.Time { return t.startedAt }

// CompletedAt returns when the session reached a terminal status, or the zero
// time if it has not.
func (t *Timeline) CompletedAt() time.Time { return t.completedAt }

// LastUpdate returns the time of the most recent mutation.
func (t *Timeline) LastUpdate() time.Time { return t.lastUpdate }

// MarkCompleted records the terminal timestamp and refreshes lastUpdate.
func (t *Timeline) MarkCompleted() {
	t.completedAt = t.timeProvider.Now()
	t.UpdateLastUpdate()
}

// UpdateLastUpdate sets the lastUpdate field to the current time.
func (t *Timeline) UpdateLastUpdate() { t.lastUpdate = t.timeProvider.Now() }

// Duration reports how long the session has been (or was) active.
func (t *Timeline) Duration() time.Duration {
	if !t.completedAt.IsZero() {
		return t.completedAt.Sub(t.startedAt)
	}
	return t.lastUpdate.Sub(t.startedAt)
}

// MarshalJSON serializes Timeline to JSON.
func (t *Timeline) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		StartedAt   time.Time `json:"started_at"`
		CompletedAt time.Time `json:"completed_at"`
		LastUpdate  time.Time `json:"last_update"`
	}{
		StartedAt:   t.startedAt,
		CompletedAt: t.completedAt,
		LastUpdate:  t.lastUpdate,
	})
}

// UnmarshalJSON deserializes JSON into Timeline.
func (t *Timeline) UnmarshalJSON(data []byte) error {
	aux := &struct {
		StartedAt   time.Time `json:"started_at"`
		CompletedAt time.Time `json:"completed_at"`
		LastUpdate  time.Time `json:"last_update"`
	}{}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	t.startedAt = aux.StartedAt
	t.completedAt = aux.CompletedAt
	t.lastUpdate = aux.LastUpdate
	t.timeProvider = realTimeProvider{}

	return nil
}
