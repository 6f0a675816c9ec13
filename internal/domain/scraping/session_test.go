package scraping

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
)

// Mock implementation for tests.
type mockTimeProvider struct{ current time.Time }

func (m *mockTimeProvider) Now() time.Time { return m.current }

func (m *mockTimeProvider) Advance(d time.Duration) { m.current = m.current.Add(d) }

func newTestPageSession(t *testing.T) *Session {
	t.Helper()
	cursor := NewPageCursor(1, 5, enforcement.HSEDatabaseConvictions, "")
	return NewSession(enforcement.AgencyHSE, enforcement.TypeCase, cursor, "tester")
}

// TestNewSession checks that a new session has the expected default fields.
func TestNewSession(t *testing.T) {
	tp := &mockTimeProvider{current: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	cursor := NewPageCursor(2, 10, enforcement.HSEDatabaseAppeals, "")
	s := NewSession(enforcement.AgencyHSE, enforcement.TypeCase, cursor, "tester", WithSessionTimeProvider(tp))

	require.NotEqual(t, s.ID().String(), "00000000-0000-0000-0000-000000000000")
	require.Equal(t, enforcement.AgencyHSE, s.Agency())
	require.Equal(t, enforcement.TypeCase, s.EnforcementType())
	require.Equal(t, "tester", s.Actor())
	require.Equal(t, StatusPending, s.Status())
	require.Empty(t, s.FailureReason())
	require.NotNil(t, s.Counters())
	require.Equal(t, 0, s.Counters().ItemsProcessed())
	require.Equal(t, tp.Now(), s.Timeline().LastUpdate())
	require.Equal(t, LocatorKindPage, s.Locator().Kind())
}

func TestSessionStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(s *Session) error
		wantErr bool
		want    Status
	}{
		{
			name:    "pending to running",
			prepare: func(s *Session) error { return s.MarkRunning() },
			want:    StatusRunning,
		},
		{
			name: "running to completed",
			prepare: func(s *Session) error {
				require.NoError(t, s.MarkRunning())
				return s.MarkCompleted()
			},
			want: StatusCompleted,
		},
		{
			name: "running to failed",
			prepare: func(s *Session) error {
				require.NoError(t, s.MarkRunning())
				return s.MarkFailed("too many errors")
			},
			want: StatusFailed,
		},
		{
			name: "running to stopped",
			prepare: func(s *Session) error {
				require.NoError(t, s.MarkRunning())
				return s.MarkStopped()
			},
			want: StatusStopped,
		},
		{
			name:    "pending cannot complete",
			prepare: func(s *Session) error { return s.MarkCompleted() },
			wantErr: true,
			want:    StatusPending,
		},
		{
			name: "failed is sticky",
			prepare: func(s *Session) error {
				require.NoError(t, s.MarkRunning())
				require.NoError(t, s.MarkFailed("boom"))
				return s.MarkCompleted()
			},
			wantErr: true,
			want:    StatusFailed,
		},
		{
			name: "stopped is sticky",
			prepare: func(s *Session) error {
				require.NoError(t, s.MarkRunning())
				require.NoError(t, s.MarkStopped())
				return s.MarkCompleted()
			},
			wantErr: true,
			want:    StatusStopped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestPageSession(t)
			err := tt.prepare(s)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, &SessionError{kind: ErrKindInvalidStateTransition})
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, s.Status())
		})
	}
}

func TestSessionMarkFailedRecordsReason(t *testing.T) {
	s := newTestPageSession(t)
	require.NoError(t, s.MarkRunning())
	require.NoError(t, s.MarkFailed("error threshold reached"))
	assert.Equal(t, "error threshold reached", s.FailureReason())
	assert.False(t, s.Timeline().CompletedAt().IsZero())
}

func TestSessionRecordItem(t *testing.T) {
	s := newTestPageSession(t)
	require.NoError(t, s.MarkRunning())

	require.NoError(t, s.RecordItem(OutcomeCreated))
	require.NoError(t, s.RecordItem(OutcomeCreated))
	require.NoError(t, s.RecordItem(OutcomeExisting))
	require.NoError(t, s.RecordItem(OutcomeError))

	c := s.Counters()
	assert.Equal(t, 4, c.ItemsFound())
	assert.Equal(t, 4, c.ItemsProcessed())
	assert.Equal(t, 2, c.ItemsCreated())
	assert.Equal(t, 1, c.ItemsExisting())
	assert.Equal(t, 1, c.ErrorsCount())
	assert.True(t, c.Consistent())
}

func TestSessionRecordItemRejectsUnknownOutcome(t *testing.T) {
	s := newTestPageSession(t)
	require.NoError(t, s.MarkRunning())

	err := s.RecordItem(Outcome("skipped"))
	require.Error(t, err)
	assert.ErrorIs(t, err, &SessionError{kind: ErrKindInvalidOutcome})
	assert.Equal(t, 0, s.Counters().ItemsProcessed())
}

func TestSessionRecordItemRequiresRunning(t *testing.T) {
	s := newTestPageSession(t)

	err := s.RecordItem(OutcomeCreated)
	require.Error(t, err)
	assert.ErrorIs(t, err, &SessionError{kind: ErrKindSessionNotRunning})

	require.NoError(t, s.MarkRunning())
	require.NoError(t, s.MarkCompleted())
	err = s.RecordItem(OutcomeCreated)
	require.Error(t, err)
}

func TestSessionCompleteBoundaryAdvancesPageCursor(t *testing.T) {
	s := newTestPageSession(t)
	require.NoError(t, s.MarkRunning())

	require.NoError(t, s.CompleteBoundary())
	require.NoError(t, s.CompleteBoundary())

	assert.Equal(t, 2, s.Counters().PagesProcessed())
	cursor := s.Locator().(*PageCursor)
	assert.Equal(t, 3, cursor.CurrentPage())
	assert.Equal(t, 1, cursor.StartPage())
}

func TestSessionCompleteBoundaryDateRange(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	rng := NewDateRange(from, to, []enforcement.ActionType{enforcement.ActionTypeCourtCase})
	s := NewSession(enforcement.AgencyEA, enforcement.TypeCase, rng, "tester")
	require.NoError(t, s.MarkRunning())

	require.NoError(t, s.CompleteBoundary())
	assert.Equal(t, 1, s.Counters().PagesProcessed())
}

func TestCountersMonotonicity(t *testing.T) {
	s := newTestPageSession(t)
	require.NoError(t, s.MarkRunning())

	var lastProcessed, lastErrors, lastPages int
	outcomes := []Outcome{OutcomeCreated, OutcomeExisting, OutcomeError, OutcomeExisting, OutcomeCreated}
	for i, o := range outcomes {
		require.NoError(t, s.RecordItem(o))
		c := s.Counters()
		assert.GreaterOrEqual(t, c.ItemsProcessed(), lastProcessed, "items_processed decreased at step %d", i)
		assert.GreaterOrEqual(t, c.ErrorsCount(), lastErrors, "errors_count decreased at step %d", i)
		assert.True(t, c.Consistent())
		lastProcessed, lastErrors = c.ItemsProcessed(), c.ErrorsCount()

		if i%2 == 1 {
			require.NoError(t, s.CompleteBoundary())
			assert.GreaterOrEqual(t, c.PagesProcessed(), lastPages)
			lastPages = c.PagesProcessed()
		}
	}
}

func TestSessionSnapshot(t *testing.T) {
	s := newTestPageSession(t)
	require.NoError(t, s.MarkRunning())
	require.NoError(t, s.RecordItem(OutcomeCreated))
	require.NoError(t, s.RecordItem(OutcomeExisting))

	snap := s.Snapshot()
	assert.Equal(t, s.ID(), snap.SessionID)
	assert.Equal(t, StatusRunning, snap.Status)
	assert.Equal(t, 2, snap.ItemsProcessed)
	assert.Equal(t, 1, snap.ItemsCreated)
	assert.Equal(t, 1, snap.ItemsExisting)

	// Mutating the session afterwards must not change the snapshot.
	require.NoError(t, s.RecordItem(OutcomeCreated))
	assert.Equal(t, 2, snap.ItemsProcessed)
}
