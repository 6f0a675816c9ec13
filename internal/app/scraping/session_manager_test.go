package scraping

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
	"github.com/regscan/enforcement-ingest/internal/domain/scraping"
)

func hseParams(settings map[string]int) *ValidatedParams {
	p := &ValidatedParams{
		Agency:               enforcement.AgencyHSE,
		EnforcementType:      enforcement.TypeCase,
		StartPage:            1,
		MaxPages:             5,
		Database:             enforcement.HSEDatabaseConvictions,
		MaxConsecutiveErrors: 5,
		BatchSize:            25,
		ExistingThreshold:    1,
	}
	if v, ok := settings["max_errors"]; ok {
		p.MaxConsecutiveErrors = v
	}
	if v, ok := settings["batch_size"]; ok {
		p.BatchSize = v
	}
	if v, ok := settings["existing_threshold"]; ok {
		p.ExistingThreshold = v
	}
	return p
}

func startedSession(t *testing.T, h *harness, params *ValidatedParams) *scraping.Session {
	t.Helper()
	session, err := h.manager.StartSession(context.Background(), newHSECaseStrategy(), params)
	require.NoError(t, err)
	require.Equal(t, scraping.StatusRunning, session.Status())
	return session
}

func TestStartSessionPersistsAndBroadcasts(t *testing.T) {
	h := newHarness()
	params := hseParams(nil)
	params.Actor = "analyst@example.org"

	session := startedSession(t, h, params)

	stored, err := h.sessions.Load(context.Background(), session.ID())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, scraping.StatusRunning, stored.Status())
	assert.Equal(t, "analyst@example.org", stored.Actor())
	assert.Equal(t, []string{"SessionCreated"}, h.broadcaster.Calls())
}

func TestRecordItemPersistsAndBroadcasts(t *testing.T) {
	h := newHarness()
	session := startedSession(t, h, hseParams(nil))

	failed, err := h.manager.RecordItem(context.Background(), session, hseParams(nil),
		scraping.OutcomeCreated, scraping.ItemSummary{NaturalKey: "HSE-1"}, nil)
	require.NoError(t, err)
	assert.False(t, failed)
	assert.Equal(t, 1, session.Counters().ItemsCreated())
	assert.Contains(t, h.broadcaster.Calls(), "RecordProcessed")
}

func TestRecordItemFailsSessionAtErrorThreshold(t *testing.T) {
	h := newHarness()
	params := hseParams(map[string]int{"max_errors": 2})
	session := startedSession(t, h, params)
	ctx := context.Background()

	itemErr := &scraping.ItemError{NaturalKey: "HSE-1", Message: "detail fetch failed"}
	failed, err := h.manager.RecordItem(ctx, session, params, scraping.OutcomeError, scraping.ItemSummary{}, itemErr)
	require.NoError(t, err)
	assert.False(t, failed)

	failed, err = h.manager.RecordItem(ctx, session, params, scraping.OutcomeError, scraping.ItemSummary{}, itemErr)
	require.NoError(t, err)
	assert.True(t, failed)
	assert.Equal(t, scraping.StatusFailed, session.Status())
	assert.Contains(t, session.FailureReason(), "error threshold")
	assert.Contains(t, h.broadcaster.Calls(), "SessionFailed")
	assert.Contains(t, h.broadcaster.Calls(), "ScrapeError")
}

func TestCompleteBoundaryWritesLogAndAdvances(t *testing.T) {
	h := newHarness()
	params := hseParams(nil)
	session := startedSession(t, h, params)
	ctx := context.Background()

	result := new(scraping.BoundaryResult)
	result.Record(scraping.OutcomeCreated, scraping.ItemSummary{NaturalKey: "HSE-1"}, nil)
	result.Record(scraping.OutcomeExisting, scraping.ItemSummary{NaturalKey: "HSE-2"}, nil)
	require.NoError(t, session.RecordItem(scraping.OutcomeCreated))
	require.NoError(t, session.RecordItem(scraping.OutcomeExisting))

	done, err := h.manager.CompleteBoundary(ctx, session, 1, result, true, params)
	require.NoError(t, err)
	assert.False(t, done)

	assert.Equal(t, 1, session.Counters().PagesProcessed())
	cursor := session.Locator().(*scraping.PageCursor)
	assert.Equal(t, 2, cursor.CurrentPage())

	logs, err := h.logs.ListBySession(ctx, session.ID())
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 1, logs[0].BoundaryIndex())
	assert.Equal(t, 2, logs[0].ItemsFound())
	assert.Equal(t, 1, logs[0].ItemsCreated())
	assert.Contains(t, h.broadcaster.Calls(), "BatchCompleted")
}

func TestCompleteBoundaryAllExistingCompletesEarly(t *testing.T) {
	h := newHarness()
	params := hseParams(nil)
	session := startedSession(t, h, params)

	result := new(scraping.BoundaryResult)
	for _, key := range []string{"HSE-1", "HSE-2", "HSE-3"} {
		result.Record(scraping.OutcomeExisting, scraping.ItemSummary{NaturalKey: key}, nil)
		require.NoError(t, session.RecordItem(scraping.OutcomeExisting))
	}

	done, err := h.manager.CompleteBoundary(context.Background(), session, 1, result, true, params)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, scraping.StatusCompleted, session.Status())
	assert.Contains(t, h.broadcaster.Calls(), "SessionCompleted")
}

func TestCompleteBoundaryExistingThresholdGuardsSmallBoundaries(t *testing.T) {
	h := newHarness()
	params := hseParams(map[string]int{"existing_threshold": 3})
	session := startedSession(t, h, params)

	// Two existing records sit below the threshold of three; the walk
	// continues.
	result := new(scraping.BoundaryResult)
	for _, key := range []string{"HSE-1", "HSE-2"} {
		result.Record(scraping.OutcomeExisting, scraping.ItemSummary{NaturalKey: key}, nil)
		require.NoError(t, session.RecordItem(scraping.OutcomeExisting))
	}

	done, err := h.manager.CompleteBoundary(context.Background(), session, 1, result, true, params)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, scraping.StatusRunning, session.Status())
}

func TestCompleteBoundaryErrorThresholdBeatsAllExisting(t *testing.T) {
	h := newHarness()
	params := hseParams(map[string]int{"max_errors": 2})
	session := startedSession(t, h, params)

	// Errors accumulated on earlier pages have reached the threshold by the
	// time an all-existing boundary completes. Failure wins.
	require.NoError(t, session.RecordItem(scraping.OutcomeError))
	require.NoError(t, session.RecordItem(scraping.OutcomeError))

	result := new(scraping.BoundaryResult)
	result.Record(scraping.OutcomeExisting, scraping.ItemSummary{NaturalKey: "HSE-9"}, nil)
	require.NoError(t, session.RecordItem(scraping.OutcomeExisting))

	done, err := h.manager.CompleteBoundary(context.Background(), session, 2, result, true, params)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, scraping.StatusFailed, session.Status())
	assert.NotContains(t, h.broadcaster.Calls(), "SessionCompleted")
}

func TestCompleteBoundaryCapsLoggedItems(t *testing.T) {
	h := newHarness()
	params := hseParams(map[string]int{"batch_size": 2, "max_errors": 100})
	session := startedSession(t, h, params)

	result := new(scraping.BoundaryResult)
	for _, key := range []string{"HSE-1", "HSE-2", "HSE-3", "HSE-4"} {
		result.Record(scraping.OutcomeCreated, scraping.ItemSummary{NaturalKey: key}, nil)
		require.NoError(t, session.RecordItem(scraping.OutcomeCreated))
	}

	_, err := h.manager.CompleteBoundary(context.Background(), session, 1, result, true, params)
	require.NoError(t, err)

	logs, err := h.logs.ListBySession(context.Background(), session.ID())
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 4, logs[0].ItemsFound())
	assert.Len(t, logs[0].Items(), 2)
}

func TestCompleteBoundaryWithoutCursorAdvance(t *testing.T) {
	h := newHarness()
	params := hseParams(nil)
	session := startedSession(t, h, params)

	result := new(scraping.BoundaryResult)
	result.Record(scraping.OutcomeCreated, scraping.ItemSummary{NaturalKey: "HSE-1"}, nil)
	require.NoError(t, session.RecordItem(scraping.OutcomeCreated))

	done, err := h.manager.CompleteBoundary(context.Background(), session, 0, result, false, params)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 0, session.Counters().PagesProcessed())
}

func TestShouldContinue(t *testing.T) {
	h := newHarness()
	params := hseParams(nil)
	params.MaxPages = 2
	session := startedSession(t, h, params)

	assert.True(t, h.manager.ShouldContinue(session))

	require.NoError(t, session.CompleteBoundary())
	assert.True(t, h.manager.ShouldContinue(session))

	require.NoError(t, session.CompleteBoundary())
	assert.False(t, h.manager.ShouldContinue(session), "page budget spent")

	stopped := startedSession(t, h, hseParams(nil))
	require.NoError(t, stopped.MarkStopped())
	assert.False(t, h.manager.ShouldContinue(stopped))
}

func TestFinalize(t *testing.T) {
	t.Run("running session completes", func(t *testing.T) {
		h := newHarness()
		session := startedSession(t, h, hseParams(nil))

		require.NoError(t, h.manager.Finalize(context.Background(), session))
		assert.Equal(t, scraping.StatusCompleted, session.Status())
		assert.Contains(t, h.broadcaster.Calls(), "SessionCompleted")
	})

	t.Run("cancelled context stops the session", func(t *testing.T) {
		h := newHarness()
		session := startedSession(t, h, hseParams(nil))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		require.NoError(t, h.manager.Finalize(ctx, session))
		assert.Equal(t, scraping.StatusStopped, session.Status())
		assert.Contains(t, h.broadcaster.Calls(), "SessionStopped")
	})

	t.Run("terminal session untouched", func(t *testing.T) {
		h := newHarness()
		session := startedSession(t, h, hseParams(nil))
		require.NoError(t, session.MarkFailed("threshold"))

		require.NoError(t, h.manager.Finalize(context.Background(), session))
		assert.Equal(t, scraping.StatusFailed, session.Status())
	})
}
