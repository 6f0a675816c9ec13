package broadcast

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/uuid"

	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
	"github.com/regscan/enforcement-ingest/internal/domain/events"
	"github.com/regscan/enforcement-ingest/internal/domain/scraping"
	"github.com/regscan/enforcement-ingest/pkg/common/logger"
)

type capturingPublisher struct {
	published []events.DomainEvent
	keys      []string
	err       error
}

func (p *capturingPublisher) PublishDomainEvent(_ context.Context, event events.DomainEvent, opts ...events.PublishOption) error {
	var params events.PublishParams
	for _, opt := range opts {
		opt(&params)
	}
	p.published = append(p.published, event)
	p.keys = append(p.keys, params.Key)
	return p.err
}

func newTestBroadcaster(publisher events.DomainEventPublisher) *ProgressBroadcaster {
	return NewProgressBroadcaster(publisher, logger.New(io.Discard, logger.LevelDebug, "test", nil))
}

func testSnapshot() scraping.Snapshot {
	session := scraping.NewSession(
		enforcement.AgencyHSE,
		enforcement.TypeCase,
		scraping.NewPageCursor(1, 5, enforcement.HSEDatabaseConvictions, ""),
		"tester",
	)
	return session.Snapshot()
}

func TestProgressBroadcasterPublishesEveryEventKind(t *testing.T) {
	publisher := &capturingPublisher{}
	broadcaster := newTestBroadcaster(publisher)
	ctx := context.Background()
	snapshot := testSnapshot()

	result := new(scraping.BoundaryResult)
	result.Record(scraping.OutcomeCreated, scraping.ItemSummary{NaturalKey: "HSE-1"}, nil)
	log := scraping.NewProcessingLog(snapshot.SessionID, snapshot.Agency, 1, result)

	broadcaster.SessionCreated(ctx, snapshot)
	broadcaster.RecordProcessed(ctx, snapshot, scraping.OutcomeCreated, scraping.ItemSummary{NaturalKey: "HSE-1"})
	broadcaster.BatchCompleted(ctx, snapshot, log)
	broadcaster.SessionCompleted(ctx, snapshot)
	broadcaster.SessionFailed(ctx, snapshot, "error threshold")
	broadcaster.SessionStopped(ctx, snapshot)
	broadcaster.ScrapeError(ctx, snapshot.SessionID, snapshot.Agency, "list", "503")

	require.Len(t, publisher.published, 7)
	wantTypes := []events.EventType{
		scraping.EventTypeSessionCreated,
		scraping.EventTypeRecordProcessed,
		scraping.EventTypeBatchCompleted,
		scraping.EventTypeSessionCompleted,
		scraping.EventTypeSessionFailed,
		scraping.EventTypeSessionStopped,
		scraping.EventTypeScrapeError,
	}
	for i, want := range wantTypes {
		assert.Equal(t, want, publisher.published[i].EventType())
	}

	for _, key := range publisher.keys {
		assert.Equal(t, snapshot.SessionID.String(), key, "events key on the session ID")
	}
}

func TestProgressBroadcasterSwallowsPublishErrors(t *testing.T) {
	publisher := &capturingPublisher{err: errors.New("broker down")}
	broadcaster := newTestBroadcaster(publisher)

	// Must not panic or propagate; progress publishing is best-effort.
	broadcaster.SessionCreated(context.Background(), testSnapshot())
	broadcaster.ScrapeError(context.Background(), uuid.New(), enforcement.AgencyEA, "detail", "timeout")

	assert.Len(t, publisher.published, 2)
}
