package scraping

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/regscan/enforcement-ingest/internal/config"
	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
	"github.com/regscan/enforcement-ingest/internal/domain/scraping"
	"github.com/regscan/enforcement-ingest/pkg/common/logger"
)

func testLogger() *logger.Logger {
	return logger.New(io.Discard, logger.LevelDebug, "test", nil)
}

func testTracer() trace.Tracer { return noop.NewTracerProvider().Tracer("test") }

func testSettings() *config.Settings {
	return &config.Settings{
		MaxPagesPerSession:           config.DefaultMaxPagesPerSession,
		NetworkTimeout:               time.Second,
		MaxConsecutiveErrors:         config.DefaultMaxConsecutiveErrors,
		PauseBetweenPages:            0,
		BatchSize:                    config.DefaultBatchSize,
		ConsecutiveExistingThreshold: config.DefaultConsecutiveExistingThreshold,
	}
}

// memSessionRepo is an in-memory SessionRepository for exercising the
// execution loop without a database.
type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*scraping.Session
	saves    int
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[uuid.UUID]*scraping.Session)}
}

func (r *memSessionRepo) Save(_ context.Context, session *scraping.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID()] = session
	r.saves++
	return nil
}

func (r *memSessionRepo) Load(_ context.Context, id uuid.UUID) (*scraping.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id], nil
}

func (r *memSessionRepo) GetActive(_ context.Context) ([]*scraping.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var active []*scraping.Session
	for _, s := range r.sessions {
		if !s.Status().IsTerminal() {
			active = append(active, s)
		}
	}
	return active, nil
}

func (r *memSessionRepo) List(_ context.Context, limit int) ([]*scraping.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*scraping.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

type memLogRepo struct {
	mu   sync.Mutex
	logs []*scraping.ProcessingLog
}

func (r *memLogRepo) Save(_ context.Context, log *scraping.ProcessingLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

func (r *memLogRepo) ListBySession(_ context.Context, sessionID uuid.UUID) ([]*scraping.ProcessingLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*scraping.ProcessingLog
	for _, l := range r.logs {
		if l.SessionID() == sessionID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BoundaryIndex() < out[j].BoundaryIndex() })
	return out, nil
}

// recordingBroadcaster captures the order of broadcast calls.
type recordingBroadcaster struct {
	mu    sync.Mutex
	calls []string
}

func (b *recordingBroadcaster) record(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, name)
}

func (b *recordingBroadcaster) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.calls))
	copy(out, b.calls)
	return out
}

func (b *recordingBroadcaster) SessionCreated(context.Context, scraping.Snapshot) {
	b.record("SessionCreated")
}

func (b *recordingBroadcaster) RecordProcessed(context.Context, scraping.Snapshot, scraping.Outcome, scraping.ItemSummary) {
	b.record("RecordProcessed")
}

func (b *recordingBroadcaster) BatchCompleted(context.Context, scraping.Snapshot, *scraping.ProcessingLog) {
	b.record("BatchCompleted")
}

func (b *recordingBroadcaster) SessionCompleted(context.Context, scraping.Snapshot) {
	b.record("SessionCompleted")
}

func (b *recordingBroadcaster) SessionFailed(context.Context, scraping.Snapshot, string) {
	b.record("SessionFailed")
}

func (b *recordingBroadcaster) SessionStopped(context.Context, scraping.Snapshot) {
	b.record("SessionStopped")
}

func (b *recordingBroadcaster) ScrapeError(context.Context, uuid.UUID, enforcement.Agency, string, string) {
	b.record("ScrapeError")
}

type noopMetrics struct{}

func (noopMetrics) IncSessionsStarted(context.Context, enforcement.Agency)                  {}
func (noopMetrics) IncSessionsCompleted(context.Context, enforcement.Agency)                {}
func (noopMetrics) IncSessionsFailed(context.Context, enforcement.Agency)                   {}
func (noopMetrics) IncSessionsStopped(context.Context, enforcement.Agency)                  {}
func (noopMetrics) ObserveSessionDuration(context.Context, enforcement.Agency, time.Duration) {
}
func (noopMetrics) IncRecordsProcessed(context.Context, enforcement.Agency, scraping.Outcome) {
}
func (noopMetrics) IncFetchErrors(context.Context, enforcement.Agency, string)  {}
func (noopMetrics) ObserveBoundarySize(context.Context, enforcement.Agency, int) {}

// memRecordRepo is an in-memory RecordRepository with create-or-conflict
// semantics matching the postgres store.
type memRecordRepo struct {
	mu      sync.Mutex
	records map[string]*enforcement.Record
	touched int
}

func newMemRecordRepo() *memRecordRepo {
	return &memRecordRepo{records: make(map[string]*enforcement.Record)}
}

func recordKey(agency enforcement.Agency, naturalKey string) string {
	return string(agency) + "/" + naturalKey
}

func (r *memRecordRepo) Create(_ context.Context, record *enforcement.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := recordKey(record.Agency, record.NaturalKey)
	if _, ok := r.records[key]; ok {
		return enforcement.ErrDuplicateRecord
	}
	r.records[key] = record
	return nil
}

func (r *memRecordRepo) FindByNaturalKey(_ context.Context, agency enforcement.Agency, naturalKey string) (*enforcement.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[recordKey(agency, naturalKey)], nil
}

func (r *memRecordRepo) TouchLastSynced(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touched++
	for _, rec := range r.records {
		if rec.ID == id {
			rec.LastSyncedAt = time.Now()
			return nil
		}
	}
	return nil
}

// scriptedFetcher drives the execution loop with canned pages and scripted
// detail failures.
type scriptedFetcher struct {
	mu sync.Mutex

	// pages maps a page number to its summaries for page cursors. For date
	// ranges, batches maps an action type to its summaries.
	pages   map[int][]enforcement.RawSummary
	batches map[enforcement.ActionType][]enforcement.RawSummary

	listErrs   map[int]error
	detailErrs map[string]error

	listCalls int
}

func (f *scriptedFetcher) List(_ context.Context, locator scraping.Locator) ([]enforcement.RawSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++

	switch loc := locator.(type) {
	case *scraping.PageCursor:
		if err := f.listErrs[loc.CurrentPage()]; err != nil {
			return nil, err
		}
		return f.pages[loc.CurrentPage()], nil
	case *scraping.DateRange:
		return f.batches[loc.ActionTypes()[0]], nil
	}
	return nil, nil
}

func (f *scriptedFetcher) Detail(_ context.Context, summary enforcement.RawSummary) (*enforcement.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.detailErrs[summary.NaturalKey]; err != nil {
		return nil, err
	}
	return enforcement.NewRecord(summary), nil
}

type scriptedFactory struct{ fetcher scraping.RecordFetcher }

func (f *scriptedFactory) FetcherFor(enforcement.Agency, enforcement.Type) (scraping.RecordFetcher, error) {
	return f.fetcher, nil
}

// harness wires a full execution stack over in-memory storage.
type harness struct {
	sessions    *memSessionRepo
	logs        *memLogRepo
	records     *memRecordRepo
	broadcaster *recordingBroadcaster
	manager     *SessionManager
	pipeline    *UpsertPipeline
}

func newHarness() *harness {
	h := &harness{
		sessions:    newMemSessionRepo(),
		logs:        &memLogRepo{},
		records:     newMemRecordRepo(),
		broadcaster: &recordingBroadcaster{},
	}
	log := testLogger()
	tracer := testTracer()
	h.manager = NewSessionManager(h.sessions, h.logs, h.broadcaster, log, noopMetrics{}, tracer)
	h.pipeline = NewUpsertPipeline(h.records, log, tracer)
	return h
}

func (h *harness) coordinator(fetcher scraping.RecordFetcher) *Coordinator {
	return NewCoordinator(h.manager, &scriptedFactory{fetcher: fetcher}, h.pipeline, testLogger(), noopMetrics{}, testTracer())
}

func summariesFor(agency enforcement.Agency, kind enforcement.Type, keys ...string) []enforcement.RawSummary {
	out := make([]enforcement.RawSummary, 0, len(keys))
	for _, key := range keys {
		out = append(out, enforcement.RawSummary{
			Agency:          agency,
			EnforcementType: kind,
			NaturalKey:      key,
			SubjectName:     "Subject " + key,
			Date:            time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		})
	}
	return out
}
