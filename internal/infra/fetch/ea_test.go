package fetch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
	"github.com/regscan/enforcement-ingest/internal/domain/scraping"
	"github.com/regscan/enforcement-ingest/pkg/common/logger"
)

func newEATestFetcher(t *testing.T, handler http.Handler) *EAFetcher {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	log := logger.New(io.Discard, logger.LevelDebug, "test", nil)
	return NewEAFetcher(server.URL, log, noop.NewTracerProvider().Tracer("test"))
}

func caseWindow(actionTypes ...enforcement.ActionType) *scraping.DateRange {
	return scraping.NewDateRange(
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		actionTypes,
	)
}

func TestEAFetcherList(t *testing.T) {
	fetcher := newEATestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/enforcement-actions", r.URL.Path)
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("date_from"))
		assert.Equal(t, "2024-03-31", r.URL.Query().Get("date_to"))
		assert.Equal(t, "court_case", r.URL.Query().Get("action_type"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(eaListResponse{Items: []eaListItem{
			{
				Reference:  "EA-2024-0101",
				Offender:   "Riverside Chemicals Ltd",
				Date:       "2024-02-10",
				ActionType: "court_case",
				DetailURL:  "/api/enforcement-actions/EA-2024-0101",
			},
			{
				Reference:  "EA-2024-0102",
				Offender:   "Delta Waste Ltd",
				Date:       "2024-02-12",
				ActionType: "court_case",
			},
		}})
	}))

	summaries, err := fetcher.List(context.Background(), caseWindow(enforcement.ActionTypeCourtCase))
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	first := summaries[0]
	assert.Equal(t, enforcement.AgencyEA, first.Agency)
	assert.Equal(t, enforcement.TypeCase, first.EnforcementType)
	assert.Equal(t, "EA-2024-0101", first.NaturalKey)
	assert.Equal(t, "Riverside Chemicals Ltd", first.SubjectName)
	assert.Equal(t, time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), first.Date)
}

func TestEAFetcherListRequiresNarrowedRange(t *testing.T) {
	fetcher := newEATestFetcher(t, http.NewServeMux())

	_, err := fetcher.List(context.Background(),
		caseWindow(enforcement.ActionTypeCourtCase, enforcement.ActionTypeCaution))
	require.Error(t, err)

	_, err = fetcher.List(context.Background(),
		scraping.NewPageCursor(1, 10, enforcement.HSEDatabaseConvictions, ""))
	require.Error(t, err)
}

func TestEAFetcherDetail(t *testing.T) {
	amount := 48000.0
	fetcher := newEATestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/enforcement-actions/EA-2024-0101", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(eaDetailResponse{
			Reference:   "EA-2024-0101",
			Offender:    "Riverside Chemicals Ltd",
			Date:        "2024-02-10",
			ActionType:  "court_case",
			Amount:      &amount,
			Description: "Illegal discharge into controlled waters.",
			Region:      "Yorkshire",
		})
	}))

	summary := enforcement.RawSummary{
		Agency:          enforcement.AgencyEA,
		EnforcementType: enforcement.TypeCase,
		NaturalKey:      "EA-2024-0101",
		ActionType:      enforcement.ActionTypeCourtCase,
	}

	record, err := fetcher.Detail(context.Background(), summary)
	require.NoError(t, err)

	require.NotNil(t, record.MonetaryAmount)
	assert.Equal(t, 48000.0, *record.MonetaryAmount)
	assert.Equal(t, "Illegal discharge into controlled waters.", record.Description)
	assert.Equal(t, "Yorkshire", record.Region)
	assert.Equal(t, "Riverside Chemicals Ltd", record.SubjectName)
}

func TestEAFetcherListServerError(t *testing.T) {
	fetcher := newEATestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := fetcher.List(context.Background(), caseWindow(enforcement.ActionTypeCourtCase))
	require.Error(t, err)
}

func TestFactoryFetcherFor(t *testing.T) {
	log := logger.New(io.Discard, logger.LevelDebug, "test", nil)
	factory := NewFactory(testFactorySettings(), log, noop.NewTracerProvider().Tracer("test"))

	hse, err := factory.FetcherFor(enforcement.AgencyHSE, enforcement.TypeCase)
	require.NoError(t, err)
	assert.IsType(t, &HSEFetcher{}, hse)

	ea, err := factory.FetcherFor(enforcement.AgencyEA, enforcement.TypeNotice)
	require.NoError(t, err)
	assert.IsType(t, &EAFetcher{}, ea)

	_, err = factory.FetcherFor(enforcement.Agency("sepa"), enforcement.TypeCase)
	require.Error(t, err)
}
