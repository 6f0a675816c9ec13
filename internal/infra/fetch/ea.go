package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
	"github.com/regscan/enforcement-ingest/internal/domain/scraping"
	"github.com/regscan/enforcement-ingest/pkg/common/logger"
)

// EAFetcher collects enforcement actions from the EA JSON API, filtered by
// date window and action type.
type EAFetcher struct {
	client *resty.Client

	logger *logger.Logger
	tracer trace.Tracer
}

// NewEAFetcher creates a fetcher for the EA API at baseURL.
func NewEAFetcher(baseURL string, log *logger.Logger, tracer trace.Tracer) *EAFetcher {
	return &EAFetcher{client: newHTTPClient(baseURL), logger: log, tracer: tracer}
}

// eaListResponse is the API's search response shape.
type eaListResponse struct {
	Items []eaListItem `json:"items"`
}

type eaListItem struct {
	Reference  string `json:"reference"`
	Offender   string `json:"offender"`
	Date       string `json:"date"`
	ActionType string `json:"action_type"`
	DetailURL  string `json:"detail_url"`
}

// eaDetailResponse is the API's per-action response shape.
type eaDetailResponse struct {
	Reference   string   `json:"reference"`
	Offender    string   `json:"offender"`
	Date        string   `json:"date"`
	ActionType  string   `json:"action_type"`
	Amount      *float64 `json:"amount"`
	Description string   `json:"description"`
	Region      string   `json:"region"`
}

// List queries the API for one action type within the locator's date window.
func (f *EAFetcher) List(ctx context.Context, locator scraping.Locator) ([]enforcement.RawSummary, error) {
	window, ok := locator.(*scraping.DateRange)
	if !ok {
		return nil, fmt.Errorf("ea fetcher requires a date range, got %T", locator)
	}
	if len(window.ActionTypes()) != 1 {
		return nil, fmt.Errorf("ea fetcher requires a single-action-type range, got %d", len(window.ActionTypes()))
	}
	actionType := window.ActionTypes()[0]

	ctx, span := f.tracer.Start(ctx, "ea_fetcher.list",
		trace.WithAttributes(
			attribute.String("action_type", string(actionType)),
			attribute.String("date_from", window.From().Format("2006-01-02")),
			attribute.String("date_to", window.To().Format("2006-01-02")),
		))
	defer span.End()

	var payload eaListResponse
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"date_from":   window.From().Format("2006-01-02"),
			"date_to":     window.To().Format("2006-01-02"),
			"action_type": string(actionType),
		}).
		SetResult(&payload).
		Get("/api/enforcement-actions")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "action search failed")
		return nil, err
	}
	if err := checkStatus(resp); err != nil {
		span.RecordError(err)
		return nil, err
	}

	summaries := make([]enforcement.RawSummary, 0, len(payload.Items))
	for _, item := range payload.Items {
		summaries = append(summaries, f.toSummary(ctx, item))
	}

	span.SetAttributes(attribute.Int("summaries", len(summaries)))
	return summaries, nil
}

// Detail fetches an action's full payload.
func (f *EAFetcher) Detail(ctx context.Context, summary enforcement.RawSummary) (*enforcement.Record, error) {
	ctx, span := f.tracer.Start(ctx, "ea_fetcher.detail",
		trace.WithAttributes(attribute.String("natural_key", summary.NaturalKey)))
	defer span.End()

	url := summary.DetailURL
	if url == "" {
		url = "/api/enforcement-actions/" + summary.NaturalKey
	}

	var payload eaDetailResponse
	resp, err := f.client.R().SetContext(ctx).SetResult(&payload).Get(url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "action detail fetch failed")
		return nil, err
	}
	if err := checkStatus(resp); err != nil {
		span.RecordError(err)
		return nil, err
	}

	record := enforcement.NewRecord(summary)
	record.MonetaryAmount = payload.Amount
	record.Description = payload.Description
	record.Region = payload.Region
	if payload.Offender != "" {
		record.SubjectName = payload.Offender
	}
	if date, err := time.Parse("2006-01-02", payload.Date); err == nil {
		record.Date = date
	}

	return record, nil
}

func (f *EAFetcher) toSummary(ctx context.Context, item eaListItem) enforcement.RawSummary {
	actionType, err := enforcement.ParseActionType(item.ActionType)
	if err != nil {
		f.logger.Warn(ctx, "unknown action type in search response",
			"reference", item.Reference, "action_type", item.ActionType)
	}

	enforcementType := enforcement.TypeCase
	if actionType == enforcement.ActionTypeEnforcementNotice {
		enforcementType = enforcement.TypeNotice
	}

	summary := enforcement.RawSummary{
		Agency:          enforcement.AgencyEA,
		EnforcementType: enforcementType,
		NaturalKey:      item.Reference,
		SubjectName:     item.Offender,
		ActionType:      actionType,
		DetailURL:       item.DetailURL,
	}
	if date, err := time.Parse("2006-01-02", item.Date); err == nil {
		summary.Date = date
	}
	return summary
}
