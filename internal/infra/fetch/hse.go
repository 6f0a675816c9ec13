package fetch

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
	"github.com/regscan/enforcement-ingest/internal/domain/scraping"
	"github.com/regscan/enforcement-ingest/pkg/common/logger"
)

// HSEFetcher scrapes the HSE public register: paginated HTML tables, one
// register per database, with per-record detail pages.
type HSEFetcher struct {
	client *resty.Client

	logger *logger.Logger
	tracer trace.Tracer
}

// NewHSEFetcher creates a fetcher for the HSE register at baseURL.
func NewHSEFetcher(baseURL string, log *logger.Logger, tracer trace.Tracer) *HSEFetcher {
	return &HSEFetcher{client: newHTTPClient(baseURL), logger: log, tracer: tracer}
}

// List fetches one register page and extracts its row summaries.
func (f *HSEFetcher) List(ctx context.Context, locator scraping.Locator) ([]enforcement.RawSummary, error) {
	cursor, ok := locator.(*scraping.PageCursor)
	if !ok {
		return nil, fmt.Errorf("hse fetcher requires a page cursor, got %T", locator)
	}

	ctx, span := f.tracer.Start(ctx, "hse_fetcher.list",
		trace.WithAttributes(
			attribute.String("database", string(cursor.Database())),
			attribute.Int("page", cursor.CurrentPage()),
		))
	defer span.End()

	req := f.client.R().
		SetContext(ctx).
		SetQueryParam("page", strconv.Itoa(cursor.CurrentPage()))
	if cursor.Country() != "" {
		req.SetQueryParam("country", cursor.Country())
	}

	resp, err := req.Get("/register/" + string(cursor.Database()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "register page fetch failed")
		return nil, err
	}
	if err := checkStatus(resp); err != nil {
		span.RecordError(err)
		return nil, err
	}

	summaries, err := f.parseRegisterPage(resp.Body(), cursor.Database())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "register page parse failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("summaries", len(summaries)))
	return summaries, nil
}

// Detail fetches a record's detail page and builds the full record.
func (f *HSEFetcher) Detail(ctx context.Context, summary enforcement.RawSummary) (*enforcement.Record, error) {
	ctx, span := f.tracer.Start(ctx, "hse_fetcher.detail",
		trace.WithAttributes(attribute.String("natural_key", summary.NaturalKey)))
	defer span.End()

	resp, err := f.client.R().SetContext(ctx).Get(summary.DetailURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "detail page fetch failed")
		return nil, err
	}
	if err := checkStatus(resp); err != nil {
		span.RecordError(err)
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(resp.Body()))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("parsing detail page: %w", err)
	}

	record := enforcement.NewRecord(summary)

	fields := make(map[string]string)
	doc.Find("dl.record-details dt").Each(func(_ int, dt *goquery.Selection) {
		label := strings.ToLower(strings.TrimSpace(dt.Text()))
		value := strings.TrimSpace(dt.Next().Text())
		fields[label] = value
	})

	if fine, ok := fields["fine"]; ok {
		amount, err := parseMonetaryAmount(fine)
		if err != nil {
			f.logger.Warn(ctx, "unparseable fine on detail page",
				"natural_key", summary.NaturalKey, "value", fine)
		} else {
			record.MonetaryAmount = amount
		}
	}
	if desc, ok := fields["description"]; ok {
		record.Description = desc
	} else if breach, ok := fields["breach details"]; ok {
		record.Description = breach
	}
	if region, ok := fields["region"]; ok {
		record.Region = region
	} else if la, ok := fields["local authority"]; ok {
		record.Region = la
	}

	return record, nil
}

// parseRegisterPage extracts summaries from a register results table. Rows
// that cannot be parsed are skipped with a warning rather than failing the
// page; the register mixes malformed legacy rows into otherwise good pages.
func (f *HSEFetcher) parseRegisterPage(body []byte, database enforcement.HSEDatabase) ([]enforcement.RawSummary, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("parsing register page: %w", err)
	}

	enforcementType := enforcement.TypeCase
	actionType := enforcement.ActionTypeCourtCase
	if database == enforcement.HSEDatabaseNotices {
		enforcementType = enforcement.TypeNotice
		actionType = enforcement.ActionTypeEnforcementNotice
	}

	var summaries []enforcement.RawSummary
	doc.Find("table.register-results tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}

		link := cells.Eq(0).Find("a")
		naturalKey := strings.TrimSpace(link.Text())
		if naturalKey == "" {
			naturalKey = strings.TrimSpace(cells.Eq(0).Text())
		}
		detailURL, _ := link.Attr("href")

		summary := enforcement.RawSummary{
			Agency:          enforcement.AgencyHSE,
			EnforcementType: enforcementType,
			NaturalKey:      naturalKey,
			SubjectName:     strings.TrimSpace(cells.Eq(1).Text()),
			ActionType:      actionType,
			DetailURL:       detailURL,
		}

		if date, err := parseRegisterDate(cells.Eq(2).Text()); err == nil {
			summary.Date = date
		}

		summaries = append(summaries, summary)
	})

	return summaries, nil
}
