package fetch

import (
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/regscan/enforcement-ingest/internal/config"
	"github.com/regscan/enforcement-ingest/internal/domain/enforcement"
	"github.com/regscan/enforcement-ingest/internal/domain/scraping"
	"github.com/regscan/enforcement-ingest/pkg/common/logger"
)

// Factory resolves the fetcher for an agency. Fetchers are agency-scoped: the
// locator carries whatever register or filter the request needs.
type Factory struct {
	hse *HSEFetcher
	ea  *EAFetcher
}

// NewFactory builds fetchers against the configured agency endpoints.
func NewFactory(settings *config.Settings, log *logger.Logger, tracer trace.Tracer) *Factory {
	return &Factory{
		hse: NewHSEFetcher(settings.HSEBaseURL, log, tracer),
		ea:  NewEAFetcher(settings.EABaseURL, log, tracer),
	}
}

// FetcherFor returns the fetcher serving the agency.
func (f *Factory) FetcherFor(agency enforcement.Agency, _ enforcement.Type) (scraping.RecordFetcher, error) {
	switch agency {
	case enforcement.AgencyHSE:
		return f.hse, nil
	case enforcement.AgencyEA:
		return f.ea, nil
	}
	return nil, fmt.Errorf("no fetcher for agency %q", agency)
}
