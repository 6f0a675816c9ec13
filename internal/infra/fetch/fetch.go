// Package fetch implements the per-agency record fetchers behind the
// two-stage list/detail contract. HSE publishes HTML register pages; EA
// exposes a JSON API. Both fetchers are stateless between calls: the locator
// carries all position information.
package fetch

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const userAgent = "enforcement-ingest/1.0"

func newHTTPClient(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept-Language", "en-GB")
}

// checkStatus turns a non-2xx response into an error; resty only fails the
// request on transport problems.
func checkStatus(resp *resty.Response) error {
	if resp.IsError() {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode(), resp.Request.URL)
	}
	return nil
}

// parseMonetaryAmount parses regulator-formatted fine amounts such as
// "£12,345" or "£1,200.50". Empty and dash-valued cells mean no fine.
func parseMonetaryAmount(raw string) (*float64, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" || cleaned == "-" || strings.EqualFold(cleaned, "n/a") {
		return nil, nil
	}
	cleaned = strings.TrimPrefix(cleaned, "£")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)

	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil, fmt.Errorf("unparseable monetary amount %q", raw)
	}
	return &amount, nil
}

// parseRegisterDate parses the dd/mm/yyyy dates HSE register pages use.
func parseRegisterDate(raw string) (time.Time, error) {
	return time.Parse("02/01/2006", strings.TrimSpace(raw))
}
