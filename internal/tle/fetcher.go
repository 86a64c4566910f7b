package tle

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/star/missiontle/internal/budget"
	"github.com/star/missiontle/internal/upstream"
)

const (
	// Provider is the upstream name used in errors, logs and metrics.
	Provider = "n2yo"

	// DefaultBaseURL is the N2YO satellite REST root.
	DefaultBaseURL = "https://api.n2yo.com/rest/v1/satellite/"

	opFetch = "tle.fetch"
)

// Fetcher retrieves the current TLE for a single catalog ID.
type Fetcher struct {
	client  *upstream.Client
	baseURL *url.URL
	apiKey  string
	logger  *slog.Logger
}

// NewFetcher creates a Fetcher for the provider at baseURL authenticated
// with apiKey.
func NewFetcher(client *upstream.Client, baseURL, apiKey string, logger *slog.Logger) (*Fetcher, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing TLE base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("TLE base URL %q must be absolute", baseURL)
	}
	return &Fetcher{client: client, baseURL: u, apiKey: apiKey, logger: logger}, nil
}

// Fetch spends one transaction from b and returns the element for
// catalogID. A well-formed response with empty TLE text is not an error.
func (f *Fetcher) Fetch(ctx context.Context, catalogID int64, b *budget.Budget) (Element, error) {
	endpoint := f.baseURL.JoinPath("tle", strconv.FormatInt(catalogID, 10))
	q := url.Values{}
	q.Set("apiKey", f.apiKey)
	endpoint.RawQuery = q.Encode()

	var resp response
	if err := f.client.GetJSON(ctx, opFetch, Provider, endpoint, b, &resp); err != nil {
		return Element{}, err
	}
	if resp.TLE == nil {
		if resp.Error != "" {
			return Element{}, upstream.Malformed(opFetch, Provider, "catalog %d: provider error: %s", catalogID, resp.Error)
		}
		return Element{}, upstream.Malformed(opFetch, Provider, "catalog %d: missing tle", catalogID)
	}

	el := Element{
		CatalogID: catalogID,
		Lines:     SplitLines(*resp.TLE),
	}
	if resp.Info != nil {
		el.Name = resp.Info.SatName
		f.logger.Debug("provider transaction count",
			"component", "tle",
			"catalog_id", catalogID,
			"satname", resp.Info.SatName,
			"transactions_count", resp.Info.TransactionsCount,
		)
	}
	return el, nil
}
