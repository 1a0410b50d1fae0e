// Package census pulls county-level tables from the Census Data API.
package census

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/choroshape/internal/fetcher"
	"github.com/sells-group/choroshape/internal/fips"
)

// DefaultBaseURL is the Census Data API root.
const DefaultBaseURL = "https://api.census.gov/data"

// FIPSColumn is the column County adds with 5-digit county codes.
const FIPSColumn = "FIPS"

// Query selects variables for every county of a state (or the nation when
// State is empty).
type Query struct {
	Year      int
	Dataset   string   // e.g. "acs/acs5"
	Variables []string // e.g. B01001_001E
	State     string   // postal abbreviation or 2-digit FIPS
}

// Client calls the Data API through a fetcher.
type Client struct {
	fetch   fetcher.Fetcher
	baseURL string
	apiKey  string
}

// New creates a Client. baseURL defaults to DefaultBaseURL.
func New(f fetcher.Fetcher, baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{fetch: f, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

// URL builds the request URL for q.
func (c *Client) URL(q Query) (string, error) {
	if q.Year <= 0 {
		return "", eris.New("census: year is required")
	}
	if q.Dataset == "" {
		return "", eris.New("census: dataset is required")
	}
	if len(q.Variables) == 0 {
		return "", eris.New("census: at least one variable is required")
	}

	params := url.Values{}
	params.Set("get", strings.Join(append([]string{"NAME"}, q.Variables...), ","))
	params.Set("for", "county:*")
	if q.State != "" {
		code, ok := fips.StateFIPS(q.State)
		if !ok {
			return "", eris.Errorf("census: unknown state %q", q.State)
		}
		params.Set("in", "state:"+code)
	}
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	return fmt.Sprintf("%s/%d/%s?%s", c.baseURL, q.Year, strings.Trim(q.Dataset, "/"), params.Encode()), nil
}

// County fetches q and returns the response table with a FIPS column built
// from the state and county columns.
func (c *Client) County(ctx context.Context, q Query) (*fetcher.Table, error) {
	u, err := c.URL(q)
	if err != nil {
		return nil, err
	}

	zap.L().Info("census: fetching county table",
		zap.Int("year", q.Year),
		zap.String("dataset", q.Dataset),
		zap.Strings("variables", q.Variables),
		zap.String("state", q.State),
	)

	body, err := c.fetch.Download(ctx, u)
	if err != nil {
		return nil, eris.Wrap(err, "census: request")
	}
	defer body.Close() //nolint:errcheck

	tbl, err := fetcher.ReadJSONTable(ctx, body)
	if err != nil {
		return nil, eris.Wrap(err, "census: parse response")
	}

	counties, err := tbl.Column("county")
	if err != nil {
		return nil, eris.Wrap(err, "census: response")
	}
	states, err := tbl.Column("state")
	if err != nil {
		return nil, eris.Wrap(err, "census: response")
	}
	codes, err := fips.Normalize(counties, fips.StateColumn(states))
	if err != nil {
		return nil, eris.Wrap(err, "census: county codes")
	}
	if err := tbl.SetColumn(FIPSColumn, codes); err != nil {
		return nil, err
	}
	return tbl, nil
}
