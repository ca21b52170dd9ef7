// Package seismicportal queries the EMSC SeismicPortal FDSN event service.
package seismicportal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultBaseURL is the public FDSN event query endpoint.
const DefaultBaseURL = "https://www.seismicportal.eu/fdsnws/event/1/query"

// timeLayout is the zone-less ISO-8601 form the service expects.
const timeLayout = "2006-01-02T15:04:05"

// PageQuery selects one page of events.
type PageQuery struct {
	Start  time.Time
	End    time.Time
	Limit  int
	Offset int // 1-based
}

// YearQuery returns the query for a page of a whole calendar year.
func YearQuery(year, limit, offset int) PageQuery {
	return PageQuery{
		Start:  time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC),
		Limit:  limit,
		Offset: offset,
	}
}

// Client fetches event pages over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a SeismicPortal client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

// FetchPage returns the raw features of one page. An empty slice means the
// query is exhausted; the service signals that with 204 or an empty collection.
func (c *Client) FetchPage(ctx context.Context, q PageQuery) ([]json.RawMessage, error) {
	params := url.Values{
		"starttime": {q.Start.UTC().Format(timeLayout)},
		"endtime":   {q.End.UTC().Format(timeLayout)},
		"format":    {"json"},
		"limit":     {strconv.Itoa(q.Limit)},
		"offset":    {strconv.Itoa(q.Offset)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("event query: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return nil, nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("seismicportal API error: status %d: %s", resp.StatusCode, body)
	}

	var page response
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	c.logger.Debug("fetched page",
		"offset", q.Offset,
		"events", len(page.Features),
		"duration", time.Since(start),
	)
	return page.Features, nil
}

// FetchYearPage fetches one page of a calendar year.
// It implements pipeline.PageSource.
func (c *Client) FetchYearPage(ctx context.Context, year, limit, offset int) ([]json.RawMessage, error) {
	return c.FetchPage(ctx, YearQuery(year, limit, offset))
}

// response is the subset of the GeoJSON FeatureCollection we read.
type response struct {
	Features []json.RawMessage `json:"features"`
}
