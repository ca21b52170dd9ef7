package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	httpadapter "github.com/couchcryptid/quake-data-etl/internal/adapter/http"
	"github.com/couchcryptid/quake-data-etl/internal/domain"
	"github.com/couchcryptid/quake-data-etl/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type queryArgs struct {
	minMag   float64
	topN     int
	from, to int
}

type mockReports struct {
	err  error
	last queryArgs
}

func (m *mockReports) StrongQuakesByYear(_ context.Context, minMagnitude float64, fromYear, toYear int) ([]domain.YearCount, error) {
	m.last = queryArgs{minMag: minMagnitude, from: fromYear, to: toYear}
	if m.err != nil {
		return nil, m.err
	}
	return []domain.YearCount{{Year: 2022, Count: 2}}, nil
}

func (m *mockReports) TopRegionsByYear(_ context.Context, topN, fromYear, toYear int) ([]domain.RegionRank, error) {
	m.last = queryArgs{topN: topN, from: fromYear, to: toYear}
	if m.err != nil {
		return nil, m.err
	}
	return []domain.RegionRank{
		{Year: 2022, Rank: 1, Region: "JAPAN", Count: 3},
		{Year: 2023, Rank: 1, Region: "JAPAN", Count: 2},
	}, nil
}

func (m *mockReports) SeasonalCounts(_ context.Context, fromYear, toYear int) ([]domain.SeasonCount, error) {
	m.last = queryArgs{from: fromYear, to: toYear}
	return nil, m.err
}

var defaults = report.Options{FromYear: 2020, ToYear: 2025, MinMagnitude: 5.0, TopN: 10}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(readyErr error, reports *mockReports) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, reports, defaults, discardLogger())
}

func get(t *testing.T, srv *httpadapter.Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(t, newTestServer(nil, &mockReports{}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(t, newTestServer(nil, &mockReports{}), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(t, newTestServer(fmt.Errorf("table earthquakes does not exist"), &mockReports{}), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(nil, &mockReports{}), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestStrongReport_UsesDefaults(t *testing.T) {
	reports := &mockReports{}
	rec := get(t, newTestServer(nil, reports), "/reports/strong")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, queryArgs{minMag: 5.0, from: 2020, to: 2025}, reports.last)

	var body []domain.YearCount
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []domain.YearCount{{Year: 2022, Count: 2}}, body)
}

func TestTopRegionsReport_QueryParams(t *testing.T) {
	reports := &mockReports{}
	rec := get(t, newTestServer(nil, reports), "/reports/top-regions?from=2022&to=2023&top=3")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, queryArgs{topN: 3, from: 2022, to: 2023}, reports.last)
	assert.JSONEq(t, `[
		{"year":2022,"rank":1,"region":"JAPAN","count":3},
		{"year":2023,"rank":1,"region":"JAPAN","count":2}
	]`, rec.Body.String())
}

func TestSeasonsReport_EmptyIsArray(t *testing.T) {
	rec := get(t, newTestServer(nil, &mockReports{}), "/reports/seasons?min_magnitude=6.5")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestFullReport(t *testing.T) {
	rec := get(t, newTestServer(nil, &mockReports{}), "/reports")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Strong     []domain.YearCount   `json:"strong_quakes"`
		Consistent []report.RegionYears `json:"consistent_regions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Strong, 1)
	assert.Equal(t, []report.RegionYears{{Region: "JAPAN", Years: 2}}, body.Consistent)
}

func TestReports_BadParams(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"non-numeric from", "/reports/strong?from=abc"},
		{"non-numeric to", "/reports/seasons?to=2x"},
		{"bad magnitude", "/reports/strong?min_magnitude=big"},
		{"zero top", "/reports/top-regions?top=0"},
		{"reversed range", "/reports/strong?from=2025&to=2020"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reports := &mockReports{}
			rec := get(t, newTestServer(nil, reports), tt.target)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, queryArgs{}, reports.last)
		})
	}
}

func TestReports_QueryErrorIs500(t *testing.T) {
	rec := get(t, newTestServer(nil, &mockReports{err: errors.New("database is locked")}), "/reports/strong")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "locked")
}
