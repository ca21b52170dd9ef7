package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/quake-data-etl/internal/adapter/duckdb"
	"github.com/couchcryptid/quake-data-etl/internal/adapter/snapshot"
	"github.com/couchcryptid/quake-data-etl/internal/config"
	"github.com/couchcryptid/quake-data-etl/internal/observability"
	"github.com/couchcryptid/quake-data-etl/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRawPath = "../../data/mock/earthquakes_sample.json"

func testApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()

	cfg := config.New()
	cfg.RawPath = sampleRawPath
	cfg.SnapshotPath = filepath.Join(dir, "processed", "earthquakes.parquet")
	cfg.DBPath = filepath.Join(dir, "processed", "earthquakes.duckdb")
	cfg.MetricsTextfile = filepath.Join(dir, "metrics", "quake.prom")

	var out bytes.Buffer
	return &app{
		cfg:     cfg,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: observability.NewMetricsForTesting(),
		stdout:  &out,
	}, &out
}

func countRows(t *testing.T, path string) int64 {
	t.Helper()
	store, err := duckdb.OpenReadOnly(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer store.Close()

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestDispatch_LoadReportDeleteYear(t *testing.T) {
	a, out := testApp(t)
	ctx := context.Background()

	require.NoError(t, a.dispatch(ctx, "init", nil))
	require.NoError(t, a.dispatch(ctx, "load", nil))
	assert.Equal(t, int64(5), countRows(t, a.cfg.DBPath))

	events, err := snapshot.Read(a.cfg.SnapshotPath)
	require.NoError(t, err)
	assert.Len(t, events, 5)

	prom, err := os.ReadFile(a.cfg.MetricsTextfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "quake_etl_rows_loaded_total 5")

	csvDir := filepath.Join(t.TempDir(), "reports")
	require.NoError(t, a.dispatch(ctx, "report", []string{"-csv", csvDir}))
	assert.Contains(t, out.String(), "=== Strong Earthquakes (M >= 5.0) Per Year ===")
	assert.FileExists(t, filepath.Join(csvDir, report.StrongFile))
	assert.FileExists(t, filepath.Join(csvDir, report.SeasonsFile))

	require.NoError(t, a.dispatch(ctx, "delete-year", []string{"-year", "2022"}))
	assert.Equal(t, int64(3), countRows(t, a.cfg.DBPath))
}

func TestDispatch_LoadTwiceIsIdempotent(t *testing.T) {
	a, _ := testApp(t)
	ctx := context.Background()

	require.NoError(t, a.dispatch(ctx, "load", nil))
	require.NoError(t, a.dispatch(ctx, "load", nil))

	assert.Equal(t, int64(5), countRows(t, a.cfg.DBPath))
}

func TestDispatch_UsageErrors(t *testing.T) {
	a, _ := testApp(t)
	ctx := context.Background()

	require.ErrorIs(t, a.dispatch(ctx, "explode", nil), errUsage)
	require.ErrorIs(t, a.dispatch(ctx, "delete-year", nil), errUsage)
	require.ErrorIs(t, a.dispatch(ctx, "report", []string{"-top", "many"}), errUsage)
}

func TestDispatch_ReportRejectsReversedRange(t *testing.T) {
	a, _ := testApp(t)

	err := a.dispatch(context.Background(), "report", []string{"-from", "2025", "-to", "2020"})
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestDispatch_LoadMissingRawFile(t *testing.T) {
	a, _ := testApp(t)
	a.cfg.RawPath = filepath.Join(t.TempDir(), "missing.json")

	err := a.dispatch(context.Background(), "load", nil)
	require.Error(t, err)
	assert.NoFileExists(t, a.cfg.SnapshotPath)
}

func TestDispatch_RunOpensDatabaseAfterFetch(t *testing.T) {
	a, _ := testApp(t)
	a.cfg.RawPath = filepath.Join(t.TempDir(), "raw", "earthquakes.json")
	a.cfg.StartYear, a.cfg.EndYear = 2021, 2021
	a.cfg.PageDelay = 0

	var dbDuringFetch []bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, err := os.Stat(a.cfg.DBPath)
		dbDuringFetch = append(dbDuringFetch, err == nil)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	a.cfg.APIURL = srv.URL

	require.NoError(t, a.dispatch(context.Background(), "run", nil))

	require.NotEmpty(t, dbDuringFetch)
	for _, exists := range dbDuringFetch {
		assert.False(t, exists, "database opened while fetching")
	}
	assert.FileExists(t, a.cfg.DBPath)
}

func TestDispatch_RunFetchFailureLeavesDatabaseClosed(t *testing.T) {
	a, _ := testApp(t)
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	a.cfg.RawPath = filepath.Join(blocker, "earthquakes.json")
	a.cfg.StartYear, a.cfg.EndYear = 2021, 2021
	a.cfg.PageDelay = 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	a.cfg.APIURL = srv.URL

	require.Error(t, a.dispatch(context.Background(), "run", nil))
	assert.NoFileExists(t, a.cfg.DBPath)
}
