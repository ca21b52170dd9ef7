package duckdb

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quakes.duckdb")
	s, err := Open(path, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func at(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
}

func sampleEvents() []domain.Event {
	return []domain.Event{
		{SourceID: ptr("a"), Time: at(2022, 1, 5), Latitude: 1, Longitude: 2, Depth: ptr(10.0), Magnitude: 5.1, Region: ptr("ALASKA")},
		{SourceID: ptr("b"), Time: at(2022, 4, 5), Latitude: 3, Longitude: 4, Magnitude: 4.9, Region: ptr("ALASKA")},
		{Time: at(2022, 7, 5), Latitude: 5, Longitude: 6, Depth: ptr(33.5), Magnitude: 6.0},
		{SourceID: ptr("d"), Time: at(2023, 12, 5), Latitude: 7, Longitude: 8, Magnitude: 3.0, Region: ptr("JAPAN")},
	}
}

func TestStore_InitIsIdempotent(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.Error(t, s.CheckReadiness(ctx), "table must not exist before Init")
	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.CheckReadiness(ctx))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_ReplaceEvents_RoundTrip(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	events := sampleEvents()

	require.NoError(t, s.ReplaceEvents(ctx, events))

	got, err := s.Events(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(events, got); diff != "" {
		t.Errorf("table content mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_ReplaceEvents_Idempotent(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Init(ctx))

	require.NoError(t, s.ReplaceEvents(ctx, sampleEvents()))
	first, err := s.Events(ctx)
	require.NoError(t, err)

	require.NoError(t, s.ReplaceEvents(ctx, sampleEvents()))
	second, err := s.Events(ctx)
	require.NoError(t, err)

	assert.Len(t, second, len(sampleEvents()))
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second load changed table (-first +second):\n%s", diff)
	}
}

func TestStore_ReplaceEvents_ShrinksTable(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceEvents(ctx, sampleEvents()))
	require.NoError(t, s.ReplaceEvents(ctx, sampleEvents()[:1]))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := s.tableExists(ctx, stagingTable)
	require.NoError(t, err)
	assert.False(t, ok, "staging table must be renamed away")
}

func TestStore_ReplaceEvents_AppendFailureDropsStaging(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceEvents(ctx, sampleEvents()))

	appendErr := errors.New("disk full")
	s.appendRows = func(ctx context.Context, table string, events []domain.Event) error {
		require.NoError(t, s.appendEvents(ctx, table, events[:1]))
		return appendErr
	}

	err := s.ReplaceEvents(ctx, sampleEvents()[:2])
	require.ErrorIs(t, err, appendErr)

	ok, err := s.tableExists(ctx, stagingTable)
	require.NoError(t, err)
	assert.False(t, ok, "staging table left behind")

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(sampleEvents())), n, "previous table must survive")
}

func TestStore_ReplaceEvents_CancelledDropsStaging(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, s.ReplaceEvents(context.Background(), sampleEvents()))

	ctx, cancel := context.WithCancel(context.Background())
	s.appendRows = func(ctx context.Context, table string, events []domain.Event) error {
		cancel()
		return ctx.Err()
	}

	err := s.ReplaceEvents(ctx, sampleEvents()[:1])
	require.ErrorIs(t, err, context.Canceled)

	ok, err := s.tableExists(context.Background(), stagingTable)
	require.NoError(t, err)
	assert.False(t, ok, "staging table left behind")
}

func TestStore_DeleteYear(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceEvents(ctx, sampleEvents()))

	n, err := s.DeleteYear(ctx, 2022)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got, err := s.Events(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2023, got[0].Time.Year())
}

func TestStore_ReadOnly(t *testing.T) {
	s, path := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceEvents(ctx, sampleEvents()))
	require.NoError(t, s.Close())

	ro, err := OpenReadOnly(path, discardLogger())
	require.NoError(t, err)
	defer ro.Close()

	require.ErrorIs(t, ro.ReplaceEvents(ctx, nil), ErrReadOnly)
	_, err = ro.DeleteYear(ctx, 2022)
	require.ErrorIs(t, err, ErrReadOnly)
	require.ErrorIs(t, ro.Init(ctx), ErrReadOnly)

	n, err := ro.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestStore_StrongQuakesByYear(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceEvents(ctx, sampleEvents()))

	got, err := s.StrongQuakesByYear(ctx, 5.0, 2020, 2025)
	require.NoError(t, err)

	assert.Equal(t, []domain.YearCount{{Year: 2022, Count: 2}}, got)
}

func TestStore_TopRegionsByYear(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceEvents(ctx, sampleEvents()))

	got, err := s.TopRegionsByYear(ctx, 10, 2020, 2025)
	require.NoError(t, err)

	assert.Equal(t, []domain.RegionRank{
		{Year: 2022, Rank: 1, Region: "ALASKA", Count: 2},
		{Year: 2022, Rank: 2, Region: domain.UnknownRegion, Count: 1},
		{Year: 2023, Rank: 1, Region: "JAPAN", Count: 1},
	}, got)

	top1, err := s.TopRegionsByYear(ctx, 1, 2022, 2022)
	require.NoError(t, err)
	assert.Equal(t, []domain.RegionRank{{Year: 2022, Rank: 1, Region: "ALASKA", Count: 2}}, top1)
}

func TestStore_SeasonalCounts(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.ReplaceEvents(ctx, sampleEvents()))

	got, err := s.SeasonalCounts(ctx, 2020, 2025)
	require.NoError(t, err)

	assert.Equal(t, []domain.SeasonCount{
		{Season: "Winter", Count: 2},
		{Season: "Spring", Count: 1},
		{Season: "Summer", Count: 1},
	}, got)
}

func TestStore_SeasonalCounts_MatchesSeasonRule(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	var events []domain.Event
	want := make(map[string]int64)
	for m := time.January; m <= time.December; m++ {
		events = append(events, domain.Event{Time: at(2021, m, 15), Magnitude: 2.0})
		want[domain.Season(int(m))]++
	}
	require.NoError(t, s.ReplaceEvents(ctx, events))

	got, err := s.SeasonalCounts(ctx, 2021, 2021)
	require.NoError(t, err)

	gotMap := make(map[string]int64, len(got))
	for _, sc := range got {
		gotMap[sc.Season] = sc.Count
	}
	assert.Equal(t, want, gotMap)
}
