package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
	"github.com/couchcryptid/quake-data-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

// RawReader returns the features written by the last fetch.
type RawReader interface {
	Read() ([]json.RawMessage, error)
}

// SnapshotWriter replaces the columnar snapshot with the cleaned events.
type SnapshotWriter interface {
	Write(events []domain.Event) error
}

// EventStore replaces the content of the earthquakes table.
type EventStore interface {
	ReplaceEvents(ctx context.Context, events []domain.Event) error
}

// Publisher forwards cleaned events downstream after a load.
type Publisher interface {
	Publish(ctx context.Context, runID string, loadedAt time.Time, events []domain.Event) error
}

// LoadResult summarizes one load.
type LoadResult struct {
	RunID      string
	Skipped    bool // the raw file held no features; nothing was written
	Drops      domain.DropReport
	Loaded     int
	Published  int
	PublishErr error
}

// Loader cleans the raw file and performs an idempotent full replace of the
// snapshot and the earthquakes table.
type Loader struct {
	raw       RawReader
	snapshot  SnapshotWriter
	store     EventStore
	publisher Publisher
	window    domain.Window
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewLoader creates a Loader. publisher may be nil; a nil clock uses the real clock.
func NewLoader(raw RawReader, snapshot SnapshotWriter, store EventStore, publisher Publisher, window domain.Window, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Loader {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Loader{
		raw:       raw,
		snapshot:  snapshot,
		store:     store,
		publisher: publisher,
		window:    window,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// Load runs one load tagged with runID. Row-level problems are counted in the
// result; only file, database, and context failures are returned as errors.
// A publish failure is reported in LoadResult.PublishErr and leaves the load in place.
func (l *Loader) Load(ctx context.Context, runID string) (LoadResult, error) {
	start := l.clock.Now()
	logger := l.logger.With("run_id", runID)
	result := LoadResult{RunID: runID}

	raws, err := l.raw.Read()
	if err != nil {
		return result, fmt.Errorf("read raw file: %w", err)
	}
	if len(raws) == 0 {
		logger.Info("raw file holds no events, nothing to load")
		result.Skipped = true
		return result, nil
	}
	l.metrics.RowsRead.Add(float64(len(raws)))

	events, drops := domain.Clean(raws, l.window)
	result.Drops = drops
	for reason, n := range drops.ByReason {
		l.metrics.RowsDropped.WithLabelValues(reason).Add(float64(n))
	}
	logger.Info("events cleaned",
		"read", drops.Read,
		"kept", drops.Kept,
		"dropped", drops.Dropped(),
		"drop_reasons", drops.ByReason,
		"window_start", l.window.Start,
		"window_end", l.window.End,
	)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	if err := l.snapshot.Write(events); err != nil {
		return result, fmt.Errorf("write snapshot: %w", err)
	}
	// Once the snapshot is written the table must follow it.
	if err := l.store.ReplaceEvents(context.WithoutCancel(ctx), events); err != nil {
		return result, fmt.Errorf("replace earthquakes table: %w", err)
	}
	result.Loaded = len(events)
	l.metrics.RowsLoaded.Add(float64(len(events)))

	if l.publisher != nil && len(events) > 0 {
		if err := l.publisher.Publish(ctx, runID, l.clock.Now(), events); err != nil {
			logger.Error("publish cleaned events failed", "error", err)
			result.PublishErr = err
		} else {
			result.Published = len(events)
			l.metrics.RowsPublished.Add(float64(len(events)))
		}
	}

	l.metrics.RunDuration.WithLabelValues("load").Observe(l.clock.Since(start).Seconds())
	l.metrics.LastSuccess.WithLabelValues("load").Set(float64(l.clock.Now().Unix()))
	logger.Info("load complete", "rows", result.Loaded, "published", result.Published)
	return result, nil
}
