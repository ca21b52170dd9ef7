package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/quake-data-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

// PageSource returns one page of raw features for a calendar year.
// An empty page means the year is exhausted.
type PageSource interface {
	FetchYearPage(ctx context.Context, year, limit, offset int) ([]json.RawMessage, error)
}

// RawWriter persists the fetched features, replacing any previous content.
type RawWriter interface {
	Write(features []json.RawMessage) error
}

// FetchConfig controls the year range and pagination of a fetch.
type FetchConfig struct {
	StartYear int
	EndYear   int
	PageSize  int
	PageDelay time.Duration
}

// YearSummary describes how pagination went for one year.
type YearSummary struct {
	Year   int
	Pages  int
	Events int
	Err    error // set when a failed request cut the year short
}

// FetchResult summarizes a completed fetch.
type FetchResult struct {
	Years  []YearSummary
	Events int
}

// Fetcher pages through the event service year by year and writes every
// feature it receives to the raw file in one pass.
type Fetcher struct {
	source  PageSource
	sink    RawWriter
	cfg     FetchConfig
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewFetcher creates a Fetcher. A nil clock uses the real clock.
func NewFetcher(source PageSource, sink RawWriter, cfg FetchConfig, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Fetcher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Fetcher{
		source:  source,
		sink:    sink,
		cfg:     cfg,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Fetch retrieves all years and overwrites the raw file. A failed page ends
// that year only; what was already fetched is kept. Cancelling ctx aborts the
// fetch without touching the raw file.
func (f *Fetcher) Fetch(ctx context.Context) (FetchResult, error) {
	start := f.clock.Now()
	var (
		result   FetchResult
		features []json.RawMessage
	)

	for year := f.cfg.StartYear; year <= f.cfg.EndYear; year++ {
		summary, page, err := f.fetchYear(ctx, year)
		if err != nil {
			return result, err
		}
		features = append(features, page...)
		result.Years = append(result.Years, summary)
		result.Events += summary.Events

		f.logger.Info("year fetched",
			"year", year,
			"pages", summary.Pages,
			"events", summary.Events,
			"complete", summary.Err == nil,
		)
	}

	if err := f.sink.Write(features); err != nil {
		return result, fmt.Errorf("write raw features: %w", err)
	}

	f.metrics.RunDuration.WithLabelValues("fetch").Observe(f.clock.Since(start).Seconds())
	f.metrics.LastSuccess.WithLabelValues("fetch").Set(float64(f.clock.Now().Unix()))
	f.logger.Info("fetch complete", "events", result.Events, "years", len(result.Years))
	return result, nil
}

func (f *Fetcher) fetchYear(ctx context.Context, year int) (YearSummary, []json.RawMessage, error) {
	summary := YearSummary{Year: year}
	label := strconv.Itoa(year)
	var features []json.RawMessage

	for offset := 1; ; offset += f.cfg.PageSize {
		page, err := f.source.FetchYearPage(ctx, year, f.cfg.PageSize, offset)
		if err != nil {
			if ctx.Err() != nil {
				return summary, nil, ctx.Err()
			}
			f.logger.Warn("page request failed, skipping rest of year",
				"year", year,
				"offset", offset,
				"error", err,
			)
			f.metrics.FetchErrors.WithLabelValues(label).Inc()
			summary.Err = err
			break
		}
		if len(page) == 0 {
			break
		}

		features = append(features, page...)
		summary.Pages++
		summary.Events += len(page)
		f.metrics.PagesFetched.WithLabelValues(label).Inc()
		f.metrics.EventsFetched.WithLabelValues(label).Add(float64(len(page)))

		if err := sleepWithContext(ctx, f.clock, f.cfg.PageDelay); err != nil {
			return summary, nil, err
		}
	}
	return summary, features, nil
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}
