// Package report assembles the read-only earthquake aggregates and renders
// them as text tables or CSV files.
package report

import (
	"context"
	"fmt"
	"sort"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
)

// Querier runs the aggregate queries a report is built from.
type Querier interface {
	StrongQuakesByYear(ctx context.Context, minMagnitude float64, fromYear, toYear int) ([]domain.YearCount, error)
	TopRegionsByYear(ctx context.Context, topN, fromYear, toYear int) ([]domain.RegionRank, error)
	SeasonalCounts(ctx context.Context, fromYear, toYear int) ([]domain.SeasonCount, error)
}

// Options select the year range and thresholds of a report.
type Options struct {
	FromYear     int
	ToYear       int
	MinMagnitude float64
	TopN         int
}

// RegionYears counts the years in which a region made the top-N.
type RegionYears struct {
	Region string `json:"region" csv:"region"`
	Years  int    `json:"years" csv:"years_in_top"`
}

// Report holds every section of the earthquake report.
type Report struct {
	Options    Options              `json:"-"`
	Strong     []domain.YearCount   `json:"strong_quakes"`
	TopRegions []domain.RegionRank  `json:"top_regions"`
	Consistent []RegionYears        `json:"consistent_regions"`
	Seasons    []domain.SeasonCount `json:"seasons"`
}

// Build runs the report queries for opts.
func Build(ctx context.Context, q Querier, opts Options) (Report, error) {
	r := Report{Options: opts}

	strong, err := q.StrongQuakesByYear(ctx, opts.MinMagnitude, opts.FromYear, opts.ToYear)
	if err != nil {
		return r, fmt.Errorf("strong quakes: %w", err)
	}
	r.Strong = strong

	top, err := q.TopRegionsByYear(ctx, opts.TopN, opts.FromYear, opts.ToYear)
	if err != nil {
		return r, fmt.Errorf("top regions: %w", err)
	}
	r.TopRegions = top
	r.Consistent = ConsistentRegions(top)

	seasons, err := q.SeasonalCounts(ctx, opts.FromYear, opts.ToYear)
	if err != nil {
		return r, fmt.Errorf("seasonal counts: %w", err)
	}
	r.Seasons = seasons

	return r, nil
}

// ConsistentRegions returns the regions ranked in more than one year, most
// years first, then by region name.
func ConsistentRegions(top []domain.RegionRank) []RegionYears {
	years := make(map[string]map[int]struct{})
	for _, rr := range top {
		if years[rr.Region] == nil {
			years[rr.Region] = make(map[int]struct{})
		}
		years[rr.Region][rr.Year] = struct{}{}
	}

	var out []RegionYears
	for region, ys := range years {
		if len(ys) > 1 {
			out = append(out, RegionYears{Region: region, Years: len(ys)})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Years != out[j].Years {
			return out[i].Years > out[j].Years
		}
		return out[i].Region < out[j].Region
	})
	return out
}
