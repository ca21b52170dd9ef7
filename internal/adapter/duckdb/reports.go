package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
)

// Reporting queries. They only read, and work on stores opened with OpenReadOnly.

// StrongQuakesByYear counts events with magnitude >= minMagnitude per year
// inside [fromYear, toYear].
func (s *Store) StrongQuakesByYear(ctx context.Context, minMagnitude float64, fromYear, toYear int) ([]domain.YearCount, error) {
	w := domain.YearWindow(fromYear, toYear)
	rows, err := s.db.QueryContext(ctx, `
		SELECT CAST(year(time) AS INTEGER) AS year, COUNT(*) AS n
		FROM `+Table+`
		WHERE magnitude >= ? AND time >= ? AND time < ?
		GROUP BY 1
		ORDER BY 1`, minMagnitude, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("query strong quakes: %w", err)
	}
	return scanAll(rows, func(r *sql.Rows) (domain.YearCount, error) {
		var yc domain.YearCount
		err := r.Scan(&yc.Year, &yc.Count)
		return yc, err
	})
}

// TopRegionsByYear ranks regions by event count within each year and keeps the
// first topN. NULL regions count as UNKNOWN; ties are broken by region name.
func (s *Store) TopRegionsByYear(ctx context.Context, topN, fromYear, toYear int) ([]domain.RegionRank, error) {
	w := domain.YearWindow(fromYear, toYear)
	rows, err := s.db.QueryContext(ctx, `
		WITH counts AS (
			SELECT CAST(year(time) AS INTEGER) AS year,
			       COALESCE(region, '`+domain.UnknownRegion+`') AS region,
			       COUNT(*) AS n
			FROM `+Table+`
			WHERE time >= ? AND time < ?
			GROUP BY 1, 2
		), ranked AS (
			SELECT year, region, n,
			       ROW_NUMBER() OVER (PARTITION BY year ORDER BY n DESC, region) AS rn
			FROM counts
		)
		SELECT year, CAST(rn AS INTEGER), region, n
		FROM ranked
		WHERE rn <= ?
		ORDER BY year, rn`, w.Start, w.End, topN)
	if err != nil {
		return nil, fmt.Errorf("query top regions: %w", err)
	}
	return scanAll(rows, func(r *sql.Rows) (domain.RegionRank, error) {
		var rr domain.RegionRank
		err := r.Scan(&rr.Year, &rr.Rank, &rr.Region, &rr.Count)
		return rr, err
	})
}

// SeasonalCounts buckets events into meteorological seasons, largest first.
func (s *Store) SeasonalCounts(ctx context.Context, fromYear, toYear int) ([]domain.SeasonCount, error) {
	w := domain.YearWindow(fromYear, toYear)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+seasonCase+` AS season,
		       COUNT(*) AS n
		FROM `+Table+`
		WHERE time >= ? AND time < ?
		GROUP BY 1
		ORDER BY n DESC, season`, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("query seasonal counts: %w", err)
	}
	return scanAll(rows, func(r *sql.Rows) (domain.SeasonCount, error) {
		var sc domain.SeasonCount
		err := r.Scan(&sc.Season, &sc.Count)
		return sc, err
	})
}

// seasonCase maps month(time) to a season name following domain.Seasons.
var seasonCase = func() string {
	var b strings.Builder
	b.WriteString("CASE")
	for _, s := range domain.Seasons {
		months := make([]string, len(s.Months))
		for i, m := range s.Months {
			months[i] = strconv.Itoa(m)
		}
		fmt.Fprintf(&b, " WHEN month(time) IN (%s) THEN '%s'", strings.Join(months, ", "), s.Name)
	}
	b.WriteString(" END")
	return b.String()
}()

func scanAll[T any](rows *sql.Rows, scan func(*sql.Rows) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
