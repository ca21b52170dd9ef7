package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/jszwec/csvutil"
)

// CSV file names written by WriteCSV.
const (
	StrongFile     = "strong_quakes_by_year.csv"
	TopRegionsFile = "top_regions_by_year.csv"
	ConsistentFile = "consistent_regions.csv"
	SeasonsFile    = "seasonal_counts.csv"
)

// WriteText renders the report as aligned plain-text tables.
func WriteText(w io.Writer, r Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	o := r.Options

	fmt.Fprintf(tw, "=== Strong Earthquakes (M >= %.1f) Per Year ===\n", o.MinMagnitude)
	fmt.Fprintln(tw, "YEAR\tCOUNT")
	for _, yc := range r.Strong {
		fmt.Fprintf(tw, "%d\t%d\n", yc.Year, yc.Count)
	}

	fmt.Fprintf(tw, "\n=== Top %d Regions Per Year ===\n", o.TopN)
	fmt.Fprintln(tw, "YEAR\tRANK\tREGION\tCOUNT")
	for _, rr := range r.TopRegions {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%d\n", rr.Year, rr.Rank, rr.Region, rr.Count)
	}

	fmt.Fprintf(tw, "\n=== Consistently Frequent Regions (%d-%d) ===\n", o.FromYear, o.ToYear)
	fmt.Fprintf(tw, "REGION\tYEARS IN TOP %d\n", o.TopN)
	for _, ry := range r.Consistent {
		fmt.Fprintf(tw, "%s\t%d\n", ry.Region, ry.Years)
	}

	fmt.Fprintln(tw, "\n=== Seasonal Distribution ===")
	fmt.Fprintln(tw, "SEASON\tCOUNT")
	for _, sc := range r.Seasons {
		fmt.Fprintf(tw, "%s\t%d\n", sc.Season, sc.Count)
	}

	return tw.Flush()
}

// WriteCSV writes one CSV file per report section into dir. Empty sections
// still get a header row.
func WriteCSV(dir string, r Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := writeCSV(filepath.Join(dir, StrongFile), r.Strong); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(dir, TopRegionsFile), r.TopRegions); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(dir, ConsistentFile), r.Consistent); err != nil {
		return err
	}
	return writeCSV(filepath.Join(dir, SeasonsFile), r.Seasons)
}

func writeCSV[T any](path string, rows []T) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	enc := csvutil.NewEncoder(w)
	var zero T
	if err := enc.EncodeHeader(zero); err != nil {
		return fmt.Errorf("encode %s header: %w", filepath.Base(path), err)
	}
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
