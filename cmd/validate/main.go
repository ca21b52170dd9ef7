// Command validate performs offline integrity checks across the three
// artifacts of a load: the raw JSON file, the Parquet snapshot, and the
// DuckDB earthquakes table. It re-cleans the raw file and verifies that
// the snapshot and the table hold exactly the surviving rows, that every
// stored row is complete and inside the window, and that the table and
// snapshot agree row for row.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -raw data/raw/earthquakes_2020_2025.json \
//	  -snapshot data/processed/earthquakes_2020_2025.parquet \
//	  -db data/processed/earthquakes_2020_2025.duckdb
//
// Paths and the year range default to the QUAKE_* configuration.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/quake-data-etl/internal/adapter/duckdb"
	"github.com/couchcryptid/quake-data-etl/internal/adapter/rawfile"
	"github.com/couchcryptid/quake-data-etl/internal/adapter/snapshot"
	"github.com/couchcryptid/quake-data-etl/internal/config"
	"github.com/couchcryptid/quake-data-etl/internal/domain"
	"github.com/google/go-cmp/cmp"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// maxRowErrors caps per-row messages so a broken load stays readable.
const maxRowErrors = 20

type inputs struct {
	rawPath      string
	snapshotPath string
	dbPath       string
	window       domain.Window
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}

	rawPath := flag.String("raw", cfg.RawPath, "path to the raw JSON file")
	snapshotPath := flag.String("snapshot", cfg.SnapshotPath, "path to the Parquet snapshot")
	dbPath := flag.String("db", cfg.DBPath, "path to the DuckDB database")
	startYear := flag.Int("start-year", cfg.StartYear, "first year of the window")
	endYear := flag.Int("end-year", cfg.EndYear, "last year of the window")
	flag.Parse()

	if *endYear < *startYear {
		flag.Usage()
		os.Exit(1)
	}

	in := inputs{
		rawPath:      *rawPath,
		snapshotPath: *snapshotPath,
		dbPath:       *dbPath,
		window:       domain.YearWindow(*startYear, *endYear),
	}
	if code := run(context.Background(), in, os.Stdout); code != 0 {
		os.Exit(code)
	}
}

func run(ctx context.Context, in inputs, out io.Writer) int {
	fmt.Fprintln(out, "=== Earthquake Data Integrity Validation ===")
	fmt.Fprintln(out)

	// ── Load all artifacts ──

	raws, err := rawfile.Read(in.rawPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load raw file: %v\n", err)
		return 1
	}

	snapRows, err := snapshot.Read(in.snapshotPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load snapshot: %v\n", err)
		return 1
	}

	tableRows, err := loadTable(ctx, in.dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load table: %v\n", err)
		return 1
	}

	cleaned, drops := domain.Clean(raws, in.window)

	// ── Run validation phases ──

	phases := []*phase{
		validateRawFile(raws, drops),
		validateRowInvariants("Phase 2: Snapshot Row Invariants", snapRows, in.window),
		validateRowInvariants("Phase 3: Table Row Invariants", tableRows, in.window),
		validateParity("Phase 4: Raw File vs Snapshot", "raw", cleaned, "snapshot", snapRows),
		validateParity("Phase 5: Snapshot vs Table", "snapshot", snapRows, "table", tableRows),
	}

	// ── Report results ──

	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Records: %d raw, %d kept after cleaning, %d snapshot, %d table\n",
		len(raws), len(cleaned), len(snapRows), len(tableRows))
	if drops.Dropped() > 0 {
		parts := make([]string, 0, len(drops.ByReason))
		for _, reason := range drops.Reasons() {
			parts = append(parts, fmt.Sprintf("%s=%d", reason, drops.ByReason[reason]))
		}
		fmt.Fprintf(out, "Dropped: %d (%s)\n", drops.Dropped(), strings.Join(parts, ", "))
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func loadTable(ctx context.Context, path string) ([]domain.Event, error) {
	store, err := duckdb.OpenReadOnly(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.Events(ctx)
}

// ── Phase 1: Raw File ──
// Every raw element is a JSON object carrying a properties map, and the drop
// accounting adds up.

func validateRawFile(raws []json.RawMessage, drops domain.DropReport) *phase {
	p := &phase{name: "Phase 1: Raw File Structure"}

	for i, raw := range raws {
		if _, err := domain.ParseRawEvent(raw); err != nil {
			if len(p.errors) < maxRowErrors {
				p.errorf("feature %d: %v", i, err)
			}
		}
	}
	if drops.Read != len(raws) {
		p.errorf("cleaning read %d features, raw file has %d", drops.Read, len(raws))
	}
	if drops.Kept+drops.Dropped() != drops.Read {
		p.errorf("kept %d + dropped %d != read %d", drops.Kept, drops.Dropped(), drops.Read)
	}
	return p
}

// ── Phases 2-3: Row Invariants ──

func validateRowInvariants(name string, events []domain.Event, w domain.Window) *phase {
	p := &phase{name: name}

	for i := range events {
		if len(p.errors) >= maxRowErrors {
			p.errorf("... further rows not checked")
			break
		}
		checkEvent(p, i, &events[i], w)
	}
	return p
}

func checkEvent(p *phase, i int, e *domain.Event, w domain.Window) {
	pf := func(format string, args ...any) {
		p.errorf("row %d (%s): %s", i, ptrStr(e.SourceID), fmt.Sprintf(format, args...))
	}

	if e.Time.IsZero() {
		pf("time is zero")
	} else if !w.Contains(e.Time) {
		pf("time %s outside [%s, %s)", e.Time.Format(time.RFC3339), w.Start.Format(time.DateOnly), w.End.Format(time.DateOnly))
	}
	if e.Time.Location() != time.UTC {
		pf("time is not UTC")
	}
	if badFloat(e.Latitude) {
		pf("latitude is not a finite number")
	}
	if badFloat(e.Longitude) {
		pf("longitude is not a finite number")
	}
	if badFloat(e.Magnitude) {
		pf("magnitude is not a finite number")
	}
	if e.Depth != nil && badFloat(*e.Depth) {
		pf("depth is not a finite number")
	}
	if e.Region != nil && *e.Region == "" {
		pf("region is empty instead of NULL")
	}
}

// ── Phases 4-5: Parity ──
// Both sides must hold the same multiset of rows.

func validateParity(name, leftName string, left []domain.Event, rightName string, right []domain.Event) *phase {
	p := &phase{name: name}

	if len(left) != len(right) {
		p.errorf("%s has %d rows, %s has %d", leftName, len(left), rightName, len(right))
	}

	leftYears, rightYears := countByYear(left), countByYear(right)
	for _, year := range sortedKeys(leftYears, rightYears) {
		if leftYears[year] != rightYears[year] {
			p.errorf("year %d: %s has %d rows, %s has %d", year, leftName, leftYears[year], rightName, rightYears[year])
		}
	}

	if diff := cmp.Diff(sortEvents(left), sortEvents(right)); diff != "" {
		p.errorf("row content differs (-%s +%s):\n%s", leftName, rightName, diff)
	}
	return p
}

func sortEvents(events []domain.Event) []domain.Event {
	out := slices.Clone(events)
	slices.SortStableFunc(out, func(a, b domain.Event) int {
		if c := a.Time.Compare(b.Time); c != 0 {
			return c
		}
		if c := strings.Compare(ptrStr(a.SourceID), ptrStr(b.SourceID)); c != 0 {
			return c
		}
		if c := cmpFloat(a.Latitude, b.Latitude); c != 0 {
			return c
		}
		if c := cmpFloat(a.Longitude, b.Longitude); c != 0 {
			return c
		}
		return cmpFloat(a.Magnitude, b.Magnitude)
	})
	return out
}

func countByYear(events []domain.Event) map[int]int {
	counts := make(map[int]int)
	for i := range events {
		counts[events[i].Time.Year()]++
	}
	return counts
}

func sortedKeys(maps ...map[int]int) []int {
	var keys []int
	for _, m := range maps {
		for k := range m {
			if !slices.Contains(keys, k) {
				keys = append(keys, k)
			}
		}
	}
	slices.Sort(keys)
	return keys
}

// ── Helpers ──

func badFloat(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func ptrStr(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}
