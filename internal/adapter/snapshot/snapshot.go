// Package snapshot writes the cleaned event set to a snappy-compressed Parquet file.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
	"github.com/parquet-go/parquet-go"
)

// Row is the Parquet schema; column names match the earthquakes table.
type Row struct {
	SourceID  *string   `parquet:"source_id,optional"`
	Time      time.Time `parquet:"time,timestamp(microsecond)"`
	Latitude  float64   `parquet:"latitude"`
	Longitude float64   `parquet:"longitude"`
	Depth     *float64  `parquet:"depth,optional"`
	Magnitude float64   `parquet:"magnitude"`
	Region    *string   `parquet:"region,optional"`
}

func toRow(ev domain.Event) Row {
	return Row{
		SourceID:  ev.SourceID,
		Time:      ev.Time.UTC(),
		Latitude:  ev.Latitude,
		Longitude: ev.Longitude,
		Depth:     ev.Depth,
		Magnitude: ev.Magnitude,
		Region:    ev.Region,
	}
}

func (r Row) event() domain.Event {
	return domain.Event{
		SourceID:  r.SourceID,
		Time:      r.Time.UTC(),
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Depth:     r.Depth,
		Magnitude: r.Magnitude,
		Region:    r.Region,
	}
}

// File binds Read and Write to one path.
type File struct {
	Path string
}

func (f File) Read() ([]domain.Event, error)       { return Read(f.Path) }
func (f File) Write(events []domain.Event) error { return Write(f.Path, events) }

// Write replaces the snapshot at path with events.
func Write(path string, events []domain.Event) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	rows := make([]Row, len(events))
	for i := range events {
		rows[i] = toRow(events[i])
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	w := parquet.NewGenericWriter[Row](tmp, parquet.Compression(&parquet.Snappy))
	if _, err := w.Write(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot rows: %w", err)
	}
	if err := w.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("finish snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Read returns every event stored in the snapshot, in file order.
func Read(path string) ([]domain.Event, error) {
	rows, err := parquet.ReadFile[Row](path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	events := make([]domain.Event, len(rows))
	for i := range rows {
		events[i] = rows[i].event()
	}
	return events, nil
}
