// Package duckdb persists cleaned earthquake rows in a DuckDB database file.
package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/quake-data-etl/internal/domain"
	duckdbgo "github.com/duckdb/duckdb-go/v2"
)

const (
	// Table is the name of the cleaned events table.
	Table        = "earthquakes"
	stagingTable = "earthquakes_staging"
)

// ErrReadOnly is returned by mutating calls on a store opened with OpenReadOnly.
var ErrReadOnly = errors.New("store is read-only")

const columns = `source_id VARCHAR,
	time TIMESTAMP NOT NULL,
	latitude DOUBLE NOT NULL,
	longitude DOUBLE NOT NULL,
	depth DOUBLE,
	magnitude DOUBLE NOT NULL,
	region VARCHAR`

// Store wraps a DuckDB database. The sql.DB handles DDL and queries; bulk
// inserts go through the native Appender on a dedicated connection.
type Store struct {
	db       *sql.DB
	readOnly bool
	logger   *slog.Logger

	// appendRows fills a table; tests replace it to fail mid-load.
	appendRows func(ctx context.Context, table string, events []domain.Event) error
}

// Open opens (creating if needed) the database at path for reading and writing.
// It does not create any table; call Init for that.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return open(path, false, logger)
}

// OpenReadOnly opens an existing database without write access.
func OpenReadOnly(path string, logger *slog.Logger) (*Store, error) {
	return open(path+"?access_mode=READ_ONLY", true, logger)
}

func open(dsn string, readOnly bool, logger *slog.Logger) (*Store, error) {
	connector, err := duckdbgo.NewConnector(dsn, nil)
	if err != nil {
		return nil, fmt.Errorf("create duckdb connector: %w", err)
	}
	s := &Store{
		db:       sql.OpenDB(connector),
		readOnly: readOnly,
		logger:   logger,
	}
	s.appendRows = s.appendEvents
	return s, nil
}

// Close releases the database handle. The pool closes the connector.
func (s *Store) Close() error {
	return s.db.Close()
}

// Init creates the earthquakes table if it does not exist.
func (s *Store) Init(ctx context.Context) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if _, err := s.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS "+Table+" ("+columns+")"); err != nil {
		return fmt.Errorf("create %s table: %w", Table, err)
	}
	return nil
}

// CheckReadiness reports whether the database answers and the table exists.
func (s *Store) CheckReadiness(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping duckdb: %w", err)
	}
	ok, err := s.tableExists(ctx, Table)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("table %s does not exist", Table)
	}
	return nil
}

func (s *Store) tableExists(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?", name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("look up table %s: %w", name, err)
	}
	return n > 0, nil
}

// ReplaceEvents makes events the entire content of the earthquakes table.
// Rows are appended to a staging table which is then swapped in with a single
// transaction, so a failed load leaves the previous table untouched.
func (s *Store) ReplaceEvents(ctx context.Context, events []domain.Event) error {
	if s.readOnly {
		return ErrReadOnly
	}
	start := time.Now()

	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+stagingTable); err != nil {
		return fmt.Errorf("drop staging table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE TABLE "+stagingTable+" ("+columns+")"); err != nil {
		return fmt.Errorf("create staging table: %w", err)
	}
	swapped := false
	defer func() {
		if !swapped {
			s.dropStaging()
		}
	}()

	if err := s.appendRows(ctx, stagingTable, events); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin swap: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+Table); err != nil {
		return fmt.Errorf("drop %s: %w", Table, err)
	}
	if _, err := tx.ExecContext(ctx, "ALTER TABLE "+stagingTable+" RENAME TO "+Table); err != nil {
		return fmt.Errorf("rename staging table: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit swap: %w", err)
	}
	swapped = true

	s.logger.Info("earthquakes table replaced", "rows", len(events), "duration", time.Since(start))
	return nil
}

// dropStaging removes a half-filled staging table after a failed replace. It
// runs after the swap transaction has rolled back and ignores cancellation.
func (s *Store) dropStaging() {
	if _, err := s.db.ExecContext(context.Background(), "DROP TABLE IF EXISTS "+stagingTable); err != nil {
		s.logger.Warn("staging table not dropped", "table", stagingTable, "error", err)
	}
}

func (s *Store) appendEvents(ctx context.Context, table string, events []domain.Event) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	return conn.Raw(func(dc any) error {
		driverConn, ok := dc.(driver.Conn)
		if !ok {
			return errors.New("unexpected duckdb driver connection type")
		}
		appender, err := duckdbgo.NewAppenderFromConn(driverConn, "", table)
		if err != nil {
			return fmt.Errorf("create appender: %w", err)
		}

		for i := range events {
			ev := &events[i]
			err := appender.AppendRow(
				nullable(ev.SourceID),
				ev.Time.UTC(),
				ev.Latitude,
				ev.Longitude,
				nullable(ev.Depth),
				ev.Magnitude,
				nullable(ev.Region),
			)
			if err != nil {
				appender.Close() //nolint:errcheck // already failing
				return fmt.Errorf("append row %d: %w", i, err)
			}
		}
		if err := appender.Close(); err != nil {
			return fmt.Errorf("flush appender: %w", err)
		}
		return nil
	})
}

// DeleteYear removes every row whose time falls in the given calendar year.
func (s *Store) DeleteYear(ctx context.Context, year int) (int64, error) {
	if s.readOnly {
		return 0, ErrReadOnly
	}
	w := domain.YearWindow(year, year)
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM "+Table+" WHERE time >= ? AND time < ?", w.Start, w.End)
	if err != nil {
		return 0, fmt.Errorf("delete year %d: %w", year, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Count returns the number of rows in the earthquakes table.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+Table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", Table, err)
	}
	return n, nil
}

// Events returns all rows ordered by time, then by the remaining columns.
func (s *Store) Events(ctx context.Context) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, time, latitude, longitude, depth, magnitude, region
		FROM `+Table+`
		ORDER BY time, source_id NULLS FIRST, latitude, longitude, magnitude`)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", Table, err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			ev       domain.Event
			sourceID sql.NullString
			depth    sql.NullFloat64
			region   sql.NullString
		)
		if err := rows.Scan(&sourceID, &ev.Time, &ev.Latitude, &ev.Longitude, &depth, &ev.Magnitude, &region); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Time = ev.Time.UTC()
		ev.SourceID = ptrOf(sourceID)
		if depth.Valid {
			ev.Depth = &depth.Float64
		}
		ev.Region = ptrOf(region)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// nullable unwraps optional fields; the Appender wants a value or nil.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func ptrOf(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
