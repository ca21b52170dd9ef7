// Command quake fetches earthquake events from the seismicportal FDSN API,
// cleans them, and loads them into a Parquet snapshot and a DuckDB table.
//
// Usage:
//
//	quake fetch                      download every configured year to the raw file
//	quake load                       clean the raw file and replace snapshot and table
//	quake run                        fetch, then load
//	quake report [-csv dir] ...      print the read-only aggregate report
//	quake serve                      health, metrics, and report endpoints over HTTP
//	quake init                       create the earthquakes table if missing
//	quake delete-year -year 2023     remove one calendar year from the table
//
// Every load fully replaces the snapshot and the earthquakes table with the
// cleaned content of the raw file, so re-running it is idempotent.
// Settings come from QUAKE_* environment variables, an optional .env file,
// and the YAML file named by QUAKE_CONFIG.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/quake-data-etl/internal/config"
	"github.com/couchcryptid/quake-data-etl/internal/observability"
	"github.com/joho/godotenv"
)

const usage = `usage: quake <command> [flags]

commands:
  fetch        download every configured year to the raw file
  load         clean the raw file and fully replace snapshot and table
  run          fetch, then load
  report       print strong-quake, top-region, and seasonal aggregates
  serve        serve /healthz, /readyz, /metrics, and /reports over HTTP
  init         create the earthquakes table if it does not exist
  delete-year  remove one calendar year from the earthquakes table
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to read .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	a := &app{cfg: cfg, logger: logger, metrics: metrics, stdout: os.Stdout}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	if err := a.dispatch(ctx, cmd, args); err != nil {
		stop()
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		logger.Error("command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}
