package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/couchcryptid/quake-data-etl/internal/adapter/duckdb"
	httpadapter "github.com/couchcryptid/quake-data-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/quake-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/quake-data-etl/internal/adapter/rawfile"
	"github.com/couchcryptid/quake-data-etl/internal/adapter/seismicportal"
	"github.com/couchcryptid/quake-data-etl/internal/adapter/snapshot"
	"github.com/couchcryptid/quake-data-etl/internal/config"
	"github.com/couchcryptid/quake-data-etl/internal/domain"
	"github.com/couchcryptid/quake-data-etl/internal/observability"
	"github.com/couchcryptid/quake-data-etl/internal/pipeline"
	"github.com/couchcryptid/quake-data-etl/internal/report"
)

var errUsage = errors.New("usage")

type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	stdout  io.Writer
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "fetch":
		return a.batch(func() error {
			_, err := a.fetcher().Fetch(ctx)
			return err
		})
	case "load":
		return a.batch(func() error { return a.load(ctx) })
	case "run":
		return a.batch(func() error { return a.run(ctx) })
	case "report":
		return a.report(ctx, args)
	case "serve":
		return a.serve(ctx)
	case "init":
		return a.initTable(ctx)
	case "delete-year":
		return a.deleteYear(ctx, args)
	default:
		return errUsage
	}
}

// batch runs a fetch or load command and dumps metrics to the textfile, if
// one is configured, whether or not the command succeeded.
func (a *app) batch(fn func() error) error {
	err := fn()
	if a.cfg.MetricsTextfile != "" {
		if werr := a.metrics.WriteTextfile(a.cfg.MetricsTextfile); werr != nil {
			a.logger.Error("metrics textfile not written", "path", a.cfg.MetricsTextfile, "error", werr)
		}
	}
	return err
}

func (a *app) fetcher() *pipeline.Fetcher {
	client := seismicportal.NewClient(a.cfg.APIURL, a.cfg.APITimeout, a.logger)
	return pipeline.NewFetcher(client, rawfile.File{Path: a.cfg.RawPath}, pipeline.FetchConfig{
		StartYear: a.cfg.StartYear,
		EndYear:   a.cfg.EndYear,
		PageSize:  a.cfg.PageSize,
		PageDelay: a.cfg.PageDelay,
	}, nil, a.logger, a.metrics)
}

// loader opens the writable store and, when brokers are configured, the
// Kafka publisher. The returned func closes both.
func (a *app) loader() (*pipeline.Loader, func(), error) {
	store, err := duckdb.Open(a.cfg.DBPath, a.logger)
	if err != nil {
		return nil, nil, err
	}

	var publisher pipeline.Publisher
	var writer *kafkaadapter.Writer
	if a.cfg.PublishEnabled() {
		writer = kafkaadapter.NewWriter(a.cfg, a.logger)
		publisher = writer
		a.logger.Info("kafka publishing enabled", "topic", a.cfg.KafkaTopic, "brokers", a.cfg.KafkaBrokers)
	}

	closeAll := func() {
		if writer != nil {
			if err := writer.Close(); err != nil {
				a.logger.Error("kafka writer close error", "error", err)
			}
		}
		if err := store.Close(); err != nil {
			a.logger.Error("duckdb close error", "error", err)
		}
	}

	l := pipeline.NewLoader(
		rawfile.File{Path: a.cfg.RawPath},
		snapshot.File{Path: a.cfg.SnapshotPath},
		store,
		publisher,
		domain.YearWindow(a.cfg.StartYear, a.cfg.EndYear),
		nil,
		a.logger,
		a.metrics,
	)
	return l, closeAll, nil
}

func (a *app) load(ctx context.Context) error {
	l, closeAll, err := a.loader()
	if err != nil {
		return err
	}
	defer closeAll()

	_, err = l.Load(ctx, pipeline.NewRunID())
	return err
}

func (a *app) run(ctx context.Context) error {
	_, err := pipeline.New(a.fetcher(), a.loader, a.logger).Run(ctx)
	return err
}

func (a *app) reportOptions(fs *flag.FlagSet) *report.Options {
	opts := &report.Options{}
	fs.IntVar(&opts.FromYear, "from", a.cfg.StartYear, "first year to report")
	fs.IntVar(&opts.ToYear, "to", a.cfg.EndYear, "last year to report")
	fs.Float64Var(&opts.MinMagnitude, "min-magnitude", a.cfg.ReportMinMagnitude, "magnitude threshold for strong quakes")
	fs.IntVar(&opts.TopN, "top", a.cfg.ReportTopN, "regions kept per year")
	return opts
}

func (a *app) report(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	opts := a.reportOptions(fs)
	csvDir := fs.String("csv", "", "also write one CSV file per section into this directory")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if opts.ToYear < opts.FromYear || opts.TopN < 1 {
		return fmt.Errorf("%w: -to must not be before -from and -top must be positive", config.ErrInvalidConfig)
	}

	store, err := duckdb.OpenReadOnly(a.cfg.DBPath, a.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	rep, err := report.Build(ctx, store, *opts)
	if err != nil {
		return err
	}
	if err := report.WriteText(a.stdout, rep); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if *csvDir != "" {
		if err := report.WriteCSV(*csvDir, rep); err != nil {
			return err
		}
		a.logger.Info("report csv written", "dir", *csvDir)
	}
	return nil
}

func (a *app) serve(ctx context.Context) error {
	store, err := duckdb.OpenReadOnly(a.cfg.DBPath, a.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	defaults := report.Options{
		FromYear:     a.cfg.StartYear,
		ToYear:       a.cfg.EndYear,
		MinMagnitude: a.cfg.ReportMinMagnitude,
		TopN:         a.cfg.ReportTopN,
	}
	srv := httpadapter.NewServer(a.cfg.HTTPAddr, store, store, defaults, a.logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", "error", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}

func (a *app) initTable(ctx context.Context) error {
	store, err := duckdb.Open(a.cfg.DBPath, a.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Init(ctx); err != nil {
		return err
	}
	a.logger.Info("earthquakes table ready", "db", a.cfg.DBPath)
	return nil
}

func (a *app) deleteYear(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete-year", flag.ContinueOnError)
	year := fs.Int("year", 0, "calendar year to delete (required)")
	if err := fs.Parse(args); err != nil || *year == 0 {
		return errUsage
	}

	store, err := duckdb.Open(a.cfg.DBPath, a.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.DeleteYear(ctx, *year)
	if err != nil {
		return err
	}
	a.logger.Info("year deleted", "year", *year, "rows", n)
	return nil
}
