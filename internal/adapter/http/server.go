package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/quake-data-etl/internal/report"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const queryTimeout = 5 * time.Second

// Server exposes health, readiness, metrics, and read-only report endpoints.
type Server struct {
	httpServer *http.Server
	reports    report.Querier
	defaults   report.Options
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and the
// /reports routes. defaults fill in any query parameter a request omits.
func NewServer(addr string, ready sharedobs.ReadinessChecker, reports report.Querier, defaults report.Options, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		reports:  reports,
		defaults: defaults,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /reports", s.handleReport)
	mux.HandleFunc("GET /reports/strong", s.handleStrong)
	mux.HandleFunc("GET /reports/top-regions", s.handleTopRegions)
	mux.HandleFunc("GET /reports/seasons", s.handleSeasons)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.options(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	rep, err := report.Build(ctx, s.reports, opts)
	if err != nil {
		s.queryFailed(w, "report", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleStrong(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.options(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	rows, err := s.reports.StrongQuakesByYear(ctx, opts.MinMagnitude, opts.FromYear, opts.ToYear)
	if err != nil {
		s.queryFailed(w, "strong quakes", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(rows))
}

func (s *Server) handleTopRegions(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.options(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	rows, err := s.reports.TopRegionsByYear(ctx, opts.TopN, opts.FromYear, opts.ToYear)
	if err != nil {
		s.queryFailed(w, "top regions", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(rows))
}

func (s *Server) handleSeasons(w http.ResponseWriter, r *http.Request) {
	opts, ok := s.options(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	rows, err := s.reports.SeasonalCounts(ctx, opts.FromYear, opts.ToYear)
	if err != nil {
		s.queryFailed(w, "seasonal counts", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(rows))
}

// options overlays the request's query parameters on the server defaults and
// writes a 400 response when they are invalid.
func (s *Server) options(w http.ResponseWriter, r *http.Request) (report.Options, bool) {
	opts, err := parseOptions(r, s.defaults)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return opts, false
	}
	return opts, true
}

func parseOptions(r *http.Request, defaults report.Options) (report.Options, error) {
	q := r.URL.Query()
	opts := defaults

	var err error
	if v := q.Get("from"); v != "" {
		if opts.FromYear, err = strconv.Atoi(v); err != nil {
			return opts, fmt.Errorf("invalid from %q", v)
		}
	}
	if v := q.Get("to"); v != "" {
		if opts.ToYear, err = strconv.Atoi(v); err != nil {
			return opts, fmt.Errorf("invalid to %q", v)
		}
	}
	if v := q.Get("min_magnitude"); v != "" {
		if opts.MinMagnitude, err = strconv.ParseFloat(v, 64); err != nil {
			return opts, fmt.Errorf("invalid min_magnitude %q", v)
		}
	}
	if v := q.Get("top"); v != "" {
		if opts.TopN, err = strconv.Atoi(v); err != nil {
			return opts, fmt.Errorf("invalid top %q", v)
		}
	}

	if opts.ToYear < opts.FromYear {
		return opts, errors.New("to must not be before from")
	}
	if opts.TopN < 1 {
		return opts, errors.New("top must be positive")
	}
	return opts, nil
}

func (s *Server) queryFailed(w http.ResponseWriter, what string, err error) {
	s.logger.Error("report query failed", "query", what, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": what + " query failed"})
}

// nonNil keeps empty results encoded as [] instead of null.
func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}
