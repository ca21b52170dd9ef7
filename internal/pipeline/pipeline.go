package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// NewRunID returns a fresh identifier for tagging one run's logs and messages.
func NewRunID() string {
	return uuid.NewString()
}

// RunResult combines the outcomes of a fetch followed by a load.
type RunResult struct {
	RunID string
	Fetch FetchResult
	Load  LoadResult
}

// OpenLoader builds the load stage along with a func releasing what it opened.
type OpenLoader func() (*Loader, func(), error)

// Pipeline runs the fetch and load stages back to back.
type Pipeline struct {
	fetcher    *Fetcher
	openLoader OpenLoader
	logger     *slog.Logger
}

// New creates a Pipeline. openLoader is called only after a successful fetch,
// so the database is not held open while pages download.
func New(fetcher *Fetcher, openLoader OpenLoader, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		fetcher:    fetcher,
		openLoader: openLoader,
		logger:     logger,
	}
}

// Run fetches every configured year, then loads the raw file it wrote.
// The load does not start if the fetch fails.
func (p *Pipeline) Run(ctx context.Context) (RunResult, error) {
	result := RunResult{RunID: NewRunID()}
	logger := p.logger.With("run_id", result.RunID)
	logger.Info("pipeline started")

	fetched, err := p.fetcher.Fetch(ctx)
	result.Fetch = fetched
	if err != nil {
		return result, err
	}

	loader, closeLoader, err := p.openLoader()
	if err != nil {
		return result, err
	}
	defer closeLoader()

	loaded, err := loader.Load(ctx, result.RunID)
	result.Load = loaded
	if err != nil {
		return result, err
	}

	logger.Info("pipeline finished", "fetched", fetched.Events, "loaded", loaded.Loaded)
	return result, nil
}
