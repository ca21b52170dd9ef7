package observability

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quake_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL runs.
type Metrics struct {
	// Fetch metrics.
	PagesFetched  *prometheus.CounterVec // labels: year
	EventsFetched *prometheus.CounterVec // labels: year
	FetchErrors   *prometheus.CounterVec // labels: year

	// Load metrics.
	RowsRead      prometheus.Counter
	RowsDropped   *prometheus.CounterVec // labels: reason
	RowsLoaded    prometheus.Counter
	RowsPublished prometheus.Counter

	RunDuration *prometheus.HistogramVec // labels: stage={fetch,load}
	LastSuccess *prometheus.GaugeVec     // labels: stage={fetch,load}

	registry *prometheus.Registry
}

func newMetrics() *Metrics {
	return &Metrics{
		PagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Non-empty API pages retrieved, by year.",
		}, []string{"year"}),
		EventsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_fetched_total",
			Help:      "Raw events retrieved from the API, by year.",
		}, []string{"year"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Page requests that aborted a year's pagination.",
		}, []string{"year"}),
		RowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      "Raw events read from the raw file by the loader.",
		}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Raw events rejected during cleaning, by reason.",
		}, []string{"reason"}),
		RowsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Cleaned rows written to the earthquakes table.",
		}),
		RowsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_published_total",
			Help:      "Cleaned rows published to Kafka.",
		}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a fetch or load stage.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"stage"}),
		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful fetch or load stage.",
		}, []string{"stage"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PagesFetched,
		m.EventsFetched,
		m.FetchErrors,
		m.RowsRead,
		m.RowsDropped,
		m.RowsLoaded,
		m.RowsPublished,
		m.RunDuration,
		m.LastSuccess,
	}
}

// NewMetrics creates and registers all ETL metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics on a private registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(m.collectors()...)
	return m
}

// WriteTextfile dumps the current metric values in the node_exporter textfile
// format. Batch runs use it since nothing scrapes a short-lived process.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	var g prometheus.Gatherer = prometheus.DefaultGatherer
	if m.registry != nil {
		g = m.registry
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
