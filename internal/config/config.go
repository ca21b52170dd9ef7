package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ErrInvalidConfig is wrapped by every validation failure returned from Load.
var ErrInvalidConfig = errors.New("invalid config")

const envPrefix = "QUAKE_"

// Config holds all ETL settings. Keys map to QUAKE_<KEY> environment variables
// and to the same keys in the optional YAML file named by QUAKE_CONFIG.
type Config struct {
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	APIURL     string        `koanf:"api_url"`
	APITimeout time.Duration `koanf:"api_timeout"`
	StartYear  int           `koanf:"start_year"`
	EndYear    int           `koanf:"end_year"`
	PageSize   int           `koanf:"page_size"`
	PageDelay  time.Duration `koanf:"page_delay"`

	RawPath      string `koanf:"raw_path"`
	SnapshotPath string `koanf:"snapshot_path"`
	DBPath       string `koanf:"db_path"`

	HTTPAddr        string        `koanf:"http_addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Publishing cleaned rows to Kafka is off unless brokers are set.
	KafkaBrokerList string   `koanf:"kafka_brokers"`
	KafkaBrokers    []string `koanf:"-"`
	KafkaTopic      string   `koanf:"kafka_topic"`

	MetricsTextfile string `koanf:"metrics_textfile"`

	ReportMinMagnitude float64 `koanf:"report_min_magnitude"`
	ReportTopN         int     `koanf:"report_top_n"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "json",
		APIURL:             "https://www.seismicportal.eu/fdsnws/event/1/query",
		APITimeout:         30 * time.Second,
		StartYear:          2020,
		EndYear:            2025,
		PageSize:           20000,
		PageDelay:          500 * time.Millisecond,
		RawPath:            "data/raw/earthquakes_2020_2025.json",
		SnapshotPath:       "data/processed/earthquakes_2020_2025.parquet",
		DBPath:             "data/processed/earthquakes_2020_2025.duckdb",
		HTTPAddr:           ":8080",
		ShutdownTimeout:    10 * time.Second,
		KafkaTopic:         "earthquakes-cleaned",
		ReportMinMagnitude: 5.0,
		ReportTopN:         10,
	}
}

// Load layers defaults, the optional YAML file, and QUAKE_* environment
// variables (lowest to highest precedence) and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load QUAKE_CONFIG %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if s := strings.TrimSpace(cfg.KafkaBrokerList); s != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(s)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PublishEnabled reports whether cleaned rows should be sent to Kafka.
func (c *Config) PublishEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func (c *Config) validate() error {
	switch {
	case c.APIURL == "":
		return invalid("QUAKE_API_URL is required")
	case c.APITimeout <= 0:
		return invalid("QUAKE_API_TIMEOUT must be positive")
	case c.StartYear < 1900:
		return invalid("QUAKE_START_YEAR must be a calendar year")
	case c.EndYear < c.StartYear:
		return invalid("QUAKE_END_YEAR must not be before QUAKE_START_YEAR")
	case c.PageSize <= 0:
		return invalid("QUAKE_PAGE_SIZE must be positive")
	case c.PageDelay < 0:
		return invalid("QUAKE_PAGE_DELAY must not be negative")
	case c.RawPath == "":
		return invalid("QUAKE_RAW_PATH is required")
	case c.SnapshotPath == "":
		return invalid("QUAKE_SNAPSHOT_PATH is required")
	case c.DBPath == "":
		return invalid("QUAKE_DB_PATH is required")
	case c.ShutdownTimeout <= 0:
		return invalid("QUAKE_SHUTDOWN_TIMEOUT must be positive")
	case c.PublishEnabled() && c.KafkaTopic == "":
		return invalid("QUAKE_KAFKA_TOPIC is required when QUAKE_KAFKA_BROKERS is set")
	case c.ReportTopN <= 0:
		return invalid("QUAKE_REPORT_TOP_N must be positive")
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}
