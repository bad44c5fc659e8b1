// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Defaults live in New; Load layers a YAML file and FINDNA_ env vars on top.
// - Validate must pass before any component is built from a Config.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"time"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreDynamoDB = "dynamodb"
	StorePostgres = "postgres"
)

// Narrative generators.
const (
	NarrativeTemplate = "template"
	NarrativeGemini   = "gemini"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// SourceTimeout bounds one source fetch including its retries.
	SourceTimeout time.Duration `koanf:"source_timeout"`

	// CollectorDeadline bounds a whole collection. Zero uses the largest
	// source timeout.
	CollectorDeadline time.Duration `koanf:"collector_deadline"`

	RetryMaxAttempts    int           `koanf:"retry_max_attempts"`
	RetryInitialBackoff time.Duration `koanf:"retry_initial_backoff"`
	RetryMaxBackoff     time.Duration `koanf:"retry_max_backoff"`

	// MaxConcurrentFetches caps the sources fetched at once.
	MaxConcurrentFetches int `koanf:"max_concurrent_fetches"`

	// CacheTTL keeps successful source payloads per session. Zero disables the cache.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	BreakerFailureRatio float64       `koanf:"breaker_failure_ratio"`
	BreakerMinRequests  int           `koanf:"breaker_min_requests"`
	BreakerOpenTimeout  time.Duration `koanf:"breaker_open_timeout"`

	// Scoring and projection parameters.
	AnnualReturn    float64 `koanf:"annual_return"`
	BaselineAge     int     `koanf:"baseline_age"`
	IncomeFloor     float64 `koanf:"income_floor"`
	FreedomTarget   float64 `koanf:"freedom_target"`
	WealthMilestone float64 `koanf:"wealth_milestone"`
	Horizons        []int   `koanf:"horizons"`

	// Currency is the ISO code reports and narratives format amounts in.
	Currency string `koanf:"currency"`

	// SourceURL is the MCP endpoint. Empty reads payloads from FixturesDir.
	SourceURL   string `koanf:"source_url"`
	FixturesDir string `koanf:"fixtures_dir"`

	// Store selects the persistence backend: memory, dynamodb or postgres.
	Store        string `koanf:"store"`
	DynamoTable  string `koanf:"dynamo_table"`
	DynamoRegion string `koanf:"dynamo_region"`
	PostgresDSN  string `koanf:"postgres_dsn"`

	// Narrative selects the context generator: template or gemini.
	Narrative    string `koanf:"narrative"`
	GeminiModel  string `koanf:"gemini_model"`
	GeminiAPIKey string `koanf:"gemini_api_key"`

	PersistQueueSize int           `koanf:"persist_queue_size"`
	PersistWorkers   int           `koanf:"persist_workers"`
	PersistTimeout   time.Duration `koanf:"persist_timeout"`

	// MaxInFlightBuilds caps concurrent profile builds. Zero is unbounded.
	MaxInFlightBuilds int `koanf:"max_in_flight_builds"`

	// MaxRankingLimit caps limit on ranking queries.
	MaxRankingLimit int `koanf:"max_ranking_limit"`

	// HealthCheckSchedule is a cron spec for the periodic health report.
	HealthCheckSchedule string `koanf:"health_check_schedule"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		Addr:                 ":9080",
		SourceTimeout:        30 * time.Second,
		RetryMaxAttempts:     3,
		RetryInitialBackoff:  time.Second,
		RetryMaxBackoff:      10 * time.Second,
		MaxConcurrentFetches: 6,
		CacheTTL:             300 * time.Second,
		BreakerFailureRatio:  0.5,
		BreakerMinRequests:   3,
		BreakerOpenTimeout:   30 * time.Second,
		AnnualReturn:         0.08,
		BaselineAge:          30,
		IncomeFloor:          500_000,
		FreedomTarget:        10_000_000,
		WealthMilestone:      50_000_000,
		Horizons:             []int{30, 50, 60},
		Currency:             "INR",
		FixturesDir:          "testdata/fixtures",
		Store:                StoreMemory,
		DynamoTable:          "findna",
		Narrative:            NarrativeTemplate,
		GeminiModel:          "gemini-2.0-flash",
		PersistQueueSize:     1024,
		PersistWorkers:       2,
		PersistTimeout:       5 * time.Second,
		MaxInFlightBuilds:    1024,
		MaxRankingLimit:      100,
		HealthCheckSchedule:  "@every 60s",
		ShutdownTimeout:      10 * time.Second,
	}
}
