package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/robfig/cron/v3"
)

var logLevels = []string{"debug", "info", "warn", "warning", "error"}

// Validate reports every invalid field at once, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(slices.Contains(logLevels, strings.ToLower(c.LogLevel)), "log_level %q is not one of %v", c.LogLevel, logLevels)
	check(c.Addr != "", "addr must not be empty")
	check(c.SourceTimeout > 0, "source_timeout must be positive")
	check(c.CollectorDeadline >= 0, "collector_deadline must not be negative")
	check(c.RetryMaxAttempts >= 1, "retry_max_attempts must be at least 1")
	check(c.RetryInitialBackoff > 0, "retry_initial_backoff must be positive")
	check(c.RetryMaxBackoff >= c.RetryInitialBackoff, "retry_max_backoff must not be below retry_initial_backoff")
	check(c.MaxConcurrentFetches >= 1, "max_concurrent_fetches must be at least 1")
	check(c.CacheTTL >= 0, "cache_ttl must not be negative")
	check(c.BreakerFailureRatio > 0 && c.BreakerFailureRatio <= 1, "breaker_failure_ratio must be in (0, 1]")
	check(c.BreakerMinRequests >= 1, "breaker_min_requests must be at least 1")
	check(c.BreakerOpenTimeout > 0, "breaker_open_timeout must be positive")
	check(c.AnnualReturn >= 0, "annual_return must not be negative")
	check(c.BaselineAge > 0 && c.BaselineAge < 120, "baseline_age must be in (0, 120)")
	check(c.IncomeFloor > 0, "income_floor must be positive")
	check(c.FreedomTarget > 0, "freedom_target must be positive")
	check(c.WealthMilestone > 0, "wealth_milestone must be positive")
	check(len(c.Horizons) > 0, "horizons must not be empty")
	for _, h := range c.Horizons {
		check(h > 0, "horizon %d must be positive", h)
	}
	check(money.GetCurrency(c.Currency) != nil, "currency %q is not an ISO 4217 code", c.Currency)
	check(c.SourceURL != "" || c.FixturesDir != "", "one of source_url or fixtures_dir is required")

	switch c.Store {
	case StoreMemory:
	case StoreDynamoDB:
		check(c.DynamoTable != "", "dynamo_table is required for the dynamodb store")
	case StorePostgres:
		check(c.PostgresDSN != "", "postgres_dsn is required for the postgres store")
	default:
		check(false, "store %q is not one of memory, dynamodb, postgres", c.Store)
	}

	switch c.Narrative {
	case NarrativeTemplate:
	case NarrativeGemini:
		check(c.GeminiAPIKey != "", "gemini_api_key is required for the gemini narrative")
	default:
		check(false, "narrative %q is not one of template, gemini", c.Narrative)
	}

	check(c.PersistQueueSize >= 1, "persist_queue_size must be at least 1")
	check(c.PersistWorkers >= 1, "persist_workers must be at least 1")
	check(c.PersistTimeout > 0, "persist_timeout must be positive")
	check(c.MaxInFlightBuilds >= 0, "max_in_flight_builds must not be negative")
	check(c.MaxRankingLimit >= 1, "max_ranking_limit must be at least 1")
	check(c.ShutdownTimeout > 0, "shutdown_timeout must be positive")
	if _, err := cron.ParseStandard(c.HealthCheckSchedule); err != nil {
		errs = append(errs, fmt.Errorf("health_check_schedule %q: %w", c.HealthCheckSchedule, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
