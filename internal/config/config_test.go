package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/findna/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.SourceTimeout, convey.ShouldEqual, 30*time.Second)
			convey.So(cfg.RetryMaxAttempts, convey.ShouldEqual, 3)
			convey.So(cfg.MaxConcurrentFetches, convey.ShouldEqual, 6)
			convey.So(cfg.CacheTTL, convey.ShouldEqual, 5*time.Minute)
			convey.So(cfg.Horizons, convey.ShouldResemble, []int{30, 50, 60})
			convey.So(cfg.Store, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.Narrative, convey.ShouldEqual, config.NarrativeTemplate)
		})

		convey.Convey("Then the defaults validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"unknown log level", func(c *config.Config) { c.LogLevel = "verbose" }, "log_level"},
		{"empty addr", func(c *config.Config) { c.Addr = "" }, "addr"},
		{"zero source timeout", func(c *config.Config) { c.SourceTimeout = 0 }, "source_timeout"},
		{"no attempts", func(c *config.Config) { c.RetryMaxAttempts = 0 }, "retry_max_attempts"},
		{"backoff inverted", func(c *config.Config) { c.RetryMaxBackoff = time.Millisecond }, "retry_max_backoff"},
		{"ratio above one", func(c *config.Config) { c.BreakerFailureRatio = 1.5 }, "breaker_failure_ratio"},
		{"negative return", func(c *config.Config) { c.AnnualReturn = -0.1 }, "annual_return"},
		{"no horizons", func(c *config.Config) { c.Horizons = nil }, "horizons"},
		{"negative horizon", func(c *config.Config) { c.Horizons = []int{10, -5} }, "horizon -5"},
		{"unknown currency", func(c *config.Config) { c.Currency = "ZZZ" }, "currency"},
		{"no source", func(c *config.Config) { c.SourceURL, c.FixturesDir = "", "" }, "source_url"},
		{"unknown store", func(c *config.Config) { c.Store = "mongo" }, "store"},
		{"dynamo without table", func(c *config.Config) { c.Store, c.DynamoTable = config.StoreDynamoDB, "" }, "dynamo_table"},
		{"postgres without dsn", func(c *config.Config) { c.Store = config.StorePostgres }, "postgres_dsn"},
		{"gemini without key", func(c *config.Config) { c.Narrative = config.NarrativeGemini }, "gemini_api_key"},
		{"bad schedule", func(c *config.Config) { c.HealthCheckSchedule = "every minute" }, "health_check_schedule"},
		{"no workers", func(c *config.Config) { c.PersistWorkers = 0 }, "persist_workers"},
	}

	convey.Convey("Given a default config", t, func() {
		for _, tc := range cases {
			convey.Convey("When it has "+tc.name, func() {
				cfg := config.New()
				tc.mutate(cfg)
				err := cfg.Validate()

				convey.Convey("Then validation names the field", func() {
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
					convey.So(err.Error(), convey.ShouldContainSubstring, tc.want)
				})
			})
		}

		convey.Convey("When several fields are wrong", func() {
			cfg := config.New()
			cfg.Addr = ""
			cfg.PersistWorkers = 0
			err := cfg.Validate()

			convey.Convey("Then all of them are reported", func() {
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr")
				convey.So(err.Error(), convey.ShouldContainSubstring, "persist_workers")
			})
		})

		convey.Convey("When a configured backend has what it needs", func() {
			cfg := config.New()
			cfg.Store = config.StorePostgres
			cfg.PostgresDSN = "postgres://localhost/findna"
			cfg.Narrative = config.NarrativeGemini
			cfg.GeminiAPIKey = "key"

			convey.Convey("Then it validates", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
			})
		})
	})
}
