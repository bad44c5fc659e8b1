// Package di builds the process components from a validated Config. Both the
// server and the CLI assemble the pipeline through it.
package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/findna/internal/adapters/http/api"
	"github.com/okian/findna/internal/adapters/narrative"
	"github.com/okian/findna/internal/adapters/repository"
	"github.com/okian/findna/internal/adapters/source"
	service "github.com/okian/findna/internal/app"
	"github.com/okian/findna/internal/config"
	"github.com/okian/findna/internal/domain/collector"
	"github.com/okian/findna/internal/domain/scoring"
	"github.com/okian/findna/pkg/logger"
	"github.com/okian/findna/pkg/retry"
)

const retryMultiplier = 2

// RetryPolicy returns the source retry policy from cfg.
func RetryPolicy(cfg *config.Config) retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = cfg.RetryMaxAttempts
	p.InitialInterval = cfg.RetryInitialBackoff
	p.MaxInterval = cfg.RetryMaxBackoff
	p.Multiplier = retryMultiplier
	return p
}

// NewStore opens the configured persistence backend.
func NewStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.Store {
	case config.StoreMemory, "":
		return repository.NewMemoryStore(), nil
	case config.StoreDynamoDB:
		s, err := repository.NewDynamoStoreFromEnv(ctx, cfg.DynamoTable, cfg.DynamoRegion)
		if err != nil {
			return nil, fmt.Errorf("open dynamodb store: %w", err)
		}
		return s, nil
	case config.StorePostgres:
		s, err := repository.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown store %q", config.ErrInvalidConfig, cfg.Store)
	}
}

// NewProvider returns the MCP client when a source URL is configured and the
// fixture directory otherwise.
func NewProvider(cfg *config.Config) (source.Provider, error) {
	if cfg.SourceURL == "" {
		return source.NewFixtures(cfg.FixturesDir), nil
	}
	c, err := source.NewMCPClient(cfg.SourceURL, source.WithHTTPClient(&http.Client{Timeout: cfg.SourceTimeout}))
	if err != nil {
		return nil, fmt.Errorf("create mcp client: %w", err)
	}
	return c, nil
}

// NewFetchers builds the six source fetchers over the configured provider.
func NewFetchers(cfg *config.Config, log logger.Logger) ([]collector.Fetcher, error) {
	p, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	breaker := source.BreakerSettings{
		FailureRatio: cfg.BreakerFailureRatio,
		MinRequests:  uint32(cfg.BreakerMinRequests), //nolint:gosec // validated positive
		OpenTimeout:  cfg.BreakerOpenTimeout,
	}
	fetchers, err := source.NewFetchers(p, source.NewCache(cfg.CacheTTL, nil),
		source.WithTimeout(cfg.SourceTimeout),
		source.WithRetryPolicy(RetryPolicy(cfg)),
		source.WithBreaker(breaker),
		source.WithLogger(log.Named("source")),
	)
	if err != nil {
		return nil, fmt.Errorf("create fetchers: %w", err)
	}
	return fetchers, nil
}

// NewCollector returns the parallel collector.
func NewCollector(cfg *config.Config, log logger.Logger) *collector.Collector {
	return collector.New(
		collector.WithDeadline(cfg.CollectorDeadline),
		collector.WithMaxConcurrent(cfg.MaxConcurrentFetches),
		collector.WithLogger(log.Named("collector")),
	)
}

// NewScoringEngine returns the engine tuned by cfg.
func NewScoringEngine(cfg *config.Config) *scoring.Engine {
	return scoring.NewEngine(
		scoring.WithAnnualReturn(cfg.AnnualReturn),
		scoring.WithBaselineAge(cfg.BaselineAge),
		scoring.WithIncomeEstimate(0, cfg.IncomeFloor),
		scoring.WithFreedomTarget(cfg.FreedomTarget),
		scoring.WithWealthMilestone(cfg.WealthMilestone),
		scoring.WithHorizons(cfg.Horizons),
	)
}

// NewNarrative returns the configured context generator.
func NewNarrative(ctx context.Context, cfg *config.Config, log logger.Logger) (narrative.Generator, error) {
	tmpl := narrative.NewTemplateGenerator(narrative.WithCurrency(cfg.Currency))
	if cfg.Narrative != config.NarrativeGemini {
		return tmpl, nil
	}
	g, err := narrative.NewGeminiGeneratorFromKey(ctx, cfg.GeminiAPIKey,
		narrative.WithModel(cfg.GeminiModel),
		narrative.WithFallback(tmpl),
		narrative.WithGeminiLogger(log.Named("narrative")),
	)
	if err != nil {
		return nil, fmt.Errorf("create gemini narrative: %w", err)
	}
	return g, nil
}

// NewService opens the configured store and assembles the profile service.
// It is not started.
func NewService(ctx context.Context, cfg *config.Config, log logger.Logger) (*service.Service, error) {
	store, err := NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewServiceWithStore(ctx, cfg, log, store)
}

// NewServiceWithStore assembles the profile service over store. The service
// owns store: it is closed here when assembly fails and by Stop otherwise.
func NewServiceWithStore(ctx context.Context, cfg *config.Config, log logger.Logger, store repository.Store) (*service.Service, error) {
	fetchers, err := NewFetchers(cfg, log)
	if err != nil {
		return nil, closeStore(store, err)
	}
	gen, err := NewNarrative(ctx, cfg, log)
	if err != nil {
		return nil, closeStore(store, err)
	}

	return service.New(
		service.WithStore(store, cfg.Store),
		service.WithFetchers(fetchers),
		service.WithCollector(NewCollector(cfg, log)),
		service.WithScoringEngine(NewScoringEngine(cfg)),
		service.WithNarrative(gen),
		service.WithQueueSize(cfg.PersistQueueSize),
		service.WithWorkerCount(cfg.PersistWorkers),
		service.WithPersistTimeout(cfg.PersistTimeout),
		service.WithMaxInFlight(cfg.MaxInFlightBuilds),
		service.WithHealthSchedule(cfg.HealthCheckSchedule),
		service.WithLogger(log.Named("service")),
	), nil
}

func closeStore(store repository.Store, err error) error {
	if closer, ok := store.(interface{ Close() error }); ok {
		if cerr := closer.Close(); cerr != nil {
			return errors.Join(err, fmt.Errorf("close store: %w", cerr))
		}
	}
	return err
}

// NewAPIServer returns the HTTP API over svc.
func NewAPIServer(svc *service.Service, cfg *config.Config, log logger.Logger) (*api.Server, error) {
	return api.NewServer(svc,
		api.WithLogger(log.Named("http")),
		api.WithMaxLimit(cfg.MaxRankingLimit),
		api.WithCurrency(cfg.Currency),
	)
}
