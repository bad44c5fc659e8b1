package loadtest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/okian/findna/internal/adapters/repository"
	"github.com/okian/findna/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// Run executes the complete load run.
func Run(ctx context.Context, cfg *Config, log logger.Logger) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	c := &client{http: &http.Client{Timeout: cfg.Timeout}, baseURL: strings.TrimRight(cfg.BaseURL, "/")}

	log.Info(ctx, "starting load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("sessions", cfg.Sessions),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
		logger.Int("topN", cfg.TopN),
	)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, c); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Submit builds concurrently
	reqs := requests(cfg)
	submitBuilds(ctx, c, cfg.Workers, reqs, stats)
	log.Info(ctx, "builds submitted",
		logger.Int("created", stats.Created),
		logger.Int("notPersisted", stats.NotPersisted),
		logger.Int("conflicts", stats.Conflicts),
		logger.Int("failed", stats.Failed),
	)

	// Step 3: Read the stored profiles back
	stats.Retrieved = retrieveProfiles(ctx, c, cfg.Workers, reqs)
	if stats.Retrieved < stats.Created {
		return stats, fmt.Errorf("%w: %d of %d", ErrMissingSource, stats.Created-stats.Retrieved, stats.Created)
	}

	// Step 4: Verify the ranking
	var top []repository.Entry
	status, err := c.getJSON(ctx, "/v1/profiles/top?limit="+strconv.Itoa(cfg.TopN), &top)
	switch {
	case err != nil:
		return stats, fmt.Errorf("top retrieval failed: %w", err)
	case status == http.StatusNotImplemented:
		log.Warn(ctx, "store does not rank profiles; skipping ranking check")
	case status != http.StatusOK:
		return stats, fmt.Errorf("top retrieval failed with status: %d", status)
	default:
		stats.TopEntries = len(top)
		if err := verifyTop(top); err != nil {
			return stats, err
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	if cfg.OutputFile != "" {
		if err := saveStats(cfg.OutputFile, stats); err != nil {
			log.Warn(ctx, "failed to save stats to file", logger.Error(err))
		}
	}

	logFinalStats(ctx, log, stats)
	return stats, nil
}

func requests(cfg *Config) []buildRequest {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "load-" + strconv.FormatInt(time.Now().Unix(), 10)
	}
	reqs := make([]buildRequest, cfg.Sessions)
	for i := range reqs {
		reqs[i] = buildRequest{
			UserID:    fmt.Sprintf("%s-user-%d", prefix, i),
			SessionID: fmt.Sprintf("%s-session-%d", prefix, i),
		}
	}
	return reqs
}

// checkServiceHealth verifies the service is up and not critical.
func checkServiceHealth(ctx context.Context, c *client) error {
	var snap struct {
		OverallStatus string `json:"overall_status"`
	}
	status, err := c.getJSON(ctx, "/healthz", &snap)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, status)
	}
	if snap.OverallStatus == "critical" {
		return fmt.Errorf("%w: sources critical", ErrUnhealthy)
	}
	return nil
}

// saveStats writes the run statistics as JSON.
func saveStats(filename string, stats *Stats) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return nil
}

// logFinalStats prints the final run statistics.
func logFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var successRate, buildsPerSecond float64
	if stats.Submitted > 0 {
		successRate = float64(stats.Created) / float64(stats.Submitted) * 100
	}
	if stats.Duration > 0 {
		buildsPerSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	log.Info(ctx, "final statistics",
		logger.Int("submitted", stats.Submitted),
		logger.Int("created", stats.Created),
		logger.Int("notPersisted", stats.NotPersisted),
		logger.Int("conflicts", stats.Conflicts),
		logger.Int("failed", stats.Failed),
		logger.Int("retrieved", stats.Retrieved),
		logger.Int("topEntries", stats.TopEntries),
		logger.Int("pendingActions", stats.PendingActions),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("buildsPerSecond", buildsPerSecond),
	)
}
