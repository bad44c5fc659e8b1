package model

import "time"

// HealthStatus is the overall availability classification.
type HealthStatus string

// Health statuses.
const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthCritical HealthStatus = "critical"
)

// SourceHealth holds running counters for one source.
type SourceHealth struct {
	Attempts    int           `json:"attempts"`
	Successes   int           `json:"successes"`
	Failures    int           `json:"failures"`
	AvgLatency  time.Duration `json:"avg_latency"`
	ErrorRate   float64       `json:"error_rate"`
	LastAttempt time.Time     `json:"last_attempt"`
}

// HealthSnapshot is a consistent copy of the process-wide health state.
type HealthSnapshot struct {
	Sources       map[SourceID]SourceHealth `json:"sources"`
	OverallStatus HealthStatus              `json:"overall_status"`
	SuccessRatio  float64                   `json:"success_ratio"`
	Issues        []string                  `json:"issues"`
	StartedAt     time.Time                 `json:"started_at"`
	Uptime        time.Duration             `json:"uptime"`
	GeneratedAt   time.Time                 `json:"generated_at"`
}
