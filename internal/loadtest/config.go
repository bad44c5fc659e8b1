// Package loadtest drives a running server with concurrent profile builds
// and checks that the ranking routes agree with what was built.
package loadtest

import "time"

// Config holds configuration for a load run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Sessions   int           // Number of profiles to build
	Workers    int           // Number of concurrent clients
	Timeout    time.Duration // HTTP request timeout
	TopN       int           // Number of top entries to fetch
	OutputFile string        // Optional JSON file for the stats
	Prefix     string        // Session and user id prefix
}

// Stats holds run statistics.
type Stats struct {
	Submitted      int           `json:"submitted"`
	Created        int           `json:"created"`
	NotPersisted   int           `json:"not_persisted"`
	Conflicts      int           `json:"conflicts"`
	Failed         int           `json:"failed"`
	Retrieved      int           `json:"retrieved"`
	TopEntries     int           `json:"top_entries"`
	PendingActions int           `json:"pending_actions"`
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
	Duration       time.Duration `json:"duration"`
}

// outcome classifies one build response.
type outcome int

const (
	outcomeCreated outcome = iota
	outcomeNotPersisted
	outcomeConflict
	outcomeFailed
)
