package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/subcommands"
	"github.com/okian/findna/internal/domain/model"
)

const healthRequestTimeout = 5 * time.Second

type healthCmd struct {
	out io.Writer
	err io.Writer

	addr  string
	watch int
}

func (*healthCmd) Name() string     { return "health" }
func (*healthCmd) Synopsis() string { return "show the source health of a running server" }
func (*healthCmd) Usage() string {
	return `findna health [-addr http://localhost:9080] [-w n]

  Polls GET /healthz and prints the overall status and per source detail.
  Exits non-zero when the pipeline is critical.
`
}

func (c *healthCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", "http://localhost:9080", "Server base URL")
	f.IntVar(&c.watch, "w", 0, "Poll every n seconds")
}

func (c *healthCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	client := &http.Client{Timeout: healthRequestTimeout}
	for {
		snap, err := c.fetch(ctx, client)
		if err != nil {
			fmt.Fprintf(c.err, "Error: %v\n", err)
			if c.watch == 0 {
				return subcommands.ExitFailure
			}
		} else {
			c.print(snap)
			if c.watch == 0 {
				if snap.OverallStatus == model.HealthCritical {
					return subcommands.ExitFailure
				}
				return subcommands.ExitSuccess
			}
		}

		select {
		case <-ctx.Done():
			return subcommands.ExitSuccess
		case <-time.After(time.Duration(c.watch) * time.Second):
		}
	}
}

func (c *healthCmd) fetch(ctx context.Context, client *http.Client) (model.HealthSnapshot, error) {
	var snap model.HealthSnapshot
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.addr, "/")+"/healthz", http.NoBody)
	if err != nil {
		return snap, fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return snap, fmt.Errorf("poll %s: %w", c.addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("poll %s: unexpected status %s", c.addr, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decode health: %w", err)
	}
	return snap, nil
}

func (c *healthCmd) print(snap model.HealthSnapshot) {
	fmt.Fprintf(c.out, "status: %s  success ratio: %.1f%%  uptime: %s\n",
		snap.OverallStatus, snap.SuccessRatio*100, snap.Uptime.Round(time.Second))

	ids := make([]model.SourceID, 0, len(snap.Sources))
	for id := range snap.Sources {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		s := snap.Sources[id]
		fmt.Fprintf(c.out, "  %-20s attempts=%d failures=%d error_rate=%.1f%% avg_latency=%s\n",
			id, s.Attempts, s.Failures, s.ErrorRate*100, s.AvgLatency.Round(time.Millisecond))
	}
	for _, issue := range snap.Issues {
		fmt.Fprintf(c.out, "  ! %s\n", issue)
	}
}
