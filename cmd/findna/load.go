package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/subcommands"
	"github.com/okian/findna/internal/loadtest"
	"github.com/okian/findna/pkg/logger"
)

type loadCmd struct {
	out io.Writer
	err io.Writer

	cfg     loadtest.Config
	verbose bool
}

func (*loadCmd) Name() string     { return "load" }
func (*loadCmd) Synopsis() string { return "build many profiles against a running server and verify the ranking" }
func (*loadCmd) Usage() string {
	return `findna load [-addr url] [-n sessions] [-c workers] [-top n] [-o stats.json]

  Submits concurrent POST /v1/profiles builds, reads every profile back
  and checks that GET /v1/profiles/top is ordered by discipline score.
`
}

func (c *loadCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.cfg.BaseURL, "addr", "http://localhost:9080", "Server base URL")
	f.IntVar(&c.cfg.Sessions, "n", 100, "Number of profiles to build")
	f.IntVar(&c.cfg.Workers, "c", 10, "Number of concurrent clients")
	f.IntVar(&c.cfg.TopN, "top", 10, "Number of top entries to verify")
	f.DurationVar(&c.cfg.Timeout, "timeout", 60*time.Second, "HTTP request timeout")
	f.StringVar(&c.cfg.OutputFile, "o", "", "Write run statistics to this JSON file")
	f.StringVar(&c.cfg.Prefix, "prefix", "", "Session id prefix (default load-<unix time>)")
	f.BoolVar(&c.verbose, "v", false, "Verbose logging")
}

func (c *loadCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.cfg.Sessions <= 0 || c.cfg.Workers <= 0 || c.cfg.TopN <= 0 {
		return fail(c.err, subcommands.ExitUsageError, errLoadCounts)
	}

	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	log := logger.NewWithWriter(c.err, level).Named("load")

	stats, err := loadtest.Run(ctx, &c.cfg, log)
	if err != nil {
		return fail(c.err, subcommands.ExitFailure, err)
	}

	fmt.Fprintf(c.out, "built %d/%d profiles (%d not persisted, %d conflicts, %d failed) in %s\n",
		stats.Created, stats.Submitted, stats.NotPersisted, stats.Conflicts, stats.Failed,
		stats.Duration.Round(time.Millisecond))
	fmt.Fprintf(c.out, "read back %d, verified top %d\n", stats.Retrieved, stats.TopEntries)
	if stats.Failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
