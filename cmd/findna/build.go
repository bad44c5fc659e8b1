package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"github.com/okian/findna/internal/adapters/report"
	service "github.com/okian/findna/internal/app"
	"github.com/okian/findna/internal/config"
	"github.com/okian/findna/internal/di"
	"github.com/okian/findna/pkg/logger"
)

type buildCmd struct {
	out io.Writer
	err io.Writer

	user      string
	session   string
	fixtures  string
	sourceURL string
	save      string
	style     string
	width     int
	asJSON    bool
	verbose   bool
}

func (*buildCmd) Name() string     { return "build" }
func (*buildCmd) Synopsis() string { return "build a financial DNA profile and print its report" }
func (*buildCmd) Usage() string {
	return `findna build -user <id> [-session <id>] [-fixtures <dir> | -source <url>] [-o profile.json] [-json]

  Runs the whole pipeline once: fetches the six sources, aggregates, scores
  and prints the profile report. Configuration is read as the server does.
`
}

func (c *buildCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "User id the profile belongs to")
	f.StringVar(&c.session, "session", "", "Session id (generated when empty)")
	f.StringVar(&c.fixtures, "fixtures", "", "Read source documents from this directory")
	f.StringVar(&c.sourceURL, "source", "", "MCP endpoint to fetch sources from")
	f.StringVar(&c.save, "o", "", "Write the profile JSON to this file")
	f.StringVar(&c.style, "style", "", "Glamour style (dark, light, notty); detected when empty")
	f.IntVar(&c.width, "width", 0, "Word wrap width")
	f.BoolVar(&c.asJSON, "json", false, "Print the build result as JSON instead of a report")
	f.BoolVar(&c.verbose, "v", false, "Log pipeline progress to stderr")
}

func (c *buildCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" {
		return fail(c.err, subcommands.ExitUsageError, errUserRequired)
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return fail(c.err, subcommands.ExitFailure, err)
	}
	if c.fixtures != "" {
		cfg.FixturesDir = c.fixtures
		cfg.SourceURL = ""
	}
	if c.sourceURL != "" {
		cfg.SourceURL = c.sourceURL
	}
	cfg.Store = config.StoreMemory
	cfg.HealthCheckSchedule = ""

	log := logger.Nop()
	if c.verbose {
		level, _ := logger.ParseLevel(cfg.LogLevel)
		log = logger.NewWithWriter(c.err, level)
	}

	res, err := c.run(ctx, cfg, log)
	if err != nil {
		return fail(c.err, subcommands.ExitFailure, err)
	}

	if c.save != "" {
		if err := writeJSONFile(c.save, res.Profile); err != nil {
			return fail(c.err, subcommands.ExitFailure, err)
		}
	}
	if c.asJSON {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fail(c.err, subcommands.ExitFailure, err)
		}
		return subcommands.ExitSuccess
	}

	md, err := report.Markdown(res.Profile, report.Options{Currency: cfg.Currency, Context: res.Context})
	if err != nil {
		return fail(c.err, subcommands.ExitFailure, err)
	}
	text, err := report.Terminal(md, c.style, c.width)
	if err != nil {
		return fail(c.err, subcommands.ExitFailure, err)
	}
	fmt.Fprint(c.out, text)
	for _, a := range res.PendingActions {
		fmt.Fprintf(c.out, "%s needs %s: %s\n", a.SourceID, a.Kind, a.Link)
	}
	return subcommands.ExitSuccess
}

func (c *buildCmd) run(ctx context.Context, cfg *config.Config, log logger.Logger) (service.BuildResult, error) {
	svc, err := di.NewService(ctx, cfg, log)
	if err != nil {
		return service.BuildResult{}, err
	}
	if err := svc.Start(ctx); err != nil {
		return service.BuildResult{}, err
	}
	defer func() { _ = svc.Stop(context.WithoutCancel(ctx)) }()

	return svc.Build(ctx, service.BuildRequest{UserID: c.user, SessionID: c.session})
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
