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
	"github.com/okian/findna/internal/domain/model"
)

type reportCmd struct {
	out io.Writer
	err io.Writer

	contextPath string
	currency    string
	format      string
	style       string
	width       int
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "render a saved profile" }
func (*reportCmd) Usage() string {
	return `findna report [-context ctx.json] [-format terminal|markdown|html] <profile.json>

  Renders a profile written by "findna build -o" or fetched from
  GET /v1/profiles/{session_id}.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.contextPath, "context", "", "Conversation context JSON to take insights from")
	f.StringVar(&c.currency, "currency", "INR", "Currency amounts are shown in")
	f.StringVar(&c.format, "format", "terminal", "Output format: terminal, markdown or html")
	f.StringVar(&c.style, "style", "", "Glamour style (dark, light, notty); detected when empty")
	f.IntVar(&c.width, "width", 0, "Word wrap width")
}

func (c *reportCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return fail(c.err, subcommands.ExitUsageError, errOneProfile)
	}

	var p model.FinancialProfile
	if err := readJSONFile(f.Arg(0), &p); err != nil {
		return fail(c.err, subcommands.ExitFailure, err)
	}
	opts := report.Options{Currency: c.currency}
	if c.contextPath != "" {
		if err := readJSONFile(c.contextPath, &opts.Context); err != nil {
			return fail(c.err, subcommands.ExitFailure, err)
		}
	}

	md, err := report.Markdown(p, opts)
	if err != nil {
		return fail(c.err, subcommands.ExitFailure, err)
	}

	var out []byte
	switch c.format {
	case "markdown":
		out = []byte(md)
	case "html":
		out, err = report.HTML(md)
	case "terminal":
		var text string
		text, err = report.Terminal(md, c.style, c.width)
		out = []byte(text)
	default:
		return fail(c.err, subcommands.ExitUsageError, fmt.Errorf("unknown format %q", c.format))
	}
	if err != nil {
		return fail(c.err, subcommands.ExitFailure, err)
	}
	_, _ = c.out.Write(out)
	return subcommands.ExitSuccess
}

func readJSONFile(path string, into any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
