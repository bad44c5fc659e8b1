package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/subcommands"
)

// commands returns every subcommand writing to out and err.
func commands(out, errOut io.Writer) []subcommands.Command {
	return []subcommands.Command{
		&buildCmd{out: out, err: errOut},
		&reportCmd{out: out, err: errOut},
		&healthCmd{out: out, err: errOut},
		&loadCmd{out: out, err: errOut},
	}
}

func fail(w io.Writer, status subcommands.ExitStatus, err error) subcommands.ExitStatus {
	fmt.Fprintf(w, "Error: %v\n", err)
	return status
}

var (
	errUserRequired = errors.New("-user is required")
	errOneProfile   = errors.New("expected exactly one profile file")
	errLoadCounts   = errors.New("-n, -c and -top must be positive")
)
