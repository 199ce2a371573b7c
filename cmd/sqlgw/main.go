// sqlgw - command-line access to an embedded SQLite store.
//
// sqlgw runs one-shot statements, queries, CSV imports and schema scripts
// through the sqlgw gateway. When enabled in config, committed row changes
// are published to MQTT and per-statement metrics are written to InfluxDB.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	// Cancel in-flight statements on Ctrl+C or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// run executes the command line in args, separated from main for testability.
// Results go to stdout; logs go to stderr unless configured otherwise.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(&app{out: stdout, errOut: stderr})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

// printError writes err to w in red.
func printError(w io.Writer, err error) {
	color.New(color.FgRed, color.Bold).Fprintf(w, "Error: %v\n", err) //nolint:errcheck // Nothing left to report to
}
