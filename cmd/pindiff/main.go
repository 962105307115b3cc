// Command pindiff resolves a pin registry into a local source corpus, runs an
// external parser-comparison harness over every pin, and aggregates the
// per-source reports into one document.
//
// Usage:
//
//	pindiff [command] [flags] [pin ...]
//
// Commands: resolve, report, aggregate, run (default), status, version.
// Naming pins limits the command to that subset of the registry.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/parity-works/pindiff/internal/config"
	"github.com/parity-works/pindiff/internal/logging"
)

// CLI flags parsed from command line. Values from pindiff.yml fill in
// anything the flags leave unset.
type cliFlags struct {
	Registry string
	OutDir   string
	CacheDir string
	Harness  string
	ParserA  string
	ParserB  string
	Jobs     int
	Verbose  bool
	ServeMCP bool
	Version  bool
}

// version is set by goreleaser at build time.
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		if err != errPinsFailed {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// errPinsFailed signals a run where some pins failed. The per-pin detail has
// already been printed, so main only sets the exit code.
var errPinsFailed = fmt.Errorf("some pins failed")

func run(args []string) error {
	cmd := "run"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd = args[0]
		args = args[1:]
	}

	cfg, err := config.Load(".")
	if err != nil {
		return err
	}
	cfg.Resolve(".")

	var flags cliFlags
	fs := flag.NewFlagSet("pindiff", flag.ContinueOnError)
	fs.StringVar(&flags.Registry, "registry", defaultStr(cfg.Registry, "pins.json"), "path to the pin registry")
	fs.StringVar(&flags.OutDir, "out", defaultStr(cfg.OutDir, "out"), "output directory for reports and the aggregate")
	fs.StringVar(&flags.CacheDir, "cache-dir", cfg.CacheDir, "content cache directory (defaults to the user cache dir)")
	fs.StringVar(&flags.Harness, "harness", cfg.Harness, "path to the comparison harness binary")
	fs.StringVar(&flags.ParserA, "parser-a", cfg.ParserA, "path to the first parser under comparison")
	fs.StringVar(&flags.ParserB, "parser-b", cfg.ParserB, "path to the second parser under comparison")
	fs.IntVar(&flags.Jobs, "jobs", cfg.Jobs, "parallel workers (0 selects the default)")
	fs.BoolVar(&flags.Verbose, "verbose", cfg.Verbose, "enable debug output")
	fs.BoolVar(&flags.ServeMCP, "serve-mcp", false, "run as an MCP server on stdio")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}
	logging.Setup(flags.Verbose)

	if flags.Version || cmd == "version" {
		fmt.Println(version)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flags.ServeMCP {
		return serveMCP(ctx, flags)
	}

	pins := fs.Args()
	switch cmd {
	case "resolve":
		return runResolve(ctx, flags, pins)
	case "report":
		return runReport(ctx, flags, pins)
	case "aggregate":
		return runAggregate(ctx, flags, pins)
	case "run":
		return runAll(ctx, flags, pins)
	case "status":
		return runStatus(flags)
	default:
		return fmt.Errorf("unknown command %q (expected resolve, report, aggregate, run, status, or version)", cmd)
	}
}

func defaultStr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
