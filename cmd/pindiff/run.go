package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/parity-works/pindiff/internal/cache"
	"github.com/parity-works/pindiff/internal/fetch"
	"github.com/parity-works/pindiff/internal/harness"
	"github.com/parity-works/pindiff/internal/pipeline"
	"github.com/parity-works/pindiff/internal/registry"
	"github.com/parity-works/pindiff/internal/report"
)

// newPipeline loads the registry and wires the real store, fetchers, and
// harness runner. needHarness is false for commands that never invoke it.
func newPipeline(flags cliFlags, needHarness bool) (*pipeline.Pipeline, error) {
	reg, err := registry.Load(flags.Registry)
	if err != nil {
		return nil, err
	}

	cacheDir := flags.CacheDir
	if cacheDir == "" {
		cacheDir, err = cache.DefaultRoot()
		if err != nil {
			return nil, fmt.Errorf("locating cache dir: %w", err)
		}
	}
	store, err := cache.NewDiskStore(cacheDir)
	if err != nil {
		return nil, err
	}

	var runner harness.Runner
	if needHarness {
		if flags.Harness == "" {
			return nil, fmt.Errorf("missing -harness: path to the comparison harness binary")
		}
		if flags.ParserA == "" || flags.ParserB == "" {
			return nil, fmt.Errorf("missing -parser-a or -parser-b: both parsers must be named")
		}
		runner = harness.NewExecRunner(flags.Harness)
	}

	return pipeline.New(pipeline.Config{
		Registry: reg,
		OutDir:   flags.OutDir,
		ParserA:  flags.ParserA,
		ParserB:  flags.ParserB,
		Jobs:     flags.Jobs,
	}, store, fetch.NewMux(fetch.NewTransport(), "git"), runner), nil
}

// watchProgress prints per-pin progress lines until the pipeline closes its
// event channel. The returned function blocks until the printer drains.
func watchProgress(p *pipeline.Pipeline) func() {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range p.Progress() {
			if ev.Pin == "" {
				continue
			}
			switch ev.Status {
			case pipeline.EventComplete:
				fmt.Printf("  %-9s %s\n", ev.Stage, ev.Pin)
			case pipeline.EventFailed:
				fmt.Printf("  %-9s %s: %s\n", ev.Stage, ev.Pin, ev.Message)
			}
		}
	}()
	return func() {
		p.Close()
		wg.Wait()
	}
}

// finish prints the per-pin summary and decides the exit status. want is the
// status every pin should have reached.
func finish(summary *pipeline.Summary, want report.Status) error {
	failed := summary.Failed(want)
	fmt.Printf("\n%d pins, %d failed\n", len(summary.Pins), len(failed))
	if len(failed) == 0 {
		return nil
	}
	for _, name := range failed {
		fmt.Printf("  failed: %s\n", name)
	}
	return errPinsFailed
}

func runResolve(ctx context.Context, flags cliFlags, pins []string) error {
	p, err := newPipeline(flags, false)
	if err != nil {
		return err
	}
	done := watchProgress(p)

	_, summary, err := p.Resolve(ctx, pins)
	done()
	if err != nil {
		return err
	}
	return finish(summary, report.StatusResolved)
}

func runReport(ctx context.Context, flags cliFlags, pins []string) error {
	p, err := newPipeline(flags, true)
	if err != nil {
		return err
	}
	done := watchProgress(p)

	_, summary, err := p.Report(ctx, pins)
	done()
	if err != nil {
		return err
	}
	return finish(summary, report.StatusReported)
}

func runAggregate(ctx context.Context, flags cliFlags, pins []string) error {
	p, err := newPipeline(flags, false)
	if err != nil {
		return err
	}
	defer p.Close()

	agg, summary, err := p.Aggregate(ctx, pins)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d entries)\n", report.AggregatePath(flags.OutDir), len(agg.Entries))
	return finish(summary, report.StatusReported)
}

func runAll(ctx context.Context, flags cliFlags, pins []string) error {
	p, err := newPipeline(flags, true)
	if err != nil {
		return err
	}
	done := watchProgress(p)

	agg, summary, err := p.Run(ctx, pins)
	done()
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d entries)\n", report.AggregatePath(flags.OutDir), len(agg.Entries))
	return finish(summary, report.StatusReported)
}
