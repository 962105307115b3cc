// Package pipeline wires the stages together: pin resolution, per-source
// report generation, and aggregation. Each operation accepts an optional pin
// subset for incremental re-runs and records a machine-readable per-pin
// summary next to the artifacts.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/parity-works/pindiff/internal/cache"
	"github.com/parity-works/pindiff/internal/fetch"
	"github.com/parity-works/pindiff/internal/harness"
	"github.com/parity-works/pindiff/internal/registry"
	"github.com/parity-works/pindiff/internal/report"
	"github.com/parity-works/pindiff/internal/resolver"
)

// Config carries everything the pipeline needs to run.
type Config struct {
	Registry *registry.Registry
	OutDir   string
	ParserA  string
	ParserB  string
	Jobs     int
}

// PinStatus is one pin's final state in a run.
type PinStatus struct {
	Name   string        `json:"name"`
	Status report.Status `json:"status"`
	Error  string        `json:"error,omitempty"`
}

// Summary is the machine-readable result of an operation, written to
// <out>/status.json. Unlike the aggregate it is run-specific and carries the
// run ID.
type Summary struct {
	RunID string      `json:"runId"`
	Pins  []PinStatus `json:"pins"`
}

// Failed returns the names of pins that did not reach the wanted status.
func (s *Summary) Failed(want report.Status) []string {
	var failed []string
	for _, p := range s.Pins {
		if p.Status != want {
			failed = append(failed, p.Name)
		}
	}
	return failed
}

// SummaryPath returns where the run summary lives under out.
func SummaryPath(out string) string { return filepath.Join(out, "status.json") }

// Pipeline coordinates the full run. It delegates fetching to a Resolver
// over an injected cache store and comparison to an injected harness Runner.
type Pipeline struct {
	cfg      Config
	store    cache.Store
	fetcher  fetch.Fetcher
	runner   harness.Runner
	progress *ProgressReporter
	runID    string
}

// New creates a Pipeline. The store, fetcher, and runner are injected so
// tests can substitute in-memory and fake implementations.
func New(cfg Config, store cache.Store, fetcher fetch.Fetcher, runner harness.Runner) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		store:    store,
		fetcher:  fetcher,
		runner:   runner,
		progress: NewProgressReporter(),
		runID:    uuid.NewString(),
	}
}

// RunID identifies this pipeline instance in logs and summaries.
func (p *Pipeline) RunID() string { return p.runID }

// Progress returns a channel that emits progress events.
func (p *Pipeline) Progress() <-chan Event {
	return p.progress.Subscribe()
}

// Close shuts down the progress reporter. Callers should invoke this when
// the pipeline is no longer needed.
func (p *Pipeline) Close() {
	p.progress.Close()
}

// Resolve materializes the selected pins and records the summary.
func (p *Pipeline) Resolve(ctx context.Context, names []string) (*resolver.Corpus, *Summary, error) {
	pins, err := p.cfg.Registry.Select(names)
	if err != nil {
		return nil, nil, err
	}

	p.progress.Emit(Event{Stage: StageResolve, Status: EventWorking})
	corpus, err := p.newResolver().Resolve(ctx, pins)
	if err != nil {
		p.progress.Emit(Event{Stage: StageResolve, Status: EventFailed, Message: err.Error()})
		return corpus, nil, err
	}
	p.progress.Emit(Event{Stage: StageResolve, Status: EventComplete})

	summary := p.summarizeResolve(corpus)
	if err := p.writeSummary(summary); err != nil {
		return corpus, summary, err
	}
	return corpus, summary, nil
}

// Report resolves the selected pins, invokes the harness once per corpus
// entry, and records the summary.
func (p *Pipeline) Report(ctx context.Context, names []string) ([]report.Result, *Summary, error) {
	pins, err := p.cfg.Registry.Select(names)
	if err != nil {
		return nil, nil, err
	}

	p.progress.Emit(Event{Stage: StageResolve, Status: EventWorking})
	corpus, err := p.newResolver().Resolve(ctx, pins)
	if err != nil {
		return nil, nil, err
	}
	p.progress.Emit(Event{Stage: StageResolve, Status: EventComplete})

	p.progress.Emit(Event{Stage: StageReport, Status: EventWorking})
	results, err := p.newGenerator().Generate(ctx, corpus, p.cfg.OutDir)
	if err != nil {
		p.progress.Emit(Event{Stage: StageReport, Status: EventFailed, Message: err.Error()})
		return results, nil, err
	}
	p.progress.Emit(Event{Stage: StageReport, Status: EventComplete})

	summary := summarizeResults(p.runID, results)
	if err := p.writeSummary(summary); err != nil {
		return results, summary, err
	}
	return results, summary, nil
}

// Aggregate composes the single combined artifact from the artifacts already
// on disk for the selected pins. It does not resolve or invoke the harness.
func (p *Pipeline) Aggregate(ctx context.Context, names []string) (*report.Aggregate, *Summary, error) {
	pins, err := p.cfg.Registry.Select(names)
	if err != nil {
		return nil, nil, err
	}
	selected := make([]string, len(pins))
	for i, pin := range pins {
		selected[i] = pin.Name
	}

	p.progress.Emit(Event{Stage: StageAggregate, Status: EventWorking})
	agg, err := report.Build(p.cfg.OutDir, selected, p.cfg.Registry.Names())
	if err != nil {
		p.progress.Emit(Event{Stage: StageAggregate, Status: EventFailed, Message: err.Error()})
		return nil, nil, err
	}
	path, err := agg.Write(p.cfg.OutDir)
	if err != nil {
		return nil, nil, err
	}
	p.progress.Emit(Event{Stage: StageAggregate, Status: EventComplete, Message: path})
	slog.Info("wrote aggregate", "run", p.runID, "path", path, "entries", len(agg.Entries))

	summary := summarizeAggregate(p.runID, agg)
	if err := p.writeSummary(summary); err != nil {
		return agg, summary, err
	}
	return agg, summary, nil
}

// Run executes resolve → report → aggregate for the selected pins. The
// aggregate is best-effort complete: failed pins appear as markers, and the
// run summary reflects every pin's final state.
func (p *Pipeline) Run(ctx context.Context, names []string) (*report.Aggregate, *Summary, error) {
	if _, _, err := p.Report(ctx, names); err != nil {
		return nil, nil, err
	}
	return p.Aggregate(ctx, names)
}

func (p *Pipeline) newResolver() *resolver.Resolver {
	return resolver.New(p.store, p.fetcher,
		resolver.WithJobs(p.cfg.Jobs),
		resolver.WithResultFunc(func(o resolver.Outcome) {
			ev := Event{Stage: StageResolve, Pin: o.Pin.Name, Status: EventComplete}
			if o.Err != nil {
				ev.Status = EventFailed
				ev.Message = o.Err.Error()
			}
			p.progress.Emit(ev)
		}))
}

func (p *Pipeline) newGenerator() *report.Generator {
	return report.NewGenerator(p.runner, p.cfg.ParserA, p.cfg.ParserB,
		report.WithJobs(p.cfg.Jobs),
		report.WithResultFunc(func(r report.Result) {
			ev := Event{Stage: StageReport, Pin: r.Name, Status: EventComplete}
			if r.Status != report.StatusReported {
				ev.Status = EventFailed
				if r.Err != nil {
					ev.Message = r.Err.Error()
				}
			}
			p.progress.Emit(ev)
		}))
}

func (p *Pipeline) summarizeResolve(corpus *resolver.Corpus) *Summary {
	summary := &Summary{RunID: p.runID}
	for _, o := range corpus.Outcomes {
		ps := PinStatus{Name: o.Pin.Name, Status: report.StatusResolved}
		if o.Err != nil {
			ps.Status = report.Classify(o.Err)
			ps.Error = o.Err.Error()
		}
		summary.Pins = append(summary.Pins, ps)
	}
	return summary
}

func summarizeResults(runID string, results []report.Result) *Summary {
	summary := &Summary{RunID: runID}
	for _, r := range results {
		ps := PinStatus{Name: r.Name, Status: r.Status}
		if r.Err != nil {
			ps.Error = r.Err.Error()
		}
		summary.Pins = append(summary.Pins, ps)
	}
	return summary
}

func summarizeAggregate(runID string, agg *report.Aggregate) *Summary {
	summary := &Summary{RunID: runID}
	for _, e := range agg.Entries {
		summary.Pins = append(summary.Pins, PinStatus{Name: e.Name, Status: e.Status, Error: e.Error})
	}
	return summary
}

func (p *Pipeline) writeSummary(summary *Summary) error {
	if err := report.WriteJSON(SummaryPath(p.cfg.OutDir), summary); err != nil {
		return fmt.Errorf("writing run summary: %w", err)
	}
	return nil
}
