package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/parity-works/pindiff/internal/harness"
	"github.com/parity-works/pindiff/internal/resolver"
)

// Result is the outcome of one report-generation attempt.
type Result struct {
	Name   string
	Status Status
	Path   string // the written report or marker
	Err    error
}

// Generator invokes the comparison harness once per materialized source and
// writes one artifact per corpus pin: a report document on success, a
// failure marker otherwise. Resolution failures get their markers here too,
// so the reports directory always carries one file per pin.
type Generator struct {
	runner   harness.Runner
	parserA  string
	parserB  string
	jobs     int
	onResult func(Result)
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithJobs bounds the number of concurrent harness invocations.
func WithJobs(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.jobs = n
		}
	}
}

// WithResultFunc registers a callback invoked once per pin as results
// arrive, from worker goroutines. May be nil.
func WithResultFunc(fn func(Result)) GeneratorOption {
	return func(g *Generator) {
		g.onResult = fn
	}
}

// NewGenerator creates a Generator comparing parserA against parserB.
func NewGenerator(runner harness.Runner, parserA, parserB string, opts ...GeneratorOption) *Generator {
	g := &Generator{
		runner:  runner,
		parserA: parserA,
		parserB: parserB,
		jobs:    resolver.DefaultJobs,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces one artifact per corpus pin under Dir(out). Harness
// failures are isolated per pin; the returned error is non-nil only when the
// context was cancelled or an artifact could not be written.
func (g *Generator) Generate(ctx context.Context, corpus *resolver.Corpus, out string) ([]Result, error) {
	if err := os.MkdirAll(Dir(out), 0o755); err != nil {
		return nil, fmt.Errorf("creating reports directory: %w", err)
	}

	results := make([]Result, len(corpus.Outcomes))

	var eg errgroup.Group
	eg.SetLimit(g.jobs)

	for i, outcome := range corpus.Outcomes {
		eg.Go(func() error {
			res, err := g.generateOne(ctx, outcome, out)
			results[i] = res
			if g.onResult != nil {
				g.onResult(res)
			}
			if err != nil {
				return err // artifact write failure, not a harness failure
			}
			return ctx.Err()
		})
	}

	err := eg.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results, err
}

func (g *Generator) generateOne(ctx context.Context, outcome resolver.Outcome, out string) (Result, error) {
	name := outcome.Pin.Name

	// A pin that never resolved still gets its artifact: an explicit marker.
	if outcome.Err != nil {
		return g.writeMarker(name, Classify(outcome.Err), outcome.Err, out)
	}

	payload, err := g.runner.Compare(ctx, harness.Invocation{
		Name:       name,
		ParserA:    g.parserA,
		ParserB:    g.parserB,
		SourcePath: outcome.Source.Path,
	})
	if err != nil {
		slog.Warn("harness invocation failed", "pin", name, "error", err)
		return g.writeMarker(name, StatusHarnessFailed, err, out)
	}

	path := DocumentPath(out, name)
	if werr := WriteJSON(path, Document{Name: name, Payload: payload}); werr != nil {
		return Result{Name: name, Status: StatusHarnessFailed, Err: werr},
			fmt.Errorf("writing report for %q: %w", name, werr)
	}

	// A stale marker from an earlier failed run must not shadow the report.
	if rerr := os.Remove(MarkerPath(out, name)); rerr != nil && !os.IsNotExist(rerr) {
		slog.Warn("failed to remove stale marker", "pin", name, "error", rerr)
	}

	slog.Info("captured report", "pin", name, "path", path)
	return Result{Name: name, Status: StatusReported, Path: path}, nil
}

func (g *Generator) writeMarker(name string, status Status, cause error, out string) (Result, error) {
	path := MarkerPath(out, name)
	marker := Marker{Name: name, Status: status, Error: cause.Error()}
	if err := WriteJSON(path, marker); err != nil {
		return Result{Name: name, Status: status, Err: cause},
			fmt.Errorf("writing marker for %q: %w", name, err)
	}

	// Symmetric to the success path: a report from an older run is stale
	// once this run failed the pin.
	if rerr := os.Remove(DocumentPath(out, name)); rerr != nil && !os.IsNotExist(rerr) {
		slog.Warn("failed to remove stale report", "pin", name, "error", rerr)
	}

	return Result{Name: name, Status: status, Path: path, Err: cause}, nil
}
