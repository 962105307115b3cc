package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/parity-works/pindiff/internal/pipeline"
	"github.com/parity-works/pindiff/internal/report"
	"github.com/parity-works/pindiff/internal/resolver"
	"github.com/parity-works/pindiff/internal/status"
)

// Runner is the slice of the pipeline the MCP tools drive. *pipeline.Pipeline
// satisfies it; tests substitute a fake.
type Runner interface {
	Resolve(ctx context.Context, names []string) (*resolver.Corpus, *pipeline.Summary, error)
	Report(ctx context.Context, names []string) ([]report.Result, *pipeline.Summary, error)
	Aggregate(ctx context.Context, names []string) (*report.Aggregate, *pipeline.Summary, error)
}

var _ Runner = (*pipeline.Pipeline)(nil)

// Service handles MCP tool calls by delegating to a pipeline Runner.
type Service struct {
	runner   Runner
	outDir   string
	registry []string // full pin name list, for status scans
}

// NewService creates a Service over runner. registryNames is the full sorted
// pin list and outDir the artifact directory.
func NewService(runner Runner, outDir string, registryNames []string) *Service {
	return &Service{runner: runner, outDir: outDir, registry: registryNames}
}

// ResolvePins materializes the selected pins into the content cache.
func (s *Service) ResolvePins(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ResolvePinsInput,
) (*mcp.CallToolResult, ResolvePinsOutput, error) {
	_, summary, err := s.runner.Resolve(ctx, input.Pins)
	if err != nil {
		return nil, ResolvePinsOutput{}, err
	}
	return nil, ResolvePinsOutput{
		Pins:   pinStates(summary),
		Failed: summary.Failed(report.StatusResolved),
	}, nil
}

// GenerateReports resolves the selected pins and runs the harness over each.
func (s *Service) GenerateReports(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GenerateReportsInput,
) (*mcp.CallToolResult, GenerateReportsOutput, error) {
	_, summary, err := s.runner.Report(ctx, input.Pins)
	if err != nil {
		return nil, GenerateReportsOutput{}, err
	}
	return nil, GenerateReportsOutput{
		Pins:       pinStates(summary),
		Failed:     summary.Failed(report.StatusReported),
		ReportsDir: report.Dir(s.outDir),
	}, nil
}

// AggregateReports folds the artifacts already on disk into the aggregate.
func (s *Service) AggregateReports(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AggregateReportsInput,
) (*mcp.CallToolResult, AggregateReportsOutput, error) {
	agg, summary, err := s.runner.Aggregate(ctx, input.Pins)
	if err != nil {
		return nil, AggregateReportsOutput{}, err
	}
	return nil, AggregateReportsOutput{
		Path:    report.AggregatePath(s.outDir),
		Entries: len(agg.Entries),
		Failed:  summary.Failed(report.StatusReported),
	}, nil
}

// GetStatus scans the output directory without running anything.
func (s *Service) GetStatus(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ GetStatusInput,
) (*mcp.CallToolResult, GetStatusOutput, error) {
	o := status.Scan(s.outDir, s.registry)

	out := GetStatusOutput{
		Pending:   o.Pending(),
		Failed:    o.Failed(),
		Strays:    o.Strays,
		Aggregate: o.Aggregate,
		LastRun:   o.RunID,
	}
	for _, p := range o.Pins {
		out.Pins = append(out.Pins, PinState{Name: p.Name, Status: string(p.Status), Error: p.Error})
	}
	return nil, out, nil
}

func pinStates(summary *pipeline.Summary) []PinState {
	states := make([]PinState, len(summary.Pins))
	for i, p := range summary.Pins {
		states[i] = PinState{Name: p.Name, Status: string(p.Status), Error: p.Error}
	}
	return states
}
