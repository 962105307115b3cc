package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parity-works/pindiff/internal/pipeline"
	"github.com/parity-works/pindiff/internal/report"
	"github.com/parity-works/pindiff/internal/resolver"
)

// fakeRunner is a canned test double for the pipeline.
type fakeRunner struct {
	summary   *pipeline.Summary
	aggregate *report.Aggregate
	err       error
}

func (f *fakeRunner) Resolve(_ context.Context, _ []string) (*resolver.Corpus, *pipeline.Summary, error) {
	return nil, f.summary, f.err
}

func (f *fakeRunner) Report(_ context.Context, _ []string) ([]report.Result, *pipeline.Summary, error) {
	return nil, f.summary, f.err
}

func (f *fakeRunner) Aggregate(_ context.Context, _ []string) (*report.Aggregate, *pipeline.Summary, error) {
	return f.aggregate, f.summary, f.err
}

func mixedSummary() *pipeline.Summary {
	return &pipeline.Summary{
		RunID: "test-run",
		Pins: []pipeline.PinStatus{
			{Name: "alpha", Status: report.StatusReported},
			{Name: "beta", Status: report.StatusHarnessFailed, Error: "exit 2"},
		},
	}
}

func TestService_ResolvePins(t *testing.T) {
	fake := &fakeRunner{summary: &pipeline.Summary{
		RunID: "r",
		Pins: []pipeline.PinStatus{
			{Name: "alpha", Status: report.StatusResolved},
			{Name: "beta", Status: report.StatusFetchFailed, Error: "connection refused"},
		},
	}}
	svc := NewService(fake, t.TempDir(), []string{"alpha", "beta"})

	_, out, err := svc.ResolvePins(context.Background(), nil, ResolvePinsInput{})
	require.NoError(t, err)
	require.Len(t, out.Pins, 2)
	assert.Equal(t, "resolved", out.Pins[0].Status)
	assert.Equal(t, "connection refused", out.Pins[1].Error)
	assert.Equal(t, []string{"beta"}, out.Failed)
}

func TestService_ResolvePins_UnknownPin(t *testing.T) {
	fake := &fakeRunner{err: fmt.Errorf("unknown pin %q", "ghost")}
	svc := NewService(fake, t.TempDir(), nil)

	_, _, err := svc.ResolvePins(context.Background(), nil, ResolvePinsInput{Pins: []string{"ghost"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestService_GenerateReports(t *testing.T) {
	out := t.TempDir()
	svc := NewService(&fakeRunner{summary: mixedSummary()}, out, []string{"alpha", "beta"})

	_, got, err := svc.GenerateReports(context.Background(), nil, GenerateReportsInput{})
	require.NoError(t, err)
	assert.Equal(t, report.Dir(out), got.ReportsDir)
	assert.Equal(t, []string{"beta"}, got.Failed)
	require.Len(t, got.Pins, 2)
	assert.Equal(t, "harness-failed", got.Pins[1].Status)
}

func TestService_AggregateReports(t *testing.T) {
	out := t.TempDir()
	fake := &fakeRunner{
		summary: mixedSummary(),
		aggregate: &report.Aggregate{Version: 1, Entries: []report.Entry{
			{Name: "alpha", Status: report.StatusReported},
			{Name: "beta", Status: report.StatusHarnessFailed, Error: "exit 2"},
		}},
	}
	svc := NewService(fake, out, []string{"alpha", "beta"})

	_, got, err := svc.AggregateReports(context.Background(), nil, AggregateReportsInput{})
	require.NoError(t, err)
	assert.Equal(t, report.AggregatePath(out), got.Path)
	assert.Equal(t, 2, got.Entries)
	assert.Equal(t, []string{"beta"}, got.Failed)
}

func TestService_GetStatus(t *testing.T) {
	out := t.TempDir()
	doc := report.Document{Name: "alpha", Payload: json.RawMessage(`{}`)}
	require.NoError(t, report.WriteJSON(report.DocumentPath(out, "alpha"), doc))
	marker := report.Marker{Name: "beta", Status: report.StatusIntegrityFailed, Error: "digest mismatch"}
	require.NoError(t, report.WriteJSON(report.MarkerPath(out, "beta"), marker))

	svc := NewService(&fakeRunner{}, out, []string{"alpha", "beta", "gamma"})

	_, got, err := svc.GetStatus(context.Background(), nil, GetStatusInput{})
	require.NoError(t, err)
	require.Len(t, got.Pins, 3)
	assert.Equal(t, "reported", got.Pins[0].Status)
	assert.Equal(t, "integrity-failed", got.Pins[1].Status)
	assert.Equal(t, "pending", got.Pins[2].Status)
	assert.Equal(t, []string{"gamma"}, got.Pending)
	assert.Equal(t, []string{"beta"}, got.Failed)
	assert.Empty(t, got.Aggregate)
}

func TestNewServer_RegistersTools(t *testing.T) {
	svc := NewService(&fakeRunner{}, t.TempDir(), nil)
	server := NewServer(svc)
	require.NotNil(t, server)
}
