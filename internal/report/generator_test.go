package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parity-works/pindiff/internal/fetch"
	"github.com/parity-works/pindiff/internal/harness"
	"github.com/parity-works/pindiff/internal/registry"
	"github.com/parity-works/pindiff/internal/resolver"
)

// fakeRunner returns a canned payload per pin name, or an error.
type fakeRunner struct {
	payloads map[string]string
	fail     map[string]error
}

func (f *fakeRunner) Compare(ctx context.Context, inv harness.Invocation) (json.RawMessage, error) {
	if err := f.fail[inv.Name]; err != nil {
		return nil, err
	}
	payload, ok := f.payloads[inv.Name]
	if !ok {
		payload = fmt.Sprintf(`{"source":%q,"divergences":[]}`, inv.SourcePath)
	}
	return json.RawMessage(payload), nil
}

func resolvedOutcome(t *testing.T, name string) resolver.Outcome {
	t.Helper()
	return resolver.Outcome{
		Pin:    registry.Pin{Name: name, Kind: registry.KindArchive},
		Source: &resolver.Source{Name: name, Path: t.TempDir()},
	}
}

func corpusOf(outcomes ...resolver.Outcome) *resolver.Corpus {
	c := &resolver.Corpus{Sources: make(map[string]resolver.Source), Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Err == nil && o.Source != nil {
			c.Sources[o.Source.Name] = *o.Source
		}
	}
	return c
}

func TestGenerator_WritesOneReportPerSource(t *testing.T) {
	out := t.TempDir()
	runner := &fakeRunner{payloads: map[string]string{
		"alpha": `{"divergences":[]}`,
		"beta":  `{"divergences":[{"file":"x.nix"}]}`,
	}}
	g := NewGenerator(runner, "/bin/nix-a", "/bin/nix-b", WithJobs(2))

	corpus := corpusOf(resolvedOutcome(t, "alpha"), resolvedOutcome(t, "beta"))
	results, err := g.Generate(context.Background(), corpus, out)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, res := range results {
		assert.Equal(t, StatusReported, res.Status)
		assert.NoError(t, res.Err)
	}

	doc, err := ReadDocument(DocumentPath(out, "beta"))
	require.NoError(t, err)
	assert.Equal(t, "beta", doc.Name)
	assert.JSONEq(t, `{"divergences":[{"file":"x.nix"}]}`, string(doc.Payload))
}

func TestGenerator_HarnessFailureWritesMarker(t *testing.T) {
	out := t.TempDir()
	runner := &fakeRunner{fail: map[string]error{
		"crashy": &harness.Error{Name: "crashy", ExitCode: 139, Reason: "process error"},
	}}
	g := NewGenerator(runner, "a", "b")

	corpus := corpusOf(resolvedOutcome(t, "alpha"), resolvedOutcome(t, "crashy"))
	results, err := g.Generate(context.Background(), corpus, out)
	require.NoError(t, err, "harness failure is isolated, not fatal")
	require.Len(t, results, 2)

	assert.Equal(t, StatusReported, results[0].Status)
	assert.Equal(t, StatusHarnessFailed, results[1].Status)

	marker, err := ReadMarker(MarkerPath(out, "crashy"))
	require.NoError(t, err)
	assert.Equal(t, StatusHarnessFailed, marker.Status)
	assert.Contains(t, marker.Error, "exit 139")

	// No report document for the failed pin.
	_, err = os.Stat(DocumentPath(out, "crashy"))
	assert.True(t, os.IsNotExist(err))
}

func TestGenerator_ResolutionFailuresGetMarkersToo(t *testing.T) {
	out := t.TempDir()
	g := NewGenerator(&fakeRunner{}, "a", "b")

	failed := resolver.Outcome{
		Pin: registry.Pin{Name: "unfetchable", Kind: registry.KindGit},
		Err: &fetch.FetchError{Name: "unfetchable", Err: errors.New("connection refused")},
	}
	corpus := corpusOf(resolvedOutcome(t, "alpha"), failed)

	results, err := g.Generate(context.Background(), corpus, out)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, StatusFetchFailed, results[1].Status)

	marker, err := ReadMarker(MarkerPath(out, "unfetchable"))
	require.NoError(t, err)
	assert.Equal(t, StatusFetchFailed, marker.Status)
	assert.Contains(t, marker.Error, "connection refused")
}

func TestGenerator_SuccessRemovesStaleMarker(t *testing.T) {
	out := t.TempDir()
	require.NoError(t, WriteJSON(MarkerPath(out, "alpha"), Marker{
		Name: "alpha", Status: StatusHarnessFailed, Error: "old failure",
	}))

	g := NewGenerator(&fakeRunner{}, "a", "b")
	_, err := g.Generate(context.Background(), corpusOf(resolvedOutcome(t, "alpha")), out)
	require.NoError(t, err)

	_, err = os.Stat(MarkerPath(out, "alpha"))
	assert.True(t, os.IsNotExist(err), "stale marker must not survive a successful report")
	_, err = os.Stat(DocumentPath(out, "alpha"))
	assert.NoError(t, err)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, StatusIntegrityFailed, Classify(&fetch.IntegrityError{Name: "x"}))
	assert.Equal(t, StatusHarnessFailed, Classify(&harness.Error{Name: "x"}))
	assert.Equal(t, StatusFetchFailed, Classify(&fetch.FetchError{Name: "x", Err: errors.New("net")}))
	assert.Equal(t, StatusFetchFailed, Classify(errors.New("anything else")))

	// Wrapped errors classify the same way.
	wrapped := fmt.Errorf("resolving: %w", &fetch.IntegrityError{Name: "y"})
	assert.Equal(t, StatusIntegrityFailed, Classify(wrapped))
}
