// Package report owns the pipeline's artifacts: one per-source report (or
// failure marker) per pin under <out>/reports/, and the single aggregated
// document. Payloads are the harness's verbatim JSON, never interpreted.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parity-works/pindiff/internal/fetch"
	"github.com/parity-works/pindiff/internal/harness"
)

// Status is a pin's position in the pipeline.
type Status string

const (
	StatusResolved        Status = "resolved"
	StatusFetchFailed     Status = "fetch-failed"
	StatusIntegrityFailed Status = "integrity-failed"
	StatusHarnessFailed   Status = "harness-failed"
	StatusReported        Status = "reported"
)

// Classify maps a pipeline error to the pin status it implies.
func Classify(err error) Status {
	var integrity *fetch.IntegrityError
	if errors.As(err, &integrity) {
		return StatusIntegrityFailed
	}
	var herr *harness.Error
	if errors.As(err, &herr) {
		return StatusHarnessFailed
	}
	return StatusFetchFailed
}

// Document is one captured per-source report, tagged with its pin name.
type Document struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

// Marker is the failure document written in place of a report so that a
// failed pin still occupies its slot in the aggregate.
type Marker struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Error  string `json:"error"`
}

// Dir returns the per-source reports directory under out.
func Dir(out string) string { return filepath.Join(out, "reports") }

// DocumentPath returns where the report for pin name lives.
func DocumentPath(out, name string) string {
	return filepath.Join(Dir(out), name+".json")
}

// MarkerPath returns where the failure marker for pin name lives.
func MarkerPath(out, name string) string {
	return filepath.Join(Dir(out), name+".failed.json")
}

// WriteJSON marshals v with indentation and installs it at path atomically
// (write to a temp file in the same directory, then rename).
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadDocument loads a per-source report document.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("report %s: %w", path, err)
	}
	if strings.TrimSpace(doc.Name) == "" {
		return nil, fmt.Errorf("report %s: missing pin name", path)
	}
	return &doc, nil
}

// ReadMarker loads a failure marker document.
func ReadMarker(path string) (*Marker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Marker
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("marker %s: %w", path, err)
	}
	return &m, nil
}
