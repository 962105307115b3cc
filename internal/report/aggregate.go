package report

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Entry is one aggregate element: exactly one per corpus pin, success or not.
type Entry struct {
	Name   string          `json:"name"`
	Status Status          `json:"status"`
	Report json.RawMessage `json:"report,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Aggregate is the single combined artifact for a run. It carries nothing
// run-specific (no timestamps, no run IDs): re-aggregating an unchanged
// corpus reproduces it byte for byte.
type Aggregate struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

// AggregatePath returns where the combined artifact lives under out.
func AggregatePath(out string) string { return filepath.Join(out, "aggregate.json") }

// InconsistencyError reports a cardinality violation between the selected
// pin set and the artifacts on disk. It indicates a pipeline bug or a
// mangled output directory and aborts the run.
type InconsistencyError struct {
	Missing []string
	Extra   []string
}

func (e *InconsistencyError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing artifacts for pins: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, fmt.Sprintf("artifacts for unknown pins: %s", strings.Join(e.Extra, ", ")))
	}
	return "aggregate inconsistency: " + strings.Join(parts, "; ")
}

// Build composes the aggregate for the selected pins from the artifacts
// under Dir(out). known is the full registry name set, used to flag stray
// artifacts that belong to no pin. Entries come back sorted by name; every
// selected pin must have exactly one artifact.
//
// When both a report and a failure marker exist for a pin (runs interrupted
// between stages), the newer file wins.
func Build(out string, selected, known []string) (*Aggregate, error) {
	inconsistency := &InconsistencyError{}

	knownSet := make(map[string]bool, len(known))
	for _, name := range known {
		knownSet[name] = true
	}
	for _, base := range listArtifacts(out) {
		if !knownSet[base] {
			inconsistency.Extra = append(inconsistency.Extra, base)
		}
	}

	names := append([]string(nil), selected...)
	sort.Strings(names)

	agg := &Aggregate{Version: 1, Entries: make([]Entry, 0, len(names))}
	for _, name := range names {
		entry, ok := buildEntry(out, name)
		if !ok {
			inconsistency.Missing = append(inconsistency.Missing, name)
			continue
		}
		agg.Entries = append(agg.Entries, entry)
	}

	if len(inconsistency.Missing) > 0 || len(inconsistency.Extra) > 0 {
		return nil, inconsistency
	}
	if len(agg.Entries) != len(names) {
		// Unreachable unless the bookkeeping above is broken; keep the
		// invariant explicit.
		return nil, &InconsistencyError{}
	}
	return agg, nil
}

// Write installs the aggregate at AggregatePath(out) atomically.
func (a *Aggregate) Write(out string) (string, error) {
	path := AggregatePath(out)
	if err := WriteJSON(path, a); err != nil {
		return "", fmt.Errorf("writing aggregate: %w", err)
	}
	return path, nil
}

func buildEntry(out string, name string) (Entry, bool) {
	docPath := DocumentPath(out, name)
	markerPath := MarkerPath(out, name)

	docInfo, docErr := os.Stat(docPath)
	markerInfo, markerErr := os.Stat(markerPath)

	useDoc := docErr == nil
	if docErr == nil && markerErr == nil {
		// Both present: the newer artifact reflects the latest run.
		useDoc = !docInfo.ModTime().Before(markerInfo.ModTime())
		slog.Warn("pin has both a report and a failure marker; keeping the newer",
			"pin", name, "kept_report", useDoc)
	}

	switch {
	case useDoc:
		doc, err := ReadDocument(docPath)
		if err != nil {
			slog.Warn("unreadable report treated as missing", "pin", name, "error", err)
			return Entry{}, false
		}
		return Entry{Name: name, Status: StatusReported, Report: doc.Payload}, true
	case markerErr == nil:
		marker, err := ReadMarker(markerPath)
		if err != nil {
			slog.Warn("unreadable marker treated as missing", "pin", name, "error", err)
			return Entry{}, false
		}
		return Entry{Name: name, Status: marker.Status, Error: marker.Error}, true
	default:
		return Entry{}, false
	}
}

// listArtifacts returns the pin names that have any artifact under Dir(out).
func listArtifacts(out string) []string {
	entries, err := os.ReadDir(Dir(out))
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		base := e.Name()
		switch {
		case strings.HasSuffix(base, ".failed.json"):
			seen[strings.TrimSuffix(base, ".failed.json")] = true
		case strings.HasSuffix(base, ".json"):
			seen[strings.TrimSuffix(base, ".json")] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
