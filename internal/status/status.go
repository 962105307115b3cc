// Package status inspects an output directory and reports where every
// registry pin stands: reported, failed with a marker, or not yet run. It
// only reads artifacts already on disk.
package status

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/parity-works/pindiff/internal/pipeline"
	"github.com/parity-works/pindiff/internal/report"
)

// StatusPending marks a pin with no artifact on disk yet.
const StatusPending report.Status = "pending"

// PinInfo describes the artifact state of a single pin.
type PinInfo struct {
	Name   string
	Status report.Status
	Path   string // artifact path when one exists, empty otherwise
	Error  string // marker error for failed pins
}

// Overview is the full picture of an output directory.
type Overview struct {
	Pins      []PinInfo
	Strays    []string // artifact files that match no known pin
	Aggregate string   // aggregate path when one exists, empty otherwise
	RunID     string   // last recorded run, empty when none
}

// Pending returns the names of pins with no artifact yet.
func (o *Overview) Pending() []string {
	var names []string
	for _, p := range o.Pins {
		if p.Status == StatusPending {
			names = append(names, p.Name)
		}
	}
	return names
}

// Failed returns the names of pins whose latest artifact is a failure marker.
func (o *Overview) Failed() []string {
	var names []string
	for _, p := range o.Pins {
		switch p.Status {
		case report.StatusFetchFailed, report.StatusIntegrityFailed, report.StatusHarnessFailed:
			names = append(names, p.Name)
		}
	}
	return names
}

// Scan builds the overview for out. names is the full registry pin list and
// fixes the row order of the result.
func Scan(out string, names []string) *Overview {
	o := &Overview{}

	known := make(map[string]bool, len(names)*2)
	for _, name := range names {
		known[name+".json"] = true
		known[name+".failed.json"] = true
		o.Pins = append(o.Pins, scanPin(out, name))
	}

	if entries, err := os.ReadDir(report.Dir(out)); err == nil {
		for _, entry := range entries {
			if entry.IsDir() || known[entry.Name()] {
				continue
			}
			if strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			o.Strays = append(o.Strays, entry.Name())
		}
	}

	if path := report.AggregatePath(out); fileExists(path) {
		o.Aggregate = path
	}
	if data, err := os.ReadFile(pipeline.SummaryPath(out)); err == nil {
		var summary pipeline.Summary
		if json.Unmarshal(data, &summary) == nil {
			o.RunID = summary.RunID
		}
	}

	return o
}

// scanPin classifies one pin from its artifacts. When both a report and a
// failure marker exist the newer file wins, the same rule the aggregator
// applies, so the status table and the aggregate never disagree.
func scanPin(out, name string) PinInfo {
	info := PinInfo{Name: name, Status: StatusPending}

	docPath := report.DocumentPath(out, name)
	markerPath := report.MarkerPath(out, name)

	docInfo, docErr := os.Stat(docPath)
	markerInfo, markerErr := os.Stat(markerPath)

	useDoc := docErr == nil
	if docErr == nil && markerErr == nil {
		useDoc = !docInfo.ModTime().Before(markerInfo.ModTime())
	}

	if useDoc {
		info.Status = report.StatusReported
		info.Path = docPath
		return info
	}

	marker, err := report.ReadMarker(markerPath)
	if err != nil {
		return info
	}
	info.Status = marker.Status
	info.Path = markerPath
	info.Error = marker.Error
	return info
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
