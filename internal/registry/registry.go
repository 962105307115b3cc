// Package registry loads the declarative pin registry: a versioned JSON
// document mapping pin names to fetch descriptors. The registry format
// belongs to the pinning tool that maintains it; this package is a read-only
// consumer.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Kind selects one of the three fetch strategies.
type Kind string

const (
	// KindArchive fetches a tarball or zip by URL and unpacks it.
	KindArchive Kind = "archive"
	// KindFile fetches a single file by URL verbatim.
	KindFile Kind = "file"
	// KindGit checks out a revision from a git repository.
	KindGit Kind = "git"
)

// Pin is one fetch descriptor from the registry. Exactly one strategy's
// fields are meaningful, selected by Kind.
type Pin struct {
	Name string `json:"-"`
	Kind Kind   `json:"kind"`

	// Archive and File.
	URL  string `json:"url,omitempty"`
	Hash Digest `json:"hash,omitempty"`

	// Git.
	Revision   string `json:"revision,omitempty"`
	Submodules bool   `json:"submodules,omitempty"`
	TreeHash   Digest `json:"treeHash,omitempty"`
}

// Digest returns the content digest that keys this pin in the cache:
// the archive/file hash, or the tree hash for git pins.
func (p Pin) Digest() Digest {
	if p.Kind == KindGit {
		return p.TreeHash
	}
	return p.Hash
}

func (p Pin) validate() error {
	switch p.Kind {
	case KindArchive, KindFile:
		if p.URL == "" {
			return fmt.Errorf("pin %q: missing url", p.Name)
		}
		if p.Hash == "" {
			return fmt.Errorf("pin %q: missing hash", p.Name)
		}
	case KindGit:
		if p.URL == "" {
			return fmt.Errorf("pin %q: missing url", p.Name)
		}
		if p.Revision == "" {
			return fmt.Errorf("pin %q: missing revision", p.Name)
		}
		if p.TreeHash == "" {
			return fmt.Errorf("pin %q: missing treeHash", p.Name)
		}
	default:
		return fmt.Errorf("pin %q: unknown kind %q", p.Name, p.Kind)
	}
	return nil
}

// Registry is the parsed pin registry document.
type Registry struct {
	Version int            `json:"version"`
	Pins    map[string]Pin `json:"pins"`
}

// supportedVersion is the only registry document version this consumer reads.
const supportedVersion = 1

// Load reads and parses a registry document from path.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}
	reg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("registry %s: %w", path, err)
	}
	return reg, nil
}

// Parse parses a registry document and validates every pin.
func Parse(data []byte) (*Registry, error) {
	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, err
	}
	if reg.Version != supportedVersion {
		return nil, fmt.Errorf("unsupported registry version %d (want %d)", reg.Version, supportedVersion)
	}
	for name, pin := range reg.Pins {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("registry contains a pin with an empty name")
		}
		if strings.ContainsAny(name, "/\\") {
			return nil, fmt.Errorf("pin %q: name must not contain path separators", name)
		}
		pin.Name = name
		if err := pin.validate(); err != nil {
			return nil, err
		}
		reg.Pins[name] = pin
	}
	return &reg, nil
}

// Names returns all pin names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Pins))
	for name := range r.Pins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select returns the pins for the requested names, sorted by name. An empty
// request selects the whole registry. Unknown names are an error so that a
// typo in an incremental re-run never silently shrinks the corpus.
func (r *Registry) Select(names []string) ([]Pin, error) {
	if len(names) == 0 {
		names = r.Names()
	}
	seen := make(map[string]bool, len(names))
	pins := make([]Pin, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		pin, ok := r.Pins[name]
		if !ok {
			return nil, fmt.Errorf("unknown pin %q", name)
		}
		pins = append(pins, pin)
	}
	sort.Slice(pins, func(i, j int) bool { return pins[i].Name < pins[j].Name })
	return pins, nil
}
