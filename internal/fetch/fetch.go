// Package fetch implements the three pin fetch strategies: archive-by-URL,
// raw file, and git checkout. Each strategy materializes content into a
// staging directory provided by the cache and verifies it against the pin's
// declared digest before the resolver promotes it.
package fetch

import (
	"context"
	"fmt"

	"github.com/parity-works/pindiff/internal/registry"
)

// Fetcher materializes one pin's content into dir and verifies it.
type Fetcher interface {
	Fetch(ctx context.Context, pin registry.Pin, dir string) error
}

// FetchError is a transport-level failure (network, VCS). It is fatal for
// the pin but isolated from the rest of the corpus.
type FetchError struct {
	Name string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching pin %q: %v", e.Name, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IntegrityError reports a digest mismatch after a successful transfer.
// Mismatched content is never kept.
type IntegrityError struct {
	Name string
	Want registry.Digest
	Got  registry.Digest
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("pin %q: digest mismatch: want %s, got %s", e.Name, e.Want, e.Got)
}

// Compile-time assertion: *Mux satisfies Fetcher.
var _ Fetcher = (*Mux)(nil)

// Mux dispatches to the strategy selected by the pin's kind.
type Mux struct {
	Archive Fetcher
	File    Fetcher
	Git     Fetcher
}

// NewMux builds the default strategy set: HTTP archive and file fetchers on
// transport, and a git fetcher shelling out to gitBin ("git" when empty).
func NewMux(transport *Transport, gitBin string) *Mux {
	return &Mux{
		Archive: &ArchiveFetcher{Transport: transport},
		File:    &FileFetcher{Transport: transport},
		Git:     NewGitFetcher(gitBin),
	}
}

// Fetch dispatches on pin.Kind.
func (m *Mux) Fetch(ctx context.Context, pin registry.Pin, dir string) error {
	switch pin.Kind {
	case registry.KindArchive:
		return m.Archive.Fetch(ctx, pin, dir)
	case registry.KindFile:
		return m.File.Fetch(ctx, pin, dir)
	case registry.KindGit:
		return m.Git.Fetch(ctx, pin, dir)
	default:
		return &FetchError{Name: pin.Name, Err: fmt.Errorf("no fetcher for kind %q", pin.Kind)}
	}
}
