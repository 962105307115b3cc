// Package resolver turns pin descriptors into materialized source trees.
// Pins are fetched in parallel with a bounded worker count; a failing pin
// records its error and never blocks the rest of the corpus.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/parity-works/pindiff/internal/cache"
	"github.com/parity-works/pindiff/internal/fetch"
	"github.com/parity-works/pindiff/internal/registry"
)

// DefaultJobs bounds parallel fetches when no limit is configured.
const DefaultJobs = 8

// Source is one materialized pin: a verified, immutable tree in the cache.
type Source struct {
	Name string
	Path string
}

// Outcome records how resolution went for one pin. Source is nil when Err is
// set. Cached reports that the content digest was already present and no
// network access happened.
type Outcome struct {
	Pin    registry.Pin
	Source *Source
	Cached bool
	Err    error
}

// Corpus is the result of resolving a pin set: the successes as a name→source
// map and one outcome per requested pin.
type Corpus struct {
	Sources  map[string]Source
	Outcomes []Outcome
}

// Failed returns the outcomes whose resolution failed, sorted by pin name.
func (c *Corpus) Failed() []Outcome {
	var failed []Outcome
	for _, o := range c.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// Resolver resolves pins against a content-addressed store using a fetcher.
type Resolver struct {
	store    cache.Store
	fetcher  fetch.Fetcher
	jobs     int
	onResult func(Outcome)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithJobs bounds the number of concurrent fetches.
func WithJobs(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.jobs = n
		}
	}
}

// WithResultFunc registers a callback invoked once per pin as outcomes
// arrive, from worker goroutines. May be nil.
func WithResultFunc(fn func(Outcome)) Option {
	return func(r *Resolver) {
		r.onResult = fn
	}
}

// New creates a Resolver over store and fetcher.
func New(store cache.Store, fetcher fetch.Fetcher, opts ...Option) *Resolver {
	r := &Resolver{
		store:   store,
		fetcher: fetcher,
		jobs:    DefaultJobs,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve materializes every pin and returns the corpus. Pin failures are
// recorded in the outcomes, not returned; the returned error is non-nil only
// when the context was cancelled.
func (r *Resolver) Resolve(ctx context.Context, pins []registry.Pin) (*Corpus, error) {
	outcomes := make([]Outcome, len(pins))

	var g errgroup.Group
	g.SetLimit(r.jobs)

	for i, pin := range pins {
		g.Go(func() error {
			outcome := r.resolveOne(ctx, pin)
			outcomes[i] = outcome
			if r.onResult != nil {
				r.onResult(outcome)
			}
			// Pin failures are isolated; only cancellation stops the run.
			return ctx.Err()
		})
	}

	err := g.Wait()

	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].Pin.Name < outcomes[j].Pin.Name
	})

	corpus := &Corpus{Sources: make(map[string]Source, len(pins)), Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Err == nil && o.Source != nil {
			corpus.Sources[o.Source.Name] = *o.Source
		}
	}
	if err != nil {
		return corpus, fmt.Errorf("resolution interrupted: %w", err)
	}
	return corpus, nil
}

func (r *Resolver) resolveOne(ctx context.Context, pin registry.Pin) Outcome {
	digest := pin.Digest()

	if path, ok := r.store.Path(digest); ok {
		slog.Debug("cache hit", "pin", pin.Name, "digest", digest)
		return Outcome{Pin: pin, Cached: true, Source: &Source{Name: pin.Name, Path: path}}
	}

	stage, err := r.store.Stage(digest)
	if err != nil {
		return Outcome{Pin: pin, Err: &fetch.FetchError{Name: pin.Name, Err: err}}
	}

	if err := r.fetcher.Fetch(ctx, pin, stage); err != nil {
		if derr := r.store.Discard(stage); derr != nil {
			slog.Warn("failed to discard staging directory", "pin", pin.Name, "error", derr)
		}
		return Outcome{Pin: pin, Err: err}
	}

	path, err := r.store.Promote(digest, stage)
	if err != nil {
		return Outcome{Pin: pin, Err: &fetch.FetchError{Name: pin.Name, Err: err}}
	}

	slog.Info("resolved pin", "pin", pin.Name, "kind", pin.Kind, "digest", digest)
	return Outcome{Pin: pin, Source: &Source{Name: pin.Name, Path: path}}
}
