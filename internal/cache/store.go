// Package cache implements the content-addressed store for materialized pin
// sources. Entries are keyed by content digest; an entry that exists is
// complete and immutable. Fetch strategies work in staging directories and
// promote them atomically, so a cancelled or failed fetch can never appear
// as a cache hit.
package cache

import "github.com/parity-works/pindiff/internal/registry"

// Store is the content-addressed cache contract injected into the resolver.
type Store interface {
	// Path returns the materialized tree for digest, if present.
	Path(d registry.Digest) (string, bool)

	// Stage creates a fresh private directory for fetching the content of
	// digest. The directory is not visible through Path until promoted.
	Stage(d registry.Digest) (string, error)

	// Promote atomically installs a fully fetched staging directory as the
	// entry for digest and returns its final path. Promoting a digest that
	// already exists keeps the existing entry and discards the staged one.
	Promote(d registry.Digest, stageDir string) (string, error)

	// Discard removes a staging directory without promoting it.
	Discard(stageDir string) error
}
