package fetch

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/parity-works/pindiff/internal/registry"
)

// Compile-time assertion: *FileFetcher satisfies Fetcher.
var _ Fetcher = (*FileFetcher)(nil)

// FileFetcher downloads a single file verbatim. The materialized tree is a
// directory containing exactly that file, named after the last URL segment.
type FileFetcher struct {
	Transport *Transport
}

// Fetch implements Fetcher for raw-file pins.
func (f *FileFetcher) Fetch(ctx context.Context, pin registry.Pin, dir string) error {
	body, err := f.Transport.Get(ctx, pin.URL)
	if err != nil {
		return &FetchError{Name: pin.Name, Err: err}
	}

	if got := registry.DigestBytes(body); got != pin.Hash {
		return &IntegrityError{Name: pin.Name, Want: pin.Hash, Got: got}
	}

	name := pin.Name
	if u, err := url.Parse(pin.URL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" && base != "" {
			name = base
		}
	}
	if err := os.WriteFile(filepath.Join(dir, name), body, 0o644); err != nil {
		return &FetchError{Name: pin.Name, Err: err}
	}
	return nil
}
