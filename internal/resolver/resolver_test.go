package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parity-works/pindiff/internal/cache"
	"github.com/parity-works/pindiff/internal/fetch"
	"github.com/parity-works/pindiff/internal/registry"
)

// fakeFetcher writes a fixed file per pin, or fails for pins listed in fail.
type fakeFetcher struct {
	calls atomic.Int32
	fail  map[string]error
}

func (f *fakeFetcher) Fetch(ctx context.Context, pin registry.Pin, dir string) error {
	f.calls.Add(1)
	if err := f.fail[pin.Name]; err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, pin.Name+".nix"), []byte(pin.Name), 0o644)
}

func filePin(name, content string) registry.Pin {
	return registry.Pin{
		Name: name,
		Kind: registry.KindFile,
		URL:  "https://example.com/" + name,
		Hash: registry.DigestBytes([]byte(content)),
	}
}

func TestResolver_ResolvesAllPins(t *testing.T) {
	store := cache.NewMemStore()
	fetcher := &fakeFetcher{}
	r := New(store, fetcher, WithJobs(4))

	pins := []registry.Pin{filePin("alpha", "a"), filePin("beta", "b"), filePin("gamma", "c")}
	corpus, err := r.Resolve(context.Background(), pins)
	require.NoError(t, err)

	require.Len(t, corpus.Sources, 3)
	require.Len(t, corpus.Outcomes, 3)
	assert.Empty(t, corpus.Failed())

	// Outcomes are sorted by pin name regardless of completion order.
	assert.Equal(t, "alpha", corpus.Outcomes[0].Pin.Name)
	assert.Equal(t, "beta", corpus.Outcomes[1].Pin.Name)
	assert.Equal(t, "gamma", corpus.Outcomes[2].Pin.Name)

	content, err := os.ReadFile(filepath.Join(corpus.Sources["alpha"].Path, "alpha.nix"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(content))
}

func TestResolver_CacheHitSkipsFetch(t *testing.T) {
	store := cache.NewMemStore()
	fetcher := &fakeFetcher{}
	r := New(store, fetcher)

	pins := []registry.Pin{filePin("alpha", "a")}

	first, err := r.Resolve(context.Background(), pins)
	require.NoError(t, err)
	require.Empty(t, first.Failed())
	assert.False(t, first.Outcomes[0].Cached)
	assert.Equal(t, int32(1), fetcher.calls.Load())

	second, err := r.Resolve(context.Background(), pins)
	require.NoError(t, err)
	require.Empty(t, second.Failed())
	assert.True(t, second.Outcomes[0].Cached)
	assert.Equal(t, int32(1), fetcher.calls.Load(), "cache hit must not refetch")

	// Idempotence: both resolutions surface the identical materialized tree.
	assert.Equal(t, first.Sources["alpha"].Path, second.Sources["alpha"].Path)
}

func TestResolver_FailureIsolation(t *testing.T) {
	store := cache.NewMemStore()
	fetcher := &fakeFetcher{fail: map[string]error{
		"bad": &fetch.IntegrityError{
			Name: "bad",
			Want: registry.DigestBytes([]byte("declared")),
			Got:  registry.DigestBytes([]byte("fetched")),
		},
	}}
	r := New(store, fetcher, WithJobs(2))

	pins := []registry.Pin{filePin("alpha", "a"), filePin("bad", "x"), filePin("gamma", "c")}
	corpus, err := r.Resolve(context.Background(), pins)
	require.NoError(t, err, "one bad pin must not fail the resolve call")

	assert.Len(t, corpus.Sources, 2)
	require.Len(t, corpus.Failed(), 1)

	var integrity *fetch.IntegrityError
	require.ErrorAs(t, corpus.Failed()[0].Err, &integrity)
	assert.Equal(t, "bad", integrity.Name)

	// The failed pin's content never reached the cache.
	_, ok := store.Path(pins[1].Digest())
	assert.False(t, ok)
	assert.Equal(t, 2, store.Len())
}

func TestResolver_ResultCallback(t *testing.T) {
	store := cache.NewMemStore()
	fetcher := &fakeFetcher{fail: map[string]error{
		"bad": &fetch.FetchError{Name: "bad", Err: errors.New("boom")},
	}}

	var count atomic.Int32
	r := New(store, fetcher, WithResultFunc(func(o Outcome) {
		count.Add(1)
	}))

	_, err := r.Resolve(context.Background(), []registry.Pin{filePin("alpha", "a"), filePin("bad", "b")})
	require.NoError(t, err)
	assert.Equal(t, int32(2), count.Load(), "callback fires once per pin, failures included")
}

func TestResolver_ContextCancellation(t *testing.T) {
	store := cache.NewMemStore()
	fetcher := &fakeFetcher{}
	r := New(store, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	corpus, err := r.Resolve(ctx, []registry.Pin{filePin("alpha", "a")})
	require.Error(t, err)
	assert.NotNil(t, corpus)
}
