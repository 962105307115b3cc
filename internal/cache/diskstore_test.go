package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parity-works/pindiff/internal/registry"
)

func testDigest(t *testing.T, s string) registry.Digest {
	t.Helper()
	return registry.DigestBytes([]byte(s))
}

func TestDiskStore_StagePromoteLookup(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	d := testDigest(t, "entry-one")
	_, ok := store.Path(d)
	assert.False(t, ok, "empty store must miss")

	stage, err := store.Stage(d)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(stage, "default.nix"), []byte("{ }\n"), 0o644))

	// Not visible until promoted.
	_, ok = store.Path(d)
	assert.False(t, ok, "staged entry must not be a cache hit")

	final, err := store.Promote(d, stage)
	require.NoError(t, err)

	got, ok := store.Path(d)
	require.True(t, ok)
	assert.Equal(t, final, got)

	content, err := os.ReadFile(filepath.Join(got, "default.nix"))
	require.NoError(t, err)
	assert.Equal(t, "{ }\n", string(content))

	// The staging directory was consumed by the rename.
	_, err = os.Stat(stage)
	assert.True(t, os.IsNotExist(err))
}

func TestDiskStore_PromoteExistingKeepsFirstEntry(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	d := testDigest(t, "entry-two")

	first, err := store.Stage(d)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(first, "a.nix"), []byte("1"), 0o644))
	firstPath, err := store.Promote(d, first)
	require.NoError(t, err)

	second, err := store.Stage(d)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(second, "a.nix"), []byte("1"), 0o644))
	secondPath, err := store.Promote(d, second)
	require.NoError(t, err)

	assert.Equal(t, firstPath, secondPath)
	_, err = os.Stat(second)
	assert.True(t, os.IsNotExist(err), "losing staging directory must be removed")
}

func TestDiskStore_DiscardNeverPromotes(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	d := testDigest(t, "abandoned")
	stage, err := store.Stage(d)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(stage, "partial"), []byte("half-written"), 0o644))

	require.NoError(t, store.Discard(stage))

	_, ok := store.Path(d)
	assert.False(t, ok, "discarded fetch must not become a cache hit")
	_, err = os.Stat(stage)
	assert.True(t, os.IsNotExist(err))
}

func TestDefaultRoot_HonorsXDGCacheHome(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")
	root, err := DefaultRoot()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/xdg-cache", "pindiff"), root)
}

func TestMemStore_MirrorsDiskSemantics(t *testing.T) {
	store := NewMemStore()
	d := testDigest(t, "mem-entry")

	stage, err := store.Stage(d)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(stage, "f"), []byte("x"), 0o644))

	path, err := store.Promote(d, stage)
	require.NoError(t, err)
	got, ok := store.Path(d)
	require.True(t, ok)
	assert.Equal(t, path, got)
	assert.Equal(t, 1, store.Len())

	// Second promotion of the same digest keeps the first entry.
	again, err := store.Stage(d)
	require.NoError(t, err)
	pathAgain, err := store.Promote(d, again)
	require.NoError(t, err)
	assert.Equal(t, path, pathAgain)
	assert.Equal(t, 1, store.Len())
}
