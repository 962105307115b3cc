package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	homedir "github.com/mitchellh/go-homedir"

	"github.com/parity-works/pindiff/internal/registry"
)

// Compile-time assertion: *DiskStore satisfies Store.
var _ Store = (*DiskStore)(nil)

// DiskStore keeps one directory per digest under root:
//
//	<root>/sha256/<hex>       promoted, immutable entries
//	<root>/staging/<random>   in-flight fetches
//
// Promotion is a rename of the staging directory onto the final path, guarded
// by a cross-process file lock so that two pindiff processes resolving the
// same pin never observe a half-written entry.
type DiskStore struct {
	root string
	lock *flock.Flock
}

// DefaultRoot returns the per-user cache root (~/.cache/pindiff), honoring
// XDG_CACHE_HOME when set.
func DefaultRoot() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "pindiff"), nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(home, ".cache", "pindiff"), nil
}

// NewDiskStore creates (if needed) and opens a disk store rooted at root.
func NewDiskStore(root string) (*DiskStore, error) {
	for _, dir := range []string{entriesDir(root), stagingDir(root)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}
	return &DiskStore{
		root: root,
		lock: flock.New(filepath.Join(root, ".lock")),
	}, nil
}

func entriesDir(root string) string { return filepath.Join(root, "sha256") }
func stagingDir(root string) string { return filepath.Join(root, "staging") }

func (s *DiskStore) entryPath(d registry.Digest) string {
	return filepath.Join(entriesDir(s.root), d.Hex())
}

// Path reports the promoted entry for digest, if any.
func (s *DiskStore) Path(d registry.Digest) (string, bool) {
	p := s.entryPath(d)
	if info, err := os.Stat(p); err == nil && info.IsDir() {
		return p, true
	}
	return "", false
}

// Stage creates a private staging directory for digest.
func (s *DiskStore) Stage(d registry.Digest) (string, error) {
	dir, err := os.MkdirTemp(stagingDir(s.root), d.Hex()[:12]+"-*")
	if err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}
	return dir, nil
}

// Promote renames stageDir onto the entry path for digest. If another
// process promoted the digest first, the staged copy is discarded and the
// existing entry wins; both copies verified against the same digest, so the
// bytes are interchangeable.
func (s *DiskStore) Promote(d registry.Digest, stageDir string) (string, error) {
	if err := s.lock.Lock(); err != nil {
		return "", fmt.Errorf("locking cache: %w", err)
	}
	defer s.lock.Unlock()

	final := s.entryPath(d)
	if _, err := os.Stat(final); err == nil {
		if err := os.RemoveAll(stageDir); err != nil {
			return "", fmt.Errorf("discarding redundant staging directory: %w", err)
		}
		return final, nil
	}
	if err := os.Rename(stageDir, final); err != nil {
		return "", fmt.Errorf("promoting cache entry: %w", err)
	}
	return final, nil
}

// Discard removes an unpromoted staging directory.
func (s *DiskStore) Discard(stageDir string) error {
	return os.RemoveAll(stageDir)
}
