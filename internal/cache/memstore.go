package cache

import (
	"fmt"
	"os"
	"sync"

	"github.com/parity-works/pindiff/internal/registry"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore is an in-memory Store for tests. Staging directories are real
// temp directories (fetch strategies write files), but the digest→path index
// lives in a map, so tests can inspect hits and promotions directly.
type MemStore struct {
	mu      sync.Mutex
	entries map[registry.Digest]string
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[registry.Digest]string)}
}

// Path reports a promoted entry.
func (m *MemStore) Path(d registry.Digest) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.entries[d]
	return p, ok
}

// Stage creates a throwaway temp directory.
func (m *MemStore) Stage(d registry.Digest) (string, error) {
	return os.MkdirTemp("", "pindiff-mem-*")
}

// Promote records stageDir as the entry for digest. First promotion wins.
func (m *MemStore) Promote(d registry.Digest, stageDir string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.entries[d]; ok {
		if err := os.RemoveAll(stageDir); err != nil {
			return "", fmt.Errorf("discarding redundant staging directory: %w", err)
		}
		return existing, nil
	}
	m.entries[d] = stageDir
	return stageDir, nil
}

// Discard removes a staging directory.
func (m *MemStore) Discard(stageDir string) error {
	return os.RemoveAll(stageDir)
}

// Len reports the number of promoted entries (test helper).
func (m *MemStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
