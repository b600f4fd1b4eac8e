package memory

import (
	"sync"

	"github.com/samirrijal/vastmap/internal/core/domain"
)

// SnapshotStore implements ports.SnapshotStore with an in-process
// pointer swap. The lock is held only for the swap itself, never across
// I/O, so readers are never blocked by a fetch in progress.
type SnapshotStore struct {
	mu      sync.RWMutex
	current *domain.Snapshot
}

// NewSnapshotStore creates an empty store. Reads before the first
// publish return an empty snapshot, not an error.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Publish replaces the current snapshot wholesale.
func (s *SnapshotStore) Publish(snapshot *domain.Snapshot) {
	s.mu.Lock()
	s.current = snapshot
	s.mu.Unlock()
}

// Read returns the most recently published snapshot. The snapshot may be
// momentarily stale but is always internally consistent; callers must
// treat it as immutable.
func (s *SnapshotStore) Read() *domain.Snapshot {
	s.mu.RLock()
	snapshot := s.current
	s.mu.RUnlock()

	if snapshot == nil {
		return domain.EmptySnapshot()
	}
	return snapshot
}
