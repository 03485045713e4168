package registry

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps snapshots in process memory. It applies the same
// revision check as the persistent stores.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*Snapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*Snapshot)}
}

// Load returns a copy of the user's snapshot.
func (m *MemoryStore) Load(_ context.Context, userID string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.users[userID]
	if !ok {
		return NewSnapshot(), nil
	}
	return snap.Clone(), nil
}

// Save stores a copy of snap when its revision is current.
func (m *MemoryStore) Save(_ context.Context, userID string, snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current uint64
	if stored, ok := m.users[userID]; ok {
		current = stored.Revision
	}
	if snap.Revision != current {
		return fmt.Errorf("%w: user %s at revision %d, saving from %d", ErrConflict, userID, current, snap.Revision)
	}

	snap.Revision = current + 1
	m.users[userID] = snap.Clone()
	return nil
}

// Users returns the number of users with a stored registry.
func (m *MemoryStore) Users() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}
