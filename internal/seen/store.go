package seen

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Store loads and persists the Set of one channel.
type Store interface {
	// Load never fails on missing or corrupt state; it returns an error only
	// when the backing storage itself cannot be read.
	Load(ctx context.Context) (Set, error)
	Save(ctx context.Context, set Set) error
}

// Policy decides when a dedup key is persisted relative to delivery.
type Policy string

const (
	// PostConfirm records a key only after the notifier reports success. A
	// crash between delivery and save can produce one duplicate announcement.
	PostConfirm Policy = "post-confirm"
	// PrePersist records a key before delivery is attempted. A failed
	// delivery drops the item for good; duplicates never reach the channel.
	PrePersist Policy = "pre-persist"
)

// ParsePolicy validates a configured policy name. Empty means PostConfirm.
func ParsePolicy(raw string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PostConfirm:
		return PostConfirm, nil
	case PrePersist:
		return PrePersist, nil
	default:
		return "", fmt.Errorf("unknown seen policy %q (want %q or %q)", raw, PostConfirm, PrePersist)
	}
}

// MemoryStore keeps the set in memory. It is used by tests and dry runs.
type MemoryStore struct {
	mu    sync.Mutex
	set   Set
	saves int
	// SaveErr, when set, is returned by every Save.
	SaveErr error
}

// NewMemoryStore returns a MemoryStore seeded with keys.
func NewMemoryStore(keys ...string) *MemoryStore {
	return &MemoryStore{set: NewSet(keys...)}
}

// Load returns a copy of the stored set.
func (m *MemoryStore) Load(_ context.Context) (Set, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set.Clone(), nil
}

// Save replaces the stored set.
func (m *MemoryStore) Save(_ context.Context, set Set) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.set = set.Clone()
	m.saves++
	return nil
}

// Saves returns how many successful saves happened.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Snapshot returns a copy of the stored set.
func (m *MemoryStore) Snapshot() Set {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set.Clone()
}
