package store

import (
	"context"
	"sync"

	"github.com/stevemurr/simple-item-server/record"
)

// MemoryStore keeps the collection in memory. Data is lost on restart.
// Safe for concurrent use; Load and Save hand out and take copies.
type MemoryStore struct {
	mu    sync.RWMutex
	items []record.Item
	saves int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func cloneAll(items []record.Item) []record.Item {
	out := make([]record.Item, 0, len(items))
	for _, it := range items {
		out = append(out, it.Clone())
	}
	return out
}

func (m *MemoryStore) Load(_ context.Context) ([]record.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneAll(m.items), nil
}

func (m *MemoryStore) Save(_ context.Context, items []record.Item) error {
	if len(items) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = project(items)
	m.saves++
	return nil
}

// Saves returns how many non-empty saves have been applied.
func (m *MemoryStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}
