package store

import (
	"context"
	"sync"
)

// MemoryStore keeps Settings in memory. Load and Save copy, so callers never
// share maps with the store.
type MemoryStore struct {
	mu       sync.Mutex
	settings *Settings
}

// NewMemoryStore returns a store seeded with a copy of initial, which may be nil.
func NewMemoryStore(initial *Settings) *MemoryStore {
	m := &MemoryStore{settings: NewSettings()}
	if initial != nil {
		m.settings = initial.Clone()
	}
	return m
}

func (m *MemoryStore) Load(ctx context.Context) (*Settings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, s *Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s == nil {
		s = NewSettings()
	}
	m.settings = s.Clone()
	return nil
}
