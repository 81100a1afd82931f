package storage

import (
	"context"
	"maps"
	"sync"
)

type Memory struct {
	mu    sync.Mutex
	store map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		store: make(map[string]string),
	}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.store[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.store[key] = value
	return nil
}

// Snapshot returns a copy of every stored key.
func (m *Memory) Snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return maps.Clone(m.store)
}
