package store

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// Memory is an in-process Store, used by tests and dry runs.
type Memory struct {
	mu   sync.RWMutex
	data map[Key]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[Key]string)}
}

func (m *Memory) Get(_ context.Context, key Key) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key Key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) Entries(_ context.Context) (map[Key]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.data), nil
}

func (m *Memory) Replace(_ context.Context, entries map[Key]string, keep ...Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := make(map[Key]string, len(entries)+len(keep))
	for k, v := range entries {
		if !slices.Contains(keep, k) {
			next[k] = v
		}
	}
	for _, k := range keep {
		if v, ok := m.data[k]; ok {
			next[k] = v
		}
	}
	m.data = next
	return nil
}

func (m *Memory) Close() error { return nil }
