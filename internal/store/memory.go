package store

import (
	"context"
	"errors"
	"sync"
)

// Memory is an in-process KV. A positive Quota bounds the total size of
// stored values in bytes.
type Memory struct {
	Quota int

	mu   sync.RWMutex
	data map[string][]byte
	size int
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.size - len(m.data[key]) + len(value)
	if m.Quota > 0 && next > m.Quota {
		return StorageQuotaError{Key: key, Err: errors.New("memory quota reached")}
	}
	m.data[key] = append([]byte(nil), value...)
	m.size = next
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.size -= len(m.data[key])
	delete(m.data, key)
	return nil
}

func (m *Memory) Close() error { return nil }

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
