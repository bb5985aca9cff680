package querycache

import (
	"context"
	"sync"
	"time"
)

// Memory keeps records for the life of the process.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemory returns an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

// Get implements Backend.
func (m *Memory) Get(_ context.Context, key string) (Record, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	return rec, ok, nil
}

// Set implements Backend.
func (m *Memory) Set(_ context.Context, key string, rec Record, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = Record{Value: append([]byte(nil), rec.Value...), Created: rec.Created}
	return nil
}

// Close implements Backend.
func (m *Memory) Close() error { return nil }
