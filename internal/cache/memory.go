package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Cache used when no external cache service is
// configured, and as the substitute in tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	now     func() time.Time
}

var _ Cache = (*Memory)(nil)

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

// Lookup returns the entry for key. Expired entries are removed lazily.
func (m *Memory) Lookup(_ context.Context, key Key) (*Entry, bool, error) {
	k := key.String()

	m.mu.RLock()
	e, ok := m.entries[k]
	m.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if e.Expired(m.now()) {
		m.mu.Lock()
		delete(m.entries, k)
		m.mu.Unlock()
		return nil, false, nil
	}
	return e, true, nil
}

// Store persists an entry under key, replacing any previous value.
func (m *Memory) Store(_ context.Context, key Key, e *Entry) error {
	m.mu.Lock()
	m.entries[key.String()] = e
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
