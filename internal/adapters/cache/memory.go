package cache

import (
	"context"
	"sync"
	"time"

	"github.com/okian/giniscope/pkg/metrics"
)

const defaultTTL = time.Hour

// entry pairs a payload with its storage time.
type entry struct {
	payload  []byte
	storedAt time.Time
}

// Memory is a thread-safe in-memory Store with lazy TTL expiry.
// An entry older than the TTL reads as a miss and is removed on
// access; it is otherwise overwritten by the next Put.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory creates an in-memory store with the default TTL.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]entry),
		ttl:     defaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the payload for key if present and fresh.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		metrics.RecordCacheMiss()
		return nil, false
	}
	if m.now().Sub(e.storedAt) > m.ttl {
		m.mu.Lock()
		// Re-check under the write lock; a concurrent Put may have
		// refreshed the entry.
		if cur, ok := m.entries[key]; ok && m.now().Sub(cur.storedAt) > m.ttl {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		metrics.RecordCacheMiss()
		return nil, false
	}
	metrics.RecordCacheHit()
	return e.payload, true
}

// Put stores payload under key, replacing any prior entry.
func (m *Memory) Put(ctx context.Context, key string, payload []byte) {
	m.mu.Lock()
	m.entries[key] = entry{payload: payload, storedAt: m.now()}
	size := len(m.entries)
	m.mu.Unlock()
	metrics.UpdateCacheEntries(size)
}

// Invalidate drops the entry for key.
func (m *Memory) Invalidate(ctx context.Context, key string) {
	m.mu.Lock()
	delete(m.entries, key)
	size := len(m.entries)
	m.mu.Unlock()
	metrics.UpdateCacheEntries(size)
}

// Len reports the number of stored entries, fresh or stale.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

var _ Store = (*Memory)(nil)
