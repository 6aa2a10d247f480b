package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
)

// DefaultMaxItems bounds the in-process report cache.
const DefaultMaxItems = 100

type entry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache implements port.ReportCache with a bounded LRU and per-entry TTL.
// Values are stored JSON-encoded so callers never share mutable state.
type MemoryCache struct {
	mu  sync.Mutex
	lru *lru.Cache
	now func() time.Time
}

// NewMemoryCache creates a cache holding at most maxItems entries.
func NewMemoryCache(maxItems int) *MemoryCache {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &MemoryCache{
		lru: lru.New(maxItems),
		now: time.Now,
	}
}

// Get decodes a live entry into dest.
func (m *MemoryCache) Get(_ context.Context, key string, dest any) (bool, error) {
	m.mu.Lock()
	v, ok := m.lru.Get(key)
	if !ok {
		m.mu.Unlock()
		return false, nil
	}
	e := v.(entry)
	if !m.now().Before(e.expiresAt) {
		m.lru.Remove(key)
		m.mu.Unlock()
		return false, nil
	}
	m.mu.Unlock()

	if err := json.Unmarshal(e.value, dest); err != nil {
		return false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return true, nil
}

// Set stores value for ttl, evicting the least recently used entry when full.
func (m *MemoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Add(key, entry{value: data, expiresAt: m.now().Add(ttl)})
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}
