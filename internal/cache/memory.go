package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is a process-local expiring cache
type MemoryCache struct {
	c *gocache.Cache
}

// NewMemoryCache creates a memory cache; ttl applies when Set is given zero
func NewMemoryCache(ttl, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{c: gocache.New(ttl, cleanupInterval)}
}

func (m *MemoryCache) Get(key string) ([]byte, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

func (m *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	m.c.Set(key, value, ttl)
	return nil
}

func (m *MemoryCache) Delete(key string) error {
	m.c.Delete(key)
	return nil
}

func (m *MemoryCache) Clear() error {
	m.c.Flush()
	return nil
}

// Len returns the number of unexpired entries
func (m *MemoryCache) Len() int { return m.c.ItemCount() }
