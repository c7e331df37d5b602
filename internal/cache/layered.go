package cache

import (
	"errors"
	"time"
)

// LayeredCache reads through a fast layer to a slow one and promotes hits
type LayeredCache struct {
	fast Cache
	slow Cache
}

// NewLayeredCache combines fast and slow; writes go to both
func NewLayeredCache(fast, slow Cache) *LayeredCache {
	return &LayeredCache{fast: fast, slow: slow}
}

// NewPageCache is the memory+disk cache used for fetched source pages
func NewPageCache(dir string, ttl time.Duration) *LayeredCache {
	return NewLayeredCache(NewMemoryCache(ttl, 10*time.Minute), NewDiskCache(dir, ttl))
}

func (l *LayeredCache) Get(key string) ([]byte, bool) {
	if v, ok := l.fast.Get(key); ok {
		return v, true
	}
	v, ok := l.slow.Get(key)
	if ok {
		_ = l.fast.Set(key, v, 0)
	}
	return v, ok
}

func (l *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	return errors.Join(l.fast.Set(key, value, ttl), l.slow.Set(key, value, ttl))
}

func (l *LayeredCache) Delete(key string) error {
	return errors.Join(l.fast.Delete(key), l.slow.Delete(key))
}

func (l *LayeredCache) Clear() error {
	return errors.Join(l.fast.Clear(), l.slow.Clear())
}
