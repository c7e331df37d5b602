// Package cache stores fetched pages and search responses behind one byte-oriented interface
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// KeyPrefix namespaces every key this process writes
const KeyPrefix = "kidregistry:v1:"

// SearchNamespace holds cached search responses
const SearchNamespace = "search"

// generationTTL outlives any search TTL a deployment would configure
const generationTTL = 7 * 24 * time.Hour

// Cache is implemented by MemoryCache, DiskCache, LayeredCache and RedisCache
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key hashes the given parts into a namespaced key
func Key(namespace string, parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return KeyPrefix + namespace + ":" + hex.EncodeToString(hash[:16])
}

// PageKey is the key for a fetched URL
func PageKey(url string) string {
	return Key("page", url)
}

// Generation returns the current generation of namespace. Keys that include
// it stop matching once Bump is called, from this or any process sharing c.
func Generation(c Cache, namespace string) string {
	if v, ok := c.Get(generationKey(namespace)); ok {
		return string(v)
	}
	return "0"
}

// Bump starts a new generation of namespace
func Bump(c Cache, namespace string) error {
	gen := strconv.FormatInt(time.Now().UnixNano(), 36)
	return c.Set(generationKey(namespace), []byte(gen), generationTTL)
}

func generationKey(namespace string) string {
	return KeyPrefix + namespace + ":generation"
}

// GetJSON decodes the cached value at key into dst
func GetJSON(c Cache, key string, dst any) bool {
	data, ok := c.Get(key)
	if !ok {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

// SetJSON encodes v and stores it at key
func SetJSON(c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return c.Set(key, data, ttl)
}
