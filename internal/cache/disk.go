package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DiskCache persists pages between CLI runs so repeated syncs don't refetch unchanged listings
type DiskCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewDiskCache stores entries under dir
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{dir: dir, ttl: ttl, now: time.Now}
}

type diskEntry struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (d *DiskCache) Get(key string) ([]byte, bool) {
	raw, err := os.ReadFile(d.path(key))
	if err != nil {
		return nil, false
	}
	var e diskEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false
	}
	if d.now().After(e.ExpiresAt) {
		_ = os.Remove(d.path(key))
		return nil, false
	}
	return e.Data, true
}

func (d *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = d.ttl
	}
	raw, err := json.Marshal(diskEntry{Data: value, ExpiresAt: d.now().Add(ttl)})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	// write-then-rename so a concurrent reader never sees a torn file
	tmp, err := os.CreateTemp(d.dir, "entry-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close entry: %w", err)
	}
	return os.Rename(tmp.Name(), d.path(key))
}

func (d *DiskCache) Delete(key string) error {
	err := os.Remove(d.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (d *DiskCache) Clear() error {
	return os.RemoveAll(d.dir)
}

func (d *DiskCache) path(key string) string {
	name := strings.NewReplacer(":", "_", "/", "_").Replace(key)
	return filepath.Join(d.dir, name+".cache")
}
