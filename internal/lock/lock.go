// Package lock serializes work on the same dedup key across goroutines or processes
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ppiankov/kidregistry/internal/cache"
	"github.com/ppiankov/kidregistry/internal/model"
)

// ErrNotHeld is returned when a release finds the lock owned by someone else
var ErrNotHeld = errors.New("lock not held")

// Locker acquires an exclusive lock on key. The returned unlock must be called
// exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func() error, err error)
}

// KeyedMutex is an in-process Locker. Entries are reference counted and
// dropped when the last holder or waiter leaves.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{} // one-slot semaphore
	refs int
}

// NewKeyedMutex creates an empty in-process locker
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock)}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func() error, error) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() error {
		once.Do(func() {
			<-l.ch
			k.release(key, l)
		})
		return nil
	}, nil
}

func (k *KeyedMutex) release(key string, l *keyLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}

// Len reports how many keys are currently held or awaited
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

const keyPrefix = cache.KeyPrefix + "lock:"

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker shares locks between ingestion processes using SET NX PX
type RedisLocker struct {
	rdb   redis.UniversalClient
	ttl   time.Duration
	retry time.Duration
}

// NewRedisLocker wraps a client. ttl bounds how long a crashed holder blocks others.
func NewRedisLocker(rdb redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{rdb: rdb, ttl: ttl, retry: 50 * time.Millisecond}
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func() error, error) {
	name := keyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := r.rdb.SetNX(ctx, name, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			break
		}
		t := time.NewTimer(r.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := releaseScript.Run(ctx, r.rdb, []string{name}, token).Int()
		if err != nil {
			return fmt.Errorf("release %s: %w", key, err)
		}
		if n == 0 {
			return ErrNotHeld
		}
		return nil
	}, nil
}

// New builds the locker selected by cfg; the returned closer releases the
// Redis connection if one was opened.
func New(ctx context.Context, cfg model.LockConfig) (Locker, func() error, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewKeyedMutex(), func() error { return nil }, nil
	case "redis":
		rdb, err := cache.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisLocker(rdb, cfg.TTL), rdb.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown lock driver %q", cfg.Driver)
	}
}
