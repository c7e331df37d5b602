package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares cached search responses between processes
type RedisCache struct {
	rdb     redis.UniversalClient
	ttl     time.Duration
	timeout time.Duration
}

// NewRedisCache wraps an existing client
func NewRedisCache(rdb redis.UniversalClient, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl, timeout: 2 * time.Second}
}

// DialRedis parses url and pings the server
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func (r *RedisCache) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

// Get treats any redis error as a miss
func (r *RedisCache) Get(key string) ([]byte, bool) {
	ctx, cancel := r.ctx()
	defer cancel()
	b, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (r *RedisCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = r.ttl
	}
	ctx, cancel := r.ctx()
	defer cancel()
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

func (r *RedisCache) Delete(key string) error {
	ctx, cancel := r.ctx()
	defer cancel()
	return r.rdb.Del(ctx, key).Err()
}

// Clear removes only keys under KeyPrefix
func (r *RedisCache) Clear() error {
	ctx, cancel := r.ctx()
	defer cancel()
	iter := r.rdb.Scan(ctx, 0, KeyPrefix+"*", 200).Iterator()
	var errList []error
	for iter.Next(ctx) {
		if err := r.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			errList = append(errList, err)
		}
	}
	if err := iter.Err(); err != nil {
		errList = append(errList, err)
	}
	return errors.Join(errList...)
}
