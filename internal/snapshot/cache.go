package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// ErrCacheMiss is returned by Get when no fresh entry exists.
var ErrCacheMiss = errors.New("snapshot cache miss")

const (
	DefaultTTL        = 500 * time.Millisecond
	DefaultMaxEntries = 1024
)

// Cache stores snapshots per division for a short time. Implementations are
// best-effort: they never return errors from Put or Invalidate.
type Cache interface {
	Get(ctx context.Context, divisionID uint) (*Snapshot, error)
	Put(ctx context.Context, divisionID uint, s *Snapshot)
	Invalidate(ctx context.Context, divisionID uint)
}

// MemoryCache is a size-capped in-process cache with per-entry TTL.
type MemoryCache struct {
	lru *expirable.LRU[uint, *Snapshot]
}

func NewMemoryCache(maxEntries int, ttl time.Duration) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{lru: expirable.NewLRU[uint, *Snapshot](maxEntries, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, divisionID uint) (*Snapshot, error) {
	s, ok := c.lru.Get(divisionID)
	if !ok {
		return nil, ErrCacheMiss
	}
	return s, nil
}

func (c *MemoryCache) Put(_ context.Context, divisionID uint, s *Snapshot) {
	c.lru.Add(divisionID, s)
}

func (c *MemoryCache) Invalidate(_ context.Context, divisionID uint) {
	c.lru.Remove(divisionID)
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// RedisCache shares snapshots between server instances.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	log    *zap.Logger
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: "branchqueue:snapshot:", log: log}
}

func (c *RedisCache) key(divisionID uint) string {
	return fmt.Sprintf("%s%d", c.prefix, divisionID)
}

func (c *RedisCache) Get(ctx context.Context, divisionID uint) (*Snapshot, error) {
	raw, err := c.rdb.Get(ctx, c.key(divisionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get snapshot: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode cached snapshot: %w", err)
	}
	return &s, nil
}

func (c *RedisCache) Put(ctx context.Context, divisionID uint, s *Snapshot) {
	raw, err := json.Marshal(s)
	if err != nil {
		c.log.Warn("encode snapshot for cache", zap.Uint("division_id", divisionID), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, c.key(divisionID), raw, c.ttl).Err(); err != nil {
		c.log.Warn("redis set snapshot", zap.Uint("division_id", divisionID), zap.Error(err))
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, divisionID uint) {
	if err := c.rdb.Del(ctx, c.key(divisionID)).Err(); err != nil {
		c.log.Warn("redis invalidate snapshot", zap.Uint("division_id", divisionID), zap.Error(err))
	}
}
