// Package redis provides a Redis-backed response cache so several service
// instances can share upstream payloads.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/quakewatch-service/internal/observability"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every key the cache writes.
const KeyPrefix = "quakewatch:"

// NewClient connects to Redis and verifies the connection with a PING.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: 10,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Cache stores payloads in Redis. The age check matches the in-memory cache;
// the Redis expiry only bounds how long stale keys linger.
type Cache struct {
	rdb     goredis.UniversalClient
	ttl     time.Duration
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

type record struct {
	Payload  json.RawMessage `json:"payload"`
	StoredAt int64           `json:"stored_at"` // epoch milliseconds
}

// NewCache creates a Redis cache.
func NewCache(rdb goredis.UniversalClient, ttl time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Cache {
	return &Cache{rdb: rdb, ttl: ttl, clock: clock, logger: logger, metrics: metrics}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := c.rdb.Get(ctx, KeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.logger.Warn("redis cache get failed", "key", key, "error", err)
		}
		c.metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		c.logger.Warn("redis cache entry unreadable", "key", key, "error", err)
		c.rdb.Del(ctx, KeyPrefix+key)
		c.metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	if c.clock.Since(time.UnixMilli(rec.StoredAt)) > c.ttl {
		c.rdb.Del(ctx, KeyPrefix+key)
		c.metrics.CacheLookups.WithLabelValues("expired").Inc()
		return nil, false
	}
	c.metrics.CacheLookups.WithLabelValues("hit").Inc()
	return rec.Payload, true
}

// Set stores payload, which must be valid JSON.
func (c *Cache) Set(ctx context.Context, key string, payload []byte) {
	raw, err := json.Marshal(record{Payload: payload, StoredAt: c.clock.Now().UnixMilli()})
	if err != nil {
		c.logger.Warn("redis cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, KeyPrefix+key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("redis cache set failed", "key", key, "error", err)
	}
}

// Clear deletes every key under KeyPrefix.
func (c *Cache) Clear(ctx context.Context) {
	iter := c.rdb.Scan(ctx, 0, KeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("redis cache scan failed", "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("redis cache clear failed", "error", err)
	}
}

// Ping reports whether Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
