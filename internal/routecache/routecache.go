// Package routecache provides a Redis-backed shortest-path memoization
// cache for internal/stationgraph, flushed on every arc mutation so
// ShortestPath's idempotence between mutations holds whether or not the
// cache is enabled.
package routecache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stationmesh/dispatch/internal/stationgraph"
	"github.com/stationmesh/dispatch/pkg/observability"
)

// Metrics tracks cache hit/miss/set counts and average Redis latency.
type Metrics struct {
	HitCount   int64
	MissCount  int64
	SetCount   int64
	AvgLatency time.Duration
	mu         sync.RWMutex
}

func (m *Metrics) recordLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AvgLatency == 0 {
		m.AvgLatency = d
		return
	}
	const alpha = 0.1
	m.AvgLatency = time.Duration(float64(m.AvgLatency)*(1-alpha) + float64(d)*alpha)
}

// Snapshot returns a point-in-time copy of the metrics, including the
// derived hit rate, for feeding into an observability.PerformanceMonitor.
func (m *Metrics) Snapshot() (hitRate float64, hits, misses, sets int64, avgLatency time.Duration) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := m.HitCount + m.MissCount
	if total > 0 {
		hitRate = float64(m.HitCount) / float64(total) * 100
	}
	return hitRate, m.HitCount, m.MissCount, m.SetCount, m.AvgLatency
}

// RedisCache implements stationgraph.Cache against a Redis instance. A
// flush bumps a generation counter embedded in every key rather than
// issuing a pattern-scan delete, so Flush is O(1) regardless of how many
// paths are cached.
type RedisCache struct {
	client  *redis.Client
	logger  *observability.Logger
	metrics *Metrics
	ttl     time.Duration

	mu         sync.RWMutex
	generation int64
}

// NewRedisCache connects to the Redis instance at url (a redis:// URL, as
// accepted by redis.ParseURL) and returns a cache with the given entry
// TTL.
func NewRedisCache(url string, ttl time.Duration, logger *observability.Logger) (*RedisCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("routecache: parsing redis url: %w", err)
	}
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.PoolTimeout = 4 * time.Second
	opt.MaxRetries = 3
	opt.MinRetryBackoff = 8 * time.Millisecond
	opt.MaxRetryBackoff = 512 * time.Millisecond

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("routecache: connecting to redis: %w", err)
	}

	return &RedisCache{client: client, logger: logger, metrics: &Metrics{}, ttl: ttl}, nil
}

func (c *RedisCache) key(tail, head uint32) string {
	c.mu.RLock()
	gen := c.generation
	c.mu.RUnlock()
	return fmt.Sprintf("dispatch:route:%d:%d:%d", gen, tail, head)
}

// Get returns a previously-cached shortest path, if any.
func (c *RedisCache) Get(tail, head uint32) (stationgraph.Path, bool) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := c.client.Get(ctx, c.key(tail, head)).Bytes()
	c.metrics.recordLatency(time.Since(start))
	if err != nil {
		c.metrics.mu.Lock()
		c.metrics.MissCount++
		c.metrics.mu.Unlock()
		return stationgraph.Path{}, false
	}

	var p stationgraph.Path
	if err := json.Unmarshal(data, &p); err != nil {
		if c.logger != nil {
			c.logger.Warn(ctx, "routecache: corrupt cache entry", map[string]interface{}{"tail": tail, "head": head})
		}
		c.metrics.mu.Lock()
		c.metrics.MissCount++
		c.metrics.mu.Unlock()
		return stationgraph.Path{}, false
	}

	c.metrics.mu.Lock()
	c.metrics.HitCount++
	c.metrics.mu.Unlock()
	return p, true
}

// Set stores a shortest-path result.
func (c *RedisCache) Set(tail, head uint32, p stationgraph.Path) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(tail, head), data, c.ttl).Err(); err != nil {
		if c.logger != nil {
			c.logger.Warn(ctx, "routecache: set failed", map[string]interface{}{"tail": tail, "head": head, "error": err.Error()})
		}
		return
	}
	c.metrics.recordLatency(time.Since(start))
	c.metrics.mu.Lock()
	c.metrics.SetCount++
	c.metrics.mu.Unlock()
}

// Flush invalidates every cached path by advancing the generation
// counter; previously-written keys expire naturally via their TTL.
func (c *RedisCache) Flush() {
	c.mu.Lock()
	c.generation++
	c.mu.Unlock()
}

// Metrics returns the cache's running hit/miss/set counters.
func (c *RedisCache) Metrics() *Metrics {
	return c.metrics
}

// Close releases the underlying Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
