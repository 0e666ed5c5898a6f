package consumer

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/banking/compliance-service/internal/pkg/clock"
)

// DedupCache remembers processed alert keys for the dedup window.
// Seen is a read; Mark records the key only after processing succeeds,
// so a failed attempt does not swallow the redelivery.
type DedupCache interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// RedisDedupCache shares the dedup window across consumer instances
type RedisDedupCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDedupCache creates a Redis-backed dedup cache
func NewRedisDedupCache(client *redis.Client, ttl time.Duration) *RedisDedupCache {
	return &RedisDedupCache{client: client, ttl: ttl}
}

func (c *RedisDedupCache) Seen(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, "dedup:"+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *RedisDedupCache) Mark(ctx context.Context, key string) error {
	return c.client.Set(ctx, "dedup:"+key, "1", c.ttl).Err()
}

// Sweeping every write would put a full map scan on the hot path;
// expired entries are tolerated until the map grows past this.
const dedupSweepThreshold = 4096

// MemoryDedupCache is a single-instance dedup cache. Expired keys are
// lazily evicted on access.
type MemoryDedupCache struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	clk  clock.Clock
}

// NewMemoryDedupCache creates an in-memory dedup cache
func NewMemoryDedupCache(ttl time.Duration, clk clock.Clock) *MemoryDedupCache {
	return &MemoryDedupCache{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		clk:  clk,
	}
}

func (c *MemoryDedupCache) Seen(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	at, ok := c.seen[key]
	if !ok {
		return false, nil
	}
	if c.clk.Now().Sub(at) >= c.ttl {
		delete(c.seen, key)
		return false, nil
	}
	return true, nil
}

func (c *MemoryDedupCache) Mark(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clk.Now()
	c.seen[key] = now

	if len(c.seen) > dedupSweepThreshold {
		for k, at := range c.seen {
			if now.Sub(at) >= c.ttl {
				delete(c.seen, k)
			}
		}
	}
	return nil
}
