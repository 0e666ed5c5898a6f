package risk

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type velocityEvent struct {
	at     time.Time
	amount float64
}

// MemoryVelocityTracker keeps per-user transaction events in memory.
// Suitable for a single instance and for tests; production deployments
// share state through the Redis tracker.
type MemoryVelocityTracker struct {
	mu        sync.Mutex
	events    map[uuid.UUID][]velocityEvent
	retention time.Duration
}

// NewMemoryVelocityTracker creates a tracker that prunes events older
// than retention on every read.
func NewMemoryVelocityTracker(retention time.Duration) *MemoryVelocityTracker {
	return &MemoryVelocityTracker{
		events:    make(map[uuid.UUID][]velocityEvent),
		retention: retention,
	}
}

// Record stores a transaction timestamp and amount for the user
func (t *MemoryVelocityTracker) Record(_ context.Context, userID uuid.UUID, at time.Time, amount float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events[userID] = append(t.events[userID], velocityEvent{at: at, amount: amount})
	return nil
}

// WindowSince returns the transaction count and summed amount for the
// user since the given time. Stale events beyond the retention horizon
// are dropped.
func (t *MemoryVelocityTracker) WindowSince(_ context.Context, userID uuid.UUID, since time.Time) (int, float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	events := t.events[userID]
	if len(events) == 0 {
		return 0, 0, nil
	}

	sort.Slice(events, func(i, j int) bool { return events[i].at.Before(events[j].at) })

	horizon := since.Add(-t.retention)
	kept := events[:0]
	count := 0
	total := 0.0
	for _, ev := range events {
		if ev.at.Before(horizon) {
			continue
		}
		kept = append(kept, ev)
		if !ev.at.Before(since) {
			count++
			total += ev.amount
		}
	}
	t.events[userID] = kept

	return count, total, nil
}

// RedisVelocityTracker shares the sliding window across instances using
// a sorted set per user keyed by event time. The amount rides in the
// member so one read serves both velocity arms.
type RedisVelocityTracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisVelocityTracker creates a Redis-backed tracker. Keys expire
// after ttl so idle users cost nothing.
func NewRedisVelocityTracker(client *redis.Client, ttl time.Duration) *RedisVelocityTracker {
	return &RedisVelocityTracker{client: client, ttl: ttl}
}

func velocityKey(userID uuid.UUID) string {
	return "velocity:" + userID.String()
}

// Record adds the transaction to the user's window
func (t *RedisVelocityTracker) Record(ctx context.Context, userID uuid.UUID, at time.Time, amount float64) error {
	key := velocityKey(userID)
	pipe := t.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: fmt.Sprintf("%d:%s:%s", at.UnixNano(), uuid.NewString(), strconv.FormatFloat(amount, 'f', 2, 64)),
	})
	pipe.Expire(ctx, key, t.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// WindowSince trims entries older than since, then counts and sums the
// remainder
func (t *RedisVelocityTracker) WindowSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, float64, error) {
	key := velocityKey(userID)
	pipe := t.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("(%d", since.UnixMilli()))
	members := pipe.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}

	vals := members.Val()
	total := 0.0
	for _, m := range vals {
		idx := strings.LastIndexByte(m, ':')
		if idx < 0 {
			continue
		}
		amount, err := strconv.ParseFloat(m[idx+1:], 64)
		if err != nil {
			continue
		}
		total += amount
	}
	return len(vals), total, nil
}
