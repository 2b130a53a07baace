package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// AvailabilityCache is a read-through redis cache for book copy counters.
// A nil receiver or nil client is a no-op, so deployments without redis and
// tests work unchanged.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAvailabilityCache connects to redis at redisURL. An empty URL returns a
// disabled cache.
func NewAvailabilityCache(redisURL string, ttl time.Duration) (*AvailabilityCache, error) {
	if redisURL == "" {
		return &AvailabilityCache{}, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &AvailabilityCache{client: rdb, ttl: ttl}, nil
}

func availabilityKey(bookID int64) string {
	return fmt.Sprintf("availability:book:%d", bookID)
}

// Get returns the cached counters for a book, with ok=false on a miss.
func (c *AvailabilityCache) Get(ctx context.Context, bookID int64) (total, available int, ok bool) {
	if c == nil || c.client == nil {
		return 0, 0, false
	}

	fields, err := c.client.HGetAll(ctx, availabilityKey(bookID)).Result()
	if err != nil || len(fields) == 0 {
		return 0, 0, false
	}

	total, terr := strconv.Atoi(fields["total"])
	available, aerr := strconv.Atoi(fields["available"])
	if terr != nil || aerr != nil {
		return 0, 0, false
	}
	return total, available, true
}

// Set stores the counters for a book with the configured TTL.
func (c *AvailabilityCache) Set(ctx context.Context, bookID int64, total, available int) {
	if c == nil || c.client == nil {
		return
	}

	key := availabilityKey(bookID)
	fields := map[string]any{
		"total":     total,
		"available": available,
	}
	if err := c.client.HSet(ctx, key, fields).Err(); err != nil {
		return
	}
	c.client.Expire(ctx, key, c.ttl)
}

// Invalidate drops the cached counters for a book. Called by the borrow
// transitions and admin catalog edits that change stock.
func (c *AvailabilityCache) Invalidate(ctx context.Context, bookID int64) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Del(ctx, availabilityKey(bookID))
}

// Close releases the underlying client.
func (c *AvailabilityCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
