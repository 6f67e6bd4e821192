package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter is a fixed-window counter per key.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow counts one hit against key and reports whether it is within limit.
// The returned duration is how long until the window resets.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, 0, err
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, window); err != nil {
			return false, 0, err
		}
	}

	if count > int64(limit) {
		ttl, err := r.client.TTL(ctx, key)
		if err != nil || ttl < 0 {
			ttl = window
		}
		return false, ttl, nil
	}

	return true, 0, nil
}

func ClientKey(bucket, ip string) string {
	return fmt.Sprintf("rate_limit:%s:%s", bucket, ip)
}
