package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DistributedRateLimiter is a fixed-window counter in Redis, so every
// instance shares one budget per key.
type DistributedRateLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
}

// NewDistributedRateLimiter creates a new Redis-backed rate limiter
func NewDistributedRateLimiter(redisClient *redis.Client, config *RateLimitConfig, prefix string) *DistributedRateLimiter {
	if config == nil {
		config = LoginRateLimitConfig()
	}
	if prefix == "" {
		prefix = "ratelimit"
	}

	return &DistributedRateLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
	}
}

// Limit returns the per-window request budget
func (rl *DistributedRateLimiter) Limit() int { return rl.config.RequestsPerWindow }

// Window returns the counter window
func (rl *DistributedRateLimiter) Window() time.Duration { return rl.config.WindowDuration }

// Allow increments the key's counter and reports whether it is within budget.
// On Redis errors it returns true with the error.
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := rl.key(key)

	count, err := rl.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return true, fmt.Errorf("redis error: %w", err)
	}

	// The window is anchored at the first hit.
	if count == 1 {
		if err := rl.redis.Expire(ctx, redisKey, rl.config.WindowDuration).Err(); err != nil {
			return true, fmt.Errorf("redis error: %w", err)
		}
	}

	return count <= int64(rl.config.RequestsPerWindow+rl.config.BurstSize), nil
}

// Remaining returns the number of remaining requests in the window
func (rl *DistributedRateLimiter) Remaining(ctx context.Context, key string) (int, error) {
	count, err := rl.redis.Get(ctx, rl.key(key)).Int()
	if err == redis.Nil {
		return rl.config.RequestsPerWindow, nil
	} else if err != nil {
		return 0, err
	}

	remaining := rl.config.RequestsPerWindow - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset clears the counter for a key, e.g. after a successful login
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, rl.key(key)).Err()
}

// HealthCheck verifies Redis connectivity
func (rl *DistributedRateLimiter) HealthCheck(ctx context.Context) error {
	return rl.redis.Ping(ctx).Err()
}

func (rl *DistributedRateLimiter) key(key string) string {
	return fmt.Sprintf("%s:%s", rl.prefix, key)
}
