package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/webscanio/api/pkg/logger"
)

// RateLimiter implements distributed rate limiting using Redis.
// It uses the fixed window counter algorithm: each key gets an INCR per
// request and the counter expires when the window ends. The first request
// in a window arms the expiry, so the window is anchored to that request.
//
// Counting is fail-closed: if Redis is unreachable the error is returned
// to the caller instead of letting the request through unmetered.
type RateLimiter struct {
	client    *Client
	keyPrefix string
	limit     int
	window    time.Duration
	logger    *logger.Logger
}

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	// Allowed indicates if the request is permitted.
	Allowed bool

	// Remaining is the number of requests left in the current window.
	Remaining int

	// ResetAt is when the rate limit window resets.
	ResetAt time.Time

	// RetryAt is when the client should retry (only set when not allowed).
	RetryAt time.Time
}

// NewRateLimiter creates a new distributed rate limiter.
//
// Parameters:
//   - client: Redis client for storage
//   - prefix: Key prefix for namespacing (e.g., "ratelimit")
//   - limit: Maximum requests allowed per window
//   - window: Time window duration
//   - log: Logger for debugging
//
// Example:
//
//	rl, err := redis.NewRateLimiter(client, "ratelimit", 100, time.Minute, logger)
func NewRateLimiter(client *Client, prefix string, limit int, window time.Duration, log *logger.Logger) (*RateLimiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if prefix == "" {
		return nil, errors.New("key prefix is required")
	}
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	if window <= 0 {
		return nil, errors.New("window must be positive")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}

	return &RateLimiter{
		client:    client,
		keyPrefix: prefix,
		limit:     limit,
		window:    window,
		logger:    log,
	}, nil
}

// MustNewRateLimiter creates a rate limiter or panics on error.
// Use only in initialization code where failure is unrecoverable.
func MustNewRateLimiter(client *Client, prefix string, limit int, window time.Duration, log *logger.Logger) *RateLimiter {
	rl, err := NewRateLimiter(client, prefix, limit, window, log)
	if err != nil {
		panic(fmt.Sprintf("failed to create rate limiter: %v", err))
	}
	return rl
}

// buildKey creates the full rate limit key with prefix.
func (rl *RateLimiter) buildKey(key string) string {
	return fmt.Sprintf("%s:%s", rl.keyPrefix, key)
}

// Allow checks if a request is allowed and consumes one slot in the
// current window.
//
// The counter is incremented first; the first increment of a window arms
// the expiry. A request is denied once the counter exceeds the limit.
// Any Redis error is returned as-is so callers can refuse the request
// rather than waving it through.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (*RateLimitResult, error) {
	if key == "" {
		return nil, errors.New("key is required")
	}

	start := time.Now()
	fullKey := rl.buildKey(key)

	count, err := rl.client.client.Incr(ctx, fullKey).Result()
	if err != nil {
		DefaultMetrics.ObserveOperation("ratelimit_allow", time.Since(start), err)
		return nil, fmt.Errorf("rate limit check: %w", err)
	}

	if count == 1 {
		if err := rl.client.client.Expire(ctx, fullKey, rl.window).Err(); err != nil {
			DefaultMetrics.ObserveOperation("ratelimit_allow", time.Since(start), err)
			return nil, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	resetAt, err := rl.resetTime(ctx, fullKey)
	if err != nil {
		DefaultMetrics.ObserveOperation("ratelimit_allow", time.Since(start), err)
		return nil, err
	}

	allowed := count <= int64(rl.limit)
	remaining := rl.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	result := &RateLimitResult{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   resetAt,
	}

	DefaultMetrics.RecordRateLimitResult(rl.keyPrefix, allowed)
	DefaultMetrics.ObserveOperation("ratelimit_allow", time.Since(start), nil)

	if !allowed {
		result.RetryAt = resetAt
		rl.logger.Debug("rate limit exceeded",
			"key", key,
			"count", count,
			"retry_at", resetAt,
		)
	}

	return result, nil
}

// resetTime computes when the current window ends from the key's TTL.
// A key observed without a TTL (expiry lost between INCR and EXPIRE on a
// previous request) is re-armed so the counter cannot live forever.
func (rl *RateLimiter) resetTime(ctx context.Context, fullKey string) (time.Time, error) {
	ttl, err := rl.client.client.PTTL(ctx, fullKey).Result()
	if err != nil {
		return time.Time{}, fmt.Errorf("rate limit ttl: %w", err)
	}

	if ttl < 0 {
		if err := rl.client.client.Expire(ctx, fullKey, rl.window).Err(); err != nil {
			return time.Time{}, fmt.Errorf("rate limit expire: %w", err)
		}
		ttl = rl.window
	}

	return time.Now().Add(ttl), nil
}

// Status returns the current rate limit status without consuming a slot.
// This is useful for displaying rate limit information to clients.
func (rl *RateLimiter) Status(ctx context.Context, key string) (*RateLimitResult, error) {
	if key == "" {
		return nil, errors.New("key is required")
	}

	fullKey := rl.buildKey(key)

	val, err := rl.client.client.Get(ctx, fullKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &RateLimitResult{
				Allowed:   true,
				Remaining: rl.limit,
				ResetAt:   time.Now().Add(rl.window),
			}, nil
		}
		return nil, fmt.Errorf("rate limit status: %w", err)
	}

	resetAt, err := rl.resetTime(ctx, fullKey)
	if err != nil {
		return nil, err
	}

	remaining := rl.limit - int(val)
	if remaining < 0 {
		remaining = 0
	}

	return &RateLimitResult{
		Allowed:   val < int64(rl.limit),
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// Reset removes the rate limit for a key, allowing immediate access.
// Use with caution as this bypasses rate limiting protections.
func (rl *RateLimiter) Reset(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("key is required")
	}

	fullKey := rl.buildKey(key)

	if err := rl.client.client.Del(ctx, fullKey).Err(); err != nil {
		return fmt.Errorf("rate limit reset: %w", err)
	}

	rl.logger.Debug("rate limit reset", "key", key)
	return nil
}

// Limit returns the configured maximum requests per window.
func (rl *RateLimiter) Limit() int {
	return rl.limit
}

// Window returns the configured time window duration.
func (rl *RateLimiter) Window() time.Duration {
	return rl.window
}
