package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindow trims entries older than the window, then admits the request
// only while fewer than limit entries remain. Runs atomically inside Redis.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
	local current = redis.call('ZCARD', key)

	if current < limit then
		local counter = redis.call('INCR', key .. ':seq')
		redis.call('ZADD', key, now, now .. ':' .. counter)
		local ttl = math.ceil(window_ms / 1000)
		redis.call('EXPIRE', key, ttl)
		redis.call('EXPIRE', key .. ':seq', ttl)
		return {1, limit - current - 1, 0}
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local reset_at = 0
	if oldest and #oldest >= 2 then
		reset_at = tonumber(oldest[2]) + window_ms
	end
	return {0, 0, reset_at}
`)

// Result is the outcome of a single rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Limit     int
}

// RetryAfter is how long a rejected caller should wait, rounded up to whole seconds.
func (r *Result) RetryAfter(now time.Time) int {
	wait := r.ResetAt.Sub(now)
	if wait <= 0 {
		return 1
	}
	seconds := int(wait / time.Second)
	if wait%time.Second != 0 {
		seconds++
	}
	return seconds
}

// Limiter implements sliding window rate limiting using Redis sorted sets.
type Limiter struct {
	client    *redis.Client
	keyPrefix string
}

// NewLimiter creates a new rate limiter with Redis backend.
func NewLimiter(client *redis.Client, keyPrefix string) *Limiter {
	return &Limiter{client: client, keyPrefix: keyPrefix}
}

// Allow records an attempt for key and reports whether it fits in the window.
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := time.Now()
	redisKey := l.keyPrefix + key

	raw, err := slidingWindow.Run(ctx, l.client, []string{redisKey},
		now.UnixMilli(), now.Add(-window).UnixMilli(), limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}
	if len(raw) != 3 {
		return nil, fmt.Errorf("rate limit script: unexpected reply length %d", len(raw))
	}

	resetAt := now.Add(window)
	if raw[2] > 0 {
		resetAt = time.UnixMilli(raw[2])
	}
	return &Result{
		Allowed:   raw[0] == 1,
		Remaining: int(raw[1]),
		ResetAt:   resetAt,
		Limit:     limit,
	}, nil
}

// Reset clears the recorded attempts for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	redisKey := l.keyPrefix + key
	return l.client.Del(ctx, redisKey, redisKey+":seq").Err()
}
