// Package ratelimit throttles per-session message sends with a sliding
// window backed by Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter implements sliding window rate limiting using Redis.
type Limiter struct {
	client *redis.Client
	config Config
}

// Result contains the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Limit     int
}

// New creates a limiter and verifies the Redis connection.
func New(ctx context.Context, opts ...Option) (*Limiter, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.RedisAddr,
		Password:     config.RedisPassword,
		DB:           config.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", config.RedisAddr, err)
	}

	return &Limiter{client: client, config: config}, nil
}

// Close releases the Redis connection.
func (l *Limiter) Close() error {
	return l.client.Close()
}

// allowScript implements an atomic sliding window over a sorted set. An INCR
// counter generates unique member values.
var allowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local current = redis.call('ZCARD', key)

	if current < limit then
		local counter = redis.call('INCR', key .. ':counter')
		redis.call('ZADD', key, now, now .. ':' .. counter)
		local expire_seconds = math.ceil(window_ms / 1000)
		redis.call('EXPIRE', key, expire_seconds)
		redis.call('EXPIRE', key .. ':counter', expire_seconds)
		return {1, limit - current - 1, 0}
	else
		local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
		local reset_at = 0
		if oldest and #oldest >= 2 then
			reset_at = tonumber(oldest[2]) + window_ms
		end
		return {0, 0, reset_at}
	end
`)

// Allow checks whether a session may send another message.
func (l *Limiter) Allow(ctx context.Context, sessionID string) (*Result, error) {
	now := time.Now()
	windowStart := now.Add(-l.config.Window)
	redisKey := l.config.KeyPrefix + sessionID

	result, err := allowScript.Run(
		ctx,
		l.client,
		[]string{redisKey},
		now.UnixMilli(),
		windowStart.UnixMilli(),
		l.config.Limit,
		l.config.Window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis script error: %w", err)
	}
	if len(result) != 3 {
		return nil, fmt.Errorf("unexpected Redis response length: %d", len(result))
	}

	resetAt := now.Add(l.config.Window)
	if result[2] > 0 {
		resetAt = time.UnixMilli(result[2])
	}

	return &Result{
		Allowed:   result[0] == 1,
		Remaining: int(result[1]),
		ResetAt:   resetAt,
		Limit:     l.config.Limit,
	}, nil
}

// Reset clears the rate limit state for a session.
func (l *Limiter) Reset(ctx context.Context, sessionID string) error {
	return l.client.Del(ctx, l.config.KeyPrefix+sessionID, l.config.KeyPrefix+sessionID+":counter").Err()
}
