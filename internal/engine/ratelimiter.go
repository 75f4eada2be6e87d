package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a sliding window rate limiter backed by a Redis sorted set
// per key. The Lua script trims, counts and admits in one round trip.
type RateLimiter struct {
	redisClient *redis.Client
	logger      *slog.Logger
	script      *redis.Script
	prefix      string
	window      time.Duration
}

// KEYS[1] window key; ARGV now_ms, window_ms, limit, member.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, member)
    redis.call('PEXPIRE', key, window + 1000)
    return 1
else
    return 0
end
`)

// NewRateLimiter creates a limiter over a one second window. prefix
// separates independent limiters sharing one Redis.
func NewRateLimiter(redisClient *redis.Client, prefix string, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		redisClient: redisClient,
		logger:      logger,
		script:      slidingWindowScript,
		prefix:      prefix,
		window:      time.Second,
	}
}

func (rl *RateLimiter) key(id string) string {
	return fmt.Sprintf("rl:%s:%s", rl.prefix, id)
}

// Allow reports whether one more request for id fits within limit per window.
// A limit <= 0 disables limiting.
func (rl *RateLimiter) Allow(ctx context.Context, id string, limit int) bool {
	if limit <= 0 {
		return true
	}

	now := time.Now()
	member := fmt.Sprintf("%d:%d", now.UnixMilli(), now.UnixNano())

	result, err := rl.script.Run(ctx, rl.redisClient, []string{rl.key(id)},
		now.UnixMilli(), rl.window.Milliseconds(), limit, member,
	).Int64()
	if err != nil {
		// Fail open, Redis trouble must not block traffic.
		rl.logger.Error("rate limiter script failed", "error", err, "id", id, "limiter", rl.prefix)
		return true
	}

	if result == 0 {
		rl.logger.Debug("rate limited", "id", id, "limiter", rl.prefix, "limit", limit)
		return false
	}
	return true
}
