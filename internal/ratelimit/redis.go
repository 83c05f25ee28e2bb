package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/florelle/auth-service/pkg/helpers"
)

// Lua script: the block check, window increment, and ceiling transition are
// one atomic step per key, so the semantics hold across server instances.
// Returns {allowed, remaining, reset_ms}.
var checkScript = redis.NewScript(`
local blocked = redis.call("PTTL", KEYS[2])
if blocked > 0 then
  return {0, 0, blocked}
end
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
local max = tonumber(ARGV[1])
if count > max then
  redis.call("SET", KEYS[2], "1", "PX", ARGV[3])
  redis.call("DEL", KEYS[1])
  return {0, 0, tonumber(ARGV[3])}
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[2])
end
return {1, max - count, ttl}
`)

// RedisLimiter is the shared-store backend for multi-instance deployments.
// Stale keys expire on their own, so no sweeper is needed.
type RedisLimiter struct {
	rdb    *redis.Client
	policy Policy
	clock  helpers.Clock
	prefix string
}

func NewRedisLimiter(rdb *redis.Client, policy Policy, clock helpers.Clock) *RedisLimiter {
	if clock == nil {
		clock = helpers.SystemClock{}
	}
	return &RedisLimiter{rdb: rdb, policy: policy, clock: clock, prefix: "rl:"}
}

func (l *RedisLimiter) counterKey(key string) string { return l.prefix + key }
func (l *RedisLimiter) blockKey(key string) string   { return l.prefix + key + ":block" }

func (l *RedisLimiter) Check(ctx context.Context, key string) (Result, error) {
	res, err := checkScript.Run(ctx, l.rdb,
		[]string{l.counterKey(key), l.blockKey(key)},
		l.policy.MaxAttempts,
		l.policy.Window.Milliseconds(),
		l.policy.Block.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit check: %w", err)
	}
	if len(res) != 3 {
		return Result{}, fmt.Errorf("rate limit check: unexpected script reply %v", res)
	}
	return Result{
		Allowed:   res[0] == 1,
		Remaining: int(res[1]),
		ResetAt:   l.clock.Now().Add(time.Duration(res[2]) * time.Millisecond),
	}, nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, l.counterKey(key), l.blockKey(key)).Err()
}

var _ Limiter = (*RedisLimiter)(nil)
