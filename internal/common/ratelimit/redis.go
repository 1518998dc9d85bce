// Package ratelimit はRedisを使った固定ウィンドウのレート制限を提供します
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// Result はレート制限の判定結果です
type Result struct {
	Allowed           bool
	Count             int
	RetryAfterSeconds int
}

// RedisLimiter は複数インスタンス間で共有されるレート制限です
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

// NewRedisLimiter は windowあたりlimit回 を上限とするRedisLimiterを作成します
func NewRedisLimiter(client redis.UniversalClient, prefix string, limit int, window time.Duration) *RedisLimiter {
	trimmed := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if trimmed == "" {
		trimmed = "bungalow:rate_limit"
	}
	return &RedisLimiter{client: client, prefix: trimmed, limit: limit, window: window}
}

// Allow はscopeとsubject(IPアドレスなど)の組について1回分を消費します
// 制限が無効な場合や対象が空の場合は常に許可します
func (r *RedisLimiter) Allow(ctx context.Context, scope, subject string) (Result, error) {
	if r == nil || r.client == nil || r.limit <= 0 || r.window <= 0 {
		return Result{Allowed: true}, nil
	}

	scope = strings.TrimSpace(scope)
	subject = strings.TrimSpace(subject)
	if scope == "" || subject == "" {
		return Result{Allowed: true}, nil
	}

	windowMs := r.window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	key := fmt.Sprintf("%s:%s:%s", r.prefix, scope, subject)
	raw, err := fixedWindowScript.Run(ctx, r.client, []string{key}, windowMs).Result()
	if err != nil {
		return Result{}, fmt.Errorf("failed to run rate limit script: %w", err)
	}

	return parseScriptResult(raw, windowMs, r.limit)
}

func parseScriptResult(raw interface{}, windowMs int64, limit int) (Result, error) {
	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return Result{}, fmt.Errorf("unexpected redis limiter response shape: %T", raw)
	}

	count, ok := values[0].(int64)
	if !ok {
		return Result{}, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}

	ttlMs, ok := values[1].(int64)
	if !ok || ttlMs < 0 {
		ttlMs = windowMs
	}

	retryAfter := int(math.Ceil(float64(ttlMs) / 1000.0))
	if retryAfter < 1 {
		retryAfter = 1
	}

	return Result{
		Allowed:           int(count) <= limit,
		Count:             int(count),
		RetryAfterSeconds: retryAfter,
	}, nil
}
