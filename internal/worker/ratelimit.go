package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter gates each send attempt. Acquire blocks until a token is available
// or the context is done.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// RateLimiter is a redis-backed token bucket shared by every dispatch worker,
// and by every process when dispatch runs on more than one host. Rate and
// burst are independent of the worker pool size. The check-and-take is a
// single Lua script so concurrent workers cannot race the bucket.
type RateLimiter struct {
	redis *redis.Client
	key   string
	rate  float64
	burst int

	script *redis.Script
	now    func() time.Time
}

// tokenBucketScript refills the bucket from elapsed time, then takes one
// token if available. Returns {allowed, wait_ms}.
const tokenBucketScript = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if not tokens or not ts then
    tokens = burst
    ts = now
end

local elapsed = now - ts
if elapsed < 0 then
    elapsed = 0
end
tokens = tokens + (elapsed / 1000000) * rate
if tokens > burst then
    tokens = burst
end

local allowed = 0
local wait_ms = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
else
    wait_ms = math.ceil(((1 - tokens) / rate) * 1000)
end

redis.call("HSET", key, "tokens", tokens, "ts", now)
redis.call("EXPIRE", key, 60)
return {allowed, wait_ms}
`

// NewRateLimiter creates a limiter over an existing redis client.
func NewRateLimiter(client *redis.Client, key string, ratePerSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		redis:  client,
		key:    key,
		rate:   ratePerSecond,
		burst:  burst,
		script: redis.NewScript(tokenBucketScript),
		now:    time.Now,
	}
}

// NewRateLimiterFromURL connects to redis and creates a limiter.
func NewRateLimiterFromURL(redisURL, key string, ratePerSecond float64, burst int) (*RateLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewRateLimiter(client, key, ratePerSecond, burst), nil
}

// Acquire blocks until a token is taken. A redis failure lets the caller
// proceed: pacing is best-effort and must never wedge a dispatch run.
// The only error returned is the context's.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		allowed, wait, err := r.take(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[RateLimiter] Redis error, proceeding unthrottled: %v", err)
			return nil
		}
		if allowed {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *RateLimiter) take(ctx context.Context) (allowed bool, wait time.Duration, err error) {
	result, err := r.script.Run(ctx, r.redis,
		[]string{r.key},
		r.rate,
		r.burst,
		r.now().UnixMicro(),
	).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("token bucket: %w", err)
	}

	allowed = result[0].(int64) == 1
	waitMs := result[1].(int64)
	if waitMs < 1 {
		waitMs = 1
	}
	return allowed, time.Duration(waitMs) * time.Millisecond, nil
}

// Close closes the underlying redis connection.
func (r *RateLimiter) Close() error {
	return r.redis.Close()
}
