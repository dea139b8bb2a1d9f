package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript refills tokens proportionally to elapsed time and takes
// one token per call. Returns {allowed, remaining, retry_after_seconds}.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local bucket = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(bucket[1])
local ts = tonumber(bucket[2])
if tokens == nil then
  tokens = burst
  ts = now
end

local elapsed = math.max(0, now - ts)
tokens = math.min(burst, tokens + elapsed * rate / 60.0)

local allowed = 0
local retry_after = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  retry_after = math.ceil((1 - tokens) * 60.0 / rate)
end

redis.call('HSET', key, 'tokens', tokens, 'ts', now)
redis.call('EXPIRE', key, 120)
return {allowed, math.floor(tokens), retry_after}
`)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter is a Redis token bucket shared across instances. Buckets are
// keyed per tenant and operation group (read or write).
type RateLimiter struct {
	rdb *redis.Client
}

func NewRateLimiter(rdb *redis.Client) *RateLimiter {
	return &RateLimiter{rdb: rdb}
}

// Allow takes one token from the tenant's bucket for the given group.
// ratePerMin doubles as the burst size.
func (l *RateLimiter) Allow(ctx context.Context, tenantID, group string, ratePerMin int) (*Decision, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", tenantID, group)
	res, err := tokenBucketScript.Run(ctx, l.rdb, []string{key},
		ratePerMin, ratePerMin, time.Now().Unix()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("running rate limit script: %w", err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("rate limit script returned %d values", len(res))
	}
	return &Decision{
		Allowed:    res[0] == 1,
		Limit:      ratePerMin,
		Remaining:  int(res[1]),
		RetryAfter: time.Duration(res[2]) * time.Second,
	}, nil
}
