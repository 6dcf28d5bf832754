package ratelimit

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local nowData = redis.call("TIME")
local now = (nowData[1] * 1000) + math.floor(nowData[2] / 1000)

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil then
  tokens = burst
  ts = now
else
  local delta = now - ts
  if delta < 0 then
    delta = 0
  end
  local refill = (delta / 1000) * rate
  tokens = math.min(burst, tokens + refill)
  ts = now
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HMSET", KEYS[1], "tokens", tokens, "ts", ts)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, tokens, ts}
`

// TokenBucket is a Redis-backed per-key token bucket. The bucket state
// lives in Redis so the limit holds across replicas.
type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

// Allow consumes one token from the bucket for key, refilling at
// ratePerMinute up to burst. A nil receiver always allows; rate limiting
// is an optional layer.
func (b *TokenBucket) Allow(ctx context.Context, key string, ratePerMinute, burst int) (bool, error) {
	if b == nil || b.client == nil {
		return true, nil
	}
	if ratePerMinute <= 0 || burst <= 0 {
		return true, nil
	}

	ratePerSecond := float64(ratePerMinute) / 60.0
	ttl := 10 * time.Minute

	res, err := b.script.Run(ctx, b.client, []string{key},
		ratePerSecond,
		burst,
		ttl.Milliseconds(),
	).Slice()
	if err != nil {
		// Fail open: a Redis outage must not take donations down with it.
		return true, err
	}
	if len(res) == 0 {
		return true, nil
	}

	allowed, _ := res[0].(int64)
	return allowed == 1, nil
}
