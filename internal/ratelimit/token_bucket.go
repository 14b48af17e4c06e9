package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Lua numbers are truncated to integers when returned to the client, so the
// fractional token count is sent back as a string.
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local clock = redis.call("TIME")
local now = (clock[1] * 1000) + math.floor(clock[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1])
local ts = tonumber(state[2])

if tokens == nil then
  tokens = burst
else
  local elapsed = math.max(0, now - ts)
  tokens = math.min(burst, tokens + (elapsed / 1000) * rate)
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, tostring(tokens)}
`

var errBucketNotConfigured = errors.New("token bucket not configured")

// TokenBucket is a redis-side bucket refilled at rate tokens per second up
// to burst. Refill uses the redis clock so instances need not agree on time.
type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

// Result is one bucket decision. Remaining is floored to whole tokens.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

func (t *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (*Result, error) {
	if t == nil || t.client == nil {
		return nil, errBucketNotConfigured
	}
	if key == "" || rate <= 0 || burst <= 0 {
		return nil, fmt.Errorf("token bucket: key %q rate %v burst %d", key, rate, burst)
	}

	raw, err := t.script.Run(ctx, t.client, []string{key}, rate, burst, bucketTTL(rate, burst).Milliseconds()).Slice()
	if err != nil {
		return nil, err
	}
	if len(raw) != 2 {
		return nil, fmt.Errorf("token bucket: unexpected reply %v", raw)
	}
	allowed, _ := raw[0].(int64)
	tokensText, _ := raw[1].(string)
	tokens, err := strconv.ParseFloat(tokensText, 64)
	if err != nil {
		return nil, fmt.Errorf("token bucket: parse tokens %q: %w", tokensText, err)
	}

	res := &Result{
		Allowed:   allowed == 1,
		Limit:     burst,
		Remaining: int(math.Floor(tokens)),
	}
	if !res.Allowed {
		res.RetryAfter = retryAfter(tokens, rate)
	}
	return res, nil
}

// retryAfter is the time until the bucket holds one whole token again.
func retryAfter(tokens, rate float64) time.Duration {
	wait := time.Duration((1 - tokens) / rate * float64(time.Second))
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}

// bucketTTL keeps an idle bucket around for twice its full refill time.
func bucketTTL(rate float64, burst int) time.Duration {
	seconds := math.Ceil((float64(burst) / rate) * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}
