package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// minBackoff bounds how often Wait re-checks a saturated window
const minBackoff = 20 * time.Millisecond

// RateLimiter keeps one sliding window per budget in a Redis sorted set
// ⭐ SSOT: 프로바이더 호출 예산은 모든 replica가 이 윈도우를 공유
type RateLimiter struct {
	client *Client
	prefix string
}

// Budget names a shared request budget
type Budget struct {
	Key    string
	Limit  int
	Window time.Duration
}

// Decision is the outcome of one Allow call
type Decision struct {
	Allowed   bool
	Remaining int
	// RetryIn is how long until the oldest slot in the window expires
	RetryIn time.Duration
}

// NewRateLimiter returns a limiter; a disabled client always allows
func NewRateLimiter(client *Client, prefix string) *RateLimiter {
	return &RateLimiter{client: client, prefix: prefix}
}

// Enabled reports whether the limiter is backed by Redis
func (r *RateLimiter) Enabled() bool {
	return r != nil && r.client != nil && r.client.Enabled()
}

// Returns {allowed, remaining, retry_ms}
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)
if count < limit then
	redis.call('ZADD', key, now, ARGV[4])
	redis.call('PEXPIRE', key, window)
	return {1, limit - count - 1, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local retry = window
if oldest[2] then
	retry = tonumber(oldest[2]) + window - now
end
return {0, 0, retry}
`)

func (r *RateLimiter) key(b Budget) string {
	return fmt.Sprintf("%s:ratelimit:%s", r.prefix, b.Key)
}

// Allow takes one slot from the budget if one is free
func (r *RateLimiter) Allow(ctx context.Context, b Budget) (Decision, error) {
	if !r.Enabled() {
		return Decision{Allowed: true, Remaining: b.Limit}, nil
	}

	now := time.Now()
	// nanosecond member so replicas hitting the same millisecond both count
	member := strconv.FormatInt(now.UnixNano(), 10)

	res, err := slidingWindowScript.Run(ctx, r.client.Redis(), []string{r.key(b)},
		now.UnixMilli(), b.Window.Milliseconds(), b.Limit, member,
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script failed: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("rate limit script returned %d values", len(res))
	}

	return Decision{
		Allowed:   res[0] == 1,
		Remaining: int(res[1]),
		RetryIn:   time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// Wait blocks until the budget grants a slot or ctx ends
func (r *RateLimiter) Wait(ctx context.Context, b Budget) error {
	for {
		d, err := r.Allow(ctx, b)
		if err != nil {
			return err
		}
		if d.Allowed {
			return nil
		}

		backoff := d.RetryIn
		if backoff < minBackoff {
			backoff = minBackoff
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// ScreenerBudget is the provider-wide per-minute budget
func ScreenerBudget(requestsPerMinute int) Budget {
	return Budget{Key: "screener", Limit: requestsPerMinute, Window: time.Minute}
}
