package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

var _ domain.RateLimiter = (*RateLimiter)(nil)

//go:embed scripts/sliding_window.lua
var slidingWindowLua string

var slidingWindow = redis.NewScript(slidingWindowLua)

// RateLimiter is a sliding-window limiter shared by every replica. It
// throttles judge calls per market and HTTP requests per client address.
type RateLimiter struct {
	c   *Client
	now func() time.Time
}

// NewRateLimiter creates a RateLimiter on c.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{c: c, now: time.Now}
}

// Allow admits and counts the call when fewer than limit calls for key were
// admitted within the trailing window. A non-positive limit admits nothing.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return false, nil
	}
	res, err := slidingWindow.Run(ctx, rl.c.rdb,
		[]string{rl.c.key("ratelimit:" + key)},
		rl.now().UnixMicro(), window.Microseconds(), limit,
	).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	if len(res) == 0 {
		return false, fmt.Errorf("redis: rate limit %s: empty script reply", key)
	}
	return res[0] == 1, nil
}
