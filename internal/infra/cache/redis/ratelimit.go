package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// consumeScript increments the caller's counter and starts the window on the
// first hit.
var consumeScript = goredis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RateLimiter is a fixed-window limiter shared by every engine instance.
type RateLimiter struct {
	client goredis.Scripter
	prefix string
	limit  int
	window time.Duration
}

func NewRateLimiter(client goredis.Scripter, prefix string, limit int, window time.Duration) *RateLimiter {
	if prefix == "" {
		prefix = "donateo:chat:ratelimit"
	}
	return &RateLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

// Consume reports whether userID may post another message in the current
// window. Rejected calls still count but never move the expiry.
func (r *RateLimiter) Consume(ctx context.Context, userID string) (bool, error) {
	key := fmt.Sprintf("%s:%s", r.prefix, userID)
	count, err := consumeScript.Run(ctx, r.client, []string{key}, r.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", userID, err)
	}
	return count <= int64(r.limit), nil
}

// NewClient dials addr and verifies the connection.
func NewClient(ctx context.Context, addr string) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
