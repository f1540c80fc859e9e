package ratelimit

import (
	"context"
	"strconv"
	"time"

	radix "github.com/mediocregopher/radix/v3"

	"github.com/CypherNinjaa/social-media-sub000/internal/app/middleware"
)

// windowScript increments the window counter and arms its expiry on the first hit.
var windowScript = radix.NewEvalScript(1, `
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// Redis is a fixed-window limiter shared by every replica.
type Redis struct {
	client radix.Client
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

func NewRedisPool(addr string, size int) (*radix.Pool, error) {
	if size <= 0 {
		size = 10
	}
	return radix.NewPool("tcp", addr, size)
}

func NewRedis(client radix.Client, limit int, window time.Duration) *Redis {
	if window <= 0 {
		window = time.Minute
	}
	return &Redis{client: client, limit: limit, window: window, prefix: "dm:rl:", now: time.Now}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	if r.limit <= 0 {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	slot := r.now().UnixNano() / int64(r.window)
	bucket := r.prefix + key + ":" + strconv.FormatInt(slot, 10)
	var n int64
	if err := r.client.Do(windowScript.Cmd(&n, bucket, strconv.FormatInt(r.window.Milliseconds(), 10))); err != nil {
		return false, err
	}
	return n <= int64(r.limit), nil
}

var _ middleware.Limiter = (*Redis)(nil)
