package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter enforces a fixed-window budget shared by every replica
// talking to the same Redis. Each window holds limit requests per key.
//
// When Redis is unreachable the limiter fails open and logs at warn.
type RedisRateLimiter struct {
	client redis.Cmdable
	limit  int64
	window time.Duration
	prefix string
	keyFn  keyFunc
	now    func() time.Time
}

// NewRedisRateLimiter derives the window budget from the token-bucket
// settings used by RateLimiter: burst requests plus rps per second of window.
func NewRedisRateLimiter(client redis.Cmdable, rps float64, burst int, window time.Duration, keyFn keyFunc) *RedisRateLimiter {
	if window <= 0 {
		window = time.Second
	}
	if burst < 1 {
		burst = 1
	}
	limit := int64(burst) + int64(rps*window.Seconds())
	return &RedisRateLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: "ratelimit:",
		keyFn:  keyFn,
		now:    time.Now,
	}
}

// Limit is the number of requests allowed per key and window.
func (rl *RedisRateLimiter) Limit() int64 { return rl.limit }

// allow counts one hit for key and reports whether it fits the window along
// with the time left in the window.
func (rl *RedisRateLimiter) allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := rl.now()
	start := now.Truncate(rl.window)
	bucket := rl.prefix + key + ":" + start.UTC().Format("20060102T150405")

	pipe := rl.client.TxPipeline()
	incr := pipe.Incr(ctx, bucket)
	pipe.Expire(ctx, bucket, rl.window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, 0, err
	}
	return incr.Val() <= rl.limit, start.Add(rl.window).Sub(now), nil
}

// Handler returns the limiting middleware.
func (rl *RedisRateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}
		ok, retry, err := rl.allow(c.Request.Context(), rl.keyFn(c))
		if err != nil {
			LoggerFrom(c).Warn().Err(err).Msg("rate limiter unavailable, allowing request")
		}
		if ok {
			c.Next()
			return
		}
		tooManyRequests(c, retry)
	}
}
