package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func newRedisLimiter(t *testing.T, rps float64, burst int) (*RedisRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rl := NewRedisRateLimiter(client, rps, burst, time.Minute, KeyByUserOrIP())
	// middle of a window, so the test never straddles two
	rl.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 30, 0, time.UTC) }
	return rl, mr
}

func redisRouter(rl *RedisRateLimiter, uid string) *gin.Engine {
	r := gin.New()
	r.Use(withPrincipal(uid, false), rl.Handler())
	r.GET("/ok", okHandler)
	return r
}

func TestNewRedisRateLimiter_Limit(t *testing.T) {
	if got := NewRedisRateLimiter(nil, 0.5, 3, time.Minute, KeyByUserOrIP()).Limit(); got != 33 {
		t.Fatalf("Limit() = %d; want 33", got)
	}

	rl := NewRedisRateLimiter(nil, 0, 0, 0, KeyByUserOrIP())
	if rl.Limit() != 1 || rl.window != time.Second {
		t.Fatalf("defaults: limit=%d window=%v", rl.Limit(), rl.window)
	}
}

func TestRedisRateLimiter_EnforcesWindowPerKey(t *testing.T) {
	rl, mr := newRedisLimiter(t, 0, 2)
	r := redisRouter(rl, "u1")

	for i := 0; i < 2; i++ {
		if w := get(r, "/ok"); w.Code != http.StatusOK {
			t.Fatalf("request %d: got %d", i+1, w.Code)
		}
	}

	w := get(r, "/ok")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: got %d", w.Code)
	}
	if ra := w.Header().Get("Retry-After"); ra != "30" {
		t.Fatalf("Retry-After = %q", ra)
	}
	if code := errBody(t, w)["code"]; code != "rate_limited" {
		t.Fatalf("code = %q", code)
	}

	// counters live in redis with a TTL
	key := "ratelimit:user:u1:20250615T120000"
	v, err := mr.Get(key)
	if err != nil || v != "3" {
		t.Fatalf("counter %s = %q, %v", key, v, err)
	}
	if ttl := mr.TTL(key); ttl <= 0 {
		t.Fatalf("counter TTL = %v", ttl)
	}

	// another user is unaffected
	if w := get(redisRouter(rl, "u2"), "/ok"); w.Code != http.StatusOK {
		t.Fatalf("other user: got %d", w.Code)
	}
}

func TestRedisRateLimiter_NextWindowResets(t *testing.T) {
	rl, _ := newRedisLimiter(t, 0, 1)
	r := redisRouter(rl, "u1")

	if w := get(r, "/ok"); w.Code != http.StatusOK {
		t.Fatalf("first: got %d", w.Code)
	}
	if w := get(r, "/ok"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second: got %d", w.Code)
	}

	rl.now = func() time.Time { return time.Date(2025, 6, 15, 12, 1, 5, 0, time.UTC) }
	if w := get(r, "/ok"); w.Code != http.StatusOK {
		t.Fatalf("next window: got %d", w.Code)
	}
}

func TestRedisRateLimiter_Bypass(t *testing.T) {
	rl, _ := newRedisLimiter(t, 0, 1)

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(ctxKeyRateBypass, true); c.Next() }, rl.Handler())
	r.GET("/ok", okHandler)
	for i := 0; i < 3; i++ {
		if w := get(r, "/ok"); w.Code != http.StatusOK {
			t.Fatalf("request %d: got %d", i+1, w.Code)
		}
	}
}

func TestRedisRateLimiter_FailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	r := redisRouter(NewRedisRateLimiter(client, 0, 1, time.Minute, KeyByUserOrIP()), "u1")
	for i := 0; i < 3; i++ {
		if w := get(r, "/ok"); w.Code != http.StatusOK {
			t.Fatalf("request %d: got %d", i+1, w.Code)
		}
	}
}
