package ratelimit

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"wislet-backend/internal/middleware"
	"wislet-backend/internal/pkg/response"
)

// Limiter is an in-memory fixed-window counter. State lives for the
// process lifetime and resets on restart; callers accept that weak
// guarantee (the limiter protects against accidental retry loops, not
// determined abuse).
type Limiter struct {
	window time.Duration
	max    int
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	n     int
	start time.Time
}

// New returns a Limiter allowing max calls per key within window.
func New(window time.Duration, max int) *Limiter {
	return &Limiter{
		window:  window,
		max:     max,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// WithClock overrides the time source (tests).
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Allow records one call for key and reports whether it is within the
// window's budget. A fresh or elapsed window resets the count to 1.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	cur, ok := l.buckets[key]
	if !ok || now.Sub(cur.start) > l.window {
		l.buckets[key] = &bucket{n: 1, start: now}
		return true
	}
	if cur.n >= l.max {
		return false
	}
	cur.n++
	return true
}

// Middleware keys requests by admin token + caller address and rejects
// over-budget calls with 429 {"ok":false,"error":"rate_limited"}.
func (l *Limiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get(middleware.AdminTokenHeader) + ":" + c.IP()
		if !l.Allow(key) {
			return response.Fail(c, fiber.StatusTooManyRequests, "rate_limited")
		}
		return c.Next()
	}
}
