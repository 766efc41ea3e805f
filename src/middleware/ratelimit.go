package middleware

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"fix-match-engine/src/models"
)

// SourceHeader identifies a trading participant. Requests carrying it are
// limited per participant rather than per address.
const SourceHeader = "X-Strategy-Source"

type window struct {
	number int64
	count  int
}

// RateLimiter is a fixed-window counter per client.
type RateLimiter struct {
	maxRequests    int
	windowDuration time.Duration
	counters       map[string]window
	mu             sync.Mutex
	now            func() time.Time
}

func NewRateLimiter(maxRequests int, windowDuration time.Duration) *RateLimiter {
	if windowDuration <= 0 {
		windowDuration = time.Second
	}
	return &RateLimiter{
		maxRequests:    maxRequests,
		windowDuration: windowDuration,
		counters:       make(map[string]window),
		now:            time.Now,
	}
}

func (rl *RateLimiter) getClientID(c *fiber.Ctx) string {
	if source := c.Get(SourceHeader); source != "" {
		return "source:" + source
	}
	ip := c.Get("X-Forwarded-For")
	if i := strings.IndexByte(ip, ','); i >= 0 {
		ip = strings.TrimSpace(ip[:i])
	}
	if ip == "" {
		ip = c.Get("X-Real-IP")
	}
	if ip == "" {
		ip = c.IP()
	}
	return "ip:" + ip
}

func (rl *RateLimiter) windowNumber(now time.Time) int64 {
	return now.UnixNano() / rl.windowDuration.Nanoseconds()
}

func (rl *RateLimiter) Allow(clientID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	current := rl.windowNumber(rl.now())
	w, exists := rl.counters[clientID]

	if !exists || w.number != current {
		// edge case: a new window drops stale counters
		if len(rl.counters) > 1024 {
			rl.removeOldWindows(current)
		}
		rl.counters[clientID] = window{number: current, count: 1}
		return true
	}

	if w.count >= rl.maxRequests {
		return false
	}

	w.count++
	rl.counters[clientID] = w
	return true
}

func (rl *RateLimiter) removeOldWindows(current int64) {
	for key, w := range rl.counters {
		if w.number != current {
			delete(rl.counters, key)
		}
	}
}

func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientID := rl.getClientID(c)

		if !rl.Allow(clientID) {
			log.Warn().
				Str("client", clientID).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("max_requests", rl.maxRequests).
				Msg("Rate limit exceeded")
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error:  "Rate limit exceeded",
				Reason: "rate_limited",
			})
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(rl.maxRequests))
		c.Set("X-RateLimit-Window", rl.windowDuration.String())

		return c.Next()
	}
}
