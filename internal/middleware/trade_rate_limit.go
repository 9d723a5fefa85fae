package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const tradeRateLimitPrefix = "rl:trade:"

// TradeRateLimit limits mutating requests per wallet address, falling back to
// the client IP when the body names no wallet. Counters live in Redis when a
// client is given so every instance shares them; otherwise each process keeps
// its own token buckets.
func TradeRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 60
	}
	local := newLocalLimiter(maxPerMin)

	return func(c *fiber.Ctx) error {
		key := tradeRateLimitKey(c)

		if cache == nil {
			if !local.allow(key) {
				return fiber.NewError(http.StatusTooManyRequests, "too many requests, try again later")
			}
			return c.Next()
		}

		redisKey := tradeRateLimitPrefix + key
		cnt, err := cache.Incr(c.UserContext(), redisKey).Result()
		if err == nil && cnt == 1 {
			cache.Expire(c.UserContext(), redisKey, time.Minute)
		}
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many requests, try again later")
		}
		return c.Next()
	}
}

func tradeRateLimitKey(c *fiber.Ctx) string {
	if wallet := walletFromBody(c); wallet != "" {
		return wallet
	}
	return c.IP()
}

// walletFromBody returns the lowercased wallet a mutating request acts on,
// read from its addr or fromAddr field.
func walletFromBody(c *fiber.Ctx) string {
	var req struct {
		Addr     string `json:"addr"`
		FromAddr string `json:"fromAddr"`
	}
	if err := c.BodyParser(&req); err != nil {
		return ""
	}
	for _, candidate := range []string{req.Addr, req.FromAddr} {
		if v := strings.ToLower(strings.TrimSpace(candidate)); v != "" {
			return v
		}
	}
	return ""
}

// Buckets idle for longer than localLimiterIdleTTL have refilled completely,
// so dropping them does not change any later decision.
const (
	localLimiterIdleTTL    = 10 * time.Minute
	localLimiterSweepEvery = time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type localLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	now       func() time.Time
	lastSweep time.Time
}

func newLocalLimiter(perMin int) *localLimiter {
	return &localLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Every(time.Minute / time.Duration(perMin)),
		burst:    perMin,
		now:      time.Now,
	}
}

func (l *localLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= localLimiterSweepEvery {
		l.sweep(now)
	}
	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// sweep drops buckets not used within the idle TTL. Callers hold mu.
func (l *localLimiter) sweep(now time.Time) {
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) >= localLimiterIdleTTL {
			delete(l.limiters, key)
		}
	}
	l.lastSweep = now
}
