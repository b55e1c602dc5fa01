package middleware

import (
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimitConfig is a token bucket per client IP.
type RateLimitConfig struct {
	PerSecond float64
	Burst     int
	// IdleTTL drops buckets of clients not seen for this long. Zero keeps them forever.
	IdleTTL time.Duration
	// OnLimit writes the rejection response. Defaults to 429 with an empty body.
	OnLimit func(c echo.Context) error
}

type client struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter hands out one token bucket per key.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
}

func NewLimiter(perSecond float64, burst int, idle time.Duration) *Limiter {
	return &Limiter{
		clients: make(map[string]*client),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idle:    idle,
		now:     time.Now,
	}
}

// Allow consumes one token from key's bucket.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	c, ok := l.clients[key]
	if !ok {
		c = &client{lim: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.seen = now
	l.mu.Unlock()
	return c.lim.AllowN(now, 1)
}

// Prune forgets clients idle for longer than the configured TTL.
func (l *Limiter) Prune() int {
	if l.idle <= 0 {
		return 0
	}
	cutoff := l.now().Add(-l.idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, c := range l.clients {
		if c.seen.Before(cutoff) {
			delete(l.clients, k)
			n++
		}
	}
	return n
}

// RateLimit rejects clients that exceed cfg. Idle buckets are pruned lazily once per IdleTTL.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	lim := NewLimiter(cfg.PerSecond, cfg.Burst, cfg.IdleTTL)
	onLimit := cfg.OnLimit
	if onLimit == nil {
		onLimit = func(c echo.Context) error { return c.NoContent(429) }
	}
	var (
		mu        sync.Mutex
		lastPrune = lim.now()
	)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.IdleTTL > 0 {
				mu.Lock()
				if lim.now().Sub(lastPrune) >= cfg.IdleTTL {
					lastPrune = lim.now()
					mu.Unlock()
					lim.Prune()
				} else {
					mu.Unlock()
				}
			}
			if !lim.Allow(c.RealIP()) {
				return onLimit(c)
			}
			return next(c)
		}
	}
}
