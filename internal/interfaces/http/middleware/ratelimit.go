package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/turtacn/FairPlay-Intelligence/pkg/errors"
	"github.com/turtacn/FairPlay-Intelligence/pkg/types/common"
)

// RateLimitConfig controls the per-client rate limiting middleware.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained refill rate per client.
	RequestsPerSecond float64

	// BurstSize is the bucket capacity per client.
	BurstSize int

	// KeyFunc derives the limiting key from a request. Defaults to the
	// client IP.
	KeyFunc func(c *gin.Context) string

	// SkipPaths lists exact request paths exempt from limiting.
	SkipPaths []string

	// CleanupInterval is how often idle client buckets are evicted.
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig returns the limits used in production. Engine
// analysis is expensive, so the sustained rate is deliberately low.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 10,
		BurstSize:         20,
		SkipPaths:         []string{"/healthz", "/readyz", "/metrics"},
		CleanupInterval:   time.Minute,
	}
}

// RateLimitInfo describes the limiter state reported back to the client.
type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// RateLimiter is a token bucket limiter keyed per client. Buckets refill at
// RequestsPerSecond up to BurstSize; idle buckets are evicted by a background
// sweep so the map does not grow with client churn.
type RateLimiter struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	clients map[string]*bucket
	stop    chan struct{}
	once    sync.Once
}

// NewRateLimiter builds a limiter and starts its cleanup sweep. Callers own
// the limiter and must Stop it on shutdown.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRateLimitConfig().RequestsPerSecond
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = DefaultRateLimitConfig().BurstSize
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}

	rl := &RateLimiter{
		cfg:     cfg,
		clients: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow consumes one token for key and reports whether the request may
// proceed, together with the state to surface in response headers.
func (rl *RateLimiter) Allow(key string) (bool, RateLimitInfo) {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.clients[key]
	if !ok {
		b = &bucket{tokens: float64(rl.cfg.BurstSize)}
		rl.clients[key] = b
	} else {
		elapsed := now.Sub(b.lastSeen).Seconds()
		b.tokens = math.Min(float64(rl.cfg.BurstSize), b.tokens+elapsed*rl.cfg.RequestsPerSecond)
	}
	b.lastSeen = now

	allowed := b.tokens >= 1
	if allowed {
		b.tokens--
	}

	missing := float64(rl.cfg.BurstSize) - b.tokens
	reset := now.Add(time.Duration(missing / rl.cfg.RequestsPerSecond * float64(time.Second)))

	return allowed, RateLimitInfo{
		Limit:     rl.cfg.BurstSize,
		Remaining: int(b.tokens),
		ResetAt:   reset,
	}
}

// Stop terminates the cleanup sweep. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// Handler returns the gin middleware enforcing the limit. Rejected requests
// receive 429 with Retry-After and the standard error envelope; every
// response carries X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	skip := make(map[string]struct{}, len(rl.cfg.SkipPaths))
	for _, p := range rl.cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		allowed, info := rl.Allow(rl.cfg.KeyFunc(c))

		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))

		if !allowed {
			retryAfter := int(math.Ceil(1 / rl.cfg.RequestsPerSecond))
			if retryAfter < 1 {
				retryAfter = 1
			}
			h.Set("Retry-After", strconv.Itoa(retryAfter))

			resp := common.NewErrorResponse(string(apperrors.ErrCodeTooManyRequests), "rate limit exceeded")
			resp.RequestID = RequestIDFrom(c)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, resp)
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-2 * rl.cfg.CleanupInterval)
			rl.mu.Lock()
			for key, b := range rl.clients {
				if b.lastSeen.Before(cutoff) {
					delete(rl.clients, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}
