package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/maypok86/otter"
	"golang.org/x/time/rate"
)

// KeyFunc maps a request to its rate-limit bucket.
type KeyFunc func(*gin.Context) string

// KeyByPrincipalOrIP keys authenticated callers by their token fingerprint
// (set by AdminAuth) and everyone else by client IP.
func KeyByPrincipalOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if v, ok := c.Get(principalKey); ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
		return "ip:" + c.ClientIP()
	}
}

// RateLimiter keeps one token bucket per key. Buckets live in a bounded
// otter cache and expire after IdleTTL without traffic.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn KeyFunc

	mu      sync.Mutex
	buckets otter.Cache[string, *rate.Limiter]
}

// IdleTTL is how long an unused bucket is kept.
const IdleTTL = 10 * time.Minute

// NewRateLimiter builds a limiter allowing rps requests per second with the
// given burst (coerced to at least 1) per key.
func NewRateLimiter(rps float64, burst int, keyFn KeyFunc) (*RateLimiter, error) {
	if burst <= 0 {
		burst = 1
	}
	buckets, err := otter.MustBuilder[string, *rate.Limiter](10_000).
		WithTTL(IdleTTL).
		Build()
	if err != nil {
		return nil, err
	}
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		keyFn:   keyFn,
		buckets: buckets,
	}, nil
}

func (rl *RateLimiter) bucket(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if lim, ok := rl.buckets.Get(key); ok {
		// refresh the TTL
		rl.buckets.Set(key, lim)
		return lim
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.buckets.Set(key, lim)
	return lim
}

// Handler rejects over-limit requests with 429 and Retry-After.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.bucket(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}
		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
