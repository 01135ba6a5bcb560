package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type keyLimiter struct {
	limiter *rate.Limiter
	last    time.Time
}

// RateLimiter is a token bucket per key (client IP). Each key may spend
// requests tokens per window with bursts up to requests. Buckets unused for
// idleTTL are evicted lazily during Allow.
type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*keyLimiter
	every     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewRateLimiter(requests int, window, idleTTL time.Duration) *RateLimiter {
	if requests <= 0 {
		requests = 100
	}
	if window <= 0 {
		window = time.Minute
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &RateLimiter{
		buckets: make(map[string]*keyLimiter),
		every:   rate.Every(window / time.Duration(requests)),
		burst:   requests,
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if now.Sub(r.lastSweep) > r.idleTTL {
		for k, b := range r.buckets {
			if now.Sub(b.last) > r.idleTTL {
				delete(r.buckets, k)
			}
		}
		r.lastSweep = now
	}
	b := r.buckets[key]
	if b == nil {
		b = &keyLimiter{limiter: rate.NewLimiter(r.every, r.burst)}
		r.buckets[key] = b
	}
	b.last = now
	return b.limiter.AllowN(now, 1)
}

// Len reports the number of tracked keys.
func (r *RateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buckets)
}

// RateLimit returns a middleware that limits by client IP.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if !limiter.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
