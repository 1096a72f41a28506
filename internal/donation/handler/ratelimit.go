package handler

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/donationcore/internal/fault"
	"golang.org/x/time/rate"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterIdleTTL       = 10 * time.Minute
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet keeps one token bucket per key. Keys idle for longer than
// limiterIdleTTL are dropped by the sweeper until its context ends.
type limiterSet struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*bucket
	now     func() time.Time
}

func newLimiterSet(ctx context.Context, limit rate.Limit, burst int) *limiterSet {
	s := &limiterSet{
		limit:   limit,
		burst:   burst,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
	go s.sweep(ctx)
	return s
}

func (s *limiterSet) sweep(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := s.now().Add(-limiterIdleTTL)
			s.mu.Lock()
			for key, b := range s.buckets {
				if b.lastSeen.Before(cutoff) {
					delete(s.buckets, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

// take spends one token from key's bucket. When the bucket is empty it
// returns false and the whole seconds until a token is available.
func (s *limiterSet) take(key string) (bool, int) {
	now := s.now()

	s.mu.Lock()
	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.buckets[key] = b
	}
	b.lastSeen = now
	s.mu.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, 1
	}
	delay := r.DelayFrom(now)
	if delay <= 0 {
		return true, 0
	}
	r.CancelAt(now)
	return false, int(math.Max(1, math.Ceil(delay.Seconds())))
}

func (s *limiterSet) middleware(key func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ok, wait := s.take(key(c)); !ok {
			c.Header("Retry-After", strconv.Itoa(wait))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":               "rate limit exceeded",
				"code":                fault.CodeRateLimited,
				"retry_after_seconds": wait,
			})
			return
		}
		c.Next()
	}
}

// RateLimiter returns a Gin middleware that enforces per-IP token-bucket
// rate limiting. rps is the steady-state requests per second; burst is the
// maximum burst size. Stale entries are cleaned until ctx is done.
func RateLimiter(ctx context.Context, rps, burst int) gin.HandlerFunc {
	return newLimiterSet(ctx, rate.Limit(rps), burst).middleware(func(c *gin.Context) string {
		return c.ClientIP()
	})
}

// RouteRateLimiter returns a Gin middleware that gives every client IP a
// separate budget of perMinute requests per minute on each route it guards.
// The server mounts it on the OTP and login endpoints.
func RouteRateLimiter(ctx context.Context, perMinute int) gin.HandlerFunc {
	if perMinute < 1 {
		perMinute = 1
	}
	limit := rate.Every(time.Minute / time.Duration(perMinute))
	return newLimiterSet(ctx, limit, perMinute).middleware(func(c *gin.Context) string {
		return c.ClientIP() + " " + c.FullPath()
	})
}
