package rest

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"
)

// RateLimiter is a per-client-IP token bucket. Buckets idle for longer than
// IdleTTL are dropped by Run.
type RateLimiter struct {
	Now     func() time.Time
	IdleTTL time.Duration

	limit   rate.Limit
	burst   int
	buckets *xsync.MapOf[string, *bucket]
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// NewRateLimiter allows perMinute requests per minute per IP, with bursts of
// the same size. perMinute <= 0 disables limiting.
func NewRateLimiter(perMinute int) *RateLimiter {
	rl := &RateLimiter{
		Now:     time.Now,
		IdleTTL: 10 * time.Minute,
		limit:   rate.Inf,
		burst:   0,
		buckets: xsync.NewMapOf[string, *bucket](),
	}
	if perMinute > 0 {
		rl.limit = rate.Every(time.Minute / time.Duration(perMinute))
		rl.burst = perMinute
	}
	return rl
}

// Allow consumes one token for key.
func (rl *RateLimiter) Allow(key string) bool {
	if rl.limit == rate.Inf {
		return true
	}
	now := rl.Now()
	b, _ := rl.buckets.LoadOrCompute(key, func() *bucket {
		return &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
	})
	b.lastSeen.Store(now.UnixNano())
	return b.limiter.AllowN(now, 1)
}

// Prune drops buckets not used since before now-IdleTTL and returns how many
// were dropped.
func (rl *RateLimiter) Prune(now time.Time) int {
	cutoff := now.Add(-rl.IdleTTL).UnixNano()
	dropped := 0
	rl.buckets.Range(func(key string, b *bucket) bool {
		if b.lastSeen.Load() < cutoff {
			rl.buckets.Compute(key, func(cur *bucket, loaded bool) (*bucket, bool) {
				if loaded && cur.lastSeen.Load() < cutoff {
					dropped++
					return cur, true
				}
				return cur, false
			})
		}
		return true
	})
	return dropped
}

// Run prunes idle buckets every interval until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rl.Prune(rl.Now())
		}
	}
}

// Middleware rejects requests over the limit with 429. It keys on the host
// part of RemoteAddr, which is the peer address unless the router trusts
// proxy headers.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "too many requests, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
