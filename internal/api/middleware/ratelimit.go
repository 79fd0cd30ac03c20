package middleware

import (
	"net"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RateLimiter gates the public Read/Control API per client IP. Grounded on
// the teacher's middleware/ratelimit.go key-bucket shape, crossed with
// Outblock-flowindex's internal/api/ratelimit.go IP-keyed gate — the
// public surface here has no API key to key off of, so the limiter keys
// on remote address instead (spec §9 EXPANSION — REDESIGN).
type RateLimiter struct {
	logger zerolog.Logger
	rps    float64
	burst  int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiter builds a per-IP token-bucket limiter set.
func NewRateLimiter(logger zerolog.Logger, rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		logger:   logger.With().Str("component", "api_ratelimit").Logger(),
		rps:      rps,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(rl.rps), rl.burst)
		rl.limiters[key] = l
	}
	return l
}

// Handler returns the rate-limiting middleware.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)
		if !rl.limiterFor(key).Allow() {
			rl.logger.Debug().Str("ip", key).Msg("rate limit exceeded")
			w.Header().Set("Retry-After", "1")
			http.Error(w, `{"error":"rate_limit_exceeded"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
