// Package ratelimiter provides token-bucket gates for outbound calls to
// upstream providers (listings, batch metrics) so the pipeline never
// exceeds what a given provider tolerates, independent of how many
// tokens are currently being tracked.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter wraps golang.org/x/time/rate.Limiter with the two call shapes
// the pipeline needs: a blocking Wait for loop-driven calls, and a
// non-blocking Allow for paths that should skip rather than stall.
type Limiter struct {
	rl *rate.Limiter
}

// New creates a limiter allowing rps requests per second with the given
// burst capacity.
func New(rps float64, burst int) *Limiter {
	return &Limiter{rl: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.rl.Wait(ctx)
}

// Allow reports whether a call may proceed right now, consuming a token
// if so.
func (l *Limiter) Allow() bool {
	return l.rl.Allow()
}

// Set holds the independent per-provider limiters the tracker orchestrator
// consults before each outbound call (spec §4.1).
type Set struct {
	Listings *Limiter
	Metrics  *Limiter
}

// NewSet builds the provider rate-limit set from configured rps/burst pairs.
func NewSet(listingsRPS float64, listingsBurst int, metricsRPS float64, metricsBurst int) *Set {
	return &Set{
		Listings: New(listingsRPS, listingsBurst),
		Metrics:  New(metricsRPS, metricsBurst),
	}
}
