// Package ratelimit wraps golang.org/x/time/rate into the global probe
// throttle described in spec.md §4.6: a continuously
// refilling token bucket, not a fixed window, so a burst of idle time
// lets probes catch up rather than resetting to zero.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter gates probe dispatch behind a token bucket.
type Limiter struct {
	bucket *rate.Limiter
}

// New builds a limiter refilling at ratePerSecond tokens/second with a
// burst capacity of burst. A ratePerSecond of 0 means unlimited.
func New(ratePerSecond float64, burst int) *Limiter {
	if ratePerSecond <= 0 {
		return &Limiter{bucket: rate.NewLimiter(rate.Inf, burst)}
	}
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.bucket.Wait(ctx)
}

// Allow reports whether a token is available right now, consuming one
// if so. Used by callers that want to skip rather than block.
func (l *Limiter) Allow() bool {
	return l.bucket.Allow()
}

// SetRate adjusts the refill rate at runtime, e.g. when memguard signals
// backpressure and the coordinator wants to slow down without stopping.
func (l *Limiter) SetRate(ratePerSecond float64) {
	if ratePerSecond <= 0 {
		l.bucket.SetLimit(rate.Inf)
		return
	}
	l.bucket.SetLimit(rate.Limit(ratePerSecond))
}
