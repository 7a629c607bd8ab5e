// Package ratelimiter throttles admission of binary uploads.
package ratelimiter

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limiter admits uploads using a token bucket.
//
// A nil *Limiter admits everything, so callers can hold one unconditionally.
// All methods are safe for concurrent use.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a Limiter allowing uploadsPerSecond sustained admissions with
// the given burst capacity.
//
// uploadsPerSecond <= 0 disables throttling and returns nil. A burst below 1
// is raised to 1 so that a positive rate can ever admit anything.
func New(uploadsPerSecond float64, burst int) *Limiter {
	if uploadsPerSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(uploadsPerSecond), burst),
	}
}

// Allow reports whether an upload may start right now, consuming a token if so.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.limiter.Allow()
}

// Wait blocks until an upload may start or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("upload admission: %w", err)
	}
	return nil
}

// SetLimit changes the sustained rate. Values <= 0 remove the limit.
func (l *Limiter) SetLimit(uploadsPerSecond float64) {
	if l == nil {
		return
	}
	if uploadsPerSecond <= 0 {
		l.limiter.SetLimit(rate.Inf)
		return
	}
	l.limiter.SetLimit(rate.Limit(uploadsPerSecond))
}

// Tokens returns the number of admissions currently available.
func (l *Limiter) Tokens() float64 {
	if l == nil {
		return 0
	}
	return l.limiter.Tokens()
}
