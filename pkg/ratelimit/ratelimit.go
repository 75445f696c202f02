// Package ratelimit paces outbound requests to job boards and search APIs.
package ratelimit

import (
	"context"
	"math/rand/v2"
	"time"
)

// Limiter spaces operations at a fixed interval with optional jitter.
// It is safe for concurrent use by multiple goroutines.
type Limiter struct {
	ticker   *time.Ticker
	jitter   float64 // 0.0 to 1.0
	interval time.Duration
	ch       <-chan time.Time
}

// NewLimiter creates a limiter allowing rps operations per second. jitter is
// clamped to [0, 1] and adds up to jitter*interval of random extra delay.
// If rps is <= 0, the limiter does not block.
func NewLimiter(rps float64, jitter float64) *Limiter {
	if rps <= 0 {
		return &Limiter{}
	}

	jitter = min(max(jitter, 0), 1)
	interval := time.Duration(float64(time.Second) / rps)
	ticker := time.NewTicker(interval)

	return &Limiter{
		ticker:   ticker,
		jitter:   jitter,
		interval: interval,
		ch:       ticker.C,
	}
}

// Interval returns the spacing between operations, or zero when unlimited.
func (l *Limiter) Interval() time.Duration {
	if l == nil {
		return 0
	}
	return l.interval
}

// Wait blocks until the next operation may start or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.ch == nil {
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ch:
	}

	if l.jitter == 0 {
		return nil
	}
	// A ticker cannot fire early, so only the positive half of the jitter
	// range produces a delay.
	d := time.Duration(float64(l.interval) * l.jitter * (rand.Float64()*2 - 1))
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop releases the underlying ticker.
func (l *Limiter) Stop() {
	if l != nil && l.ticker != nil {
		l.ticker.Stop()
	}
}
