// Package ratelimit provides a request-weight limiter on top of
// golang.org/x/time/rate.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter spends a per-minute weight budget. Requests cost a weight of one
// or more; a server-imposed ban blocks every caller until it expires.
type Limiter struct {
	limiter *rate.Limiter

	mu          sync.Mutex
	bannedUntil time.Time
	now         func() time.Time
}

// New creates a limiter allowing weightPerMinute units per minute with a
// burst of a tenth of that budget.
func New(weightPerMinute int) *Limiter {
	if weightPerMinute <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1), now: time.Now}
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(float64(weightPerMinute)/60.0), max(weightPerMinute/10, 1)),
		now:     time.Now,
	}
}

// Wait blocks until a unit-weight request may run.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.WaitWeight(ctx, 1)
}

// WaitWeight blocks until a request of the given weight may run. Weights
// above the burst are clamped to it.
func (l *Limiter) WaitWeight(ctx context.Context, weight int) error {
	if until := l.BannedUntil(); !until.IsZero() {
		if d := until.Sub(l.now()); d > 0 {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
			}
		}
	}

	weight = min(max(weight, 1), l.limiter.Burst())
	return l.limiter.WaitN(ctx, weight)
}

// Ban stops all requests for d, as requested by a 429 or 418 response.
// A shorter ban never replaces a longer one.
func (l *Limiter) Ban(d time.Duration) {
	until := l.now().Add(d)
	l.mu.Lock()
	defer l.mu.Unlock()
	if until.After(l.bannedUntil) {
		l.bannedUntil = until
	}
}

// BannedUntil returns the end of the current ban, or the zero time.
func (l *Limiter) BannedUntil() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.bannedUntil.After(l.now()) {
		return time.Time{}
	}
	return l.bannedUntil
}
