package util

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter paces bulk maintenance writes (integrity restoration, depth
// rebuilds, path migration) so a whole-forest pass does not starve readers
// of a shared store. A nil Limiter never blocks.
type Limiter struct {
	inner *rate.Limiter
}

// NewLimiter creates a token bucket limiter.
// r: writes per second (zero or negative means unlimited).
// b: burst size.
func NewLimiter(r float64, b int) *Limiter {
	if r <= 0 {
		return nil
	}
	if b < 1 {
		b = 1
	}
	return &Limiter{inner: rate.NewLimiter(rate.Limit(r), b)}
}

// Wait blocks until n writes are admitted.
func (l *Limiter) Wait(ctx context.Context, n int) error {
	if l == nil {
		return nil
	}
	return l.inner.WaitN(ctx, n)
}
