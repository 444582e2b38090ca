package resilience

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle spaces operations at least interval apart using a token bucket
// with a single token. The first Wait returns immediately.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle creates a throttle; interval <= 0 disables pacing.
func NewThrottle(interval time.Duration) *Throttle {
	if interval <= 0 {
		return &Throttle{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next operation may proceed or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}
