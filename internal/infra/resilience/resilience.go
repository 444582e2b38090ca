// Package resilience provides the fault-tolerance pieces used around the
// storage backend and the messaging provider: retry with backoff for reads,
// circuit breakers, a bulkhead, and the dispatch throttle.
package resilience

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"
)

// maxBackoff caps a single wait between attempts.
const maxBackoff = 5 * time.Second

// Config holds resilience parameters.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int
}

// permanentError marks a failure that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so RetryWithBackoff gives up at once and the circuit
// breaker does not count it. A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// RetryWithBackoff runs fn until it succeeds, returns a permanent error, or
// MaxRetries extra attempts are spent. Waits double from InitialBackoff with
// up to 50% jitter. Only idempotent reads go through here; message sends are
// never retried.
func RetryWithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	backoff := cfg.InitialBackoff
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) || attempt >= cfg.MaxRetries {
			return lastErr
		}

		wait := backoff
		if half := int64(backoff / 2); half > 0 {
			wait += time.Duration(rand.Int63n(half))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// NewCircuitBreaker opens after at least 5 requests in a 30s window fail
// 60% of the time, then probes again after 10s. Permanent errors and
// cancellations are the caller's problem and do not count as failures.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				IsPermanent(err) ||
				errors.Is(err, context.Canceled)
		},
	})
}

// Bulkhead caps how many calls may be in flight against one dependency.
type Bulkhead struct {
	slots chan struct{}
}

// NewBulkhead creates a bulkhead with room for limit calls (at least 1).
func NewBulkhead(limit int) *Bulkhead {
	return &Bulkhead{slots: make(chan struct{}, max(limit, 1))}
}

// Acquire takes a slot, waiting until one frees up or ctx is done.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot taken by Acquire.
func (b *Bulkhead) Release() {
	<-b.slots
}
