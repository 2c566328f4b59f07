// Package retry provides exponential backoff with jitter for LLM calls.
package retry

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/meshflow/types"
)

// Policy controls retry behavior.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration

	// Multiplier scales the delay after each attempt.
	Multiplier float64

	// RetryIf decides whether an error is worth retrying. Defaults to
	// types.IsRetryable.
	RetryIf func(error) bool

	// Logger records retry attempts. Optional.
	Logger *zap.Logger
}

// DefaultPolicy returns the policy used for pipeline stage calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 1 * time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.Multiplier <= 1 {
		p.Multiplier = 2.0
	}
	if p.RetryIf == nil {
		p.RetryIf = types.IsRetryable
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return p
}

// delay computes the backoff for the given attempt with ±25% jitter.
func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.InitialDelay)
	for i := 0; i < attempt; i++ {
		d *= p.Multiplier
		if d >= float64(p.MaxDelay) {
			d = float64(p.MaxDelay)
			break
		}
	}
	jitter := 1 + (rand.Float64()-0.5)*0.5
	d *= jitter
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

// Do runs fn until it succeeds, exhausts attempts, or hits a non-retryable
// error. The last error is returned on failure.
func Do[T any](ctx context.Context, policy Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	policy = policy.normalized()

	var zero T
	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			wait := policy.delay(attempt - 1)
			policy.Logger.Debug("retrying after backoff",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", wait),
				zap.Error(lastErr))
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}

		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !policy.RetryIf(err) {
			return zero, err
		}
	}
	return zero, lastErr
}
