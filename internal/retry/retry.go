// Package retry provides a small reusable retry policy with tiered
// per-attempt timeouts, exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Permanent wraps an error that must not be retried.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Stop marks err as permanent so Do returns it immediately.
func Stop(err error) error {
	return &Permanent{Err: err}
}

// Policy configures retry behavior. The zero value is not usable; start
// from DefaultPolicy.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// Timeouts is the per-attempt timeout schedule: attempt i runs under
	// Timeouts[i], with the last entry reused for any further attempts.
	// Empty means no per-attempt timeout.
	Timeouts []time.Duration

	// InitialWait, MaxWait and Multiplier shape the backoff between
	// attempts.
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultPolicy matches the profile-fetch contract: three attempts, a
// short budget first and longer ones on retries.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Timeouts:    []time.Duration{3 * time.Second, 8 * time.Second, 15 * time.Second},
		InitialWait: 500 * time.Millisecond,
		MaxWait:     5 * time.Second,
		Multiplier:  2.0,
	}
}

// Do runs op until it succeeds, returns a permanent error, the parent
// context ends, or attempts are exhausted. Each attempt gets its own
// deadline from the timeout schedule; an attempt that exceeds its budget
// counts as failed but does not end the parent context.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := range p.MaxAttempts {
		if err := ctx.Err(); err != nil {
			return err
		}

		attemptCtx := ctx
		cancel := func() {}
		if t := p.timeoutFor(attempt); t > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, t)
		}
		err := op(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err

		var perm *Permanent
		if errors.As(err, &perm) {
			return perm.Err
		}
		// The parent ending is final; an attempt deadline is not.
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attempt == p.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff(attempt)):
		}
	}

	return lastErr
}

func (p Policy) timeoutFor(attempt int) time.Duration {
	if len(p.Timeouts) == 0 {
		return 0
	}
	if attempt >= len(p.Timeouts) {
		return p.Timeouts[len(p.Timeouts)-1]
	}
	return p.Timeouts[attempt]
}

func (p Policy) backoff(attempt int) time.Duration {
	wait := float64(p.InitialWait) * math.Pow(p.Multiplier, float64(attempt))
	if wait > float64(p.MaxWait) {
		wait = float64(p.MaxWait)
	}

	// ±20% jitter.
	jitter := wait * 0.2 * (2*rand.Float64() - 1)
	wait += jitter

	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}
