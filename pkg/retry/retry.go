// Package retry runs an operation again after transient failures, with
// exponential backoff and jitter. Operations classify their own errors:
// wrap with Retryable to ask for another attempt, with Permanent to stop
// immediately. Unclassified errors stop the loop.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERROR CLASSIFICATION
// ══════════════════════════════════════════════════════════════════════════════

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return "retryable: " + e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return "permanent: " + e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Retryable marks an error as worth another attempt.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// Permanent marks an error as final; the retrier gives up and returns the
// wrapped error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryable reports whether err was marked with Retryable.
func IsRetryable(err error) bool {
	var r *retryableError
	return errors.As(err, &r)
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// ══════════════════════════════════════════════════════════════════════════════
// POLICY AND RETRIER
// ══════════════════════════════════════════════════════════════════════════════

// Policy bounds the retry loop. Zero values fall back to the defaults in
// NewRetrier.
type Policy struct {
	// MaxAttempts counts the first try too.
	MaxAttempts int

	// InitialDelay is the wait before the first retry; each further wait
	// multiplies by Multiplier up to MaxDelay.
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// Jitter spreads each delay by up to this fraction in either
	// direction so concurrent retriers do not synchronize.
	Jitter float64
}

// Retrier executes operations under one policy.
type Retrier struct {
	policy Policy
}

// NewRetrier creates a retrier, filling unset policy fields with defaults
// (3 attempts, 100ms initial delay, 5s cap, doubling, no jitter).
func NewRetrier(policy Policy) *Retrier {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = 100 * time.Millisecond
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 5 * time.Second
	}
	if policy.Multiplier <= 0 {
		policy.Multiplier = 2.0
	}
	return &Retrier{policy: policy}
}

// Do runs op until it succeeds, exhausts the attempt budget, returns a
// permanent or unclassified error, or the context ends. The returned error
// is the last one op produced, unwrapped from its classification.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	delay := r.policy.InitialDelay

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = errors.Unwrap(err)

		if attempt == r.policy.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.jittered(delay)):
		}
		delay = time.Duration(float64(delay) * r.policy.Multiplier)
		if delay > r.policy.MaxDelay {
			delay = r.policy.MaxDelay
		}
	}
	return lastErr
}

func (r *Retrier) jittered(delay time.Duration) time.Duration {
	if r.policy.Jitter <= 0 {
		return delay
	}
	spread := float64(delay) * r.policy.Jitter
	return delay + time.Duration((rand.Float64()*2-1)*spread)
}

// ══════════════════════════════════════════════════════════════════════════════
// PRESETS
// ══════════════════════════════════════════════════════════════════════════════

// ContentAPIRetrier suits calls to the remote content service: slow
// endpoint, generous delays.
func ContentAPIRetrier() *Retrier {
	return NewRetrier(Policy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.2,
	})
}

// SnapshotRetrier suits local snapshot-file writes: fast retries, short
// cap.
func SnapshotRetrier() *Retrier {
	return NewRetrier(Policy{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	})
}
