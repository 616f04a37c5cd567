// Package retry runs operations under a fixed-delay retry policy with a
// transient/fatal error split. Only errors explicitly marked transient are
// retried; everything else aborts the loop on first occurrence.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted wraps the last transient error once the attempt budget is
// spent. The underlying condition may still resolve later; callers decide
// whether that means pending or failed.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Policy is a fixed-delay retry budget. The delay between attempts does not
// grow; polling a decryption oracle gains nothing from backoff.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks an error as retryable. Unmarked errors abort the loop.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether an error was marked with Transient.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// Do runs op until it succeeds, returns a non-transient error, the context is
// cancelled, or the attempt budget is spent. It returns the result, the number
// of attempts actually made, and the terminal error if any.
//
// On exhaustion the returned error matches both ErrExhausted and the last
// error from op.
func Do[T any](ctx context.Context, policy Policy, op func(ctx context.Context) (T, error)) (T, int, error) {
	var zero T

	if policy.MaxAttempts < 1 {
		return zero, 0, fmt.Errorf("retry: max attempts must be at least 1, got %d", policy.MaxAttempts)
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, attempt - 1, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, attempt, nil
		}
		if !IsTransient(err) {
			return zero, attempt, err
		}
		lastErr = err

		if attempt == policy.MaxAttempts {
			break
		}
		if err := sleep(ctx, policy.Delay); err != nil {
			return zero, attempt, err
		}
	}

	return zero, policy.MaxAttempts, fmt.Errorf("%w after %d attempts: %w",
		ErrExhausted, policy.MaxAttempts, errors.Unwrap(lastErr))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
