package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo(t *testing.T) {
	fastPolicy := Policy{MaxAttempts: 5, Delay: time.Millisecond}

	t.Run("first attempt success", func(t *testing.T) {
		result, attempts, err := Do(context.Background(), fastPolicy, func(ctx context.Context) (int, error) {
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, result)
		assert.Equal(t, 1, attempts)
	})

	t.Run("transient errors are retried until success", func(t *testing.T) {
		calls := 0
		result, attempts, err := Do(context.Background(), fastPolicy, func(ctx context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", Transient(errors.New("not ready"))
			}
			return "done", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "done", result)
		assert.Equal(t, 3, attempts)
		assert.Equal(t, 3, calls)
	})

	t.Run("fatal error aborts immediately", func(t *testing.T) {
		fatal := errors.New("permit revoked")
		calls := 0
		_, attempts, err := Do(context.Background(), fastPolicy, func(ctx context.Context) (int, error) {
			calls++
			return 0, fatal
		})
		assert.ErrorIs(t, err, fatal)
		assert.Equal(t, 1, attempts)
		assert.Equal(t, 1, calls)
	})

	t.Run("exhaustion wraps ErrExhausted and the last error", func(t *testing.T) {
		cause := errors.New("decryption pending")
		_, attempts, err := Do(context.Background(), Policy{MaxAttempts: 3, Delay: time.Millisecond},
			func(ctx context.Context) (int, error) {
				return 0, Transient(cause)
			})
		assert.ErrorIs(t, err, ErrExhausted)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, 3, attempts)
	})

	t.Run("cancellation stops the loop between attempts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		_, _, err := Do(ctx, Policy{MaxAttempts: 30, Delay: 50 * time.Millisecond},
			func(ctx context.Context) (int, error) {
				calls++
				cancel()
				return 0, Transient(errors.New("not ready"))
			})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})

	t.Run("pre-cancelled context never invokes op", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		_, attempts, err := Do(ctx, fastPolicy, func(ctx context.Context) (int, error) {
			calls++
			return 0, nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, attempts)
		assert.Equal(t, 0, calls)
	})

	t.Run("invalid budget is rejected", func(t *testing.T) {
		_, _, err := Do(context.Background(), Policy{MaxAttempts: 0}, func(ctx context.Context) (int, error) {
			return 0, nil
		})
		assert.Error(t, err)
	})
}

func TestTransient(t *testing.T) {
	t.Run("marking survives wrapping", func(t *testing.T) {
		inner := errors.New("rpc unavailable")
		err := Transient(inner)
		assert.True(t, IsTransient(err))
		assert.ErrorIs(t, err, inner)
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, Transient(nil))
	})

	t.Run("plain errors are not transient", func(t *testing.T) {
		assert.False(t, IsTransient(errors.New("boom")))
	})
}
