package orchestrator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex(t *testing.T) {
	t.Run("second acquire of a held key fails", func(t *testing.T) {
		locks := newKeyedMutex()

		release, err := locks.TryAcquire("redeem/a/b")
		require.NoError(t, err)

		_, err = locks.TryAcquire("redeem/a/b")
		assert.ErrorIs(t, err, ErrRunInFlight)

		release()
		release2, err := locks.TryAcquire("redeem/a/b")
		require.NoError(t, err)
		release2()
	})

	t.Run("different keys are independent", func(t *testing.T) {
		locks := newKeyedMutex()

		r1, err := locks.TryAcquire("redeem/a/b")
		require.NoError(t, err)
		defer r1()

		r2, err := locks.TryAcquire("redeem/a/c")
		require.NoError(t, err)
		defer r2()
	})

	t.Run("release is idempotent", func(t *testing.T) {
		locks := newKeyedMutex()

		release, err := locks.TryAcquire("k")
		require.NoError(t, err)
		release()
		release()

		r2, err := locks.TryAcquire("k")
		require.NoError(t, err)
		defer r2()
	})

	t.Run("no two concurrent holders of one key", func(t *testing.T) {
		locks := newKeyedMutex()

		var wg sync.WaitGroup
		var mu sync.Mutex
		active, maxActive := 0, 0
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				release, err := locks.TryAcquire("contested")
				if err != nil {
					return
				}
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()

				mu.Lock()
				active--
				mu.Unlock()
				release()
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, maxActive)

		r, err := locks.TryAcquire("contested")
		require.NoError(t, err)
		r()
	})
}
