package orchestrator

import (
	"errors"
	"sync"
)

// ErrRunInFlight is returned when a workflow for the same (bond, holder) pair
// is already running. The duplicate is rejected, never queued.
var ErrRunInFlight = errors.New("orchestrator: workflow already in flight for this bond and holder")

// keyedMutex is an advisory per-key try-lock. Keys are held for the duration
// of one workflow run and always released, including on panic paths, via the
// returned release func.
type keyedMutex struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{held: make(map[string]struct{})}
}

// TryAcquire takes the key or fails immediately with ErrRunInFlight.
func (k *keyedMutex) TryAcquire(key string) (func(), error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, taken := k.held[key]; taken {
		return nil, ErrRunInFlight
	}
	k.held[key] = struct{}{}

	var once sync.Once
	release := func() {
		once.Do(func() {
			k.mu.Lock()
			delete(k.held, key)
			k.mu.Unlock()
		})
	}
	return release, nil
}
