package testkit

import (
	"sync"
	"testing"
)

var (
	seamsMu sync.Mutex
	seams   = map[any]*sync.Mutex{}
)

func seamLock(target any) *sync.Mutex {
	seamsMu.Lock()
	defer seamsMu.Unlock()
	mu, ok := seams[target]
	if !ok {
		mu = &sync.Mutex{}
		seams[target] = mu
	}
	return mu
}

// Swap replaces *target until the test ends.
// Tests swapping the same target run one at a time; swapping it twice in one test deadlocks
func Swap[T any](t testing.TB, target *T, replacement T) {
	t.Helper()
	mu := seamLock(target)
	mu.Lock()
	orig := *target
	*target = replacement
	t.Cleanup(func() {
		*target = orig
		mu.Unlock()
	})
}
