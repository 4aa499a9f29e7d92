package indexer

import (
	"sync"
	"sync/atomic"
)

// runLock provides non-blocking lock semantics using atomic operations.
type runLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking.
func (l *runLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock. Must only be called after a successful
// TryAcquire.
func (l *runLock) Release() {
	l.state.Store(0)
}

// RunRegistry hands out one lock per root directory so that at most one
// indexing run is active per root at a time. Runs for different roots
// proceed independently.
type RunRegistry struct {
	mu    sync.Mutex
	locks map[string]*runLock
}

// NewRunRegistry creates an empty registry.
func NewRunRegistry() *RunRegistry {
	return &RunRegistry{locks: make(map[string]*runLock)}
}

// TryAcquire acquires the lock for rootDir without blocking. The returned
// release function must be called exactly once when the run finishes.
func (r *RunRegistry) TryAcquire(rootDir string) (release func(), ok bool) {
	r.mu.Lock()
	lock, exists := r.locks[rootDir]
	if !exists {
		lock = &runLock{}
		r.locks[rootDir] = lock
	}
	r.mu.Unlock()

	if !lock.TryAcquire() {
		return nil, false
	}
	return lock.Release, true
}
