package collab

import "golang.org/x/sync/semaphore"

// Lock is the replica's short-lived exclusive lock, implemented atop a
// weight-1 semaphore: TryAcquire is exactly the non-blocking try-lock the
// core requires, and Release never blocks. Intended for embedding inside a
// concrete ReplicaHandle implementation (see collab/fake).
type Lock struct {
	sem *semaphore.Weighted
}

// NewLock returns an unlocked Lock.
func NewLock() *Lock {
	return &Lock{sem: semaphore.NewWeighted(1)}
}

// TryLock attempts to acquire the lock without blocking. On success it
// returns an unlock func that must be called exactly once.
func (l *Lock) TryLock() (unlock func(), ok bool) {
	if !l.sem.TryAcquire(1) {
		return nil, false
	}
	return func() { l.sem.Release(1) }, true
}
