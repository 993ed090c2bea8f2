// Package fake provides small, self-contained in-memory implementations of
// the collab interfaces for use in tests, colocated with the code under
// test instead of reaching for a mocking framework.
package fake

import (
	"sync"

	"github.com/getflowy/collabsync/internal/collab"
	"github.com/getflowy/collabsync/internal/model"
)

// Replica is an in-memory ReplicaHandle. ApplyFunc and ValidateFunc let
// tests script CRDT-application and folder-validation behavior without a
// real CRDT library.
type Replica struct {
	lock *collab.Lock

	mu    sync.Mutex
	state []byte

	// ApplyFunc, when set, is invoked by ApplySyncMessage instead of the
	// default behavior (append frame.Data to the accumulated state and
	// return no reply). It may panic to exercise panic isolation.
	ApplyFunc func(origin model.CollabOrigin, frame model.Frame) (reply []byte, err error)
	// ValidateFunc, when set, is invoked by ValidateForFolder.
	ValidateFunc func(workspaceID string) error
	// StateVector, returned by StateVectorV1 unless StateVectorErr is set.
	StateVector    []byte
	StateVectorErr error
}

// NewReplica returns an unlocked, empty Replica.
func NewReplica() *Replica {
	return &Replica{lock: collab.NewLock()}
}

func (r *Replica) TryLock() (func(), bool) { return r.lock.TryLock() }

func (r *Replica) ApplySyncMessage(origin model.CollabOrigin, frame model.Frame) ([]byte, error) {
	if r.ApplyFunc != nil {
		return r.ApplyFunc(origin, frame)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = append(r.state, frame.Data...)
	return nil, nil
}

func (r *Replica) StateVectorV1() ([]byte, error) {
	if r.StateVectorErr != nil {
		return nil, r.StateVectorErr
	}
	return r.StateVector, nil
}

func (r *Replica) ValidateForFolder(workspaceID string) error {
	if r.ValidateFunc != nil {
		return r.ValidateFunc(workspaceID)
	}
	return nil
}

// State returns a copy of the bytes accumulated by the default
// ApplySyncMessage behavior, for assertions.
func (r *Replica) State() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out = make([]byte, len(r.state))
	copy(out, r.state)
	return out
}

// WeakRef wraps r as a collab.WeakReplica that upgrades successfully until
// Expire is called.
type WeakRef struct {
	mu      sync.Mutex
	replica *Replica
	expired bool
}

// NewWeakRef returns a WeakRef that upgrades to replica until Expire is called.
func NewWeakRef(replica *Replica) *WeakRef {
	return &WeakRef{replica: replica}
}

func (w *WeakRef) Weak() collab.WeakReplica {
	return collab.NewWeakReplica(func() (collab.ReplicaHandle, bool) {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.expired {
			return nil, false
		}
		return w.replica, true
	})
}

// Expire simulates the embedding application releasing its last strong
// reference to the replica.
func (w *WeakRef) Expire() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.expired = true
}
