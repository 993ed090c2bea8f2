package collab

import (
	"github.com/getflowy/collabsync/internal/model"
)

// ReplicaHandle is the CRDT replica exclusively owned by the embedding
// application. The core never holds a strong reference to it; see
// WeakReplica below.
type ReplicaHandle interface {
	// TryLock attempts to acquire the replica's exclusive short-lived lock
	// without blocking. On success, the returned unlock func must be called
	// exactly once, and never while awaiting another operation. On failure
	// ok is false and unlock is nil, meaning another task already owns the
	// lock.
	TryLock() (unlock func(), ok bool)

	// ApplySyncMessage applies one decoded protocol frame to the replica
	// under origin, via the CRDT library's sync protocol, and returns an
	// optional non-empty reply payload the caller should send back.
	ApplySyncMessage(origin model.CollabOrigin, frame model.Frame) (reply []byte, err error)

	// StateVectorV1 returns the replica's current local state vector, used
	// to build a SyncStep1 request during catch-up.
	StateVectorV1() ([]byte, error)

	// ValidateForFolder runs the folder sanity guard. Only called
	// when the replica's SyncObject.CollabType is Folder.
	ValidateForFolder(workspaceID string) error
}

// WeakReplica models a capability handle that may fail to upgrade to a
// strong ReplicaHandle, rather than shared ownership; shared ownership
// would let an observer outlive the replica's intended lifetime. The
// embedding application constructs the upgrade closure from whatever
// strong reference it holds (e.g. a lookup in its own live-document table).
type WeakReplica struct {
	upgrade func() (ReplicaHandle, bool)
}

// NewWeakReplica wraps an upgrade closure as a WeakReplica.
func NewWeakReplica(upgrade func() (ReplicaHandle, bool)) WeakReplica {
	return WeakReplica{upgrade: upgrade}
}

// Upgrade attempts to obtain a strong ReplicaHandle. ok is false once the
// embedding application has released its last strong reference, the
// signal to terminate the observer.
func (w WeakReplica) Upgrade() (ReplicaHandle, bool) {
	if w.upgrade == nil {
		return nil, false
	}
	return w.upgrade()
}
