// Package seqtracker tracks the broadcast and ack sequence numbers of one
// object's sync stream and detects gaps in the server's broadcast fan-out.
package seqtracker

import (
	"sync"
	"sync/atomic"

	"github.com/getflowy/collabsync/internal/model"
)

// defaultMaxMissUpdateStrikes is the strike count at which a sustained
// ack-leads-broadcast condition is promoted to a MissUpdates fault. Fixed at
// 2: a single transient lead is normal (acks can race ahead of their
// broadcast fan-out), a second consecutive one is not.
const defaultMaxMissUpdateStrikes = 2

// Tracker holds the broadcast, ack, and strike counters for one object's
// stream. All operations are safe for concurrent use.
type Tracker struct {
	broadcastSeq uint32
	ackSeq       uint32
	strikes      uint32
	strikeLimit  uint32

	// mu serializes the compare-and-swap-or-overwrite sequences below, which
	// can't be expressed as a single atomic op (they read-then-conditionally-
	// write two different fields). The counters are still individually
	// atomic.Load/Store'd so a concurrent reader never observes a torn value.
	mu sync.Mutex
}

// New returns a Tracker with all counters at zero (uninitialized)
// and the default 2-strike limit.
func New() *Tracker {
	return &Tracker{strikeLimit: defaultMaxMissUpdateStrikes}
}

// NewWithStrikeLimit returns a Tracker using a caller-supplied strike limit
// (internal/config.SyncConfig.StrikeLimit), falling back to the default
// when limit is zero.
func NewWithStrikeLimit(limit uint32) *Tracker {
	if limit == 0 {
		limit = defaultMaxMissUpdateStrikes
	}
	return &Tracker{strikeLimit: limit}
}

// BroadcastSeq returns the current broadcast sequence number.
func (t *Tracker) BroadcastSeq() uint32 { return atomic.LoadUint32(&t.broadcastSeq) }

// AckSeq returns the current ack sequence number.
func (t *Tracker) AckSeq() uint32 { return atomic.LoadUint32(&t.ackSeq) }

// StoreAckSeq records an ack sequence number observed from the server. If
// broadcastSeq hasn't yet been primed (it's 0), it bootstraps from n. The
// prior ackSeq value is returned.
func (t *Tracker) StoreAckSeq(n uint32) (prior uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if atomic.LoadUint32(&t.broadcastSeq) == 0 {
		atomic.StoreUint32(&t.broadcastSeq, n)
	}

	prior = atomic.LoadUint32(&t.ackSeq)
	if n >= prior {
		atomic.StoreUint32(&t.ackSeq, n)
	} else {
		// A smaller ack sequence signals a server restart: overwrite rather
		// than ratchet.
		atomic.StoreUint32(&t.ackSeq, n)
	}
	return prior
}

// StoreBroadcastSeq records a broadcast sequence number observed from the
// server, ratcheting upward or overwriting on a detected server restart.
func (t *Tracker) StoreBroadcastSeq(n uint32) (prior uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prior = atomic.LoadUint32(&t.broadcastSeq)
	atomic.StoreUint32(&t.broadcastSeq, n)
	return prior
}

// CheckBroadcastContiguous compares n against the current broadcast
// sequence and returns a *model.Fault if a gap larger than one is detected.
// It does not itself store n; callers call StoreBroadcastSeq separately
// after applying the broadcast.
func (t *Tracker) CheckBroadcastContiguous(n uint32) *model.Fault {
	var current = t.BroadcastSeq()
	if current > 0 && n > current+1 {
		return model.NewMissUpdatesBroadcastGap(current, n)
	}
	return nil
}

// CheckAckBroadcastContiguous implements strike-based sustained-lead
// detection: transient ack-leads-broadcast is normal, a sustained lead means
// the client missed a broadcast. When the consecutive strike count reaches
// the strike limit (2 by default, i.e. the second consecutive strike) it
// resets the strike counter and forces broadcastSeq to ackSeq, returning the
// resulting fault.
func (t *Tracker) CheckAckBroadcastContiguous() *model.Fault {
	t.mu.Lock()
	defer t.mu.Unlock()

	var ack = atomic.LoadUint32(&t.ackSeq)
	var broadcast = atomic.LoadUint32(&t.broadcastSeq)
	if ack <= broadcast {
		atomic.StoreUint32(&t.strikes, 0)
		return nil
	}

	var strikes = atomic.AddUint32(&t.strikes, 1)
	if strikes < t.strikeLimit {
		return nil
	}

	atomic.StoreUint32(&t.strikes, 0)
	atomic.StoreUint32(&t.broadcastSeq, ack)
	return model.NewMissUpdatesAckLead(ack, broadcast)
}
