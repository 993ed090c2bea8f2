package observer

import "github.com/getflowy/collabsync/internal/sink"

// WeakSink models the same capability-handle pattern as collab.WeakReplica,
// but for the outbound Sink: the observer holds only a weak reference, and
// the embedding application's release of its strong Sink is the signal to
// stop trying to queue outbound messages.
type WeakSink struct {
	upgrade func() (*sink.Sink, bool)
}

// NewWeakSink wraps an upgrade closure as a WeakSink.
func NewWeakSink(upgrade func() (*sink.Sink, bool)) WeakSink {
	return WeakSink{upgrade: upgrade}
}

// Strong returns a WeakSink that always upgrades to sk, for callers that
// own the Sink for the lifetime of the observer.
func Strong(sk *sink.Sink) WeakSink {
	return WeakSink{upgrade: func() (*sink.Sink, bool) { return sk, true }}
}

// Upgrade attempts to obtain the strong *sink.Sink.
func (w WeakSink) Upgrade() (*sink.Sink, bool) {
	if w.upgrade == nil {
		return nil, false
	}
	return w.upgrade()
}
