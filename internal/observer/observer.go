// Package observer implements the long-running per-object task that
// consumes the inbound duplex stream, dispatches frames to the Protocol
// Engine, tracks sequence gaps, and schedules catch-up sync on fault.
// Overlapping catch-up attempts are handled by a cancellation-token swap:
// install-the-new-then-cancel-the-old under one lock, rather than relying
// on garbage collection to tear down a stale task.
package observer

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/getflowy/collabsync/internal/catchup"
	"github.com/getflowy/collabsync/internal/collab"
	"github.com/getflowy/collabsync/internal/model"
	"github.com/getflowy/collabsync/internal/protocol"
	"github.com/getflowy/collabsync/internal/seqtracker"
	"github.com/getflowy/collabsync/internal/sink"
	"github.com/getflowy/collabsync/internal/trace"
	log "github.com/sirupsen/logrus"
)

// DefaultDebounce is the coalescing delay between the most recent
// observed gap and the catch-up it triggers; each new gap restarts it,
// which absorbs rapid gap storms during reconnection.
const DefaultDebounce = 3 * time.Second

// Observer drives one SyncObject's inbound stream for its lifetime.
type Observer struct {
	object      model.SyncObject
	origin      model.CollabOrigin
	weakReplica collab.WeakReplica
	weakSink    WeakSink
	tracker     *seqtracker.Tracker
	engine      *protocol.Engine
	scheduler   *catchup.Scheduler
	debounce    time.Duration
	log         *log.Entry

	catchupMu     sync.Mutex
	cancelCatchup context.CancelFunc
}

// New returns an Observer for object. debounce of zero uses DefaultDebounce.
func New(
	object model.SyncObject,
	origin model.CollabOrigin,
	weakReplica collab.WeakReplica,
	weakSink WeakSink,
	tracker *seqtracker.Tracker,
	engine *protocol.Engine,
	scheduler *catchup.Scheduler,
	debounce time.Duration,
	entry *log.Entry,
) *Observer {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if entry == nil {
		entry = log.NewEntry(log.StandardLogger())
	}
	return &Observer{
		object:      object,
		origin:      origin,
		weakReplica: weakReplica,
		weakSink:    weakSink,
		tracker:     tracker,
		engine:      engine,
		scheduler:   scheduler,
		debounce:    debounce,
		log: entry.WithFields(log.Fields{
			"object_id":   object.ObjectID,
			"workspace_id": object.WorkspaceID,
			"collab_type": object.CollabType.String(),
		}),
	}
}

// Run consumes stream until it ends, errors, the weak replica or sink fail
// to upgrade, or an OverrideWithIncorrectData fault terminates the
// observer. It always returns nil on a clean shutdown and non-nil only for
// an unexpected transport error, so callers can distinguish "done" from
// "failed" without inspecting fault kinds themselves.
func (o *Observer) Run(ctx context.Context, stream Stream) error {
	var ctx2, span = trace.New(ctx, "sync.observer", o.object.ObjectID)
	defer span()
	defer o.cancelPendingCatchup()

	for {
		var msg, err = stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				o.log.Info("inbound stream closed; terminating observer")
				return nil
			}
			o.log.WithError(err).Error("inbound stream error; terminating observer")
			return err
		}

		var replica, rok = o.weakReplica.Upgrade()
		if !rok {
			o.log.Info("replica reference released; terminating observer")
			return nil
		}
		var sk, sok = o.weakSink.Upgrade()
		if !sok {
			o.log.Info("sink reference released; terminating observer")
			return nil
		}

		if o.handleMessage(ctx2, replica, sk, msg) {
			return nil
		}
		sk.NotifyNext()
	}
}

// handleMessage processes one inbound item: acks synchronously, broadcasts
// and awareness through the Protocol Engine, and targeted responses through
// the Sink's validation first. It returns true if the observer must
// terminate (OverrideWithIncorrectData).
func (o *Observer) handleMessage(ctx context.Context, replica collab.ReplicaHandle, sk *sink.Sink, msg model.InboundMessage) (terminate bool) {
	if msg.Kind == model.InboundClientAck {
		switch msg.AckCode {
		case model.AckCannotApplyUpdate:
			o.onCannotApplyUpdate(ctx, replica, sk)
		case model.AckMissUpdate:
			o.scheduleCatchup(ctx, model.NewMissUpdatesServer(msg.AckPayload))
		}
		// Every ack still reconciles against the Sink: ack_seq advances, the
		// outstanding window drains, and a sustained ack-leads-broadcast
		// condition surfaces here. The ack's payload is never delivered to
		// the Protocol Engine.
		var _, fault = sk.ValidateResponse(msg)
		if fault != nil {
			o.scheduleCatchup(ctx, fault)
		}
		return false
	}

	if !msg.HasMsgID {
		if err := o.engine.Apply(ctx, replica, o.object, model.ServerOrigin, msg.Payload); err != nil {
			if o.handleEngineFault(err) {
				return true
			}
		}
		if msg.Kind == model.InboundServerBroadcast {
			if fault := o.tracker.CheckBroadcastContiguous(msg.SeqNum); fault != nil {
				o.scheduleCatchup(ctx, fault)
			}
			o.tracker.StoreBroadcastSeq(msg.SeqNum)
		}
		return false
	}

	var deliver, fault = sk.ValidateResponse(msg)
	if fault != nil {
		o.scheduleCatchup(ctx, fault)
	}
	if deliver {
		if err := o.engine.Apply(ctx, replica, o.object, model.ServerOrigin, msg.Payload); err != nil {
			if o.handleEngineFault(err) {
				return true
			}
		}
	}
	return false
}

// handleEngineFault logs an Internal fault and continues, or reports that
// the observer must terminate for OverrideWithIncorrectData.
func (o *Observer) handleEngineFault(err error) (terminate bool) {
	var fault, ok = model.AsFault(err)
	if !ok {
		o.log.WithError(err).Error("unexpected non-fault error from protocol engine")
		return false
	}
	switch fault.Kind {
	case model.FaultOverrideWithIncorrectData:
		o.log.WithError(err).Error("local replica state corrupted beyond recovery; terminating observer")
		return true
	case model.FaultInternal:
		o.log.WithError(err).Warn("internal fault applying inbound frame; continuing")
		return false
	default:
		return false
	}
}

// onCannotApplyUpdate handles a CannotApplyUpdate ack: a direct,
// synchronous catch-up attempt (no debounce), relying on the Scheduler's own
// try-lock to skip if the replica is already busy.
func (o *Observer) onCannotApplyUpdate(ctx context.Context, replica collab.ReplicaHandle, sk *sink.Sink) {
	if err := o.scheduler.PullMissingUpdates(ctx, o.origin, o.object, replica, sk, nil, model.ReasonServerCannotApplyUpdate); err != nil {
		o.log.WithError(err).Warn("catch-up attempt failed")
	}
}

// scheduleCatchup handles a MissUpdates fault: install a new cancellation
// token, cancel the in-flight catch-up it replaces (both under one lock),
// and spawn a task that either completes the debounce and invokes the
// Scheduler, or is cancelled first.
func (o *Observer) scheduleCatchup(ctx context.Context, fault *model.Fault) {
	o.catchupMu.Lock()
	var catchupCtx, cancel = context.WithCancel(ctx)
	var previous = o.cancelCatchup
	o.cancelCatchup = cancel
	if previous != nil {
		previous()
	}
	o.catchupMu.Unlock()

	go o.runDebouncedCatchup(catchupCtx, fault)
}

func (o *Observer) runDebouncedCatchup(ctx context.Context, fault *model.Fault) {
	var timer = time.NewTimer(o.debounce)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return // Superseded by a later fault, or the observer shut down.
	case <-timer.C:
	}

	var replica, rok = o.weakReplica.Upgrade()
	if !rok {
		return
	}
	var sk, sok = o.weakSink.Upgrade()
	if !sok {
		return
	}

	if err := o.scheduler.PullMissingUpdates(ctx, o.origin, o.object, replica, sk, fault.StateVectorV1, fault.Reason); err != nil {
		o.log.WithError(err).Warn("catch-up attempt failed")
	}
}

func (o *Observer) cancelPendingCatchup() {
	o.catchupMu.Lock()
	defer o.catchupMu.Unlock()
	if o.cancelCatchup != nil {
		o.cancelCatchup()
		o.cancelCatchup = nil
	}
}
