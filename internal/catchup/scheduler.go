// Package catchup implements catch-up sync: a single, try-lock-guarded
// entry point that re-requests missing updates via a fresh SyncStep1. A
// busy replica is skipped rather than awaited with a blocking lock.
package catchup

import (
	"context"
	"fmt"

	"github.com/getflowy/collabsync/internal/collab"
	"github.com/getflowy/collabsync/internal/model"
	"github.com/getflowy/collabsync/internal/sink"
	"github.com/getflowy/collabsync/internal/trace"
	log "github.com/sirupsen/logrus"
)

// FrameEncoder encodes a single protocol frame into the opaque payload
// format expected by the server. Like protocol.FrameDecoder, its concrete
// implementation belongs to the host CRDT library.
type FrameEncoder func(frame model.Frame) ([]byte, error)

// Scheduler re-initiates sync for an object whose Stream Observer has
// detected a gap.
type Scheduler struct {
	Encode FrameEncoder
	log    *log.Entry
}

// New returns a Scheduler that encodes outgoing SyncStep1 frames with encode.
func New(encode FrameEncoder, entry *log.Entry) *Scheduler {
	if entry == nil {
		entry = log.NewEntry(log.StandardLogger())
	}
	return &Scheduler{Encode: encode, log: entry}
}

// PullMissingUpdates try-locks replica (skipping if another catch-up or the
// Protocol Engine already owns it), reads the local state vector, and
// enqueues a SyncStep1 as ClientInitSync through sk.
//
// stateVectorV1 and reason describe why catch-up was triggered. reason is
// used only for logging and tracing; stateVectorV1 is not read, since the
// outgoing request always carries our own current local state vector, not
// the server's.
func (s *Scheduler) PullMissingUpdates(
	ctx context.Context,
	origin model.CollabOrigin,
	object model.SyncObject,
	replica collab.ReplicaHandle,
	sk *sink.Sink,
	stateVectorV1 []byte,
	reason model.MissUpdateReason,
) error {
	var unlock, ok = replica.TryLock()
	if !ok {
		trace.Printf(ctx, "catch-up(%s) skipped: replica lock busy", object.ObjectID)
		return nil
	}
	defer unlock()

	var localSV, err = replica.StateVectorV1()
	if err != nil {
		return model.NewInternal(fmt.Errorf("reading local state vector: %w", err))
	}

	var payload []byte
	payload, err = s.Encode(model.Frame{Kind: model.FrameSyncStep1, Data: localSV})
	if err != nil {
		return model.NewInternal(fmt.Errorf("encoding SyncStep1: %w", err))
	}

	sk.QueueMsg(func(msgID uint32) model.OutboundMessage {
		return model.OutboundMessage{
			Kind:     model.OutboundClientInitSync,
			Origin:   origin,
			ObjectID: object.ObjectID,
			Payload:  payload,
		}
	})

	s.log.WithFields(log.Fields{
		"object_id": object.ObjectID,
		"reason":    reason.String(),
	}).Info("initiated catch-up sync")
	trace.Printf(ctx, "catch-up(%s): pulled missing updates, reason=%s", object.ObjectID, reason)
	return nil
}
