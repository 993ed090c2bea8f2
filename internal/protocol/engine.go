// Package protocol implements the Protocol Engine: applying one inbound
// protocol payload's frames to the local replica and staging any reply
// through the Sink. The CRDT library call runs inside its own recoverable
// stack frame, so a panic in the library surfaces as an error instead of
// tearing down the observer.
package protocol

import (
	"context"
	"fmt"

	"github.com/getflowy/collabsync/internal/collab"
	"github.com/getflowy/collabsync/internal/model"
	"github.com/getflowy/collabsync/internal/sink"
	log "github.com/sirupsen/logrus"
)

// FrameDecoder decodes the frames carried by one inbound or outbound sync
// payload. Its concrete implementation belongs to the host CRDT library and
// is supplied by the embedding application; the core only discriminates the
// four frame kinds.
type FrameDecoder func(payload []byte) ([]model.Frame, error)

// Engine applies inbound sync payloads to a replica and stages any reply
// through a Sink.
type Engine struct {
	Decode FrameDecoder
	Sink   *sink.Sink
	log    *log.Entry
}

// New returns an Engine that decodes payloads with decode and stages
// replies on sk.
func New(decode FrameDecoder, sk *sink.Sink, entry *log.Entry) *Engine {
	if entry == nil {
		entry = log.NewEntry(log.StandardLogger())
	}
	return &Engine{Decode: decode, Sink: sk, log: entry}
}

// Apply decodes payload and applies each frame to replica in wire order,
// under origin. An empty payload is a no-op.
//
// If object.CollabType is Folder and a frame is SyncStep1 (about to reply
// with our own state), the folder guard runs first; on failure Apply
// returns a FaultOverrideWithIncorrectData and applies no further frames.
//
// A panic or error from the CRDT library while applying a frame is caught
// and returned as a FaultInternal; Apply does not continue with the
// remaining frames of this payload, but the caller (the Stream Observer) is
// expected to log and continue observing subsequent inbound messages.
func (e *Engine) Apply(ctx context.Context, replica collab.ReplicaHandle, object model.SyncObject, origin model.CollabOrigin, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}

	frames, err := e.Decode(payload)
	if err != nil {
		return model.NewInternal(fmt.Errorf("decoding sync payload: %w", err))
	}

	for _, frame := range frames {
		if object.CollabType == model.CollabTypeFolder && frame.Kind == model.FrameSyncStep1 {
			if verr := replica.ValidateForFolder(object.WorkspaceID); verr != nil {
				e.log.WithFields(log.Fields{"object_id": object.ObjectID, "workspace_id": object.WorkspaceID}).
					WithError(verr).Warn("folder guard rejected local replica; not replying")
				return model.NewOverrideWithIncorrectData(verr.Error())
			}
		}

		var reply, applyErr = e.applyFrame(replica, origin, frame)
		if applyErr != nil {
			return applyErr
		}

		if len(reply) == 0 {
			continue
		}

		var outKind = model.OutboundClientUpdateSync
		if frame.Kind == model.FrameSyncStep1 {
			outKind = model.OutboundClientInitSync
		}
		e.Sink.QueueMsg(func(msgID uint32) model.OutboundMessage {
			return model.OutboundMessage{
				Kind:     outKind,
				Origin:   origin,
				ObjectID: object.ObjectID,
				Payload:  reply,
			}
		})
	}
	return nil
}

// applyFrame applies a single frame inside a recoverable boundary so a
// panic from the CRDT library surfaces as a FaultInternal rather than
// crashing the observer.
func (e *Engine) applyFrame(replica collab.ReplicaHandle, origin model.CollabOrigin, frame model.Frame) (reply []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = model.NewInternal(fmt.Errorf("panic applying %s frame: %v", frame.Kind, r))
		}
	}()

	reply, err = replica.ApplySyncMessage(origin, frame)
	if err != nil {
		err = model.NewInternal(fmt.Errorf("applying %s frame: %w", frame.Kind, err))
	}
	return
}
