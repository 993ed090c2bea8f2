package main

import (
	"io"

	"github.com/getflowy/collabsync/internal/model"
)

// eofStream is an observer.Stream that yields io.EOF immediately, used by
// the demo command as a safe, deterministic smoke test of the core's
// wiring without a real transport (transport establishment is out of
// scope for this core).
type eofStream struct{}

func (eofStream) Recv() (model.InboundMessage, error) {
	return model.InboundMessage{}, io.EOF
}

// demoDecoder treats the whole payload as a single incremental Update
// frame, sufficient for exercising the Protocol Engine's apply path in the
// demo command without a real CRDT wire codec.
func demoDecoder(payload []byte) ([]model.Frame, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	return []model.Frame{{Kind: model.FrameUpdate, Data: payload}}, nil
}

// demoEncoder round-trips a frame's bytes unchanged.
func demoEncoder(frame model.Frame) ([]byte, error) {
	return frame.Data, nil
}
