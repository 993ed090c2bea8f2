package observer

import "github.com/getflowy/collabsync/internal/model"

// Stream is the long-lived inbound duplex stream consumed by an Observer.
// Recv blocks until the next InboundMessage is available. It returns io.EOF
// on a graceful stream close; any other error is treated as a transport
// error. Establishing and reconnecting the Stream is the transport layer's
// responsibility; a reconnected transport constructs a fresh Observer
// rather than resuming this one.
type Stream interface {
	Recv() (model.InboundMessage, error)
}
