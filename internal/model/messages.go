package model

import "fmt"

// AckCode is the status carried by a ClientAck inbound message.
type AckCode int

const (
	AckSuccess AckCode = iota
	AckCannotApplyUpdate
	AckMissUpdate
	// AckOther covers any code the server sends that isn't one of the above.
	// It's treated identically to AckSuccess.
	AckOther
)

// InboundKind discriminates the variants of InboundMessage.
type InboundKind int

const (
	InboundServerInit InboundKind = iota
	InboundServerUpdate
	InboundServerBroadcast
	InboundServerAwareness
	InboundClientAck
)

func (k InboundKind) String() string {
	switch k {
	case InboundServerInit:
		return "ServerInit"
	case InboundServerUpdate:
		return "ServerUpdate"
	case InboundServerBroadcast:
		return "ServerBroadcast"
	case InboundServerAwareness:
		return "ServerAwareness"
	case InboundClientAck:
		return "ClientAck"
	default:
		return fmt.Sprintf("InboundKind(%d)", int(k))
	}
}

// InboundMessage is a tagged variant of everything the server may send down
// the duplex stream for one object. Only the fields relevant to Kind are
// populated; see the field comments below for which fields apply.
type InboundMessage struct {
	Kind    InboundKind
	Payload []byte

	// HasMsgID is true for ServerInit, ServerUpdate, and ClientAck.
	HasMsgID bool
	MsgID    uint32

	// SeqNum is valid only for ServerBroadcast.
	SeqNum uint32

	// AckCode and AckPayload are valid only for ClientAck. For AckMissUpdate,
	// AckPayload carries the server's state-vector-v1.
	AckCode    AckCode
	AckPayload []byte
}

// OutboundKind discriminates the variants of OutboundMessage.
type OutboundKind int

const (
	OutboundClientInitSync OutboundKind = iota
	OutboundClientUpdateSync
	OutboundClientAwareness
)

func (k OutboundKind) String() string {
	switch k {
	case OutboundClientInitSync:
		return "ClientInitSync"
	case OutboundClientUpdateSync:
		return "ClientUpdateSync"
	case OutboundClientAwareness:
		return "ClientAwareness"
	default:
		return fmt.Sprintf("OutboundKind(%d)", int(k))
	}
}

// OutboundMessage is a client->server message queued through the Sink.
// MsgID is assigned by the Sink at enqueue time.
type OutboundMessage struct {
	Kind     Kind
	Origin   CollabOrigin
	ObjectID string
	Payload  []byte
	MsgID    uint32
}

// Kind is an alias retained for OutboundMessage.Kind's field type; named
// distinctly from OutboundKind so call sites read OutboundMessage{Kind: ...}
// without stutter.
type Kind = OutboundKind

// FrameKind discriminates the protocol frames decoded from an inbound or
// outbound payload by the Protocol Engine.
type FrameKind int

const (
	FrameSyncStep1 FrameKind = iota
	FrameSyncStep2
	FrameUpdate
	FrameAwareness
)

func (k FrameKind) String() string {
	switch k {
	case FrameSyncStep1:
		return "SyncStep1"
	case FrameSyncStep2:
		return "SyncStep2"
	case FrameUpdate:
		return "Update"
	case FrameAwareness:
		return "Awareness"
	default:
		return fmt.Sprintf("FrameKind(%d)", int(k))
	}
}

// Frame is one decoded protocol frame within a sync payload. For
// FrameSyncStep1, Data is the peer's remote state vector; for the other
// kinds it's the update/awareness bytes to apply.
type Frame struct {
	Kind FrameKind
	Data []byte
}
