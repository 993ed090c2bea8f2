package model

import (
	"fmt"

	"github.com/pkg/errors"
)

// FaultKind discriminates the core's internal error taxonomy.
type FaultKind int

const (
	// FaultMissUpdates is recoverable; it triggers a catch-up.
	FaultMissUpdates FaultKind = iota
	// FaultCannotApplyUpdate is recoverable; it triggers a fresh init sync.
	FaultCannotApplyUpdate
	// FaultOverrideWithIncorrectData is fatal for the owning observer.
	FaultOverrideWithIncorrectData
	// FaultInternal covers an unexpected panic or library error; it's logged
	// and the observer continues.
	FaultInternal
)

func (k FaultKind) String() string {
	switch k {
	case FaultMissUpdates:
		return "MissUpdates"
	case FaultCannotApplyUpdate:
		return "CannotApplyUpdate"
	case FaultOverrideWithIncorrectData:
		return "OverrideWithIncorrectData"
	case FaultInternal:
		return "Internal"
	default:
		return fmt.Sprintf("FaultKind(%d)", int(k))
	}
}

// MissUpdateReason explains why a FaultMissUpdates was raised.
type MissUpdateReason int

const (
	ReasonBroadcastSeqNotContinuous MissUpdateReason = iota
	ReasonAckSeqAdvanceBroadcastSeq
	ReasonServerMissUpdates
	// ReasonServerCannotApplyUpdate drives the catch-up triggered by a
	// CannotApplyUpdate ack. The Catch-up Scheduler's entry point takes a
	// single reason parameter for tracing, so the enum carries this fourth
	// value rather than a parallel sum type.
	ReasonServerCannotApplyUpdate
)

func (r MissUpdateReason) String() string {
	switch r {
	case ReasonBroadcastSeqNotContinuous:
		return "BroadcastSeqNotContinuous"
	case ReasonAckSeqAdvanceBroadcastSeq:
		return "AckSeqAdvanceBroadcastSeq"
	case ReasonServerMissUpdates:
		return "ServerMissUpdates"
	case ReasonServerCannotApplyUpdate:
		return "ServerCannotApplyUpdate"
	default:
		return fmt.Sprintf("MissUpdateReason(%d)", int(r))
	}
}

// Fault is the core's internal error type. Callers should prefer errors.As
// over string matching to inspect Kind.
type Fault struct {
	Kind FaultKind

	// StateVectorV1 and Reason are populated only for FaultMissUpdates.
	StateVectorV1 []byte
	Reason        MissUpdateReason

	// Current and Expected are populated only for
	// ReasonBroadcastSeqNotContinuous, for diagnostics.
	Current, Expected uint32
	// AckSeq and BroadcastSeq are populated only for
	// ReasonAckSeqAdvanceBroadcastSeq, for diagnostics.
	AckSeq, BroadcastSeq uint32

	Detail string
	cause  error
}

func (f *Fault) Error() string {
	switch f.Kind {
	case FaultMissUpdates:
		return fmt.Sprintf("MissUpdates(%s): %s", f.Reason, f.Detail)
	default:
		if f.Detail != "" {
			return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
		}
		return f.Kind.String()
	}
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As chains.
func (f *Fault) Unwrap() error { return f.cause }

// NewMissUpdatesBroadcastGap builds a FaultMissUpdates for a detected
// broadcast sequence discontinuity.
func NewMissUpdatesBroadcastGap(current, expected uint32) *Fault {
	return &Fault{
		Kind:     FaultMissUpdates,
		Reason:   ReasonBroadcastSeqNotContinuous,
		Current:  current,
		Expected: expected,
		Detail:   fmt.Sprintf("current:%d, expected:%d", current, expected),
	}
}

// NewMissUpdatesAckLead builds a FaultMissUpdates for a sustained
// ack-leads-broadcast condition.
func NewMissUpdatesAckLead(ackSeq, broadcastSeq uint32) *Fault {
	return &Fault{
		Kind:         FaultMissUpdates,
		Reason:       ReasonAckSeqAdvanceBroadcastSeq,
		AckSeq:       ackSeq,
		BroadcastSeq: broadcastSeq,
		Detail:       fmt.Sprintf("ack:%d, broadcast:%d", ackSeq, broadcastSeq),
	}
}

// NewMissUpdatesServer builds a FaultMissUpdates from a server-sent
// MissUpdate ack, carrying its state-vector-v1 payload.
func NewMissUpdatesServer(stateVectorV1 []byte) *Fault {
	return &Fault{
		Kind:          FaultMissUpdates,
		Reason:        ReasonServerMissUpdates,
		StateVectorV1: stateVectorV1,
	}
}

// NewCannotApplyUpdate builds a FaultCannotApplyUpdate.
func NewCannotApplyUpdate() *Fault {
	return &Fault{Kind: FaultCannotApplyUpdate}
}

// NewOverrideWithIncorrectData builds a fatal FaultOverrideWithIncorrectData.
func NewOverrideWithIncorrectData(detail string) *Fault {
	return &Fault{Kind: FaultOverrideWithIncorrectData, Detail: detail}
}

// NewInternal wraps an unexpected error (or recovered panic) as
// FaultInternal.
func NewInternal(cause error) *Fault {
	return &Fault{Kind: FaultInternal, Detail: cause.Error(), cause: cause}
}

// AsFault unwraps err looking for a *Fault via errors.As, which follows the
// Unwrap chain, so a *Fault wrapped by github.com/pkg/errors is still found.
func AsFault(err error) (*Fault, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// ErrRecordNotFound is returned by the duplicator when a published view
// can't be located.
type ErrRecordNotFound struct {
	ViewID string
}

func (e *ErrRecordNotFound) Error() string {
	return fmt.Sprintf("record not found: view %s", e.ViewID)
}
