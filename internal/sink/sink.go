// Package sink implements the outbound side of one object's sync stream: a
// thread-safe FIFO of client->server messages with msg_id assignment and
// ack matching. One mutex guards a small queue; a buffered channel wakes
// the transmitter.
package sink

import (
	"container/list"
	"sync"

	"github.com/getflowy/collabsync/internal/model"
	"github.com/getflowy/collabsync/internal/seqtracker"
	log "github.com/sirupsen/logrus"
)

// Sink is the outbound queue for one SyncObject. It's safe for concurrent use.
type Sink struct {
	mu          sync.Mutex
	nextMsgID   uint32
	pending     *list.List // FIFO of model.OutboundMessage staged for transmission.
	outstanding *list.List // FIFO of uint32 msgIDs awaiting a server response.
	notifyCh    chan struct{}

	tracker *seqtracker.Tracker
	log     *log.Entry
}

// New returns a Sink backed by the given Tracker, which it uses to resolve
// ack_seq advancement during ValidateResponse.
func New(tracker *seqtracker.Tracker, entry *log.Entry) *Sink {
	if entry == nil {
		entry = log.NewEntry(log.StandardLogger())
	}
	return &Sink{
		pending:     list.New(),
		outstanding: list.New(),
		notifyCh:    make(chan struct{}, 1),
		tracker:     tracker,
		log:         entry,
	}
}

// QueueMsg synchronously invokes build with a newly assigned msg_id, stages
// the resulting message for transmission, and records the msg_id as
// outstanding. It returns the built message. msg_id is monotonically
// increasing per Sink.
func (s *Sink) QueueMsg(build func(msgID uint32) model.OutboundMessage) model.OutboundMessage {
	s.mu.Lock()
	s.nextMsgID++
	var id = s.nextMsgID
	var msg = build(id)
	msg.MsgID = id

	s.pending.PushBack(msg)
	s.outstanding.PushBack(id)
	s.mu.Unlock()

	s.NotifyNext()
	return msg
}

// NotifyNext signals the transmitter to consider flushing. It never blocks:
// a full notification channel means a flush is already pending.
func (s *Sink) NotifyNext() {
	select {
	case s.notifyCh <- struct{}{}:
	default:
	}
}

// Notifications returns the channel a transmitter should select on to learn
// that new messages may be pending.
func (s *Sink) Notifications() <-chan struct{} { return s.notifyCh }

// PopPending removes and returns the oldest staged outbound message, if any.
func (s *Sink) PopPending() (model.OutboundMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var e = s.pending.Front()
	if e == nil {
		return model.OutboundMessage{}, false
	}
	s.pending.Remove(e)
	return e.Value.(model.OutboundMessage), true
}

// ValidateResponse reconciles an inbound message that carries a msg_id: it
// advances ack_seq through the Tracker, checks for a sustained
// ack-leads-broadcast condition, and verifies the msg_id matches the head of
// the outstanding window. It returns whether the payload should be
// delivered to the Protocol Engine (false for a replayed or out-of-window
// ack, which is ignored for idempotency) and any MissUpdates fault raised
// by the Tracker.
func (s *Sink) ValidateResponse(msg model.InboundMessage) (deliver bool, fault *model.Fault) {
	if !msg.HasMsgID {
		return false, nil
	}

	s.tracker.StoreAckSeq(msg.MsgID)
	fault = s.tracker.CheckAckBroadcastContiguous()

	s.mu.Lock()
	var matched bool
	if e := s.outstanding.Front(); e != nil && e.Value.(uint32) == msg.MsgID {
		s.outstanding.Remove(e)
		matched = true
	}
	s.mu.Unlock()

	if !matched {
		s.log.WithField("msg_id", msg.MsgID).Debug("ignoring response for msg_id not at head of outstanding window")
	}
	return matched, fault
}

// Len returns the number of messages staged for transmission. Exposed for
// tests and diagnostics only.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Len()
}
