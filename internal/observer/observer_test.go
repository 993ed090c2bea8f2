package observer_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/getflowy/collabsync/internal/catchup"
	"github.com/getflowy/collabsync/internal/collab/fake"
	"github.com/getflowy/collabsync/internal/model"
	"github.com/getflowy/collabsync/internal/observer"
	"github.com/getflowy/collabsync/internal/protocol"
	"github.com/getflowy/collabsync/internal/seqtracker"
	"github.com/getflowy/collabsync/internal/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDebounce = 40 * time.Millisecond

type streamItem struct {
	msg model.InboundMessage
	err error
}

type chanStream struct{ ch chan streamItem }

func newChanStream() *chanStream { return &chanStream{ch: make(chan streamItem, 32)} }

func (s *chanStream) Send(msg model.InboundMessage) { s.ch <- streamItem{msg: msg} }
func (s *chanStream) Fail(err error)                { s.ch <- streamItem{err: err} }
func (s *chanStream) Recv() (model.InboundMessage, error) {
	var item = <-s.ch
	return item.msg, item.err
}

func noopDecoder([]byte) ([]model.Frame, error) { return nil, nil }

func newHarness(t *testing.T, replica *fake.Replica) (*observer.Observer, *fake.WeakRef, *sink.Sink, *seqtracker.Tracker) {
	t.Helper()
	var weakRef = fake.NewWeakRef(replica)
	var tracker = seqtracker.New()
	var sk = sink.New(tracker, nil)
	var engine = protocol.New(noopDecoder, sk, nil)
	var scheduler = catchup.New(func(model.Frame) ([]byte, error) { return []byte("sv1"), nil }, nil)

	var object = model.SyncObject{ObjectID: "doc-1", WorkspaceID: "ws-1", CollabType: model.CollabTypeDocument}
	var obs = observer.New(object, model.EmptyOrigin, weakRef.Weak(), observer.Strong(sk), tracker, engine, scheduler, testDebounce, nil)
	return obs, weakRef, sk, tracker
}

func TestObserver_BroadcastGap_TriggersDebouncedCatchup(t *testing.T) {
	var replica = fake.NewReplica()
	var obs, _, sk, _ = newHarness(t, replica)

	var stream = newChanStream()
	var done = make(chan error, 1)
	go func() { done <- obs.Run(context.Background(), stream) }()

	stream.Send(model.InboundMessage{Kind: model.InboundServerBroadcast, SeqNum: 5})
	stream.Send(model.InboundMessage{Kind: model.InboundServerBroadcast, SeqNum: 6})
	stream.Send(model.InboundMessage{Kind: model.InboundServerBroadcast, SeqNum: 8})

	require.Eventually(t, func() bool { return sk.Len() == 1 }, time.Second, 2*time.Millisecond)

	var msg, ok = sk.PopPending()
	require.True(t, ok)
	assert.Equal(t, model.OutboundClientInitSync, msg.Kind)

	stream.Fail(io.EOF)
	require.NoError(t, <-done)
}

func TestObserver_RapidGapStorm_CoalescesToOneCatchup(t *testing.T) {
	var replica = fake.NewReplica()
	var obs, _, sk, _ = newHarness(t, replica)

	var stream = newChanStream()
	var done = make(chan error, 1)
	go func() { done <- obs.Run(context.Background(), stream) }()

	// Prime broadcast_seq, then feed a burst of discontinuous seq_nums in
	// rapid succession; each should cancel the prior debounce timer.
	var seqs = []uint32{1, 3, 6, 10, 15}
	for _, n := range seqs {
		stream.Send(model.InboundMessage{Kind: model.InboundServerBroadcast, SeqNum: n})
	}

	// Give the storm time to fully land, then wait well past one debounce
	// window: only the *last* fault's timer should still be live.
	time.Sleep(testDebounce / 2)
	require.Eventually(t, func() bool { return sk.Len() == 1 }, time.Second, 2*time.Millisecond)

	// Confirm no further catch-up arrives after a second debounce window.
	time.Sleep(2 * testDebounce)
	assert.Equal(t, 1, sk.Len())

	stream.Fail(io.EOF)
	require.NoError(t, <-done)
}

func TestObserver_MissUpdateAck_SchedulesDebouncedCatchup(t *testing.T) {
	var replica = fake.NewReplica()
	var obs, _, sk, _ = newHarness(t, replica)

	var stream = newChanStream()
	var done = make(chan error, 1)
	go func() { done <- obs.Run(context.Background(), stream) }()

	stream.Send(model.InboundMessage{Kind: model.InboundClientAck, AckCode: model.AckMissUpdate, AckPayload: []byte("server-sv")})

	require.Eventually(t, func() bool { return sk.Len() == 1 }, time.Second, 2*time.Millisecond)

	stream.Fail(io.EOF)
	require.NoError(t, <-done)
}

func TestObserver_CannotApplyUpdateAck_CatchesUpImmediately(t *testing.T) {
	var replica = fake.NewReplica()
	var obs, _, sk, _ = newHarness(t, replica)

	var stream = newChanStream()
	var done = make(chan error, 1)
	go func() { done <- obs.Run(context.Background(), stream) }()

	stream.Send(model.InboundMessage{Kind: model.InboundClientAck, AckCode: model.AckCannotApplyUpdate})

	// No debounce on this path: the message should arrive well before
	// testDebounce elapses.
	require.Eventually(t, func() bool { return sk.Len() == 1 }, testDebounce/2, time.Millisecond)

	stream.Fail(io.EOF)
	require.NoError(t, <-done)
}

func TestObserver_SuccessAck_AdvancesAckSeqAndDrainsWindow(t *testing.T) {
	var replica = fake.NewReplica()
	var obs, _, sk, tracker = newHarness(t, replica)

	var queued = sk.QueueMsg(func(id uint32) model.OutboundMessage {
		return model.OutboundMessage{Kind: model.OutboundClientUpdateSync, ObjectID: "doc-1"}
	})
	_, _ = sk.PopPending()

	var stream = newChanStream()
	var done = make(chan error, 1)
	go func() { done <- obs.Run(context.Background(), stream) }()

	stream.Send(model.InboundMessage{
		Kind:     model.InboundClientAck,
		AckCode:  model.AckSuccess,
		HasMsgID: true,
		MsgID:    queued.MsgID,
	})

	require.Eventually(t, func() bool { return tracker.AckSeq() == queued.MsgID }, time.Second, 2*time.Millisecond)
	assert.Equal(t, 0, sk.Len(), "a Success ack never stages an outbound message")

	stream.Fail(io.EOF)
	require.NoError(t, <-done)
}

func TestObserver_AckLeadsBroadcastTwice_TriggersCatchup(t *testing.T) {
	var replica = fake.NewReplica()
	var obs, _, sk, tracker = newHarness(t, replica)

	var stream = newChanStream()
	var done = make(chan error, 1)
	go func() { done <- obs.Run(context.Background(), stream) }()

	stream.Send(model.InboundMessage{Kind: model.InboundServerBroadcast, SeqNum: 9})
	stream.Send(model.InboundMessage{Kind: model.InboundClientAck, AckCode: model.AckSuccess, HasMsgID: true, MsgID: 10})

	// A single ack-leads-broadcast observation is tolerated.
	time.Sleep(2 * testDebounce)
	assert.Equal(t, 0, sk.Len())

	stream.Send(model.InboundMessage{Kind: model.InboundClientAck, AckCode: model.AckSuccess, HasMsgID: true, MsgID: 11})

	require.Eventually(t, func() bool { return sk.Len() == 1 }, time.Second, 2*time.Millisecond)
	var msg, ok = sk.PopPending()
	require.True(t, ok)
	assert.Equal(t, model.OutboundClientInitSync, msg.Kind)
	assert.Equal(t, uint32(11), tracker.BroadcastSeq(), "broadcast_seq resets to ack_seq on the second strike")

	stream.Fail(io.EOF)
	require.NoError(t, <-done)
}

func TestObserver_WeakReplicaExpiry_TerminatesCleanly(t *testing.T) {
	var replica = fake.NewReplica()
	var obs, weakRef, sk, _ = newHarness(t, replica)

	var stream = newChanStream()
	var done = make(chan error, 1)
	go func() { done <- obs.Run(context.Background(), stream) }()

	stream.Send(model.InboundMessage{Kind: model.InboundServerBroadcast, SeqNum: 1})
	stream.Send(model.InboundMessage{Kind: model.InboundServerBroadcast, SeqNum: 2})
	weakRef.Expire()
	stream.Send(model.InboundMessage{Kind: model.InboundServerBroadcast, SeqNum: 3})

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("observer did not terminate after replica reference expired")
	}
	assert.Equal(t, 0, sk.Len(), "no catch-up request should be queued once the replica is gone")
}

func TestObserver_TransportError_TerminatesWithError(t *testing.T) {
	var replica = fake.NewReplica()
	var obs, _, _, _ = newHarness(t, replica)

	var stream = newChanStream()
	var done = make(chan error, 1)
	go func() { done <- obs.Run(context.Background(), stream) }()

	var boom = errors.New("connection reset")
	stream.Fail(boom)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("observer did not terminate after transport error")
	}
}

func TestObserver_FolderOverrideFault_TerminatesObserver(t *testing.T) {
	var replica = fake.NewReplica()
	replica.ValidateFunc = func(string) error { return errors.New("dangling reference") }

	var sk = sink.New(seqtracker.New(), nil)
	var tracker = seqtracker.New()
	var decodeSyncStep1 = func([]byte) ([]model.Frame, error) {
		return []model.Frame{{Kind: model.FrameSyncStep1}}, nil
	}
	var engine = protocol.New(decodeSyncStep1, sk, nil)
	var scheduler = catchup.New(func(model.Frame) ([]byte, error) { return nil, nil }, nil)
	var object = model.SyncObject{ObjectID: "folder-1", WorkspaceID: "ws-1", CollabType: model.CollabTypeFolder}
	var obs = observer.New(object, model.EmptyOrigin, fake.NewWeakRef(replica).Weak(), observer.Strong(sk), tracker, engine, scheduler, testDebounce, nil)

	var stream = newChanStream()
	var done = make(chan error, 1)
	go func() { done <- obs.Run(context.Background(), stream) }()

	stream.Send(model.InboundMessage{Kind: model.InboundServerBroadcast, SeqNum: 1, Payload: []byte("x")})

	select {
	case err := <-done:
		assert.NoError(t, err, "termination from a fault is a clean shutdown, not a reported error")
	case <-time.After(time.Second):
		t.Fatal("observer did not terminate after OverrideWithIncorrectData")
	}
	assert.Equal(t, 0, sk.Len(), "no reply may be sent once the folder guard rejects the replica")
}
