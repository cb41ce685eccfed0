package pipeline_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hornet-tangle-core/pkg/crypto"
	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/metrics"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
	"github.com/iotaledger/hornet-tangle-core/pkg/peer"
	"github.com/iotaledger/hornet-tangle-core/pkg/pipeline"
	"github.com/iotaledger/hornet-tangle-core/pkg/request"
	"github.com/iotaledger/hornet-tangle-core/pkg/tangle"
	"github.com/iotaledger/hornet-tangle-core/pkg/ternary"
	"github.com/iotaledger/hornet-tangle-core/pkg/wire"
)

type fakePropagator struct {
	enqueued []hornet.MessageId
}

func (f *fakePropagator) Enqueue(messageID hornet.MessageId) {
	f.enqueued = append(f.enqueued, messageID)
}

type fakeValidator struct {
	calls int
}

func (f *fakeValidator) Validate(hornet.MessageId, milestonepkg.Milestone, time.Time) error {
	f.calls++

	return nil
}

type fakePeerRegistry struct {
	peers []*peer.Peer
}

func (f *fakePeerRegistry) Peers() []*peer.Peer { return f.peers }

// zeroTransaction is an all-zero inflated transaction buffer.
// BytesToTrits pads/truncates with zero trits regardless of input
// length, so an all-zero buffer decodes to an all-zero trit array:
// every field parses to its zero value (Value 0, Timestamp 0) with
// every tryte-string field reading as 81/27/etc "9"s, the all-zero
// balanced-ternary digit. That is enough to exercise dedup and the
// insertion/fan-out stages without constructing a real signed
// transaction.
func zeroTransaction() []byte {
	return make([]byte, 1604)
}

// zeroTransactionMessageID is the id the tangle assigns zeroTransaction,
// computed the same way the pipeline does: hash its bytes with the test
// sponge, fold the digest into a legacy hash, then into a MessageId.
func zeroTransactionMessageID(raw []byte) hornet.MessageId {
	digest := crypto.Blake2bSponge{}.Sum(raw)

	return ternary.HashToMessageID(ternary.HashFromBytes(digest))
}

// zeroTransactionParentID is the trunk/branch parent id a zero
// transaction carries: the all-zero-trit "9...9" hash, reinterpreted as
// a MessageId the same way any parent reference is.
func zeroTransactionParentID() hornet.MessageId {
	return ternary.HashToMessageID(strings.Repeat("9", 81))
}

func newTestPipeline(t *testing.T, propagator *fakePropagator, peers *fakePeerRegistry, validator *fakeValidator) (*pipeline.Pipeline, *tangle.Tangle, *metrics.Metrics, *request.MessageRequester) {
	t.Helper()

	tng := tangle.New(nil)
	m := metrics.New()
	requester := request.NewMessageRequester(tng, peers, m, nil)

	p := pipeline.New(tng, crypto.Blake2bSponge{}, pipeline.Config{AllowedDrift: time.Hour}, propagator, requester, validator, peers, m, nil)
	p.Start(make(chan struct{}))
	t.Cleanup(p.Stop)

	return p, tng, m, requester
}

func Test_DuplicateTransactionDedup(t *testing.T) {
	propagator := &fakePropagator{}
	peers := &fakePeerRegistry{}
	p, tng, m, _ := newTestPipeline(t, propagator, peers, &fakeValidator{})

	raw := zeroTransaction()
	messageID := zeroTransactionMessageID(raw)

	p.Submit("peer-a", raw)
	require.Eventually(t, func() bool {
		return m.NewTransactions() == 1
	}, time.Second, time.Millisecond)

	p.Submit("peer-a", raw)
	require.Eventually(t, func() bool {
		return m.KnownTransactions() == 1
	}, time.Second, time.Millisecond)

	assert.EqualValues(t, 1, m.NewTransactions())
	assert.EqualValues(t, 1, m.KnownTransactions())
	assert.True(t, tng.Contains(messageID))
	require.Len(t, propagator.enqueued, 1)
	assert.Equal(t, messageID, propagator.enqueued[0])
}

// captureWriter runs a Peer's writer loop and records every frame it
// sends, for asserting on broadcast fan-out.
func captureWriter(t *testing.T, p *peer.Peer) (frames *[][]byte, stop func()) {
	t.Helper()

	var sent [][]byte
	shutdown := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		p.RunWriter(func(frame []byte) error {
			sent = append(sent, frame)

			return nil
		}, shutdown)
	}()

	return &sent, func() {
		close(shutdown)
		<-done
	}
}

func Test_NewTransactionBroadcastsExceptToSource(t *testing.T) {
	propagator := &fakePropagator{}
	source := peer.NewPeer("source")
	other := peer.NewPeer("other")
	peers := &fakePeerRegistry{peers: []*peer.Peer{source, other}}
	p, _, m, _ := newTestPipeline(t, propagator, peers, &fakeValidator{})

	raw := zeroTransaction()
	p.Submit(source.ID, raw)
	require.Eventually(t, func() bool {
		return m.NewTransactions() == 1
	}, time.Second, time.Millisecond)

	sourceFrames, stopSource := captureWriter(t, source)
	otherFrames, stopOther := captureWriter(t, other)
	time.Sleep(10 * time.Millisecond)
	stopSource()
	stopOther()

	assert.Empty(t, *sourceFrames)
	require.Len(t, *otherFrames, 1)

	// the broadcast frame must carry the compressed body, not the fully
	// inflated buffer Submit received: a zero transaction's trailing
	// zero bytes are elided entirely, so the frame's body is empty and
	// its total length is just the 3-byte header, far short of
	// HeaderLength+len(raw).
	wantFrame := wire.EncodeTransaction(wire.Transaction{CompressedBytes: wire.CompressTransactionBytes(raw)})
	assert.Equal(t, wantFrame, (*otherFrames)[0])
	assert.Less(t, len((*otherFrames)[0]), wire.HeaderLength+len(raw))
}

func Test_RequestedTransactionIsNotRebroadcast(t *testing.T) {
	propagator := &fakePropagator{}
	source := peer.NewPeer("source")
	other := peer.NewPeer("other")
	peers := &fakePeerRegistry{peers: []*peer.Peer{source, other}}
	p, _, m, requester := newTestPipeline(t, propagator, peers, &fakeValidator{})

	raw := zeroTransaction()
	messageID := zeroTransactionMessageID(raw)
	requester.Requested().Mark(messageID, 1, time.Now())

	p.Submit(source.ID, raw)
	require.Eventually(t, func() bool {
		return m.NewTransactions() == 1
	}, time.Second, time.Millisecond)

	sourceFrames, stopSource := captureWriter(t, source)
	otherFrames, stopOther := captureWriter(t, other)
	time.Sleep(10 * time.Millisecond)
	stopSource()
	stopOther()

	assert.Empty(t, *sourceFrames)
	assert.Empty(t, *otherFrames)
	assert.False(t, requester.Requested().Contains(messageID))
}

func Test_NewTransactionRequestsItsParentsWhenItselfWasRequested(t *testing.T) {
	propagator := &fakePropagator{}
	target := peer.NewPeer("peer-b")
	target.UpdateFromHeartbeat(100, 0, 100)
	peers := &fakePeerRegistry{peers: []*peer.Peer{target}}
	p, _, m, requester := newTestPipeline(t, propagator, peers, &fakeValidator{})

	raw := zeroTransaction()
	messageID := zeroTransactionMessageID(raw)
	requester.Requested().Mark(messageID, 7, time.Now())

	p.Submit("peer-a", raw)
	require.Eventually(t, func() bool {
		return m.NewTransactions() == 1
	}, time.Second, time.Millisecond)

	parentID := zeroTransactionParentID()
	require.Eventually(t, func() bool {
		return requester.Requested().Contains(parentID)
	}, time.Second, time.Millisecond)
}

func Test_CoordinatorAddressedMessageIsValidatedAsMilestone(t *testing.T) {
	propagator := &fakePropagator{}
	peers := &fakePeerRegistry{}
	validator := &fakeValidator{}

	tng := tangle.New(nil)
	m := metrics.New()
	requester := request.NewMessageRequester(tng, peers, m, nil)

	coordinatorAddress := ternary.Trytes(strings.Repeat("9", 81))
	cfg := pipeline.Config{AllowedDrift: time.Hour, CoordinatorAddress: coordinatorAddress}
	p := pipeline.New(tng, crypto.Blake2bSponge{}, cfg, propagator, requester, validator, peers, m, nil)
	p.Start(make(chan struct{}))
	t.Cleanup(p.Stop)

	// A zero transaction's Address field decodes to the all-"9" address,
	// so configuring that same value as the coordinator address routes
	// it into milestone validation, even though DecodePayload will
	// reject its all-zero body as truncated.
	p.Submit("peer-a", zeroTransaction())

	require.Eventually(t, func() bool {
		return m.InvalidMessages() == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, 0, validator.calls)
}
