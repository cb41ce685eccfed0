package milestone_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/core/events"

	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/metrics"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestone"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
	"github.com/iotaledger/hornet-tangle-core/pkg/peer"
	"github.com/iotaledger/hornet-tangle-core/pkg/request"
	"github.com/iotaledger/hornet-tangle-core/pkg/tangle"
)

func id(b byte) hornet.MessageId {
	var msgID hornet.MessageId
	msgID[0] = b

	return msgID
}

type fakeRegistry struct {
	peers []*peer.Peer
}

func (f *fakeRegistry) Peers() []*peer.Peer { return f.peers }

// drainWriter runs p's writer loop against a capturing send function for a
// short window and returns the frames it sent, letting tests observe what
// was enqueued without reaching into the peer's private channels.
func drainWriter(p *peer.Peer) [][]byte {
	var mu sync.Mutex
	var frames [][]byte

	shutdown := make(chan struct{})
	done := make(chan struct{})

	go func() {
		p.RunWriter(func(frame []byte) error {
			mu.Lock()
			frames = append(frames, frame)
			mu.Unlock()

			return nil
		}, shutdown)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	close(shutdown)
	<-done

	mu.Lock()
	defer mu.Unlock()

	return frames
}

// Test_AdvanceOnSolidMilestone covers scenario S5: a known, solid
// milestone at latest_solid+1 is confirmed, the solid index bumps exactly
// once, LatestSolidMilestoneChanged fires once, and a heartbeat is
// enqueued for every connected peer.
func Test_AdvanceOnSolidMilestone(t *testing.T) {
	tng := tangle.New(nil)
	tng.UpdateLatestSolidMilestoneIndex(41)
	tng.UpdateLatestMilestoneIndex(42)

	sep := id(0)
	tng.AddSolidEntryPoint(sep)

	msID := id(42)
	require.True(t, tng.Insert(msID, &tangle.Message{Parent1: sep, Parent2: sep}))
	require.True(t, tng.UpdateMetadata(msID, func(meta *tangle.Metadata) { meta.SetSolid(true) }))
	tng.AddMilestone(42, msID)

	connected := peer.NewPeer("connected")
	connected.SetState(peer.StateConnected)
	disconnected := peer.NewPeer("disconnected")
	disconnected.SetState(peer.StateDisconnected)
	reg := &fakeRegistry{peers: []*peer.Peer{connected, disconnected}}

	messages := request.NewMessageRequester(tng, reg, metrics.New(), nil)
	milestones := request.NewMilestoneRequester(tng, reg, metrics.New(), nil)

	s := milestone.NewSolidifier(tng, messages, milestones, reg, nil)

	var fired int
	s.Events.LatestSolidMilestoneChanged.Attach(events.NewClosure(func(index milestonepkg.Index) {
		fired++
		assert.Equal(t, milestonepkg.Index(42), index)
	}))

	require.True(t, s.Advance(time.Now()))
	assert.Equal(t, milestonepkg.Index(42), tng.GetLatestSolidMilestoneIndex())
	assert.Equal(t, 1, fired)

	frames := drainWriter(connected)
	assert.NotEmpty(t, frames)

	disconnectedFrames := drainWriter(disconnected)
	assert.Empty(t, disconnectedFrames)

	// Advancing again with no milestone known for 43 must not bump further.
	require.False(t, s.Advance(time.Now()))
	assert.Equal(t, milestonepkg.Index(42), tng.GetLatestSolidMilestoneIndex())
}

// Test_AdvanceRequestsWindowWhenUnknown covers §4.F's first branch: when
// the target milestone is not yet known, the solidifier opens a request
// window instead of bumping the index.
func Test_AdvanceRequestsWindowWhenUnknown(t *testing.T) {
	tng := tangle.New(nil)

	reg := &fakeRegistry{peers: []*peer.Peer{}}
	messages := request.NewMessageRequester(tng, reg, metrics.New(), nil)
	milestones := request.NewMilestoneRequester(tng, reg, metrics.New(), nil)

	s := milestone.NewSolidifier(tng, messages, milestones, reg, nil)

	require.False(t, s.Advance(time.Now()))
	assert.Equal(t, milestonepkg.Index(0), tng.GetLatestSolidMilestoneIndex())
}
