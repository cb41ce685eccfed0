package request_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/metrics"
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

func Test_RequestGating(t *testing.T) {
	tng := tangle.New(nil)
	p := peer.NewPeer("peer-1")
	p.UpdateFromHeartbeat(100, 0, 100)
	reg := &fakeRegistry{peers: []*peer.Peer{p}}

	r := request.NewMessageRequester(tng, reg, metrics.New(), nil)

	target := id(1)

	require.True(t, r.Request(target, milestonepkg.Index(10)))
	assert.True(t, r.Requested().Contains(target))

	// Already requested: second call is a no-op per the gating property.
	assert.False(t, r.Request(target, milestonepkg.Index(10)))

	// Once in the tangle, it is no longer eligible for request.
	r.Requested().Remove(target)
	require.True(t, tng.Insert(target, &tangle.Message{Parent1: id(2), Parent2: id(3)}))
	assert.False(t, r.Request(target, milestonepkg.Index(10)))
}

func Test_RequestSkipsSolidEntryPoints(t *testing.T) {
	tng := tangle.New(nil)
	sep := id(9)
	tng.AddSolidEntryPoint(sep)

	p := peer.NewPeer("peer-1")
	p.UpdateFromHeartbeat(100, 0, 100)
	reg := &fakeRegistry{peers: []*peer.Peer{p}}

	r := request.NewMessageRequester(tng, reg, metrics.New(), nil)

	assert.False(t, r.Request(sep, milestonepkg.Index(10)))
}

func Test_TwoPassPeerSelection(t *testing.T) {
	tng := tangle.New(nil)

	behind := peer.NewPeer("behind")
	behind.UpdateFromHeartbeat(1, 0, 50)

	ahead := peer.NewPeer("ahead")
	ahead.UpdateFromHeartbeat(40, 0, 50)

	reg := &fakeRegistry{peers: []*peer.Peer{behind, ahead}}
	r := request.NewMilestoneRequester(tng, reg, metrics.New(), nil)

	// index 40 is beyond "behind"'s solid index (1) but within its latest
	// index (50), so "behind" could only be chosen on the loose pass
	// (maybe_has_data); "ahead", with solid index 40, qualifies on the
	// strict pass.
	require.True(t, r.Request(milestonepkg.Index(40)))
}
