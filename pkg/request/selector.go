package request

import (
	"sync/atomic"

	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
	"github.com/iotaledger/hornet-tangle-core/pkg/peer"
)

// PeerRegistry supplies the current set of handshaked peers a requester
// may target. Implemented by the node's peer manager.
type PeerRegistry interface {
	Peers() []*peer.Peer
}

// selector implements §4.G's two-pass round-robin peer selection: a
// strict pass using Peer.HasData, then a loose pass using
// Peer.MaybeHasData, sharing one monotonic cursor across both passes
// and across calls, per the requester/message.rs `counter` grounding.
type selector struct {
	cursor uint64
}

func (s *selector) next(peers []*peer.Peer) *peer.Peer {
	if len(peers) == 0 {
		return nil
	}

	i := atomic.AddUint64(&s.cursor, 1) - 1

	return peers[int(i%uint64(len(peers)))]
}

// choose picks a peer able to serve index, trying the strict predicate
// for the full peer list before falling back to the loose predicate for
// a second full pass. It returns nil if no peer qualifies this round.
func (s *selector) choose(registry PeerRegistry, index milestonepkg.Index) *peer.Peer {
	peers := registry.Peers()
	if len(peers) == 0 {
		return nil
	}

	for i := 0; i < len(peers); i++ {
		if p := s.next(peers); p.HasData(index) {
			return p
		}
	}

	for i := 0; i < len(peers); i++ {
		if p := s.next(peers); p.MaybeHasData(index) {
			return p
		}
	}

	return nil
}
