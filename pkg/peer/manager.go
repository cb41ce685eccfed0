package peer

import (
	"github.com/iotaledger/hive.go/core/syncutils"
)

// Manager is the node-wide peer registry: every connected Peer is kept
// here from the moment its reader loop starts until it disconnects. It
// satisfies pkg/request's PeerRegistry interface so the two requesters
// can pick targets without importing this package's connection-handling
// code.
type Manager struct {
	peersMu syncutils.RWMutex
	peers   map[string]*Peer

	Events *Events
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{
		peers:  make(map[string]*Peer),
		Events: newEvents(),
	}
}

// Add registers p under its ID, replacing and disconnecting any prior
// peer already registered under the same ID.
func (m *Manager) Add(p *Peer) {
	m.peersMu.Lock()
	existing, had := m.peers[p.ID]
	m.peers[p.ID] = p
	m.peersMu.Unlock()

	if had && existing != p {
		existing.SetState(StateDisconnected)
		existing.Close()
	}

	m.Events.PeerAdded.Trigger(p)
}

// Remove drops the peer registered under id, if any, and closes its
// outbound channels.
func (m *Manager) Remove(id string) {
	m.peersMu.Lock()
	p, ok := m.peers[id]
	if ok {
		delete(m.peers, id)
	}
	m.peersMu.Unlock()

	if !ok {
		return
	}

	p.SetState(StateDisconnected)
	p.Close()
	m.Events.PeerRemoved.Trigger(p)
}

// Get looks up the peer registered under id.
func (m *Manager) Get(id string) (*Peer, bool) {
	m.peersMu.RLock()
	defer m.peersMu.RUnlock()

	p, ok := m.peers[id]

	return p, ok
}

// Peers returns a snapshot of every currently registered peer,
// implementing pkg/request's PeerRegistry interface.
func (m *Manager) Peers() []*Peer {
	m.peersMu.RLock()
	defer m.peersMu.RUnlock()

	out := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		out = append(out, p)
	}

	return out
}

// Count returns the number of currently registered peers.
func (m *Manager) Count() int {
	m.peersMu.RLock()
	defer m.peersMu.RUnlock()

	return len(m.peers)
}

// SyncedCount returns the number of registered peers whose
// last-advertised latest solid milestone index is at least
// latestSolidMilestoneIndex, matching the heartbeat's SyncedPeers field
// per §4.C.
func (m *Manager) SyncedCount(latestSolidMilestoneIndex uint32) int {
	m.peersMu.RLock()
	defer m.peersMu.RUnlock()

	count := 0
	for _, p := range m.peers {
		if uint32(p.LatestSolidMilestoneIndex()) >= latestSolidMilestoneIndex {
			count++
		}
	}

	return count
}
