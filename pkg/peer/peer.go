// Package peer implements the per-connection protocol state machine:
// handshake validation, the four priority outbound channels, and the
// peer registry the request layer and broadcaster consult to pick
// targets by advertised sync window.
package peer

import (
	"sync/atomic"

	"github.com/iotaledger/hive.go/core/syncutils"

	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
)

// outboundQueueSize bounds each of the four priority channels. A full
// broadcast channel causes the send to be dropped for that peer; a full
// request or heartbeat channel blocks the caller, matching §4.C's "never
// dropped" guarantee for those two classes.
const outboundQueueSize = 64

// Peer is a single connection's shared state, read by the reader half
// and written by the writer half.
type Peer struct {
	ID string

	stateMu syncutils.RWMutex
	state   State

	latestSolidMilestoneIndex uint32
	pruningIndex              uint32
	latestMilestoneIndex      uint32

	milestoneRequestCh chan []byte
	messageRequestCh   chan []byte
	broadcastCh        chan []byte
	heartbeatCh        chan []byte

	Metrics *Metrics
}

// NewPeer creates a Peer in StateAwaitingConnection.
func NewPeer(id string) *Peer {
	return &Peer{
		ID:                  id,
		state:               StateAwaitingConnection,
		milestoneRequestCh:  make(chan []byte, outboundQueueSize),
		messageRequestCh:    make(chan []byte, outboundQueueSize),
		broadcastCh:         make(chan []byte, outboundQueueSize),
		heartbeatCh:         make(chan []byte, outboundQueueSize),
		Metrics:             &Metrics{},
	}
}

// State returns the peer's current state.
func (p *Peer) State() State {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()

	return p.state
}

// SetState transitions the peer to s.
func (p *Peer) SetState(s State) {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	p.state = s
}

// UpdateFromHeartbeat records the peer's advertised sync window.
func (p *Peer) UpdateFromHeartbeat(latestSolid, pruning, latest uint32) {
	atomic.StoreUint32(&p.latestSolidMilestoneIndex, latestSolid)
	atomic.StoreUint32(&p.pruningIndex, pruning)
	atomic.StoreUint32(&p.latestMilestoneIndex, latest)
}

// LatestSolidMilestoneIndex returns the peer's last-advertised solid index.
func (p *Peer) LatestSolidMilestoneIndex() milestonepkg.Index {
	return milestonepkg.Index(atomic.LoadUint32(&p.latestSolidMilestoneIndex))
}

// LatestMilestoneIndex returns the peer's last-advertised latest index.
func (p *Peer) LatestMilestoneIndex() milestonepkg.Index {
	return milestonepkg.Index(atomic.LoadUint32(&p.latestMilestoneIndex))
}

// HasData reports whether the peer is expected to already hold the
// message/milestone at index, per the strict request-selection pass.
func (p *Peer) HasData(index milestonepkg.Index) bool {
	return index <= p.LatestSolidMilestoneIndex()
}

// MaybeHasData reports whether the peer might hold the message/milestone
// at index, per the loose request-selection pass.
func (p *Peer) MaybeHasData(index milestonepkg.Index) bool {
	return index <= p.LatestMilestoneIndex()
}

// EnqueueMilestoneRequest blocks until frame is queued; milestone
// requests are never dropped.
func (p *Peer) EnqueueMilestoneRequest(frame []byte) {
	p.milestoneRequestCh <- frame
}

// EnqueueMessageRequest blocks until frame is queued; message requests
// are never dropped.
func (p *Peer) EnqueueMessageRequest(frame []byte) {
	p.messageRequestCh <- frame
}

// EnqueueHeartbeat blocks until frame is queued; heartbeats are never dropped.
func (p *Peer) EnqueueHeartbeat(frame []byte) {
	p.heartbeatCh <- frame
}

// EnqueueBroadcast attempts to queue frame without blocking; it reports
// false if the broadcast channel is full and the frame was dropped, per
// §4.C's back-pressure policy.
func (p *Peer) EnqueueBroadcast(frame []byte) bool {
	select {
	case p.broadcastCh <- frame:
		return true
	default:
		return false
	}
}

// Close drops all four outbound channels. Safe to call once.
func (p *Peer) Close() {
	close(p.milestoneRequestCh)
	close(p.messageRequestCh)
	close(p.broadcastCh)
	close(p.heartbeatCh)
}

// Send is implemented by the transport the writer loop uses to put
// bytes on the wire.
type Send func(frame []byte) error

// RunWriter is the peer's writer loop: it drains the four channels until
// shutdown fires or the peer disconnects. A waiting milestone-request
// frame is always sent first; otherwise the loop sends from whichever of
// the four channels is ready, with no fixed order among the
// message-request, heartbeat and broadcast channels. It matches
// §4.C's "outbound sends are serialized" and §5's "no worker suspends
// while holding a write guard" -- this loop holds no tangle lock at all.
func (p *Peer) RunWriter(send Send, shutdown <-chan struct{}) {
	for {
		select {
		case <-shutdown:
			return
		case frame, ok := <-p.milestoneRequestCh:
			if !ok {
				return
			}
			_ = send(frame)
			continue
		default:
		}

		select {
		case <-shutdown:
			return
		case frame, ok := <-p.milestoneRequestCh:
			if !ok {
				return
			}
			_ = send(frame)
		case frame, ok := <-p.messageRequestCh:
			if !ok {
				return
			}
			_ = send(frame)
		case frame, ok := <-p.heartbeatCh:
			if !ok {
				return
			}
			_ = send(frame)
		case frame, ok := <-p.broadcastCh:
			if !ok {
				return
			}
			_ = send(frame)
		}
	}
}
