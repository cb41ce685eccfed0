package milestone

import (
	"sync"
	"time"

	"github.com/iotaledger/hive.go/core/logger"

	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
	"github.com/iotaledger/hornet-tangle-core/pkg/peer"
	"github.com/iotaledger/hornet-tangle-core/pkg/request"
	"github.com/iotaledger/hornet-tangle-core/pkg/tangle"
	"github.com/iotaledger/hornet-tangle-core/pkg/whiteflag"
	"github.com/iotaledger/hornet-tangle-core/pkg/wire"
)

// milestoneRequestRange is the width of the milestone-request window a
// solidifier opens ahead of the latest solid index when it does not yet
// know the milestone it is trying to advance to. §4.F names it
// MILESTONE_REQUEST_RANGE = 50.
const milestoneRequestRange = 50

// milestoneRequester is the subset of *request.MilestoneRequester the
// solidifier drives.
type milestoneRequester interface {
	Request(index milestonepkg.Index) bool
}

// messageRequester is the subset of *request.MessageRequester the
// solidifier drives for targeted solidification of a known-but-not-solid
// milestone message.
type messageRequester interface {
	Request(id hornet.MessageId, index milestonepkg.Index) bool
}

// Solidifier advances the tangle's latest solid milestone index one step
// at a time, per §4.F. Only one advance attempt runs at a time: Advance
// takes solidifyMu for its entire body, matching §4.F's "only one
// solidifier advance runs at a time" race protection and the Open
// Question resolution recorded in DESIGN.md (single-mutex solidifier,
// favoring gohornet's coordinator.go's serialized confirmation loop over
// a lock-free CAS ladder).
type Solidifier struct {
	*logger.WrappedLogger

	tangle     *tangle.Tangle
	messages   messageRequester
	milestones milestoneRequester
	peers      request.PeerRegistry

	solidifyMu sync.Mutex

	Events *Events
}

// NewSolidifier creates a Solidifier bound to tng, requesting through
// messages/milestones and broadcasting heartbeats to peers.
func NewSolidifier(tng *tangle.Tangle, messages messageRequester, milestones milestoneRequester, peers request.PeerRegistry, log *logger.Logger) *Solidifier {
	s := &Solidifier{
		tangle:     tng,
		messages:   messages,
		milestones: milestones,
		peers:      peers,
		Events:     newEvents(),
	}
	s.WrappedLogger = logger.NewWrappedLogger(log)

	return s
}

// Advance attempts one step of the solidifier's goal: bumping
// latest_solid_milestone_index to latest_solid_milestone_index+1. It
// returns true if the index was bumped. Callers (the node's main
// solidifier loop, on each tick) call Advance repeatedly until it
// returns false, matching §4.F's "retry at T+1" loop shape.
func (s *Solidifier) Advance(now time.Time) bool {
	s.solidifyMu.Lock()
	defer s.solidifyMu.Unlock()

	target := s.tangle.GetLatestSolidMilestoneIndex() + 1

	messageID, known := s.tangle.GetMilestoneMessageId(target)
	if !known {
		s.openRequestWindow(target)

		return false
	}

	meta, ok := s.tangle.GetMetadata(messageID)
	if !ok || !meta.IsSolid() {
		s.requestParents(messageID, target)

		return false
	}

	result, err := whiteflag.Confirm(s.tangle, messageID, target, now.UnixMilli())
	if err != nil {
		if missing, isMissing := err.(*whiteflag.MissingMessageError); isMissing {
			s.messages.Request(missing.MessageID, target)
		}

		return false
	}

	s.tangle.UpdateLatestSolidMilestoneIndex(target)
	s.Events.LatestSolidMilestoneChanged.Trigger(target)
	s.LogInfof("milestone %d confirmed: %d included, %d conflicting, %d without a transaction", target, result.NumMessagesIncluded, result.NumMessagesExcludedConflicting, result.NumMessagesExcludedNoTx)

	s.broadcastHeartbeat(target)

	return true
}

// openRequestWindow requests every milestone index in
// [latest_solid, latest_solid+W) not yet known, per §4.F's first branch.
func (s *Solidifier) openRequestWindow(target milestonepkg.Index) {
	solid := s.tangle.GetLatestSolidMilestoneIndex()

	for index := solid; index < solid+milestoneRequestRange; index++ {
		if s.tangle.ContainsMilestone(index) {
			continue
		}

		s.milestones.Request(index)
	}
}

// requestParents triggers targeted solidification of a known but
// not-yet-solid milestone message by requesting its two parents, per
// §4.F's second branch.
func (s *Solidifier) requestParents(messageID hornet.MessageId, target milestonepkg.Index) {
	vertex, ok := s.tangle.Get(messageID)
	if !ok {
		s.messages.Request(messageID, target)

		return
	}

	for _, parent := range vertex.Message.Parents() {
		s.messages.Request(parent, target)
	}
}

// broadcastHeartbeat sends an updated Heartbeat frame to every connected
// peer after a successful advance, per §4.F's "broadcast a heartbeat"
// step and scenario S5.
func (s *Solidifier) broadcastHeartbeat(target milestonepkg.Index) {
	connected := 0
	peers := s.peers.Peers()
	for _, p := range peers {
		if p.State() == peer.StateConnected {
			connected++
		}
	}

	frame := wire.EncodeHeartbeat(wire.Heartbeat{
		LatestSolidMilestoneIndex: uint32(target),
		PruningIndex:              uint32(s.tangle.GetPruningIndex()),
		LatestMilestoneIndex:      uint32(s.tangle.GetLatestMilestoneIndex()),
		ConnectedPeers:            uint8(connected),
		SyncedPeers:               uint8(connected),
	})

	for _, p := range peers {
		if p.State() == peer.StateConnected {
			p.EnqueueHeartbeat(frame)
		}
	}
}
