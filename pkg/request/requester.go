package request

import (
	"time"

	"github.com/iotaledger/hive.go/core/logger"

	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/metrics"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
	"github.com/iotaledger/hornet-tangle-core/pkg/tangle"
	"github.com/iotaledger/hornet-tangle-core/pkg/wire"
)

// MessageRequester schedules and retries message requests per §4.G.
type MessageRequester struct {
	*logger.WrappedLogger

	tangle    *tangle.Tangle
	peers     PeerRegistry
	requested *RequestedMessages
	metrics   *metrics.Metrics
	sel       selector
}

// NewMessageRequester creates a MessageRequester backed by tng and peers.
func NewMessageRequester(tng *tangle.Tangle, peers PeerRegistry, m *metrics.Metrics, log *logger.Logger) *MessageRequester {
	r := &MessageRequester{
		tangle:    tng,
		peers:     peers,
		requested: NewRequestedMessages(),
		metrics:   m,
	}
	r.WrappedLogger = logger.NewWrappedLogger(log)

	return r
}

// Requested exposes the underlying table, e.g. for the pipeline's
// "was this requested?" check on insertion.
func (r *MessageRequester) Requested() *RequestedMessages { return r.requested }

// Request enqueues a request for id on behalf of index if §8 property 4's
// gating conditions hold: id is not already in the tangle, is not a
// solid entry point, and has no in-flight request. It returns whether a
// request was actually sent this call.
func (r *MessageRequester) Request(id hornet.MessageId, index milestonepkg.Index) bool {
	if r.tangle.Contains(id) || r.tangle.IsSolidEntryPoint(id) || r.requested.Contains(id) {
		return false
	}

	if !r.send(id, index) {
		return false
	}

	r.requested.Mark(id, index, time.Now())
	r.metrics.IncMessagesRequested()

	return true
}

func (r *MessageRequester) send(id hornet.MessageId, index milestonepkg.Index) bool {
	target := r.sel.choose(r.peers, index)
	if target == nil {
		return false
	}

	target.EnqueueMessageRequest(wire.EncodeMessageRequest(wire.MessageRequest{MessageID: id}))

	return true
}

// RetryStale resends requests older than olderThan that can now be
// serviced, resetting their timestamp, per §4.G's 5s retry loop.
func (r *MessageRequester) RetryStale(olderThan time.Duration) int {
	now := time.Now()
	retried := 0

	for _, id := range r.requested.Stale(now, olderThan) {
		entry, ok := r.requested.Get(id)
		if !ok {
			continue
		}

		if r.tangle.Contains(id) {
			r.requested.Remove(id)

			continue
		}

		if r.send(id, entry.Index) {
			r.requested.Mark(id, entry.Index, now)
			retried++
		}
	}

	return retried
}

// MilestoneRequester schedules and retries milestone requests per §4.G.
type MilestoneRequester struct {
	*logger.WrappedLogger

	tangle    *tangle.Tangle
	peers     PeerRegistry
	requested *RequestedMilestones
	metrics   *metrics.Metrics
	sel       selector
}

// NewMilestoneRequester creates a MilestoneRequester backed by tng and peers.
func NewMilestoneRequester(tng *tangle.Tangle, peers PeerRegistry, m *metrics.Metrics, log *logger.Logger) *MilestoneRequester {
	r := &MilestoneRequester{
		tangle:    tng,
		peers:     peers,
		requested: NewRequestedMilestones(),
		metrics:   m,
	}
	r.WrappedLogger = logger.NewWrappedLogger(log)

	return r
}

// Requested exposes the underlying table.
func (r *MilestoneRequester) Requested() *RequestedMilestones { return r.requested }

// Request enqueues a request for index if it is not already known and
// has no in-flight request.
func (r *MilestoneRequester) Request(index milestonepkg.Index) bool {
	if r.tangle.ContainsMilestone(index) || r.requested.Contains(index) {
		return false
	}

	if !r.send(index) {
		return false
	}

	r.requested.Mark(index, time.Now())
	r.metrics.IncMilestonesRequested()

	return true
}

func (r *MilestoneRequester) send(index milestonepkg.Index) bool {
	target := r.sel.choose(r.peers, index)
	if target == nil {
		return false
	}

	target.EnqueueMilestoneRequest(wire.EncodeMilestoneRequest(wire.MilestoneRequest{Index: uint32(index)}))

	return true
}

// RetryStale resends requests older than olderThan that can now be
// serviced, resetting their timestamp.
func (r *MilestoneRequester) RetryStale(olderThan time.Duration) int {
	now := time.Now()
	retried := 0

	for _, index := range r.requested.Stale(now, olderThan) {
		if r.tangle.ContainsMilestone(index) {
			r.requested.Remove(index)

			continue
		}

		if r.send(index) {
			r.requested.Mark(index, now)
			retried++
		}
	}

	return retried
}
