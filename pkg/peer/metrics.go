package peer

import "sync/atomic"

// Metrics holds per-peer counters, distinct from the node-wide
// pkg/metrics counters: these are scoped to a single connection and
// surfaced e.g. in a peer-info REST response.
type Metrics struct {
	messagesReceived uint64
	invalidFrames     uint64
}

// IncMessagesReceived increments the per-peer received-message counter.
func (m *Metrics) IncMessagesReceived() { atomic.AddUint64(&m.messagesReceived, 1) }

// MessagesReceived returns the per-peer received-message counter.
func (m *Metrics) MessagesReceived() uint64 { return atomic.LoadUint64(&m.messagesReceived) }

// IncInvalidFrames increments the per-peer invalid-frame counter.
func (m *Metrics) IncInvalidFrames() { atomic.AddUint64(&m.invalidFrames, 1) }

// InvalidFrames returns the per-peer invalid-frame counter.
func (m *Metrics) InvalidFrames() uint64 { return atomic.LoadUint64(&m.invalidFrames) }
