// Package metrics holds the node-wide counters referenced throughout
// §4 and §7 of the spec (known/new/invalid/stale transactions, invalid
// messages, handshakes received, requests issued). Counters are plain
// atomics exported to Prometheus, matching the atomic-per-counter shape
// bee-protocol's NodeMetrics/PeerMetrics structs use, backed by the
// prometheus/client_golang dependency the pack already carries
// transitively through the teacher's go.mod.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the set of node-wide counters.
type Metrics struct {
	knownTransactions   uint64
	newTransactions     uint64
	invalidTransactions uint64
	staleTransactions   uint64
	invalidMessages     uint64
	handshakeReceived   uint64
	messagesRequested   uint64
	milestonesRequested uint64
}

// New creates a zeroed Metrics set.
func New() *Metrics {
	return &Metrics{}
}

// IncKnownTransactions increments the known-transaction (dedup hit) counter.
func (m *Metrics) IncKnownTransactions() { atomic.AddUint64(&m.knownTransactions, 1) }

// KnownTransactions returns the known-transaction counter.
func (m *Metrics) KnownTransactions() uint64 { return atomic.LoadUint64(&m.knownTransactions) }

// IncNewTransactions increments the new-transaction counter.
func (m *Metrics) IncNewTransactions() { atomic.AddUint64(&m.newTransactions, 1) }

// NewTransactions returns the new-transaction counter.
func (m *Metrics) NewTransactions() uint64 { return atomic.LoadUint64(&m.newTransactions) }

// IncInvalidTransactions increments the invalid-transaction counter.
func (m *Metrics) IncInvalidTransactions() { atomic.AddUint64(&m.invalidTransactions, 1) }

// InvalidTransactions returns the invalid-transaction counter.
func (m *Metrics) InvalidTransactions() uint64 { return atomic.LoadUint64(&m.invalidTransactions) }

// IncStaleTransactions increments the stale-transaction (timestamp out
// of window) counter.
func (m *Metrics) IncStaleTransactions() { atomic.AddUint64(&m.staleTransactions, 1) }

// StaleTransactions returns the stale-transaction counter.
func (m *Metrics) StaleTransactions() uint64 { return atomic.LoadUint64(&m.staleTransactions) }

// IncInvalidMessages increments the invalid-message (frame/milestone) counter.
func (m *Metrics) IncInvalidMessages() { atomic.AddUint64(&m.invalidMessages, 1) }

// InvalidMessages returns the invalid-message counter.
func (m *Metrics) InvalidMessages() uint64 { return atomic.LoadUint64(&m.invalidMessages) }

// IncHandshakeReceived increments the handshake-received counter.
func (m *Metrics) IncHandshakeReceived() { atomic.AddUint64(&m.handshakeReceived, 1) }

// HandshakeReceived returns the handshake-received counter.
func (m *Metrics) HandshakeReceived() uint64 { return atomic.LoadUint64(&m.handshakeReceived) }

// IncMessagesRequested increments the message-request counter.
func (m *Metrics) IncMessagesRequested() { atomic.AddUint64(&m.messagesRequested, 1) }

// MessagesRequested returns the message-request counter.
func (m *Metrics) MessagesRequested() uint64 { return atomic.LoadUint64(&m.messagesRequested) }

// IncMilestonesRequested increments the milestone-request counter.
func (m *Metrics) IncMilestonesRequested() { atomic.AddUint64(&m.milestonesRequested, 1) }

// MilestonesRequested returns the milestone-request counter.
func (m *Metrics) MilestonesRequested() uint64 { return atomic.LoadUint64(&m.milestonesRequested) }

// Collectors returns the prometheus.Collector set exposing these
// counters, for registration against a prometheus.Registerer in cmd/hornetd.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "hornet_tangle_core",
			Name:      "known_transactions_total",
		}, func() float64 { return float64(m.KnownTransactions()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "hornet_tangle_core",
			Name:      "new_transactions_total",
		}, func() float64 { return float64(m.NewTransactions()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "hornet_tangle_core",
			Name:      "invalid_transactions_total",
		}, func() float64 { return float64(m.InvalidTransactions()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "hornet_tangle_core",
			Name:      "stale_transactions_total",
		}, func() float64 { return float64(m.StaleTransactions()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "hornet_tangle_core",
			Name:      "invalid_messages_total",
		}, func() float64 { return float64(m.InvalidMessages()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "hornet_tangle_core",
			Name:      "handshake_received_total",
		}, func() float64 { return float64(m.HandshakeReceived()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "hornet_tangle_core",
			Name:      "messages_requested_total",
		}, func() float64 { return float64(m.MessagesRequested()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "hornet_tangle_core",
			Name:      "milestones_requested_total",
		}, func() float64 { return float64(m.MilestonesRequested()) }),
	}
}
