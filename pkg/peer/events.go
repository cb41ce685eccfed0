package peer

import (
	"github.com/iotaledger/hive.go/core/events"
)

// PeerCaller unpacks a single *Peer parameter.
func PeerCaller(handler interface{}, params ...interface{}) {
	handler.(func(*Peer))(params[0].(*Peer))
}

// Events are fired by the Manager as peers come and go.
type Events struct {
	// PeerAdded fires once a peer is registered, including when it
	// replaces a stale registration under the same ID.
	PeerAdded *events.Event
	// PeerRemoved fires once a peer is dropped from the registry.
	PeerRemoved *events.Event
	// PeerHandshaked fires once a peer's handshake validates and it
	// transitions to StateConnected.
	PeerHandshaked *events.Event
}

func newEvents() *Events {
	return &Events{
		PeerAdded:      events.NewEvent(PeerCaller),
		PeerRemoved:    events.NewEvent(PeerCaller),
		PeerHandshaked: events.NewEvent(PeerCaller),
	}
}
