package peer

// State is a peer connection's position in the handshake state machine.
type State int

const (
	// StateAwaitingConnection is the initial state before a TCP
	// connection has been established.
	StateAwaitingConnection State = iota
	// StateAwaitingHandshake is entered once connected; the peer is
	// expected to present (and be sent) a Handshake frame.
	StateAwaitingHandshake
	// StateConnected is entered once handshake validation succeeds.
	StateConnected
	// StateDisconnected is terminal; all channels are dropped once here.
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateAwaitingConnection:
		return "AwaitingConnection"
	case StateAwaitingHandshake:
		return "AwaitingHandshake"
	case StateConnected:
		return "Connected"
	case StateDisconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}
