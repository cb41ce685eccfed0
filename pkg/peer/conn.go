package peer

import (
	"io"
	"net"
	"time"

	"github.com/iotaledger/hive.go/core/logger"
	"github.com/iotaledger/hive.go/serializer/v2"

	"github.com/iotaledger/hornet-tangle-core/pkg/config"
	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
	"github.com/iotaledger/hornet-tangle-core/pkg/tangle"
	"github.com/iotaledger/hornet-tangle-core/pkg/wire"
)

// TransactionSubmitter is the subset of pkg/pipeline.Pipeline the
// connection reader needs: somewhere to hand inflated transaction
// buffers arriving from the wire.
type TransactionSubmitter interface {
	Submit(peerID string, raw []byte)
}

// MessageSource answers an incoming MessageRequest with the raw frame
// bytes to gossip back, if the message is held.
type MessageSource interface {
	RawMessageBytes(id hornet.MessageId) ([]byte, bool)
}

// MilestoneSource answers an incoming MilestoneRequest the same way, by
// index rather than message ID.
type MilestoneSource interface {
	RawMilestoneBytes(index milestonepkg.Index) ([]byte, bool)
}

// Handlers bundles every collaborator the connection reader dispatches
// decoded frames to. A nil field is simply never exercised: a node
// running without milestone serving, for instance, leaves
// MilestoneSource nil and every incoming milestone request goes
// unanswered.
type Handlers struct {
	Transactions TransactionSubmitter
	Messages     MessageSource
	Milestones   MilestoneSource
}

// maxFrameLength is the size of the largest legal frame (header + body)
// across every message type. readFrame does not consult it: the per-type
// bound in wire.ValidateFrame is what keeps a corrupt length field from
// driving an oversized allocation.
const maxFrameLength = wire.HeaderLength + 1604

// RunReader owns conn for its lifetime: it performs the handshake
// exchange, registers p in mgr once validated, then decodes and
// dispatches frames until conn closes or a fatal protocol violation
// occurs. It always closes conn and deregisters p from mgr on return.
//
// sourcePort is the connection's observed remote port, used by
// ValidateHandshake's port-matches-handshake check; localPort is this
// node's own listen port, sent in the outbound handshake this node
// issues immediately upon accepting/dialing, racing the peer's own
// inbound handshake per §4.C.
func RunReader(conn net.Conn, p *Peer, mgr *Manager, cfg *config.NodeConfig, handlers Handlers, localPort, sourcePort uint16, log *logger.Logger) {
	defer conn.Close()
	defer mgr.Remove(p.ID)

	p.SetState(StateAwaitingHandshake)

	shutdown := make(chan struct{})
	go func() {
		defer close(shutdown)
		p.RunWriter(func(frame []byte) error {
			_, err := conn.Write(frame)

			return err
		}, shutdown)
	}()
	defer func() {
		select {
		case <-shutdown:
		default:
			close(shutdown)
		}
	}()

	localHandshake := LocalHandshake(cfg, localPort, time.Now())
	if _, err := conn.Write(wire.EncodeHandshake(localHandshake)); err != nil {
		return
	}

	remoteHandshake, err := readHandshake(conn)
	if err != nil {
		if log != nil {
			log.Debugf("peer %s: handshake read failed: %s", p.ID, err)
		}

		return
	}

	if err := ValidateHandshake(remoteHandshake, cfg, sourcePort, time.Now()); err != nil {
		if log != nil {
			log.Debugf("peer %s: handshake rejected: %s", p.ID, err)
		}

		return
	}

	p.SetState(StateConnected)
	mgr.Add(p)
	mgr.Events.PeerHandshaked.Trigger(p)

	for {
		header, body, err := readFrame(conn)
		if err != nil {
			return
		}

		payload, err := decodeBody(header, body)
		if err != nil {
			p.Metrics.IncInvalidFrames()

			continue
		}

		dispatch(p, handlers, payload)
	}
}

// readHandshake reads exactly one handshake frame from conn before any
// other frame type is accepted, per §4.C's "handshake is always first".
func readHandshake(conn net.Conn) (wire.Handshake, error) {
	header, body, err := readFrame(conn)
	if err != nil {
		return wire.Handshake{}, err
	}

	if header.Type != wire.MessageTypeHandshake {
		return wire.Handshake{}, wire.ErrUnknownMessageType
	}

	return wire.DecodeHandshake(body)
}

// readFrame reads one complete frame (header, then its declared
// payload) from conn, validating the header before the body read so a
// corrupt length field never drives an oversized allocation.
func readFrame(conn net.Conn) (wire.Header, []byte, error) {
	headerBuf := make([]byte, wire.HeaderLength)
	if _, err := io.ReadFull(conn, headerBuf); err != nil {
		return wire.Header{}, nil, err
	}

	header, err := wire.DecodeHeader(headerBuf)
	if err != nil {
		return wire.Header{}, nil, err
	}

	if err := wire.ValidateFrame(header, serializer.DeSeriModePerformValidation); err != nil {
		return header, nil, err
	}

	body := make([]byte, header.PayloadLength)
	if len(body) > 0 {
		if _, err := io.ReadFull(conn, body); err != nil {
			return header, nil, err
		}
	}

	return header, body, nil
}

// decodeBody decodes a frame whose header has already passed
// ValidateFrame in readFrame, reusing wire.DecodeFrame over the
// reassembled header+body buffer rather than duplicating its per-type
// switch. It passes DeSeriModeNoValidation since readFrame already
// range-checked the header -- re-validating here would just repeat
// the same check against bytes this connection already trusts.
func decodeBody(header wire.Header, body []byte) (interface{}, error) {
	full := make([]byte, wire.HeaderLength+len(body))
	copy(full, wire.EncodeHeader(header))
	copy(full[wire.HeaderLength:], body)

	_, payload, err := wire.DecodeFrame(full, serializer.DeSeriModeNoValidation)

	return payload, err
}

// TangleSource answers MessageSource and MilestoneSource lookups
// directly from the local store, for a node that serves requests from
// whatever it already holds rather than proxying them elsewhere.
type TangleSource struct {
	Tangle *tangle.Tangle
}

// RawMessageBytes implements MessageSource.
func (s TangleSource) RawMessageBytes(id hornet.MessageId) ([]byte, bool) {
	vertex, ok := s.Tangle.Get(id)
	if !ok {
		return nil, false
	}

	return vertex.Message.RawBytes, true
}

// RawMilestoneBytes implements MilestoneSource. An index of 0 is
// answered with the latest known milestone.
func (s TangleSource) RawMilestoneBytes(index milestonepkg.Index) ([]byte, bool) {
	if index == 0 {
		index = s.Tangle.GetLatestMilestoneIndex()
	}

	id, ok := s.Tangle.GetMilestoneMessageId(index)
	if !ok {
		return nil, false
	}

	return s.RawMessageBytes(id)
}

// dispatch routes a decoded frame body to the collaborator that owns
// it. Invalid-but-decodable content (e.g. a request for an id this node
// does not hold) is silently dropped rather than flagged, per §4.C:
// only frame-level violations count against a peer's invalid-frame
// counter.
func dispatch(p *Peer, handlers Handlers, payload interface{}) {
	switch msg := payload.(type) {
	case wire.Handshake:
		// A second handshake after the first is unexpected but not a
		// frame violation; ignore it.
	case wire.Heartbeat:
		p.UpdateFromHeartbeat(msg.LatestSolidMilestoneIndex, msg.PruningIndex, msg.LatestMilestoneIndex)
	case wire.Transaction:
		p.Metrics.IncMessagesReceived()

		if handlers.Transactions != nil {
			handlers.Transactions.Submit(p.ID, wire.InflateTransactionBytes(msg.CompressedBytes))
		}
	case wire.MessageRequest:
		if handlers.Messages == nil {
			return
		}

		if raw, ok := handlers.Messages.RawMessageBytes(msg.MessageID); ok {
			p.EnqueueBroadcast(wire.EncodeTransaction(wire.Transaction{CompressedBytes: wire.CompressTransactionBytes(raw)}))
		}
	case wire.MilestoneRequest:
		if handlers.Milestones == nil {
			return
		}

		if raw, ok := handlers.Milestones.RawMilestoneBytes(milestonepkg.Index(msg.Index)); ok {
			p.EnqueueBroadcast(wire.EncodeTransaction(wire.Transaction{CompressedBytes: wire.CompressTransactionBytes(raw)}))
		}
	}
}
