package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
)

const (
	handshakeBodyLength        = 2 + 8 + 32 + 1 + 2
	milestoneRequestBodyLength = 4
	messageRequestBodyLength   = hornet.MessageIDLength
	heartbeatBodyLength        = 4 + 4 + 4 + 1 + 1

	// maxUncompressedTransactionLength is the size of an 8019-trit
	// transaction payload once fully inflated (1604 bytes at five trits
	// per byte); compressed frames are always at or below this length.
	maxUncompressedTransactionLength = 1604
)

// ErrMalformedBody is returned when a payload of the correct length still
// fails to decode into a well-formed message body.
var ErrMalformedBody = errors.New("wire: malformed message body")

// Handshake is the body of a 0x01 frame.
type Handshake struct {
	Port              uint16
	TimestampMs       uint64
	CoordinatorPubKey [32]byte
	MWM               uint8
	Version           uint16
}

// EncodeHandshake encodes h as a complete frame (header + body).
func EncodeHandshake(h Handshake) []byte {
	body := make([]byte, handshakeBodyLength)
	binary.LittleEndian.PutUint16(body[0:2], h.Port)
	binary.LittleEndian.PutUint64(body[2:10], h.TimestampMs)
	copy(body[10:42], h.CoordinatorPubKey[:])
	body[42] = h.MWM
	binary.LittleEndian.PutUint16(body[43:45], h.Version)

	return frame(MessageTypeHandshake, body)
}

// DecodeHandshake decodes body (without the header) into a Handshake.
func DecodeHandshake(body []byte) (Handshake, error) {
	if len(body) != handshakeBodyLength {
		return Handshake{}, ErrMalformedBody
	}

	var h Handshake
	h.Port = binary.LittleEndian.Uint16(body[0:2])
	h.TimestampMs = binary.LittleEndian.Uint64(body[2:10])
	copy(h.CoordinatorPubKey[:], body[10:42])
	h.MWM = body[42]
	h.Version = binary.LittleEndian.Uint16(body[43:45])

	return h, nil
}

// MilestoneRequest is the body of a 0x03 frame. An Index of 0 means
// "latest".
type MilestoneRequest struct {
	Index uint32
}

// EncodeMilestoneRequest encodes r as a complete frame.
func EncodeMilestoneRequest(r MilestoneRequest) []byte {
	body := make([]byte, milestoneRequestBodyLength)
	binary.LittleEndian.PutUint32(body, r.Index)

	return frame(MessageTypeMilestoneRequest, body)
}

// DecodeMilestoneRequest decodes body into a MilestoneRequest.
func DecodeMilestoneRequest(body []byte) (MilestoneRequest, error) {
	if len(body) != milestoneRequestBodyLength {
		return MilestoneRequest{}, ErrMalformedBody
	}

	return MilestoneRequest{Index: binary.LittleEndian.Uint32(body)}, nil
}

// MessageRequest is the body of a 0x05 frame.
type MessageRequest struct {
	MessageID hornet.MessageId
}

// EncodeMessageRequest encodes r as a complete frame.
func EncodeMessageRequest(r MessageRequest) []byte {
	body := make([]byte, messageRequestBodyLength)
	copy(body, r.MessageID[:])

	return frame(MessageTypeMessageRequest, body)
}

// DecodeMessageRequest decodes body into a MessageRequest.
func DecodeMessageRequest(body []byte) (MessageRequest, error) {
	if len(body) != messageRequestBodyLength {
		return MessageRequest{}, ErrMalformedBody
	}

	id, err := hornet.MessageIDFromBytes(body)
	if err != nil {
		return MessageRequest{}, err
	}

	return MessageRequest{MessageID: id}, nil
}

// Heartbeat is the body of a 0x06 frame.
type Heartbeat struct {
	LatestSolidMilestoneIndex uint32
	PruningIndex              uint32
	LatestMilestoneIndex      uint32
	ConnectedPeers            uint8
	SyncedPeers               uint8
}

// EncodeHeartbeat encodes h as a complete frame.
func EncodeHeartbeat(h Heartbeat) []byte {
	body := make([]byte, heartbeatBodyLength)
	binary.LittleEndian.PutUint32(body[0:4], h.LatestSolidMilestoneIndex)
	binary.LittleEndian.PutUint32(body[4:8], h.PruningIndex)
	binary.LittleEndian.PutUint32(body[8:12], h.LatestMilestoneIndex)
	body[12] = h.ConnectedPeers
	body[13] = h.SyncedPeers

	return frame(MessageTypeHeartbeat, body)
}

// DecodeHeartbeat decodes body into a Heartbeat.
func DecodeHeartbeat(body []byte) (Heartbeat, error) {
	if len(body) != heartbeatBodyLength {
		return Heartbeat{}, ErrMalformedBody
	}

	var h Heartbeat
	h.LatestSolidMilestoneIndex = binary.LittleEndian.Uint32(body[0:4])
	h.PruningIndex = binary.LittleEndian.Uint32(body[4:8])
	h.LatestMilestoneIndex = binary.LittleEndian.Uint32(body[8:12])
	h.ConnectedPeers = body[12]
	h.SyncedPeers = body[13]

	return h, nil
}

// Transaction is the body of a 0x04 frame: the (possibly compressed)
// bytes of a legacy ternary transaction payload.
type Transaction struct {
	CompressedBytes []byte
}

// EncodeTransaction encodes t as a complete frame. Callers are expected
// to have already compressed the bytes via CompressTransactionBytes.
func EncodeTransaction(t Transaction) []byte {
	return frame(MessageTypeTransaction, t.CompressedBytes)
}

// DecodeTransaction decodes body into a Transaction. Decompression into
// the fixed 1604-byte layout is performed separately by
// InflateTransactionBytes once the pipeline is ready to parse it.
func DecodeTransaction(body []byte) (Transaction, error) {
	if len(body) == 0 || len(body) > maxUncompressedTransactionLength {
		return Transaction{}, ErrMalformedBody
	}

	out := make([]byte, len(body))
	copy(out, body)

	return Transaction{CompressedBytes: out}, nil
}

func frame(t MessageType, body []byte) []byte {
	out := make([]byte, HeaderLength+len(body))
	copy(out, EncodeHeader(Header{Type: t, PayloadLength: uint16(len(body))}))
	copy(out[HeaderLength:], body)

	return out
}
