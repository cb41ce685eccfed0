// Package wire implements the framed gossip protocol: a 3-byte header
// (message type + big-endian payload length) followed by a tagged,
// little-endian-encoded body. Byte-for-byte compatibility with the wire
// format is required for interoperation with existing nodes, so this
// package performs no normalization beyond what §4.B specifies.
package wire

import (
	"encoding/binary"

	"github.com/iotaledger/hive.go/serializer/v2"
	"github.com/pkg/errors"
)

// MessageType identifies the kind of payload following a frame header.
type MessageType uint8

const (
	// MessageTypeHandshake is the initial peer handshake.
	MessageTypeHandshake MessageType = 0x01
	// MessageTypeMilestoneRequest requests a milestone by index.
	MessageTypeMilestoneRequest MessageType = 0x03
	// MessageTypeTransaction carries a compressed transaction payload.
	MessageTypeTransaction MessageType = 0x04
	// MessageTypeMessageRequest requests a message by id.
	MessageTypeMessageRequest MessageType = 0x05
	// MessageTypeHeartbeat carries a peer's sync window.
	MessageTypeHeartbeat MessageType = 0x06
)

// HeaderLength is the fixed size of a frame header in bytes.
const HeaderLength = 3

// Header is the fixed-size prefix of every frame.
type Header struct {
	Type          MessageType
	PayloadLength uint16
}

// ErrFrameTooShort is returned when fewer than HeaderLength bytes are
// available to decode a Header.
var ErrFrameTooShort = errors.New("wire: frame shorter than header length")

// ErrInvalidPayloadLength is returned when a decoded payload length falls
// outside the permitted range for its declared message type.
var ErrInvalidPayloadLength = errors.New("wire: payload length outside permitted range for type")

// ErrUnknownMessageType is returned when a header names a type this node
// does not understand.
var ErrUnknownMessageType = errors.New("wire: unknown message type")

// DecodeHeader reads a Header from the first HeaderLength bytes of b.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderLength {
		return Header{}, ErrFrameTooShort
	}

	return Header{
		Type:          MessageType(b[0]),
		PayloadLength: binary.BigEndian.Uint16(b[1:3]),
	}, nil
}

// EncodeHeader writes h's wire representation.
func EncodeHeader(h Header) []byte {
	b := make([]byte, HeaderLength)
	b[0] = byte(h.Type)
	binary.BigEndian.PutUint16(b[1:3], h.PayloadLength)

	return b
}

// payloadLengthRange returns the minimum and maximum permitted payload
// length for a message type, used to reject malformed frames at the
// header stage before a single byte of the body is parsed.
func payloadLengthRange(t MessageType) (min, max int, ok bool) {
	switch t {
	case MessageTypeHandshake:
		return handshakeBodyLength, handshakeBodyLength, true
	case MessageTypeMilestoneRequest:
		return milestoneRequestBodyLength, milestoneRequestBodyLength, true
	case MessageTypeTransaction:
		return 1, maxUncompressedTransactionLength, true
	case MessageTypeMessageRequest:
		return messageRequestBodyLength, messageRequestBodyLength, true
	case MessageTypeHeartbeat:
		return heartbeatBodyLength, heartbeatBodyLength, true
	default:
		return 0, 0, false
	}
}

// ValidateFrame checks that header.PayloadLength is within the permitted
// range for header.Type. A frame failing this check is discarded and the
// peer is flagged invalid per §4.B.
//
// mode follows hive.go/serializer/v2's deserialization-mode convention
// (the same `serializer.DeSeriModeNoValidation` / `DeSeriModePerformValidation`
// flag `inx-app`'s `ms.UnwrapMilestone(serializer.DeSeriModeNoValidation, nil)`
// passes into its own Unwrap call): the message type itself is always
// checked, but the payload-length range check only runs when mode carries
// `DeSeriModePerformValidation`. Every network-facing caller in this
// module passes `DeSeriModePerformValidation`; `DeSeriModeNoValidation`
// exists for trusted, already-range-checked callers (e.g. re-decoding a
// frame this node itself just encoded).
func ValidateFrame(header Header, mode serializer.DeSeriMode) error {
	min, max, ok := payloadLengthRange(header.Type)
	if !ok {
		return ErrUnknownMessageType
	}

	if !mode.HasMode(serializer.DeSeriModePerformValidation) {
		return nil
	}

	length := int(header.PayloadLength)
	if length < min || length > max {
		return ErrInvalidPayloadLength
	}

	return nil
}
