package wire

import "github.com/iotaledger/hive.go/serializer/v2"

// DecodeFrame validates and decodes a complete frame (header bytes
// followed by body bytes) into its typed body. It returns the decoded
// Header alongside an interface{} holding one of Handshake,
// MilestoneRequest, Transaction, MessageRequest or Heartbeat.
//
// mode is passed straight through to ValidateFrame; use
// serializer.DeSeriModePerformValidation for any frame that arrived off
// the wire.
func DecodeFrame(b []byte, mode serializer.DeSeriMode) (Header, interface{}, error) {
	header, err := DecodeHeader(b)
	if err != nil {
		return Header{}, nil, err
	}

	if err := ValidateFrame(header, mode); err != nil {
		return header, nil, err
	}

	body := b[HeaderLength : HeaderLength+int(header.PayloadLength)]

	var payload interface{}
	switch header.Type {
	case MessageTypeHandshake:
		payload, err = DecodeHandshake(body)
	case MessageTypeMilestoneRequest:
		payload, err = DecodeMilestoneRequest(body)
	case MessageTypeTransaction:
		payload, err = DecodeTransaction(body)
	case MessageTypeMessageRequest:
		payload, err = DecodeMessageRequest(body)
	case MessageTypeHeartbeat:
		payload, err = DecodeHeartbeat(body)
	default:
		return header, nil, ErrUnknownMessageType
	}

	if err != nil {
		return header, nil, err
	}

	return header, payload, nil
}
