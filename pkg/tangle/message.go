package tangle

import (
	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
	"github.com/iotaledger/hornet-tangle-core/pkg/ternary"
)

// PayloadType tags the kind of payload a Message carries.
type PayloadType uint8

const (
	// PayloadNone is carried by a message with no payload.
	PayloadNone PayloadType = iota
	// PayloadTransaction is carried by a legacy ternary transaction message.
	PayloadTransaction
	// PayloadMilestone is carried by a coordinator-issued milestone message.
	PayloadMilestone
	// PayloadIndexation is carried by an indexation (keyed data) message.
	PayloadIndexation
)

// Payload is implemented by every concrete payload type a Message can carry.
type Payload interface {
	PayloadType() PayloadType
}

// TransactionPayload is the legacy ternary transaction payload, the only
// payload type with a wire-level minimum-weight-magnitude requirement.
// Ternary arithmetic itself is not performed by this module; fields are
// carried as opaque trytes/hash values produced by the opaque sponge.
type TransactionPayload struct {
	Address                  ternary.Trytes
	Value                    int64
	Tag                      ternary.Trytes
	Timestamp                uint32
	Hash                     ternary.Hash
	SignatureMessageFragment ternary.Trytes
}

// PayloadType implements Payload.
func (*TransactionPayload) PayloadType() PayloadType { return PayloadTransaction }

// MilestonePayload wraps a parsed, not-yet-verified milestone essence and
// its signatures, as carried over the wire inside a Milestone-tagged message.
type MilestonePayload struct {
	Milestone milestonepkg.Milestone
}

// PayloadType implements Payload.
func (*MilestonePayload) PayloadType() PayloadType { return PayloadMilestone }

// IndexationPayload tags a message with a lookup key and arbitrary bytes.
type IndexationPayload struct {
	Index []byte
	Data  []byte
}

// PayloadType implements Payload.
func (*IndexationPayload) PayloadType() PayloadType { return PayloadIndexation }

// Message is the immutable content of a vertex: two parent references,
// an optional payload, and the exact inflated wire bytes the message
// arrived as. Message content never changes after a vertex is created;
// only its Metadata mutates.
type Message struct {
	Parent1 hornet.MessageId
	Parent2 hornet.MessageId
	Payload Payload

	// RawBytes is the uncompressed transaction buffer this message was
	// parsed from, kept verbatim so a MilestoneRequest/MessageRequest
	// responder can re-gossip exactly what was received instead of
	// re-deriving it from the parsed fields.
	RawBytes []byte
}

// Parents returns the message's two parent ids as a MessageIDs slice,
// convenient for the propagator and request layer which iterate parents
// uniformly.
func (msg *Message) Parents() hornet.MessageIDs {
	if msg.Parent1 == msg.Parent2 {
		return hornet.MessageIDs{msg.Parent1}
	}

	return hornet.MessageIDs{msg.Parent1, msg.Parent2}
}
