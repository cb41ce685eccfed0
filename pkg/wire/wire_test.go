package wire_test

import (
	"testing"

	"github.com/iotaledger/hive.go/serializer/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/wire"
)

func Test_FrameRoundTrip_Handshake(t *testing.T) {
	h := wire.Handshake{
		Port:              1337,
		TimestampMs:       1_700_000_000_000,
		CoordinatorPubKey: [32]byte{0x52, 0xfd},
		MWM:               14,
		Version:           1,
	}

	encoded := wire.EncodeHandshake(h)
	_, decoded, err := wire.DecodeFrame(encoded, serializer.DeSeriModePerformValidation)
	require.NoError(t, err)
	assert.Equal(t, h, decoded)
}

func Test_FrameRoundTrip_MilestoneRequest(t *testing.T) {
	r := wire.MilestoneRequest{Index: 42}

	encoded := wire.EncodeMilestoneRequest(r)
	_, decoded, err := wire.DecodeFrame(encoded, serializer.DeSeriModePerformValidation)
	require.NoError(t, err)
	assert.Equal(t, r, decoded)
}

func Test_FrameRoundTrip_MessageRequest(t *testing.T) {
	var id hornet.MessageId
	id[0] = 0xAB

	r := wire.MessageRequest{MessageID: id}

	encoded := wire.EncodeMessageRequest(r)
	_, decoded, err := wire.DecodeFrame(encoded, serializer.DeSeriModePerformValidation)
	require.NoError(t, err)
	assert.Equal(t, r, decoded)
}

func Test_FrameRoundTrip_Heartbeat(t *testing.T) {
	h := wire.Heartbeat{
		LatestSolidMilestoneIndex: 41,
		PruningIndex:              1,
		LatestMilestoneIndex:      42,
		ConnectedPeers:            3,
		SyncedPeers:               2,
	}

	encoded := wire.EncodeHeartbeat(h)
	_, decoded, err := wire.DecodeFrame(encoded, serializer.DeSeriModePerformValidation)
	require.NoError(t, err)
	assert.Equal(t, h, decoded)
}

func Test_FrameRoundTrip_Transaction(t *testing.T) {
	uncompressed := make([]byte, 1604)
	uncompressed[0] = 1
	uncompressed[1] = 2

	compressed := wire.CompressTransactionBytes(uncompressed)
	assert.Less(t, len(compressed), len(uncompressed))

	encoded := wire.EncodeTransaction(wire.Transaction{CompressedBytes: compressed})
	_, decoded, err := wire.DecodeFrame(encoded, serializer.DeSeriModePerformValidation)
	require.NoError(t, err)

	tx := decoded.(wire.Transaction)
	inflated := wire.InflateTransactionBytes(tx.CompressedBytes)
	assert.Equal(t, uncompressed, inflated)
}

func Test_InvalidPayloadLengthRejected(t *testing.T) {
	header := wire.Header{Type: wire.MessageTypeHandshake, PayloadLength: 5}
	err := wire.ValidateFrame(header, serializer.DeSeriModePerformValidation)
	assert.ErrorIs(t, err, wire.ErrInvalidPayloadLength)
}

func Test_UnknownMessageTypeRejected(t *testing.T) {
	header := wire.Header{Type: 0xFF, PayloadLength: 0}
	err := wire.ValidateFrame(header, serializer.DeSeriModePerformValidation)
	assert.ErrorIs(t, err, wire.ErrUnknownMessageType)
}

// Test_NoValidationModeSkipsRangeCheck exercises the
// hive.go/serializer/v2 deserialization-mode plumbing directly: a
// header whose declared length is out of range for its type is let
// through when the caller passes DeSeriModeNoValidation, mirroring how
// a caller that already range-checked a header (pkg/peer's
// decodeBody, re-decoding a frame its own readFrame already validated)
// skips the redundant check.
func Test_NoValidationModeSkipsRangeCheck(t *testing.T) {
	header := wire.Header{Type: wire.MessageTypeHandshake, PayloadLength: 5}
	err := wire.ValidateFrame(header, serializer.DeSeriModeNoValidation)
	assert.NoError(t, err)

	// the message type itself is still checked regardless of mode.
	unknown := wire.Header{Type: 0xFF, PayloadLength: 0}
	err = wire.ValidateFrame(unknown, serializer.DeSeriModeNoValidation)
	assert.ErrorIs(t, err, wire.ErrUnknownMessageType)
}
