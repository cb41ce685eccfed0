package milestonepkg

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
)

// ErrTruncatedMilestonePayload is returned when a buffer handed to
// DecodePayload ends before a declared field is fully present.
var ErrTruncatedMilestonePayload = errors.New("milestonepkg: truncated milestone payload")

// EncodePayload serializes a signed milestone into the binary form the
// coordinator embeds in the message bytes it gossips in place of an
// ordinary transaction's value-transfer fields, the same "essence plus
// trailing signature set" split the legacy bundle-based milestone
// carried inside a transaction's signature message fragment, adapted
// here to a flat binary encoding since this module's Essence is already
// a binary (non-ternary) struct.
func EncodePayload(ms Milestone) []byte {
	essence := ms.Essence.Bytes()

	buf := make([]byte, 0, 4+len(essence)+4+signatureSetSize(ms.Signatures)+4+signatureSetSize(ms.PublicKeys))

	buf = appendUint32Prefixed(buf, essence)
	buf = appendCount(buf, len(ms.Signatures))
	for _, sig := range ms.Signatures {
		buf = appendUint32Prefixed(buf, sig)
	}
	buf = appendCount(buf, len(ms.PublicKeys))
	for _, pubKey := range ms.PublicKeys {
		buf = appendUint32Prefixed(buf, pubKey)
	}

	return buf
}

// DecodePayload is the inverse of EncodePayload. It reports
// ErrTruncatedMilestonePayload if b ends before a declared field, and
// otherwise returns a Milestone whose Essence is only field-decoded, not
// yet structurally or cryptographically validated -- that is
// pkg/milestone's job.
func DecodePayload(b []byte) (Milestone, error) {
	essenceBytes, rest, err := readUint32Prefixed(b)
	if err != nil {
		return Milestone{}, err
	}

	essence, err := decodeEssence(essenceBytes)
	if err != nil {
		return Milestone{}, err
	}

	signatures, rest, err := readSlices(rest)
	if err != nil {
		return Milestone{}, err
	}

	publicKeys, rest, err := readSlices(rest)
	if err != nil {
		return Milestone{}, err
	}
	_ = rest

	return Milestone{Essence: essence, Signatures: signatures, PublicKeys: publicKeys}, nil
}

// fixedEssenceLen is the byte width of an essence's fields other than
// its variable-length Parents slice: Index, Timestamp, the two merkle
// roots and PreviousMilestoneID. EncodePayload wraps Essence.Bytes() in
// an outer length prefix, so decodeEssence can recover the parent count
// from the total length without its own separate count field.
const fixedEssenceLen = 4 + 4 + MerkleProofLength*2 + 32

func decodeEssence(b []byte) (Essence, error) {
	if len(b) < fixedEssenceLen {
		return Essence{}, ErrTruncatedMilestonePayload
	}

	if (len(b)-fixedEssenceLen)%32 != 0 {
		return Essence{}, ErrTruncatedMilestonePayload
	}
	numParents := (len(b) - fixedEssenceLen) / 32

	offset := 0
	index := binary.LittleEndian.Uint32(b[offset:])
	offset += 4
	timestamp := binary.LittleEndian.Uint32(b[offset:])
	offset += 4

	parents := make(hornet.MessageIDs, 0, numParents)
	for i := 0; i < numParents; i++ {
		parent, err := hornet.MessageIDFromBytes(b[offset : offset+32])
		if err != nil {
			return Essence{}, err
		}
		parents = append(parents, parent)
		offset += 32
	}

	var inclusionRoot, appliedRoot MerkleProof
	copy(inclusionRoot[:], b[offset:offset+MerkleProofLength])
	offset += MerkleProofLength
	copy(appliedRoot[:], b[offset:offset+MerkleProofLength])
	offset += MerkleProofLength

	previousID, err := hornet.MessageIDFromBytes(b[offset : offset+32])
	if err != nil {
		return Essence{}, err
	}

	return Essence{
		Index:               Index(index),
		Timestamp:           timestamp,
		Parents:             parents,
		InclusionMerkleRoot: inclusionRoot,
		AppliedMerkleRoot:   appliedRoot,
		PreviousMilestoneID: previousID,
	}, nil
}

func signatureSetSize(set [][]byte) int {
	size := 0
	for _, s := range set {
		size += 4 + len(s)
	}

	return size
}

func appendCount(buf []byte, n int) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(n))

	return append(buf, lenBuf[:]...)
}

func appendUint32Prefixed(buf []byte, data []byte) []byte {
	buf = appendCount(buf, len(data))

	return append(buf, data...)
}

func readUint32Prefixed(b []byte) (data, rest []byte, err error) {
	if len(b) < 4 {
		return nil, nil, ErrTruncatedMilestonePayload
	}

	n := binary.LittleEndian.Uint32(b)
	b = b[4:]
	if uint32(len(b)) < n {
		return nil, nil, ErrTruncatedMilestonePayload
	}

	return b[:n], b[n:], nil
}

func readSlices(b []byte) ([][]byte, []byte, error) {
	if len(b) < 4 {
		return nil, nil, ErrTruncatedMilestonePayload
	}

	count := binary.LittleEndian.Uint32(b)
	b = b[4:]

	out := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		data, rest, err := readUint32Prefixed(b)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, data)
		b = rest
	}

	return out, b, nil
}
