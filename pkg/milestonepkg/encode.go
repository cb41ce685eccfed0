package milestonepkg

import (
	"encoding/binary"
)

// Bytes returns the canonical byte encoding of the essence: the exact
// content the coordinator's signer set signs over and the validator
// hashes to recompute the digest each signature is checked against.
func (e *Essence) Bytes() []byte {
	buf := make([]byte, 0, 4+4+len(e.Parents)*32+MerkleProofLength*2+32)

	var idxBuf, tsBuf [4]byte
	binary.LittleEndian.PutUint32(idxBuf[:], uint32(e.Index))
	binary.LittleEndian.PutUint32(tsBuf[:], e.Timestamp)
	buf = append(buf, idxBuf[:]...)
	buf = append(buf, tsBuf[:]...)

	for _, parent := range e.Parents {
		buf = append(buf, parent.Bytes()...)
	}

	buf = append(buf, e.InclusionMerkleRoot[:]...)
	buf = append(buf, e.AppliedMerkleRoot[:]...)
	buf = append(buf, e.PreviousMilestoneID.Bytes()...)

	return buf
}
