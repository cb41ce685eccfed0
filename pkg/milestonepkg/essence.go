package milestonepkg

import (
	"time"

	"github.com/pkg/errors"

	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
)

// MerkleProofLength is the length in bytes of a milestone merkle proof
// hash, matching the legacy protocol's 384 bit (CurlP-384-derived) hash.
const MerkleProofLength = 48

// MerkleProof is the merkle tree root hash embedded in a milestone
// essence, computed by white-flag confirmation.
type MerkleProof [MerkleProofLength]byte

// ErrMilestoneTooFewSignatures is returned when an essence carries fewer
// signatures than the configured validator threshold requires.
var ErrMilestoneTooFewSignatures = errors.New("milestone has too few signatures")

// ErrMilestoneParentsEmpty is returned when a milestone essence has no
// parents set.
var ErrMilestoneParentsEmpty = errors.New("milestone parents must not be empty")

// Essence is the signable content of a milestone: the part of the
// milestone payload the public key set signs over. It deliberately omits
// the signatures themselves, the same split coo.createMilestone's
// "essence then signature" construction uses.
type Essence struct {
	Index               Index
	Timestamp           uint32
	Parents             hornet.MessageIDs
	InclusionMerkleRoot MerkleProof
	AppliedMerkleRoot   MerkleProof
	PreviousMilestoneID hornet.MessageId
}

// Milestone is a fully signed milestone: an Essence plus the threshold-of-N
// signature set produced by the coordinator's signer set.
type Milestone struct {
	Essence    Essence
	Signatures [][]byte
	PublicKeys [][]byte
}

// Validate performs structural validation of the essence independent of
// signature verification: non-empty, sorted, deduped parents and a sane
// timestamp. Signature verification itself is delegated to the opaque
// crypto.Verifier boundary by pkg/milestone.
func (e *Essence) Validate(now time.Time, allowedFutureDrift time.Duration) error {
	if len(e.Parents) == 0 {
		return ErrMilestoneParentsEmpty
	}

	sorted := e.Parents.RemoveDupsAndSort()
	if len(sorted) != len(e.Parents) {
		return errors.New("milestone parents are not deduped/sorted")
	}

	ts := time.Unix(int64(e.Timestamp), 0)
	if ts.After(now.Add(allowedFutureDrift)) {
		return errors.New("milestone timestamp is too far in the future")
	}

	return nil
}
