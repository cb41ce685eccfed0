package coordinator

import (
	"context"

	"github.com/iotaledger/hornet-tangle-core/pkg/crypto"
	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
	"github.com/iotaledger/hornet-tangle-core/pkg/tangle"
)

// NewLocalMerkleRootFunc returns a ComputeMilestoneMerkleRoots that walks
// tng's past cone from parents using tangle.WalkAncestors, the same
// ancestor-walking infrastructure the solidifier and white-flag walker
// use, and folds the resulting message set into a pair of binary merkle
// trees. It stops descending into already-confirmed vertices, since those
// were already included by an earlier milestone.
func NewLocalMerkleRootFunc(tng *tangle.Tangle, sponge crypto.Sponge) ComputeMilestoneMerkleRoots {
	return func(ctx context.Context, index milestonepkg.Index, timestamp uint32, parents hornet.MessageIDs, previousMilestoneID hornet.MessageId) (*MilestoneMerkleRoots, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		included := collectUnconfirmedCone(tng, parents)

		applied := make(hornet.MessageIDs, 0, len(included))
		for _, id := range included {
			vertex, ok := tng.Get(id)
			if !ok {
				continue
			}

			payload, ok := vertex.Message.Payload.(*tangle.TransactionPayload)
			if ok && payload.Value != 0 {
				applied = append(applied, id)
			}
		}

		return &MilestoneMerkleRoots{
			InclusionMerkleRoot: merkleRoot(sponge, included),
			AppliedMerkleRoot:   merkleRoot(sponge, applied),
		}, nil
	}
}

// collectUnconfirmedCone walks the past cone of every parent, collecting
// every message reachable that has not already been confirmed by an
// earlier milestone.
func collectUnconfirmedCone(tng *tangle.Tangle, parents hornet.MessageIDs) hornet.MessageIDs {
	var included hornet.MessageIDs

	for _, parent := range parents {
		tng.WalkAncestors(parent, func(id hornet.MessageId, vertex *tangle.Vertex) bool {
			if vertex.Metadata.IsConfirmed() {
				return false
			}

			included = append(included, id)

			return true
		})
	}

	return included.RemoveDupsAndSort()
}

// merkleRoot folds ids into a binary merkle tree over sponge-hashed
// leaves, pairwise-hashing adjacent nodes up to a single root and
// carrying an odd node up unchanged. An empty id set roots to the zero
// proof.
func merkleRoot(sponge crypto.Sponge, ids hornet.MessageIDs) milestonepkg.MerkleProof {
	if len(ids) == 0 {
		return milestonepkg.MerkleProof{}
	}

	layer := make([][]byte, len(ids))
	for i, id := range ids {
		layer[i] = sponge.Sum(id.Bytes())
	}

	for len(layer) > 1 {
		next := make([][]byte, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			if i+1 == len(layer) {
				next = append(next, layer[i])

				continue
			}

			combined := append(append([]byte{}, layer[i]...), layer[i+1]...)
			next = append(next, sponge.Sum(combined))
		}
		layer = next
	}

	var proof milestonepkg.MerkleProof
	copy(proof[:], layer[0])

	return proof
}
