package whiteflag

import (
	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
	"github.com/iotaledger/hornet-tangle-core/pkg/tangle"
	"github.com/iotaledger/hornet-tangle-core/pkg/ternary"
)

// Confirm walks the past cone of tailID in a deterministic iterative
// depth-first order -- parent1 before parent2, matching bee-ledger's
// visit_dfs -- and applies each unvisited, unconfirmed message exactly
// once. It stops and returns a *MissingMessageError the first time it
// reaches an id that is neither stored nor a solid entry point; the
// caller (the solidifier) treats that as a failed attempt and requests
// the missing message instead of bumping the solid index.
//
// The walk never revisits a vertex already confirmed by an earlier
// milestone: such a vertex is treated as a leaf, exactly as a solid
// entry point is.
func Confirm(tng *tangle.Tangle, tailID hornet.MessageId, index milestonepkg.Index, timestampMs int64) (*Result, error) {
	visited := make(map[hornet.MessageId]struct{})
	spent := make(map[ternary.Trytes]hornet.MessageId)
	stack := []hornet.MessageId{tailID}
	result := newResult(index)

	for len(stack) > 0 {
		id := stack[len(stack)-1]

		if _, ok := visited[id]; ok {
			stack = stack[:len(stack)-1]

			continue
		}

		vertex, ok := tng.Get(id)
		if !ok {
			if tng.IsSolidEntryPoint(id) {
				visited[id] = struct{}{}
				stack = stack[:len(stack)-1]

				continue
			}

			return nil, &MissingMessageError{MessageID: id}
		}

		if vertex.Metadata.IsConfirmed() {
			visited[id] = struct{}{}
			stack = stack[:len(stack)-1]

			continue
		}

		parent1, parent2 := vertex.Message.Parent1, vertex.Message.Parent2
		_, p1Visited := visited[parent1]
		_, p2Visited := visited[parent2]

		switch {
		case p1Visited && (p2Visited || parent1 == parent2):
			applyMessage(tng, id, vertex, index, timestampMs, spent, result)
			visited[id] = struct{}{}
			stack = stack[:len(stack)-1]
		case !p1Visited:
			stack = append(stack, parent1)
		default:
			stack = append(stack, parent2)
		}
	}

	return result, nil
}

// applyMessage classifies id's payload, checks it for a ledger conflict
// against spent, and stamps the vertex's metadata as confirmed. Only a
// TransactionPayload can conflict; every other payload (or no payload) is
// referenced but excluded for carrying no transaction, per §4.H.
func applyMessage(tng *tangle.Tangle, id hornet.MessageId, vertex *tangle.Vertex, index milestonepkg.Index, timestampMs int64, spent map[ternary.Trytes]hornet.MessageId, result *Result) {
	result.NumMessagesReferenced++

	tx, ok := vertex.Message.Payload.(*tangle.TransactionPayload)
	if !ok {
		result.NumMessagesExcludedNoTx++
		result.ExcludedNoTx = append(result.ExcludedNoTx, id)
		tng.UpdateMetadata(id, func(meta *tangle.Metadata) {
			meta.Confirm(index, timestampMs)
		})

		return
	}

	conflicting := false

	if tx.Value < 0 {
		if spender, alreadySpent := spent[tx.Address]; alreadySpent && spender != id {
			conflicting = true
		} else {
			spent[tx.Address] = id
		}
	}

	tng.UpdateMetadata(id, func(meta *tangle.Metadata) {
		meta.SetConflicting(conflicting)
		meta.Confirm(index, timestampMs)
	})

	if conflicting {
		result.NumMessagesExcludedConflicting++
		result.ExcludedConflicting = append(result.ExcludedConflicting, id)

		return
	}

	if tx.Value != 0 {
		result.LedgerDiff[tx.Address] += tx.Value
	}

	result.NumMessagesIncluded++
	result.IncludedMessageIDs = append(result.IncludedMessageIDs, id)
}
