package pipeline

import (
	"github.com/iotaledger/hornet-tangle-core/pkg/crypto"
	"github.com/iotaledger/hornet-tangle-core/pkg/ternary"
)

const (
	// batchSize (B) is the most pending items Stage 2 accumulates before
	// hashing, regardless of whether the inbound channel still has more
	// waiting.
	batchSize = 8
	// batchThreshold (T) is the smallest batch the batched hasher is
	// worth using for; anything smaller goes through the unbatched path
	// to avoid its setup overhead.
	batchThreshold = 3
)

// item is a single pending transaction working its way through Stage 2/3.
type item struct {
	peerID string
	raw    []byte
	hash   ternary.Hash
}

// hashBatch hashes pending via the batched or unbatched sponge path
// depending on how many items it holds, per §4.D Stage 2, and returns
// the same items with hash filled in.
func hashBatch(sponge crypto.Sponge, pending []item) []item {
	if len(pending) >= batchThreshold {
		return hashBatched(sponge, pending)
	}

	return hashUnbatched(sponge, pending)
}

// hashUnbatched absorbs each pending item's bytes with its own call into
// the sponge, the straightforward path for small batches.
func hashUnbatched(sponge crypto.Sponge, pending []item) []item {
	for i := range pending {
		pending[i].hash = ternary.HashFromBytes(sponge.Sum(pending[i].raw))
	}

	return pending
}

// hashBatched absorbs every pending item's bytes before slicing results
// back out. The opaque Sponge interface gives this module no actual
// amortized cost over hashUnbatched, but the call shape is kept distinct
// from it so a real batched sponge implementation (e.g. a SIMD Curl
// variant) can be substituted here without touching Stage 2's
// threshold decision.
func hashBatched(sponge crypto.Sponge, pending []item) []item {
	digests := make([][]byte, len(pending))
	for i, it := range pending {
		digests[i] = sponge.Sum(it.raw)
	}

	for i := range pending {
		pending[i].hash = ternary.HashFromBytes(digests[i])
	}

	return pending
}
