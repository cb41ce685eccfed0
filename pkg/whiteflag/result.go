package whiteflag

import (
	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
	"github.com/iotaledger/hornet-tangle-core/pkg/ternary"
)

// Result is the outcome of one confirmation walk: the ordered set of
// included and excluded message ids and the resulting ledger diff, per
// §4.H.
type Result struct {
	MilestoneIndex milestonepkg.Index

	IncludedMessageIDs  hornet.MessageIDs
	ExcludedConflicting hornet.MessageIDs
	ExcludedNoTx        hornet.MessageIDs

	// LedgerDiff is the net balance change per address contributed by
	// every included transaction in this cone -- the legacy
	// address-balance ledger's analogue of a UTXO diff.
	LedgerDiff map[ternary.Trytes]int64

	NumMessagesReferenced         int
	NumMessagesIncluded           int
	NumMessagesExcludedNoTx       int
	NumMessagesExcludedConflicting int
}

func newResult(index milestonepkg.Index) *Result {
	return &Result{
		MilestoneIndex: index,
		LedgerDiff:     make(map[ternary.Trytes]int64),
	}
}
