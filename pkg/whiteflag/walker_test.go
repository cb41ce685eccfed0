package whiteflag_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/tangle"
	"github.com/iotaledger/hornet-tangle-core/pkg/whiteflag"
)

func id(b byte) hornet.MessageId {
	var msgID hornet.MessageId
	msgID[0] = b

	return msgID
}

// Test_ConfirmationWithConflict covers scenario S6: two transactions both
// spend from the same address. The walker visits the first one (favored by
// the parent1-first tiebreak) and it is included; the second is flagged
// conflicting and excluded.
func Test_ConfirmationWithConflict(t *testing.T) {
	tng := tangle.New(nil)

	sep := id(0)
	tng.AddSolidEntryPoint(sep)

	t1 := id(1)
	require.True(t, tng.Insert(t1, &tangle.Message{
		Parent1: sep,
		Parent2: sep,
		Payload: &tangle.TransactionPayload{Address: "SAME9ADDRESS", Value: -10},
	}))

	t2 := id(2)
	require.True(t, tng.Insert(t2, &tangle.Message{
		Parent1: t1,
		Parent2: sep,
		Payload: &tangle.TransactionPayload{Address: "SAME9ADDRESS", Value: -5},
	}))

	result, err := whiteflag.Confirm(tng, t2, 7, 1000)
	require.NoError(t, err)

	assert.Contains(t, result.IncludedMessageIDs, t1)
	assert.Contains(t, result.ExcludedConflicting, t2)
	assert.Equal(t, 1, result.NumMessagesIncluded)
	assert.Equal(t, 1, result.NumMessagesExcludedConflicting)
	assert.Equal(t, 2, result.NumMessagesReferenced)

	meta1, ok := tng.GetMetadata(t1)
	require.True(t, ok)
	assert.False(t, meta1.IsConflicting())
	assert.True(t, meta1.IsConfirmed())

	meta2, ok := tng.GetMetadata(t2)
	require.True(t, ok)
	assert.True(t, meta2.IsConflicting())
	assert.True(t, meta2.IsConfirmed())
}

// Test_ConfirmationExclusivity covers property 6: every referenced message
// is accounted for by exactly one of included/excluded-conflicting/
// excluded-no-transaction, and the counts sum to the total referenced.
func Test_ConfirmationExclusivity(t *testing.T) {
	tng := tangle.New(nil)

	sep := id(0)
	tng.AddSolidEntryPoint(sep)

	noTx := id(1)
	require.True(t, tng.Insert(noTx, &tangle.Message{Parent1: sep, Parent2: sep}))

	spend := id(2)
	require.True(t, tng.Insert(spend, &tangle.Message{
		Parent1: noTx,
		Parent2: sep,
		Payload: &tangle.TransactionPayload{Address: "ADDR9A", Value: -3},
	}))

	tail := id(3)
	require.True(t, tng.Insert(tail, &tangle.Message{
		Parent1: spend,
		Parent2: sep,
		Payload: &tangle.TransactionPayload{Address: "ADDR9B", Value: 3},
	}))

	result, err := whiteflag.Confirm(tng, tail, 4, 2000)
	require.NoError(t, err)

	sum := result.NumMessagesIncluded + result.NumMessagesExcludedConflicting + result.NumMessagesExcludedNoTx
	assert.Equal(t, result.NumMessagesReferenced, sum)
	assert.Equal(t, 3, result.NumMessagesReferenced)
	assert.Equal(t, int64(3), result.LedgerDiff["ADDR9B"])
	assert.Equal(t, int64(-3), result.LedgerDiff["ADDR9A"])
}

// Test_MissingMessageHaltsWalk covers the "unknown, non-SEP ancestor"
// failure path: the walk must halt immediately and report which id was
// missing rather than silently skipping it.
func Test_MissingMessageHaltsWalk(t *testing.T) {
	tng := tangle.New(nil)

	missing := id(9)
	tail := id(1)
	require.True(t, tng.Insert(tail, &tangle.Message{Parent1: missing, Parent2: missing}))

	_, err := whiteflag.Confirm(tng, tail, 1, 0)
	require.Error(t, err)

	var missingErr *whiteflag.MissingMessageError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, missing, missingErr.MessageID)
}
