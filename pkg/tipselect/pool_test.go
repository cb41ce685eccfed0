package tipselect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
	"github.com/iotaledger/hornet-tangle-core/pkg/tangle"
	"github.com/iotaledger/hornet-tangle-core/pkg/tipselect"
)

func id(b byte) hornet.MessageId {
	var msgID hornet.MessageId
	msgID[0] = b

	return msgID
}

func insertWithOTRSIYTRSI(t *testing.T, tng *tangle.Tangle, msgID, p1, p2 hornet.MessageId, otrsi, ytrsi milestonepkg.Index) {
	t.Helper()
	require.True(t, tng.Insert(msgID, &tangle.Message{Parent1: p1, Parent2: p2}))
	require.True(t, tng.UpdateMetadata(msgID, func(meta *tangle.Metadata) {
		meta.SetOTRSIYTRSI(otrsi, ytrsi)
	}))
}

func Test_ScoreThresholds(t *testing.T) {
	tng := tangle.New(nil)
	tng.UpdateLatestSolidMilestoneIndex(100)
	pool := tipselect.New(tng, nil)

	nonLazy := id(1)
	insertWithOTRSIYTRSI(t, tng, nonLazy, id(90), id(90), 95, 95)

	sep := id(0)
	tng.AddSolidEntryPoint(sep)

	assert.True(t, pool.Insert(nonLazy, sep, sep))

	semiLazy := id(2)
	insertWithOTRSIYTRSI(t, tng, semiLazy, sep, sep, 85, 99)
	assert.False(t, pool.Insert(semiLazy, sep, sep), "otrsi delta of 15 exceeds OTRSI_DELTA=13, not non-lazy")

	lazy := id(3)
	insertWithOTRSIYTRSI(t, tng, lazy, sep, sep, 80, 80)
	assert.False(t, pool.Insert(lazy, sep, sep), "ytrsi delta of 20 exceeds YTRSI_DELTA=8, lazy")
}

func Test_FastPathBothParentsNonLazy(t *testing.T) {
	tng := tangle.New(nil)
	tng.UpdateLatestSolidMilestoneIndex(100)
	pool := tipselect.New(tng, nil)

	sep := id(0)
	tng.AddSolidEntryPoint(sep)

	p1 := id(1)
	insertWithOTRSIYTRSI(t, tng, p1, sep, sep, 100, 100)
	require.True(t, pool.Insert(p1, sep, sep))

	p2 := id(2)
	insertWithOTRSIYTRSI(t, tng, p2, sep, sep, 100, 100)
	require.True(t, pool.Insert(p2, sep, sep))

	// child has no OTRSI/YTRSI recorded at all -- only the fast path can
	// admit it, since scoreLocked would otherwise treat it as Lazy.
	child := id(3)
	require.True(t, tng.Insert(child, &tangle.Message{Parent1: p1, Parent2: p2}))
	assert.True(t, pool.Insert(child, p1, p2))
	assert.True(t, pool.Contains(child))
}

func Test_RetentionEvictsOnChildLimit(t *testing.T) {
	tng := tangle.New(nil)
	tng.UpdateLatestSolidMilestoneIndex(100)
	pool := tipselect.New(tng, nil)

	sep := id(0)
	tng.AddSolidEntryPoint(sep)

	parent := id(1)
	insertWithOTRSIYTRSI(t, tng, parent, sep, sep, 100, 100)
	require.True(t, pool.Insert(parent, sep, sep))

	// MAX_NUM_CHILDREN is 2; a third child must push the parent out.
	for i := byte(2); i <= 4; i++ {
		child := id(i)
		insertWithOTRSIYTRSI(t, tng, child, parent, sep, 100, 100)
		pool.Insert(child, parent, sep)
	}

	assert.False(t, pool.Contains(parent), "parent must be evicted once its children exceed MAX_NUM_CHILDREN")
}

func Test_SelectReturnsDistinctPair(t *testing.T) {
	tng := tangle.New(nil)
	tng.UpdateLatestSolidMilestoneIndex(100)
	pool := tipselect.New(tng, nil)

	sep := id(0)
	tng.AddSolidEntryPoint(sep)

	a, b := id(1), id(2)
	insertWithOTRSIYTRSI(t, tng, a, sep, sep, 100, 100)
	insertWithOTRSIYTRSI(t, tng, b, sep, sep, 100, 100)
	require.True(t, pool.Insert(a, sep, sep))
	require.True(t, pool.Insert(b, sep, sep))

	p1, p2, ok := pool.Select()
	require.True(t, ok)
	assert.Contains(t, []hornet.MessageId{a, b}, p1)
	assert.Contains(t, []hornet.MessageId{a, b}, p2)
}

func Test_SelectEmptyPool(t *testing.T) {
	tng := tangle.New(nil)
	pool := tipselect.New(tng, nil)

	_, _, ok := pool.Select()
	assert.False(t, ok)
}

func Test_RescoreEvictsNoLongerNonLazy(t *testing.T) {
	tng := tangle.New(nil)
	tng.UpdateLatestSolidMilestoneIndex(100)
	pool := tipselect.New(tng, nil)

	sep := id(0)
	tng.AddSolidEntryPoint(sep)

	tip := id(1)
	insertWithOTRSIYTRSI(t, tng, tip, sep, sep, 100, 100)
	require.True(t, pool.Insert(tip, sep, sep))

	// The milestone advances far enough that the tip's now-stale OTRSI
	// pushes it past OTRSI_DELTA.
	tng.UpdateLatestSolidMilestoneIndex(120)

	pool.Rescore()
	assert.False(t, pool.Contains(tip))
}
