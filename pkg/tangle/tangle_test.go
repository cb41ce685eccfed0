package tangle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/tangle"
)

func id(b byte) hornet.MessageId {
	var msgID hornet.MessageId
	msgID[0] = b

	return msgID
}

func Test_InsertIdempotence(t *testing.T) {
	tng := tangle.New(nil)

	msg := &tangle.Message{Parent1: id(1), Parent2: id(2)}
	msgID := id(3)

	require.True(t, tng.Insert(msgID, msg))
	vertex, ok := tng.Get(msgID)
	require.True(t, ok)
	firstArrival := vertex.Metadata.ArrivalTime()

	require.False(t, tng.Insert(msgID, msg))
	vertex2, ok := tng.Get(msgID)
	require.True(t, ok)
	assert.Equal(t, firstArrival, vertex2.Metadata.ArrivalTime())
	assert.Same(t, vertex, vertex2)
}

func Test_ChildrenTracking(t *testing.T) {
	tng := tangle.New(nil)

	parent1, parent2 := id(1), id(2)
	child := id(3)

	require.True(t, tng.Insert(child, &tangle.Message{Parent1: parent1, Parent2: parent2}))

	assert.ElementsMatch(t, hornet.MessageIDs{child}, tng.GetChildren(parent1))
	assert.ElementsMatch(t, hornet.MessageIDs{child}, tng.GetChildren(parent2))
}

func Test_SolidEntryPoints(t *testing.T) {
	tng := tangle.New(nil)

	sep := id(9)
	assert.False(t, tng.IsSolidEntryPoint(sep))

	tng.AddSolidEntryPoint(sep)
	assert.True(t, tng.IsSolidEntryPoint(sep))
}

func Test_MilestoneIndexMonotonicity(t *testing.T) {
	tng := tangle.New(nil)

	tng.UpdateLatestSolidMilestoneIndex(5)
	assert.EqualValues(t, 5, tng.GetLatestSolidMilestoneIndex())

	// storing the same value again leaves it unchanged; the store does not
	// enforce ordering itself: the solidifier alone is responsible for
	// only ever calling this with increasing values.
	tng.UpdateLatestSolidMilestoneIndex(5)
	assert.EqualValues(t, 5, tng.GetLatestSolidMilestoneIndex())

	tng.UpdateLatestMilestoneIndex(3)
	tng.UpdateLatestMilestoneIndex(7)
	tng.UpdateLatestMilestoneIndex(4)
	assert.EqualValues(t, 7, tng.GetLatestMilestoneIndex())
}

func Test_IsSynced(t *testing.T) {
	tng := tangle.New(nil)

	tng.UpdateLatestMilestoneIndex(10)
	tng.UpdateLatestSolidMilestoneIndex(9)
	assert.False(t, tng.IsSynced())

	tng.UpdateLatestSolidMilestoneIndex(10)
	assert.True(t, tng.IsSynced())
}

func Test_ConfirmSeedsOTRSIYTRSI(t *testing.T) {
	meta := tangle.NewMetadata(id(1), id(2), id(3))

	meta.Confirm(42, 1000)

	otrsi, ok := meta.OTRSI()
	require.True(t, ok)
	assert.EqualValues(t, 42, otrsi)

	ytrsi, ok := meta.YTRSI()
	require.True(t, ok)
	assert.EqualValues(t, 42, ytrsi)

	coneIndex, ok := meta.ConeIndex()
	require.True(t, ok)
	assert.EqualValues(t, 42, coneIndex)
	assert.True(t, meta.IsSolid())
}

func Test_WalkAncestorsStopsAtSolidEntryPoint(t *testing.T) {
	tng := tangle.New(nil)

	sep := id(1)
	tng.AddSolidEntryPoint(sep)

	mid := id(2)
	require.True(t, tng.Insert(mid, &tangle.Message{Parent1: sep, Parent2: sep}))

	tail := id(3)
	require.True(t, tng.Insert(tail, &tangle.Message{Parent1: mid, Parent2: mid}))

	var visited []hornet.MessageId
	tng.WalkAncestors(tail, func(visitedID hornet.MessageId, _ *tangle.Vertex) bool {
		visited = append(visited, visitedID)

		return true
	})

	assert.Contains(t, visited, tail)
	assert.Contains(t, visited, mid)
	assert.NotContains(t, visited, sep)
}
