package propagator_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
	"github.com/iotaledger/hornet-tangle-core/pkg/propagator"
	"github.com/iotaledger/hornet-tangle-core/pkg/tangle"
)

func id(b byte) hornet.MessageId {
	var msgID hornet.MessageId
	msgID[0] = b

	return msgID
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.Fail(t, "condition not met in time")
}

func Test_SolidityClosure(t *testing.T) {
	tng := tangle.New(nil)
	prop := propagator.New(tng, nil)
	prop.Start()
	defer prop.Stop()

	sepA, sepB := id(1), id(2)
	tng.AddSolidEntryPoint(sepA)
	tng.AddSolidEntryPoint(sepB)

	child := id(3)
	require.True(t, tng.Insert(child, &tangle.Message{Parent1: sepA, Parent2: sepB}))

	prop.Enqueue(child)

	waitFor(t, func() bool {
		meta, _ := tng.GetMetadata(child)
		return meta.IsSolid()
	})
}

func Test_OTRSIYTRSI_InheritFromParents(t *testing.T) {
	tng := tangle.New(nil)
	prop := propagator.New(tng, nil)
	prop.Start()
	defer prop.Stop()

	sep := id(1)
	tng.AddSolidEntryPoint(sep)
	tng.UpdateSnapshotMilestoneIndex(milestonepkg.Index(5))

	child := id(2)
	require.True(t, tng.Insert(child, &tangle.Message{Parent1: sep, Parent2: sep}))

	prop.Enqueue(child)

	waitFor(t, func() bool {
		meta, _ := tng.GetMetadata(child)
		return meta.HasOTRSIYTRSI()
	})

	meta, _ := tng.GetMetadata(child)
	otrsi, _ := meta.OTRSI()
	ytrsi, _ := meta.YTRSI()
	assert.Equal(t, milestonepkg.Index(5), otrsi)
	assert.Equal(t, milestonepkg.Index(5), ytrsi)
}
