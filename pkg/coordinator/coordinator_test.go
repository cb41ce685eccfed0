package coordinator_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hornet-tangle-core/pkg/coordinator"
	"github.com/iotaledger/hornet-tangle-core/pkg/crypto"
	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
	"github.com/iotaledger/hornet-tangle-core/pkg/tangle"
)

type singleSigner struct {
	signer crypto.Signer
}

func (s singleSigner) SignerForIndex(uint32) (crypto.Signer, error) {
	return s.signer, nil
}

func newTestCoordinator(t *testing.T, sendFn coordinator.SendMessageFunc, statePath string) *coordinator.Coordinator {
	t.Helper()

	tng := tangle.New(nil)
	sponge := crypto.Blake2bSponge{}
	signer := singleSigner{signer: crypto.InsecureTestSigner{KeyHandle: []byte("coo-key")}}

	coo, err := coordinator.New(
		coordinator.NewLocalMerkleRootFunc(tng, sponge),
		func() bool { return true },
		sponge,
		signer,
		sendFn,
		coordinator.WithStateFilePath(statePath),
	)
	require.NoError(t, err)

	return coo
}

func TestCoordinatorBootstrapIssuesFirstMilestone(t *testing.T) {
	statePath := t.TempDir() + "/coordinator.state"
	defer os.Remove(statePath)

	var sent []*tangle.Message
	sendFn := func(message *tangle.Message) (hornet.MessageId, error) {
		sent = append(sent, message)

		var id hornet.MessageId
		id[0] = byte(len(sent))

		return id, nil
	}

	coo := newTestCoordinator(t, sendFn, statePath)

	err := coo.InitState(true, 1, &coordinator.LatestMilestoneInfo{Index: 0})
	require.NoError(t, err)

	messageID, err := coo.Bootstrap()
	require.NoError(t, err)
	assert.False(t, messageID.Empty())
	assert.Len(t, sent, 1)

	ms, ok := sent[0].Payload.(*tangle.MilestonePayload)
	require.True(t, ok)
	assert.Equal(t, milestonepkg.Index(1), ms.Milestone.Essence.Index)
	assert.Len(t, ms.Milestone.Signatures, 1)

	digest := crypto.Blake2bSponge{}.Sum(ms.Milestone.Essence.Bytes())
	ok, err = (crypto.InsecureTestVerifier{}).Verify(digest, ms.Milestone.Signatures[0], ms.Milestone.PublicKeys[0])
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, coo.State().LatestMilestoneIndex, milestonepkg.Index(1))
}

func TestCoordinatorIssueMilestoneAdvancesIndex(t *testing.T) {
	statePath := t.TempDir() + "/coordinator.state"
	defer os.Remove(statePath)

	sendFn := func(message *tangle.Message) (hornet.MessageId, error) {
		var id hornet.MessageId
		ms := message.Payload.(*tangle.MilestonePayload)
		id[0] = byte(ms.Milestone.Essence.Index)

		return id, nil
	}

	coo := newTestCoordinator(t, sendFn, statePath)
	require.NoError(t, coo.InitState(true, 1, &coordinator.LatestMilestoneInfo{Index: 0}))
	_, err := coo.Bootstrap()
	require.NoError(t, err)

	var tip hornet.MessageId
	tip[0] = 0xaa

	messageID, err := coo.IssueMilestone(hornet.MessageIDs{tip})
	require.NoError(t, err)
	assert.Equal(t, byte(2), messageID[0])
	assert.Equal(t, milestonepkg.Index(2), coo.State().LatestMilestoneIndex)
}

func TestCoordinatorInitStateRejectsBootstrapOverExistingFile(t *testing.T) {
	statePath := t.TempDir() + "/coordinator.state"
	require.NoError(t, os.WriteFile(statePath, []byte("{}"), 0o644))
	defer os.Remove(statePath)

	coo := newTestCoordinator(t, func(*tangle.Message) (hornet.MessageId, error) {
		return hornet.NullMessageID, nil
	}, statePath)

	err := coo.InitState(true, 1, &coordinator.LatestMilestoneInfo{Index: 0})
	assert.ErrorIs(t, err, coordinator.ErrNetworkBootstrapped)
}

func TestCoordinatorIssueMilestoneRequiresSyncedNode(t *testing.T) {
	statePath := t.TempDir() + "/coordinator.state"
	defer os.Remove(statePath)

	tng := tangle.New(nil)
	sponge := crypto.Blake2bSponge{}
	signer := singleSigner{signer: crypto.InsecureTestSigner{KeyHandle: []byte("coo-key")}}

	coo, err := coordinator.New(
		coordinator.NewLocalMerkleRootFunc(tng, sponge),
		func() bool { return false },
		sponge,
		signer,
		func(*tangle.Message) (hornet.MessageId, error) { return hornet.NullMessageID, nil },
		coordinator.WithStateFilePath(statePath),
	)
	require.NoError(t, err)
	require.NoError(t, coo.InitState(true, 1, &coordinator.LatestMilestoneInfo{Index: 0}))

	var tip hornet.MessageId
	tip[0] = 1

	_, err = coo.IssueMilestone(hornet.MessageIDs{tip})
	assert.Error(t, err)
}
