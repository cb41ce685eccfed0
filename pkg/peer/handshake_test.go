package peer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hornet-tangle-core/pkg/config"
	"github.com/iotaledger/hornet-tangle-core/pkg/peer"
	"github.com/iotaledger/hornet-tangle-core/pkg/wire"
)

var testCoordinatorPubKey = [32]byte{0x52, 0xfd}

func testConfig() *config.NodeConfig {
	return config.New(
		config.WithSupportedVersions(1),
		config.WithMWM(14),
		config.WithCoordinatorPubKey(testCoordinatorPubKey),
		config.WithHandshakeWindow(10*time.Second),
	)
}

// Test_HandshakeAccept is scenario S1: a well-formed handshake matching
// the node's configured version, mwm, coordinator key, clock skew and
// declared port transitions the peer to Connected.
func Test_HandshakeAccept(t *testing.T) {
	cfg := testConfig()
	now := time.Now()

	h := wire.Handshake{
		Port:              1337,
		TimestampMs:       uint64(now.UnixMilli()),
		CoordinatorPubKey: testCoordinatorPubKey,
		MWM:               14,
		Version:           1,
	}

	err := peer.ValidateHandshake(h, cfg, 1337, now)
	require.NoError(t, err)
}

// Test_HandshakeRejectOnMWM is scenario S2: a handshake declaring the
// wrong mwm is rejected without otherwise touching peer state.
func Test_HandshakeRejectOnMWM(t *testing.T) {
	cfg := testConfig()
	now := time.Now()

	h := wire.Handshake{
		Port:              1337,
		TimestampMs:       uint64(now.UnixMilli()),
		CoordinatorPubKey: testCoordinatorPubKey,
		MWM:               15,
		Version:           1,
	}

	err := peer.ValidateHandshake(h, cfg, 1337, now)
	assert.ErrorIs(t, err, peer.ErrMWMMismatch)
}

func Test_HandshakeRejectOnUnsupportedVersion(t *testing.T) {
	cfg := testConfig()
	now := time.Now()

	h := wire.Handshake{
		Port:              1337,
		TimestampMs:       uint64(now.UnixMilli()),
		CoordinatorPubKey: testCoordinatorPubKey,
		MWM:               14,
		Version:           2,
	}

	err := peer.ValidateHandshake(h, cfg, 1337, now)
	assert.ErrorIs(t, err, peer.ErrUnsupportedVersion)
}

func Test_HandshakeRejectOnCoordinatorMismatch(t *testing.T) {
	cfg := testConfig()
	now := time.Now()

	h := wire.Handshake{
		Port:              1337,
		TimestampMs:       uint64(now.UnixMilli()),
		CoordinatorPubKey: [32]byte{0xAA},
		MWM:               14,
		Version:           1,
	}

	err := peer.ValidateHandshake(h, cfg, 1337, now)
	assert.ErrorIs(t, err, peer.ErrCoordinatorMismatch)
}

func Test_HandshakeRejectOnTimestampSkew(t *testing.T) {
	cfg := testConfig()
	now := time.Now()

	h := wire.Handshake{
		Port:              1337,
		TimestampMs:       uint64(now.Add(-time.Minute).UnixMilli()),
		CoordinatorPubKey: testCoordinatorPubKey,
		MWM:               14,
		Version:           1,
	}

	err := peer.ValidateHandshake(h, cfg, 1337, now)
	assert.ErrorIs(t, err, peer.ErrTimestampOutOfWindow)
}

func Test_HandshakeRejectOnPortMismatch(t *testing.T) {
	cfg := testConfig()
	now := time.Now()

	h := wire.Handshake{
		Port:              1337,
		TimestampMs:       uint64(now.UnixMilli()),
		CoordinatorPubKey: testCoordinatorPubKey,
		MWM:               14,
		Version:           1,
	}

	err := peer.ValidateHandshake(h, cfg, 4242, now)
	assert.ErrorIs(t, err, peer.ErrPortMismatch)
}
