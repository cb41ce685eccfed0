package peer

import (
	"time"

	"github.com/pkg/errors"

	"github.com/iotaledger/hornet-tangle-core/pkg/config"
	"github.com/iotaledger/hornet-tangle-core/pkg/wire"
)

// ErrUnsupportedVersion is returned when a peer's handshake declares a
// version this node does not support.
var ErrUnsupportedVersion = errors.New("peer: unsupported handshake version")

// ErrMWMMismatch is returned when a peer's handshake declares a
// different MWM than this node's configured value.
var ErrMWMMismatch = errors.New("peer: mwm mismatch")

// ErrCoordinatorMismatch is returned when a peer's handshake declares a
// different coordinator public key than this node's configured value.
var ErrCoordinatorMismatch = errors.New("peer: coordinator public key mismatch")

// ErrTimestampOutOfWindow is returned when a peer's handshake timestamp
// falls outside the configured handshake window.
var ErrTimestampOutOfWindow = errors.New("peer: handshake timestamp outside allowed window")

// ErrPortMismatch is returned when a peer's declared port does not match
// the port its connection actually originated from.
var ErrPortMismatch = errors.New("peer: declared port does not match source port")

// ValidateHandshake checks h against cfg and the connection's observed
// source port, per §4.C's five handshake checks. now is injected for
// testability.
func ValidateHandshake(h wire.Handshake, cfg *config.NodeConfig, sourcePort uint16, now time.Time) error {
	if !cfg.SupportsVersion(h.Version) {
		return ErrUnsupportedVersion
	}

	if h.MWM != cfg.MWM() {
		return ErrMWMMismatch
	}

	if h.CoordinatorPubKey != cfg.CoordinatorPubKey() {
		return ErrCoordinatorMismatch
	}

	handshakeTime := time.UnixMilli(int64(h.TimestampMs))
	skew := now.Sub(handshakeTime)
	if skew < 0 {
		skew = -skew
	}
	if skew > cfg.HandshakeWindow() {
		return ErrTimestampOutOfWindow
	}

	if h.Port != sourcePort {
		return ErrPortMismatch
	}

	return nil
}

// LocalHandshake builds the Handshake frame this node sends immediately
// upon dialing a peer -- the outbound send races the inbound read, the
// same symmetric-send-on-dial behavior bee's handshaker.rs performs
// before entering its read loop.
func LocalHandshake(cfg *config.NodeConfig, localPort uint16, now time.Time) wire.Handshake {
	return wire.Handshake{
		Port:              localPort,
		TimestampMs:       uint64(now.UnixMilli()),
		CoordinatorPubKey: cfg.CoordinatorPubKey(),
		MWM:               cfg.MWM(),
		Version:           1,
	}
}
