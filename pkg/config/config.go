// Package config defines the node-wide configuration surface: the
// protocol parameters every peer handshake is validated against, and the
// static peer list. REST/CLI loading itself is out of scope per spec.md
// §1; this package only defines the typed Options struct and the pflag
// flag set that feeds it, following the functional-options shape
// coordinator.Options uses throughout the teacher.
package config

import (
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// ErrInvalidCoordinatorPubKey is returned when the configured
// coordinator-pubkey flag does not decode to exactly 32 bytes of hex.
var ErrInvalidCoordinatorPubKey = errors.New("config: coordinator-pubkey must be 32 bytes of hex")

// the default options applied to a NodeConfig.
var defaultOptions = []Option{
	WithSupportedVersions(1),
	WithMWM(14),
	WithHandshakeWindow(10 * time.Second),
	WithMilestoneRequestRange(50),
	WithRetryInterval(5 * time.Second),
	WithAllowedTimestampWindow(600 * time.Second),
}

// Options holds the node's protocol configuration.
type Options struct {
	supportedVersions      map[uint16]struct{}
	mwm                    uint8
	coordinatorPubKey      [32]byte
	coordinatorAddress     string
	handshakeWindow        time.Duration
	milestoneRequestRange  uint32
	retryInterval          time.Duration
	allowedTimestampWindow time.Duration
	snapshotTimestamp      uint32
	peers                  []string
}

func (o *Options) apply(opts ...Option) {
	for _, opt := range opts {
		opt(o)
	}
}

// Option configures a NodeConfig.
type Option func(*Options)

// WithSupportedVersions defines the set of handshake protocol versions
// this node accepts.
func WithSupportedVersions(versions ...uint16) Option {
	return func(o *Options) {
		o.supportedVersions = make(map[uint16]struct{}, len(versions))
		for _, v := range versions {
			o.supportedVersions[v] = struct{}{}
		}
	}
}

// WithMWM defines the minimum weight magnitude this node requires.
func WithMWM(mwm uint8) Option {
	return func(o *Options) {
		o.mwm = mwm
	}
}

// WithCoordinatorPubKey defines the coordinator public key peers must match.
func WithCoordinatorPubKey(pubKey [32]byte) Option {
	return func(o *Options) {
		o.coordinatorPubKey = pubKey
	}
}

// WithCoordinatorAddress defines the legacy tryte address the hasher
// pipeline matches a transaction's address against to recognize a
// milestone, per §4.D Stage 4 and §4.F.
func WithCoordinatorAddress(address string) Option {
	return func(o *Options) {
		o.coordinatorAddress = address
	}
}

// WithSnapshotTimestamp defines the lower bound of Stage 3's allowed
// transaction timestamp window: the Unix timestamp of the node's last
// snapshot.
func WithSnapshotTimestamp(ts uint32) Option {
	return func(o *Options) {
		o.snapshotTimestamp = ts
	}
}

// WithHandshakeWindow defines the allowed clock skew for a peer's
// handshake timestamp.
func WithHandshakeWindow(window time.Duration) Option {
	return func(o *Options) {
		o.handshakeWindow = window
	}
}

// WithMilestoneRequestRange defines the milestone request window value (W)
// returned by MilestoneRequestRange. The solidifier does not read it: its
// window is fixed at 50 (milestoneRequestRange in pkg/milestone).
func WithMilestoneRequestRange(r uint32) Option {
	return func(o *Options) {
		o.milestoneRequestRange = r
	}
}

// WithRetryInterval defines the request layer's retry interval.
func WithRetryInterval(interval time.Duration) Option {
	return func(o *Options) {
		o.retryInterval = interval
	}
}

// WithAllowedTimestampWindow defines the future-drift window Stage 3
// validation allows for a transaction's timestamp.
func WithAllowedTimestampWindow(window time.Duration) Option {
	return func(o *Options) {
		o.allowedTimestampWindow = window
	}
}

// WithPeers defines the static peer list.
func WithPeers(peers ...string) Option {
	return func(o *Options) {
		o.peers = peers
	}
}

// NodeConfig is the resolved configuration used by every protocol component.
type NodeConfig struct {
	opts *Options
}

// New creates a NodeConfig from the given options, applied over the defaults.
func New(opts ...Option) *NodeConfig {
	options := &Options{}
	options.apply(defaultOptions...)
	options.apply(opts...)

	return &NodeConfig{opts: options}
}

// SupportsVersion reports whether version is in the supported set.
func (c *NodeConfig) SupportsVersion(version uint16) bool {
	_, ok := c.opts.supportedVersions[version]

	return ok
}

// MWM returns the configured minimum weight magnitude.
func (c *NodeConfig) MWM() uint8 { return c.opts.mwm }

// CoordinatorPubKey returns the configured coordinator public key.
func (c *NodeConfig) CoordinatorPubKey() [32]byte { return c.opts.coordinatorPubKey }

// CoordinatorAddress returns the configured coordinator tryte address.
func (c *NodeConfig) CoordinatorAddress() string { return c.opts.coordinatorAddress }

// SnapshotTimestamp returns the configured snapshot timestamp.
func (c *NodeConfig) SnapshotTimestamp() uint32 { return c.opts.snapshotTimestamp }

// HandshakeWindow returns the allowed handshake clock skew.
func (c *NodeConfig) HandshakeWindow() time.Duration { return c.opts.handshakeWindow }

// MilestoneRequestRange returns the configured milestone request window
// (W). The solidifier does not read it; its window is fixed at 50.
func (c *NodeConfig) MilestoneRequestRange() uint32 { return c.opts.milestoneRequestRange }

// RetryInterval returns the request layer's retry interval.
func (c *NodeConfig) RetryInterval() time.Duration { return c.opts.retryInterval }

// AllowedTimestampWindow returns the allowed future timestamp drift.
func (c *NodeConfig) AllowedTimestampWindow() time.Duration { return c.opts.allowedTimestampWindow }

// Peers returns the static peer list.
func (c *NodeConfig) Peers() []string { return c.opts.peers }

// FlagSet builds a pflag.FlagSet that, once parsed, can be turned into
// Options via OptionsFromFlags.
func FlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("hornet-tangle-core", pflag.ContinueOnError)
	fs.Uint8("mwm", 14, "minimum weight magnitude required of inbound transactions")
	fs.String("coordinator-pubkey", "", "hex-encoded coordinator public key peers must present")
	fs.String("coordinator-address", "", "legacy tryte address identifying coordinator-issued transactions")
	fs.Duration("handshake-window", 10*time.Second, "allowed clock skew for a peer handshake timestamp")
	fs.Uint32("milestone-request-range", 50, "milestone request window (W); not read by the solidifier, whose window is fixed at 50")
	fs.Duration("retry-interval", 5*time.Second, "request layer retry interval")
	fs.StringSlice("peers", nil, "static list of peer addresses to dial")

	return fs
}

// OptionsFromFlags reads a FlagSet (already parsed by the caller) into
// an Option slice, applying over the package defaults exactly as New
// does, so cmd/hornetd can build a NodeConfig straight from pflag.
func OptionsFromFlags(fs *pflag.FlagSet) ([]Option, error) {
	mwm, err := fs.GetUint8("mwm")
	if err != nil {
		return nil, err
	}

	coordinatorPubKeyHex, err := fs.GetString("coordinator-pubkey")
	if err != nil {
		return nil, err
	}

	var coordinatorPubKey [32]byte
	if coordinatorPubKeyHex != "" {
		decoded, err := hex.DecodeString(coordinatorPubKeyHex)
		if err != nil || len(decoded) != len(coordinatorPubKey) {
			return nil, ErrInvalidCoordinatorPubKey
		}
		copy(coordinatorPubKey[:], decoded)
	}

	coordinatorAddress, err := fs.GetString("coordinator-address")
	if err != nil {
		return nil, err
	}

	handshakeWindow, err := fs.GetDuration("handshake-window")
	if err != nil {
		return nil, err
	}

	milestoneRequestRange, err := fs.GetUint32("milestone-request-range")
	if err != nil {
		return nil, err
	}

	retryInterval, err := fs.GetDuration("retry-interval")
	if err != nil {
		return nil, err
	}

	peers, err := fs.GetStringSlice("peers")
	if err != nil {
		return nil, err
	}

	return []Option{
		WithMWM(mwm),
		WithCoordinatorPubKey(coordinatorPubKey),
		WithCoordinatorAddress(coordinatorAddress),
		WithHandshakeWindow(handshakeWindow),
		WithMilestoneRequestRange(milestoneRequestRange),
		WithRetryInterval(retryInterval),
		WithPeers(peers...),
	}, nil
}
