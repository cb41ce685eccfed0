// Package coordinator implements the local/devnet milestone coordinator
// supplemented feature: a process that periodically signs and issues
// milestone messages, the same role aleksei-korolev-inx-coordinator's
// Coordinator plays for a real IOTA node, adapted here to this module's
// two-parent legacy wire format and opaque crypto.Sponge/SignerProvider
// boundary instead of the teacher's ed25519/iotago.Block stack. It exists
// for integration testing and private networks; component F's milestone
// validator never requires this package to be wired in to validate
// milestones issued by a real public coordinator.
package coordinator

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/iotaledger/hive.go/core/events"
	"github.com/iotaledger/hive.go/core/ioutils"
	"github.com/iotaledger/hive.go/core/logger"
	"github.com/iotaledger/hive.go/core/syncutils"

	"github.com/iotaledger/hornet-tangle-core/pkg/crypto"
	"github.com/iotaledger/hornet-tangle-core/pkg/errorhandling"
	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
	"github.com/iotaledger/hornet-tangle-core/pkg/tangle"
)

// BackPressureFunc tells the coordinator to stop issuing milestones and
// checkpoints under high load.
type BackPressureFunc func() bool

// SendMessageFunc sends a fully constructed message to the network and
// reports the message ID it was stored under, replacing the teacher's
// SendBlockFunc/iotago.Block pairing with this module's own
// tangle.Message/hornet.MessageId types.
type SendMessageFunc func(message *tangle.Message) (hornet.MessageId, error)

// IsNodeSyncedFunc reports whether the node the coordinator is attached
// to is synced.
type IsNodeSyncedFunc func() bool

// LatestMilestoneInfo is the latest milestone info the coordinator's host
// node reports at startup, used to reconcile InitState against the
// tangle's own bookkeeping.
type LatestMilestoneInfo struct {
	Index     milestonepkg.Index
	Timestamp uint32
	MessageID hornet.MessageId
}

var (
	// ErrNoTipsGiven is returned when no tips were given to issue a checkpoint.
	ErrNoTipsGiven = errors.New("no tips given")
	// ErrNetworkBootstrapped is returned when the flag for bootstrap network was given, but a state file already exists.
	ErrNetworkBootstrapped = errors.New("network already bootstrapped")
	// ErrNodeLoadTooHigh is returned if the backpressure func says the node load is too high.
	ErrNodeLoadTooHigh = errors.New("node load too high")
)

// Events are the events issued by the coordinator.
type Events struct {
	// IssuedCheckpointMessage fires once per message of a checkpoint.
	IssuedCheckpointMessage *events.Event
	// IssuedMilestone fires after a milestone was sent and its state persisted.
	IssuedMilestone *events.Event
	// SoftError is triggered when a soft error is encountered.
	SoftError *events.Event
	// QuorumFinished is triggered after a coordinator quorum call was finished.
	QuorumFinished *events.Event
}

// MilestoneMerkleRoots are the merkle roots computed over the set of
// messages a milestone confirms, the same InclusionMerkleRoot/
// AppliedMerkleRoot split white-flag confirmation produces, narrowed from
// the teacher's iotago.MilestoneMerkleProof type to this module's own
// milestonepkg.MerkleProof.
type MilestoneMerkleRoots struct {
	InclusionMerkleRoot milestonepkg.MerkleProof
	AppliedMerkleRoot   milestonepkg.MerkleProof
}

// ComputeMilestoneMerkleRoots computes the merkle roots a milestone
// essence embeds over the past cone of parents. See merkle.go for the
// concrete implementation this module ships.
type ComputeMilestoneMerkleRoots func(ctx context.Context, index milestonepkg.Index, timestamp uint32, parents hornet.MessageIDs, previousMilestoneID hornet.MessageId) (*MilestoneMerkleRoots, error)

// Coordinator issues signed milestone messages to secure the tangle and
// establish a total order over confirmed messages.
type Coordinator struct {
	*logger.WrappedLogger

	merkleRootFunc ComputeMilestoneMerkleRoots
	milestoneLock  syncutils.Mutex
	isNodeSynced   IsNodeSyncedFunc

	sponge         crypto.Sponge
	signerProvider crypto.SignerProvider

	sendMessageFunc SendMessageFunc

	opts *Options

	backpressureFuncs []BackPressureFunc

	state        *State
	bootstrapped bool

	Events *Events
}

const (
	defaultStateFilePath     = "coordinator.state"
	defaultMilestoneInterval = 10 * time.Second
)

// the default options applied to the Coordinator.
var defaultOptions = []Option{
	WithStateFilePath(defaultStateFilePath),
	WithMilestoneInterval(defaultMilestoneInterval),
	WithSigningRetryAmount(10),
	WithSigningRetryTimeout(2 * time.Second),
}

// Options define options for the Coordinator.
type Options struct {
	logger              *logger.Logger
	stateFilePath       string
	milestoneInterval   time.Duration
	signingRetryTimeout time.Duration
	signingRetryAmount  int
	quorum              *quorum
}

func (o *Options) apply(opts ...Option) {
	for _, opt := range opts {
		opt(o)
	}
}

// Option is a function setting a coordinator option.
type Option func(opts *Options)

// WithLogger enables logging within the coordinator.
func WithLogger(log *logger.Logger) Option {
	return func(opts *Options) {
		opts.logger = log
	}
}

// WithStateFilePath defines the path to the state file of the coordinator.
func WithStateFilePath(stateFilePath string) Option {
	return func(opts *Options) {
		opts.stateFilePath = stateFilePath
	}
}

// WithMilestoneInterval defines the interval milestones are issued at.
func WithMilestoneInterval(interval time.Duration) Option {
	return func(opts *Options) {
		opts.milestoneInterval = interval
	}
}

// WithSigningRetryTimeout defines the delay between signing retries.
func WithSigningRetryTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.signingRetryTimeout = timeout
	}
}

// WithSigningRetryAmount defines how many times to retry signing before
// bailing and returning a critical error.
func WithSigningRetryAmount(amount int) Option {
	return func(opts *Options) {
		opts.signingRetryAmount = amount
	}
}

// WithQuorum defines a quorum used to cross-check the coordinator's own
// merkle root computation against sibling replicas before issuing a
// milestone. If quorumEnabled is false, the quorum is disabled.
func WithQuorum(quorumEnabled bool, quorumGroups map[string][]*QuorumClientConfig, timeout time.Duration) Option {
	return func(opts *Options) {
		if !quorumEnabled {
			opts.quorum = nil

			return
		}
		opts.quorum = newQuorum(quorumGroups, timeout)
	}
}

// New creates a new Coordinator instance.
func New(
	merkleRootFunc ComputeMilestoneMerkleRoots,
	nodeSyncedFunc IsNodeSyncedFunc,
	sponge crypto.Sponge,
	signerProvider crypto.SignerProvider,
	sendMessageFunc SendMessageFunc,
	opts ...Option,
) (*Coordinator, error) {
	options := &Options{}
	options.apply(defaultOptions...)
	options.apply(opts...)

	result := &Coordinator{
		merkleRootFunc:  merkleRootFunc,
		isNodeSynced:    nodeSyncedFunc,
		sponge:          sponge,
		signerProvider:  signerProvider,
		sendMessageFunc: sendMessageFunc,
		opts:            options,

		Events: &Events{
			IssuedCheckpointMessage: events.NewEvent(CheckpointCaller),
			IssuedMilestone:         events.NewEvent(MilestoneCaller),
			SoftError:               events.NewEvent(events.ErrorCaller),
			QuorumFinished:          events.NewEvent(QuorumFinishedCaller),
		},
	}
	result.WrappedLogger = logger.NewWrappedLogger(options.logger)

	return result, nil
}

// InitState loads an existing state file or bootstraps the network.
// All errors are critical.
func (coo *Coordinator) InitState(bootstrap bool, startIndex milestonepkg.Index, latestMilestone *LatestMilestoneInfo) error {
	_, err := os.Stat(coo.opts.stateFilePath)
	stateFileExists := !os.IsNotExist(err)

	if bootstrap {
		if stateFileExists {
			return ErrNetworkBootstrapped
		}

		if startIndex == 0 {
			startIndex = 1
		}

		if latestMilestone.Index != startIndex-1 {
			return fmt.Errorf("previous milestone does not match latest milestone in node! previous: %d, node: %d", startIndex-1, latestMilestone.Index)
		}

		latestMilestoneID := hornet.NullMessageID
		if startIndex != 1 {
			if latestMilestone.MessageID.Empty() {
				return fmt.Errorf("previous milestone message id should not be empty")
			}

			latestMilestoneID = latestMilestone.MessageID
		}

		coo.state = &State{
			LatestMilestoneMessageID: latestMilestoneID,
			LatestMilestoneIndex:     startIndex - 1,
			LatestMilestoneTime:      time.Now(),
		}
		coo.bootstrapped = false

		coo.LogInfof("bootstrapping coordinator at %d", startIndex)

		return nil
	}

	if !stateFileExists {
		return fmt.Errorf("state file not found: %v", coo.opts.stateFilePath)
	}

	coo.state = &State{}
	if err := ioutils.ReadJSONFromFile(coo.opts.stateFilePath, coo.state); err != nil {
		return err
	}

	if latestMilestone.Index != coo.state.LatestMilestoneIndex {
		return fmt.Errorf("previous milestone does not match latest milestone in node. previous: %d, node: %d", coo.state.LatestMilestoneIndex, latestMilestone.Index)
	}

	coo.LogInfof("resuming coordinator at %d", latestMilestone.Index)

	coo.bootstrapped = true

	return nil
}

// createAndSendMilestone computes the merkle roots, optionally
// cross-checks them against a quorum, signs and sends the resulting
// milestone message, and persists the updated state. Returns soft and
// critical errors per errorhandling's split.
func (coo *Coordinator) createAndSendMilestone(parents hornet.MessageIDs, newMilestoneIndex milestonepkg.Index, previousMilestoneID hornet.MessageId) error {
	parents = parents.RemoveDupsAndSort()

	newMilestoneTimestamp := time.Now()

	// a background context is used here, same as the teacher, so the
	// coordinator does not panic at shutdown mid white-flag computation.
	merkleRoots, err := coo.merkleRootFunc(context.Background(), newMilestoneIndex, uint32(newMilestoneTimestamp.Unix()), parents, previousMilestoneID)
	if err != nil {
		return errorhandling.CriticalError(fmt.Errorf("failed to compute white flag mutations: %w", err))
	}

	if coo.opts.quorum != nil {
		ts := time.Now()
		err := coo.opts.quorum.checkMerkleTreeHash(merkleRoots, newMilestoneIndex, uint32(newMilestoneTimestamp.Unix()), parents, previousMilestoneID, func(groupName string, entry *quorumGroupEntry, err error) {
			coo.LogInfof("coordinator quorum group encountered an error, group: %s, target: %s, err: %s", groupName, entry.stats.Target, err)
		})

		duration := time.Since(ts)
		coo.Events.QuorumFinished.Trigger(&QuorumFinishedResult{Duration: duration, Err: err})

		if err != nil {
			coo.LogInfof("coordinator quorum failed after %v, err: %s", duration.Truncate(time.Millisecond), err)

			return err
		}

		coo.LogInfof("coordinator quorum took %v", duration.Truncate(time.Millisecond))
	}

	essence := milestonepkg.Essence{
		Index:               newMilestoneIndex,
		Timestamp:           uint32(newMilestoneTimestamp.Unix()),
		Parents:             parents,
		InclusionMerkleRoot: merkleRoots.InclusionMerkleRoot,
		AppliedMerkleRoot:   merkleRoots.AppliedMerkleRoot,
		PreviousMilestoneID: previousMilestoneID,
	}

	ms, err := coo.signMilestone(essence)
	if err != nil {
		return errorhandling.CriticalError(fmt.Errorf("failed to sign milestone: %w", err))
	}

	message := coo.wrapMilestoneMessage(ms)

	// rename the coordinator state file to mark the state as invalid
	// until the new one below is written.
	if err := os.Rename(coo.opts.stateFilePath, fmt.Sprintf("%s_old", coo.opts.stateFilePath)); err != nil && !os.IsNotExist(err) {
		return errorhandling.CriticalError(fmt.Errorf("unable to rename old coordinator state file: %w", err))
	}

	messageID, err := coo.sendMessageFunc(message)
	if err != nil {
		return errorhandling.CriticalError(fmt.Errorf("failed to send milestone: %w", err))
	}

	coo.state.LatestMilestoneMessageID = messageID
	coo.state.LatestMilestoneIndex = newMilestoneIndex
	coo.state.LatestMilestoneTime = newMilestoneTimestamp

	if err := ioutils.WriteJSONToFile(coo.opts.stateFilePath, coo.state, 0660); err != nil {
		return errorhandling.CriticalError(fmt.Errorf("failed to update coordinator state file: %w", err))
	}

	coo.Events.IssuedMilestone.Trigger(coo.state.LatestMilestoneIndex, coo.state.LatestMilestoneMessageID)

	return nil
}

// signMilestone signs essence's canonical byte encoding through the
// configured SignerProvider, retrying signingRetryAmount times on
// failure, matching the exact digest pkg/milestone.Validator recomputes
// to verify the resulting signature.
func (coo *Coordinator) signMilestone(essence milestonepkg.Essence) (milestonepkg.Milestone, error) {
	digest := coo.sponge.Sum(essence.Bytes())

	signer, err := coo.signerProvider.SignerForIndex(uint32(essence.Index))
	if err != nil {
		return milestonepkg.Milestone{}, err
	}

	var sig, pubKey []byte
	var signErr error
	for attempt := 0; attempt < coo.opts.signingRetryAmount; attempt++ {
		sig, pubKey, signErr = signer.Sign(digest)
		if signErr == nil {
			break
		}

		coo.LogWarnf("milestone signing attempt %d/%d failed: %s", attempt+1, coo.opts.signingRetryAmount, signErr)
		time.Sleep(coo.opts.signingRetryTimeout)
	}
	if signErr != nil {
		return milestonepkg.Milestone{}, errors.Wrap(signErr, "exhausted signing retries")
	}

	return milestonepkg.Milestone{
		Essence:    essence,
		Signatures: [][]byte{sig},
		PublicKeys: [][]byte{pubKey},
	}, nil
}

// wrapMilestoneMessage encodes ms and wraps it in a tangle.Message
// anchored to the first two of its (already sorted/deduped) essence
// parents, the two-parent wire format's analogue of the teacher's
// up-to-eight-parent milestone block. SendMessageFunc's implementation
// is expected to insert the result directly into the tangle and gossip
// it as a pre-validated message: unlike an ordinary transaction, a
// milestone message never passes back through this node's own Stage 3
// ternary gate, since the coordinator that authors it is also the node
// it is attached to.
func (coo *Coordinator) wrapMilestoneMessage(ms milestonepkg.Milestone) *tangle.Message {
	raw := milestonepkg.EncodePayload(ms)

	parent1 := ms.Essence.Parents[0]
	parent2 := parent1
	if len(ms.Essence.Parents) > 1 {
		parent2 = ms.Essence.Parents[1]
	}

	return &tangle.Message{
		Parent1:  parent1,
		Parent2:  parent2,
		Payload:  &tangle.MilestonePayload{Milestone: ms},
		RawBytes: raw,
	}
}

// Bootstrap creates the first milestone if the network was not
// bootstrapped yet. Returns critical errors.
func (coo *Coordinator) Bootstrap() (hornet.MessageId, error) {
	coo.milestoneLock.Lock()
	defer coo.milestoneLock.Unlock()

	if !coo.bootstrapped {
		err := coo.createAndSendMilestone(hornet.MessageIDs{coo.state.LatestMilestoneMessageID}, coo.state.LatestMilestoneIndex+1, coo.state.LatestMilestoneMessageID)
		if err != nil {
			return hornet.NullMessageID, errorhandling.CriticalError(err)
		}

		coo.bootstrapped = true
	}

	return coo.state.LatestMilestoneMessageID, nil
}

// IssueCheckpoint creates and sends a "checkpoint": a chain of messages
// referencing big parts of the unreferenced cone to keep the
// confirmation rate high even under an ongoing attack. The two-parent
// wire format forces chaining one tip at a time rather than the
// teacher's up-to-eight-parent batching of seven tips per block.
func (coo *Coordinator) IssueCheckpoint(checkpointIndex int, lastCheckpointMessageID hornet.MessageId, tips hornet.MessageIDs) (hornet.MessageId, error) {
	if len(tips) == 0 {
		return hornet.NullMessageID, ErrNoTipsGiven
	}

	coo.milestoneLock.Lock()
	defer coo.milestoneLock.Unlock()

	if !coo.isNodeSynced() {
		return hornet.NullMessageID, errorhandling.SoftError(errorhandling.ErrNodeNotSynced)
	}

	if coo.checkBackPressureFunctions() {
		return hornet.NullMessageID, errorhandling.SoftError(ErrNodeLoadTooHigh)
	}

	for i, tip := range tips {
		message := &tangle.Message{Parent1: lastCheckpointMessageID, Parent2: tip}

		messageID, err := coo.sendMessageFunc(message)
		if err != nil {
			return hornet.NullMessageID, errorhandling.SoftError(fmt.Errorf("failed to send checkpoint: %w", err))
		}

		lastCheckpointMessageID = messageID
		coo.Events.IssuedCheckpointMessage.Trigger(checkpointIndex, i, len(tips), lastCheckpointMessageID)
	}

	return lastCheckpointMessageID, nil
}

// IssueMilestone creates the next milestone. Returns soft and critical
// errors.
func (coo *Coordinator) IssueMilestone(parents hornet.MessageIDs) (hornet.MessageId, error) {
	coo.milestoneLock.Lock()
	defer coo.milestoneLock.Unlock()

	if !coo.isNodeSynced() {
		return hornet.NullMessageID, errorhandling.SoftError(errorhandling.ErrNodeNotSynced)
	}

	if coo.checkBackPressureFunctions() {
		return hornet.NullMessageID, errorhandling.SoftError(ErrNodeLoadTooHigh)
	}

	if err := coo.createAndSendMilestone(parents, coo.state.LatestMilestoneIndex+1, coo.state.LatestMilestoneMessageID); err != nil {
		return hornet.NullMessageID, err
	}

	return coo.state.LatestMilestoneMessageID, nil
}

// Interval returns the interval milestones should be issued at.
func (coo *Coordinator) Interval() time.Duration {
	return coo.opts.milestoneInterval
}

// State returns the current state of the coordinator.
func (coo *Coordinator) State() *State {
	return coo.state
}

// AddBackPressureFunc adds a BackPressureFunc. May be called multiple
// times to add additional functions.
func (coo *Coordinator) AddBackPressureFunc(bpFunc BackPressureFunc) {
	coo.backpressureFuncs = append(coo.backpressureFuncs, bpFunc)
}

func (coo *Coordinator) checkBackPressureFunctions() bool {
	for _, f := range coo.backpressureFuncs {
		if f() {
			return true
		}
	}

	return false
}

// QuorumStats returns statistics about the response time and errors of
// every node in the quorum.
func (coo *Coordinator) QuorumStats() []QuorumClientStatistic {
	if coo.opts.quorum == nil {
		return nil
	}

	return coo.opts.quorum.quorumStatsSnapshot()
}
