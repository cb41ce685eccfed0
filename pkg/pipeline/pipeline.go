// Package pipeline implements Component D: the hasher/processor
// pipeline that turns raw inbound transaction bytes into vertices in the
// tangle, per spec.md §4.D. It owns the four stages in sequence --
// dedup, batch hashing, validation, insertion and fan-out -- grounded on
// Metz-2-hornet's protocol/processor.Processor, adapted from its
// WorkUnit/objectstorage shape to this module's direct tangle.Tangle
// store and its own batching stage, which that teacher does not have.
package pipeline

import (
	"time"

	"github.com/iotaledger/hive.go/core/events"
	"github.com/iotaledger/hive.go/core/logger"
	"github.com/iotaledger/hive.go/core/workerpool"

	"github.com/iotaledger/hornet-tangle-core/pkg/crypto"
	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/metrics"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
	"github.com/iotaledger/hornet-tangle-core/pkg/request"
	"github.com/iotaledger/hornet-tangle-core/pkg/tangle"
	"github.com/iotaledger/hornet-tangle-core/pkg/ternary"
	"github.com/iotaledger/hornet-tangle-core/pkg/wire"
)

const (
	inboundQueueSize = 10000
	workerCount      = 4
)

// Propagator is the subset of pkg/propagator.Propagator Stage 4 needs.
type Propagator interface {
	Enqueue(messageID hornet.MessageId)
}

// MessageRequester is the subset of pkg/request.MessageRequester Stage 4
// needs: the "was this requested" table, and the ability to chase a
// newly-arrived message's own parents.
type MessageRequester interface {
	Request(id hornet.MessageId, index milestonepkg.Index) bool
	Requested() *request.RequestedMessages
}

// MilestoneValidator is implemented by pkg/milestone.Validator.
type MilestoneValidator interface {
	Validate(messageID hornet.MessageId, ms milestonepkg.Milestone, now time.Time) error
}

// Config holds Stage 3's configured thresholds and the coordinator
// address Stage 4 matches a transaction's address against.
type Config struct {
	MWM                uint8
	SnapshotTimestamp  uint32
	AllowedDrift       time.Duration
	CoordinatorAddress ternary.Trytes
}

// Events are the events the pipeline fires.
type Events struct {
	// MessageProcessed fires once a newly-seen transaction has been
	// inserted into the tangle.
	MessageProcessed *events.Event
}

func newEvents() *Events {
	return &Events{
		MessageProcessed: events.NewEvent(tangle.MessageIDCaller),
	}
}

type inboundTx struct {
	peerID string
	raw    []byte
}

// Pipeline implements Component D end to end: Stage 1 dedup, Stage 2
// batch hashing, Stage 3 validation, and Stage 4 insertion and fan-out.
type Pipeline struct {
	*logger.WrappedLogger

	tangle     *tangle.Tangle
	sponge     crypto.Sponge
	cfg        Config
	dedup      *dedup
	propagator Propagator
	messages   MessageRequester
	validator  MilestoneValidator
	peers      request.PeerRegistry
	metrics    *metrics.Metrics

	inbound chan inboundTx
	wp      *workerpool.WorkerPool

	Events *Events
}

// New creates a Pipeline bound to tng. validator may be nil for a node
// not configured to validate milestones.
func New(
	tng *tangle.Tangle,
	sponge crypto.Sponge,
	cfg Config,
	propagator Propagator,
	messages MessageRequester,
	validator MilestoneValidator,
	peers request.PeerRegistry,
	m *metrics.Metrics,
	log *logger.Logger,
) *Pipeline {
	p := &Pipeline{
		tangle:     tng,
		sponge:     sponge,
		cfg:        cfg,
		dedup:      newDedup(),
		propagator: propagator,
		messages:   messages,
		validator:  validator,
		peers:      peers,
		metrics:    m,
		inbound:    make(chan inboundTx, inboundQueueSize),
		Events:     newEvents(),
	}
	p.WrappedLogger = logger.NewWrappedLogger(log)

	p.wp = workerpool.New(func(task workerpool.Task) {
		p.process(task.Param(0).(item))
		task.Return(nil)
	}, workerpool.WorkerCount(workerCount), workerpool.QueueSize(inboundQueueSize))

	return p
}

// Start starts the worker pool and the Stage 2 batching loop. shutdown
// also stops the batching loop once closed.
func (p *Pipeline) Start(shutdown <-chan struct{}) {
	p.wp.Start()

	go p.runBatcher(shutdown)
}

// Stop drains and stops the worker pool.
func (p *Pipeline) Stop() {
	p.wp.StopAndWait()
}

// Submit enqueues the inflated, fixed-size transaction buffer received
// from peerID for Stage 1 dedup and, if new, Stage 2 batch hashing.
// Submission never blocks: a full inbound queue drops the submission,
// matching this module's back-pressure policy for transaction-class
// traffic.
func (p *Pipeline) Submit(peerID string, raw []byte) {
	select {
	case p.inbound <- inboundTx{peerID: peerID, raw: raw}:
	default:
	}
}

// runBatcher implements Stage 2's batching decision: keep accumulating
// until batchSize items are pending, or flush whatever is pending the
// moment the inbound channel is not immediately ready, per §4.D.
func (p *Pipeline) runBatcher(shutdown <-chan struct{}) {
	var pending []inboundTx

	for {
		if len(pending) == 0 {
			select {
			case tx := <-p.inbound:
				pending = append(pending, tx)
			case <-shutdown:
				return
			}

			continue
		}

		if len(pending) >= batchSize {
			p.flush(pending)
			pending = nil

			continue
		}

		select {
		case tx := <-p.inbound:
			pending = append(pending, tx)
		case <-shutdown:
			p.flush(pending)

			return
		default:
			p.flush(pending)
			pending = nil
		}
	}
}

// flush runs Stage 1 dedup over pending, then Stage 2 batch hashing over
// whatever survives it, and submits each hashed item for Stage 3/4
// processing in the worker pool.
func (p *Pipeline) flush(pending []inboundTx) {
	items := make([]item, 0, len(pending))
	for _, tx := range pending {
		if p.dedup.seen(tx.raw) {
			p.metrics.IncKnownTransactions()

			continue
		}

		items = append(items, item{peerID: tx.peerID, raw: tx.raw})
	}

	if len(items) == 0 {
		return
	}

	for _, it := range hashBatch(p.sponge, items) {
		p.wp.Submit(it)
	}
}

// process runs Stage 3 validation and Stage 4 insertion/fan-out for a
// single already-hashed item.
func (p *Pipeline) process(it item) {
	fields, err := ternary.ParseTransactionTrits(ternary.BytesToTrits(it.raw))
	if err != nil {
		p.metrics.IncInvalidTransactions()

		return
	}

	messageID := ternary.HashToMessageID(it.hash)
	requested := p.messages.Requested().Contains(messageID)

	params := validationParams{
		mwm:               p.cfg.MWM,
		snapshotTimestamp: p.cfg.SnapshotTimestamp,
		allowedDrift:      p.cfg.AllowedDrift,
	}

	if err := validateTransaction(fields, it.hash, params, time.Now(), requested); err != nil {
		if err == ErrTimestampOutOfWindow {
			p.metrics.IncStaleTransactions()
		} else {
			p.metrics.IncInvalidTransactions()
		}

		return
	}

	parent1 := ternary.HashToMessageID(fields.TrunkTransaction)
	parent2 := ternary.HashToMessageID(fields.BranchTransaction)

	payload := &tangle.TransactionPayload{
		Address:                  fields.Address,
		Value:                    fields.Value,
		Tag:                      fields.Tag,
		Timestamp:                fields.Timestamp,
		Hash:                     it.hash,
		SignatureMessageFragment: fields.SignatureMessageFragment,
	}

	isNew := p.tangle.Insert(messageID, &tangle.Message{Parent1: parent1, Parent2: parent2, Payload: payload, RawBytes: it.raw})
	if !isNew {
		p.metrics.IncKnownTransactions()

		return
	}

	p.metrics.IncNewTransactions()
	p.Events.MessageProcessed.Trigger(messageID)
	p.propagator.Enqueue(messageID)

	if index, wasRequested := p.messages.Requested().Remove(messageID); wasRequested {
		p.messages.Request(parent1, index)
		if parent2 != parent1 {
			p.messages.Request(parent2, index)
		}
	} else {
		p.broadcast(it.raw, it.peerID)
	}

	if p.validator != nil && p.cfg.CoordinatorAddress != "" && fields.Address == p.cfg.CoordinatorAddress {
		p.validateMilestone(messageID, it.raw)
	}
}

// broadcast fans raw out to every peer but sourcePeerID, per §4.D's "not
// back to the source peer" rule.
func (p *Pipeline) broadcast(raw []byte, sourcePeerID string) {
	frame := wire.EncodeTransaction(wire.Transaction{CompressedBytes: wire.CompressTransactionBytes(raw)})

	for _, target := range p.peers.Peers() {
		if target.ID == sourcePeerID {
			continue
		}

		target.EnqueueBroadcast(frame)
	}
}

// validateMilestone decodes the binary milestone payload a coordinator
// message carries in place of an ordinary transaction's value-transfer
// fields and hands it to the configured validator, per §4.F. A
// malformed payload counts as an invalid message rather than a panic or
// a silently dropped message.
func (p *Pipeline) validateMilestone(messageID hornet.MessageId, raw []byte) {
	ms, err := milestonepkg.DecodePayload(raw)
	if err != nil {
		p.metrics.IncInvalidMessages()
		p.LogWarnf("coordinator message %s did not decode as a milestone payload: %s", messageID.Hex(), err)

		return
	}

	_ = p.validator.Validate(messageID, ms, time.Now())
}
