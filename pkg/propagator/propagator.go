// Package propagator implements Component E: transitive solidity
// propagation and the OTRSI/YTRSI root-snapshot-index recurrence. It is
// the only writer of Solid, solidification_ts, OTRSI and YTRSI for
// vertices that are not yet confirmed, per spec.md §4.E.
package propagator

import (
	"github.com/iotaledger/hive.go/core/events"
	"github.com/iotaledger/hive.go/core/logger"
	"github.com/iotaledger/hive.go/core/workerpool"

	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
	"github.com/iotaledger/hornet-tangle-core/pkg/tangle"
)

const (
	workerCount = 1
	queueSize   = 10000
)

// Events are the events the propagator fires. MessageSolid precedes any
// LatestSolidMilestoneChanged involving the same message, per §5's
// ordering guarantee; ConeRootIndexesUpdated precedes tip-pool
// notification about that message.
type Events struct {
	MessageSolid               *events.Event
	LatestSolidMilestoneChanged *events.Event
	ConeRootIndexesUpdated      *events.Event
}

// MilestoneSolidCaller unpacks a single milestonepkg.Index parameter.
func MilestoneSolidCaller(handler interface{}, params ...interface{}) {
	handler.(func(milestonepkg.Index))(params[0].(milestonepkg.Index))
}

func newEvents() *Events {
	return &Events{
		MessageSolid:                events.NewEvent(tangle.MessageIDCaller),
		LatestSolidMilestoneChanged: events.NewEvent(MilestoneSolidCaller),
		ConeRootIndexesUpdated:      events.NewEvent(tangle.MessageIDCaller),
	}
}

// Propagator walks the future cone of newly inserted or newly
// parent-updated messages, updating solidity and root-snapshot indices
// breadth-first, stopping a branch as soon as a vertex's values are
// already up to date -- the same "stop propagating once recent" shape
// bee's UpdateConeRootIndexes/GetConeRootIndexes pair (grounded in
// other_examples cone_root_indexes.go) and its bounded recursion guard.
type Propagator struct {
	*logger.WrappedLogger

	tangle *tangle.Tangle
	wp     *workerpool.WorkerPool

	Events *Events
}

// New creates a Propagator bound to tng.
func New(tng *tangle.Tangle, log *logger.Logger) *Propagator {
	p := &Propagator{
		tangle: tng,
		Events: newEvents(),
	}
	p.WrappedLogger = logger.NewWrappedLogger(log)

	p.wp = workerpool.New(func(task workerpool.Task) {
		messageID := task.Param(0).(hornet.MessageId)
		p.propagate(messageID)
		task.Return(nil)
	}, workerpool.WorkerCount(workerCount), workerpool.QueueSize(queueSize))

	return p
}

// Start starts the propagator's worker pool.
func (p *Propagator) Start() { p.wp.Start() }

// Stop drains and stops the propagator's worker pool.
func (p *Propagator) Stop() { p.wp.StopAndWait() }

// Enqueue submits messageID (a newly inserted vertex, or one whose
// parent just transitioned) for a propagation pass.
func (p *Propagator) Enqueue(messageID hornet.MessageId) {
	p.wp.Submit(messageID)
}

// propagate runs a breadth-first walk of messageID's future cone,
// updating solidity first and then, independently, OTRSI/YTRSI -- both
// walks stop a branch as soon as that vertex's value is already current,
// bounding the work to the genuinely outdated subset of the cone.
func (p *Propagator) propagate(messageID hornet.MessageId) {
	p.propagateSolidity(messageID)
	p.propagateRootSnapshotIndexes(messageID)
}

func (p *Propagator) propagateSolidity(startID hornet.MessageId) {
	queue := hornet.MessageIDs{startID}
	visited := make(map[hornet.MessageId]struct{})

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if _, ok := visited[id]; ok {
			continue
		}
		visited[id] = struct{}{}

		vertex, ok := p.tangle.Get(id)
		if !ok {
			continue
		}

		if vertex.Metadata.IsSolid() {
			// Already solid: nothing changed here, but children may
			// still be outdated if they were inserted after this
			// vertex became solid, so keep descending.
			for _, child := range p.tangle.GetChildren(id) {
				queue = append(queue, child)
			}

			continue
		}

		if !p.bothParentsSolidOrSEP(vertex) {
			continue
		}

		if !vertex.Metadata.SetSolid(true) {
			continue
		}

		p.Events.MessageSolid.Trigger(id)

		if vertex.Metadata.IsMilestone() {
			if index, ok := vertex.Metadata.MilestoneIndex(); ok {
				p.Events.LatestSolidMilestoneChanged.Trigger(index)
			}
		}

		for _, child := range p.tangle.GetChildren(id) {
			queue = append(queue, child)
		}
	}
}

func (p *Propagator) bothParentsSolidOrSEP(vertex *tangle.Vertex) bool {
	parent1, parent2 := vertex.Metadata.Parents()

	return p.solidOrSEP(parent1) && p.solidOrSEP(parent2)
}

func (p *Propagator) solidOrSEP(id hornet.MessageId) bool {
	if p.tangle.IsSolidEntryPoint(id) {
		return true
	}

	meta, ok := p.tangle.GetMetadata(id)

	return ok && meta.IsSolid()
}

// propagateRootSnapshotIndexes computes best_otrsi/best_ytrsi for every
// visited descendant that is not yet confirmed, per §4.E rule 2: stop a
// branch if either parent lacks OTRSI/YTRSI, or if the vertex already
// holds values.
func (p *Propagator) propagateRootSnapshotIndexes(startID hornet.MessageId) {
	queue := hornet.MessageIDs{startID}
	visited := make(map[hornet.MessageId]struct{})

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if _, ok := visited[id]; ok {
			continue
		}
		visited[id] = struct{}{}

		vertex, ok := p.tangle.Get(id)
		if !ok {
			continue
		}

		if vertex.Metadata.IsConfirmed() {
			continue
		}

		if vertex.Metadata.HasOTRSIYTRSI() {
			continue
		}

		parent1, parent2 := vertex.Metadata.Parents()

		otrsi1, ok1 := p.otrsi(parent1)
		otrsi2, ok2 := p.otrsi(parent2)
		if !ok1 || !ok2 {
			continue
		}

		ytrsi1, ok1 := p.ytrsi(parent1)
		ytrsi2, ok2 := p.ytrsi(parent2)
		if !ok1 || !ok2 {
			continue
		}

		bestOTRSI := otrsi1
		if otrsi2 > bestOTRSI {
			bestOTRSI = otrsi2
		}

		bestYTRSI := ytrsi1
		if ytrsi2 < bestYTRSI {
			bestYTRSI = ytrsi2
		}

		vertex.Metadata.SetOTRSIYTRSI(bestOTRSI, bestYTRSI)
		p.Events.ConeRootIndexesUpdated.Trigger(id)

		for _, child := range p.tangle.GetChildren(id) {
			queue = append(queue, child)
		}
	}
}

func (p *Propagator) otrsi(id hornet.MessageId) (milestonepkg.Index, bool) {
	if p.tangle.IsSolidEntryPoint(id) {
		return p.tangle.GetSnapshotMilestoneIndex(), true
	}

	meta, ok := p.tangle.GetMetadata(id)
	if !ok {
		return 0, false
	}

	return meta.OTRSI()
}

func (p *Propagator) ytrsi(id hornet.MessageId) (milestonepkg.Index, bool) {
	if p.tangle.IsSolidEntryPoint(id) {
		return p.tangle.GetSnapshotMilestoneIndex(), true
	}

	meta, ok := p.tangle.GetMetadata(id)
	if !ok {
		return 0, false
	}

	return meta.YTRSI()
}
