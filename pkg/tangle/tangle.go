// Package tangle implements the in-memory DAG store: the vertex map,
// parent/children edges, metadata, the milestone index, the
// solid-entry-points set and the four monotonic scalar indices every
// other component reads or advances.
package tangle

import (
	"sync/atomic"

	"github.com/iotaledger/hive.go/core/logger"
	"github.com/iotaledger/hive.go/core/syncutils"

	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
)

// Tangle is the shared, concurrency-safe DAG store. A single instance is
// constructed at node start and threaded by reference into every worker,
// per SPEC_FULL's ambient-stack guidance against hidden static state.
type Tangle struct {
	*logger.WrappedLogger

	verticesMu syncutils.RWMutex
	vertices   map[hornet.MessageId]*Vertex

	childrenMu syncutils.RWMutex
	children   map[hornet.MessageId]map[hornet.MessageId]struct{}

	milestonesMu syncutils.RWMutex
	milestones   map[milestonepkg.Index]hornet.MessageId

	solidEntryPointsMu syncutils.RWMutex
	solidEntryPoints   map[hornet.MessageId]struct{}

	latestMilestoneIndex      uint32
	latestSolidMilestoneIndex uint32
	snapshotMilestoneIndex    uint32
	pruningIndex              uint32

	Events *Events
}

// New creates an empty Tangle.
func New(log *logger.Logger) *Tangle {
	t := &Tangle{
		vertices:         make(map[hornet.MessageId]*Vertex),
		children:         make(map[hornet.MessageId]map[hornet.MessageId]struct{}),
		milestones:       make(map[milestonepkg.Index]hornet.MessageId),
		solidEntryPoints: make(map[hornet.MessageId]struct{}),
		Events:           newEvents(),
	}
	t.WrappedLogger = logger.NewWrappedLogger(log)

	return t
}

// Insert adds a new vertex for messageID if it does not already exist. It
// returns false without mutating anything if the id was already present,
// matching the "no overwrite of message or metadata" contract of 4.A.
func (t *Tangle) Insert(messageID hornet.MessageId, message *Message) bool {
	t.verticesMu.Lock()
	if _, exists := t.vertices[messageID]; exists {
		t.verticesMu.Unlock()

		return false
	}

	vertex := &Vertex{
		Message:  message,
		Metadata: NewMetadata(messageID, message.Parent1, message.Parent2),
	}
	t.vertices[messageID] = vertex
	t.verticesMu.Unlock()

	for _, parent := range message.Parents() {
		t.addChild(parent, messageID)
	}

	t.Events.MessageStored.Trigger(messageID)

	return true
}

func (t *Tangle) addChild(parent, child hornet.MessageId) {
	t.childrenMu.Lock()
	defer t.childrenMu.Unlock()

	set, ok := t.children[parent]
	if !ok {
		set = make(map[hornet.MessageId]struct{})
		t.children[parent] = set
	}
	set[child] = struct{}{}
}

// Get returns the vertex for messageID, if any.
func (t *Tangle) Get(messageID hornet.MessageId) (*Vertex, bool) {
	t.verticesMu.RLock()
	defer t.verticesMu.RUnlock()

	v, ok := t.vertices[messageID]

	return v, ok
}

// Contains reports whether messageID has a vertex in the store.
func (t *Tangle) Contains(messageID hornet.MessageId) bool {
	t.verticesMu.RLock()
	defer t.verticesMu.RUnlock()

	_, ok := t.vertices[messageID]

	return ok
}

// GetMetadata returns the metadata for messageID, if any.
func (t *Tangle) GetMetadata(messageID hornet.MessageId) (*Metadata, bool) {
	v, ok := t.Get(messageID)
	if !ok {
		return nil, false
	}

	return v.Metadata, true
}

// UpdateMetadata looks up the metadata for messageID and applies fn to it,
// reporting whether the vertex existed. fn must mutate meta through its own
// setters (SetSolid, SetMilestone, Confirm, ...), each of which takes
// meta's lock itself; UpdateMetadata does not hold any lock across fn.
func (t *Tangle) UpdateMetadata(messageID hornet.MessageId, fn func(*Metadata)) bool {
	meta, ok := t.GetMetadata(messageID)
	if !ok {
		return false
	}

	fn(meta)

	return true
}

// GetChildren returns a snapshot of the children of messageID.
func (t *Tangle) GetChildren(messageID hornet.MessageId) hornet.MessageIDs {
	t.childrenMu.RLock()
	defer t.childrenMu.RUnlock()

	set, ok := t.children[messageID]
	if !ok {
		return nil
	}

	children := make(hornet.MessageIDs, 0, len(set))
	for id := range set {
		children = append(children, id)
	}

	return children
}

// AddMilestone records that index confirms messageID as the milestone
// vertex, and fires MilestoneIndexChanged.
func (t *Tangle) AddMilestone(index milestonepkg.Index, messageID hornet.MessageId) {
	t.milestonesMu.Lock()
	t.milestones[index] = messageID
	t.milestonesMu.Unlock()

	t.Events.MilestoneIndexChanged.Trigger(index)
}

// GetMilestoneMessageId returns the message id of the milestone at index,
// if known.
func (t *Tangle) GetMilestoneMessageId(index milestonepkg.Index) (hornet.MessageId, bool) {
	t.milestonesMu.RLock()
	defer t.milestonesMu.RUnlock()

	id, ok := t.milestones[index]

	return id, ok
}

// ContainsMilestone reports whether index is known.
func (t *Tangle) ContainsMilestone(index milestonepkg.Index) bool {
	_, ok := t.GetMilestoneMessageId(index)

	return ok
}

// AddSolidEntryPoint marks messageID as a solid entry point.
func (t *Tangle) AddSolidEntryPoint(messageID hornet.MessageId) {
	t.solidEntryPointsMu.Lock()
	defer t.solidEntryPointsMu.Unlock()

	t.solidEntryPoints[messageID] = struct{}{}
}

// IsSolidEntryPoint reports whether messageID is a solid entry point.
func (t *Tangle) IsSolidEntryPoint(messageID hornet.MessageId) bool {
	t.solidEntryPointsMu.RLock()
	defer t.solidEntryPointsMu.RUnlock()

	_, ok := t.solidEntryPoints[messageID]

	return ok
}

// UpdateLatestMilestoneIndex atomically stores v if it is greater than
// the current value; it is a no-op otherwise.
func (t *Tangle) UpdateLatestMilestoneIndex(v milestonepkg.Index) {
	atomicStoreIfGreater(&t.latestMilestoneIndex, uint32(v))
}

// GetLatestMilestoneIndex returns the current latest (not necessarily
// solid) milestone index.
func (t *Tangle) GetLatestMilestoneIndex() milestonepkg.Index {
	return milestonepkg.Index(atomic.LoadUint32(&t.latestMilestoneIndex))
}

// UpdateLatestSolidMilestoneIndex atomically stores v, per §8 property 5
// ("Monotonic solid index") this must only ever be called with a strictly
// greater value; callers (the solidifier) are solely responsible for that.
func (t *Tangle) UpdateLatestSolidMilestoneIndex(v milestonepkg.Index) {
	atomic.StoreUint32(&t.latestSolidMilestoneIndex, uint32(v))
}

// GetLatestSolidMilestoneIndex returns the current solid milestone index.
func (t *Tangle) GetLatestSolidMilestoneIndex() milestonepkg.Index {
	return milestonepkg.Index(atomic.LoadUint32(&t.latestSolidMilestoneIndex))
}

// UpdateSnapshotMilestoneIndex atomically stores v.
func (t *Tangle) UpdateSnapshotMilestoneIndex(v milestonepkg.Index) {
	atomic.StoreUint32(&t.snapshotMilestoneIndex, uint32(v))
}

// GetSnapshotMilestoneIndex returns the snapshot milestone index.
func (t *Tangle) GetSnapshotMilestoneIndex() milestonepkg.Index {
	return milestonepkg.Index(atomic.LoadUint32(&t.snapshotMilestoneIndex))
}

// UpdatePruningIndex atomically stores v.
func (t *Tangle) UpdatePruningIndex(v milestonepkg.Index) {
	atomic.StoreUint32(&t.pruningIndex, uint32(v))
}

// GetPruningIndex returns the pruning index.
func (t *Tangle) GetPruningIndex() milestonepkg.Index {
	return milestonepkg.Index(atomic.LoadUint32(&t.pruningIndex))
}

// IsSynced reports whether the latest solid milestone index has caught up
// with the latest known milestone index.
func (t *Tangle) IsSynced() bool {
	return t.GetLatestSolidMilestoneIndex() == t.GetLatestMilestoneIndex()
}

func atomicStoreIfGreater(addr *uint32, v uint32) {
	for {
		current := atomic.LoadUint32(addr)
		if v <= current {
			return
		}
		if atomic.CompareAndSwapUint32(addr, current, v) {
			return
		}
	}
}
