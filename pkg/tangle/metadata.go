package tangle

import (
	"time"

	"github.com/bits-and-blooms/bitset"

	"github.com/iotaledger/hive.go/core/syncutils"

	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
)

// Flag is a bit position within a Metadata's flag set.
type Flag uint

const (
	// FlagSolid is set once both of a vertex's parents are solid or are
	// solid entry points.
	FlagSolid Flag = iota
	// FlagTail marks a vertex as the tail (first) transaction of a bundle.
	FlagTail
	// FlagRequested marks a vertex whose delivery was explicitly requested.
	FlagRequested
	// FlagMilestone marks a vertex carrying a validated milestone payload.
	FlagMilestone
	// FlagConflicting marks a vertex excluded by white-flag confirmation
	// because one of its inputs was already spent earlier in the same walk.
	FlagConflicting

	flagCount
)

// Metadata is the mutable state attached to a Vertex. Every field but the
// identifying message/parent ids is guarded by the embedded RWMutex,
// following the same shape laumair-hornet's MessageMetadata uses: a
// bitmask flag set plus a handful of milestone-index-typed fields behind
// one per-vertex lock.
type Metadata struct {
	syncutils.RWMutex

	messageID hornet.MessageId
	parent1   hornet.MessageId
	parent2   hornet.MessageId

	flags *bitset.BitSet

	milestoneIndex    milestonepkg.Index
	hasMilestoneIndex bool

	otrsi    milestonepkg.Index
	hasOTRSI bool
	ytrsi    milestonepkg.Index
	hasYTRSI bool

	coneIndex    milestonepkg.Index
	hasConeIndex bool

	arrivalTime        int64
	solidificationTime int64
	confirmationTime   int64
}

// NewMetadata creates fresh Metadata for a vertex with the given parents,
// stamping arrivalTime to now.
func NewMetadata(messageID, parent1, parent2 hornet.MessageId) *Metadata {
	return &Metadata{
		messageID:   messageID,
		parent1:     parent1,
		parent2:     parent2,
		flags:       bitset.New(uint(flagCount)),
		arrivalTime: nowMillis(),
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// MessageID returns the id of the vertex this metadata belongs to.
func (m *Metadata) MessageID() hornet.MessageId {
	return m.messageID
}

// Parents returns the two parent ids of the vertex this metadata belongs to.
func (m *Metadata) Parents() (hornet.MessageId, hornet.MessageId) {
	return m.parent1, m.parent2
}

// ArrivalTime returns the millisecond timestamp at which the vertex was
// first inserted into the tangle.
func (m *Metadata) ArrivalTime() int64 {
	m.RLock()
	defer m.RUnlock()

	return m.arrivalTime
}

// HasFlag reports whether f is set.
func (m *Metadata) HasFlag(f Flag) bool {
	m.RLock()
	defer m.RUnlock()

	return m.flags.Test(uint(f))
}

func (m *Metadata) setFlag(f Flag, value bool) {
	if value {
		m.flags.Set(uint(f))

		return
	}
	m.flags.Clear(uint(f))
}

// IsSolid reports whether FlagSolid is set.
func (m *Metadata) IsSolid() bool {
	return m.HasFlag(FlagSolid)
}

// SetSolid sets FlagSolid and, when transitioning to true, stamps
// solidificationTime. Callers must hold no other lock on this vertex;
// SetSolid takes the metadata lock itself.
func (m *Metadata) SetSolid(solid bool) bool {
	m.Lock()
	defer m.Unlock()

	if solid == m.flags.Test(uint(FlagSolid)) {
		return false
	}

	if solid {
		m.solidificationTime = nowMillis()
	} else {
		m.solidificationTime = 0
	}
	m.setFlag(FlagSolid, solid)

	return true
}

// SolidificationTime returns the millisecond timestamp the vertex became
// solid, or 0 if it is not solid.
func (m *Metadata) SolidificationTime() int64 {
	m.RLock()
	defer m.RUnlock()

	return m.solidificationTime
}

// IsRequested reports whether FlagRequested is set.
func (m *Metadata) IsRequested() bool {
	return m.HasFlag(FlagRequested)
}

// SetRequested sets FlagRequested.
func (m *Metadata) SetRequested(requested bool) {
	m.Lock()
	defer m.Unlock()

	m.setFlag(FlagRequested, requested)
}

// IsMilestone reports whether FlagMilestone is set.
func (m *Metadata) IsMilestone() bool {
	return m.HasFlag(FlagMilestone)
}

// MilestoneIndex returns the milestone index recorded on this vertex and
// whether one was ever set.
func (m *Metadata) MilestoneIndex() (milestonepkg.Index, bool) {
	m.RLock()
	defer m.RUnlock()

	return m.milestoneIndex, m.hasMilestoneIndex
}

// SetMilestone marks the vertex as carrying a validated milestone payload
// for the given index.
func (m *Metadata) SetMilestone(index milestonepkg.Index) {
	m.Lock()
	defer m.Unlock()

	m.setFlag(FlagMilestone, true)
	m.milestoneIndex = index
	m.hasMilestoneIndex = true
}

// IsConflicting reports whether FlagConflicting is set.
func (m *Metadata) IsConflicting() bool {
	return m.HasFlag(FlagConflicting)
}

// SetConflicting sets FlagConflicting.
func (m *Metadata) SetConflicting(conflicting bool) {
	m.Lock()
	defer m.Unlock()

	m.setFlag(FlagConflicting, conflicting)
}

// OTRSI returns the oldest root-snapshot index and whether it has been set.
func (m *Metadata) OTRSI() (milestonepkg.Index, bool) {
	m.RLock()
	defer m.RUnlock()

	return m.otrsi, m.hasOTRSI
}

// YTRSI returns the youngest root-snapshot index and whether it has been set.
func (m *Metadata) YTRSI() (milestonepkg.Index, bool) {
	m.RLock()
	defer m.RUnlock()

	return m.ytrsi, m.hasYTRSI
}

// SetOTRSIYTRSI writes both root-snapshot indices. Once set, they are
// never overwritten again by the propagator for a non-confirmed vertex;
// callers (pkg/propagator) are responsible for checking HasOTRSIYTRSI
// first.
func (m *Metadata) SetOTRSIYTRSI(otrsi, ytrsi milestonepkg.Index) {
	m.Lock()
	defer m.Unlock()

	m.otrsi = otrsi
	m.ytrsi = ytrsi
	m.hasOTRSI = true
	m.hasYTRSI = true
}

// HasOTRSIYTRSI reports whether both root-snapshot indices have been set.
func (m *Metadata) HasOTRSIYTRSI() bool {
	m.RLock()
	defer m.RUnlock()

	return m.hasOTRSI && m.hasYTRSI
}

// ConeIndex returns the milestone index that confirmed this vertex, and
// whether it has been confirmed at all.
func (m *Metadata) ConeIndex() (milestonepkg.Index, bool) {
	m.RLock()
	defer m.RUnlock()

	return m.coneIndex, m.hasConeIndex
}

// IsConfirmed reports whether ConeIndex has been set.
func (m *Metadata) IsConfirmed() bool {
	m.RLock()
	defer m.RUnlock()

	return m.hasConeIndex
}

// Confirm sets the cone index and confirmation timestamp, and seeds
// OTRSI/YTRSI to the cone index itself -- the same confirmation-time
// seeding bee's milestone_cone_updater.rs performs before the future-cone
// propagation walk runs from this vertex's children.
func (m *Metadata) Confirm(coneIndex milestonepkg.Index, confirmationTimeMs int64) {
	m.Lock()
	defer m.Unlock()

	m.coneIndex = coneIndex
	m.hasConeIndex = true
	m.confirmationTime = confirmationTimeMs
	m.otrsi = coneIndex
	m.ytrsi = coneIndex
	m.hasOTRSI = true
	m.hasYTRSI = true
	m.setFlag(FlagSolid, true)
}

// ConfirmationTime returns the millisecond confirmation timestamp, or 0
// if the vertex is not confirmed.
func (m *Metadata) ConfirmationTime() int64 {
	m.RLock()
	defer m.RUnlock()

	return m.confirmationTime
}
