package tipselect

import (
	"math/rand"
	"time"

	"github.com/iotaledger/hive.go/core/logger"
	"github.com/iotaledger/hive.go/core/syncutils"

	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/tangle"
)

const (
	// maxNumChildren is the maximum number of children a tip may acquire
	// before it is evicted from the non-lazy set.
	maxNumChildren = 2
	// maxAge bounds how long a tip may sit in the non-lazy set after
	// acquiring its first child before it is evicted.
	maxAge = 3 * time.Second
	// retentionLimit bounds the size of the non-lazy set.
	retentionLimit = 100
	// sampleAttempts is how many distinct tips Select samples before
	// giving up, per §4.I's "up to 10 distinct tips".
	sampleAttempts = 10
)

type tipEntry struct {
	messageID     hornet.MessageId
	insertedAt    time.Time
	childrenCount int
	firstChildAt  time.Time
}

// Pool is the non-lazy tip set: the candidates a new message may select
// as parents. A single Pool instance is shared by every worker that
// inserts or selects tips, guarded by one RWMutex per §5's ambient
// concurrency model.
type Pool struct {
	*logger.WrappedLogger

	tangle *tangle.Tangle

	mu      syncutils.RWMutex
	entries map[hornet.MessageId]*tipEntry
}

// New creates an empty Pool backed by tng.
func New(tng *tangle.Tangle, log *logger.Logger) *Pool {
	p := &Pool{
		tangle:  tng,
		entries: make(map[hornet.MessageId]*tipEntry),
	}
	p.WrappedLogger = logger.NewWrappedLogger(log)

	return p
}

// Len returns the current size of the non-lazy set.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.entries)
}

// Contains reports whether id is currently a non-lazy tip.
func (p *Pool) Contains(id hornet.MessageId) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.entries[id]

	return ok
}

// Insert applies §4.I's insertion policy for a newly-solid tail id with
// parents p1/p2: the fast path (both parents already non-lazy admits id
// unconditionally), otherwise id's own score decides. It reports whether
// id was added.
func (p *Pool) Insert(id, p1, p2 hornet.MessageId) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, p1NonLazy := p.entries[p1]
	_, p2NonLazy := p.entries[p2]

	if !(p1NonLazy && p2NonLazy) {
		if p.scoreLocked(id) != NonLazy {
			return false
		}
	}

	p.entries[id] = &tipEntry{messageID: id, insertedAt: time.Now()}

	for _, parent := range []hornet.MessageId{p1, p2} {
		p.touchChildLocked(parent)
	}

	p.evictOverflowLocked()

	return true
}

func (p *Pool) touchChildLocked(parent hornet.MessageId) {
	entry, ok := p.entries[parent]
	if !ok {
		return
	}

	entry.childrenCount++
	if entry.firstChildAt.IsZero() {
		entry.firstChildAt = time.Now()
	}

	if entry.childrenCount > maxNumChildren || time.Since(entry.firstChildAt) > maxAge {
		delete(p.entries, parent)
	}
}

func (p *Pool) evictOverflowLocked() {
	for len(p.entries) > retentionLimit {
		var oldest hornet.MessageId
		var oldestAt time.Time
		first := true

		for id, entry := range p.entries {
			if first || entry.insertedAt.Before(oldestAt) {
				oldest = id
				oldestAt = entry.insertedAt
				first = false
			}
		}

		delete(p.entries, oldest)
	}
}

func (p *Pool) scoreLocked(id hornet.MessageId) Score {
	meta, ok := p.tangle.GetMetadata(id)
	if !ok {
		return Lazy
	}

	otrsi, hasOTRSI := meta.OTRSI()
	ytrsi, hasYTRSI := meta.YTRSI()
	if !hasOTRSI || !hasYTRSI {
		return Lazy
	}

	return score(p.tangle.GetLatestSolidMilestoneIndex(), otrsi, ytrsi)
}

// Rescore evaluates every current non-lazy tip's score against the
// current latest solid milestone index and evicts any that are no
// longer NonLazy, per §4.I's "on every milestone advance" rule and the
// testable "tip score stability" property.
func (p *Pool) Rescore() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id := range p.entries {
		if p.scoreLocked(id) != NonLazy {
			delete(p.entries, id)
		}
	}
}

// Select samples up to sampleAttempts distinct tips uniformly at random
// from the non-lazy set and returns a parent pair, per §4.I's
// get_non_lazy_tips: nil if the set is empty, (t, t) if exactly one
// distinct tip was drawn, otherwise two distinct tips.
func (p *Pool) Select() (hornet.MessageId, hornet.MessageId, bool) {
	p.mu.RLock()
	ids := make([]hornet.MessageId, 0, len(p.entries))
	for id := range p.entries {
		ids = append(ids, id)
	}
	p.mu.RUnlock()

	if len(ids) == 0 {
		return hornet.MessageId{}, hornet.MessageId{}, false
	}

	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	limit := sampleAttempts
	if limit > len(ids) {
		limit = len(ids)
	}
	sample := ids[:limit]

	if len(sample) == 1 {
		return sample[0], sample[0], true
	}

	return sample[0], sample[1], true
}
