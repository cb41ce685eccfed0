// Package request implements Component G: the message and milestone
// request schedulers, their "already asked" tables, and the two-pass
// round-robin peer selection and retry loop described in spec.md §4.G,
// supplemented by original_source's requester/message.rs
// has_data/maybe_has_data predicates (SPEC_FULL §3 item 2).
package request

import (
	"time"

	"github.com/iotaledger/hive.go/core/syncutils"

	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
	"github.com/iotaledger/hornet-tangle-core/pkg/milestonepkg"
)

// MessageEntry is a single RequestedMessages table row: the milestone
// index the message was requested on behalf of, and when it was last
// (re)requested.
type MessageEntry struct {
	Index       milestonepkg.Index
	RequestedAt time.Time
}

// RequestedMessages tracks in-flight message requests. Presence means
// "already asked"; contains/insert/remove are independent operations
// without cross-key atomicity, per §5.
type RequestedMessages struct {
	mu      syncutils.RWMutex
	entries map[hornet.MessageId]MessageEntry
}

// NewRequestedMessages creates an empty RequestedMessages table.
func NewRequestedMessages() *RequestedMessages {
	return &RequestedMessages{entries: make(map[hornet.MessageId]MessageEntry)}
}

// Contains reports whether id has an in-flight request.
func (t *RequestedMessages) Contains(id hornet.MessageId) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.entries[id]

	return ok
}

// Mark records that id was (re)requested for index at now.
func (t *RequestedMessages) Mark(id hornet.MessageId, index milestonepkg.Index, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[id] = MessageEntry{Index: index, RequestedAt: now}
}

// Remove deletes id's entry, if any, reporting its index when present.
func (t *RequestedMessages) Remove(id hornet.MessageId) (milestonepkg.Index, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}

	return entry.Index, ok
}

// Stale returns a snapshot of entries last requested more than olderThan
// ago, for the retry loop to reconsider.
func (t *RequestedMessages) Stale(now time.Time, olderThan time.Duration) []hornet.MessageId {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []hornet.MessageId
	for id, entry := range t.entries {
		if now.Sub(entry.RequestedAt) > olderThan {
			out = append(out, id)
		}
	}

	return out
}

// Get returns the entry for id, if any, without removing it.
func (t *RequestedMessages) Get(id hornet.MessageId) (MessageEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.entries[id]

	return entry, ok
}

// Len returns the number of in-flight message requests.
func (t *RequestedMessages) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.entries)
}

// RequestedMilestones tracks in-flight milestone-index requests,
// symmetric to RequestedMessages but keyed by index directly.
type RequestedMilestones struct {
	mu      syncutils.RWMutex
	entries map[milestonepkg.Index]time.Time
}

// NewRequestedMilestones creates an empty RequestedMilestones table.
func NewRequestedMilestones() *RequestedMilestones {
	return &RequestedMilestones{entries: make(map[milestonepkg.Index]time.Time)}
}

// Contains reports whether index has an in-flight request.
func (t *RequestedMilestones) Contains(index milestonepkg.Index) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.entries[index]

	return ok
}

// Mark records that index was (re)requested at now.
func (t *RequestedMilestones) Mark(index milestonepkg.Index, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[index] = now
}

// Remove deletes index's entry, if any.
func (t *RequestedMilestones) Remove(index milestonepkg.Index) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.entries[index]
	delete(t.entries, index)

	return ok
}

// Len returns the number of in-flight milestone requests.
func (t *RequestedMilestones) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.entries)
}

// Stale returns indices last requested more than olderThan ago.
func (t *RequestedMilestones) Stale(now time.Time, olderThan time.Duration) []milestonepkg.Index {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []milestonepkg.Index
	for index, at := range t.entries {
		if now.Sub(at) > olderThan {
			out = append(out, index)
		}
	}

	return out
}
