// Package hornet holds the shared identifier and hash types used by every
// other package in this module, mirroring the role gohornet's
// pkg/model/hornet package plays for the rest of that node.
package hornet

import (
	"encoding/hex"
	"sort"
)

// MessageIDLength is the length of a MessageId in bytes.
const MessageIDLength = 32

// MessageId is the unique identifier of a message in the Tangle. It is the
// opaque output of the configured hash function over the message's
// canonical byte representation.
type MessageId [MessageIDLength]byte

// NullMessageID is the zero value MessageId, used as a parent reference for
// the genesis message and as a sentinel for "no message".
var NullMessageID = MessageId{}

// MessageIDFromBytes creates a MessageId from a byte slice. It returns an
// error if b is not exactly MessageIDLength bytes long.
func MessageIDFromBytes(b []byte) (MessageId, error) {
	var id MessageId
	if len(b) != MessageIDLength {
		return id, ErrInvalidMessageIDLength
	}
	copy(id[:], b)

	return id, nil
}

// Bytes returns the raw bytes of the MessageId.
func (id MessageId) Bytes() []byte {
	return id[:]
}

// Hex returns the hex encoded representation of the MessageId.
func (id MessageId) Hex() string {
	return hex.EncodeToString(id[:])
}

func (id MessageId) String() string {
	return id.Hex()
}

// Empty reports whether the MessageId is the null message ID.
func (id MessageId) Empty() bool {
	return id == NullMessageID
}

// MessageIDs is a slice of MessageId with dedup/sort helpers used
// throughout parent handling, tip selection and the request layer.
type MessageIDs []MessageId

// RemoveDupsAndSort returns a new, sorted MessageIDs slice with duplicates
// removed. It mirrors the BlockIDs.RemoveDupsAndSort helper the legacy
// iota.go BlockIDs type provides, adapted to the MessageId type this
// module uses for the two-parent legacy wire format.
func (ids MessageIDs) RemoveDupsAndSort() MessageIDs {
	if len(ids) == 0 {
		return nil
	}

	seen := make(map[MessageId]struct{}, len(ids))
	out := make(MessageIDs, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	sort.Slice(out, func(i, j int) bool {
		return bytesLess(out[i][:], out[j][:])
	})

	return out
}

// Contains reports whether id is present in ids.
func (ids MessageIDs) Contains(id MessageId) bool {
	for _, other := range ids {
		if other == id {
			return true
		}
	}

	return false
}

func bytesLess(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}

	return false
}
