package ternary

import (
	"github.com/pkg/errors"

	trinary "github.com/iotaledger/iota.go/trinary"

	"github.com/iotaledger/hornet-tangle-core/pkg/hornet"
)

// Tryte field widths of the classic legacy transaction layout, grounded
// on original_source's bee-bundle/src/transaction/fields.rs.
const (
	signatureMessageFragmentTrytes        = 2187
	addressTrytes                         = 81
	valueTrytes                           = 27
	obsoleteTagTrytes                     = 27
	timestampTrytes                       = 9
	currentIndexTrytes                    = 9
	lastIndexTrytes                       = 9
	bundleTrytes                          = 81
	trunkTrytes                           = 81
	branchTrytes                          = 81
	tagTrytes                             = 27
	attachmentTimestampTrytes             = 9
	attachmentTimestampLowerBoundTrytes   = 9
	attachmentTimestampUpperBoundTrytes   = 9
	nonceTrytes                           = 27

	// TransactionTrytesSize is the width, in trytes, of one full legacy
	// transaction: the sum of every field above.
	TransactionTrytesSize = signatureMessageFragmentTrytes + addressTrytes + valueTrytes +
		obsoleteTagTrytes + timestampTrytes + currentIndexTrytes + lastIndexTrytes +
		bundleTrytes + trunkTrytes + branchTrytes + tagTrytes + attachmentTimestampTrytes +
		attachmentTimestampLowerBoundTrytes + attachmentTimestampUpperBoundTrytes + nonceTrytes

	// TransactionTritsSize is the same layout expressed in trits, the
	// size this module's wire format packs into maxUncompressedTransactionLength bytes.
	TransactionTritsSize = TransactionTrytesSize * 3
)

// ErrInvalidTransactionLength is returned when a buffer handed to
// ParseTransactionTrits is not exactly TransactionTritsSize trits long.
var ErrInvalidTransactionLength = errors.New("ternary: transaction trit buffer has the wrong length")

// TransactionFields is the decoded, field-offset view of a legacy
// transaction's trits, following bee-bundle's field layout.
type TransactionFields struct {
	SignatureMessageFragment            Trytes
	Address                             Trytes
	Value                               int64
	ObsoleteTag                         Trytes
	Timestamp                           uint32
	CurrentIndex                        uint32
	LastIndex                           uint32
	Bundle                              Hash
	TrunkTransaction                    Hash
	BranchTransaction                   Hash
	Tag                                 Trytes
	AttachmentTimestamp                 int64
	AttachmentTimestampLowerBound       int64
	AttachmentTimestampUpperBound       int64
	Nonce                               Trytes
}

// ParseTransactionTrits decodes a full TransactionTritsSize-trit buffer
// into its fields, per the offsets above.
func ParseTransactionTrits(trits trinary.Trits) (TransactionFields, error) {
	if len(trits) != TransactionTritsSize {
		return TransactionFields{}, ErrInvalidTransactionLength
	}

	offset := 0
	next := func(tryteWidth int) trinary.Trits {
		width := tryteWidth * 3
		slice := trits[offset : offset+width]
		offset += width

		return slice
	}

	sigFrag := next(signatureMessageFragmentTrytes)
	address := next(addressTrytes)
	value := next(valueTrytes)
	obsoleteTag := next(obsoleteTagTrytes)
	timestamp := next(timestampTrytes)
	currentIndex := next(currentIndexTrytes)
	lastIndex := next(lastIndexTrytes)
	bundle := next(bundleTrytes)
	trunk := next(trunkTrytes)
	branch := next(branchTrytes)
	tag := next(tagTrytes)
	attachmentTimestamp := next(attachmentTimestampTrytes)
	attachmentTimestampLowerBound := next(attachmentTimestampLowerBoundTrytes)
	attachmentTimestampUpperBound := next(attachmentTimestampUpperBoundTrytes)
	nonce := next(nonceTrytes)

	toTrytes := func(t trinary.Trits) (Trytes, error) {
		trytes, err := trinary.TritsToTrytes(t)
		if err != nil {
			return "", errors.Wrap(err, "ternary: invalid trits in transaction field")
		}

		return trytes, nil
	}

	sigFragTrytes, err := toTrytes(sigFrag)
	if err != nil {
		return TransactionFields{}, err
	}
	addressTrytesOut, err := toTrytes(address)
	if err != nil {
		return TransactionFields{}, err
	}
	obsoleteTagOut, err := toTrytes(obsoleteTag)
	if err != nil {
		return TransactionFields{}, err
	}
	bundleOut, err := toTrytes(bundle)
	if err != nil {
		return TransactionFields{}, err
	}
	trunkOut, err := toTrytes(trunk)
	if err != nil {
		return TransactionFields{}, err
	}
	branchOut, err := toTrytes(branch)
	if err != nil {
		return TransactionFields{}, err
	}
	tagOut, err := toTrytes(tag)
	if err != nil {
		return TransactionFields{}, err
	}
	nonceOut, err := toTrytes(nonce)
	if err != nil {
		return TransactionFields{}, err
	}

	return TransactionFields{
		SignatureMessageFragment:      sigFragTrytes,
		Address:                       addressTrytesOut,
		Value:                         trinary.TritsToInt(value),
		ObsoleteTag:                   obsoleteTagOut,
		Timestamp:                     uint32(trinary.TritsToInt(timestamp)),
		CurrentIndex:                  uint32(trinary.TritsToInt(currentIndex)),
		LastIndex:                     uint32(trinary.TritsToInt(lastIndex)),
		Bundle:                        bundleOut,
		TrunkTransaction:              trunkOut,
		BranchTransaction:             branchOut,
		Tag:                           tagOut,
		AttachmentTimestamp:           trinary.TritsToInt(attachmentTimestamp),
		AttachmentTimestampLowerBound: trinary.TritsToInt(attachmentTimestampLowerBound),
		AttachmentTimestampUpperBound: trinary.TritsToInt(attachmentTimestampUpperBound),
		Nonce:                         nonceOut,
	}, nil
}

// BytesToTrits converts an inflated, fixed-size byte buffer back into
// TransactionTritsSize trits, the inverse of however the wire layer
// packed them. It truncates/pads defensively to the expected length so
// a short or long buffer never panics the caller.
func BytesToTrits(b []byte) trinary.Trits {
	return bytesToTritsN(b, TransactionTritsSize)
}

// HashFromBytes packs an opaque sponge digest into an 81-tryte legacy
// hash, the tryte width original_source's bee-crypto sponge output is
// always sliced to. Used to turn a crypto.Sponge digest into the
// ternary.Hash fields (transaction hash, MWM subject) this module's
// payload types carry.
func HashFromBytes(b []byte) Hash {
	trits := bytesToTritsN(b, addressTrytes*3)

	hash, err := trinary.TritsToTrytes(trits)
	if err != nil {
		// bytesToTritsN only ever emits balanced trits in {-1,0,1}, so
		// TritsToTrytes cannot fail on its output; treat it as unreachable.
		return ""
	}

	return hash
}

// HashToMessageID reinterprets a legacy 81-tryte hash as this module's
// 32-byte MessageId space by taking the raw bytes of its first
// MessageIDLength trytes. A transaction's own hash and every later
// reference to it as a trunk/branch parent both go through this same
// conversion, so they agree on the id without this module ever needing
// to invert the mapping back to a hash.
func HashToMessageID(h Hash) hornet.MessageId {
	var id hornet.MessageId
	copy(id[:], h)

	return id
}

func bytesToTritsN(b []byte, n int) trinary.Trits {
	trits := trinary.Trits(make([]int8, 0, n))
	for _, by := range b {
		if len(trits) >= n {
			break
		}
		trits = append(trits, byteToTrits(by)...)
	}

	if len(trits) >= n {
		return trits[:n]
	}

	padded := make(trinary.Trits, n)
	copy(padded, trits)

	return padded
}

// byteToTrits unpacks one byte into 5 balanced trits, the same packing
// density the legacy binary gossip protocol used to pack 8019 trits into
// 1604 bytes. Five trits hold only 3^5 = 243 values, fewer than 256, so
// byte values 243 to 255 unpack to the same trits as 0 to 12.
func byteToTrits(b byte) trinary.Trits {
	value := int(b)
	trits := make(trinary.Trits, 5)
	for i := 0; i < 5; i++ {
		rem := value % 3
		value /= 3
		if rem == 2 {
			rem = -1
			value++
		}
		trits[i] = int8(rem)
	}

	return trits
}
