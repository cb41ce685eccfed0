// Package ternary is the narrow boundary between the legacy ternary
// transaction payload and the rest of this module. Hashing and signature
// checks stay outside it (consumed as opaque hash/verify operations per
// the node core's crypto boundary); this package carries the type aliases
// that describe payload fields (address, value, signature fragments,
// tag), the field-offset parse of a transaction's trits, and the
// byte-to-trit packing that parse reads from.
package ternary

import trinary "github.com/iotaledger/iota.go/trinary"

// Trytes is the legacy tryte-string representation of ternary data
// (addresses, tags, signature message fragments).
type Trytes = trinary.Trytes

// Hash is a 243-trit (81-tryte) ternary hash, used for legacy
// transaction/bundle hashes embedded in a Transaction payload.
type Hash = trinary.Hash

// TrailingZeros counts the trailing '9' trytes (the tryte-string
// equivalent of trailing zero trits) in t, used by the Stage 3
// validation step to compute the minimum weight magnitude of a
// transaction hash.
func TrailingZeros(t Trytes) int {
	count := 0
	for i := len(t) - 1; i >= 0; i-- {
		if t[i] != '9' {
			break
		}
		count++
	}

	return count
}
