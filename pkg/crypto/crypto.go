// Package crypto defines the opaque hashing and signing boundary this
// module consumes but never implements: the ternary sponge construction
// (CurlP/Kerl) and the WOTS-style one-time signature scheme are treated
// as black boxes, exactly as spec'd. Production deployments supply their
// own implementation of these interfaces; this module only ships a
// deterministic test double (see testdouble.go) backed by blake2b.
package crypto

// Sponge is the opaque hash construction used to derive a MessageId from
// a message's canonical bytes and to absorb transaction trits when
// computing a transaction hash. Implementations are not provided by this
// module.
type Sponge interface {
	// Sum returns the digest of data. Implementations choose their own
	// digest length; callers truncate/pad as their format requires.
	Sum(data []byte) []byte
}

// Signer produces a one-time signature over a message digest using a
// private key referenced only by an opaque handle. Implementations are
// not provided by this module; the coordinator only ever holds a
// Signer, never key material directly.
type Signer interface {
	// Sign signs digest and returns the signature bytes plus the public
	// key bytes to embed alongside it.
	Sign(digest []byte) (signature []byte, publicKey []byte, err error)
}

// Verifier checks a one-time signature against a digest and public key.
// Implementations are not provided by this module.
type Verifier interface {
	Verify(digest, signature, publicKey []byte) (bool, error)
}

// SignerProvider returns the Signer responsible for a given milestone
// index, mirroring how the teacher's MilestoneSignerProvider selects a
// key set per milestone index from a key range/state.
type SignerProvider interface {
	SignerForIndex(index uint32) (Signer, error)
}
