package crypto

import (
	"bytes"

	"golang.org/x/crypto/blake2b"
)

// Blake2bSponge is a deterministic Sponge backed by blake2b-256, used
// only in tests where a fast, real hash function is preferable to a
// no-op stub. It is not a production replacement for the ternary
// CurlP/Kerl sponge this module treats as opaque.
type Blake2bSponge struct{}

// Sum implements Sponge.
func (Blake2bSponge) Sum(data []byte) []byte {
	sum := blake2b.Sum256(data)

	return sum[:]
}

// InsecureTestSigner is a test-only Signer/Verifier pair that "signs" by
// hashing the digest together with a fixed key handle. It exists solely
// to exercise pkg/milestone's threshold-of-N verification logic in unit
// tests without depending on a real WOTS/Ed25519 implementation.
type InsecureTestSigner struct {
	KeyHandle []byte
}

// Sign implements Signer.
func (s InsecureTestSigner) Sign(digest []byte) ([]byte, []byte, error) {
	sum := blake2b.Sum256(append(append([]byte{}, s.KeyHandle...), digest...))

	return sum[:], s.KeyHandle, nil
}

// InsecureTestVerifier verifies signatures produced by InsecureTestSigner.
type InsecureTestVerifier struct{}

// Verify implements Verifier.
func (InsecureTestVerifier) Verify(digest, signature, publicKey []byte) (bool, error) {
	expected := blake2b.Sum256(append(append([]byte{}, publicKey...), digest...))

	return bytes.Equal(expected[:], signature), nil
}
