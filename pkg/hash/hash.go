// Package hash implements the primitive digests the consensus pipeline
// builds on: plain double-SHA256 and the domain-separated tagged hash used
// for block hashes, transaction hashes, Merkle tree nodes, and the BIP-340
// challenge.
package hash

import (
	"crypto/sha256"

	"github.com/parthenon-labs/chaincore/pkg/types"
)

// Sum256 computes a single SHA-256 digest of data.
func Sum256(data []byte) types.Hash {
	return sha256.Sum256(data)
}

// DoubleSum256 computes SHA256(SHA256(data)), the classic Bitcoin-style
// double hash. Not used for any consensus-critical digest in this design
// (those all go through Tagged), and it has no caller in this repository;
// the blockstore record checksum is a single crypto/sha256 digest.
func DoubleSum256(data []byte) types.Hash {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}

// Tagged computes the BIP-340-style tagged hash:
//
//	SHA256(SHA256(tag) ‖ SHA256(tag) ‖ data)
//
// This is the domain-separation primitive used throughout the consensus
// core: block hashes use tag "BLOCK", transaction hashes use tag "TX",
// Merkle parent nodes use tag "MERKLE", and the Schnorr verifier's
// challenge uses tag "BIP0340/challenge". Every call recomputes SHA256(tag);
// callers on a hot path (Merkle construction) should call TaggedWithKey
// instead to amortize it over many invocations.
func Tagged(tag string, data []byte) types.Hash {
	th := sha256.Sum256([]byte(tag))
	return TaggedWithKey(th, data)
}

// TaggedWithKey computes the tagged hash given an already-computed
// SHA256(tag), avoiding redundant work when hashing many values under the
// same tag (e.g. every Merkle tree leaf and internal node).
func TaggedWithKey(tagKey [32]byte, data []byte) types.Hash {
	preimage := make([]byte, 0, 64+len(data))
	preimage = append(preimage, tagKey[:]...)
	preimage = append(preimage, tagKey[:]...)
	preimage = append(preimage, data...)
	return sha256.Sum256(preimage)
}

// TagKey returns SHA256(tag), the value memoized by callers that hash many
// inputs under the same tag.
func TagKey(tag string) [32]byte {
	return sha256.Sum256([]byte(tag))
}

// Concat hashes the concatenation of two hashes under the given tag key.
// Used by the Merkle tree to combine sibling nodes.
func Concat(tagKey [32]byte, a, b types.Hash) types.Hash {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return TaggedWithKey(tagKey, buf[:])
}
