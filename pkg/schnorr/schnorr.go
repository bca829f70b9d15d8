// Package schnorr implements the BIP-340 x-only Schnorr signature scheme
// over secp256k1 that the script verifier (spec component C5) requires.
//
// It deliberately does not use decred/dcrd's higher-level schnorr
// sub-package: that package implements the Decred-specific EC-Schnorr-DCRv0
// scheme (a different challenge domain tag and a 33-byte compressed pubkey
// encoding), not BIP-340. Instead it is built directly from the field,
// scalar, and point primitives the same module exports, mirroring how
// original_source/layer1-core/crypto/schnorr.cpp builds verification from
// raw EC operations.
package schnorr

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/parthenon-labs/chaincore/pkg/hash"
)

// SignatureSize is the length in bytes of a BIP-340 signature.
const SignatureSize = 64

// PubKeySize is the length in bytes of an x-only public key.
const PubKeySize = 32

var (
	// ErrInvalidSignatureLength reports a scriptSig that is not 64 bytes.
	ErrInvalidSignatureLength = errors.New("schnorr: signature must be 64 bytes")
	// ErrInvalidPubKeyLength reports a scriptPubKey that is not 32 bytes.
	ErrInvalidPubKeyLength = errors.New("schnorr: public key must be 32 bytes")
)

var challengeTag = hash.TagKey("BIP0340/challenge")

// Verify checks a 64-byte BIP-340 signature sig over msg against the 32-byte
// x-only public key pubKey. It returns false (never panics) for any
// malformed input: wrong lengths, an x-only key that doesn't lift to an
// on-curve point, a non-canonical r or s, an odd-Y recomputed R, or an
// x-coordinate mismatch. This is exactly spec.md §4.4's failure list.
func Verify(sig, pubKey, msg []byte) bool {
	if len(sig) != SignatureSize || len(pubKey) != PubKeySize {
		return false
	}

	// Lift the x-only key to the even-Y point it denotes. A compressed
	// pubkey with prefix 0x02 denotes exactly the even-Y point for a given
	// x-coordinate, which is precisely BIP-340's lift_x.
	compressed := make([]byte, 33)
	compressed[0] = 0x02
	copy(compressed[1:], pubKey)
	pub, err := secp256k1.ParsePubKey(compressed)
	if err != nil {
		return false
	}
	var p secp256k1.JacobianPoint
	pub.AsJacobian(&p)

	var r secp256k1.FieldVal
	if overflow := r.SetByteSlice(sig[:32]); overflow {
		return false
	}
	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(sig[32:64]); overflow {
		// s ≥ group order — the "high-S" rejection spec.md §4.4 mandates.
		return false
	}

	// e = TaggedHash("BIP0340/challenge", r || pubkey || msg) mod n.
	preimage := make([]byte, 0, 96+len(msg))
	rBytes := r.Bytes()
	preimage = append(preimage, rBytes[:]...)
	preimage = append(preimage, pubKey...)
	preimage = append(preimage, msg...)
	eHash := hash.TaggedWithKey(challengeTag, preimage)
	var e secp256k1.ModNScalar
	e.SetByteSlice(eHash[:]) // reduces mod n; overflow flag is informational only.

	// R = s·G - e·P, computed as s·G + (-e mod n)·P so only scalar
	// negation (cheap, magnitude-free) is needed, not point negation.
	var negE secp256k1.ModNScalar
	negE.Set(&e)
	negE.Negate()

	var sG, eP, capR secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&s, &sG)
	secp256k1.ScalarMultNonConst(&negE, &p, &eP)
	secp256k1.AddNonConst(&sG, &eP, &capR)

	if capR.Z.IsZero() {
		return false // point at infinity
	}
	capR.ToAffine()
	if capR.Y.IsOdd() {
		return false
	}
	capR.X.Normalize()
	return capR.X.Equals(&r)
}

// PrivateKey is a secp256k1 scalar usable for BIP-340 signing. Not part of
// the consensus-critical verifier (C5 only requires Verify); kept so tests
// and tooling — the miner assembling a coinbase signature, for instance —
// can produce valid scriptSig values without an external signer.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// GenerateKey creates a new random secp256k1 private key.
func GenerateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("schnorr: generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes builds a PrivateKey from a 32-byte scalar.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("schnorr: private key must be 32 bytes, got %d", len(b))
	}
	return &PrivateKey{key: secp256k1.PrivKeyFromBytes(b)}, nil
}

// XOnlyPubKey returns the 32-byte x-only public key corresponding to pk,
// normalized (per BIP-340 key generation) so that its point has even Y.
func (pk *PrivateKey) XOnlyPubKey() [32]byte {
	pub := pk.key.PubKey()
	xField := pub.X()
	xBytes := xField.Bytes()
	var x [32]byte
	copy(x[:], xBytes[:])
	return x
}

// Sign produces a 64-byte BIP-340 signature over msg.
func (pk *PrivateKey) Sign(msg []byte) ([]byte, error) {
	var d secp256k1.ModNScalar
	d.SetByteSlice(pk.key.Serialize())

	pub := pk.key.PubKey()
	yField := pub.Y()
	if yField.IsOdd() {
		d.Negate()
	}
	xField := pub.X()
	xBytesArr := xField.Bytes()
	var xOnly [32]byte
	copy(xOnly[:], xBytesArr[:])

	aux := make([]byte, 32)
	if _, err := rand.Read(aux); err != nil {
		return nil, fmt.Errorf("schnorr: aux random: %w", err)
	}
	dBytes := d.Bytes()
	auxHash := hash.Tagged("BIP0340/aux", aux)
	var t [32]byte
	for i := range t {
		t[i] = dBytes[i] ^ auxHash[i]
	}

	noncePreimage := make([]byte, 0, 96+len(msg))
	noncePreimage = append(noncePreimage, t[:]...)
	noncePreimage = append(noncePreimage, xOnly[:]...)
	noncePreimage = append(noncePreimage, msg...)
	nonceHash := hash.Tagged("BIP0340/nonce", noncePreimage)

	var kPrime secp256k1.ModNScalar
	kPrime.SetByteSlice(nonceHash[:])
	if kPrime.IsZero() {
		return nil, errors.New("schnorr: invalid nonce (zero)")
	}

	var capR secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&kPrime, &capR)
	capR.ToAffine()
	k := kPrime
	if capR.Y.IsOdd() {
		k.Negate()
	}
	rBytes := capR.X.Bytes()

	challengePreimage := make([]byte, 0, 96+len(msg))
	challengePreimage = append(challengePreimage, rBytes[:]...)
	challengePreimage = append(challengePreimage, xOnly[:]...)
	challengePreimage = append(challengePreimage, msg...)
	eHash := hash.TaggedWithKey(challengeTag, challengePreimage)
	var e secp256k1.ModNScalar
	e.SetByteSlice(eHash[:])

	// s = k + e*d mod n.
	s := new(secp256k1.ModNScalar).Mul2(&e, &d).Add(&k)
	sBytes := s.Bytes()

	sig := make([]byte, SignatureSize)
	copy(sig[:32], rBytes[:])
	copy(sig[32:], sBytes[:])
	return sig, nil
}
