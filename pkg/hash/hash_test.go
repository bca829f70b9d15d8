package hash

import (
	"testing"

	"github.com/parthenon-labs/chaincore/pkg/types"
)

func TestSum256_Deterministic(t *testing.T) {
	data := []byte("deterministic test input")
	h1 := Sum256(data)
	h2 := Sum256(data)
	if h1 != h2 {
		t.Errorf("Sum256 is not deterministic: %x != %x", h1, h2)
	}
}

func TestSum256_DifferentInputs(t *testing.T) {
	h1 := Sum256([]byte("input A"))
	h2 := Sum256([]byte("input B"))
	if h1 == h2 {
		t.Error("different inputs produced the same hash")
	}
}

func TestDoubleSum256_NotSameAsSingle(t *testing.T) {
	data := []byte("test data")
	single := Sum256(data)
	double := DoubleSum256(data)
	if single == double {
		t.Error("DoubleSum256 should not equal a single Sum256")
	}
}

func TestTagged_Deterministic(t *testing.T) {
	data := []byte("payload")
	h1 := Tagged("TX", data)
	h2 := Tagged("TX", data)
	if h1 != h2 {
		t.Errorf("Tagged is not deterministic: %x != %x", h1, h2)
	}
}

func TestTagged_DomainSeparation(t *testing.T) {
	data := []byte("same payload")
	tx := Tagged("TX", data)
	block := Tagged("BLOCK", data)
	merkle := Tagged("MERKLE", data)
	if tx == block || tx == merkle || block == merkle {
		t.Error("distinct tags must produce distinct digests for the same payload")
	}
}

func TestTagged_NotPlainSHA256(t *testing.T) {
	data := []byte("payload")
	if Tagged("TX", data) == Sum256(data) {
		t.Error("tagged hash must differ from an untagged SHA-256 of the same bytes")
	}
}

func TestTaggedWithKey_MatchesTagged(t *testing.T) {
	data := []byte("payload")
	key := TagKey("MERKLE")
	if TaggedWithKey(key, data) != Tagged("MERKLE", data) {
		t.Error("TaggedWithKey(TagKey(tag), data) must equal Tagged(tag, data)")
	}
}

func TestConcat(t *testing.T) {
	key := TagKey("MERKLE")
	a := Sum256([]byte("left"))
	b := Sum256([]byte("right"))
	result := Concat(key, a, b)

	if result == (types.Hash{}) {
		t.Error("Concat returned zero hash")
	}

	reversed := Concat(key, b, a)
	if result == reversed {
		t.Error("Concat(a,b) should differ from Concat(b,a)")
	}

	if again := Concat(key, a, b); result != again {
		t.Error("Concat is not deterministic")
	}
}

func TestConcat_EqualsTaggedOfManualConcat(t *testing.T) {
	key := TagKey("MERKLE")
	a := Sum256([]byte("left"))
	b := Sum256([]byte("right"))

	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	want := TaggedWithKey(key, buf[:])

	if got := Concat(key, a, b); got != want {
		t.Errorf("Concat = %x, want %x", got, want)
	}
}
