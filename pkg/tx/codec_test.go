package tx

import (
	"bytes"
	"testing"

	"github.com/parthenon-labs/chaincore/pkg/types"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	cases := []*Transaction{sampleTx(), coinbaseTx()}
	for i, want := range cases {
		encoded := want.Encode()
		got, err := Decode(encoded)
		if err != nil {
			t.Fatalf("case %d: Decode: %v", i, err)
		}
		if got.Version != want.Version || got.LockTime != want.LockTime {
			t.Errorf("case %d: version/locktime mismatch", i)
		}
		if len(got.Inputs) != len(want.Inputs) || len(got.Outputs) != len(want.Outputs) {
			t.Fatalf("case %d: input/output count mismatch", i)
		}
		for j := range want.Inputs {
			if got.Inputs[j].PrevOut != want.Inputs[j].PrevOut {
				t.Errorf("case %d input %d: prevout mismatch", i, j)
			}
			if !bytes.Equal(got.Inputs[j].ScriptSig, want.Inputs[j].ScriptSig) {
				t.Errorf("case %d input %d: scriptSig mismatch", i, j)
			}
			if got.Inputs[j].Sequence != want.Inputs[j].Sequence {
				t.Errorf("case %d input %d: sequence mismatch", i, j)
			}
		}
		for j := range want.Outputs {
			if got.Outputs[j].Value != want.Outputs[j].Value {
				t.Errorf("case %d output %d: value mismatch", i, j)
			}
			if !bytes.Equal(got.Outputs[j].ScriptPubKey, want.Outputs[j].ScriptPubKey) {
				t.Errorf("case %d output %d: scriptPubKey mismatch", i, j)
			}
		}
		if got.Hash() != want.Hash() {
			t.Errorf("case %d: re-decoded transaction hashes differently", i)
		}
	}
}

func TestEncode_Deterministic(t *testing.T) {
	txn := sampleTx()
	if !bytes.Equal(txn.Encode(), txn.Encode()) {
		t.Error("Encode is not deterministic")
	}
}

func TestDecode_Truncated(t *testing.T) {
	encoded := sampleTx().Encode()
	for cut := 0; cut < len(encoded); cut += 7 {
		if _, err := Decode(encoded[:cut]); err == nil {
			t.Errorf("Decode accepted truncated input at length %d", cut)
		}
	}
}

func TestDecode_TrailingBytes(t *testing.T) {
	encoded := append(sampleTx().Encode(), 0x00)
	if _, err := Decode(encoded); err != ErrTrailingBytes {
		t.Errorf("Decode error = %v, want ErrTrailingBytes", err)
	}
}

func TestDecode_ScriptSigLengthOverflow(t *testing.T) {
	txn := sampleTx()
	encoded := txn.Encode()

	// version(4) + vinCount(4) + prevout.hash(32) + prevout.index(4) = offset
	// of the scriptSig length field.
	offset := 4 + 4 + 32 + 4
	bogus := append([]byte(nil), encoded...)
	bogus[offset] = 0xFF
	bogus[offset+1] = 0xFF
	bogus[offset+2] = 0xFF
	bogus[offset+3] = 0xFF

	if _, err := Decode(bogus); err == nil {
		t.Error("Decode accepted a scriptSig length exceeding the remaining buffer")
	}
}

func TestEncode_EmptyTransaction(t *testing.T) {
	empty := &Transaction{}
	encoded := empty.Encode()
	got, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.Inputs) != 0 || len(got.Outputs) != 0 {
		t.Error("decoding an empty transaction should yield zero inputs/outputs")
	}
}

func TestEncode_Layout(t *testing.T) {
	txn := sampleTx()
	encoded := txn.Encode()

	pos := 0
	if got := le32(encoded[pos:]); got != txn.Version {
		t.Errorf("version field = %d, want %d", got, txn.Version)
	}
	pos += 4
	if got := le32(encoded[pos:]); got != uint32(len(txn.Inputs)) {
		t.Errorf("vin count field = %d, want %d", got, len(txn.Inputs))
	}
	pos += 4
	var prevID types.Hash
	copy(prevID[:], encoded[pos:pos+32])
	if prevID != txn.Inputs[0].PrevOut.TxID {
		t.Error("prevout.hash field mismatch")
	}
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
