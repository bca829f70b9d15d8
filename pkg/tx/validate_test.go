package tx

import (
	"bytes"
	"errors"
	"testing"

	"github.com/parthenon-labs/chaincore/pkg/types"
)

func TestValidateStructure_Valid(t *testing.T) {
	if err := sampleTx().ValidateStructure(); err != nil {
		t.Errorf("sampleTx() should be structurally valid, got %v", err)
	}
	if err := coinbaseTx().ValidateStructure(); err != nil {
		t.Errorf("coinbaseTx() should be structurally valid, got %v", err)
	}
}

func TestValidateStructure_NoInputs(t *testing.T) {
	txn := sampleTx()
	txn.Inputs = nil
	if err := txn.ValidateStructure(); !errors.Is(err, ErrNoInputs) {
		t.Errorf("err = %v, want ErrNoInputs", err)
	}
}

func TestValidateStructure_NoOutputs(t *testing.T) {
	txn := sampleTx()
	txn.Outputs = nil
	if err := txn.ValidateStructure(); !errors.Is(err, ErrNoOutputs) {
		t.Errorf("err = %v, want ErrNoOutputs", err)
	}
}

func TestValidateStructure_DuplicateInput(t *testing.T) {
	txn := sampleTx()
	txn.Inputs = append(txn.Inputs, txn.Inputs[0])
	if err := txn.ValidateStructure(); !errors.Is(err, ErrDuplicateInput) {
		t.Errorf("err = %v, want ErrDuplicateInput", err)
	}
}

func TestValidateStructure_NullPrevoutNonCoinbase(t *testing.T) {
	// A single null-prevout input would make this a coinbase, so the null
	// prevout goes on a second input of an ordinary spend.
	txn := sampleTx()
	txn.Inputs = append(txn.Inputs, TxIn{
		PrevOut:   types.NullOutpoint,
		ScriptSig: bytes.Repeat([]byte{0x02}, ScriptSigSize),
		Sequence:  0xFFFFFFFF,
	})
	if err := txn.ValidateStructure(); err == nil {
		t.Error("expected rejection of a null prevout outside a coinbase transaction")
	}
}

func TestValidateStructure_BadScriptSigLength(t *testing.T) {
	txn := sampleTx()
	txn.Inputs[0].ScriptSig = []byte{0x01, 0x02}
	if err := txn.ValidateStructure(); !errors.Is(err, ErrBadScriptSig) {
		t.Errorf("err = %v, want ErrBadScriptSig", err)
	}
}

func TestValidateStructure_BadScriptPubKeyLength(t *testing.T) {
	txn := sampleTx()
	txn.Outputs[0].ScriptPubKey = []byte{0x01}
	if err := txn.ValidateStructure(); !errors.Is(err, ErrBadScriptPub) {
		t.Errorf("err = %v, want ErrBadScriptPub", err)
	}
}

func TestValidateStructure_CoinbaseMultipleInputsRejected(t *testing.T) {
	txn := coinbaseTx()
	txn.Inputs = append(txn.Inputs, TxIn{
		PrevOut:   types.Outpoint{TxID: types.Hash{9}, Index: 1},
		ScriptSig: bytes.Repeat([]byte{0x01}, ScriptSigSize),
	})
	if err := txn.ValidateStructure(); !errors.Is(err, ErrCoinbaseShape) {
		t.Errorf("err = %v, want ErrCoinbaseShape", err)
	}
}

func TestValidateStructure_OutputOverflow(t *testing.T) {
	txn := sampleTx()
	txn.Outputs = append(txn.Outputs, TxOut{Value: ^uint64(0), ScriptPubKey: make([]byte, PubKeySize)})
	if err := txn.ValidateStructure(); !errors.Is(err, ErrOutputOverflow) {
		t.Errorf("err = %v, want ErrOutputOverflow", err)
	}
}
