package block

import (
	"bytes"
	"errors"
	"testing"

	"github.com/parthenon-labs/chaincore/pkg/merkle"
	"github.com/parthenon-labs/chaincore/pkg/tx"
	"github.com/parthenon-labs/chaincore/pkg/types"
)

func testCoinbase() *tx.Transaction {
	return &tx.Transaction{
		Version: 1,
		Inputs:  []tx.TxIn{{PrevOut: types.NullOutpoint, ScriptSig: []byte{0x00, 0x01}}},
		Outputs: []tx.TxOut{{Value: 1000, ScriptPubKey: make([]byte, tx.PubKeySize)}},
	}
}

func userTx(seed byte) *tx.Transaction {
	return &tx.Transaction{
		Version: 1,
		Inputs: []tx.TxIn{{
			PrevOut:   types.Outpoint{TxID: types.Hash{seed}, Index: 0},
			ScriptSig: bytes.Repeat([]byte{seed}, tx.ScriptSigSize),
			Sequence:  0xFFFFFFFF,
		}},
		Outputs: []tx.TxOut{{Value: 1000, ScriptPubKey: bytes.Repeat([]byte{seed + 1}, tx.PubKeySize)}},
	}
}

func validBlock() *Block {
	coinbase := testCoinbase()
	root := merkle.ComputeRoot([]*tx.Transaction{coinbase})
	header := &Header{
		Version:       1,
		PrevBlockHash: types.Hash{0xaa},
		MerkleRoot:    root,
		Time:          1700000000,
		Bits:          0x1d00ffff,
	}
	return NewBlock(header, []*tx.Transaction{coinbase})
}

func TestValidateStructure_Valid(t *testing.T) {
	if err := validBlock().ValidateStructure(); err != nil {
		t.Errorf("valid block should pass: %v", err)
	}
}

func TestValidateStructure_NilHeader(t *testing.T) {
	blk := &Block{Header: nil, Transactions: []*tx.Transaction{testCoinbase()}}
	if err := blk.ValidateStructure(); !errors.Is(err, ErrNilHeader) {
		t.Errorf("err = %v, want ErrNilHeader", err)
	}
}

func TestValidateStructure_NoTransactions(t *testing.T) {
	blk := &Block{Header: &Header{}, Transactions: nil}
	if err := blk.ValidateStructure(); !errors.Is(err, ErrNoTransactions) {
		t.Errorf("err = %v, want ErrNoTransactions", err)
	}
}

func TestValidateStructure_NoCoinbase(t *testing.T) {
	txn := userTx(1)
	root := merkle.ComputeRoot([]*tx.Transaction{txn})
	blk := NewBlock(&Header{MerkleRoot: root}, []*tx.Transaction{txn})
	if err := blk.ValidateStructure(); !errors.Is(err, ErrNoCoinbase) {
		t.Errorf("err = %v, want ErrNoCoinbase", err)
	}
}

func TestValidateStructure_MultipleCoinbase(t *testing.T) {
	coinbase := testCoinbase()
	second := testCoinbase()
	txs := []*tx.Transaction{coinbase, second}
	root := merkle.ComputeRoot(txs)
	blk := NewBlock(&Header{MerkleRoot: root}, txs)
	if err := blk.ValidateStructure(); !errors.Is(err, ErrMultipleCoinbase) {
		t.Errorf("err = %v, want ErrMultipleCoinbase", err)
	}
}

func TestValidateStructure_BadMerkleRoot(t *testing.T) {
	blk := validBlock()
	blk.Header.MerkleRoot = types.Hash{0xde, 0xad}
	if err := blk.ValidateStructure(); !errors.Is(err, ErrBadMerkleRoot) {
		t.Errorf("err = %v, want ErrBadMerkleRoot", err)
	}
}

func TestValidateStructure_InvalidTransactionPropagates(t *testing.T) {
	coinbase := testCoinbase()
	bad := userTx(1)
	bad.Outputs[0].ScriptPubKey = []byte{0x01} // wrong length
	txs := []*tx.Transaction{coinbase, bad}
	root := merkle.ComputeRoot(txs)
	blk := NewBlock(&Header{MerkleRoot: root}, txs)
	if err := blk.ValidateStructure(); err == nil {
		t.Error("block with a structurally invalid transaction should fail validation")
	}
}

func TestValidateStructure_MultipleTxsValid(t *testing.T) {
	coinbase := testCoinbase()
	t1 := userTx(1)
	t2 := userTx(2)
	txs := []*tx.Transaction{coinbase, t1, t2}
	root := merkle.ComputeRoot(txs)
	blk := NewBlock(&Header{MerkleRoot: root}, txs)
	if err := blk.ValidateStructure(); err != nil {
		t.Errorf("multi-tx block should validate: %v", err)
	}
}

func TestValidateStructure_DuplicateInputAcrossTxs(t *testing.T) {
	coinbase := testCoinbase()
	t1 := userTx(1)
	t2 := userTx(1) // spends the same prevout as t1
	txs := []*tx.Transaction{coinbase, t1, t2}
	root := merkle.ComputeRoot(txs)
	blk := NewBlock(&Header{MerkleRoot: root}, txs)
	if err := blk.ValidateStructure(); !errors.Is(err, ErrDuplicateBlockInput) {
		t.Errorf("err = %v, want ErrDuplicateBlockInput", err)
	}
}

func TestHeader_EncodeDecode_RoundTrip(t *testing.T) {
	h := &Header{
		Version:       1,
		PrevBlockHash: types.Hash{0x01},
		MerkleRoot:    types.Hash{0x02},
		Time:          1700000000,
		Bits:          0x1d00ffff,
		Nonce:         42,
	}
	encoded := h.Encode()
	if len(encoded) != HeaderSize {
		t.Fatalf("Encode length = %d, want %d", len(encoded), HeaderSize)
	}
	got, ok := DecodeHeader(encoded)
	if !ok {
		t.Fatal("DecodeHeader failed on a validly encoded header")
	}
	if *got != *h {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestDecodeHeader_WrongLength(t *testing.T) {
	if _, ok := DecodeHeader(make([]byte, HeaderSize-1)); ok {
		t.Error("DecodeHeader accepted a too-short buffer")
	}
	if _, ok := DecodeHeader(make([]byte, HeaderSize+1)); ok {
		t.Error("DecodeHeader accepted a too-long buffer")
	}
}

func TestHeader_Hash_Deterministic(t *testing.T) {
	h := &Header{Version: 1, PrevBlockHash: types.Hash{0x01}, Time: 1700000000}
	if h.Hash() != h.Hash() {
		t.Error("Header.Hash() should be deterministic")
	}
	if h.Hash().IsZero() {
		t.Error("Header.Hash() should not be zero")
	}
}

func TestHeader_Hash_SensitiveToNonce(t *testing.T) {
	h1 := &Header{Version: 1, Time: 1700000000, Bits: 0x1d00ffff, Nonce: 1}
	h2 := *h1
	h2.Nonce = 2
	if h1.Hash() == h2.Hash() {
		t.Error("changing the nonce should change the block hash")
	}
}

func TestBlock_Hash(t *testing.T) {
	blk := validBlock()
	if blk.Hash().IsZero() {
		t.Error("Block.Hash() should not be zero")
	}
	nilHeaderBlock := &Block{}
	if !nilHeaderBlock.Hash().IsZero() {
		t.Error("Block.Hash() with nil header should be zero")
	}
}
