package mempool

import (
	"errors"
	"testing"
	"time"

	"github.com/parthenon-labs/chaincore/config"
	"github.com/parthenon-labs/chaincore/params"
	"github.com/parthenon-labs/chaincore/pkg/schnorr"
	"github.com/parthenon-labs/chaincore/pkg/tx"
	"github.com/parthenon-labs/chaincore/pkg/types"
)

func testParams() *params.Params {
	p := config.NetworkParams(config.Testnet)
	p.DustFloor = 0
	return p
}

func signedSpend(t *testing.T, key *schnorr.PrivateKey, prevout types.Outpoint, asset uint8, outValue uint64, sequence uint32) *tx.Transaction {
	t.Helper()
	pub := key.XOnlyPubKey()
	txn := &tx.Transaction{
		Version: 1,
		Inputs: []tx.TxIn{{
			PrevOut:  prevout,
			Sequence: sequence,
			AssetID:  asset,
		}},
		Outputs: []tx.TxOut{{
			Value:        outValue,
			ScriptPubKey: pub[:],
			AssetID:      asset,
		}},
	}
	sig, err := key.Sign(txn.SigHash().Bytes())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	txn.Inputs[0].ScriptSig = sig
	return txn
}

func TestPool_AcceptAndExists(t *testing.T) {
	key, err := schnorr.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	prevout := types.Outpoint{TxID: types.Hash{0x01}, Index: 0}
	txn := signedSpend(t, key, prevout, 0, 1000, 0xFFFFFFFF)

	p := New(100, 0, 0)
	rate, err := p.Accept(txn, 500)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if rate == 0 {
		t.Error("expected nonzero fee rate for a nonzero fee")
	}
	if !p.Exists(txn.Hash()) {
		t.Error("accepted transaction should exist in the pool")
	}
	if p.Count() != 1 {
		t.Errorf("Count() = %d, want 1", p.Count())
	}
}

func TestPool_DuplicateRejected(t *testing.T) {
	key, _ := schnorr.GenerateKey()
	prevout := types.Outpoint{TxID: types.Hash{0x02}, Index: 0}
	txn := signedSpend(t, key, prevout, 0, 1000, 0xFFFFFFFF)

	p := New(100, 0, 0)
	if _, err := p.Accept(txn, 500); err != nil {
		t.Fatalf("first Accept: %v", err)
	}
	if _, err := p.Accept(txn, 500); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("second Accept err = %v, want ErrAlreadyExists", err)
	}
}

func TestPool_ReplaceByFee(t *testing.T) {
	key, _ := schnorr.GenerateKey()
	prevout := types.Outpoint{TxID: types.Hash{0x03}, Index: 0}

	txA := signedSpend(t, key, prevout, 0, 1000, 0xFFFFFFFD) // replaceable
	txB := signedSpend(t, key, prevout, 0, 900, 0xFFFFFFFF)  // conflicts, higher fee

	p := New(100, 0, 0)
	if _, err := p.Accept(txA, 10); err != nil {
		t.Fatalf("Accept txA: %v", err)
	}
	if _, err := p.Accept(txB, 10_000); err != nil {
		t.Fatalf("Accept txB (replacement): %v", err)
	}
	if p.Exists(txA.Hash()) {
		t.Error("txA should have been evicted by replacement")
	}
	if !p.Exists(txB.Hash()) {
		t.Error("txB should be present after replacing txA")
	}
}

func TestPool_ReplaceRejectedWhenNotReplaceable(t *testing.T) {
	key, _ := schnorr.GenerateKey()
	prevout := types.Outpoint{TxID: types.Hash{0x04}, Index: 0}

	txA := signedSpend(t, key, prevout, 0, 1000, 0xFFFFFFFF) // final, not replaceable
	txB := signedSpend(t, key, prevout, 0, 900, 0xFFFFFFFF)

	p := New(100, 0, 0)
	if _, err := p.Accept(txA, 10); err != nil {
		t.Fatalf("Accept txA: %v", err)
	}
	if _, err := p.Accept(txB, 10_000); !errors.Is(err, ErrNotReplaceable) {
		t.Errorf("Accept txB err = %v, want ErrNotReplaceable", err)
	}
	if !p.Exists(txA.Hash()) {
		t.Error("txA should remain since it was never replaceable")
	}
}

func TestPool_ReplaceRejectedWhenNotCheaper(t *testing.T) {
	key, _ := schnorr.GenerateKey()
	prevout := types.Outpoint{TxID: types.Hash{0x05}, Index: 0}

	txA := signedSpend(t, key, prevout, 0, 1000, 0xFFFFFFFD) // replaceable
	txB := signedSpend(t, key, prevout, 0, 900, 0xFFFFFFFF)

	p := New(100, 0, 0)
	if _, err := p.Accept(txA, 10_000); err != nil {
		t.Fatalf("Accept txA: %v", err)
	}
	// txB pays a lower fee than txA: not strictly cheaper-displacing.
	if _, err := p.Accept(txB, 1); !errors.Is(err, ErrNotReplaceable) {
		t.Errorf("Accept txB err = %v, want ErrNotReplaceable", err)
	}
}

func TestPool_EvictsLowestFeeRateOnCapacity(t *testing.T) {
	key, _ := schnorr.GenerateKey()
	p := New(2, 0, 0)

	prevout1 := types.Outpoint{TxID: types.Hash{0x06}, Index: 0}
	tx1 := signedSpend(t, key, prevout1, 0, 1000, 0xFFFFFFFF)
	if _, err := p.Accept(tx1, 10); err != nil {
		t.Fatalf("Accept tx1: %v", err)
	}

	prevout2 := types.Outpoint{TxID: types.Hash{0x07}, Index: 0}
	tx2 := signedSpend(t, key, prevout2, 0, 1000, 0xFFFFFFFF)
	if _, err := p.Accept(tx2, 20); err != nil {
		t.Fatalf("Accept tx2: %v", err)
	}

	// Pool is now at capacity (maxEntries=2). tx1 has the lowest fee rate
	// and should be evicted to make room for tx3.
	prevout3 := types.Outpoint{TxID: types.Hash{0x08}, Index: 0}
	tx3 := signedSpend(t, key, prevout3, 0, 1000, 0xFFFFFFFF)
	if _, err := p.Accept(tx3, 30); err != nil {
		t.Fatalf("Accept tx3: %v", err)
	}

	if p.Exists(tx1.Hash()) {
		t.Error("tx1 (lowest fee rate) should have been evicted on capacity pressure")
	}
	if !p.Exists(tx2.Hash()) || !p.Exists(tx3.Hash()) {
		t.Error("tx2 and tx3 should remain")
	}
	if p.Count() != 2 {
		t.Errorf("Count() = %d, want 2", p.Count())
	}
}

func TestPool_EvictExpired(t *testing.T) {
	key, _ := schnorr.GenerateKey()
	prevout := types.Outpoint{TxID: types.Hash{0x09}, Index: 0}
	txn := signedSpend(t, key, prevout, 0, 1000, 0xFFFFFFFF)

	p := New(100, 0, time.Hour)
	now := time.Now()
	newArrivalStamp = func() time.Time { return now }
	defer func() { newArrivalStamp = time.Now }()

	if _, err := p.Accept(txn, 10); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	// Advance the clock past maxAge and trigger another admission attempt
	// (expiry is swept on every Accept call, per spec.md §4.11 "Expiry").
	newArrivalStamp = func() time.Time { return now.Add(2 * time.Hour) }
	other := signedSpend(t, key, types.Outpoint{TxID: types.Hash{0x0A}, Index: 0}, 0, 1000, 0xFFFFFFFF)
	if _, err := p.Accept(other, 10); err != nil {
		t.Fatalf("Accept other: %v", err)
	}

	if p.Exists(txn.Hash()) {
		t.Error("txn should have expired")
	}
	if !p.Exists(other.Hash()) {
		t.Error("other should remain (just admitted)")
	}
}

func TestPool_RemoveForBlock(t *testing.T) {
	key, _ := schnorr.GenerateKey()
	prevout := types.Outpoint{TxID: types.Hash{0x0B}, Index: 0}
	txn := signedSpend(t, key, prevout, 0, 1000, 0xFFFFFFFF)

	p := New(100, 0, 0)
	if _, err := p.Accept(txn, 10); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	p.RemoveForBlock([]*tx.Transaction{txn})
	if p.Exists(txn.Hash()) {
		t.Error("txn should be removed after RemoveForBlock")
	}

	// A fresh spend of the same prevout must be admissible again: removal
	// must have cleared the spent-outpoint index too.
	again := signedSpend(t, key, prevout, 0, 500, 0xFFFFFFFF)
	if _, err := p.Accept(again, 10); err != nil {
		t.Fatalf("Accept after RemoveForBlock: %v", err)
	}
}

func TestPool_SnapshotSortedByHash(t *testing.T) {
	key, _ := schnorr.GenerateKey()
	p := New(100, 0, 0)

	var txns []*tx.Transaction
	for i := byte(0x10); i < 0x18; i++ {
		prevout := types.Outpoint{TxID: types.Hash{i}, Index: 0}
		txn := signedSpend(t, key, prevout, 0, 1000, 0xFFFFFFFF)
		txns = append(txns, txn)
		if _, err := p.Accept(txn, 10); err != nil {
			t.Fatalf("Accept: %v", err)
		}
	}

	snap := p.Snapshot()
	if len(snap) != len(txns) {
		t.Fatalf("Snapshot length = %d, want %d", len(snap), len(txns))
	}
	for i := 1; i < len(snap); i++ {
		prevHash := snap[i-1].Hash()
		curHash := snap[i].Hash()
		if !prevHash.Less(curHash) {
			t.Errorf("Snapshot not hash-sorted at index %d: %s then %s", i, prevHash, curHash)
		}
	}
}

func TestPool_EstimateFeeRateEmptyPool(t *testing.T) {
	p := New(100, 0, 0)
	if rate := p.EstimateFeeRate(50); rate != 0 {
		t.Errorf("EstimateFeeRate on empty pool = %d, want 0", rate)
	}
}

func TestPool_EstimateFeeRatePercentile(t *testing.T) {
	key, _ := schnorr.GenerateKey()
	p := New(100, 0, 0)

	fees := []uint64{10, 20, 30, 40, 50}
	for i, fee := range fees {
		prevout := types.Outpoint{TxID: types.Hash{byte(0x20 + i)}, Index: 0}
		txn := signedSpend(t, key, prevout, 0, 1000, 0xFFFFFFFF)
		if _, err := p.Accept(txn, fee); err != nil {
			t.Fatalf("Accept: %v", err)
		}
	}

	low := p.EstimateFeeRate(0)
	high := p.EstimateFeeRate(99)
	if low > high {
		t.Errorf("EstimateFeeRate(0)=%d should not exceed EstimateFeeRate(99)=%d", low, high)
	}
}

func TestPool_OnAcceptFiresOutsideLock(t *testing.T) {
	key, _ := schnorr.GenerateKey()
	prevout := types.Outpoint{TxID: types.Hash{0x30}, Index: 0}
	txn := signedSpend(t, key, prevout, 0, 1000, 0xFFFFFFFF)

	p := New(100, 0, 0)
	fired := make(chan types.Hash, 1)
	p.SetOnAccept(func(t *tx.Transaction) {
		// Re-entering the pool from within the callback would deadlock if
		// onAccept ran with the mutex still held.
		_ = p.Exists(t.Hash())
		fired <- t.Hash()
	})

	if _, err := p.Accept(txn, 10); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	select {
	case h := <-fired:
		if h != txn.Hash() {
			t.Errorf("onAccept hash = %s, want %s", h, txn.Hash())
		}
	case <-time.After(time.Second):
		t.Fatal("onAccept callback never fired")
	}
}

func TestPool_PolicyRejectsOversizedTransaction(t *testing.T) {
	key, _ := schnorr.GenerateKey()
	prevout := types.Outpoint{TxID: types.Hash{0x40}, Index: 0}
	txn := signedSpend(t, key, prevout, 0, 1000, 0xFFFFFFFF)
	txn.Inputs[0].ScriptSig = make([]byte, DefaultMaxTxSize+1)

	p := New(100, 0, 0)
	if _, err := p.Accept(txn, 10); !errors.Is(err, ErrPolicyRejected) {
		t.Errorf("Accept err = %v, want ErrPolicyRejected", err)
	}
}

func TestPool_ConsensusContextAcceptsKnownUTXO(t *testing.T) {
	key, _ := schnorr.GenerateKey()
	prevout := types.Outpoint{TxID: types.Hash{0x50}, Index: 0}
	pub := key.XOnlyPubKey()
	txn := signedSpend(t, key, prevout, 0, 900, 0xFFFFFFFF)

	p := New(100, 0, 0)
	prm := testParams()
	lookup := func(o types.Outpoint) (*tx.Coin, error) {
		if o != prevout {
			return nil, nil
		}
		return &tx.Coin{Output: &tx.TxOut{Value: 1000, ScriptPubKey: pub[:], AssetID: 0}}, nil
	}
	p.SetConsensusContext(prm, 0, lookup)

	if _, err := p.Accept(txn, 100); err != nil {
		t.Fatalf("Accept with valid consensus context: %v", err)
	}
}

func TestPool_ConsensusContextRejectsMissingUTXO(t *testing.T) {
	key, _ := schnorr.GenerateKey()
	prevout := types.Outpoint{TxID: types.Hash{0x51}, Index: 0}
	txn := signedSpend(t, key, prevout, 0, 900, 0xFFFFFFFF)

	p := New(100, 0, 0)
	prm := testParams()
	lookup := func(types.Outpoint) (*tx.Coin, error) { return nil, nil }
	p.SetConsensusContext(prm, 0, lookup)

	if _, err := p.Accept(txn, 100); !errors.Is(err, ErrValidation) {
		t.Errorf("Accept err = %v, want ErrValidation", err)
	}
}
