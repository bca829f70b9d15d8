package block

import (
	"errors"
	"fmt"

	"github.com/parthenon-labs/chaincore/pkg/merkle"
	"github.com/parthenon-labs/chaincore/pkg/types"
)

// Structural validation errors — shape and Merkle-root checks independent of
// consensus params or the UTXO set. Policy checks (size/weight limits,
// per-UTXO asset consistency, script verification, fee accounting) are
// params- and chainstate-aware and live in internal/validation (C8) instead.
var (
	ErrNilHeader           = errors.New("block: nil header")
	ErrNoTransactions      = errors.New("block: no transactions")
	ErrBadMerkleRoot       = errors.New("block: merkle root mismatch")
	ErrNoCoinbase          = errors.New("block: first transaction must be coinbase")
	ErrMultipleCoinbase    = errors.New("block: multiple coinbase transactions")
	ErrDuplicateBlockInput = errors.New("block: duplicate input across transactions in block")
)

// ValidateStructure checks block shape: non-nil header, a non-empty
// transaction list whose first element (and only that element) is a
// coinbase, a Merkle root matching the transaction list, every transaction's
// own structural validity, and no outpoint spent twice across transactions
// in the block (spec.md §3 invariant 4; §4.7 step 3's seenPrevouts is the
// params-aware superset of this check and lives in internal/validation).
func (b *Block) ValidateStructure() error {
	if b.Header == nil {
		return ErrNilHeader
	}
	if len(b.Transactions) == 0 {
		return ErrNoTransactions
	}

	if !b.Transactions[0].IsCoinbase() {
		return ErrNoCoinbase
	}
	for i, t := range b.Transactions[1:] {
		if t.IsCoinbase() {
			return fmt.Errorf("tx %d: %w", i+1, ErrMultipleCoinbase)
		}
	}

	for i, t := range b.Transactions {
		if err := t.ValidateStructure(); err != nil {
			return fmt.Errorf("tx %d: %w", i, err)
		}
	}

	expectedRoot := merkle.ComputeRoot(b.Transactions)
	if b.Header.MerkleRoot != expectedRoot {
		return fmt.Errorf("%w: header=%s computed=%s", ErrBadMerkleRoot, b.Header.MerkleRoot, expectedRoot)
	}

	seen := make(map[types.Outpoint]int, len(b.Transactions))
	for i, t := range b.Transactions {
		for _, in := range t.Inputs {
			if in.PrevOut.IsNull() {
				continue
			}
			if prevTx, ok := seen[in.PrevOut]; ok {
				return fmt.Errorf("tx %d: %w: outpoint %s also spent in tx %d", i, ErrDuplicateBlockInput, in.PrevOut, prevTx)
			}
			seen[in.PrevOut] = i
		}
	}

	return nil
}
