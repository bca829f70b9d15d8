// Package connector implements the block connector (spec component C10):
// atomically applying a candidate block to a Chainstate, rolling back the
// store on any failure partway through.
//
// Grounded on internal/chain/reorg.go's applyBlockWithUndo/revertBlock pair
// and UndoData struct (the teacher's reorg machinery builds and consumes the
// same shape while replaying branches); rewritten around this core's
// simpler, registration/stake/subchain-free transaction model and its
// Chainstate's own begin/commit/rollback staging instead of the teacher's
// manual undo-log JSON-marshaling to a separate store.
package connector

import (
	"errors"
	"fmt"

	"github.com/parthenon-labs/chaincore/internal/chainstate"
	"github.com/parthenon-labs/chaincore/internal/log"
	"github.com/parthenon-labs/chaincore/internal/validation"
	"github.com/parthenon-labs/chaincore/params"
	"github.com/parthenon-labs/chaincore/pkg/block"
	"github.com/parthenon-labs/chaincore/pkg/tx"
	"github.com/parthenon-labs/chaincore/pkg/types"
)

// ErrDoubleSpendInBlock reports two transactions in the same block spending
// the same outpoint — caught here rather than by the validator when lookup
// caching let the first spend's UTXO remain visible to the second (spec.md
// §4.9 step 3).
var ErrDoubleSpendInBlock = errors.New("connector: outpoint spent twice within block")

// UndoEntry records one spent outpoint's pre-image, so a later revert can
// restore it.
type UndoEntry struct {
	Outpoint types.Outpoint
	Coin     *tx.Coin
}

// UndoData is everything needed to revert a connected block: the outpoints
// it created (to delete) and the UTXOs it spent (to restore), per spec.md
// §4.9's step 4.
type UndoData struct {
	CreatedOutpoints []types.Outpoint
	SpentUTXOs       []UndoEntry
}

// Connect validates header and block, then atomically applies it to cs:
// every output created before every input spent, in transaction order, per
// spec.md §4.9 step 4. On any failure the store is rolled back and left
// exactly as it was found. fallback is consulted for a UTXO the store
// itself doesn't know about (e.g. a just-connected ancestor still only in
// an in-flight batch); it may be nil.
func Connect(
	blk *block.Block,
	cs *chainstate.Chainstate,
	p *params.Params,
	height uint64,
	medianTimePast, now uint32,
	fallback validation.UTXOLookup,
) (*UndoData, error) {
	if err := blk.ValidateStructure(); err != nil {
		return nil, fmt.Errorf("connector: %w", err)
	}
	if err := validation.ValidateHeader(blk.Header, p, medianTimePast, now); err != nil {
		return nil, fmt.Errorf("connector: %w", err)
	}

	lookup := lookupWithFallback(cs, fallback)
	if _, err := validation.ValidateTransactionSet(blk.Transactions, p, height, lookup); err != nil {
		return nil, fmt.Errorf("connector: %w", err)
	}

	cs.Begin()
	undo, err := apply(blk, cs, lookup, height)
	if err != nil {
		if rbErr := cs.Rollback(); rbErr != nil {
			log.Connector.Error().Err(rbErr).Msg("rollback failed after apply error")
		}
		return nil, fmt.Errorf("connector: %w", err)
	}
	if err := cs.Commit(); err != nil {
		return nil, fmt.Errorf("connector: commit: %w", err)
	}
	return undo, nil
}

// apply walks the block's transactions in order, adding every output before
// spending any input of the same transaction, and tracks spentInBlock to
// catch an in-block double-spend the validator's lookup caching missed
// (spec.md §4.9 step 3). Only the block's first transaction is recorded as a
// coinbase in the outputs it creates — matching validation's ValidateTransactionSet,
// which only accepts a coinbase in that position — so coin.IsCoinbase and
// coin.Height are available to the maturity check on whatever later spends
// them.
func apply(blk *block.Block, cs *chainstate.Chainstate, lookup validation.UTXOLookup, height uint64) (*UndoData, error) {
	undo := &UndoData{}
	spentInBlock := make(map[types.Outpoint]bool, len(blk.Transactions))

	for txIdx, t := range blk.Transactions {
		txHash := t.Hash()
		isCoinbase := txIdx == 0

		for _, in := range t.Inputs {
			if in.PrevOut.IsNull() {
				continue
			}
			if spentInBlock[in.PrevOut] {
				return nil, fmt.Errorf("%s: %w", in.PrevOut, ErrDoubleSpendInBlock)
			}
			spentInBlock[in.PrevOut] = true

			coin, err := lookup(in.PrevOut)
			if err != nil {
				return nil, fmt.Errorf("lookup %s: %w", in.PrevOut, err)
			}
			if coin == nil {
				return nil, fmt.Errorf("%s: %w", in.PrevOut, chainstate.ErrSpendMissing)
			}
			undo.SpentUTXOs = append(undo.SpentUTXOs, UndoEntry{Outpoint: in.PrevOut, Coin: coin})
		}

		for i, out := range t.Outputs {
			op := types.Outpoint{TxID: txHash, Index: uint32(i)}
			if err := cs.Add(op, &out, isCoinbase, height); err != nil {
				return nil, fmt.Errorf("add %s: %w", op, err)
			}
			undo.CreatedOutpoints = append(undo.CreatedOutpoints, op)
		}

		for _, in := range t.Inputs {
			if in.PrevOut.IsNull() {
				continue
			}
			if err := cs.Spend(in.PrevOut); err != nil {
				return nil, fmt.Errorf("spend %s: %w", in.PrevOut, err)
			}
		}
	}

	return undo, nil
}

// lookupWithFallback resolves an outpoint against cs first, falling back to
// fallback only when cs has no record of it (spec.md §4.9 step 4: "store
// first, fallback second").
func lookupWithFallback(cs *chainstate.Chainstate, fallback validation.UTXOLookup) validation.UTXOLookup {
	return func(o types.Outpoint) (*tx.Coin, error) {
		coin, err := cs.Get(o)
		if err != nil {
			return nil, err
		}
		if coin != nil {
			return coin, nil
		}
		if fallback == nil {
			return nil, nil
		}
		return fallback(o)
	}
}
