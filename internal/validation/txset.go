package validation

import (
	"errors"
	"fmt"
	"math"

	"github.com/parthenon-labs/chaincore/params"
	"github.com/parthenon-labs/chaincore/pkg/schnorr"
	"github.com/parthenon-labs/chaincore/pkg/tx"
	"github.com/parthenon-labs/chaincore/pkg/types"
)

// UTXOLookup resolves an outpoint to its unspent output, or (nil, nil) if
// absent. Its shape matches internal/chainstate.Chainstate.Get exactly, so a
// *chainstate.Chainstate's Get method value satisfies it directly.
type UTXOLookup func(types.Outpoint) (*tx.Coin, error)

var (
	ErrEmptyTxSet           = errors.New("validation: transaction set is empty")
	ErrFirstNotCoinbase     = errors.New("validation: first transaction must be a coinbase")
	ErrExtraCoinbase        = errors.New("validation: only the first transaction may be a coinbase")
	ErrBadCoinbaseScriptSig = errors.New("validation: coinbase scriptSig length out of bounds")
	ErrMoneyRange           = errors.New("validation: value outside the money range")
	ErrAssetMismatch        = errors.New("validation: inconsistent asset id")
	ErrWrongPowAsset        = errors.New("validation: coinbase must pay the proof-of-work asset")
	ErrDust                 = errors.New("validation: output below the dust floor")
	ErrTxTooLarge           = errors.New("validation: transaction exceeds the maximum size")
	ErrBlockTooHeavy        = errors.New("validation: block exceeds the maximum weight")
	ErrMissingUTXO          = errors.New("validation: referenced output does not exist")
	ErrDoubleSpendInSet     = errors.New("validation: outpoint spent twice within the set")
	ErrBadSignature         = errors.New("validation: signature verification failed")
	ErrOverspend            = errors.New("validation: outputs exceed inputs")
	ErrCoinbaseTooRich      = errors.New("validation: coinbase claims more than subsidy plus fees")

	// ErrImmatureCoinbase reports a spend of a coinbase output that has not
	// yet accumulated params.Params.CoinbaseMaturity confirmations. Grounded
	// on the daglabs-btcd pack's blockCoinbaseMaturity-gated spend check
	// (domain/consensus/processes/transactionvalidator); the original_source
	// this core otherwise ports has no coinbase-maturity concept at all.
	ErrImmatureCoinbase = errors.New("validation: coinbase output is not yet mature")
)

func safeAdd(a, b uint64) (uint64, bool) {
	if a > math.MaxUint64-b {
		return 0, false
	}
	return a + b, true
}

func moneyRange(v uint64, p *params.Params) bool {
	return v <= p.MaxMoneyOut
}

// assetTracker enforces that every asset id seen within a single
// transaction's outputs (and, for non-coinbase, its inputs) is the same one.
type assetTracker struct {
	asset uint8
	set   bool
}

func (a *assetTracker) check(candidate uint8) bool {
	if a.set && a.asset != candidate {
		return false
	}
	a.asset = candidate
	a.set = true
	return true
}

// validateSpend runs the non-coinbase per-transaction checks ValidateTransactionSet
// applies to each of its members: structure, size, asset consistency,
// dust/money-range, double-spend-within-seenPrevouts, signature
// verification, conservation of value, and coinbase maturity. It returns the
// transaction's fee on success. seenPrevouts is shared across a caller's
// whole batch so a multi-transaction caller still catches cross-transaction
// double spends; ValidateTransaction passes a fresh empty map for a
// standalone check. height is the height the spending transaction is being
// considered at, against which a spent coinbase output's maturity is judged.
func validateSpend(t *tx.Transaction, p *params.Params, height uint64, lookup UTXOLookup, seenPrevouts map[types.Outpoint]bool) (uint64, error) {
	if err := t.ValidateStructure(); err != nil {
		return 0, err
	}
	if size := len(t.Encode()); size > p.MaxTxSize {
		return 0, ErrTxTooLarge
	}
	sigHash := t.SigHash()

	var txAsset assetTracker
	var totalOut uint64
	for j, out := range t.Outputs {
		if !txAsset.check(out.AssetID) {
			return 0, fmt.Errorf("output %d: %w", j, ErrAssetMismatch)
		}
		next, ok := safeAdd(totalOut, out.Value)
		if !ok || !moneyRange(out.Value, p) || !moneyRange(next, p) {
			return 0, fmt.Errorf("output %d: %w", j, ErrMoneyRange)
		}
		totalOut = next
		if out.Value < p.DustFloor {
			return 0, fmt.Errorf("output %d: %w", j, ErrDust)
		}
	}

	var totalIn uint64
	for j, in := range t.Inputs {
		if !txAsset.check(in.AssetID) {
			return 0, fmt.Errorf("input %d: %w", j, ErrAssetMismatch)
		}
		if seenPrevouts[in.PrevOut] {
			return 0, fmt.Errorf("input %d: %w", j, ErrDoubleSpendInSet)
		}
		seenPrevouts[in.PrevOut] = true

		coin, err := lookup(in.PrevOut)
		if err != nil {
			return 0, fmt.Errorf("input %d: %w", j, err)
		}
		if coin == nil {
			return 0, fmt.Errorf("input %d: %w", j, ErrMissingUTXO)
		}
		utxo := coin.Output
		if coin.IsCoinbase && (height < coin.Height || height-coin.Height < p.CoinbaseMaturity) {
			return 0, fmt.Errorf("input %d: %w", j, ErrImmatureCoinbase)
		}
		if utxo.AssetID != in.AssetID || !txAsset.check(utxo.AssetID) {
			return 0, fmt.Errorf("input %d: %w", j, ErrAssetMismatch)
		}

		if !schnorr.Verify(in.ScriptSig, utxo.ScriptPubKey, sigHash.Bytes()) {
			return 0, fmt.Errorf("input %d: %w", j, ErrBadSignature)
		}

		next, ok := safeAdd(totalIn, utxo.Value)
		if !ok || !moneyRange(next, p) {
			return 0, fmt.Errorf("input %d: %w", j, ErrMoneyRange)
		}
		totalIn = next
	}

	if totalOut > totalIn {
		return 0, ErrOverspend
	}
	return totalIn - totalOut, nil
}

// ValidateTransaction validates a single non-coinbase transaction in
// isolation — outside the context of any particular block — resolving its
// inputs through lookup, at the given height (used to judge spent coinbase
// outputs' maturity). Used by internal/mempool's optional consensus context
// (spec.md §4.11 step 4), where a candidate transaction has no sibling set
// to share a coinbase or a seenPrevouts map with.
func ValidateTransaction(t *tx.Transaction, p *params.Params, height uint64, lookup UTXOLookup) (uint64, error) {
	if t.IsCoinbase() {
		return 0, ErrExtraCoinbase
	}
	return validateSpend(t, p, height, lookup, make(map[types.Outpoint]bool, len(t.Inputs)))
}

// ValidateTransactionSet validates an ordered transaction list — the first
// must be a coinbase, no other may be — against p at the given height,
// resolving spent outputs through lookup. It returns the total fees paid by
// the non-coinbase transactions on success.
//
// Grounded on validation.cpp's ValidateTransactions: coinbase shape and
// scriptSig-length bounds, asset-id consistency via checkAsset, the
// money-range/overflow guards via SafeAdd, the per-tx size cap and running
// block-weight cap, the seenPrevouts double-spend set, the dust floor, and
// the final coinbaseOutTotal <= subsidy+fees check. The multi-asset
// activation-height branch has no equivalent here: this core issues subsidy
// in a single PoW asset (params.Params.PowAsset) unconditionally.
func ValidateTransactionSet(txs_ []*tx.Transaction, p *params.Params, height uint64, lookup UTXOLookup) (uint64, error) {
	if len(txs_) == 0 {
		return 0, ErrEmptyTxSet
	}

	coinbase := txs_[0]
	if !coinbase.IsCoinbase() {
		return 0, ErrFirstNotCoinbase
	}
	if err := coinbase.ValidateStructure(); err != nil {
		return 0, fmt.Errorf("coinbase: %w", err)
	}
	sigLen := len(coinbase.Inputs[0].ScriptSig)
	if sigLen < p.CoinbaseScriptSigMin || sigLen > p.CoinbaseScriptSigMax {
		return 0, ErrBadCoinbaseScriptSig
	}

	var coinbaseAsset assetTracker
	var coinbaseTotal uint64
	for i, out := range coinbase.Outputs {
		if !coinbaseAsset.check(out.AssetID) {
			return 0, fmt.Errorf("coinbase output %d: %w", i, ErrAssetMismatch)
		}
		total, ok := safeAdd(coinbaseTotal, out.Value)
		if !ok || !moneyRange(out.Value, p) || !moneyRange(total, p) {
			return 0, fmt.Errorf("coinbase output %d: %w", i, ErrMoneyRange)
		}
		coinbaseTotal = total
	}
	if coinbaseAsset.asset != p.PowAsset {
		return 0, ErrWrongPowAsset
	}

	seenPrevouts := make(map[types.Outpoint]bool, len(txs_)*2)
	var runningWeight int64
	var totalFees uint64

	for i := 1; i < len(txs_); i++ {
		t := txs_[i]
		if t.IsCoinbase() {
			return 0, fmt.Errorf("transaction %d: %w", i, ErrExtraCoinbase)
		}
		fee, err := validateSpend(t, p, height, lookup, seenPrevouts)
		if err != nil {
			return 0, fmt.Errorf("transaction %d: %w", i, err)
		}
		runningWeight += int64(len(t.Encode())) * 4
		if runningWeight > p.MaxBlockWeight {
			return 0, ErrBlockTooHeavy
		}
		next, ok := safeAdd(totalFees, fee)
		if !ok || !moneyRange(next, p) {
			return 0, fmt.Errorf("transaction %d: %w", i, ErrMoneyRange)
		}
		totalFees = next
	}

	maxCoinbase, ok := safeAdd(p.Subsidy(height, p.PowAsset), totalFees)
	if !ok {
		return 0, ErrMoneyRange
	}
	if coinbaseTotal > maxCoinbase {
		return 0, ErrCoinbaseTooRich
	}

	return totalFees, nil
}
