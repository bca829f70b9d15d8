package tx

import (
	"errors"
	"fmt"

	"github.com/parthenon-labs/chaincore/pkg/types"
)

// Structural validation errors (spec.md §7 "Decode error"/"Validation
// failure", independent of any UTXO lookup).
var (
	ErrNoInputs       = errors.New("tx: no inputs")
	ErrNoOutputs      = errors.New("tx: no outputs")
	ErrDuplicateInput = errors.New("tx: duplicate input within transaction")
	ErrOutputOverflow = errors.New("tx: output values overflow")
	ErrBadScriptSig   = errors.New("tx: scriptSig wrong length")
	ErrBadScriptPub   = errors.New("tx: scriptPubKey wrong length")
	ErrCoinbaseShape  = errors.New("tx: coinbase transaction must have exactly one input")
)

// ValidateStructure checks the shape of a transaction independent of any
// UTXO lookup: non-empty vin/vout, no duplicate prevouts within the
// transaction, and fixed-length scriptSig/scriptPubKey fields. Per-UTXO
// checks (signature verification, asset-id consistency, fee/value
// balancing) need the chainstate and live in internal/validation instead
// (spec.md §4.7, component C8).
func (t *Transaction) ValidateStructure() error {
	if len(t.Inputs) == 0 {
		return ErrNoInputs
	}
	if len(t.Outputs) == 0 {
		return ErrNoOutputs
	}

	coinbase := t.IsCoinbase()
	if !coinbase && len(t.Inputs) > 1 && t.Inputs[0].PrevOut.IsNull() {
		return ErrCoinbaseShape
	}

	seen := make(map[types.Outpoint]bool, len(t.Inputs))
	for i, in := range t.Inputs {
		if seen[in.PrevOut] {
			return fmt.Errorf("input %d: %w", i, ErrDuplicateInput)
		}
		seen[in.PrevOut] = true

		if coinbase {
			continue
		}
		if in.PrevOut.IsNull() {
			return fmt.Errorf("input %d: null prevout on non-coinbase transaction", i)
		}
		if len(in.ScriptSig) != ScriptSigSize {
			return fmt.Errorf("input %d: %w: got %d, want %d", i, ErrBadScriptSig, len(in.ScriptSig), ScriptSigSize)
		}
	}

	if _, err := t.TotalOutputValue(); err != nil {
		return err
	}
	for i, out := range t.Outputs {
		if len(out.ScriptPubKey) != PubKeySize {
			return fmt.Errorf("output %d: %w: got %d, want %d", i, ErrBadScriptPub, len(out.ScriptPubKey), PubKeySize)
		}
	}

	return nil
}
