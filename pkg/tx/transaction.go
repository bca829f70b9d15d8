// Package tx defines the transaction data model, its canonical wire codec
// (spec component C3), and structural validation.
package tx

import (
	"encoding/hex"
	"encoding/json"
	"math"

	"github.com/parthenon-labs/chaincore/pkg/hash"
	"github.com/parthenon-labs/chaincore/pkg/types"
)

// PubKeySize is the fixed length of a scriptPubKey / scriptSig's x-only key.
const PubKeySize = 32

// ScriptSigSize is the fixed length of a non-coinbase scriptSig: a BIP-340
// Schnorr signature.
const ScriptSigSize = 64

// Transaction is a UTXO-consuming, UTXO-producing unit of the ledger.
type Transaction struct {
	Version  uint32 `json:"version"`
	Inputs   []TxIn `json:"vin"`
	Outputs  []TxOut `json:"vout"`
	LockTime uint32 `json:"locktime"`
}

// TxIn references a UTXO being spent. For non-coinbase inputs, ScriptSig is
// a 64-byte BIP-340 signature verified against the referenced UTXO's
// ScriptPubKey (see pkg/schnorr). AssetID must match the referenced UTXO.
type TxIn struct {
	PrevOut   types.Outpoint `json:"prevout"`
	ScriptSig []byte         `json:"scriptSig"`
	Sequence  uint32         `json:"sequence"`
	AssetID   uint8          `json:"assetId"`
}

// TxOut defines a new UTXO. ScriptPubKey is always exactly a 32-byte x-only
// public key (pkg/schnorr.PubKeySize).
type TxOut struct {
	Value        uint64 `json:"value"`
	ScriptPubKey []byte `json:"scriptPubKey"`
	AssetID      uint8  `json:"assetId"`
}

// Coin is a UTXO as the store and the transaction-set validator see it:
// the output itself, plus the provenance the coinbase-maturity rule needs
// — whether it came from a coinbase transaction, and the height at which
// it was created. Named after the original chainstate's per-output record;
// this core's coins.cpp carries no such metadata, so the fields here are an
// addition gating spendability in ValidateTransactionSet (params.Params's
// CoinbaseMaturity), grounded instead on the blockCoinbaseMaturity
// parameter the pack's daglabs-btcd transaction validator threads through
// for the same purpose.
type Coin struct {
	Output     *TxOut
	IsCoinbase bool
	Height     uint64
}

// txInJSON/txOutJSON hex-encode byte fields, following the teacher's
// hex-wrapped-JSON convention (pkg/tx/transaction.go, pre-rewrite).
type txInJSON struct {
	PrevOut   types.Outpoint `json:"prevout"`
	ScriptSig string         `json:"scriptSig"`
	Sequence  uint32         `json:"sequence"`
	AssetID   uint8          `json:"assetId"`
}

func (in TxIn) MarshalJSON() ([]byte, error) {
	return json.Marshal(txInJSON{
		PrevOut:   in.PrevOut,
		ScriptSig: hex.EncodeToString(in.ScriptSig),
		Sequence:  in.Sequence,
		AssetID:   in.AssetID,
	})
}

func (in *TxIn) UnmarshalJSON(data []byte) error {
	var j txInJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	b, err := hex.DecodeString(j.ScriptSig)
	if err != nil {
		return err
	}
	in.PrevOut = j.PrevOut
	in.ScriptSig = b
	in.Sequence = j.Sequence
	in.AssetID = j.AssetID
	return nil
}

type txOutJSON struct {
	Value        uint64 `json:"value"`
	ScriptPubKey string `json:"scriptPubKey"`
	AssetID      uint8  `json:"assetId"`
}

func (out TxOut) MarshalJSON() ([]byte, error) {
	return json.Marshal(txOutJSON{
		Value:        out.Value,
		ScriptPubKey: hex.EncodeToString(out.ScriptPubKey),
		AssetID:      out.AssetID,
	})
}

func (out *TxOut) UnmarshalJSON(data []byte) error {
	var j txOutJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	b, err := hex.DecodeString(j.ScriptPubKey)
	if err != nil {
		return err
	}
	out.Value = j.Value
	out.ScriptPubKey = b
	out.AssetID = j.AssetID
	return nil
}

// IsCoinbase reports whether tx is a coinbase transaction: exactly one
// input whose prevout is the null outpoint.
func (t *Transaction) IsCoinbase() bool {
	return len(t.Inputs) == 1 && t.Inputs[0].PrevOut.IsNull()
}

// Hash returns the transaction ID: TaggedHash("TX", serialize(tx)).
func (t *Transaction) Hash() types.Hash {
	return hash.Tagged("TX", t.Encode())
}

// TotalOutputValue returns the sum of all output values, or an error if it
// overflows uint64.
func (t *Transaction) TotalOutputValue() (uint64, error) {
	var total uint64
	for _, out := range t.Outputs {
		if total > math.MaxUint64-out.Value {
			return 0, ErrOutputOverflow
		}
		total += out.Value
	}
	return total, nil
}
