package types

import "fmt"

// NullIndex is the output index used by the null outpoint — the prevout of
// every coinbase input.
const NullIndex uint32 = 0xFFFFFFFF

// Outpoint references a specific output in a transaction.
type Outpoint struct {
	TxID  Hash   `json:"txid"`
	Index uint32 `json:"index"`
}

// NullOutpoint is the exclusive prevout of coinbase inputs: (0…0, 0xFFFFFFFF).
var NullOutpoint = Outpoint{Index: NullIndex}

// IsNull returns true if this is the null outpoint (zero TxID, index 0xFFFFFFFF).
func (o Outpoint) IsNull() bool {
	return o.TxID.IsZero() && o.Index == NullIndex
}

// String returns "txid:index" in hex.
func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID.String(), o.Index)
}
