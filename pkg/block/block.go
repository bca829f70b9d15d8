// Package block defines the block header/body types, their canonical
// encoding, and parameter-free structural validation (spec component C9's
// decode-time half; the params-aware half — PoW target check, timestamp
// drift, median-time-past — lives in internal/validation alongside C8,
// since both need params.Params).
package block

import (
	"github.com/parthenon-labs/chaincore/pkg/tx"
	"github.com/parthenon-labs/chaincore/pkg/types"
)

// Block is a header plus its ordered transaction list. Per spec.md §3 it is
// non-empty and its first transaction is the coinbase.
type Block struct {
	Header       *Header           `json:"header"`
	Transactions []*tx.Transaction `json:"transactions"`
}

// NewBlock constructs a Block from a header and transaction list.
func NewBlock(header *Header, txs []*tx.Transaction) *Block {
	return &Block{Header: header, Transactions: txs}
}

// Hash returns the block's header hash, or the zero hash if Header is nil.
func (b *Block) Hash() types.Hash {
	if b.Header == nil {
		return types.Hash{}
	}
	return b.Header.Hash()
}
