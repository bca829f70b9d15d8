// Package merkle computes the tagged Merkle root over a transaction list
// (spec component C4), grounded on the teacher's pkg/block/merkle.go pairwise
// reduction but re-tagged per spec.md §4.1: leaves are TaggedHash("TX", ...)
// and parents are TaggedHash("MERKLE", left‖right) rather than the teacher's
// untagged double-SHA256.
package merkle

import (
	"github.com/parthenon-labs/chaincore/pkg/hash"
	"github.com/parthenon-labs/chaincore/pkg/tx"
	"github.com/parthenon-labs/chaincore/pkg/types"
)

var merkleTagKey = hash.TagKey("MERKLE")

// ComputeRoot returns the tagged Merkle root of txs, per spec.md §4.1:
//
//  1. Leaves: layer[i] = TaggedHash("TX", serialize(txs[i])).
//  2. If the current layer has odd length, duplicate the last element.
//  3. Parent layer: next[j] = TaggedHash("MERKLE", layer[2j] ‖ layer[2j+1]).
//  4. Repeat until one element remains.
//
// An empty list returns the all-zero hash (never reached in practice: every
// block carries a coinbase transaction).
func ComputeRoot(txs []*tx.Transaction) types.Hash {
	if len(txs) == 0 {
		return types.Hash{}
	}

	layer := make([]types.Hash, len(txs))
	for i, t := range txs {
		layer[i] = t.Hash()
	}
	return reduce(layer)
}

// ComputeRootFromHashes is ComputeRoot for callers that already have
// transaction hashes (e.g. the mempool selecting a candidate set without
// re-encoding every transaction).
func ComputeRootFromHashes(txHashes []types.Hash) types.Hash {
	if len(txHashes) == 0 {
		return types.Hash{}
	}
	layer := make([]types.Hash, len(txHashes))
	copy(layer, txHashes)
	return reduce(layer)
}

func reduce(layer []types.Hash) types.Hash {
	for len(layer) > 1 {
		if len(layer)%2 != 0 {
			layer = append(layer, layer[len(layer)-1])
		}
		next := make([]types.Hash, len(layer)/2)
		for i := 0; i < len(layer); i += 2 {
			next[i/2] = hash.Concat(merkleTagKey, layer[i], layer[i+1])
		}
		layer = next
	}
	return layer[0]
}
