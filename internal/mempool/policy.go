package mempool

import (
	"fmt"

	"github.com/parthenon-labs/chaincore/pkg/tx"
)

// DefaultMaxTxSize is the maximum transaction size in encoded bytes a
// standalone policy check enforces ahead of any attached consensus context.
const DefaultMaxTxSize = 100_000

// checkPolicy enforces admission rules that apply regardless of whether a
// consensus context is attached — size alone, since this core's other
// per-transaction shape rules (input/output counts, script lengths) are
// already covered by pkg/tx.Transaction.ValidateStructure, which the
// attached consensus context runs when present (spec.md §4.11 step 3: "the
// fee policy" is a standalone gate separate from step 4's optional full
// validation).
func checkPolicy(transaction *tx.Transaction, size int) error {
	if size > DefaultMaxTxSize {
		return fmt.Errorf("transaction too large: %d bytes, max %d", size, DefaultMaxTxSize)
	}
	return nil
}
