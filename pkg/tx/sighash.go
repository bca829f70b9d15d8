package tx

import (
	"github.com/parthenon-labs/chaincore/pkg/hash"
	"github.com/parthenon-labs/chaincore/pkg/types"
)

// SigHash returns the message every input's BIP-340 signature commits to:
// TaggedHash("TXSIGHASH", serialize(tx)) with every input's ScriptSig blanked
// to zero length first.
//
// Hash (the transaction ID) tags the full serialization, ScriptSig bytes
// included (spec.md §4.3's wire layout), so it cannot double as the signed
// message: a signature is itself written into ScriptSig, so hashing it in
// would make the message the signer commits to depend on the very signature
// being produced. Bitcoin's legacy sighash sidesteps the same problem by
// blanking the scriptSig being replaced before hashing; this core has no
// script interpreter or per-input subscript, so every input signs the same
// all-scriptSigs-blanked digest.
func (t *Transaction) SigHash() types.Hash {
	blanked := &Transaction{
		Version:  t.Version,
		Inputs:   make([]TxIn, len(t.Inputs)),
		Outputs:  t.Outputs,
		LockTime: t.LockTime,
	}
	for i, in := range t.Inputs {
		blanked.Inputs[i] = TxIn{
			PrevOut:  in.PrevOut,
			Sequence: in.Sequence,
			AssetID:  in.AssetID,
		}
	}
	return hash.Tagged("TXSIGHASH", blanked.Encode())
}
