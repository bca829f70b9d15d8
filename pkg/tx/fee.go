package tx

// EstimateTxFee returns the minimum fee for a transaction with the given
// number of inputs and outputs at feeRate (base units per byte), using the
// canonical Encode layout (spec.md §4.3): every non-coinbase input carries a
// fixed 64-byte scriptSig and every output a fixed 32-byte scriptPubKey, so
// the size is exact rather than approximate.
func EstimateTxFee(numInputs, numOutputs int, feeRate uint64) uint64 {
	const overhead = 4 + 4 + 4 + 4 // version + vinCount + voutCount + lockTime
	const perInput = 32 + 4 + 4 + ScriptSigSize + 4
	const perOutput = 8 + 4 + PubKeySize

	size := overhead + perInput*numInputs + perOutput*numOutputs
	return uint64(size) * feeRate
}

// RequiredFee returns the exact minimum fee for a fully built transaction at
// feeRate (base units per byte of its canonical encoding).
func RequiredFee(t *Transaction, feeRate uint64) uint64 {
	return uint64(len(t.Encode())) * feeRate
}

// FeeRate returns a transaction's fee rate in base units per byte, given its
// total input value (the sum of the UTXOs it spends, which the caller must
// resolve via the chainstate — a transaction's bytes alone don't carry it).
// The mempool (component C12) does not call it: it computes its own
// fee*1000/size rate from the fee passed to Pool.Accept.
func FeeRate(t *Transaction, inputValue uint64) (uint64, error) {
	outputValue, err := t.TotalOutputValue()
	if err != nil {
		return 0, err
	}
	if inputValue < outputValue {
		return 0, ErrOutputOverflow
	}
	fee := inputValue - outputValue
	size := uint64(len(t.Encode()))
	if size == 0 {
		return 0, nil
	}
	return fee / size, nil
}
