package tx

import "testing"

func TestEstimateTxFee_MatchesActualEncodedSize(t *testing.T) {
	txn := sampleTx()
	estimated := EstimateTxFee(len(txn.Inputs), len(txn.Outputs), 1)
	actual := uint64(len(txn.Encode()))
	if estimated != actual {
		t.Errorf("EstimateTxFee(feeRate=1) = %d, want exact encoded size %d", estimated, actual)
	}
}

func TestRequiredFee_ScalesWithFeeRate(t *testing.T) {
	txn := sampleTx()
	base := RequiredFee(txn, 1)
	doubled := RequiredFee(txn, 2)
	if doubled != base*2 {
		t.Errorf("RequiredFee did not scale linearly: base=%d doubled=%d", base, doubled)
	}
}

func TestFeeRate(t *testing.T) {
	txn := sampleTx()
	outputValue, err := txn.TotalOutputValue()
	if err != nil {
		t.Fatalf("TotalOutputValue: %v", err)
	}
	size := uint64(len(txn.Encode()))
	inputValue := outputValue + size*7

	rate, err := FeeRate(txn, inputValue)
	if err != nil {
		t.Fatalf("FeeRate: %v", err)
	}
	if rate != 7 {
		t.Errorf("FeeRate = %d, want 7", rate)
	}
}

func TestFeeRate_InputLessThanOutput(t *testing.T) {
	txn := sampleTx()
	outputValue, _ := txn.TotalOutputValue()
	if _, err := FeeRate(txn, outputValue-1); err == nil {
		t.Error("expected error when input value is less than output value")
	}
}
