// Package validation implements the params-aware half of the header
// validator (spec component C9) and the transaction-set validator (spec
// component C8). See txset.go for the latter.
//
// Grounded on original_source/layer1-core/validation/validation.cpp's
// ValidateBlockHeader/ValidateTransactions, rewritten around this repo's
// params.Params, pkg/difficulty, and pkg/schnorr.
package validation

import (
	"errors"
	"fmt"
	"math"

	"github.com/parthenon-labs/chaincore/params"
	"github.com/parthenon-labs/chaincore/pkg/block"
	"github.com/parthenon-labs/chaincore/pkg/difficulty"
)

var (
	// ErrBadProofOfWork reports a header hash that does not meet its bits
	// target, or a bits field that decodes to an invalid target.
	ErrBadProofOfWork = errors.New("validation: header fails proof-of-work check")
	// ErrMedianTimePastUnset reports a caller passing medianTimePast == 0,
	// which would otherwise silently skip the ordering rule.
	ErrMedianTimePastUnset = errors.New("validation: medianTimePast must be supplied")
	// ErrTimestampNotAfterMTP reports header.Time <= medianTimePast.
	ErrTimestampNotAfterMTP = errors.New("validation: header timestamp must be strictly after median time past")
	// ErrTimestampTooFarInFuture reports header.Time beyond now+maxFutureDrift.
	ErrTimestampTooFarInFuture = errors.New("validation: header timestamp too far in the future")
)

// ValidateHeader checks a header's proof-of-work and timestamp ordering
// against p, given the chain's median-time-past over the last eleven blocks
// and the validator's current wall-clock time. medianTimePast == 0 is
// rejected rather than treated as "check disabled" — spec.md §8 requires
// header.Time == medianTimePast to be rejected and medianTimePast+1 to be
// accepted, which only holds if an unset MTP can never slip through as 0.
func ValidateHeader(header *block.Header, p *params.Params, medianTimePast, now uint32) error {
	if medianTimePast == 0 {
		return ErrMedianTimePastUnset
	}

	powLimit, err := difficulty.CompactToTarget(p.PowLimit)
	if err != nil {
		return fmt.Errorf("validation: powLimit: %w", err)
	}
	if !difficulty.CheckProofOfWork(header.Hash(), header.Bits, powLimit) {
		return ErrBadProofOfWork
	}

	if header.Time <= medianTimePast {
		return ErrTimestampNotAfterMTP
	}

	horizon := uint64(now) + uint64(p.MaxFutureDrift)
	if horizon > math.MaxUint32 {
		horizon = math.MaxUint32
	}
	if uint64(header.Time) > horizon {
		return ErrTimestampTooFarInFuture
	}

	return nil
}
