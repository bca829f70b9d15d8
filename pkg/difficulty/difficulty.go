// Package difficulty implements the compact target codec and per-block work
// calculation (spec component C2) and the retarget algorithm (component
// C7), grounded on original_source/layer1-core/pow/difficulty.cpp's
// CompactToTarget/TargetToCompact/CalculateNextWorkRequired, rewritten over
// math/big the way a Go port of Bitcoin's nBits arithmetic does.
package difficulty

import (
	"errors"
	"math/big"

	"github.com/parthenon-labs/chaincore/pkg/types"
)

const (
	exponentShift = 24
	mantissaMask  = 0x007fffff
	signMask      = 0x00800000
)

var (
	// ErrNegativeCompact reports the sign bit (bit 23) set in a compact
	// encoding — spec.md §4.2/§4.6's "sign bit set" rejection.
	ErrNegativeCompact = errors.New("difficulty: sign bit set in compact target")
	// ErrZeroOrAboveLimit reports a target of zero or exceeding powLimit.
	ErrZeroOrAboveLimit = errors.New("difficulty: target is zero or exceeds powLimit")
	// ErrBadTimespan reports a non-positive target timespan parameter —
	// fatal config error per spec.md §4.6.
	ErrBadTimespan = errors.New("difficulty: target timespan must be positive")
)

var (
	one     = big.NewInt(1)
	maxWork = new(big.Int).Lsh(big.NewInt(1), 256) // 2^256, numerator of the work formula
	eight   = big.NewInt(8)
)

// CompactToTarget decodes a compact ("bits") encoding into its big.Int
// target. The sign bit (bit 23 of the mantissa) must be zero.
func CompactToTarget(bits uint32) (*big.Int, error) {
	exponent := bits >> exponentShift
	mantissa := bits & mantissaMask
	if bits&signMask != 0 {
		return nil, ErrNegativeCompact
	}

	target := new(big.Int).SetUint64(uint64(mantissa))
	shift := new(big.Int)
	if exponent <= 3 {
		shift.Mul(eight, big.NewInt(int64(3-exponent)))
		target.Rsh(target, uint(shift.Int64()))
	} else {
		shift.Mul(eight, big.NewInt(int64(exponent-3)))
		target.Lsh(target, uint(shift.Int64()))
	}
	return target, nil
}

// TargetToCompact encodes a big.Int target into its compact representation.
// A non-positive target encodes to zero, matching the original's defensive
// behavior for an input that should never occur on a validated path.
func TargetToCompact(target *big.Int) uint32 {
	if target.Sign() <= 0 {
		return 0
	}

	tmp := new(big.Int).Set(target)
	size := 0
	for tmp.Sign() > 0 {
		tmp.Rsh(tmp, 8)
		size++
	}

	compact := new(big.Int).Set(target)
	if size > 3 {
		compact.Rsh(compact, uint(8*(size-3)))
	} else {
		compact.Lsh(compact, uint(8*(3-size)))
	}

	// If the top byte's high bit would be set, the mantissa would be
	// interpreted as negative; shift down one more byte and bump size to
	// compensate (mirrors the C++'s 0x008000 check, generalized to big.Int).
	if compact.Bit(23) == 1 {
		compact.Rsh(compact, 8)
		size++
	}

	result := uint32(compact.Uint64()) & mantissaMask
	result |= uint32(size) << exponentShift
	return result
}

// Work returns the per-block work for a compact target: floor(2^256 /
// (target + 1)). Work is additive across headers and compared by ordinary
// big.Int magnitude (spec.md §4.2).
func Work(bits uint32) (*big.Int, error) {
	target, err := CompactToTarget(bits)
	if err != nil {
		return nil, err
	}
	denom := new(big.Int).Add(target, one)
	if denom.Sign() <= 0 {
		return new(big.Int), nil
	}
	return new(big.Int).Div(maxWork, denom), nil
}

// CheckProofOfWork reports whether hash, interpreted as a big-endian
// integer, is at most the target decoded from bits, and that the target
// itself is in (0, powLimit] (spec.md §4.8's PoW half).
func CheckProofOfWork(hash types.Hash, bits uint32, powLimit *big.Int) bool {
	target, err := CompactToTarget(bits)
	if err != nil {
		return false
	}
	if target.Sign() <= 0 || target.Cmp(powLimit) > 0 {
		return false
	}
	value := new(big.Int).SetBytes(hash[:])
	return value.Cmp(target) <= 0
}
