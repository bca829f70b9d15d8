package difficulty

import "math/big"

// NextWorkRequired computes the next compact target at a retarget boundary,
// per spec.md §4.6:
//
//	clamped    = clamp(actualTimespan, T/4, T·5/4)   where T = targetTimespan
//	newTarget  = oldTarget · clamped / T
//	newTarget  = min(newTarget, powLimit)
//
// This clamps to T/4 rather than the T·3/4 floor
// original_source/layer1-core/pow/difficulty.cpp uses — spec.md's wider
// band allows difficulty to fall faster after a sustained hashrate drop.
// targetTimespan must be positive; a non-positive value is a fatal config
// error, not a per-block rejection.
func NextWorkRequired(oldBits uint32, actualTimespan, targetTimespan int64, powLimit uint32) (uint32, error) {
	if targetTimespan <= 0 {
		return 0, ErrBadTimespan
	}

	clamped := actualTimespan
	minSpan := targetTimespan / 4
	maxSpan := targetTimespan * 5 / 4
	if clamped < minSpan {
		clamped = minSpan
	}
	if clamped > maxSpan {
		clamped = maxSpan
	}

	oldTarget, err := CompactToTarget(oldBits)
	if err != nil {
		return 0, err
	}
	limit, err := CompactToTarget(powLimit)
	if err != nil {
		return 0, err
	}

	newTarget := new(big.Int).Mul(oldTarget, big.NewInt(clamped))
	newTarget.Div(newTarget, big.NewInt(targetTimespan))
	if newTarget.Cmp(limit) > 0 {
		newTarget = limit
	}

	return TargetToCompact(newTarget), nil
}

// MinDifficultyApplies reports whether the minimum-difficulty recovery rule
// applies to a candidate block: its timestamp exceeds the previous block's
// time by more than 2·targetSpacing. Only meaningful on networks that enable
// it (spec.md §4.6's "network that permits minimum-difficulty recovery").
func MinDifficultyApplies(blockTime, prevTime uint32, targetSpacing int64) bool {
	return int64(blockTime) > int64(prevTime)+2*targetSpacing
}
