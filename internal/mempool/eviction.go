package mempool

import (
	"github.com/parthenon-labs/chaincore/internal/log"
	"github.com/parthenon-labs/chaincore/pkg/types"
)

// evictOneLocked removes the lowest-feeRate entry, breaking ties by oldest
// arrival (spec.md §4.11 "Eviction"). Must be called with p.mu held. No-op
// on an empty pool.
func (p *Pool) evictOneLocked() {
	victim, ok := p.lowestFeeRateLocked()
	if !ok {
		return
	}
	log.Mempool.Debug().Str("tx", victim.String()).Msg("evicting lowest fee-rate entry")
	p.removeLocked(victim)
}

// lowestFeeRateLocked finds the lowest-feeRate entry, breaking ties by
// earliest position in p.arrival (the oldest admitted transaction). Must be
// called with p.mu held.
func (p *Pool) lowestFeeRateLocked() (types.Hash, bool) {
	if len(p.entries) == 0 {
		return types.Hash{}, false
	}

	var victim types.Hash
	var victimRate uint64
	found := false

	for _, h := range p.arrival {
		e, ok := p.entries[h]
		if !ok {
			continue
		}
		if !found || e.FeeRate < victimRate {
			victim = h
			victimRate = e.FeeRate
			found = true
		}
	}
	return victim, found
}

// approximateSizeLocked sums every pooled entry's encoded size. Must be
// called with p.mu held.
func (p *Pool) approximateSizeLocked() int {
	total := 0
	for _, e := range p.entries {
		total += e.Size
	}
	return total
}

// evictExpiredLocked removes every entry older than p.maxAge, then, if the
// pool's approximate total size still exceeds p.targetBytes, repeatedly
// evicts the lowest fee-rate entry until under budget (spec.md §4.11
// "Expiry" and the byte-budget half of "Eviction"). Must be called with
// p.mu held.
func (p *Pool) evictExpiredLocked() {
	cutoff := newArrivalStamp().Add(-p.maxAge)
	var expired []types.Hash
	for h, e := range p.entries {
		if e.Arrival.Before(cutoff) {
			expired = append(expired, h)
		}
	}
	for _, h := range expired {
		log.Mempool.Debug().Str("tx", h.String()).Msg("evicting expired entry")
		p.removeLocked(h)
	}

	if p.targetBytes <= 0 {
		return
	}
	for p.approximateSizeLocked() > p.targetBytes {
		victim, ok := p.lowestFeeRateLocked()
		if !ok {
			return
		}
		log.Mempool.Debug().Str("tx", victim.String()).Msg("evicting over byte budget")
		p.removeLocked(victim)
	}
}
