// Package mempool implements the fee-rate-ordered admission buffer (spec
// component C12): pending transactions waiting for block inclusion, with
// replace-by-fee, capacity/age eviction, and a deterministic snapshot for
// block templates.
//
// Grounded on original_source/layer2-services/mempool/mempool.cpp's Mempool
// (Accept/MaybeReplace/EvictOne/EvictExpired/Snapshot/EstimateFeeRate), which
// matches spec.md §4.11 far more closely than this package's prior
// incarnation (no RBF, no sorted snapshot, no expiry). Expressed in the
// teacher's Go idiom: sync.Mutex, sentinel error vars, setter-style
// configuration (internal/mempool/policy.go, pre-rewrite).
package mempool

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/parthenon-labs/chaincore/internal/validation"
	"github.com/parthenon-labs/chaincore/params"
	"github.com/parthenon-labs/chaincore/pkg/tx"
	"github.com/parthenon-labs/chaincore/pkg/types"
)

// DefaultMaxAge is how long an entry may sit in the pool before
// evictExpiredLocked removes it (spec.md §4.11 "Expiry").
const DefaultMaxAge = 72 * time.Hour

// Mempool errors.
var (
	ErrAlreadyExists  = errors.New("mempool: transaction already present")
	ErrPolicyRejected = errors.New("mempool: rejected by fee policy")
	ErrValidation     = errors.New("mempool: consensus validation failed")
	ErrNotReplaceable = errors.New("mempool: conflicting entry is not replaceable or not cheaper")
)

// Entry wraps one pooled transaction with the bookkeeping the admission and
// eviction rules need. Mirrors mempool.h's MempoolEntry.
type Entry struct {
	Tx          *tx.Transaction
	Hash        types.Hash
	Fee         uint64
	Size        int
	FeeRate     uint64 // fee * 1000 / size, per spec.md §4.11 step 1.
	Arrival     time.Time
	Replaceable bool
}

// consensusContext, when attached, runs single-transaction consensus
// validation against a specific chain tip before a transaction is accepted
// (spec.md §4.11 step 4).
type consensusContext struct {
	params *params.Params
	height uint64
	lookup validation.UTXOLookup
}

// Pool holds unconfirmed transactions, fee-rate ordered and bounded by both
// entry count and an approximate byte budget.
type Pool struct {
	mu      sync.Mutex
	entries map[types.Hash]*Entry
	spent   map[types.Outpoint]types.Hash
	arrival []types.Hash // oldest first; arrival-order tiebreak for eviction.

	maxEntries  int
	targetBytes int
	maxAge      time.Duration

	consensus *consensusContext
	onAccept  func(*tx.Transaction)
}

// New constructs an empty Pool bounded by maxEntries and targetBytes (the
// approximate total-size budget evictExpiredLocked enforces; a non-positive
// targetBytes disables that budget). A non-positive maxAge
// falls back to DefaultMaxAge.
func New(maxEntries, targetBytes int, maxAge time.Duration) *Pool {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Pool{
		entries:     make(map[types.Hash]*Entry),
		spent:       make(map[types.Outpoint]types.Hash),
		maxEntries:  maxEntries,
		targetBytes: targetBytes,
		maxAge:      maxAge,
	}
}

// SetConsensusContext attaches a validation context: every subsequent Accept
// call runs ValidateTransaction against it, at height, before admission
// (spec.md §4.11 step 4). height is the height a newly accepted transaction
// would be mined at next, the height coinbase-maturity checks are judged
// against. Passing a nil lookup detaches the context.
func (p *Pool) SetConsensusContext(prm *params.Params, height uint64, lookup validation.UTXOLookup) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if lookup == nil {
		p.consensus = nil
		return
	}
	p.consensus = &consensusContext{params: prm, height: height, lookup: lookup}
}

// SetOnAccept registers a callback invoked with every newly accepted
// transaction, outside the pool's mutex (spec.md §4.11 step 9).
func (p *Pool) SetOnAccept(fn func(*tx.Transaction)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onAccept = fn
}

// feeRate computes fee*1000/size, floored at size 1 to avoid division by
// zero (spec.md §4.11 step 1).
func feeRate(fee uint64, size int) uint64 {
	if size < 1 {
		size = 1
	}
	return fee * 1000 / uint64(size)
}

// isReplaceable reports whether t signals opt-in replacement: at least one
// input's sequence is below the final-sequence threshold (spec.md §4.11
// step 5).
func isReplaceable(t *tx.Transaction) bool {
	for _, in := range t.Inputs {
		if in.Sequence < 0xFFFFFFFE {
			return true
		}
	}
	return false
}

// Accept admits transaction t paying fee into the pool, per spec.md §4.11's
// Admission algorithm. On success it returns the entry's computed fee rate.
func (p *Pool) Accept(t *tx.Transaction, fee uint64) (uint64, error) {
	size := len(t.Encode())
	rate := feeRate(fee, size)
	txHash := t.Hash()

	p.mu.Lock()
	p.evictExpiredLocked()

	if _, exists := p.entries[txHash]; exists {
		p.mu.Unlock()
		return 0, ErrAlreadyExists
	}

	if err := checkPolicy(t, size); err != nil {
		p.mu.Unlock()
		return 0, fmt.Errorf("%w: %v", ErrPolicyRejected, err)
	}

	if p.consensus != nil {
		if _, err := validation.ValidateTransaction(t, p.consensus.params, p.consensus.height, p.consensus.lookup); err != nil {
			p.mu.Unlock()
			return 0, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}

	replaceable := isReplaceable(t)

	conflicts := make(map[types.Hash]bool)
	for _, in := range t.Inputs {
		if in.PrevOut.IsNull() {
			continue
		}
		if conflictHash, ok := p.spent[in.PrevOut]; ok {
			conflicts[conflictHash] = true
		}
	}

	if len(conflicts) > 0 {
		if err := p.checkReplacementLocked(conflicts, rate); err != nil {
			p.mu.Unlock()
			return 0, err
		}
		for h := range conflicts {
			p.removeLocked(h)
		}
	}

	if len(p.entries) >= p.maxEntries {
		p.evictOneLocked()
	}

	entry := &Entry{
		Tx:          t,
		Hash:        txHash,
		Fee:         fee,
		Size:        size,
		FeeRate:     rate,
		Arrival:     newArrivalStamp(),
		Replaceable: replaceable,
	}
	p.entries[txHash] = entry
	p.arrival = append(p.arrival, txHash)
	for _, in := range t.Inputs {
		if !in.PrevOut.IsNull() {
			p.spent[in.PrevOut] = txHash
		}
	}

	onAccept := p.onAccept
	p.mu.Unlock()

	if onAccept != nil {
		onAccept(t)
	}
	return rate, nil
}

// checkReplacementLocked enforces spec.md §4.11 step 6: every conflicting
// entry must be replaceable and strictly cheaper than newRate. Must be
// called with p.mu held.
func (p *Pool) checkReplacementLocked(conflicts map[types.Hash]bool, newRate uint64) error {
	for h := range conflicts {
		e, ok := p.entries[h]
		if !ok {
			continue
		}
		if !e.Replaceable || e.FeeRate >= newRate {
			return fmt.Errorf("%w: conflict %s pays feeRate %d (replaceable=%v), candidate pays %d",
				ErrNotReplaceable, h, e.FeeRate, e.Replaceable, newRate)
		}
	}
	return nil
}

// Exists reports whether hash is currently pooled.
func (p *Pool) Exists(hash types.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.entries[hash]
	return ok
}

// Get returns the pooled entry for hash, or nil if absent.
func (p *Pool) Get(hash types.Hash) *Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entries[hash]
}

// Count returns the number of pooled transactions.
func (p *Pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Remove deletes hash from every index, if present.
func (p *Pool) Remove(hash types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(hash)
}

// removeLocked deletes hash from entries, spent, and arrival. Must be called
// with p.mu held.
func (p *Pool) removeLocked(hash types.Hash) {
	e, ok := p.entries[hash]
	if !ok {
		return
	}
	for _, in := range e.Tx.Inputs {
		if !in.PrevOut.IsNull() {
			if p.spent[in.PrevOut] == hash {
				delete(p.spent, in.PrevOut)
			}
		}
	}
	delete(p.entries, hash)
	for i, h := range p.arrival {
		if h == hash {
			p.arrival = append(p.arrival[:i], p.arrival[i+1:]...)
			break
		}
	}
}

// RemoveForBlock removes every transaction in txs from all indices. After
// return no remaining entry spends an outpoint any tx in txs consumed
// (spec.md §4.11's removeForBlock invariant).
func (p *Pool) RemoveForBlock(txs []*tx.Transaction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range txs {
		p.removeLocked(t.Hash())
	}
}

// Snapshot returns a copy of every pooled transaction sorted by hash —
// stable and independent of insertion order, for deterministic block
// templates (spec.md §4.11 "Snapshot").
func (p *Pool) Snapshot() []*tx.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()

	hashes := make([]types.Hash, 0, len(p.entries))
	for h := range p.entries {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i].Less(hashes[j]) })

	out := make([]*tx.Transaction, len(hashes))
	for i, h := range hashes {
		out[i] = p.entries[h].Tx
	}
	return out
}

// EstimateFeeRate returns the feeRate at the given percentile (0-99) of the
// pool's current fee rates, clamped to [0, 99]. An empty pool returns 0 —
// callers fall back to their own minimum policy fee rate (spec.md §4.11's
// EstimateFeeRate, adapted: this core carries no standing minFeeRate policy
// knob of its own, so there is no floor to fall back to beyond zero).
func (p *Pool) EstimateFeeRate(percentile int) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.entries) == 0 {
		return 0
	}
	if percentile < 0 {
		percentile = 0
	}
	if percentile > 99 {
		percentile = 99
	}

	rates := make([]uint64, 0, len(p.entries))
	for _, e := range p.entries {
		rates = append(rates, e.FeeRate)
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i] < rates[j] })

	idx := len(rates) * percentile / 100
	if idx >= len(rates) {
		idx = len(rates) - 1
	}
	return rates[idx]
}

// newArrivalStamp is a var so tests can stub arrival ordering without racing
// real wall-clock ties.
var newArrivalStamp = time.Now
