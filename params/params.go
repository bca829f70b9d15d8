// Package params defines the consensus parameter object every core
// component (C2, C7, C8, C9, C11) consumes as an explicit input, per
// spec.md §6 and §9's "the core holds no process-wide state and takes the
// config as an input struct."
package params

import "github.com/parthenon-labs/chaincore/pkg/types"

// Params holds every consensus-critical tunable named in spec.md §6, plus
// the fork-resolver margin/finalization constants from §4.10 and the
// transaction/block size and dust limits §4.7/§8 reference as "configuration,
// not core contract" (spec.md §9's closing design note).
type Params struct {
	// SubsidyHalvingInterval is the number of blocks between successive
	// halvings of the coinbase subsidy.
	SubsidyHalvingInterval uint64

	// PowTargetSpacing is the intended seconds between blocks.
	PowTargetSpacing int64
	// PowTargetTimespan is T in the retarget formula (spec.md §4.6).
	PowTargetTimespan int64
	// PowLimit is the easiest allowed compact target (genesis difficulty
	// ceiling); a target may never exceed it.
	PowLimit uint32

	// MaxMoneyOut is the maximum representable value of any single asset,
	// used for money-range overflow checks (spec.md §4.7).
	MaxMoneyOut uint64
	// BaseSubsidy is the coinbase reward at height 0, before halving.
	BaseSubsidy uint64
	// DustFloor is the minimum allowed output value (spec.md glossary).
	DustFloor uint64

	// AllowMinDifficultyBlocks enables the minimum-difficulty recovery rule
	// (spec.md §4.6) for test networks.
	AllowMinDifficultyBlocks bool

	// GenesisTime, GenesisBits, GenesisNonce parameterize the genesis
	// header.
	GenesisTime  uint32
	GenesisBits  uint32
	GenesisNonce uint32

	// Checkpoints maps a height to the required block hash at that height
	// (spec.md §4.10 step 3).
	Checkpoints map[uint64]types.Hash

	// RuleChangeActivationThreshold and MinerConfirmationWindow parameterize
	// soft-fork style signaling; the core core only needs to carry them
	// through as named configuration (spec.md §6 lists both; no component
	// in §4 consumes them directly, so they are accepted and stored for a
	// future rule-activation component to read).
	RuleChangeActivationThreshold uint32
	MinerConfirmationWindow       uint32

	// FinalizationDepth and ReorgMarginBps gate deep reorgs (spec.md §4.10
	// step 5).
	FinalizationDepth uint64
	ReorgMarginBps    uint64

	// MaxFutureDrift bounds how far a header's timestamp may exceed "now"
	// (spec.md §4.8).
	MaxFutureDrift int64

	// MaxTxSize bounds a single transaction's canonical size (spec.md §4.7
	// step 4). MaxScriptSize is carried as configuration but no validator
	// reads it: pkg/tx's ValidateStructure fixes every non-coinbase scriptSig
	// at tx.ScriptSigSize bytes, which is the value both networks set here.
	MaxTxSize     int
	MaxScriptSize int
	// MaxBlockWeight bounds the running weight (size*4) of a block's
	// non-coinbase transactions (spec.md §4.7 step 4).
	MaxBlockWeight int64

	// CoinbaseScriptSigMin/Max bound the coinbase's scriptSig length
	// (spec.md §4.7 step 2: "in [2, 100]").
	CoinbaseScriptSigMin int
	CoinbaseScriptSigMax int

	// PowAsset is the asset ID that coinbase outputs must carry when the
	// PoW-asset rule is active (spec.md §4.7 step 2).
	PowAsset uint8

	// CoinbaseMaturity is the number of confirmations a coinbase output
	// must accumulate before the transaction-set validator (C8) will allow
	// it to be spent: a spend at height h of a coinbase created at height
	// ch is rejected unless h - ch >= CoinbaseMaturity.
	CoinbaseMaturity uint64
}

// Subsidy returns the block reward for the given height and asset under
// halving params.SubsidyHalvingInterval, starting from BaseSubsidy. Assets
// other than the PoW asset earn no block subsidy (spec.md §4.7 step 5 only
// constrains the coinbase's total for the PoW asset; this is a single-asset
// PoW chain, so only PowAsset carries a halving-based subsidy).
func (p *Params) Subsidy(height uint64, asset uint8) uint64 {
	if asset != p.PowAsset {
		return 0
	}
	if p.SubsidyHalvingInterval == 0 {
		return p.BaseSubsidy
	}
	halvings := height / p.SubsidyHalvingInterval
	if halvings >= 64 {
		return 0
	}
	return p.BaseSubsidy >> halvings
}
