package config

import (
	"github.com/parthenon-labs/chaincore/params"
	"github.com/parthenon-labs/chaincore/pkg/block"
	"github.com/parthenon-labs/chaincore/pkg/merkle"
	"github.com/parthenon-labs/chaincore/pkg/tx"
	"github.com/parthenon-labs/chaincore/pkg/types"
)

// Denomination constants. 1 coin = 10^8 base units, following the teacher's
// satoshi-style accounting.
const (
	Coin       = 100_000_000
	BaseReward = 50 * Coin
)

// PowAsset is the single asset ID this core issues subsidy in.
const PowAsset uint8 = 0

// Grounded on original_source/layer1-core/consensus/params.cpp's mainParams /
// testParams literals: halving interval, target spacing/timespan, and max
// money carry over unchanged; fields params.cpp has no equivalent for
// (DustFloor, size/weight caps, fork-resolver margins) are new additions this
// core's components need (spec.md §4.7, §4.10, §9).
var mainnetParams = params.Params{
	SubsidyHalvingInterval:        210_000,
	PowTargetSpacing:              60,
	PowTargetTimespan:             3600,
	PowLimit:                      0x1e0fffff,
	MaxMoneyOut:                   42_000_000 * Coin,
	BaseSubsidy:                   BaseReward,
	DustFloor:                     546,
	AllowMinDifficultyBlocks:      false,
	GenesisTime:                   1735689600,
	GenesisBits:                   0x1e0fffff,
	GenesisNonce:                  0,
	Checkpoints:                   map[uint64]types.Hash{},
	RuleChangeActivationThreshold: (2016 * 95) / 100,
	MinerConfirmationWindow:       2016,
	FinalizationDepth:             100,
	ReorgMarginBps:                500,
	MaxFutureDrift:                2 * 60 * 60,
	MaxTxSize:                     100_000,
	MaxScriptSize:                 tx.ScriptSigSize,
	MaxBlockWeight:                4_000_000,
	CoinbaseScriptSigMin:          2,
	CoinbaseScriptSigMax:          100,
	PowAsset:                      PowAsset,
	CoinbaseMaturity:              100,
}

var testnetParams = params.Params{
	SubsidyHalvingInterval:        210_000,
	PowTargetSpacing:              60,
	PowTargetTimespan:             3600,
	PowLimit:                      0x1f00ffff,
	MaxMoneyOut:                   42_000_000 * Coin,
	BaseSubsidy:                   BaseReward,
	DustFloor:                     546,
	AllowMinDifficultyBlocks:      true,
	GenesisTime:                   1735689600,
	GenesisBits:                   0x1f00ffff,
	GenesisNonce:                  0,
	Checkpoints:                   map[uint64]types.Hash{},
	RuleChangeActivationThreshold: (2016 * 95) / 100,
	MinerConfirmationWindow:       2016,
	FinalizationDepth:             10,
	ReorgMarginBps:                0,
	MaxFutureDrift:                2 * 60 * 60,
	MaxTxSize:                     100_000,
	MaxScriptSize:                 tx.ScriptSigSize,
	MaxBlockWeight:                4_000_000,
	CoinbaseScriptSigMin:          2,
	CoinbaseScriptSigMax:          100,
	PowAsset:                      PowAsset,
	CoinbaseMaturity:              100,
}

// NetworkParams returns the consensus parameters for the given network. This
// is the only place a params.Params literal is constructed — every
// consensus-facing component takes one as an explicit argument rather than
// reading global state (spec.md §9).
func NetworkParams(network NetworkType) *params.Params {
	var p params.Params
	switch network {
	case Testnet:
		p = testnetParams
	default:
		p = mainnetParams
	}
	checkpoints := make(map[uint64]types.Hash, len(p.Checkpoints))
	for h, v := range p.Checkpoints {
		checkpoints[h] = v
	}
	p.Checkpoints = checkpoints
	return &p
}

// genesisScriptSig returns an unspendable coinbase scriptSig carrying a
// fixed message, truncated to CoinbaseScriptSigMax (a shorter message is
// returned as is, without padding). Grounded on
// original_source/layer1-core/consensus/genesis.cpp's BuildGenesisScript,
// adapted from an arbitrary-length OP_RETURN script to this core's
// fixed-format scriptSig (spec.md §4.3 has no script interpreter — scriptSig
// is raw bytes consumed by pkg/schnorr for non-coinbase spends only).
func genesisScriptSig(message string, max int) []byte {
	b := []byte(message)
	if len(b) > max {
		b = b[:max]
	}
	return b
}

// CreateGenesisBlock builds the network's genesis block: a single coinbase
// transaction paying BaseReward to an unspendable output, under the header
// fields named in p. Grounded on
// original_source/layer1-core/consensus/genesis.cpp's CreateGenesisBlock.
func CreateGenesisBlock(p *params.Params, message string) *block.Block {
	coinbaseIn := tx.TxIn{
		PrevOut:   types.Outpoint{TxID: types.Hash{}, Index: 0xFFFFFFFF},
		ScriptSig: genesisScriptSig(message, p.CoinbaseScriptSigMax),
		Sequence:  0xFFFFFFFF,
		AssetID:   p.PowAsset,
	}
	coinbaseOut := tx.TxOut{
		Value:        BaseReward,
		ScriptPubKey: make([]byte, tx.PubKeySize), // all-zero: unspendable, no known discrete log
		AssetID:      p.PowAsset,
	}
	coinbase := &tx.Transaction{
		Version:  1,
		Inputs:   []tx.TxIn{coinbaseIn},
		Outputs:  []tx.TxOut{coinbaseOut},
		LockTime: 0,
	}

	header := &block.Header{
		Version:       1,
		PrevBlockHash: types.Hash{},
		Time:          p.GenesisTime,
		Bits:          p.GenesisBits,
		Nonce:         p.GenesisNonce,
	}
	header.MerkleRoot = merkle.ComputeRoot([]*tx.Transaction{coinbase})

	return block.NewBlock(header, []*tx.Transaction{coinbase})
}
