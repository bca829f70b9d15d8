// Chaincore node process: wires the consensus core's components together
// and drives the block-connection pipeline end to end.
//
// Usage:
//
//	chaincored            Run node on mainnet
//	CHAINCORE_NETWORK=testnet chaincored   Run node on testnet
//
// The peer-to-peer transport, RPC surface, wallet, miner host loop, and
// config-file reader are out of scope for this core (spec.md §1) — this
// binary only exercises the interfaces the core presents to them: open
// storage, rebuild state from the block log, and apply blocks fed to it
// through connectAt.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/parthenon-labs/chaincore/config"
	"github.com/parthenon-labs/chaincore/internal/blockstore"
	"github.com/parthenon-labs/chaincore/internal/chainstate"
	"github.com/parthenon-labs/chaincore/internal/connector"
	"github.com/parthenon-labs/chaincore/internal/forkresolver"
	klog "github.com/parthenon-labs/chaincore/internal/log"
	"github.com/parthenon-labs/chaincore/internal/mempool"
	"github.com/parthenon-labs/chaincore/internal/storage"
	"github.com/parthenon-labs/chaincore/params"
	"github.com/parthenon-labs/chaincore/pkg/block"
	"github.com/parthenon-labs/chaincore/pkg/types"
)

func main() {
	// ── 1. Resolve network and config ────────────────────────────────
	network := config.Mainnet
	if os.Getenv("CHAINCORE_NETWORK") == string(config.Testnet) {
		network = config.Testnet
	}
	cfg := config.Default(network)
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid config: %v\n", err)
		os.Exit(1)
	}

	// ── 2. Init logger ────────────────────────────────────────────────
	if err := os.MkdirAll(cfg.LogsDir(), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logs dir: %v\n", err)
		os.Exit(1)
	}
	logFile := cfg.LogsDir() + "/chaincore.log"
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	logger := klog.WithComponent("node")

	p := config.NetworkParams(network)
	logger.Info().
		Str("network", string(network)).
		Uint32("genesis_bits", p.GenesisBits).
		Msg("Starting chaincore node")

	// ── 3. Open storage ───────────────────────────────────────────────
	if err := os.MkdirAll(cfg.UTXODir(), 0755); err != nil {
		logger.Fatal().Err(err).Str("path", cfg.UTXODir()).Msg("Failed to create UTXO dir")
	}
	db, err := openChainstateDB(cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.UTXODir()).Str("backend", cfg.StorageBackend).Msg("Failed to open chainstate database")
	}
	defer db.Close()

	if err := os.MkdirAll(cfg.BlocksDir(), 0755); err != nil {
		logger.Fatal().Err(err).Str("path", cfg.BlocksDir()).Msg("Failed to create blocks dir")
	}
	blocks, err := blockstore.Open(cfg.BlocksDir() + "/blocks.dat")
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open block store")
	}
	defer blocks.Close()

	node := &Node{
		cs:       chainstate.New(db, cfg.CacheEntries),
		resolver: forkresolver.New(),
		blocks:   blocks,
		pool:     mempool.New(5000, 50_000_000, 0),
		params:   p,
		logger:   logger,
	}

	// ── 4. Genesis or replay ──────────────────────────────────────────
	if height, ok := blocks.Height(); ok {
		logger.Info().Uint64("height", height).Msg("Replaying block log to rebuild state")
		if err := node.Replay(height); err != nil {
			logger.Fatal().Err(err).Msg("Failed to replay block log")
		}
	} else {
		genesis := config.CreateGenesisBlock(p, "chaincore genesis")
		logger.Info().Str("hash", genesis.Hash().String()).Msg("Initializing from genesis")
		if err := node.connectAt(genesis, 0, 0); err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect genesis block")
		}
	}

	tip := node.resolver.Tip()
	logger.Info().
		Uint64("height", tip.Height).
		Str("tip", tip.Hash.String()).
		Msg("Node ready")

	// ── 5. Wait for shutdown ──────────────────────────────────────────
	// With the P2P transport and RPC surface out of scope (spec.md §1), this
	// process has no external feed of new blocks; it idles here so the
	// components above stay wired and queryable until told to stop.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

	if err := blocks.Flush(); err != nil {
		logger.Warn().Err(err).Msg("Failed to flush block index on shutdown")
	}
	logger.Info().Msg("Goodbye!")
}

// openChainstateDB opens the backend named by cfg.StorageBackend: "badger"
// (the default key-value engine) or "flatfile" (internal/storage.FlatFileDB,
// spec.md §9's other named backend). Either satisfies internal/storage.DB
// identically as far as internal/chainstate is concerned.
func openChainstateDB(cfg *config.Config) (storage.DB, error) {
	switch cfg.StorageBackend {
	case "flatfile":
		return storage.NewFlatFile(filepath.Join(cfg.UTXODir(), "chainstate.dat"))
	default:
		return storage.NewBadger(cfg.UTXODir())
	}
}

// Node bundles the consensus core's components, already wired together, for
// a single running chain.
type Node struct {
	cs       *chainstate.Chainstate
	resolver *forkresolver.Resolver
	blocks   *blockstore.Store
	pool     *mempool.Pool
	params   *params.Params
	logger   zerolog.Logger
}

// medianTimePast returns the median Time field over the last 11 headers
// ending at height (or fewer, near genesis), per spec.md §4.8.
func (n *Node) medianTimePast(height uint64) (uint32, error) {
	const window = 11
	var times []uint32
	start := int64(height) - window + 1
	if start < 0 {
		start = 0
	}
	for h := uint64(start); h <= height; h++ {
		blk, err := n.blocks.ReadBlock(h)
		if err != nil {
			return 0, err
		}
		times = append(times, blk.Header.Time)
	}
	sortUint32(times)
	return times[len(times)/2], nil
}

func sortUint32(s []uint32) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Replay re-derives Chainstate and the fork resolver's index by walking the
// block log from genesis to height, connecting each block in turn. This is
// the core's resume-on-restart path: neither Chainstate nor Resolver persist
// their own tip pointer, so a restart rebuilds both from the authoritative
// block log instead (internal/blockstore's ErrCorrupt doc calls this "the
// reload path").
func (n *Node) Replay(height uint64) error {
	for h := uint64(0); h <= height; h++ {
		blk, err := n.blocks.ReadBlock(h)
		if err != nil {
			return fmt.Errorf("replay height %d: %w", h, err)
		}
		if h == 0 {
			if err := n.connectAt(blk, 0, 0); err != nil {
				return fmt.Errorf("replay genesis: %w", err)
			}
			continue
		}
		mtp, err := n.medianTimePast(h - 1)
		if err != nil {
			return fmt.Errorf("replay height %d: median time past: %w", h, err)
		}
		if err := n.connectAt(blk, h, mtp); err != nil {
			return fmt.Errorf("replay height %d: %w", h, err)
		}
	}
	return nil
}

// connectAt runs the full C9→C8→C10→C11 pipeline for blk at height and, on
// success, appends it to the block log and evicts its transactions from the
// mempool. Height 0 (genesis) bypasses validation.ValidateHeader and
// validation.ValidateTransactionSet — spec.md names no parent for genesis to
// check PoW-retarget or median-time-past continuity against, and
// ValidateHeader rejects medianTimePast == 0 outright (internal/validation's
// doc comment: "an unset MTP can never slip through as 0") — so genesis is
// applied directly instead of routed through connector.Connect.
func (n *Node) connectAt(blk *block.Block, height uint64, medianTimePast uint32) error {
	if err := blk.ValidateStructure(); err != nil {
		return fmt.Errorf("structure: %w", err)
	}

	if height == 0 {
		if err := n.applyGenesis(blk); err != nil {
			return fmt.Errorf("genesis apply: %w", err)
		}
	} else {
		now := uint32(time.Now().Unix())
		if _, err := connector.Connect(blk, n.cs, n.params, height, medianTimePast, now, nil); err != nil {
			return err
		}
	}

	hash := blk.Hash()
	if _, err := n.resolver.ConsiderHeader(blk.Header, hash, blk.Header.PrevBlockHash, height, n.params); err != nil {
		return fmt.Errorf("fork resolver: %w", err)
	}

	if err := n.blocks.WriteBlock(height, blk); err != nil {
		return fmt.Errorf("block store: %w", err)
	}

	n.pool.RemoveForBlock(blk.Transactions)
	return nil
}

// applyGenesis stages the genesis block's single coinbase output into the
// chainstate directly, mirroring internal/connector's apply loop minus the
// input-spend half genesis has none of (its only input is the null
// outpoint).
func (n *Node) applyGenesis(blk *block.Block) error {
	n.cs.Begin()
	coinbase := blk.Transactions[0]
	txHash := coinbase.Hash()
	for i, out := range coinbase.Outputs {
		op := types.Outpoint{TxID: txHash, Index: uint32(i)}
		if err := n.cs.Add(op, &out, true, 0); err != nil {
			if rbErr := n.cs.Rollback(); rbErr != nil {
				n.logger.Error().Err(rbErr).Msg("rollback failed after genesis add error")
			}
			return err
		}
	}
	return n.cs.Commit()
}
