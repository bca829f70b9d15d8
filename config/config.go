// Package config handles ambient node configuration: data directory layout,
// network selection, and logging. Consensus-critical values live in
// params.Params instead (see NetworkParams in genesis.go) — that split keeps
// this package free of anything that could cause two nodes to disagree about
// the chain (spec.md §1 places P2P transport, RPC, wallet, CLI parsing, and
// config-file reading out of the core's scope; this package carries only the
// slice of ambient plumbing the core's constructors need as inputs).
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Config holds node-specific runtime configuration. These settings can vary
// between nodes without breaking consensus.
type Config struct {
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// CacheEntries bounds the chainstate lookaside cache (internal/chainstate).
	CacheEntries int `conf:"cache.entries"`

	// StorageBackend selects the chainstate's backing store: "badger" (a
	// key-value engine) or "flatfile" (spec.md §9's other named backend).
	// Either satisfies internal/storage.DB identically as far as the core is
	// concerned (spec.md §9's "capability set... two concrete backends... satisfy it").
	StorageBackend string `conf:"storage.backend"`

	Log LogConfig
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.chaincore
//	macOS:   ~/Library/Application Support/Chaincore
//	Windows: %APPDATA%\Chaincore
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chaincore"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Chaincore")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Chaincore")
		}
		return filepath.Join(home, "AppData", "Roaming", "Chaincore")
	default:
		return filepath.Join(home, ".chaincore")
	}
}

// ChainDataDir returns the network-specific data directory.
func (c *Config) ChainDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// BlocksDir returns the block store directory (internal/blockstore).
func (c *Config) BlocksDir() string {
	return filepath.Join(c.ChainDataDir(), "blocks")
}

// UTXODir returns the chainstate database directory (internal/chainstate).
func (c *Config) UTXODir() string {
	return filepath.Join(c.ChainDataDir(), "utxo")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}
