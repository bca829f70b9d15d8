package config

import "testing"

func TestNetworkParams_MainnetAndTestnetDiffer(t *testing.T) {
	main := NetworkParams(Mainnet)
	test := NetworkParams(Testnet)
	if main.GenesisBits == test.GenesisBits {
		t.Error("mainnet and testnet should use different genesis difficulty")
	}
	if main.AllowMinDifficultyBlocks == test.AllowMinDifficultyBlocks {
		t.Error("only testnet should allow minimum-difficulty blocks")
	}
}

func TestNetworkParams_ReturnsCopy(t *testing.T) {
	a := NetworkParams(Mainnet)
	a.Checkpoints[1] = [32]byte{0xff}
	b := NetworkParams(Mainnet)
	if len(b.Checkpoints) != 0 {
		t.Error("mutating one returned Params must not affect the next call")
	}
}

func TestCreateGenesisBlock_Structure(t *testing.T) {
	p := NetworkParams(Mainnet)
	g := CreateGenesisBlock(p, "genesis")

	if len(g.Transactions) != 1 {
		t.Fatalf("genesis block should have exactly one transaction, got %d", len(g.Transactions))
	}
	if !g.Transactions[0].IsCoinbase() {
		t.Error("genesis transaction must be a coinbase")
	}
	if err := g.ValidateStructure(); err != nil {
		t.Errorf("genesis block should pass structural validation: %v", err)
	}
	if g.Header.PrevBlockHash != ([32]byte{}) {
		t.Error("genesis header must have a zero prevBlockHash")
	}
}

func TestCreateGenesisBlock_Deterministic(t *testing.T) {
	p := NetworkParams(Mainnet)
	a := CreateGenesisBlock(p, "genesis")
	b := CreateGenesisBlock(p, "genesis")
	if a.Hash() != b.Hash() {
		t.Error("CreateGenesisBlock should be deterministic for identical params and message")
	}
}

func TestGenesisScriptSig_TruncatesToMax(t *testing.T) {
	s := genesisScriptSig("this message is much longer than the cap", 10)
	if len(s) != 10 {
		t.Errorf("len = %d, want 10", len(s))
	}
}
