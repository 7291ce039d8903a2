package config

import "testing"

func TestGenesis_Validate_MainnetValid(t *testing.T) {
	g := MainnetGenesis()
	if err := g.Validate(); err != nil {
		t.Errorf("mainnet genesis should be valid: %v", err)
	}
}

func TestGenesis_Validate_TestnetValid(t *testing.T) {
	g := TestnetGenesis()
	if err := g.Validate(); err != nil {
		t.Errorf("testnet genesis should be valid: %v", err)
	}
}

func TestGenesis_Validate_RequiresChainID(t *testing.T) {
	g := MainnetGenesis()
	g.ChainID = ""
	if err := g.Validate(); err == nil {
		t.Error("genesis without chain_id should fail validation")
	}
}

func TestGenesis_Validate_RequiresTimestamp(t *testing.T) {
	g := MainnetGenesis()
	g.Timestamp = 0
	if err := g.Validate(); err == nil {
		t.Error("genesis without timestamp should fail validation")
	}
}

func TestGenesis_Validate_RejectsMalformedAllocAddress(t *testing.T) {
	g := MainnetGenesis()
	g.Alloc = map[string]uint64{"not-hex": 1000}
	if err := g.Validate(); err == nil {
		t.Error("genesis with non-hex alloc address should fail validation")
	}
}

func TestGenesis_Validate_RejectsWrongLengthAllocAddress(t *testing.T) {
	g := MainnetGenesis()
	g.Alloc = map[string]uint64{"aabbcc": 1000}
	if err := g.Validate(); err == nil {
		t.Error("genesis with short alloc address should fail validation")
	}
}

func TestGenesisFor_SelectsByNetwork(t *testing.T) {
	if GenesisFor(Mainnet).ChainID != MainnetGenesis().ChainID {
		t.Error("GenesisFor(Mainnet) should match MainnetGenesis()")
	}
	if GenesisFor(Testnet).ChainID != TestnetGenesis().ChainID {
		t.Error("GenesisFor(Testnet) should match TestnetGenesis()")
	}
}

func TestGenesis_SaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/genesis.json"

	g := TestnetGenesis()
	addr := make([]byte, 0, 2208*2)
	for i := 0; i < 2208; i++ {
		addr = append(addr, []byte("aa")...)
	}
	g.Alloc = map[string]uint64{string(addr): 500_000}

	if err := g.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := LoadGenesis(path)
	if err != nil {
		t.Fatalf("LoadGenesis() error: %v", err)
	}
	if loaded.ChainID != g.ChainID {
		t.Errorf("ChainID = %q, want %q", loaded.ChainID, g.ChainID)
	}
	if loaded.Alloc[string(addr)] != 500_000 {
		t.Error("alloc balance did not round-trip")
	}
}

func TestGenesis_HashIsDeterministic(t *testing.T) {
	g := MainnetGenesis()
	h1, err := g.Hash()
	if err != nil {
		t.Fatalf("Hash() error: %v", err)
	}
	h2, _ := g.Hash()
	if h1 != h2 {
		t.Error("Hash() should be deterministic for the same genesis")
	}
}
