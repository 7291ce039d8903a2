package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/haikuchain/haikunode/internal/ledger"
)

// Genesis holds chain identity and the premine allocation. It is
// immutable after launch — every node must load the same genesis or
// the very first ledger state diverges.
//
// Unlike the teacher's genesis (consensus type, staking, sub-chain and
// token rules), almost every protocol rule this chain has is a fixed
// compile-time constant in internal/validator: the reward schedule,
// MaxBlTx, and the difficulty bounds are defined by the source
// document itself, not configurable per deployment. Genesis is left
// holding only what genuinely differs between a real chain and a test
// chain: chain identity and the initial balances.
type Genesis struct {
	ChainID   string `json:"chain_id"`
	ChainName string `json:"chain_name"`

	// Timestamp is time0 for block 1.
	Timestamp uint64 `json:"timestamp"`
	ExtraData string `json:"extra_data,omitempty"`

	// Alloc maps hex-encoded ledger.AddrLen-byte addresses to their
	// premine balance in base units.
	Alloc map[string]uint64 `json:"alloc"`
}

// MainnetGenesis returns the mainnet genesis configuration.
func MainnetGenesis() *Genesis {
	return &Genesis{
		ChainID:   "haikunode-mainnet-1",
		ChainName: "Haikunode Mainnet",
		Timestamp: 1770734103, // 2026-02-10
		ExtraData: "Haikunode Genesis",
		Alloc:     map[string]uint64{},
	}
}

// TestnetGenesis returns the testnet genesis configuration.
func TestnetGenesis() *Genesis {
	g := MainnetGenesis()
	g.ChainID = "haikunode-testnet-1"
	g.ChainName = "Haikunode Testnet"
	g.ExtraData = "Haikunode Testnet Genesis"
	return g
}

// GenesisFor returns the genesis config for the given network.
func GenesisFor(network NetworkType) *Genesis {
	switch network {
	case Testnet:
		return TestnetGenesis()
	default:
		return MainnetGenesis()
	}
}

// LoadGenesis loads genesis configuration from a file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis file: %w", err)
	}

	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing genesis file: %w", err)
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}

	return &g, nil
}

// Save writes the genesis configuration to a file.
func (g *Genesis) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding genesis: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing genesis file: %w", err)
	}

	return nil
}

// Validate checks that the genesis configuration is well-formed: a
// chain ID is present, and every alloc key decodes to exactly
// ledger.AddrLen bytes (the fixed WOTS address width).
func (g *Genesis) Validate() error {
	if g.ChainID == "" {
		return fmt.Errorf("chain_id is required")
	}
	if g.Timestamp == 0 {
		return fmt.Errorf("timestamp is required")
	}

	for addrHex := range g.Alloc {
		raw, err := hex.DecodeString(addrHex)
		if err != nil {
			return fmt.Errorf("invalid alloc address %q: %w", addrHex, err)
		}
		if len(raw) != ledger.AddrLen {
			return fmt.Errorf("alloc address %q must be %d bytes, got %d", addrHex, ledger.AddrLen, len(raw))
		}
	}

	return nil
}

// Hash returns a SHA-256 hash of the genesis configuration, used to
// detect genesis mismatches between nodes. Hashing matches the rest
// of this chain's hash chain (block hashing, ledger entries), which
// is SHA-256 throughout rather than the teacher's BLAKE3.
func (g *Genesis) Hash() ([32]byte, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}
