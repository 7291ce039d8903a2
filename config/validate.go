package config

import (
	"encoding/hex"
	"fmt"

	"github.com/haikuchain/haikunode/internal/ledger"
)

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.P2P.Port < 0 || cfg.P2P.Port > 65535 {
		return fmt.Errorf("p2p.port must be in range [0, 65535]")
	}
	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}
	if cfg.Mining.Enabled {
		if err := validateMinerAddress(cfg.Mining.MinerAddress); err != nil {
			return fmt.Errorf("mining.address: %w", err)
		}
	}

	return nil
}

func validateMinerAddress(addrHex string) error {
	if addrHex == "" {
		return fmt.Errorf("required when mining is enabled")
	}
	raw, err := hex.DecodeString(addrHex)
	if err != nil {
		return fmt.Errorf("must be hex: %w", err)
	}
	if len(raw) != ledger.AddrLen {
		return fmt.Errorf("must be %d bytes, got %d", ledger.AddrLen, len(raw))
	}
	return nil
}
