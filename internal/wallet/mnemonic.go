// Package wallet implements a minimal keystore for WOTS key material:
// mnemonic/seed handling, encrypted at-rest storage, and per-index
// address bookkeeping. It is a CLI stand-in, not a production wallet:
// there is no coin selection (the ledger has no UTXOs to select from)
// and no hierarchical key derivation (WOTS chain seeds don't support
// BIP-32-style child derivation), so each address is generated
// independently from the wallet seed and a flat index.
package wallet

import (
	"fmt"

	"github.com/tyler-smith/go-bip39"
)

// MnemonicEntropyBits is the entropy size for 24-word mnemonics.
const MnemonicEntropyBits = 256

// GenerateMnemonic creates a new 24-word BIP-39 mnemonic.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(MnemonicEntropyBits)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// ValidateMnemonic checks if a mnemonic is valid per BIP-39
// (correct word count, valid words, valid checksum).
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(mnemonic)
}
