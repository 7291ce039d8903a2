// Package identity provides the peer-handshake identity signature: a
// secp256k1/Schnorr keypair each node uses to prove, at connection
// time, that it is the same peer a remote node saw advertise a given
// tip before. This is purely a networking-layer concern — it has
// nothing to do with WOTS, which authorizes ledger transactions, or
// with the block hash chain, which is SHA-256 throughout.
package identity

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
)

// PrivateKey wraps a secp256k1 private key used only for handshake
// signing.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// Generate creates a new random handshake identity key.
func Generate() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("identity: generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// FromBytes reconstructs a handshake identity key from its 32-byte
// scalar, e.g. one persisted across restarts so a node's identity is
// stable.
func FromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("identity: private key must be 32 bytes, got %d", len(b))
	}
	return &PrivateKey{key: secp256k1.PrivKeyFromBytes(b)}, nil
}

// Sign produces a Schnorr signature over a 32-byte challenge hash.
func (pk *PrivateKey) Sign(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("identity: hash must be 32 bytes, got %d", len(hash))
	}
	sig, err := schnorr.Sign(pk.key, hash)
	if err != nil {
		return nil, fmt.Errorf("identity: schnorr sign: %w", err)
	}
	return sig.Serialize(), nil
}

// PublicKey returns the compressed 33-byte public key peers identify
// this node by.
func (pk *PrivateKey) PublicKey() []byte {
	return pk.key.PubKey().SerializeCompressed()
}

// Bytes returns the 32-byte private scalar, for persistence.
func (pk *PrivateKey) Bytes() []byte {
	return pk.key.Serialize()
}

// Zero wipes the private key from memory once it is no longer needed.
func (pk *PrivateKey) Zero() {
	pk.key.Zero()
}

// Verify checks a Schnorr signature against a 32-byte challenge hash
// and a compressed public key. Returns false on any malformed input
// rather than an error, since a failed handshake is simply a failed
// handshake, not a fault.
func Verify(hash, signature, publicKey []byte) bool {
	pubKey, err := secp256k1.ParsePubKey(publicKey)
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(signature)
	if err != nil {
		return false
	}
	return sig.Verify(hash, pubKey)
}
