package identity

import (
	"bytes"
	"testing"
)

func TestGenerateProducesUsableKey(t *testing.T) {
	key, err := Generate()
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if len(key.PublicKey()) != 33 {
		t.Fatalf("PublicKey() length = %d, want 33", len(key.PublicKey()))
	}
	if len(key.Bytes()) != 32 {
		t.Fatalf("Bytes() length = %d, want 32", len(key.Bytes()))
	}
}

func TestGenerateIsUnique(t *testing.T) {
	k1, _ := Generate()
	k2, _ := Generate()
	if bytes.Equal(k1.Bytes(), k2.Bytes()) {
		t.Fatal("two generated keys should not be identical")
	}
}

func TestFromBytesRoundTrip(t *testing.T) {
	original, _ := Generate()
	restored, err := FromBytes(original.Bytes())
	if err != nil {
		t.Fatalf("FromBytes() error: %v", err)
	}
	if !bytes.Equal(original.PublicKey(), restored.PublicKey()) {
		t.Fatal("restored key should have the same public key")
	}
}

func TestFromBytesRejectsWrongLength(t *testing.T) {
	if _, err := FromBytes(make([]byte, 10)); err == nil {
		t.Fatal("FromBytes should reject a key that isn't 32 bytes")
	}
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	key, _ := Generate()
	var hash [32]byte
	hash[0] = 0xAB

	sig, err := key.Sign(hash[:])
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if !Verify(hash[:], sig, key.PublicKey()) {
		t.Fatal("Verify should accept a genuine handshake signature")
	}
}

func TestVerifyRejectsWrongHash(t *testing.T) {
	key, _ := Generate()
	var hash, other [32]byte
	hash[0] = 1
	other[0] = 2

	sig, _ := key.Sign(hash[:])
	if Verify(other[:], sig, key.PublicKey()) {
		t.Fatal("Verify should reject a signature checked against a different hash")
	}
}

func TestSignRejectsWrongHashLength(t *testing.T) {
	key, _ := Generate()
	if _, err := key.Sign(make([]byte, 10)); err == nil {
		t.Fatal("Sign should reject a hash that isn't 32 bytes")
	}
}
