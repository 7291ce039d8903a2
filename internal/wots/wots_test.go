package wots

import "testing"

func TestVerifyAcceptsGenuineSignature(t *testing.T) {
	kp := genTestKeyPair(1)
	var digest Digest
	digest[0] = 0xAB
	digest[31] = 0xCD

	sig := signTest(kp, digest)
	if !Verify(sig, digest, kp.salts, kp.pub) {
		t.Fatal("Verify should accept a genuine signature over its digest")
	}
}

func TestVerifyRejectsWrongDigest(t *testing.T) {
	kp := genTestKeyPair(1)
	var digest, other Digest
	digest[0] = 1
	other[0] = 2

	sig := signTest(kp, digest)
	if Verify(sig, other, kp.salts, kp.pub) {
		t.Fatal("Verify should reject a signature checked against a different digest")
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	kp := genTestKeyPair(1)
	var digest Digest
	digest[0] = 7

	sig := signTest(kp, digest)
	sig[0] ^= 0xFF // flip a bit in the first chain element

	if Verify(sig, digest, kp.salts, kp.pub) {
		t.Fatal("Verify should reject a tampered signature")
	}
}

func TestVerifyRejectsWrongPublicKey(t *testing.T) {
	kpA := genTestKeyPair(1)
	kpB := genTestKeyPair(2)
	var digest Digest
	digest[0] = 3

	sig := signTest(kpA, digest)
	if Verify(sig, digest, kpA.salts, kpB.pub) {
		t.Fatal("Verify should reject when checked against a different address's public key")
	}
}

func TestChecksumDetectsDigitIncrease(t *testing.T) {
	// If an attacker could increase one message nibble while leaving
	// the signature unchanged, the checksum chain would need *more*
	// forward steps than the verifier performs, so the final chain
	// value would stop short of the stored public key. This checks that
	// raising a message nibble changes the checksum digits (here the
	// checksum sum falls from 960 to 945).
	var lo, hi Digest
	lo[0] = 0x00
	hi[0] = 0xF0 // raises the first nibble from 0 to 15

	loChk := checksum(nibbles(lo))
	hiChk := checksum(nibbles(hi))
	if hiChk == loChk {
		t.Fatal("increasing a message nibble should change the checksum")
	}
}
