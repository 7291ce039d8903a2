package wots

// This file is test-only scaffolding: it lets the test suite build
// valid (signature, digest, publicKey) fixtures without a real
// signing/key-generation surface in the package itself, which has no
// business holding private key material.

type testKeyPair struct {
	seeds [ChainCount][ChunkLen]byte // private chain bottoms
	pub   PublicKey
	salts Salts
}

func genTestKeyPair(seed byte) testKeyPair {
	var kp testKeyPair
	for i := 0; i < ChainCount; i++ {
		kp.seeds[i][0] = seed
		kp.seeds[i][1] = byte(i)
	}
	kp.salts.Salt1[0] = seed + 100
	kp.salts.Salt2[0] = seed + 200

	for i := 0; i < ChainCount; i++ {
		elem := kp.seeds[i]
		for s := 0; s < nibbleMax; s++ {
			elem = chainStep(kp.salts.Salt1, i, elem)
		}
		copy(kp.pub[i*ChunkLen:(i+1)*ChunkLen], elem[:])
	}
	return kp
}

// signTest produces a signature for digest using kp's private chain
// seeds: each chain is advanced exactly digit_i steps from its bottom.
func signTest(kp testKeyPair, digest Digest) Signature {
	ds := digits(digest)
	var sig Signature
	for i := 0; i < ChainCount; i++ {
		elem := kp.seeds[i]
		for s := 0; s < int(ds[i]); s++ {
			elem = chainStep(kp.salts.Salt1, i, elem)
		}
		copy(sig[i*ChunkLen:(i+1)*ChunkLen], elem[:])
	}
	return sig
}
