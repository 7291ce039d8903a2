package puzzle

import "math/rand"

// candidatesByFeature indexes open-class dictionary entries by the
// individual feature bits they carry, so Generate can fill a frame
// slot without a linear scan per attempt.
var candidatesByFeature = buildCandidateIndex()

func buildCandidateIndex() map[feature][]byte {
	idx := make(map[feature][]byte)
	for i, e := range dict {
		if i == nilIdx || e.fe&literal != 0 {
			continue
		}
		for bit := feature(1); bit != 0 && bit < literal; bit <<= 1 {
			if e.fe&bit != 0 {
				idx[bit] = append(idx[bit], byte(i))
			}
		}
	}
	return idx
}

// fillFrame instantiates one token vector from frame f, picking a
// random dictionary entry for each open-class slot and the frame's
// fixed index for each literal slot.
func fillFrame(f [maxSlots]feature, rng *rand.Rand) tokenVector {
	var t tokenVector
	for i := 0; i < maxSlots; i++ {
		tag := f[i]
		if tag == 0 {
			break
		}
		if tag&literal != 0 {
			t[i] = byte(tag &^ literal)
			continue
		}
		var pool []byte
		for bit := feature(1); bit != 0 && bit < literal; bit <<= 1 {
			if tag&bit != 0 {
				pool = append(pool, candidatesByFeature[bit]...)
			}
		}
		if len(pool) == 0 {
			continue // tag matches no dictionary entry; leave slot NIL
		}
		t[i] = pool[rng.Intn(len(pool))]
	}
	return t
}

// Generate searches for a nonce satisfying Check against link,
// difficulty, and bnum, trying at most maxTries random haiku pairs.
// It exists so tests and tooling can produce valid fixtures; a real
// miner is out of scope for this package.
func Generate(link [32]byte, difficulty byte, bnum [8]byte, maxTries int) (Nonce, string, bool) {
	rng := rand.New(rand.NewSource(1))
	for try := 0; try < maxTries; try++ {
		f1 := frames[rng.Intn(len(frames))]
		f2 := frames[rng.Intn(len(frames))]
		h1 := fillFrame(f1, rng)
		h2 := fillFrame(f2, rng)

		var n Nonce
		copy(n[0:16], h1[:])
		copy(n[16:32], h2[:])

		if haiku, ok := Check(link, difficulty, bnum, n); ok {
			return n, haiku, true
		}
	}
	return Nonce{}, "", false
}
