package validator

import "github.com/haikuchain/haikunode/internal/limb"

// sum2 adds two uint64 amounts through the portable limb adder so
// every money-bearing addition in the validator goes through the same
// overflow-checked path component A provides, rather than native
// 64-bit arithmetic.
func sum2(a, b uint64) (sum uint64, overflow bool) {
	r, ov := limb.Add(limb.FromUint64(a), limb.FromUint64(b))
	return r.Uint64(), ov
}

// sum3 adds three uint64 amounts, short-circuiting on the first
// overflow.
func sum3(a, b, c uint64) (sum uint64, overflow bool) {
	ab, ov := sum2(a, b)
	if ov {
		return 0, true
	}
	return sum2(ab, c)
}
