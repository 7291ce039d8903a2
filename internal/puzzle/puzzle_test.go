package puzzle

import "testing"

func TestSyntaxAcceptsFrameShape(t *testing.T) {
	// frames[0]: fPrep, fAdj, fMass, NL, fNounPlural, NL, fInfinitive|fGerund
	var toks tokenVector
	toks[0] = 28 // beneath (fPrep)
	toks[1] = 33 // quiet (fAdj)
	toks[2] = 22 // rain (fMass)
	toks[3] = litNL
	toks[4] = 15 // leaves (fNounPlural)
	toks[5] = litNL
	toks[6] = 43 // fall (fInfinitive)

	if !Syntax(toks) {
		t.Fatal("expected token vector to satisfy frames[0]")
	}
}

func TestSyntaxRejectsWrongFeature(t *testing.T) {
	var toks tokenVector
	toks[0] = 5 // wind (fNounSingular), not fPrep
	toks[1] = 33
	toks[2] = 22
	toks[3] = litNL
	toks[4] = 15
	toks[5] = litNL
	toks[6] = 43

	if Syntax(toks) {
		t.Fatal("expected mismatched feature to fail syntax check")
	}
}

func TestSyntaxRejectsTrailingGarbage(t *testing.T) {
	var toks tokenVector
	toks[0] = 28
	toks[1] = 33
	toks[2] = 22
	toks[3] = litNL
	toks[4] = 15
	toks[5] = litNL
	toks[6] = 43
	toks[7] = 9 // extra token after the frame's end

	if Syntax(toks) {
		t.Fatal("expected trailing non-NIL token to fail every frame")
	}
}

func TestExpandInsertsSpacesAndBreaksLines(t *testing.T) {
	var toks tokenVector
	toks[0] = 28 // beneath
	toks[1] = 33 // quiet
	toks[2] = litNL
	toks[3] = 5 // wind

	got := Expand(toks)
	want := "beneath quiet\nwind"
	if got != want {
		t.Fatalf("Expand() = %q, want %q", got, want)
	}
}

func TestCheckRoundTrip(t *testing.T) {
	link := [32]byte{1, 2, 3}
	bnum := [8]byte{1}
	const difficulty = 4 // low, so Generate converges quickly

	n, haiku1, ok := Generate(link, difficulty, bnum, 100000)
	if !ok {
		t.Fatal("Generate failed to find a solution at low difficulty")
	}
	if haiku1 == "" {
		t.Fatal("expected non-empty expanded haiku text")
	}

	gotHaiku, ok := Check(link, difficulty, bnum, n)
	if !ok {
		t.Fatal("Check rejected the nonce Generate just produced")
	}
	if gotHaiku != haiku1 {
		t.Fatalf("Check() haiku = %q, want %q", gotHaiku, haiku1)
	}
}

func TestCheckRejectsBadGrammarEvenIfHashWouldPass(t *testing.T) {
	link := [32]byte{9, 9, 9}
	bnum := [8]byte{2}

	var n Nonce
	n[0] = 200 // out of dictionary range, never satisfies any frame

	if _, ok := Check(link, 0, bnum, n); ok {
		t.Fatal("Check must reject a token vector that fails grammar, regardless of difficulty")
	}
}

func TestCheckRejectsWrongLink(t *testing.T) {
	link := [32]byte{1, 2, 3}
	bnum := [8]byte{1}
	const difficulty = 4

	n, _, ok := Generate(link, difficulty, bnum, 100000)
	if !ok {
		t.Fatal("Generate failed to find a solution")
	}

	otherLink := [32]byte{9, 9, 9}
	if _, ok := Check(otherLink, difficulty, bnum, n); ok {
		t.Fatal("Check must fail when the link does not match what the nonce was solved against")
	}
}

func TestEvalLeadingZeroBitsPartialByte(t *testing.T) {
	var digest [32]byte
	digest[0] = 0x00
	digest[1] = 0x0F // top 4 bits zero, bottom 4 set

	if !evalLeadingZeroBits(digest, 12) {
		t.Fatal("expected 12 leading zero bits to pass")
	}
	if evalLeadingZeroBits(digest, 13) {
		t.Fatal("expected 13 leading zero bits to fail (bit 13 is set)")
	}
}
