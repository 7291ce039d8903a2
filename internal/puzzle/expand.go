package puzzle

import "strings"

// tokenVector is the fixed-length sequence of dictionary indices that
// makes up one haiku line-unit. A NIL (0) entry terminates the
// meaningful prefix; everything after it must also be NIL.
type tokenVector [maxSlots]byte

// Syntax reports whether toks matches at least one registered frame.
// A frame matches when every non-NIL slot is satisfied (literal slots
// require an exact index match, open-class slots require a feature
// intersection) and the token vector's NIL terminator, if any, lines
// up with the frame's own end.
func Syntax(toks tokenVector) bool {
	for _, f := range frames {
		if frameMatches(f, toks) {
			return true
		}
	}
	return false
}

func frameMatches(f [maxSlots]feature, toks tokenVector) bool {
	for i := 0; i < maxSlots; i++ {
		tag := f[i]
		tok := toks[i]

		if tag == 0 {
			// Frame ends here; every remaining token must be NIL.
			for j := i; j < maxSlots; j++ {
				if toks[j] != nilIdx {
					return false
				}
			}
			return true
		}

		if tok == nilIdx {
			// Token vector ended before the frame did.
			return false
		}
		if int(tok) >= len(dict) {
			return false
		}

		if tag&literal != 0 {
			wantIdx := byte(tag &^ literal)
			if tok != wantIdx {
				return false
			}
			continue
		}

		if dict[tok].fe&literal != 0 {
			return false
		}
		if dict[tok].fe&tag == 0 {
			return false
		}
	}
	return true
}

// Expand renders toks as the literal haiku text a verifier hashes.
// Tokens are space-joined except around a newline token, which is
// emitted bare so lines break cleanly.
func Expand(toks tokenVector) string {
	var b strings.Builder
	prevWasNL := true // suppress a leading space on the first token
	for _, tok := range toks {
		if tok == nilIdx {
			break
		}
		if int(tok) >= len(dict) {
			break
		}
		word := dict[tok].token
		if word == "\n" {
			b.WriteString(word)
			prevWasNL = true
			continue
		}
		if !prevWasNL {
			b.WriteByte(' ')
		}
		b.WriteString(word)
		prevWasNL = false
	}
	return b.String()
}

// expandPadded256 renders toks the way the chain buffer wants it: the
// literal text left-justified in a 256-byte field, zero-padded.
func expandPadded256(toks tokenVector) [256]byte {
	var out [256]byte
	s := Expand(toks)
	copy(out[:], s)
	return out
}
