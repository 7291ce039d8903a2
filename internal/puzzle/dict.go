package puzzle

// Feature tags classify each dictionary token for grammar matching.
// A token matches a frame slot when its feature mask intersects (for
// open-class slots) or equals (for literal slots) the slot's tag.
type feature uint32

const (
	fNounSingular feature = 1 << iota
	fNounPlural
	fMass
	fTimeDay   // dawn, dusk, midnight...
	fTimeYear  // autumn, winter...
	fPrep      // beneath, beyond...
	fAdj       // quiet, silver...
	fInfinitive // fall, drift...
	fGerund     // falling, drifting...
	fAmbient    // softly, slowly...
)

const (
	fTime = fTimeDay | fTimeYear
	fNoun = fNounSingular | fNounPlural | fMass
)

// literal marks a dictionary slot as a fixed token rather than an
// open word class; frames reference literals by dictionary index with
// the literal bit set.
const literal feature = 1 << 30

type dictEntry struct {
	token string
	fe    feature
}

// dict is the deterministic token table shared by the solver and the
// verifier. Index 0 is the NIL/terminator sentinel.
var dict = []dictEntry{
	0:  {"", 0}, // NIL terminator
	1:  {"\n", literal},
	2:  {"the", literal},
	3:  {"a", literal},
	4:  {",", literal},

	// nouns (singular)
	5:  {"wind", fNounSingular},
	6:  {"moon", fNounSingular},
	7:  {"shadow", fNounSingular},
	8:  {"blossom", fNounSingular},
	9:  {"stone", fNounSingular},
	10: {"mountain", fNounSingular},
	11: {"frost", fNounSingular},
	12: {"river", fNounSingular},
	13: {"lantern", fNounSingular},
	14: {"ember", fNounSingular},

	// nouns (plural)
	15: {"leaves", fNounPlural},
	16: {"stars", fNounPlural},
	17: {"waves", fNounPlural},
	18: {"petals", fNounPlural},
	19: {"stones", fNounPlural},
	20: {"clouds", fNounPlural},
	21: {"crickets", fNounPlural},

	// mass nouns
	22: {"rain", fMass},
	23: {"snow", fMass},
	24: {"mist", fMass},
	25: {"dust", fMass},
	26: {"smoke", fMass},
	27: {"silence", fMass},

	// prepositions
	28: {"beneath", fPrep},
	29: {"beyond", fPrep},
	30: {"above", fPrep},
	31: {"within", fPrep},
	32: {"across", fPrep},

	// adjectives
	33: {"quiet", fAdj},
	34: {"silver", fAdj},
	35: {"distant", fAdj},
	36: {"faint", fAdj},
	37: {"hollow", fAdj},

	// time nouns
	38: {"dawn", fTimeDay},
	39: {"dusk", fTimeDay},
	40: {"midnight", fTimeDay},
	41: {"autumn", fTimeYear},
	42: {"winter", fTimeYear},

	// infinitives
	43: {"fall", fInfinitive},
	44: {"drift", fInfinitive},
	45: {"fade", fInfinitive},
	46: {"linger", fInfinitive},
	47: {"vanish", fInfinitive},

	// gerunds
	48: {"falling", fGerund},
	49: {"drifting", fGerund},
	50: {"fading", fGerund},
	51: {"lingering", fGerund},
	52: {"vanishing", fGerund},

	// ambient adverbs
	53: {"softly", fAmbient},
	54: {"slowly", fAmbient},
	55: {"silently", fAmbient},
}

// maxDict is the exclusive upper bound for valid token indices.
var maxDict = byte(len(dict))

// literalIndex returns a literal frame-slot value for the dictionary
// entry at idx.
func literalIndex(idx byte) feature {
	return literal | feature(idx)
}

const nilIdx = 0

// litNL, litThe, litA, litComma are the indices of the fixed tokens
// used by frames below.
const (
	litNL    = 1
	litThe   = 2
	litA     = 3
	litComma = 4
)

// maxSlots is the fixed haiku token-vector length (MAXH in the original).
const maxSlots = 16

// frames lists the sentence shapes a haiku may take. Each frame is a
// sequence of up to maxSlots feature tags; a NIL tag ends the frame
// early (the token vector must also end there with NIL).
var frames = [][maxSlots]feature{
	{fPrep, fAdj, fMass, literalIndex(litNL), fNounPlural, literalIndex(litNL), fInfinitive | fGerund},
	{fPrep, fMass, literalIndex(litNL), fAdj, fNounPlural, literalIndex(litNL), fInfinitive | fGerund},
	{fTime, fAmbient, literalIndex(litNL), fPrep, literalIndex(litThe), fAdj, fNounSingular, literalIndex(litNL), fAdj | fGerund},
	{literalIndex(litThe), fNounSingular, literalIndex(litNL), fPrep, fTimeDay, fMass, literalIndex(litNL), fAdj},
	{fGerund, fPrep, literalIndex(litA), fAdj, fNounSingular, literalIndex(litNL), fMass, fGerund, literalIndex(litComma), literalIndex(litNL), literalIndex(litA), fAdj, fNounSingular},
}
