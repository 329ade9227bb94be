package isa

// Canonical 64-bit PE configuration bit map (see DESIGN.md, "Bit-map
// decision"). Bit 63 is the MSB; the mnemonic binary string's character at
// position 0 is bit 63. Reserved ranges round-trip byte-exact and are never
// canonicalized.
const (
	bitUpdateRes  = 63
	bitAguTrigger = 59

	opcodeHi = 58
	opcodeLo = 53

	jumpDstHi = 49
	jumpDstLo = 45

	loopStartHi = 44
	loopStartLo = 41

	loopEndHi = 40
	loopEndLo = 37

	bitImmPresent = 36

	immHi = 35
	immLo = 20

	op1RouteHi = 19
	op1RouteLo = 16

	op2RouteHi = 15
	op2RouteLo = 12
)

// field extracts bits [hi:lo] (inclusive, hi >= lo) from w.
func field(w uint64, hi, lo int) uint64 {
	width := uint(hi - lo + 1)
	mask := uint64(1)<<width - 1
	return (w >> uint(lo)) & mask
}

// setField returns w with bits [hi:lo] replaced by the low bits of v.
func setField(w uint64, hi, lo int, v uint64) uint64 {
	width := uint(hi - lo + 1)
	mask := uint64(1)<<width - 1
	return (w &^ (mask << uint(lo))) | ((v & mask) << uint(lo))
}

func getBit(w uint64, bit int) bool {
	return w&(1<<uint(bit)) != 0
}

func setBit(w uint64, bit int, v bool) uint64 {
	if v {
		return w | (1 << uint(bit))
	}
	return w &^ (1 << uint(bit))
}
