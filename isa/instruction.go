package isa

// Instruction is the decoded form of a 64-bit PE configuration word. Every
// field maps to the bit ranges documented in DESIGN.md; the three Reserved*
// fields exist solely so reserved bit positions round-trip byte-exact
// rather than being canonicalized away.
type Instruction struct {
	Opcode Opcode
	Flags  Flags

	ImmPresent bool
	Imm        int16

	JumpDst   uint8 // 5 bits, valid when Opcode == JUMP
	LoopStart uint8 // 4 bits
	LoopEnd   uint8 // 4 bits

	Op1Route RouteSource
	Op2Route RouteSource

	Reserved1 uint8  // bits 62-60
	Reserved2 uint8  // bits 52-50
	Reserved3 uint16 // bits 11-0
}

// DecodeBinary parses a 64-character '0'/'1' string (whitespace permitted,
// MSB left) into an Instruction. It is total: every malformed input yields
// a *DecodeError, never a panic.
func DecodeBinary(s string) (Instruction, error) {
	bits := stripWhitespace(s)
	if len(bits) != 64 {
		return Instruction{}, errBadWidth(len(bits))
	}

	var w uint64
	for i := 0; i < 64; i++ {
		switch bits[i] {
		case '0':
			w <<= 1
		case '1':
			w = (w << 1) | 1
		default:
			// Not '0'/'1': reported as the same malformed-binary error.
			return Instruction{}, errBadWidth(len(bits))
		}
	}

	opcode := Opcode(field(w, opcodeHi, opcodeLo))
	if opcode >= opcodeCount {
		return Instruction{}, errUnknownOpcode(opcode.String())
	}

	op1 := RouteSource(field(w, op1RouteHi, op1RouteLo))
	if op1 >= routeSourceCount {
		return Instruction{}, errBadRoute(uint64(op1))
	}
	op2 := RouteSource(field(w, op2RouteHi, op2RouteLo))
	if op2 >= routeSourceCount {
		return Instruction{}, errBadRoute(uint64(op2))
	}

	imm := int16(uint16(field(w, immHi, immLo)))

	return Instruction{
		Opcode: opcode,
		Flags: Flags{
			UpdateRes:  getBit(w, bitUpdateRes),
			AguTrigger: getBit(w, bitAguTrigger),
		},
		ImmPresent: getBit(w, bitImmPresent),
		Imm:        imm,
		JumpDst:    uint8(field(w, jumpDstHi, jumpDstLo)),
		LoopStart:  uint8(field(w, loopStartHi, loopStartLo)),
		LoopEnd:    uint8(field(w, loopEndHi, loopEndLo)),
		Op1Route:   op1,
		Op2Route:   op2,
		Reserved1:  uint8(field(w, 62, 60)),
		Reserved2:  uint8(field(w, 52, 50)),
		Reserved3:  uint16(field(w, 11, 0)),
	}, nil
}

// EncodeBinary renders x back into its 64-character '0'/'1' string. For any
// x obtained from DecodeBinary, DecodeBinary(EncodeBinary(x)) == x.
func EncodeBinary(x Instruction) string {
	var w uint64
	w = setBit(w, bitUpdateRes, x.Flags.UpdateRes)
	w = setBit(w, bitAguTrigger, x.Flags.AguTrigger)
	w = setField(w, opcodeHi, opcodeLo, uint64(x.Opcode))
	w = setField(w, jumpDstHi, jumpDstLo, uint64(x.JumpDst))
	w = setField(w, loopStartHi, loopStartLo, uint64(x.LoopStart))
	w = setField(w, loopEndHi, loopEndLo, uint64(x.LoopEnd))
	w = setBit(w, bitImmPresent, x.ImmPresent)
	w = setField(w, immHi, immLo, uint64(uint16(x.Imm)))
	w = setField(w, op1RouteHi, op1RouteLo, uint64(x.Op1Route))
	w = setField(w, op2RouteHi, op2RouteLo, uint64(x.Op2Route))
	w = setField(w, 62, 60, uint64(x.Reserved1))
	w = setField(w, 52, 50, uint64(x.Reserved2))
	w = setField(w, 11, 0, uint64(x.Reserved3))

	buf := make([]byte, 64)
	for i := 0; i < 64; i++ {
		if w&(1<<uint(63-i)) != 0 {
			buf[i] = '1'
		} else {
			buf[i] = '0'
		}
	}
	return string(buf)
}

func stripWhitespace(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			continue
		}
		out = append(out, c)
	}
	return string(out)
}
