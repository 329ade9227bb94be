package isa

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// upper is shared across the mnemonic parser for case-insensitive opcode
// and route-source matching; a cases.Caser rather than strings.ToUpper so
// the same folding rule covers any locale-specific mnemonic text.
var upper = cases.Upper(language.Und)

// ParseMnemonic parses a single mnemonic line:
//
//	INSTR  := OP FLAGS? ROUTES? IMM?  |  JUMP FLAGS? DST? '[' START ',' END ']'  |  NOP FLAGS? ROUTES? IMM?
//	OP     := ADD|SUB|MULT|DIV|LS|RS|ARS|AND|OR|XOR|SEL|CMERGE|CMP|CLT|CGT
//	FLAGS  := '!' | '?' | '!?' | '?!'
//	ROUTES := '<' SRC (',' SRC)? '>'   -- optional, only needed when a port
//	                                      routes something other than the
//	                                      implicit register/immediate default
//	IMM    := signed or unsigned integer literal, fits in 16 bits
//
// ROUTES is a superset addition: the base grammar has no
// way to name cross-PE routing sources, so printing an Instruction whose
// ports were wired to a neighbor link needs somewhere to put that — the
// angle-bracket clause is a bracketed-operand extension to the base
// grammar for exactly that case.
func ParseMnemonic(line string) (Instruction, error) {
	toks, err := tokenize(line)
	if err != nil {
		return Instruction{}, err
	}
	if len(toks) == 0 {
		return Instruction{}, errSyntax(1, 1, "empty instruction")
	}

	// The opcode and its FLAGS are written glued together with no
	// separating space ("ADD! 3", "NOP?"), so split the leading token at
	// the first flag character before looking anything up.
	name, flagsTok := splitHeadFlags(toks[0])
	rest := toks[1:]
	if flagsTok != "" {
		rest = append([]string{flagsTok}, rest...)
	}

	head := upper.String(name)
	switch head {
	case "JUMP":
		return parseJump(rest)
	case "NOP":
		return parseSimple(NOP, rest)
	default:
		op, ok := opcodeFromMnemonic(head)
		if !ok {
			return Instruction{}, errUnknownOpcode(name)
		}
		return parseSimple(op, rest)
	}
}

// splitHeadFlags splits a leading "OP!"/"OP?"/"OP!?"/"OP?!" token into the
// bare opcode name and the flags suffix (empty if there is none).
func splitHeadFlags(tok string) (name, flags string) {
	idx := strings.IndexAny(tok, "!?")
	if idx < 0 {
		return tok, ""
	}
	return tok[:idx], tok[idx:]
}

// PrintMnemonic renders x back to its mnemonic line. For any x produced by
// ParseMnemonic, ParseMnemonic(PrintMnemonic(x)) == x.
func PrintMnemonic(x Instruction) string {
	var b strings.Builder
	b.WriteString(x.Opcode.String())
	b.WriteString(flagsToken(x.Flags))

	if x.Opcode == JUMP {
		if x.JumpDst != x.LoopStart {
			fmt.Fprintf(&b, " %d", x.JumpDst)
		}
		fmt.Fprintf(&b, " [%d,%d]", x.LoopStart, x.LoopEnd)
		return b.String()
	}

	if routes := routesToken(x); routes != "" {
		b.WriteString(" ")
		b.WriteString(routes)
	}
	if x.ImmPresent {
		fmt.Fprintf(&b, " %d", x.Imm)
	}
	return b.String()
}

func defaultOp1Route() RouteSource { return RegOp1 }

func defaultOp2Route(immPresent bool) RouteSource {
	if immPresent {
		return Imm
	}
	return RegOp2
}

func routesToken(x Instruction) string {
	if x.Op1Route == defaultOp1Route() && x.Op2Route == defaultOp2Route(x.ImmPresent) {
		return ""
	}
	return fmt.Sprintf("<%s,%s>", x.Op1Route, x.Op2Route)
}

func flagsToken(f Flags) string {
	switch {
	case f.UpdateRes && f.AguTrigger:
		return "!?"
	case f.UpdateRes:
		return "!"
	case f.AguTrigger:
		return "?"
	default:
		return ""
	}
}

func parseFlags(tok string) (Flags, bool) {
	switch tok {
	case "!":
		return Flags{UpdateRes: true}, true
	case "?":
		return Flags{AguTrigger: true}, true
	case "!?", "?!":
		return Flags{UpdateRes: true, AguTrigger: true}, true
	default:
		return Flags{}, false
	}
}

func parseRoutes(tok string) (RouteSource, RouteSource, error) {
	if !strings.HasPrefix(tok, "<") || !strings.HasSuffix(tok, ">") {
		return 0, 0, errSyntax(1, 1, "malformed route clause "+tok)
	}
	inner := tok[1 : len(tok)-1]
	parts := strings.Split(inner, ",")
	if len(parts) != 2 {
		return 0, 0, errSyntax(1, 1, "route clause needs exactly two sources: "+tok)
	}
	op1, ok := parseRouteSource(strings.TrimSpace(parts[0]))
	if !ok {
		return 0, 0, errUnknownOpcode(parts[0])
	}
	op2, ok := parseRouteSource(strings.TrimSpace(parts[1]))
	if !ok {
		return 0, 0, errUnknownOpcode(parts[1])
	}
	return op1, op2, nil
}

func parseRouteSource(tok string) (RouteSource, bool) {
	for r := RouteSource(0); r < routeSourceCount; r++ {
		if r.String() == upper.String(tok) {
			return r, true
		}
	}
	return 0, false
}

// parseSimple parses the tail of an ALU/NOP instruction: optional FLAGS,
// optional ROUTES, optional IMM.
func parseSimple(op Opcode, toks []string) (Instruction, error) {
	inst := Instruction{Opcode: op}
	i := 0
	hasRoutes := false
	if i < len(toks) {
		if f, ok := parseFlags(toks[i]); ok {
			inst.Flags = f
			i++
		}
	}
	if i < len(toks) && strings.HasPrefix(toks[i], "<") {
		op1, op2, err := parseRoutes(toks[i])
		if err != nil {
			return Instruction{}, err
		}
		inst.Op1Route, inst.Op2Route = op1, op2
		hasRoutes = true
		i++
	}

	if i < len(toks) {
		imm, err := parseImm(toks[i])
		if err != nil {
			return Instruction{}, err
		}
		inst.ImmPresent = true
		inst.Imm = imm
		i++
	}
	if i != len(toks) {
		return Instruction{}, errSyntax(1, 1, "unexpected trailing tokens in instruction")
	}

	if !hasRoutes {
		inst.Op1Route = defaultOp1Route()
		inst.Op2Route = defaultOp2Route(inst.ImmPresent)
	}
	return inst, nil
}

func parseJump(toks []string) (Instruction, error) {
	inst := Instruction{Opcode: JUMP}
	i := 0
	if i < len(toks) {
		if f, ok := parseFlags(toks[i]); ok {
			inst.Flags = f
			i++
		}
	}

	var dst *uint8
	if i < len(toks) && !strings.HasPrefix(toks[i], "[") {
		n, err := strconv.Atoi(toks[i])
		if err != nil || n < 0 || n > 31 {
			return Instruction{}, errSyntax(1, 1, "invalid jump destination "+toks[i])
		}
		v := uint8(n)
		dst = &v
		i++
	}

	if i >= len(toks) {
		return Instruction{}, errSyntax(1, 1, "JUMP requires a [start,end] loop range")
	}
	start, end, err := parseLoopRange(strings.Join(toks[i:], ""))
	if err != nil {
		return Instruction{}, err
	}
	inst.LoopStart = start
	inst.LoopEnd = end
	if dst != nil {
		inst.JumpDst = *dst
	} else {
		inst.JumpDst = start
	}
	inst.Op1Route = defaultOp1Route()
	inst.Op2Route = defaultOp2Route(inst.ImmPresent)
	return inst, nil
}

func parseLoopRange(tok string) (uint8, uint8, error) {
	if !strings.HasPrefix(tok, "[") || !strings.HasSuffix(tok, "]") {
		return 0, 0, errSyntax(1, 1, "malformed loop range "+tok)
	}
	inner := tok[1 : len(tok)-1]
	parts := strings.Split(inner, ",")
	if len(parts) != 2 {
		return 0, 0, errSyntax(1, 1, "loop range needs start,end: "+tok)
	}
	start, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	end, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || start < 0 || start > 15 || end < 0 || end > 15 || start > end {
		return 0, 0, errSyntax(1, 1, "invalid loop range "+tok)
	}
	return uint8(start), uint8(end), nil
}

func parseImm(tok string) (int16, error) {
	n, err := strconv.ParseInt(tok, 0, 64)
	if err != nil {
		return 0, errImmRange(tok)
	}
	if n >= -32768 && n <= 32767 {
		return int16(n), nil
	}
	if n >= 0 && n <= 65535 {
		return int16(uint16(n)), nil
	}
	return 0, errImmRange(tok)
}

// tokenize splits a mnemonic line on whitespace, keeping bracketed and
// angle-bracketed clauses ("[2,5]", "<N_IN,E_IN>") as single tokens so a
// comma inside one doesn't get split into separate tokens.
func tokenize(line string) ([]string, error) {
	var toks []string
	var cur strings.Builder
	depth := 0
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		switch r {
		case '[', '<':
			depth++
			cur.WriteRune(r)
		case ']', '>':
			depth--
			if depth < 0 {
				return nil, errSyntax(1, 1, "unbalanced brackets")
			}
			cur.WriteRune(r)
		case ' ', '\t':
			if depth == 0 {
				flush()
			} else {
				cur.WriteRune(r)
			}
		default:
			cur.WriteRune(r)
		}
	}
	if depth != 0 {
		return nil, errSyntax(1, 1, "unbalanced brackets")
	}
	flush()
	return toks, nil
}
