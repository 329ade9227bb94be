package pe

import "github.com/sarchlab/pace/isa"

// ExecErrorKind is the closed set of dynamic PE execution errors.
type ExecErrorKind int

const (
	// DivByZero: DIV executed with op2 == 0 in a live instruction.
	DivByZero ExecErrorKind = iota
	// DeprecatedMemOp: a legacy LOAD/STORE/LOADI/STOREI opcode was fetched.
	DeprecatedMemOp
)

// ExecError is a dynamic PE execution error.
type ExecError struct {
	Kind ExecErrorKind
	Msg  string
}

func (e *ExecError) Error() string { return e.Msg }

// evalALU computes the 16-bit ALU result for op, per the opcode
// semantics table. a and b are the gathered operand values (reg_op1,
// reg_op2 after routing). updateRes and imm/immPresent are read from the
// instruction because SEL and CMERGE reach past the two gathered operands
// into the raw instruction fields.
func evalALU(op isa.Opcode, a, b uint16, updateRes bool, imm int16, immPresent bool) (uint16, error) {
	switch op {
	case isa.ADD:
		return a + b, nil
	case isa.SUB:
		return a - b, nil
	case isa.MULT:
		return a * b, nil
	case isa.DIV:
		if int16(b) == 0 {
			return 0, &ExecError{Kind: DivByZero, Msg: "DIV by zero"}
		}
		return uint16(int16(a) / int16(b)), nil
	case isa.LS:
		return a << (b & 0xF), nil
	case isa.RS:
		return a >> (b & 0xF), nil
	case isa.ARS:
		return uint16(int16(a) >> (b & 0xF)), nil
	case isa.AND:
		return a & b, nil
	case isa.OR:
		return a | b, nil
	case isa.XOR:
		return a ^ b, nil
	case isa.SEL:
		// The update_res bit doubles as an immediate-selector for SEL: a
		// single "SEL!" with an immediate acts as a load-constant. See
		// DESIGN.md for the open-question disposition.
		switch {
		case updateRes:
			return uint16(imm), nil
		case a&0x8000 != 0:
			return a, nil
		case b&0x8000 != 0:
			return b, nil
		default:
			return 0, nil
		}
	case isa.CMERGE:
		if immPresent {
			return uint16(imm), nil
		}
		return a, nil
	case isa.CMP:
		if a == b {
			return 1, nil
		}
		return 0, nil
	case isa.CLT:
		if int16(a) < int16(b) {
			return 1, nil
		}
		return 0, nil
	case isa.CGT:
		// DESIGN-NOTE: CGT is signed a > b, not the a < b predicate CLT
		// uses; see DESIGN.md's open-question dispositions.
		if int16(a) > int16(b) {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, nil
	}
}
