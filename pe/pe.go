// Package pe implements the PACE Processing Element: its ALU, register
// file, predicate, PC/loop state, and per-cycle operand gather and output
// latch commit, executed one instruction per cycle in program order.
package pe

import (
	"github.com/sarchlab/pace/cgra"
	"github.com/sarchlab/pace/isa"
)

// PE is one cell of the mesh: a 16-entry configuration memory and the
// register/predicate/PC state the Grid advances each tick. The Grid reads
// and writes PE values directly; a PE never reaches into a neighbor's
// state.
type PE struct {
	CM [16]isa.Instruction

	Op1, Op2, AluRes uint16
	Predicate        bool

	PC        uint8
	LoopStart uint8
	LoopEnd   uint8

	// Output is this PE's outbound value for routing, as committed at the
	// end of the previous cycle — what neighbors see as N_IN/S_IN/E_IN/W_IN
	// this cycle.
	Output cgra.Latch

	// Halted mirrors whether this PE's coupled AGU (if any) has asserted
	// end_of_execution; set by the Grid, not by Step. A halted PE still
	// ticks and may still route.
	Halted bool
}

// New returns a PE in its Reset state: zero registers, pc 0, loop_start 0,
// loop_end 15, predicate clear.
func New() *PE {
	return &PE{LoopEnd: 15}
}

// Inputs are the routing sources visible to a PE this cycle: the previous
// cycle's neighbor output latches and, for an edge PE whose AGU completed a
// LOAD last cycle, the returned word.
type Inputs struct {
	N, S, E, W cgra.Latch
	DmemOut    cgra.Latch
}

// StepResult is the next state a PE computes against a cycle's snapshot of
// Inputs. The Grid commits it only after every PE and DM in the cycle has
// computed without a fatal error, per the two-phase snapshot/commit
// discipline Grid.Tick follows.
type StepResult struct {
	NextOp1, NextOp2, NextAluRes uint16
	NextPredicate                bool
	NextPC, NextLoopStart, NextLoopEnd uint8
	NextOutput                   cgra.Latch

	// AluOut is wire_alu_out: the ALU's raw result this cycle, computed
	// whether or not update_res commits it into NextAluRes. JUMP and NOP
	// don't run the ALU, so AluOut is 0 for them.
	AluOut uint16

	// AguTrigger and StoreData mirror this cycle's instruction for the
	// Grid's memory coupling step: the Grid decides, from the AGU's own
	// configured mode, whether StoreData is actually written to DM or
	// whether this is a LOAD (in which case the DM result becomes next
	// cycle's DmemOut input instead).
	AguTrigger bool
	StoreData  uint16
}

// gather resolves one operand route against this cycle's register values
// and Inputs.
func (p *PE) gather(route isa.RouteSource, imm int16, in Inputs) uint16 {
	switch route {
	case isa.RegOp1:
		return p.Op1
	case isa.RegOp2:
		return p.Op2
	case isa.RegAluRes:
		return p.AluRes
	case isa.NIn:
		return in.N.Read()
	case isa.SIn:
		return in.S.Read()
	case isa.EIn:
		return in.E.Read()
	case isa.WIn:
		return in.W.Read()
	case isa.Imm:
		return uint16(imm)
	case isa.DmemOut:
		return in.DmemOut.Read()
	default:
		return 0
	}
}

// Step evaluates this instruction against the previous cycle's snapshot
// and returns this PE's next state. It never mutates p; the Grid commits
// the result only once the whole cycle has evaluated cleanly.
func (p *PE) Step(in Inputs) (StepResult, error) {
	instr := p.CM[p.PC]

	op1 := p.gather(instr.Op1Route, instr.Imm, in)
	op2 := p.gather(instr.Op2Route, instr.Imm, in)

	res := StepResult{
		NextOp1:       op1,
		NextOp2:       op2,
		NextAluRes:    p.AluRes,
		AguTrigger:    instr.Flags.AguTrigger,
		StoreData:     op1,
	}

	switch {
	case instr.Opcode.IsLegacyMem():
		return StepResult{}, &ExecError{Kind: DeprecatedMemOp, Msg: "legacy memory opcode " + instr.Opcode.String() + " executed"}

	case instr.Opcode == isa.JUMP:
		res.NextPredicate = false
		res.NextLoopStart = instr.LoopStart
		res.NextLoopEnd = instr.LoopEnd
		res.NextPC = instr.JumpDst

	case instr.Opcode == isa.NOP:
		res.NextPredicate = p.Predicate
		res.NextLoopStart = p.LoopStart
		res.NextLoopEnd = p.LoopEnd
		res.NextPC = p.nextSequentialPC()

	default:
		aluOut, err := evalALU(instr.Opcode, op1, op2, instr.Flags.UpdateRes, instr.Imm, instr.ImmPresent)
		if err != nil {
			return StepResult{}, err
		}
		res.AluOut = aluOut
		if instr.Flags.UpdateRes {
			res.NextAluRes = aluOut
		}
		res.NextPredicate = p.Predicate
		res.NextLoopStart = p.LoopStart
		res.NextLoopEnd = p.LoopEnd
		res.NextPC = p.nextSequentialPC()

		// Output latch: the result this PE presents on its outbound
		// routes for the next cycle is the (possibly just-committed)
		// reg_alu_res.
		res.NextOutput = cgra.NewLatch(res.NextAluRes)
		return res, nil
	}

	res.NextOutput = cgra.NewLatch(res.NextAluRes)
	return res, nil
}

// nextSequentialPC applies the loop back-edge: pc wraps to loop_start once
// it reaches loop_end, else advances by one.
func (p *PE) nextSequentialPC() uint8 {
	if p.PC == p.LoopEnd {
		return p.LoopStart
	}
	return p.PC + 1
}

// Commit applies a StepResult computed by Step, advancing the PE to its
// next cycle's state.
func (p *PE) Commit(res StepResult) {
	p.Op1 = res.NextOp1
	p.Op2 = res.NextOp2
	p.AluRes = res.NextAluRes
	p.Predicate = res.NextPredicate
	p.PC = res.NextPC
	p.LoopStart = res.NextLoopStart
	p.LoopEnd = res.NextLoopEnd
	p.Output = res.NextOutput
}
