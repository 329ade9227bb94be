package grid_test

import (
	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pace/agu"
	"github.com/sarchlab/pace/grid"
	"github.com/sarchlab/pace/isa"
)

func mustParse(line string) isa.Instruction {
	inst, err := isa.ParseMnemonic(line)
	if err != nil {
		panic(err)
	}
	return inst
}

// recordingObserver is a minimal, hand-rolled grid.Observer for tests that
// only need call counts and the last reported cycle, not argument matching —
// the gomock.Controller-backed MockObserver below is reserved for the one
// test that actually needs to assert call arguments.
type recordingObserver struct {
	finishedCycles    []uint64
	contentionCycles  []uint64
	contentionDMIndex []int
}

func (r *recordingObserver) Finished(cycle uint64) { r.finishedCycles = append(r.finishedCycles, cycle) }
func (r *recordingObserver) DmContention(cycle uint64, dmIndex int) {
	r.contentionCycles = append(r.contentionCycles, cycle)
	r.contentionDMIndex = append(r.contentionDMIndex, dmIndex)
}

var _ = Describe("Grid", func() {
	Describe("pure ALU, no memory (2x2)", func() {
		It("cycles reg_alu_res through {3,4} at PE(0,0) over 6 cycles", func() {
			g := grid.New(2, 2, grid.SingleSided)
			pe00 := g.PE(0, 0)
			pe00.CM[0] = mustParse("ADD! 3")
			pe00.CM[1] = mustParse("ADD! 4")
			pe00.CM[2] = mustParse("JUMP [0,1]")

			var trace []uint16
			for i := 0; i < 6; i++ {
				Expect(g.Tick()).To(Succeed())
				trace = append(trace, pe00.AluRes)
			}

			for _, v := range trace {
				Expect(v).To(Or(Equal(uint16(3)), Equal(uint16(4))))
			}
			// JUMP never touches reg_alu_res, so the cycle it executes
			// repeats the prior ADD's value before the loop settles into a
			// strict 3,4 alternation.
			Expect(trace).To(Equal([]uint16{3, 4, 4, 3, 4, 3}))
		})
	})

	Describe("AGU end-of-execution", func() {
		It("issues exactly 6 transactions for max_count=3 over two STRIDED(1) entries, then reports Finished on tick 7", func() {
			g := grid.New(1, 1, grid.SingleSided)
			obs := &recordingObserver{}
			g.Observer = obs

			// Every CM slot triggers, so the AGU is pulsed on every tick
			// as pc walks 0..15.
			pe00 := g.PE(0, 0)
			for i := range pe00.CM {
				pe00.CM[i] = mustParse("NOP?")
			}

			a := g.AGU(0, 0)
			a.MaxCount = 3
			a.WrapAt = 2
			a.ConfiguredMode = agu.STORE
			a.CM[0] = isa.AguInstr{Mode: isa.AguStrided, Stride: 1}
			a.CM[1] = isa.AguInstr{Mode: isa.AguStrided, Stride: 1}
			a.SeedAddress(0, 0x10)
			a.SeedAddress(1, 0x20)

			for i := 0; i < 6; i++ {
				Expect(g.Tick()).To(Succeed())
			}
			Expect(obs.finishedCycles).To(BeEmpty())

			Expect(g.Tick()).To(Succeed())
			Expect(obs.finishedCycles).To(Equal([]uint64{7}))
		})
	})

	Describe("DM contention", func() {
		It("reports a same-cycle double-store via the Observer, left port wins", func() {
			ctrl := gomock.NewController(GinkgoT())
			defer ctrl.Finish()
			mockObs := NewMockObserver(ctrl)
			mockObs.EXPECT().DmContention(uint64(0), 0).Times(1)

			// Two rows on the same left edge are row-paired onto one DM
			// (y=0 as its Left port, y=1 as its Right port); triggering
			// both AGUs to CONST-store the same address in the same cycle
			// is the only way to provoke the tie-break without memory
			// contention ever touching two different DMs.
			g := grid.New(1, 2, grid.SingleSided)
			g.Observer = mockObs

			g.PE(0, 0).CM[0] = mustParse("NOP?")
			g.PE(1, 0).CM[0] = mustParse("NOP?")

			top := g.AGU(0, 0)
			top.ConfiguredMode = agu.STORE
			top.MaxCount = 1
			top.CM[0] = isa.AguInstr{Mode: isa.AguConst}
			top.SeedAddress(0, 0)

			bottom := g.AGU(1, 0)
			bottom.ConfiguredMode = agu.STORE
			bottom.MaxCount = 1
			bottom.CM[0] = isa.AguInstr{Mode: isa.AguConst}
			bottom.SeedAddress(0, 0)

			Expect(g.Tick()).To(Succeed())
		})

		It("leaves an earlier-stepped AGU's Mode and EndOfExecution untouched when a later one in the same tick fails", func() {
			// Same 1x2 fixture: two edge AGUs sharing one DM, triggered in
			// the same tick. Row 0's AGU is evaluated first and is seeded
			// cleanly; row 1's is left unseeded and raises AguUnderflow.
			// A Step that mutated Mode/EndOfExecution directly, ahead of
			// the later failure, would already show that mutation by the
			// time Tick returns its error.
			g := grid.New(1, 2, grid.SingleSided)
			g.PE(0, 0).CM[0] = mustParse("NOP?")
			g.PE(1, 0).CM[0] = mustParse("NOP?")

			top := g.AGU(0, 0)
			top.ConfiguredMode = agu.STORE
			top.MaxCount = 1
			top.CM[0] = isa.AguInstr{Mode: isa.AguConst}
			top.SeedAddress(0, 0)

			bottom := g.AGU(1, 0)
			bottom.ConfiguredMode = agu.STORE
			bottom.MaxCount = 1
			bottom.CM[0] = isa.AguInstr{Mode: isa.AguConst}
			// Deliberately not seeded: triggering it raises AguUnderflow.

			modeBefore, endBefore := top.Mode, top.EndOfExecution

			err := g.Tick()
			Expect(err).To(HaveOccurred())
			var fatal *grid.FatalError
			Expect(err).To(BeAssignableToTypeOf(fatal))

			Expect(top.Mode).To(Equal(modeBefore))
			Expect(top.EndOfExecution).To(Equal(endBefore))
		})
	})

	Describe("array add across a 2x2 grid", func() {
		It("loads a from dm0, b from dm1, sums them at PE(0,1), and stores the result into dm1", func() {
			// Grid positions below are named (x,y); Grid's own PE/AGU
			// accessors take (y,x). Column x=0 loads a at (0,0) and
			// column x=1 loads b at (1,0), both edge AGUs under this
			// double-sided topology. The sum forms at (0,1) once both
			// operands have routed in, then stores out through (1,1)'s
			// AGU. b's path is one hop longer than a's (it relays
			// through (1,1) before reaching (0,1)), so b's load triggers
			// a cycle earlier to land both operands at (0,1) together.
			g := grid.New(2, 2, grid.DoubleSided)
			const a, b = uint16(6), uint16(9)
			g.DM(0).Bytes[0] = byte(a)
			g.DM(1).Bytes[0] = byte(b)

			aLoader := g.AGU(0, 0) // (x=0,y=0), dm0 Left
			aLoader.ConfiguredMode = agu.LOAD
			aLoader.MaxCount = 1
			aLoader.CM[0] = isa.AguInstr{Mode: isa.AguConst}
			aLoader.SeedAddress(0, 0)

			bLoader := g.AGU(0, 1) // (x=1,y=0), dm1 Left
			bLoader.ConfiguredMode = agu.LOAD
			bLoader.MaxCount = 1
			bLoader.CM[0] = isa.AguInstr{Mode: isa.AguConst}
			bLoader.SeedAddress(0, 0)

			store := g.AGU(1, 1) // (x=1,y=1), dm1 Right
			store.ConfiguredMode = agu.STORE
			store.MaxCount = 1
			store.CM[0] = isa.AguInstr{Mode: isa.AguConst}
			store.SeedAddress(0, 4)

			// T1: trigger b's load at (1,0) (extra hop ahead).
			g.PE(0, 1).CM[0] = mustParse("NOP?")
			// T2: capture b; trigger a's load at (0,0).
			g.PE(0, 1).CM[1] = mustParse("CMERGE! <DMEM_OUT,REG_OP2>")
			g.PE(0, 0).CM[1] = mustParse("NOP?")
			// T3: relay b south, from (1,0) into (1,1); capture a at (0,0).
			g.PE(1, 1).CM[2] = mustParse("CMERGE! <N_IN,REG_OP2>")
			g.PE(0, 0).CM[2] = mustParse("CMERGE! <DMEM_OUT,REG_OP2>")
			// T4: (0,1) sums a (North, from (0,0)) and b (East, from (1,1)).
			g.PE(1, 0).CM[3] = mustParse("ADD! <N_IN,E_IN>")
			// T5: (1,1) stores the sum arriving from its West neighbor (0,1).
			g.PE(1, 1).CM[4] = mustParse("NOP? <W_IN,REG_OP2>")

			for i := 0; i < 5; i++ {
				Expect(g.Tick()).To(Succeed())
			}

			Expect(g.DM(1).Bytes[4]).To(Equal(byte(a + b)))
			Expect(g.DM(1).Bytes[5]).To(Equal(byte(0)))
		})
	})

	Describe("multiply-accumulate across a 2x2 grid", func() {
		It("computes a*b+c and stores the result through the row-1 edge AGU", func() {
			// Grid positions below are named (x,y); Grid's own PE/AGU
			// accessors take (y,x). c loads at (0,0), the left edge AGU.
			// a and b are folded in as immediates at (1,0) (SEL! loads a
			// constant into reg_alu_res, then MULT multiplies it against a
			// second immediate) since this single-sided topology gives
			// that column no AGU of its own. The product relays through
			// (1,1) to meet c arriving at (0,1), which sums them and
			// stores the result back out through its own AGU.
			g := grid.New(2, 2, grid.SingleSided)
			const a, b, c = uint16(4), uint16(5), uint16(7)
			g.DM(0).Bytes[0] = byte(c)

			cLoader := g.AGU(0, 0) // (x=0,y=0), dm0 Left
			cLoader.ConfiguredMode = agu.LOAD
			cLoader.MaxCount = 1
			cLoader.CM[0] = isa.AguInstr{Mode: isa.AguConst}
			cLoader.SeedAddress(0, 0)

			store := g.AGU(1, 0) // (x=0,y=1), dm0 Right
			store.ConfiguredMode = agu.STORE
			store.MaxCount = 1
			store.CM[0] = isa.AguInstr{Mode: isa.AguConst}
			store.SeedAddress(0, 8)

			// T1: trigger c's load at (0,0); fold a in as a constant at (1,0).
			g.PE(0, 0).CM[0] = mustParse("NOP?")
			g.PE(0, 1).CM[0] = mustParse("SEL! 4")
			// T2: capture c; multiply reg_alu_res (a) by the immediate b.
			g.PE(0, 0).CM[1] = mustParse("CMERGE! <DMEM_OUT,REG_OP2>")
			g.PE(0, 1).CM[1] = mustParse("MULT! <REG_ALU_RES,IMM> 5")
			// T3: relay the product south, from (1,0) into (1,1).
			g.PE(1, 1).CM[2] = mustParse("CMERGE! <N_IN,REG_OP2>")
			// T4: (0,1) sums c (North, from (0,0)) and the product (East,
			// from (1,1)).
			g.PE(1, 0).CM[3] = mustParse("ADD! <N_IN,E_IN>")
			// T5: (0,1) stores its own reg_alu_res through its AGU.
			g.PE(1, 0).CM[4] = mustParse("NOP? <REG_ALU_RES,REG_OP2>")

			for i := 0; i < 5; i++ {
				Expect(g.Tick()).To(Succeed())
			}

			want := a*b + c
			Expect(g.DM(0).Bytes[8]).To(Equal(byte(want)))
			Expect(g.DM(0).Bytes[9]).To(Equal(byte(want >> 8)))
		})
	})

	Describe("determinism", func() {
		It("produces byte-identical DM and register state for two identical runs", func() {
			build := func() *grid.Grid {
				g := grid.New(2, 2, grid.SingleSided)
				g.PE(0, 0).CM[0] = mustParse("ADD! 7")
				g.PE(0, 0).CM[1] = mustParse("ADD! 11")
				g.PE(0, 0).CM[2] = mustParse("JUMP [0,1]")
				return g
			}

			g1, g2 := build(), build()
			for i := 0; i < 10; i++ {
				Expect(g1.Tick()).To(Succeed())
				Expect(g2.Tick()).To(Succeed())
			}

			Expect(cmp.Diff(g1.PE(0, 0).AluRes, g2.PE(0, 0).AluRes)).To(BeEmpty())
			Expect(cmp.Diff(g1.DM(0).Bytes, g2.DM(0).Bytes)).To(BeEmpty())
			Expect(g1.Cycle).To(Equal(g2.Cycle))
		})
	})

	Describe("no partial commit on a fatal error", func() {
		It("leaves every component's state exactly as it was before the failing Tick", func() {
			g := grid.New(1, 1, grid.SingleSided)
			pe00 := g.PE(0, 0)
			pe00.CM[0] = mustParse("NOP?")

			a := g.AGU(0, 0)
			a.MaxCount = 1
			a.CM[0] = isa.AguInstr{Mode: isa.AguConst}
			// Deliberately not seeded: triggering this AGU raises
			// AguUnderflow, and the whole Tick must abort before any
			// component commits.

			preCycle := g.Cycle
			prePC := pe00.PC
			preAluRes := pe00.AluRes
			preDM := g.DM(0).Bytes

			err := g.Tick()
			Expect(err).To(HaveOccurred())
			var fatal *grid.FatalError
			Expect(err).To(BeAssignableToTypeOf(fatal))

			Expect(g.Cycle).To(Equal(preCycle))
			Expect(pe00.PC).To(Equal(prePC))
			Expect(pe00.AluRes).To(Equal(preAluRes))
			Expect(g.DM(0).Bytes).To(Equal(preDM))
			Expect(a.EndOfExecution).To(BeFalse())
		})
	})
})

