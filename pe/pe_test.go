package pe_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pace/cgra"
	"github.com/sarchlab/pace/isa"
	"github.com/sarchlab/pace/pe"
)

var _ = Describe("PE", func() {
	var p *pe.PE

	BeforeEach(func() {
		p = pe.New()
	})

	It("resets to initial state", func() {
		Expect(p.PC).To(BeEquivalentTo(0))
		Expect(p.LoopStart).To(BeEquivalentTo(0))
		Expect(p.LoopEnd).To(BeEquivalentTo(15))
		Expect(p.Predicate).To(BeFalse())
	})

	Context("ALU ops", func() {
		It("ADD wraps modulo 2^16", func() {
			p.CM[0] = isa.Instruction{
				Opcode: isa.ADD, Flags: isa.Flags{UpdateRes: true},
				Op1Route: isa.RegOp1, Op2Route: isa.Imm,
				ImmPresent: true, Imm: 1,
			}
			p.Op1 = 0xFFFF
			res, err := p.Step(pe.Inputs{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.NextAluRes).To(BeEquivalentTo(0))
		})

		It("DIV raises DivByZero", func() {
			p.CM[0] = isa.Instruction{
				Opcode: isa.DIV, Op1Route: isa.RegOp1, Op2Route: isa.RegOp2,
			}
			p.Op1, p.Op2 = 10, 0
			_, err := p.Step(pe.Inputs{})
			Expect(err).To(HaveOccurred())
			var ee *pe.ExecError
			Expect(err).To(BeAssignableToTypeOf(ee))
		})

		It("ARS preserves the sign bit", func() {
			p.CM[0] = isa.Instruction{
				Opcode: isa.ARS, Flags: isa.Flags{UpdateRes: true},
				Op1Route: isa.RegOp1, Op2Route: isa.Imm, ImmPresent: true, Imm: 1,
			}
			p.Op1 = 0x8000
			res, err := p.Step(pe.Inputs{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.NextAluRes).To(BeEquivalentTo(0xC000))
		})

		It("SEL takes the immediate when update_res is set", func() {
			p.CM[0] = isa.Instruction{
				Opcode: isa.SEL, Flags: isa.Flags{UpdateRes: true},
				Op1Route: isa.RegOp1, Op2Route: isa.Imm, ImmPresent: true, Imm: 42,
			}
			res, err := p.Step(pe.Inputs{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.NextAluRes).To(BeEquivalentTo(42))
		})

		It("SEL otherwise picks whichever operand has its sign bit set", func() {
			p.CM[0] = isa.Instruction{
				Opcode:   isa.SEL,
				Op1Route: isa.RegOp1, Op2Route: isa.RegOp2,
			}
			p.Op1, p.Op2 = 0, 0x8001
			res, err := p.Step(pe.Inputs{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.AluOut).To(BeEquivalentTo(0x8001))
		})

		It("CGT uses a > b, corrected from the documented CLT-identical bug", func() {
			p.CM[0] = isa.Instruction{
				Opcode: isa.CGT, Flags: isa.Flags{UpdateRes: true},
				Op1Route: isa.RegOp1, Op2Route: isa.RegOp2,
			}
			p.Op1, p.Op2 = 5, 3
			res, err := p.Step(pe.Inputs{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.NextAluRes).To(BeEquivalentTo(1))
		})

		It("CLT compares as signed 16-bit", func() {
			p.CM[0] = isa.Instruction{
				Opcode: isa.CLT, Flags: isa.Flags{UpdateRes: true},
				Op1Route: isa.RegOp1, Op2Route: isa.RegOp2,
			}
			p.Op1, p.Op2 = 0xFFFF, 1 // -1 < 1
			res, err := p.Step(pe.Inputs{})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.NextAluRes).To(BeEquivalentTo(1))
		})
	})

	It("raises DeprecatedMemOp for legacy memory opcodes", func() {
		p.CM[0] = isa.Instruction{Opcode: isa.Opcode(17)} // legacy LOAD
		_, err := p.Step(pe.Inputs{})
		Expect(err).To(HaveOccurred())
	})

	It("gathers operands from neighbor latches", func() {
		p.CM[0] = isa.Instruction{
			Opcode: isa.ADD, Flags: isa.Flags{UpdateRes: true},
			Op1Route: isa.NIn, Op2Route: isa.EIn,
		}
		res, err := p.Step(pe.Inputs{N: cgra.NewLatch(10), E: cgra.NewLatch(5)})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.NextAluRes).To(BeEquivalentTo(15))
	})

	It("treats an invalid neighbor latch as zero", func() {
		p.CM[0] = isa.Instruction{
			Opcode: isa.ADD, Flags: isa.Flags{UpdateRes: true},
			Op1Route: isa.NIn, Op2Route: isa.Imm, ImmPresent: true, Imm: 9,
		}
		res, err := p.Step(pe.Inputs{N: cgra.Latch{Valid: false, Value: 99}})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.NextAluRes).To(BeEquivalentTo(9))
	})

	Context("loop back-edge", func() {
		It("wraps pc from loop_end to loop_start", func() {
			p.CM[0] = isa.Instruction{
				Opcode: isa.JUMP, LoopStart: 2, LoopEnd: 5, JumpDst: 2,
			}
			for i := 1; i <= 4; i++ {
				p.CM[i+1] = isa.Instruction{Opcode: isa.NOP}
			}
			p.CM[2] = isa.Instruction{Opcode: isa.NOP}
			p.CM[3] = isa.Instruction{Opcode: isa.NOP}
			p.CM[4] = isa.Instruction{Opcode: isa.NOP}
			p.CM[5] = isa.Instruction{Opcode: isa.NOP}

			res, err := p.Step(pe.Inputs{})
			Expect(err).NotTo(HaveOccurred())
			p.Commit(res)
			Expect(p.PC).To(BeEquivalentTo(2))

			var trace []uint8
			for n := 0; n < 8; n++ {
				trace = append(trace, p.PC)
				res, err := p.Step(pe.Inputs{})
				Expect(err).NotTo(HaveOccurred())
				p.Commit(res)
			}
			Expect(trace).To(Equal([]uint8{2, 3, 4, 5, 2, 3, 4, 5}))
		})
	})

	It("commits the output latch from reg_alu_res", func() {
		p.CM[0] = isa.Instruction{
			Opcode: isa.ADD, Flags: isa.Flags{UpdateRes: true},
			Op1Route: isa.RegOp1, Op2Route: isa.Imm, ImmPresent: true, Imm: 7,
		}
		res, err := p.Step(pe.Inputs{})
		Expect(err).NotTo(HaveOccurred())
		p.Commit(res)
		Expect(p.Output.Valid).To(BeTrue())
		Expect(p.Output.Value).To(BeEquivalentTo(7))
	})
})
