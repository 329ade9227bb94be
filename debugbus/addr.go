// Package debugbus implements the optional global address bus: a 19-bit
// address space that reaches into a running Grid's PEs, AGUs, and DMs from
// outside the synchronous tick, for a host (CLI, test harness, future GUI)
// to preload or inspect state. The bus is deliberately kept out of
// Grid.Tick() — its read/write semantics are not part of the tick flow —
// so the decode and access logic in this file never touches Grid.Tick
// itself.
package debugbus

import (
	"fmt"
	"strconv"

	"github.com/sarchlab/pace/dm"
	"github.com/sarchlab/pace/grid"
	"github.com/sarchlab/pace/isa"
)

// Target is the top-level selector at bits [18:17] of a bus address.
type Target int

const (
	TargetPE Target = iota
	TargetDM
	TargetLUT      // reserved
	TargetClusterExec // reserved
)

// PESlot is the PE-side sub-selector at bits [9:8].
type PESlot int

const (
	SlotPECM PESlot = iota
	SlotAguCM
	SlotAguArf
	SlotMaxIter
)

// Addr is a decoded 19-bit bus address.
type Addr struct {
	Target Target

	// PE side
	PEIndex int // bits [15:10], row-major y*width+x
	PESlot  PESlot
	Slot    int // bits [7:4], CM/ARF entry index

	// DM side
	Right     bool // bit [16]
	DMIndex   int  // bits [15:14]
	ByteOffset int // bits [9:0]
}

// ErrReserved reports an access to a reserved top-level target.
type ErrReserved struct{ Target Target }

func (e *ErrReserved) Error() string {
	return fmt.Sprintf("debugbus: target selector %d is reserved", e.Target)
}

// Decode splits a 19-bit address into its fields. It does not validate that
// the decoded indices are in range for any particular Grid — Read/Write do
// that, since range depends on the Grid's size.
func Decode(addr uint32) (Addr, error) {
	addr &= 0x7FFFF // 19 bits

	switch Target(addr >> 17 & 0x3) {
	case TargetPE:
		return Addr{
			Target:  TargetPE,
			PEIndex: int(addr >> 10 & 0x3F),
			PESlot:  PESlot(addr >> 8 & 0x3),
			Slot:    int(addr >> 4 & 0xF),
		}, nil
	case TargetDM:
		return Addr{
			Target:     TargetDM,
			Right:      addr>>16&0x1 != 0,
			DMIndex:    int(addr >> 14 & 0x3),
			ByteOffset: int(addr & 0x3FF),
		}, nil
	default:
		return Addr{}, &ErrReserved{Target: Target(addr >> 17 & 0x3)}
	}
}

// Read performs a debug read against g, returning the 64-bit wire value for
// a.Target's slot. PE-CM and AGU-CM reads return the instruction re-encoded
// as a 64-bit word; AGU-ARF and max_iter reads zero-extend.
func Read(g *grid.Grid, a Addr) (uint64, error) {
	switch a.Target {
	case TargetPE:
		y, x := a.PEIndex/g.Width, a.PEIndex%g.Width
		if a.PEIndex >= g.Width*g.Height {
			return 0, fmt.Errorf("debugbus: PE index %d out of range", a.PEIndex)
		}
		switch a.PESlot {
		case SlotPECM:
			return instructionToWord(g.PE(y, x).CM[a.Slot]), nil
		case SlotAguCM:
			au := g.AGU(y, x)
			if au == nil {
				return 0, fmt.Errorf("debugbus: PE(%d,%d) has no AGU", y, x)
			}
			return uint64(isa.EncodeAguByte(au.CM[a.Slot])), nil
		case SlotAguArf:
			au := g.AGU(y, x)
			if au == nil {
				return 0, fmt.Errorf("debugbus: PE(%d,%d) has no AGU", y, x)
			}
			return uint64(au.Arf[a.Slot]), nil
		case SlotMaxIter:
			au := g.AGU(y, x)
			if au == nil {
				return 0, fmt.Errorf("debugbus: PE(%d,%d) has no AGU", y, x)
			}
			return uint64(au.MaxCount), nil
		}
		return 0, fmt.Errorf("debugbus: unreachable PE slot %d", a.PESlot)
	case TargetDM:
		d := dmAt(g, a)
		if d == nil {
			return 0, fmt.Errorf("debugbus: DM index %d (right=%v) out of range", a.DMIndex, a.Right)
		}
		if a.ByteOffset+8 > dm.Size {
			return 0, fmt.Errorf("debugbus: byte offset %d has no room for a doubleword", a.ByteOffset)
		}
		return bytesToWord(d.Bytes, a.ByteOffset), nil
	default:
		return 0, &ErrReserved{Target: a.Target}
	}
}

func bytesToWord(b [dm.Size]byte, offset int) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[offset+i]) << (8 * i)
	}
	return v
}

func writeWordToBytes(b *[dm.Size]byte, offset int, v uint64) {
	for i := 0; i < 8; i++ {
		b[offset+i] = byte(v >> (8 * i))
	}
}

// Write performs a debug write against g with the given 64-bit wire value.
func Write(g *grid.Grid, a Addr, value uint64) error {
	switch a.Target {
	case TargetPE:
		if a.PEIndex >= g.Width*g.Height {
			return fmt.Errorf("debugbus: PE index %d out of range", a.PEIndex)
		}
		y, x := a.PEIndex/g.Width, a.PEIndex%g.Width
		switch a.PESlot {
		case SlotPECM:
			inst, err := wordToInstruction(value)
			if err != nil {
				return err
			}
			g.PE(y, x).CM[a.Slot] = inst
			return nil
		case SlotAguCM:
			au := g.AGU(y, x)
			if au == nil {
				return fmt.Errorf("debugbus: PE(%d,%d) has no AGU", y, x)
			}
			au.CM[a.Slot] = isa.DecodeAguByte(byte(value))
			return nil
		case SlotAguArf:
			au := g.AGU(y, x)
			if au == nil {
				return fmt.Errorf("debugbus: PE(%d,%d) has no AGU", y, x)
			}
			au.SeedAddress(a.Slot, uint16(value))
			return nil
		case SlotMaxIter:
			au := g.AGU(y, x)
			if au == nil {
				return fmt.Errorf("debugbus: PE(%d,%d) has no AGU", y, x)
			}
			au.MaxCount = uint32(value)
			return nil
		}
		return fmt.Errorf("debugbus: unreachable PE slot %d", a.PESlot)
	case TargetDM:
		d := dmAt(g, a)
		if d == nil {
			return fmt.Errorf("debugbus: DM index %d (right=%v) out of range", a.DMIndex, a.Right)
		}
		if a.ByteOffset+8 > dm.Size {
			return fmt.Errorf("debugbus: byte offset %d has no room for a doubleword", a.ByteOffset)
		}
		writeWordToBytes(&d.Bytes, a.ByteOffset, value)
		return nil
	default:
		return &ErrReserved{Target: a.Target}
	}
}

// dmAt resolves a.DMIndex/a.Right to a DM, honoring grid.New's row-pairing
// layout: the left edge's DMs occupy [0, leftCount) and the right edge's (if
// any) follow at [leftCount, leftCount+rightCount), per DESIGN.md's
// Double-Sided topology disposition.
func dmAt(g *grid.Grid, a Addr) *dm.DataMemory {
	leftCount := (g.Height + 1) / 2
	idx := a.DMIndex
	if a.Right {
		idx += leftCount
	}
	if idx >= g.DMCount() {
		return nil
	}
	return g.DM(idx)
}

func instructionToWord(inst isa.Instruction) uint64 {
	bits := isa.EncodeBinary(inst)
	v, _ := strconv.ParseUint(bits, 2, 64)
	return v
}

func wordToInstruction(v uint64) (isa.Instruction, error) {
	bits := fmt.Sprintf("%064b", v)
	return isa.DecodeBinary(bits)
}
