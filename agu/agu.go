// Package agu implements the Address Generation Unit state machine: a
// 16-entry control memory and a 16-entry, 13-bit address register file,
// coupled to its edge PE's agu_trigger bit and to a Data Memory
// transaction in the same cycle.
package agu

import (
	"fmt"

	"github.com/sarchlab/pace/isa"
)

// Mode is the memory operation the AGU currently presents to its DM.
type Mode int

const (
	NOP Mode = iota
	LOAD
	STORE
)

// ArfMask is the address register width: 13 bits.
const ArfMask = 0x1FFF

// ExecErrorKind is the closed set of dynamic AGU errors.
type ExecErrorKind int

const (
	// AguUnderflow: sampling an ARF entry never initialized by a load.
	AguUnderflow ExecErrorKind = iota
)

// ExecError is a dynamic AGU execution error.
type ExecError struct {
	Kind ExecErrorKind
	Msg  string
}

func (e *ExecError) Error() string { return e.Msg }

// AGU owns its 16-entry control memory and 16-entry address register file.
// One AGU is driven by exactly one edge PE's agu_trigger bit.
type AGU struct {
	CM  [16]isa.AguInstr
	Arf [16]uint16 // 13-bit values, masked to ArfMask
	initialized [16]bool

	PC            uint8
	IterCounter   uint32
	MaxCount      uint32
	WrapAt        uint8 // mandated 16; exposed for a future hardware-confirmed value

	// ConfiguredMode is the AGU's static LOAD/STORE role, set once when the
	// AGU is configured (folder loader or test setup) and never changed by
	// Step/Commit. Distinct from Mode below, which is this cycle's observed
	// value (NOP whenever untriggered or finished, regardless of
	// ConfiguredMode).
	ConfiguredMode Mode
	Mode           Mode
	EndOfExecution bool
}

// New returns a fresh AGU with the mandated wrap-at-16 behavior. mode is the
// AGU's static LOAD/STORE role for its whole run.
func New(maxCount uint32, mode Mode) *AGU {
	return &AGU{MaxCount: maxCount, WrapAt: 16, ConfiguredMode: mode}
}

// SeedAddress initializes ARF entry i directly, as if a prior LOAD had
// sampled it — used by test setups and the folder loader to preload
// addresses that a program never computes itself.
func (a *AGU) SeedAddress(i int, v uint16) {
	a.Arf[i] = v & ArfMask
	a.initialized[i] = true
}

// StagedAccess is what an AGU presents to its Data Memory this cycle: the
// sampled address and the pending mode, or a no-op if the AGU wasn't
// triggered or has finished all its iterations. NextMode and
// NextEndOfExecution are the Mode/EndOfExecution values Commit folds back
// into the AGU; Step itself never mutates the receiver.
type StagedAccess struct {
	Valid bool
	Mode  Mode
	Addr  uint16

	NextMode           Mode
	NextEndOfExecution bool
}

// Step evaluates the AGU for one cycle against its current state. triggered
// mirrors the coupled edge PE's agu_trigger bit for this cycle; the mode
// presented to the DM is always a.ConfiguredMode while triggered, NOP
// otherwise — the memory mode is forced to NOP regardless of the
// configured role when agu_trigger is low.
//
// Step is pure, the same way pe.PE.Step is: it neither mutates a nor
// returns early having mutated it on another path, so a caller evaluating
// several AGUs in one cycle can fail partway through (e.g. AguUnderflow on
// a later AGU) without having to undo an earlier one's Mode or
// EndOfExecution. The caller performs the DM transaction against the
// returned StagedAccess, then calls Commit — once the whole cycle has
// evaluated without error — to fold Mode, EndOfExecution, and stride/PC/
// iteration bookkeeping back into the AGU's state.
func (a *AGU) Step(triggered bool) (StagedAccess, error) {
	if a.EndOfExecution {
		return StagedAccess{NextMode: NOP, NextEndOfExecution: true}, nil
	}
	if !triggered {
		return StagedAccess{NextMode: NOP}, nil
	}

	// On the next triggering cycle, before performing a transaction, the
	// AGU checks iter_counter == max_count — checked here, at the start of
	// the triggering cycle that would otherwise perform the transaction.
	if a.IterCounter == a.MaxCount {
		return StagedAccess{NextMode: NOP, NextEndOfExecution: true}, nil
	}

	if !a.initialized[a.PC] {
		// The address register at this slot has never been seeded or
		// produced by a prior stride.
		return StagedAccess{}, &ExecError{Kind: AguUnderflow, Msg: fmt.Sprintf("AGU ARF[%d] sampled before initialization", a.PC)}
	}

	addr := a.Arf[a.PC]
	return StagedAccess{
		Valid: true, Mode: a.ConfiguredMode, Addr: addr,
		NextMode: a.ConfiguredMode,
	}, nil
}

// Commit applies the StagedAccess a prior Step returned: Mode and
// EndOfExecution always update, and when the access was Valid, the
// sampled register is strided, pc advances (wrapping at WrapAt), and
// iter_counter bumps on wraparound. Call once per cycle for every AGU that
// was stepped, regardless of Valid, only after the whole cycle has
// evaluated without error.
func (a *AGU) Commit(access StagedAccess) {
	a.Mode = access.NextMode
	a.EndOfExecution = access.NextEndOfExecution
	if !access.Valid {
		return
	}

	entry := a.CM[a.PC]
	if entry.Mode == isa.AguStrided {
		next := int32(a.Arf[a.PC]) + int32(entry.Stride)
		a.Arf[a.PC] = uint16(next) & ArfMask
	}
	a.initialized[a.PC] = true

	a.PC++
	if a.PC >= a.WrapAt {
		a.PC = 0
		a.IterCounter++
	}
}
