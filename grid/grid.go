// Package grid implements the PACE Grid: the synchronous tick that
// advances every PE, AGU, and DM together, and the Single-Sided /
// Double-Sided mesh topologies that wire PEs to their shared DMs. Tick
// itself is a plain, synchronous Go method with no asynchronous
// component graph underneath it.
package grid

import (
	"fmt"

	"github.com/sarchlab/pace/agu"
	"github.com/sarchlab/pace/cgra"
	"github.com/sarchlab/pace/dm"
	"github.com/sarchlab/pace/pe"
)

// Topology selects which edges of the mesh carry Data Memories.
type Topology int

const (
	SingleSided Topology = iota
	DoubleSided
)

// dmBinding records which DM, and which of its two ports, an edge PE
// drives.
type dmBinding struct {
	dm   int
	port dm.Port
}

// Grid owns every PE, AGU, and DM in the mesh. PEs never reach into each
// other directly; all cross-PE state flows through the Grid's tick.
type Grid struct {
	Width, Height int
	Topology      Topology
	Cycle         uint64

	pes      []*pe.PE
	agus     []*agu.AGU // nil for non-edge PEs, indexed like pes
	dms      []*dm.DataMemory
	bindings []*dmBinding // nil for PEs with no DM binding, indexed like pes
	dmemOut  []cgra.Latch // last committed DM load result per PE, indexed like pes

	Observer Observer
}

// New builds a Grid of the given size and topology. PEs start in their
// Reset state (pe.New()); AGUs start unconfigured (MaxCount 0, NOP mode) —
// callers configure each edge AGU's program and ConfiguredMode through
// AGU(y, x) before the first Tick.
func New(width, height int, topology Topology) *Grid {
	g := &Grid{
		Width: width, Height: height, Topology: topology,
		pes:      make([]*pe.PE, width*height),
		agus:     make([]*agu.AGU, width*height),
		bindings: make([]*dmBinding, width*height),
		dmemOut:  make([]cgra.Latch, width*height),
	}
	for i := range g.pes {
		g.pes[i] = pe.New()
	}

	rowPairs := (height + 1) / 2
	leftDMCount := rowPairs
	rightDMCount := 0
	if topology == DoubleSided {
		rightDMCount = rowPairs
	}
	g.dms = make([]*dm.DataMemory, leftDMCount+rightDMCount)
	for i := range g.dms {
		g.dms[i] = dm.New()
	}

	for y := 0; y < height; y++ {
		pairDM := y / 2
		port := dm.Left
		if y%2 != 0 {
			port = dm.Right
		}

		leftIdx := g.index(0, y)
		g.agus[leftIdx] = agu.New(0, agu.NOP)
		g.bindings[leftIdx] = &dmBinding{dm: pairDM, port: port}

		if topology == DoubleSided && width > 1 {
			rightIdx := g.index(width-1, y)
			g.agus[rightIdx] = agu.New(0, agu.NOP)
			g.bindings[rightIdx] = &dmBinding{dm: leftDMCount + pairDM, port: port}
		}
	}

	return g
}

func (g *Grid) index(x, y int) int { return y*g.Width + x }

// PE returns the PE at mesh position (y, x).
func (g *Grid) PE(y, x int) *pe.PE { return g.pes[g.index(x, y)] }

// AGU returns the AGU bound to the PE at (y, x), or nil if that PE has no
// AGU (an interior PE with no DM edge).
func (g *Grid) AGU(y, x int) *agu.AGU { return g.agus[g.index(x, y)] }

// DM returns the i-th Data Memory.
func (g *Grid) DM(i int) *dm.DataMemory { return g.dms[i] }

// DMCount returns how many Data Memories this Grid's topology created.
func (g *Grid) DMCount() int { return len(g.dms) }

func (g *Grid) neighbor(x, y int, side cgra.Side) (int, bool) {
	dx, dy := side.Delta()
	nx, ny := x+dx, y+dy
	if nx < 0 || nx >= g.Width || ny < 0 || ny >= g.Height {
		return 0, false
	}
	return g.index(nx, ny), true
}

// FatalError wraps the component error that aborted a Tick: the Grid's
// state is left exactly as it was before the call.
type FatalError struct {
	Cycle uint64
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("grid: cycle %d: %v", e.Cycle, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Tick advances every PE, AGU, and DM by one cycle through a five-step
// schedule. It either commits a single, deterministic next state for the
// whole Grid, or returns a *FatalError and mutates nothing.
func (g *Grid) Tick() error {
	type peOutcome struct {
		idx int
		res pe.StepResult
	}
	peOutcomes := make([]peOutcome, 0, len(g.pes))

	// Step 1-2: snapshot + evaluate every PE against last cycle's latches.
	for idx, p := range g.pes {
		x, y := idx%g.Width, idx/g.Width
		in := pe.Inputs{DmemOut: g.dmemOut[idx]}
		if n, ok := g.neighbor(x, y, cgra.North); ok {
			in.N = g.pes[n].Output
		}
		if s, ok := g.neighbor(x, y, cgra.South); ok {
			in.S = g.pes[s].Output
		}
		if e, ok := g.neighbor(x, y, cgra.East); ok {
			in.E = g.pes[e].Output
		}
		if w, ok := g.neighbor(x, y, cgra.West); ok {
			in.W = g.pes[w].Output
		}

		res, err := p.Step(in)
		if err != nil {
			return &FatalError{Cycle: g.Cycle, Err: fmt.Errorf("PE(%d,%d): %w", y, x, err)}
		}
		peOutcomes = append(peOutcomes, peOutcome{idx, res})
	}

	// Step 2b: AGU step and DM request staging, coupling each edge PE's
	// AguTrigger to the DM its AGU is bound to.
	type aguOutcome struct {
		idx       int
		access    agu.StagedAccess
		storeData uint16
	}
	var aguOutcomes []aguOutcome
	for _, po := range peOutcomes {
		a := g.agus[po.idx]
		if a == nil {
			continue
		}
		access, err := a.Step(po.res.AguTrigger)
		if err != nil {
			return &FatalError{Cycle: g.Cycle, Err: fmt.Errorf("AGU(%d): %w", po.idx, err)}
		}
		if access.Valid && int(access.Addr)+int(dm.Word) > dm.Size {
			fault := &dm.MemFault{Kind: dm.OutOfRange, Addr: int(access.Addr), Size: int(dm.Word)}
			return &FatalError{Cycle: g.Cycle, Err: fmt.Errorf("DM[%d]: %w", g.bindings[po.idx].dm, fault)}
		}
		aguOutcomes = append(aguOutcomes, aguOutcome{po.idx, access, po.res.StoreData})
	}
	for _, ao := range aguOutcomes {
		access := ao.access
		if !access.Valid {
			continue
		}

		b := g.bindings[ao.idx]
		switch access.Mode {
		case agu.STORE:
			if err := g.dms[b.dm].Stage(b.port, true, int(access.Addr), dm.Word, uint64(ao.storeData)); err != nil {
				return &FatalError{Cycle: g.Cycle, Err: fmt.Errorf("DM[%d]: %w", b.dm, err)}
			}
		case agu.LOAD:
			if err := g.dms[b.dm].Stage(b.port, false, int(access.Addr), dm.Word, 0); err != nil {
				return &FatalError{Cycle: g.Cycle, Err: fmt.Errorf("DM[%d]: %w", b.dm, err)}
			}
		}
	}

	// Step 3: arbitrate and commit every touched DM.
	dmResults := make([]dm.CommitResult, len(g.dms))
	for i, d := range g.dms {
		dmResults[i] = d.Commit()
		if dmResults[i].Contended && g.Observer != nil {
			g.Observer.DmContention(g.Cycle, i)
		}
	}

	// Step 4a: commit AGU bookkeeping (Mode/EndOfExecution for every AGU
	// that was stepped, plus stride/PC/iteration state for valid accesses)
	// and refresh each bound PE's DMEM_OUT latch for next cycle. Every
	// Step above already evaluated cleanly, so it's safe to fold all of
	// them into state now.
	nextDmemOut := make([]cgra.Latch, len(g.pes))
	for _, ao := range aguOutcomes {
		g.agus[ao.idx].Commit(ao.access)
		if !ao.access.Valid || ao.access.Mode != agu.LOAD {
			continue
		}
		b := g.bindings[ao.idx]
		nextDmemOut[ao.idx] = cgra.NewLatch(uint16(dmResults[b.dm].LoadValues[b.port]))
	}
	g.dmemOut = nextDmemOut

	// Step 4b: commit PE next-states.
	for _, po := range peOutcomes {
		g.pes[po.idx].Commit(po.res)
	}
	for idx, a := range g.agus {
		if a != nil {
			g.pes[idx].Halted = a.EndOfExecution
		}
	}

	// Step 5: advance the cycle counter and check for completion.
	g.Cycle++
	if g.Observer != nil && g.allAGUsFinished() {
		g.Observer.Finished(g.Cycle)
	}
	return nil
}

func (g *Grid) allAGUsFinished() bool {
	found := false
	for _, a := range g.agus {
		if a == nil {
			continue
		}
		found = true
		if !a.EndOfExecution {
			return false
		}
	}
	return found
}
