package grid

// Observer lets a host (CLI, test, or a future GUI) subscribe to the two
// dynamic, non-fatal events a Tick can raise, without the Grid importing
// any presentation concern. A plain Go interface, since the synchronous
// core has no akita component of its own to register a monitor against.
type Observer interface {
	// DmContention reports a same-cycle double-store resolved by the
	// left-edge-wins tie-break.
	DmContention(cycle uint64, dmIndex int)

	// Finished reports that every AGU in the Grid has asserted
	// end_of_execution.
	Finished(cycle uint64)
}
