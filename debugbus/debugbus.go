// Debug bus component scaffolding: Comp plugs one port into an akita
// connection and answers ReadReq/WriteReq against a bound *grid.Grid. It is
// an asynchronous side channel distinct from Grid.Tick() — Comp's own Tick
// drains at most one bus request per akita cycle and resolves it
// synchronously against the Grid, since the Grid has no tick-to-tick
// pipeline latency to model here.
package debugbus

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/pace/grid"
)

// Comp is the debug bus's akita component. One Comp serves exactly one
// Grid; attach it to a simulation alongside the Grid's owning driver and
// reach it over its Port from a test harness or CLI tool.
type Comp struct {
	*sim.TickingComponent

	port *debugPort
	g    *grid.Grid
}

// Port returns the Comp's single message port, for PlugIn-ing into a
// directconnection the same way any two akita components are wired.
func (c *Comp) Port() sim.Port { return c.port }

// Tick drains at most one request from the incoming buffer and answers it.
// Per akita's TickingComponent contract, Tick reports whether it made
// progress so the engine knows whether to keep scheduling this component.
func (c *Comp) Tick(now sim.VTimeInSec) (madeProgress bool) {
	msg := c.port.RetrieveIncoming()
	if msg == nil {
		return false
	}

	rb := ReqBuilder{}.WithSrc(c.port.AsRemote()).WithSendTime(now)

	switch req := msg.(type) {
	case *ReadReq:
		rb = rb.WithDst(req.Meta().Src)
		value, err := c.handleRead(req.Addr)
		if err != nil {
			c.port.Send(rb.BuildRsp(0, err.Error()))
		} else {
			c.port.Send(rb.BuildRsp(value, ""))
		}
	case *WriteReq:
		rb = rb.WithDst(req.Meta().Src)
		err := c.handleWrite(req.Addr, req.Value)
		if err != nil {
			c.port.Send(rb.BuildRsp(0, err.Error()))
		} else {
			c.port.Send(rb.BuildRsp(0, ""))
		}
	}

	return true
}

func (c *Comp) handleRead(rawAddr uint32) (uint64, error) {
	a, err := Decode(rawAddr)
	if err != nil {
		return 0, err
	}
	return Read(c.g, a)
}

func (c *Comp) handleWrite(rawAddr uint32, value uint64) error {
	a, err := Decode(rawAddr)
	if err != nil {
		return err
	}
	return Write(c.g, a, value)
}

// Builder constructs a Comp using the WithEngine/WithFreq/Build shape
// shared by every akita component in this codebase.
type Builder struct {
	engine sim.Engine
	freq   sim.Freq
	g      *grid.Grid
}

func NewBuilder() Builder { return Builder{freq: 1 * sim.GHz} }

func (b Builder) WithEngine(engine sim.Engine) Builder { b.engine = engine; return b }
func (b Builder) WithFreq(freq sim.Freq) Builder       { b.freq = freq; return b }
func (b Builder) WithGrid(g *grid.Grid) Builder        { b.g = g; return b }

// Build creates a named Comp bound to the Grid set via WithGrid.
func (b Builder) Build(name string) *Comp {
	if b.g == nil {
		panic("debugbus: Builder.Build requires WithGrid")
	}

	c := &Comp{g: b.g}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)
	c.port = newDebugPort(c, 4, name+".Port")

	return c
}
