package debugbus

import (
	"fmt"
	"sync"

	"github.com/sarchlab/akita/v4/sim"
)

// debugPort is a single-channel message port, trimmed from core/port.go's
// defaultPort: the debug bus only ever has one request outstanding per
// cycle, so it carries none of core/port.go's ExtPort multichannel
// machinery.
type debugPort struct {
	sim.HookableBase

	lock sync.Mutex
	name string
	comp sim.Component
	conn sim.Connection

	incomingBuf sim.Buffer
	outgoingBuf sim.Buffer
}

func newDebugPort(comp sim.Component, bufCap int, name string) *debugPort {
	return &debugPort{
		name:        name,
		comp:        comp,
		incomingBuf: sim.NewBuffer(name+".Incoming", bufCap),
		outgoingBuf: sim.NewBuffer(name+".Outgoing", bufCap),
	}
}

func (p *debugPort) Name() string                 { return p.name }
func (p *debugPort) Component() sim.Component      { return p.comp }
func (p *debugPort) AsRemote() sim.RemotePort      { return sim.RemotePort(p.name) }

func (p *debugPort) SetConnection(conn sim.Connection) {
	if p.conn != nil {
		panic(fmt.Sprintf("debugbus: port %s already connected", p.name))
	}
	p.conn = conn
}

func (p *debugPort) CanSend() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.outgoingBuf.CanPush()
}

func (p *debugPort) Send(msg sim.Msg) *sim.SendError {
	p.lock.Lock()
	if msg.Meta().Src != sim.RemotePort(p.name) {
		p.lock.Unlock()
		panic("debugbus: sending port is not msg src")
	}
	if msg.Meta().Dst == "" {
		p.lock.Unlock()
		panic("debugbus: msg destination is empty")
	}
	if !p.outgoingBuf.CanPush() {
		p.lock.Unlock()
		return sim.NewSendError()
	}

	wasEmpty := p.outgoingBuf.Size() == 0
	p.outgoingBuf.Push(msg)
	p.lock.Unlock()

	if wasEmpty {
		p.conn.NotifySend()
	}
	return nil
}

func (p *debugPort) Deliver(msg sim.Msg) *sim.SendError {
	p.lock.Lock()
	if !p.incomingBuf.CanPush() {
		p.lock.Unlock()
		return sim.NewSendError()
	}
	wasEmpty := p.incomingBuf.Size() == 0
	p.incomingBuf.Push(msg)
	p.lock.Unlock()

	if p.comp != nil && wasEmpty {
		p.comp.NotifyRecv(p)
	}
	return nil
}

func (p *debugPort) RetrieveIncoming() sim.Msg {
	p.lock.Lock()
	defer p.lock.Unlock()

	item := p.incomingBuf.Pop()
	if item == nil {
		return nil
	}
	msg := item.(sim.Msg)
	if p.incomingBuf.Size() == p.incomingBuf.Capacity()-1 {
		p.conn.NotifyAvailable(p)
	}
	return msg
}

func (p *debugPort) RetrieveOutgoing() sim.Msg {
	p.lock.Lock()
	defer p.lock.Unlock()

	item := p.outgoingBuf.Pop()
	if item == nil {
		return nil
	}
	msg := item.(sim.Msg)
	if p.outgoingBuf.Size() == p.outgoingBuf.Capacity()-1 {
		p.comp.NotifyPortFree(p)
	}
	return msg
}

func (p *debugPort) PeekIncoming() sim.Msg {
	p.lock.Lock()
	defer p.lock.Unlock()
	item := p.incomingBuf.Peek()
	if item == nil {
		return nil
	}
	return item.(sim.Msg)
}

func (p *debugPort) PeekOutgoing() sim.Msg {
	p.lock.Lock()
	defer p.lock.Unlock()
	item := p.outgoingBuf.Peek()
	if item == nil {
		return nil
	}
	return item.(sim.Msg)
}

func (p *debugPort) NotifyAvailable() {
	if p.comp != nil {
		p.comp.NotifyPortFree(p)
	}
}
