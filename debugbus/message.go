package debugbus

import "github.com/sarchlab/akita/v4/sim"

// ReadReq asks the Comp at the other end of the bus for the 64-bit word at
// Addr. Grounded on cgra/msg.go's MoveMsg/MoveMsgBuilder shape, adapted to
// v4's RemotePort-addressed sim.MsgMeta (core/port.go's usage, not v3's
// resolved sim.Port fields).
type ReadReq struct {
	sim.MsgMeta
	Addr uint32
}

func (m *ReadReq) Meta() *sim.MsgMeta { return &m.MsgMeta }

// WriteReq asks the Comp to store Value at Addr.
type WriteReq struct {
	sim.MsgMeta
	Addr  uint32
	Value uint64
}

func (m *WriteReq) Meta() *sim.MsgMeta { return &m.MsgMeta }

// Rsp answers a ReadReq (Value populated) or a WriteReq (Value ignored), or
// carries Err's text when the decode/access failed.
type Rsp struct {
	sim.MsgMeta
	Value uint64
	Err   string
}

func (m *Rsp) Meta() *sim.MsgMeta { return &m.MsgMeta }

// ReqBuilder builds ReadReq/WriteReq messages.
type ReqBuilder struct {
	src, dst sim.RemotePort
	sendTime sim.VTimeInSec
}

func (b ReqBuilder) WithSrc(src sim.RemotePort) ReqBuilder { b.src = src; return b }
func (b ReqBuilder) WithDst(dst sim.RemotePort) ReqBuilder { b.dst = dst; return b }
func (b ReqBuilder) WithSendTime(t sim.VTimeInSec) ReqBuilder { b.sendTime = t; return b }

func (b ReqBuilder) BuildRead(addr uint32) *ReadReq {
	return &ReadReq{
		MsgMeta: sim.MsgMeta{ID: sim.GetIDGenerator().Generate(), Src: b.src, Dst: b.dst, SendTime: b.sendTime},
		Addr:    addr,
	}
}

func (b ReqBuilder) BuildWrite(addr uint32, value uint64) *WriteReq {
	return &WriteReq{
		MsgMeta: sim.MsgMeta{ID: sim.GetIDGenerator().Generate(), Src: b.src, Dst: b.dst, SendTime: b.sendTime},
		Addr:    addr,
		Value:   value,
	}
}

func (b ReqBuilder) BuildRsp(value uint64, errText string) *Rsp {
	return &Rsp{
		MsgMeta: sim.MsgMeta{ID: sim.GetIDGenerator().Generate(), Src: b.src, Dst: b.dst, SendTime: b.sendTime},
		Value:   value,
		Err:     errText,
	}
}
