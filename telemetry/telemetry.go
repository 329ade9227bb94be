// Package telemetry provides PACE's structured logging and human-readable
// state dumps: custom slog levels for trace/waveform detail, one
// structured record per PE per cycle, and go-pretty tables for register,
// ARF and DM-region snapshots.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"
)

const (
	// LevelTrace is below Info: per-cycle, per-PE detail too verbose for
	// normal runs.
	LevelTrace slog.Level = slog.LevelInfo - 2
	// LevelWaveform is above Info: one structured record per cycle,
	// intended for waveform-style post-processing rather than console
	// reading.
	LevelWaveform slog.Level = slog.LevelInfo + 2
)

// CycleLog is the canonical structured record for one PE at one cycle,
// emitted at LevelWaveform. Field tags mirror core/util.go's PEStateLog.
type CycleLog struct {
	Cycle     uint64 `json:"cycle"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	PC        uint8  `json:"pc"`
	Opcode    string `json:"opcode"`
	AluRes    uint16 `json:"alu_res"`
	Predicate bool   `json:"predicate"`
	Triggered bool   `json:"agu_trigger"`
}

// DmContentionLog describes a same-cycle double-store, the event
// Grid.Observer.DmContention reports; LogDmContention emits it at LevelWarn.
type DmContentionLog struct {
	Cycle uint64 `json:"cycle"`
	DM    int    `json:"dm_index"`
}

// FinishedLog describes every AGU in a Grid having reported
// end_of_execution, the event Grid.Observer.Finished reports; LogFinished
// emits it at LevelInfo.
type FinishedLog struct {
	Cycle uint64 `json:"cycle"`
}

// LogCycle emits one PE's per-cycle state at LevelWaveform.
func LogCycle(l CycleLog) {
	slog.Log(context.Background(), LevelWaveform, "cycle",
		slog.Uint64("cycle", l.Cycle),
		slog.Int("x", l.X), slog.Int("y", l.Y),
		slog.Any("pc", l.PC),
		slog.String("opcode", l.Opcode),
		slog.Any("alu_res", l.AluRes),
		slog.Bool("predicate", l.Predicate),
		slog.Bool("agu_trigger", l.Triggered),
	)
}

// LogDmContention emits a DmContentionLog at LevelWarn.
func LogDmContention(l DmContentionLog) {
	slog.Warn("dm contention", slog.Uint64("cycle", l.Cycle), slog.Int("dm_index", l.DM))
}

// LogFinished emits a FinishedLog at LevelInfo.
func LogFinished(l FinishedLog) {
	slog.Info("grid finished", slog.Uint64("cycle", l.Cycle))
}

// Trace logs at LevelTrace, the per-cycle-detail level most runs discard.
func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}

// RegisterSnapshot is the subset of a PE's state worth dumping to a human.
type RegisterSnapshot struct {
	X, Y               int
	PC                 uint8
	Op1, Op2, AluRes   uint16
	Predicate          bool
	LoopStart, LoopEnd uint8
}

// DumpRegisters renders a grid's worth of PE register snapshots as a
// go-pretty table, in the style of core/util.go's PrintState register
// table.
func DumpRegisters(snapshots []RegisterSnapshot) string {
	t := table.NewWriter()
	t.SetTitle("PE Registers")
	t.AppendHeader(table.Row{"X", "Y", "PC", "Op1", "Op2", "AluRes", "Pred", "Loop"})
	for _, s := range snapshots {
		t.AppendRow(table.Row{
			s.X, s.Y, s.PC,
			fmt.Sprintf("%#04x", s.Op1), fmt.Sprintf("%#04x", s.Op2), fmt.Sprintf("%#04x", s.AluRes),
			s.Predicate,
			fmt.Sprintf("[%d,%d]", s.LoopStart, s.LoopEnd),
		})
	}
	return t.Render()
}

// ArfSnapshot is one AGU's address register file, for DumpArf.
type ArfSnapshot struct {
	Label string
	Arf   [16]uint16
}

// DumpArf renders a set of AGU address register files as a go-pretty
// table, 16-wide.
func DumpArf(snapshots []ArfSnapshot) string {
	t := table.NewWriter()
	t.SetTitle("AGU Address Register Files")
	header := table.Row{"AGU"}
	for i := 0; i < 16; i++ {
		header = append(header, fmt.Sprintf("R%d", i))
	}
	t.AppendHeader(header)
	for _, s := range snapshots {
		row := table.Row{s.Label}
		for _, v := range s.Arf {
			row = append(row, fmt.Sprintf("%#04x", v))
		}
		t.AppendRow(row)
	}
	return t.Render()
}

// DumpDmRegion renders a contiguous byte range of a Data Memory as a
// 16-byte-per-row hex table, in the style of a classic memory dump.
func DumpDmRegion(label string, bytes []byte, base int) string {
	t := table.NewWriter()
	t.SetTitle(label)
	t.AppendHeader(table.Row{"Addr", "+0", "+1", "+2", "+3", "+4", "+5", "+6", "+7", "+8", "+9", "+A", "+B", "+C", "+D", "+E", "+F"})
	for off := 0; off < len(bytes); off += 16 {
		row := table.Row{fmt.Sprintf("%#04x", base+off)}
		for i := 0; i < 16; i++ {
			if off+i < len(bytes) {
				row = append(row, fmt.Sprintf("%02x", bytes[off+i]))
			} else {
				row = append(row, "")
			}
		}
		t.AppendRow(row)
	}
	return t.Render()
}
