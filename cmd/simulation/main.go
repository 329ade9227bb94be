// simulation runs a PACE setup folder for a fixed number of cycles,
// optionally printing register/ARF snapshots at chosen cycles and dumping
// final Data Memory contents. The run loop itself (load folder, tick N
// times, report) is a small linear main with an atexit.Exit(code) at the
// end.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/pace/grid"
	"github.com/sarchlab/pace/setup"
	"github.com/sarchlab/pace/telemetry"
)

func main() {
	var (
		dir         string
		cycles      int
		snapshotAt  string
		dumpDm      string
		topologyStr string
	)

	cmd := &cobra.Command{
		Use:   "simulation",
		Short: "Run a PACE setup folder for a fixed number of cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(dir, cycles, snapshotAt, dumpDm, topologyStr)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVar(&dir, "dir", "", "setup folder to load (required)")
	cmd.Flags().IntVar(&cycles, "cycles", 0, "number of ticks to run (required)")
	cmd.Flags().StringVar(&snapshotAt, "snapshot-at", "", "comma-separated cycle numbers to print a register/ARF snapshot at")
	cmd.Flags().StringVar(&dumpDm, "dump-dm", "", "path to write final Data Memory contents to")
	cmd.Flags().StringVar(&topologyStr, "topology", "single", "single|double")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(exitCodeFor(err))
		return
	}

	atexit.Exit(0)
}

// exitCode wraps an error with the process exit code it should produce:
// 1 (load error) / 2 (simulation error) / 3 (bad args).
type exitCode struct {
	code int
	err  error
}

func (e *exitCode) Error() string { return e.err.Error() }
func (e *exitCode) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	var ec *exitCode
	if e, ok := err.(*exitCode); ok {
		ec = e
		return ec.code
	}
	return 3
}

func run(dir string, cycles int, snapshotAt, dumpDm, topologyStr string) error {
	if dir == "" || cycles <= 0 {
		return &exitCode{3, fmt.Errorf("--dir and --cycles are required")}
	}

	topology, err := parseTopology(topologyStr)
	if err != nil {
		return &exitCode{3, err}
	}

	snapshots, err := parseSnapshotAt(snapshotAt)
	if err != nil {
		return &exitCode{3, err}
	}

	width, height, err := inferSize(dir)
	if err != nil {
		return &exitCode{1, err}
	}

	g, err := setup.Load(dir, width, height, topology)
	if err != nil {
		return &exitCode{1, err}
	}

	for cycle := 1; cycle <= cycles; cycle++ {
		if err := g.Tick(); err != nil {
			return &exitCode{2, err}
		}
		if snapshots[uint64(cycle)] {
			printSnapshot(g, uint64(cycle))
		}
	}

	if dumpDm != "" {
		if err := writeDmDump(g, dumpDm); err != nil {
			return &exitCode{2, err}
		}
	}

	return nil
}

func parseTopology(s string) (grid.Topology, error) {
	switch strings.ToLower(s) {
	case "", "single":
		return grid.SingleSided, nil
	case "double":
		return grid.DoubleSided, nil
	default:
		return 0, fmt.Errorf("--topology must be single or double, got %q", s)
	}
}

func parseSnapshotAt(s string) (map[uint64]bool, error) {
	out := map[uint64]bool{}
	if s == "" {
		return out, nil
	}
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		n, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("--snapshot-at: %q is not a cycle number", tok)
		}
		out[n] = true
	}
	return out, nil
}

// inferSize loads the optional setup.yaml manifest for width/height, the
// way setup.LoadFolder does, but falls back to the smallest mesh that fits
// every PE-Y{y}X{x} file found — simulation doesn't require a manifest the
// way setup.LoadFolder does.
func inferSize(dir string) (int, int, error) {
	if m, err := setup.LoadManifest(dir + "/setup.yaml"); err == nil && m != nil && m.Width > 0 && m.Height > 0 {
		return m.Width, m.Height, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, err
	}
	width, height := 0, 0
	for _, e := range entries {
		var y, x int
		if n, _ := fmt.Sscanf(e.Name(), "PE-Y%dX%d", &y, &x); n == 2 {
			if x+1 > width {
				width = x + 1
			}
			if y+1 > height {
				height = y + 1
			}
		}
	}
	if width == 0 || height == 0 {
		return 0, 0, fmt.Errorf("%s: no PE-Y{y}X{x} files found and no setup.yaml width/height", dir)
	}
	return width, height, nil
}

func printSnapshot(g *grid.Grid, cycle uint64) {
	var regs []telemetry.RegisterSnapshot
	var arfs []telemetry.ArfSnapshot
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			p := g.PE(y, x)
			regs = append(regs, telemetry.RegisterSnapshot{
				X: x, Y: y, PC: p.PC,
				Op1: p.Op1, Op2: p.Op2, AluRes: p.AluRes,
				Predicate: p.Predicate, LoopStart: p.LoopStart, LoopEnd: p.LoopEnd,
			})
			if a := g.AGU(y, x); a != nil {
				arfs = append(arfs, telemetry.ArfSnapshot{Label: fmt.Sprintf("(%d,%d)", y, x), Arf: a.Arf})
			}
		}
	}
	fmt.Printf("-- snapshot at cycle %d --\n", cycle)
	fmt.Println(telemetry.DumpRegisters(regs))
	fmt.Println(telemetry.DumpArf(arfs))
}

func writeDmDump(g *grid.Grid, path string) error {
	var out strings.Builder
	for i := 0; i < g.DMCount(); i++ {
		out.WriteString(fmt.Sprintf("# DM%d\n", i))
		out.WriteString(g.DM(i).Dump())
		out.WriteString("\n")
	}
	return os.WriteFile(path, []byte(out.String()), 0o644)
}
