// Package setup loads a PACE setup folder — per-PE instruction files,
// per-DM preload files, per-AGU programs, and the iteration bound — into a
// ready-to-run grid.Grid.
package setup

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/pace/agu"
	"github.com/sarchlab/pace/grid"
	"github.com/sarchlab/pace/isa"
)

// Manifest is the optional setup.yaml file alongside the raw folder
// layout: it names the topology, the mesh size, and max_iter overrides in
// one place instead of relying solely on bare files. It has no DM entry;
// DM preloads come only from the DM{i} files.
type Manifest struct {
	Topology string         `yaml:"topology"` // "single" | "double"
	Width    int            `yaml:"width"`
	Height   int            `yaml:"height"`
	MaxIter  map[string]int `yaml:"max_iter"` // AGU label ("AGU0") -> max_count, overrides the bare max_iter file
}

var peFileRe = regexp.MustCompile(`^PE-Y(\d+)X(\d+)\.(prog|binprog)$`)
var aguFileRe = regexp.MustCompile(`^AGU(\d+)\.prog$`)
var dmFileRe = regexp.MustCompile(`^DM(\d+)$`)

// Load reads a setup folder and returns a configured, ready-to-tick Grid.
// width and height size the mesh; topology is grid.SingleSided or
// grid.DoubleSided. Missing files and codec failures surface as
// *isa.DecodeError (MissingFile, SyntaxError, ...), wrapped with the file
// name; out-of-bounds PE coordinates, DM indices the topology lacks, and a
// malformed max_iter are plain errors, and a malformed DM file surfaces as
// a wrapped *dm.TextFormatError. Load never panics.
func Load(dir string, width, height int, topology grid.Topology) (*grid.Grid, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, isa.ErrMissingFile(dir)
	}

	g := grid.New(width, height, topology)

	dmFiles := map[int]string{}
	aguFiles := map[int]string{}
	peFiles := map[[2]int]string{}

	for _, entry := range entries {
		name := entry.Name()
		switch {
		case dmFileRe.MatchString(name):
			idx, _ := strconv.Atoi(dmFileRe.FindStringSubmatch(name)[1])
			dmFiles[idx] = name
		case aguFileRe.MatchString(name):
			idx, _ := strconv.Atoi(aguFileRe.FindStringSubmatch(name)[1])
			aguFiles[idx] = name
		case peFileRe.MatchString(name):
			m := peFileRe.FindStringSubmatch(name)
			y, _ := strconv.Atoi(m[1])
			x, _ := strconv.Atoi(m[2])
			peFiles[[2]int{y, x}] = name
		}
	}

	for coord, name := range peFiles {
		prog, err := loadPeProgram(filepath.Join(dir, name), strings.HasSuffix(name, ".binprog"))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		y, x := coord[0], coord[1]
		if y >= height || x >= width {
			return nil, fmt.Errorf("%s: out of bounds for a %dx%d grid", name, width, height)
		}
		g.PE(y, x).CM = prog
	}

	for idx, name := range dmFiles {
		text, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, isa.ErrMissingFile(name)
		}
		if idx >= g.DMCount() {
			return nil, fmt.Errorf("%s: no DM at index %d in this topology", name, idx)
		}
		if err := g.DM(idx).LoadInto(string(text)); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	maxIter, err := loadMaxIter(dir)
	if err != nil {
		return nil, err
	}

	for idx, name := range aguFiles {
		cm, err := loadAguProgram(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		a := findAguByLabel(g, width, height, idx)
		if a == nil {
			return nil, fmt.Errorf("%s: no AGU bound at mesh position %d", name, idx)
		}
		a.CM = cm
		a.MaxCount = uint32(maxIter)
	}

	return g, nil
}

// LoadManifest reads and parses a setup.yaml file. A missing file is not
// an error — callers should fall back to Load's explicit width/height/
// topology arguments and the bare max_iter file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// ManifestTopology maps a Manifest's topology string to a grid.Topology,
// defaulting to grid.SingleSided for an empty or unrecognized value.
func ManifestTopology(m *Manifest) grid.Topology {
	if m != nil && strings.EqualFold(m.Topology, "double") {
		return grid.DoubleSided
	}
	return grid.SingleSided
}

// LoadFolder loads dir's setup.yaml (if present) to resolve width, height,
// and topology, then calls Load; any max_iter entries in the manifest
// override the bare max_iter file and the loaded AGU programs' MaxCount
// after Load returns, keyed by "AGU{i}" the same way AGU{i}.prog is.
func LoadFolder(dir string) (*grid.Grid, error) {
	manifest, err := LoadManifest(filepath.Join(dir, "setup.yaml"))
	if err != nil {
		return nil, err
	}
	if manifest == nil || manifest.Width == 0 || manifest.Height == 0 {
		return nil, fmt.Errorf("%s: setup.yaml (with width/height) is required by LoadFolder; use Load directly to size the grid explicitly", dir)
	}

	g, err := Load(dir, manifest.Width, manifest.Height, ManifestTopology(manifest))
	if err != nil {
		return nil, err
	}

	for label, count := range manifest.MaxIter {
		idx, err := strconv.Atoi(strings.TrimPrefix(label, "AGU"))
		if err != nil {
			return nil, fmt.Errorf("setup.yaml: max_iter key %q is not AGU{i}", label)
		}
		a := findAguByLabel(g, manifest.Width, manifest.Height, idx)
		if a == nil {
			return nil, fmt.Errorf("setup.yaml: max_iter names %q, no AGU bound there", label)
		}
		a.MaxCount = uint32(count)
	}
	return g, nil
}

// findAguByLabel resolves an AGU{i}.prog file to the i-th AGU encountered
// while scanning the mesh in row-major order — the same order a folder
// loader's author would expect AGU0, AGU1, ... to appear along the edges.
func findAguByLabel(g *grid.Grid, width, height, label int) *agu.AGU {
	seen := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			a := g.AGU(y, x)
			if a == nil {
				continue
			}
			if seen == label {
				return a
			}
			seen++
		}
	}
	return nil
}

func loadMaxIter(dir string) (int, error) {
	path := filepath.Join(dir, "max_iter")
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, nil // optional file; AGUs default to MaxCount 0 (immediately finished) absent one
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("max_iter: %w", err)
	}
	return n, nil
}

func loadPeProgram(path string, binary bool) ([16]isa.Instruction, error) {
	var cm [16]isa.Instruction
	data, err := os.ReadFile(path)
	if err != nil {
		return cm, isa.ErrMissingFile(path)
	}
	lines := nonEmptyLines(string(data))
	if len(lines) > 16 {
		return cm, fmt.Errorf("program has %d instructions, CM holds at most 16", len(lines))
	}
	for i, line := range lines {
		var inst isa.Instruction
		var err error
		if binary {
			inst, err = isa.DecodeBinary(line)
		} else {
			inst, err = isa.ParseMnemonic(line)
		}
		if err != nil {
			return cm, err
		}
		cm[i] = inst
	}
	return cm, nil
}

func loadAguProgram(path string) ([16]isa.AguInstr, error) {
	var cm [16]isa.AguInstr
	data, err := os.ReadFile(path)
	if err != nil {
		return cm, isa.ErrMissingFile(path)
	}
	lines := nonEmptyLines(string(data))
	if len(lines) > 16 {
		return cm, fmt.Errorf("AGU program has %d entries, CM holds at most 16", len(lines))
	}
	for i, line := range lines {
		entry, err := isa.ParseAguLine(line)
		if err != nil {
			return cm, err
		}
		cm[i] = entry
	}
	return cm, nil
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
