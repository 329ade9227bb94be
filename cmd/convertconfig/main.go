// convert_config translates a PE program file between its mnemonic (.prog)
// and binary (.binprog) forms. Direction is inferred from the input/output
// file extensions. A small, linear main with atexit.Exit for the final
// status.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/pace/isa"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: convert_config <in> <out>")
		atexit.Exit(1)
		return
	}

	inPath, outPath := os.Args[1], os.Args[2]
	if err := convert(inPath, outPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
		return
	}

	atexit.Exit(0)
}

func convert(inPath, outPath string) error {
	inBinary := strings.EqualFold(filepath.Ext(inPath), ".binprog")
	outBinary := strings.EqualFold(filepath.Ext(outPath), ".binprog")
	if inBinary == outBinary {
		return fmt.Errorf("%s -> %s: extensions must differ between .prog and .binprog", inPath, outPath)
	}

	data, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("%s: %w", inPath, err)
	}

	var out strings.Builder
	lineNo := 0
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		lineNo++

		var inst isa.Instruction
		var err error
		if inBinary {
			inst, err = isa.DecodeBinary(trimmed)
		} else {
			inst, err = isa.ParseMnemonic(trimmed)
		}
		if err != nil {
			return fmt.Errorf("%s:%d: %w", inPath, lineNo, err)
		}

		if outBinary {
			out.WriteString(isa.EncodeBinary(inst))
		} else {
			out.WriteString(isa.PrintMnemonic(inst))
		}
		out.WriteString("\n")
	}

	if err := os.WriteFile(outPath, []byte(out.String()), 0o644); err != nil {
		return fmt.Errorf("%s: %w", outPath, err)
	}
	return nil
}
