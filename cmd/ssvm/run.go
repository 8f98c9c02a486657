package main

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/ssvm-lang/ssvm/pkg/bytecode"
	"github.com/ssvm-lang/ssvm/pkg/ssvmlog"
	"github.com/ssvm-lang/ssvm/pkg/vm"
)

var statsLabel = color.New(color.FgHiBlack)

// runAssembly executes asm to completion, printing "Result: <repr>" and,
// when stats is true, a one-line execution summary (spec §6.1's `run`/`exec`
// --stats flag).
func runAssembly(asm *bytecode.Assembly, verbose, stats bool) error {
	m := vm.New(asm, ssvmlog.New(verbose))
	result, err := m.Run()
	if err != nil {
		return err
	}
	fmt.Printf("Result: %s\n", m.Stringify(result))
	if stats {
		printStats(m.Stats())
	}
	return nil
}

func printStats(s vm.Stats) {
	statsLabel.Printf("instructions=%d calls=%d allocs=%d drains=%d peak_stack=%d\n",
		s.InstructionsExecuted, s.CallCount, s.AllocCount, s.DrainCount, s.PeakStackDepth)
}
