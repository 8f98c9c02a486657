package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/ssvm-lang/ssvm/pkg/bytecode"
	"github.com/ssvm-lang/ssvm/pkg/compiler"
	"github.com/ssvm-lang/ssvm/pkg/parser"
	"github.com/ssvm-lang/ssvm/pkg/ssvmlog"
	"github.com/ssvm-lang/ssvm/pkg/vm"
)

var (
	replPrompt = color.New(color.FgHiBlue, color.Bold)
	replError  = color.New(color.FgRed)
	replResult = color.New(color.FgGreen)
)

// repl runs an interactive loop: each line is appended to a growing source
// buffer and the whole buffer is recompiled and re-executed in a fresh VM,
// so later statements see earlier bindings without the compiler needing any
// incremental-compilation support. ":disasm" prints the current buffer's
// bytecode listing instead of running it; ":reset" clears the buffer.
func repl(verbose bool) error {
	fmt.Println("ssvm", version, "— type :help for REPL commands")
	scanner := bufio.NewScanner(os.Stdin)
	var buf strings.Builder
	log := ssvmlog.New(verbose)

	for {
		replPrompt.Print("ssvm> ")
		if !scanner.Scan() {
			fmt.Println()
			return nil
		}
		line := scanner.Text()

		switch strings.TrimSpace(line) {
		case ":help":
			fmt.Println(":reset    clear accumulated source")
			fmt.Println(":disasm   show bytecode for the current buffer")
			fmt.Println(":quit     exit")
			continue
		case ":reset":
			buf.Reset()
			continue
		case ":quit", ":exit":
			return nil
		case ":disasm":
			asm, err := compileBuffer(buf.String())
			if err != nil {
				replError.Println(err)
				continue
			}
			bytecode.Disassemble(os.Stdout, asm.Main, "main")
			continue
		}

		candidate := buf.String() + line + "\n"
		asm, err := compileBuffer(candidate)
		if err != nil {
			replError.Println(err)
			continue
		}
		buf.WriteString(line)
		buf.WriteString("\n")

		m := vm.New(asm, log)
		result, err := m.Run()
		if err != nil {
			replError.Println(err)
			continue
		}
		replResult.Println(m.Stringify(result))
	}
}

func compileBuffer(src string) (*bytecode.Assembly, error) {
	program, err := parser.New(src).Parse()
	if err != nil {
		return nil, err
	}
	return compiler.CompileProgram(program, "repl")
}
