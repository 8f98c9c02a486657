package bytecode

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	disasmOffset  = color.New(color.FgHiBlack)
	disasmMnemo   = color.New(color.FgCyan, color.Bold)
	disasmOperand = color.New(color.FgYellow)
	disasmComment = color.New(color.FgGreen)
)

// Disassemble writes a human-readable listing of c to w, one instruction per
// line, prefixed with name as a section header. Nested function prototypes
// are listed recursively after the chunk's own instructions.
func Disassemble(w io.Writer, c *Chunk, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)
	for ip := 0; ip < len(c.Code); {
		ip = disassembleInstruction(w, c, ip)
	}
	for i, fn := range c.Functions {
		fmt.Fprintln(w)
		Disassemble(w, fn.Chunk, fmt.Sprintf("%s.fn[%d] %s", name, i, fn.Name))
	}
}

func disassembleInstruction(w io.Writer, c *Chunk, ip int) int {
	disasmOffset.Fprintf(w, "%04d ", ip)
	if ip > 0 && c.Lines[ip] == c.Lines[ip-1] {
		fmt.Fprint(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", c.Lines[ip])
	}

	op := Op(c.Code[ip])
	disasmMnemo.Fprintf(w, "%-16s", op.String())

	switch operandShape[op] {
	case operandU16:
		operand := c.ReadU16(ip + 1)
		disasmOperand.Fprintf(w, " %d", operand)
		if cmt := operandComment(c, op, operand); cmt != "" {
			disasmComment.Fprintf(w, " ; %s", cmt)
		}
		fmt.Fprintln(w)
		return ip + 3
	case operandU16U8:
		operand := c.ReadU16(ip + 1)
		flags := c.Code[ip+3]
		disasmOperand.Fprintf(w, " %d %#02x", operand, flags)
		fmt.Fprintln(w)
		return ip + 4
	default:
		switch op {
		case OpClosure:
			fnIdx := c.ReadU16(ip + 1)
			disasmOperand.Fprintf(w, " %d", fnIdx)
			pos := ip + 3
			n := 0
			if int(fnIdx) < len(c.Functions) {
				n = len(c.Functions[fnIdx].Upvalues)
			}
			for i := 0; i < n; i++ {
				isLocal := c.Code[pos]
				idx := c.ReadU16(pos + 1)
				disasmOperand.Fprintf(w, " (%s %d)", localOrUpvalue(isLocal), idx)
				pos += 3
			}
			fmt.Fprintln(w)
			return pos
		case OpCallNamed:
			argc := c.ReadU16(ip + 1)
			disasmOperand.Fprintf(w, " argc=%d", argc)
			pos := ip + 3
			for i := uint16(0); i < argc; i++ {
				argIdx := c.ReadU16(pos)
				labelIdx := c.ReadU16(pos + 2)
				disasmOperand.Fprintf(w, " (arg %d <- label %d)", argIdx, labelIdx)
				pos += 4
			}
			fmt.Fprintln(w)
			return pos
		case OpEnumCase:
			nameIdx := c.ReadU16(ip + 1)
			assocCount := c.Code[ip+3]
			disasmOperand.Fprintf(w, " %d assoc=%d", nameIdx, assocCount)
			pos := ip + 4
			for i := byte(0); i < assocCount; i++ {
				labelIdx := c.ReadU16(pos)
				disasmOperand.Fprintf(w, " %d", labelIdx)
				pos += 2
			}
			fmt.Fprintln(w)
			return pos
		default:
			fmt.Fprintln(w)
			return ip + 1
		}
	}
}

func localOrUpvalue(isLocal byte) string {
	if isLocal != 0 {
		return "local"
	}
	return "upvalue"
}

// operandComment resolves an instruction's operand to a human label when the
// opcode indexes a known pool (string table, constant pool), so a reader
// doesn't have to cross-reference the table by hand.
func operandComment(c *Chunk, op Op, operand uint16) string {
	switch op {
	case OpConstant:
		if int(operand) < len(c.Constants) {
			return formatConstant(c.Constants[operand])
		}
	case OpString, OpGetGlobal, OpSetGlobal, OpDefineGlobal, OpGetProperty, OpSetProperty,
		OpOptionalChain, OpClass, OpStruct, OpEnum, OpProtocol, OpMethod, OpSuper,
		OpMatchEnumCase:
		if int(operand) < len(c.Strings) {
			return fmt.Sprintf("%q", c.Strings[operand])
		}
	case OpFunction:
		if int(operand) < len(c.Functions) {
			return c.Functions[operand].Name
		}
	}
	return ""
}

func formatConstant(k Constant) string {
	switch k.Kind {
	case ConstInt:
		return fmt.Sprintf("%d", k.I)
	case ConstFloat:
		return fmt.Sprintf("%g", k.F)
	case ConstBool:
		return fmt.Sprintf("%t", k.B)
	case ConstNil:
		return "nil"
	default:
		return "?"
	}
}
