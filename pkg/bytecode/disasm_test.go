package bytecode_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ssvm-lang/ssvm/pkg/bytecode"
)

func TestDisassembleListsResolvedOperands(t *testing.T) {
	c := bytecode.NewChunk()
	idx := c.AddConstant(bytecode.IntConstant(99))
	c.EmitU16(bytecode.OpConstant, idx, 3)
	c.EmitOp(bytecode.OpHalt, 4)

	var buf bytes.Buffer
	bytecode.Disassemble(&buf, c, "main")

	out := buf.String()
	assert.Contains(t, out, "== main ==")
	assert.Contains(t, out, "CONSTANT")
	assert.Contains(t, out, "99")
	assert.Contains(t, out, "HALT")
}

func TestDisassembleRecursesIntoFunctions(t *testing.T) {
	c := bytecode.NewChunk()
	fn := &bytecode.FunctionPrototype{Name: "helper", Chunk: bytecode.NewChunk()}
	fn.Chunk.EmitOp(bytecode.OpReturn, 1)
	c.AddFunction(fn)
	c.EmitOp(bytecode.OpHalt, 1)

	var buf bytes.Buffer
	bytecode.Disassemble(&buf, c, "main")

	assert.Contains(t, buf.String(), "main.fn[0] helper")
}
