package bytecode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssvm-lang/ssvm/pkg/bytecode"
)

func TestChunkEmitAndReadU16(t *testing.T) {
	c := bytecode.NewChunk()
	idx := c.AddConstant(bytecode.IntConstant(42))
	pos := c.EmitU16(bytecode.OpConstant, idx, 1)

	assert.Equal(t, byte(bytecode.OpConstant), c.Code[pos])
	assert.Equal(t, idx, c.ReadU16(pos+1))
}

func TestChunkAddStringDeduplicates(t *testing.T) {
	c := bytecode.NewChunk()
	a := c.AddString("hello")
	b := c.AddString("hello")
	other := c.AddString("world")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, other)
	assert.Len(t, c.Strings, 2)
}

func TestEmitJumpPatchesForwardOffset(t *testing.T) {
	c := bytecode.NewChunk()
	jumpPos := c.EmitJump(bytecode.OpJumpIfFalse, 1)
	c.EmitOp(bytecode.OpNil, 2)
	c.EmitOp(bytecode.OpPop, 2)

	require.NoError(t, c.PatchJump(jumpPos))
	assert.Equal(t, uint16(2), c.ReadU16(jumpPos))
}

func TestEmitLoopWritesBackDistance(t *testing.T) {
	c := bytecode.NewChunk()
	loopStart := len(c.Code)
	c.EmitOp(bytecode.OpNil, 1)
	require.NoError(t, c.EmitLoop(loopStart, 2))

	opIdx := len(c.Code) - 3
	assert.Equal(t, byte(bytecode.OpLoop), c.Code[opIdx])
	offset := c.ReadU16(opIdx + 1)
	assert.Equal(t, uint16(len(c.Code)-loopStart), offset)
}

func TestPatchJumpRejectsOversizedOffset(t *testing.T) {
	c := bytecode.NewChunk()
	jumpPos := c.EmitJump(bytecode.OpJump, 1)
	c.Code = append(c.Code, make([]byte, 0x10000)...)

	err := c.PatchJump(jumpPos)
	assert.Error(t, err)
}
