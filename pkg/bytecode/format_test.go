package bytecode_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssvm-lang/ssvm/pkg/bytecode"
)

func buildSampleAssembly() *bytecode.Assembly {
	asm := bytecode.NewAssembly("sample")

	idx := asm.Main.AddConstant(bytecode.IntConstant(7))
	asm.Main.EmitU16(bytecode.OpConstant, idx, 1)
	nameIdx := asm.Main.AddString("greeting")
	asm.Main.EmitU16(bytecode.OpDefineGlobal, nameIdx, 1)
	asm.Main.EmitOp(bytecode.OpHalt, 2)

	fn := &bytecode.FunctionPrototype{
		Name:   "add",
		Params: []string{"a", "b"},
		Labels: []string{"", ""},
		Chunk:  bytecode.NewChunk(),
		Arity:  2,
	}
	fn.Chunk.EmitOp(bytecode.OpGetLocal, 1)
	fn.Chunk.EmitOp(bytecode.OpAdd, 1)
	fn.Chunk.EmitOp(bytecode.OpReturn, 1)
	asm.Main.AddFunction(fn)

	proto := &bytecode.Protocol{
		Name:                 "Describable",
		MethodRequirements:   []bytecode.ProtocolMethodReq{{Name: "describe"}},
		PropertyRequirements: []bytecode.ProtocolPropertyReq{{Name: "label"}},
		InheritedProtocols:   []string{"Equatable"},
	}
	asm.Main.AddProtocol(proto)

	bodyProto := &bytecode.FunctionPrototype{Name: "magnitude", Chunk: bytecode.NewChunk()}
	bodyProto.Chunk.EmitOp(bytecode.OpNil, 1)
	bodyProto.Chunk.EmitOp(bytecode.OpReturn, 1)
	body := &bytecode.MethodBody{Proto: bodyProto, MaxStackDepth: 4}
	bodyIdx := asm.AddBody(body)

	asm.Types = append(asm.Types, &bytecode.TypeDefinition{
		Name:       "Point",
		Kind:       bytecode.TypeStruct,
		Properties: []bytecode.PropertyDescriptor{{Name: "x", IsLet: false, DefaultBodyIdx: -1}},
		Methods:    []bytecode.MethodDescriptor{{Name: "magnitude", BodyIdx: bodyIdx, ParamSig: "()"}},
		HasDeinit:  false,
	})

	asm.GlobalConstants = append(asm.GlobalConstants, bytecode.IntConstant(1), bytecode.BoolConstant(true))
	asm.SpecializationSignatures = append(asm.SpecializationSignatures, "Stack<Int>", "Stack<String>")

	return asm
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	asm := buildSampleAssembly()

	var buf bytes.Buffer
	require.NoError(t, bytecode.Encode(asm, &buf))

	decoded, err := bytecode.Decode(&buf)
	require.NoError(t, err)

	assert.Equal(t, asm.Manifest.Name, decoded.Manifest.Name)
	assert.Equal(t, asm.Manifest.BuildID, decoded.Manifest.BuildID)
	assert.Equal(t, asm.Main.Code, decoded.Main.Code)
	assert.Equal(t, asm.Main.Strings, decoded.Main.Strings)
	require.Len(t, decoded.Main.Functions, 1)
	assert.Equal(t, "add", decoded.Main.Functions[0].Name)
	require.Len(t, decoded.Main.Protocols, 1)
	assert.Equal(t, "Describable", decoded.Main.Protocols[0].Name)
	assert.Equal(t, []string{"Equatable"}, decoded.Main.Protocols[0].InheritedProtocols)
	require.Len(t, decoded.Types, 1)
	assert.Equal(t, "Point", decoded.Types[0].Name)
	assert.Equal(t, asm.GlobalConstants, decoded.GlobalConstants)
	assert.Equal(t, asm.SpecializationSignatures, decoded.SpecializationSignatures)
}

// Encoding an assembly twice must produce byte-identical output: nothing in
// Encode observes wall-clock time or map iteration order.
func TestEncodeIsDeterministic(t *testing.T) {
	asm := buildSampleAssembly()

	var first, second bytes.Buffer
	require.NoError(t, bytecode.Encode(asm, &first))
	require.NoError(t, bytecode.Encode(asm, &second))

	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := bytecode.Decode(bytes.NewReader([]byte("XXXX\x00\x01\x00\x00")))
	assert.Error(t, err)
}

func TestDecodeRejectsNewerMinorVersion(t *testing.T) {
	asm := buildSampleAssembly()
	asm.Manifest.Minor = 99

	var buf bytes.Buffer
	require.NoError(t, bytecode.Encode(asm, &buf))

	_, err := bytecode.Decode(&buf)
	assert.Error(t, err)
}
