package compiler

import (
	"testing"

	"github.com/ssvm-lang/ssvm/pkg/bytecode"
	"github.com/ssvm-lang/ssvm/pkg/parser"
)

func mustCompile(t *testing.T, src string) *bytecode.Assembly {
	t.Helper()
	program, err := parser.New(src).Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	asm, err := CompileProgram(program, "test")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return asm
}

func TestCompileIntegerLiteralPushesConstant(t *testing.T) {
	asm := mustCompile(t, "42")
	if bytecode.Op(asm.Main.Code[0]) != bytecode.OpConstant {
		t.Fatalf("expected leading CONSTANT, got %v", bytecode.Op(asm.Main.Code[0]))
	}
	if len(asm.Main.Constants) != 1 {
		t.Fatalf("expected 1 constant, got %d", len(asm.Main.Constants))
	}
}

func TestCompileVarDeclTopLevelDefinesGlobal(t *testing.T) {
	asm := mustCompile(t, "let x = 5")
	found := false
	for _, op := range asm.Main.Code {
		if bytecode.Op(op) == bytecode.OpDefineGlobal {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a DEFINE_GLOBAL instruction")
	}
}

func TestCompileVarDeclInBlockDeclaresLocal(t *testing.T) {
	asm := mustCompile(t, "if true { let x = 5 }")
	for _, op := range asm.Main.Code {
		if bytecode.Op(op) == bytecode.OpDefineGlobal {
			t.Fatal("did not expect a global definition for a block-scoped let")
		}
	}
}

func TestCompileIfElseEmitsTwoJumps(t *testing.T) {
	asm := mustCompile(t, "if true { 1 } else { 2 }")
	jumps := 0
	for _, op := range asm.Main.Code {
		if bytecode.Op(op) == bytecode.OpJump || bytecode.Op(op) == bytecode.OpJumpIfFalse {
			jumps++
		}
	}
	if jumps != 2 {
		t.Fatalf("expected 2 jump instructions, got %d", jumps)
	}
}

func TestCompileWhileLoopEmitsBackwardsLoop(t *testing.T) {
	asm := mustCompile(t, "while true { }")
	hasLoop := false
	for _, op := range asm.Main.Code {
		if bytecode.Op(op) == bytecode.OpLoop {
			hasLoop = true
		}
	}
	if !hasLoop {
		t.Fatal("expected a LOOP instruction")
	}
}

func TestCompileForInLowersToIndexBasedLoop(t *testing.T) {
	asm := mustCompile(t, "for i in 0..<3 { }")
	hasSubscript, hasLoop := false, false
	for _, op := range asm.Main.Code {
		switch bytecode.Op(op) {
		case bytecode.OpGetSubscript:
			hasSubscript = true
		case bytecode.OpLoop:
			hasLoop = true
		}
	}
	if !hasSubscript || !hasLoop {
		t.Fatalf("expected subscript+loop lowering, got subscript=%v loop=%v", hasSubscript, hasLoop)
	}
}

func TestCompileBreakOutsideLoopIsAnError(t *testing.T) {
	program, err := parser.New("break").Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if _, err := CompileProgram(program, "test"); err == nil {
		t.Fatal("expected a compile error for break outside a loop")
	}
}

func TestCompileFunctionDeclRegistersPrototype(t *testing.T) {
	asm := mustCompile(t, "func add(a, b) { return a + b }")
	if len(asm.Main.Functions) != 1 {
		t.Fatalf("expected 1 function prototype, got %d", len(asm.Main.Functions))
	}
	proto := asm.Main.Functions[0]
	if proto.Name != "add" || proto.Arity != 2 {
		t.Fatalf("got %+v", proto)
	}
}

func TestCompileClosureCapturesEnclosingLocalAsUpvalue(t *testing.T) {
	asm := mustCompile(t, `
		func makeCounter() {
			var count = 0
			return { count = count + 1 }
		}
	`)
	proto := asm.Main.Functions[0]
	var closureFn *bytecode.FunctionPrototype
	for _, fn := range proto.Chunk.Functions {
		closureFn = fn
	}
	if closureFn == nil {
		t.Fatal("expected a nested closure prototype")
	}
	if len(closureFn.Upvalues) != 1 {
		t.Fatalf("expected 1 captured upvalue, got %d", len(closureFn.Upvalues))
	}
}

func TestCompileClassDeclRegistersTypeDefinition(t *testing.T) {
	asm := mustCompile(t, `
		class Dog: Animal, Describable {
			var name = "Rex"
			func bark() { return name }
		}
	`)
	if len(asm.Types) != 1 {
		t.Fatalf("expected 1 type definition, got %d", len(asm.Types))
	}
	td := asm.Types[0]
	if td.Name != "Dog" || td.Kind != bytecode.TypeClass || td.SuperClass != "Animal" {
		t.Fatalf("got %+v", td)
	}
	if len(td.Properties) != 1 || td.Properties[0].Name != "name" {
		t.Fatalf("expected 1 stored property, got %+v", td.Properties)
	}
	if len(td.Methods) != 1 || td.Methods[0].Name != "bark" {
		t.Fatalf("expected 1 method, got %+v", td.Methods)
	}
	if td.Properties[0].DefaultBodyIdx < 0 || td.Properties[0].DefaultBodyIdx >= len(asm.Bodies) {
		t.Fatalf("expected a valid default-value body index, got %d", td.Properties[0].DefaultBodyIdx)
	}
}

func TestCompileStructDeclMarksMutatingMethod(t *testing.T) {
	asm := mustCompile(t, `
		struct Point {
			var x = 0
			mutating func moveBy(dx) { x = x + dx }
		}
	`)
	td := asm.Types[0]
	if td.Kind != bytecode.TypeStruct {
		t.Fatalf("expected struct kind, got %v", td.Kind)
	}
	if len(td.Methods) != 1 || !td.Methods[0].IsMutating {
		t.Fatalf("expected a mutating method, got %+v", td.Methods)
	}
}

func TestCompileEnumDeclRecordsCasesAndAssociatedLabels(t *testing.T) {
	asm := mustCompile(t, `
		enum Shape {
			case circle(radius: Int)
			case square(side: Int)
		}
	`)
	td := asm.Types[0]
	if td.Kind != bytecode.TypeEnum || len(td.Cases) != 2 {
		t.Fatalf("got %+v", td)
	}
	if td.Cases[0].Name != "circle" || td.Cases[0].AssociatedLabels[0] != "radius" {
		t.Fatalf("got %+v", td.Cases[0])
	}
}

func TestCompileProtocolDeclRecordsRequirementsWithoutBodies(t *testing.T) {
	asm := mustCompile(t, `
		protocol Named {
			func describe()
		}
	`)
	td := asm.Types[0]
	if td.Kind != bytecode.TypeProtocolKind {
		t.Fatalf("expected protocol kind, got %v", td.Kind)
	}
	if len(td.Methods) != 1 || td.Methods[0].BodyIdx != -1 {
		t.Fatalf("expected an unimplemented requirement, got %+v", td.Methods)
	}
}

func TestCompileExtensionDeclAppendsToExistingType(t *testing.T) {
	asm := mustCompile(t, `
		struct Point { var x = 0 }
		extension Point {
			func isOrigin() { return x == 0 }
		}
	`)
	td := asm.Types[0]
	if len(td.Methods) != 1 || td.Methods[0].Name != "isOrigin" {
		t.Fatalf("expected extension method merged in, got %+v", td.Methods)
	}
}

func TestCompileReferencingTypeNameBeforeItsDeclarationResolves(t *testing.T) {
	asm := mustCompile(t, `
		func makeDog() { return Dog() }
		class Dog { }
	`)
	proto := asm.Main.Functions[0]
	hasClassLoad := false
	for ip := 0; ip < len(proto.Chunk.Code); {
		if bytecode.Op(proto.Chunk.Code[ip]) == bytecode.OpClass {
			hasClassLoad = true
		}
		ip++
	}
	if !hasClassLoad {
		t.Fatal("expected a forward reference to Dog to compile to OP_CLASS")
	}
}

func TestCompileNamedCallArgumentsEmitLabelTable(t *testing.T) {
	asm := mustCompile(t, `func greet(to name) { }
greet(to: "Sam")`)
	found := false
	for _, op := range asm.Main.Code {
		if bytecode.Op(op) == bytecode.OpCallNamed {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a CALL_NAMED instruction for a labeled call")
	}
}

func TestCompileGenericFunctionCallSpecializesByTypeArgs(t *testing.T) {
	asm := mustCompile(t, `
		func identity<T>(x) { return x }
		let a = identity<Int>(5)
	`)
	found := false
	for _, fn := range asm.Main.Functions {
		if fn.Name == "identity$Int" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a specialized identity$Int function, got %+v", asm.Main.Functions)
	}
}

func TestCompileGenericFunctionTemplateIsNeverLoweredUnspecialized(t *testing.T) {
	asm := mustCompile(t, `func identity<T>(x) { return x }`)
	for _, fn := range asm.Main.Functions {
		if fn.Name == "identity" {
			t.Fatal("an unspecialized generic template should not itself be compiled")
		}
	}
	for _, op := range asm.Main.Code {
		if bytecode.Op(op) == bytecode.OpDefineGlobal {
			t.Fatal("an unspecialized generic template should not define a global")
		}
	}
}

func TestCompileGenericCallWithDistinctTypeArgsProducesDistinctSpecializations(t *testing.T) {
	asm := mustCompile(t, `
		func identity<T>(x) { return x }
		let a = identity<Int>(5)
		let b = identity<String>("hi")
	`)
	names := map[string]bool{}
	for _, fn := range asm.Main.Functions {
		names[fn.Name] = true
	}
	if !names["identity$Int"] || !names["identity$String"] {
		t.Fatalf("expected both identity$Int and identity$String, got %+v", names)
	}
}

func TestCompileGenericStructSpecializesOnConstruction(t *testing.T) {
	asm := mustCompile(t, `
		struct Box<T> { var value }
		let b = Box<Int>(value: 5)
	`)
	found := false
	for _, td := range asm.Types {
		if td.Name == "Box$Int" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a specialized Box$Int type, got %+v", asm.Types)
	}
}

func TestCompileDistinctGenericSpecializationsGetDistinctMethodBodies(t *testing.T) {
	asm := mustCompile(t, `
		struct Box<T> {
			var value
			func get() { return self.value }
		}
		let a = Box<Int>(value: 1)
		let b = Box<String>(value: "x")
	`)
	var boxInt, boxString *bytecode.TypeDefinition
	for _, td := range asm.Types {
		switch td.Name {
		case "Box$Int":
			boxInt = td
		case "Box$String":
			boxString = td
		}
	}
	if boxInt == nil || boxString == nil {
		t.Fatalf("expected both Box$Int and Box$String, got %+v", asm.Types)
	}
	if boxInt.Methods[0].BodyIdx == boxString.Methods[0].BodyIdx {
		t.Fatal("distinct specialized types must not share a method body record")
	}
}

func TestMethodBodyDedupCachesByTypeMethodStaticSignature(t *testing.T) {
	asm := bytecode.NewAssembly("test")
	c := newRootCompiler(asm)
	key := methodBodyKey("Box", "get", false, "_")
	if _, ok := c.internedMethodBody(key); ok {
		t.Fatal("expected no cached body before interning")
	}
	c.internMethodBody(key, 7)
	idx, ok := c.internedMethodBody(key)
	if !ok || idx != 7 {
		t.Fatalf("expected cached body 7, got idx=%d ok=%v", idx, ok)
	}
}
