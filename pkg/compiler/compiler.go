// Package compiler lowers a pkg/ast tree directly into pkg/bytecode, in a
// single pass with no separate intermediate representation — the same
// architecture as the teacher's tree-walking emitter, generalized from a
// handful of message-send forms to the full statement and expression set
// SPEC_FULL.md §4.3 names.
//
// A Compiler instance corresponds to one function body (the top-level
// script counts as one). Nested function/closure/method bodies compile with
// a fresh Compiler chained through the enclosing field, which is how
// resolveUpvalue walks outward to find a captured local in an ancestor
// frame (see functions.go). Class/struct/enum/protocol declarations do not
// get their own Compiler — their methods do, one per method body, each
// recorded into the Assembly's shared body table per the dedup scheme in
// spec §4.6.
package compiler

import (
	"fmt"

	"github.com/ssvm-lang/ssvm/pkg/ast"
	"github.com/ssvm-lang/ssvm/pkg/bytecode"
)

// funcKind distinguishes the handful of compilation contexts that change
// how `self`/`super` resolve and whether an implicit return is legal.
type funcKind int

const (
	funcScript funcKind = iota
	funcFunction
	funcClosure
	funcMethod
	funcInitializer
)

// local is one entry of a Compiler's lexical scope stack.
type local struct {
	name       string
	depth      int
	isCaptured bool
}

// loopContext tracks the patch lists a break/continue inside the loop body
// needs filled in once the loop's bounds are known.
type loopContext struct {
	loopStart    int
	breakJumps   []int
	continueJumps []int
}

// classContext carries the enclosing type declaration's shape into method
// bodies compiled for it, so `self.prop` and `super.method(...)` resolve.
type classContext struct {
	name       string
	superClass string
	isStruct   bool
	enclosing  *classContext
}

// Compiler lowers one function body's statements into a bytecode.Chunk.
type Compiler struct {
	asm       *bytecode.Assembly
	chunk     *bytecode.Chunk
	enclosing *Compiler
	kind      funcKind
	class     *classContext

	locals     []local
	scopeDepth int
	loops      []*loopContext
	upvalues   []upvalueSlot

	// types records every class/struct/enum/protocol name declared anywhere
	// in the program, populated by a pre-pass over the top-level statements
	// before any statement is compiled (so forward references resolve) and
	// only ever non-nil on the root compiler — nested compilers reach it
	// through rootCompiler.
	types map[string]bytecode.TypeKind

	// generics/specialized implement the specialization scheme in spec
	// §4.3/§9: templated declarations are recorded here on first sight, and
	// a concretely type-argumented call site lowers a mangled
	// specialization the first time it's seen (see generics.go). Only ever
	// non-nil on the root compiler, like types.
	generics    map[string]*genericTemplate
	specialized map[string]bool

	// methodBodies implements the method-body dedup scheme in spec §4.6:
	// compileMembers consults it, keyed by (type, method, static,
	// param-signature), before compiling a method body, so a second
	// encounter of the same key shares the first's body record instead of
	// appending a duplicate one. Only ever non-nil on the root compiler.
	methodBodies map[string]int

	errors []string
}

func (c *Compiler) rootCompiler() *Compiler {
	r := c
	for r.enclosing != nil {
		r = r.enclosing
	}
	return r
}

func (c *Compiler) registerType(name string, kind bytecode.TypeKind) {
	root := c.rootCompiler()
	if root.types == nil {
		root.types = make(map[string]bytecode.TypeKind)
	}
	root.types[name] = kind
}

func (c *Compiler) lookupType(name string) (bytecode.TypeKind, bool) {
	root := c.rootCompiler()
	if root.types == nil {
		return 0, false
	}
	k, ok := root.types[name]
	return k, ok
}

// declareTypeNames pre-scans top-level declarations so a reference to a
// type used before its declaration (or from inside a sibling type's method
// body) still resolves to OP_CLASS/OP_STRUCT/OP_ENUM/OP_PROTOCOL instead of
// falling through to a global lookup.
func (c *Compiler) declareTypeNames(statements []ast.Statement) {
	for _, stmt := range statements {
		switch s := stmt.(type) {
		case *ast.ClassDecl:
			if len(s.Generics) > 0 {
				c.registerGenericTemplate(s.Name, &genericTemplate{kind: genericClass, cls: s})
				continue
			}
			c.registerType(s.Name, bytecode.TypeClass)
		case *ast.StructDecl:
			if len(s.Generics) > 0 {
				c.registerGenericTemplate(s.Name, &genericTemplate{kind: genericStruct, strct: s})
				continue
			}
			c.registerType(s.Name, bytecode.TypeStruct)
		case *ast.EnumDecl:
			c.registerType(s.Name, bytecode.TypeEnum)
		case *ast.ProtocolDecl:
			c.registerType(s.Name, bytecode.TypeProtocolKind)
		case *ast.FunctionDecl:
			if len(s.Generics) > 0 {
				c.registerGenericTemplate(s.Name, &genericTemplate{kind: genericFunc, fn: s})
			}
		}
	}
}

// newRootCompiler creates the root compiler for a top-level script; its
// chunk becomes the Assembly's Main entry.
func newRootCompiler(asm *bytecode.Assembly) *Compiler {
	c := &Compiler{asm: asm, chunk: asm.Main, kind: funcScript}
	c.locals = append(c.locals, local{name: "", depth: 0})
	return c
}

// CompileProgram compiles a full parsed source file into a ready-to-run
// Assembly, named per the conventional one-program-per-assembly contract
// (spec §6.4); callers needing a custom manifest name can rename the result.
func CompileProgram(program *ast.Program, assemblyName string) (*bytecode.Assembly, error) {
	asm := bytecode.NewAssembly(assemblyName)
	c := newRootCompiler(asm)
	c.declareTypeNames(program.Statements)

	for i, stmt := range program.Statements {
		// A trailing expression statement's value is the program's result.
		if es, ok := stmt.(*ast.ExpressionStmt); ok && i == len(program.Statements)-1 {
			c.compileExpression(es.Expr)
			c.chunk.EmitOp(bytecode.OpReturn, c.line(es))
			break
		}
		c.compileStatement(stmt)
	}
	c.chunk.EmitOp(bytecode.OpNil, 0)
	c.chunk.EmitOp(bytecode.OpReturn, 0)

	if len(c.errors) > 0 {
		return asm, fmt.Errorf("compile errors: %v", c.errors)
	}
	return asm, nil
}

func (c *Compiler) addError(pos ast.Position, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	c.errors = append(c.errors, fmt.Sprintf("line %d: %s", pos.Line, msg))
}

func (c *Compiler) line(n ast.Node) int { return n.Pos().Line }

// --- scope management ---

func (c *Compiler) beginScope() { c.scopeDepth++ }

func (c *Compiler) endScope(line int) {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		last := c.locals[len(c.locals)-1]
		if last.isCaptured {
			c.chunk.EmitOp(bytecode.OpCloseUpvalue, line)
		} else {
			c.chunk.EmitOp(bytecode.OpPop, line)
		}
		c.locals = c.locals[:len(c.locals)-1]
	}
}

func (c *Compiler) declareLocal(name string) int {
	c.locals = append(c.locals, local{name: name, depth: c.scopeDepth})
	return len(c.locals) - 1
}

func (c *Compiler) resolveLocal(name string) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			return i
		}
	}
	return -1
}

// --- statements ---

func (c *Compiler) compileStatement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.ExpressionStmt:
		c.compileExpression(s.Expr)
		c.chunk.EmitOp(bytecode.OpPop, c.line(s))
	case *ast.VarDecl:
		c.compileVarDecl(s)
	case *ast.BlockStmt:
		c.beginScope()
		for _, inner := range s.Statements {
			c.compileStatement(inner)
		}
		c.endScope(c.line(s))
	case *ast.IfStmt:
		c.compileIf(s)
	case *ast.IfLetStmt:
		c.compileIfLet(s)
	case *ast.GuardLetStmt:
		c.compileGuardLet(s)
	case *ast.WhileStmt:
		c.compileWhile(s)
	case *ast.RepeatWhileStmt:
		c.compileRepeatWhile(s)
	case *ast.ForInStmt:
		c.compileForIn(s)
	case *ast.BreakStmt:
		c.compileBreak(s)
	case *ast.ContinueStmt:
		c.compileContinue(s)
	case *ast.ReturnStmt:
		c.compileReturn(s)
	case *ast.ThrowStmt:
		c.compileExpression(s.Value)
		c.chunk.EmitOp(bytecode.OpHalt, c.line(s))
	case *ast.ImportStmt:
		// Module resolution happens before compilation (the CLI's
		// spliceImports in cmd/ssvm/build.go splices the imported program's
		// declarations into this one); for an aliased import the compiler
		// binds the alias as a global holding the module's name string.
		if s.Alias != "" {
			nameIdx := c.chunk.AddString(s.Alias)
			moduleIdx := c.chunk.AddString(s.Name)
			c.chunk.EmitU16(bytecode.OpString, moduleIdx, c.line(s))
			c.chunk.EmitU16(bytecode.OpDefineGlobal, nameIdx, c.line(s))
		}
	case *ast.FunctionDecl:
		// A templated declaration was already recorded by declareTypeNames
		// and is never compiled directly — only its specializations are
		// (see generics.go).
		if len(s.Generics) == 0 {
			c.compileFunctionDecl(s)
		}
	case *ast.PropertyDecl:
		c.addError(s.Position, "top-level stored properties are not supported outside a type body")
	case *ast.ClassDecl:
		if len(s.Generics) == 0 {
			c.compileClassDecl(s)
		}
	case *ast.StructDecl:
		if len(s.Generics) == 0 {
			c.compileStructDecl(s)
		}
	case *ast.EnumDecl:
		c.compileEnumDecl(s)
	case *ast.ProtocolDecl:
		c.compileProtocolDecl(s)
	case *ast.ExtensionDecl:
		c.compileExtensionDecl(s)
	default:
		c.addError(stmt.Pos(), "unknown statement type %T", stmt)
	}
}

func (c *Compiler) compileVarDecl(s *ast.VarDecl) {
	if s.Init != nil {
		c.compileExpression(s.Init)
		// A struct instance has value semantics (spec §3.2): binding it to a
		// new name copies it. OP_COPY_VALUE is a no-op for every other
		// runtime shape, so it is safe to emit unconditionally here without
		// static type information.
		c.chunk.EmitOp(bytecode.OpCopyValue, c.line(s))
	} else {
		c.chunk.EmitOp(bytecode.OpNil, c.line(s))
	}

	if s.IsWeak || s.IsUnowned {
		if c.scopeDepth != 0 {
			c.addError(s.Position, "weak/unowned declarations are only supported at global scope")
			return
		}
		discipline := byte(0)
		if s.IsUnowned {
			discipline = 1
		}
		idx := c.chunk.AddString(s.Name)
		c.chunk.EmitU16U8(bytecode.OpDefineGlobalWeak, idx, discipline, c.line(s))
		return
	}

	if c.scopeDepth == 0 {
		idx := c.chunk.AddString(s.Name)
		c.chunk.EmitU16(bytecode.OpDefineGlobal, idx, c.line(s))
		return
	}
	c.declareLocal(s.Name)
}

func (c *Compiler) compileIf(s *ast.IfStmt) {
	c.compileExpression(s.Cond)
	thenJump := c.chunk.EmitJump(bytecode.OpJumpIfFalse, c.line(s))
	c.compileStatement(s.Then)

	if s.Else != nil {
		elseJump := c.chunk.EmitJump(bytecode.OpJump, c.line(s))
		c.patch(thenJump)
		c.compileStatement(s.Else)
		c.patch(elseJump)
	} else {
		c.patch(thenJump)
	}
}

// compileIfLet lowers `if let name = opt { then } else { else }` to a nil
// check on opt followed by a local binding visible only in the then-branch,
// mirroring how an ordinary if with a declared local would scope it.
func (c *Compiler) compileIfLet(s *ast.IfLetStmt) {
	c.compileExpression(s.Opt)
	elseJump := c.chunk.EmitJump(bytecode.OpJumpIfNil, c.line(s))

	c.beginScope()
	c.declareLocal(s.Name)
	for _, inner := range s.Then.Statements {
		c.compileStatement(inner)
	}
	c.endScope(c.line(s))

	if s.Else != nil {
		doneJump := c.chunk.EmitJump(bytecode.OpJump, c.line(s))
		c.patch(elseJump)
		c.compileStatement(s.Else)
		c.patch(doneJump)
	} else {
		c.patch(elseJump)
	}
}

// compileGuardLet lowers `guard let name = opt else { exit }`: when opt is
// nil, the else block runs (and must exit the enclosing control flow); when
// non-nil, name is bound into the *enclosing* scope, not a nested one,
// since guard's whole purpose is to keep the happy path unindented.
func (c *Compiler) compileGuardLet(s *ast.GuardLetStmt) {
	c.compileExpression(s.Opt)
	happyJump := c.chunk.EmitJump(bytecode.OpJumpIfNil, c.line(s))
	c.declareLocal(s.Name)
	skipElseJump := c.chunk.EmitJump(bytecode.OpJump, c.line(s))

	c.patch(happyJump)
	c.compileStatement(s.Else)

	c.patch(skipElseJump)
}

func (c *Compiler) compileWhile(s *ast.WhileStmt) {
	loopStart := len(c.chunk.Code)
	lc := &loopContext{loopStart: loopStart}
	c.loops = append(c.loops, lc)

	c.compileExpression(s.Cond)
	exitJump := c.chunk.EmitJump(bytecode.OpJumpIfFalse, c.line(s))
	c.compileStatement(s.Body)
	for _, cont := range lc.continueJumps {
		c.patch(cont)
	}
	if err := c.chunk.EmitLoop(loopStart, c.line(s)); err != nil {
		c.addError(s.Position, "%v", err)
	}
	c.patch(exitJump)
	for _, brk := range lc.breakJumps {
		c.patch(brk)
	}
	c.loops = c.loops[:len(c.loops)-1]
}

func (c *Compiler) compileRepeatWhile(s *ast.RepeatWhileStmt) {
	loopStart := len(c.chunk.Code)
	lc := &loopContext{loopStart: loopStart}
	c.loops = append(c.loops, lc)

	c.compileStatement(s.Body)
	for _, cont := range lc.continueJumps {
		c.patch(cont)
	}
	c.compileExpression(s.Cond)
	exitJump := c.chunk.EmitJump(bytecode.OpJumpIfFalse, c.line(s))
	if err := c.chunk.EmitLoop(loopStart, c.line(s)); err != nil {
		c.addError(s.Position, "%v", err)
	}
	c.patch(exitJump)
	for _, brk := range lc.breakJumps {
		c.patch(brk)
	}
	c.loops = c.loops[:len(c.loops)-1]
}

// compileForIn lowers `for name in iterable { body }` to an index-based
// loop over a list/range/string, binding name fresh on each iteration so a
// closure created in the body captures that iteration's value, not a
// shared counter slot.
func (c *Compiler) compileForIn(s *ast.ForInStmt) {
	c.beginScope()

	c.compileExpression(s.Iterable)
	iterSlot := c.declareLocal(" iterable")

	zeroIdx := c.chunk.AddConstant(bytecode.IntConstant(0))
	c.chunk.EmitU16(bytecode.OpConstant, zeroIdx, c.line(s))
	indexSlot := c.declareLocal(" index")

	loopStart := len(c.chunk.Code)
	lc := &loopContext{loopStart: loopStart}
	c.loops = append(c.loops, lc)

	// condition: index < iterable.count  -- expressed via a built-in method
	// call so lists, ranges, and strings share one lowering.
	c.chunk.EmitU16(bytecode.OpGetLocal, uint16(indexSlot), c.line(s))
	c.chunk.EmitU16(bytecode.OpGetLocal, uint16(iterSlot), c.line(s))
	countIdx := c.chunk.AddString("count")
	c.chunk.EmitU16(bytecode.OpGetProperty, countIdx, c.line(s))
	c.chunk.EmitOp(bytecode.OpLess, c.line(s))
	exitJump := c.chunk.EmitJump(bytecode.OpJumpIfFalse, c.line(s))

	c.beginScope()
	c.chunk.EmitU16(bytecode.OpGetLocal, uint16(iterSlot), c.line(s))
	c.chunk.EmitU16(bytecode.OpGetLocal, uint16(indexSlot), c.line(s))
	c.chunk.EmitOp(bytecode.OpGetSubscript, c.line(s))
	c.declareLocal(s.Name)
	for _, inner := range s.Body.Statements {
		c.compileStatement(inner)
	}
	c.endScope(c.line(s))

	for _, cont := range lc.continueJumps {
		c.patch(cont)
	}
	// index += 1
	c.chunk.EmitU16(bytecode.OpGetLocal, uint16(indexSlot), c.line(s))
	oneIdx := c.chunk.AddConstant(bytecode.IntConstant(1))
	c.chunk.EmitU16(bytecode.OpConstant, oneIdx, c.line(s))
	c.chunk.EmitOp(bytecode.OpAdd, c.line(s))
	c.chunk.EmitU16(bytecode.OpSetLocal, uint16(indexSlot), c.line(s))
	c.chunk.EmitOp(bytecode.OpPop, c.line(s))

	if err := c.chunk.EmitLoop(loopStart, c.line(s)); err != nil {
		c.addError(s.Position, "%v", err)
	}
	c.patch(exitJump)
	for _, brk := range lc.breakJumps {
		c.patch(brk)
	}
	c.loops = c.loops[:len(c.loops)-1]

	c.endScope(c.line(s))
}

func (c *Compiler) compileBreak(s *ast.BreakStmt) {
	if len(c.loops) == 0 {
		c.addError(s.Position, "break outside of a loop")
		return
	}
	lc := c.loops[len(c.loops)-1]
	jump := c.chunk.EmitJump(bytecode.OpJump, c.line(s))
	lc.breakJumps = append(lc.breakJumps, jump)
}

func (c *Compiler) compileContinue(s *ast.ContinueStmt) {
	if len(c.loops) == 0 {
		c.addError(s.Position, "continue outside of a loop")
		return
	}
	lc := c.loops[len(c.loops)-1]
	jump := c.chunk.EmitJump(bytecode.OpJump, c.line(s))
	lc.continueJumps = append(lc.continueJumps, jump)
}

func (c *Compiler) compileReturn(s *ast.ReturnStmt) {
	if c.kind == funcInitializer {
		c.chunk.EmitU16(bytecode.OpGetLocal, 0, c.line(s))
		c.chunk.EmitOp(bytecode.OpReturn, c.line(s))
		return
	}
	if s.Value == nil {
		c.chunk.EmitOp(bytecode.OpNil, c.line(s))
	} else {
		c.compileExpression(s.Value)
	}
	c.chunk.EmitOp(bytecode.OpReturn, c.line(s))
}

func (c *Compiler) patch(offset int) {
	if err := c.chunk.PatchJump(offset); err != nil {
		c.errors = append(c.errors, err.Error())
	}
}
