package compiler

import (
	"github.com/ssvm-lang/ssvm/pkg/ast"
	"github.com/ssvm-lang/ssvm/pkg/bytecode"
)

// upvalues tracked per-Compiler, parallel to the prototype's eventual
// Upvalues table; kept here rather than on FunctionPrototype directly so
// resolution can dedupe by (index, isLocal) as it goes.
type upvalueSlot struct {
	index   uint16
	isLocal bool
}

func (c *Compiler) resolveUpvalue(name string) (int, bool) {
	if c.enclosing == nil {
		return -1, false
	}
	if idx := c.enclosing.resolveLocal(name); idx != -1 {
		c.enclosing.locals[idx].isCaptured = true
		return c.addUpvalue(uint16(idx), true), true
	}
	if idx, ok := c.enclosing.resolveUpvalue(name); ok {
		return c.addUpvalue(uint16(idx), false), true
	}
	return -1, false
}

func (c *Compiler) addUpvalue(index uint16, isLocal bool) int {
	for i, u := range c.upvalues {
		if u.index == index && u.isLocal == isLocal {
			return i
		}
	}
	c.upvalues = append(c.upvalues, upvalueSlot{index: index, isLocal: isLocal})
	return len(c.upvalues) - 1
}

// compileFunctionDecl compiles a top-level or method function declaration,
// registers its prototype, and emits OP_FUNCTION when the body captures no
// upvalues or OP_CLOSURE when it does. At global scope the result is bound
// to a global; in a nested scope it is declared as a local.
func (c *Compiler) compileFunctionDecl(decl *ast.FunctionDecl) {
	proto, upvalues := c.compileFunctionBody(decl, funcFunction, nil)
	fnIdx := c.chunk.AddFunction(proto)

	if len(upvalues) == 0 {
		c.chunk.EmitU16(bytecode.OpFunction, fnIdx, c.line(decl))
	} else {
		c.emitClosure(fnIdx, upvalues, c.line(decl))
	}

	if c.scopeDepth == 0 {
		nameIdx := c.chunk.AddString(decl.Name)
		c.chunk.EmitU16(bytecode.OpDefineGlobal, nameIdx, c.line(decl))
	} else {
		c.declareLocal(decl.Name)
	}
}

func (c *Compiler) emitClosure(fnIdx uint16, upvalues []upvalueSlot, line int) {
	c.chunk.EmitU16(bytecode.OpClosure, fnIdx, line)
	for _, u := range upvalues {
		isLocal := byte(0)
		if u.isLocal {
			isLocal = 1
		}
		c.chunk.Code = append(c.chunk.Code, isLocal, byte(u.index>>8), byte(u.index))
		c.chunk.Lines = append(c.chunk.Lines, uint32(line), uint32(line), uint32(line))
	}
}

// compileFunctionBody compiles decl's parameter binding and block body into
// a fresh Chunk owned by a new FunctionPrototype, threading class so method
// bodies resolve self/super, and returns the upvalues the new frame
// captured from this (the caller) frame.
func (c *Compiler) compileFunctionBody(decl *ast.FunctionDecl, kind funcKind, class *classContext) (*bytecode.FunctionPrototype, []upvalueSlot) {
	if kind == funcMethod && decl.IsInitializer {
		kind = funcInitializer
	}

	inner := &Compiler{
		asm:       c.asm,
		chunk:     bytecode.NewChunk(),
		enclosing: c,
		kind:      kind,
		class:     class,
	}
	// Slot 0 is reserved for `self` in methods/initializers (even though
	// the compiled code may never reference it directly by that name) so
	// local-slot numbering matches the VM's call-frame convention of
	// always placing the receiver at stack-base+0 for a bound call.
	if kind == funcMethod || kind == funcInitializer {
		inner.locals = append(inner.locals, local{name: "self", depth: 0})
	} else {
		inner.locals = append(inner.locals, local{name: "", depth: 0})
	}

	var labels, params []string
	var defaults []bytecode.ParamDefault
	for _, param := range decl.Params {
		params = append(params, param.Name)
		labels = append(labels, param.Label)
		inner.declareLocal(param.Name)
		defaults = append(defaults, inner.compileParamDefault(param.Default))
	}

	for _, stmt := range decl.Body.Statements {
		inner.compileStatement(stmt)
	}

	if kind == funcInitializer {
		inner.chunk.EmitU16(bytecode.OpGetLocal, 0, c.line(decl))
		inner.chunk.EmitOp(bytecode.OpReturn, c.line(decl))
	} else {
		inner.chunk.EmitOp(bytecode.OpNil, c.line(decl))
		inner.chunk.EmitOp(bytecode.OpReturn, c.line(decl))
	}

	c.errors = append(c.errors, inner.errors...)

	proto := &bytecode.FunctionPrototype{
		Name:          decl.Name,
		Params:        params,
		Labels:        labels,
		Defaults:      defaults,
		Chunk:         inner.chunk,
		Upvalues:      toDescriptors(inner.upvalues),
		IsInitializer: decl.IsInitializer,
		IsOverride:    decl.IsOverride,
		IsMutating:    decl.IsMutating,
		Arity:         len(decl.Params),
	}
	return proto, inner.upvalues
}

func toDescriptors(slots []upvalueSlot) []bytecode.UpvalueDescriptor {
	out := make([]bytecode.UpvalueDescriptor, len(slots))
	for i, s := range slots {
		out[i] = bytecode.UpvalueDescriptor{Index: s.index, IsLocal: s.isLocal}
	}
	return out
}

// compileParamDefault records a parameter's default as a foldable scalar
// constant when possible. Any other default expression is recorded as a
// symbolic default holding a fixed placeholder string; it is never
// evaluated, and the VM reports a missing-argument error when such a
// parameter is omitted.
func (c *Compiler) compileParamDefault(expr ast.Expression) bytecode.ParamDefault {
	if expr == nil {
		return bytecode.ParamDefault{}
	}
	switch lit := expr.(type) {
	case *ast.IntegerLiteral:
		return bytecode.ParamDefault{HasDefault: true, Value: bytecode.IntConstant(lit.Value)}
	case *ast.FloatLiteral:
		return bytecode.ParamDefault{HasDefault: true, Value: bytecode.FloatConstant(lit.Value)}
	case *ast.BooleanLiteral:
		return bytecode.ParamDefault{HasDefault: true, Value: bytecode.BoolConstant(lit.Value)}
	case *ast.NilLiteral:
		return bytecode.ParamDefault{HasDefault: true, Value: bytecode.NilConstant()}
	default:
		return bytecode.ParamDefault{HasDefault: true, Symbolic: "<non-literal-default>"}
	}
}

func (c *Compiler) compileClosureExpr(e *ast.ClosureExpr) {
	inner := &Compiler{
		asm:       c.asm,
		chunk:     bytecode.NewChunk(),
		enclosing: c,
		kind:      funcClosure,
		class:     c.class,
	}
	inner.locals = append(inner.locals, local{name: "", depth: 0})

	var params, labels []string
	for _, p := range e.Params {
		params = append(params, p.Name)
		labels = append(labels, "")
		inner.declareLocal(p.Name)
	}

	for _, stmt := range e.Body {
		inner.compileStatement(stmt)
	}
	inner.chunk.EmitOp(bytecode.OpNil, c.line(e))
	inner.chunk.EmitOp(bytecode.OpReturn, c.line(e))

	c.errors = append(c.errors, inner.errors...)

	proto := &bytecode.FunctionPrototype{
		Name:     "<closure>",
		Params:   params,
		Labels:   labels,
		Chunk:    inner.chunk,
		Upvalues: toDescriptors(inner.upvalues),
		Arity:    len(params),
	}
	fnIdx := c.chunk.AddFunction(proto)
	if len(inner.upvalues) == 0 {
		c.chunk.EmitU16(bytecode.OpFunction, fnIdx, c.line(e))
		return
	}
	c.emitClosure(fnIdx, inner.upvalues, c.line(e))
}
