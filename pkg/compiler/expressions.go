package compiler

import "github.com/ssvm-lang/ssvm/pkg/ast"
import "github.com/ssvm-lang/ssvm/pkg/bytecode"

func (c *Compiler) compileExpression(expr ast.Expression) {
	switch e := expr.(type) {
	case *ast.IntegerLiteral:
		idx := c.chunk.AddConstant(bytecode.IntConstant(e.Value))
		c.chunk.EmitU16(bytecode.OpConstant, idx, c.line(e))
	case *ast.FloatLiteral:
		idx := c.chunk.AddConstant(bytecode.FloatConstant(e.Value))
		c.chunk.EmitU16(bytecode.OpConstant, idx, c.line(e))
	case *ast.StringLiteral:
		idx := c.chunk.AddString(e.Value)
		c.chunk.EmitU16(bytecode.OpString, idx, c.line(e))
	case *ast.BooleanLiteral:
		if e.Value {
			c.chunk.EmitOp(bytecode.OpTrue, c.line(e))
		} else {
			c.chunk.EmitOp(bytecode.OpFalse, c.line(e))
		}
	case *ast.NilLiteral:
		c.chunk.EmitOp(bytecode.OpNil, c.line(e))
	case *ast.Identifier:
		c.compileNameLoad(e.Name, c.line(e))
	case *ast.SelfExpr:
		c.compileSelfLoad(c.line(e))
	case *ast.SuperExpr:
		c.compileSuperAccess(e)
	case *ast.UnaryExpr:
		c.compileUnary(e)
	case *ast.BinaryExpr:
		c.compileBinary(e)
	case *ast.LogicalExpr:
		c.compileLogical(e)
	case *ast.AssignExpr:
		c.compileAssign(e)
	case *ast.CallExpr:
		c.compileCall(e)
	case *ast.MemberExpr:
		c.compileExpression(e.Receiver)
		idx := c.chunk.AddString(e.Name)
		c.chunk.EmitU16(bytecode.OpGetProperty, idx, c.line(e))
	case *ast.OptionalChainExpr:
		c.compileExpression(e.Receiver)
		idx := c.chunk.AddString(e.Name)
		c.chunk.EmitU16(bytecode.OpOptionalChain, idx, c.line(e))
	case *ast.SubscriptExpr:
		c.compileExpression(e.Receiver)
		c.compileExpression(e.Index)
		c.chunk.EmitOp(bytecode.OpGetSubscript, c.line(e))
	case *ast.ForceUnwrapExpr:
		c.compileExpression(e.Operand)
		c.chunk.EmitOp(bytecode.OpUnwrap, c.line(e))
	case *ast.NilCoalesceExpr:
		c.compileExpression(e.Left)
		c.compileExpression(e.Right)
		c.chunk.EmitOp(bytecode.OpNilCoalesce, c.line(e))
	case *ast.RangeExpr:
		c.compileExpression(e.Start)
		c.compileExpression(e.End)
		if e.Inclusive {
			c.chunk.EmitOp(bytecode.OpRangeInclusive, c.line(e))
		} else {
			c.chunk.EmitOp(bytecode.OpRangeExclusive, c.line(e))
		}
	case *ast.ArrayLiteral:
		for _, el := range e.Elements {
			c.compileExpression(el)
		}
		c.chunk.EmitU16(bytecode.OpArray, uint16(len(e.Elements)), c.line(e))
	case *ast.DictLiteral:
		for _, entry := range e.Entries {
			c.compileExpression(entry.Key)
			c.compileExpression(entry.Value)
		}
		c.chunk.EmitU16(bytecode.OpDict, uint16(len(e.Entries)), c.line(e))
	case *ast.TupleExpr:
		c.compileTuple(e)
	case *ast.ClosureExpr:
		c.compileClosureExpr(e)
	default:
		c.addError(expr.Pos(), "unknown expression type %T", expr)
	}
}

// compileNameLoad resolves name against the local stack, then enclosing
// upvalue chains, then falls back to a global lookup — the same
// local-then-upvalue-then-global order the VM's scope model requires.
func (c *Compiler) compileNameLoad(name string, line int) {
	if idx := c.resolveLocal(name); idx != -1 {
		c.chunk.EmitU16(bytecode.OpGetLocal, uint16(idx), line)
		return
	}
	if idx, ok := c.resolveUpvalue(name); ok {
		c.chunk.EmitU16(bytecode.OpGetUpvalue, uint16(idx), line)
		return
	}
	if kind, ok := c.lookupType(name); ok {
		nameIdx := c.chunk.AddString(name)
		c.chunk.EmitU16(typeLoadOp(kind), nameIdx, line)
		return
	}
	nameIdx := c.chunk.AddString(name)
	c.chunk.EmitU16(bytecode.OpGetGlobal, nameIdx, line)
}

// typeLoadOp maps a declared type's kind to the opcode that pushes its
// runtime type value (used as a constructor callee, for static member
// access, or for an enum case reference).
func typeLoadOp(kind bytecode.TypeKind) bytecode.Op {
	switch kind {
	case bytecode.TypeStruct:
		return bytecode.OpStruct
	case bytecode.TypeEnum:
		return bytecode.OpEnum
	case bytecode.TypeProtocolKind:
		return bytecode.OpProtocol
	default:
		return bytecode.OpClass
	}
}

func (c *Compiler) compileSelfLoad(line int) {
	if idx := c.resolveLocal("self"); idx != -1 {
		c.chunk.EmitU16(bytecode.OpGetLocal, uint16(idx), line)
		return
	}
	if idx, ok := c.resolveUpvalue("self"); ok {
		c.chunk.EmitU16(bytecode.OpGetUpvalue, uint16(idx), line)
		return
	}
	c.addError(ast.Position{Line: line}, "self used outside of a method body")
}

func (c *Compiler) compileSuperAccess(e *ast.SuperExpr) {
	c.compileSelfLoad(c.line(e))
	idx := c.chunk.AddString(e.Method)
	c.chunk.EmitU16(bytecode.OpSuper, idx, c.line(e))
}

func (c *Compiler) compileUnary(e *ast.UnaryExpr) {
	c.compileExpression(e.Operand)
	switch e.Op {
	case "-":
		c.chunk.EmitOp(bytecode.OpNegate, c.line(e))
	case "!":
		c.chunk.EmitOp(bytecode.OpNot, c.line(e))
	case "~":
		c.chunk.EmitOp(bytecode.OpBitwiseNot, c.line(e))
	default:
		c.addError(e.Position, "unknown unary operator %q", e.Op)
	}
}

var binaryOps = map[string]bytecode.Op{
	"+": bytecode.OpAdd, "-": bytecode.OpSubtract, "*": bytecode.OpMultiply,
	"/": bytecode.OpDivide, "%": bytecode.OpModulo,
	"==": bytecode.OpEqual, "!=": bytecode.OpNotEqual,
	"<": bytecode.OpLess, ">": bytecode.OpGreater,
	"<=": bytecode.OpLessEqual, ">=": bytecode.OpGreaterEqual,
}

func (c *Compiler) compileBinary(e *ast.BinaryExpr) {
	c.compileExpression(e.Left)
	c.compileExpression(e.Right)
	op, ok := binaryOps[e.Op]
	if !ok {
		c.addError(e.Position, "unknown binary operator %q", e.Op)
		return
	}
	c.chunk.EmitOp(op, c.line(e))
}

// compileLogical short-circuits: && skips the right operand (and leaves
// false on the stack) when the left is already false; || mirrors that for
// true.
func (c *Compiler) compileLogical(e *ast.LogicalExpr) {
	c.compileExpression(e.Left)
	if e.Op == "&&" {
		c.chunk.EmitOp(bytecode.OpDup, c.line(e))
		endJump := c.chunk.EmitJump(bytecode.OpJumpIfFalse, c.line(e))
		c.chunk.EmitOp(bytecode.OpPop, c.line(e))
		c.compileExpression(e.Right)
		c.patch(endJump)
		return
	}
	// || : jump over the right side when left is already true.
	c.chunk.EmitOp(bytecode.OpDup, c.line(e))
	elseJump := c.chunk.EmitJump(bytecode.OpJumpIfFalse, c.line(e))
	endJump := c.chunk.EmitJump(bytecode.OpJump, c.line(e))
	c.patch(elseJump)
	c.chunk.EmitOp(bytecode.OpPop, c.line(e))
	c.compileExpression(e.Right)
	c.patch(endJump)
}

func (c *Compiler) compileAssign(e *ast.AssignExpr) {
	switch target := e.Target.(type) {
	case *ast.Identifier:
		c.compileExpression(e.Value)
		c.chunk.EmitOp(bytecode.OpCopyValue, c.line(e))
		c.chunk.EmitOp(bytecode.OpDup, c.line(e))
		if idx := c.resolveLocal(target.Name); idx != -1 {
			c.chunk.EmitU16(bytecode.OpSetLocal, uint16(idx), c.line(e))
			c.chunk.EmitOp(bytecode.OpPop, c.line(e))
			return
		}
		if idx, ok := c.resolveUpvalue(target.Name); ok {
			c.chunk.EmitU16(bytecode.OpSetUpvalue, uint16(idx), c.line(e))
			c.chunk.EmitOp(bytecode.OpPop, c.line(e))
			return
		}
		nameIdx := c.chunk.AddString(target.Name)
		c.chunk.EmitU16(bytecode.OpSetGlobal, nameIdx, c.line(e))
		c.chunk.EmitOp(bytecode.OpPop, c.line(e))
	case *ast.MemberExpr:
		c.compileExpression(target.Receiver)
		c.compileExpression(e.Value)
		c.chunk.EmitOp(bytecode.OpCopyValue, c.line(e))
		idx := c.chunk.AddString(target.Name)
		c.chunk.EmitU16(bytecode.OpSetProperty, idx, c.line(e))
		// The set consumes receiver and value; the expression yields nil.
		c.chunk.EmitOp(bytecode.OpNil, c.line(e))
	case *ast.SubscriptExpr:
		c.compileExpression(target.Receiver)
		c.compileExpression(target.Index)
		c.compileExpression(e.Value)
		c.chunk.EmitOp(bytecode.OpCopyValue, c.line(e))
		c.chunk.EmitOp(bytecode.OpSetSubscript, c.line(e))
		c.chunk.EmitOp(bytecode.OpNil, c.line(e))
	default:
		c.addError(e.Position, "invalid assignment target %T", e.Target)
	}
}

// compileCall handles plain calls, named-argument calls, and construction
// calls uniformly: the VM's call convention (spec §4.5) dispatches on the
// callee's runtime value, so the compiler only needs to decide whether any
// argument carries a label.
func (c *Compiler) compileCall(e *ast.CallExpr) {
	// print/readLine compile directly to their dedicated I/O opcodes rather
	// than an ordinary call, unless the name has been shadowed by a local.
	if name, ok := e.Callee.(*ast.Identifier); ok && c.resolveLocal(name.Name) == -1 {
		if name.Name == "print" && len(e.Args) == 1 {
			c.compileExpression(e.Args[0].Value)
			c.chunk.EmitOp(bytecode.OpPrint, c.line(e))
			return
		}
		if name.Name == "readLine" && len(e.Args) == 0 {
			c.chunk.EmitOp(bytecode.OpReadLine, c.line(e))
			return
		}
	}

	// A call site supplying type arguments to a named callee resolves
	// against that template's specializations (spec §4.3/§9) rather than
	// an ordinary global/local of the base name.
	if len(e.TypeArgs) > 0 {
		if name, ok := e.Callee.(*ast.Identifier); ok {
			mangled, kind, specialized := c.ensureSpecialization(name.Name, e.TypeArgs)
			if !specialized {
				c.addError(e.Position, "%q is not a generic declaration", name.Name)
				return
			}
			c.compileSpecializedCallee(mangled, kind, c.line(e))
			c.compileCallArgs(e)
			return
		}
	}

	c.compileExpression(e.Callee)
	c.compileCallArgs(e)
}

// compileCallArgs compiles e's argument list onto the stack (already
// holding the callee) and emits the matching OP_CALL/OP_CALL_NAMED. Split
// out from compileCall so a specialized generic call site, which loads its
// mangled callee a different way, can still share this tail.
func (c *Compiler) compileCallArgs(e *ast.CallExpr) {
	hasLabels := false
	for _, a := range e.Args {
		if a.Label != "" {
			hasLabels = true
		} else if hasLabels {
			c.addError(e.Position, "positional argument follows a labeled argument")
		}
	}

	for _, a := range e.Args {
		c.compileExpression(a.Value)
		// A struct argument has value semantics (spec §3.2): the callee gets
		// its own copy, not the caller's instance.
		c.chunk.EmitOp(bytecode.OpCopyValue, c.line(e))
	}

	if !hasLabels {
		c.chunk.EmitU16(bytecode.OpCall, uint16(len(e.Args)), c.line(e))
		return
	}

	c.chunk.EmitU16(bytecode.OpCallNamed, uint16(len(e.Args)), c.line(e))
	for i, a := range e.Args {
		labelIdx := uint16(0xFFFF)
		if a.Label != "" {
			labelIdx = c.chunk.AddString(a.Label)
		}
		for _, b := range [4]byte{byte(i >> 8), byte(i), byte(labelIdx >> 8), byte(labelIdx)} {
			c.chunk.Code = append(c.chunk.Code, b)
			c.chunk.Lines = append(c.chunk.Lines, uint32(c.line(e)))
		}
	}
}

func (c *Compiler) compileTuple(e *ast.TupleExpr) {
	for _, el := range e.Elements {
		c.compileExpression(el.Value)
	}
	// Tuples are built by the VM's OP_ARRAY handler, which the high bit of
	// the element count switches to tuple construction. Element labels are
	// not emitted: every element of the built tuple has an empty label.
	c.chunk.EmitU16(bytecode.OpArray, uint16(len(e.Elements))|0x8000, c.line(e))
}
