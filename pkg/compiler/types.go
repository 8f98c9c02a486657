package compiler

import (
	"strings"

	"github.com/ssvm-lang/ssvm/pkg/ast"
	"github.com/ssvm-lang/ssvm/pkg/bytecode"
)

// compileBodyToIdx compiles fn as a method body under class and registers
// the resulting chunk into the assembly's shared body table, returning its
// index. Every stored-property default, observer, computed accessor, and
// method ultimately goes through this one path so the dedup scheme in
// spec §4.6 has a single place to compare bodies.
func (c *Compiler) compileBodyToIdx(fn *ast.FunctionDecl, class *classContext) int {
	proto, _ := c.compileFunctionBody(fn, funcMethod, class)
	return c.asm.AddBody(&bytecode.MethodBody{Proto: proto})
}

// wrapExprBody lifts a bare expression (a property's default-value
// initializer) into the zero-param synthetic function compileBodyToIdx
// expects.
func wrapExprBody(expr ast.Expression) *ast.FunctionDecl {
	return &ast.FunctionDecl{
		Position: expr.Pos(),
		Body: &ast.BlockStmt{
			Position:   expr.Pos(),
			Statements: []ast.Statement{&ast.ReturnStmt{Position: expr.Pos(), Value: expr}},
		},
	}
}

// paramSig mangles a method's external labels into the signature string the
// overload/override dedup table keys on.
func paramSig(fn *ast.FunctionDecl) string {
	parts := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		if p.Label != "" {
			parts[i] = p.Label
		} else {
			parts[i] = "_"
		}
	}
	return strings.Join(parts, ",")
}

// methodBodyKey is the (type, method, static, parameter-label signature)
// tuple method bodies are deduplicated on; parameter types are not part of
// the key.
func methodBodyKey(typeName, methodName string, isStatic bool, sig string) string {
	static := "i"
	if isStatic {
		static = "s"
	}
	return typeName + "\x00" + methodName + "\x00" + static + "\x00" + sig
}

// internedMethodBody returns the body index already compiled for key, if
// any, so a repeat of the same key — the same method name and label
// signature declared again on the same type — shares one body record
// instead of compiling a duplicate. Specializations of a generic template
// have distinct mangled type names, so they never share a body.
func (c *Compiler) internedMethodBody(key string) (int, bool) {
	root := c.rootCompiler()
	idx, ok := root.methodBodies[key]
	return idx, ok
}

func (c *Compiler) internMethodBody(key string, idx int) {
	root := c.rootCompiler()
	if root.methodBodies == nil {
		root.methodBodies = make(map[string]int)
	}
	root.methodBodies[key] = idx
}

// compileMembers lowers a type body's flat member list into td, using ctx so
// method/accessor/observer bodies resolve self and super against the
// declaration being built.
func (c *Compiler) compileMembers(members []ast.Statement, td *bytecode.TypeDefinition, ctx *classContext) {
	for _, member := range members {
		switch decl := member.(type) {
		case *ast.VarDecl:
			// `var`/`let name = default` inside a type body parses as a plain
			// VarDecl (the same grammar a block uses), not the lazy/observed
			// PropertyDecl form — lower it the same way, with no lazy flag
			// and no observers.
			pd := bytecode.PropertyDescriptor{
				Name: decl.Name, IsLet: decl.IsLet,
				DefaultBodyIdx: -1, WillSetBodyIdx: -1, DidSetBodyIdx: -1,
			}
			if decl.Init != nil {
				pd.DefaultBodyIdx = c.compileBodyToIdx(wrapExprBody(decl.Init), ctx)
			}
			td.Properties = append(td.Properties, pd)
		case *ast.PropertyDecl:
			pd := bytecode.PropertyDescriptor{
				Name: decl.Name, IsLet: decl.IsLet, IsLazy: decl.IsLazy,
				DefaultBodyIdx: -1, WillSetBodyIdx: -1, DidSetBodyIdx: -1,
			}
			if decl.Default != nil {
				pd.DefaultBodyIdx = c.compileBodyToIdx(wrapExprBody(decl.Default), ctx)
			}
			if decl.WillSet != nil {
				pd.HasWillSet = true
				pd.WillSetBodyIdx = c.compileBodyToIdx(decl.WillSet, ctx)
			}
			if decl.DidSet != nil {
				pd.HasDidSet = true
				pd.DidSetBodyIdx = c.compileBodyToIdx(decl.DidSet, ctx)
			}
			if decl.IsStatic {
				td.StaticProperties = append(td.StaticProperties, pd)
			} else {
				td.Properties = append(td.Properties, pd)
			}
		case *ast.ComputedPropertyDecl:
			cp := bytecode.ComputedPropertyDescriptor{
				Name:          decl.Name,
				GetterBodyIdx: c.compileBodyToIdx(decl.Getter, ctx),
			}
			if decl.Setter != nil {
				cp.HasSetter = true
				cp.SetterBodyIdx = c.compileBodyToIdx(decl.Setter, ctx)
			}
			td.ComputedProperties = append(td.ComputedProperties, cp)
		case *ast.FunctionDecl:
			sig := paramSig(decl)
			key := methodBodyKey(ctx.name, decl.Name, decl.IsStatic, sig)
			bodyIdx, ok := c.internedMethodBody(key)
			if !ok {
				bodyIdx = c.compileBodyToIdx(decl, ctx)
				c.internMethodBody(key, bodyIdx)
			}
			md := bytecode.MethodDescriptor{
				Name: decl.Name, IsMutating: decl.IsMutating, IsOverride: decl.IsOverride,
				ParamSig: sig, BodyIdx: bodyIdx,
			}
			if decl.IsStatic {
				td.StaticMethods = append(td.StaticMethods, md)
			} else {
				td.Methods = append(td.Methods, md)
			}
		default:
			c.addError(member.Pos(), "unsupported type member %T", member)
		}
	}
}

func (c *Compiler) compileClassDecl(s *ast.ClassDecl) {
	ctx := &classContext{name: s.Name, superClass: s.SuperClass, enclosing: c.class}
	td := &bytecode.TypeDefinition{
		Name: s.Name, Kind: bytecode.TypeClass,
		SuperClass: s.SuperClass, Conformances: s.Conformances,
	}
	c.compileMembers(s.Members, td, ctx)

	if s.Deinit != nil {
		deinitFn := &ast.FunctionDecl{Position: s.Deinit.Position, Name: "deinit", Body: s.Deinit}
		td.HasDeinit = true
		td.DeinitBodyIdx = c.compileBodyToIdx(deinitFn, ctx)
	}

	c.asm.Types = append(c.asm.Types, td)
	c.registerType(s.Name, bytecode.TypeClass)
}

func (c *Compiler) compileStructDecl(s *ast.StructDecl) {
	ctx := &classContext{name: s.Name, isStruct: true, enclosing: c.class}
	td := &bytecode.TypeDefinition{
		Name: s.Name, Kind: bytecode.TypeStruct, Conformances: s.Conformances,
	}
	c.compileMembers(s.Members, td, ctx)

	c.asm.Types = append(c.asm.Types, td)
	c.registerType(s.Name, bytecode.TypeStruct)
}

func (c *Compiler) compileEnumDecl(s *ast.EnumDecl) {
	ctx := &classContext{name: s.Name, enclosing: c.class}
	td := &bytecode.TypeDefinition{Name: s.Name, Kind: bytecode.TypeEnum}

	for _, ec := range s.Cases {
		def := bytecode.EnumCaseDefinition{Name: ec.Name}
		if str, ok := ec.RawValue.(*ast.StringLiteral); ok {
			def.HasStringRawValue = true
			def.RawValueStringIdx = c.chunk.AddString(str.Value)
		} else if ec.RawValue != nil {
			if k, ok := foldConstant(ec.RawValue); ok {
				def.HasRawValue = true
				def.RawValue = k
			} else {
				c.addError(ec.Position, "enum case %q raw value must be a literal constant", ec.Name)
			}
		}
		for _, p := range ec.Associated {
			def.AssociatedLabels = append(def.AssociatedLabels, p.Label)
		}
		td.Cases = append(td.Cases, def)
	}

	c.compileMembers(s.Members, td, ctx)

	c.asm.Types = append(c.asm.Types, td)
	c.registerType(s.Name, bytecode.TypeEnum)
}

func (c *Compiler) compileProtocolDecl(s *ast.ProtocolDecl) {
	td := &bytecode.TypeDefinition{
		Name: s.Name, Kind: bytecode.TypeProtocolKind, Conformances: s.InheritedProtocols,
	}
	// Protocols only record requirement shapes, never bodies — BodyIdx -1
	// marks "no implementation", which the VM's conformance checker treats
	// as "must be supplied by the conforming type" rather than a real body
	// to invoke.
	for _, req := range s.Requirements {
		if req.IsProperty {
			td.ComputedProperties = append(td.ComputedProperties, bytecode.ComputedPropertyDescriptor{
				Name: req.Name, GetterBodyIdx: -1, HasSetter: req.HasSetter, SetterBodyIdx: -1,
			})
			continue
		}
		td.Methods = append(td.Methods, bytecode.MethodDescriptor{Name: req.Name, BodyIdx: -1})
	}

	c.asm.Types = append(c.asm.Types, td)
	c.registerType(s.Name, bytecode.TypeProtocolKind)
}

func (c *Compiler) compileExtensionDecl(s *ast.ExtensionDecl) {
	td := c.asm.FindType(s.TypeName)
	if td == nil {
		c.addError(s.Position, "extension of unknown type %q", s.TypeName)
		return
	}
	td.Conformances = append(td.Conformances, s.Conformances...)
	ctx := &classContext{name: td.Name, superClass: td.SuperClass, isStruct: td.Kind == bytecode.TypeStruct}
	c.compileMembers(s.Members, td, ctx)
}

// foldConstant reduces a literal expression to a bytecode.Constant for an
// enum case's raw value; non-literal raw values are rejected at compile
// time rather than deferred to the VM.
func foldConstant(expr ast.Expression) (bytecode.Constant, bool) {
	switch lit := expr.(type) {
	case *ast.IntegerLiteral:
		return bytecode.IntConstant(lit.Value), true
	case *ast.FloatLiteral:
		return bytecode.FloatConstant(lit.Value), true
	case *ast.BooleanLiteral:
		return bytecode.BoolConstant(lit.Value), true
	default:
		return bytecode.Constant{}, false
	}
}
