package compiler

import (
	"strings"

	"github.com/ssvm-lang/ssvm/pkg/ast"
	"github.com/ssvm-lang/ssvm/pkg/bytecode"
)

// genericKind distinguishes which declaration shape a template wraps, since
// FunctionDecl/ClassDecl/StructDecl each lower through a different
// compileXDecl entry point.
type genericKind int

const (
	genericFunc genericKind = iota
	genericClass
	genericStruct
)

// genericTemplate is a declaration recorded on first sight (spec §4.3/§9)
// because it names type parameters in Generics — it is never compiled
// itself, only used as the source a concrete call site's type arguments
// specialize.
type genericTemplate struct {
	kind  genericKind
	fn    *ast.FunctionDecl
	cls   *ast.ClassDecl
	strct *ast.StructDecl
}

// mangleGenericName combines a template's base name with its type-argument
// names (spec §9's literal wording) into the synthetic declaration name a
// specialized call site resolves against. "$" never appears in a source
// identifier (see lexer.isLetter), so a mangled name can never collide with
// anything the user could have written.
func mangleGenericName(base string, typeArgs []string) string {
	return base + "$" + strings.Join(typeArgs, "$")
}

// registerGenericTemplate records a templated declaration on the root
// compiler, keyed by its base name.
func (c *Compiler) registerGenericTemplate(name string, t *genericTemplate) {
	root := c.rootCompiler()
	if root.generics == nil {
		root.generics = make(map[string]*genericTemplate)
	}
	root.generics[name] = t
}

// ensureSpecialization looks up baseName's template; if found, it returns
// the mangled name for typeArgs and the template's kind, lowering a fresh
// specialization the first time this (base, typeArgs) pair is seen. It
// returns ok=false when baseName names no known template, so the caller
// falls back to ordinary identifier resolution.
//
// Lowering happens immediately rather than through a deferred queue: a
// specialized function declaration emits its OP_FUNCTION/OP_DEFINE_GLOBAL
// pair into the root chunk's code right here, at the call site that needed
// it, which is exactly where that code must sit for the global to exist by
// the time the call's own OP_GET_GLOBAL runs. Deferring it to the end of
// the program (after the call site's bytecode) would define the global too
// late for a script executed top-to-bottom. A specialized class/struct
// writes no bytecode at all (compileClassDecl/compileStructDecl only
// populate asm.Types, resolved by name at the point the type is loaded), so
// this ordering concern never applies to them.
func (c *Compiler) ensureSpecialization(baseName string, typeArgs []string) (mangled string, kind genericKind, ok bool) {
	root := c.rootCompiler()
	tmpl, found := root.generics[baseName]
	if !found {
		return "", 0, false
	}
	mangled = mangleGenericName(baseName, typeArgs)
	if root.specialized == nil {
		root.specialized = make(map[string]bool)
	}
	if !root.specialized[mangled] {
		// Reserve before lowering: a self-recursive generic calling itself
		// with the same type arguments must see the reservation and stop,
		// not specialize indefinitely.
		root.specialized[mangled] = true
		root.lowerSpecialization(mangled, tmpl)
	}
	return mangled, tmpl.kind, true
}

// compileSpecializedCallee loads a specialized declaration's runtime value
// as a call's callee: a specialized function resolves as an ordinary
// global, a specialized class/struct the same way any type reference does,
// via its dedicated OP_CLASS/OP_STRUCT load.
func (c *Compiler) compileSpecializedCallee(mangled string, kind genericKind, line int) {
	nameIdx := c.chunk.AddString(mangled)
	switch kind {
	case genericFunc:
		c.chunk.EmitU16(bytecode.OpGetGlobal, nameIdx, line)
	case genericStruct:
		c.chunk.EmitU16(bytecode.OpStruct, nameIdx, line)
	case genericClass:
		c.chunk.EmitU16(bytecode.OpClass, nameIdx, line)
	}
}

// lowerSpecialization compiles one concrete instantiation of tmpl under its
// mangled name, always through the root compiler so a function
// specialization defines a true global regardless of how deeply nested the
// call site that triggered it is.
func (c *Compiler) lowerSpecialization(mangled string, tmpl *genericTemplate) {
	root := c.rootCompiler()
	switch tmpl.kind {
	case genericFunc:
		specialized := *tmpl.fn
		specialized.Name = mangled
		specialized.Generics = nil
		root.compileFunctionDecl(&specialized)
	case genericClass:
		specialized := *tmpl.cls
		specialized.Name = mangled
		specialized.Generics = nil
		root.compileClassDecl(&specialized)
	case genericStruct:
		specialized := *tmpl.strct
		specialized.Name = mangled
		specialized.Generics = nil
		root.compileStructDecl(&specialized)
	}
}
