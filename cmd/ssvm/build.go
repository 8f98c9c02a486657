package main

import (
	"os"
	"path/filepath"

	"github.com/ssvm-lang/ssvm/pkg/ast"
	"github.com/ssvm-lang/ssvm/pkg/bytecode"
	"github.com/ssvm-lang/ssvm/pkg/compiler"
	"github.com/ssvm-lang/ssvm/pkg/diagnostic"
	"github.com/ssvm-lang/ssvm/pkg/parser"
	"github.com/ssvm-lang/ssvm/pkg/project"
	"github.com/ssvm-lang/ssvm/pkg/resolver"
)

// buildAssembly loads projectPath (§6.5), splices every import it
// transitively reaches into one program, and compiles the result. The
// project's entry file gives the assembly its manifest name.
func buildAssembly(projectPath string) (*bytecode.Assembly, error) {
	proj, err := project.Load(projectPath)
	if err != nil {
		return nil, err
	}

	entryPath := proj.Entry
	if !filepath.IsAbs(entryPath) {
		entryPath = filepath.Join(filepath.Dir(projectPath), proj.Entry)
	}
	src, err := os.ReadFile(entryPath)
	if err != nil {
		return nil, diagnostic.Wrap(diagnostic.KindAssemblyIO, err, "reading entry file %q", entryPath)
	}

	program, err := parser.New(string(src)).Parse()
	if err != nil {
		return nil, err
	}

	res := resolver.New(proj.ImportRoots)
	if err := spliceImports(program, res); err != nil {
		return nil, err
	}

	name := strimExt(filepath.Base(proj.Entry))
	return compiler.CompileProgram(program, name)
}

// spliceImports walks program's top-level import statements, resolves each
// one (with cycle detection via the resolver's in-progress stack), parses
// the imported source, recursively splices its own imports first, then
// appends its declarations to program — matching the compiler's expectation
// (see compiler.go's ImportStmt case) that module resolution happens before
// compilation.
func spliceImports(program *ast.Program, res *resolver.Resolver) error {
	seen := make(map[string]bool)
	return spliceImportsInto(program, program, res, seen)
}

func spliceImportsInto(root, program *ast.Program, res *resolver.Resolver, seen map[string]bool) error {
	for _, stmt := range program.Statements {
		imp, ok := stmt.(*ast.ImportStmt)
		if !ok {
			continue
		}
		if seen[imp.Name] {
			continue
		}
		if !res.BeginImport(imp.Name) {
			return resolver.CircularImportError(imp.Name)
		}
		mod, err := res.Resolve(imp.Name)
		if err != nil {
			res.EndImport(imp.Name)
			return err
		}
		modProgram, err := parser.New(mod.Source).Parse()
		if err != nil {
			res.EndImport(imp.Name)
			return err
		}
		if err := spliceImportsInto(root, modProgram, res, seen); err != nil {
			res.EndImport(imp.Name)
			return err
		}
		seen[imp.Name] = true
		res.EndImport(imp.Name)
		if imp.Alias == "" {
			root.Statements = append(root.Statements, modProgram.Statements...)
		}
	}
	return nil
}

func strimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}
