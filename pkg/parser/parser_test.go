package parser

import (
	"testing"

	"github.com/ssvm-lang/ssvm/pkg/ast"
)

func mustParse(t *testing.T, input string) *ast.Program {
	t.Helper()
	p := New(input)
	program, err := p.Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return program
}

func TestParseVarDecl(t *testing.T) {
	program := mustParse(t, `let x = 5`)
	if len(program.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(program.Statements))
	}
	decl, ok := program.Statements[0].(*ast.VarDecl)
	if !ok {
		t.Fatalf("expected *ast.VarDecl, got %T", program.Statements[0])
	}
	if decl.Name != "x" || !decl.IsLet {
		t.Fatalf("got %+v", decl)
	}
	lit, ok := decl.Init.(*ast.IntegerLiteral)
	if !ok || lit.Value != 5 {
		t.Fatalf("expected init 5, got %+v", decl.Init)
	}
}

func TestParseIfElse(t *testing.T) {
	program := mustParse(t, `if x > 0 { return 1 } else { return 2 }`)
	stmt, ok := program.Statements[0].(*ast.IfStmt)
	if !ok {
		t.Fatalf("expected *ast.IfStmt, got %T", program.Statements[0])
	}
	if _, ok := stmt.Cond.(*ast.BinaryExpr); !ok {
		t.Fatalf("expected binary condition, got %T", stmt.Cond)
	}
	if stmt.Else == nil {
		t.Fatal("expected else block")
	}
}

func TestParseIfLet(t *testing.T) {
	program := mustParse(t, `if let v = maybe { return v }`)
	stmt, ok := program.Statements[0].(*ast.IfLetStmt)
	if !ok {
		t.Fatalf("expected *ast.IfLetStmt, got %T", program.Statements[0])
	}
	if stmt.Name != "v" {
		t.Fatalf("got name %q", stmt.Name)
	}
}

func TestParseGuardLet(t *testing.T) {
	program := mustParse(t, `guard let v = maybe else { return }`)
	stmt, ok := program.Statements[0].(*ast.GuardLetStmt)
	if !ok {
		t.Fatalf("expected *ast.GuardLetStmt, got %T", program.Statements[0])
	}
	if stmt.Name != "v" {
		t.Fatalf("got name %q", stmt.Name)
	}
}

func TestParseForIn(t *testing.T) {
	program := mustParse(t, `for i in 0..<10 { }`)
	stmt, ok := program.Statements[0].(*ast.ForInStmt)
	if !ok {
		t.Fatalf("expected *ast.ForInStmt, got %T", program.Statements[0])
	}
	rng, ok := stmt.Iterable.(*ast.RangeExpr)
	if !ok || rng.Inclusive {
		t.Fatalf("expected exclusive range, got %+v", stmt.Iterable)
	}
}

func TestParseFunctionDeclWithLabelsAndDefaults(t *testing.T) {
	program := mustParse(t, `func greet(to name: String, times count = 1) { }`)
	decl, ok := program.Statements[0].(*ast.FunctionDecl)
	if !ok {
		t.Fatalf("expected *ast.FunctionDecl, got %T", program.Statements[0])
	}
	if len(decl.Params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(decl.Params))
	}
	if decl.Params[0].Label != "to" || decl.Params[0].Name != "name" {
		t.Fatalf("got %+v", decl.Params[0])
	}
	if decl.Params[1].Default == nil {
		t.Fatalf("expected default on second param")
	}
}

func TestParseClassDeclWithSuperAndConformance(t *testing.T) {
	program := mustParse(t, `class Dog: Animal, Describable { var name = "Rex" }`)
	decl, ok := program.Statements[0].(*ast.ClassDecl)
	if !ok {
		t.Fatalf("expected *ast.ClassDecl, got %T", program.Statements[0])
	}
	if decl.SuperClass != "Animal" {
		t.Fatalf("expected superclass Animal, got %q", decl.SuperClass)
	}
	if len(decl.Conformances) != 1 || decl.Conformances[0] != "Describable" {
		t.Fatalf("got conformances %+v", decl.Conformances)
	}
	if len(decl.Members) != 1 {
		t.Fatalf("expected 1 member, got %d", len(decl.Members))
	}
}

func TestParseEnumWithAssociatedAndRawValues(t *testing.T) {
	program := mustParse(t, `enum Shape { case circle(radius: Int), square(side: Int) }`)
	decl, ok := program.Statements[0].(*ast.EnumDecl)
	if !ok {
		t.Fatalf("expected *ast.EnumDecl, got %T", program.Statements[0])
	}
	if len(decl.Cases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(decl.Cases))
	}
	if decl.Cases[0].Name != "circle" || len(decl.Cases[0].Associated) != 1 {
		t.Fatalf("got %+v", decl.Cases[0])
	}
}

func TestParseProtocolWithInheritance(t *testing.T) {
	program := mustParse(t, `protocol Named: Describable { var name }`)
	decl, ok := program.Statements[0].(*ast.ProtocolDecl)
	if !ok {
		t.Fatalf("expected *ast.ProtocolDecl, got %T", program.Statements[0])
	}
	if len(decl.InheritedProtocols) != 1 || decl.InheritedProtocols[0] != "Describable" {
		t.Fatalf("got %+v", decl.InheritedProtocols)
	}
}

func TestParseClosureExprWithParams(t *testing.T) {
	program := mustParse(t, `let add = { a, b in a + b }`)
	decl := program.Statements[0].(*ast.VarDecl)
	closure, ok := decl.Init.(*ast.ClosureExpr)
	if !ok {
		t.Fatalf("expected *ast.ClosureExpr, got %T", decl.Init)
	}
	if len(closure.Params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(closure.Params))
	}
}

func TestParseMemberCallSubscriptChain(t *testing.T) {
	program := mustParse(t, `let v = list.items[0].name`)
	decl := program.Statements[0].(*ast.VarDecl)
	member, ok := decl.Init.(*ast.MemberExpr)
	if !ok {
		t.Fatalf("expected *ast.MemberExpr, got %T", decl.Init)
	}
	if member.Name != "name" {
		t.Fatalf("got %q", member.Name)
	}
	if _, ok := member.Receiver.(*ast.SubscriptExpr); !ok {
		t.Fatalf("expected subscript receiver, got %T", member.Receiver)
	}
}

func TestParseOptionalChainNilCoalesceForceUnwrap(t *testing.T) {
	program := mustParse(t, `let a = x?.y ?? z!`)
	decl := program.Statements[0].(*ast.VarDecl)
	coalesce, ok := decl.Init.(*ast.NilCoalesceExpr)
	if !ok {
		t.Fatalf("expected *ast.NilCoalesceExpr, got %T", decl.Init)
	}
	if _, ok := coalesce.Left.(*ast.OptionalChainExpr); !ok {
		t.Fatalf("expected optional chain on left, got %T", coalesce.Left)
	}
	if _, ok := coalesce.Right.(*ast.ForceUnwrapExpr); !ok {
		t.Fatalf("expected force unwrap on right, got %T", coalesce.Right)
	}
}

func TestParseNamedCallArguments(t *testing.T) {
	program := mustParse(t, `foo(1, label: 2)`)
	stmt := program.Statements[0].(*ast.ExpressionStmt)
	call, ok := stmt.Expr.(*ast.CallExpr)
	if !ok {
		t.Fatalf("expected *ast.CallExpr, got %T", stmt.Expr)
	}
	if len(call.Args) != 2 || call.Args[1].Label != "label" {
		t.Fatalf("got %+v", call.Args)
	}
}
