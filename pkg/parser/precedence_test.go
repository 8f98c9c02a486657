package parser

import (
	"testing"

	"github.com/ssvm-lang/ssvm/pkg/ast"
)

func TestPrecedenceMultiplicationBindsTighterThanAddition(t *testing.T) {
	program := mustParse(t, "3 + 4 * 2")
	stmt := program.Statements[0].(*ast.ExpressionStmt)
	bin, ok := stmt.Expr.(*ast.BinaryExpr)
	if !ok || bin.Op != "+" {
		t.Fatalf("expected top-level +, got %+v", stmt.Expr)
	}
	rhs, ok := bin.Right.(*ast.BinaryExpr)
	if !ok || rhs.Op != "*" {
		t.Fatalf("expected right-hand * node, got %+v", bin.Right)
	}
}

func TestPrecedenceComparisonBindsLooserThanAdditive(t *testing.T) {
	program := mustParse(t, "a + 1 > b - 1")
	stmt := program.Statements[0].(*ast.ExpressionStmt)
	bin, ok := stmt.Expr.(*ast.BinaryExpr)
	if !ok || bin.Op != ">" {
		t.Fatalf("expected top-level >, got %+v", stmt.Expr)
	}
	if _, ok := bin.Left.(*ast.BinaryExpr); !ok {
		t.Fatalf("expected additive left side, got %T", bin.Left)
	}
	if _, ok := bin.Right.(*ast.BinaryExpr); !ok {
		t.Fatalf("expected additive right side, got %T", bin.Right)
	}
}

func TestPrecedenceLogicalAndBindsTighterThanOr(t *testing.T) {
	program := mustParse(t, "a || b && c")
	stmt := program.Statements[0].(*ast.ExpressionStmt)
	or, ok := stmt.Expr.(*ast.LogicalExpr)
	if !ok || or.Op != "||" {
		t.Fatalf("expected top-level ||, got %+v", stmt.Expr)
	}
	if and, ok := or.Right.(*ast.LogicalExpr); !ok || and.Op != "&&" {
		t.Fatalf("expected && on the right, got %+v", or.Right)
	}
}

func TestPrecedenceAssignmentIsRightAssociative(t *testing.T) {
	program := mustParse(t, "a = b = 1")
	stmt := program.Statements[0].(*ast.ExpressionStmt)
	assign, ok := stmt.Expr.(*ast.AssignExpr)
	if !ok {
		t.Fatalf("expected top-level assignment, got %+v", stmt.Expr)
	}
	if _, ok := assign.Value.(*ast.AssignExpr); !ok {
		t.Fatalf("expected nested assignment on the right, got %T", assign.Value)
	}
}

func TestPrecedenceUnaryBindsTighterThanBinary(t *testing.T) {
	program := mustParse(t, "-a + b")
	stmt := program.Statements[0].(*ast.ExpressionStmt)
	bin, ok := stmt.Expr.(*ast.BinaryExpr)
	if !ok || bin.Op != "+" {
		t.Fatalf("expected top-level +, got %+v", stmt.Expr)
	}
	if _, ok := bin.Left.(*ast.UnaryExpr); !ok {
		t.Fatalf("expected unary left side, got %T", bin.Left)
	}
}

func TestPrecedenceCallBindsTighterThanArithmetic(t *testing.T) {
	program := mustParse(t, "foo() + 1")
	stmt := program.Statements[0].(*ast.ExpressionStmt)
	bin, ok := stmt.Expr.(*ast.BinaryExpr)
	if !ok || bin.Op != "+" {
		t.Fatalf("expected top-level +, got %+v", stmt.Expr)
	}
	if _, ok := bin.Left.(*ast.CallExpr); !ok {
		t.Fatalf("expected call left side, got %T", bin.Left)
	}
}

func TestPrecedenceMemberAccessBindsTighterThanCall(t *testing.T) {
	program := mustParse(t, "a.b()")
	stmt := program.Statements[0].(*ast.ExpressionStmt)
	call, ok := stmt.Expr.(*ast.CallExpr)
	if !ok {
		t.Fatalf("expected call, got %+v", stmt.Expr)
	}
	if _, ok := call.Callee.(*ast.MemberExpr); !ok {
		t.Fatalf("expected member-expr callee, got %T", call.Callee)
	}
}
