// Package ast defines the syntax-tree node shapes the compiler lowers.
// Per spec.md §1, the lexer and tree producer are external collaborators
// with a fixed interface; this package is that interface's contract. Every
// node carries a source Position so parse and compile errors can report a
// line (spec §7) without requiring the out-of-scope Language Server's
// semantic-token machinery.
package ast

// Position is a node's source location.
type Position struct {
	Line int
	Col  int
}

// Node is implemented by every syntax-tree node.
type Node interface {
	Pos() Position
}

// Expression is a node that produces a value when lowered.
type Expression interface {
	Node
	expressionNode()
}

// Statement is a node that produces no value itself.
type Statement interface {
	Node
	statementNode()
}

// Program is the root of a parsed source file: a flat sequence of top-level
// statements (declarations included — classes, functions, and imports are
// themselves statements).
type Program struct {
	Position
	Statements []Statement
}

func (p *Program) Pos() Position { return p.Position }
