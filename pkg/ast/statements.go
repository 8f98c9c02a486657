package ast

// ExpressionStmt wraps an expression evaluated for its side effect, its
// result discarded (compiled as the expression followed by OP_POP).
type ExpressionStmt struct {
	Position
	Expr Expression
}

func (n *ExpressionStmt) Pos() Position { return n.Position }
func (n *ExpressionStmt) statementNode() {}

// VarDecl is `let`/`var name[: Type] = init`. IsLet distinguishes an
// immutable binding; Init is nil for a declaration with no initializer
// (permitted only when TypeAnnotation is present, per the usual Swift-family
// rule — the parser, not this package, enforces that). IsWeak/IsUnowned
// record a `weak`/`unowned` modifier prefixing the declaration (spec §4.2's
// reference-discipline tags exposed at the declaration level); at most one
// of the two is ever set.
type VarDecl struct {
	Position
	Name           string
	IsLet          bool
	TypeAnnotation string
	Init           Expression
	IsWeak         bool
	IsUnowned      bool
}

func (n *VarDecl) Pos() Position { return n.Position }
func (n *VarDecl) statementNode() {}

// BlockStmt is a brace-delimited statement sequence introducing a new
// lexical scope.
type BlockStmt struct {
	Position
	Statements []Statement
}

func (n *BlockStmt) Pos() Position { return n.Position }
func (n *BlockStmt) statementNode() {}

// IfStmt is `if cond { then } else { else }`; Else may be nil, or itself an
// *IfStmt for an `else if` chain.
type IfStmt struct {
	Position
	Cond Expression
	Then *BlockStmt
	Else Statement
}

func (n *IfStmt) Pos() Position { return n.Position }
func (n *IfStmt) statementNode() {}

// IfLetStmt is `if let name = Optional { then } else { else }`.
type IfLetStmt struct {
	Position
	Name string
	Opt  Expression
	Then *BlockStmt
	Else Statement
}

func (n *IfLetStmt) Pos() Position { return n.Position }
func (n *IfLetStmt) statementNode() {}

// GuardLetStmt is `guard let name = Optional else { exitingBlock }`; the
// compiler statically checks that Else is an exiting statement (spec §4.3).
type GuardLetStmt struct {
	Position
	Name string
	Opt  Expression
	Else *BlockStmt
}

func (n *GuardLetStmt) Pos() Position { return n.Position }
func (n *GuardLetStmt) statementNode() {}

// WhileStmt is `while cond { body }`.
type WhileStmt struct {
	Position
	Cond Expression
	Body *BlockStmt
}

func (n *WhileStmt) Pos() Position { return n.Position }
func (n *WhileStmt) statementNode() {}

// RepeatWhileStmt is `repeat { body } while cond` — body runs once before
// the condition is first tested.
type RepeatWhileStmt struct {
	Position
	Body *BlockStmt
	Cond Expression
}

func (n *RepeatWhileStmt) Pos() Position { return n.Position }
func (n *RepeatWhileStmt) statementNode() {}

// ForInStmt is `for name in iterable { body }`; every iterable, a RangeExpr
// included, is lowered the same way: a hidden index counts up while it is
// below iterable.count, and each pass binds name to iterable[index].
type ForInStmt struct {
	Position
	Name     string
	Iterable Expression
	Body     *BlockStmt
}

func (n *ForInStmt) Pos() Position { return n.Position }
func (n *ForInStmt) statementNode() {}

// BreakStmt and ContinueStmt are only valid lexically inside a loop body.
type BreakStmt struct{ Position }

func (n *BreakStmt) Pos() Position { return n.Position }
func (n *BreakStmt) statementNode() {}

type ContinueStmt struct{ Position }

func (n *ContinueStmt) Pos() Position { return n.Position }
func (n *ContinueStmt) statementNode() {}

// ReturnStmt is `return [expr]`; Value is nil for a bare return.
type ReturnStmt struct {
	Position
	Value Expression
}

func (n *ReturnStmt) Pos() Position { return n.Position }
func (n *ReturnStmt) statementNode() {}

// ThrowStmt is `throw expr`; per spec §9 this lowers to abrupt VM
// termination rendering the thrown value — there is no catch frame.
type ThrowStmt struct {
	Position
	Value Expression
}

func (n *ThrowStmt) Pos() Position { return n.Position }
func (n *ThrowStmt) statementNode() {}

// ImportStmt is `import Name` or `import Name as Alias`; a non-empty Alias
// makes the compiler bind Alias as a global holding the module's name as a
// string. The aliased module's symbols are not spliced in, and no Module
// object is built for it.
type ImportStmt struct {
	Position
	Name  string
	Alias string
}

func (n *ImportStmt) Pos() Position { return n.Position }
func (n *ImportStmt) statementNode() {}
