package ast

// Param is one declared parameter of a function/method/initializer: its
// internal name, optional external label ("" means positional-only), an
// optional default-value expression, and a type annotation used only for
// generic constraint checking (the VM itself is dynamically typed at the
// value level).
type Param struct {
	Name    string
	Label   string
	Default Expression // nil when the parameter has no default
	Type    string
}

// FunctionDecl is a top-level func, a class/struct method, or an
// initializer. Generics lists the declaration's own type-parameter names
// (empty for a non-generic declaration); IsInitializer/IsOverride/
// IsMutating/IsStatic mirror the flags the compiler records on the
// prototype.
type FunctionDecl struct {
	Position
	Name          string
	Generics      []string
	Params        []Param
	Body          *BlockStmt
	IsInitializer bool
	IsOverride    bool
	IsMutating    bool
	IsStatic      bool
}

func (n *FunctionDecl) Pos() Position { return n.Position }
func (n *FunctionDecl) statementNode() {}

// PropertyDecl is a stored property declaration, with optional willSet/
// didSet observers and a lazy flag (spec §3.2).
type PropertyDecl struct {
	Position
	Name    string
	IsLet   bool
	IsLazy  bool
	Default Expression
	WillSet *FunctionDecl // synthetic one-param (newValue) function, nil if absent
	DidSet  *FunctionDecl // synthetic one-param (oldValue) function, nil if absent
	IsStatic bool
}

func (n *PropertyDecl) Pos() Position { return n.Position }
func (n *PropertyDecl) statementNode() {}

// ComputedPropertyDecl is a getter/(optional setter) pair.
type ComputedPropertyDecl struct {
	Position
	Name     string
	Getter   *FunctionDecl
	Setter   *FunctionDecl // nil for a read-only computed property
	IsStatic bool
}

func (n *ComputedPropertyDecl) Pos() Position { return n.Position }
func (n *ComputedPropertyDecl) statementNode() {}

// ClassDecl is a reference-type declaration with single inheritance.
// Members is a flat list in source order, which the compiler records into
// the assembly's type-definition table; no class-building opcodes are
// emitted for it. Deinit is nil when the class declares none.
type ClassDecl struct {
	Position
	Name         string
	Generics     []string
	SuperClass   string
	Conformances []string
	Members      []Statement // VarDecl | PropertyDecl | ComputedPropertyDecl | FunctionDecl
	Deinit       *BlockStmt
}

func (n *ClassDecl) Pos() Position { return n.Position }
func (n *ClassDecl) statementNode() {}

// StructDecl is a value-type declaration; no superclass, methods carry an
// is-mutating flag instead.
type StructDecl struct {
	Position
	Name         string
	Generics     []string
	Conformances []string
	Members      []Statement // VarDecl | PropertyDecl | ComputedPropertyDecl | FunctionDecl
}

func (n *StructDecl) Pos() Position { return n.Position }
func (n *StructDecl) statementNode() {}

// EnumCaseDecl is one case of an EnumDecl: its name, optional raw value,
// and associated-value parameter shapes (reusing Param for the label/type
// pair, Default unused).
type EnumCaseDecl struct {
	Position
	Name       string
	RawValue   Expression // nil when the enum has no raw-value backing
	Associated []Param
}

// EnumDecl is an enum declaration with raw and/or associated values.
type EnumDecl struct {
	Position
	Name    string
	Cases   []EnumCaseDecl
	Members []Statement // FunctionDecl | ComputedPropertyDecl
}

func (n *EnumDecl) Pos() Position { return n.Position }
func (n *EnumDecl) statementNode() {}

// ProtocolRequirement is one required member of a ProtocolDecl.
type ProtocolRequirement struct {
	Name       string
	IsProperty bool
	HasSetter  bool // meaningful only when IsProperty
}

// ProtocolDecl lists required methods/properties and may itself extend
// other protocols (SPEC_FULL.md §4's supplemented protocol inheritance).
type ProtocolDecl struct {
	Position
	Name               string
	InheritedProtocols []string
	Requirements       []ProtocolRequirement
}

func (n *ProtocolDecl) Pos() Position { return n.Position }
func (n *ProtocolDecl) statementNode() {}

// ExtensionDecl adds members to an existing type after the fact; the
// compiler lowers its Members exactly as if they had been declared inside
// the original type (spec §4.3).
type ExtensionDecl struct {
	Position
	TypeName     string
	Conformances []string
	Members      []Statement
}

func (n *ExtensionDecl) Pos() Position { return n.Position }
func (n *ExtensionDecl) statementNode() {}
