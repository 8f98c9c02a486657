package bytecode

import "github.com/google/uuid"

// TypeKind distinguishes the four declaration forms that own a metadata
// entry in an Assembly's definition tables.
type TypeKind byte

const (
	TypeClass TypeKind = iota
	TypeStruct
	TypeEnum
	TypeProtocolKind
)

// PropertyDescriptor is a stored-property definition: its name, whether it
// is a `let` (flag bit 0 in OP_DEFINE_PROPERTY) or `var`, whether it is
// lazily initialized, and the method-body indices of its default-value
// expression and its willSet/didSet observers (-1 when absent).
type PropertyDescriptor struct {
	Name           string
	IsLet          bool
	IsLazy         bool
	DefaultBodyIdx int
	HasWillSet     bool
	WillSetBodyIdx int
	HasDidSet      bool
	DidSetBodyIdx  int
}

// ComputedPropertyDescriptor is a getter/(optional setter) pair stored on a
// type, dispatched uniformly with stored methods per spec §9.
type ComputedPropertyDescriptor struct {
	Name         string
	GetterBodyIdx int
	HasSetter    bool
	SetterBodyIdx int
}

// MethodDescriptor indexes a method body shared via the dedup scheme in
// spec §4.6: identical (type, method, static, parameter-label) signatures
// point at the same BodyIdx; parameter types are not part of the key.
type MethodDescriptor struct {
	Name       string
	BodyIdx    int
	IsStatic   bool
	IsMutating bool
	IsOverride bool
	ParamSig   string // mangled parameter-label signature, used for overload dedup
}

// EnumCaseDefinition is one case of an enum type: its name, optional raw
// value, and the labels of its associated-value vector (empty string for an
// unlabeled position).
type EnumCaseDefinition struct {
	Name string
	// Raw values are backed either by a scalar Constant or, for a string
	// raw value, an index into the owning chunk's string table (the
	// constant pool itself is scalar-only, see Constant's doc comment).
	HasRawValue       bool
	RawValue          Constant
	HasStringRawValue bool
	RawValueStringIdx int
	AssociatedLabels  []string
}

// TypeDefinition is one class/struct/enum/protocol's full metadata: its
// stored and computed properties, instance and static methods, optional
// superclass (classes only) and declared protocol conformances, and — for
// enums — its case table.
type TypeDefinition struct {
	Name               string
	Kind               TypeKind
	SuperClass         string
	Conformances       []string
	Properties         []PropertyDescriptor
	ComputedProperties []ComputedPropertyDescriptor
	Methods            []MethodDescriptor
	StaticMethods      []MethodDescriptor
	StaticProperties   []PropertyDescriptor
	Cases              []EnumCaseDefinition
	HasDeinit          bool
	DeinitBodyIdx      int
}

// MethodBody is one entry of the assembly-wide body table: the full
// function prototype (so the VM has its parameter/label/default/upvalue
// shape for the call convention, not just raw bytecode) plus the maximum
// stack depth the compiler computed for it.
type MethodBody struct {
	Proto         *FunctionPrototype
	MaxStackDepth int
}

// Manifest is the assembly's identifying metadata: a human name, a
// (major, minor) format-compatibility pair per §6.4, and a build identifier
// stamped at compile time (see SPEC_FULL.md §4 — not part of the original
// spec's serialized contract, but attached for build traceability).
type Manifest struct {
	Name    string
	Major   uint16
	Minor   uint16
	BuildID uuid.UUID
}

// Assembly is a chunk enriched with manifest metadata and definition tables;
// it is the unit the compiler produces and the VM consumes. Main is the
// "primary method body" — the top-level script's chunk, which the VM runs
// directly. No separate entry point is recorded, and no call to a `main`
// function is emitted.
type Assembly struct {
	Manifest                 Manifest
	Main                     *Chunk
	Types                    []*TypeDefinition
	Bodies                   []*MethodBody
	GlobalConstants          []Constant
	SpecializationSignatures []string
}

// NewAssembly returns an assembly with an empty primary chunk and a fresh
// build identifier.
func NewAssembly(name string) *Assembly {
	return &Assembly{
		Manifest: Manifest{Name: name, Major: 1, Minor: 2, BuildID: uuid.New()},
		Main:     NewChunk(),
	}
}

// AddBody appends a method body and returns its index in the body table.
func (a *Assembly) AddBody(b *MethodBody) int {
	a.Bodies = append(a.Bodies, b)
	return len(a.Bodies) - 1
}

// FindType looks up a registered type definition by name.
func (a *Assembly) FindType(name string) *TypeDefinition {
	for _, t := range a.Types {
		if t.Name == name {
			return t
		}
	}
	return nil
}
