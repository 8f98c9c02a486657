package value

// Variant discriminates a heap object's concrete shape, stored in its
// header so the RC engine's child-release walk can dispatch without a type
// switch on every containment edge.
type Variant byte

const (
	VarString Variant = iota
	VarList
	VarMap
	VarFunction
	VarClosure
	VarUpvalue
	VarClass
	VarInstance
	VarStructType
	VarStructInstance
	VarEnumType
	VarEnumCase
	VarProtocol
	VarBoundMethod
	VarBuiltinMethod
	VarTuple
	VarRange
	VarModule
)

// Header is embedded in every concrete object variant. It carries the
// reference-counting bookkeeping (spec §3.2): strong/weak counts, the
// creator-reference flag, liveness, the registered weak-slot set, the
// intrusive all-objects list pointer, and a tracked-size figure for memory
// accounting.
type Header struct {
	Variant       Variant
	Strong        int32
	Weak          int32
	HasCreatorRef bool
	IsDead        bool
	WeakSlots     map[*Value]struct{}
	Next          Object
	TrackedSize   int
}

// NewHeader returns a header for a freshly allocated object: strong count 1,
// creator-ref set (per spec §3.3's "born with has-creator-ref=true").
func NewHeader(v Variant, size int) Header {
	return Header{
		Variant:       v,
		Strong:        1,
		HasCreatorRef: true,
		WeakSlots:     make(map[*Value]struct{}),
		TrackedSize:   size,
	}
}

// Object is implemented by every heap object variant.
type Object interface {
	Header() *Header
}
