package value

// EnumType is an enum declaration: name, registered cases, methods, and
// computed properties.
type EnumType struct {
	hdr                Header
	Name               string
	Cases              map[string]*EnumCaseTemplate
	Methods            map[string]*Function
	ComputedProperties []ComputedPropertyDescriptor
	StaticMethods      map[string]*Function
	StaticProperties   map[string]Value
}

// EnumCaseTemplate is the case shape recorded on the enum type at
// definition time — not yet a value; EnumCase below is the runtime object
// produced when the case is referenced.
type EnumCaseTemplate struct {
	Name             string
	HasRawValue      bool
	RawValue         Value
	AssociatedLabels []string
}

func NewEnumType(name string) *EnumType {
	return &EnumType{
		hdr:              NewHeader(VarEnumType, 96),
		Name:             name,
		Cases:            make(map[string]*EnumCaseTemplate),
		Methods:          make(map[string]*Function),
		StaticMethods:    make(map[string]*Function),
		StaticProperties: make(map[string]Value),
	}
}

func (e *EnumType) Header() *Header { return &e.hdr }

func (e *EnumType) FindMethod(name string) (*Function, bool) {
	fn, ok := e.Methods[name]
	return fn, ok
}

// EnumCase is a concrete case value: its enum type, case name, optional raw
// value, and associated-value vector with optional per-slot labels.
type EnumCase struct {
	hdr              Header
	EnumType         *EnumType
	CaseName         string
	HasRawValue      bool
	RawValue         Value
	Associated       []Value
	AssociatedLabels []string
}

func NewEnumCase(enumType *EnumType, caseName string) *EnumCase {
	return &EnumCase{hdr: NewHeader(VarEnumCase, 48), EnumType: enumType, CaseName: caseName}
}

func (c *EnumCase) Header() *Header { return &c.hdr }

// Labeled returns the associated value at the given label and true, or the
// zero Value and false.
func (c *EnumCase) Labeled(label string) (Value, bool) {
	for i, l := range c.AssociatedLabels {
		if l == label {
			return c.Associated[i], true
		}
	}
	return Value{}, false
}
