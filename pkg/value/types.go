package value

// PropertyDescriptor is a stored property's runtime shape on a class or
// struct type: its default-value producer (a zero-arg function invoked with
// the new instance bound as self, since a default may be an arbitrary
// expression, not just a literal), let/var and lazy flags, and its optional
// willSet/didSet observer functions. DefaultFn is nil for a property with no
// default (construction leaves the field unset, not a zero value).
type PropertyDescriptor struct {
	Name       string
	DefaultFn  *Function
	IsLet      bool
	IsLazy     bool
	WillSet    *Function
	DidSet     *Function
}

// ComputedPropertyDescriptor is a getter/(optional setter) pair dispatched
// uniformly with stored methods (spec §9: "computed-property getter/setter
// dispatch is uniform").
type ComputedPropertyDescriptor struct {
	Name   string
	Getter *Function
	Setter *Function // nil when read-only
}

// Class is a reference type: name, property/computed-property descriptors,
// instance and static method tables, static properties, and an optional
// superclass for single inheritance.
type Class struct {
	hdr                Header
	Name               string
	Properties         []PropertyDescriptor
	ComputedProperties []ComputedPropertyDescriptor
	Methods            map[string]*Function
	StaticMethods      map[string]*Function
	StaticProperties   map[string]Value
	Super              *Class
	Deinit             *Function // nil when the class has no deinit
}

func NewClass(name string) *Class {
	return &Class{
		hdr:              NewHeader(VarClass, 128),
		Name:             name,
		Methods:          make(map[string]*Function),
		StaticMethods:    make(map[string]*Function),
		StaticProperties: make(map[string]Value),
	}
}

func (c *Class) Header() *Header { return &c.hdr }

// FindMethod walks the superclass chain looking for a method, per spec §9
// ("method lookup walks the chain until a hit").
func (c *Class) FindMethod(name string) (*Function, bool) {
	for k := c; k != nil; k = k.Super {
		if fn, ok := k.Methods[name]; ok {
			return fn, true
		}
	}
	return nil, false
}

// FindComputedProperty walks the superclass chain for a computed property.
func (c *Class) FindComputedProperty(name string) (*ComputedPropertyDescriptor, bool) {
	for k := c; k != nil; k = k.Super {
		for i := range k.ComputedProperties {
			if k.ComputedProperties[i].Name == name {
				return &k.ComputedProperties[i], true
			}
		}
	}
	return nil, false
}

// Instance is a class object: class pointer plus a field map.
type Instance struct {
	hdr    Header
	Class  *Class
	Fields map[string]Value
}

func NewInstance(class *Class) *Instance {
	return &Instance{hdr: NewHeader(VarInstance, 64), Class: class, Fields: make(map[string]Value)}
}

func (i *Instance) Header() *Header { return &i.hdr }

// StructType is a value type: analogous to Class but with per-method
// is-mutating flags and no superclass.
type StructType struct {
	hdr                Header
	Name               string
	Properties         []PropertyDescriptor
	ComputedProperties []ComputedPropertyDescriptor
	Methods            map[string]*StructMethod
	StaticMethods      map[string]*Function
	StaticProperties   map[string]Value
}

// StructMethod pairs a function with the mutating flag the compiler
// recorded at the STRUCT_METHOD site.
type StructMethod struct {
	Fn         *Function
	IsMutating bool
}

func NewStructType(name string) *StructType {
	return &StructType{
		hdr:              NewHeader(VarStructType, 128),
		Name:             name,
		Methods:          make(map[string]*StructMethod),
		StaticMethods:    make(map[string]*Function),
		StaticProperties: make(map[string]Value),
	}
}

func (t *StructType) Header() *Header { return &t.hdr }

func (t *StructType) FindMethod(name string) (*StructMethod, bool) {
	m, ok := t.Methods[name]
	return m, ok
}

func (t *StructType) FindComputedProperty(name string) (*ComputedPropertyDescriptor, bool) {
	for i := range t.ComputedProperties {
		if t.ComputedProperties[i].Name == name {
			return &t.ComputedProperties[i], true
		}
	}
	return nil, false
}

// StructInstance is a struct object: type pointer plus a field map. Value
// semantics (spec §3.2) mean assignment and argument passing deep-copy this
// object — see (*StructInstance).Copy — rather than retaining a shared
// reference.
type StructInstance struct {
	hdr    Header
	Type   *StructType
	Fields map[string]Value
}

func NewStructInstance(t *StructType) *StructInstance {
	return &StructInstance{hdr: NewHeader(VarStructInstance, 64), Type: t, Fields: make(map[string]Value)}
}

func (s *StructInstance) Header() *Header { return &s.hdr }

// Copy returns a new StructInstance with the same field contents: nested
// struct instances are copied recursively, other object fields are shared
// by reference (spec §3.2's exact value-semantics rule). The caller is
// responsible for retaining the copy's object-payload fields through the RC
// engine; Copy itself only shapes the value.
func (s *StructInstance) Copy() *StructInstance {
	out := NewStructInstance(s.Type)
	for k, v := range s.Fields {
		if v.IsObject() {
			if nested, ok := v.AsObject().(*StructInstance); ok {
				out.Fields[k] = FromObject(nested.Copy(), RefStrong)
				continue
			}
		}
		out.Fields[k] = v
	}
	return out
}
