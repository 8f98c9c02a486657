package value

import "github.com/ssvm-lang/ssvm/pkg/bytecode"

// Function wraps a compiled prototype with the header that lets it live on
// the heap and participate in RC. Plain functions (no captures) are
// represented directly by this variant; functions with captures are wrapped
// in a Closure instead.
type Function struct {
	hdr   Header
	Proto *bytecode.FunctionPrototype
}

func NewFunction(proto *bytecode.FunctionPrototype) *Function {
	return &Function{hdr: NewHeader(VarFunction, 64), Proto: proto}
}

func (f *Function) Header() *Header { return &f.hdr }

func (f *Function) IsInitializer() bool { return f.Proto.IsInitializer }
func (f *Function) IsOverride() bool    { return f.Proto.IsOverride }
func (f *Function) IsMutating() bool    { return f.Proto.IsMutating }

// Upvalue is an indirection that either addresses a live stack slot (open)
// or owns a closed-over value (closed). The VM's single per-VM open-upvalue
// list threads these by descending stack depth (spec §3.3).
type Upvalue struct {
	hdr        Header
	IsOpen     bool
	StackIndex int // meaningful only while IsOpen
	Closed     Value
	Next       *Upvalue // intrusive open-upvalue list link, not the all-objects list
}

func NewOpenUpvalue(stackIndex int) *Upvalue {
	return &Upvalue{hdr: NewHeader(VarUpvalue, 24), IsOpen: true, StackIndex: stackIndex}
}

func (u *Upvalue) Header() *Header { return &u.hdr }

// Close copies the addressed slot's current value into the upvalue's own
// cell and repoints future reads there.
func (u *Upvalue) Close(slotValue Value) {
	u.Closed = slotValue
	u.IsOpen = false
}

// Closure pairs a function with the upvalue handles it captured at
// instantiation time.
type Closure struct {
	hdr      Header
	Fn       *Function
	Upvalues []*Upvalue
}

func NewClosure(fn *Function, upvalues []*Upvalue) *Closure {
	return &Closure{hdr: NewHeader(VarClosure, 32+8*len(upvalues)), Fn: fn, Upvalues: upvalues}
}

func (c *Closure) Header() *Header { return &c.hdr }

// BoundMethod pairs a receiver with a method value, created on member
// access against a class/struct instance and called like any function.
type BoundMethod struct {
	hdr        Header
	Receiver   Value
	Method     *Function
	IsMutating bool
}

func NewBoundMethod(receiver Value, method *Function, mutating bool) *BoundMethod {
	return &BoundMethod{hdr: NewHeader(VarBoundMethod, 32), Receiver: receiver, Method: method, IsMutating: mutating}
}

func (b *BoundMethod) Header() *Header { return &b.hdr }

// BuiltinMethod is a receiver plus a method-name string, dispatched in the
// VM by name (list/range built-ins such as append and stride, and enum-case
// construction); count is a property, not a built-in method.
type BuiltinMethod struct {
	hdr      Header
	Receiver Value
	Name     string
}

func NewBuiltinMethod(receiver Value, name string) *BuiltinMethod {
	return &BuiltinMethod{hdr: NewHeader(VarBuiltinMethod, 32), Receiver: receiver, Name: name}
}

func (b *BuiltinMethod) Header() *Header { return &b.hdr }
