// Package value defines the runtime value representation and heap object
// model the VM operates on: a tagged scalar cell (Value) and the object
// variants it can point at (String, List, Map, Function, Closure, Class,
// Instance, and the rest of the heap-object zoo).
//
// Go has no union types, so Value is a flat struct wide enough to hold any
// variant's payload rather than the 16-byte packed cell the spec describes
// conceptually: scalar payloads live in bits (reinterpreted through
// math.Float64bits for floats), and obj is only meaningful when tag is
// TagObject.
package value

import "math"

// Tag discriminates a Value's payload kind.
type Tag byte

const (
	TagNull Tag = iota
	TagUndefined
	TagBool
	TagInt
	TagFloat
	TagObject
)

// RefDiscipline records how a Value holding an object payload participates
// in reference counting. It is meaningless (don't-care) on scalar values.
type RefDiscipline byte

const (
	RefStrong RefDiscipline = iota
	RefWeak
	RefUnowned
)

// floatEpsilon is the scale-relative tolerance used by float equality (spec
// §9's open question, resolved in SPEC_FULL.md §7).
const floatEpsilon = 1e-9

// Value is the VM's universal scalar cell.
type Value struct {
	tag  Tag
	ref  RefDiscipline
	bits uint64
	obj  Object
}

func Null() Value      { return Value{tag: TagNull} }
func Undefined() Value { return Value{tag: TagUndefined} }

func Bool(b bool) Value {
	var bits uint64
	if b {
		bits = 1
	}
	return Value{tag: TagBool, bits: bits}
}

func Int(i int64) Value { return Value{tag: TagInt, bits: uint64(i)} }

func Float(f float64) Value { return Value{tag: TagFloat, bits: math.Float64bits(f)} }

// FromObject wraps a heap object with the given reference discipline.
func FromObject(o Object, ref RefDiscipline) Value {
	return Value{tag: TagObject, ref: ref, obj: o}
}

func (v Value) Tag() Tag                 { return v.tag }
func (v Value) RefDiscipline() RefDiscipline { return v.ref }

func (v Value) IsNull() bool      { return v.tag == TagNull }
func (v Value) IsUndefined() bool { return v.tag == TagUndefined }
func (v Value) IsBool() bool      { return v.tag == TagBool }
func (v Value) IsInt() bool       { return v.tag == TagInt }
func (v Value) IsFloat() bool     { return v.tag == TagFloat }
func (v Value) IsNumber() bool    { return v.tag == TagInt || v.tag == TagFloat }
func (v Value) IsObject() bool    { return v.tag == TagObject }

// IsAlive reports whether an object-payload value's target has not yet been
// marked dead by the RC engine. Scalars are always alive.
func (v Value) IsAlive() bool {
	if v.tag != TagObject || v.obj == nil {
		return true
	}
	return !v.obj.Header().IsDead
}

func (v Value) AsBool() bool     { return v.bits != 0 }
func (v Value) AsInt() int64     { return int64(v.bits) }
func (v Value) AsFloat() float64 { return math.Float64frombits(v.bits) }
func (v Value) AsObject() Object { return v.obj }

// AsNumber returns a value's numeric payload promoted to float64, for
// arithmetic that mixes int and float operands.
func (v Value) AsNumber() float64 {
	if v.tag == TagInt {
		return float64(v.AsInt())
	}
	return v.AsFloat()
}

// Equals implements spec §3.1's structural equality: scalars compare by
// content (int/float cross-promote), strings by content, enum cases by enum
// identity plus case name, and every other object variant by identity.
func (v Value) Equals(other Value) bool {
	switch {
	case v.tag == TagNull && other.tag == TagNull:
		return true
	case v.tag == TagUndefined && other.tag == TagUndefined:
		return true
	case v.tag == TagBool && other.tag == TagBool:
		return v.AsBool() == other.AsBool()
	case v.IsNumber() && other.IsNumber():
		if v.tag == TagInt && other.tag == TagInt {
			return v.AsInt() == other.AsInt()
		}
		a, b := v.AsNumber(), other.AsNumber()
		return math.Abs(a-b) <= floatEpsilon*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	case v.tag == TagObject && other.tag == TagObject:
		return objectsEqual(v.obj, other.obj)
	default:
		return false
	}
}

func objectsEqual(a, b Object) bool {
	if a == nil || b == nil {
		return a == b
	}
	as, aok := a.(*String)
	bs, bok := b.(*String)
	if aok && bok {
		return as.Chars == bs.Chars
	}
	ac, acok := a.(*EnumCase)
	bc, bcok := b.(*EnumCase)
	if acok && bcok {
		return ac.EnumType == bc.EnumType && ac.CaseName == bc.CaseName
	}
	return a == b
}
