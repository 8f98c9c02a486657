package vm

import (
	"fmt"
	"strconv"

	"github.com/ssvm-lang/ssvm/pkg/value"
)

// getProperty implements OP_GET_PROPERTY/OP_OPTIONAL_CHAIN (spec §4.5): pop
// the receiver, dispatch on its runtime shape, and push the result. optional
// makes a nil receiver yield nil instead of erroring.
func (vm *VM) getProperty(name string, optional bool) error {
	recv := vm.pop()

	if recv.IsNull() {
		if optional {
			vm.push(value.Null())
			return nil
		}
		return vm.runtimeError("cannot read property %q of nil", name)
	}

	if !recv.IsObject() {
		return vm.runtimeError("value has no property %q", name)
	}

	switch obj := recv.AsObject().(type) {
	case *value.Instance:
		return vm.getInstanceProperty(recv, obj, name)
	case *value.StructInstance:
		return vm.getStructProperty(recv, obj, name)
	case *value.EnumCase:
		return vm.getEnumCaseProperty(recv, obj, name)
	case *value.Class:
		return vm.getStaticMember(recv, name, obj.StaticProperties, obj.StaticMethods)
	case *value.StructType:
		return vm.getStaticMember(recv, name, obj.StaticProperties, obj.StaticMethods)
	case *value.EnumType:
		return vm.getEnumTypeProperty(recv, obj, name)
	case *value.Map:
		return vm.getMapProperty(recv, obj, name)
	case *value.List:
		return vm.getListProperty(recv, obj, name)
	case *value.String:
		return vm.getStringProperty(recv, obj, name)
	case *value.Range:
		return vm.getRangeProperty(recv, obj, name)
	case *value.Module:
		return vm.getModuleProperty(recv, obj, name)
	default:
		vm.release(recv)
		return vm.runtimeError("value has no property %q", name)
	}
}

// getModuleProperty implements `F.bar` member access on a Module value,
// reading bar out of the module's own global table. The compiler never
// produces a Module: an aliased import (`import Foo as F`) binds a string.
func (vm *VM) getModuleProperty(recv value.Value, mod *value.Module, name string) error {
	v, ok := mod.Globals[name]
	if !ok {
		vm.release(recv)
		return vm.runtimeError("module %q has no member %q", mod.Name, name)
	}
	vm.retain(v)
	vm.release(recv)
	vm.push(v)
	return nil
}

func (vm *VM) getInstanceProperty(recv value.Value, inst *value.Instance, name string) error {
	if v, ok := inst.Fields[name]; ok {
		vm.retain(v)
		vm.release(recv)
		vm.push(v)
		return nil
	}

	if pd, ok := findPropertyDescriptor(inst.Class.Properties, name); ok && pd.IsLazy {
		v, err := vm.invokeMethod(pd.DefaultFn, recv)
		if err != nil {
			vm.release(recv)
			return err
		}
		inst.Fields[name] = v
		vm.retain(v)
		vm.release(recv)
		vm.push(v)
		return nil
	}

	if cp, ok := inst.Class.FindComputedProperty(name); ok {
		v, err := vm.invokeMethod(cp.Getter, recv)
		vm.release(recv)
		if err != nil {
			return err
		}
		vm.push(v)
		return nil
	}

	if fn, ok := inst.Class.FindMethod(name); ok {
		bm := value.NewBoundMethod(recv, fn, fn.IsMutating())
		vm.track(bm)
		vm.push(value.FromObject(bm, value.RefStrong))
		return nil
	}

	vm.release(recv)
	return vm.runtimeError("%q has no property %q", inst.Class.Name, name)
}

func (vm *VM) getStructProperty(recv value.Value, si *value.StructInstance, name string) error {
	if v, ok := si.Fields[name]; ok {
		vm.retain(v)
		vm.release(recv)
		vm.push(v)
		return nil
	}

	if pd, ok := findPropertyDescriptor(si.Type.Properties, name); ok && pd.IsLazy {
		v, err := vm.invokeMethod(pd.DefaultFn, recv)
		if err != nil {
			vm.release(recv)
			return err
		}
		si.Fields[name] = v
		vm.retain(v)
		vm.release(recv)
		vm.push(v)
		return nil
	}

	if cp, ok := si.Type.FindComputedProperty(name); ok {
		v, err := vm.invokeMethod(cp.Getter, recv)
		vm.release(recv)
		if err != nil {
			return err
		}
		vm.push(v)
		return nil
	}

	if sm, ok := si.Type.FindMethod(name); ok {
		bm := value.NewBoundMethod(recv, sm.Fn, sm.IsMutating)
		vm.track(bm)
		vm.push(value.FromObject(bm, value.RefStrong))
		return nil
	}

	vm.release(recv)
	return vm.runtimeError("%q has no property %q", si.Type.Name, name)
}

// getEnumCaseProperty implements the small built-in table spec §4.5 names
// for enum cases: rawValue, associated (the full vector), caseName.
func (vm *VM) getEnumCaseProperty(recv value.Value, ec *value.EnumCase, name string) error {
	switch name {
	case "rawValue":
		if !ec.HasRawValue {
			vm.release(recv)
			vm.push(value.Null())
			return nil
		}
		v := ec.RawValue
		vm.retain(v)
		vm.release(recv)
		vm.push(v)
		return nil
	case "caseName":
		s := value.NewString(ec.CaseName)
		vm.track(s)
		vm.release(recv)
		vm.push(value.FromObject(s, value.RefStrong))
		return nil
	case "associated":
		elems := make([]value.Value, len(ec.Associated))
		copy(elems, ec.Associated)
		for _, e := range elems {
			vm.retain(e)
		}
		l := value.NewList(elems)
		vm.track(l)
		vm.release(recv)
		vm.push(value.FromObject(l, value.RefStrong))
		return nil
	}

	if fn, ok := ec.EnumType.FindMethod(name); ok {
		bm := value.NewBoundMethod(recv, fn, false)
		vm.track(bm)
		vm.push(value.FromObject(bm, value.RefStrong))
		return nil
	}

	vm.release(recv)
	return vm.runtimeError("enum case has no property %q", name)
}

func (vm *VM) getStaticMember(recv value.Value, name string, props map[string]value.Value, methods map[string]*value.Function) error {
	if v, ok := props[name]; ok {
		vm.retain(v)
		vm.release(recv)
		vm.push(v)
		return nil
	}
	if fn, ok := methods[name]; ok {
		vm.release(recv)
		vm.push(value.FromObject(fn, value.RefStrong))
		return nil
	}
	vm.release(recv)
	return vm.runtimeError("no static member %q", name)
}

// getEnumTypeProperty resolves EnumName.caseName: a zero-arity case
// constructs eagerly, a case with associated values yields a built-in
// method so a following OP_CALL can supply them.
func (vm *VM) getEnumTypeProperty(recv value.Value, et *value.EnumType, name string) error {
	if tmpl, ok := et.Cases[name]; ok {
		if len(tmpl.AssociatedLabels) == 0 {
			ec := value.NewEnumCase(et, tmpl.Name)
			ec.HasRawValue = tmpl.HasRawValue
			if tmpl.HasRawValue {
				ec.RawValue = tmpl.RawValue
				vm.retain(ec.RawValue)
			}
			vm.track(ec)
			vm.release(recv)
			vm.push(value.FromObject(ec, value.RefStrong))
			return nil
		}
		bm := value.NewBuiltinMethod(recv, "case:"+name)
		vm.track(bm)
		vm.push(value.FromObject(bm, value.RefStrong))
		return nil
	}

	return vm.getStaticMember(recv, name, et.StaticProperties, et.StaticMethods)
}

func (vm *VM) getMapProperty(recv value.Value, m *value.Map, name string) error {
	if v, ok := m.Entries[name]; ok {
		vm.retain(v)
		vm.release(recv)
		vm.push(v)
		return nil
	}
	if name == "count" {
		vm.release(recv)
		vm.push(value.Int(int64(len(m.Entries))))
		return nil
	}
	bm := value.NewBuiltinMethod(recv, name)
	vm.track(bm)
	vm.push(value.FromObject(bm, value.RefStrong))
	return nil
}

func (vm *VM) getListProperty(recv value.Value, l *value.List, name string) error {
	if name == "count" {
		vm.release(recv)
		vm.push(value.Int(int64(len(l.Elements))))
		return nil
	}
	bm := value.NewBuiltinMethod(recv, name)
	vm.track(bm)
	vm.push(value.FromObject(bm, value.RefStrong))
	return nil
}

func (vm *VM) getStringProperty(recv value.Value, s *value.String, name string) error {
	if name == "count" {
		vm.release(recv)
		vm.push(value.Int(int64(len([]rune(s.Chars)))))
		return nil
	}
	bm := value.NewBuiltinMethod(recv, name)
	vm.track(bm)
	vm.push(value.FromObject(bm, value.RefStrong))
	return nil
}

func (vm *VM) getRangeProperty(recv value.Value, r *value.Range, name string) error {
	if name == "count" {
		n := r.End - r.Start
		if r.Inclusive {
			n++
		}
		if n < 0 {
			n = 0
		}
		vm.release(recv)
		vm.push(value.Int(n))
		return nil
	}
	bm := value.NewBuiltinMethod(recv, name)
	vm.track(bm)
	vm.push(value.FromObject(bm, value.RefStrong))
	return nil
}

func findPropertyDescriptor(props []value.PropertyDescriptor, name string) (value.PropertyDescriptor, bool) {
	for _, p := range props {
		if p.Name == name {
			return p, true
		}
	}
	return value.PropertyDescriptor{}, false
}

// setProperty implements OP_SET_PROPERTY: pop the value then the receiver,
// run willSet/invoke a computed setter/run didSet per spec §4.5, in that
// order.
func (vm *VM) setProperty(name string) error {
	newVal := vm.pop()
	recv := vm.pop()

	if !recv.IsObject() {
		vm.release(newVal)
		vm.release(recv)
		return vm.runtimeError("cannot set property %q on a non-object value", name)
	}

	switch obj := recv.AsObject().(type) {
	case *value.Instance:
		return vm.setStoredOrComputed(recv, obj.Fields, findPropsOf(obj), findComputedOf(obj), name, newVal)
	case *value.StructInstance:
		return vm.setStoredOrComputed(recv, obj.Fields, obj.Type.Properties, obj.Type.ComputedProperties, name, newVal)
	default:
		vm.release(newVal)
		vm.release(recv)
		return vm.runtimeError("value has no settable property %q", name)
	}
}

func findPropsOf(inst *value.Instance) []value.PropertyDescriptor { return inst.Class.Properties }
func findComputedOf(inst *value.Instance) []value.ComputedPropertyDescriptor {
	return inst.Class.ComputedProperties
}

// setStoredOrComputed applies spec §4.5's willSet/update/didSet ordering.
// recv is passed as every nested call's self, which invokeMethod borrows
// rather than consumes, so recv's one owning reference (from setProperty's
// initial pop) survives unchanged until the single release at the end.
func (vm *VM) setStoredOrComputed(recv value.Value, fields map[string]value.Value, props []value.PropertyDescriptor, computed []value.ComputedPropertyDescriptor, name string, newVal value.Value) error {
	for i := range computed {
		if computed[i].Name == name {
			if computed[i].Setter == nil {
				vm.release(newVal)
				vm.release(recv)
				return vm.runtimeError("property %q has no setter", name)
			}
			_, err := vm.invokeMethod(computed[i].Setter, recv, newVal)
			vm.release(recv)
			return err
		}
	}

	pd, hasPD := findPropertyDescriptor(props, name)
	old, hadOld := fields[name]

	if hasPD && pd.WillSet != nil {
		vm.retain(newVal) // one reference for the call to consume, one kept for the field store below
		if _, err := vm.invokeMethod(pd.WillSet, recv, newVal); err != nil {
			vm.release(recv)
			vm.release(newVal)
			return err
		}
	}

	fields[name] = newVal

	if hasPD && pd.DidSet != nil {
		oldArg := value.Null()
		if hadOld {
			oldArg = old // its single owning reference moves into the call
		}
		if _, err := vm.invokeMethod(pd.DidSet, recv, oldArg); err != nil {
			vm.release(recv)
			return err
		}
	} else if hadOld {
		vm.release(old)
	}

	vm.release(recv)
	return nil
}

// getSubscript implements OP_GET_SUBSCRIPT for List, Map, String, and Range.
func (vm *VM) getSubscript() error {
	idx := vm.pop()
	recv := vm.pop()

	if !recv.IsObject() {
		vm.release(idx)
		vm.release(recv)
		return vm.runtimeError("value is not subscriptable")
	}

	switch obj := recv.AsObject().(type) {
	case *value.List:
		if !idx.IsInt() {
			vm.release(idx)
			vm.release(recv)
			return vm.runtimeError("list index must be an integer")
		}
		i := idx.AsInt()
		if i < 0 || int(i) >= len(obj.Elements) {
			vm.release(idx)
			vm.release(recv)
			return vm.runtimeError("list index %d out of range", i)
		}
		v := obj.Elements[i]
		vm.retain(v)
		vm.release(recv)
		vm.push(v)
		return nil
	case *value.Map:
		key, ok := mapKey(idx)
		vm.release(idx)
		if !ok {
			vm.release(recv)
			return vm.runtimeError("map key must be a string, int, or bool")
		}
		v, found := obj.Entries[key]
		vm.release(recv)
		if !found {
			vm.push(value.Null())
			return nil
		}
		vm.retain(v)
		vm.push(v)
		return nil
	case *value.String:
		if !idx.IsInt() {
			vm.release(idx)
			vm.release(recv)
			return vm.runtimeError("string index must be an integer")
		}
		runes := []rune(obj.Chars)
		i := idx.AsInt()
		if i < 0 || int(i) >= len(runes) {
			vm.release(recv)
			return vm.runtimeError("string index %d out of range", i)
		}
		s := value.NewString(string(runes[i]))
		vm.track(s)
		vm.release(recv)
		vm.push(value.FromObject(s, value.RefStrong))
		return nil
	case *value.Range:
		// for-in's generic count+subscript lowering indexes a range
		// positionally: index 0 is Start, matching .count's extent.
		if !idx.IsInt() {
			vm.release(idx)
			vm.release(recv)
			return vm.runtimeError("range index must be an integer")
		}
		i := idx.AsInt()
		vm.release(recv)
		vm.push(value.Int(obj.Start + i))
		return nil
	default:
		vm.release(idx)
		vm.release(recv)
		return vm.runtimeError("value is not subscriptable")
	}
}

// setSubscript implements OP_SET_SUBSCRIPT for List and Map.
func (vm *VM) setSubscript() error {
	newVal := vm.pop()
	idx := vm.pop()
	recv := vm.pop()

	if !recv.IsObject() {
		vm.release(newVal)
		vm.release(idx)
		vm.release(recv)
		return vm.runtimeError("value is not subscriptable")
	}

	switch obj := recv.AsObject().(type) {
	case *value.List:
		if !idx.IsInt() {
			vm.release(newVal)
			vm.release(idx)
			vm.release(recv)
			return vm.runtimeError("list index must be an integer")
		}
		i := idx.AsInt()
		if i < 0 || int(i) >= len(obj.Elements) {
			vm.release(newVal)
			vm.release(idx)
			vm.release(recv)
			return vm.runtimeError("list index %d out of range", i)
		}
		old := obj.Elements[i]
		obj.Elements[i] = newVal
		vm.release(old)
		vm.release(idx)
		vm.release(recv)
		return nil
	case *value.Map:
		key, ok := mapKey(idx)
		vm.release(idx)
		if !ok {
			vm.release(newVal)
			vm.release(recv)
			return vm.runtimeError("map key must be a string, int, or bool")
		}
		old, had := obj.Entries[key]
		obj.Entries[key] = newVal
		if had {
			vm.release(old)
		}
		vm.release(recv)
		return nil
	default:
		vm.release(newVal)
		vm.release(idx)
		vm.release(recv)
		return vm.runtimeError("value is not subscriptable")
	}
}

// mapKey canonicalizes a subscript/dict-literal key value to the string
// representation value.Map indexes by (spec's Hashable key types: strings,
// ints, and bools).
func mapKey(v value.Value) (string, bool) {
	switch {
	case v.IsObject():
		s, ok := v.AsObject().(*value.String)
		if !ok {
			return "", false
		}
		return "s:" + s.Chars, true
	case v.IsInt():
		return "i:" + strconv.FormatInt(v.AsInt(), 10), true
	case v.IsBool():
		return "b:" + strconv.FormatBool(v.AsBool()), true
	default:
		return "", false
	}
}

func (vm *VM) buildArray(n int) {
	elems := make([]value.Value, n)
	copy(elems, vm.stack[len(vm.stack)-n:])
	vm.stack = vm.stack[:len(vm.stack)-n]
	l := value.NewList(elems)
	vm.track(l)
	vm.push(value.FromObject(l, value.RefStrong))
}

func (vm *VM) buildTuple(n int) {
	elems := make([]value.Value, n)
	copy(elems, vm.stack[len(vm.stack)-n:])
	vm.stack = vm.stack[:len(vm.stack)-n]
	labels := make([]string, n)
	t := value.NewTuple(elems, labels)
	vm.track(t)
	vm.push(value.FromObject(t, value.RefStrong))
}

func (vm *VM) buildDict(n int) {
	base := len(vm.stack) - 2*n
	m := value.NewMap()
	for i := 0; i < n; i++ {
		k := vm.stack[base+2*i]
		v := vm.stack[base+2*i+1]
		key, ok := mapKey(k)
		vm.release(k)
		if !ok {
			vm.release(v)
			continue
		}
		if old, had := m.Entries[key]; had {
			vm.release(old)
		}
		m.Entries[key] = v
	}
	vm.stack = vm.stack[:base]
	vm.track(m)
	vm.push(value.FromObject(m, value.RefStrong))
}

// Stringify renders v the same way OP_PRINT does, for the `run` CLI's
// "Result: <repr>" line.
func (vm *VM) Stringify(v value.Value) string { return vm.stringify(v) }

// stringify renders a value for OP_PRINT, matching the textual repr the
// `run` CLI's "Result: <repr>" line also uses.
func (vm *VM) stringify(v value.Value) string {
	switch {
	case v.IsNull():
		return "nil"
	case v.IsUndefined():
		return "undefined"
	case v.IsBool():
		return strconv.FormatBool(v.AsBool())
	case v.IsInt():
		return strconv.FormatInt(v.AsInt(), 10)
	case v.IsFloat():
		return strconv.FormatFloat(v.AsFloat(), 'g', -1, 64)
	case v.IsObject():
		return vm.stringifyObject(v.AsObject())
	default:
		return "?"
	}
}

func (vm *VM) stringifyObject(o value.Object) string {
	switch t := o.(type) {
	case *value.String:
		return t.Chars
	case *value.List:
		out := "["
		for i, e := range t.Elements {
			if i > 0 {
				out += ", "
			}
			out += vm.stringify(e)
		}
		return out + "]"
	case *value.Map:
		out := "["
		first := true
		for k, v := range t.Entries {
			if !first {
				out += ", "
			}
			first = false
			out += fmt.Sprintf("%s: %s", k, vm.stringify(v))
		}
		if first {
			return "[:]"
		}
		return out + "]"
	case *value.Tuple:
		out := "("
		for i, e := range t.Elements {
			if i > 0 {
				out += ", "
			}
			if t.Labels[i] != "" {
				out += t.Labels[i] + ": "
			}
			out += vm.stringify(e)
		}
		return out + ")"
	case *value.Range:
		op := "..<"
		if t.Inclusive {
			op = "..."
		}
		return fmt.Sprintf("%d%s%d", t.Start, op, t.End)
	case *value.EnumCase:
		return fmt.Sprintf("%s.%s", t.EnumType.Name, t.CaseName)
	case *value.Instance:
		return fmt.Sprintf("<%s instance>", t.Class.Name)
	case *value.StructInstance:
		return fmt.Sprintf("<%s>", t.Type.Name)
	case *value.Class:
		return t.Name
	case *value.StructType:
		return t.Name
	case *value.EnumType:
		return t.Name
	case *value.Function, *value.Closure:
		return "<function>"
	case *value.BoundMethod:
		return "<bound method>"
	case *value.BuiltinMethod:
		return fmt.Sprintf("<built-in %s>", t.Name)
	default:
		return "<object>"
	}
}
