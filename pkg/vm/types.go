package vm

import (
	"github.com/ssvm-lang/ssvm/pkg/bytecode"
	"github.com/ssvm-lang/ssvm/pkg/value"
)

// loadType returns the runtime type value for name, materializing it from
// the assembly's type-definition table on first reference (OP_CLASS,
// OP_STRUCT, OP_ENUM, and OP_PROTOCOL all fall through here) and caching the
// result for every later load. The cache itself adopts one permanent
// reference at materialization time; every return from this function mints
// a fresh reference for whatever is about to hold the pushed value.
func (vm *VM) loadType(name string) (value.Value, error) {
	obj, ok := vm.types[name]
	if !ok {
		td := vm.asm.FindType(name)
		if td == nil {
			return value.Value{}, vm.runtimeError("undefined type %q", name)
		}
		var err error
		obj, err = vm.materializeType(td)
		if err != nil {
			return value.Value{}, err
		}
		vm.types[name] = obj
	}
	vm.rcEngine.Retain(obj)
	return value.FromObject(obj, value.RefStrong), nil
}

func (vm *VM) materializeType(td *bytecode.TypeDefinition) (value.Object, error) {
	switch td.Kind {
	case bytecode.TypeClass:
		return vm.materializeClass(td)
	case bytecode.TypeStruct:
		return vm.materializeStruct(td)
	case bytecode.TypeEnum:
		return vm.materializeEnum(td)
	default:
		return vm.materializeProtocol(td), nil
	}
}

func (vm *VM) materializeClass(td *bytecode.TypeDefinition) (*value.Class, error) {
	class := value.NewClass(td.Name)
	vm.track(class)
	vm.rcEngine.Retain(class) // the type cache's own permanent reference

	if td.SuperClass != "" {
		superVal, err := vm.loadType(td.SuperClass)
		if err != nil {
			return nil, err
		}
		super, ok := superVal.AsObject().(*value.Class)
		if !ok {
			return nil, vm.runtimeError("superclass %q of %q is not a class", td.SuperClass, td.Name)
		}
		class.Super = super
		vm.release(superVal) // Super is a raw pointer, not itself RC-tracked
	}

	for _, pd := range td.Properties {
		class.Properties = append(class.Properties, vm.materializePropertyDescriptor(pd))
	}
	for _, cp := range td.ComputedProperties {
		class.ComputedProperties = append(class.ComputedProperties, vm.materializeComputedPropertyDescriptor(cp))
	}
	for _, md := range td.Methods {
		class.Methods[md.Name] = vm.materializeBody(md.BodyIdx)
	}
	for _, md := range td.StaticMethods {
		class.StaticMethods[md.Name] = vm.materializeBody(md.BodyIdx)
	}
	for _, pd := range td.StaticProperties {
		v, err := vm.evalStaticDefault(pd)
		if err != nil {
			return nil, err
		}
		class.StaticProperties[pd.Name] = v
	}
	if td.HasDeinit {
		class.Deinit = vm.materializeBody(td.DeinitBodyIdx)
	}

	return class, nil
}

func (vm *VM) materializeStruct(td *bytecode.TypeDefinition) (*value.StructType, error) {
	st := value.NewStructType(td.Name)
	vm.track(st)
	vm.rcEngine.Retain(st)

	for _, pd := range td.Properties {
		st.Properties = append(st.Properties, vm.materializePropertyDescriptor(pd))
	}
	for _, cp := range td.ComputedProperties {
		st.ComputedProperties = append(st.ComputedProperties, vm.materializeComputedPropertyDescriptor(cp))
	}
	for _, md := range td.Methods {
		st.Methods[md.Name] = &value.StructMethod{Fn: vm.materializeBody(md.BodyIdx), IsMutating: md.IsMutating}
	}
	for _, md := range td.StaticMethods {
		st.StaticMethods[md.Name] = vm.materializeBody(md.BodyIdx)
	}
	for _, pd := range td.StaticProperties {
		v, err := vm.evalStaticDefault(pd)
		if err != nil {
			return nil, err
		}
		st.StaticProperties[pd.Name] = v
	}

	return st, nil
}

func (vm *VM) materializeEnum(td *bytecode.TypeDefinition) (*value.EnumType, error) {
	et := value.NewEnumType(td.Name)
	vm.track(et)
	vm.rcEngine.Retain(et)

	for _, cd := range td.Cases {
		tmpl := &value.EnumCaseTemplate{Name: cd.Name, AssociatedLabels: cd.AssociatedLabels}
		switch {
		case cd.HasStringRawValue:
			s := value.NewString(vm.asm.Main.Strings[cd.RawValueStringIdx])
			vm.track(s)
			vm.rcEngine.Retain(s) // owned permanently by the case template, like the type cache itself
			tmpl.HasRawValue = true
			tmpl.RawValue = value.FromObject(s, value.RefStrong)
		case cd.HasRawValue:
			tmpl.HasRawValue = true
			tmpl.RawValue = constantToValue(cd.RawValue)
		}
		et.Cases[cd.Name] = tmpl
	}
	for _, md := range td.Methods {
		et.Methods[md.Name] = vm.materializeBody(md.BodyIdx)
	}
	for _, cp := range td.ComputedProperties {
		et.ComputedProperties = append(et.ComputedProperties, vm.materializeComputedPropertyDescriptor(cp))
	}
	for _, md := range td.StaticMethods {
		et.StaticMethods[md.Name] = vm.materializeBody(md.BodyIdx)
	}
	for _, pd := range td.StaticProperties {
		v, err := vm.evalStaticDefault(pd)
		if err != nil {
			return nil, err
		}
		et.StaticProperties[pd.Name] = v
	}

	return et, nil
}

func (vm *VM) materializeProtocol(td *bytecode.TypeDefinition) *value.Protocol {
	p := value.NewProtocol(td.Name)
	vm.track(p)
	vm.rcEngine.Retain(p)

	for _, md := range td.Methods {
		p.RequiredMethods = append(p.RequiredMethods, md.Name)
	}
	for _, cp := range td.ComputedProperties {
		p.RequiredProperties = append(p.RequiredProperties, cp.Name)
	}
	p.InheritedProtocols = td.Conformances

	return p
}

func (vm *VM) materializePropertyDescriptor(pd bytecode.PropertyDescriptor) value.PropertyDescriptor {
	out := value.PropertyDescriptor{Name: pd.Name, IsLet: pd.IsLet, IsLazy: pd.IsLazy}
	if pd.DefaultBodyIdx != -1 {
		out.DefaultFn = vm.materializeBody(pd.DefaultBodyIdx)
	}
	if pd.HasWillSet {
		out.WillSet = vm.materializeBody(pd.WillSetBodyIdx)
	}
	if pd.HasDidSet {
		out.DidSet = vm.materializeBody(pd.DidSetBodyIdx)
	}
	return out
}

func (vm *VM) materializeComputedPropertyDescriptor(cp bytecode.ComputedPropertyDescriptor) value.ComputedPropertyDescriptor {
	out := value.ComputedPropertyDescriptor{Name: cp.Name, Getter: vm.materializeBody(cp.GetterBodyIdx)}
	if cp.HasSetter {
		out.Setter = vm.materializeBody(cp.SetterBodyIdx)
	}
	return out
}

// materializeBody wraps a method body's prototype in a plain *value.Function.
// Method functions are never RC-tracked: they are permanently owned by the
// type that declares them, never independently retained/released (the same
// simplification a closure's embedded Fn already relies on).
func (vm *VM) materializeBody(bodyIdx int) *value.Function {
	if bodyIdx < 0 || bodyIdx >= len(vm.asm.Bodies) {
		return nil
	}
	return value.NewFunction(vm.asm.Bodies[bodyIdx].Proto)
}

// evalStaticDefault runs a static property's default-value body once, at
// type-materialization time, with no self binding (statics belong to the
// type, not an instance).
func (vm *VM) evalStaticDefault(pd bytecode.PropertyDescriptor) (value.Value, error) {
	if pd.DefaultBodyIdx == -1 {
		return value.Null(), nil
	}
	fn := vm.materializeBody(pd.DefaultBodyIdx)
	v, err := vm.invokeMethod(fn, value.Null())
	if err != nil {
		return value.Value{}, err
	}
	vm.retain(v) // the static-properties table is a durable holder
	return v, nil
}

// getSuperMethod implements OP_SUPER: self is already on the stack (pushed
// by compileSuperAccess), and is replaced with a bound method resolved
// against self's class's superclass.
func (vm *VM) getSuperMethod(name string) error {
	selfVal := vm.pop()
	inst, ok := selfVal.AsObject().(*value.Instance)
	if !ok || inst.Class.Super == nil {
		vm.release(selfVal)
		return vm.runtimeError("super used outside of a subclass method")
	}
	fn, ok := inst.Class.Super.FindMethod(name)
	if !ok {
		vm.release(selfVal)
		return vm.runtimeError("superclass has no method %q", name)
	}
	bm := value.NewBoundMethod(selfVal, fn, false)
	vm.track(bm)
	// selfVal's single reference transfers into the bound method's Receiver
	// field; no separate retain/release pair needed for the handoff.
	vm.push(value.FromObject(bm, value.RefStrong))
	return nil
}

// InvokeDeinit satisfies rc.Deinitializer: called by the RC engine's drain
// step when a class instance with a declared deinit reaches zero strong
// references.
func (vm *VM) InvokeDeinit(instance *value.Instance) error {
	if instance.Class.Deinit == nil {
		return nil
	}
	// self is passed unowned: the instance's strong count is already at zero
	// and its fields are about to be force-released by the drain walk that
	// called us, so this binding must not itself retain or release it.
	selfVal := value.FromObject(instance, value.RefUnowned)
	_, err := vm.invokeMethod(instance.Class.Deinit, selfVal)
	return err
}
