package vm

import (
	"github.com/ssvm-lang/ssvm/pkg/value"
)

// constructClass implements calling a *value.Class as a constructor: a
// fresh Instance is allocated, its stored properties are initialized via
// each descriptor's own per-instance default invocation (walking the
// superclass chain outward-in so base-class defaults run first), and then
// "init" is dispatched through the ordinary call-frame machinery with the
// new instance bound as self.
func (vm *VM) constructClass(calleeIdx, argc int, pairs []namedArg, class *value.Class) error {
	inst := value.NewInstance(class)
	vm.track(inst)
	selfVal := value.FromObject(inst, value.RefStrong)

	if err := vm.initInstanceFields(selfVal, class); err != nil {
		return err
	}

	initFn, ok := class.FindMethod("init")
	if !ok {
		if argc != 0 {
			return vm.runtimeError("%q has no init accepting arguments", class.Name)
		}
		return vm.finishCallNoBody(calleeIdx, selfVal)
	}
	return vm.callWithProto(calleeIdx, argc, pairs, initFn.Proto, selfVal, nil, class.Name+".init")
}

// constructStruct mirrors constructClass for value types: no superclass
// chain, and "init" is looked up among the struct's own methods.
func (vm *VM) constructStruct(calleeIdx, argc int, pairs []namedArg, st *value.StructType) error {
	inst := value.NewStructInstance(st)
	vm.track(inst)
	selfVal := value.FromObject(inst, value.RefStrong)

	for _, pd := range st.Properties {
		if err := vm.initProperty(selfVal, inst.Fields, pd); err != nil {
			return err
		}
	}

	initSM, ok := st.FindMethod("init")
	if !ok {
		if argc != 0 {
			return vm.runtimeError("%q has no init accepting arguments", st.Name)
		}
		return vm.finishCallNoBody(calleeIdx, selfVal)
	}
	return vm.callWithProto(calleeIdx, argc, pairs, initSM.Fn.Proto, selfVal, nil, st.Name+".init")
}

// initInstanceFields walks class's superclass chain from the root down,
// initializing each level's stored properties into inst's shared Fields map
// (spec's single-field-namespace model for classes — a subclass never
// shadows a base property of the same name).
func (vm *VM) initInstanceFields(selfVal value.Value, class *value.Class) error {
	inst := selfVal.AsObject().(*value.Instance)
	var chain []*value.Class
	for k := class; k != nil; k = k.Super {
		chain = append(chain, k)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		for _, pd := range chain[i].Properties {
			if err := vm.initProperty(selfVal, inst.Fields, pd); err != nil {
				return err
			}
		}
	}
	return nil
}

// initProperty evaluates one stored property's default (if it has one and
// is not lazy) and stores it into fields. Lazy properties and properties
// with no default are left unset; getProperty fills lazy ones on first
// access.
//
// The default body is invoked with self bound unowned: at this point the
// instance's only reference is its still-unadopted creator-ref, not a real
// external holder, so a strong binding here would have invokeMethod's own
// retain adopt that creator-ref and its return-path release immediately
// drop the instance to zero, freeing it before construction even finishes.
// Unowned binding mirrors InvokeDeinit's self binding for the same reason.
func (vm *VM) initProperty(selfVal value.Value, fields map[string]value.Value, pd value.PropertyDescriptor) error {
	if pd.IsLazy || pd.DefaultFn == nil {
		return nil
	}
	unowned := value.FromObject(selfVal.AsObject(), value.RefUnowned)
	v, err := vm.invokeMethod(pd.DefaultFn, unowned)
	if err != nil {
		return err
	}
	fields[pd.Name] = v
	return nil
}

// finishCallNoBody handles a construction call with no applicable init: the
// callee and zero arguments are dropped and self becomes the call's result,
// exactly as an init that immediately returned self would have.
func (vm *VM) finishCallNoBody(calleeIdx int, self value.Value) error {
	old := vm.stack[calleeIdx]
	vm.stack = vm.stack[:calleeIdx]
	vm.release(old)
	vm.retain(self)
	vm.push(self)
	return nil
}

// callBuiltin dispatches a BuiltinMethod value called via OP_CALL: the
// stack window at calleeIdx still holds [builtinMethod, arg0, ..., argN-1].
// Built-ins never go through the bytecode call convention since they have
// no FunctionPrototype; each pops its own fixed arity directly and is
// responsible for its own argument ownership (some move an arg into a
// collection they own, others are done with it once read). pairs carries
// any OP_CALL_NAMED labels, needed only by enum-case construction (whose
// "arguments" are a case's associated-value labels, not a Go function's
// parameter names).
func (vm *VM) callBuiltin(calleeIdx, argc int, pairs []namedArg, bm *value.BuiltinMethod) error {
	args := make([]value.Value, argc)
	copy(args, vm.stack[calleeIdx+1:calleeIdx+1+argc])
	vm.stack = vm.stack[:calleeIdx]

	result, err := vm.invokeBuiltin(bm, args, pairs)
	// bm.Receiver is owned by bm itself (transferred in at property-access
	// time); releasing bm is enough to eventually release it too, via the
	// RC engine's child-release walk.
	vm.release(value.FromObject(bm, value.RefStrong))
	if err != nil {
		return err
	}

	vm.push(result)
	return nil
}
