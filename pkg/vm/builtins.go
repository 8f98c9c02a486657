package vm

import (
	"fmt"
	"strings"

	"github.com/ssvm-lang/ssvm/pkg/value"
)

// invokeBuiltin dispatches a BuiltinMethod by (receiver shape, name). Only
// the built-in surface spec.md and the supplemented features in SPEC_FULL.md
// actually name is implemented: List.append (spec §3.2's "append is
// amortized O(1)"), Range.stride(by:) (SPEC_FULL.md's additive Range
// built-in), and enum-case construction for a case with associated values
// (the "case:"+name BuiltinMethod minted by getEnumTypeProperty). Anything
// else is an unknown-method error rather than an invented standard library.
func (vm *VM) invokeBuiltin(bm *value.BuiltinMethod, args []value.Value, pairs []namedArg) (value.Value, error) {
	if caseName, ok := strings.CutPrefix(bm.Name, "case:"); ok {
		return vm.constructEnumCase(bm.Receiver, caseName, args, pairs)
	}

	switch recv := bm.Receiver.AsObject().(type) {
	case *value.List:
		return vm.listBuiltin(recv, bm.Name, args)
	case *value.Range:
		return vm.rangeBuiltin(recv, bm.Name, args)
	default:
		releaseAll(vm, args)
		return value.Value{}, vm.runtimeError("no built-in method %q on this value", bm.Name)
	}
}

func releaseAll(vm *VM, args []value.Value) {
	for _, a := range args {
		vm.release(a)
	}
}

// listBuiltin implements List's built-in methods.
func (vm *VM) listBuiltin(l *value.List, name string, args []value.Value) (value.Value, error) {
	switch name {
	case "append":
		if len(args) != 1 {
			releaseAll(vm, args)
			return value.Value{}, vm.runtimeError("append expects 1 argument, got %d", len(args))
		}
		// args[0]'s ownership moves directly into the list's backing slice.
		l.Elements = append(l.Elements, args[0])
		return value.Null(), nil
	default:
		releaseAll(vm, args)
		return value.Value{}, vm.runtimeError("list has no built-in method %q", name)
	}
}

// rangeBuiltin implements Range's built-in methods: stride(by:) eagerly
// materializes a List of the stepped values (SPEC_FULL.md's grounding for
// this method treats it as additive to Range, not a new stored field).
func (vm *VM) rangeBuiltin(r *value.Range, name string, args []value.Value) (value.Value, error) {
	switch name {
	case "stride":
		if len(args) != 1 || !args[0].IsInt() {
			releaseAll(vm, args)
			return value.Value{}, vm.runtimeError("stride(by:) expects one integer argument")
		}
		step := args[0].AsInt()
		if step == 0 {
			return value.Value{}, vm.runtimeError("stride(by:) step must not be zero")
		}

		var elems []value.Value
		if step > 0 {
			for v := r.Start; v < r.End || (r.Inclusive && v == r.End); v += step {
				elems = append(elems, value.Int(v))
			}
		} else {
			for v := r.Start; v > r.End || (r.Inclusive && v == r.End); v += step {
				elems = append(elems, value.Int(v))
			}
		}

		out := value.NewList(elems)
		vm.track(out)
		return value.FromObject(out, value.RefStrong), nil
	default:
		releaseAll(vm, args)
		return value.Value{}, vm.runtimeError("range has no built-in method %q", name)
	}
}

// constructEnumCase builds an EnumCase from a case template's associated
// values: args are matched against the template's AssociatedLabels the same
// way resolveArgs matches call arguments against parameter names, since a
// labeled case constructor call compiles through the identical
// OP_CALL_NAMED path as any other call.
func (vm *VM) constructEnumCase(enumTypeVal value.Value, caseName string, args []value.Value, pairs []namedArg) (value.Value, error) {
	et, ok := enumTypeVal.AsObject().(*value.EnumType)
	if !ok {
		releaseAll(vm, args)
		return value.Value{}, vm.runtimeError("enum case constructed on a non-enum receiver")
	}
	tmpl, ok := et.Cases[caseName]
	if !ok {
		releaseAll(vm, args)
		return value.Value{}, vm.runtimeError("%q has no case %q", et.Name, caseName)
	}

	ordered, err := resolveCaseArgs(tmpl, args, pairs)
	if err != nil {
		releaseAll(vm, args)
		return value.Value{}, vm.runtimeError("%v", err)
	}

	ec := value.NewEnumCase(et, tmpl.Name)
	ec.Associated = ordered
	ec.AssociatedLabels = tmpl.AssociatedLabels
	ec.HasRawValue = tmpl.HasRawValue
	if tmpl.HasRawValue {
		ec.RawValue = tmpl.RawValue
		vm.retain(ec.RawValue)
	}
	vm.track(ec)
	return value.FromObject(ec, value.RefStrong), nil
}

// resolveCaseArgs maps positional-or-labeled args onto a case template's
// associated-value slots, mirroring resolveArgs' placement logic but against
// a label list instead of a FunctionPrototype.
func resolveCaseArgs(tmpl *value.EnumCaseTemplate, args []value.Value, pairs []namedArg) ([]value.Value, error) {
	final := make([]value.Value, len(tmpl.AssociatedLabels))
	filled := make([]bool, len(final))

	place := func(idx int, v value.Value) error {
		if idx < 0 || idx >= len(final) {
			return fmt.Errorf("too many associated values for case %q", tmpl.Name)
		}
		if filled[idx] {
			return fmt.Errorf("associated value for case %q supplied more than once", tmpl.Name)
		}
		final[idx] = v
		filled[idx] = true
		return nil
	}

	if pairs == nil {
		if len(args) != len(final) {
			return nil, fmt.Errorf("case %q expects %d associated value(s), got %d", tmpl.Name, len(final), len(args))
		}
		for i, v := range args {
			if err := place(i, v); err != nil {
				return nil, err
			}
		}
		return final, nil
	}

	for _, p := range pairs {
		idx := -1
		if p.label == "" {
			idx = int(p.argIdx)
		} else {
			for i, l := range tmpl.AssociatedLabels {
				if l == p.label {
					idx = i
					break
				}
			}
			if idx == -1 {
				return nil, fmt.Errorf("case %q has no associated value labeled %q", tmpl.Name, p.label)
			}
		}
		if int(p.argIdx) >= len(args) {
			return nil, fmt.Errorf("argument index out of range for case %q", tmpl.Name)
		}
		if err := place(idx, args[p.argIdx]); err != nil {
			return nil, err
		}
	}

	for i := range final {
		if !filled[i] {
			return nil, fmt.Errorf("missing associated value at position %d for case %q", i, tmpl.Name)
		}
	}
	return final, nil
}
