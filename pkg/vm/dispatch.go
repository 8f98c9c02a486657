package vm

import (
	"fmt"
	"strings"

	"github.com/ssvm-lang/ssvm/pkg/bytecode"
	"github.com/ssvm-lang/ssvm/pkg/value"
)

// dispatch executes one instruction, already past its opcode byte in
// f.ip. It returns (halted, err): halted is true only for OP_HALT.
func (vm *VM) dispatch(op bytecode.Op, f *frame) (bool, error) {
	switch op {
	case bytecode.OpConstant:
		vm.push(vm.readConstant(f, vm.readU16(f)))
	case bytecode.OpString:
		idx := vm.readU16(f)
		s := value.NewString(vm.readString(f, idx))
		vm.track(s)
		vm.push(value.FromObject(s, value.RefStrong))
	case bytecode.OpNil:
		vm.push(value.Null())
	case bytecode.OpTrue:
		vm.push(value.Bool(true))
	case bytecode.OpFalse:
		vm.push(value.Bool(false))
	case bytecode.OpPop:
		vm.popAndRelease()
	case bytecode.OpDup:
		v := vm.peek(0)
		vm.retain(v)
		vm.push(v)

	case bytecode.OpAdd, bytecode.OpSubtract, bytecode.OpMultiply, bytecode.OpDivide, bytecode.OpModulo:
		if err := vm.binaryArith(op); err != nil {
			return false, err
		}
	case bytecode.OpNegate:
		v := vm.pop()
		switch {
		case v.IsInt():
			vm.push(value.Int(-v.AsInt()))
		case v.IsFloat():
			vm.push(value.Float(-v.AsFloat()))
		default:
			return false, vm.runtimeError("cannot negate a non-numeric value")
		}
	case bytecode.OpBitwiseNot:
		v := vm.pop()
		if !v.IsInt() {
			return false, vm.runtimeError("bitwise not requires an integer")
		}
		vm.push(value.Int(^v.AsInt()))

	case bytecode.OpEqual:
		b, a := vm.pop(), vm.pop()
		eq := a.Equals(b)
		vm.release(a)
		vm.release(b)
		vm.push(value.Bool(eq))
	case bytecode.OpNotEqual:
		b, a := vm.pop(), vm.pop()
		eq := a.Equals(b)
		vm.release(a)
		vm.release(b)
		vm.push(value.Bool(!eq))
	case bytecode.OpLess, bytecode.OpGreater, bytecode.OpLessEqual, bytecode.OpGreaterEqual:
		if err := vm.compare(op); err != nil {
			return false, err
		}
	case bytecode.OpNot:
		v := vm.pop()
		vm.push(value.Bool(!truthy(v)))
	case bytecode.OpAnd:
		b, a := vm.pop(), vm.pop()
		vm.push(value.Bool(truthy(a) && truthy(b)))
	case bytecode.OpOr:
		b, a := vm.pop(), vm.pop()
		vm.push(value.Bool(truthy(a) || truthy(b)))

	case bytecode.OpGetGlobal:
		name := vm.readString(f, vm.readU16(f))
		if wg, ok := vm.weakGlobals[name]; ok {
			vm.push(*wg.box)
			break
		}
		v, ok := vm.globals[name]
		if !ok {
			return false, vm.runtimeError("undefined global %q", name)
		}
		vm.retain(v)
		vm.push(v)
	case bytecode.OpSetGlobal:
		name := vm.readString(f, vm.readU16(f))
		if wg, ok := vm.weakGlobals[name]; ok {
			v := vm.pop()
			old := *wg.box
			if old.IsObject() && wg.discipline == value.RefWeak {
				vm.rcEngine.WeakRelease(old.AsObject(), wg.box)
			}
			if v.IsObject() {
				*wg.box = value.FromObject(v.AsObject(), wg.discipline)
				if wg.discipline == value.RefWeak {
					vm.rcEngine.WeakRetain(v.AsObject(), wg.box)
				}
				// v arrived retained on behalf of a strong holder (whatever
				// op evaluated the assignment's right-hand side); this slot
				// is non-owning, so undo that retain.
				vm.release(v)
			} else {
				*wg.box = v
			}
			break
		}
		if _, ok := vm.globals[name]; !ok {
			return false, vm.runtimeError("undefined global %q", name)
		}
		v := vm.pop()
		old := vm.globals[name]
		vm.globals[name] = v
		vm.retain(v)
		vm.release(old)
	case bytecode.OpDefineGlobal:
		name := vm.readString(f, vm.readU16(f))
		v := vm.pop()
		vm.retain(v)
		vm.globals[name] = v
	case bytecode.OpDefineGlobalWeak:
		name := vm.readString(f, vm.readU16(f))
		discipline := vm.readByte(f)
		v := vm.pop()
		ref := value.RefWeak
		if discipline == 1 {
			ref = value.RefUnowned
		}
		wg := &weakGlobal{box: new(value.Value), discipline: ref}
		if v.IsObject() {
			*wg.box = value.FromObject(v.AsObject(), ref)
			if ref == value.RefWeak {
				vm.rcEngine.WeakRetain(v.AsObject(), wg.box)
			}
			// v arrived already retained strong by whatever loaded it (a
			// global/local read retains on behalf of its new holder); this
			// declaration is explicitly non-owning, so that retain is undone
			// here rather than kept alive as a phantom strong reference.
			vm.release(v)
		} else {
			*wg.box = v
		}
		vm.weakGlobals[name] = wg

	case bytecode.OpGetLocal:
		slot := vm.readU16(f)
		v := vm.stack[f.base+int(slot)]
		vm.retain(v)
		vm.push(v)
	case bytecode.OpSetLocal:
		slot := vm.readU16(f)
		v := vm.pop()
		old := vm.stack[f.base+int(slot)]
		vm.stack[f.base+int(slot)] = v
		vm.retain(v)
		vm.release(old)

	case bytecode.OpGetUpvalue:
		idx := vm.readU16(f)
		uv := f.closure.Upvalues[idx]
		v := vm.readUpvalue(uv)
		vm.retain(v)
		vm.push(v)
	case bytecode.OpSetUpvalue:
		idx := vm.readU16(f)
		uv := f.closure.Upvalues[idx]
		v := vm.pop()
		old := vm.readUpvalue(uv)
		vm.writeUpvalue(uv, v)
		vm.retain(v)
		vm.release(old)
	case bytecode.OpCloseUpvalue:
		vm.closeUpvalues(len(vm.stack) - 1)
		vm.popAndRelease()

	case bytecode.OpJump:
		offset := vm.readU16(f)
		f.ip += int(offset)
	case bytecode.OpJumpIfFalse:
		offset := vm.readU16(f)
		if !truthy(vm.peek(0)) {
			f.ip += int(offset)
		}
		vm.popAndRelease()
	case bytecode.OpJumpIfNil:
		offset := vm.readU16(f)
		if vm.peek(0).IsNull() {
			f.ip += int(offset)
			vm.popAndRelease()
		}
	case bytecode.OpLoop:
		offset := vm.readU16(f)
		f.ip -= int(offset)

	case bytecode.OpFunction:
		idx := vm.readU16(f)
		proto := f.chunk.Functions[idx]
		fn := value.NewFunction(proto)
		vm.track(fn)
		vm.push(value.FromObject(fn, value.RefStrong))
	case bytecode.OpClosure:
		if err := vm.buildClosure(f); err != nil {
			return false, err
		}

	case bytecode.OpCall:
		argc := vm.readU16(f)
		if err := vm.call(int(argc), nil); err != nil {
			return false, err
		}
	case bytecode.OpCallNamed:
		argc := vm.readU16(f)
		pairs := make([]namedArg, argc)
		for i := range pairs {
			argIdx := vm.readU16(f)
			labelIdx := vm.readU16(f)
			label := ""
			if labelIdx != 0xFFFF {
				label = vm.readString(f, labelIdx)
			}
			pairs[i] = namedArg{argIdx: argIdx, label: label}
		}
		if err := vm.call(int(argc), pairs); err != nil {
			return false, err
		}
	case bytecode.OpReturn:
		if len(vm.frames) == 1 {
			// A bare return at top level behaves like OP_HALT: the value
			// already sits on the stack top, nothing to unwind.
			return true, nil
		}
		vm.doReturn()

	case bytecode.OpClass, bytecode.OpStruct, bytecode.OpEnum, bytecode.OpProtocol:
		idx := vm.readU16(f)
		name := vm.readString(f, idx)
		v, err := vm.loadType(name)
		if err != nil {
			return false, err
		}
		vm.push(v)
	case bytecode.OpSuper:
		idx := vm.readU16(f)
		name := vm.readString(f, idx)
		if err := vm.getSuperMethod(name); err != nil {
			return false, err
		}

	case bytecode.OpMatchEnumCase:
		idx := vm.readU16(f)
		name := vm.readString(f, idx)
		v := vm.pop()
		ec, ok := v.AsObject().(*value.EnumCase)
		matched := ok && ec.CaseName == name
		vm.release(v)
		vm.push(value.Bool(matched))
	case bytecode.OpGetAssociated:
		idx := vm.readU16(f)
		v := vm.pop()
		ec, ok := v.AsObject().(*value.EnumCase)
		if !ok || int(idx) >= len(ec.Associated) {
			return false, vm.runtimeError("associated value index out of range")
		}
		assoc := ec.Associated[idx]
		vm.retain(assoc)
		vm.release(v)
		vm.push(assoc)

	case bytecode.OpGetProperty:
		idx := vm.readU16(f)
		name := vm.readString(f, idx)
		if err := vm.getProperty(name, false); err != nil {
			return false, err
		}
	case bytecode.OpOptionalChain:
		idx := vm.readU16(f)
		name := vm.readString(f, idx)
		if err := vm.getProperty(name, true); err != nil {
			return false, err
		}
	case bytecode.OpSetProperty:
		idx := vm.readU16(f)
		name := vm.readString(f, idx)
		if err := vm.setProperty(name); err != nil {
			return false, err
		}
		vm.safePoint()

	case bytecode.OpArray:
		raw := vm.readU16(f)
		if raw&0x8000 != 0 {
			vm.buildTuple(int(raw &^ 0x8000))
		} else {
			vm.buildArray(int(raw))
		}
	case bytecode.OpDict:
		n := vm.readU16(f)
		vm.buildDict(int(n))
	case bytecode.OpGetSubscript:
		if err := vm.getSubscript(); err != nil {
			return false, err
		}
	case bytecode.OpSetSubscript:
		if err := vm.setSubscript(); err != nil {
			return false, err
		}

	case bytecode.OpRangeInclusive, bytecode.OpRangeExclusive:
		end := vm.pop()
		start := vm.pop()
		if !start.IsInt() || !end.IsInt() {
			return false, vm.runtimeError("range bounds must be integers")
		}
		r := value.NewRange(start.AsInt(), end.AsInt(), op == bytecode.OpRangeInclusive)
		vm.track(r)
		vm.push(value.FromObject(r, value.RefStrong))
	case bytecode.OpUnwrap:
		v := vm.pop()
		if v.IsNull() {
			return false, vm.runtimeError("force-unwrap of a nil value")
		}
		vm.push(v)
	case bytecode.OpNilCoalesce:
		b := vm.pop()
		a := vm.pop()
		if !a.IsNull() {
			vm.release(b)
			vm.push(a)
		} else {
			vm.release(a)
			vm.push(b)
		}

	case bytecode.OpCopyValue:
		v := vm.pop()
		si, ok := v.AsObject().(*value.StructInstance)
		if !ok {
			vm.push(v)
			break
		}
		cp := si.Copy()
		vm.trackCopiedStruct(cp)
		for _, fv := range cp.Fields {
			vm.retain(fv)
		}
		vm.release(v)
		vm.push(value.FromObject(cp, value.RefStrong))

	case bytecode.OpPrint:
		v := vm.pop()
		fmt.Println(vm.stringify(v))
		vm.release(v)
	case bytecode.OpReadLine:
		var line string
		fmt.Scanln(&line)
		s := value.NewString(line)
		vm.track(s)
		vm.push(value.FromObject(s, value.RefStrong))

	case bytecode.OpHalt:
		return true, nil

	default:
		return false, vm.runtimeError("unknown opcode %d", op)
	}
	return false, nil
}

func truthy(v value.Value) bool {
	switch {
	case v.IsNull() || v.IsUndefined():
		return false
	case v.IsBool():
		return v.AsBool()
	default:
		return true
	}
}

func (vm *VM) binaryArith(op bytecode.Op) error {
	b, a := vm.pop(), vm.pop()

	if op == bytecode.OpAdd && a.IsObject() && b.IsObject() {
		as, aok := a.AsObject().(*value.String)
		bs, bok := b.AsObject().(*value.String)
		if aok && bok {
			out := value.NewString(as.Chars + bs.Chars)
			vm.track(out)
			vm.release(a)
			vm.release(b)
			vm.push(value.FromObject(out, value.RefStrong))
			return nil
		}
	}

	if !a.IsNumber() || !b.IsNumber() {
		return vm.runtimeError("arithmetic requires numeric operands")
	}

	if a.IsInt() && b.IsInt() {
		x, y := a.AsInt(), b.AsInt()
		switch op {
		case bytecode.OpAdd:
			vm.push(value.Int(x + y))
		case bytecode.OpSubtract:
			vm.push(value.Int(x - y))
		case bytecode.OpMultiply:
			vm.push(value.Int(x * y))
		case bytecode.OpDivide:
			if y == 0 {
				return vm.runtimeError("division by zero")
			}
			vm.push(value.Int(x / y))
		case bytecode.OpModulo:
			if y == 0 {
				return vm.runtimeError("modulo by zero")
			}
			vm.push(value.Int(x % y))
		}
		return nil
	}

	x, y := a.AsNumber(), b.AsNumber()
	switch op {
	case bytecode.OpAdd:
		vm.push(value.Float(x + y))
	case bytecode.OpSubtract:
		vm.push(value.Float(x - y))
	case bytecode.OpMultiply:
		vm.push(value.Float(x * y))
	case bytecode.OpDivide:
		vm.push(value.Float(x / y))
	case bytecode.OpModulo:
		vm.push(value.Float(mathMod(x, y)))
	}
	return nil
}

func mathMod(x, y float64) float64 {
	m := x - y*float64(int64(x/y))
	return m
}

func (vm *VM) compare(op bytecode.Op) error {
	b, a := vm.pop(), vm.pop()
	defer func() {
		vm.release(a)
		vm.release(b)
	}()

	if a.IsNumber() && b.IsNumber() {
		x, y := a.AsNumber(), b.AsNumber()
		var result bool
		switch op {
		case bytecode.OpLess:
			result = x < y
		case bytecode.OpGreater:
			result = x > y
		case bytecode.OpLessEqual:
			result = x <= y
		case bytecode.OpGreaterEqual:
			result = x >= y
		}
		vm.push(value.Bool(result))
		return nil
	}

	as, aok := asString(a)
	bs, bok := asString(b)
	if aok && bok {
		c := strings.Compare(as, bs)
		var result bool
		switch op {
		case bytecode.OpLess:
			result = c < 0
		case bytecode.OpGreater:
			result = c > 0
		case bytecode.OpLessEqual:
			result = c <= 0
		case bytecode.OpGreaterEqual:
			result = c >= 0
		}
		vm.push(value.Bool(result))
		return nil
	}

	return vm.runtimeError("ordered comparison requires numbers or strings")
}

func asString(v value.Value) (string, bool) {
	if !v.IsObject() {
		return "", false
	}
	s, ok := v.AsObject().(*value.String)
	if !ok {
		return "", false
	}
	return s.Chars, true
}
