package vm

import (
	"fmt"

	"github.com/ssvm-lang/ssvm/pkg/bytecode"
	"github.com/ssvm-lang/ssvm/pkg/value"
)

// namedArg is one (argument position, label) pair decoded from an
// OP_CALL_NAMED instruction, with the label already resolved to a string
// against the caller's chunk (the only chunk that can have interned it).
type namedArg struct {
	argIdx uint16
	label  string // "" for a positional slot within a named call
}

// call implements OP_CALL/OP_CALL_NAMED's dispatch (spec §4.5): the callee
// sits argc+1 slots below the stack top. Its runtime type decides whether
// this is a construction, a bound-method call, a closure call, a plain
// function call, or a built-in method invocation.
func (vm *VM) call(argc int, pairs []namedArg) error {
	n := len(vm.stack)
	calleeIdx := n - argc - 1
	if calleeIdx < 0 {
		return vm.runtimeError("call stack underflow")
	}
	calleeVal := vm.stack[calleeIdx]
	vm.stats.CallCount++

	if !calleeVal.IsObject() || calleeVal.AsObject() == nil {
		return vm.runtimeError("value is not callable")
	}

	switch callee := calleeVal.AsObject().(type) {
	case *value.BuiltinMethod:
		return vm.callBuiltin(calleeIdx, argc, pairs, callee)
	case *value.Class:
		return vm.constructClass(calleeIdx, argc, pairs, callee)
	case *value.StructType:
		return vm.constructStruct(calleeIdx, argc, pairs, callee)
	case *value.BoundMethod:
		return vm.callWithProto(calleeIdx, argc, pairs, callee.Method.Proto, callee.Receiver, nil, callee.Method.Proto.Name)
	case *value.Closure:
		return vm.callWithProto(calleeIdx, argc, pairs, callee.Fn.Proto, value.Null(), callee, callee.Fn.Proto.Name)
	case *value.Function:
		return vm.callWithProto(calleeIdx, argc, pairs, callee.Proto, value.Null(), nil, callee.Proto.Name)
	default:
		return vm.runtimeError("value is not callable")
	}
}

// callWithProto rebuilds the stack window at calleeIdx into
// [callee, self, param0, ..., paramN-1] and pushes the frame that executes
// proto.Chunk, per the uniform call convention every dispatch branch above
// shares (spec §3.3's stack-base invariant).
func (vm *VM) callWithProto(calleeIdx, argc int, pairs []namedArg, proto *bytecode.FunctionPrototype, self value.Value, closure *value.Closure, name string) error {
	argsStart := calleeIdx + 1
	args := make([]value.Value, argc)
	copy(args, vm.stack[argsStart:argsStart+argc])

	positional, err := resolveArgs(proto, args, pairs)
	if err != nil {
		return vm.runtimeError("%v", err)
	}

	vm.stack = vm.stack[:argsStart]
	vm.retain(self)
	vm.push(self)
	for _, v := range positional {
		vm.push(v)
	}

	base := argsStart
	vm.frames = append(vm.frames, frame{
		chunk:      proto.Chunk,
		base:       base,
		calleeSlot: calleeIdx,
		closure:    closure,
		protoName:  name,
	})
	return nil
}

// resolveArgs maps the arguments actually supplied (positionally or via
// named-call pairs) onto proto's parameter slots, filling any unsupplied
// trailing parameters from their default descriptors (spec §4.5 step 5/6).
func resolveArgs(proto *bytecode.FunctionPrototype, args []value.Value, pairs []namedArg) ([]value.Value, error) {
	final := make([]value.Value, len(proto.Params))
	filled := make([]bool, len(proto.Params))

	place := func(paramIdx int, v value.Value) error {
		if paramIdx < 0 || paramIdx >= len(final) {
			return fmt.Errorf("too many arguments to %q", proto.Name)
		}
		if filled[paramIdx] {
			return fmt.Errorf("argument %q supplied more than once", proto.Params[paramIdx])
		}
		final[paramIdx] = v
		filled[paramIdx] = true
		return nil
	}

	if pairs == nil {
		if len(args) > len(proto.Params) {
			return nil, fmt.Errorf("too many arguments to %q", proto.Name)
		}
		for i, v := range args {
			if err := place(i, v); err != nil {
				return nil, err
			}
		}
	} else {
		for _, p := range pairs {
			paramIdx := -1
			if p.label == "" {
				paramIdx = int(p.argIdx)
			} else {
				for i, l := range proto.Labels {
					if l == p.label {
						paramIdx = i
						break
					}
				}
				if paramIdx == -1 {
					return nil, fmt.Errorf("no parameter labeled %q on %q", p.label, proto.Name)
				}
			}
			if int(p.argIdx) >= len(args) {
				return nil, fmt.Errorf("argument index out of range for %q", proto.Name)
			}
			if err := place(paramIdx, args[p.argIdx]); err != nil {
				return nil, err
			}
		}
	}

	for i := range final {
		if filled[i] {
			continue
		}
		if i >= len(proto.Defaults) || !proto.Defaults[i].HasDefault {
			return nil, fmt.Errorf("missing argument %q", proto.Params[i])
		}
		d := proto.Defaults[i]
		if d.Symbolic != "" {
			return nil, fmt.Errorf("missing argument %q (no literal default available)", proto.Params[i])
		}
		final[i] = constantToValue(d.Value)
	}

	return final, nil
}

// doReturn implements OP_RETURN: pop the return value, close upvalues at or
// above the frame's base, release every frame-owned slot, drop the callee,
// and splice the return value into the slot the callee used to occupy.
func (vm *VM) doReturn() {
	f := vm.currentFrame()
	retVal := vm.pop()

	vm.closeUpvalues(f.base)
	for i := len(vm.stack) - 1; i >= f.base; i-- {
		vm.release(vm.stack[i])
	}

	calleeSlot := f.calleeSlot
	oldCallee := vm.stack[calleeSlot]
	vm.stack = vm.stack[:calleeSlot]
	vm.release(oldCallee)
	vm.push(retVal)

	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.safePoint()
}

// invokeMethod synchronously calls fn with self bound and the given
// positional arguments, running a nested dispatch loop until the call
// returns, and yields its result. Used for initializers invoked outside
// OP_CALL's normal flow, property defaults, observers, deinit, and
// computed-property accessors. Each arg's ownership transfers into the
// call, mirroring a normal OP_CALL's argument-consuming convention; callers
// that still need their own copy afterward must retain before calling.
func (vm *VM) invokeMethod(fn *value.Function, self value.Value, args ...value.Value) (value.Value, error) {
	if fn == nil {
		return value.Null(), nil
	}
	startDepth := len(vm.frames)
	vm.push(value.Null()) // synthetic callee slot, overwritten by OP_RETURN
	calleeIdx := len(vm.stack) - 1
	for _, a := range args {
		vm.push(a)
	}
	if err := vm.callWithProto(calleeIdx, len(args), nil, fn.Proto, self, nil, fn.Proto.Name); err != nil {
		vm.stack = vm.stack[:calleeIdx]
		return value.Value{}, err
	}
	if err := vm.runUntilDepth(startDepth); err != nil {
		return value.Value{}, err
	}
	return vm.pop(), nil
}

// runUntilDepth drives the dispatch loop until the frame stack unwinds back
// to depth, used by invokeMethod to run a nested call to completion without
// re-entering Run's top-level recover wrapper.
func (vm *VM) runUntilDepth(depth int) error {
	for len(vm.frames) > depth {
		f := vm.currentFrame()
		if f.ip >= len(f.chunk.Code) {
			vm.frames = vm.frames[:len(vm.frames)-1]
			continue
		}
		op := bytecode.Op(f.chunk.Code[f.ip])
		f.ip++
		vm.stats.InstructionsExecuted++

		halted, err := vm.dispatch(op, f)
		if err != nil {
			return err
		}
		if halted {
			return vm.runtimeError("halt encountered inside a nested call")
		}
	}
	return nil
}

// buildClosure implements OP_CLOSURE: materialize the function prototype,
// then for each declared upvalue either capture the enclosing frame's local
// (opening a new upvalue record, or reusing one already open on that slot)
// or share the enclosing closure's handle directly.
func (vm *VM) buildClosure(f *frame) error {
	idx := vm.readU16(f)
	proto := f.chunk.Functions[idx]
	fn := value.NewFunction(proto)
	vm.track(fn)

	upvalues := make([]*value.Upvalue, len(proto.Upvalues))
	for i, desc := range proto.Upvalues {
		isLocal := vm.readByte(f) != 0
		index := vm.readU16(f)
		if isLocal != desc.IsLocal || index != desc.Index {
			// The compiler writes (is_local, index) pairs redundantly with
			// the prototype's own Upvalues table; trust the encoded bytes.
		}
		if isLocal {
			upvalues[i] = vm.captureUpvalue(f.base + int(index))
		} else {
			if f.closure == nil || int(index) >= len(f.closure.Upvalues) {
				return vm.runtimeError("closure upvalue capture out of range")
			}
			uv := f.closure.Upvalues[index]
			vm.rcEngine.Retain(uv)
			upvalues[i] = uv
		}
	}

	closure := value.NewClosure(fn, upvalues)
	vm.track(closure)
	vm.push(value.FromObject(closure, value.RefStrong))
	return nil
}

// captureUpvalue returns the open upvalue addressing stackIndex, reusing an
// existing record from the sorted open-upvalue list or creating a new one,
// and retains it on the caller's behalf (every capture is a new reference).
func (vm *VM) captureUpvalue(stackIndex int) *value.Upvalue {
	var prev *value.Upvalue
	cur := vm.openUpvalues
	for cur != nil && cur.StackIndex > stackIndex {
		prev = cur
		cur = cur.Next
	}
	if cur != nil && cur.StackIndex == stackIndex {
		vm.rcEngine.Retain(cur)
		return cur
	}

	uv := value.NewOpenUpvalue(stackIndex)
	vm.track(uv)
	uv.Next = cur
	if prev == nil {
		vm.openUpvalues = uv
	} else {
		prev.Next = uv
	}
	vm.rcEngine.Retain(uv)
	return uv
}

func (vm *VM) readUpvalue(uv *value.Upvalue) value.Value {
	if uv.IsOpen {
		return vm.stack[uv.StackIndex]
	}
	return uv.Closed
}

func (vm *VM) writeUpvalue(uv *value.Upvalue, v value.Value) {
	if uv.IsOpen {
		vm.stack[uv.StackIndex] = v
		return
	}
	uv.Closed = v
}

// closeUpvalues closes every open upvalue addressing a stack slot at or
// above boundary: its payload is copied into its own closed cell (with an
// extra retain, since the slot that held it is about to be released
// independently) and it is unlinked from the open list.
func (vm *VM) closeUpvalues(boundary int) {
	for vm.openUpvalues != nil && vm.openUpvalues.StackIndex >= boundary {
		uv := vm.openUpvalues
		v := vm.stack[uv.StackIndex]
		vm.retain(v)
		uv.Close(v)
		vm.openUpvalues = uv.Next
		uv.Next = nil
	}
}
