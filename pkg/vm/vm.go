// Package vm implements the stack-based bytecode execution core: the
// operand stack, call-frame stack, open-upvalue list, globals table, and
// the opcode dispatch loop that drives a compiled *bytecode.Assembly. It
// cooperates with pkg/rc for deterministic reference counting and with
// pkg/value for the heap object model.
package vm

import (
	"fmt"

	"github.com/ssvm-lang/ssvm/pkg/bytecode"
	"github.com/ssvm-lang/ssvm/pkg/diagnostic"
	"github.com/ssvm-lang/ssvm/pkg/rc"
	"github.com/ssvm-lang/ssvm/pkg/ssvmlog"
	"github.com/ssvm-lang/ssvm/pkg/value"
)

const (
	initialStackSize = 256
	maxStackSize     = 65536

	// rcDrainThreshold bounds how many retain/release operations accumulate
	// before a mid-instruction-stream safe point forces a deferred-release
	// drain, in addition to the drain that always runs after a call returns.
	rcDrainThreshold = 1024
)

// frame is one call-frame: the chunk being executed, the instruction
// pointer into it, the stack index its locals begin at, and (for a closure
// call) the closure whose upvalues OP_GET_UPVALUE/OP_SET_UPVALUE index.
type frame struct {
	chunk      *bytecode.Chunk
	ip         int
	base       int // stack_base: self/placeholder occupies stack[base]
	calleeSlot int // stack index of the callee value, overwritten on return
	closure    *value.Closure
	protoName  string
}

// VM executes a single compiled assembly. It is not safe for concurrent
// use from multiple goroutines (spec: single-threaded and synchronous).
type VM struct {
	stack  []value.Value
	frames []frame

	openUpvalues *value.Upvalue // head of the list, sorted by descending StackIndex

	globals map[string]value.Value

	// weakGlobals holds a global declared `weak`/`unowned`, boxed so the RC
	// engine has a stable address to nil on the target's release (spec
	// §4.2's weak-slot registration needs a real pointer, which a plain
	// map[string]value.Value entry cannot offer). Disjoint from globals: a
	// given name lives in exactly one of the two maps. The discipline is
	// tracked alongside the box rather than read back off *box, since a
	// dead weak target's box has already been reset to an undisciplined
	// Null() by the RC engine by the time anything inspects it again.
	weakGlobals map[string]*weakGlobal

	rcEngine *rc.Engine
	rcOps    int

	asm   *bytecode.Assembly
	types map[string]value.Object // lazily materialized Class/StructType/EnumType/Protocol, keyed by name

	log ssvmlog.Logger

	stats Stats
}

// weakGlobal is a global variable declared `weak`/`unowned`: box is the
// stable address registered with the RC engine, discipline records which of
// the two modifiers it was declared with.
type weakGlobal struct {
	box        *value.Value
	discipline value.RefDiscipline
}

// Stats is the `--stats` summary the CLI prints after a run.
type Stats struct {
	InstructionsExecuted int64
	CallCount            int64
	AllocCount           int64
	DrainCount           int64
	PeakStackDepth       int
}

// New returns a VM ready to load and run asm. log may be nil, in which case
// a no-op logger is used.
func New(asm *bytecode.Assembly, log ssvmlog.Logger) *VM {
	if log == nil {
		log = ssvmlog.Noop()
	}
	vm := &VM{
		stack:       make([]value.Value, 0, initialStackSize),
		globals:     make(map[string]value.Value),
		weakGlobals: make(map[string]*weakGlobal),
		asm:         asm,
		types:       make(map[string]value.Object),
		log:         log,
	}
	vm.rcEngine = rc.NewEngine(vm)
	return vm
}

// Stats returns a snapshot of the run's execution counters, for `--stats`.
func (vm *VM) Stats() Stats { return vm.stats }

// Run executes the assembly's primary chunk to completion (OP_HALT or
// falling off the end) and returns the final stack-top value, or nil per
// spec §4.5's "HALT" semantics.
func (vm *VM) Run() (value.Value, error) {
	vm.frames = append(vm.frames, frame{chunk: vm.asm.Main, ip: 0, base: 0, calleeSlot: -1, protoName: "main"})
	// The compiler reserves local slot 0 of the top-level chunk, so a
	// placeholder occupies stack[0] the way self does in a call frame.
	vm.push(value.Null())
	err := vm.run()
	if err != nil {
		return value.Null(), err
	}
	if len(vm.stack) == 0 {
		return value.Null(), nil
	}
	return vm.stack[len(vm.stack)-1], nil
}

func (vm *VM) currentFrame() *frame {
	return &vm.frames[len(vm.frames)-1]
}

func (vm *VM) push(v value.Value) {
	if len(vm.stack) >= maxStackSize {
		panic(vm.runtimeError("stack overflow"))
	}
	vm.stack = append(vm.stack, v)
	if len(vm.stack) > vm.stats.PeakStackDepth {
		vm.stats.PeakStackDepth = len(vm.stack)
	}
}

func (vm *VM) pop() value.Value {
	n := len(vm.stack) - 1
	v := vm.stack[n]
	vm.stack = vm.stack[:n]
	return v
}

func (vm *VM) peek(distanceFromTop int) value.Value {
	return vm.stack[len(vm.stack)-1-distanceFromTop]
}

// popAndRelease pops the top of stack, releasing the RC engine's ownership
// of it (the value is being discarded, not moved into a durable slot).
func (vm *VM) popAndRelease() {
	v := vm.pop()
	vm.release(v)
}

func (vm *VM) retain(v value.Value) {
	if v.IsObject() && v.RefDiscipline() == value.RefStrong {
		vm.rcEngine.Retain(v.AsObject())
	}
}

func (vm *VM) release(v value.Value) {
	if v.IsObject() && v.RefDiscipline() == value.RefStrong {
		vm.rcEngine.Release(v.AsObject())
		vm.rcOps++
		if vm.rcOps >= rcDrainThreshold {
			vm.drain()
		}
	}
}

// track links a freshly allocated object into the RC engine's all-objects
// list. Every allocation site in this package must call this exactly once.
func (vm *VM) track(o value.Object) {
	vm.rcEngine.Track(o)
	vm.stats.AllocCount++
}

// trackCopiedStruct links a freshly Copy()'d struct instance, and any nested
// struct instances Copy recursively created for its fields, into the RC
// engine's all-objects list. Copy has no VM access, so it cannot call track
// itself for the nested copies it allocates.
func (vm *VM) trackCopiedStruct(si *value.StructInstance) {
	vm.track(si)
	for _, fv := range si.Fields {
		if nested, ok := fv.AsObject().(*value.StructInstance); ok {
			vm.trackCopiedStruct(nested)
		}
	}
}

// safePoint is called after every call return and after every property
// set, matching spec §4.5/§5's named safe points. It is one of two drain
// triggers: release also drains once rcDrainThreshold releases accumulate.
func (vm *VM) safePoint() {
	if vm.rcEngine.PendingDrains() {
		vm.drain()
	}
	vm.rcOps = 0
}

// drain runs the deferred-release processor and resets the operation
// counter that triggers it, whether invoked from safePoint's named safe
// points or from release's operation-count threshold (spec §4.2's "drained
// at safe points chosen by the VM").
func (vm *VM) drain() {
	vm.rcEngine.Drain()
	vm.stats.DrainCount++
	vm.rcOps = 0
}

// runtimeError builds a *diagnostic.Diagnostic carrying the current frame's
// source line and a traceback, suitable for panic/recover unwinding out of
// run().
func (vm *VM) runtimeError(format string, args ...interface{}) error {
	line := 0
	if len(vm.frames) > 0 {
		f := vm.currentFrame()
		if f.ip > 0 && f.ip-1 < len(f.chunk.Lines) {
			line = int(f.chunk.Lines[f.ip-1])
		}
	}
	msg := fmt.Sprintf(format, args...)
	return diagnostic.At(diagnostic.KindRuntime, line, 0, "%s%s", msg, vm.traceback())
}

// traceback renders the active call-frame stack, innermost first, for a
// runtime error's diagnostic message.
func (vm *VM) traceback() string {
	if len(vm.frames) <= 1 {
		return ""
	}
	out := "\n\nStack trace:"
	for i := len(vm.frames) - 1; i >= 0; i-- {
		f := vm.frames[i]
		line := 0
		if f.ip-1 >= 0 && f.ip-1 < len(f.chunk.Lines) {
			line = int(f.chunk.Lines[f.ip-1])
		}
		out += fmt.Sprintf("\n  at %s [line %d]", f.protoName, line)
	}
	return out
}

// run is the main opcode dispatch loop. It recovers a panicked error
// (stack overflow, RC underflow, malformed bytecode) and returns it rather
// than crashing the host process.
func (vm *VM) run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = vm.runtimeError("%v", r)
		}
	}()

	for {
		f := vm.currentFrame()
		if f.ip >= len(f.chunk.Code) {
			return nil
		}
		op := bytecode.Op(f.chunk.Code[f.ip])
		f.ip++
		vm.stats.InstructionsExecuted++

		halted, err := vm.dispatch(op, f)
		if err != nil {
			return err
		}
		if halted {
			return nil
		}
	}
}

// readU16 decodes a big-endian u16 operand at the frame's current ip and
// advances it, mirroring bytecode.Chunk.ReadU16's encoding.
func (vm *VM) readU16(f *frame) uint16 {
	hi, lo := f.chunk.Code[f.ip], f.chunk.Code[f.ip+1]
	f.ip += 2
	return uint16(hi)<<8 | uint16(lo)
}

func (vm *VM) readByte(f *frame) byte {
	b := f.chunk.Code[f.ip]
	f.ip++
	return b
}

func (vm *VM) readString(f *frame, idx uint16) string {
	return f.chunk.Strings[idx]
}

func (vm *VM) readConstant(f *frame, idx uint16) value.Value {
	return constantToValue(f.chunk.Constants[idx])
}

func constantToValue(k bytecode.Constant) value.Value {
	switch k.Kind {
	case bytecode.ConstInt:
		return value.Int(k.I)
	case bytecode.ConstFloat:
		return value.Float(k.F)
	case bytecode.ConstBool:
		return value.Bool(k.B)
	default:
		return value.Null()
	}
}
