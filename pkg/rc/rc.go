// Package rc implements the deterministic reference-counting engine from
// spec §4.2: retain/release/weak_retain/weak_release, a deferred-release
// queue drained at VM safe points, and a cycle-safe child-release walk.
//
// Engine is parameterized over a Deinitializer so this package never
// imports pkg/vm; pkg/vm.VM implements Deinitializer and supplies the
// engine at construction time.
package rc

import (
	"github.com/ssvm-lang/ssvm/pkg/value"
)

// Deinitializer invokes a class instance's deinit method, if it declares
// one. Errors inside deinit are swallowed by the caller (spec §4.2/§7).
type Deinitializer interface {
	InvokeDeinit(instance *value.Instance) error
}

// Engine owns the all-objects list, the deferred-release queue, and the
// deinitializer used while draining.
type Engine struct {
	deinit   Deinitializer
	deferred []value.Object
	head     value.Object // head of the VM's all-objects intrusive list
}

// NewEngine returns an engine with an empty deferred queue and object list.
func NewEngine(deinit Deinitializer) *Engine {
	return &Engine{deinit: deinit}
}

// Track links o into the all-objects intrusive list. Every allocator must
// call this exactly once per object (spec §3.4).
func (e *Engine) Track(o value.Object) {
	o.Header().Next = e.head
	e.head = o
}

// Retain implements spec §4.2's retain primitive: a freshly allocated
// object's creator-ref is adopted (cleared, no increment) by whatever holds
// it first; every subsequent retain increments the strong count.
func (e *Engine) Retain(o value.Object) {
	if o == nil {
		return
	}
	h := o.Header()
	if h.HasCreatorRef {
		h.HasCreatorRef = false
		return
	}
	h.Strong++
}

// Release implements spec §4.2's release primitive. Dropping to zero marks
// the object dead, synchronously nils every registered weak slot (spec §5's
// ordering guarantee — "weak observers transitioning to nil happen
// synchronously on release"), and enqueues the object for deferred
// deletion. A negative count indicates a programmer/VM bug and panics,
// matching spec §7's "RC underflow (fatal abort)".
func (e *Engine) Release(o value.Object) {
	if o == nil {
		return
	}
	h := o.Header()
	h.Strong--
	if h.Strong < 0 {
		panic("rc: strong count underflow — internal bug")
	}
	if h.Strong == 0 {
		h.IsDead = true
		for slot := range h.WeakSlots {
			*slot = value.Null()
		}
		h.WeakSlots = make(map[*value.Value]struct{})
		e.deferred = append(e.deferred, o)
	}
}

// WeakRetain registers slot in o's weak-slot set and increments its weak
// count.
func (e *Engine) WeakRetain(o value.Object, slot *value.Value) {
	if o == nil {
		return
	}
	h := o.Header()
	h.Weak++
	h.WeakSlots[slot] = struct{}{}
}

// WeakRelease removes slot from o's weak-slot set and decrements the weak
// count. If o is already dead, only the set removal matters (its count was
// already settled when it died).
func (e *Engine) WeakRelease(o value.Object, slot *value.Value) {
	if o == nil {
		return
	}
	h := o.Header()
	delete(h.WeakSlots, slot)
	if !h.IsDead {
		h.Weak--
	}
}

// PendingDrains reports whether the deferred queue has work, so the VM can
// decide whether a safe point needs to call Drain.
func (e *Engine) PendingDrains() bool {
	return len(e.deferred) > 0
}

// Drain processes the deferred-release queue (spec §4.2). It is reentrant
// safe: the live queue is swapped out to a local slice up front, so deinit
// bodies that allocate or release further objects append to a fresh queue
// without corrupting the batch being drained. A single deleted-set guard
// spans the whole call so a child object reaching zero and circling back to
// an ancestor already being freed does not double-free.
func (e *Engine) Drain() {
	batch := e.deferred
	e.deferred = nil
	deleted := make(map[value.Object]struct{})
	for _, o := range batch {
		e.free(o, deleted)
	}
}

func (e *Engine) free(o value.Object, deleted map[value.Object]struct{}) {
	if _, already := deleted[o]; already {
		return
	}
	deleted[o] = struct{}{}

	if inst, ok := o.(*value.Instance); ok && e.deinit != nil {
		if inst.Class.Deinit != nil {
			_ = e.deinit.InvokeDeinit(inst) // errors inside deinit are swallowed, spec §7
		}
	}

	for slot := range o.Header().WeakSlots {
		*slot = value.Null()
	}

	for _, child := range containedObjects(o) {
		h := child.Header()
		h.Strong--
		if h.Strong < 0 {
			panic("rc: strong count underflow during child release — internal bug")
		}
		if h.Strong == 0 {
			h.IsDead = true
			e.free(child, deleted)
		}
	}

	e.unlink(o)
}

// unlink removes o from the all-objects intrusive list.
func (e *Engine) unlink(o value.Object) {
	if e.head == o {
		e.head = o.Header().Next
		return
	}
	for cur := e.head; cur != nil; cur = cur.Header().Next {
		if cur.Header().Next == o {
			cur.Header().Next = o.Header().Next
			return
		}
	}
}

// containedObjects walks one object's containment edges, returning every
// strong-held child object payload (spec §4.2's drain step (c)): list
// elements, map values, class/struct-instance fields, bound-method receiver
// and method, builtin-method target, and a class's own methods/default
// property values when it is itself being freed.
func containedObjects(o value.Object) []value.Object {
	var out []value.Object
	appendIfObject := func(v value.Value) {
		if v.IsObject() && v.RefDiscipline() == value.RefStrong {
			if obj := v.AsObject(); obj != nil {
				out = append(out, obj)
			}
		}
	}

	switch t := o.(type) {
	case *value.List:
		for _, v := range t.Elements {
			appendIfObject(v)
		}
	case *value.Map:
		for _, v := range t.Entries {
			appendIfObject(v)
		}
	case *value.Tuple:
		for _, v := range t.Elements {
			appendIfObject(v)
		}
	case *value.Instance:
		for _, v := range t.Fields {
			appendIfObject(v)
		}
	case *value.StructInstance:
		for _, v := range t.Fields {
			appendIfObject(v)
		}
	case *value.BoundMethod:
		appendIfObject(t.Receiver)
	case *value.BuiltinMethod:
		appendIfObject(t.Receiver)
	case *value.EnumCase:
		for _, v := range t.Associated {
			appendIfObject(v)
		}
	case *value.Closure:
		for _, uv := range t.Upvalues {
			if !uv.IsOpen {
				appendIfObject(uv.Closed)
			}
		}
	case *value.Module:
		for _, v := range t.Globals {
			appendIfObject(v)
		}
	case *value.Class:
		for _, fn := range t.Methods {
			out = append(out, fn)
		}
		for _, fn := range t.StaticMethods {
			out = append(out, fn)
		}
		for _, v := range t.StaticProperties {
			appendIfObject(v)
		}
		for _, pd := range t.Properties {
			if pd.DefaultFn != nil {
				out = append(out, pd.DefaultFn)
			}
			if pd.WillSet != nil {
				out = append(out, pd.WillSet)
			}
			if pd.DidSet != nil {
				out = append(out, pd.DidSet)
			}
		}
		for _, cp := range t.ComputedProperties {
			if cp.Getter != nil {
				out = append(out, cp.Getter)
			}
			if cp.Setter != nil {
				out = append(out, cp.Setter)
			}
		}
		if t.Deinit != nil {
			out = append(out, t.Deinit)
		}
	}
	return out
}
