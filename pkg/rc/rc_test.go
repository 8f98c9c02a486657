package rc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssvm-lang/ssvm/pkg/rc"
	"github.com/ssvm-lang/ssvm/pkg/value"
)

type noopDeinit struct{ invoked int }

func (d *noopDeinit) InvokeDeinit(inst *value.Instance) error {
	d.invoked++
	return nil
}

func TestRetainAdoptsCreatorRefWithoutIncrementing(t *testing.T) {
	e := rc.NewEngine(nil)
	s := value.NewString("x")
	require.True(t, s.Header().HasCreatorRef)
	require.EqualValues(t, 1, s.Header().Strong)

	e.Retain(s)
	assert.False(t, s.Header().HasCreatorRef)
	assert.EqualValues(t, 1, s.Header().Strong)

	e.Retain(s)
	assert.EqualValues(t, 2, s.Header().Strong)
}

func TestRetainThenReleaseLeavesCountsUnchanged(t *testing.T) {
	e := rc.NewEngine(nil)
	s := value.NewString("x")
	e.Retain(s) // adopt
	e.Retain(s) // strong = 2

	strongBefore, weakBefore := s.Header().Strong, s.Header().Weak
	e.Release(s)
	e.Retain(s)
	assert.Equal(t, strongBefore, s.Header().Strong)
	assert.Equal(t, weakBefore, s.Header().Weak)
	assert.False(t, s.Header().IsDead)
}

func TestReleaseToZeroMarksDeadAndNilsWeakSlots(t *testing.T) {
	e := rc.NewEngine(nil)
	s := value.NewString("x")
	e.Retain(s) // adopt, strong stays 1

	var slot value.Value
	slot = value.FromObject(s, value.RefWeak)
	e.WeakRetain(s, &slot)

	e.Release(s)

	assert.True(t, s.Header().IsDead)
	assert.True(t, slot.IsNull())
}

func TestDrainInvokesDeinitExactlyOnce(t *testing.T) {
	d := &noopDeinit{}
	e := rc.NewEngine(d)

	class := value.NewClass("R")
	class.Deinit = value.NewFunction(nil)
	inst := value.NewInstance(class)
	e.Track(inst)
	e.Retain(inst) // adopt

	e.Release(inst)
	require.True(t, e.PendingDrains())
	e.Drain()

	assert.Equal(t, 1, d.invoked)
	assert.False(t, e.PendingDrains())
}

func TestDrainCascadesChildReleaseWithDeletedSetGuard(t *testing.T) {
	e := rc.NewEngine(nil)

	child := value.NewList(nil)
	e.Track(child)
	e.Retain(child) // adopt, strong = 1

	parent := value.NewList([]value.Value{value.FromObject(child, value.RefStrong)})
	e.Track(parent)
	e.Retain(parent) // adopt, strong = 1

	e.Release(parent)
	e.Drain()

	assert.True(t, parent.Header().IsDead)
	assert.True(t, child.Header().IsDead)
}

func TestDrainReleasesClassMethodsAndDefaultPropertyFunctions(t *testing.T) {
	e := rc.NewEngine(nil)

	method := value.NewFunction(nil)
	e.Track(method)
	e.Retain(method) // adopt, strong = 1

	defaultFn := value.NewFunction(nil)
	e.Track(defaultFn)
	e.Retain(defaultFn) // adopt, strong = 1

	class := value.NewClass("Widget")
	class.Methods["draw"] = method
	class.Properties = []value.PropertyDescriptor{{Name: "size", DefaultFn: defaultFn}}
	e.Track(class)
	e.Retain(class) // adopt, strong = 1

	e.Release(class)
	e.Drain()

	assert.True(t, class.Header().IsDead)
	assert.True(t, method.Header().IsDead)
	assert.True(t, defaultFn.Header().IsDead)
}

func TestWeakReleaseRemovesSlotWithoutDoubleDecrementAfterDeath(t *testing.T) {
	e := rc.NewEngine(nil)
	s := value.NewString("x")
	e.Retain(s)

	var slot value.Value
	e.WeakRetain(s, &slot)
	e.Release(s)

	assert.NotPanics(t, func() { e.WeakRelease(s, &slot) })
}
