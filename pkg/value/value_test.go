package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ssvm-lang/ssvm/pkg/value"
)

func TestIntEquality(t *testing.T) {
	assert.True(t, value.Int(3).Equals(value.Int(3)))
	assert.False(t, value.Int(3).Equals(value.Int(4)))
}

func TestIntFloatCrossPromotion(t *testing.T) {
	assert.True(t, value.Int(3).Equals(value.Float(3.0)))
	assert.True(t, value.Float(3.0).Equals(value.Int(3)))
}

func TestFloatEqualityUsesScaleRelativeEpsilon(t *testing.T) {
	assert.True(t, value.Float(1000000.0).Equals(value.Float(1000000.0000001)))
	assert.False(t, value.Float(1.0).Equals(value.Float(1.1)))
}

func TestNullAndUndefinedAreDistinct(t *testing.T) {
	assert.True(t, value.Null().Equals(value.Null()))
	assert.True(t, value.Undefined().Equals(value.Undefined()))
	assert.False(t, value.Null().Equals(value.Undefined()))
}

func TestStringValuesCompareByContent(t *testing.T) {
	a := value.FromObject(value.NewString("hi"), value.RefStrong)
	b := value.FromObject(value.NewString("hi"), value.RefStrong)
	c := value.FromObject(value.NewString("bye"), value.RefStrong)

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))
}

func TestEnumCasesCompareByIdentityAndName(t *testing.T) {
	enum := value.NewEnumType("Direction")
	north := value.NewEnumCase(enum, "north")
	northAgain := value.NewEnumCase(enum, "north")
	south := value.NewEnumCase(enum, "south")

	a := value.FromObject(north, value.RefStrong)
	b := value.FromObject(northAgain, value.RefStrong)
	c := value.FromObject(south, value.RefStrong)

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))
}

func TestOtherObjectsCompareByIdentity(t *testing.T) {
	l1 := value.NewList([]value.Value{value.Int(1)})
	l2 := value.NewList([]value.Value{value.Int(1)})

	a := value.FromObject(l1, value.RefStrong)
	b := value.FromObject(l1, value.RefStrong)
	c := value.FromObject(l2, value.RefStrong)

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))
}

func TestStructInstanceCopyIsRecursiveForNestedStructsAndSharesObjects(t *testing.T) {
	pointType := value.NewStructType("Point")
	inner := value.NewStructInstance(pointType)
	inner.Fields["x"] = value.Int(1)

	outerType := value.NewStructType("Line")
	outer := value.NewStructInstance(outerType)
	outer.Fields["start"] = value.FromObject(inner, value.RefStrong)
	sharedList := value.NewList(nil)
	outer.Fields["tags"] = value.FromObject(sharedList, value.RefStrong)

	copied := outer.Copy()

	copiedStart := copied.Fields["start"].AsObject().(*value.StructInstance)
	assert.NotSame(t, inner, copiedStart)
	assert.Equal(t, inner.Fields["x"], copiedStart.Fields["x"])

	assert.Same(t, sharedList, copied.Fields["tags"].AsObject())
}

func TestClassFindMethodWalksSuperclassChain(t *testing.T) {
	base := value.NewClass("Animal")
	base.Methods["speak"] = value.NewFunction(nil)

	derived := value.NewClass("Dog")
	derived.Super = base

	fn, ok := derived.FindMethod("speak")
	assert.True(t, ok)
	assert.Same(t, base.Methods["speak"], fn)

	_, ok = derived.FindMethod("fly")
	assert.False(t, ok)
}

func TestRangeContains(t *testing.T) {
	inclusive := value.NewRange(1, 5, true)
	assert.True(t, inclusive.Contains(5))

	exclusive := value.NewRange(1, 5, false)
	assert.False(t, exclusive.Contains(5))
	assert.True(t, exclusive.Contains(4))
}

func TestTupleLabeledLookup(t *testing.T) {
	tup := value.NewTuple([]value.Value{value.Int(1), value.Int(2)}, []string{"x", "y"})

	v, ok := tup.Labeled("y")
	assert.True(t, ok)
	assert.Equal(t, value.Int(2), v)

	_, ok = tup.Labeled("z")
	assert.False(t, ok)
}
