package vm

import (
	"testing"

	"github.com/ssvm-lang/ssvm/pkg/compiler"
	"github.com/ssvm-lang/ssvm/pkg/parser"
	"github.com/ssvm-lang/ssvm/pkg/value"
)

func mustRun(t *testing.T, src string) (value.Value, *VM) {
	t.Helper()
	program, err := parser.New(src).Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	asm, err := compiler.CompileProgram(program, "test")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	m := New(asm, nil)
	result, err := m.Run()
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	return result, m
}

func TestArithmeticPrecedence(t *testing.T) {
	result, _ := mustRun(t, "2 + 3 * 4")
	if !result.IsInt() || result.AsInt() != 14 {
		t.Fatalf("expected 14, got %+v", result)
	}
}

func TestForInOverList(t *testing.T) {
	result, _ := mustRun(t, `
		var total = 0
		for n in [1, 2, 3] {
			total = total + n
		}
		total
	`)
	if !result.IsInt() || result.AsInt() != 6 {
		t.Fatalf("expected 6, got %+v", result)
	}
}

func TestForInOverRange(t *testing.T) {
	result, _ := mustRun(t, `
		var total = 0
		for i in 0..<5 {
			total = total + i
		}
		total
	`)
	if !result.IsInt() || result.AsInt() != 10 {
		t.Fatalf("expected 10, got %+v", result)
	}
}

func TestClosureCounterCapturesByReference(t *testing.T) {
	result, _ := mustRun(t, `
		func makeCounter() {
			var count = 0
			return { count = count + 1; return count }
		}
		let counter = makeCounter()
		counter()
		counter()
		counter()
	`)
	if !result.IsInt() || result.AsInt() != 3 {
		t.Fatalf("expected 3, got %+v", result)
	}
}

func TestStructValueSemanticsCopyOnAssign(t *testing.T) {
	result, _ := mustRun(t, `
		struct Point {
			var x = 0
		}
		var a = Point()
		a.x = 1
		var b = a
		b.x = 2
		a.x
	`)
	if !result.IsInt() || result.AsInt() != 1 {
		t.Fatalf("expected struct assignment to copy (a.x == 1), got %+v", result)
	}
}

func TestMutatingStructMethodMutatesInPlace(t *testing.T) {
	result, _ := mustRun(t, `
		struct Counter {
			var n = 0
			mutating func bump() { n = n + 1 }
		}
		var c = Counter()
		c.bump()
		c.bump()
		c.n
	`)
	if !result.IsInt() || result.AsInt() != 2 {
		t.Fatalf("expected 2, got %+v", result)
	}
}

func TestClassInitializerAlwaysReturnsSelf(t *testing.T) {
	result, _ := mustRun(t, `
		class Box {
			var value = 0
			init(value) {
				self.value = value
			}
		}
		let b = Box(value: 7)
		b.value
	`)
	if !result.IsInt() || result.AsInt() != 7 {
		t.Fatalf("expected 7, got %+v", result)
	}
}

func TestPropertyObserverOrdering(t *testing.T) {
	result, _ := mustRun(t, `
		class Widget {
			var log = ""
			var width = 0 {
				willSet { log = log + "will" }
				didSet { log = log + "did" }
			}
		}
		let w = Widget()
		w.width = 5
		w.log
	`)
	s, ok := result.AsObject().(*value.String)
	if !ok || s.Chars != "willdid" {
		t.Fatalf("expected observer order will-then-did, got %+v", result)
	}
}

func TestEnumCaseAssociatedValueByIndex(t *testing.T) {
	result, _ := mustRun(t, `
		enum Shape {
			case circle(radius: Int)
			case square(side: Int)
		}
		let s = Shape.circle(radius: 3)
		s.associated[0]
	`)
	if !result.IsInt() || result.AsInt() != 3 {
		t.Fatalf("expected 3, got %+v", result)
	}
}

func TestListAppendBuiltinGrowsList(t *testing.T) {
	result, _ := mustRun(t, `
		var xs = [1, 2]
		xs.append(3)
		xs.count
	`)
	if !result.IsInt() || result.AsInt() != 3 {
		t.Fatalf("expected count 3, got %+v", result)
	}
}

func TestRangeStrideBuiltinProducesSteppedList(t *testing.T) {
	result, _ := mustRun(t, `
		var total = 0
		for n in (0..<10).stride(by: 2) {
			total = total + n
		}
		total
	`)
	if !result.IsInt() || result.AsInt() != 20 {
		t.Fatalf("expected 0+2+4+6+8=20, got %+v", result)
	}
}

func TestDeinitRunsOnceWhenStrongCountReachesZero(t *testing.T) {
	result, m := mustRun(t, `
		var deinits = 0
		class Resource {
			var tally = 0
			deinit { deinits = deinits + 1 }
		}
		func consume() {
			let r = Resource()
		}
		consume()
		deinits
	`)
	if m.rcEngine == nil {
		t.Fatal("expected an rc engine")
	}
	if !result.IsInt() || result.AsInt() != 1 {
		t.Fatalf("expected deinit to run exactly once, got %+v", result)
	}
}

func TestMissingArgumentWithNoDefaultIsAnError(t *testing.T) {
	program, err := parser.New(`
		func greet(name) { return name }
		greet()
	`).Parse()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	asm, err := compiler.CompileProgram(program, "test")
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	m := New(asm, nil)
	if _, err := m.Run(); err == nil {
		t.Fatal("expected a runtime error for a missing required argument")
	}
}

func TestNamedArgumentsMatchByLabelNotPosition(t *testing.T) {
	result, _ := mustRun(t, `
		func greet(to name, from sender) {
			return sender
		}
		greet(from: "Sam", to: "Alex")
	`)
	s, ok := result.AsObject().(*value.String)
	if !ok || s.Chars != "Sam" {
		t.Fatalf("expected \"Sam\", got %+v", result)
	}
}

func TestWeakReferenceObservesNilAfterDealloc(t *testing.T) {
	result, _ := mustRun(t, `
		class C { var n = 0 }
		var a = C()
		weak var w = a
		a = nil
		w == nil
	`)
	if !result.IsBool() || !result.AsBool() {
		t.Fatalf("expected w == nil after a's release, got %+v", result)
	}
}

func TestWeakReferenceStillReadsLiveTarget(t *testing.T) {
	result, _ := mustRun(t, `
		class C { var n = 0 }
		var a = C()
		weak var w = a
		w == nil
	`)
	if !result.IsBool() || result.AsBool() {
		t.Fatalf("expected w to still observe a live target, got %+v", result)
	}
}

func TestUnownedDeclarationSkipsStrongRetain(t *testing.T) {
	result, m := mustRun(t, `
		class C { var n = 0 }
		var a = C()
		unowned var u = a
		a.n
	`)
	if !result.IsInt() || result.AsInt() != 0 {
		t.Fatalf("expected 0, got %+v", result)
	}
	if m.rcEngine == nil {
		t.Fatal("expected an rc engine")
	}
}
