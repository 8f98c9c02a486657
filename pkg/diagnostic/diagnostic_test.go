package diagnostic

import (
	"errors"
	"fmt"
	"testing"
)

func TestAtIncludesLineAndColumn(t *testing.T) {
	d := At(KindParse, 3, 7, "unexpected token %q", "}")
	got := d.Error()
	if got != `parse error at line 3, column 7: unexpected token "}"` {
		t.Fatalf("got %q", got)
	}
}

func TestExitCodeForDistinguishesCompileFromRuntime(t *testing.T) {
	compileErr := New(KindCompile, "bad")
	if compileErr.ExitCode() != 1 {
		t.Fatalf("expected exit 1 for compile error, got %d", compileErr.ExitCode())
	}
	runtimeErr := New(KindRuntime, "boom")
	if runtimeErr.ExitCode() != 2 {
		t.Fatalf("expected exit 2 for runtime error, got %d", runtimeErr.ExitCode())
	}
}

func TestExitCodeForUnwrapsWrappedDiagnostic(t *testing.T) {
	inner := New(KindRuntime, "division by zero")
	wrapped := fmt.Errorf("pipeline failed: %w", inner)
	if ExitCodeFor(wrapped) != 2 {
		t.Fatalf("expected 2, got %d", ExitCodeFor(wrapped))
	}
}

func TestExitCodeForDefaultsToOneForPlainError(t *testing.T) {
	if ExitCodeFor(errors.New("unexpected")) != 1 {
		t.Fatal("expected default exit code 1 for a non-diagnostic error")
	}
}
