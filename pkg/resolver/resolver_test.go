package resolver

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ssvm-lang/ssvm/pkg/diagnostic"
)

func writeModule(t *testing.T, dir, rel, contents string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(contents), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestResolveFindsDirectFile(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "geometry.ss", "struct Point {}")

	r := New([]string{dir})
	m, err := r.Resolve("geometry")
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if m.Source != "struct Point {}" {
		t.Fatalf("got %q", m.Source)
	}
}

func TestResolveFallsBackToIndexFile(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, filepath.Join("collections", "index.ss"), "struct Stack {}")

	r := New([]string{dir})
	m, err := r.Resolve("collections")
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if m.Source != "struct Stack {}" {
		t.Fatalf("got %q", m.Source)
	}
}

func TestResolveSearchesRootsInOrder(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	writeModule(t, second, "shapes.ss", "enum Shape {}")

	r := New([]string{first, second})
	m, err := r.Resolve("shapes")
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if m.Path != filepath.Join(second, "shapes.ss") {
		t.Fatalf("expected hit in second root, got %q", m.Path)
	}
}

func TestResolveMissingModuleReturnsLinkError(t *testing.T) {
	r := New([]string{t.TempDir()})
	_, err := r.Resolve("nope")
	if err == nil {
		t.Fatal("expected a not-found error")
	}
	var d *diagnostic.Diagnostic
	if !errors.As(err, &d) || d.Kind != diagnostic.KindLink {
		t.Fatalf("expected a link diagnostic, got %v", err)
	}
}

func TestResolveCachesResult(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "cached.ss", "let x = 1")
	r := New([]string{dir})

	first, err := r.Resolve("cached")
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "cached.ss")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	second, err := r.Resolve("cached")
	if err != nil {
		t.Fatalf("expected cached hit despite file removal: %v", err)
	}
	if first != second {
		t.Fatal("expected the same cached *Module instance")
	}
}

func TestBeginImportDetectsCycle(t *testing.T) {
	r := New(nil)
	if !r.BeginImport("a") {
		t.Fatal("expected first BeginImport to succeed")
	}
	if r.BeginImport("a") {
		t.Fatal("expected second BeginImport of the same module to report a cycle")
	}
	r.EndImport("a")
	if !r.BeginImport("a") {
		t.Fatal("expected BeginImport to succeed again after EndImport")
	}
}
