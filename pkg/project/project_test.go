package project

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestLoadDefaultsImportRootsToProjectDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.ssproj")
	writeFile(t, path, `<Project><Entry>main.ss</Entry></Project>`)

	p, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if p.Entry != "main.ss" {
		t.Fatalf("got entry %q", p.Entry)
	}
	if len(p.ImportRoots) != 1 || p.ImportRoots[0] != dir {
		t.Fatalf("expected default import root %q, got %v", dir, p.ImportRoots)
	}
}

func TestLoadReadsExplicitImportRoots(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.ssproj")
	writeFile(t, path, `<Project>
		<Entry>main.ss</Entry>
		<ImportRoots>
			<Root>lib</Root>
			<Root>vendor</Root>
		</ImportRoots>
	</Project>`)

	p, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if len(p.ImportRoots) != 2 || p.ImportRoots[0] != "lib" || p.ImportRoots[1] != "vendor" {
		t.Fatalf("got %v", p.ImportRoots)
	}
}

func TestLoadMissingEntryIsAnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.ssproj")
	writeFile(t, path, `<Project></Project>`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a missing <Entry>")
	}
}

func TestLoadMissingFileIsAnError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.ssproj")); err == nil {
		t.Fatal("expected an error for a missing project file")
	}
}
