// Package resolver implements the module resolution contract of spec §6.3:
// turning an import name into source text by searching a list of import
// roots, the same "search each root in order, cache the hit" pattern
// kristofer-smog's own source loader uses for its single-root case.
package resolver

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ssvm-lang/ssvm/pkg/diagnostic"
)

// Module is a resolved import: its full filesystem path and source text.
type Module struct {
	Path   string
	Source string
}

// Resolver searches Roots, in order, for a module name. It caches both
// path resolution and source text so repeated imports of the same name
// within one compilation only touch the filesystem once.
type Resolver struct {
	Roots []string

	cache     map[string]*Module
	compiling map[string]bool
}

// New builds a Resolver over the given import roots.
func New(roots []string) *Resolver {
	return &Resolver{
		Roots:     roots,
		cache:     make(map[string]*Module),
		compiling: make(map[string]bool),
	}
}

// normalize turns a dot- or slash-separated module name into a relative
// path with its extension stripped, per §6.3.
func normalize(name string) string {
	name = strings.TrimSuffix(name, ".ss")
	name = strings.ReplaceAll(name, ".", string(filepath.Separator))
	name = strings.ReplaceAll(name, "/", string(filepath.Separator))
	return name
}

// Resolve finds the module named by name, trying <root>/<name>.ss then
// <root>/<name>/index.ss for each root in order. It is cached: calling it
// twice with the same name returns the same *Module without touching disk
// again.
func (r *Resolver) Resolve(name string) (*Module, error) {
	if m, ok := r.cache[name]; ok {
		return m, nil
	}

	rel := normalize(name)
	for _, root := range r.Roots {
		for _, candidate := range []string{
			filepath.Join(root, rel+".ss"),
			filepath.Join(root, rel, "index.ss"),
		} {
			data, err := os.ReadFile(candidate)
			if err != nil {
				continue
			}
			m := &Module{Path: candidate, Source: string(data)}
			r.cache[name] = m
			return m, nil
		}
	}
	return nil, diagnostic.New(diagnostic.KindLink, "module %q not found in ImportRoots", name)
}

// BeginImport marks name as currently being compiled, for cycle detection.
// It reports whether the import may proceed: false means name is already on
// the in-progress stack and the caller should report a circular import.
func (r *Resolver) BeginImport(name string) bool {
	if r.compiling[name] {
		return false
	}
	r.compiling[name] = true
	return true
}

// EndImport clears name's in-progress marker once its compilation (success
// or failure) completes.
func (r *Resolver) EndImport(name string) {
	delete(r.compiling, name)
}

// CircularImportError builds the diagnostic spec §4.3/§7 specifies for an
// import cycle.
func CircularImportError(name string) error {
	return diagnostic.New(diagnostic.KindLink, "circular import of `%s`", name)
}
