// Package project loads the §6.5 project file: an XML document naming the
// program's entry source and, optionally, its import search roots.
// encoding/xml is the sole ambient stdlib dependency here — the format is a
// small, closed, first-party schema with no shared ecosystem counterpart in
// the retrieval pack, so there is no third-party library to reach for
// instead (see DESIGN.md).
package project

import (
	"encoding/xml"
	"os"
	"path/filepath"

	"github.com/ssvm-lang/ssvm/pkg/diagnostic"
)

// rootsXML mirrors the optional <ImportRoots><Root>dir</Root>...</ImportRoots>
// block.
type rootsXML struct {
	Roots []string `xml:"Root"`
}

// fileXML mirrors the on-disk project file shape directly; Project is the
// public, already-defaulted view callers use.
type fileXML struct {
	XMLName     xml.Name  `xml:"Project"`
	Entry       string    `xml:"Entry"`
	ImportRoots *rootsXML `xml:"ImportRoots"`
}

// Project is a loaded, defaulted project description.
type Project struct {
	Entry       string
	ImportRoots []string
}

// Load reads and parses the project file at path. When <ImportRoots> is
// absent, ImportRoots defaults to the project file's containing directory,
// per §6.5.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, diagnostic.Wrap(diagnostic.KindAssemblyIO, err, "reading project file %q", path)
	}

	var parsed fileXML
	if err := xml.Unmarshal(data, &parsed); err != nil {
		return nil, diagnostic.Wrap(diagnostic.KindAssemblyIO, err, "parsing project file %q", path)
	}
	if parsed.Entry == "" {
		return nil, diagnostic.New(diagnostic.KindAssemblyIO, "project file %q has no <Entry>", path)
	}

	projectDir := filepath.Dir(path)
	p := &Project{Entry: parsed.Entry}
	if parsed.ImportRoots != nil && len(parsed.ImportRoots.Roots) > 0 {
		p.ImportRoots = parsed.ImportRoots.Roots
	} else {
		p.ImportRoots = []string{projectDir}
	}
	return p, nil
}
