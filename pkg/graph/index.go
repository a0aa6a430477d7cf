// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package graph implements the graph builder (spec §4.4, component C4):
// cross-file edge resolution, entry-point detection and role tagging
// over the per-file IRDocuments that C2/C3 produced.
package graph

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/kraklabs/semindex/pkg/ir"
)

// Index is the whole-repository lookup built once over every file's
// IRDocument, then consulted to resolve each file's unresolved edges.
// Mirrors the teacher CLI's CallResolver shape, generalized from
// CALLS-only resolution to every unresolved edge kind.
type Index struct {
	mu sync.RWMutex

	// byModuleAndName resolves (module_path, simple_name) -> node id for
	// Function/Method/Class/Interface/Enum declarations.
	byModuleAndName map[string]map[string]string

	// globalByName is a same-repo fallback when a qualifier can't be
	// mapped to a module path (e.g. an unresolved import alias).
	globalByName map[string][]string

	// fileImportAliases: file_path -> alias -> module_path, built from
	// each file's IMPORTS edges.
	fileImportAliases map[string]map[string]string

	// qualifiedMethods: "TypeName.MethodName" -> node id, for instance
	// method dispatch (selector calls on a receiver of known type).
	qualifiedMethods map[string]string

	// fileByModule: module_path -> File node id, the binding target for
	// IMPORTS edges so the chunk layer can persist file-to-file import
	// dependencies (which incremental Discovery's reverse-import closure
	// reads back).
	fileByModule map[string]string

	nodeByID map[string]*ir.Node
}

// NewIndex constructs an empty Index.
func NewIndex() *Index {
	return &Index{
		byModuleAndName:   make(map[string]map[string]string),
		globalByName:      make(map[string][]string),
		fileImportAliases: make(map[string]map[string]string),
		qualifiedMethods:  make(map[string]string),
		fileByModule:      make(map[string]string),
		nodeByID:          make(map[string]*ir.Node),
	}
}

// Add ingests one file's IRDocument into the index. Call once per file
// before resolving any document's unresolved edges.
func (idx *Index) Add(doc *ir.IRDocument) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for i := range doc.Nodes {
		n := &doc.Nodes[i]
		idx.nodeByID[n.ID] = n

		switch n.Kind {
		case ir.KindFile:
			if n.ModulePath != "" {
				idx.fileByModule[n.ModulePath] = n.ID
			}
		case ir.KindFunction, ir.KindMethod, ir.KindClass, ir.KindInterface, ir.KindEnum:
			simple := simpleName(n.Name)
			if idx.byModuleAndName[n.ModulePath] == nil {
				idx.byModuleAndName[n.ModulePath] = make(map[string]string)
			}
			idx.byModuleAndName[n.ModulePath][simple] = n.ID
			idx.globalByName[simple] = append(idx.globalByName[simple], n.ID)

			if n.Kind == ir.KindMethod && strings.Contains(n.Name, ".") {
				idx.qualifiedMethods[n.Name] = n.ID
			}
		}
	}

	for _, e := range doc.Edges {
		if e.Kind != ir.EdgeImports {
			continue
		}
		importPath := e.Attrs["import_path"]
		if importPath == "" {
			importPath = e.Attrs["unresolved_name"]
		}
		alias := e.Attrs["alias"]
		if alias == "" {
			alias = filepath.Base(importPath)
		}
		file := nodeFilePath(doc)
		if idx.fileImportAliases[file] == nil {
			idx.fileImportAliases[file] = make(map[string]string)
		}
		idx.fileImportAliases[file][alias] = importPath
	}
}

func nodeFilePath(doc *ir.IRDocument) string {
	for _, n := range doc.Nodes {
		if n.Kind == ir.KindFile {
			return n.FilePath
		}
	}
	return ""
}

func simpleName(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

// NodeByID returns the indexed node for id, or nil.
func (idx *Index) NodeByID(id string) *ir.Node {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.nodeByID[id]
}
