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

package graph

import (
	"strings"

	"github.com/kraklabs/semindex/pkg/ir"
)

// ResolveStats reports how many unresolved edges a ResolveDocument call
// fixed, for pipeline-level progress and test assertions.
type ResolveStats struct {
	Resolved   int
	Unresolved int
}

// ResolveDocument repairs every unresolved edge in doc (CALLS, IMPORTS,
// INHERITS, IMPLEMENTS, REFERENCES, THROWS) against the whole-repository
// Index built by Add over every file. Edges left unresolved keep their
// unresolved_name attribute for the snapshot store to surface as a
// diagnostic; they are not an error.
func ResolveDocument(idx *Index, doc *ir.IRDocument) ResolveStats {
	filePath := nodeFilePath(doc)
	aliases := idx.fileImportAliases[filePath]

	var stats ResolveStats
	for i := range doc.Edges {
		e := &doc.Edges[i]
		if !e.Unresolved() {
			continue
		}
		switch e.Kind {
		case ir.EdgeImports:
			// An IMPORTS edge names a module; when that module is a file
			// of this repository, bind the edge to its File node so the
			// chunk layer persists a file-to-file import dependency.
			// External modules stay unresolved, which downstream
			// consumers treat as "imports something outside the repo".
			name := e.Attrs["import_path"]
			if name == "" {
				name = e.Attrs["unresolved_name"]
			}
			if target := resolveImportedFile(idx, name); target != "" {
				e.TargetID = target
				stats.Resolved++
				continue
			}
			stats.Unresolved++
		case ir.EdgeCalls, ir.EdgeReferences, ir.EdgeThrows:
			name := e.Attrs["unresolved_name"]
			qualifier := e.Attrs["qualifier"]
			if target := resolveCallLike(idx, doc, aliases, name, qualifier); target != "" {
				e.TargetID = target
				stats.Resolved++
				continue
			}
			stats.Unresolved++
		case ir.EdgeInherits, ir.EdgeImplements:
			name := e.Attrs["unresolved_name"]
			if target := resolveTypeName(idx, doc, aliases, name); target != "" {
				e.TargetID = target
				stats.Resolved++
				continue
			}
			stats.Unresolved++
		default:
			stats.Unresolved++
		}
	}
	return stats
}

// resolveCallLike resolves a CALLS/REFERENCES/THROWS edge's callee name,
// honoring a selector qualifier (package alias or receiver variable) when
// one is recorded, falling back to qualified-method dispatch and then a
// same-repo simple-name match when the qualifier can't be mapped.
func resolveCallLike(idx *Index, doc *ir.IRDocument, aliases map[string]string, name, qualifier string) string {
	if name == "" {
		return ""
	}
	if qualifier != "" {
		if modulePath, ok := aliases[qualifier]; ok {
			if fns, ok := idx.byModuleAndName[modulePath]; ok {
				if id, ok := fns[name]; ok {
					return id
				}
			}
		}
		if id, ok := idx.qualifiedMethods[qualifier+"."+name]; ok {
			return id
		}
	}
	if fns, ok := idx.byModuleAndName[moduleOf(doc)]; ok {
		if id, ok := fns[name]; ok {
			return id
		}
	}
	if candidates, ok := idx.globalByName[name]; ok && len(candidates) == 1 {
		return candidates[0]
	}
	return ""
}

// resolveImportedFile maps an import path to a same-repo File node,
// trying the exact module path first (Python dotted imports, relative JS
// paths normalized by the walker), then the last path segment (a Go
// import path's package name, a "./util" JS specifier's stem).
func resolveImportedFile(idx *Index, importPath string) string {
	if importPath == "" {
		return ""
	}
	if id, ok := idx.fileByModule[importPath]; ok {
		return id
	}
	seg := importPath
	for _, sep := range []byte{'/', '.'} {
		if i := strings.LastIndexByte(seg, sep); i >= 0 {
			seg = seg[i+1:]
		}
	}
	if id, ok := idx.fileByModule[seg]; ok {
		return id
	}
	return ""
}

func resolveTypeName(idx *Index, doc *ir.IRDocument, aliases map[string]string, name string) string {
	name = strings.TrimPrefix(name, "*")
	if qualifier, rest, ok := splitQualified(name); ok {
		if modulePath, found := aliases[qualifier]; found {
			if fns, ok := idx.byModuleAndName[modulePath]; ok {
				if id, ok := fns[rest]; ok {
					return id
				}
			}
		}
		return ""
	}
	if fns, ok := idx.byModuleAndName[moduleOf(doc)]; ok {
		if id, ok := fns[name]; ok {
			return id
		}
	}
	if candidates, ok := idx.globalByName[name]; ok && len(candidates) == 1 {
		return candidates[0]
	}
	return ""
}

func splitQualified(name string) (qualifier, rest string, ok bool) {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i], name[i+1:], true
	}
	return "", name, false
}

func moduleOf(doc *ir.IRDocument) string {
	for _, n := range doc.Nodes {
		if n.Kind == ir.KindFile {
			return n.ModulePath
		}
	}
	return ""
}
