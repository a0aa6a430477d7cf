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

package ir

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Scope is the mutable package/module/class stack the walker carries
// while descending the syntax tree. It is passed explicitly, never held
// in package-level state, per spec §9's "no process-wide singletons".
type Scope struct {
	ModulePath string   // dotted module path, e.g. "a.b" or "com.example"
	chain      []string // enclosing class/module names, file excluded
	ids        []string // node id at each chain level, for ParentID lookup
}

// NewScope starts a scope for a file at the given module path.
func NewScope(modulePath string) *Scope {
	return &Scope{ModulePath: modulePath}
}

// Push enters a new enclosing declaration (class, module, function).
func (s *Scope) Push(name, nodeID string) {
	s.chain = append(s.chain, name)
	s.ids = append(s.ids, nodeID)
}

// Pop leaves the innermost declaration.
func (s *Scope) Pop() {
	if len(s.chain) == 0 {
		return
	}
	s.chain = s.chain[:len(s.chain)-1]
	s.ids = s.ids[:len(s.ids)-1]
}

// ParentID returns the node id of the innermost enclosing declaration, or
// fileNodeID if the scope is at file level (the File node is the parent).
func (s *Scope) ParentID(fileNodeID string) string {
	if len(s.ids) == 0 {
		return fileNodeID
	}
	return s.ids[len(s.ids)-1]
}

// FQN builds "scope.join('.') + '.' + name" per spec §4.2, prefixed by the
// module path. An empty name (anonymous declaration) returns "".
func (s *Scope) FQN(name string) string {
	if name == "" {
		return ""
	}
	parts := make([]string, 0, len(s.chain)+2)
	if s.ModulePath != "" {
		parts = append(parts, s.ModulePath)
	}
	parts = append(parts, s.chain...)
	parts = append(parts, name)
	return strings.Join(parts, ".")
}

// LambdaFQN builds the FQN for an anonymous function-like node per spec
// §4.2's tie-break: "parent.fqn + '.λ<line>:<col>'".
func (s *Scope) LambdaFQN(line, col int) string {
	parent := s.FQN("")
	base := s.ModulePath
	if len(s.chain) > 0 {
		base = strings.Join(append([]string{s.ModulePath}, s.chain...), ".")
		base = strings.TrimPrefix(base, ".")
	}
	if base == "" {
		base = parent
	}
	return fmt.Sprintf("%s.λ%d:%d", base, line, col)
}

// ModulePathFromFile derives the dotted module path tie-break from spec
// §4.2: explicit package declaration takes priority (passed in via
// pkgDecl), else the dotted path implied by file layout under one of
// srcRoots, else the file stem.
func ModulePathFromFile(filePath, pkgDecl string, srcRoots []string) string {
	if pkgDecl != "" {
		return pkgDecl
	}
	clean := filepath.ToSlash(filePath)
	for _, root := range srcRoots {
		root = filepath.ToSlash(root)
		if root == "" {
			continue
		}
		if rel, ok := strings.CutPrefix(clean, root+"/"); ok {
			return dottedFromPath(rel)
		}
	}
	return dottedFromPath(clean)
}

func dottedFromPath(rel string) string {
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return ""
	}
	return strings.ReplaceAll(rel, "/", ".")
}
