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

package lang

import "github.com/kraklabs/semindex/pkg/ir"

// TypeScriptWalker shares every node type JavaScriptWalker handles — the
// TypeScript grammar is the JavaScript grammar plus interface_declaration,
// type_alias_declaration and typed parameters, all already handled in
// javascript.go — so it only needs to report its own language name.
type TypeScriptWalker struct{}

// NewTypeScriptWalker constructs a TypeScriptWalker.
func NewTypeScriptWalker() *TypeScriptWalker { return &TypeScriptWalker{} }

// Language identifies this walker to the registry.
func (w *TypeScriptWalker) Language() string { return "typescript" }

// Walk descends the TypeScript syntax tree via the shared JS-family walk.
func (w *TypeScriptWalker) Walk(wc WalkContext) ir.IRDocument {
	return walkJSFamily(wc, "typescript")
}
