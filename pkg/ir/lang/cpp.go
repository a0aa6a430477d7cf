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

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/semindex/pkg/ir"
)

// CppWalker builds the structural IR for C++ source files at reduced
// depth. It reuses walkCLevel (shared with CWalker) since the C++
// grammar is C's grammar plus class_specifier/base_class_clause.
type CppWalker struct{}

// NewCppWalker constructs a CppWalker.
func NewCppWalker() *CppWalker { return &CppWalker{} }

// Language identifies this walker to the registry.
func (w *CppWalker) Language() string { return "cpp" }

// Walk descends the C++ syntax tree at reduced structural depth.
func (w *CppWalker) Walk(wc WalkContext) ir.IRDocument {
	return walkCFamily(wc, "cpp")
}

func addCppClass(b *ir.Builder, node *sitter.Node, source []byte, filePath, language, parentID string, scope *ir.Scope, funcNameToID map[string]string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(source, nameNode)
	span := toSpan(node)
	n := ir.Node{
		Kind: ir.KindClass, Name: name, FQN: scope.FQN(name), FilePath: filePath, Span: span,
		Language: language, ModulePath: scope.ModulePath, ParentID: parentID,
		ContentHash: ir.ContentHash([]byte(nodeText(source, node))),
	}
	classID := b.AddNode(n, b.RepoID())
	b.AddContainsEdge(parentID, classID, span)

	for i := 0; i < int(node.ChildCount()); i++ {
		c := node.Child(i)
		if c.Type() == "base_class_clause" {
			for j := 0; j < int(c.ChildCount()); j++ {
				base := c.Child(j)
				if base.Type() == "type_identifier" || base.Type() == "qualified_identifier" {
					b.AddEdge(ir.EdgeInherits, classID, "", toSpan(base), nodeText(source, base), nil)
				}
			}
		}
	}

	scope.Push(name, classID)
	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			member := body.Child(i)
			switch member.Type() {
			case "function_definition":
				addCFunction(b, member, source, filePath, language, classID, scope, funcNameToID, name+".")
			case "field_declaration":
				addJavaLikeField(b, member, source, filePath, language, classID, scope)
			case "field_declaration_list":
				// nested access-specifier block; descend one level
				for j := 0; j < int(member.ChildCount()); j++ {
					mm := member.Child(j)
					switch mm.Type() {
					case "function_definition":
						addCFunction(b, mm, source, filePath, language, classID, scope, funcNameToID, name+".")
					case "field_declaration":
						addJavaLikeField(b, mm, source, filePath, language, classID, scope)
					}
				}
			}
		}
	}
	scope.Pop()
}
