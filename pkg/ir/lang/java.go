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
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/semindex/pkg/ir"
)

// JavaWalker builds the structural IR for Java source files at reduced
// depth (spec §4.2): File/Import/Class/Interface/Method/Field plus
// CALLS, no block-level Conditional/Loop/TryCatch nodes.
type JavaWalker struct{}

// NewJavaWalker constructs a JavaWalker.
func NewJavaWalker() *JavaWalker { return &JavaWalker{} }

// Language identifies this walker to the registry.
func (w *JavaWalker) Language() string { return "java" }

// Walk descends the Java syntax tree at reduced structural depth.
func (w *JavaWalker) Walk(wc WalkContext) ir.IRDocument {
	b := ir.NewBuilder(wc.RepoID, wc.SnapshotID, wc.FilePath)
	modulePath := ir.ModulePathFromFile(wc.FilePath, javaPackageName(wc.Root, wc.Source), wc.SrcRoots)

	fileNode := ir.Node{
		Kind: ir.KindFile, Name: wc.FilePath, FQN: modulePath, FilePath: wc.FilePath,
		Span: toSpan(wc.Root), Language: "java", ModulePath: modulePath,
		ContentHash: ir.ContentHash(wc.Source),
	}
	fileID := b.AddNode(fileNode, wc.RepoID)
	if errs := countErrors(wc.Root); errs > 0 {
		b.Diagnostic(fmt.Sprintf("%d syntax error node(s) in file", errs))
	}

	scope := ir.NewScope(modulePath)
	funcNameToID := make(map[string]string)
	walkJavaLike(b, wc.Root, wc.Source, wc.FilePath, "java", fileID, scope, funcNameToID,
		javaLikeNodeTypes{
			Import: "import_declaration", Class: "class_declaration", Interface: "interface_declaration",
			Method: "method_declaration", Field: "field_declaration", Call: "method_invocation",
		})
	return b.Document()
}

func javaPackageName(root *sitter.Node, source []byte) string {
	for i := 0; i < int(root.ChildCount()); i++ {
		c := root.Child(i)
		if c.Type() == "package_declaration" {
			for j := 0; j < int(c.ChildCount()); j++ {
				cc := c.Child(j)
				if cc.Type() == "scoped_identifier" || cc.Type() == "identifier" {
					return nodeText(source, cc)
				}
			}
		}
	}
	return ""
}
