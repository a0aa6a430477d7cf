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

	"github.com/kraklabs/semindex/pkg/ir"
)

// KotlinWalker builds the structural IR for Kotlin source files at
// reduced depth. Kotlin's grammar uses class_declaration for both classes
// and interfaces (interface is a modifier, not a separate node type), so
// every class_declaration is emitted as KindClass here.
type KotlinWalker struct{}

// NewKotlinWalker constructs a KotlinWalker.
func NewKotlinWalker() *KotlinWalker { return &KotlinWalker{} }

// Language identifies this walker to the registry.
func (w *KotlinWalker) Language() string { return "kotlin" }

// Walk descends the Kotlin syntax tree at reduced structural depth.
func (w *KotlinWalker) Walk(wc WalkContext) ir.IRDocument {
	b := ir.NewBuilder(wc.RepoID, wc.SnapshotID, wc.FilePath)
	modulePath := ir.ModulePathFromFile(wc.FilePath, "", wc.SrcRoots)

	fileNode := ir.Node{
		Kind: ir.KindFile, Name: wc.FilePath, FQN: modulePath, FilePath: wc.FilePath,
		Span: toSpan(wc.Root), Language: "kotlin", ModulePath: modulePath,
		ContentHash: ir.ContentHash(wc.Source),
	}
	fileID := b.AddNode(fileNode, wc.RepoID)
	if errs := countErrors(wc.Root); errs > 0 {
		b.Diagnostic(fmt.Sprintf("%d syntax error node(s) in file", errs))
	}

	scope := ir.NewScope(modulePath)
	funcNameToID := make(map[string]string)
	walkJavaLike(b, wc.Root, wc.Source, wc.FilePath, "kotlin", fileID, scope, funcNameToID,
		javaLikeNodeTypes{
			Import: "import_header", Class: "class_declaration", Interface: "",
			Method: "function_declaration", Field: "property_declaration", Call: "call_expression",
		})
	return b.Document()
}
