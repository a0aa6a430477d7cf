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

// RustWalker builds the structural IR for Rust source files at reduced
// depth: File/Import(use)/Class(struct|enum)/Function, plus CALLS. impl
// blocks attach their function_item children to the struct they name,
// rather than being modeled as a separate node kind.
type RustWalker struct{}

// NewRustWalker constructs a RustWalker.
func NewRustWalker() *RustWalker { return &RustWalker{} }

// Language identifies this walker to the registry.
func (w *RustWalker) Language() string { return "rust" }

type rustCtx struct {
	b            *ir.Builder
	source       []byte
	filePath     string
	scope        *ir.Scope
	typeIDByName map[string]string
	funcNameToID map[string]string
}

// Walk descends the Rust syntax tree at reduced structural depth.
func (w *RustWalker) Walk(wc WalkContext) ir.IRDocument {
	b := ir.NewBuilder(wc.RepoID, wc.SnapshotID, wc.FilePath)
	modulePath := ir.ModulePathFromFile(wc.FilePath, "", wc.SrcRoots)

	fileNode := ir.Node{
		Kind: ir.KindFile, Name: wc.FilePath, FQN: modulePath, FilePath: wc.FilePath,
		Span: toSpan(wc.Root), Language: "rust", ModulePath: modulePath,
		ContentHash: ir.ContentHash(wc.Source),
	}
	fileID := b.AddNode(fileNode, wc.RepoID)
	if errs := countErrors(wc.Root); errs > 0 {
		b.Diagnostic(fmt.Sprintf("%d syntax error node(s) in file", errs))
	}

	rc := &rustCtx{
		b: b, source: wc.Source, filePath: wc.FilePath, scope: ir.NewScope(modulePath),
		typeIDByName: make(map[string]string), funcNameToID: make(map[string]string),
	}
	// Two passes: structs/enums/traits first so impl_item can attach its
	// methods to an already-known owner, then top-level fn and impl blocks.
	rc.walkTypes(wc.Root, fileID)
	rc.walkTop(wc.Root, fileID)
	return b.Document()
}

func (rc *rustCtx) walkTypes(node *sitter.Node, parentID string) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "struct_item", "enum_item":
			rc.addType(child, parentID, ir.KindClass)
		case "trait_item":
			rc.addType(child, parentID, ir.KindInterface)
		case "mod_item":
			if body := child.ChildByFieldName("body"); body != nil {
				rc.walkTypes(body, parentID)
			}
		}
	}
}

func (rc *rustCtx) addType(node *sitter.Node, parentID string, kind ir.NodeKind) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(rc.source, nameNode)
	span := toSpan(node)
	n := ir.Node{
		Kind: kind, Name: name, FQN: rc.scope.FQN(name), FilePath: rc.filePath, Span: span,
		Language: "rust", ModulePath: rc.scope.ModulePath, ParentID: parentID,
		ContentHash: ir.ContentHash([]byte(nodeText(rc.source, node))),
	}
	id := rc.b.AddNode(n, rc.b.RepoID())
	rc.b.AddContainsEdge(parentID, id, span)
	rc.typeIDByName[name] = id

	rc.scope.Push(name, id)
	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			if member := body.Child(i); member.Type() == "field_declaration" {
				addJavaLikeField(rc.b, member, rc.source, rc.filePath, "rust", id, rc.scope)
			}
		}
	}
	rc.scope.Pop()
}

func (rc *rustCtx) walkTop(node *sitter.Node, parentID string) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "use_declaration":
			rc.addUse(child, parentID)
		case "function_item":
			rc.addFunction(child, parentID, "")
		case "impl_item":
			rc.walkImpl(child)
		case "mod_item":
			if body := child.ChildByFieldName("body"); body != nil {
				rc.walkTop(body, parentID)
			}
		}
	}
}

func (rc *rustCtx) addUse(node *sitter.Node, parentID string) {
	text := nodeText(rc.source, node)
	span := toSpan(node)
	n := ir.Node{Kind: ir.KindImport, Name: text, FQN: text, FilePath: rc.filePath, Span: span, Language: "rust", ParentID: parentID}
	id := rc.b.AddNode(n, rc.b.RepoID())
	rc.b.AddContainsEdge(parentID, id, span)
	rc.b.AddEdge(ir.EdgeImports, parentID, "", span, text, nil)
}

func (rc *rustCtx) walkImpl(node *sitter.Node) {
	typeNode := node.ChildByFieldName("type")
	traitNode := node.ChildByFieldName("trait")
	if typeNode == nil {
		return
	}
	typeName := nodeText(rc.source, typeNode)
	ownerID, ok := rc.typeIDByName[typeName]
	if !ok {
		return
	}
	if traitNode != nil {
		rc.b.AddEdge(ir.EdgeImplements, ownerID, "", toSpan(traitNode), nodeText(rc.source, traitNode), nil)
	}
	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := 0; i < int(body.ChildCount()); i++ {
		c := body.Child(i)
		if c.Type() == "function_item" {
			rc.addFunction(c, ownerID, typeName+".")
		}
	}
}

func (rc *rustCtx) addFunction(node *sitter.Node, parentID, namePrefix string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := namePrefix + nodeText(rc.source, nameNode)
	kind := ir.KindFunction
	if namePrefix != "" {
		kind = ir.KindMethod
	}
	span := toSpan(node)
	var bodySpan *ir.Span
	if body := node.ChildByFieldName("body"); body != nil {
		s := toSpan(body)
		bodySpan = &s
	}
	n := ir.Node{
		Kind: kind, Name: name, FQN: rc.scope.FQN(name), FilePath: rc.filePath, Span: span, BodySpan: bodySpan,
		Language: "rust", ModulePath: rc.scope.ModulePath, ParentID: parentID,
		ContentHash: ir.ContentHash([]byte(nodeText(rc.source, node))),
	}
	funcID := rc.b.AddNode(n, rc.b.RepoID())
	rc.b.AddContainsEdge(parentID, funcID, span)
	rc.funcNameToID[name] = funcID

	sig := ir.SignatureEntity{OwnerNodeID: funcID, Name: name, Raw: nodeText(rc.source, node), IsStatic: kind == ir.KindFunction}
	sigID := rc.b.AddSignature(sig)
	rc.b.SetSignatureID(funcID, sigID)

	if body := node.ChildByFieldName("body"); body != nil {
		rc.walkCalls(body, funcID)
	}
}

func (rc *rustCtx) walkCalls(node *sitter.Node, ownerID string) {
	if node == nil {
		return
	}
	if node.Type() == "call_expression" {
		if fn := node.ChildByFieldName("function"); fn != nil {
			callee := nodeText(rc.source, fn)
			span := toSpan(node)
			attrs := callArgAttrs(rc.source, node.ChildByFieldName("arguments"))
			if targetID, ok := rc.funcNameToID[callee]; ok {
				rc.b.AddEdge(ir.EdgeCalls, ownerID, targetID, span, "", attrs)
			} else {
				rc.b.AddEdge(ir.EdgeCalls, ownerID, "", span, callee, attrs)
			}
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		rc.walkCalls(node.Child(i), ownerID)
	}
}
