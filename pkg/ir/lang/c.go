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

// CWalker builds the structural IR for C source files at reduced depth:
// File/Import(#include)/Class(struct)/Function, plus CALLS. C has no
// methods, so every function is top-level.
type CWalker struct{ lang string }

// NewCWalker constructs a CWalker.
func NewCWalker() *CWalker { return &CWalker{lang: "c"} }

// Language identifies this walker to the registry.
func (w *CWalker) Language() string { return w.lang }

// Walk descends the C syntax tree at reduced structural depth.
func (w *CWalker) Walk(wc WalkContext) ir.IRDocument {
	return walkCFamily(wc, "c")
}

func walkCFamily(wc WalkContext, language string) ir.IRDocument {
	b := ir.NewBuilder(wc.RepoID, wc.SnapshotID, wc.FilePath)
	modulePath := ir.ModulePathFromFile(wc.FilePath, "", wc.SrcRoots)

	fileNode := ir.Node{
		Kind: ir.KindFile, Name: wc.FilePath, FQN: modulePath, FilePath: wc.FilePath,
		Span: toSpan(wc.Root), Language: language, ModulePath: modulePath,
		ContentHash: ir.ContentHash(wc.Source),
	}
	fileID := b.AddNode(fileNode, wc.RepoID)
	if errs := countErrors(wc.Root); errs > 0 {
		b.Diagnostic(fmt.Sprintf("%d syntax error node(s) in file", errs))
	}

	scope := ir.NewScope(modulePath)
	funcNameToID := make(map[string]string)
	walkCLevel(b, wc.Root, wc.Source, wc.FilePath, language, fileID, scope, funcNameToID)
	return b.Document()
}

func walkCLevel(b *ir.Builder, node *sitter.Node, source []byte, filePath, language, parentID string, scope *ir.Scope, funcNameToID map[string]string) {
	if node == nil {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "preproc_include":
			addCInclude(b, child, source, filePath, language, parentID)
		case "struct_specifier":
			addCStruct(b, child, source, filePath, language, parentID, scope)
		case "class_specifier": // C++ only; CppWalker reuses this function
			addCppClass(b, child, source, filePath, language, parentID, scope, funcNameToID)
		case "function_definition":
			addCFunction(b, child, source, filePath, language, parentID, scope, funcNameToID, "")
		case "linkage_specification", "namespace_definition":
			if body := child.ChildByFieldName("body"); body != nil {
				walkCLevel(b, body, source, filePath, language, parentID, scope, funcNameToID)
			}
		}
	}
}

func addCInclude(b *ir.Builder, node *sitter.Node, source []byte, filePath, language, parentID string) {
	text := nodeText(source, node)
	span := toSpan(node)
	n := ir.Node{Kind: ir.KindImport, Name: text, FQN: text, FilePath: filePath, Span: span, Language: language, ParentID: parentID}
	id := b.AddNode(n, b.RepoID())
	b.AddContainsEdge(parentID, id, span)
	b.AddEdge(ir.EdgeImports, parentID, "", span, text, nil)
}

func addCStruct(b *ir.Builder, node *sitter.Node, source []byte, filePath, language, parentID string, scope *ir.Scope) {
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
	id := b.AddNode(n, b.RepoID())
	b.AddContainsEdge(parentID, id, span)

	scope.Push(name, id)
	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			if member := body.Child(i); member.Type() == "field_declaration" {
				addJavaLikeField(b, member, source, filePath, language, id, scope)
			}
		}
	}
	scope.Pop()
}

func addCFunction(b *ir.Builder, node *sitter.Node, source []byte, filePath, language, parentID string, scope *ir.Scope, funcNameToID map[string]string, ownerPrefix string) {
	declarator := node.ChildByFieldName("declarator")
	name := cFunctionName(declarator, source)
	if name == "" {
		return
	}
	fullName := ownerPrefix + name
	kind := ir.KindFunction
	if ownerPrefix != "" {
		kind = ir.KindMethod
	}
	span := toSpan(node)
	var bodySpan *ir.Span
	if body := node.ChildByFieldName("body"); body != nil {
		s := toSpan(body)
		bodySpan = &s
	}
	n := ir.Node{
		Kind: kind, Name: fullName, FQN: scope.FQN(fullName), FilePath: filePath, Span: span, BodySpan: bodySpan,
		Language: language, ModulePath: scope.ModulePath, ParentID: parentID,
		ContentHash: ir.ContentHash([]byte(nodeText(source, node))),
	}
	funcID := b.AddNode(n, b.RepoID())
	b.AddContainsEdge(parentID, funcID, span)
	funcNameToID[fullName] = funcID

	sig := ir.SignatureEntity{OwnerNodeID: funcID, Name: fullName, Raw: nodeText(source, node), IsStatic: ownerPrefix == ""}
	sigID := b.AddSignature(sig)
	b.SetSignatureID(funcID, sigID)

	if body := node.ChildByFieldName("body"); body != nil {
		walkCCalls(b, body, source, funcID, funcNameToID)
	}
}

func cFunctionName(declarator *sitter.Node, source []byte) string {
	for declarator != nil {
		switch declarator.Type() {
		case "function_declarator":
			if inner := declarator.ChildByFieldName("declarator"); inner != nil {
				return cFunctionName(inner, source)
			}
		case "identifier", "field_identifier":
			return nodeText(source, declarator)
		case "pointer_declarator":
			declarator = declarator.ChildByFieldName("declarator")
			continue
		}
		return ""
	}
	return ""
}

func walkCCalls(b *ir.Builder, node *sitter.Node, source []byte, ownerID string, funcNameToID map[string]string) {
	if node == nil {
		return
	}
	if node.Type() == "call_expression" {
		if fn := node.ChildByFieldName("function"); fn != nil {
			callee := nodeText(source, fn)
			span := toSpan(node)
			attrs := callArgAttrs(source, node.ChildByFieldName("arguments"))
			if targetID, ok := funcNameToID[callee]; ok {
				b.AddEdge(ir.EdgeCalls, ownerID, targetID, span, "", attrs)
			} else if callee != "" {
				b.AddEdge(ir.EdgeCalls, ownerID, "", span, callee, attrs)
			}
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		walkCCalls(b, node.Child(i), source, ownerID, funcNameToID)
	}
}
