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

// javaLikeNodeTypes names the grammar node types a reduced-depth walker
// dispatches on. Java and Kotlin each supply their own table to
// walkJavaLike, which shares one traversal shape (imports, then
// declarations, then one level of member recursion, then calls) across
// both grammars. Rust (rust.go) and C/C++ (walkCFamily in c.go) have
// traversals of their own.
type javaLikeNodeTypes struct {
	Import    string
	Class     string
	Interface string
	Method    string
	Field     string
	Call      string
}

// walkJavaLike implements the shared reduced-depth traversal (spec §4.2):
// File -> Import*, Class|Interface -> Method|Field*, Method -> CALLS*.
// No Conditional/Loop/TryCatch/Block nodes are emitted at this depth.
func walkJavaLike(b *ir.Builder, root *sitter.Node, source []byte, filePath, language, fileID string, scope *ir.Scope, funcNameToID map[string]string, nt javaLikeNodeTypes) {
	walkJavaLikeLevel(b, root, source, filePath, language, fileID, scope, funcNameToID, nt)
}

func walkJavaLikeLevel(b *ir.Builder, node *sitter.Node, source []byte, filePath, language, parentID string, scope *ir.Scope, funcNameToID map[string]string, nt javaLikeNodeTypes) {
	if node == nil {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case nt.Import:
			addJavaLikeImport(b, child, source, filePath, language, parentID)
		case nt.Class:
			addJavaLikeType(b, child, source, filePath, language, parentID, scope, funcNameToID, nt, ir.KindClass)
		case nt.Interface:
			addJavaLikeType(b, child, source, filePath, language, parentID, scope, funcNameToID, nt, ir.KindInterface)
		case nt.Method:
			addJavaLikeMethod(b, child, source, filePath, language, parentID, scope, funcNameToID, nt, ir.KindFunction)
		case nt.Field:
			addJavaLikeField(b, child, source, filePath, language, parentID, scope)
		default:
			walkJavaLikeLevel(b, child, source, filePath, language, parentID, scope, funcNameToID, nt)
		}
	}
}

func addJavaLikeImport(b *ir.Builder, node *sitter.Node, source []byte, filePath, language, parentID string) {
	text := nodeText(source, node)
	span := toSpan(node)
	n := ir.Node{Kind: ir.KindImport, Name: text, FQN: text, FilePath: filePath, Span: span, Language: language, ParentID: parentID}
	id := b.AddNode(n, b.RepoID())
	b.AddContainsEdge(parentID, id, span)
	b.AddEdge(ir.EdgeImports, parentID, "", span, text, nil)
}

func addJavaLikeType(b *ir.Builder, node *sitter.Node, source []byte, filePath, language, parentID string, scope *ir.Scope, funcNameToID map[string]string, nt javaLikeNodeTypes, kind ir.NodeKind) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(source, nameNode)
	span := toSpan(node)
	n := ir.Node{
		Kind: kind, Name: name, FQN: scope.FQN(name), FilePath: filePath, Span: span,
		Language: language, ModulePath: scope.ModulePath, ParentID: parentID,
		ContentHash: ir.ContentHash([]byte(nodeText(source, node))),
	}
	typeID := b.AddNode(n, b.RepoID())
	b.AddContainsEdge(parentID, typeID, span)

	if superNode := node.ChildByFieldName("superclass"); superNode != nil {
		b.AddEdge(ir.EdgeInherits, typeID, "", toSpan(superNode), nodeText(source, superNode), nil)
	}
	if ifaces := node.ChildByFieldName("interfaces"); ifaces != nil {
		for i := 0; i < int(ifaces.ChildCount()); i++ {
			c := ifaces.Child(i)
			if c.Type() == "type_identifier" {
				b.AddEdge(ir.EdgeImplements, typeID, "", toSpan(c), nodeText(source, c), nil)
			}
		}
	}

	scope.Push(name, typeID)
	if body := node.ChildByFieldName("body"); body != nil {
		walkJavaLikeLevel(b, body, source, filePath, language, typeID, scope, funcNameToID, nt)
	}
	scope.Pop()
}

func addJavaLikeMethod(b *ir.Builder, node *sitter.Node, source []byte, filePath, language, parentID string, scope *ir.Scope, funcNameToID map[string]string, nt javaLikeNodeTypes, defaultKind ir.NodeKind) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(source, nameNode)
	kind := defaultKind
	if scope.ParentID("") != "" {
		kind = ir.KindMethod
	}
	span := toSpan(node)
	var bodySpan *ir.Span
	if body := node.ChildByFieldName("body"); body != nil {
		s := toSpan(body)
		bodySpan = &s
	}
	n := ir.Node{
		Kind: kind, Name: name, FQN: scope.FQN(name), FilePath: filePath, Span: span, BodySpan: bodySpan,
		Language: language, ModulePath: scope.ModulePath, ParentID: parentID,
		ContentHash: ir.ContentHash([]byte(nodeText(source, node))),
	}
	funcID := b.AddNode(n, b.RepoID())
	b.AddContainsEdge(parentID, funcID, span)
	funcNameToID[name] = funcID

	sig := ir.SignatureEntity{OwnerNodeID: funcID, Name: name, Raw: nodeText(source, node), IsStatic: kind != ir.KindMethod}
	sigID := b.AddSignature(sig)
	b.SetSignatureID(funcID, sigID)

	if body := node.ChildByFieldName("body"); body != nil {
		walkJavaLikeCalls(b, body, source, funcID, nt.Call, funcNameToID)
	}
}

// addJavaLikeField emits one KindField Node per declarator in a field
// statement, so a multi-declarator field (`int a, b;`) produces one FQN
// per name rather than a single Node for the whole statement (spec §8
// scenario 2: an inner class's field must resolve to its own
// `Outer.Inner.value`-shaped FQN).
func addJavaLikeField(b *ir.Builder, node *sitter.Node, source []byte, filePath, language, parentID string, scope *ir.Scope) {
	for _, name := range javaLikeFieldNames(node, source) {
		span := toSpan(node)
		n := ir.Node{
			Kind: ir.KindField, Name: name, FQN: scope.FQN(name), FilePath: filePath, Span: span,
			Language: language, ModulePath: scope.ModulePath, ParentID: parentID,
		}
		id := b.AddNode(n, b.RepoID())
		b.AddContainsEdge(parentID, id, span)
	}
}

// javaLikeFieldNames extracts declared names from a field-shaped node.
// Most reduced-depth grammars tag a single name directly; Java's
// field_declaration instead holds one or more variable_declarator
// children (`int a, b;`), each with its own name field.
func javaLikeFieldNames(node *sitter.Node, source []byte) []string {
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		return []string{nodeText(source, nameNode)}
	}
	var names []string
	for i := 0; i < int(node.ChildCount()); i++ {
		c := node.Child(i)
		if c.Type() != "variable_declarator" {
			continue
		}
		if n := c.ChildByFieldName("name"); n != nil {
			names = append(names, nodeText(source, n))
		}
	}
	return names
}

func walkJavaLikeCalls(b *ir.Builder, node *sitter.Node, source []byte, ownerID, callType string, funcNameToID map[string]string) {
	if node == nil {
		return
	}
	if node.Type() == callType {
		callee := javaLikeCalleeName(node, source)
		span := toSpan(node)
		attrs := callArgAttrs(source, node.ChildByFieldName("arguments"))
		if targetID, ok := funcNameToID[callee]; ok {
			b.AddEdge(ir.EdgeCalls, ownerID, targetID, span, "", attrs)
		} else if callee != "" {
			b.AddEdge(ir.EdgeCalls, ownerID, "", span, callee, attrs)
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		walkJavaLikeCalls(b, node.Child(i), source, ownerID, callType, funcNameToID)
	}
}

func javaLikeCalleeName(node *sitter.Node, source []byte) string {
	if n := node.ChildByFieldName("name"); n != nil {
		return nodeText(source, n)
	}
	if fn := node.ChildByFieldName("function"); fn != nil {
		return nodeText(source, fn)
	}
	return ""
}
