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
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/semindex/pkg/ir"
)

// JavaScriptWalker builds the structural IR for JavaScript source files.
// TypeScriptWalker embeds it and adds interface/type-alias handling, since
// the grammars share every node type JavaScriptWalker touches.
type JavaScriptWalker struct {
	lang string
}

// NewJavaScriptWalker constructs a JavaScriptWalker.
func NewJavaScriptWalker() *JavaScriptWalker { return &JavaScriptWalker{lang: "javascript"} }

// Language identifies this walker to the registry.
func (w *JavaScriptWalker) Language() string { return w.lang }

type jsCtx struct {
	b            *ir.Builder
	source       []byte
	filePath     string
	lang         string
	scope        *ir.Scope
	funcNameToID map[string]string
	anonCounter  int
}

// Walk descends the JS/TS syntax tree.
func (w *JavaScriptWalker) Walk(wc WalkContext) ir.IRDocument {
	return walkJSFamily(wc, w.lang)
}

func walkJSFamily(wc WalkContext, language string) ir.IRDocument {
	b := ir.NewBuilder(wc.RepoID, wc.SnapshotID, wc.FilePath)
	modulePath := ir.ModulePathFromFile(wc.FilePath, "", wc.SrcRoots)

	fileNode := ir.Node{
		Kind:        ir.KindFile,
		Name:        wc.FilePath,
		FQN:         modulePath,
		FilePath:    wc.FilePath,
		Span:        toSpan(wc.Root),
		Language:    language,
		ModulePath:  modulePath,
		ContentHash: ir.ContentHash(wc.Source),
		IsTestFile:  wc.IsTestFile || strings.Contains(pathBase(wc.FilePath), ".test.") || strings.Contains(pathBase(wc.FilePath), ".spec."),
	}
	fileID := b.AddNode(fileNode, wc.RepoID)

	if errs := countErrors(wc.Root); errs > 0 {
		b.Diagnostic(fmt.Sprintf("%d syntax error node(s) in file", errs))
	}

	jc := &jsCtx{
		b:            b,
		source:       wc.Source,
		filePath:     wc.FilePath,
		lang:         language,
		scope:        ir.NewScope(modulePath),
		funcNameToID: make(map[string]string),
	}
	jc.walkTop(wc.Root, fileID)
	return b.Document()
}

func (jc *jsCtx) walkTop(node *sitter.Node, parentID string) {
	if node == nil {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import_statement":
			jc.addImport(child, parentID)
		case "class_declaration":
			jc.walkClass(child, parentID)
		case "function_declaration", "generator_function_declaration":
			jc.walkFunctionDecl(child, parentID)
		case "interface_declaration":
			jc.walkInterface(child, parentID)
		case "type_alias_declaration":
			jc.walkTypeAlias(child, parentID)
		case "lexical_declaration", "variable_declaration":
			jc.walkVarDeclarators(child, parentID, nil)
		case "export_statement":
			jc.walkTop(child, parentID)
		default:
			jc.walkTop(child, parentID)
		}
	}
}

func (jc *jsCtx) addImport(node *sitter.Node, parentID string) {
	source := ""
	if s := node.ChildByFieldName("source"); s != nil {
		source = strings.Trim(nodeText(jc.source, s), `"'`)
	}
	span := toSpan(node)
	n := ir.Node{
		Kind:     ir.KindImport,
		Name:     source,
		FQN:      source,
		FilePath: jc.filePath,
		Span:     span,
		Language: jc.lang,
		ParentID: parentID,
	}
	id := jc.b.AddNode(n, jc.b.RepoID())
	jc.b.AddContainsEdge(parentID, id, span)
	jc.b.AddEdge(ir.EdgeImports, parentID, "", span, source, nil)
}

func (jc *jsCtx) walkClass(node *sitter.Node, parentID string) {
	nameNode := node.ChildByFieldName("name")
	name := ""
	if nameNode != nil {
		name = nodeText(jc.source, nameNode)
	} else {
		jc.anonCounter++
		name = fmt.Sprintf("$anon_class_%d", jc.anonCounter)
	}
	span := toSpan(node)
	n := ir.Node{
		Kind:        ir.KindClass,
		Name:        name,
		FQN:         jc.scope.FQN(name),
		FilePath:    jc.filePath,
		Span:        span,
		Language:    jc.lang,
		ModulePath:  jc.scope.ModulePath,
		ParentID:    parentID,
		ContentHash: ir.ContentHash([]byte(nodeText(jc.source, node))),
	}
	classID := jc.b.AddNode(n, jc.b.RepoID())
	jc.b.AddContainsEdge(parentID, classID, span)

	if heritage := node.ChildByFieldName("heritage"); heritage != nil {
		jc.walkHeritage(heritage, classID)
	}
	// class_heritage may not carry a field name on all grammar versions;
	// fall back to scanning children for extends/implements clauses.
	for i := 0; i < int(node.ChildCount()); i++ {
		c := node.Child(i)
		if c.Type() == "class_heritage" {
			jc.walkHeritage(c, classID)
		}
	}

	jc.scope.Push(name, classID)
	if body := node.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.ChildCount()); i++ {
			member := body.Child(i)
			if member.Type() == "method_definition" {
				jc.walkMethod(member, classID)
			}
		}
	}
	jc.scope.Pop()
}

func (jc *jsCtx) walkHeritage(heritage *sitter.Node, classID string) {
	for i := 0; i < int(heritage.ChildCount()); i++ {
		c := heritage.Child(i)
		switch c.Type() {
		case "extends_clause":
			for j := 0; j < int(c.ChildCount()); j++ {
				v := c.Child(j)
				if v.Type() == "identifier" {
					jc.b.AddEdge(ir.EdgeInherits, classID, "", toSpan(v), nodeText(jc.source, v), nil)
				}
			}
		case "implements_clause":
			for j := 0; j < int(c.ChildCount()); j++ {
				v := c.Child(j)
				if v.Type() == "type_identifier" {
					jc.b.AddEdge(ir.EdgeImplements, classID, "", toSpan(v), nodeText(jc.source, v), nil)
				}
			}
		}
	}
}

func (jc *jsCtx) walkInterface(node *sitter.Node, parentID string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(jc.source, nameNode)
	span := toSpan(node)
	n := ir.Node{
		Kind:        ir.KindInterface,
		Name:        name,
		FQN:         jc.scope.FQN(name),
		FilePath:    jc.filePath,
		Span:        span,
		Language:    jc.lang,
		ModulePath:  jc.scope.ModulePath,
		ParentID:    parentID,
		ContentHash: ir.ContentHash([]byte(nodeText(jc.source, node))),
	}
	ifaceID := jc.b.AddNode(n, jc.b.RepoID())
	jc.b.AddContainsEdge(parentID, ifaceID, span)
	if ext := node.ChildByFieldName("extends_clause"); ext != nil {
		jc.walkHeritage(ext, ifaceID)
	}
}

func (jc *jsCtx) walkTypeAlias(node *sitter.Node, parentID string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(jc.source, nameNode)
	span := toSpan(node)
	n := ir.Node{
		Kind:     ir.KindClass,
		Name:     name,
		FQN:      jc.scope.FQN(name),
		FilePath: jc.filePath,
		Span:     span,
		Language: jc.lang,
		ParentID: parentID,
	}
	id := jc.b.AddNode(n, jc.b.RepoID())
	jc.b.AddContainsEdge(parentID, id, span)
}

func (jc *jsCtx) walkVarDeclarators(node *sitter.Node, parentID string, locals map[string]string) {
	for i := 0; i < int(node.ChildCount()); i++ {
		decl := node.Child(i)
		if decl.Type() != "variable_declarator" {
			continue
		}
		nameNode := decl.ChildByFieldName("name")
		valueNode := decl.ChildByFieldName("value")
		if nameNode == nil {
			continue
		}
		if valueNode != nil && (valueNode.Type() == "arrow_function" || valueNode.Type() == "function_expression" || valueNode.Type() == "function") {
			jc.walkNamedFunctionLike(valueNode, parentID, nodeText(jc.source, nameNode))
			continue
		}
		name := nodeText(jc.source, nameNode)
		span := toSpan(decl)
		n := ir.Node{
			Kind:     ir.KindVariable,
			Name:     name,
			FQN:      jc.scope.FQN(name),
			FilePath: jc.filePath,
			Span:     span,
			Language: jc.lang,
			ParentID: parentID,
		}
		id := jc.b.AddNode(n, jc.b.RepoID())
		jc.b.AddContainsEdge(parentID, id, span)
		if locals != nil {
			locals[name] = id
		}
	}
}

func (jc *jsCtx) walkFunctionDecl(node *sitter.Node, parentID string) {
	nameNode := node.ChildByFieldName("name")
	name := ""
	if nameNode != nil {
		name = nodeText(jc.source, nameNode)
	}
	jc.emitFunction(node, parentID, name, ir.KindFunction, false)
}

func (jc *jsCtx) walkNamedFunctionLike(node *sitter.Node, parentID, name string) {
	jc.emitFunction(node, parentID, name, ir.KindFunction, false)
}

func (jc *jsCtx) walkMethod(node *sitter.Node, classID string) {
	nameNode := node.ChildByFieldName("name")
	name := ""
	if nameNode != nil {
		name = nodeText(jc.source, nameNode)
	}
	isStatic := false
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "static" {
			isStatic = true
		}
	}
	jc.emitFunction(node, classID, name, ir.KindMethod, isStatic)
}

func (jc *jsCtx) emitFunction(node *sitter.Node, parentID, name string, kind ir.NodeKind, isStatic bool) {
	isAsync := false
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "async" {
			isAsync = true
		}
	}
	if name == "" {
		jc.anonCounter++
		span0 := toSpan(node)
		name = fmt.Sprintf("λ%d:%d", span0.Start.Line, span0.Start.Col)
		kind = ir.KindLambda
	}

	span := toSpan(node)
	fqn := jc.scope.FQN(name)
	if kind == ir.KindLambda {
		fqn = jc.scope.LambdaFQN(span.Start.Line, span.Start.Col)
	}
	var bodySpan *ir.Span
	if body := node.ChildByFieldName("body"); body != nil {
		s := toSpan(body)
		bodySpan = &s
	}

	n := ir.Node{
		Kind:        kind,
		Name:        name,
		FQN:         fqn,
		FilePath:    jc.filePath,
		Span:        span,
		BodySpan:    bodySpan,
		Language:    jc.lang,
		ModulePath:  jc.scope.ModulePath,
		ParentID:    parentID,
		ContentHash: ir.ContentHash([]byte(nodeText(jc.source, node))),
		ControlFlow: jsControlFlowSummary(node, jc.source),
	}
	funcID := jc.b.AddNode(n, jc.b.RepoID())
	jc.b.AddContainsEdge(parentID, funcID, span)
	if kind != ir.KindLambda {
		jc.funcNameToID[name] = funcID
	}

	locals := make(map[string]string)
	paramTypeIDs := jc.walkParameters(node, funcID, locals)
	returnTypeID := ""
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		retText := nodeText(jc.source, ret)
		if retText != "" {
			returnTypeID = jc.b.InternType(retText, "", ir.FlavorUser, false, nil)
		}
	}

	sig := ir.SignatureEntity{
		OwnerNodeID:      funcID,
		Name:             name,
		Raw:              jsFormatSignature(node, jc.source, name),
		ParameterTypeIDs: paramTypeIDs,
		ReturnTypeID:     returnTypeID,
		Visibility:       "public",
		IsAsync:          isAsync,
		IsStatic:         isStatic,
	}
	sigID := jc.b.AddSignature(sig)
	jc.b.SetSignatureID(funcID, sigID)

	jc.scope.Push(name, funcID)
	if body := node.ChildByFieldName("body"); body != nil {
		jc.walkStatements(body, funcID, locals)
		jc.walkCalls(body, funcID, locals)
		jc.walkThrows(body, funcID)
	}
	jc.scope.Pop()
}

// walkThrows records a THROWS edge per throw statement ("raise/throw ->
// THROWS", spec §4.2 edge-kind table), named by the thrown constructor
// when the statement is `throw new E(...)` or `throw E`.
func (jc *jsCtx) walkThrows(node *sitter.Node, ownerID string) {
	if node == nil {
		return
	}
	if node.Type() == "throw_statement" {
		name := ""
		for i := 0; i < int(node.ChildCount()); i++ {
			c := node.Child(i)
			switch c.Type() {
			case "identifier":
				name = nodeText(jc.source, c)
			case "new_expression":
				if ctor := c.ChildByFieldName("constructor"); ctor != nil {
					name = nodeText(jc.source, ctor)
				}
			}
		}
		jc.b.AddEdge(ir.EdgeThrows, ownerID, "", toSpan(node), name, nil)
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		jc.walkThrows(node.Child(i), ownerID)
	}
}

func jsControlFlowSummary(node *sitter.Node, source []byte) *ir.ControlFlowSummary {
	return summarizeControlFlow(node, source,
		map[string]bool{"if_statement": true, "switch_statement": true, "ternary_expression": true},
		map[string]bool{"for_statement": true, "for_in_statement": true, "while_statement": true, "do_statement": true},
		map[string]bool{"try_statement": true})
}

func jsFormatSignature(node *sitter.Node, source []byte, name string) string {
	var b strings.Builder
	b.WriteString("function ")
	b.WriteString(name)
	if params := node.ChildByFieldName("parameters"); params != nil {
		b.WriteString(nodeText(source, params))
	}
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		b.WriteString(": ")
		b.WriteString(nodeText(source, ret))
	}
	return b.String()
}

func (jc *jsCtx) walkParameters(fnNode *sitter.Node, funcID string, locals map[string]string) []string {
	params := fnNode.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	var typeIDs []string
	for i := 0; i < int(params.ChildCount()); i++ {
		p := params.Child(i)
		var idNode *sitter.Node
		var typeText string
		switch p.Type() {
		case "identifier":
			idNode = p
		case "required_parameter", "optional_parameter":
			if pat := p.ChildByFieldName("pattern"); pat != nil {
				idNode = pat
			}
			if t := p.ChildByFieldName("type"); t != nil {
				typeText = nodeText(jc.source, t)
			}
		default:
			continue
		}
		if idNode == nil {
			continue
		}
		name := nodeText(jc.source, idNode)
		span := toSpan(p)
		var typeID string
		if typeText != "" {
			typeID = jc.b.InternType(typeText, "", ir.FlavorUser, false, nil)
		}
		n := ir.Node{
			Kind:           ir.KindParameter,
			Name:           name,
			FQN:            jc.scope.FQN(name),
			FilePath:       jc.filePath,
			Span:           span,
			Language:       jc.lang,
			ParentID:       funcID,
			DeclaredTypeID: typeID,
		}
		paramID := jc.b.AddNode(n, jc.b.RepoID())
		jc.b.AddContainsEdge(funcID, paramID, span)
		locals[name] = paramID
		typeIDs = append(typeIDs, typeID)
	}
	return typeIDs
}

func (jc *jsCtx) walkStatements(node *sitter.Node, parentID string, locals map[string]string) {
	if node == nil {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "if_statement":
			jc.emitControl(child, parentID, ir.KindConditional, locals)
		case "for_statement", "for_in_statement", "while_statement", "do_statement":
			jc.emitControl(child, parentID, ir.KindLoop, locals)
		case "try_statement":
			jc.emitControl(child, parentID, ir.KindTryCatch, locals)
		case "statement_block":
			jc.walkStatements(child, parentID, locals)
		case "function_declaration":
			jc.walkFunctionDecl(child, parentID)
		case "class_declaration":
			jc.walkClass(child, parentID)
		case "lexical_declaration", "variable_declaration":
			jc.walkVarDeclarators(child, parentID, locals)
		default:
			jc.walkNestedFunctionLikeExpr(child, parentID)
		}
	}
}

func (jc *jsCtx) emitControl(node *sitter.Node, parentID string, kind ir.NodeKind, locals map[string]string) {
	span := toSpan(node)
	n := ir.Node{Kind: kind, FilePath: jc.filePath, Span: span, Language: jc.lang, ParentID: parentID}
	id := jc.b.AddNode(n, jc.b.RepoID())
	jc.b.AddContainsEdge(parentID, id, span)
	for _, field := range []string{"consequence", "alternative", "body"} {
		if b := node.ChildByFieldName(field); b != nil {
			jc.walkStatements(b, id, locals)
		}
	}
}

// walkNestedFunctionLikeExpr finds arrow/function expressions nested in
// expression statements (callback arguments etc.) not already captured
// by a variable_declarator, and emits them as lambdas.
func (jc *jsCtx) walkNestedFunctionLikeExpr(node *sitter.Node, parentID string) {
	if node == nil {
		return
	}
	if node.Type() == "arrow_function" || node.Type() == "function_expression" {
		jc.emitFunction(node, parentID, "", ir.KindLambda, false)
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		jc.walkNestedFunctionLikeExpr(node.Child(i), parentID)
	}
}

// walkCalls descends a function body recording CALLS edges, WRITES edges
// for assignment/declaration targets, and READS edges for every other
// identifier reference (spec §4.2 edge-kind table). locals maps a name to
// the Parameter/Variable Node id currently bound to it within this
// function; variable_declarator bindings are registered ahead of time by
// walkStatements/walkVarDeclarators, since that structural pass runs
// before walkCalls.
func (jc *jsCtx) walkCalls(node *sitter.Node, ownerID string, locals map[string]string) {
	if node == nil {
		return
	}
	switch node.Type() {
	case "call_expression":
		if fn := node.ChildByFieldName("function"); fn != nil {
			callee, qualifier := jsCalleeName(fn, jc.source)
			span := toSpan(node)
			attrs := callArgAttrs(jc.source, node.ChildByFieldName("arguments"))
			if targetID, ok := jc.funcNameToID[callee]; ok && qualifier == "" {
				jc.b.AddEdge(ir.EdgeCalls, ownerID, targetID, span, "", attrs)
			} else {
				if qualifier != "" {
					attrs["qualifier"] = qualifier
				}
				jc.b.AddEdge(ir.EdgeCalls, ownerID, "", span, callee, attrs)
			}
		}
		if args := node.ChildByFieldName("arguments"); args != nil {
			jc.walkCalls(args, ownerID, locals)
		}
		return
	case "variable_declarator":
		jc.emitJSDeclarator(node, ownerID, locals)
		return
	case "assignment_expression":
		jc.emitJSAssignment(node, ownerID, locals)
		return
	case "return_statement":
		jc.emitJSReturn(node, ownerID, locals)
		return
	case "identifier":
		name := nodeText(jc.source, node)
		if _, isFunc := jc.funcNameToID[name]; isFunc {
			return
		}
		span := toSpan(node)
		if targetID, ok := locals[name]; ok {
			jc.b.AddEdge(ir.EdgeReads, ownerID, targetID, span, "", nil)
		} else {
			jc.b.AddEdge(ir.EdgeReads, ownerID, "", span, name, nil)
		}
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		jc.walkCalls(node.Child(i), ownerID, locals)
	}
}

// emitJSDeclarator records the WRITES edge for a `let`/`const`/`var`
// binding's initializer against the Variable Node walkVarDeclarators
// already created, then walks the initializer for its own CALLS/READS
// edges.
func (jc *jsCtx) emitJSDeclarator(node *sitter.Node, ownerID string, locals map[string]string) {
	nameNode := node.ChildByFieldName("name")
	valueNode := node.ChildByFieldName("value")
	if nameNode == nil || nameNode.Type() != "identifier" || valueNode == nil {
		if valueNode != nil {
			jc.walkCalls(valueNode, ownerID, locals)
		}
		return
	}
	if valueNode.Type() == "arrow_function" || valueNode.Type() == "function_expression" || valueNode.Type() == "function" {
		return
	}
	name := nodeText(jc.source, nameNode)
	targetID, ok := locals[name]
	if !ok {
		return
	}
	span := toSpan(node)
	attrs := map[string]string{"decl": "true"}
	if valueNode.Type() == "identifier" {
		attrs["rhs_kind"] = "identifier"
		attrs["rhs_name"] = nodeText(jc.source, valueNode)
	} else if id := firstIdentifierIn(jc.source, valueNode); id != "" {
		attrs["rhs_kind"] = "expr"
		attrs["rhs_name"] = id
	}
	jc.b.AddEdge(ir.EdgeWrites, ownerID, targetID, span, "", attrs)
	jc.walkCalls(valueNode, ownerID, locals)
}

// emitJSAssignment handles `a = b`/`a = f(b)`/augmented assignment, reusing
// an existing local or, for a name with no local binding, leaving the
// WRITES edge unresolved so C4 can bind it to a module-level name.
func (jc *jsCtx) emitJSAssignment(node *sitter.Node, ownerID string, locals map[string]string) {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	if left == nil {
		return
	}
	if left.Type() == "identifier" {
		name := nodeText(jc.source, left)
		span := toSpan(left)
		attrs := map[string]string{}
		if right != nil {
			if right.Type() == "identifier" {
				attrs["rhs_kind"] = "identifier"
				attrs["rhs_name"] = nodeText(jc.source, right)
			} else if id := firstIdentifierIn(jc.source, right); id != "" {
				attrs["rhs_kind"] = "expr"
				attrs["rhs_name"] = id
			}
		}
		if targetID, ok := locals[name]; ok {
			jc.b.AddEdge(ir.EdgeWrites, ownerID, targetID, span, "", attrs)
		} else {
			jc.b.AddEdge(ir.EdgeWrites, ownerID, "", span, name, attrs)
		}
	}
	if right != nil {
		jc.walkCalls(right, ownerID, locals)
	}
}

// emitJSReturn records a READS edge tagged `returns=true` for a bare
// `return a` so BuildDFG can add the `return_value` DataFlowEdge; any
// other returned expression is walked normally for its own CALLS/READS
// edges.
func (jc *jsCtx) emitJSReturn(node *sitter.Node, ownerID string, locals map[string]string) {
	for i := 0; i < int(node.ChildCount()); i++ {
		c := node.Child(i)
		if c.Type() != "identifier" {
			jc.walkCalls(c, ownerID, locals)
			continue
		}
		name := nodeText(jc.source, c)
		span := toSpan(c)
		if targetID, ok := locals[name]; ok {
			jc.b.AddEdge(ir.EdgeReads, ownerID, targetID, span, "", map[string]string{"returns": "true"})
		} else {
			jc.b.AddEdge(ir.EdgeReads, ownerID, "", span, name, map[string]string{"returns": "true"})
		}
	}
}

func jsCalleeName(fn *sitter.Node, source []byte) (name, qualifier string) {
	switch fn.Type() {
	case "identifier":
		return nodeText(source, fn), ""
	case "member_expression":
		obj := fn.ChildByFieldName("object")
		prop := fn.ChildByFieldName("property")
		if prop == nil {
			return "", ""
		}
		q := ""
		if obj != nil {
			q = nodeText(source, obj)
		}
		return nodeText(source, prop), q
	}
	return "", ""
}
