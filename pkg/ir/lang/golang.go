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

// =============================================================================
// GO WALKER - full depth (spec §4.2: Go/Python/JS/TS get full structural
// coverage, remaining grammars get reduced depth).
// =============================================================================

// GoWalker builds the structural IR for Go source files.
type GoWalker struct{}

// NewGoWalker constructs a GoWalker.
func NewGoWalker() *GoWalker { return &GoWalker{} }

// Language identifies this walker to the registry.
func (w *GoWalker) Language() string { return "go" }

type goCtx struct {
	b          *ir.Builder
	source     []byte
	filePath   string
	scope      *ir.Scope
	fileNodeID string
	// funcNameToID resolves a same-file call by its simple name.
	funcNameToID map[string]string
	anonCounter  int
}

// Walk descends the Go syntax tree, emitting the File node first, then
// imports, then package-level declarations depth-first.
func (w *GoWalker) Walk(wc WalkContext) ir.IRDocument {
	b := ir.NewBuilder(wc.RepoID, wc.SnapshotID, wc.FilePath)

	pkgName := goPackageName(wc.Root, wc.Source)
	modulePath := ir.ModulePathFromFile(wc.FilePath, pkgName, wc.SrcRoots)

	fileSpan := toSpan(wc.Root)
	fileNode := ir.Node{
		Kind:        ir.KindFile,
		Name:        wc.FilePath,
		FQN:         modulePath,
		FilePath:    wc.FilePath,
		Span:        fileSpan,
		Language:    "go",
		ModulePath:  modulePath,
		ContentHash: ir.ContentHash(wc.Source),
		IsTestFile:  wc.IsTestFile || strings.HasSuffix(wc.FilePath, "_test.go"),
	}
	fileID := b.AddNode(fileNode, wc.RepoID)

	if errs := countErrors(wc.Root); errs > 0 {
		b.Diagnostic(fmt.Sprintf("%d syntax error node(s) in file", errs))
	}

	gc := &goCtx{
		b:            b,
		source:       wc.Source,
		filePath:     wc.FilePath,
		scope:        ir.NewScope(modulePath),
		fileNodeID:   fileID,
		funcNameToID: make(map[string]string),
	}

	gc.walkImports(wc.Root, fileID)
	gc.walkTopLevel(wc.Root, fileID)

	return b.Document()
}

func goPackageName(root *sitter.Node, source []byte) string {
	if root == nil {
		return ""
	}
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child.Type() == "package_clause" {
			if id := child.ChildByFieldName("name"); id != nil {
				return nodeText(source, id)
			}
			for j := 0; j < int(child.NamedChildCount()); j++ {
				if id := child.NamedChild(j); id.Type() == "package_identifier" {
					return nodeText(source, id)
				}
			}
		}
	}
	return ""
}

func (gc *goCtx) walkImports(root *sitter.Node, parentID string) {
	if root == nil {
		return
	}
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child.Type() != "import_declaration" {
			continue
		}
		gc.collectImportSpecs(child, parentID)
	}
}

func (gc *goCtx) collectImportSpecs(node *sitter.Node, parentID string) {
	for i := 0; i < int(node.ChildCount()); i++ {
		c := node.Child(i)
		switch c.Type() {
		case "import_spec":
			gc.addImportSpec(c, parentID)
		case "import_spec_list":
			gc.collectImportSpecs(c, parentID)
		}
	}
}

func (gc *goCtx) addImportSpec(spec *sitter.Node, parentID string) {
	pathNode := spec.ChildByFieldName("path")
	if pathNode == nil {
		return
	}
	importPath := strings.Trim(nodeText(gc.source, pathNode), `"`)
	alias := ""
	if nameNode := spec.ChildByFieldName("name"); nameNode != nil {
		alias = nodeText(gc.source, nameNode)
	}
	span := toSpan(spec)
	n := ir.Node{
		Kind:     ir.KindImport,
		Name:     importPath,
		FQN:      importPath,
		FilePath: gc.filePath,
		Span:     span,
		Language: "go",
		ParentID: parentID,
	}
	id := gc.b.AddNode(n, gc.b.RepoID())
	gc.b.AddContainsEdge(parentID, id, span)
	attrs := map[string]string{"import_path": importPath}
	if alias != "" {
		attrs["alias"] = alias
	}
	gc.b.AddEdge(ir.EdgeImports, parentID, "", span, importPath, attrs)
}

func (gc *goCtx) walkTopLevel(node *sitter.Node, parentID string) {
	if node == nil {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "function_declaration":
			gc.walkFunction(child, parentID, false)
		case "method_declaration":
			gc.walkFunction(child, parentID, true)
		case "type_declaration":
			gc.walkTypeDeclaration(child, parentID)
		case "var_declaration", "const_declaration":
			gc.walkPackageVars(child, parentID)
		default:
			gc.walkTopLevel(child, parentID)
		}
	}
}

func (gc *goCtx) walkTypeDeclaration(node *sitter.Node, parentID string) {
	for i := 0; i < int(node.ChildCount()); i++ {
		spec := node.Child(i)
		if spec.Type() != "type_spec" {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := nodeText(gc.source, nameNode)
		typeNode := spec.ChildByFieldName("type")
		kind := ir.KindClass
		if typeNode != nil && typeNode.Type() == "interface_type" {
			kind = ir.KindInterface
		}

		span := toSpan(spec)
		fqn := gc.scope.FQN(name)
		n := ir.Node{
			Kind:        kind,
			Name:        name,
			FQN:         fqn,
			FilePath:    gc.filePath,
			Span:        span,
			Language:    "go",
			ModulePath:  gc.scope.ModulePath,
			ParentID:    parentID,
			ContentHash: ir.ContentHash([]byte(nodeText(gc.source, spec))),
		}
		typeID := gc.b.AddNode(n, gc.b.RepoID())
		gc.b.AddContainsEdge(parentID, typeID, span)

		if typeNode != nil && typeNode.Type() == "struct_type" {
			gc.walkStructFields(typeNode, typeID)
		}
		if typeNode != nil && typeNode.Type() == "interface_type" {
			gc.walkInterfaceEmbeds(typeNode, typeID, span)
		}
	}
}

func (gc *goCtx) walkStructFields(structType *sitter.Node, ownerID string) {
	fieldList := structType.ChildByFieldName("body")
	if fieldList == nil {
		return
	}
	for i := 0; i < int(fieldList.ChildCount()); i++ {
		decl := fieldList.Child(i)
		if decl.Type() != "field_declaration" {
			continue
		}
		typeNode := decl.ChildByFieldName("type")
		var typeText string
		if typeNode != nil {
			typeText = nodeText(gc.source, typeNode)
		}
		embedded := decl.ChildByFieldName("name") == nil
		if embedded && typeNode != nil {
			// anonymous embedded field: struct gains an implicit INHERITS edge,
			// resolved cross-file in the graph stage.
			span := toSpan(decl)
			gc.b.AddEdge(ir.EdgeInherits, ownerID, "", span, strings.TrimPrefix(typeText, "*"), nil)
			continue
		}
		names := gc.fieldNames(decl)
		for _, nameNode := range names {
			name := nodeText(gc.source, nameNode)
			span := toSpan(decl)
			typeID := gc.b.InternType(typeText, "", classifyGoTypeFlavor(typeText), strings.HasPrefix(typeText, "*"), nil)
			n := ir.Node{
				Kind:           ir.KindField,
				Name:           name,
				FQN:            gc.scope.FQN(name),
				FilePath:       gc.filePath,
				Span:           span,
				Language:       "go",
				ParentID:       ownerID,
				DeclaredTypeID: typeID,
			}
			fieldID := gc.b.AddNode(n, gc.b.RepoID())
			gc.b.AddContainsEdge(ownerID, fieldID, span)
			// Type name in an annotation site: REFERENCES (spec §4.2
			// edge-kind table), resolved cross-file by the graph stage.
			if base := goUserTypeName(typeText); base != "" {
				gc.b.AddEdge(ir.EdgeReferences, fieldID, "", span, base, nil)
			}
		}
	}
}

// goUserTypeName strips pointer/slice decoration and returns the base
// type name when it names a same-repo (user) type, "" for primitives and
// qualified external types.
func goUserTypeName(raw string) string {
	if classifyGoTypeFlavor(raw) != ir.FlavorUser {
		return ""
	}
	base := strings.TrimPrefix(strings.TrimPrefix(raw, "*"), "[]")
	for _, r := range base {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return "" // map/func/chan composite types are not a single name
		}
	}
	return base
}

func (gc *goCtx) fieldNames(decl *sitter.Node) []*sitter.Node {
	var names []*sitter.Node
	for i := 0; i < int(decl.ChildCount()); i++ {
		c := decl.Child(i)
		if c.Type() == "field_identifier" {
			names = append(names, c)
		}
	}
	return names
}

func (gc *goCtx) walkInterfaceEmbeds(ifaceType *sitter.Node, ownerID string, span ir.Span) {
	for i := 0; i < int(ifaceType.ChildCount()); i++ {
		c := ifaceType.Child(i)
		if c.Type() == "type_identifier" || c.Type() == "qualified_type" {
			gc.b.AddEdge(ir.EdgeInherits, ownerID, "", toSpan(c), nodeText(gc.source, c), nil)
		}
	}
}

func classifyGoTypeFlavor(raw string) ir.TypeFlavor {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(raw, "*"), "[]")
	switch trimmed {
	case "string", "bool", "int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64", "float32", "float64",
		"byte", "rune", "error", "any":
		return ir.FlavorPrimitive
	}
	if strings.Contains(trimmed, ".") {
		return ir.FlavorExternal
	}
	return ir.FlavorUser
}

func (gc *goCtx) walkPackageVars(node *sitter.Node, parentID string) {
	for i := 0; i < int(node.ChildCount()); i++ {
		spec := node.Child(i)
		if spec.Type() != "var_spec" && spec.Type() != "const_spec" {
			continue
		}
		for j := 0; j < int(spec.ChildCount()); j++ {
			id := spec.Child(j)
			if id.Type() != "identifier" {
				continue
			}
			name := nodeText(gc.source, id)
			span := toSpan(id)
			n := ir.Node{
				Kind:     ir.KindVariable,
				Name:     name,
				FQN:      gc.scope.FQN(name),
				FilePath: gc.filePath,
				Span:     span,
				Language: "go",
				ParentID: parentID,
			}
			varID := gc.b.AddNode(n, gc.b.RepoID())
			gc.b.AddContainsEdge(parentID, varID, span)
		}
	}
}

func (gc *goCtx) walkFunction(node *sitter.Node, parentID string, isMethod bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(gc.source, nameNode)
	kind := ir.KindFunction
	receiverType := ""
	if isMethod {
		kind = ir.KindMethod
		if recv := node.ChildByFieldName("receiver"); recv != nil {
			receiverType = goReceiverType(recv, gc.source)
		}
	}

	displayName := name
	if receiverType != "" {
		displayName = receiverType + "." + name
	}

	span := toSpan(node)
	fqn := gc.scope.FQN(displayName)
	bodySpan := (*ir.Span)(nil)
	if body := node.ChildByFieldName("body"); body != nil {
		s := toSpan(body)
		bodySpan = &s
	}

	signature := goFormatSignature(node, gc.source)

	n := ir.Node{
		Kind:        kind,
		Name:        displayName,
		FQN:         fqn,
		FilePath:    gc.filePath,
		Span:        span,
		BodySpan:    bodySpan,
		Language:    "go",
		ModulePath:  gc.scope.ModulePath,
		ParentID:    parentID,
		ContentHash: ir.ContentHash([]byte(nodeText(gc.source, node))),
		ControlFlow: goControlFlowSummary(node, gc.source),
	}
	funcID := gc.b.AddNode(n, gc.b.RepoID())
	gc.b.AddContainsEdge(parentID, funcID, span)
	gc.funcNameToID[name] = funcID
	if receiverType != "" {
		gc.funcNameToID[displayName] = funcID
	}

	locals := make(map[string]string)
	paramTypeIDs := gc.walkParameters(node, funcID, locals)
	returnTypeID := gc.goReturnTypeID(node)

	sig := ir.SignatureEntity{
		OwnerNodeID:      funcID,
		Name:             displayName,
		Raw:              signature,
		ParameterTypeIDs: paramTypeIDs,
		ReturnTypeID:     returnTypeID,
		Visibility:       goVisibility(name),
		IsAsync:          false,
		IsStatic:         !isMethod,
	}
	sigID := gc.b.AddSignature(sig)
	gc.b.SetSignatureID(funcID, sigID)

	gc.scope.Push(displayName, funcID)
	if body := node.ChildByFieldName("body"); body != nil {
		gc.walkBlock(body, funcID)
		gc.walkCallsAndRefs(body, funcID, locals)
	}
	gc.scope.Pop()
}

func goReceiverType(recv *sitter.Node, source []byte) string {
	for i := 0; i < int(recv.ChildCount()); i++ {
		c := recv.Child(i)
		if c.Type() == "parameter_declaration" {
			if t := c.ChildByFieldName("type"); t != nil {
				return goBaseTypeName(t, source)
			}
		}
	}
	return ""
}

func goBaseTypeName(t *sitter.Node, source []byte) string {
	switch t.Type() {
	case "pointer_type":
		for i := 0; i < int(t.ChildCount()); i++ {
			c := t.Child(i)
			if c.Type() != "*" {
				return goBaseTypeName(c, source)
			}
		}
	case "generic_type":
		if tn := t.ChildByFieldName("type"); tn != nil {
			return goBaseTypeName(tn, source)
		}
	}
	return nodeText(source, t)
}

func goVisibility(name string) string {
	if name == "" {
		return "private"
	}
	r := name[0]
	if r >= 'A' && r <= 'Z' {
		return "public"
	}
	return "private"
}

func goFormatSignature(node *sitter.Node, source []byte) string {
	var b strings.Builder
	b.WriteString("func ")
	if recv := node.ChildByFieldName("receiver"); recv != nil {
		b.WriteString(nodeText(source, recv))
		b.WriteString(" ")
	}
	if name := node.ChildByFieldName("name"); name != nil {
		b.WriteString(nodeText(source, name))
	}
	if tp := node.ChildByFieldName("type_parameters"); tp != nil {
		b.WriteString(nodeText(source, tp))
	}
	if params := node.ChildByFieldName("parameters"); params != nil {
		b.WriteString(nodeText(source, params))
	}
	if result := node.ChildByFieldName("result"); result != nil {
		b.WriteString(" ")
		b.WriteString(nodeText(source, result))
	}
	return b.String()
}

// walkParameters emits Parameter nodes and returns their TypeEntity ids in
// declaration order, so the caller can populate SignatureEntity.ParameterTypeIDs
// (spec §4.2 item 5: parameter types lifted into TypeEntity objects).
func (gc *goCtx) walkParameters(fnNode *sitter.Node, funcID string, locals map[string]string) []string {
	params := fnNode.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	var typeIDs []string
	for i := 0; i < int(params.ChildCount()); i++ {
		decl := params.Child(i)
		if decl.Type() != "parameter_declaration" && decl.Type() != "variadic_parameter_declaration" {
			continue
		}
		typeNode := decl.ChildByFieldName("type")
		var typeText string
		if typeNode != nil {
			typeText = nodeText(gc.source, typeNode)
		}
		typeID := gc.b.InternType(typeText, "", classifyGoTypeFlavor(typeText), strings.HasPrefix(typeText, "*"), nil)
		for j := 0; j < int(decl.ChildCount()); j++ {
			id := decl.Child(j)
			if id.Type() != "identifier" {
				continue
			}
			name := nodeText(gc.source, id)
			span := toSpan(decl)
			n := ir.Node{
				Kind:           ir.KindParameter,
				Name:           name,
				FQN:            gc.scope.FQN(name),
				FilePath:       gc.filePath,
				Span:           span,
				Language:       "go",
				ParentID:       funcID,
				DeclaredTypeID: typeID,
			}
			paramID := gc.b.AddNode(n, gc.b.RepoID())
			gc.b.AddContainsEdge(funcID, paramID, span)
			if base := goUserTypeName(typeText); base != "" {
				gc.b.AddEdge(ir.EdgeReferences, funcID, "", span, base, nil)
			}
			locals[name] = paramID
			typeIDs = append(typeIDs, typeID)
		}
	}
	return typeIDs
}

// goReturnTypeID lifts a function's result clause into one TypeEntity.
// Go permits multiple named return values; those are represented as one
// TypeEntity whose Raw is the full parenthesized result clause rather
// than one TypeEntity per value, since SignatureEntity models a single
// ReturnTypeID (spec §3).
func (gc *goCtx) goReturnTypeID(fnNode *sitter.Node) string {
	result := fnNode.ChildByFieldName("result")
	if result == nil {
		return ""
	}
	typeText := nodeText(gc.source, result)
	if typeText == "" {
		return ""
	}
	return gc.b.InternType(typeText, "", classifyGoTypeFlavor(typeText), strings.HasPrefix(typeText, "*"), nil)
}

// walkBlock emits Conditional (if) and Loop (for) structural nodes for
// control-flow statements, feeding C3's CFG builder; other statements get
// no structural node of their own. Expression detail below statement
// level is not modeled structurally.
func (gc *goCtx) walkBlock(node *sitter.Node, parentID string) {
	if node == nil {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "if_statement":
			gc.emitControlNode(child, parentID, ir.KindConditional)
		case "for_statement":
			gc.emitControlNode(child, parentID, ir.KindLoop)
		case "block":
			gc.walkBlock(child, parentID)
		case "func_literal":
			gc.walkLambda(child, parentID)
		default:
			gc.walkBlock(child, parentID)
		}
	}
}

func (gc *goCtx) emitControlNode(node *sitter.Node, parentID string, kind ir.NodeKind) {
	span := toSpan(node)
	n := ir.Node{
		Kind:     kind,
		FilePath: gc.filePath,
		Span:     span,
		Language: "go",
		ParentID: parentID,
	}
	id := gc.b.AddNode(n, gc.b.RepoID())
	gc.b.AddContainsEdge(parentID, id, span)
	if body := node.ChildByFieldName("consequence"); body != nil {
		gc.walkBlock(body, id)
	}
	if body := node.ChildByFieldName("body"); body != nil {
		gc.walkBlock(body, id)
	}
	if alt := node.ChildByFieldName("alternative"); alt != nil {
		gc.walkBlock(alt, id)
	}
}

func (gc *goCtx) walkLambda(node *sitter.Node, parentID string) {
	gc.anonCounter++
	span := toSpan(node)
	fqn := gc.scope.LambdaFQN(span.Start.Line, span.Start.Col)
	n := ir.Node{
		Kind:        ir.KindLambda,
		Name:        fmt.Sprintf("λ%d:%d", span.Start.Line, span.Start.Col),
		FQN:         fqn,
		FilePath:    gc.filePath,
		Span:        span,
		Language:    "go",
		ParentID:    parentID,
		ContentHash: ir.ContentHash([]byte(nodeText(gc.source, node))),
	}
	id := gc.b.AddNode(n, gc.b.RepoID())
	gc.b.AddContainsEdge(parentID, id, span)
	locals := make(map[string]string)
	gc.walkParameters(node, id, locals)
	if body := node.ChildByFieldName("body"); body != nil {
		gc.walkBlock(body, id)
		gc.walkCallsAndRefs(body, id, locals)
	}
}

// walkCallsAndRefs descends a function body recording CALLS edges (spec
// §4.2 edge-kind table: "callee(args) -> CALLS"), WRITES edges for
// assignment targets ("x = … -> WRITES"), and READS edges for every other
// identifier reference ("identifier on RHS -> READS"). locals maps a
// name to the Parameter/Variable Node id currently bound to it within
// this function, seeded by walkParameters and grown as short variable
// declarations introduce new locals; it is intentionally flat rather
// than a nested lexical-scope stack, so a name re-declared with `:=` in
// a nested block shadows the outer binding for the rest of the walk
// instead of restoring it on block exit — a documented simplification of
// Go's actual block scoping.
func (gc *goCtx) walkCallsAndRefs(node *sitter.Node, ownerID string, locals map[string]string) {
	if node == nil {
		return
	}
	switch node.Type() {
	case "call_expression":
		if fn := node.ChildByFieldName("function"); fn != nil {
			callee, qualifier := goCalleeName(fn, gc.source)
			span := toSpan(node)
			attrs := callArgAttrs(gc.source, node.ChildByFieldName("arguments"))
			if targetID, ok := gc.funcNameToID[callee]; ok && qualifier == "" {
				gc.b.AddEdge(ir.EdgeCalls, ownerID, targetID, span, "", attrs)
			} else {
				if qualifier != "" {
					attrs["qualifier"] = qualifier
				}
				gc.b.AddEdge(ir.EdgeCalls, ownerID, "", span, callee, attrs)
			}
		}
		if args := node.ChildByFieldName("arguments"); args != nil {
			gc.walkCallsAndRefs(args, ownerID, locals)
		}
		return
	case "short_var_declaration":
		gc.emitGoAssignment(node, ownerID, locals, true)
		return
	case "assignment_statement":
		gc.emitGoAssignment(node, ownerID, locals, false)
		return
	case "return_statement":
		gc.emitGoReturn(node, ownerID, locals)
		return
	case "identifier":
		name := nodeText(gc.source, node)
		if _, isFunc := gc.funcNameToID[name]; isFunc {
			return
		}
		span := toSpan(node)
		if targetID, ok := locals[name]; ok {
			gc.b.AddEdge(ir.EdgeReads, ownerID, targetID, span, "", nil)
		} else {
			gc.b.AddEdge(ir.EdgeReads, ownerID, "", span, name, nil)
		}
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		gc.walkCallsAndRefs(node.Child(i), ownerID, locals)
	}
}

// emitGoAssignment handles both `:=` (isDecl, always introduces a fresh
// local) and `=`/augmented assignment (reuses an existing local or, for a
// name with no local binding, leaves the WRITES edge unresolved so C4 can
// bind it to a package-level var). For a single-identifier right-hand
// side it tags the edge for an `alias` DataFlowEdge; for any other
// right-hand side it tags it for `assign`, using the first identifier
// found in the expression as the edge's source (spec §4.3: `alias` is
// `a = b`, `assign` is `a = f(b)`).
func (gc *goCtx) emitGoAssignment(node *sitter.Node, ownerID string, locals map[string]string, isDecl bool) {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	if left == nil {
		return
	}
	leftNames := identifierListNames(gc.source, left)
	rightExprs := expressionListItems(right)

	for i, name := range leftNames {
		if name == "_" {
			continue
		}
		span := toSpan(left)
		var rhs *sitter.Node
		if i < len(rightExprs) {
			rhs = rightExprs[i]
		} else if len(rightExprs) == 1 {
			rhs = rightExprs[0]
		}
		target, isNew := gc.resolveOrDeclareLocal(name, locals, ownerID, span, isDecl)
		attrs := map[string]string{}
		if isNew {
			attrs["decl"] = "true"
		}
		if rhs != nil {
			if rhs.Type() == "identifier" {
				attrs["rhs_kind"] = "identifier"
				attrs["rhs_name"] = nodeText(gc.source, rhs)
			} else if id := firstIdentifierIn(gc.source, rhs); id != "" {
				attrs["rhs_kind"] = "expr"
				attrs["rhs_name"] = id
			}
		}
		if target == "" {
			gc.b.AddEdge(ir.EdgeWrites, ownerID, "", span, name, attrs)
		} else {
			gc.b.AddEdge(ir.EdgeWrites, ownerID, target, span, "", attrs)
		}
	}
	if right != nil {
		gc.walkCallsAndRefs(right, ownerID, locals)
	}
}

// emitGoReturn records a READS edge tagged `returns=true` for a bare
// `return a` so BuildDFG can add the `return_value` DataFlowEdge (spec
// §4.3); any other returned expression is walked normally for its own
// CALLS/READS edges.
func (gc *goCtx) emitGoReturn(node *sitter.Node, ownerID string, locals map[string]string) {
	for i := 0; i < int(node.ChildCount()); i++ {
		c := node.Child(i)
		switch c.Type() {
		case "return":
			// keyword, nothing to walk
		case "identifier":
			gc.emitGoReturnIdent(c, ownerID, locals)
		case "expression_list":
			for j := 0; j < int(c.ChildCount()); j++ {
				e := c.Child(j)
				if e.Type() == "identifier" {
					gc.emitGoReturnIdent(e, ownerID, locals)
					continue
				}
				gc.walkCallsAndRefs(e, ownerID, locals)
			}
		default:
			// A single non-identifier return value (`return f(x)`,
			// `return x + y`) isn't wrapped in an expression_list by the
			// grammar, so it must still be walked for its own CALLS/READS
			// edges.
			gc.walkCallsAndRefs(c, ownerID, locals)
		}
	}
}

func (gc *goCtx) emitGoReturnIdent(id *sitter.Node, ownerID string, locals map[string]string) {
	name := nodeText(gc.source, id)
	span := toSpan(id)
	if targetID, ok := locals[name]; ok {
		gc.b.AddEdge(ir.EdgeReads, ownerID, targetID, span, "", map[string]string{"returns": "true"})
	} else {
		gc.b.AddEdge(ir.EdgeReads, ownerID, "", span, name, map[string]string{"returns": "true"})
	}
}

// resolveOrDeclareLocal returns the existing local id for name, or — when
// declareIfMissing is set (a `:=` declaration) — creates a new Variable
// Node parented at ownerID and registers it in locals.
func (gc *goCtx) resolveOrDeclareLocal(name string, locals map[string]string, ownerID string, span ir.Span, declareIfMissing bool) (id string, isNewDecl bool) {
	if existing, ok := locals[name]; ok {
		return existing, false
	}
	if !declareIfMissing {
		return "", false
	}
	n := ir.Node{
		Kind:     ir.KindVariable,
		Name:     name,
		FQN:      gc.scope.FQN(name),
		FilePath: gc.filePath,
		Span:     span,
		Language: "go",
		ParentID: ownerID,
	}
	id = gc.b.AddNode(n, gc.b.RepoID())
	gc.b.AddContainsEdge(ownerID, id, span)
	locals[name] = id
	return id, true
}

// identifierListNames extracts the bare identifier names from an
// expression_list (or a single identifier), in left-to-right order —
// used for both sides of an assignment, which in Go may bind several
// names from one multi-value call.
func identifierListNames(source []byte, node *sitter.Node) []string {
	if node == nil {
		return nil
	}
	if node.Type() == "identifier" {
		return []string{nodeText(source, node)}
	}
	var names []string
	for i := 0; i < int(node.ChildCount()); i++ {
		c := node.Child(i)
		if c.Type() == "identifier" {
			names = append(names, nodeText(source, c))
		}
	}
	return names
}

// expressionListItems splits an expression_list into its element nodes,
// or returns a single-element slice if node is already a bare expression.
func expressionListItems(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	if node.Type() != "expression_list" {
		return []*sitter.Node{node}
	}
	var items []*sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		c := node.Child(i)
		if c.Type() == "," {
			continue
		}
		items = append(items, c)
	}
	return items
}

// firstIdentifierIn returns the first bare identifier found in a
// depth-first walk of node, or "" if none — a best-effort source
// attribution for an `assign` DataFlowEdge whose right-hand side is an
// arbitrary expression rather than a single name. For a call, the
// arguments are searched before the callee, so `a = f(b)` yields b.
func firstIdentifierIn(source []byte, node *sitter.Node) string {
	if node == nil {
		return ""
	}
	if node.Type() == "identifier" {
		return nodeText(source, node)
	}
	if args := node.ChildByFieldName("arguments"); args != nil {
		if name := firstIdentifierIn(source, args); name != "" {
			return name
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if name := firstIdentifierIn(source, node.Child(i)); name != "" {
			return name
		}
	}
	return ""
}

// goControlFlowSummary computes the advisory metric annotation for a
// function-like node: cyclomatic complexity as branch count + 1, loop
// presence, and the first few branch-condition snippets. Go has no
// try/catch; HasTry stays false.
func goControlFlowSummary(node *sitter.Node, source []byte) *ir.ControlFlowSummary {
	return summarizeControlFlow(node, source,
		map[string]bool{"if_statement": true, "expression_switch_statement": true, "type_switch_statement": true, "select_statement": true},
		map[string]bool{"for_statement": true},
		nil)
}

func goCalleeName(fn *sitter.Node, source []byte) (name, qualifier string) {
	switch fn.Type() {
	case "identifier":
		return nodeText(source, fn), ""
	case "selector_expression":
		operand := fn.ChildByFieldName("operand")
		field := fn.ChildByFieldName("field")
		if field == nil {
			return "", ""
		}
		q := ""
		if operand != nil {
			q = nodeText(source, operand)
		}
		return nodeText(source, field), q
	}
	return "", ""
}
