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

// PythonWalker builds the structural IR for Python source files.
type PythonWalker struct{}

// NewPythonWalker constructs a PythonWalker.
func NewPythonWalker() *PythonWalker { return &PythonWalker{} }

// Language identifies this walker to the registry.
func (w *PythonWalker) Language() string { return "python" }

type pyCtx struct {
	b            *ir.Builder
	source       []byte
	filePath     string
	scope        *ir.Scope
	funcNameToID map[string]string
	lambdaCount  int
}

// Walk descends the Python syntax tree. Module path defaults to the file
// layout tie-break since Python has no package declaration node.
func (w *PythonWalker) Walk(wc WalkContext) ir.IRDocument {
	b := ir.NewBuilder(wc.RepoID, wc.SnapshotID, wc.FilePath)
	modulePath := ir.ModulePathFromFile(wc.FilePath, "", wc.SrcRoots)

	fileNode := ir.Node{
		Kind:        ir.KindFile,
		Name:        wc.FilePath,
		FQN:         modulePath,
		FilePath:    wc.FilePath,
		Span:        toSpan(wc.Root),
		Language:    "python",
		ModulePath:  modulePath,
		ContentHash: ir.ContentHash(wc.Source),
		IsTestFile:  wc.IsTestFile || strings.HasPrefix(pathBase(wc.FilePath), "test_") || strings.HasSuffix(wc.FilePath, "_test.py"),
	}
	fileID := b.AddNode(fileNode, wc.RepoID)

	if errs := countErrors(wc.Root); errs > 0 {
		b.Diagnostic(fmt.Sprintf("%d syntax error node(s) in file", errs))
	}

	pc := &pyCtx{
		b:            b,
		source:       wc.Source,
		filePath:     wc.FilePath,
		scope:        ir.NewScope(modulePath),
		funcNameToID: make(map[string]string),
	}
	pc.walkImports(wc.Root, fileID)
	pc.walkBody(wc.Root, fileID)

	return b.Document()
}

func pathBase(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

func (pc *pyCtx) walkImports(node *sitter.Node, parentID string) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import_statement", "import_from_statement":
			pc.addImport(child, parentID)
		default:
			if child.Type() != "function_definition" && child.Type() != "class_definition" {
				pc.walkImports(child, parentID)
			}
		}
	}
}

func (pc *pyCtx) addImport(node *sitter.Node, parentID string) {
	text := nodeText(pc.source, node)
	module := text
	if mod := node.ChildByFieldName("module_name"); mod != nil {
		module = nodeText(pc.source, mod)
	}
	span := toSpan(node)
	n := ir.Node{
		Kind:     ir.KindImport,
		Name:     module,
		FQN:      module,
		FilePath: pc.filePath,
		Span:     span,
		Language: "python",
		ParentID: parentID,
	}
	id := pc.b.AddNode(n, pc.b.RepoID())
	pc.b.AddContainsEdge(parentID, id, span)
	pc.b.AddEdge(ir.EdgeImports, parentID, "", span, module, nil)
}

// walkBody dispatches over statements at one nesting level (module body or
// class body), recursing into class/function definitions structurally.
func (pc *pyCtx) walkBody(node *sitter.Node, parentID string) {
	if node == nil {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "class_definition":
			pc.walkClass(child, parentID)
		case "function_definition":
			pc.walkFunction(child, parentID)
		case "decorated_definition":
			pc.walkDecorated(child, parentID)
		case "block":
			pc.walkBody(child, parentID)
		}
	}
}

// walkDecorated unwraps a decorated class/function definition, walking the
// inner definition first so the DECORATES edges can use its node id as
// their source ("@decorator -> DECORATES", spec §4.2 edge-kind table).
func (pc *pyCtx) walkDecorated(node *sitter.Node, parentID string) {
	var defID string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "class_definition":
			defID = pc.walkClass(child, parentID)
		case "function_definition":
			defID = pc.walkFunction(child, parentID)
		}
	}
	if defID == "" {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() != "decorator" {
			continue
		}
		name := strings.TrimPrefix(nodeText(pc.source, child), "@")
		// A parameterized decorator (@route("/x")) names the callee, not
		// the whole call expression.
		if idx := strings.IndexByte(name, '('); idx >= 0 {
			name = name[:idx]
		}
		pc.b.AddEdge(ir.EdgeDecorates, defID, "", toSpan(child), name, nil)
	}
}

func (pc *pyCtx) walkClass(node *sitter.Node, parentID string) string {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}
	name := nodeText(pc.source, nameNode)
	span := toSpan(node)
	n := ir.Node{
		Kind:        ir.KindClass,
		Name:        name,
		FQN:         pc.scope.FQN(name),
		FilePath:    pc.filePath,
		Span:        span,
		Language:    "python",
		ModulePath:  pc.scope.ModulePath,
		ParentID:    parentID,
		ContentHash: ir.ContentHash([]byte(nodeText(pc.source, node))),
	}
	classID := pc.b.AddNode(n, pc.b.RepoID())
	pc.b.AddContainsEdge(parentID, classID, span)

	if superclasses := node.ChildByFieldName("superclasses"); superclasses != nil {
		for i := 0; i < int(superclasses.ChildCount()); i++ {
			c := superclasses.Child(i)
			if c.Type() == "identifier" || c.Type() == "attribute" {
				pc.b.AddEdge(ir.EdgeInherits, classID, "", toSpan(c), nodeText(pc.source, c), nil)
			}
		}
	}

	pc.scope.Push(name, classID)
	if body := node.ChildByFieldName("body"); body != nil {
		pc.walkBody(body, classID)
	}
	pc.scope.Pop()
	return classID
}

func (pc *pyCtx) walkFunction(node *sitter.Node, parentID string) string {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}
	name := nodeText(pc.source, nameNode)
	span := toSpan(node)
	kind := ir.KindFunction
	doc := pc.b.Document()
	if parent := doc.NodeByID(parentID); parent != nil && parent.Kind == ir.KindClass {
		kind = ir.KindMethod
	}

	isAsync := false
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "async" {
			isAsync = true
			break
		}
	}

	signature := pyFormatSignature(node, pc.source)
	var bodySpan *ir.Span
	if body := node.ChildByFieldName("body"); body != nil {
		s := toSpan(body)
		bodySpan = &s
	}

	n := ir.Node{
		Kind:        kind,
		Name:        name,
		FQN:         pc.scope.FQN(name),
		FilePath:    pc.filePath,
		Span:        span,
		BodySpan:    bodySpan,
		Language:    "python",
		ModulePath:  pc.scope.ModulePath,
		ParentID:    parentID,
		ContentHash: ir.ContentHash([]byte(nodeText(pc.source, node))),
		Docstring:   pyDocstring(node, pc.source),
		ControlFlow: pyControlFlowSummary(node, pc.source),
	}
	funcID := pc.b.AddNode(n, pc.b.RepoID())
	pc.b.AddContainsEdge(parentID, funcID, span)
	pc.funcNameToID[name] = funcID

	locals := make(map[string]string)
	paramTypeIDs := pc.walkParameters(node, funcID, locals)
	returnTypeID := ""
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		retText := nodeText(pc.source, ret)
		if retText != "" {
			returnTypeID = pc.b.InternType(retText, "", ir.FlavorUser, false, nil)
		}
	}

	sig := ir.SignatureEntity{
		OwnerNodeID:      funcID,
		Name:             name,
		Raw:              signature,
		ParameterTypeIDs: paramTypeIDs,
		ReturnTypeID:     returnTypeID,
		Visibility:       pyVisibility(name),
		IsAsync:          isAsync,
		IsStatic:         kind == ir.KindFunction,
	}
	sigID := pc.b.AddSignature(sig)
	pc.b.SetSignatureID(funcID, sigID)

	pc.scope.Push(name, funcID)
	if body := node.ChildByFieldName("body"); body != nil {
		pc.walkStatements(body, funcID)
		pc.walkCalls(body, funcID, locals)
		pc.walkRaises(body, funcID)
	}
	pc.scope.Pop()
	return funcID
}

// walkRaises records a THROWS edge per raise statement ("raise/throw ->
// THROWS", spec §4.2 edge-kind table), named by the raised exception
// type's callee when one is written.
func (pc *pyCtx) walkRaises(node *sitter.Node, ownerID string) {
	if node == nil {
		return
	}
	if node.Type() == "raise_statement" {
		name := ""
		for i := 0; i < int(node.ChildCount()); i++ {
			c := node.Child(i)
			switch c.Type() {
			case "identifier":
				name = nodeText(pc.source, c)
			case "call":
				if fn := c.ChildByFieldName("function"); fn != nil {
					name, _ = pyCalleeName(fn, pc.source)
				}
			}
		}
		pc.b.AddEdge(ir.EdgeThrows, ownerID, "", toSpan(node), name, nil)
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		pc.walkRaises(node.Child(i), ownerID)
	}
}

// pyDocstring returns the leading string literal of a function/class
// body, the conventional docstring position, trimmed of its quotes.
func pyDocstring(node *sitter.Node, source []byte) string {
	body := node.ChildByFieldName("body")
	if body == nil || body.ChildCount() == 0 {
		return ""
	}
	first := body.Child(0)
	if first.Type() != "expression_statement" || first.ChildCount() == 0 {
		return ""
	}
	str := first.Child(0)
	if str.Type() != "string" {
		return ""
	}
	text := nodeText(source, str)
	text = strings.Trim(text, "\"'")
	return strings.TrimSpace(text)
}

func pyControlFlowSummary(node *sitter.Node, source []byte) *ir.ControlFlowSummary {
	return summarizeControlFlow(node, source,
		map[string]bool{"if_statement": true, "conditional_expression": true, "match_statement": true},
		map[string]bool{"for_statement": true, "while_statement": true},
		map[string]bool{"try_statement": true})
}

func pyVisibility(name string) string {
	if strings.HasPrefix(name, "_") {
		return "private"
	}
	return "public"
}

func pyFormatSignature(node *sitter.Node, source []byte) string {
	var b strings.Builder
	b.WriteString("def ")
	if name := node.ChildByFieldName("name"); name != nil {
		b.WriteString(nodeText(source, name))
	}
	if params := node.ChildByFieldName("parameters"); params != nil {
		b.WriteString(nodeText(source, params))
	}
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		b.WriteString(" -> ")
		b.WriteString(nodeText(source, ret))
	}
	return b.String()
}

func (pc *pyCtx) walkParameters(fnNode *sitter.Node, funcID string, locals map[string]string) []string {
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
		case "typed_parameter":
			for j := 0; j < int(p.ChildCount()); j++ {
				if p.Child(j).Type() == "identifier" {
					idNode = p.Child(j)
				}
			}
			if t := p.ChildByFieldName("type"); t != nil {
				typeText = nodeText(pc.source, t)
			}
		case "default_parameter", "typed_default_parameter":
			if n := p.ChildByFieldName("name"); n != nil {
				idNode = n
			}
			if t := p.ChildByFieldName("type"); t != nil {
				typeText = nodeText(pc.source, t)
			}
		default:
			continue
		}
		if idNode == nil {
			continue
		}
		name := nodeText(pc.source, idNode)
		span := toSpan(p)
		var typeID string
		if typeText != "" {
			typeID = pc.b.InternType(typeText, "", ir.FlavorUser, false, nil)
		}
		n := ir.Node{
			Kind:           ir.KindParameter,
			Name:           name,
			FQN:            pc.scope.FQN(name),
			FilePath:       pc.filePath,
			Span:           span,
			Language:       "python",
			ParentID:       funcID,
			DeclaredTypeID: typeID,
		}
		paramID := pc.b.AddNode(n, pc.b.RepoID())
		pc.b.AddContainsEdge(funcID, paramID, span)
		locals[name] = paramID
		typeIDs = append(typeIDs, typeID)
	}
	return typeIDs
}

// walkStatements emits Conditional/Loop/TryCatch/Lambda structural nodes,
// descending into nested blocks the same way walkBody does for classes.
func (pc *pyCtx) walkStatements(node *sitter.Node, parentID string) {
	if node == nil {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "if_statement":
			pc.emitControl(child, parentID, ir.KindConditional)
		case "for_statement", "while_statement":
			pc.emitControl(child, parentID, ir.KindLoop)
		case "try_statement":
			pc.emitControl(child, parentID, ir.KindTryCatch)
		case "block":
			pc.walkStatements(child, parentID)
		case "function_definition":
			pc.walkFunction(child, parentID)
		case "class_definition":
			pc.walkClass(child, parentID)
		case "decorated_definition":
			pc.walkDecorated(child, parentID)
		default:
			pc.walkLambdasIn(child, parentID)
		}
	}
}

func (pc *pyCtx) emitControl(node *sitter.Node, parentID string, kind ir.NodeKind) {
	span := toSpan(node)
	n := ir.Node{Kind: kind, FilePath: pc.filePath, Span: span, Language: "python", ParentID: parentID}
	id := pc.b.AddNode(n, pc.b.RepoID())
	pc.b.AddContainsEdge(parentID, id, span)
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "block" {
			pc.walkStatements(node.Child(i), id)
		}
	}
}

func (pc *pyCtx) walkLambdasIn(node *sitter.Node, parentID string) {
	if node == nil {
		return
	}
	if node.Type() == "lambda" {
		pc.lambdaCount++
		span := toSpan(node)
		n := ir.Node{
			Kind:        ir.KindLambda,
			Name:        fmt.Sprintf("λ%d:%d", span.Start.Line, span.Start.Col),
			FQN:         pc.scope.LambdaFQN(span.Start.Line, span.Start.Col),
			FilePath:    pc.filePath,
			Span:        span,
			Language:    "python",
			ParentID:    parentID,
			ContentHash: ir.ContentHash([]byte(nodeText(pc.source, node))),
		}
		id := pc.b.AddNode(n, pc.b.RepoID())
		pc.b.AddContainsEdge(parentID, id, span)
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		pc.walkLambdasIn(node.Child(i), parentID)
	}
}

// walkCalls records CALLS edges for every call node within a function
// body, resolved by simple name against this file's function table.
// walkCalls descends a function body recording CALLS edges, WRITES edges
// for assignment targets, and READS edges for every other identifier
// reference (spec §4.2 edge-kind table). locals tracks name -> declaring
// Node id the same way the Go walker's does; see its doc comment for the
// flat-scope simplification this shares.
func (pc *pyCtx) walkCalls(node *sitter.Node, ownerID string, locals map[string]string) {
	if node == nil {
		return
	}
	switch node.Type() {
	case "call":
		if fn := node.ChildByFieldName("function"); fn != nil {
			callee, qualifier := pyCalleeName(fn, pc.source)
			span := toSpan(node)
			attrs := callArgAttrs(pc.source, node.ChildByFieldName("arguments"))
			if targetID, ok := pc.funcNameToID[callee]; ok && qualifier == "" {
				pc.b.AddEdge(ir.EdgeCalls, ownerID, targetID, span, "", attrs)
			} else {
				if qualifier != "" {
					attrs["qualifier"] = qualifier
				}
				pc.b.AddEdge(ir.EdgeCalls, ownerID, "", span, callee, attrs)
			}
		}
		if args := node.ChildByFieldName("arguments"); args != nil {
			pc.walkCalls(args, ownerID, locals)
		}
		return
	case "assignment", "augmented_assignment":
		pc.emitPyAssignment(node, ownerID, locals)
		return
	case "return_statement":
		pc.emitPyReturn(node, ownerID, locals)
		return
	case "identifier":
		name := nodeText(pc.source, node)
		if _, isFunc := pc.funcNameToID[name]; isFunc {
			return
		}
		span := toSpan(node)
		if targetID, ok := locals[name]; ok {
			pc.b.AddEdge(ir.EdgeReads, ownerID, targetID, span, "", nil)
		} else {
			pc.b.AddEdge(ir.EdgeReads, ownerID, "", span, name, nil)
		}
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		pc.walkCalls(node.Child(i), ownerID, locals)
	}
}

// emitPyAssignment handles `a = b`/`a = f(b)`/augmented assignment. Every
// Python assignment introduces or rebinds a name in the enclosing
// function scope (no separate declaration keyword), so unlike Go there is
// no isDecl distinction: a name not yet in locals is always a fresh
// local.
func (pc *pyCtx) emitPyAssignment(node *sitter.Node, ownerID string, locals map[string]string) {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	if left == nil || left.Type() != "identifier" {
		// Tuple-target/attribute/subscript assignment: walk the right side
		// for reads and skip write-tracking for this statement.
		if right != nil {
			pc.walkCalls(right, ownerID, locals)
		}
		return
	}
	name := nodeText(pc.source, left)
	span := toSpan(left)
	_, existed := locals[name]
	target, isNew := pc.resolveOrDeclareLocal(name, locals, ownerID, span, true)
	attrs := map[string]string{}
	if isNew && !existed {
		attrs["decl"] = "true"
	}
	if right != nil {
		if right.Type() == "identifier" {
			attrs["rhs_kind"] = "identifier"
			attrs["rhs_name"] = nodeText(pc.source, right)
		} else if id := firstIdentifierIn(pc.source, right); id != "" {
			attrs["rhs_kind"] = "expr"
			attrs["rhs_name"] = id
		}
	}
	pc.b.AddEdge(ir.EdgeWrites, ownerID, target, span, "", attrs)
	if right != nil {
		pc.walkCalls(right, ownerID, locals)
	}
}

func (pc *pyCtx) emitPyReturn(node *sitter.Node, ownerID string, locals map[string]string) {
	for i := 0; i < int(node.ChildCount()); i++ {
		c := node.Child(i)
		if c.Type() == "identifier" {
			name := nodeText(pc.source, c)
			span := toSpan(c)
			if targetID, ok := locals[name]; ok {
				pc.b.AddEdge(ir.EdgeReads, ownerID, targetID, span, "", map[string]string{"returns": "true"})
			} else {
				pc.b.AddEdge(ir.EdgeReads, ownerID, "", span, name, map[string]string{"returns": "true"})
			}
			continue
		}
		if c.Type() != "return" {
			pc.walkCalls(c, ownerID, locals)
		}
	}
}

// resolveOrDeclareLocal mirrors the Go walker's helper of the same name:
// reuse the existing Node id bound to name, or register a new one.
func (pc *pyCtx) resolveOrDeclareLocal(name string, locals map[string]string, ownerID string, span ir.Span, declareIfMissing bool) (id string, isNewDecl bool) {
	if existing, ok := locals[name]; ok {
		return existing, false
	}
	if !declareIfMissing {
		return "", false
	}
	n := ir.Node{
		Kind:     ir.KindVariable,
		Name:     name,
		FQN:      pc.scope.FQN(name),
		FilePath: pc.filePath,
		Span:     span,
		Language: "python",
		ParentID: ownerID,
	}
	id = pc.b.AddNode(n, pc.b.RepoID())
	pc.b.AddContainsEdge(ownerID, id, span)
	locals[name] = id
	return id, true
}

func pyCalleeName(fn *sitter.Node, source []byte) (name, qualifier string) {
	switch fn.Type() {
	case "identifier":
		return nodeText(source, fn), ""
	case "attribute":
		obj := fn.ChildByFieldName("object")
		attr := fn.ChildByFieldName("attribute")
		if attr == nil {
			return "", ""
		}
		q := ""
		if obj != nil {
			q = nodeText(source, obj)
		}
		return nodeText(source, attr), q
	}
	return "", ""
}
