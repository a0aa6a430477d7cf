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

// Package lang implements the structural IR generator (spec §4.2,
// component C2): one LanguageWalker per grammar, each descending a
// *sitter.Node tree and emitting Nodes/Edges/TypeEntities/SignatureEntities
// through an ir.Builder.
package lang

import (
	"fmt"
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/semindex/pkg/ir"
)

// WalkContext is everything a walker needs for one file. SrcRoots feeds
// ir.ModulePathFromFile's layout tie-break.
type WalkContext struct {
	RepoID     string
	SnapshotID string
	FilePath   string
	Source     []byte
	Root       *sitter.Node
	SrcRoots   []string
	IsTestFile bool
}

// LanguageWalker builds an IRDocument from one file's syntax tree.
type LanguageWalker interface {
	Language() string
	Walk(wc WalkContext) ir.IRDocument
}

// Registry maps language names to their walker, mirroring pkg/parser's
// Registry shape so C2 composes the same way C1 does.
type Registry struct {
	walkers map[string]LanguageWalker
}

// NewRegistry builds a registry with every walker this engine ships.
func NewRegistry() *Registry {
	r := &Registry{walkers: make(map[string]LanguageWalker)}
	for _, w := range []LanguageWalker{
		NewGoWalker(),
		NewPythonWalker(),
		NewJavaScriptWalker(),
		NewTypeScriptWalker(),
		NewJavaWalker(),
		NewRustWalker(),
		NewCWalker(),
		NewCppWalker(),
		NewKotlinWalker(),
	} {
		r.walkers[w.Language()] = w
	}
	return r
}

// Register adds or replaces the walker for the language it names.
func (r *Registry) Register(w LanguageWalker) { r.walkers[w.Language()] = w }

// Walker returns the walker registered for lang, or nil.
func (r *Registry) Walker(lang string) LanguageWalker { return r.walkers[lang] }

// toSpan converts a *sitter.Node's position data into an ir.Span.
func toSpan(n *sitter.Node) ir.Span {
	if n == nil {
		return ir.Span{}
	}
	sp := n.StartPoint()
	ep := n.EndPoint()
	return ir.Span{
		StartByte: int(n.StartByte()),
		EndByte:   int(n.EndByte()),
		Start:     ir.Position{Line: int(sp.Row) + 1, Col: int(sp.Column) + 1},
		End:       ir.Position{Line: int(ep.Row) + 1, Col: int(ep.Column) + 1},
	}
}

func nodeText(source []byte, n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(source[n.StartByte():n.EndByte()])
}

// callArgAttrs records a call site's positional arguments on its CALLS
// edge: "arg_count" for every call, plus "argN" = the argument's name
// for each bare-identifier argument. The data-flow builder pairs argN
// against the callee's formal parameters to wire param_to_arg edges
// ("caller arg -> callee formal"); non-identifier arguments keep their
// slot in the count but carry no name, so positions stay aligned.
func callArgAttrs(source []byte, args *sitter.Node) map[string]string {
	attrs := map[string]string{}
	n := 0
	if args != nil {
		for i := 0; i < int(args.ChildCount()); i++ {
			c := args.Child(i)
			switch c.Type() {
			case "(", ")", ",":
				continue
			case "identifier":
				attrs[fmt.Sprintf("arg%d", n)] = nodeText(source, c)
			}
			n++
		}
	}
	attrs["arg_count"] = strconv.Itoa(n)
	return attrs
}

// summarizeControlFlow walks a function-like subtree counting branch,
// loop and try constructs by grammar node type, producing the advisory
// ControlFlowSummary of spec's metric annotations: cyclomatic complexity
// is branch count + 1, and up to four branch-condition snippets are kept
// for display.
func summarizeControlFlow(n *sitter.Node, source []byte, branch, loop, try map[string]bool) *ir.ControlFlowSummary {
	s := &ir.ControlFlowSummary{CyclomaticComplexity: 1}
	var visit func(c *sitter.Node)
	visit = func(c *sitter.Node) {
		if c == nil {
			return
		}
		t := c.Type()
		switch {
		case branch[t]:
			s.CyclomaticComplexity++
			if len(s.BranchSnippets) < 4 {
				if cond := c.ChildByFieldName("condition"); cond != nil && source != nil {
					s.BranchSnippets = append(s.BranchSnippets, nodeText(source, cond))
				}
			}
		case loop[t]:
			s.CyclomaticComplexity++
			s.HasLoop = true
		case try[t]:
			s.HasTry = true
		}
		for i := 0; i < int(c.ChildCount()); i++ {
			visit(c.Child(i))
		}
	}
	if body := n.ChildByFieldName("body"); body != nil {
		visit(body)
	}
	return s
}

// countErrors reports how many ERROR/MISSING nodes a subtree contains,
// used to annotate File-level diagnostics without failing the walk.
func countErrors(n *sitter.Node) int {
	if n == nil {
		return 0
	}
	c := 0
	if n.Type() == "ERROR" || n.IsMissing() {
		c++
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c += countErrors(n.Child(i))
	}
	return c
}
