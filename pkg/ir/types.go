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

// Package ir defines the language-neutral intermediate representation
// produced from a concrete syntax tree: nodes, edges, type entities and
// signature entities, plus the Builder and Scope that the per-language
// walks in pkg/ir/lang use to build them.
package ir

// NodeKind enumerates the IR node kinds a language walker can emit.
type NodeKind string

const (
	KindFile       NodeKind = "File"
	KindModule     NodeKind = "Module"
	KindClass      NodeKind = "Class"
	KindInterface  NodeKind = "Interface"
	KindEnum       NodeKind = "Enum"
	KindFunction   NodeKind = "Function"
	KindMethod     NodeKind = "Method"
	KindLambda     NodeKind = "Lambda"
	KindVariable   NodeKind = "Variable"
	KindField      NodeKind = "Field"
	KindParameter  NodeKind = "Parameter"
	KindBlock      NodeKind = "Block"
	KindConditional NodeKind = "Conditional"
	KindLoop       NodeKind = "Loop"
	KindTryCatch   NodeKind = "TryCatch"
	KindImport     NodeKind = "Import"
)

// EdgeKind enumerates the relation kinds recorded as first-class Edges.
type EdgeKind string

const (
	EdgeContains   EdgeKind = "CONTAINS"
	EdgeCalls      EdgeKind = "CALLS"
	EdgeReads      EdgeKind = "READS"
	EdgeWrites     EdgeKind = "WRITES"
	EdgeImports    EdgeKind = "IMPORTS"
	EdgeInherits   EdgeKind = "INHERITS"
	EdgeImplements EdgeKind = "IMPLEMENTS"
	EdgeDecorates  EdgeKind = "DECORATES"
	EdgeReferences EdgeKind = "REFERENCES"
	EdgeThrows     EdgeKind = "THROWS"
	EdgeRouteTo    EdgeKind = "ROUTE_TO"
	EdgeUsesRepo   EdgeKind = "USES_REPO"
	EdgeDataFlow   EdgeKind = "DATA_FLOW"
)

// TypeFlavor classifies a TypeEntity for downstream consumers that need
// to tell primitives and external references apart from user-defined types.
type TypeFlavor string

const (
	FlavorPrimitive TypeFlavor = "primitive"
	FlavorBuiltin   TypeFlavor = "builtin"
	FlavorUser      TypeFlavor = "user"
	FlavorExternal  TypeFlavor = "external"
	FlavorTypeVar   TypeFlavor = "typevar"
	FlavorGeneric   TypeFlavor = "generic"
)

// Position is a single (line, col) extremity of a Span, both 1-indexed.
type Position struct {
	Line int
	Col  int
}

// Span is a byte-offset range plus its derived line/column extremities.
// StartByte/EndByte are the authoritative bounds; Start/End are advisory
// and used only for display.
type Span struct {
	StartByte int
	EndByte   int
	Start     Position
	End       Position
}

// Len returns the byte length of the span.
func (s Span) Len() int { return s.EndByte - s.StartByte }

// ControlFlowSummary is an advisory metric annotation attached to
// function-like nodes (spec §4.2); it is never used to satisfy an invariant.
type ControlFlowSummary struct {
	CyclomaticComplexity int
	HasLoop              bool
	HasTry                bool
	BranchSnippets        []string
}

// Node is a single IR entity, exclusively owned by the IRDocument that
// produced it. See spec §3 for the full field contract.
type Node struct {
	ID             string
	Kind           NodeKind
	Name           string // may be empty for anonymous nodes
	FQN            string // may be empty for anonymous nodes
	FilePath       string
	Span           Span
	BodySpan       *Span
	Language       string
	ModulePath     string
	ParentID       string // empty only for the File node (tree root)
	ContentHash    string
	Docstring      string
	Role           string // controller/service/repo/test/util/... heuristic
	IsTestFile     bool
	IsEntryPoint   bool // set by the graph stage's entry-point detection
	SignatureID    string
	DeclaredTypeID string
	ControlFlow    *ControlFlowSummary
	Diagnostics    []string
}

// Edge is a first-class relation between two node ids. TargetID is empty
// when resolution failed (an "unresolved" edge); Attrs["unresolved_name"]
// then carries the identifier that could not be bound.
type Edge struct {
	ID       string
	Kind     EdgeKind
	SourceID string
	TargetID string
	Span     Span
	Attrs    map[string]string
}

// Unresolved reports whether the edge still needs cross-file resolution.
func (e *Edge) Unresolved() bool { return e.TargetID == "" }

// TypeEntity is a single (possibly generic) type reference or declaration.
type TypeEntity struct {
	ID              string
	Raw             string
	ResolvedTarget  string // Node id for user-defined types, empty otherwise
	Flavor          TypeFlavor
	IsNullable      bool
	GenericParamIDs []string
}

// SignatureEntity captures a function-like node's externally-visible
// interface: parameter/return types, visibility, async/static, throws.
type SignatureEntity struct {
	ID               string
	OwnerNodeID      string
	Name             string
	Raw              string
	ParameterTypeIDs []string
	ReturnTypeID     string
	Visibility       string
	IsAsync          bool
	IsStatic         bool
	ThrowsTypeIDs    []string
	SignatureHash    string
}

// IRDocument is the per-file (or per-language-fragment) IR output: one
// File node plus everything reachable from it.
type IRDocument struct {
	RepoID        string
	SnapshotID    string
	SchemaVersion string
	Nodes         []Node
	Edges         []Edge
	Types         []TypeEntity
	Signatures    []SignatureEntity
}

// SchemaVersion is the current IR schema version stamped on every document.
const SchemaVersion = "1"

// NodeByID returns a pointer into doc.Nodes for the given id, or nil.
func (doc *IRDocument) NodeByID(id string) *Node {
	for i := range doc.Nodes {
		if doc.Nodes[i].ID == id {
			return &doc.Nodes[i]
		}
	}
	return nil
}
