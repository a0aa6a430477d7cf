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

package semantic

import (
	"fmt"
	"sort"

	"github.com/kraklabs/semindex/pkg/ir"
)

// VariableEventKind distinguishes a read of a variable's current value
// from a write that introduces a new value.
type VariableEventKind string

const (
	EventRead  VariableEventKind = "read"
	EventWrite VariableEventKind = "write"
)

// VariableEntity is one (name, declaring block) binding within a
// function. shadow_cnt disambiguates repeated declarations of the same
// name in nested scopes of the same function (spec §4.3 id scheme).
type VariableEntity struct {
	ID         string
	FuncFQN    string
	Name       string
	BlockIdx   int
	ShadowCnt  int
	DeclNodeID string
}

// VariableEventEntity records one read or write of a VariableEntity at a
// structural node's position.
type VariableEventEntity struct {
	VariableID string
	Kind       VariableEventKind
	NodeID     string
}

// DataFlowEdgeKind enumerates DATA_FLOW edge sub-kinds (spec §4.3).
type DataFlowEdgeKind string

const (
	FlowAlias      DataFlowEdgeKind = "alias"
	FlowAssign     DataFlowEdgeKind = "assign"
	FlowParamToArg DataFlowEdgeKind = "param_to_arg"
	FlowReturnValue DataFlowEdgeKind = "return_value"
)

// DataFlowEdge connects two VariableEntity ids (or a VariableEntity to a
// call-site Edge id, for param_to_arg/return_value).
type DataFlowEdge struct {
	Kind     DataFlowEdgeKind
	SourceID string
	TargetID string
}

// DFG is the data-flow graph for one function-like node.
type DFG struct {
	FuncNodeID string
	Variables  []VariableEntity
	Events     []VariableEventEntity
	Edges      []DataFlowEdge
}

// VariableID computes the deterministic VariableEntity id (spec §4.3):
// var:{repo_id}:{file_path}:{func_fqn}:{name}@{block_idx}:{shadow_cnt}.
func VariableID(repoID, filePath, funcFQN, name string, blockIdx, shadowCnt int) string {
	return fmt.Sprintf("var:%s:%s:%s:%s@%d:%d", repoID, filePath, funcFQN, name, blockIdx, shadowCnt)
}

// BuildDFG constructs the DFG for funcNodeID, layered on the CFG per spec
// §4.3. It consumes the READS/WRITES edges the language walker already
// recorded against funcNodeID (§4.2 item 4, "for every name reference...
// emit an appropriate edge") and resolves each read in a single
// source-order pass: the most recent write to a name anywhere earlier in
// the function is treated as the value a later read sees. This is the
// §4.3 "prefer the most recent write" rule without the multi-path CFG
// join it also describes — a write made in only one branch of a
// conditional is still visible to a read after the branches rejoin,
// rather than the read producing one DataFlowEdge per predecessor
// branch. A read with no visible prior write introduces a fresh local,
// per the spec's own phase-1 simplification.
func BuildDFG(doc *ir.IRDocument, funcNodeID string) *DFG {
	fn := doc.NodeByID(funcNodeID)
	if fn == nil {
		return &DFG{FuncNodeID: funcNodeID}
	}
	cfg := BuildCFG(doc, funcNodeID)
	dfg := &DFG{FuncNodeID: funcNodeID}

	shadowCount := make(map[string]int)
	lastWrite := make(map[string]string)  // name -> current VariableEntity id
	nodeToVar := make(map[string]string)  // declaring ir.Node id -> VariableEntity id
	returnVarID := ""

	declare := func(name, declNodeID string, blockIdx int) string {
		idx := shadowCount[name]
		id := VariableID(doc.RepoID, fn.FilePath, fn.FQN, name, blockIdx, idx)
		shadowCount[name] = idx + 1
		dfg.Variables = append(dfg.Variables, VariableEntity{
			ID: id, FuncFQN: fn.FQN, Name: name, BlockIdx: blockIdx, ShadowCnt: idx, DeclNodeID: declNodeID,
		})
		lastWrite[name] = id
		if declNodeID != "" {
			nodeToVar[declNodeID] = id
		}
		return id
	}

	ensureReturnVar := func(blockIdx int) string {
		if returnVarID == "" {
			returnVarID = declare("$return", "", blockIdx)
		}
		return returnVarID
	}

	for _, child := range directChildren(doc, funcNodeID) {
		if child.Kind == ir.KindParameter {
			id := declare(child.Name, child.ID, 0)
			dfg.Events = append(dfg.Events, VariableEventEntity{VariableID: id, Kind: EventWrite, NodeID: child.ID})
		}
	}

	var siteEdges []ir.Edge
	for _, e := range doc.Edges {
		if e.SourceID != funcNodeID {
			continue
		}
		if e.Kind == ir.EdgeReads || e.Kind == ir.EdgeWrites || e.Kind == ir.EdgeCalls {
			siteEdges = append(siteEdges, e)
		}
	}
	sort.SliceStable(siteEdges, func(i, j int) bool { return siteEdges[i].Span.StartByte < siteEdges[j].Span.StartByte })

	for _, e := range siteEdges {
		blockIdx := nodeBlockIndex(cfg, doc, e.Span.StartByte)

		switch e.Kind {
		case ir.EdgeWrites:
			if e.TargetID == "" {
				// Write to an unresolved (module-global/external) name: out
				// of DFG's scope, which only models variables local to
				// this function (spec §4.3 invariant).
				continue
			}
			name := variableNodeName(doc, e.TargetID)
			var varID string
			if e.Attrs["decl"] == "true" {
				varID = declare(name, e.TargetID, blockIdx)
			} else if existing, ok := nodeToVar[e.TargetID]; ok {
				varID = existing
				lastWrite[name] = varID
			} else {
				varID = declare(name, e.TargetID, blockIdx)
			}
			dfg.Events = append(dfg.Events, VariableEventEntity{VariableID: varID, Kind: EventWrite, NodeID: e.TargetID})

			if rhsKind := e.Attrs["rhs_kind"]; rhsKind != "" {
				if rhsName := e.Attrs["rhs_name"]; rhsName != "" {
					if srcVar, ok := lastWrite[rhsName]; ok {
						kind := FlowAssign
						if rhsKind == "identifier" {
							kind = FlowAlias
						}
						dfg.Edges = append(dfg.Edges, DataFlowEdge{Kind: kind, SourceID: srcVar, TargetID: varID})
					}
				}
			}

		case ir.EdgeReads:
			name := e.Attrs["unresolved_name"]
			if e.TargetID != "" {
				name = variableNodeName(doc, e.TargetID)
			}
			if name == "" {
				continue
			}
			varID, ok := lastWrite[name]
			if !ok {
				varID = declare(name, e.TargetID, blockIdx)
			}
			eventNodeID := e.TargetID
			if eventNodeID == "" {
				eventNodeID = funcNodeID
			}
			dfg.Events = append(dfg.Events, VariableEventEntity{VariableID: varID, Kind: EventRead, NodeID: eventNodeID})

			if e.Attrs["returns"] == "true" {
				dfg.Edges = append(dfg.Edges, DataFlowEdge{
					Kind: FlowReturnValue, SourceID: varID, TargetID: ensureReturnVar(blockIdx),
				})
			}

		case ir.EdgeCalls:
			if e.TargetID == "" {
				continue
			}
			callee := doc.NodeByID(e.TargetID)
			if callee == nil {
				continue
			}
			// param_to_arg is "caller arg -> callee formal" (spec §4.3):
			// the walker records each positional bare-identifier argument
			// as argN on the CALLS edge, and the formal it feeds is the
			// callee's same-index parameter. The target is the callee's
			// VariableEntity id for that parameter's initial binding
			// (block 0, shadow 0 — what the callee's own BuildDFG
			// declares for it), keeping both endpoints in the variable
			// id space.
			calleeParams := paramNodes(doc, e.TargetID)
			for i, p := range calleeParams {
				argName := e.Attrs[fmt.Sprintf("arg%d", i)]
				if argName == "" {
					continue // non-identifier argument, or fewer args than formals
				}
				srcVar, ok := lastWrite[argName]
				if !ok {
					continue
				}
				dfg.Edges = append(dfg.Edges, DataFlowEdge{
					Kind:     FlowParamToArg,
					SourceID: srcVar,
					TargetID: VariableID(doc.RepoID, callee.FilePath, callee.FQN, p.Name, 0, 0),
				})
			}
		}
	}

	return dfg
}

// variableNodeName looks up a Parameter/Variable Node's declared name,
// tolerating a missing id (returns "").
func variableNodeName(doc *ir.IRDocument, nodeID string) string {
	if n := doc.NodeByID(nodeID); n != nil {
		return n.Name
	}
	return ""
}

// nodeBlockIndex maps a byte position to the CFG basic block that
// contains it: the block owning the direct-child node whose span covers
// pos, or — for positions with no covering structural node (a plain
// reassignment creates no new Node) — the block of the nearest preceding
// direct-child node.
func nodeBlockIndex(cfg *CFG, doc *ir.IRDocument, pos int) int {
	bestBlock, bestStart := 0, -1
	for _, blk := range cfg.Blocks {
		for _, nid := range blk.NodeIDs {
			n := doc.NodeByID(nid)
			if n == nil {
				continue
			}
			if n.Span.StartByte <= pos && pos < n.Span.EndByte {
				return blk.Index
			}
			if n.Span.EndByte <= pos && n.Span.StartByte > bestStart {
				bestStart = n.Span.StartByte
				bestBlock = blk.Index
			}
		}
	}
	return bestBlock
}

func paramNodes(doc *ir.IRDocument, funcNodeID string) []ir.Node {
	var out []ir.Node
	for _, c := range directChildren(doc, funcNodeID) {
		if c.Kind == ir.KindParameter {
			out = append(out, c)
		}
	}
	return out
}
