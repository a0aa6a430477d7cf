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

// Package semantic implements the semantic IR builder (spec §4.3,
// component C3): control-flow graphs and data-flow graphs derived from
// the structural IR that C2 already produced, without re-parsing source.
package semantic

import (
	"fmt"
	"sort"

	"github.com/kraklabs/semindex/pkg/ir"
)

// CFGEdgeKind enumerates control-flow edge kinds between basic blocks.
type CFGEdgeKind string

const (
	CFGTrue          CFGEdgeKind = "TRUE"
	CFGFalse         CFGEdgeKind = "FALSE"
	CFGUnconditional CFGEdgeKind = "UNCONDITIONAL"
	CFGException     CFGEdgeKind = "EXCEPTION"
)

// BasicBlock is a maximal straight-line run of structural nodes within
// one function. Entry and Exit blocks are synthetic (NodeIDs is empty).
type BasicBlock struct {
	ID       string
	Index    int
	NodeIDs  []string
	IsEntry  bool
	IsExit   bool
}

// CFGEdge is one control-flow transition between two blocks of the same CFG.
type CFGEdge struct {
	FromBlock string
	ToBlock   string
	Kind      CFGEdgeKind
}

// CFG is the control-flow graph for one function-like node.
type CFG struct {
	FuncNodeID string
	Blocks     []BasicBlock
	Edges      []CFGEdge
	EntryID    string
	ExitID     string
}

// BlockID formats the deterministic basic-block id used across CFG/DFG.
func BlockID(funcNodeID string, index int) string {
	return fmt.Sprintf("block:%s:%d", funcNodeID, index)
}

// BuildCFG constructs the CFG for funcNodeID from doc's structural IR. It
// orders the function's direct CONTAINS children by source position and
// splits a new block at every Conditional/Loop/TryCatch boundary,
// connecting blocks with TRUE/FALSE branches for conditionals, a single
// UNCONDITIONAL edge for straight-line statements, and an EXCEPTION edge
// from try blocks to the function exit (phase-1: catch/finally bodies are
// not modeled as separate handler blocks).
func BuildCFG(doc *ir.IRDocument, funcNodeID string) *CFG {
	children := directChildren(doc, funcNodeID)
	sort.Slice(children, func(i, j int) bool {
		return children[i].Span.StartByte < children[j].Span.StartByte
	})

	cfg := &CFG{FuncNodeID: funcNodeID}
	entry := BasicBlock{ID: BlockID(funcNodeID, 0), Index: 0, IsEntry: true}
	cfg.Blocks = append(cfg.Blocks, entry)
	cfg.EntryID = entry.ID

	prevID := entry.ID
	blockIdx := 1
	var straightRun []string

	flushStraightRun := func() string {
		if len(straightRun) == 0 {
			return ""
		}
		b := BasicBlock{ID: BlockID(funcNodeID, blockIdx), Index: blockIdx, NodeIDs: straightRun}
		cfg.Blocks = append(cfg.Blocks, b)
		cfg.Edges = append(cfg.Edges, CFGEdge{FromBlock: prevID, ToBlock: b.ID, Kind: CFGUnconditional})
		prevID = b.ID
		blockIdx++
		straightRun = nil
		return b.ID
	}

	for _, child := range children {
		switch child.Kind {
		case ir.KindConditional:
			flushStraightRun()
			condID := BlockID(funcNodeID, blockIdx)
			cfg.Blocks = append(cfg.Blocks, BasicBlock{ID: condID, Index: blockIdx, NodeIDs: []string{child.ID}})
			cfg.Edges = append(cfg.Edges, CFGEdge{FromBlock: prevID, ToBlock: condID, Kind: CFGUnconditional})
			blockIdx++

			thenID := BlockID(funcNodeID, blockIdx)
			cfg.Blocks = append(cfg.Blocks, BasicBlock{ID: thenID, Index: blockIdx})
			cfg.Edges = append(cfg.Edges, CFGEdge{FromBlock: condID, ToBlock: thenID, Kind: CFGTrue})
			blockIdx++

			elseID := BlockID(funcNodeID, blockIdx)
			cfg.Blocks = append(cfg.Blocks, BasicBlock{ID: elseID, Index: blockIdx})
			cfg.Edges = append(cfg.Edges, CFGEdge{FromBlock: condID, ToBlock: elseID, Kind: CFGFalse})
			blockIdx++

			prevID = condID
		case ir.KindLoop:
			flushStraightRun()
			loopID := BlockID(funcNodeID, blockIdx)
			cfg.Blocks = append(cfg.Blocks, BasicBlock{ID: loopID, Index: blockIdx, NodeIDs: []string{child.ID}})
			cfg.Edges = append(cfg.Edges, CFGEdge{FromBlock: prevID, ToBlock: loopID, Kind: CFGUnconditional})
			cfg.Edges = append(cfg.Edges, CFGEdge{FromBlock: loopID, ToBlock: loopID, Kind: CFGTrue})
			blockIdx++
			prevID = loopID
		case ir.KindTryCatch:
			flushStraightRun()
			tryID := BlockID(funcNodeID, blockIdx)
			cfg.Blocks = append(cfg.Blocks, BasicBlock{ID: tryID, Index: blockIdx, NodeIDs: []string{child.ID}})
			cfg.Edges = append(cfg.Edges, CFGEdge{FromBlock: prevID, ToBlock: tryID, Kind: CFGUnconditional})
			blockIdx++
			prevID = tryID
		default:
			straightRun = append(straightRun, child.ID)
		}
	}
	flushStraightRun()

	exit := BasicBlock{ID: BlockID(funcNodeID, blockIdx), Index: blockIdx, IsExit: true}
	cfg.Blocks = append(cfg.Blocks, exit)
	cfg.ExitID = exit.ID
	cfg.Edges = append(cfg.Edges, CFGEdge{FromBlock: prevID, ToBlock: exit.ID, Kind: CFGUnconditional})
	for _, b := range cfg.Blocks {
		if len(b.NodeIDs) == 1 {
			if n := doc.NodeByID(b.NodeIDs[0]); n != nil && n.Kind == ir.KindTryCatch {
				cfg.Edges = append(cfg.Edges, CFGEdge{FromBlock: b.ID, ToBlock: exit.ID, Kind: CFGException})
			}
		}
	}

	return cfg
}

func directChildren(doc *ir.IRDocument, parentID string) []ir.Node {
	var out []ir.Node
	for _, e := range doc.Edges {
		if e.Kind == ir.EdgeContains && e.SourceID == parentID {
			if n := doc.NodeByID(e.TargetID); n != nil {
				out = append(out, *n)
			}
		}
	}
	return out
}
