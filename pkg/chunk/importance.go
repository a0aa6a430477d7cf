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

package chunk

import (
	"math"
	"sort"

	"github.com/kraklabs/semindex/pkg/ir"
)

// importanceEdgeKinds restricts the centrality walk to CALLS/IMPORTS/
// INHERITS/IMPLEMENTS (spec §4.5); DATA_FLOW and structural CONTAINS
// edges are excluded so centrality reflects "is this symbol depended
// on", not "does this symbol contain a lot of code".
var importanceEdgeKinds = map[ir.EdgeKind]bool{
	ir.EdgeCalls:      true,
	ir.EdgeImports:    true,
	ir.EdgeInherits:   true,
	ir.EdgeImplements: true,
}

const (
	defaultDamping   = 0.85
	maxIterations    = 100
	residualTarget   = 1e-6
)

// ScoreImportance runs a damped power iteration over the node graph
// restricted to importanceEdgeKinds (spec §4.5: "damped random walk with
// damping factor 0.85, uniform teleport vector, at most 100 iterations or
// L1 residual below 1e-6"), then assigns each chunk the max score among
// the nodes it owns (from Set.NodeChunk), propagated up from leaf/class
// chunks to file/module/repo parents, and finally normalizes per-snapshot
// so the maximum chunk importance is 1.
func (s *Set) ScoreImportance(docs []*ir.IRDocument, damping float64) {
	if damping <= 0 || damping >= 1 {
		damping = defaultDamping
	}

	nodeIDs := make([]string, 0)
	index := make(map[string]int)
	outEdges := make(map[string][]string) // source -> targets, filtered kinds

	addNode := func(id string) {
		if _, ok := index[id]; !ok {
			index[id] = len(nodeIDs)
			nodeIDs = append(nodeIDs, id)
		}
	}
	for _, doc := range docs {
		for i := range doc.Nodes {
			addNode(doc.Nodes[i].ID)
		}
	}
	for _, doc := range docs {
		for _, e := range doc.Edges {
			if !importanceEdgeKinds[e.Kind] || e.TargetID == "" || e.SourceID == "" {
				continue
			}
			outEdges[e.SourceID] = append(outEdges[e.SourceID], e.TargetID)
		}
	}

	n := len(nodeIDs)
	if n == 0 {
		return
	}
	scores := make([]float64, n)
	uniform := 1.0 / float64(n)
	for i := range scores {
		scores[i] = uniform
	}

	outDegree := make([]int, n)
	for i, id := range nodeIDs {
		outDegree[i] = len(outEdges[id])
	}

	for iter := 0; iter < maxIterations; iter++ {
		next := make([]float64, n)
		var dangling float64
		for i := range nodeIDs {
			if outDegree[i] == 0 {
				dangling += scores[i]
			}
		}
		base := (1-damping)*uniform + damping*dangling*uniform

		for i := range next {
			next[i] = base
		}
		for i, id := range nodeIDs {
			if outDegree[i] == 0 {
				continue
			}
			share := damping * scores[i] / float64(outDegree[i])
			for _, tgt := range outEdges[id] {
				if ti, ok := index[tgt]; ok {
					next[ti] += share
				}
			}
		}

		var residual float64
		for i := range scores {
			residual += math.Abs(next[i] - scores[i])
		}
		scores = next
		if residual < residualTarget {
			break
		}
	}

	nodeScore := make(map[string]float64, n)
	for i, id := range nodeIDs {
		nodeScore[id] = scores[i]
	}

	chunkScore := make(map[string]float64)
	for nodeID, chunkID := range s.NodeChunk {
		if sc, ok := nodeScore[nodeID]; ok && sc > chunkScore[chunkID] {
			chunkScore[chunkID] = sc
		}
	}

	// Propagate parent chunk scores bottom-up: file >= max(class,function
	// children), module >= max(file children), repo >= max(module children).
	byLevel := map[Level][]int{}
	for i := range s.Chunks {
		byLevel[s.Chunks[i].Level] = append(byLevel[s.Chunks[i].Level], i)
	}
	order := []Level{LevelFunction, LevelClass, LevelFile, LevelModule, LevelRepo}
	idx := make(map[string]int, len(s.Chunks))
	for i := range s.Chunks {
		idx[s.Chunks[i].ChunkID] = i
	}
	for _, lvl := range order {
		for _, i := range byLevel[lvl] {
			c := &s.Chunks[i]
			children, _ := c.Attrs["children"].([]string)
			for _, childID := range children {
				if ci, ok := idx[childID]; ok {
					if sc := chunkScore[s.Chunks[ci].ChunkID]; sc > chunkScore[c.ChunkID] {
						chunkScore[c.ChunkID] = sc
					}
				}
			}
		}
	}

	var maxScore float64
	for _, v := range chunkScore {
		if v > maxScore {
			maxScore = v
		}
	}
	if maxScore <= 0 {
		maxScore = 1
	}
	for i := range s.Chunks {
		s.Chunks[i].Importance = chunkScore[s.Chunks[i].ChunkID] / maxScore
	}
}

// TopByImportance returns up to k chunks sorted by descending importance,
// a convenience used by the RepoMap builder and by external callers that
// want a quick "most central symbols" view without walking the full tree.
func (s *Set) TopByImportance(k int) []Chunk {
	out := make([]Chunk, len(s.Chunks))
	copy(out, s.Chunks)
	sort.Slice(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	if k >= 0 && k < len(out) {
		out = out[:k]
	}
	return out
}
