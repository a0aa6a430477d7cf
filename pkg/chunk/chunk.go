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

// Package chunk implements the chunk and repo-map builder (spec §4.5,
// component C5): deriving a hierarchical chunk set from a repository's
// IRDocuments, assigning chunk-to-graph membership, scoring importance
// via damped-random-walk centrality, and summarizing the tree for
// navigation.
package chunk

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kraklabs/semindex/pkg/ir"
)

// Kind distinguishes a chunk that wraps one function/method body (leaf)
// from one that aggregates children (parent).
type Kind string

const (
	KindLeaf   Kind = "leaf"
	KindParent Kind = "parent"
)

// Level is the chunk granularity, from spec §4.5.
type Level string

const (
	LevelFunction Level = "function"
	LevelClass    Level = "class"
	LevelModule   Level = "module"
	LevelFile     Level = "file"
	LevelRepo     Level = "repo"
)

// Chunk is a retrieval-oriented view of one region of source, per spec §3.
type Chunk struct {
	ChunkID     string
	SnapshotID  string
	FilePath    string
	StartLine   int
	EndLine     int
	Kind        Kind
	Level       Level
	FQN         string
	Language    string
	Content     string
	ContentHash string
	Summary     string
	Importance  float64
	IsDeleted   bool
	Attrs       map[string]any
}

// Dependency is a chunk-level edge persisted alongside chunks (spec §3).
type Dependency struct {
	ID           string
	FromChunkID  string
	ToChunkID    string
	Relationship string
	Confidence   float64
}

// Set is the full chunk-layer output for one snapshot: the chunks, their
// dependencies, and the node->chunk membership used to map graph
// centrality onto chunks and to answer "which chunk contains this IR node"
// queries.
type Set struct {
	Chunks       []Chunk
	Dependencies []Dependency

	// NodeChunk maps every IR node id to the id of the smallest chunk
	// whose span contains it (its enclosing function, else class, else
	// file chunk).
	NodeChunk map[string]string
}

// dependencyEdgeKinds is the CALLS/IMPORTS/INHERITS/IMPLEMENTS/DATA_FLOW
// subset of edge kinds that survive into the chunk-level Dependency graph
// (spec §3 Dependency.relationship enumeration).
var dependencyEdgeKinds = map[ir.EdgeKind]bool{
	ir.EdgeCalls:      true,
	ir.EdgeImports:    true,
	ir.EdgeInherits:   true,
	ir.EdgeImplements: true,
	ir.EdgeDataFlow:   true,
}

// Build derives the full chunk set for a snapshot from every file's
// IRDocument. docs must already have had cross-file edge resolution
// (component C4) applied, since Dependency edges look at Edge.TargetID.
// source maps each file_path to its raw bytes, used to slice leaf chunk
// content by byte span (spec §4.2 "content hashing": byte-reconstructible).
func Build(repoID, snapshotID string, docs []*ir.IRDocument, source map[string][]byte) *Set {
	s := &Set{NodeChunk: make(map[string]string)}

	idCounts := make(map[string]int)
	nextID := func(level Level, fqn string, start, end int) string {
		base := fmt.Sprintf("chunk:%s:%s:%s", repoID, level, fqn)
		idCounts[base]++
		if idCounts[base] == 1 {
			return base
		}
		// Overload collision: disambiguate with the line range (spec §3).
		return fmt.Sprintf("%s:L%d-%d", base, start, end)
	}

	type fileAgg struct {
		chunkID     string
		modulePath  string
		funcIDs     []string
		classIDs    []string
		funcSumms   []string
	}
	files := make(map[string]*fileAgg) // file_path -> agg
	moduleFiles := make(map[string][]string) // module_path -> file chunk ids

	nodeByID := make(map[string]*ir.Node)
	parentOf := make(map[string]string)
	for _, doc := range docs {
		for i := range doc.Nodes {
			n := &doc.Nodes[i]
			nodeByID[n.ID] = n
			parentOf[n.ID] = n.ParentID
		}
	}

	// Pass 1: File chunks.
	for _, doc := range docs {
		var fileNode *ir.Node
		for i := range doc.Nodes {
			if doc.Nodes[i].Kind == ir.KindFile {
				fileNode = &doc.Nodes[i]
				break
			}
		}
		if fileNode == nil {
			continue
		}
		id := nextID(LevelFile, fileNode.FQN, fileNode.Span.Start.Line, fileNode.Span.End.Line)
		c := Chunk{
			ChunkID:     id,
			SnapshotID:  snapshotID,
			FilePath:    fileNode.FilePath,
			StartLine:   fileNode.Span.Start.Line,
			EndLine:     fileNode.Span.End.Line,
			Kind:        KindParent,
			Level:       LevelFile,
			FQN:         fileNode.FQN,
			Language:    fileNode.Language,
			ContentHash: fileNode.ContentHash,
			Attrs:       map[string]any{},
		}
		s.Chunks = append(s.Chunks, c)
		s.NodeChunk[fileNode.ID] = id
		files[fileNode.FilePath] = &fileAgg{chunkID: id, modulePath: fileNode.ModulePath}
		moduleFiles[fileNode.ModulePath] = append(moduleFiles[fileNode.ModulePath], id)
	}

	// Pass 2: leaf (function/method) and class/interface/enum parent chunks.
	classChunks := make(map[string]int) // node id -> index into s.Chunks
	for _, doc := range docs {
		sigByID := make(map[string]*ir.SignatureEntity, len(doc.Signatures))
		for i := range doc.Signatures {
			sigByID[doc.Signatures[i].ID] = &doc.Signatures[i]
		}
		for i := range doc.Nodes {
			n := &doc.Nodes[i]
			switch n.Kind {
			case ir.KindFunction, ir.KindMethod:
				src := source[n.FilePath]
				content := sliceSpan(src, n.Span)
				id := nextID(LevelFunction, n.FQN, n.Span.Start.Line, n.Span.End.Line)
				attrs := map[string]any{"node_id": n.ID, "docstring": n.Docstring}
				// signature_hash rides along on the chunk so compare_snapshots
				// (spec §4.7) can detect interface changes without a
				// separate SignatureEntity persistence contract.
				if n.SignatureID != "" {
					if sig := sigByID[n.SignatureID]; sig != nil {
						attrs["signature_hash"] = sig.SignatureHash
					}
				}
				c := Chunk{
					ChunkID:     id,
					SnapshotID:  snapshotID,
					FilePath:    n.FilePath,
					StartLine:   n.Span.Start.Line,
					EndLine:     n.Span.End.Line,
					Kind:        KindLeaf,
					Level:       LevelFunction,
					FQN:         n.FQN,
					Language:    n.Language,
					Content:     content,
					ContentHash: n.ContentHash,
					Summary:     functionSummary(n),
					Attrs:       attrs,
				}
				s.Chunks = append(s.Chunks, c)
				s.NodeChunk[n.ID] = id
				if agg := files[n.FilePath]; agg != nil {
					agg.funcIDs = append(agg.funcIDs, id)
					agg.funcSumms = append(agg.funcSumms, c.Summary)
				}
			case ir.KindClass, ir.KindInterface, ir.KindEnum:
				id := nextID(LevelClass, n.FQN, n.Span.Start.Line, n.Span.End.Line)
				c := Chunk{
					ChunkID:     id,
					SnapshotID:  snapshotID,
					FilePath:    n.FilePath,
					StartLine:   n.Span.Start.Line,
					EndLine:     n.Span.End.Line,
					Kind:        KindParent,
					Level:       LevelClass,
					FQN:         n.FQN,
					Language:    n.Language,
					ContentHash: n.ContentHash,
					Attrs:       map[string]any{"node_id": n.ID, "docstring": n.Docstring},
				}
				s.Chunks = append(s.Chunks, c)
				s.NodeChunk[n.ID] = id
				classChunks[n.ID] = len(s.Chunks) - 1
				if agg := files[n.FilePath]; agg != nil {
					agg.classIDs = append(agg.classIDs, id)
				}
			}
		}
	}

	// Pass 3: assign every remaining node (blocks, variables, parameters,
	// imports, ...) to the nearest ancestor chunk by walking ParentID.
	for _, doc := range docs {
		for i := range doc.Nodes {
			n := &doc.Nodes[i]
			if _, ok := s.NodeChunk[n.ID]; ok {
				continue
			}
			cur := n.ParentID
			for cur != "" {
				if cid, ok := s.NodeChunk[cur]; ok {
					s.NodeChunk[n.ID] = cid
					break
				}
				cur = parentOf[cur]
			}
		}
	}

	// Pass 3b: attach class members (methods) to their class chunk's
	// children attr, and class chunk content as concatenated member
	// summaries (spec §4.5 "bounded excerpt").
	for nodeID, idx := range classChunks {
		n := nodeByID[nodeID]
		var memberSumms []string
		var memberIDs []string
		for _, doc := range docs {
			for j := range doc.Nodes {
				m := &doc.Nodes[j]
				if m.ParentID == nodeID && (m.Kind == ir.KindMethod || m.Kind == ir.KindFunction) {
					if cid, ok := s.NodeChunk[m.ID]; ok {
						memberIDs = append(memberIDs, cid)
						memberSumms = append(memberSumms, functionSummary(m))
					}
				}
			}
		}
		s.Chunks[idx].Attrs["children"] = memberIDs
		s.Chunks[idx].Summary = classSummary(n, len(memberIDs))
		s.Chunks[idx].Content = boundedJoin(memberSumms, 4000)
	}

	// Pass 4: file chunk content/summary from member function/class summaries.
	for path, agg := range files {
		idx := chunkIndexByID(s.Chunks, agg.chunkID)
		if idx < 0 {
			continue
		}
		s.Chunks[idx].Attrs["children"] = append(append([]string{}, agg.classIDs...), agg.funcIDs...)
		s.Chunks[idx].Summary = fileSummary(path, len(agg.classIDs), len(agg.funcIDs))
		s.Chunks[idx].Content = boundedJoin(agg.funcSumms, 4000)
	}

	// Pass 5: module parent chunks, one per distinct module path.
	modulePaths := sortedKeys(moduleFiles)
	for _, mp := range modulePaths {
		fileIDs := moduleFiles[mp]
		id := nextID(LevelModule, mp, 0, 0)
		var summs []string
		for _, fid := range fileIDs {
			if idx := chunkIndexByID(s.Chunks, fid); idx >= 0 {
				summs = append(summs, s.Chunks[idx].Summary)
			}
		}
		c := Chunk{
			ChunkID:    id,
			SnapshotID: snapshotID,
			FQN:        mp,
			Kind:       KindParent,
			Level:      LevelModule,
			Summary:    fmt.Sprintf("module %s spans %d files", orRoot(mp), len(fileIDs)),
			Content:    boundedJoin(summs, 4000),
			Attrs:      map[string]any{"children": fileIDs},
		}
		s.Chunks = append(s.Chunks, c)
	}

	// Pass 6: one repo root chunk.
	var moduleChunkIDs []string
	for i := range s.Chunks {
		if s.Chunks[i].Level == LevelModule {
			moduleChunkIDs = append(moduleChunkIDs, s.Chunks[i].ChunkID)
		}
	}
	repoID2 := nextID(LevelRepo, repoID, 0, 0)
	s.Chunks = append(s.Chunks, Chunk{
		ChunkID:    repoID2,
		SnapshotID: snapshotID,
		FQN:        repoID,
		Kind:       KindParent,
		Level:      LevelRepo,
		Summary:    fmt.Sprintf("repository %s defines %d modules across %d files", repoID, len(modulePaths), len(files)),
		Attrs:      map[string]any{"children": moduleChunkIDs},
	})

	// Dependencies: edges between chunk-owning nodes.
	seenDep := make(map[string]bool)
	for _, doc := range docs {
		for _, e := range doc.Edges {
			if !dependencyEdgeKinds[e.Kind] || e.TargetID == "" || e.SourceID == "" {
				continue
			}
			from, fromOK := s.NodeChunk[e.SourceID]
			to, toOK := s.NodeChunk[e.TargetID]
			if !fromOK || !toOK || from == to {
				continue
			}
			key := from + "|" + to + "|" + string(e.Kind)
			if seenDep[key] {
				continue
			}
			seenDep[key] = true
			s.Dependencies = append(s.Dependencies, Dependency{
				ID:           fmt.Sprintf("dep:%s", key),
				FromChunkID:  from,
				ToChunkID:    to,
				Relationship: string(e.Kind),
				Confidence:   1.0,
			})
		}
	}

	return s
}

func chunkIndexByID(chunks []Chunk, id string) int {
	for i := range chunks {
		if chunks[i].ChunkID == id {
			return i
		}
	}
	return -1
}

func sliceSpan(src []byte, span ir.Span) string {
	if src == nil || span.StartByte < 0 || span.EndByte > len(src) || span.StartByte > span.EndByte {
		return ""
	}
	return string(src[span.StartByte:span.EndByte])
}

func functionSummary(n *ir.Node) string {
	if n.Docstring != "" {
		first := n.Docstring
		if idx := strings.IndexByte(first, '\n'); idx >= 0 {
			first = first[:idx]
		}
		return fmt.Sprintf("%s: %s", n.Name, strings.TrimSpace(first))
	}
	return fmt.Sprintf("function %s", n.Name)
}

func classSummary(n *ir.Node, memberCount int) string {
	name := "<anonymous>"
	if n != nil {
		name = n.Name
	}
	return fmt.Sprintf("class %s defines %d methods", name, memberCount)
}

func fileSummary(path string, classCount, funcCount int) string {
	return fmt.Sprintf("file %s defines %d classes and %d functions", path, classCount, funcCount)
}

func boundedJoin(parts []string, maxBytes int) string {
	var b strings.Builder
	for _, p := range parts {
		if b.Len()+len(p)+1 > maxBytes {
			break
		}
		b.WriteString(p)
		b.WriteByte('\n')
	}
	return b.String()
}

func orRoot(modulePath string) string {
	if modulePath == "" {
		return "<root>"
	}
	return modulePath
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
