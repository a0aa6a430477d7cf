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

import "sort"

// RepoMapNode is one node of the navigable repo->module->file->class->
// function tree (spec §4.5). Summary is template-generated unless an LLM
// summarizer is plugged in as an external collaborator (out of scope
// here; spec §1).
type RepoMapNode struct {
	ChunkID    string
	Level      Level
	Name       string
	Summary    string
	Importance float64
	NodeID     string // originating IR Node id, when the chunk has one
	Children   []*RepoMapNode
}

// BuildRepoMap assembles the RepoMap tree from a finished chunk Set. Call
// after ScoreImportance so Importance is populated on the tree.
func BuildRepoMap(s *Set) *RepoMapNode {
	byID := make(map[string]*Chunk, len(s.Chunks))
	for i := range s.Chunks {
		byID[s.Chunks[i].ChunkID] = &s.Chunks[i]
	}

	var root *Chunk
	for i := range s.Chunks {
		if s.Chunks[i].Level == LevelRepo {
			root = &s.Chunks[i]
			break
		}
	}
	if root == nil {
		return nil
	}
	return buildNode(root, byID)
}

func buildNode(c *Chunk, byID map[string]*Chunk) *RepoMapNode {
	node := &RepoMapNode{
		ChunkID:    c.ChunkID,
		Level:      c.Level,
		Name:       displayName(c),
		Summary:    c.Summary,
		Importance: c.Importance,
		NodeID:     nodeIDOf(c),
	}
	children, _ := c.Attrs["children"].([]string)
	sort.SliceStable(children, func(i, j int) bool {
		ci, cj := byID[children[i]], byID[children[j]]
		if ci == nil || cj == nil {
			return false
		}
		return ci.Importance > cj.Importance
	})
	for _, childID := range children {
		if cc, ok := byID[childID]; ok {
			node.Children = append(node.Children, buildNode(cc, byID))
		}
	}
	return node
}

func displayName(c *Chunk) string {
	if c.FQN != "" {
		return c.FQN
	}
	return c.FilePath
}

func nodeIDOf(c *Chunk) string {
	if v, ok := c.Attrs["node_id"].(string); ok {
		return v
	}
	return ""
}

// Flatten walks the tree and returns every node in pre-order, useful for
// callers that want a bounded-depth slice of the map rather than the tree
// shape itself.
func Flatten(root *RepoMapNode) []*RepoMapNode {
	if root == nil {
		return nil
	}
	out := []*RepoMapNode{root}
	for _, c := range root.Children {
		out = append(out, Flatten(c)...)
	}
	return out
}
