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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/semindex/pkg/ir"
)

// buildCalcDoc mirrors spec §8 scenario 1: mypkg/calc.py with
// class Calculator: def add(self, x, y): return x + y
func buildCalcDoc() *ir.IRDocument {
	b := ir.NewBuilder("repo1", "snap1", "mypkg/calc.py")
	fileSpan := ir.Span{StartByte: 0, EndByte: 80, Start: ir.Position{Line: 1, Col: 1}, End: ir.Position{Line: 4, Col: 1}}
	fileID := b.AddNode(ir.Node{
		Kind: ir.KindFile, FQN: "mypkg.calc", FilePath: "mypkg/calc.py",
		Span: fileSpan, Language: "python", ModulePath: "mypkg.calc",
	}, "repo1")

	classSpan := ir.Span{StartByte: 0, EndByte: 80, Start: ir.Position{Line: 1, Col: 1}, End: ir.Position{Line: 4, Col: 1}}
	classID := b.AddNode(ir.Node{
		Kind: ir.KindClass, Name: "Calculator", FQN: "mypkg.calc.Calculator",
		FilePath: "mypkg/calc.py", Span: classSpan, Language: "python",
		ModulePath: "mypkg.calc", ParentID: fileID,
	}, "repo1")
	b.AddContainsEdge(fileID, classID, classSpan)

	methodSpan := ir.Span{StartByte: 20, EndByte: 78, Start: ir.Position{Line: 2, Col: 5}, End: ir.Position{Line: 3, Col: 30}}
	methodID := b.AddNode(ir.Node{
		Kind: ir.KindMethod, Name: "add", FQN: "mypkg.calc.Calculator.add",
		FilePath: "mypkg/calc.py", Span: methodSpan, Language: "python",
		ModulePath: "mypkg.calc", ParentID: classID,
	}, "repo1")
	b.AddContainsEdge(classID, methodID, methodSpan)

	doc := b.Document()
	return &doc
}

func TestBuild_GranularityAndIDs(t *testing.T) {
	doc := buildCalcDoc()
	source := map[string][]byte{
		"mypkg/calc.py": []byte("class Calculator:\n    def add(self, x, y):\n        return x + y\n"),
	}

	set := Build("repo1", "snap1", []*ir.IRDocument{doc}, source)
	require.NotEmpty(t, set.Chunks)

	var fileChunk, classChunk, funcChunk *Chunk
	for i := range set.Chunks {
		switch set.Chunks[i].Level {
		case LevelFile:
			fileChunk = &set.Chunks[i]
		case LevelClass:
			classChunk = &set.Chunks[i]
		case LevelFunction:
			funcChunk = &set.Chunks[i]
		}
	}

	require.NotNil(t, fileChunk)
	require.NotNil(t, classChunk)
	require.NotNil(t, funcChunk)

	assert.Equal(t, "chunk:repo1:function:mypkg.calc.Calculator.add", funcChunk.ChunkID)
	assert.Equal(t, KindLeaf, funcChunk.Kind)
	assert.Equal(t, "chunk:repo1:class:mypkg.calc.Calculator", classChunk.ChunkID)
	assert.Equal(t, KindParent, classChunk.Kind)
	assert.Equal(t, KindParent, fileChunk.Kind)

	// repo and module chunks are present even for a single file.
	var sawModule, sawRepo bool
	for _, c := range set.Chunks {
		if c.Level == LevelModule {
			sawModule = true
		}
		if c.Level == LevelRepo {
			sawRepo = true
		}
	}
	assert.True(t, sawModule)
	assert.True(t, sawRepo)
}

func TestBuild_ChunkIDsUniqueWithinSnapshot(t *testing.T) {
	doc := buildCalcDoc()
	source := map[string][]byte{"mypkg/calc.py": []byte("x")}
	set := Build("repo1", "snap1", []*ir.IRDocument{doc}, source)

	seen := make(map[string]bool)
	for _, c := range set.Chunks {
		assert.False(t, seen[c.ChunkID], "duplicate chunk id %s", c.ChunkID)
		seen[c.ChunkID] = true
	}
}

func TestScoreImportance_NormalizesToMaxOne(t *testing.T) {
	b := ir.NewBuilder("repo1", "snap1", "a.py")
	fileID := b.AddNode(ir.Node{Kind: ir.KindFile, FQN: "a", FilePath: "a.py", ModulePath: "a"}, "repo1")
	fooID := b.AddNode(ir.Node{Kind: ir.KindFunction, Name: "foo", FQN: "a.foo", FilePath: "a.py", ModulePath: "a", ParentID: fileID}, "repo1")
	barID := b.AddNode(ir.Node{Kind: ir.KindFunction, Name: "bar", FQN: "a.bar", FilePath: "a.py", ModulePath: "a", ParentID: fileID}, "repo1")
	b.AddContainsEdge(fileID, fooID, ir.Span{})
	b.AddContainsEdge(fileID, barID, ir.Span{})
	b.AddEdge(ir.EdgeCalls, fooID, barID, ir.Span{}, "", nil)
	b.AddEdge(ir.EdgeCalls, fooID, barID, ir.Span{StartByte: 1}, "", nil)
	doc := b.Document()

	source := map[string][]byte{"a.py": []byte("def foo(): bar()\ndef bar(): pass\n")}
	set := Build("repo1", "snap1", []*ir.IRDocument{&doc}, source)
	set.ScoreImportance([]*ir.IRDocument{&doc}, 0.85)

	var maxImportance float64
	for _, c := range set.Chunks {
		if c.Importance > maxImportance {
			maxImportance = c.Importance
		}
		assert.GreaterOrEqual(t, c.Importance, 0.0)
		assert.LessOrEqual(t, c.Importance, 1.0)
	}
	assert.InDelta(t, 1.0, maxImportance, 1e-9)
}

func TestBuildRepoMap_TreeShape(t *testing.T) {
	doc := buildCalcDoc()
	source := map[string][]byte{"mypkg/calc.py": []byte("class Calculator:\n    def add(self, x, y):\n        return x + y\n")}
	set := Build("repo1", "snap1", []*ir.IRDocument{doc}, source)
	set.ScoreImportance([]*ir.IRDocument{doc}, 0.85)

	root := BuildRepoMap(set)
	require.NotNil(t, root)
	assert.Equal(t, LevelRepo, root.Level)
	require.Len(t, root.Children, 1)
	assert.Equal(t, LevelModule, root.Children[0].Level)
	require.Len(t, root.Children[0].Children, 1)
	assert.Equal(t, LevelFile, root.Children[0].Children[0].Level)
}
