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

package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/semindex/pkg/ir"
	"github.com/kraklabs/semindex/pkg/ir/lang"
	"github.com/kraklabs/semindex/pkg/parser"
)

func walkGo(t *testing.T, filePath, source string) ir.IRDocument {
	t.Helper()
	reg := parser.NewRegistry()
	tree, err := reg.Parse(context.Background(), filePath, []byte(source))
	require.NoError(t, err)
	return lang.NewGoWalker().Walk(lang.WalkContext{
		RepoID:   "repo1",
		FilePath: filePath,
		Source:   []byte(source),
		Root:     tree.Root,
	})
}

func findNode(doc *ir.IRDocument, kind ir.NodeKind, name string) *ir.Node {
	for i := range doc.Nodes {
		if doc.Nodes[i].Kind == kind && doc.Nodes[i].Name == name {
			return &doc.Nodes[i]
		}
	}
	return nil
}

// TestResolveDocument_CrossFileCall mirrors spec §8 scenario 3: a call in
// one file to a function declared in a sibling file of the same package
// resolves once the whole-repo Index has ingested both documents.
func TestResolveDocument_CrossFileCall(t *testing.T) {
	utilDoc := walkGo(t, "mypkg/util.go", "package mypkg\n\nfunc Helper() int {\n\treturn 1\n}\n")
	mainDoc := walkGo(t, "mypkg/main.go", "package mypkg\n\nfunc Run() int {\n\treturn Helper()\n}\n")

	helper := findNode(&utilDoc, ir.KindFunction, "Helper")
	run := findNode(&mainDoc, ir.KindFunction, "Run")
	require.NotNil(t, helper)
	require.NotNil(t, run)

	var callEdge *ir.Edge
	for i := range mainDoc.Edges {
		if mainDoc.Edges[i].Kind == ir.EdgeCalls && mainDoc.Edges[i].SourceID == run.ID {
			callEdge = &mainDoc.Edges[i]
		}
	}
	require.NotNil(t, callEdge, "Run should emit a CALLS edge for its call to Helper")
	assert.True(t, callEdge.Unresolved(), "a cross-file callee is unresolved before the index sees both files")

	idx := NewIndex()
	idx.Add(&utilDoc)
	idx.Add(&mainDoc)

	stats := ResolveDocument(idx, &mainDoc)
	assert.Equal(t, 1, stats.Resolved)
	assert.Equal(t, 0, stats.Unresolved)
	assert.Equal(t, helper.ID, callEdge.TargetID)
}

// TestResolveDocument_UnresolvedStaysUnresolved checks a call whose
// callee cannot be found anywhere in the index is left unresolved rather
// than bound to the wrong candidate.
func TestResolveDocument_UnresolvedStaysUnresolved(t *testing.T) {
	mainDoc := walkGo(t, "mypkg/main.go", "package mypkg\n\nfunc Run() int {\n\treturn Missing()\n}\n")

	idx := NewIndex()
	idx.Add(&mainDoc)

	stats := ResolveDocument(idx, &mainDoc)
	assert.Equal(t, 0, stats.Resolved)
	assert.Equal(t, 1, stats.Unresolved)

	for _, e := range mainDoc.Edges {
		if e.Kind == ir.EdgeCalls {
			assert.True(t, e.Unresolved())
			assert.Equal(t, "Missing", e.Attrs["unresolved_name"])
		}
	}
}

// TestResolveDocument_AmbiguousNameStaysUnresolved checks that a same
// simple-name collision across two unrelated modules doesn't get
// arbitrarily bound to one of them.
func TestResolveDocument_AmbiguousNameStaysUnresolved(t *testing.T) {
	docA := walkGo(t, "pkga/a.go", "package pkga\n\nfunc Process() int {\n\treturn 1\n}\n")
	docB := walkGo(t, "pkgb/b.go", "package pkgb\n\nfunc Process() int {\n\treturn 2\n}\n")
	mainDoc := walkGo(t, "pkgc/main.go", "package pkgc\n\nfunc Run() int {\n\treturn Process()\n}\n")

	idx := NewIndex()
	idx.Add(&docA)
	idx.Add(&docB)
	idx.Add(&mainDoc)

	stats := ResolveDocument(idx, &mainDoc)
	assert.Equal(t, 0, stats.Resolved)
	assert.Equal(t, 1, stats.Unresolved)
}
