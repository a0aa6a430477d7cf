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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/semindex/pkg/ir"
	"github.com/kraklabs/semindex/pkg/parser"
)

func walkPySource(t *testing.T, filePath, source string) ir.IRDocument {
	t.Helper()
	reg := parser.NewRegistry()
	tree, err := reg.Parse(context.Background(), filePath, []byte(source))
	require.NoError(t, err)
	return NewPythonWalker().Walk(WalkContext{
		RepoID:   "repo1",
		FilePath: filePath,
		Source:   []byte(source),
		Root:     tree.Root,
	})
}

// TestPythonWalker_ClassMethodFQNs is the single-file end-to-end case: a
// class with one annotated method yields File/Class/Method/Parameter
// nodes with dotted FQNs, a formatted signature, and READS edges for the
// parameters used in the body.
func TestPythonWalker_ClassMethodFQNs(t *testing.T) {
	src := "class Calculator:\n    def add(self, x: int, y: int) -> int:\n        return x + y\n"
	doc := walkPySource(t, "mypkg/calc.py", src)

	file := nodeNamed(doc, ir.KindFile, "mypkg/calc.py")
	require.NotNil(t, file)
	assert.Equal(t, "mypkg.calc", file.FQN)

	cls := nodeNamed(doc, ir.KindClass, "Calculator")
	require.NotNil(t, cls)
	assert.Equal(t, "mypkg.calc.Calculator", cls.FQN)

	add := nodeNamed(doc, ir.KindMethod, "add")
	require.NotNil(t, add)
	assert.Equal(t, "mypkg.calc.Calculator.add", add.FQN)
	assert.Equal(t, cls.ID, add.ParentID)

	var params int
	for i := range doc.Nodes {
		if doc.Nodes[i].Kind == ir.KindParameter && doc.Nodes[i].ParentID == add.ID {
			params++
		}
	}
	assert.Equal(t, 3, params, "self, x, y")

	var sig *ir.SignatureEntity
	for i := range doc.Signatures {
		if doc.Signatures[i].ID == add.SignatureID {
			sig = &doc.Signatures[i]
		}
	}
	require.NotNil(t, sig)
	assert.Equal(t, "def add(self, x: int, y: int) -> int", sig.Raw)

	var reads int
	for _, e := range doc.Edges {
		if e.Kind == ir.EdgeReads && e.SourceID == add.ID {
			reads++
		}
	}
	assert.GreaterOrEqual(t, reads, 2, "x and y are read in the method body")
}

func TestPythonWalker_DecoratorAndRaise(t *testing.T) {
	src := "@app.route\ndef handler(req):\n    \"\"\"Serve one request.\"\"\"\n    raise ValueError(req)\n"
	doc := walkPySource(t, "srv/api.py", src)

	fn := nodeNamed(doc, ir.KindFunction, "handler")
	require.NotNil(t, fn)
	assert.Equal(t, "Serve one request.", fn.Docstring)

	var sawDecorates, sawThrows bool
	for _, e := range doc.Edges {
		switch e.Kind {
		case ir.EdgeDecorates:
			sawDecorates = true
			assert.Equal(t, fn.ID, e.SourceID)
			assert.Equal(t, "app.route", e.Attrs["unresolved_name"])
		case ir.EdgeThrows:
			sawThrows = true
			assert.Equal(t, "ValueError", e.Attrs["unresolved_name"])
		}
	}
	assert.True(t, sawDecorates, "@app.route should record a DECORATES edge")
	assert.True(t, sawThrows, "raise ValueError(...) should record a THROWS edge")
}

func TestPythonWalker_ImportEdge(t *testing.T) {
	doc := walkPySource(t, "b.py", "from a import foo\n\ndef run():\n    return foo()\n")

	var sawImport bool
	for _, e := range doc.Edges {
		if e.Kind == ir.EdgeImports {
			sawImport = true
			assert.Equal(t, "a", e.Attrs["unresolved_name"])
		}
	}
	assert.True(t, sawImport)
}
