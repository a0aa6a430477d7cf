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

package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeID_Deterministic(t *testing.T) {
	span := Span{StartByte: 10, EndByte: 40, Start: Position{Line: 2, Col: 1}, End: Position{Line: 4, Col: 1}}

	id1 := NodeID("repo1", "pkg/calc.py", KindFunction, "pkg.calc.add", span, "hash1")
	id2 := NodeID("repo1", "pkg/calc.py", KindFunction, "pkg.calc.add", span, "hash1")

	assert.Equal(t, id1, id2)
	assert.True(t, strings.HasPrefix(id1, "node:"))
}

func TestNodeID_DiffersByKind(t *testing.T) {
	span := Span{StartByte: 10, EndByte: 40}

	funcID := NodeID("repo1", "pkg/calc.py", KindFunction, "pkg.calc.add", span, "hash1")
	classID := NodeID("repo1", "pkg/calc.py", KindClass, "pkg.calc.add", span, "hash1")

	assert.NotEqual(t, funcID, classID, "same (repo, path, fqn, span, content) but different kind must be distinct entities")
}

func TestNodeID_DiffersByFilePath(t *testing.T) {
	span := Span{StartByte: 10, EndByte: 40}

	id1 := NodeID("repo1", "pkg/calc.py", KindFunction, "pkg.calc.add", span, "hash1")
	id2 := NodeID("repo1", "pkg/other.py", KindFunction, "pkg.calc.add", span, "hash1")

	assert.NotEqual(t, id1, id2, "a moved file must mint a new id even with identical content")
}

func TestNodeID_DiffersByContentHash(t *testing.T) {
	span := Span{StartByte: 10, EndByte: 40}

	id1 := NodeID("repo1", "pkg/calc.py", KindFunction, "pkg.calc.add", span, "hash1")
	id2 := NodeID("repo1", "pkg/calc.py", KindFunction, "pkg.calc.add", span, "hash2")

	assert.NotEqual(t, id1, id2)
}

func TestNodeID_DiffersBySpan(t *testing.T) {
	span1 := Span{StartByte: 10, EndByte: 40}
	span2 := Span{StartByte: 10, EndByte: 41}

	id1 := NodeID("repo1", "pkg/calc.py", KindFunction, "pkg.calc.add", span1, "hash1")
	id2 := NodeID("repo1", "pkg/calc.py", KindFunction, "pkg.calc.add", span2, "hash1")

	assert.NotEqual(t, id1, id2)
}

func TestContentHash_Deterministic(t *testing.T) {
	src := []byte("def add(x, y):\n    return x + y\n")

	h1 := ContentHash(src)
	h2 := ContentHash(src)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64, "ContentHash is a full hex SHA-256 digest")
}

func TestContentHash_DiffersOnWhitespaceChange(t *testing.T) {
	h1 := ContentHash([]byte("return x + y"))
	h2 := ContentHash([]byte("return x + y "))

	assert.NotEqual(t, h1, h2, "trailing whitespace is part of the hashed content, not trimmed")
}

func TestEdgeID_DeterministicAndDistinctBySpan(t *testing.T) {
	span1 := Span{StartByte: 5, EndByte: 9}
	span2 := Span{StartByte: 20, EndByte: 24}

	id1 := EdgeID(EdgeCalls, "node:a", "node:b", span1)
	id2 := EdgeID(EdgeCalls, "node:a", "node:b", span1)
	id3 := EdgeID(EdgeCalls, "node:a", "node:b", span2)

	assert.Equal(t, id1, id2)
	assert.NotEqual(t, id1, id3, "two calls to the same callee from the same caller at different sites are distinct edges")
}
