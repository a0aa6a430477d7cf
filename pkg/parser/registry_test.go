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

package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_DetectLanguage(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, "go", r.DetectLanguage("pkg/main.go"))
	assert.Equal(t, "python", r.DetectLanguage("pkg/mod.py"))
	assert.Equal(t, "typescript", r.DetectLanguage("src/app.tsx"))
	assert.Equal(t, "", r.DetectLanguage("README.md"), "unknown extension yields no language")
}

func TestRegistry_SetLanguageOverride(t *testing.T) {
	r := NewRegistry()
	r.SetLanguageOverride(".txt", "go")

	assert.Equal(t, "go", r.DetectLanguage("notes.txt"))
}

func TestRegistry_Parse_UnsupportedLanguage(t *testing.T) {
	r := NewRegistry()

	_, err := r.Parse(context.Background(), "notes.txt", []byte("hello"))
	require.Error(t, err)
	var unsupported *UnsupportedLanguageError
	assert.ErrorAs(t, err, &unsupported)
}

func TestRegistry_Parse_CleanGoFile(t *testing.T) {
	r := NewRegistry()

	tree, err := r.Parse(context.Background(), "main.go", []byte("package main\n\nfunc main() {}\n"))
	require.NoError(t, err)
	assert.Equal(t, "go", tree.Language)
	assert.Zero(t, tree.ErrorCount)
	require.NotNil(t, tree.Root)
}

func TestRegistry_Parse_SyntaxErrorStillReturnsTree(t *testing.T) {
	r := NewRegistry()

	tree, err := r.Parse(context.Background(), "main.go", []byte("package main\n\nfunc main( {\n"))
	require.Error(t, err)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.NotNil(t, tree, "a best-effort tree is still returned alongside the error")
	assert.Greater(t, tree.ErrorCount, 0)
}
