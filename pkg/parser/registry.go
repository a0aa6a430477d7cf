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

// Package parser implements the parser registry (spec §4.1, component
// C1): selecting a language plugin by file extension and producing a
// concrete syntax tree with byte-precise spans.
package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// defaultExtensionLanguages is the fixed extension-to-language table from
// spec §4.1. Callers may override detection one extension at a time with
// Registry.SetLanguageOverride.
var defaultExtensionLanguages = map[string]string{
	".py":   "python",
	".ts":   "typescript",
	".tsx":  "typescript",
	".js":   "javascript",
	".jsx":  "javascript",
	".mjs":  "javascript",
	".java": "java",
	".go":   "go",
	".rs":   "rust",
	".c":    "c",
	".h":    "c",
	".cc":   "cpp",
	".cpp":  "cpp",
	".hpp":  "cpp",
	".kt":   "kotlin",
}

// ParseError is returned when a file fails to parse cleanly. It holds only
// the path and the cause; the best-effort Tree (partial parse, spec §4.1)
// is returned alongside it, and downstream stages treat that tree's ERROR
// nodes as opaque.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UnsupportedLanguageError is returned when no plugin is registered for a
// file's detected or overridden language.
type UnsupportedLanguageError struct {
	Path     string
	Language string
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("unsupported language %q for %s", e.Language, e.Path)
}

// SyntaxTree is the tree API contract exposed by C1 (spec §6 "Parser
// port"): children, byte spans, and node type names, without leaking the
// concrete parser library to callers that only need to read structure.
type SyntaxTree struct {
	Language  string
	Source    []byte
	Root      *sitter.Node
	ErrorCount int // number of ERROR nodes found during parse, 0 if clean
}

// LanguagePlugin produces a concrete syntax tree for one language. A
// plugin instance is safe for concurrent use across files (sitter parser
// handles are internally pooled, see treesitter.go).
type LanguagePlugin interface {
	Language() string
	Parse(ctx context.Context, source []byte) (*sitter.Tree, error)
}

// Registry maps file extensions to languages and languages to plugins. It
// is a value constructed by the caller, not a package-level singleton
// (spec §9), so tests can substitute plugins freely.
type Registry struct {
	extToLang map[string]string
	plugins   map[string]LanguagePlugin
}

// NewRegistry builds a registry pre-populated with every tree-sitter
// backed plugin this engine ships (spec §4.1 extension table).
func NewRegistry() *Registry {
	r := &Registry{
		extToLang: make(map[string]string, len(defaultExtensionLanguages)),
		plugins:   make(map[string]LanguagePlugin),
	}
	for ext, lang := range defaultExtensionLanguages {
		r.extToLang[ext] = lang
	}
	for _, p := range defaultPlugins() {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a plugin for the language it names.
func (r *Registry) Register(p LanguagePlugin) {
	r.plugins[p.Language()] = p
}

// SetLanguageOverride maps the extension ext to lang, replacing any table
// entry for it, so every path with that extension resolves to lang (spec
// §4.1 "callers may override detection").
func (r *Registry) SetLanguageOverride(ext, lang string) {
	r.extToLang[strings.ToLower(ext)] = lang
}

// DetectLanguage maps a path to a language name using the extension
// table, or "" if the extension is unknown.
func (r *Registry) DetectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	return r.extToLang[ext]
}

// Parse selects a plugin by path's extension and parses source. Returns
// *UnsupportedLanguageError for unknown extensions — the caller (C6
// Discovery) treats this as a skip-with-diagnostic, not a pipeline
// failure. A syntax-level failure still returns a best-effort *SyntaxTree
// alongside a *ParseError wrapping the underlying cause.
func (r *Registry) Parse(ctx context.Context, path string, source []byte) (*SyntaxTree, error) {
	lang := r.DetectLanguage(path)
	if lang == "" {
		return nil, &UnsupportedLanguageError{Path: path, Language: ""}
	}
	plugin, ok := r.plugins[lang]
	if !ok {
		return nil, &UnsupportedLanguageError{Path: path, Language: lang}
	}

	tree, err := plugin.Parse(ctx, source)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	root := tree.RootNode()
	errCount := countErrors(root)
	st := &SyntaxTree{Language: lang, Source: source, Root: root, ErrorCount: errCount}
	if errCount > 0 {
		return st, &ParseError{Path: path, Err: fmt.Errorf("%d syntax error node(s)", errCount)}
	}
	return st, nil
}

func countErrors(node *sitter.Node) int {
	if node == nil {
		return 0
	}
	count := 0
	if node.Type() == "ERROR" || node.IsMissing() {
		count++
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		count += countErrors(node.Child(i))
	}
	return count
}
