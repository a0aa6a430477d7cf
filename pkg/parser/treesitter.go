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
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/kotlin"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// pooledPlugin parses with a sync.Pool of *sitter.Parser, one pool per
// language, so concurrent per-file fan-out (spec §5) never shares a
// parser handle across goroutines. Mirrors the pooling strategy the
// teacher's own tree-sitter parser plugins used.
type pooledPlugin struct {
	lang string
	pool sync.Pool
}

func newPooledPlugin(lang string, getLanguage func() *sitter.Language) *pooledPlugin {
	return &pooledPlugin{
		lang: lang,
		pool: sync.Pool{
			New: func() interface{} {
				p := sitter.NewParser()
				p.SetLanguage(getLanguage())
				return p
			},
		},
	}
}

func (p *pooledPlugin) Language() string { return p.lang }

func (p *pooledPlugin) Parse(ctx context.Context, source []byte) (*sitter.Tree, error) {
	parser := p.pool.Get().(*sitter.Parser)
	defer p.pool.Put(parser)
	return parser.ParseCtx(ctx, nil, source)
}

// defaultPlugins returns one pooled plugin per language this engine ships
// tree-sitter grammars for (spec §4.1: go, python, javascript, typescript
// at full depth; java, rust, c, cpp, kotlin at reduced depth).
func defaultPlugins() []LanguagePlugin {
	return []LanguagePlugin{
		newPooledPlugin("go", golang.GetLanguage),
		newPooledPlugin("python", python.GetLanguage),
		newPooledPlugin("javascript", javascript.GetLanguage),
		newPooledPlugin("typescript", typescript.GetLanguage),
		newPooledPlugin("java", java.GetLanguage),
		newPooledPlugin("rust", rust.GetLanguage),
		newPooledPlugin("c", c.GetLanguage),
		newPooledPlugin("cpp", cpp.GetLanguage),
		newPooledPlugin("kotlin", kotlin.GetLanguage),
	}
}

// NodeText extracts the source text covered by node's byte span. The
// language walkers in pkg/ir/lang read node text with their own nodeText
// helper rather than this one.
func NodeText(source []byte, n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(source[n.StartByte():n.EndByte()])
}

// NodeSpan builds an ir-independent Span tuple (byte offsets plus
// 1-indexed line/column) for a node without pkg/parser importing pkg/ir.
// The walkers in pkg/ir/lang build their ir.Span with their own toSpan
// helper rather than this one.
func NodeSpan(n *sitter.Node) (startByte, endByte, startLine, startCol, endLine, endCol int) {
	startByte = int(n.StartByte())
	endByte = int(n.EndByte())
	sp := n.StartPoint()
	ep := n.EndPoint()
	startLine = int(sp.Row) + 1
	startCol = int(sp.Column) + 1
	endLine = int(ep.Row) + 1
	endCol = int(ep.Column) + 1
	return
}
