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

package indexport

import (
	"context"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// bleveDoc is the document bleve indexes: the chunk's content plus its
// file path and language. Search filters on language only; the file path
// is stored but not matched against.
type bleveDoc struct {
	Content  string `json:"content"`
	FilePath string `json:"file_path"`
	Language string `json:"language"`
}

// BleveLexicalIndex implements LexicalIndex over a bleve full-text index
// (spec §6 "Lexical indexer"), adapted from Aman-CERP-amanmcp's
// internal/store/bm25.go BM25 wrapper.
type BleveLexicalIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	closed bool
}

// NewBleveLexicalIndex opens (or creates) a bleve index at path. An empty
// path builds an in-memory index, for tests and dry runs.
func NewBleveLexicalIndex(path string) (*BleveLexicalIndex, error) {
	mapping := bleve.NewIndexMapping()

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(mapping)
	} else {
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, mapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open lexical index: %w", err)
	}
	return &BleveLexicalIndex{index: idx}, nil
}

func (b *BleveLexicalIndex) Index(ctx context.Context, chunkID, content string, payload LexicalPayload) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("lexical index is closed")
	}
	doc := bleveDoc{Content: content, FilePath: payload.FilePath, Language: payload.Language}
	return b.index.Index(chunkID, doc)
}

func (b *BleveLexicalIndex) Search(ctx context.Context, query string, filters LexicalPayload, limit int) ([]LexicalHit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("lexical index is closed")
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("content")
	req := bleve.NewSearchRequest(matchQuery)
	if filters.Language != "" {
		langQuery := bleve.NewMatchQuery(filters.Language)
		langQuery.SetField("language")
		req = bleve.NewSearchRequest(bleve.NewConjunctionQuery(matchQuery, langQuery))
	}
	req.Size = limit
	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	hits := make([]LexicalHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, LexicalHit{ChunkID: hit.ID, Score: hit.Score})
	}
	return hits, nil
}

func (b *BleveLexicalIndex) Delete(ctx context.Context, chunkIDs []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("lexical index is closed")
	}
	batch := b.index.NewBatch()
	for _, id := range chunkIDs {
		batch.Delete(id)
	}
	return b.index.Batch(batch)
}

func (b *BleveLexicalIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}
