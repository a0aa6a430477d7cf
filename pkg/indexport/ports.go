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

// Package indexport defines the three external-collaborator ports named
// in spec §6 — lexical, vector, and symbol indexing — plus concrete
// adapters for the lexical (BleveLexicalIndex) and vector
// (HNSWVectorIndex) ports; no type in the repository implements
// SymbolIndex. The core pipeline (pkg/pipeline) depends only on
// these interfaces; callers wire in an adapter, a stub, or their own
// implementation against a different backend.
package indexport

import "context"

// LexicalPayload is the metadata the lexical indexer carries alongside a
// chunk's content for filtering (spec §6 "(chunk_id, content, {file_path,
// language})").
type LexicalPayload struct {
	FilePath string
	Language string
}

// LexicalHit is one scored match from LexicalIndex.Search.
type LexicalHit struct {
	ChunkID string
	Score   float64
}

// LexicalIndex is the full-text/BM25 search port (spec §6 "Lexical
// indexer").
type LexicalIndex interface {
	Index(ctx context.Context, chunkID, content string, payload LexicalPayload) error
	Search(ctx context.Context, query string, filters LexicalPayload, limit int) ([]LexicalHit, error)
	Delete(ctx context.Context, chunkIDs []string) error
	Close() error
}

// VectorHit is one scored match from VectorIndex.KNN.
type VectorHit struct {
	ChunkID string
	Score   float32
}

// VectorIndex is the nearest-neighbor search port over fixed-dimension
// embeddings (spec §6 "Vector indexer").
type VectorIndex interface {
	Index(ctx context.Context, chunkID string, vector []float32, payload map[string]string) error
	KNN(ctx context.Context, vector []float32, k int, filter map[string]string) ([]VectorHit, error)
	Delete(ctx context.Context, chunkIDs []string) error
	Close() error
}

// SymbolRef is one (chunk, location) result from SymbolIndex lookups.
type SymbolRef struct {
	ChunkID  string
	FQN      string
	Kind     string
	FilePath string
	StartLine int
	EndLine   int
}

// SymbolIndex is the definition/reference/implementation lookup port
// (spec §6 "Symbol indexer").
type SymbolIndex interface {
	Index(ctx context.Context, chunkID, fqn, kind, filePath string, startLine, endLine int) error
	FindDefinition(ctx context.Context, fqn string) ([]SymbolRef, error)
	FindReferences(ctx context.Context, fqn string) ([]SymbolRef, error)
	ImplementationsOf(ctx context.Context, fqn string) ([]SymbolRef, error)
	Delete(ctx context.Context, chunkIDs []string) error
	Close() error
}
