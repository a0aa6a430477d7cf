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
	"math"
	"sync"

	"github.com/coder/hnsw"
)

// ErrDimensionMismatch is returned when a vector's length doesn't match
// the dimension the index was opened with (spec §6 "D is fixed per
// deployment").
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// HNSWVectorIndex implements VectorIndex over coder/hnsw's pure-Go graph
// (spec §6 "Vector indexer"), adapted from Aman-CERP-amanmcp's
// internal/store/hnsw.go.
type HNSWVectorIndex struct {
	mu         sync.RWMutex
	graph      *hnsw.Graph[uint64]
	dimensions int

	idMap   map[string]uint64
	keyMap  map[uint64]string
	payload map[uint64]map[string]string
	nextKey uint64

	closed bool
}

// NewHNSWVectorIndex builds a cosine-similarity HNSW index for
// fixed-dimension vectors.
func NewHNSWVectorIndex(dimensions int) *HNSWVectorIndex {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 20
	g.Ml = 0.25
	return &HNSWVectorIndex{
		graph:      g,
		dimensions: dimensions,
		idMap:      make(map[string]uint64),
		keyMap:     make(map[uint64]string),
		payload:    make(map[uint64]map[string]string),
	}
}

func (v *HNSWVectorIndex) Index(ctx context.Context, chunkID string, vector []float32, payload map[string]string) error {
	if len(vector) != v.dimensions {
		return ErrDimensionMismatch{Expected: v.dimensions, Got: len(vector)}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return fmt.Errorf("vector index is closed")
	}

	if existingKey, exists := v.idMap[chunkID]; exists {
		// Lazy deletion: coder/hnsw doesn't support removing the last node
		// safely, so a re-index orphans the old key instead of deleting it.
		delete(v.keyMap, existingKey)
		delete(v.payload, existingKey)
	}

	key := v.nextKey
	v.nextKey++
	vec := make([]float32, len(vector))
	copy(vec, vector)
	normalize(vec)

	v.graph.Add(hnsw.MakeNode(key, vec))
	v.idMap[chunkID] = key
	v.keyMap[key] = chunkID
	v.payload[key] = payload
	return nil
}

func (v *HNSWVectorIndex) KNN(ctx context.Context, vector []float32, k int, filter map[string]string) ([]VectorHit, error) {
	if len(vector) != v.dimensions {
		return nil, ErrDimensionMismatch{Expected: v.dimensions, Got: len(vector)}
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return nil, fmt.Errorf("vector index is closed")
	}
	if v.graph.Len() == 0 {
		return nil, nil
	}

	query := make([]float32, len(vector))
	copy(query, vector)
	normalize(query)

	nodes := v.graph.Search(query, k)
	hits := make([]VectorHit, 0, len(nodes))
	for _, n := range nodes {
		chunkID, ok := v.keyMap[n.Key]
		if !ok {
			continue // orphaned by a prior re-index
		}
		if !matchesFilter(v.payload[n.Key], filter) {
			continue
		}
		distance := v.graph.Distance(query, n.Value)
		hits = append(hits, VectorHit{ChunkID: chunkID, Score: 1 - distance})
	}
	return hits, nil
}

func (v *HNSWVectorIndex) Delete(ctx context.Context, chunkIDs []string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return fmt.Errorf("vector index is closed")
	}
	for _, id := range chunkIDs {
		if key, ok := v.idMap[id]; ok {
			delete(v.keyMap, key)
			delete(v.payload, key)
			delete(v.idMap, id)
		}
	}
	return nil
}

func (v *HNSWVectorIndex) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	return nil
}

func matchesFilter(payload, filter map[string]string) bool {
	for k, want := range filter {
		if payload[k] != want {
			return false
		}
	}
	return true
}

func normalize(vec []float32) {
	var sumSquares float64
	for _, x := range vec {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range vec {
		vec[i] *= inv
	}
}
