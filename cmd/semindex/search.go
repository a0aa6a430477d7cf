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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kraklabs/semindex/pkg/indexport"
)

// runSearch exercises the lexical-indexer port (spec §6) built up by the
// most recent 'semindex index' run.
func runSearch(repoPath, query string, globals globalFlags) error {
	ctx := context.Background()

	dataDir := defaultDataDir(repoPath, globals.DataDir)
	bleveDir := filepath.Join(dataDir, "lexical.bleve")
	if _, err := os.Stat(bleveDir); os.IsNotExist(err) {
		return fmt.Errorf("no lexical index found; run 'semindex index' first")
	}

	index, err := indexport.NewBleveLexicalIndex(bleveDir)
	if err != nil {
		return fmt.Errorf("open lexical index: %w", err)
	}
	defer index.Close()

	hits, err := index.Search(ctx, query, indexport.LexicalPayload{}, 20)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}
	for _, h := range hits {
		fmt.Printf("%.3f  %s\n", h.Score, h.ChunkID)
	}
	return nil
}
