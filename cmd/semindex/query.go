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

	"github.com/kraklabs/semindex/pkg/chunk"
	"github.com/kraklabs/semindex/pkg/snapshot"
)

// runQuery exercises the symbol-indexer port (spec §6 "find_definition/
// find_references/implementations_of(fqn)"), which this core realizes
// directly against the snapshot store rather than a separate index.
func runQuery(repoPath, fqn string, globals globalFlags) error {
	ctx := context.Background()

	id, err := repoID(repoPath)
	if err != nil {
		return err
	}
	dbPath := filepath.Join(defaultDataDir(repoPath, globals.DataDir), "snapshot.db")
	store, err := snapshot.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer store.Close()

	snaps, err := store.ListSnapshots(ctx, id, 1)
	if err != nil || len(snaps) == 0 {
		return fmt.Errorf("no snapshot recorded for %s; run 'semindex index' first", id)
	}
	snapshotID := snaps[0].SnapshotID

	defs, err := store.FindChunksByFQN(ctx, snapshotID, fqn)
	if err != nil {
		return fmt.Errorf("find_definition: %w", err)
	}
	refs, err := store.FindReferences(ctx, snapshotID, fqn)
	if err != nil {
		return fmt.Errorf("find_references: %w", err)
	}
	impls, err := store.ImplementationsOf(ctx, snapshotID, fqn)
	if err != nil {
		return fmt.Errorf("implementations_of: %w", err)
	}

	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"definitions":     defs,
			"references":      refs,
			"implementations": impls,
		})
	}

	printChunks("definitions", defs)
	printChunks("references", refs)
	printChunks("implementations", impls)
	return nil
}

func printChunks(label string, chunks []chunk.Chunk) {
	fmt.Printf("%s (%d):\n", label, len(chunks))
	for _, c := range chunks {
		fmt.Printf("  %s:%d-%d  %s\n", c.FilePath, c.StartLine, c.EndLine, c.FQN)
	}
}
