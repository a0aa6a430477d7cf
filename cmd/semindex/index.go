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
	"log/slog"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"

	"github.com/kraklabs/semindex/pkg/config"
	"github.com/kraklabs/semindex/pkg/indexport"
	"github.com/kraklabs/semindex/pkg/pipeline"
	"github.com/kraklabs/semindex/pkg/snapshot"
)

// loadConfig reads <repo>/.semindex/config.yaml if present, else returns
// config.Default(). Loading the file from disk is the excluded
// "configuration loading" collaborator (spec.md §1); this is the minimal
// glue a CLI needs to hand the core a Config value at all.
func loadConfig(repoPath string) (config.Config, error) {
	data, err := os.ReadFile(filepath.Join(repoPath, ".semindex", "config.yaml"))
	if os.IsNotExist(err) {
		return config.Default(), nil
	}
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(data)
}

func runIndex(repoPath string, globals globalFlags) error {
	ctx := context.Background()

	cfg, err := loadConfig(repoPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	id, err := repoID(repoPath)
	if err != nil {
		return err
	}
	snapshotID, err := headCommit(repoPath)
	if err != nil {
		return err
	}

	dataDir := defaultDataDir(repoPath, globals.DataDir)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	store, err := snapshot.Open(filepath.Join(dataDir, "snapshot.db"))
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer store.Close()

	lexical, err := indexport.NewBleveLexicalIndex(filepath.Join(dataDir, "lexical.bleve"))
	if err != nil {
		return fmt.Errorf("open lexical index: %w", err)
	}
	defer lexical.Close()

	var parentSnapshotID string
	var priorHashes map[string]string
	if !globals.FullScan {
		if snaps, err := store.ListSnapshots(ctx, id, 1); err == nil && len(snaps) > 0 {
			parentSnapshotID = snaps[0].SnapshotID
			if hashes, err := store.FileHashes(ctx, parentSnapshotID); err == nil {
				priorHashes = hashes
			}
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	orch := pipeline.New(cfg, store, logger)
	orch.Lexical = lexical

	var bar *progressbar.ProgressBar
	orch.Progress = func(completed, total int) {
		if bar == nil {
			bar = progressbar.Default(int64(total), "indexing")
		}
		_ = bar.Set(completed)
	}

	result, err := orch.Run(ctx, id, parentSnapshotID, snapshotID, repoPath, priorHashes, nil)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	chunkCount := 0
	if result.Chunks != nil {
		chunkCount = len(result.Chunks.Chunks)
	}

	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"state":       result.State,
			"snapshot_id": snapshotID,
			"chunks":      chunkCount,
			"diagnostics": result.Diagnostics,
		})
	}

	fmt.Printf("snapshot %s: %s (%d chunks, %d diagnostics)\n",
		snapshotID, result.State, chunkCount, len(result.Diagnostics))
	for _, d := range result.Diagnostics {
		fmt.Printf("  %s: %s (%s)\n", d.FilePath, d.Kind, d.Stage)
	}
	return nil
}
