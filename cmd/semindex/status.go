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

	"github.com/fatih/color"

	"github.com/kraklabs/semindex/pkg/snapshot"
)

func runStatus(repoPath string, globals globalFlags) error {
	ctx := context.Background()

	id, err := repoID(repoPath)
	if err != nil {
		return err
	}
	dbPath := filepath.Join(defaultDataDir(repoPath, globals.DataDir), "snapshot.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("no snapshots recorded (run 'semindex index' first)")
		return nil
	}
	store, err := snapshot.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer store.Close()

	snaps, err := store.ListSnapshots(ctx, id, 20)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}

	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snaps)
	}

	if len(snaps) == 0 {
		fmt.Println("no snapshots recorded")
		return nil
	}
	for _, s := range snaps {
		fmt.Printf("%s  %s\n", color.GreenString(s.SnapshotID[:min(12, len(s.SnapshotID))]), s.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
