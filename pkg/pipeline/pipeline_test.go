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

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/semindex/pkg/config"
	"github.com/kraklabs/semindex/pkg/parser"
	"github.com/kraklabs/semindex/pkg/snapshot"
)

func writeRepo(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		full := filepath.Join(root, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func TestRun_EndToEndSmallRepo(t *testing.T) {
	root := t.TempDir()
	writeRepo(t, root, map[string]string{
		"main.go": "package main\n\nfunc main() {\n\thelper()\n}\n\nfunc helper() {\n\tx := 1\n\t_ = x\n}\n",
	})

	store, err := snapshot.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	orch := New(config.Default(), store, nil)
	result, err := orch.Run(context.Background(), "repo1", "", "snap1", root, nil, nil)
	require.NoError(t, err)

	require.Equal(t, StateCompleted, result.State)
	require.NotNil(t, result.Chunks)
	require.NotEmpty(t, result.Chunks.Chunks)
	require.NotNil(t, result.RepoMap)
	require.NotEmpty(t, result.CFGs)
	require.NotEmpty(t, result.DFGs)
	require.Empty(t, result.Diagnostics)

	chunks, err := store.GetChunks(context.Background(), "snap1", "main.go")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
}

func TestRun_SkipsUnsupportedFiles(t *testing.T) {
	root := t.TempDir()
	writeRepo(t, root, map[string]string{
		"main.go":   "package main\n\nfunc main() {}\n",
		"notes.txt": "not a source file",
	})

	orch := New(config.Default(), nil, nil)
	result, err := orch.Run(context.Background(), "repo1", "", "snap1", root, nil, nil)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, result.State)

	for _, c := range result.Chunks.Chunks {
		require.NotEqual(t, "notes.txt", c.FilePath)
	}
}

func TestRun_FastModeSkipsSemanticIR(t *testing.T) {
	root := t.TempDir()
	writeRepo(t, root, map[string]string{
		"main.go": "package main\n\nfunc main() {\n\thelper()\n}\n\nfunc helper() {}\n",
	})

	cfg := config.Default()
	cfg.Mode = config.ModeFast
	orch := New(cfg, nil, nil)
	result, err := orch.Run(context.Background(), "repo1", "", "snap1", root, nil, nil)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, result.State)
	require.Empty(t, result.CFGs)
	require.Empty(t, result.DFGs)
}

func TestRun_IncrementalSkipsUnchangedFiles(t *testing.T) {
	root := t.TempDir()
	writeRepo(t, root, map[string]string{
		"main.go": "package main\n\nfunc main() {}\n",
	})

	orch := New(config.Default(), nil, nil)
	files, err := discover(root, orch.Config)
	require.NoError(t, err)
	require.Len(t, files, 1)

	priorHashes := map[string]string{"main.go": files[0].ContentHash}
	result, err := orch.Run(context.Background(), "repo1", "snap1", "snap2", root, priorHashes, nil)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, result.State)
	require.Empty(t, result.Chunks.Chunks)
}

// TestRun_CancelThenResume exercises spec §8's cancellation-safety
// property at small scale: cancel after the first file, then resume with
// the returned JobProgress and reach Completed with every file's chunks
// present.
func TestRun_CancelThenResume(t *testing.T) {
	root := t.TempDir()
	writeRepo(t, root, map[string]string{
		"a.go": "package mypkg\n\nfunc A() int {\n\treturn 1\n}\n",
		"b.go": "package mypkg\n\nfunc B() int {\n\treturn 2\n}\n",
		"c.go": "package mypkg\n\nfunc C() int {\n\treturn 3\n}\n",
	})

	store, err := snapshot.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	cfg.ParallelWorkers = 1
	orch := New(cfg, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	orch.Progress = func(completed, total int) {
		if completed == 1 {
			cancel()
		}
	}
	result, err := orch.Run(ctx, "repo1", "", "snap1", root, nil, nil)
	require.NoError(t, err)
	require.Equal(t, StateCancelledPartial, result.State)
	require.NotEmpty(t, result.Progress.CompletedFiles)
	require.Less(t, len(result.Progress.CompletedFiles), 3)

	orch.Progress = nil
	resumed, err := orch.Run(context.Background(), "repo1", "", "snap1", root, nil, &result.Progress)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, resumed.State)

	fileChunks := make(map[string]bool)
	for _, c := range resumed.Chunks.Chunks {
		if c.FilePath != "" {
			fileChunks[c.FilePath] = true
		}
	}
	require.Equal(t, map[string]bool{"a.go": true, "b.go": true, "c.go": true}, fileChunks)
}

func TestIsRetryable(t *testing.T) {
	require.False(t, isRetryable(nil))
	require.False(t, isRetryable(&parser.UnsupportedLanguageError{Path: "x.zz"}))
	require.Equal(t, "UnsupportedLanguage", kindOf(&parser.UnsupportedLanguageError{Path: "x.zz"}))
}
