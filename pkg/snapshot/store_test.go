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

package snapshot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/semindex/pkg/chunk"
	"github.com/kraklabs/semindex/pkg/ir"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndGetSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveRepository(ctx, Repository{RepoID: "repo1", Name: "example"}))
	require.NoError(t, s.SaveSnapshot(ctx, Snapshot{SnapshotID: "snap1", RepoID: "repo1", CommitHash: "abc123"}))

	got, err := s.GetSnapshot(ctx, "snap1")
	require.NoError(t, err)
	assert.Equal(t, "repo1", got.RepoID)
	assert.Equal(t, "abc123", got.CommitHash)
}

func TestSaveSnapshot_RejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.SaveSnapshot(ctx, Snapshot{SnapshotID: "snap1", RepoID: "repo1", CommitHash: "abc"}))

	err := s.SaveSnapshot(ctx, Snapshot{SnapshotID: "snap1", RepoID: "repo1", CommitHash: "def"})
	require.Error(t, err)
	var already *AlreadyExistsError
	assert.ErrorAs(t, err, &already)
}

func TestGetSnapshot_NotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.GetSnapshot(ctx, "missing")
	require.Error(t, err)
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestSaveAndGetChunks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.SaveSnapshot(ctx, Snapshot{SnapshotID: "snap1", RepoID: "repo1", CommitHash: "abc"}))

	chunks := []chunk.Chunk{
		{ChunkID: "chunk:repo1:function:a.foo", FilePath: "a.py", StartLine: 1, EndLine: 2, Kind: chunk.KindLeaf, Level: chunk.LevelFunction, FQN: "a.foo", ContentHash: "h1", Attrs: map[string]any{"signature_hash": "sig1"}},
	}
	require.NoError(t, s.SaveChunks(ctx, "repo1", "snap1", chunks))

	got, err := s.GetChunks(ctx, "snap1", "a.py")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "chunk:repo1:function:a.foo", got[0].ChunkID)
	assert.Equal(t, "sig1", got[0].Attrs["signature_hash"])
}

func TestGetChunks_InheritsFromParentSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.SaveSnapshot(ctx, Snapshot{SnapshotID: "snap1", RepoID: "repo1", CommitHash: "c1"}))
	require.NoError(t, s.SaveChunks(ctx, "repo1", "snap1", []chunk.Chunk{
		{ChunkID: "chunk:repo1:function:a.foo", FilePath: "a.py", Level: chunk.LevelFunction, FQN: "a.foo", ContentHash: "h1"},
		{ChunkID: "chunk:repo1:function:b.bar", FilePath: "b.py", Level: chunk.LevelFunction, FQN: "b.bar", ContentHash: "h2"},
	}))

	// snap2 is a child of snap1 and never writes rows for b.py directly —
	// GetChunks must fall back through parent_snapshot_id (spec §4.7 step 1).
	require.NoError(t, s.SaveSnapshot(ctx, Snapshot{SnapshotID: "snap2", RepoID: "repo1", CommitHash: "c2", ParentSnapshotID: "snap1"}))

	got, err := s.GetChunks(ctx, "snap2", "b.py")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "chunk:repo1:function:b.bar", got[0].ChunkID)
}

func TestReplaceFile_DoesNotDuplicateUnchangedFiles(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.SaveSnapshot(ctx, Snapshot{SnapshotID: "snap1", RepoID: "repo1", CommitHash: "c1"}))
	require.NoError(t, s.SaveChunks(ctx, "repo1", "snap1", []chunk.Chunk{
		{ChunkID: "chunk:repo1:function:a.foo", FilePath: "a.py", Level: chunk.LevelFunction, FQN: "a.foo", ContentHash: "h1"},
		{ChunkID: "chunk:repo1:function:b.bar", FilePath: "b.py", Level: chunk.LevelFunction, FQN: "b.bar", ContentHash: "h2"},
	}))

	newChunks := []chunk.Chunk{
		{ChunkID: "chunk:repo1:function:a.foo", FilePath: "a.py", Level: chunk.LevelFunction, FQN: "a.foo", ContentHash: "h1-changed"},
	}
	require.NoError(t, s.ReplaceFile(ctx, "repo1", "snap1", "snap2", "a.py", newChunks))

	// a.py resolves directly under snap2 with the new hash.
	aChunks, err := s.GetChunks(ctx, "snap2", "a.py")
	require.NoError(t, err)
	require.Len(t, aChunks, 1)
	assert.Equal(t, "h1-changed", aChunks[0].ContentHash)

	// b.py was never touched: it still resolves by walking up to snap1,
	// not by having been physically copied into snap2.
	bChunks, err := s.GetChunks(ctx, "snap2", "b.py")
	require.NoError(t, err)
	require.Len(t, bChunks, 1)
	assert.Equal(t, "h2", bChunks[0].ContentHash)

	bRowsAtSnap2, err := s.queryChunksAt(ctx, "snap2", "b.py", true)
	require.NoError(t, err)
	assert.Empty(t, bRowsAtSnap2, "b.py chunks must not be physically duplicated into snap2")
}

func TestReplaceFile_TombstonesRemovedChunks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.SaveSnapshot(ctx, Snapshot{SnapshotID: "snap1", RepoID: "repo1", CommitHash: "c1"}))
	require.NoError(t, s.SaveChunks(ctx, "repo1", "snap1", []chunk.Chunk{
		{ChunkID: "chunk:repo1:function:a.foo", FilePath: "a.py", Level: chunk.LevelFunction, FQN: "a.foo", ContentHash: "h1"},
		{ChunkID: "chunk:repo1:function:a.removed", FilePath: "a.py", Level: chunk.LevelFunction, FQN: "a.removed", ContentHash: "h3"},
	}))

	// a.removed no longer appears in the new version of a.py.
	newChunks := []chunk.Chunk{
		{ChunkID: "chunk:repo1:function:a.foo", FilePath: "a.py", Level: chunk.LevelFunction, FQN: "a.foo", ContentHash: "h1"},
	}
	require.NoError(t, s.ReplaceFile(ctx, "repo1", "snap1", "snap2", "a.py", newChunks))

	active, err := s.GetChunks(ctx, "snap2", "a.py")
	require.NoError(t, err)
	assert.Len(t, active, 1)

	all, err := s.queryChunksAt(ctx, "snap2", "a.py", true)
	require.NoError(t, err)
	var sawTombstone bool
	for _, c := range all {
		if c.ChunkID == "chunk:repo1:function:a.removed" {
			sawTombstone = true
			assert.True(t, c.IsDeleted)
		}
	}
	assert.True(t, sawTombstone, "removed chunk should be tombstoned, not silently dropped")
}

func TestReplaceFile_DeletedFileDoesNotResurrect(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.SaveSnapshot(ctx, Snapshot{SnapshotID: "snap1", RepoID: "repo1", CommitHash: "c1"}))
	require.NoError(t, s.SaveChunks(ctx, "repo1", "snap1", []chunk.Chunk{
		{ChunkID: "chunk:repo1:function:a.foo", FilePath: "a.py", Level: chunk.LevelFunction, FQN: "a.foo", ContentHash: "h1"},
	}))

	// The whole file is gone in the new commit: every chunk tombstones.
	require.NoError(t, s.ReplaceFile(ctx, "repo1", "snap1", "snap2", "a.py", nil))

	got, err := s.GetChunks(ctx, "snap2", "a.py")
	require.NoError(t, err)
	assert.Empty(t, got, "a fully-tombstoned file must not fall through to its live ancestor copy")

	diff, err := s.CompareSnapshots(ctx, "snap1", "snap2")
	require.NoError(t, err)
	require.Len(t, diff.Deleted, 1)
	assert.Equal(t, "a.foo", diff.Deleted[0].FQN)
}

func TestIRDocumentsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	b := ir.NewBuilder("repo1", "snap1", "a.go")
	fileID := b.AddNode(ir.Node{Kind: ir.KindFile, Name: "a.go", FQN: "a", FilePath: "a.go", ModulePath: "a", Language: "go"}, "repo1")
	fnID := b.AddNode(ir.Node{Kind: ir.KindFunction, Name: "Foo", FQN: "a.Foo", FilePath: "a.go", ParentID: fileID, Language: "go"}, "repo1")
	b.AddContainsEdge(fileID, fnID, ir.Span{})
	doc := b.Document()

	require.NoError(t, s.SaveIRDocuments(ctx, "snap1", []*ir.IRDocument{&doc}))

	loaded, err := s.LoadIRDocuments(ctx, "snap1", []string{"a.go", "missing.go"})
	require.NoError(t, err)
	require.Len(t, loaded, 1, "paths with no stored IR are absent, not errors")
	assert.Equal(t, doc.Nodes, loaded[0].Nodes)
	assert.Equal(t, doc.Edges, loaded[0].Edges)
}

func TestFilesImporting(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.SaveSnapshot(ctx, Snapshot{SnapshotID: "snap1", RepoID: "repo1", CommitHash: "c1"}))
	require.NoError(t, s.SaveChunks(ctx, "repo1", "snap1", []chunk.Chunk{
		{ChunkID: "chunk:repo1:file:a", FilePath: "a.py", Level: chunk.LevelFile, FQN: "a"},
		{ChunkID: "chunk:repo1:file:b", FilePath: "b.py", Level: chunk.LevelFile, FQN: "b"},
	}))
	require.NoError(t, s.SaveDependencies(ctx, "snap1", []chunk.Dependency{
		{ID: "d1", FromChunkID: "chunk:repo1:file:b", ToChunkID: "chunk:repo1:file:a", Relationship: "IMPORTS", Confidence: 1},
	}))

	importers, err := s.FilesImporting(ctx, "snap1", "a.py")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.py"}, importers)

	none, err := s.FilesImporting(ctx, "snap1", "b.py")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCompareSnapshots_DetectsInterfaceChange(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.SaveSnapshot(ctx, Snapshot{SnapshotID: "snap1", RepoID: "repo1", CommitHash: "c1"}))
	require.NoError(t, s.SaveChunks(ctx, "repo1", "snap1", []chunk.Chunk{
		{ChunkID: "chunk:repo1:function:a.foo", FilePath: "a.py", Level: chunk.LevelFunction, FQN: "a.foo", ContentHash: "h1", Attrs: map[string]any{"signature_hash": "sig1"}},
		{ChunkID: "chunk:repo1:function:a.bar", FilePath: "a.py", Level: chunk.LevelFunction, FQN: "a.bar", ContentHash: "h2", Attrs: map[string]any{"signature_hash": "sig2"}},
	}))

	require.NoError(t, s.ReplaceFile(ctx, "repo1", "snap1", "snap2", "a.py", []chunk.Chunk{
		// foo's body changed, signature too (new param).
		{ChunkID: "chunk:repo1:function:a.foo", FilePath: "a.py", Level: chunk.LevelFunction, FQN: "a.foo", ContentHash: "h1-new", Attrs: map[string]any{"signature_hash": "sig1-new"}},
		// bar's body changed but signature is identical.
		{ChunkID: "chunk:repo1:function:a.bar", FilePath: "a.py", Level: chunk.LevelFunction, FQN: "a.bar", ContentHash: "h2-new", Attrs: map[string]any{"signature_hash": "sig2"}},
	}))

	diff, err := s.CompareSnapshots(ctx, "snap1", "snap2")
	require.NoError(t, err)
	require.Len(t, diff.Modified, 2)

	byFQN := make(map[string]ChunkDiff, len(diff.Modified))
	for _, d := range diff.Modified {
		byFQN[d.FQN] = d
	}
	assert.True(t, byFQN["a.foo"].InterfaceChanged)
	assert.False(t, byFQN["a.bar"].InterfaceChanged)
}

func TestCompareSnapshots_AddedAndDeleted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.SaveSnapshot(ctx, Snapshot{SnapshotID: "snap1", RepoID: "repo1", CommitHash: "c1"}))
	require.NoError(t, s.SaveChunks(ctx, "repo1", "snap1", []chunk.Chunk{
		{ChunkID: "chunk:repo1:function:a.foo", FilePath: "a.py", Level: chunk.LevelFunction, FQN: "a.foo", ContentHash: "h1"},
	}))
	require.NoError(t, s.ReplaceFile(ctx, "repo1", "snap1", "snap2", "a.py", []chunk.Chunk{
		{ChunkID: "chunk:repo1:function:a.newfn", FilePath: "a.py", Level: chunk.LevelFunction, FQN: "a.newfn", ContentHash: "h9"},
	}))

	diff, err := s.CompareSnapshots(ctx, "snap1", "snap2")
	require.NoError(t, err)
	require.Len(t, diff.Added, 1)
	assert.Equal(t, "a.newfn", diff.Added[0].FQN)
	require.Len(t, diff.Deleted, 1)
	assert.Equal(t, "a.foo", diff.Deleted[0].FQN)
}

func TestFileHashesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.SaveSnapshot(ctx, Snapshot{SnapshotID: "snap1", RepoID: "repo1", CommitHash: "c1"}))
	require.NoError(t, s.SaveFileMetadata(ctx, "repo1", "snap1", "a.py", "h1"))
	require.NoError(t, s.SaveFileMetadata(ctx, "repo1", "snap1", "b.py", "h2"))

	hashes, err := s.FileHashes(ctx, "snap1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a.py": "h1", "b.py": "h2"}, hashes)
}

func TestListSnapshots_OrdersByRecency(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.SaveSnapshot(ctx, Snapshot{SnapshotID: "snap1", RepoID: "repo1", CommitHash: "c1"}))
	require.NoError(t, s.SaveSnapshot(ctx, Snapshot{SnapshotID: "snap2", RepoID: "repo1", CommitHash: "c2", ParentSnapshotID: "snap1"}))

	list, err := s.ListSnapshots(ctx, "repo1", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
}
