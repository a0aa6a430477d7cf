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

// Package snapshot implements the commit-based snapshot store (spec
// §4.7, component C7): immutable per-commit snapshots, file-granular
// replace_file transitions, and snapshot-to-snapshot diff, realized as
// five tables over a pure-Go SQLite database per the schema sketch in
// spec §6.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kraklabs/semindex/pkg/chunk"
	"github.com/kraklabs/semindex/pkg/ir"
)

// NotFoundError is returned by Get* operations when the key does not
// exist (spec §4.7 "reads return NotFound for missing keys").
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found: %s", e.Kind, e.Key) }

// AlreadyExistsError is returned by SaveSnapshot when the snapshot id is
// already present — snapshots are immutable, so a second save is
// rejected rather than merged (spec §4.7, §7 SnapshotAlreadyExists).
type AlreadyExistsError struct {
	SnapshotID string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("snapshot already exists: %s", e.SnapshotID)
}

// Repository is the repositories table row (spec §6).
type Repository struct {
	RepoID        string
	Name          string
	RemoteURL     string
	DefaultBranch string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Snapshot is the snapshots table row (spec §3/§6). ParentSnapshotID is
// an implementation detail that realizes replace_file's copy-on-write
// semantics (spec §4.7 step 1: "copying... shallow — the same chunk
// objects are logically shared, physically realized via index lookup,
// not data duplication") without an ADDED field appearing in spec's
// literal schema sketch as a *stored* column beyond internal bookkeeping.
type Snapshot struct {
	SnapshotID       string
	RepoID           string
	CommitHash       string
	BranchName       string
	ParentSnapshotID string
	CreatedAt        time.Time
}

// Diff is the result of CompareSnapshots (spec §4.7).
type Diff struct {
	Added    []ChunkDiff
	Modified []ChunkDiff
	Deleted  []ChunkDiff
}

// ChunkDiff describes one changed chunk between two snapshots.
type ChunkDiff struct {
	ChunkID          string
	FilePath         string
	FQN              string
	InterfaceChanged bool
}

// Store is a SQLite-backed realization of the snapshot store contract.
type Store struct {
	db *sql.DB
}

// Open creates or opens the snapshot database at path (":memory:" for an
// ephemeral store, used by tests and by fast/dry-run pipeline modes).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// A single shared connection, or each goroutine gets its own
		// throwaway in-memory database (spec §5: snapshot store is the
		// only globally shared writable resource during Indexing).
		db.SetMaxOpenConns(1)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS repositories (
		repo_id TEXT PRIMARY KEY,
		name TEXT,
		remote_url TEXT,
		default_branch TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		snapshot_id TEXT PRIMARY KEY,
		repo_id TEXT NOT NULL,
		commit_hash TEXT NOT NULL,
		branch_name TEXT,
		parent_snapshot_id TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		chunk_id TEXT NOT NULL,
		repo_id TEXT NOT NULL,
		snapshot_id TEXT NOT NULL,
		file_path TEXT NOT NULL,
		start_line INTEGER NOT NULL,
		end_line INTEGER NOT NULL,
		kind TEXT NOT NULL,
		level TEXT NOT NULL,
		fqn TEXT,
		language TEXT,
		content TEXT,
		content_hash TEXT,
		summary TEXT,
		importance REAL NOT NULL DEFAULT 0,
		is_deleted INTEGER NOT NULL DEFAULT 0,
		attrs TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (snapshot_id, chunk_id)
	);

	CREATE TABLE IF NOT EXISTS dependencies (
		id TEXT PRIMARY KEY,
		snapshot_id TEXT NOT NULL,
		from_chunk_id TEXT NOT NULL,
		to_chunk_id TEXT NOT NULL,
		relationship TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 1.0,
		UNIQUE(snapshot_id, from_chunk_id, to_chunk_id, relationship)
	);

	CREATE TABLE IF NOT EXISTS file_metadata (
		repo_id TEXT NOT NULL,
		snapshot_id TEXT NOT NULL,
		file_path TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		PRIMARY KEY (snapshot_id, file_path)
	);

	CREATE TABLE IF NOT EXISTS ir_documents (
		snapshot_id TEXT NOT NULL,
		file_path TEXT NOT NULL,
		doc TEXT NOT NULL,
		PRIMARY KEY (snapshot_id, file_path)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_snapshot_active ON chunks(snapshot_id) WHERE is_deleted = 0;
	CREATE INDEX IF NOT EXISTS idx_chunks_repo_snapshot_file ON chunks(repo_id, snapshot_id, file_path);
	CREATE INDEX IF NOT EXISTS idx_chunks_fqn ON chunks(fqn) WHERE fqn IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_chunks_content_hash ON chunks(content_hash);
	CREATE INDEX IF NOT EXISTS idx_dependencies_from ON dependencies(from_chunk_id);
	CREATE INDEX IF NOT EXISTS idx_dependencies_to ON dependencies(to_chunk_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRepository upserts a repository record.
func (s *Store) SaveRepository(ctx context.Context, repo Repository) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO repositories (repo_id, name, remote_url, default_branch, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo_id) DO UPDATE SET
			name = excluded.name,
			remote_url = excluded.remote_url,
			default_branch = excluded.default_branch,
			updated_at = excluded.updated_at
	`, repo.RepoID, repo.Name, repo.RemoteURL, repo.DefaultBranch, now, now)
	return err
}

// SaveSnapshot persists a new, immutable snapshot record. Re-saving the
// same snapshot_id is rejected (spec §4.7, §8 "Snapshot immutability").
func (s *Store) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM snapshots WHERE snapshot_id = ?`, snap.SnapshotID).Scan(&exists); err == nil {
		return &AlreadyExistsError{SnapshotID: snap.SnapshotID}
	} else if err != sql.ErrNoRows {
		return fmt.Errorf("check existing snapshot: %w", err)
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (snapshot_id, repo_id, commit_hash, branch_name, parent_snapshot_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, snap.SnapshotID, snap.RepoID, snap.CommitHash, snap.BranchName, nullable(snap.ParentSnapshotID), snap.CreatedAt)
	return err
}

// GetSnapshot fetches a snapshot record by id.
func (s *Store) GetSnapshot(ctx context.Context, snapshotID string) (Snapshot, error) {
	var snap Snapshot
	var parent sql.NullString
	var branch sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT snapshot_id, repo_id, commit_hash, branch_name, parent_snapshot_id, created_at
		FROM snapshots WHERE snapshot_id = ?
	`, snapshotID).Scan(&snap.SnapshotID, &snap.RepoID, &snap.CommitHash, &branch, &parent, &snap.CreatedAt)
	if err == sql.ErrNoRows {
		return Snapshot{}, &NotFoundError{Kind: "snapshot", Key: snapshotID}
	}
	if err != nil {
		return Snapshot{}, err
	}
	snap.BranchName = branch.String
	snap.ParentSnapshotID = parent.String
	return snap, nil
}

// ListSnapshots returns up to limit snapshots for a repo, most recent first.
func (s *Store) ListSnapshots(ctx context.Context, repoID string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT snapshot_id, repo_id, commit_hash, branch_name, parent_snapshot_id, created_at
		FROM snapshots WHERE repo_id = ? ORDER BY created_at DESC LIMIT ?
	`, repoID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var branch, parent sql.NullString
		if err := rows.Scan(&snap.SnapshotID, &snap.RepoID, &snap.CommitHash, &branch, &parent, &snap.CreatedAt); err != nil {
			return nil, err
		}
		snap.BranchName = branch.String
		snap.ParentSnapshotID = parent.String
		out = append(out, snap)
	}
	return out, rows.Err()
}

// SaveChunks upserts chunks directly under snapshotID (no copy-on-write
// resolution — callers doing a full index write the complete chunk set;
// ReplaceFile is the incremental path that only touches one file).
func (s *Store) SaveChunks(ctx context.Context, repoID, snapshotID string, chunks []chunk.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := upsertChunks(ctx, tx, repoID, snapshotID, chunks); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertChunks(ctx context.Context, tx *sql.Tx, repoID, snapshotID string, chunks []chunk.Chunk) error {
	now := time.Now().UTC()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (
			chunk_id, repo_id, snapshot_id, file_path, start_line, end_line,
			kind, level, fqn, language, content, content_hash, summary,
			importance, is_deleted, attrs, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(snapshot_id, chunk_id) DO UPDATE SET
			file_path = excluded.file_path,
			start_line = excluded.start_line,
			end_line = excluded.end_line,
			kind = excluded.kind,
			level = excluded.level,
			fqn = excluded.fqn,
			language = excluded.language,
			content = excluded.content,
			content_hash = excluded.content_hash,
			summary = excluded.summary,
			importance = excluded.importance,
			is_deleted = excluded.is_deleted,
			attrs = excluded.attrs,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		attrsJSON, err := json.Marshal(c.Attrs)
		if err != nil {
			return fmt.Errorf("marshal chunk attrs for %s: %w", c.ChunkID, err)
		}
		isDeleted := 0
		if c.IsDeleted {
			isDeleted = 1
		}
		if _, err := stmt.ExecContext(ctx,
			c.ChunkID, repoID, snapshotID, c.FilePath, c.StartLine, c.EndLine,
			string(c.Kind), string(c.Level), c.FQN, c.Language, c.Content, c.ContentHash,
			c.Summary, c.Importance, isDeleted, string(attrsJSON), now, now,
		); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ChunkID, err)
		}
	}
	return nil
}

// GetChunks resolves the chunk set for (snapshotID, filePath): rows
// stored directly under snapshotID if present, else the nearest ancestor
// snapshot that has rows for filePath (the copy-on-write read path, spec
// §4.7 step 1). is_deleted chunks are excluded, per "normal listing
// filters them out" (spec §4.7 hard soft-delete discipline).
func (s *Store) GetChunks(ctx context.Context, snapshotID, filePath string) ([]chunk.Chunk, error) {
	rows, err := s.resolveFileChunks(ctx, snapshotID, filePath, false)
	return rows, err
}

// resolveFileChunks is GetChunks's implementation, parameterized by
// includeDeleted so CompareSnapshots can see tombstones too. Presence is
// decided on ALL rows (tombstones included): a snapshot at which every
// chunk of filePath is tombstoned still overrides its ancestors — the
// file was deleted there, and falling through to a live ancestor copy
// would resurrect it.
func (s *Store) resolveFileChunks(ctx context.Context, snapshotID, filePath string, includeDeleted bool) ([]chunk.Chunk, error) {
	cur := snapshotID
	for cur != "" {
		rows, err := s.queryChunksAt(ctx, cur, filePath, true)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			if includeDeleted {
				return rows, nil
			}
			var active []chunk.Chunk
			for _, c := range rows {
				if !c.IsDeleted {
					active = append(active, c)
				}
			}
			return active, nil
		}
		parent, err := s.parentOf(ctx, cur)
		if err != nil {
			return nil, err
		}
		cur = parent
	}
	return nil, nil
}

func (s *Store) queryChunksAt(ctx context.Context, snapshotID, filePath string, includeDeleted bool) ([]chunk.Chunk, error) {
	query := `
		SELECT chunk_id, file_path, start_line, end_line, kind, level, fqn, language,
			content, content_hash, summary, importance, is_deleted, attrs
		FROM chunks WHERE snapshot_id = ? AND file_path = ?
	`
	if !includeDeleted {
		query += ` AND is_deleted = 0`
	}
	rows, err := s.db.QueryContext(ctx, query, snapshotID, filePath)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows, snapshotID)
}

func scanChunks(rows *sql.Rows, snapshotID string) ([]chunk.Chunk, error) {
	var out []chunk.Chunk
	for rows.Next() {
		var c chunk.Chunk
		var kind, level, attrsJSON string
		var isDeleted int
		var fqn, language, content, contentHash, summary sql.NullString
		if err := rows.Scan(&c.ChunkID, &c.FilePath, &c.StartLine, &c.EndLine, &kind, &level,
			&fqn, &language, &content, &contentHash, &summary, &c.Importance, &isDeleted, &attrsJSON); err != nil {
			return nil, err
		}
		c.SnapshotID = snapshotID
		c.Kind = chunk.Kind(kind)
		c.Level = chunk.Level(level)
		c.FQN = fqn.String
		c.Language = language.String
		c.Content = content.String
		c.ContentHash = contentHash.String
		c.Summary = summary.String
		c.IsDeleted = isDeleted != 0
		if attrsJSON != "" {
			_ = json.Unmarshal([]byte(attrsJSON), &c.Attrs)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) parentOf(ctx context.Context, snapshotID string) (string, error) {
	var parent sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT parent_snapshot_id FROM snapshots WHERE snapshot_id = ?`, snapshotID).Scan(&parent)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return parent.String, nil
}

// SaveDependencies upserts dependency edges for a snapshot.
func (s *Store) SaveDependencies(ctx context.Context, snapshotID string, deps []chunk.Dependency) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dependencies (id, snapshot_id, from_chunk_id, to_chunk_id, relationship, confidence)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(snapshot_id, from_chunk_id, to_chunk_id, relationship) DO UPDATE SET
			confidence = excluded.confidence
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, d := range deps {
		if _, err := stmt.ExecContext(ctx, d.ID, snapshotID, d.FromChunkID, d.ToChunkID, d.Relationship, d.Confidence); err != nil {
			return fmt.Errorf("upsert dependency %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

// GetDependencies returns dependencies where chunkID is the source,
// recorded directly under snapshotID; rows saved under ancestor
// snapshots are not consulted.
func (s *Store) GetDependencies(ctx context.Context, snapshotID, chunkID string) ([]chunk.Dependency, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, from_chunk_id, to_chunk_id, relationship, confidence
		FROM dependencies WHERE snapshot_id = ? AND from_chunk_id = ?
	`, snapshotID, chunkID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []chunk.Dependency
	for rows.Next() {
		var d chunk.Dependency
		if err := rows.Scan(&d.ID, &d.FromChunkID, &d.ToChunkID, &d.Relationship, &d.Confidence); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// FindChunksByFQN returns every non-deleted chunk at snapshotID whose fqn
// matches exactly, realizing the symbol indexer's find_definition (spec
// §6 "Symbol indexer... find_definition(fqn)").
func (s *Store) FindChunksByFQN(ctx context.Context, snapshotID, fqn string) ([]chunk.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, file_path, start_line, end_line, kind, level,
			fqn, language, content, content_hash, summary, importance, is_deleted, attrs
		FROM chunks WHERE snapshot_id = ? AND fqn = ? AND is_deleted = 0
	`, snapshotID, fqn)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows, snapshotID)
}

// FindReferences returns every chunk at snapshotID that depends on fqn's
// chunk(s) (find_references, spec §6), widening from pure CALLS/READS/
// WRITES edges to every recorded relationship kind so that e.g. a
// REFERENCES-only mention still surfaces.
func (s *Store) FindReferences(ctx context.Context, snapshotID, fqn string) ([]chunk.Chunk, error) {
	return s.chunksDependingOn(ctx, snapshotID, fqn, nil)
}

// ImplementationsOf returns every chunk at snapshotID related to fqn's
// chunk(s) via an IMPLEMENTS dependency (spec §6 "implementations_of(fqn)").
func (s *Store) ImplementationsOf(ctx context.Context, snapshotID, fqn string) ([]chunk.Chunk, error) {
	return s.chunksDependingOn(ctx, snapshotID, fqn, []string{"IMPLEMENTS"})
}

func (s *Store) chunksDependingOn(ctx context.Context, snapshotID, fqn string, relationships []string) ([]chunk.Chunk, error) {
	targets, err := s.FindChunksByFQN(ctx, snapshotID, fqn)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, nil
	}
	targetIDs := make(map[string]bool, len(targets))
	for _, c := range targets {
		targetIDs[c.ChunkID] = true
	}

	relFilter := make(map[string]bool, len(relationships))
	for _, r := range relationships {
		relFilter[r] = true
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT from_chunk_id, to_chunk_id, relationship FROM dependencies WHERE snapshot_id = ?
	`, snapshotID)
	if err != nil {
		return nil, err
	}
	var fromIDs []string
	for rows.Next() {
		var fromID, toID, rel string
		if err := rows.Scan(&fromID, &toID, &rel); err != nil {
			rows.Close()
			return nil, err
		}
		if !targetIDs[toID] {
			continue
		}
		if len(relFilter) > 0 && !relFilter[rel] {
			continue
		}
		fromIDs = append(fromIDs, fromID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []chunk.Chunk
	seen := make(map[string]bool)
	for _, id := range fromIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		c, err := s.chunkByID(ctx, snapshotID, id)
		if err != nil {
			if _, ok := err.(*NotFoundError); ok {
				continue
			}
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) chunkByID(ctx context.Context, snapshotID, chunkID string) (chunk.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, file_path, start_line, end_line, kind, level,
			fqn, language, content, content_hash, summary, importance, is_deleted, attrs
		FROM chunks WHERE snapshot_id = ? AND chunk_id = ?
	`, snapshotID, chunkID)
	if err != nil {
		return chunk.Chunk{}, err
	}
	defer rows.Close()
	chunks, err := scanChunks(rows, snapshotID)
	if err != nil {
		return chunk.Chunk{}, err
	}
	if len(chunks) == 0 {
		return chunk.Chunk{}, &NotFoundError{Kind: "chunk", Key: chunkID}
	}
	return chunks[0], nil
}

// SaveFileMetadata records a file's content hash under a snapshot, for
// incremental-detection lookups by the pipeline orchestrator (spec §4.6
// "incremental input").
func (s *Store) SaveFileMetadata(ctx context.Context, repoID, snapshotID, filePath, contentHash string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO file_metadata (repo_id, snapshot_id, file_path, content_hash)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(snapshot_id, file_path) DO UPDATE SET content_hash = excluded.content_hash
	`, repoID, snapshotID, filePath, contentHash)
	return err
}

// FileHashes returns the (file_path -> content_hash) map for a snapshot,
// the exact input shape spec §4.6 "incremental input" expects callers to
// hand back to Discovery on the next run.
func (s *Store) FileHashes(ctx context.Context, snapshotID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT file_path, content_hash FROM file_metadata WHERE snapshot_id = ?`, snapshotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, err
		}
		out[path] = hash
	}
	return out, rows.Err()
}

// SaveIRDocuments persists per-file IR under a snapshot, keyed by file
// path. A cancelled pipeline run stores the IR of its completed files
// here so a resumed run re-enqueues only the unfinished ones (spec §4.6
// "a later run may resume by passing the same JobProgress as input to
// Discovery") and still hands the Graph reducer every file's IR.
func (s *Store) SaveIRDocuments(ctx context.Context, snapshotID string, docs []*ir.IRDocument) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ir_documents (snapshot_id, file_path, doc) VALUES (?, ?, ?)
		ON CONFLICT(snapshot_id, file_path) DO UPDATE SET doc = excluded.doc
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, doc := range docs {
		path := irDocFilePath(doc)
		if path == "" {
			continue
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshal ir for %s: %w", path, err)
		}
		if _, err := stmt.ExecContext(ctx, snapshotID, path, string(data)); err != nil {
			return fmt.Errorf("upsert ir for %s: %w", path, err)
		}
	}
	return tx.Commit()
}

// LoadIRDocuments fetches the stored IR for the given file paths under a
// snapshot. Paths with no stored IR are silently absent from the result.
func (s *Store) LoadIRDocuments(ctx context.Context, snapshotID string, paths []string) ([]*ir.IRDocument, error) {
	var out []*ir.IRDocument
	for _, p := range paths {
		var data string
		err := s.db.QueryRowContext(ctx, `
			SELECT doc FROM ir_documents WHERE snapshot_id = ? AND file_path = ?
		`, snapshotID, p).Scan(&data)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, err
		}
		var doc ir.IRDocument
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			return nil, fmt.Errorf("unmarshal ir for %s: %w", p, err)
		}
		out = append(out, &doc)
	}
	return out, nil
}

func irDocFilePath(doc *ir.IRDocument) string {
	for i := range doc.Nodes {
		if doc.Nodes[i].Kind == ir.KindFile {
			return doc.Nodes[i].FilePath
		}
	}
	return ""
}

// FilesImporting returns the file paths whose chunks carry an IMPORTS
// dependency into any chunk of filePath at snapshotID. Incremental
// Discovery expands a changed-file set with the transitive closure of
// this relation (spec §4.6 "plus their transitive dependency closure
// inferred from the previous snapshot's IMPORTS graph").
func (s *Store) FilesImporting(ctx context.Context, snapshotID, filePath string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT cf.file_path
		FROM dependencies d
		JOIN chunks ct ON ct.chunk_id = d.to_chunk_id AND ct.snapshot_id = d.snapshot_id
		JOIN chunks cf ON cf.chunk_id = d.from_chunk_id AND cf.snapshot_id = d.snapshot_id
		WHERE d.snapshot_id = ? AND d.relationship = 'IMPORTS' AND ct.file_path = ?
			AND cf.file_path != ''
	`, snapshotID, filePath)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		if p != filePath {
			out = append(out, p)
		}
	}
	return out, rows.Err()
}

// ReplaceFile is the key C7 operation (spec §4.7): atomically produce a
// new snapshot that differs from oldCommit only in filePath's chunks.
func (s *Store) ReplaceFile(ctx context.Context, repoID, oldCommit, newCommit, filePath string, newChunks []chunk.Chunk) error {
	// Resolve what was visible under oldCommit before the transaction
	// opens: the read goes through s.db, and an in-memory store has one
	// connection, which the open transaction would hold.
	oldRows, err := s.resolveFileChunks(ctx, oldCommit, filePath, false)
	if err != nil {
		return fmt.Errorf("resolve prior chunks for %s: %w", filePath, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM snapshots WHERE snapshot_id = ?`, newCommit).Scan(&exists)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO snapshots (snapshot_id, repo_id, commit_hash, branch_name, parent_snapshot_id, created_at)
			VALUES (?, ?, ?, '', ?, ?)
		`, newCommit, repoID, newCommit, nullable(oldCommit), time.Now().UTC()); err != nil {
			return fmt.Errorf("create snapshot %s: %w", newCommit, err)
		}
	case err != nil:
		return fmt.Errorf("check snapshot %s: %w", newCommit, err)
	}

	// Tombstone every chunk that was visible for filePath under oldCommit
	// but is absent from newChunks (spec §4.7 step 2).
	keep := make(map[string]bool, len(newChunks))
	for _, c := range newChunks {
		keep[c.ChunkID] = true
	}
	var tombstones []chunk.Chunk
	for _, old := range oldRows {
		if !keep[old.ChunkID] {
			old.IsDeleted = true
			old.SnapshotID = newCommit
			tombstones = append(tombstones, old)
		}
	}

	// Upsert new chunks under the new commit (spec §4.7 step 3).
	toWrite := make([]chunk.Chunk, 0, len(newChunks)+len(tombstones))
	for _, c := range newChunks {
		c.SnapshotID = newCommit
		c.IsDeleted = false
		toWrite = append(toWrite, c)
	}
	toWrite = append(toWrite, tombstones...)

	if err := upsertChunks(ctx, tx, repoID, newCommit, toWrite); err != nil {
		return err
	}
	return tx.Commit()
}

// CompareSnapshots implements spec §4.7's diff contract: chunk-level
// added/modified/deleted between two snapshots, with interface-change
// detection via the signature_hash carried in function chunk Attrs.
func (s *Store) CompareSnapshots(ctx context.Context, oldSnapshotID, newSnapshotID string) (Diff, error) {
	oldChunks, err := s.allActiveChunks(ctx, oldSnapshotID)
	if err != nil {
		return Diff{}, fmt.Errorf("load old snapshot chunks: %w", err)
	}
	newChunks, err := s.allActiveChunks(ctx, newSnapshotID)
	if err != nil {
		return Diff{}, fmt.Errorf("load new snapshot chunks: %w", err)
	}

	oldByKey := make(map[string]chunk.Chunk, len(oldChunks))
	for _, c := range oldChunks {
		oldByKey[diffKey(c)] = c
	}
	newByKey := make(map[string]chunk.Chunk, len(newChunks))
	for _, c := range newChunks {
		newByKey[diffKey(c)] = c
	}

	var diff Diff
	for key, nc := range newByKey {
		oc, existed := oldByKey[key]
		if !existed {
			diff.Added = append(diff.Added, ChunkDiff{ChunkID: nc.ChunkID, FilePath: nc.FilePath, FQN: nc.FQN})
			continue
		}
		if oc.ContentHash != nc.ContentHash {
			diff.Modified = append(diff.Modified, ChunkDiff{
				ChunkID:          nc.ChunkID,
				FilePath:         nc.FilePath,
				FQN:              nc.FQN,
				InterfaceChanged: signatureHashOf(oc) != signatureHashOf(nc) && signatureHashOf(nc) != "",
			})
		}
	}
	for key, oc := range oldByKey {
		if _, stillThere := newByKey[key]; !stillThere {
			diff.Deleted = append(diff.Deleted, ChunkDiff{ChunkID: oc.ChunkID, FilePath: oc.FilePath, FQN: oc.FQN})
		}
	}
	return diff, nil
}

// diffKey is (file_path, fqn) per spec §4.7 "modification is detected by
// chunk content_hash inequality at the same (file_path, fqn)".
func diffKey(c chunk.Chunk) string { return c.FilePath + "\x00" + c.FQN }

func signatureHashOf(c chunk.Chunk) string {
	if v, ok := c.Attrs["signature_hash"].(string); ok {
		return v
	}
	return ""
}

// allActiveChunks collects every non-deleted chunk visible under a
// snapshot across all its known files, used only by CompareSnapshots
// which needs a repo-wide view rather than one file at a time.
func (s *Store) allActiveChunks(ctx context.Context, snapshotID string) ([]chunk.Chunk, error) {
	paths, err := s.filesVisibleAt(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	var out []chunk.Chunk
	for _, p := range paths {
		rows, err := s.resolveFileChunks(ctx, snapshotID, p, false)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

// filesVisibleAt walks the snapshot's ancestry chain collecting every
// distinct file_path ever written, so allActiveChunks knows what to ask
// resolveFileChunks for.
func (s *Store) filesVisibleAt(ctx context.Context, snapshotID string) ([]string, error) {
	seen := make(map[string]bool)
	cur := snapshotID
	for cur != "" {
		rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT file_path FROM chunks WHERE snapshot_id = ?`, cur)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var p string
			if err := rows.Scan(&p); err != nil {
				rows.Close()
				return nil, err
			}
			seen[p] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
		parent, err := s.parentOf(ctx, cur)
		if err != nil {
			return nil, err
		}
		cur = parent
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	return out, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
