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

// Package pipeline implements the pipeline orchestrator (spec §4.6,
// component C6): Discovery → Parsing → IR → SemanticIR → Graph → Chunk →
// RepoMap → Indexing, fanned out per file up to parallel_workers and
// reduced at Graph/RepoMap/Indexing, with cooperative cancellation and
// JobProgress persisted through the snapshot store.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/kraklabs/semindex/pkg/chunk"
	"github.com/kraklabs/semindex/pkg/config"
	"github.com/kraklabs/semindex/pkg/graph"
	"github.com/kraklabs/semindex/pkg/indexport"
	"github.com/kraklabs/semindex/pkg/ir"
	"github.com/kraklabs/semindex/pkg/ir/lang"
	"github.com/kraklabs/semindex/pkg/parser"
	"github.com/kraklabs/semindex/pkg/semantic"
	"github.com/kraklabs/semindex/pkg/snapshot"
)

// balancedSemanticIRLimit bounds how many function-like nodes per file get
// a CFG/DFG in balanced mode (spec §6 "balanced... on-with-limits"); deep
// mode builds semantic IR for every function-like node, fast mode skips
// the stage entirely.
const balancedSemanticIRLimit = 64

// State is the run's execution state (spec §4.6 "Execution state machine").
type State string

const (
	StatePending          State = "Pending"
	StateRunning          State = "Running"
	StateCompleted        State = "Completed"
	StateFailed           State = "Failed"
	StateCancelledPartial State = "Cancelled-Partial"
)

// JobProgress records which files a run has finished, so a cancelled or
// failed run can resume without re-enqueuing completed work (spec §4.6
// "persists a JobProgress record... a later run may resume").
type JobProgress struct {
	RunID          string
	RepoID         string
	SnapshotID     string
	CompletedFiles []string
	State          State
}

// FileDiagnostic is one (file_path, stage, error_kind) failure record
// (spec §7 "user-visible failures include the offending triple").
type FileDiagnostic struct {
	FilePath string
	Stage    string
	Kind     string
	Err      error
}

// Result is what Run returns: the final state, diagnostics, and (when
// the run reached Completed) the chunk set, repo map, and semantic IR
// that were built.
type Result struct {
	State       State
	Progress    JobProgress
	Diagnostics []FileDiagnostic
	Chunks      *chunk.Set
	RepoMap     *chunk.RepoMapNode
	CFGs        []*semantic.CFG
	DFGs        []*semantic.DFG
}

// fileSemanticIR is the CFG/DFG pair for every function-like node of one
// file's IRDocument, produced in the per-file SemanticIR stage.
type fileSemanticIR struct {
	CFGs []*semantic.CFG
	DFGs []*semantic.DFG
}

// GraphMergeCollisionError is raised when two different nodes hash to
// the same id, a fatal invariant violation (spec §7).
type GraphMergeCollisionError struct {
	NodeID string
}

func (e *GraphMergeCollisionError) Error() string {
	return fmt.Sprintf("graph merge collision on node id %s", e.NodeID)
}

// Orchestrator runs the pipeline over one repository root.
type Orchestrator struct {
	Config  config.Config
	Parsers *parser.Registry
	Walkers *lang.Registry
	Store   *snapshot.Store
	Metrics *Metrics
	Logger  *slog.Logger

	// Lexical is the external lexical-indexer port (spec §6). Nil
	// disables the Indexing stage's lexical fan-out, which is the case
	// for dry runs and most tests.
	Lexical indexport.LexicalIndex

	// Progress, if set, is called after each file finishes its per-file
	// stages (successfully or not), so a caller like the CLI can drive a
	// progress bar without the orchestrator depending on any UI library.
	Progress func(completed, total int)

	// importCache memoizes extension -> language detection for
	// cachedLanguage. There is one cache per Orchestrator, keyed by
	// lower-cased file extension and shared read-mostly across the
	// per-file fan-out to avoid re-deriving the same lookups.
	importCache *lru.Cache[string, string]
}

// New constructs an Orchestrator with default registries. Pass a
// pre-opened snapshot.Store (":memory:" is fine for dry runs).
func New(cfg config.Config, store *snapshot.Store, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	cache, _ := lru.New[string, string](4096)
	return &Orchestrator{
		Config:      cfg,
		Parsers:     parser.NewRegistry(),
		Walkers:     lang.NewRegistry(),
		Store:       store,
		Metrics:     NewMetrics(prometheus.NewRegistry()),
		Logger:      logger,
		importCache: cache,
	}
}

// Run executes the full pipeline over root, producing snapshotID as a
// child of parentSnapshotID (empty for a first run). priorHashes is the
// previous snapshot's (file_path -> content_hash) map for incremental
// mode (spec §4.6 "Incremental input"); pass nil for a full run. resume
// is the JobProgress a prior Cancelled-Partial run returned; its
// completed files are not re-enqueued — their IR is loaded back from the
// snapshot store.
func (o *Orchestrator) Run(ctx context.Context, repoID, parentSnapshotID, snapshotID, root string, priorHashes map[string]string, resume *JobProgress) (Result, error) {
	runID := uuid.NewString()
	runLogger := o.Logger.With("run_id", runID, "repo_id", repoID, "snapshot_id", snapshotID)
	runLogger.Info("pipeline.stage_start", "stage", "discovery")

	pipelineCtx := ctx
	if o.Config.StageTimeouts.Pipeline > 0 {
		var cancel context.CancelFunc
		pipelineCtx, cancel = context.WithTimeout(ctx, o.Config.StageTimeouts.Pipeline)
		defer cancel()
	}

	progress := JobProgress{RunID: runID, RepoID: repoID, SnapshotID: snapshotID, State: StateRunning}
	var diagnostics []FileDiagnostic

	disc, err := o.runDiscovery(ctx, root, parentSnapshotID, priorHashes)
	if err != nil {
		return Result{State: StateFailed, Progress: progress, Diagnostics: diagnostics}, fmt.Errorf("discovery: %w", err)
	}
	runLogger.Info("pipeline.stage_done", "stage", "discovery",
		"files", len(disc.All), "changed", len(disc.Changed), "tombstones", len(disc.Tombstones))

	hashesByPath := make(map[string]string, len(disc.All))
	for _, f := range disc.All {
		hashesByPath[f.Path] = f.ContentHash
	}

	// Incremental no-op: nothing changed since the parent snapshot.
	if priorHashes != nil && len(disc.Changed) == 0 && len(disc.Tombstones) == 0 {
		progress.State = StateCompleted
		return Result{State: StateCompleted, Progress: progress, Chunks: &chunk.Set{}}, nil
	}

	// Resume: files a prior cancelled run already finished are not
	// re-enqueued; their IR comes back from the store.
	pending := disc.Changed
	var resumedDocs []*ir.IRDocument
	if resume != nil && o.Store != nil && len(resume.CompletedFiles) > 0 {
		done := make(map[string]bool, len(resume.CompletedFiles))
		for _, p := range resume.CompletedFiles {
			done[p] = true
		}
		var todo []DiscoveredFile
		var donePaths []string
		for _, f := range disc.Changed {
			if done[f.Path] {
				donePaths = append(donePaths, f.Path)
			} else {
				todo = append(todo, f)
			}
		}
		resumedDocs, err = o.Store.LoadIRDocuments(ctx, snapshotID, donePaths)
		if err != nil {
			return Result{State: StateFailed, Progress: progress}, fmt.Errorf("load resumed ir: %w", err)
		}
		// Only files whose IR actually survived the cancelled run are
		// skipped; the rest re-enqueue normally.
		recovered := make(map[string]bool, len(resumedDocs))
		for _, d := range resumedDocs {
			for i := range d.Nodes {
				if d.Nodes[i].Kind == ir.KindFile {
					recovered[d.Nodes[i].FilePath] = true
				}
			}
		}
		for _, f := range disc.Changed {
			if done[f.Path] && !recovered[f.Path] {
				todo = append(todo, f)
			}
		}
		pending = todo
		for p := range recovered {
			progress.CompletedFiles = append(progress.CompletedFiles, p)
		}
	}

	docs, sems, fileDiags, cancelled := o.runPerFileStages(pipelineCtx, repoID, snapshotID, root, pending, &progress)
	diagnostics = append(diagnostics, fileDiags...)
	docs = append(docs, resumedDocs...)
	for _, d := range resumedDocs {
		sems = append(sems, o.buildSemanticIR(d))
	}
	if cancelled {
		progress.State = StateCancelledPartial
		if o.Store != nil {
			// The run's own context is already cancelled; the flush that
			// makes resumption possible must still go through (spec §5
			// "flushes JobProgress to the snapshot store").
			flushCtx, flushCancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer flushCancel()
			_ = o.Store.SaveIRDocuments(flushCtx, snapshotID, docs)
			_ = o.persistProgress(flushCtx, progress.CompletedFiles, repoID, snapshotID, hashesByPath)
		}
		return Result{State: StateCancelledPartial, Progress: progress, Diagnostics: diagnostics}, nil
	}

	// Incremental context: unchanged files' IR from the parent snapshot,
	// so cross-file resolution and importance see the whole repository
	// even when only a handful of files were reparsed.
	if priorHashes != nil && o.Store != nil && parentSnapshotID != "" {
		changedSet := make(map[string]bool, len(disc.Changed))
		for _, f := range disc.Changed {
			changedSet[f.Path] = true
		}
		var unchanged []string
		for _, f := range disc.All {
			if !changedSet[f.Path] {
				unchanged = append(unchanged, f.Path)
			}
		}
		contextDocs, loadErr := o.Store.LoadIRDocuments(ctx, parentSnapshotID, unchanged)
		if loadErr != nil {
			runLogger.Warn("pipeline.context_ir_unavailable", "error", loadErr)
		} else {
			docs = append(docs, contextDocs...)
		}
	}

	// Deterministic reducer input regardless of fan-out completion order
	// (spec §8 "two independent pipeline runs produce byte-identical...
	// chunk sets").
	sort.Slice(docs, func(i, j int) bool { return docFilePath(docs[i]) < docFilePath(docs[j]) })

	var cfgs []*semantic.CFG
	var dfgs []*semantic.DFG
	for _, s := range sems {
		cfgs = append(cfgs, s.CFGs...)
		dfgs = append(dfgs, s.DFGs...)
	}

	source := make(map[string][]byte, len(disc.All))
	for _, f := range disc.All {
		b, readErr := os.ReadFile(filepath.Join(root, f.Path))
		if readErr == nil {
			source[f.Path] = b
		}
	}

	runLogger.Info("pipeline.stage_start", "stage", "graph")
	graphTimer := o.stageTimer("graph")
	graphCtx, graphCancel := context.WithTimeout(pipelineCtx, nonZero(o.Config.StageTimeouts.Graph, 60*time.Second))
	graphErr := runWithTimeout(graphCtx, func() error { return o.runGraphStage(docs, source) })
	graphCancel()
	graphTimer()
	if graphErr != nil {
		progress.State = StateFailed
		return Result{State: StateFailed, Progress: progress, Diagnostics: diagnostics}, fmt.Errorf("graph: %w", graphErr)
	}
	runLogger.Info("pipeline.stage_done", "stage", "graph")

	runLogger.Info("pipeline.stage_start", "stage", "chunk")
	chunkTimer := o.stageTimer("chunk")
	var set *chunk.Set
	var repoMap *chunk.RepoMapNode
	chunkCtx, chunkCancel := context.WithTimeout(pipelineCtx, nonZero(o.Config.StageTimeouts.Chunk, 10*time.Second))
	chunkErr := runWithTimeout(chunkCtx, func() error {
		set = chunk.Build(repoID, snapshotID, docs, source)
		set.ScoreImportance(docs, o.Config.PagerankDamping)
		repoMap = chunk.BuildRepoMap(set)
		return nil
	})
	chunkCancel()
	chunkTimer()
	if chunkErr != nil {
		progress.State = StateFailed
		return Result{State: StateFailed, Progress: progress, Diagnostics: diagnostics}, fmt.Errorf("chunk: %w", chunkErr)
	}
	runLogger.Info("pipeline.stage_done", "stage", "chunk", "chunks", len(set.Chunks))

	if o.Store != nil {
		runLogger.Info("pipeline.stage_start", "stage", "indexing")
		idxTimer := o.stageTimer("indexing")
		idxCtx, idxCancel := context.WithTimeout(pipelineCtx, nonZero(o.Config.StageTimeouts.Indexing, 60*time.Second))
		idxErr := o.runIndexingStage(idxCtx, repoID, parentSnapshotID, snapshotID, set, docs, disc)
		idxCancel()
		idxTimer()
		if idxErr != nil {
			progress.State = StateFailed
			return Result{State: StateFailed, Progress: progress, Diagnostics: diagnostics}, fmt.Errorf("indexing: %w", idxErr)
		}
		runLogger.Info("pipeline.stage_done", "stage", "indexing")
	}

	progress.State = StateCompleted
	if o.Store != nil {
		var allPaths []string
		for _, f := range disc.All {
			allPaths = append(allPaths, f.Path)
		}
		_ = o.persistProgress(ctx, allPaths, repoID, snapshotID, hashesByPath)
	}
	return Result{
		State: StateCompleted, Progress: progress, Diagnostics: diagnostics,
		Chunks: set, RepoMap: repoMap, CFGs: cfgs, DFGs: dfgs,
	}, nil
}

func docFilePath(doc *ir.IRDocument) string {
	for i := range doc.Nodes {
		if doc.Nodes[i].Kind == ir.KindFile {
			return doc.Nodes[i].FilePath
		}
	}
	return ""
}

// stageTimer starts a StageDuration observation; the returned func stops it.
func (o *Orchestrator) stageTimer(stage string) func() {
	if o.Metrics == nil {
		return func() {}
	}
	timer := prometheus.NewTimer(o.Metrics.StageDuration.WithLabelValues(stage))
	return func() { timer.ObserveDuration() }
}

// nonZero returns d if positive, else fallback; lets a zero-valued (i.e.
// unset) StageTimeouts field fall back to the orchestrator's own default
// instead of producing an immediately-expired context.
func nonZero(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

// runWithTimeout runs fn to completion or returns ctx.Err() if ctx expires
// first (spec §5 per-stage timeouts; "fatal for reducers"). fn itself is
// not preemptible — the timeout bounds how long Run waits for it, not fn's
// own execution, matching the synchronous reducers it wraps here.
func runWithTimeout(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// discoveryResult is what the Discovery stage hands the rest of the run:
// the full eligible file list, the subset needing a reparse, and the
// tombstones of files the previous snapshot had but the tree no longer
// does (spec §4.6 "deleted files are reported as tombstones").
type discoveryResult struct {
	All        []DiscoveredFile
	Changed    []DiscoveredFile
	Tombstones []string
}

func (o *Orchestrator) runDiscovery(ctx context.Context, root, parentSnapshotID string, priorHashes map[string]string) (discoveryResult, error) {
	files, err := discover(root, o.Config)
	if err != nil {
		return discoveryResult{}, err
	}
	res := discoveryResult{All: files}
	if priorHashes == nil {
		res.Changed = files
		return res, nil
	}

	// Incremental input: report only files whose hash differs (spec §4.6),
	// plus their reverse-import closure from the previous snapshot's
	// IMPORTS graph, plus tombstones for deleted files.
	present := make(map[string]bool, len(files))
	changedSet := make(map[string]bool)
	for _, f := range files {
		present[f.Path] = true
		if priorHashes[f.Path] != f.ContentHash {
			changedSet[f.Path] = true
		}
	}
	for p := range priorHashes {
		if !present[p] {
			res.Tombstones = append(res.Tombstones, p)
		}
	}
	sort.Strings(res.Tombstones)

	if o.Store != nil && parentSnapshotID != "" {
		o.expandImportClosure(ctx, parentSnapshotID, changedSet, res.Tombstones)
	}
	for _, f := range files {
		if changedSet[f.Path] {
			res.Changed = append(res.Changed, f)
		}
	}
	return res, nil
}

// expandImportClosure grows changedSet with every file that transitively
// imports a changed or deleted file, per the previous snapshot's
// persisted IMPORTS dependencies.
func (o *Orchestrator) expandImportClosure(ctx context.Context, parentSnapshotID string, changedSet map[string]bool, tombstones []string) {
	queue := make([]string, 0, len(changedSet)+len(tombstones))
	for p := range changedSet {
		queue = append(queue, p)
	}
	queue = append(queue, tombstones...)
	visited := make(map[string]bool, len(queue))
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if visited[p] {
			continue
		}
		visited[p] = true
		importers, err := o.Store.FilesImporting(ctx, parentSnapshotID, p)
		if err != nil {
			o.Logger.Warn("pipeline.import_closure_failed", "file", p, "error", err)
			return
		}
		for _, imp := range importers {
			if !changedSet[imp] {
				changedSet[imp] = true
				queue = append(queue, imp)
			}
		}
	}
}

// runPerFileStages fans Parsing→IR→SemanticIR out across parallel_workers,
// honoring cooperative cancellation between files (spec §4.6/§5). On
// cancellation, in-flight files are given a 30-second grace period to
// drain before being cut off (spec §5 "waits for in-flight file work to
// drain, bounded by a deadline of 30 seconds per file").
func (o *Orchestrator) runPerFileStages(ctx context.Context, repoID, snapshotID, root string, files []DiscoveredFile, progress *JobProgress) ([]*ir.IRDocument, []fileSemanticIR, []FileDiagnostic, bool) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Config.ParallelWorkers)
	drainCtx, cancelDrain := drainContext(ctx, 30*time.Second)
	defer cancelDrain()

	var mu sync.Mutex
	var docs []*ir.IRDocument
	var sems []fileSemanticIR
	var diags []FileDiagnostic
	var cancelled bool
	var done int

	for _, f := range files {
		f := f
		g.Go(func() error {
			select {
			case <-gctx.Done():
				mu.Lock()
				cancelled = true
				mu.Unlock()
				return nil
			default:
			}

			doc, sem, diag, err := o.processFileWithRetry(drainCtx, repoID, snapshotID, root, f)
			mu.Lock()
			defer mu.Unlock()
			done++
			if o.Progress != nil {
				o.Progress(done, len(files))
			}
			if err != nil {
				diags = append(diags, diag)
				if o.Metrics != nil {
					o.Metrics.FailuresTotal.WithLabelValues("ir", diag.Kind).Inc()
				}
				return nil // file-local failures skip the file, not fatal (spec §7)
			}
			docs = append(docs, doc)
			sems = append(sems, sem)
			progress.CompletedFiles = append(progress.CompletedFiles, f.Path)
			if o.Metrics != nil {
				o.Metrics.FilesTotal.WithLabelValues("ir").Inc()
			}
			return nil
		})
	}
	_ = g.Wait()
	return docs, sems, diags, cancelled
}

// drainContext derives a context that outlives parent's cancellation by
// grace, so work already in flight when the run is cancelled gets a bounded
// window to finish cleanly instead of being cut off mid-file.
func drainContext(parent context.Context, grace time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-parent.Done():
		case <-ctx.Done():
			return
		}
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-timer.C:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// processFileWithRetry runs Parsing→IR→SemanticIR for one file, retrying
// transient failures up to 3 times with 2ⁿ-second backoff (spec §4.6
// "Retries").
func (o *Orchestrator) processFileWithRetry(ctx context.Context, repoID, snapshotID, root string, f DiscoveredFile) (*ir.IRDocument, fileSemanticIR, FileDiagnostic, error) {
	const maxRetries = 3
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		doc, sem, err := o.processFile(ctx, repoID, snapshotID, root, f)
		if err == nil {
			return doc, sem, FileDiagnostic{}, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == maxRetries {
			break
		}
		backoff := time.Duration(1<<uint(attempt)) * time.Second
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			lastErr = ctx.Err()
		case <-timer.C:
		}
	}
	return nil, fileSemanticIR{}, FileDiagnostic{FilePath: f.Path, Stage: "ir", Kind: kindOf(lastErr), Err: lastErr}, lastErr
}

func (o *Orchestrator) processFile(ctx context.Context, repoID, snapshotID, root string, f DiscoveredFile) (*ir.IRDocument, fileSemanticIR, error) {
	if lang := o.cachedLanguage(f.Path); lang == "" {
		return nil, fileSemanticIR{}, &parser.UnsupportedLanguageError{Path: f.Path}
	}

	path := filepath.Join(root, f.Path)
	src, err := os.ReadFile(path) //nolint:gosec // path is Discovery's own output under root
	if err != nil {
		return nil, fileSemanticIR{}, err
	}

	irCtx, irCancel := context.WithTimeout(ctx, nonZero(o.Config.StageTimeouts.IR, 30*time.Second))
	tree, err := o.Parsers.Parse(irCtx, f.Path, src)
	irCancel()
	if err != nil {
		if _, ok := err.(*parser.UnsupportedLanguageError); ok {
			return nil, fileSemanticIR{}, err
		}
		if tree == nil {
			return nil, fileSemanticIR{}, err
		}
		// best-effort tree: structural IR continues (spec §7 ParseError policy).
	}

	walker := o.Walkers.Walker(tree.Language)
	if walker == nil {
		return nil, fileSemanticIR{}, &parser.UnsupportedLanguageError{Path: f.Path, Language: tree.Language}
	}
	doc := walker.Walk(lang.WalkContext{
		RepoID:     repoID,
		SnapshotID: snapshotID,
		FilePath:   f.Path,
		Source:     src,
		Root:       tree.Root,
	})

	sem := o.buildSemanticIR(&doc)
	return &doc, sem, nil
}

// buildSemanticIR builds a CFG/DFG per function-like node of doc, gated by
// Config.Mode (spec §6): fast skips the stage, balanced caps the number of
// functions considered, deep is unbounded.
func (o *Orchestrator) buildSemanticIR(doc *ir.IRDocument) fileSemanticIR {
	if o.Config.Mode == config.ModeFast {
		return fileSemanticIR{}
	}
	var out fileSemanticIR
	considered := 0
	for _, n := range doc.Nodes {
		if n.Kind != ir.KindFunction && n.Kind != ir.KindMethod && n.Kind != ir.KindLambda {
			continue
		}
		if o.Config.Mode == config.ModeBalanced && considered >= balancedSemanticIRLimit {
			break
		}
		considered++
		out.CFGs = append(out.CFGs, semantic.BuildCFG(doc, n.ID))
		out.DFGs = append(out.DFGs, semantic.BuildDFG(doc, n.ID))
	}
	return out
}

// cachedLanguage memoizes extension->language detection in importCache,
// the one cache every worker of the fan-out shares, sparing every file
// from re-deriving the same handful of extension lookups.
func (o *Orchestrator) cachedLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if o.importCache != nil {
		if v, ok := o.importCache.Get(ext); ok {
			return v
		}
	}
	lang := o.Parsers.DetectLanguage(path)
	if o.importCache != nil {
		o.importCache.Add(ext, lang)
	}
	return lang
}

func (o *Orchestrator) runGraphStage(docs []*ir.IRDocument, source map[string][]byte) error {
	idx := graph.NewIndex()
	for _, doc := range docs {
		idx.Add(doc)
	}
	// Re-open resolutions whose target no longer exists: an incremental
	// run's context documents can point into the prior version of a
	// reparsed file, whose node ids changed with its content. The
	// original name is still on the edge, so ResolveDocument rebinds it.
	for _, doc := range docs {
		for i := range doc.Edges {
			e := &doc.Edges[i]
			if e.TargetID != "" && idx.NodeByID(e.TargetID) == nil && e.Attrs["unresolved_name"] != "" {
				e.TargetID = ""
			}
		}
	}
	for _, doc := range docs {
		graph.ResolveDocument(idx, doc)
	}
	implEdges := graph.StructuralImplementsEdges(docs, source)
	if len(implEdges) > 0 && len(docs) > 0 {
		docs[0].Edges = append(docs[0].Edges, implEdges...)
	}
	graph.MarkEntryPoints(docs)

	seen := make(map[string]bool)
	for _, doc := range docs {
		for i := range doc.Nodes {
			n := &doc.Nodes[i]
			if seen[n.ID] {
				return &GraphMergeCollisionError{NodeID: n.ID}
			}
			seen[n.ID] = true
			if n.Role == "" {
				n.Role = graph.AssignRole(n)
			}
		}
	}
	return nil
}

func (o *Orchestrator) runIndexingStage(ctx context.Context, repoID, parentSnapshotID, snapshotID string, set *chunk.Set, docs []*ir.IRDocument, disc discoveryResult) error {
	if err := o.Store.SaveRepository(ctx, snapshot.Repository{RepoID: repoID}); err != nil {
		return err
	}
	snap := snapshot.Snapshot{SnapshotID: snapshotID, RepoID: repoID, CommitHash: snapshotID, ParentSnapshotID: parentSnapshotID}
	if err := o.Store.SaveSnapshot(ctx, snap); err != nil {
		if _, ok := err.(*snapshot.AlreadyExistsError); !ok {
			return err
		}
	}
	if err := o.Store.SaveChunks(ctx, repoID, snapshotID, o.chunksToPersist(set, disc)); err != nil {
		return err
	}
	if err := o.Store.SaveDependencies(ctx, snapshotID, set.Dependencies); err != nil {
		return err
	}
	if err := o.Store.SaveIRDocuments(ctx, snapshotID, docs); err != nil {
		return err
	}
	// Deleted files: their chunks are tombstoned into the new snapshot by
	// the same replace_file transition the store exposes to callers.
	for _, path := range disc.Tombstones {
		if err := o.Store.ReplaceFile(ctx, repoID, parentSnapshotID, snapshotID, path, nil); err != nil {
			return fmt.Errorf("tombstone %s: %w", path, err)
		}
	}
	if o.Lexical == nil {
		return nil
	}
	return o.indexLexical(ctx, set)
}

// chunksToPersist keeps a snapshot's physical chunk rows shallow on an
// incremental run: only reparsed files' chunks (and the file-path-less
// module/repo rollups) are written; unchanged files keep resolving
// through the parent snapshot (spec §4.7 step 1, "shallow... physically
// realized via index lookup, not data duplication").
func (o *Orchestrator) chunksToPersist(set *chunk.Set, disc discoveryResult) []chunk.Chunk {
	if len(disc.Changed) == len(disc.All) {
		return set.Chunks
	}
	changed := make(map[string]bool, len(disc.Changed))
	for _, f := range disc.Changed {
		changed[f.Path] = true
	}
	var out []chunk.Chunk
	for _, c := range set.Chunks {
		if c.FilePath == "" || changed[c.FilePath] {
			out = append(out, c)
		}
	}
	return out
}

// indexLexical fans the snapshot's active chunks out to the lexical
// indexer port, retrying each chunk up to 3 times with 2ⁿ-second backoff
// (spec §7 "IndexerTransient... retry with backoff at Indexing stage").
// A chunk that still fails after retries is logged and skipped rather
// than failing the whole run — the symbol/sqlite side of the snapshot
// has already committed, and the lexical index is a secondary view.
func (o *Orchestrator) indexLexical(ctx context.Context, set *chunk.Set) error {
	const maxRetries = 3
	for _, c := range set.Chunks {
		if c.IsDeleted {
			continue
		}
		var lastErr error
		for attempt := 0; attempt <= maxRetries; attempt++ {
			payload := indexport.LexicalPayload{FilePath: c.FilePath, Language: c.Language}
			if lastErr = o.Lexical.Index(ctx, c.ChunkID, c.Content, payload); lastErr == nil || attempt == maxRetries {
				break
			}
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if lastErr != nil {
			o.Logger.Warn("pipeline.lexical_index_failed", "chunk_id", c.ChunkID, "error", lastErr)
		}
	}
	return nil
}

// persistProgress records the content hash of each given file under the
// snapshot: every eligible file on a completed run (the next incremental
// run diffs against the full map), only finished files on a cancelled one.
func (o *Orchestrator) persistProgress(ctx context.Context, paths []string, repoID, snapshotID string, hashesByPath map[string]string) error {
	for _, path := range paths {
		if err := o.Store.SaveFileMetadata(ctx, repoID, snapshotID, path, hashesByPath[path]); err != nil {
			return err
		}
	}
	return nil
}

// isRetryable distinguishes transient (I/O, resource contention) from
// permanent (syntax, unsupported language) failures (spec §4.6).
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch err.(type) {
	case *parser.UnsupportedLanguageError:
		return false
	case *parser.ParseError:
		return false
	}
	return true
}

func kindOf(err error) string {
	switch err.(type) {
	case *parser.UnsupportedLanguageError:
		return "UnsupportedLanguage"
	case *parser.ParseError:
		return "ParseError"
	default:
		return "Transient"
	}
}
