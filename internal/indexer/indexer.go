package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mpetrun/semcode/internal/chunker"
	"github.com/mpetrun/semcode/internal/embedder"
	"github.com/mpetrun/semcode/internal/filesync"
	"github.com/mpetrun/semcode/internal/snapshot"
	"github.com/mpetrun/semcode/internal/vectorstore"
	"github.com/mpetrun/semcode/pkg/types"
)

// Options configures one indexing run.
type Options struct {
	RootDir           string
	Collection        string
	IgnorePatterns    []string
	IncludeExtensions []string
	Workers           int // embedding workers (default: NumCPU)
	BatchSize         int // chunks per embedding batch (default: 20)
	OnProgress        types.ProgressFunc
	ProgressInterval  time.Duration
}

// Indexer drives the incremental pipeline: diff the tree against the last
// snapshot, delete vanished files from the store, chunk and embed changed
// files, upsert, and only then commit the snapshot. A crash at any point
// leaves the snapshot behind the store, which re-converges on the next run.
type Indexer struct {
	sync     *filesync.Synchronizer
	chunker  *chunker.Chunker
	embedder embedder.Embedder
	store    vectorstore.VectorStore
	registry *RunRegistry
	logger   *zap.Logger
}

// New creates an Indexer over the given pipeline components.
func New(sync *filesync.Synchronizer, chk *chunker.Chunker, emb embedder.Embedder, store vectorstore.VectorStore, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		sync:     sync,
		chunker:  chk,
		embedder: emb,
		store:    store,
		registry: NewRunRegistry(),
		logger:   logger,
	}
}

// Index runs one incremental indexing pass over opts.RootDir. The first
// run for a root indexes everything; subsequent runs process only the
// diff. Partial stats are returned alongside the error when the run
// aborts.
func (idx *Indexer) Index(ctx context.Context, opts Options) (*types.IndexStats, error) {
	start := time.Now()
	stats := &types.IndexStats{}

	if err := idx.normalize(&opts); err != nil {
		return stats, err
	}

	release, ok := idx.registry.TryAcquire(opts.RootDir)
	if !ok {
		return stats, fmt.Errorf("%w: %s", types.ErrIndexInProgress, opts.RootDir)
	}
	defer release()

	reporter := newProgressReporter(opts.OnProgress, opts.ProgressInterval)
	defer func() {
		stats.Duration = time.Since(start)
		reporter.Finish(types.PhaseFinalizing, stats.FilesProcessed, stats.FilesProcessed)
	}()

	// After an alias swap the physical collection carries a timestamped
	// name; incremental runs must write there, not to the alias.
	opts.Collection = idx.resolveCollection(ctx, opts.Collection)

	if err := idx.ensureCollection(ctx, opts.Collection); err != nil {
		return stats, err
	}

	prev, diff, err := idx.computeDiff(ctx, opts, reporter)
	if err != nil {
		return stats, err
	}
	for _, fe := range diff.Errors {
		stats.Errors = append(stats.Errors, fe.Error())
	}

	// A first run always commits, even over an empty tree, so the root is
	// marked indexed and later runs diff against a real snapshot.
	if !diff.Diff.HasChanges() && len(diff.Fingerprints) == 0 && idx.sync.SnapshotExists(opts.RootDir) {
		idx.logger.Info("index up to date",
			zap.String("root", opts.RootDir),
			zap.Int("files", len(diff.Diff.Unchanged)))
		return stats, nil
	}

	// Deletions first so a crash mid-run never leaves ghost documents for
	// files that no longer exist.
	for _, rel := range diff.Diff.Deleted {
		removed, err := idx.store.DeleteByPath(ctx, opts.Collection, rel)
		if err != nil {
			return stats, fmt.Errorf("delete documents for %s: %w", rel, err)
		}
		stats.FilesDeleted++
		idx.logger.Debug("deleted file documents",
			zap.String("path", rel), zap.Int("documents", removed))
	}

	changed := diff.Diff.ChangedFiles()
	failedFiles, err := idx.processFiles(ctx, opts, changed, stats, reporter)
	if err != nil {
		return stats, err
	}

	// Files that failed to chunk or embed stay out of the snapshot so the
	// next run picks them up again.
	for _, rel := range failedFiles {
		delete(diff.Fingerprints, rel)
	}

	// Store writes are durable; persisting the snapshot now makes the run
	// observable as complete.
	if _, err := idx.sync.Commit(opts.RootDir, diff, prev); err != nil {
		return stats, fmt.Errorf("commit snapshot: %w", err)
	}

	idx.logger.Info("indexing complete",
		zap.String("root", opts.RootDir),
		zap.Int("files_processed", stats.FilesProcessed),
		zap.Int("files_deleted", stats.FilesDeleted),
		zap.Int("chunks_embedded", stats.ChunksEmbedded),
		zap.Int("chunks_failed", stats.ChunksFailed),
		zap.Duration("duration", time.Since(start)))

	return stats, nil
}

// Baseline captures a snapshot of the current tree without chunking or
// embedding anything. Subsequent incremental runs treat the captured
// state as already indexed and only process changes made after it.
func (idx *Indexer) Baseline(ctx context.Context, opts Options) (*snapshot.Snapshot, error) {
	if opts.RootDir == "" {
		return nil, fmt.Errorf("root directory is required")
	}
	abs, err := filepath.Abs(opts.RootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", opts.RootDir, err)
	}

	release, ok := idx.registry.TryAcquire(abs)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrIndexInProgress, abs)
	}
	defer release()

	return idx.sync.Initialize(ctx, abs, opts.IgnorePatterns, opts.IncludeExtensions)
}

// HasIndex reports whether the root is usable for search: a snapshot
// exists and the resolved collection holds documents. A collection dropped
// or emptied out-of-band reads as not indexed.
func (idx *Indexer) HasIndex(ctx context.Context, rootDir, collection string) bool {
	if !idx.sync.SnapshotExists(rootDir) {
		return false
	}
	target := idx.resolveCollection(ctx, collection)
	count, err := idx.store.Count(ctx, target)
	return err == nil && count > 0
}

// Clear removes the collection and the snapshot for a root, returning the
// root to a cold-start state.
func (idx *Indexer) Clear(ctx context.Context, rootDir, collection string) error {
	release, ok := idx.registry.TryAcquire(rootDir)
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrIndexInProgress, rootDir)
	}
	defer release()

	if err := idx.store.DropCollection(ctx, collection); err != nil {
		return fmt.Errorf("drop collection %s: %w", collection, err)
	}
	if err := idx.sync.DeleteSnapshot(rootDir); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	idx.logger.Info("index cleared", zap.String("root", rootDir), zap.String("collection", collection))
	return nil
}

func (idx *Indexer) normalize(opts *Options) error {
	if opts.RootDir == "" {
		return fmt.Errorf("root directory is required")
	}
	abs, err := filepath.Abs(opts.RootDir)
	if err != nil {
		return fmt.Errorf("resolve root %s: %w", opts.RootDir, err)
	}
	opts.RootDir = abs
	if opts.Collection == "" {
		return fmt.Errorf("collection is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	return nil
}

// resolveCollection follows the store's alias when one exists, falling
// back to the literal name for roots that were never alias-swapped.
func (idx *Indexer) resolveCollection(ctx context.Context, name string) string {
	mgr, ok := idx.store.(vectorstore.AliasManager)
	if !ok {
		return name
	}
	target, err := mgr.GetAliasTarget(ctx, name)
	if err != nil {
		return name
	}
	return target
}

func (idx *Indexer) ensureCollection(ctx context.Context, collection string) error {
	exists, err := idx.store.HasCollection(ctx, collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		return nil
	}
	if err := idx.store.CreateCollection(ctx, collection, idx.embedder.Dimension()); err != nil {
		return fmt.Errorf("create collection %s: %w", collection, err)
	}
	return nil
}

// computeDiff loads the previous snapshot, or initializes one on cold
// start. On cold start every file is reported as added with fingerprints
// already computed, so the same downstream path handles both cases.
func (idx *Indexer) computeDiff(ctx context.Context, opts Options, reporter *progressReporter) (*snapshot.Snapshot, *filesync.DiffResult, error) {
	reporter.Report(types.PhaseScanning, 0, 0)

	prev, err := idx.sync.LoadSnapshot(opts.RootDir)
	if errors.Is(err, types.ErrNotFound) {
		return idx.coldStart(ctx, opts)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load snapshot: %w", err)
	}

	diff, err := idx.sync.Diff(ctx, opts.RootDir, prev)
	if err != nil {
		return nil, nil, fmt.Errorf("diff tree: %w", err)
	}
	return prev, diff, nil
}

func (idx *Indexer) coldStart(ctx context.Context, opts Options) (*snapshot.Snapshot, *filesync.DiffResult, error) {
	empty := snapshot.New(opts.RootDir, opts.IgnorePatterns, opts.IncludeExtensions)
	diff, err := idx.sync.Diff(ctx, opts.RootDir, empty)
	if err != nil {
		return nil, nil, fmt.Errorf("scan tree: %w", err)
	}
	return empty, diff, nil
}

// fileJob carries one changed file through the chunk/embed/upsert stages.
type fileJob struct {
	rel    string
	chunks []types.Chunk
}

// processFiles chunks, embeds, and upserts the changed files with bounded
// parallelism. Embedding failures for a file are recorded and skip the
// file's upsert; the file stays out of the committed snapshot via the
// fingerprint removal below, so the next run retries it.
func (idx *Indexer) processFiles(ctx context.Context, opts Options, changed []string, stats *types.IndexStats, reporter *progressReporter) ([]string, error) {
	if len(changed) == 0 {
		return nil, nil
	}

	var (
		mu          sync.Mutex
		completed   int
		failedFiles []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for _, rel := range changed {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			job, err := idx.chunkFile(opts.RootDir, rel)
			if err != nil {
				mu.Lock()
				stats.Errors = append(stats.Errors, types.FileError{Path: rel, Err: err}.Error())
				failedFiles = append(failedFiles, rel)
				completed++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			done := completed
			mu.Unlock()
			reporter.Report(types.PhaseChunking, done, len(changed))

			// Clear the file's previous documents up front, then stream
			// batches in as they embed. Deterministic chunk IDs make a
			// retried file converge to the same documents, so a failure
			// mid-file leaves at most a partially populated file that the
			// next run rewrites.
			if _, err := idx.store.DeleteByPath(gctx, opts.Collection, rel); err != nil {
				return fmt.Errorf("clear stale documents for %s: %w", rel, err)
			}

			embedded, failed, err := idx.embedFile(gctx, opts, job, reporter, done, len(changed))
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			completed++
			stats.FilesProcessed++
			stats.ChunksCreated += len(job.chunks)
			stats.ChunksEmbedded += embedded
			stats.ChunksFailed += failed
			if failed > 0 {
				failedFiles = append(failedFiles, rel)
				stats.Errors = append(stats.Errors,
					fmt.Sprintf("%s: %d of %d chunks failed to embed", rel, failed, len(job.chunks)))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return failedFiles, nil
}

func (idx *Indexer) chunkFile(rootDir, rel string) (*fileJob, error) {
	content, err := os.ReadFile(filepath.Join(rootDir, filepath.FromSlash(rel)))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return &fileJob{rel: rel, chunks: idx.chunker.ChunkFile(rel, content)}, nil
}

// embedFile embeds a file's chunks in batches, upserting each batch as it
// completes rather than holding the whole file in memory. A permanent
// error aborts the run; transient errors were already retried inside the
// embedder and count as failed chunks for this run.
func (idx *Indexer) embedFile(ctx context.Context, opts Options, job *fileJob, reporter *progressReporter, completed, total int) (embedded, failed int, err error) {
	for batchStart := 0; batchStart < len(job.chunks); batchStart += opts.BatchSize {
		batchEnd := batchStart + opts.BatchSize
		if batchEnd > len(job.chunks) {
			batchEnd = len(job.chunks)
		}
		batch := job.chunks[batchStart:batchEnd]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Content
		}

		resp, err := idx.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
		if err != nil {
			if types.IsTransient(err) {
				failed += len(batch)
				idx.logger.Warn("embedding batch failed after retries",
					zap.String("path", job.rel), zap.Error(err))
				continue
			}
			return embedded, failed, fmt.Errorf("embed %s: %w", job.rel, err)
		}
		if len(resp.Embeddings) != len(batch) {
			return embedded, failed, fmt.Errorf("embed %s: expected %d embeddings, got %d",
				job.rel, len(batch), len(resp.Embeddings))
		}
		reporter.Report(types.PhaseEmbedding, completed, total)

		docs := make([]*types.VectorDocument, len(batch))
		for i, emb := range resp.Embeddings {
			docs[i] = types.NewVectorDocument(&batch[i], emb.Vector)
		}
		if err := idx.store.Insert(ctx, opts.Collection, docs); err != nil {
			return embedded, failed, fmt.Errorf("upsert documents for %s: %w", job.rel, err)
		}
		embedded += len(docs)
		reporter.Report(types.PhaseUpserting, completed, total)
	}

	return embedded, failed, nil
}
