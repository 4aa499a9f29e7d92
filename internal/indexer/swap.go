package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mpetrun/semcode/internal/filesync"
	"github.com/mpetrun/semcode/internal/snapshot"
	"github.com/mpetrun/semcode/internal/vectorstore"
	"github.com/mpetrun/semcode/pkg/types"
)

// SwapCoordinator rebuilds an index from scratch into a fresh collection
// and atomically repoints the alias once the build succeeds. Readers
// resolving the alias never observe a partially built index: they see the
// old collection until the swap, the new one after. A failed build drops
// the fresh collection and leaves the alias untouched.
type SwapCoordinator struct {
	indexer     *Indexer
	gracePeriod time.Duration
	logger      *zap.Logger
}

// NewSwapCoordinator creates a coordinator. gracePeriod is how long the
// old collection is kept alive after the swap so in-flight searches
// against it can finish.
func NewSwapCoordinator(idx *Indexer, gracePeriod time.Duration, logger *zap.Logger) *SwapCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gracePeriod <= 0 {
		gracePeriod = 5 * time.Second
	}
	return &SwapCoordinator{indexer: idx, gracePeriod: gracePeriod, logger: logger}
}

// Reindex performs a full rebuild. opts.Collection names the alias; the
// backing collection gets a timestamped name derived from it.
func (c *SwapCoordinator) Reindex(ctx context.Context, opts Options) (*types.IndexStats, error) {
	start := time.Now()
	stats := &types.IndexStats{}

	if err := c.indexer.normalize(&opts); err != nil {
		return stats, err
	}

	aliases, ok := c.indexer.store.(vectorstore.AliasManager)
	if !ok {
		return stats, fmt.Errorf("store backend does not support alias swaps")
	}

	release, ok := c.indexer.registry.TryAcquire(opts.RootDir)
	if !ok {
		return stats, fmt.Errorf("%w: %s", types.ErrIndexInProgress, opts.RootDir)
	}
	defer release()

	reporter := newProgressReporter(opts.OnProgress, opts.ProgressInterval)
	defer func() {
		stats.Duration = time.Since(start)
		reporter.Finish(types.PhaseFinalizing, stats.FilesProcessed, stats.FilesProcessed)
	}()

	alias := opts.Collection
	fresh := fmt.Sprintf("%s_%s", alias, time.Now().UTC().Format("20060102150405"))

	if err := c.indexer.store.CreateCollection(ctx, fresh, c.indexer.embedder.Dimension()); err != nil {
		return stats, fmt.Errorf("create collection %s: %w", fresh, err)
	}

	buildOpts := opts
	buildOpts.Collection = fresh
	prev, diff, err := c.build(ctx, buildOpts, stats, reporter)
	if err != nil {
		c.abandon(ctx, fresh)
		return stats, err
	}

	old, err := aliases.GetAliasTarget(ctx, alias)
	if err != nil && !errors.Is(err, types.ErrAliasNotFound) {
		c.abandon(ctx, fresh)
		return stats, fmt.Errorf("read alias %s: %w", alias, err)
	}

	if old == "" {
		// A root first indexed incrementally has a literal collection named
		// after the alias; retire it like any superseded target.
		if exists, hasErr := c.indexer.store.HasCollection(ctx, alias); hasErr == nil && exists {
			old = alias
		}
	}

	if err := aliases.SetAliasTarget(ctx, alias, fresh); err != nil {
		c.abandon(ctx, fresh)
		return stats, fmt.Errorf("swap alias %s: %w", alias, err)
	}

	// The alias now points at the rebuilt collection; persist the snapshot
	// so incremental runs continue from this state.
	if _, err := c.indexer.sync.Commit(opts.RootDir, diff, prev); err != nil {
		return stats, fmt.Errorf("commit snapshot: %w", err)
	}

	c.logger.Info("alias swapped",
		zap.String("alias", alias),
		zap.String("collection", fresh),
		zap.String("previous", old))

	c.retireOld(ctx, old, fresh)
	return stats, nil
}

// build runs a cold-start pass into the fresh collection, ignoring any
// previous snapshot. Failed files are dropped from the fingerprints so
// the committed snapshot stays honest.
func (c *SwapCoordinator) build(ctx context.Context, opts Options, stats *types.IndexStats, reporter *progressReporter) (*snapshot.Snapshot, *filesync.DiffResult, error) {
	reporter.Report(types.PhaseScanning, 0, 0)

	empty := snapshot.New(opts.RootDir, opts.IgnorePatterns, opts.IncludeExtensions)
	diff, err := c.indexer.sync.Diff(ctx, opts.RootDir, empty)
	if err != nil {
		return nil, nil, fmt.Errorf("scan tree: %w", err)
	}
	for _, fe := range diff.Errors {
		stats.Errors = append(stats.Errors, fe.Error())
	}

	failedFiles, err := c.indexer.processFiles(ctx, opts, diff.Diff.ChangedFiles(), stats, reporter)
	if err != nil {
		return nil, nil, err
	}
	for _, rel := range failedFiles {
		delete(diff.Fingerprints, rel)
	}
	return empty, diff, nil
}

// abandon drops a half-built collection. Best effort: the alias was never
// repointed, so a leftover collection is garbage, not corruption.
func (c *SwapCoordinator) abandon(ctx context.Context, collection string) {
	if err := c.indexer.store.DropCollection(ctx, collection); err != nil {
		c.logger.Warn("failed to drop abandoned collection",
			zap.String("collection", collection), zap.Error(err))
	}
}

// retireOld waits out the grace period, then drops the superseded
// collection. Honors context cancellation during the wait.
func (c *SwapCoordinator) retireOld(ctx context.Context, old, fresh string) {
	if old == "" || old == fresh {
		return
	}

	select {
	case <-time.After(c.gracePeriod):
	case <-ctx.Done():
		c.logger.Warn("grace period interrupted, leaving old collection",
			zap.String("collection", old))
		return
	}

	if err := c.indexer.store.DropCollection(ctx, old); err != nil {
		c.logger.Warn("failed to drop superseded collection",
			zap.String("collection", old), zap.Error(err))
		return
	}
	c.logger.Info("superseded collection dropped", zap.String("collection", old))
}
