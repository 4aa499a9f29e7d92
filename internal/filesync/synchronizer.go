package filesync

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mpetrun/semcode/internal/snapshot"
	"github.com/mpetrun/semcode/pkg/types"
)

// Synchronizer produces file diffs between the current tree and the last
// snapshot, and persists the new snapshot once the caller confirms the diff
// was applied. The snapshot is single-writer; the orchestrator owns it
// exclusively during a run.
type Synchronizer struct {
	snapshots *snapshot.Store
	logger    *zap.Logger
	workers   int
}

// DiffResult carries a computed diff plus the fingerprints needed to commit
// it and any per-file errors encountered along the way.
type DiffResult struct {
	Diff *types.FileDiff

	// Fingerprints holds fresh fingerprints for added, modified, and
	// mtime-refreshed unchanged files, keyed by relative path.
	Fingerprints map[string]snapshot.FileFingerprint

	// Errors lists unreadable files. They are excluded from every diff set.
	Errors []types.FileError
}

// New creates a Synchronizer backed by the given snapshot store.
func New(snapshots *snapshot.Store, logger *zap.Logger) *Synchronizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{
		snapshots: snapshots,
		logger:    logger,
		workers:   runtime.NumCPU(),
	}
}

// LoadSnapshot returns the persisted snapshot for rootDir, or a
// types.ErrNotFound-wrapped error when no snapshot exists.
func (s *Synchronizer) LoadSnapshot(rootDir string) (*snapshot.Snapshot, error) {
	return s.snapshots.Load(rootDir)
}

// SnapshotExists reports whether a snapshot is persisted for rootDir.
func (s *Synchronizer) SnapshotExists(rootDir string) bool {
	return s.snapshots.Exists(rootDir)
}

// DeleteSnapshot removes the persisted snapshot for rootDir.
func (s *Synchronizer) DeleteSnapshot(rootDir string) error {
	return s.snapshots.Delete(rootDir)
}

// Initialize walks the tree once, fingerprints every surviving file, and
// persists the resulting snapshot. Cold-start path, also used to produce a
// standalone baseline without indexing.
func (s *Synchronizer) Initialize(ctx context.Context, rootDir string, ignorePatterns, includeExtensions []string) (*snapshot.Snapshot, error) {
	matcher := NewMatcher(ignorePatterns, includeExtensions)
	files, err := s.walk(rootDir, matcher)
	if err != nil {
		return nil, err
	}

	fingerprints, fileErrs, err := s.fingerprintAll(ctx, rootDir, files)
	if err != nil {
		return nil, err
	}
	for _, fe := range fileErrs {
		s.logger.Warn("skipping unreadable file", zap.String("path", fe.Path), zap.Error(fe.Err))
	}

	snap := snapshot.New(rootDir, ignorePatterns, includeExtensions)
	snap.FileHashes = fingerprints
	if err := s.snapshots.Save(snap); err != nil {
		return nil, err
	}

	s.logger.Info("snapshot initialized",
		zap.String("root", rootDir),
		zap.Int("files", len(fingerprints)))
	return snap, nil
}

// Diff re-walks the tree with the snapshot's filters and classifies every
// path as added, modified, deleted, or unchanged. Fingerprints are
// recomputed only for files whose size or mtime differ from the snapshot;
// the content hash is the correctness fallback when mtime lies.
func (s *Synchronizer) Diff(ctx context.Context, rootDir string, prev *snapshot.Snapshot) (*DiffResult, error) {
	matcher := NewMatcher(prev.IgnorePatterns, prev.IncludeExtensions)
	files, err := s.walk(rootDir, matcher)
	if err != nil {
		return nil, err
	}

	result := &DiffResult{
		Diff:         &types.FileDiff{},
		Fingerprints: make(map[string]snapshot.FileFingerprint),
	}

	var mu sync.Mutex
	seen := make(map[string]struct{}, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			rel := file.rel
			prevFP, existed := prev.FileHashes[rel]

			// Fast path: identical size and mtime means unchanged without
			// rereading the file.
			if existed && prevFP.Size == file.info.Size() && prevFP.ModTime.Equal(file.info.ModTime()) {
				mu.Lock()
				seen[rel] = struct{}{}
				result.Diff.Unchanged = append(result.Diff.Unchanged, rel)
				mu.Unlock()
				return nil
			}

			digest, size, modTime, err := HashFile(file.abs)
			if err != nil {
				mu.Lock()
				result.Errors = append(result.Errors, types.FileError{Path: rel, Err: err})
				mu.Unlock()
				return nil
			}

			fp := snapshot.FileFingerprint{Path: rel, Hash: digest, Size: size, ModTime: modTime}

			mu.Lock()
			defer mu.Unlock()
			seen[rel] = struct{}{}
			switch {
			case !existed:
				result.Diff.Added = append(result.Diff.Added, rel)
				result.Fingerprints[rel] = fp
			case prevFP.Hash != digest:
				result.Diff.Modified = append(result.Diff.Modified, rel)
				result.Fingerprints[rel] = fp
			default:
				// Content identical, metadata stale. Refresh the fingerprint
				// so the fast path works next run.
				result.Diff.Unchanged = append(result.Diff.Unchanged, rel)
				result.Fingerprints[rel] = fp
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for rel := range prev.FileHashes {
		if _, ok := seen[rel]; !ok {
			result.Diff.Deleted = append(result.Diff.Deleted, rel)
		}
	}

	sort.Strings(result.Diff.Added)
	sort.Strings(result.Diff.Modified)
	sort.Strings(result.Diff.Deleted)
	sort.Strings(result.Diff.Unchanged)

	return result, nil
}

// Commit merges a successfully applied diff into the previous snapshot and
// persists it. Must only be called after the corresponding store writes are
// durable: a crash before Commit simply re-embeds the same files next run.
func (s *Synchronizer) Commit(rootDir string, result *DiffResult, prev *snapshot.Snapshot) (*snapshot.Snapshot, error) {
	next := snapshot.New(rootDir, prev.IgnorePatterns, prev.IncludeExtensions)
	for rel, fp := range prev.FileHashes {
		next.FileHashes[rel] = fp
	}
	for _, rel := range result.Diff.Deleted {
		delete(next.FileHashes, rel)
	}
	for rel, fp := range result.Fingerprints {
		next.FileHashes[rel] = fp
	}

	if err := s.snapshots.Save(next); err != nil {
		return nil, err
	}
	return next, nil
}

type walkedFile struct {
	rel  string
	abs  string
	info fs.FileInfo
}

// walk enumerates regular files under rootDir that survive ignore and
// include filtering. An unreadable root is fatal.
func (s *Synchronizer) walk(rootDir string, matcher *Matcher) ([]walkedFile, error) {
	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, fmt.Errorf("root directory %s: %w", rootDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", rootDir)
	}

	var files []walkedFile
	err = filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == rootDir {
				return err
			}
			s.logger.Warn("walk error", zap.String("path", path), zap.Error(err))
			return nil
		}

		rel, err := filepath.Rel(rootDir, path)
		if err != nil {
			return err
		}
		rel = strings.ReplaceAll(rel, "\\", "/")
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if matcher.IgnoredDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if matcher.IgnoredFile(rel) || !matcher.IncludeFile(rel) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			s.logger.Warn("stat error", zap.String("path", path), zap.Error(err))
			return nil
		}

		files = append(files, walkedFile{rel: rel, abs: path, info: fi})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", rootDir, err)
	}
	return files, nil
}

// fingerprintAll hashes every walked file with bounded parallelism.
func (s *Synchronizer) fingerprintAll(ctx context.Context, rootDir string, files []walkedFile) (map[string]snapshot.FileFingerprint, []types.FileError, error) {
	fingerprints := make(map[string]snapshot.FileFingerprint, len(files))
	var fileErrs []types.FileError
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			digest, size, modTime, err := HashFile(file.abs)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fileErrs = append(fileErrs, types.FileError{Path: file.rel, Err: err})
				return nil
			}
			fingerprints[file.rel] = snapshot.FileFingerprint{
				Path:    file.rel,
				Hash:    digest,
				Size:    size,
				ModTime: modTime,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return fingerprints, fileErrs, nil
}
