// Package indexer orchestrates the incremental indexing pipeline.
//
// One Index run diffs the tree against the last snapshot, deletes
// documents for vanished files, then chunks, embeds, and upserts changed
// files with bounded parallelism. Each embedding batch is upserted as it
// completes. The snapshot commits strictly after all store writes, and
// files that failed to chunk or embed are dropped from the committed
// fingerprints, so the next run retries exactly the unfinished work.
//
// # Run Exclusivity
//
// A per-root try-lock registry rejects overlapping runs with
// types.ErrIndexInProgress instead of queueing them. Different roots
// index concurrently.
//
// # Progress
//
// Progress callbacks are throttled to one per interval, except phase
// transitions and the terminal report. Every run, including aborts and
// no-ops, ends with exactly one report at 100%.
//
// # Full Rebuilds
//
// SwapCoordinator.Reindex builds a fresh timestamped collection from
// scratch, atomically repoints the root's alias to it, and drops the
// superseded collection after a drain grace period. A failed build drops
// only the fresh collection; the alias and the old data stay serving.
package indexer
