// Package filesync detects file changes between runs by comparing the
// working tree against the last committed snapshot.
//
// Diff walks the tree (honoring gitignore-style patterns and an include
// extension filter), fast-paths unchanged files on size+mtime, and falls
// back to content hashing when metadata alone is inconclusive. The result
// classifies every path as added, modified, deleted, or unchanged and
// carries fresh fingerprints for everything that needs re-persisting.
//
// Commit merges those fingerprints into the previous snapshot and saves
// it. Callers decide when to commit: the orchestrator only does so after
// the vector store reflects the diff, so a crash between the two leaves
// the snapshot behind the store and the next Diff re-reports the gap.
//
// A file touched but byte-identical is reported unchanged with a
// refreshed mtime fingerprint, keeping the fast path effective on
// subsequent runs.
package filesync
