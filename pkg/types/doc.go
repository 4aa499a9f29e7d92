// Package types defines the shared data model for the indexing pipeline:
// chunks produced by the chunker, vector documents written to the store,
// file diffs computed by the synchronizer, progress reporting, and the
// cross-cutting error taxonomy.
//
// Types here are plain data with no behavior beyond identity derivation and
// validation. Components communicate exclusively through these types so the
// orchestrator can be wired against any store or embedding backend.
package types
