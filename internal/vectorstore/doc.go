// Package vectorstore persists and searches embedded document chunks.
//
// The VectorStore interface covers collection lifecycle, document upsert
// and deletion, and ranked search in three modes: vector similarity,
// keyword text match, and a hybrid merge of both. Stores that also
// implement AliasManager support atomic alias repointing, which the
// indexer uses for zero-downtime rebuilds.
//
// # Backends
//
//   - Memory: map-backed, for tests and the zero-config path.
//   - SQLite: one table per collection, vectors as little-endian float32
//     blobs scored in Go. Build tags select the driver: the default build
//     uses modernc.org/sqlite (pure Go); -tags sqlite_cgo selects
//     mattn/go-sqlite3.
//   - PGVector: Postgres with the pgvector extension. Vector search uses
//     the <=> cosine operator over an hnsw index; text search uses a
//     generated tsvector column with ts_rank.
//
// All backends upsert by document ID, so re-inserting a chunk with the
// same deterministic ID replaces it in place.
//
// # Collections and Aliases
//
// Collection names are restricted to [a-zA-Z0-9_]+ because they appear in
// table names. Aliases map a stable name (derived from a root directory)
// to the physical collection currently serving it; readers resolve the
// alias, writers swap it.
package vectorstore
