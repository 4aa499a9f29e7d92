// Package searcher is the query-side API over the vector store.
//
// A Request names a collection (usually an alias), a query, and a mode:
// vector (cosine over the embedded query), text (keyword match), or
// hybrid (weighted merge of both). The searcher resolves aliases per
// query so results track alias swaps, falling back to the literal
// collection name for roots that were never swapped.
//
// Responses are cached in a TTL'd LRU keyed by the request fields that
// affect results. InvalidateCache is called after every write path so
// stale results never outlive a re-index.
package searcher
