// Package mcp exposes the indexing pipeline as an MCP server over stdio.
//
// Five tools are registered:
//
//   - index_codebase: incremental index of a root directory
//   - search_code: ranked search over an indexed root
//   - reindex_codebase: full rebuild with an atomic alias swap
//   - clear_index: drop the index and change-tracking state
//   - get_status: index statistics for a root
//
// Each root maps to a stable collection alias derived from its absolute
// path, so clients address codebases by path only.
package mcp
