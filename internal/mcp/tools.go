package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/zeebo/xxh3"

	"github.com/mpetrun/semcode/internal/indexer"
	"github.com/mpetrun/semcode/internal/searcher"
	"github.com/mpetrun/semcode/internal/vectorstore"
	"github.com/mpetrun/semcode/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another indexing run is active for this root
	ErrorCodeNotIndexed         = -32003 // Codebase not indexed
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

// collectionFor derives the stable collection (alias) name for a root.
func collectionFor(rootDir string) string {
	return fmt.Sprintf("idx_%016x", xxh3.HashString(rootDir))
}

// handleIndexCodebase handles the index_codebase tool invocation
func (s *Server) handleIndexCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := s.requirePath(args)
	if err != nil {
		return nil, err
	}

	opts := s.indexOptions(path, args)
	stats, err := s.indexer.Index(ctx, opts)
	if err != nil {
		if errors.Is(err, types.ErrIndexInProgress) {
			return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", map[string]interface{}{
				"path": path,
			})
		}
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.searcher.InvalidateCache()
	return mcp.NewToolResultText(formatJSON(statsResponse(path, stats))), nil
}

// handleReindexCodebase handles the reindex_codebase tool invocation
func (s *Server) handleReindexCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := s.requirePath(args)
	if err != nil {
		return nil, err
	}

	opts := s.indexOptions(path, args)
	stats, err := s.swapper.Reindex(ctx, opts)
	if err != nil {
		if errors.Is(err, types.ErrIndexInProgress) {
			return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", map[string]interface{}{
				"path": path,
			})
		}
		return nil, newMCPError(ErrorCodeInternalError, "reindexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.searcher.InvalidateCache()
	return mcp.NewToolResultText(formatJSON(statsResponse(path, stats))), nil
}

// handleSearchCode handles the search_code tool invocation
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := s.requirePath(args)
	if err != nil {
		return nil, err
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param": "query",
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	mode := vectorstore.SearchMode(getStringDefault(args, "search_mode", string(vectorstore.SearchModeVector)))
	switch mode {
	case vectorstore.SearchModeVector, vectorstore.SearchModeText, vectorstore.SearchModeHybrid:
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid search_mode", map[string]interface{}{
			"param":   "search_mode",
			"value":   string(mode),
			"allowed": []string{"vector", "text", "hybrid"},
		})
	}

	if !s.indexer.HasIndex(ctx, path, collectionFor(path)) {
		return nil, newMCPError(ErrorCodeNotIndexed, "codebase not indexed; run index_codebase first", map[string]interface{}{
			"path": path,
		})
	}

	resp, err := s.searcher.Search(ctx, searcherRequest(path, query, mode, limit, args))
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for i, r := range resp.Results {
		results = append(results, map[string]interface{}{
			"rank":       i + 1,
			"score":      r.Score,
			"path":       r.Document.RelativePath,
			"start_line": r.Document.StartLine,
			"end_line":   r.Document.EndLine,
			"content":    r.Document.Content,
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"query":       query,
		"mode":        string(resp.Mode),
		"results":     results,
		"total":       len(results),
		"duration_ms": resp.Duration.Milliseconds(),
		"cache_hit":   resp.CacheHit,
	})), nil
}

// handleClearIndex handles the clear_index tool invocation
func (s *Server) handleClearIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := s.requirePath(args)
	if err != nil {
		return nil, err
	}

	alias := collectionFor(path)
	target := alias
	if mgr, ok := s.store.(vectorstore.AliasManager); ok {
		if resolved, err := mgr.GetAliasTarget(ctx, alias); err == nil {
			target = resolved
		}
	}

	if err := s.indexer.Clear(ctx, path, target); err != nil {
		if errors.Is(err, types.ErrIndexInProgress) {
			return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", map[string]interface{}{
				"path": path,
			})
		}
		return nil, newMCPError(ErrorCodeInternalError, "clear failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.searcher.InvalidateCache()
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"cleared": true,
		"path":    path,
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, err := s.requirePath(args)
	if err != nil {
		return nil, err
	}

	if !s.indexer.HasIndex(ctx, path, collectionFor(path)) {
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"indexed": false,
			"path":    path,
			"message": "Codebase not indexed. Use index_codebase to index it.",
		})), nil
	}

	alias := collectionFor(path)
	target := alias
	if mgr, ok := s.store.(vectorstore.AliasManager); ok {
		if resolved, err := mgr.GetAliasTarget(ctx, alias); err == nil {
			target = resolved
		}
	}

	response := map[string]interface{}{
		"indexed":    true,
		"path":       path,
		"collection": target,
	}
	if count, err := s.store.Count(ctx, target); err == nil {
		response["documents"] = count
	}
	if paths, err := s.store.ListFilePaths(ctx, target, 1000); err == nil {
		response["files"] = len(paths)
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

func (s *Server) requirePath(args map[string]interface{}) (string, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path); err != nil {
		return "", newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}
	return path, nil
}

func (s *Server) indexOptions(path string, args map[string]interface{}) indexer.Options {
	opts := indexer.Options{
		RootDir:           path,
		Collection:        collectionFor(path),
		IgnorePatterns:    getStringSlice(args, "ignore_patterns", s.cfg.Index.IgnorePatterns),
		IncludeExtensions: getStringSlice(args, "include_extensions", s.cfg.Index.IncludeExtensions),
		Workers:           s.cfg.Index.Workers,
		BatchSize:         s.cfg.Embedder.BatchSize,
		ProgressInterval:  s.cfg.Index.ProgressInterval,
	}
	return opts
}

func searcherRequest(path, query string, mode vectorstore.SearchMode, limit int, args map[string]interface{}) searcher.Request {
	return searcher.Request{
		Collection:   collectionFor(path),
		Query:        query,
		Mode:         mode,
		TopK:         limit,
		PathPrefix:   getStringDefault(args, "path_prefix", ""),
		ResolveAlias: true,
		UseCache:     true,
	}
}

func statsResponse(path string, stats *types.IndexStats) map[string]interface{} {
	response := map[string]interface{}{
		"indexed":         true,
		"path":            path,
		"files_processed": stats.FilesProcessed,
		"files_deleted":   stats.FilesDeleted,
		"chunks_created":  stats.ChunksCreated,
		"chunks_embedded": stats.ChunksEmbedded,
		"chunks_failed":   stats.ChunksFailed,
		"duration_ms":     stats.Duration.Milliseconds(),
	}
	if len(stats.Errors) > 0 {
		errs := stats.Errors
		response["error_count"] = len(errs)
		if len(errs) > 5 {
			errs = errs[:5]
		}
		response["errors"] = errs
	}
	return response
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{Code: code, Message: message, Data: data}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks if a path exists and is a readable directory
func validatePath(path string) error {
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter with a default value
func getStringSlice(args map[string]interface{}, key string, defaultValue []string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return defaultValue
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// Validation helpers

var (
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
