package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexCodebaseTool returns the tool definition for index_codebase
func indexCodebaseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_codebase",
		Description: "Incrementally index a codebase for semantic search. Only files changed since the last run are re-embedded.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the codebase root",
				},
				"ignore_patterns": map[string]interface{}{
					"type":        "array",
					"description": "Gitignore-style patterns to exclude (first run only; later runs reuse the stored patterns)",
					"items":       map[string]interface{}{"type": "string"},
				},
				"include_extensions": map[string]interface{}{
					"type":        "array",
					"description": "File extensions to index, e.g. [\".go\", \".py\"] (first run only)",
					"items":       map[string]interface{}{"type": "string"},
				},
			},
			Required: []string{"path"},
		},
	}
}

// searchCodeTool returns the tool definition for search_code
func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_code",
		Description: "Search an indexed codebase with natural language or keyword queries",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the indexed codebase root",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"search_mode": map[string]interface{}{
					"type":        "string",
					"description": "Search strategy: vector (semantic), text (keyword), or hybrid",
					"enum":        []string{"vector", "text", "hybrid"},
					"default":     "vector",
				},
				"path_prefix": map[string]interface{}{
					"type":        "string",
					"description": "Restrict results to files under this relative path prefix",
				},
			},
			Required: []string{"path", "query"},
		},
	}
}

// reindexCodebaseTool returns the tool definition for reindex_codebase
func reindexCodebaseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "reindex_codebase",
		Description: "Rebuild the index from scratch into a fresh collection and atomically swap it in. Searches keep working during the rebuild.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the codebase root",
				},
				"ignore_patterns": map[string]interface{}{
					"type":        "array",
					"description": "Gitignore-style patterns to exclude",
					"items":       map[string]interface{}{"type": "string"},
				},
				"include_extensions": map[string]interface{}{
					"type":        "array",
					"description": "File extensions to index",
					"items":       map[string]interface{}{"type": "string"},
				},
			},
			Required: []string{"path"},
		},
	}
}

// clearIndexTool returns the tool definition for clear_index
func clearIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "clear_index",
		Description: "Remove the index and change-tracking state for a codebase",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the codebase root",
				},
			},
			Required: []string{"path"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query indexing status and statistics for a codebase",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the codebase root",
				},
			},
			Required: []string{"path"},
		},
	}
}
