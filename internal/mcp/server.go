package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/mpetrun/semcode/internal/chunker"
	"github.com/mpetrun/semcode/internal/config"
	"github.com/mpetrun/semcode/internal/embedder"
	"github.com/mpetrun/semcode/internal/filesync"
	"github.com/mpetrun/semcode/internal/indexer"
	"github.com/mpetrun/semcode/internal/searcher"
	"github.com/mpetrun/semcode/internal/snapshot"
	"github.com/mpetrun/semcode/internal/vectorstore"
)

const (
	// ServerName is the MCP server name.
	ServerName = "semcode"
	// ServerVersion is the current server version.
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with the indexing pipeline.
type Server struct {
	mcp      *server.MCPServer
	cfg      *config.Config
	store    vectorstore.VectorStore
	indexer  *indexer.Indexer
	swapper  *indexer.SwapCoordinator
	searcher *searcher.Searcher
	logger   *zap.Logger
}

// NewServer wires the pipeline from configuration and registers the tools.
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.Store.Backend == vectorstore.BackendSQLite && cfg.Store.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	store, err := vectorstore.New(vectorstore.Config{
		Backend:        cfg.Store.Backend,
		Path:           cfg.Store.Path,
		DSN:            cfg.Store.DSN,
		MaxCollections: cfg.Store.MaxCollections,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize vector store: %w", err)
	}

	emb, err := embedder.New(ctx, embedder.Config{
		Provider:  cfg.Embedder.Provider,
		APIKey:    cfg.Embedder.APIKey,
		CacheSize: cfg.Embedder.CacheSize,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("initialize embedder: %w", err)
	}

	snapshots, err := snapshot.NewStore(cfg.Index.SnapshotDir)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("initialize snapshot store: %w", err)
	}

	sync := filesync.New(snapshots, logger)
	chk := chunker.New(cfg.Index.MaxChunkSize, cfg.Index.OverlapLines)
	idx := indexer.New(sync, chk, emb, store, logger)

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		cfg:      cfg,
		store:    store,
		indexer:  idx,
		swapper:  indexer.NewSwapCoordinator(idx, cfg.Index.GracePeriod, logger),
		searcher: searcher.New(store, emb, logger),
		logger:   logger,
	}
	s.registerTools()
	return s, nil
}

// Serve runs the MCP server on stdio and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.store.Close() }()
	s.logger.Info("mcp server starting",
		zap.String("name", ServerName),
		zap.String("version", ServerVersion))
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(indexCodebaseTool(), s.handleIndexCodebase)
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(reindexCodebaseTool(), s.handleReindexCodebase)
	s.mcp.AddTool(clearIndexTool(), s.handleClearIndex)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
