package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"github.com/mpetrun/semcode/internal/chunker"
	"github.com/mpetrun/semcode/internal/config"
	"github.com/mpetrun/semcode/internal/embedder"
	"github.com/mpetrun/semcode/internal/filesync"
	"github.com/mpetrun/semcode/internal/indexer"
	"github.com/mpetrun/semcode/internal/mcp"
	"github.com/mpetrun/semcode/internal/searcher"
	"github.com/mpetrun/semcode/internal/snapshot"
	"github.com/mpetrun/semcode/internal/vectorstore"
	"github.com/mpetrun/semcode/pkg/types"
)

// pipeline bundles the wired components for CLI commands.
type pipeline struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    vectorstore.VectorStore
	indexer  *indexer.Indexer
	swapper  *indexer.SwapCoordinator
	searcher *searcher.Searcher
}

func (p *pipeline) Close() {
	_ = p.store.Close()
	_ = p.logger.Sync()
}

func buildPipeline(ctx context.Context) (*pipeline, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
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

	return &pipeline{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		indexer:  idx,
		swapper:  indexer.NewSwapCoordinator(idx, cfg.Index.GracePeriod, logger),
		searcher: searcher.New(store, emb, logger),
	}, nil
}

func collectionFor(rootDir string) string {
	return fmt.Sprintf("idx_%016x", xxh3.HashString(rootDir))
}

func resolveRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", path, err)
	}
	return abs, nil
}

// progressBar adapts a pterm progress bar to the indexer's callback.
func progressBar() (types.ProgressFunc, func()) {
	bar, _ := pterm.DefaultProgressbar.WithTotal(100).WithTitle("indexing").Start()
	last := 0
	fn := func(p types.Progress) {
		bar.UpdateTitle(string(p.Phase))
		target := int(p.Percentage)
		if target > last {
			bar.Add(target - last)
			last = target
		}
	}
	stop := func() { _, _ = bar.Stop() }
	return fn, stop
}

func indexOptions(p *pipeline, root string) indexer.Options {
	return indexer.Options{
		RootDir:           root,
		Collection:        collectionFor(root),
		IgnorePatterns:    p.cfg.Index.IgnorePatterns,
		IncludeExtensions: p.cfg.Index.IncludeExtensions,
		Workers:           p.cfg.Index.Workers,
		BatchSize:         p.cfg.Embedder.BatchSize,
		ProgressInterval:  p.cfg.Index.ProgressInterval,
	}
}

func printStats(stats *types.IndexStats) {
	pterm.Success.Printf("files: %d processed, %d deleted; chunks: %d created, %d embedded, %d failed; took %v\n",
		stats.FilesProcessed, stats.FilesDeleted,
		stats.ChunksCreated, stats.ChunksEmbedded, stats.ChunksFailed,
		stats.Duration.Round(1e6))
	for _, msg := range stats.Errors {
		pterm.Warning.Println(msg)
	}
}

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Incrementally index a codebase",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := buildPipeline(ctx)
			if err != nil {
				return err
			}
			defer p.Close()

			root, err := resolveRoot(argOrDot(args))
			if err != nil {
				return err
			}

			opts := indexOptions(p, root)
			onProgress, stop := progressBar()
			opts.OnProgress = onProgress

			stats, err := p.indexer.Index(ctx, opts)
			stop()
			if err != nil {
				return err
			}
			printStats(stats)
			return nil
		},
	}
	return cmd
}

func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex [path]",
		Short: "Rebuild the index from scratch with an atomic swap",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := buildPipeline(ctx)
			if err != nil {
				return err
			}
			defer p.Close()

			root, err := resolveRoot(argOrDot(args))
			if err != nil {
				return err
			}

			opts := indexOptions(p, root)
			onProgress, stop := progressBar()
			opts.OnProgress = onProgress

			stats, err := p.swapper.Reindex(ctx, opts)
			stop()
			if err != nil {
				return err
			}
			printStats(stats)
			return nil
		},
	}
}

func newSearchCmd() *cobra.Command {
	var (
		limit int
		mode  string
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search an indexed codebase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := buildPipeline(ctx)
			if err != nil {
				return err
			}
			defer p.Close()

			root, err := resolveRoot(flagRoot)
			if err != nil {
				return err
			}
			if !p.indexer.HasIndex(ctx, root, collectionFor(root)) {
				return fmt.Errorf("%s is not indexed; run `semcode index` first", root)
			}

			resp, err := p.searcher.Search(ctx, searcher.Request{
				Collection:   collectionFor(root),
				Query:        args[0],
				Mode:         vectorstore.SearchMode(mode),
				TopK:         limit,
				ResolveAlias: true,
			})
			if err != nil {
				return err
			}

			if len(resp.Results) == 0 {
				pterm.Info.Println("no results")
				return nil
			}
			for i, r := range resp.Results {
				pterm.DefaultSection.Printf("%d. %s:%d-%d (%.3f)",
					i+1, r.Document.RelativePath, r.Document.StartLine, r.Document.EndLine, r.Score)
				fmt.Println(r.Document.Content)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flagRoot, "root", ".", "codebase root directory")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum results")
	cmd.Flags().StringVar(&mode, "mode", "vector", "search mode: vector, text, or hybrid")
	return cmd
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [path]",
		Short: "Remove the index and change-tracking state for a codebase",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := buildPipeline(ctx)
			if err != nil {
				return err
			}
			defer p.Close()

			root, err := resolveRoot(argOrDot(args))
			if err != nil {
				return err
			}

			alias := collectionFor(root)
			target := alias
			if mgr, ok := p.store.(vectorstore.AliasManager); ok {
				if resolved, err := mgr.GetAliasTarget(ctx, alias); err == nil {
					target = resolved
				}
			}
			if err := p.indexer.Clear(ctx, root, target); err != nil {
				return err
			}
			pterm.Success.Printf("cleared index for %s\n", root)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [path]",
		Short: "Show index status for a codebase",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := buildPipeline(ctx)
			if err != nil {
				return err
			}
			defer p.Close()

			root, err := resolveRoot(argOrDot(args))
			if err != nil {
				return err
			}

			if !p.indexer.HasIndex(ctx, root, collectionFor(root)) {
				pterm.Info.Printf("%s is not indexed\n", root)
				return nil
			}

			alias := collectionFor(root)
			target := alias
			if mgr, ok := p.store.(vectorstore.AliasManager); ok {
				if resolved, err := mgr.GetAliasTarget(ctx, alias); err == nil {
					target = resolved
				}
			}

			pterm.Info.Printf("root: %s\ncollection: %s\n", root, target)
			if count, err := p.store.Count(ctx, target); err == nil {
				pterm.Info.Printf("documents: %d\n", count)
			}
			if paths, err := p.store.ListFilePaths(ctx, target, 1000); err == nil {
				pterm.Info.Printf("files: %d\n", len(paths))
			}
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			logger, err := config.NewLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			srv, err := mcp.NewServer(ctx, cfg, logger)
			if err != nil {
				return err
			}
			return srv.Serve(ctx)
		},
	}
}

func argOrDot(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}
