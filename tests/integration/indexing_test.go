package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mpetrun/semcode/internal/chunker"
	"github.com/mpetrun/semcode/internal/filesync"
	"github.com/mpetrun/semcode/internal/indexer"
	"github.com/mpetrun/semcode/internal/searcher"
	"github.com/mpetrun/semcode/internal/snapshot"
	"github.com/mpetrun/semcode/internal/vectorstore"
)

// pipeline wires every stage of the indexing flow against an in-memory
// store, the way the stdio server and the CLI assemble it.
type pipeline struct {
	root     string
	store    *vectorstore.MemoryStore
	indexer  *indexer.Indexer
	swapper  *indexer.SwapCoordinator
	searcher *searcher.Searcher
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	logger := zap.NewNop()

	snapshots, err := snapshot.NewStore(t.TempDir())
	require.NoError(t, err)

	store := vectorstore.NewMemoryStore(0)
	emb := &MockEmbedder{}
	idx := indexer.New(filesync.New(snapshots, logger), chunker.New(0, 0), emb, store, logger)

	return &pipeline{
		root:     t.TempDir(),
		store:    store,
		indexer:  idx,
		swapper:  indexer.NewSwapCoordinator(idx, 10*time.Millisecond, logger),
		searcher: searcher.New(store, emb, logger),
	}
}

func (p *pipeline) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(p.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func (p *pipeline) options() indexer.Options {
	return indexer.Options{
		RootDir:           p.root,
		Collection:        "project",
		IncludeExtensions: []string{".go"},
		Workers:           2,
		BatchSize:         10,
	}
}

func (p *pipeline) search(t *testing.T, query string, mode vectorstore.SearchMode) *searcher.Response {
	t.Helper()
	resp, err := p.searcher.Search(context.Background(), searcher.Request{
		Collection:   "project",
		Query:        query,
		Mode:         mode,
		TopK:         10,
		ResolveAlias: true,
	})
	require.NoError(t, err)
	return resp
}

func TestIndexThenSearchEndToEnd(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	p.write(t, "server.go", "package app\n\n// StartServer boots the http listener.\nfunc StartServer() {}\n")
	p.write(t, "store.go", "package app\n\n// OpenDatabase connects to the backing store.\nfunc OpenDatabase() {}\n")

	stats, err := p.indexer.Index(ctx, p.options())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesProcessed)
	assert.Greater(t, stats.ChunksEmbedded, 0)

	resp := p.search(t, "http listener", vectorstore.SearchModeText)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "server.go", resp.Results[0].Document.RelativePath)

	// Hybrid mode merges both rankings; every indexed file is reachable.
	resp = p.search(t, "backing store connects", vectorstore.SearchModeHybrid)
	require.NotEmpty(t, resp.Results)
	seen := make(map[string]bool)
	for _, r := range resp.Results {
		seen[r.Document.RelativePath] = true
	}
	assert.True(t, seen["store.go"])
}

func TestIncrementalUpdateReflectedInSearch(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	p.write(t, "util.go", "package app\n\nfunc Helper() {}\n")
	_, err := p.indexer.Index(ctx, p.options())
	require.NoError(t, err)

	p.write(t, "util.go", "package app\n\n// ParseTimestamp reads an RFC3339 value.\nfunc ParseTimestamp() {}\n")
	stats, err := p.indexer.Index(ctx, p.options())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesProcessed)

	p.searcher.InvalidateCache()
	resp := p.search(t, "timestamp rfc3339", vectorstore.SearchModeText)
	require.NotEmpty(t, resp.Results)
	assert.Contains(t, resp.Results[0].Document.Content, "ParseTimestamp")
}

func TestDeletedFileDisappearsFromSearch(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	p.write(t, "keep.go", "package app\n\nfunc Keep() {}\n")
	p.write(t, "gone.go", "package app\n\nfunc ObsoleteWidget() {}\n")
	_, err := p.indexer.Index(ctx, p.options())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(p.root, "gone.go")))
	stats, err := p.indexer.Index(ctx, p.options())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesDeleted)

	p.searcher.InvalidateCache()
	resp := p.search(t, "obsolete widget", vectorstore.SearchModeText)
	for _, r := range resp.Results {
		assert.NotEqual(t, "gone.go", r.Document.RelativePath)
	}
}

func TestReindexSwapKeepsSearchServing(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t)

	p.write(t, "a.go", "package app\n\nfunc A() {}\n")
	_, err := p.indexer.Index(ctx, p.options())
	require.NoError(t, err)

	// Full rebuild behind the alias.
	_, err = p.swapper.Reindex(ctx, p.options())
	require.NoError(t, err)

	target, err := p.store.GetAliasTarget(ctx, "project")
	require.NoError(t, err)
	assert.NotEqual(t, "project", target)

	// Searches still address "project" and resolve through the alias.
	p.searcher.InvalidateCache()
	resp := p.search(t, "func", vectorstore.SearchModeText)
	assert.Equal(t, target, resp.Collection)
	assert.NotEmpty(t, resp.Results)

	// Incremental runs after the swap land in the aliased collection.
	p.write(t, "b.go", "package app\n\nfunc B() {}\n")
	stats, err := p.indexer.Index(ctx, p.options())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesProcessed)

	paths, err := p.store.ListFilePaths(ctx, target, 100)
	require.NoError(t, err)
	assert.Contains(t, paths, "b.go")
}
