package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mpetrun/semcode/pkg/types"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "test.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteCollectionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLite(t)

	require.NoError(t, store.CreateCollection(ctx, "c1", 2))
	exists, err := store.HasCollection(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, exists)

	names, err := store.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, names)

	require.NoError(t, store.DropCollection(ctx, "c1"))
	exists, err = store.HasCollection(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSQLiteUpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLite(t)
	require.NoError(t, store.CreateCollection(ctx, "c", 2))

	docs := []*types.VectorDocument{
		doc("a0", "a.go", 0, []float32{1, 0}, "alpha content"),
		doc("b0", "b.go", 0, []float32{0, 1}, "beta content"),
	}
	require.NoError(t, store.Insert(ctx, "c", docs))

	// Re-insert with new content: count stays flat, content updates.
	require.NoError(t, store.Insert(ctx, "c", []*types.VectorDocument{
		doc("a0", "a.go", 0, []float32{1, 0}, "alpha revised"),
	}))
	count, err := store.Count(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	results, err := store.Search(ctx, "c", SearchOptions{
		Mode:        SearchModeVector,
		TopK:        1,
		QueryVector: []float32{1, 0},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a0", results[0].Document.ID)
	assert.Equal(t, "alpha revised", results[0].Document.Content)
}

func TestSQLiteDeleteByPath(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLite(t)
	require.NoError(t, store.CreateCollection(ctx, "c", 2))
	require.NoError(t, store.Insert(ctx, "c", []*types.VectorDocument{
		doc("a0", "a.go", 0, []float32{1, 0}, "x"),
		doc("a1", "a.go", 1, []float32{0, 1}, "y"),
		doc("b0", "b.go", 0, []float32{1, 1}, "z"),
	}))

	removed, err := store.DeleteByPath(ctx, "c", "a.go")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	paths, err := store.ListFilePaths(ctx, "c", 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"b.go": {}}, paths)
}

func TestSQLiteAliasPersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "alias.db")

	store, err := NewSQLiteStore(SQLiteConfig{Path: path}, nil)
	require.NoError(t, err)
	require.NoError(t, store.SetAliasTarget(ctx, "main", "c1"))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(SQLiteConfig{Path: path}, nil)
	require.NoError(t, err)
	defer reopened.Close()

	target, err := reopened.GetAliasTarget(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, "c1", target, "alias must survive process restart")
}

func TestSQLiteCollectionLimit(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(SQLiteConfig{
		Path:           filepath.Join(t.TempDir(), "limit.db"),
		MaxCollections: 1,
	}, nil)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.CreateCollection(ctx, "c1", 2))
	err = store.CreateCollection(ctx, "c2", 2)
	assert.ErrorIs(t, err, types.ErrCollectionLimit)
}

func TestSQLiteMetadataRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLite(t)
	require.NoError(t, store.CreateCollection(ctx, "c", 2))

	d := doc("m0", "m.go", 0, []float32{1, 0}, "meta")
	d.Metadata = map[string]string{"language": "go"}
	require.NoError(t, store.Insert(ctx, "c", []*types.VectorDocument{d}))

	docs, err := store.Query(ctx, "c", Filter{RelativePath: "m.go"}, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "go", docs[0].Metadata["language"])
	assert.Equal(t, []float32{1, 0}, docs[0].Vector)
}
