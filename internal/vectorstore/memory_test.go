package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpetrun/semcode/pkg/types"
)

func doc(id, path string, seq int, vector []float32, content string) *types.VectorDocument {
	return &types.VectorDocument{
		ID:           id,
		Vector:       vector,
		Content:      content,
		RelativePath: path,
		StartLine:    seq*10 + 1,
		EndLine:      seq*10 + 9,
	}
}

func TestMemoryInsertIsUpsert(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	require.NoError(t, store.CreateCollection(ctx, "c", 2))

	require.NoError(t, store.Insert(ctx, "c", []*types.VectorDocument{
		doc("id1", "a.go", 0, []float32{1, 0}, "v1"),
	}))
	require.NoError(t, store.Insert(ctx, "c", []*types.VectorDocument{
		doc("id1", "a.go", 0, []float32{0, 1}, "v2"),
	}))

	count, err := store.Count(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "same ID must overwrite, not duplicate")

	docs, err := store.Query(ctx, "c", Filter{}, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "v2", docs[0].Content)
}

func TestMemoryDimensionMismatchRejected(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	require.NoError(t, store.CreateCollection(ctx, "c", 3))

	err := store.Insert(ctx, "c", []*types.VectorDocument{
		doc("id1", "a.go", 0, []float32{1, 0}, "short vector"),
	})
	assert.Error(t, err)
}

func TestMemoryDeleteByPath(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	require.NoError(t, store.CreateCollection(ctx, "c", 2))
	require.NoError(t, store.Insert(ctx, "c", []*types.VectorDocument{
		doc("a0", "a.go", 0, []float32{1, 0}, "x"),
		doc("a1", "a.go", 1, []float32{1, 0}, "y"),
		doc("b0", "b.go", 0, []float32{0, 1}, "z"),
	}))

	removed, err := store.DeleteByPath(ctx, "c", "a.go")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	count, err := store.Count(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	paths, err := store.ListFilePaths(ctx, "c", 10)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"b.go": {}}, paths)
}

func TestMemoryCollectionLimit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)

	require.NoError(t, store.CreateCollection(ctx, "a", 2))
	require.NoError(t, store.CreateCollection(ctx, "b", 2))
	err := store.CreateCollection(ctx, "d", 2)
	assert.ErrorIs(t, err, types.ErrCollectionLimit)

	// Existing collections can still be "created" idempotently.
	assert.NoError(t, store.CreateCollection(ctx, "a", 2))
}

func TestMemoryMissingCollection(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	_, err := store.Count(ctx, "absent")
	assert.ErrorIs(t, err, types.ErrNotFound)
	err = store.Insert(ctx, "absent", nil)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestMemoryVectorSearchRanksBySimilarity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	require.NoError(t, store.CreateCollection(ctx, "c", 2))
	require.NoError(t, store.Insert(ctx, "c", []*types.VectorDocument{
		doc("x", "x.go", 0, []float32{1, 0}, "exact"),
		doc("y", "y.go", 0, []float32{0.7, 0.7}, "diagonal"),
		doc("z", "z.go", 0, []float32{0, 1}, "orthogonal"),
	}))

	results, err := store.Search(ctx, "c", SearchOptions{
		Mode:        SearchModeVector,
		TopK:        2,
		QueryVector: []float32{1, 0},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "x", results[0].Document.ID)
	assert.Equal(t, "y", results[1].Document.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestMemoryTextSearch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	require.NoError(t, store.CreateCollection(ctx, "c", 2))
	require.NoError(t, store.Insert(ctx, "c", []*types.VectorDocument{
		doc("x", "x.go", 0, []float32{1, 0}, "func ParseConfig reads yaml"),
		doc("y", "y.go", 0, []float32{0, 1}, "unrelated content"),
	}))

	results, err := store.Search(ctx, "c", SearchOptions{
		Mode:      SearchModeText,
		TopK:      10,
		QueryText: "parseconfig yaml",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "x", results[0].Document.ID)
}

func TestMemorySearchPathPrefixFilter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	require.NoError(t, store.CreateCollection(ctx, "c", 2))
	require.NoError(t, store.Insert(ctx, "c", []*types.VectorDocument{
		doc("x", "internal/a.go", 0, []float32{1, 0}, "a"),
		doc("y", "cmd/b.go", 0, []float32{1, 0}, "b"),
	}))

	results, err := store.Search(ctx, "c", SearchOptions{
		Mode:        SearchModeVector,
		TopK:        10,
		QueryVector: []float32{1, 0},
		PathPrefix:  "internal/",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "x", results[0].Document.ID)
}

func TestMemoryAliasSwap(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	_, err := store.GetAliasTarget(ctx, "main")
	assert.ErrorIs(t, err, types.ErrAliasNotFound)

	require.NoError(t, store.SetAliasTarget(ctx, "main", "c1"))
	target, err := store.GetAliasTarget(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, "c1", target)

	require.NoError(t, store.SetAliasTarget(ctx, "main", "c2"))
	target, err = store.GetAliasTarget(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, "c2", target)
}

func TestMemoryDropCollection(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	require.NoError(t, store.CreateCollection(ctx, "c", 2))
	require.NoError(t, store.DropCollection(ctx, "c"))

	exists, err := store.HasCollection(ctx, "c")
	require.NoError(t, err)
	assert.False(t, exists)
}
