package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpetrun/semcode/pkg/types"
)

func TestSerializeRoundTrip(t *testing.T) {
	original := []float32{0.5, -1.25, 3.75, 0}
	blob := serializeVector(original)
	assert.Len(t, blob, len(original)*4)
	assert.Equal(t, original, deserializeVector(blob))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	// Mismatched lengths and zero vectors degrade to 0, not panic.
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 0}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}

func TestTextScoreTokenOverlap(t *testing.T) {
	content := "func ParseConfig(path string) error"

	assert.Equal(t, 1.0, textScore(content, "parseconfig"))
	assert.Equal(t, 0.5, textScore(content, "parseconfig missing"))
	assert.Equal(t, 0.0, textScore(content, "absent tokens"))
	assert.Equal(t, 0.0, textScore(content, ""))
}

func TestMergeHybridCombinesScores(t *testing.T) {
	shared := &types.VectorDocument{ID: "shared"}
	vectorOnly := &types.VectorDocument{ID: "vector-only"}
	textOnly := &types.VectorDocument{ID: "text-only"}

	merged := mergeHybrid(
		[]SearchResult{
			{Document: shared, Score: 0.9},
			{Document: vectorOnly, Score: 0.8},
		},
		[]SearchResult{
			{Document: shared, Score: 0.9},
			{Document: textOnly, Score: 0.4},
		},
		10,
	)

	require.Len(t, merged, 3)
	assert.Equal(t, "shared", merged[0].Document.ID,
		"a document present in both rankings must outrank single-source hits")

	scores := map[string]float64{}
	for _, r := range merged {
		scores[r.Document.ID] = r.Score
	}
	assert.InDelta(t, 0.9, scores["shared"], 1e-9)
	assert.InDelta(t, 0.8*hybridVectorWeight, scores["vector-only"], 1e-9)
	assert.InDelta(t, 0.4*(1-hybridVectorWeight), scores["text-only"], 1e-9)
}

func TestMergeHybridTruncatesToTopK(t *testing.T) {
	var vector []SearchResult
	for i := 0; i < 5; i++ {
		vector = append(vector, SearchResult{
			Document: &types.VectorDocument{ID: string(rune('a' + i))},
			Score:    float64(i),
		})
	}
	merged := mergeHybrid(vector, nil, 2)
	assert.Len(t, merged, 2)
}

func TestValidateCollectionName(t *testing.T) {
	assert.NoError(t, validateCollectionName("idx_0123abcd"))
	assert.Error(t, validateCollectionName("bad-name"))
	assert.Error(t, validateCollectionName("drop table;"))
	assert.Error(t, validateCollectionName(""))
}
