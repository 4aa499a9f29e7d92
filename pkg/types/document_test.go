package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentIDDeterministic(t *testing.T) {
	id1 := DocumentID("internal/app/main.go", 3, "abc123")
	id2 := DocumentID("internal/app/main.go", 3, "abc123")
	assert.Equal(t, id1, id2, "same inputs must yield the same ID")
}

func TestDocumentIDVariesWithInputs(t *testing.T) {
	base := DocumentID("a.go", 0, "h1")
	assert.NotEqual(t, base, DocumentID("b.go", 0, "h1"), "path must affect ID")
	assert.NotEqual(t, base, DocumentID("a.go", 1, "h1"), "sequence index must affect ID")
	assert.NotEqual(t, base, DocumentID("a.go", 0, "h2"), "content hash must affect ID")
}

func TestNewVectorDocument(t *testing.T) {
	chunk := &Chunk{
		Content:       "func main() {}",
		RelativePath:  "cmd/app/main.go",
		StartLine:     1,
		EndLine:       1,
		Language:      "go",
		SequenceIndex: 0,
	}
	vector := []float32{0.1, 0.2, 0.3}

	doc := NewVectorDocument(chunk, vector)
	require.NotNil(t, doc)
	assert.Equal(t, DocumentID(chunk.RelativePath, chunk.SequenceIndex, chunk.ContentHash()), doc.ID)
	assert.Equal(t, chunk.Content, doc.Content)
	assert.Equal(t, chunk.RelativePath, doc.RelativePath)
	assert.Equal(t, "go", doc.FileExtension)
	assert.Equal(t, vector, doc.Vector)
}

func TestChunkContentHashStable(t *testing.T) {
	a := Chunk{Content: "hello"}
	b := Chunk{Content: "hello"}
	c := Chunk{Content: "world"}
	assert.Equal(t, a.ContentHash(), b.ContentHash())
	assert.NotEqual(t, a.ContentHash(), c.ContentHash())
}
