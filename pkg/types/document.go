package types

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// documentNamespace is the UUIDv5 namespace for vector document IDs.
var documentNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// VectorDocument is one embedded chunk as stored in a collection. The ID is
// derived from the chunk's path, sequence index, and content hash, so
// re-indexing unchanged content produces the same ID and Insert acts as a
// true upsert.
type VectorDocument struct {
	ID            string
	Vector        []float32
	Content       string
	RelativePath  string
	StartLine     int
	EndLine       int
	FileExtension string
	Metadata      map[string]string
}

// DocumentID derives the deterministic ID for a chunk at a given position.
// Stable across runs iff path, sequence index, and content are unchanged.
func DocumentID(relativePath string, sequenceIndex int, contentHash string) string {
	name := fmt.Sprintf("%s:%d:%s", relativePath, sequenceIndex, contentHash)
	return uuid.NewSHA1(documentNamespace, []byte(name)).String()
}

// NewVectorDocument builds a document from an embedded chunk.
func NewVectorDocument(chunk *Chunk, vector []float32) *VectorDocument {
	ext := strings.TrimPrefix(filepath.Ext(chunk.RelativePath), ".")
	return &VectorDocument{
		ID:            DocumentID(chunk.RelativePath, chunk.SequenceIndex, chunk.ContentHash()),
		Vector:        vector,
		Content:       chunk.Content,
		RelativePath:  chunk.RelativePath,
		StartLine:     chunk.StartLine,
		EndLine:       chunk.EndLine,
		FileExtension: ext,
		Metadata: map[string]string{
			"language": chunk.Language,
		},
	}
}
