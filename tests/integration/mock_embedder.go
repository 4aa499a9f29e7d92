package integration

import (
	"context"
	"crypto/sha256"

	"github.com/mpetrun/semcode/internal/embedder"
)

const mockDimension = 8

// MockEmbedder derives deterministic vectors from content hashes so that
// identical text always embeds identically across runs.
type MockEmbedder struct{}

func (m *MockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	return m.embed(req.Text), nil
}

func (m *MockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	out := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		out[i] = m.embed(text)
	}
	return &embedder.BatchEmbeddingResponse{Embeddings: out, Provider: m.Provider(), Model: m.Model()}, nil
}

func (m *MockEmbedder) embed(text string) *embedder.Embedding {
	sum := sha256.Sum256([]byte(text))
	vector := make([]float32, mockDimension)
	for i := range vector {
		vector[i] = float32(sum[i])/255.0 - 0.5
	}
	return &embedder.Embedding{
		Vector:    embedder.NormalizeVector(vector),
		Dimension: mockDimension,
		Provider:  m.Provider(),
		Model:     m.Model(),
	}
}

func (m *MockEmbedder) Dimension() int   { return mockDimension }
func (m *MockEmbedder) Provider() string { return "mock" }
func (m *MockEmbedder) Model() string    { return "mock-v1" }
func (m *MockEmbedder) Close() error     { return nil }
