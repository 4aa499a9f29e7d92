package embedder

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"

	"github.com/mpetrun/semcode/pkg/types"
)

const (
	// DefaultGeminiModel is the Gemini embedding model.
	DefaultGeminiModel = "gemini-embedding-001"

	// GeminiDimension is the output dimensionality requested from Gemini.
	GeminiDimension = 1536
)

// GeminiProvider implements Embedder using the Gemini API via the genai SDK.
type GeminiProvider struct {
	client *genai.Client
	model  string
	cache  *Cache
}

// NewGeminiProvider creates a Gemini embedder. The client is created once
// and reused for all calls.
func NewGeminiProvider(ctx context.Context, apiKey string, cache *Cache) (*GeminiProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvGeminiAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvGeminiAPIKey)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		model:  DefaultGeminiModel,
		cache:  cache,
	}, nil
}

func (g *GeminiProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	hash := CacheKey(req.Text)
	if g.cache != nil {
		if emb, ok := g.cache.Get(hash); ok {
			return emb, nil
		}
	}

	resp, err := g.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}, Model: req.Model})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}
	return resp.Embeddings[0], nil
}

func (g *GeminiProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	if len(req.Texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	model := req.Model
	if model == "" {
		model = g.model
	}

	contents := make([]*genai.Content, len(req.Texts))
	for i, text := range req.Texts {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: text}}}
	}
	dim := int32(GeminiDimension)
	config := &genai.EmbedContentConfig{
		TaskType:             "RETRIEVAL_DOCUMENT",
		OutputDimensionality: &dim,
	}

	retryCfg := DefaultRetryConfig()
	values, err := retryWithBackoff(ctx, retryCfg, func() ([][]float32, error) {
		resp, err := g.client.Models.EmbedContent(ctx, model, contents, config)
		if err != nil {
			// The SDK does not expose a stable error taxonomy; treat API
			// failures as transient and let retry exhaustion surface them.
			return nil, types.MarkTransient(err)
		}
		if len(resp.Embeddings) != len(req.Texts) {
			return nil, fmt.Errorf("expected %d embeddings, got %d", len(req.Texts), len(resp.Embeddings))
		}
		out := make([][]float32, len(resp.Embeddings))
		for i, emb := range resp.Embeddings {
			out[i] = emb.Values
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderFailed, err)
	}

	embeddings := make([]*Embedding, len(values))
	for i, vector := range values {
		emb := &Embedding{
			Vector:    vector,
			Dimension: len(vector),
			Provider:  ProviderGemini,
			Model:     model,
			Hash:      CacheKey(req.Texts[i]),
		}
		if g.cache != nil {
			g.cache.Set(emb.Hash, emb)
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderGemini,
		Model:      model,
	}, nil
}

func (g *GeminiProvider) Dimension() int { return GeminiDimension }

func (g *GeminiProvider) Provider() string { return ProviderGemini }

func (g *GeminiProvider) Model() string { return g.model }

func (g *GeminiProvider) Close() error { return nil }
