package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpetrun/semcode/pkg/types"
)

func newTestProvider(t *testing.T, handler http.Handler) *httpProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &httpProvider{
		apiKey:     "test-key",
		model:      "test-model",
		endpoint:   srv.URL,
		name:       "test",
		dimension:  3,
		httpClient: srv.Client(),
	}
}

func writeEmbeddings(w http.ResponseWriter, vectors [][]float32) {
	type entry struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	}
	data := make([]entry, len(vectors))
	for i, v := range vectors {
		data[i] = entry{Embedding: v, Index: i}
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"data":  data,
		"model": "test-model",
	})
}

func TestGenerateBatchSuccess(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		writeEmbeddings(w, [][]float32{{1, 0, 0}, {0, 1, 0}})
	}))

	resp, err := p.generateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"alpha", "beta"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 2)
	assert.Equal(t, []float32{1, 0, 0}, resp.Embeddings[0].Vector)
	assert.Equal(t, "test", resp.Provider)
}

func TestGenerateBatchRateLimitStaysTransient(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))

	_, err := p.generateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"alpha"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.True(t, types.IsTransient(err), "retry-exhausted rate limit must stay transient")
	assert.Equal(t, int32(MaxRetries), calls.Load())
}

func TestGenerateBatchPermanentErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))

	_, err := p.generateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"alpha"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.False(t, types.IsTransient(err))
	assert.Equal(t, int32(1), calls.Load(), "auth failures must not retry")
}

func TestGenerateBatchRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		writeEmbeddings(w, [][]float32{{1, 0, 0}})
	}))

	resp, err := p.generateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"alpha"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerateBatchRejectsMismatchedCount(t *testing.T) {
	p := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Two entries for a single input.
		writeEmbeddings(w, [][]float32{{1, 0, 0}, {0, 1, 0}})
	}))

	_, err := p.generateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"alpha"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 1 embeddings, got 2")
	assert.False(t, types.IsTransient(err))
}
