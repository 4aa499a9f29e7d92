// Package embedder generates vector embeddings for text chunks.
//
// The Embedder interface abstracts over providers: OpenAI and Jina speak
// an OpenAI-compatible JSON API over HTTP, Gemini goes through the genai
// SDK, and the local provider derives deterministic vectors from content
// hashes for offline use and tests. The factory selects a provider from
// configuration or auto-detects one from API-key environment variables.
//
// # Usage
//
//	emb, err := embedder.New(ctx, embedder.Config{Provider: "openai"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts: []string{"func main() {}"},
//	})
//
// # Error Taxonomy
//
// Failures split into transient and permanent. Rate limits (429),
// timeouts (408), server errors (5xx), and network failures are marked
// transient and retried with exponential backoff; auth and validation
// failures return immediately. When retries are exhausted the returned
// error still carries the transient marker, so callers can decide to try
// again later rather than abort.
//
// # Caching
//
// Providers share an LRU cache keyed by a content digest of the input
// text, so identical chunks embed once per process regardless of which
// file they appear in. Cache hits return deep copies.
package embedder
