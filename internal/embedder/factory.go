package embedder

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Config holds embedder configuration.
type Config struct {
	Provider  string
	APIKey    string
	CacheSize int
}

// New creates an embedder with explicit configuration.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderJina:
		return NewJinaProvider(cfg.APIKey, cache)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cache)
	case ProviderGemini:
		return NewGeminiProvider(ctx, cfg.APIKey, cache)
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// NewFromEnv creates an embedder based on environment variables.
// Priority:
//  1. SEMCODE_EMBEDDING_PROVIDER (openai, jina, gemini, local)
//  2. whichever of OPENAI_API_KEY, JINA_API_KEY, GEMINI_API_KEY is set
//  3. local fallback when no API keys are found
func NewFromEnv(ctx context.Context) (Embedder, error) {
	cache := NewCache(10000)

	if provider := os.Getenv(EnvProvider); provider != "" {
		return New(ctx, Config{Provider: provider, CacheSize: 10000})
	}

	if key := os.Getenv(EnvOpenAIAPIKey); key != "" {
		return NewOpenAIProvider(key, cache)
	}
	if key := os.Getenv(EnvJinaAPIKey); key != "" {
		return NewJinaProvider(key, cache)
	}
	if key := os.Getenv(EnvGeminiAPIKey); key != "" {
		return NewGeminiProvider(ctx, key, cache)
	}

	return NewLocalProvider(cache)
}

// DetectProvider returns the provider NewFromEnv would select.
func DetectProvider() string {
	if provider := os.Getenv(EnvProvider); provider != "" {
		return strings.ToLower(provider)
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvGeminiAPIKey) != "" {
		return ProviderGemini
	}
	return ProviderLocal
}
