package searcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"github.com/mpetrun/semcode/internal/embedder"
	"github.com/mpetrun/semcode/internal/vectorstore"
	"github.com/mpetrun/semcode/pkg/types"
)

// Request parameterizes one search call. Collection is resolved through
// the store's alias table when ResolveAlias is set, so searches keep
// working across an alias swap.
type Request struct {
	Collection   string
	Query        string
	Mode         vectorstore.SearchMode
	TopK         int
	PathPrefix   string
	ResolveAlias bool
	UseCache     bool
	CacheTTL     time.Duration
}

// Response holds ranked results plus search metadata.
type Response struct {
	Results    []vectorstore.SearchResult
	Collection string // resolved collection name
	Mode       vectorstore.SearchMode
	Duration   time.Duration
	CacheHit   bool
}

type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// Searcher embeds queries and runs ranked searches against the store.
type Searcher struct {
	store    vectorstore.VectorStore
	embedder embedder.Embedder
	logger   *zap.Logger

	cacheMu sync.RWMutex
	cache   *lru.Cache[uint64, *cacheEntry]
}

// New creates a Searcher with a bounded query cache.
func New(store vectorstore.VectorStore, emb embedder.Embedder, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := lru.New[uint64, *cacheEntry](1000)
	if err != nil {
		panic(fmt.Sprintf("create query cache: %v", err))
	}
	return &Searcher{
		store:    store,
		embedder: emb,
		logger:   logger,
		cache:    cache,
	}
}

// Search resolves the target collection, embeds the query when the mode
// needs a vector, and returns ranked results.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if err := s.normalize(&req); err != nil {
		return nil, err
	}

	if req.UseCache {
		if resp := s.checkCache(req); resp != nil {
			resp.CacheHit = true
			resp.Duration = time.Since(start)
			return resp, nil
		}
	}

	collection, err := s.resolveCollection(ctx, req)
	if err != nil {
		return nil, err
	}

	opts := vectorstore.SearchOptions{
		Mode:       req.Mode,
		TopK:       req.TopK,
		QueryText:  req.Query,
		PathPrefix: req.PathPrefix,
	}
	if req.Mode == vectorstore.SearchModeVector || req.Mode == vectorstore.SearchModeHybrid {
		emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: req.Query})
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		opts.QueryVector = emb.Vector
	}

	results, err := s.store.Search(ctx, collection, opts)
	if err != nil {
		return nil, fmt.Errorf("search collection %s: %w", collection, err)
	}

	resp := &Response{
		Results:    results,
		Collection: collection,
		Mode:       req.Mode,
		Duration:   time.Since(start),
	}

	if req.UseCache && len(results) > 0 {
		s.storeInCache(req, resp)
	}

	s.logger.Debug("search completed",
		zap.String("collection", collection),
		zap.String("mode", string(req.Mode)),
		zap.Int("results", len(results)),
		zap.Duration("duration", resp.Duration))

	return resp, nil
}

// resolveCollection follows the alias when requested, falling back to the
// literal name for roots that were never alias-swapped.
func (s *Searcher) resolveCollection(ctx context.Context, req Request) (string, error) {
	if !req.ResolveAlias {
		return req.Collection, nil
	}
	mgr, ok := s.store.(vectorstore.AliasManager)
	if !ok {
		return req.Collection, nil
	}
	target, err := mgr.GetAliasTarget(ctx, req.Collection)
	if errors.Is(err, types.ErrAliasNotFound) {
		return req.Collection, nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve alias %s: %w", req.Collection, err)
	}
	return target, nil
}

// InvalidateCache drops all cached queries. Called after re-indexing.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

func (s *Searcher) normalize(req *Request) error {
	if req.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if req.Collection == "" {
		return fmt.Errorf("collection cannot be empty")
	}
	if req.TopK <= 0 {
		req.TopK = 10
	}
	if req.TopK > 100 {
		req.TopK = 100
	}
	if req.Mode == "" {
		req.Mode = vectorstore.SearchModeVector
	}
	if req.CacheTTL == 0 {
		req.CacheTTL = time.Hour
	}
	return nil
}

func (s *Searcher) checkCache(req Request) *Response {
	key := queryKey(req)

	s.cacheMu.RLock()
	entry, found := s.cache.Get(key)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}
	if time.Now().After(entry.expiresAt) {
		s.cacheMu.RUnlock()
		s.cacheMu.Lock()
		s.cache.Remove(key)
		s.cacheMu.Unlock()
		return nil
	}
	resp := copyResponse(entry.response)
	s.cacheMu.RUnlock()
	return resp
}

func (s *Searcher) storeInCache(req Request, resp *Response) {
	entry := &cacheEntry{
		response:  copyResponse(resp),
		expiresAt: time.Now().Add(req.CacheTTL),
	}
	s.cacheMu.Lock()
	s.cache.Add(queryKey(req), entry)
	s.cacheMu.Unlock()
}

func copyResponse(src *Response) *Response {
	if src == nil {
		return nil
	}
	dst := &Response{
		Collection: src.Collection,
		Mode:       src.Mode,
		Duration:   src.Duration,
		CacheHit:   src.CacheHit,
		Results:    make([]vectorstore.SearchResult, len(src.Results)),
	}
	for i, r := range src.Results {
		dst.Results[i] = r
		if r.Document != nil {
			docCopy := *r.Document
			dst.Results[i].Document = &docCopy
		}
	}
	return dst
}

// queryKey hashes the request fields that affect results.
func queryKey(req Request) uint64 {
	var b strings.Builder
	b.WriteString(req.Collection)
	b.WriteString("|")
	b.WriteString(req.Query)
	b.WriteString("|")
	b.WriteString(string(req.Mode))
	b.WriteString("|")
	b.WriteString(req.PathPrefix)
	b.WriteString("|")
	b.WriteString(fmt.Sprintf("%d|%t", req.TopK, req.ResolveAlias))
	return xxh3.HashString(b.String())
}
