package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mpetrun/semcode/pkg/types"
)

// MemoryStore is an in-process VectorStore keyed by collection name. It
// implements AliasManager. Intended for tests and single-run indexing.
type MemoryStore struct {
	mu             sync.RWMutex
	collections    map[string]*memoryCollection
	aliases        map[string]string
	maxCollections int
}

type memoryCollection struct {
	dimension int
	docs      map[string]*types.VectorDocument
}

// NewMemoryStore creates an in-memory store. maxCollections <= 0 means
// unlimited.
func NewMemoryStore(maxCollections int) *MemoryStore {
	return &MemoryStore{
		collections:    make(map[string]*memoryCollection),
		aliases:        make(map[string]string),
		maxCollections: maxCollections,
	}
}

func (m *MemoryStore) CreateCollection(ctx context.Context, name string, dimension int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.collections[name]; exists {
		return nil
	}
	if m.maxCollections > 0 && len(m.collections) >= m.maxCollections {
		return fmt.Errorf("%w: %d collections", types.ErrCollectionLimit, m.maxCollections)
	}
	m.collections[name] = &memoryCollection{
		dimension: dimension,
		docs:      make(map[string]*types.VectorDocument),
	}
	return nil
}

func (m *MemoryStore) DropCollection(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, name)
	return nil
}

func (m *MemoryStore) HasCollection(ctx context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.collections[name]
	return ok, nil
}

func (m *MemoryStore) ListCollections(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStore) Insert(ctx context.Context, collection string, docs []*types.VectorDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	coll, ok := m.collections[collection]
	if !ok {
		return fmt.Errorf("collection %s: %w", collection, types.ErrNotFound)
	}
	for _, doc := range docs {
		if coll.dimension > 0 && len(doc.Vector) != coll.dimension {
			return fmt.Errorf("document %s: dimension %d does not match collection dimension %d",
				doc.ID, len(doc.Vector), coll.dimension)
		}
		copied := *doc
		coll.docs[doc.ID] = &copied
	}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, collection string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	coll, ok := m.collections[collection]
	if !ok {
		return fmt.Errorf("collection %s: %w", collection, types.ErrNotFound)
	}
	for _, id := range ids {
		delete(coll.docs, id)
	}
	return nil
}

func (m *MemoryStore) DeleteByPath(ctx context.Context, collection string, relativePath string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	coll, ok := m.collections[collection]
	if !ok {
		return 0, fmt.Errorf("collection %s: %w", collection, types.ErrNotFound)
	}
	removed := 0
	for id, doc := range coll.docs {
		if doc.RelativePath == relativePath {
			delete(coll.docs, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) Search(ctx context.Context, collection string, opts SearchOptions) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	coll, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %s: %w", collection, types.ErrNotFound)
	}

	candidates := make([]*types.VectorDocument, 0, len(coll.docs))
	for _, doc := range coll.docs {
		if opts.PathPrefix != "" && !strings.HasPrefix(doc.RelativePath, opts.PathPrefix) {
			continue
		}
		candidates = append(candidates, doc)
	}

	switch opts.Mode {
	case SearchModeText:
		return m.scoreText(candidates, opts), nil
	case SearchModeHybrid:
		vector := m.scoreVector(candidates, opts)
		text := m.scoreText(candidates, opts)
		return mergeHybrid(vector, text, opts.TopK), nil
	default:
		return m.scoreVector(candidates, opts), nil
	}
}

func (m *MemoryStore) scoreVector(docs []*types.VectorDocument, opts SearchOptions) []SearchResult {
	results := make([]SearchResult, 0, len(docs))
	for _, doc := range docs {
		copied := *doc
		results = append(results, SearchResult{
			Document: &copied,
			Score:    cosineSimilarity(opts.QueryVector, doc.Vector),
		})
	}
	return topKResults(results, opts.TopK)
}

func (m *MemoryStore) scoreText(docs []*types.VectorDocument, opts SearchOptions) []SearchResult {
	results := make([]SearchResult, 0, len(docs))
	for _, doc := range docs {
		score := textScore(doc.Content, opts.QueryText)
		if score == 0 {
			continue
		}
		copied := *doc
		results = append(results, SearchResult{Document: &copied, Score: score})
	}
	return topKResults(results, opts.TopK)
}

func (m *MemoryStore) Query(ctx context.Context, collection string, filter Filter, limit int) ([]*types.VectorDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	coll, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %s: %w", collection, types.ErrNotFound)
	}

	out := make([]*types.VectorDocument, 0)
	for _, doc := range coll.docs {
		if filter.RelativePath != "" && doc.RelativePath != filter.RelativePath {
			continue
		}
		if filter.PathPrefix != "" && !strings.HasPrefix(doc.RelativePath, filter.PathPrefix) {
			continue
		}
		copied := *doc
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RelativePath != out[j].RelativePath {
			return out[i].RelativePath < out[j].RelativePath
		}
		return out[i].StartLine < out[j].StartLine
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ListFilePaths(ctx context.Context, collection string, batchSize int) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	coll, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %s: %w", collection, types.ErrNotFound)
	}
	paths := make(map[string]struct{})
	for _, doc := range coll.docs {
		paths[doc.RelativePath] = struct{}{}
	}
	return paths, nil
}

func (m *MemoryStore) Count(ctx context.Context, collection string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	coll, ok := m.collections[collection]
	if !ok {
		return 0, fmt.Errorf("collection %s: %w", collection, types.ErrNotFound)
	}
	return len(coll.docs), nil
}

func (m *MemoryStore) GetAliasTarget(ctx context.Context, aliasName string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	target, ok := m.aliases[aliasName]
	if !ok {
		return "", fmt.Errorf("alias %s: %w", aliasName, types.ErrAliasNotFound)
	}
	return target, nil
}

func (m *MemoryStore) SetAliasTarget(ctx context.Context, aliasName, collectionName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aliases[aliasName] = collectionName
	return nil
}

func (m *MemoryStore) Close() error { return nil }
