package vectorstore

import (
	"context"

	"github.com/mpetrun/semcode/pkg/types"
)

// SearchMode selects how a search query is matched.
type SearchMode string

const (
	SearchModeVector SearchMode = "vector"
	SearchModeText   SearchMode = "text"
	SearchModeHybrid SearchMode = "hybrid"
)

// SearchOptions parameterizes a ranked search against one collection.
type SearchOptions struct {
	Mode        SearchMode
	TopK        int
	QueryVector []float32 // required for vector and hybrid modes
	QueryText   string    // required for text and hybrid modes
	PathPrefix  string    // optional filter on relative path prefix
}

// SearchResult is one ranked hit.
type SearchResult struct {
	Document    *types.VectorDocument
	Score       float64
	RerankScore *float64
}

// Filter narrows Query to a subset of documents. Zero values match all.
type Filter struct {
	RelativePath string // exact relative path
	PathPrefix   string // relative path prefix
}

// VectorStore is a collection-oriented store for vector documents. Insert
// has upsert semantics keyed by document ID, so re-indexing unchanged
// content is idempotent and out-of-order upserts are safe.
//
// Implementations raise types.ErrCollectionLimit when the backend's
// collection capacity is reached, distinct from generic failures.
type VectorStore interface {
	CreateCollection(ctx context.Context, name string, dimension int) error
	DropCollection(ctx context.Context, name string) error
	HasCollection(ctx context.Context, name string) (bool, error)
	ListCollections(ctx context.Context) ([]string, error)

	Insert(ctx context.Context, collection string, docs []*types.VectorDocument) error
	Delete(ctx context.Context, collection string, ids []string) error
	DeleteByPath(ctx context.Context, collection string, relativePath string) (int, error)

	Search(ctx context.Context, collection string, opts SearchOptions) ([]SearchResult, error)
	Query(ctx context.Context, collection string, filter Filter, limit int) ([]*types.VectorDocument, error)

	// ListFilePaths enumerates distinct relative paths in the collection,
	// reading batchSize rows per page.
	ListFilePaths(ctx context.Context, collection string, batchSize int) (map[string]struct{}, error)

	// Count returns the number of documents in the collection.
	Count(ctx context.Context, collection string) (int, error)

	Close() error
}

// AliasManager is an optional store capability: a named pointer that
// readers resolve to the active collection. SetAliasTarget must be atomic
// from the store's perspective.
type AliasManager interface {
	GetAliasTarget(ctx context.Context, aliasName string) (string, error)
	SetAliasTarget(ctx context.Context, aliasName, collectionName string) error
}
