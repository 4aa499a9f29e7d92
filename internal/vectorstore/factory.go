package vectorstore

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Backend names accepted by New.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPGVector = "pgvector"
)

// Config selects and configures a store backend.
type Config struct {
	Backend        string
	Path           string // sqlite database file
	DSN            string // postgres connection string
	MaxCollections int
}

// New constructs the configured VectorStore backend.
func New(cfg Config, logger *zap.Logger) (VectorStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendMemory, "":
		return NewMemoryStore(cfg.MaxCollections), nil
	case BackendSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite backend requires a database path")
		}
		return NewSQLiteStore(SQLiteConfig{Path: cfg.Path, MaxCollections: cfg.MaxCollections}, logger)
	case BackendPGVector:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("pgvector backend requires a DSN")
		}
		return NewPGVectorStore(PGVectorConfig{DSN: cfg.DSN, MaxCollections: cfg.MaxCollections}, logger)
	default:
		return nil, fmt.Errorf("unknown vector store backend %q", cfg.Backend)
	}
}
