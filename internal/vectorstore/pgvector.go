package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/mpetrun/semcode/pkg/types"
)

// PGVectorStore is a VectorStore backed by Postgres with the pgvector
// extension. Similarity search runs in the database via the cosine
// distance operator; text search uses Postgres full-text ranking.
type PGVectorStore struct {
	db             *sql.DB
	logger         *zap.Logger
	maxCollections int
}

// PGVectorConfig configures a PGVectorStore.
type PGVectorConfig struct {
	DSN            string
	MaxCollections int // <= 0 means unlimited
}

// NewPGVectorStore connects to Postgres and ensures the base schema.
func NewPGVectorStore(cfg PGVectorConfig, logger *zap.Logger) (*PGVectorStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PGVectorStore{db: db, logger: logger, maxCollections: cfg.MaxCollections}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGVectorStore) migrate() error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS collections (
			name TEXT PRIMARY KEY,
			dimension INTEGER NOT NULL,
			created_at TIMESTAMPTZ DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS aliases (
			name TEXT PRIMARY KEY,
			target TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}
	return nil
}

func (s *PGVectorStore) CreateCollection(ctx context.Context, name string, dimension int) error {
	if err := validateCollectionName(name); err != nil {
		return err
	}

	exists, err := s.HasCollection(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if s.maxCollections > 0 {
		var count int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM collections`).Scan(&count); err != nil {
			return fmt.Errorf("count collections: %w", err)
		}
		if count >= s.maxCollections {
			return fmt.Errorf("%w: %d collections", types.ErrCollectionLimit, s.maxCollections)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		embedding vector(%d) NOT NULL,
		content TEXT NOT NULL,
		relative_path TEXT NOT NULL,
		start_line INTEGER NOT NULL,
		end_line INTEGER NOT NULL,
		file_extension TEXT NOT NULL,
		metadata JSONB,
		content_tsv tsvector GENERATED ALWAYS AS (to_tsvector('simple', content)) STORED
	)`, docTable(name), dimension)
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create collection table: %w", err)
	}

	indexes := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_path ON %s(relative_path)`,
			docTable(name), docTable(name)),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_tsv ON %s USING GIN(content_tsv)`,
			docTable(name), docTable(name)),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_embedding ON %s USING hnsw (embedding vector_cosine_ops)`,
			docTable(name), docTable(name)),
	}
	for _, idx := range indexes {
		if _, err := tx.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO collections (name, dimension) VALUES ($1, $2)`, name, dimension); err != nil {
		return fmt.Errorf("register collection: %w", err)
	}

	return tx.Commit()
}

func (s *PGVectorStore) DropCollection(ctx context.Context, name string) error {
	if err := validateCollectionName(name); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, docTable(name))); err != nil {
		return fmt.Errorf("drop collection table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = $1`, name); err != nil {
		return fmt.Errorf("unregister collection: %w", err)
	}

	return tx.Commit()
}

func (s *PGVectorStore) HasCollection(ctx context.Context, name string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM collections WHERE name = $1`, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check collection: %w", err)
	}
	return count > 0, nil
}

func (s *PGVectorStore) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM collections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan collection name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *PGVectorStore) dimension(ctx context.Context, collection string) (int, error) {
	var dim int
	err := s.db.QueryRowContext(ctx,
		`SELECT dimension FROM collections WHERE name = $1`, collection).Scan(&dim)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("collection %s: %w", collection, types.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("read collection dimension: %w", err)
	}
	return dim, nil
}

func (s *PGVectorStore) Insert(ctx context.Context, collection string, docs []*types.VectorDocument) error {
	if err := validateCollectionName(collection); err != nil {
		return err
	}
	dim, err := s.dimension(ctx, collection)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s
		(id, embedding, content, relative_path, start_line, end_line, file_extension, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			content = EXCLUDED.content,
			relative_path = EXCLUDED.relative_path,
			start_line = EXCLUDED.start_line,
			end_line = EXCLUDED.end_line,
			file_extension = EXCLUDED.file_extension,
			metadata = EXCLUDED.metadata`, docTable(collection)))
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		if len(doc.Vector) != dim {
			return fmt.Errorf("document %s: dimension %d does not match collection dimension %d",
				doc.ID, len(doc.Vector), dim)
		}
		metadata, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", doc.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			doc.ID, pgvector.NewVector(doc.Vector), doc.Content, doc.RelativePath,
			doc.StartLine, doc.EndLine, doc.FileExtension, string(metadata)); err != nil {
			return fmt.Errorf("upsert document %s: %w", doc.ID, err)
		}
	}

	return tx.Commit()
}

func (s *PGVectorStore) Delete(ctx context.Context, collection string, ids []string) error {
	if err := validateCollectionName(collection); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	args := make([]any, len(ids))
	placeholders := make([]string, len(ids))
	for i, id := range ids {
		args[i] = id
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id IN (%s)`,
		docTable(collection), strings.Join(placeholders, ",")), args...)
	if err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

func (s *PGVectorStore) DeleteByPath(ctx context.Context, collection string, relativePath string) (int, error) {
	if err := validateCollectionName(collection); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE relative_path = $1`,
		docTable(collection)), relativePath)
	if err != nil {
		return 0, fmt.Errorf("delete by path %s: %w", relativePath, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func (s *PGVectorStore) Search(ctx context.Context, collection string, opts SearchOptions) ([]SearchResult, error) {
	if err := validateCollectionName(collection); err != nil {
		return nil, err
	}
	if _, err := s.dimension(ctx, collection); err != nil {
		return nil, err
	}

	switch opts.Mode {
	case SearchModeText:
		return s.searchText(ctx, collection, opts)
	case SearchModeHybrid:
		vector, err := s.searchVector(ctx, collection, opts)
		if err != nil {
			return nil, err
		}
		text, err := s.searchText(ctx, collection, opts)
		if err != nil {
			return nil, err
		}
		return mergeHybrid(vector, text, opts.TopK), nil
	default:
		return s.searchVector(ctx, collection, opts)
	}
}

func (s *PGVectorStore) searchVector(ctx context.Context, collection string, opts SearchOptions) ([]SearchResult, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = 10
	}

	query := fmt.Sprintf(`SELECT id, embedding, content, relative_path, start_line, end_line,
			file_extension, metadata, 1 - (embedding <=> $1) AS score
		FROM %s`, docTable(collection))
	args := []any{pgvector.NewVector(opts.QueryVector)}
	if opts.PathPrefix != "" {
		query += ` WHERE relative_path LIKE $2`
		args = append(args, opts.PathPrefix+"%")
	}
	query += fmt.Sprintf(` ORDER BY embedding <=> $1 LIMIT %d`, topK)

	return s.scanResults(ctx, query, args)
}

func (s *PGVectorStore) searchText(ctx context.Context, collection string, opts SearchOptions) ([]SearchResult, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = 10
	}

	query := fmt.Sprintf(`SELECT id, embedding, content, relative_path, start_line, end_line,
			file_extension, metadata,
			ts_rank(content_tsv, plainto_tsquery('simple', $1)) AS score
		FROM %s
		WHERE content_tsv @@ plainto_tsquery('simple', $1)`, docTable(collection))
	args := []any{opts.QueryText}
	if opts.PathPrefix != "" {
		query += ` AND relative_path LIKE $2`
		args = append(args, opts.PathPrefix+"%")
	}
	query += fmt.Sprintf(` ORDER BY score DESC LIMIT %d`, topK)

	return s.scanResults(ctx, query, args)
}

func (s *PGVectorStore) scanResults(ctx context.Context, query string, args []any) ([]SearchResult, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			doc      types.VectorDocument
			vec      pgvector.Vector
			metadata sql.NullString
			score    float64
		)
		if err := rows.Scan(&doc.ID, &vec, &doc.Content, &doc.RelativePath,
			&doc.StartLine, &doc.EndLine, &doc.FileExtension, &metadata, &score); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		doc.Vector = vec.Slice()
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &doc.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata for %s: %w", doc.ID, err)
			}
		}
		results = append(results, SearchResult{Document: &doc, Score: score})
	}
	return results, rows.Err()
}

func (s *PGVectorStore) Query(ctx context.Context, collection string, filter Filter, limit int) ([]*types.VectorDocument, error) {
	if err := validateCollectionName(collection); err != nil {
		return nil, err
	}
	if _, err := s.dimension(ctx, collection); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, embedding, content, relative_path, start_line, end_line,
		file_extension, metadata FROM %s`, docTable(collection))
	var (
		clauses []string
		args    []any
	)
	if filter.RelativePath != "" {
		args = append(args, filter.RelativePath)
		clauses = append(clauses, fmt.Sprintf("relative_path = $%d", len(args)))
	}
	if filter.PathPrefix != "" {
		args = append(args, filter.PathPrefix+"%")
		clauses = append(clauses, fmt.Sprintf("relative_path LIKE $%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY relative_path, start_line"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []*types.VectorDocument
	for rows.Next() {
		var (
			doc      types.VectorDocument
			vec      pgvector.Vector
			metadata sql.NullString
		)
		if err := rows.Scan(&doc.ID, &vec, &doc.Content, &doc.RelativePath,
			&doc.StartLine, &doc.EndLine, &doc.FileExtension, &metadata); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.Vector = vec.Slice()
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &doc.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata for %s: %w", doc.ID, err)
			}
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

func (s *PGVectorStore) ListFilePaths(ctx context.Context, collection string, batchSize int) (map[string]struct{}, error) {
	if err := validateCollectionName(collection); err != nil {
		return nil, err
	}
	if _, err := s.dimension(ctx, collection); err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		batchSize = 1000
	}

	paths := make(map[string]struct{})
	last := ""
	for {
		rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
			`SELECT DISTINCT relative_path FROM %s WHERE relative_path > $1 ORDER BY relative_path LIMIT $2`,
			docTable(collection)), last, batchSize)
		if err != nil {
			return nil, fmt.Errorf("list file paths: %w", err)
		}

		count := 0
		for rows.Next() {
			var path string
			if err := rows.Scan(&path); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan path: %w", err)
			}
			paths[path] = struct{}{}
			last = path
			count++
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()

		if count < batchSize {
			return paths, nil
		}
	}
}

func (s *PGVectorStore) Count(ctx context.Context, collection string) (int, error) {
	if err := validateCollectionName(collection); err != nil {
		return 0, err
	}
	if _, err := s.dimension(ctx, collection); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s`, docTable(collection))).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

func (s *PGVectorStore) GetAliasTarget(ctx context.Context, aliasName string) (string, error) {
	var target string
	err := s.db.QueryRowContext(ctx,
		`SELECT target FROM aliases WHERE name = $1`, aliasName).Scan(&target)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("alias %s: %w", aliasName, types.ErrAliasNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read alias: %w", err)
	}
	return target, nil
}

func (s *PGVectorStore) SetAliasTarget(ctx context.Context, aliasName, collectionName string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO aliases (name, target) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET target = EXCLUDED.target`,
		aliasName, collectionName)
	if err != nil {
		return fmt.Errorf("set alias %s: %w", aliasName, err)
	}
	return nil
}

func (s *PGVectorStore) Close() error {
	return s.db.Close()
}
