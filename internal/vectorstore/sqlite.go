package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/mpetrun/semcode/pkg/types"
)

// collectionNameRE restricts collection names to identifiers safe to embed
// in table names.
var collectionNameRE = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// SQLiteStore is a VectorStore backed by a single SQLite database file.
// Each collection gets its own table; vectors are stored as little-endian
// float32 blobs and similarity is computed in Go, which keeps the store
// working on both the CGO and the pure-Go driver.
type SQLiteStore struct {
	db             *sql.DB
	logger         *zap.Logger
	maxCollections int
}

// SQLiteConfig configures a SQLiteStore.
type SQLiteConfig struct {
	Path           string
	MaxCollections int // <= 0 means unlimited
}

// NewSQLiteStore opens (creating if needed) the database at cfg.Path.
func NewSQLiteStore(cfg SQLiteConfig, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open(DriverName, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger, maxCollections: cfg.MaxCollections}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("sqlite store opened",
		zap.String("path", cfg.Path),
		zap.String("driver", DriverName),
		zap.String("build_mode", BuildMode))
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS collections (
			name TEXT PRIMARY KEY,
			dimension INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
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

func validateCollectionName(name string) error {
	if !collectionNameRE.MatchString(name) {
		return fmt.Errorf("invalid collection name %q: must match [a-zA-Z0-9_]+", name)
	}
	return nil
}

func docTable(collection string) string {
	return "docs_" + collection
}

func (s *SQLiteStore) CreateCollection(ctx context.Context, name string, dimension int) error {
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
		vector BLOB NOT NULL,
		content TEXT NOT NULL,
		relative_path TEXT NOT NULL,
		start_line INTEGER NOT NULL,
		end_line INTEGER NOT NULL,
		file_extension TEXT NOT NULL,
		metadata TEXT
	)`, docTable(name))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create collection table: %w", err)
	}
	index := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_path ON %s(relative_path)`,
		docTable(name), docTable(name))
	if _, err := tx.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("create path index: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO collections (name, dimension) VALUES (?, ?)`, name, dimension); err != nil {
		return fmt.Errorf("register collection: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) DropCollection(ctx context.Context, name string) error {
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
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name); err != nil {
		return fmt.Errorf("unregister collection: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) HasCollection(ctx context.Context, name string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM collections WHERE name = ?`, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check collection: %w", err)
	}
	return count > 0, nil
}

func (s *SQLiteStore) ListCollections(ctx context.Context) ([]string, error) {
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

func (s *SQLiteStore) dimension(ctx context.Context, collection string) (int, error) {
	var dim int
	err := s.db.QueryRowContext(ctx,
		`SELECT dimension FROM collections WHERE name = ?`, collection).Scan(&dim)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("collection %s: %w", collection, types.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("read collection dimension: %w", err)
	}
	return dim, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, collection string, docs []*types.VectorDocument) error {
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

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT OR REPLACE INTO %s
		(id, vector, content, relative_path, start_line, end_line, file_extension, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, docTable(collection)))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		if dim > 0 && len(doc.Vector) != dim {
			return fmt.Errorf("document %s: dimension %d does not match collection dimension %d",
				doc.ID, len(doc.Vector), dim)
		}
		metadata, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", doc.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			doc.ID, serializeVector(doc.Vector), doc.Content, doc.RelativePath,
			doc.StartLine, doc.EndLine, doc.FileExtension, string(metadata)); err != nil {
			return fmt.Errorf("insert document %s: %w", doc.ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) Delete(ctx context.Context, collection string, ids []string) error {
	if err := validateCollectionName(collection); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id IN (%s)`,
		docTable(collection), placeholders), args...)
	if err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteByPath(ctx context.Context, collection string, relativePath string) (int, error) {
	if err := validateCollectionName(collection); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE relative_path = ?`,
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

func (s *SQLiteStore) Search(ctx context.Context, collection string, opts SearchOptions) ([]SearchResult, error) {
	if err := validateCollectionName(collection); err != nil {
		return nil, err
	}
	if _, err := s.dimension(ctx, collection); err != nil {
		return nil, err
	}

	docs, err := s.scanDocs(ctx, collection, Filter{PathPrefix: opts.PathPrefix}, 0)
	if err != nil {
		return nil, err
	}

	switch opts.Mode {
	case SearchModeText:
		return scoreDocsText(docs, opts), nil
	case SearchModeHybrid:
		return mergeHybrid(scoreDocsVector(docs, opts), scoreDocsText(docs, opts), opts.TopK), nil
	default:
		return scoreDocsVector(docs, opts), nil
	}
}

func scoreDocsVector(docs []*types.VectorDocument, opts SearchOptions) []SearchResult {
	results := make([]SearchResult, 0, len(docs))
	for _, doc := range docs {
		results = append(results, SearchResult{
			Document: doc,
			Score:    cosineSimilarity(opts.QueryVector, doc.Vector),
		})
	}
	return topKResults(results, opts.TopK)
}

func scoreDocsText(docs []*types.VectorDocument, opts SearchOptions) []SearchResult {
	results := make([]SearchResult, 0, len(docs))
	for _, doc := range docs {
		score := textScore(doc.Content, opts.QueryText)
		if score == 0 {
			continue
		}
		results = append(results, SearchResult{Document: doc, Score: score})
	}
	return topKResults(results, opts.TopK)
}

func (s *SQLiteStore) Query(ctx context.Context, collection string, filter Filter, limit int) ([]*types.VectorDocument, error) {
	if err := validateCollectionName(collection); err != nil {
		return nil, err
	}
	if _, err := s.dimension(ctx, collection); err != nil {
		return nil, err
	}
	return s.scanDocs(ctx, collection, filter, limit)
}

func (s *SQLiteStore) scanDocs(ctx context.Context, collection string, filter Filter, limit int) ([]*types.VectorDocument, error) {
	query := fmt.Sprintf(`SELECT id, vector, content, relative_path, start_line, end_line, file_extension, metadata
		FROM %s`, docTable(collection))
	var (
		clauses []string
		args    []any
	)
	if filter.RelativePath != "" {
		clauses = append(clauses, "relative_path = ?")
		args = append(args, filter.RelativePath)
	}
	if filter.PathPrefix != "" {
		clauses = append(clauses, "relative_path LIKE ?")
		args = append(args, filter.PathPrefix+"%")
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY relative_path, start_line"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []*types.VectorDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func scanDocument(rows *sql.Rows) (*types.VectorDocument, error) {
	var (
		doc      types.VectorDocument
		blob     []byte
		metadata sql.NullString
	)
	if err := rows.Scan(&doc.ID, &blob, &doc.Content, &doc.RelativePath,
		&doc.StartLine, &doc.EndLine, &doc.FileExtension, &metadata); err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	doc.Vector = deserializeVector(blob)
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for %s: %w", doc.ID, err)
		}
	}
	return &doc, nil
}

func (s *SQLiteStore) ListFilePaths(ctx context.Context, collection string, batchSize int) (map[string]struct{}, error) {
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
			`SELECT DISTINCT relative_path FROM %s WHERE relative_path > ? ORDER BY relative_path LIMIT ?`,
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

func (s *SQLiteStore) Count(ctx context.Context, collection string) (int, error) {
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

func (s *SQLiteStore) GetAliasTarget(ctx context.Context, aliasName string) (string, error) {
	var target string
	err := s.db.QueryRowContext(ctx,
		`SELECT target FROM aliases WHERE name = ?`, aliasName).Scan(&target)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("alias %s: %w", aliasName, types.ErrAliasNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read alias: %w", err)
	}
	return target, nil
}

func (s *SQLiteStore) SetAliasTarget(ctx context.Context, aliasName, collectionName string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO aliases (name, target) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET target = excluded.target`,
		aliasName, collectionName)
	if err != nil {
		return fmt.Errorf("set alias %s: %w", aliasName, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
