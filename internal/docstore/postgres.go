package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
	"go.uber.org/zap"
)

// PostgresConfig holds configuration for the Postgres store.
type PostgresConfig struct {
	// URL is the connection string.
	URL string

	// Dimensions is the vector column dimension. All stored embeddings
	// and all query vectors must have this length.
	Dimensions int

	// MaxConns bounds the connection pool. Defaults to 10.
	MaxConns int32

	// ConnectTimeout bounds pool establishment. Defaults to 10s.
	ConnectTimeout time.Duration
}

// PostgresStore stores documents in Postgres with the pgvector
// extension. Vector parameters go through typed parameter binding,
// never hand-formatted query text.
type PostgresStore struct {
	pool       *pgxpool.Pool
	dimensions int
	logger     *zap.Logger
}

// NewPostgresStore connects to Postgres and prepares the pool. The
// vector OIDs are registered on every new connection so []float32
// round-trips as a typed vector value.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig, logger *zap.Logger) (*PostgresStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: connection URL required", ErrInvalidDocument)
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: vector dimensions required", ErrInvalidDocument)
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = 10
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &PostgresStore{pool: pool, dimensions: cfg.Dimensions, logger: logger}, nil
}

// Migrate creates the documents table, the vector extension and the
// search indexes. Idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS documents (
			id            text PRIMARY KEY,
			title         text NOT NULL,
			content       text NOT NULL,
			description   text,
			category      text NOT NULL DEFAULT '',
			created_at    timestamptz NOT NULL DEFAULT now(),
			source_url    text UNIQUE,
			thumbnail_url text,
			metadata      jsonb,
			embedding     vector(%d),
			content_tsv   tsvector GENERATED ALWAYS AS (
				to_tsvector('english', coalesce(title, '') || ' ' || content)
			) STORED
		)`, s.dimensions),
		`CREATE INDEX IF NOT EXISTS documents_embedding_idx
			ON documents USING hnsw (embedding vector_cosine_ops)`,
		`CREATE INDEX IF NOT EXISTS documents_content_tsv_idx
			ON documents USING gin (content_tsv)`,
		`CREATE INDEX IF NOT EXISTS documents_category_idx
			ON documents (category)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: migrate: %v", ErrUnavailable, err)
		}
	}
	s.logger.Info("document store migrated", zap.Int("dimensions", s.dimensions))
	return nil
}

// Upsert inserts or replaces a document, keyed by source URL when
// present, else by ID.
func (s *PostgresStore) Upsert(ctx context.Context, doc Document) (string, error) {
	if err := s.validate(&doc); err != nil {
		return "", err
	}

	var embedding any
	if len(doc.Embedding) > 0 {
		embedding = pgvector.NewVector(doc.Embedding)
	}

	conflictKey := "id"
	if doc.SourceURL != "" {
		conflictKey = "source_url"
	}

	// The conflict target is one of two fixed column names, never user
	// input.
	sql := fmt.Sprintf(`
		INSERT INTO documents
			(id, title, content, description, category, created_at,
			 source_url, thumbnail_url, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10)
		ON CONFLICT (%s) DO UPDATE SET
			title         = EXCLUDED.title,
			content       = EXCLUDED.content,
			description   = EXCLUDED.description,
			category      = EXCLUDED.category,
			thumbnail_url = EXCLUDED.thumbnail_url,
			metadata      = EXCLUDED.metadata,
			embedding     = EXCLUDED.embedding
		RETURNING id`, conflictKey)

	var id string
	err := s.pool.QueryRow(ctx, sql,
		doc.ID, doc.Title, doc.Content, doc.Description, doc.Category,
		doc.CreatedAt, doc.SourceURL, doc.ThumbnailURL, doc.Metadata, embedding,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("%w: upsert: %v", ErrUnavailable, err)
	}
	return id, nil
}

// validate normalizes and checks a document before writing.
func (s *PostgresStore) validate(doc *Document) error {
	if strings.TrimSpace(doc.Title) == "" {
		return fmt.Errorf("%w: title required", ErrInvalidDocument)
	}
	if strings.TrimSpace(doc.Content) == "" {
		return fmt.Errorf("%w: content required", ErrInvalidDocument)
	}
	if len(doc.Embedding) > 0 && len(doc.Embedding) != s.dimensions {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(doc.Embedding), s.dimensions)
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	return nil
}

// Get returns a document by ID.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Document, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, title, content, description, category, created_at,
		       coalesce(source_url, ''), coalesce(thumbnail_url, ''), metadata, embedding
		FROM documents
		WHERE id = $1`, id)

	var doc Document
	var description *string
	var embedding *pgvector.Vector
	err := row.Scan(&doc.ID, &doc.Title, &doc.Content, &description, &doc.Category,
		&doc.CreatedAt, &doc.SourceURL, &doc.ThumbnailURL, &doc.Metadata, &embedding)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get: %v", ErrUnavailable, err)
	}
	if description != nil {
		doc.Description = *description
	}
	if embedding != nil {
		doc.Embedding = embedding.Slice()
	}
	return &doc, nil
}

// Delete removes a document by ID.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete: %v", ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountEmbedded returns the number of documents with a non-null
// embedding.
func (s *PostgresStore) CountEmbedded(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM documents WHERE embedding IS NOT NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrUnavailable, err)
	}
	return count, nil
}

// Search runs a single similarity query: cosine similarity on the
// vector column blended with ts_rank_cd as the lexical signal, category
// and date filters intersected as a pre-filter, ordered by similarity
// descending with ID ascending as the tie-break.
func (s *PostgresStore) Search(ctx context.Context, q Query) ([]Hit, error) {
	if len(q.Vector) != 0 && len(q.Vector) != s.dimensions {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, want %d",
			ErrDimensionMismatch, len(q.Vector), s.dimensions)
	}
	if q.K <= 0 {
		q.K = 10
	}

	var sql string
	var args []any
	if len(q.Vector) == 0 {
		if q.Lexical == "" {
			return nil, fmt.Errorf("%w: query needs a vector or lexical text", ErrInvalidDocument)
		}
		sql, args = buildLexicalQuery(q)
	} else {
		sql, args = buildSearchQuery(q)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var description *string
		err := rows.Scan(&h.ID, &h.Title, &h.Content, &description, &h.Category,
			&h.CreatedAt, &h.SourceURL, &h.ThumbnailURL, &h.Metadata,
			&h.Similarity, &h.TextRank)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning hit: %v", ErrUnavailable, err)
		}
		if description != nil {
			h.Description = *description
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: search rows: %v", ErrUnavailable, err)
	}
	return hits, nil
}

// buildSearchQuery assembles the similarity SQL and its parameter list.
// Split out for testability without a live database.
func buildSearchQuery(q Query) (string, []any) {
	args := []any{pgvector.NewVector(q.Vector), q.Lexical}

	var b strings.Builder
	b.WriteString(`
		SELECT id, title, content, description, category, created_at,
		       coalesce(source_url, ''), coalesce(thumbnail_url, ''), metadata,
		       1 - (embedding <=> $1) AS similarity,
		       ts_rank_cd(content_tsv, plainto_tsquery('english', $2)) AS text_rank
		FROM documents
		WHERE embedding IS NOT NULL`)

	if q.Filters.Category != "" {
		args = append(args, q.Filters.Category)
		fmt.Fprintf(&b, " AND category = $%d", len(args))
	}
	if !q.Filters.DateStart.IsZero() {
		args = append(args, q.Filters.DateStart)
		fmt.Fprintf(&b, " AND created_at >= $%d", len(args))
	}
	if !q.Filters.DateEnd.IsZero() {
		args = append(args, q.Filters.DateEnd)
		fmt.Fprintf(&b, " AND created_at <= $%d", len(args))
	}

	args = append(args, q.K)
	fmt.Fprintf(&b, " ORDER BY similarity DESC, id ASC LIMIT $%d", len(args))

	return b.String(), args
}

// buildLexicalQuery assembles the keyword-only SQL used when no query
// vector is available. Full-text match replaces the vector predicate and
// text rank replaces similarity as the sort key.
func buildLexicalQuery(q Query) (string, []any) {
	args := []any{q.Lexical}

	var b strings.Builder
	b.WriteString(`
		SELECT id, title, content, description, category, created_at,
		       coalesce(source_url, ''), coalesce(thumbnail_url, ''), metadata,
		       0::float8 AS similarity,
		       ts_rank_cd(content_tsv, plainto_tsquery('english', $1)) AS text_rank
		FROM documents
		WHERE content_tsv @@ plainto_tsquery('english', $1)`)

	if q.Filters.Category != "" {
		args = append(args, q.Filters.Category)
		fmt.Fprintf(&b, " AND category = $%d", len(args))
	}
	if !q.Filters.DateStart.IsZero() {
		args = append(args, q.Filters.DateStart)
		fmt.Fprintf(&b, " AND created_at >= $%d", len(args))
	}
	if !q.Filters.DateEnd.IsZero() {
		args = append(args, q.Filters.DateEnd)
		fmt.Fprintf(&b, " AND created_at <= $%d", len(args))
	}

	args = append(args, q.K)
	fmt.Fprintf(&b, " ORDER BY text_rank DESC, id ASC LIMIT $%d", len(args))

	return b.String(), args
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
