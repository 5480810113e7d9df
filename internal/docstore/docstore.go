// Package docstore defines the interface for document storage with
// vector similarity and lexical search.
package docstore

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for document store operations.
var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrUnavailable indicates transient connectivity or timeout issues
	// talking to the store. Callers may retry a bounded number of times.
	ErrUnavailable = errors.New("document store unavailable")

	// ErrInvalidDocument indicates a document failing validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrDimensionMismatch indicates an embedding whose length differs
	// from the store's configured dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Document is the unit of search. The embedding is derived from the
// content at ingestion time; documents lacking one are excluded from
// vector search but may still appear in keyword search.
type Document struct {
	// ID is the unique identifier, immutable once created.
	ID string

	// Title is the document title.
	Title string

	// Content is the full extracted text.
	Content string

	// Description is an optional short text.
	Description string

	// Category is a string label used for filtering.
	Category string

	// CreatedAt is the creation timestamp.
	CreatedAt time.Time

	// SourceURL links to the original file. Upserts are keyed by it
	// when present.
	SourceURL string

	// ThumbnailURL is an optional preview image link.
	ThumbnailURL string

	// Metadata is an open key-value map.
	Metadata map[string]any

	// Embedding is the fixed-dimension vector for the content. Its
	// length must equal the store's configured dimension.
	Embedding []float32
}

// Filters narrow a search to a category and/or creation date range.
// Filters intersect with the similarity ranking; they never rerank.
type Filters struct {
	Category  string
	DateStart time.Time
	DateEnd   time.Time
}

// Query is a similarity search request against the store.
type Query struct {
	// Vector is the query embedding. Empty means lexical-only search.
	Vector []float32

	// Lexical is the preprocessed query text used for the text-rank
	// signal. Empty disables the lexical signal.
	Lexical string

	// K bounds the number of returned hits.
	K int

	// Filters are applied as a pre-filter.
	Filters Filters
}

// Hit is a scored search result. Similarity is 1 - cosine distance in
// [0, 1] for unit vectors; TextRank is a lexical relevance score
// independent of embeddings.
type Hit struct {
	Document
	Similarity float64
	TextRank   float64
}

// Store is the interface for document storage operations.
//
// The search path is read-only; the ingestion path is the only writer.
// Implementations:
//   - PostgresStore: Postgres + pgvector (production)
//   - MemoryStore: in-process exact search (tests, embedded use)
type Store interface {
	// Upsert inserts or replaces a document. When SourceURL is set it is
	// the upsert key, otherwise the ID. Returns the document ID.
	Upsert(ctx context.Context, doc Document) (string, error)

	// Get returns a document by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Document, error)

	// Delete removes a document by ID, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// CountEmbedded returns the number of documents with a non-null
	// embedding.
	CountEmbedded(ctx context.Context) (int, error)

	// Search returns up to K hits ordered by similarity descending,
	// ties broken by ID ascending. Documents without an embedding, or
	// with an embedding of the wrong dimension, are excluded.
	Search(ctx context.Context, q Query) ([]Hit, error)

	// Close releases store resources.
	Close() error
}
