package docstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fathomlabs/fathomd/internal/textproc"
)

// MemoryStore is an in-process Store with exact (brute-force) cosine
// search. It backs tests and small embedded deployments where running
// Postgres is not worth it.
type MemoryStore struct {
	mu         sync.RWMutex
	docs       map[string]Document
	dimensions int
}

// NewMemoryStore creates an empty in-memory store. dimensions bounds
// accepted embeddings; zero disables the write-time check (search still
// excludes mismatched vectors).
func NewMemoryStore(dimensions int) *MemoryStore {
	return &MemoryStore{
		docs:       make(map[string]Document),
		dimensions: dimensions,
	}
}

// Upsert inserts or replaces a document, keyed by source URL when
// present, else by ID.
func (s *MemoryStore) Upsert(_ context.Context, doc Document) (string, error) {
	if strings.TrimSpace(doc.Title) == "" {
		return "", fmt.Errorf("%w: title required", ErrInvalidDocument)
	}
	if strings.TrimSpace(doc.Content) == "" {
		return "", fmt.Errorf("%w: content required", ErrInvalidDocument)
	}
	if s.dimensions > 0 && len(doc.Embedding) > 0 && len(doc.Embedding) != s.dimensions {
		return "", fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(doc.Embedding), s.dimensions)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.SourceURL != "" {
		for id, existing := range s.docs {
			if existing.SourceURL == doc.SourceURL {
				doc.ID = id
				s.docs[id] = doc
				return id, nil
			}
		}
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	s.docs[doc.ID] = doc
	return doc.ID, nil
}

// Get returns a document by ID.
func (s *MemoryStore) Get(_ context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

// Delete removes a document by ID.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

// CountEmbedded returns the number of documents with an embedding.
func (s *MemoryStore) CountEmbedded(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, doc := range s.docs {
		if len(doc.Embedding) > 0 {
			count++
		}
	}
	return count, nil
}

// Search performs exact cosine search over all embedded documents.
// Documents without an embedding, or with an embedding whose length
// differs from the query vector, are excluded rather than scored wrong.
func (s *MemoryStore) Search(_ context.Context, q Query) ([]Hit, error) {
	if q.K <= 0 {
		q.K = 10
	}
	queryTokens := textproc.Tokenize(q.Lexical)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(q.Vector) == 0 {
		return s.searchLexical(queryTokens, q), nil
	}

	hits := make([]Hit, 0, len(s.docs))
	for _, doc := range s.docs {
		if len(doc.Embedding) == 0 || len(doc.Embedding) != len(q.Vector) {
			continue
		}
		if !matchFilters(doc, q.Filters) {
			continue
		}

		h := Hit{
			Document:   doc,
			Similarity: CosineSimilarity(q.Vector, doc.Embedding),
		}
		if len(queryTokens) > 0 {
			h.TextRank = termOverlap(queryTokens, doc)
		}
		hits = append(hits, h)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > q.K {
		hits = hits[:q.K]
	}
	return hits, nil
}

// searchLexical is the degraded keyword-only path used when no query
// vector is available. Documents are ranked by term overlap alone;
// embedding state is irrelevant here. Caller holds the read lock.
func (s *MemoryStore) searchLexical(queryTokens []string, q Query) []Hit {
	hits := make([]Hit, 0, len(s.docs))
	for _, doc := range s.docs {
		if !matchFilters(doc, q.Filters) {
			continue
		}
		rank := termOverlap(queryTokens, doc)
		if rank <= 0 {
			continue
		}
		hits = append(hits, Hit{Document: doc, TextRank: rank})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].TextRank != hits[j].TextRank {
			return hits[i].TextRank > hits[j].TextRank
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > q.K {
		hits = hits[:q.K]
	}
	return hits
}

// matchFilters applies the category and date-range pre-filter.
func matchFilters(doc Document, f Filters) bool {
	if f.Category != "" && doc.Category != f.Category {
		return false
	}
	if !f.DateStart.IsZero() && doc.CreatedAt.Before(f.DateStart) {
		return false
	}
	if !f.DateEnd.IsZero() && doc.CreatedAt.After(f.DateEnd) {
		return false
	}
	return true
}

// termOverlap is the lexical signal for the memory store: the fraction
// of distinct query tokens whose stem appears in the document title or
// content.
func termOverlap(queryTokens []string, doc Document) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	docTokens := textproc.Tokenize(doc.Title + " " + doc.Content)
	stems := make(map[string]struct{}, len(docTokens))
	for _, tok := range docTokens {
		stems[textproc.Stem(tok)] = struct{}{}
	}

	matched := 0
	seen := make(map[string]struct{}, len(queryTokens))
	for _, tok := range queryTokens {
		stem := textproc.Stem(tok)
		if _, dup := seen[stem]; dup {
			continue
		}
		seen[stem] = struct{}{}
		if _, ok := stems[stem]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(seen))
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
