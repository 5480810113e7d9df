// Package search implements hybrid document search: vector similarity
// blended with a lexical text-rank signal, with result caching,
// filtering, pagination and snippet highlighting.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fathomlabs/fathomd/internal/cache"
	"github.com/fathomlabs/fathomd/internal/docstore"
	"github.com/fathomlabs/fathomd/internal/embeddings"
	"github.com/fathomlabs/fathomd/internal/textproc"
)

// Defaults for the ranking configuration.
const (
	DefaultResultsPerPage      = 10
	DefaultMinSimilarity       = 0.3
	DefaultVectorWeight        = 0.7
	DefaultTextWeight          = 0.3
	DefaultCandidateMultiplier = 5
	DefaultStoreRetryAttempts  = 3
	DefaultStoreRetryBaseDelay = 100 * time.Millisecond
	DefaultEmbedTimeout        = 10 * time.Second
	DefaultStoreTimeout        = 5 * time.Second
)

// Config holds the search engine's ranking and resilience settings.
type Config struct {
	// ResultsPerPage is the page size.
	ResultsPerPage int

	// MinSimilarity drops results below this vector similarity. Applied
	// to the raw similarity, not the blended score.
	MinSimilarity float64

	// MaxQueryLength bounds raw queries in runes; longer input is
	// truncated, not rejected.
	MaxQueryLength int

	// HighlightLength is the content snippet window in tokens.
	HighlightLength int

	// VectorWeight and TextWeight blend the two ranking signals. They
	// should sum to 1.
	VectorWeight float64
	TextWeight   float64

	// CandidateMultiplier scales how many candidates are fetched from
	// the store relative to the page size, so later pages and the
	// similarity threshold have enough material to work with.
	CandidateMultiplier int

	// StoreRetryAttempts and StoreRetryBaseDelay govern the bounded
	// retry on transient store errors.
	StoreRetryAttempts  int
	StoreRetryBaseDelay time.Duration

	// EmbedTimeout and StoreTimeout are independent per-stage budgets.
	EmbedTimeout time.Duration
	StoreTimeout time.Duration

	// LexicalFallback degrades to keyword-only search when embedding
	// generation fails, instead of failing the request. Off by default:
	// silent quality degradation is opt-in.
	LexicalFallback bool
}

func (c *Config) applyDefaults() {
	if c.ResultsPerPage <= 0 {
		c.ResultsPerPage = DefaultResultsPerPage
	}
	if c.MinSimilarity == 0 {
		c.MinSimilarity = DefaultMinSimilarity
	}
	if c.MaxQueryLength <= 0 {
		c.MaxQueryLength = textproc.DefaultMaxQueryLength
	}
	if c.HighlightLength <= 0 {
		c.HighlightLength = DefaultHighlightLength
	}
	if c.VectorWeight == 0 && c.TextWeight == 0 {
		c.VectorWeight = DefaultVectorWeight
		c.TextWeight = DefaultTextWeight
	}
	if c.CandidateMultiplier <= 0 {
		c.CandidateMultiplier = DefaultCandidateMultiplier
	}
	if c.StoreRetryAttempts <= 0 {
		c.StoreRetryAttempts = DefaultStoreRetryAttempts
	}
	if c.StoreRetryBaseDelay <= 0 {
		c.StoreRetryBaseDelay = DefaultStoreRetryBaseDelay
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = DefaultEmbedTimeout
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = DefaultStoreTimeout
	}
}

// Request is one search invocation.
type Request struct {
	// Query is the raw user query.
	Query string

	// Page is 1-based; values below 1 are treated as 1.
	Page int

	// Filters narrow the search before ranking.
	Filters docstore.Filters
}

// Highlights carries marked-up copies of the short document fields.
// Description is null when the document has none.
type Highlights struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

// Result is one ranked search hit in wire form. Content is the best
// snippet of the document body with query terms marked.
type Result struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Content      string      `json:"content"`
	Category     string      `json:"category"`
	Date         string      `json:"date"`
	URL          string      `json:"url"`
	ThumbnailURL string      `json:"thumbnailUrl,omitempty"`
	Similarity   float64     `json:"similarity"`
	TextRank     float64     `json:"textRank,omitempty"`
	Highlights   *Highlights `json:"highlights,omitempty"`
}

// Metadata describes the result set as a whole.
type Metadata struct {
	QueryTime    string `json:"queryTime"`
	TotalResults int    `json:"totalResults"`
	CurrentPage  int    `json:"currentPage"`
	TotalPages   int    `json:"totalPages"`
	Cached       bool   `json:"cached"`
	Message      string `json:"message,omitempty"`
}

// Response is a complete search answer.
type Response struct {
	Results  []Result `json:"results"`
	Metadata Metadata `json:"metadata"`
}

// Engine runs the full search pipeline: preprocess, embed (cached),
// query the store with bounded retries, blend and threshold scores,
// paginate, highlight, and cache the final page.
type Engine struct {
	store       docstore.Store
	provider    embeddings.Provider
	pre         *textproc.Preprocessor
	results     *cache.Cache
	vectors     *cache.Cache
	highlighter *Highlighter
	cfg         Config
	logger      *zap.Logger
	metrics     *Metrics
}

// NewEngine creates a search engine. results caches rendered pages,
// vectors caches query embeddings; both may share TTL settings but are
// kept separate so a page eviction never drops an embedding.
func NewEngine(store docstore.Store, provider embeddings.Provider, results, vectors *cache.Cache, cfg Config, logger *zap.Logger, metrics *Metrics) *Engine {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(logger)
	}
	return &Engine{
		store:       store,
		provider:    provider,
		pre:         textproc.NewPreprocessor(cfg.MaxQueryLength),
		results:     results,
		vectors:     vectors,
		highlighter: NewHighlighter(cfg.HighlightLength),
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics,
	}
}

// Search runs one query. The same normalized query, page and filters
// within the cache TTL return the cached page without touching the
// provider or the store.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	resp, cached, err := e.searchCached(ctx, req)
	e.metrics.RecordSearch(ctx, time.Since(start), cached, errKind(err))
	if err != nil {
		return nil, err
	}

	// Copy before stamping per-request metadata so the cached value
	// stays untouched.
	out := *resp
	out.Metadata.Cached = cached
	out.Metadata.QueryTime = formatQueryTime(time.Since(start))
	return &out, nil
}

func (e *Engine) searchCached(ctx context.Context, req Request) (*Response, bool, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, false, fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}
	if req.Page < 1 {
		req.Page = 1
	}

	normalized := e.pre.Preprocess(req.Query)
	if normalized == "" {
		return nil, false, fmt.Errorf("%w: no searchable terms after normalization", ErrInvalidQuery)
	}

	key := resultKey(normalized, req.Page, req.Filters)
	value, cached, err := e.results.GetOrCompute(ctx, key, func(ctx context.Context) (any, error) {
		return e.search(ctx, normalized, req)
	})
	if err != nil {
		return nil, false, err
	}
	return value.(*Response), cached, nil
}

// search is the uncached pipeline for one (query, page, filters) tuple.
func (e *Engine) search(ctx context.Context, normalized string, req Request) (*Response, error) {
	count, err := e.countEmbedded(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		// Precondition, not an error: the corpus simply has nothing
		// searchable yet.
		return &Response{
			Results: []Result{},
			Metadata: Metadata{
				CurrentPage: req.Page,
				Message:     "no documents with embeddings available",
			},
		}, nil
	}

	vector, err := e.queryVector(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrDimensionMismatch) || errors.Is(err, ErrTimeout) || !e.cfg.LexicalFallback {
			return nil, err
		}
		e.logger.Warn("embedding unavailable, degrading to keyword-only search",
			zap.Error(err))
		vector = nil
	}

	hits, err := e.queryStore(ctx, docstore.Query{
		Vector:  vector,
		Lexical: normalized,
		K:       e.cfg.ResultsPerPage * e.cfg.CandidateMultiplier,
		Filters: req.Filters,
	})
	if err != nil {
		return nil, err
	}

	scored := e.rank(hits, vector != nil)

	total := len(scored)
	totalPages := (total + e.cfg.ResultsPerPage - 1) / e.cfg.ResultsPerPage

	first := (req.Page - 1) * e.cfg.ResultsPerPage
	last := first + e.cfg.ResultsPerPage
	if first > total {
		first = total
	}
	if last > total {
		last = total
	}

	stems := QueryStems(normalized)
	results := make([]Result, 0, last-first)
	for _, h := range scored[first:last] {
		results = append(results, e.render(h, stems))
	}

	return &Response{
		Results: results,
		Metadata: Metadata{
			TotalResults: total,
			CurrentPage:  req.Page,
			TotalPages:   totalPages,
		},
	}, nil
}

// scoredHit carries the blended ranking score alongside the store hit.
type scoredHit struct {
	docstore.Hit
	final float64
}

// rank applies the similarity threshold and blends the vector and
// lexical signals into the final ordering. In keyword-only mode the
// text rank is the whole score and no similarity threshold applies.
func (e *Engine) rank(hits []docstore.Hit, hasVector bool) []scoredHit {
	scored := make([]scoredHit, 0, len(hits))
	for _, h := range hits {
		if hasVector && h.Similarity < e.cfg.MinSimilarity {
			continue
		}
		final := h.TextRank
		if hasVector {
			final = e.cfg.VectorWeight*h.Similarity + e.cfg.TextWeight*h.TextRank
		}
		scored = append(scored, scoredHit{Hit: h, final: final})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].final != scored[j].final {
			return scored[i].final > scored[j].final
		}
		return scored[i].ID < scored[j].ID
	})
	return scored
}

// render converts a scored hit to wire form, highlighting as it goes.
func (e *Engine) render(h scoredHit, stems map[string]struct{}) Result {
	r := Result{
		ID:           h.ID,
		Title:        h.Title,
		Content:      e.highlighter.Snippet(h.Content, stems),
		Category:     h.Category,
		Date:         h.CreatedAt.UTC().Format("2006-01-02"),
		URL:          h.SourceURL,
		ThumbnailURL: h.ThumbnailURL,
		Similarity:   h.Similarity,
		TextRank:     h.TextRank,
	}

	hl := &Highlights{Title: e.highlighter.Mark(h.Title, stems)}
	if h.Description != "" {
		marked := e.highlighter.Mark(h.Description, stems)
		hl.Description = &marked
	}
	r.Highlights = hl
	return r
}

// queryVector returns the embedding for a normalized query, cached.
// Embedding failures are never retried; a cold model either loads once
// or the provider reports a sticky failure.
func (e *Engine) queryVector(ctx context.Context, normalized string) ([]float32, error) {
	ectx, cancel := context.WithTimeout(ctx, e.cfg.EmbedTimeout)
	defer cancel()

	value, _, err := e.vectors.GetOrCompute(ectx, "q:"+normalized, func(ctx context.Context) (any, error) {
		return e.provider.EmbedQuery(ctx, normalized)
	})
	if err != nil {
		switch {
		case errors.Is(err, embeddings.ErrDimensionMismatch):
			e.logger.Error("query embedding has wrong dimension", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrDimensionMismatch, err)
		case errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("%w: embedding: %v", ErrTimeout, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		}
	}
	return value.([]float32), nil
}

// queryStore runs the candidate query with per-attempt timeouts and
// bounded retries on transient store errors.
func (e *Engine) queryStore(ctx context.Context, q docstore.Query) ([]docstore.Hit, error) {
	var hits []docstore.Hit
	err := retryWithBackoff(ctx, e.logger, e.cfg.StoreRetryAttempts, e.cfg.StoreRetryBaseDelay, func() error {
		sctx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
		defer cancel()

		var serr error
		hits, serr = e.store.Search(sctx, q)
		return serr
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return hits, nil
}

// countEmbedded checks the searchable-corpus precondition, with the
// same retry policy as the candidate query.
func (e *Engine) countEmbedded(ctx context.Context) (int, error) {
	var count int
	err := retryWithBackoff(ctx, e.logger, e.cfg.StoreRetryAttempts, e.cfg.StoreRetryBaseDelay, func() error {
		sctx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
		defer cancel()

		var serr error
		count, serr = e.store.CountEmbedded(sctx)
		return serr
	})
	if err != nil {
		return 0, mapStoreErr(err)
	}
	return count, nil
}

// mapStoreErr translates store failures into the engine error taxonomy.
func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: store: %v", ErrTimeout, err)
	case errors.Is(err, docstore.ErrDimensionMismatch):
		return fmt.Errorf("%w: %v", ErrDimensionMismatch, err)
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

// errKind labels an error for metrics.
func errKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidQuery):
		return "invalid_query"
	case errors.Is(err, ErrEmbeddingFailed):
		return "embedding"
	case errors.Is(err, ErrDimensionMismatch):
		return "dimension"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrStoreUnavailable):
		return "store"
	default:
		return "internal"
	}
}

// resultKey builds the cache key for a rendered page. Distinct filters
// must never share an entry.
func resultKey(normalized string, page int, f docstore.Filters) string {
	var b strings.Builder
	b.WriteString(normalized)
	fmt.Fprintf(&b, "|p=%d", page)
	if f.Category != "" {
		fmt.Fprintf(&b, "|c=%s", f.Category)
	}
	if !f.DateStart.IsZero() {
		fmt.Fprintf(&b, "|ds=%d", f.DateStart.Unix())
	}
	if !f.DateEnd.IsZero() {
		fmt.Fprintf(&b, "|de=%d", f.DateEnd.Unix())
	}
	return b.String()
}

// formatQueryTime renders a duration as whole milliseconds, matching
// the wire contract.
func formatQueryTime(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Milliseconds())
}
