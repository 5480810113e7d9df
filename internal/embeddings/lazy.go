package embeddings

import (
	"context"
	"fmt"
	"sync"

	"github.com/fathomlabs/fathomd/internal/docstore"
)

// LazyProvider defers model initialization until the first embedding
// call. Concurrent first calls share a single guarded initialization;
// none of them duplicates the model load. Initialization failure is
// sticky for the process lifetime and surfaces as ErrModelUnavailable.
// Every vector leaving the wrapper is dimension-validated and scaled
// to unit norm, whatever the delegate returned.
type LazyProvider struct {
	construct func() (Provider, error)
	dimension int

	once     sync.Once
	delegate Provider
	initErr  error
}

// NewLazyProvider wraps a provider constructor. dimension is the
// expected vector dimension, known ahead of initialization so callers
// can size storage before the model is loaded.
func NewLazyProvider(construct func() (Provider, error), dimension int) *LazyProvider {
	return &LazyProvider{construct: construct, dimension: dimension}
}

// init performs the one-time model load.
func (p *LazyProvider) init() (Provider, error) {
	p.once.Do(func() {
		delegate, err := p.construct()
		if err != nil {
			p.initErr = fmt.Errorf("%w: %v", ErrModelUnavailable, err)
			return
		}
		p.delegate = delegate
	})
	return p.delegate, p.initErr
}

// EmbedDocuments generates embeddings for multiple texts, loading the
// model on first use. Every returned vector is dimension-validated.
func (p *LazyProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	delegate, err := p.init()
	if err != nil {
		return nil, err
	}
	vecs, err := delegate.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i, vec := range vecs {
		if err := validateDimension(vec, p.dimension); err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		vecs[i] = docstore.Normalize(vec)
	}
	return vecs, nil
}

// EmbedQuery generates an embedding for a single query, loading the
// model on first use.
func (p *LazyProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	delegate, err := p.init()
	if err != nil {
		return nil, err
	}
	vec, err := delegate.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := validateDimension(vec, p.dimension); err != nil {
		return nil, err
	}
	return docstore.Normalize(vec), nil
}

// Dimension returns the configured embedding dimension.
func (p *LazyProvider) Dimension() int {
	return p.dimension
}

// Close releases the delegate if it was ever initialized.
func (p *LazyProvider) Close() error {
	if p.delegate != nil {
		return p.delegate.Close()
	}
	return nil
}
