// Package ingest turns raw documents into stored, embedded search
// material.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fathomlabs/fathomd/internal/docstore"
	"github.com/fathomlabs/fathomd/internal/embeddings"
)

// Input is a document as submitted for ingestion, before embedding.
type Input struct {
	ID           string         `json:"id,omitempty"`
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	Description  string         `json:"description,omitempty"`
	Category     string         `json:"category,omitempty"`
	CreatedAt    time.Time      `json:"createdAt,omitempty"`
	SourceURL    string         `json:"sourceUrl,omitempty"`
	ThumbnailURL string         `json:"thumbnailUrl,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Pipeline embeds and stores documents. Embedding failures do not lose
// the document: it is stored without a vector and stays reachable
// through keyword search until re-ingested.
type Pipeline struct {
	store    docstore.Store
	provider embeddings.Provider
	logger   *zap.Logger

	// onChange fires after any successful write so callers can
	// invalidate derived state such as cached result pages.
	onChange func()
}

// NewPipeline creates an ingestion pipeline. onChange may be nil.
func NewPipeline(store docstore.Store, provider embeddings.Provider, logger *zap.Logger, onChange func()) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{store: store, provider: provider, logger: logger, onChange: onChange}
}

// Ingest validates, embeds and upserts a single document, returning its
// ID. Re-ingesting the same source URL replaces the stored document.
func (p *Pipeline) Ingest(ctx context.Context, in Input) (string, error) {
	ids, err := p.IngestBatch(ctx, []Input{in})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// IngestBatch ingests several documents with a single embedding call.
// Returns the stored IDs in input order. The batch is all-or-nothing on
// validation but per-document on storage: the first store error aborts
// with the IDs written so far discarded from the return value.
func (p *Pipeline) IngestBatch(ctx context.Context, inputs []Input) ([]string, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	for i, in := range inputs {
		if strings.TrimSpace(in.Title) == "" {
			return nil, fmt.Errorf("%w: document %d: title required", docstore.ErrInvalidDocument, i)
		}
		if strings.TrimSpace(in.Content) == "" {
			return nil, fmt.Errorf("%w: document %d: content required", docstore.ErrInvalidDocument, i)
		}
	}

	texts := make([]string, len(inputs))
	for i, in := range inputs {
		texts[i] = embeddingText(in)
	}

	vectors, err := p.provider.EmbedDocuments(ctx, texts)
	if err != nil {
		// The document is still worth keeping: keyword search works
		// without a vector, and a later re-ingest can fill it in.
		p.logger.Warn("embedding failed, storing documents without vectors",
			zap.Int("count", len(inputs)),
			zap.Error(err))
		vectors = nil
	}

	ids := make([]string, 0, len(inputs))
	for i, in := range inputs {
		doc := docstore.Document{
			ID:           in.ID,
			Title:        in.Title,
			Content:      in.Content,
			Description:  in.Description,
			Category:     in.Category,
			CreatedAt:    in.CreatedAt,
			SourceURL:    in.SourceURL,
			ThumbnailURL: in.ThumbnailURL,
			Metadata:     in.Metadata,
		}
		if vectors != nil {
			doc.Embedding = vectors[i]
		}

		id, err := p.store.Upsert(ctx, doc)
		if err != nil {
			return nil, fmt.Errorf("storing document %d: %w", i, err)
		}
		ids = append(ids, id)
	}

	p.logger.Info("documents ingested",
		zap.Int("count", len(ids)),
		zap.Bool("embedded", vectors != nil))
	p.notify()
	return ids, nil
}

// Delete removes a document by ID.
func (p *Pipeline) Delete(ctx context.Context, id string) error {
	if err := p.store.Delete(ctx, id); err != nil {
		return err
	}
	p.logger.Info("document deleted", zap.String("id", id))
	p.notify()
	return nil
}

func (p *Pipeline) notify() {
	if p.onChange != nil {
		p.onChange()
	}
}

// embeddingText is the passage fed to the embedding model: title and
// body together, so title-only matches still land.
func embeddingText(in Input) string {
	return in.Title + "\n\n" + in.Content
}
