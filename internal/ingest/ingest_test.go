package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fathomlabs/fathomd/internal/docstore"
)

type stubProvider struct {
	batches [][]string
	err     error
}

func (p *stubProvider) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	p.batches = append(p.batches, texts)
	if p.err != nil {
		return nil, p.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (p *stubProvider) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (p *stubProvider) Dimension() int { return 2 }
func (p *stubProvider) Close() error   { return nil }

func TestPipeline_IngestStoresEmbeddedDocument(t *testing.T) {
	store := docstore.NewMemoryStore(2)
	provider := &stubProvider{}
	p := NewPipeline(store, provider, zap.NewNop(), nil)

	id, err := p.Ingest(context.Background(), Input{
		Title:   "Annual Report",
		Content: "fiscal year earnings",
	})
	require.NoError(t, err)

	doc, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, doc.Embedding)

	// The passage includes the title so title-only queries still match.
	require.Len(t, provider.batches, 1)
	assert.Equal(t, "Annual Report\n\nfiscal year earnings", provider.batches[0][0])
}

func TestPipeline_IngestBatchSingleEmbeddingCall(t *testing.T) {
	store := docstore.NewMemoryStore(2)
	provider := &stubProvider{}
	p := NewPipeline(store, provider, zap.NewNop(), nil)

	ids, err := p.IngestBatch(context.Background(), []Input{
		{Title: "a", Content: "first"},
		{Title: "b", Content: "second"},
		{Title: "c", Content: "third"},
	})
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.Len(t, provider.batches, 1, "one provider call per batch")

	count, err := store.CountEmbedded(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestPipeline_ValidationRejectsBeforeEmbedding(t *testing.T) {
	store := docstore.NewMemoryStore(2)
	provider := &stubProvider{}
	p := NewPipeline(store, provider, zap.NewNop(), nil)

	_, err := p.IngestBatch(context.Background(), []Input{
		{Title: "ok", Content: "fine"},
		{Title: "", Content: "missing title"},
	})
	require.ErrorIs(t, err, docstore.ErrInvalidDocument)
	assert.Empty(t, provider.batches, "invalid batches never reach the provider")
}

func TestPipeline_EmbeddingFailureStoresWithoutVector(t *testing.T) {
	store := docstore.NewMemoryStore(2)
	provider := &stubProvider{err: errors.New("model down")}
	p := NewPipeline(store, provider, zap.NewNop(), nil)

	id, err := p.Ingest(context.Background(), Input{Title: "t", Content: "c"})
	require.NoError(t, err, "embedding failure must not lose the document")

	doc, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, doc.Embedding)

	count, err := store.CountEmbedded(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPipeline_ReingestBySourceURLReplaces(t *testing.T) {
	store := docstore.NewMemoryStore(2)
	p := NewPipeline(store, &stubProvider{}, zap.NewNop(), nil)
	ctx := context.Background()

	id1, err := p.Ingest(ctx, Input{Title: "v1", Content: "c", SourceURL: "https://x/doc.pdf"})
	require.NoError(t, err)
	id2, err := p.Ingest(ctx, Input{Title: "v2", Content: "c", SourceURL: "https://x/doc.pdf"})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

func TestPipeline_OnChangeFiresAfterWrites(t *testing.T) {
	store := docstore.NewMemoryStore(2)
	changes := 0
	p := NewPipeline(store, &stubProvider{}, zap.NewNop(), func() { changes++ })
	ctx := context.Background()

	id, err := p.Ingest(ctx, Input{Title: "t", Content: "c"})
	require.NoError(t, err)
	assert.Equal(t, 1, changes)

	require.NoError(t, p.Delete(ctx, id))
	assert.Equal(t, 2, changes)

	// Failed writes must not fire invalidation.
	require.ErrorIs(t, p.Delete(ctx, id), docstore.ErrNotFound)
	assert.Equal(t, 2, changes)
}
