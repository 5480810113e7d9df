package embeddings

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider returns fixed vectors for testing.
type stubProvider struct {
	dimension int
	vec       []float32
	closed    bool
}

func (s *stubProvider) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vec
	}
	return out, nil
}

func (s *stubProvider) EmbedQuery(context.Context, string) ([]float32, error) {
	return s.vec, nil
}

func (s *stubProvider) Dimension() int { return s.dimension }
func (s *stubProvider) Close() error   { s.closed = true; return nil }

func TestLazyProvider_InitializesOnce(t *testing.T) {
	var inits atomic.Int32
	lazy := NewLazyProvider(func() (Provider, error) {
		inits.Add(1)
		return &stubProvider{dimension: 3, vec: []float32{1, 0, 0}}, nil
	}, 3)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := lazy.EmbedQuery(context.Background(), "hello")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), inits.Load(), "model must load exactly once")
}

func TestLazyProvider_InitFailureIsSticky(t *testing.T) {
	var inits atomic.Int32
	lazy := NewLazyProvider(func() (Provider, error) {
		inits.Add(1)
		return nil, errors.New("onnx session failed")
	}, 3)

	for i := 0; i < 3; i++ {
		_, err := lazy.EmbedQuery(context.Background(), "hello")
		require.ErrorIs(t, err, ErrModelUnavailable)
	}
	assert.Equal(t, int32(1), inits.Load(), "failed init is not re-attempted")
}

func TestLazyProvider_ValidatesQueryDimension(t *testing.T) {
	lazy := NewLazyProvider(func() (Provider, error) {
		return &stubProvider{dimension: 5, vec: []float32{1, 2, 3, 4, 5}}, nil
	}, 3) // configured dimension disagrees with what the model produces

	_, err := lazy.EmbedQuery(context.Background(), "hello")
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestLazyProvider_ValidatesDocumentDimensions(t *testing.T) {
	lazy := NewLazyProvider(func() (Provider, error) {
		return &stubProvider{dimension: 2, vec: []float32{1, 2}}, nil
	}, 2)

	vecs, err := lazy.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
}

func TestLazyProvider_NormalizesVectors(t *testing.T) {
	lazy := NewLazyProvider(func() (Provider, error) {
		return &stubProvider{dimension: 2, vec: []float32{3, 4}}, nil
	}, 2)

	vec, err := lazy.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, vec[0], 1e-6)
	assert.InDelta(t, 0.8, vec[1], 1e-6)

	vecs, err := lazy.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	for _, v := range vecs {
		var norm float64
		for _, x := range v {
			norm += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, norm, 1e-6, "vectors must leave the provider unit-norm")
	}
}

func TestLazyProvider_CloseWithoutInit(t *testing.T) {
	lazy := NewLazyProvider(func() (Provider, error) {
		t.Fatal("constructor must not run")
		return nil, nil
	}, 3)

	assert.NoError(t, lazy.Close())
}

func TestLazyProvider_CloseReleasesDelegate(t *testing.T) {
	stub := &stubProvider{dimension: 1, vec: []float32{1}}
	lazy := NewLazyProvider(func() (Provider, error) { return stub, nil }, 1)

	_, err := lazy.EmbedQuery(context.Background(), "x")
	require.NoError(t, err)
	require.NoError(t, lazy.Close())
	assert.True(t, stub.closed)
}

func TestNewProvider_UnknownProvider(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Provider: "carrier-pigeon"})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestDetectDimension(t *testing.T) {
	tests := []struct {
		name string
		cfg  ProviderConfig
		want int
	}{
		{"explicit override", ProviderConfig{Model: "BAAI/bge-small-en-v1.5", Dimensions: 1024}, 1024},
		{"known small model", ProviderConfig{Model: "BAAI/bge-small-en-v1.5"}, 384},
		{"known base model", ProviderConfig{Model: "BAAI/bge-base-en-v1.5"}, 768},
		{"large pattern", ProviderConfig{Model: "BAAI/bge-large-en-v1.5"}, 1024},
		{"unknown model", ProviderConfig{Model: "mystery"}, 384},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectDimension(tt.cfg))
		})
	}
}
