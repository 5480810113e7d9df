package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHFProvider_EmbedQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/pipeline/feature-extraction/test-model", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req hfRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello world", req.Inputs)

		_ = json.NewEncoder(w).Encode([]float32{0.1, 0.2, 0.3})
	}))
	defer srv.Close()

	p, err := NewHFProvider(HFConfig{
		Model:      "test-model",
		BaseURL:    srv.URL,
		APIKey:     "secret",
		Dimensions: 3,
	})
	require.NoError(t, err)

	vec, err := p.EmbedQuery(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestHFProvider_EmbedQuery_BatchShapedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([][]float32{{0.5, 0.5}})
	}))
	defer srv.Close()

	p, err := NewHFProvider(HFConfig{Model: "m", BaseURL: srv.URL, Dimensions: 2})
	require.NoError(t, err)

	vec, err := p.EmbedQuery(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, vec)
}

func TestHFProvider_EmbedDocuments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([][]float32{{1, 0}, {0, 1}})
	}))
	defer srv.Close()

	p, err := NewHFProvider(HFConfig{Model: "m", BaseURL: srv.URL, Dimensions: 2})
	require.NoError(t, err)

	vecs, err := p.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
}

func TestHFProvider_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, err := NewHFProvider(HFConfig{Model: "m", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.EmbedQuery(context.Background(), "hi")
	require.ErrorIs(t, err, ErrModelUnavailable)
}

func TestHFProvider_EmptyInput(t *testing.T) {
	p, err := NewHFProvider(HFConfig{Model: "m", BaseURL: "http://localhost:1"})
	require.NoError(t, err)

	_, err = p.EmbedQuery(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyInput)

	_, err = p.EmbedDocuments(context.Background(), nil)
	require.ErrorIs(t, err, ErrEmptyInput)

	_, err = p.EmbedDocuments(context.Background(), []string{"ok", " "})
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestNewHFProvider_RequiresModel(t *testing.T) {
	_, err := NewHFProvider(HFConfig{})
	require.ErrorIs(t, err, ErrInvalidConfig)
}
