// Package embeddings provides embedding generation via multiple providers.
//
// A Provider turns text into fixed-dimension unit-norm vectors. Two
// implementations exist: FastEmbedProvider runs a local ONNX model,
// HFProvider calls the HuggingFace Inference API. Both are wrapped in a
// LazyProvider so the model loads exactly once, on first use.
package embeddings

import (
	"context"
	"fmt"
	"strings"
)

// Provider is the interface for embedding providers.
type Provider interface {
	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	// Some models optimize differently for queries vs documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding dimension for the current model.
	Dimension() int

	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is the provider type: "fastembed" (local) or "hf" (remote).
	Provider string
	// Model is the embedding model name.
	Model string
	// BaseURL is the inference API base URL (remote provider only).
	BaseURL string
	// APIKey is the inference API credential (remote provider only).
	APIKey string
	// CacheDir is the model cache directory (local provider only).
	CacheDir string
	// Dimensions overrides the model dimension when non-zero. All stored
	// documents and query vectors must share this dimension.
	Dimensions int
}

// NewProvider creates an embedding provider based on the configuration.
// The returned provider initializes its model lazily on first call.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	dim := detectDimension(cfg)
	switch cfg.Provider {
	case "fastembed", "":
		return NewLazyProvider(func() (Provider, error) {
			return NewFastEmbedProvider(FastEmbedConfig{
				Model:    cfg.Model,
				CacheDir: cfg.CacheDir,
			})
		}, dim), nil
	case "hf":
		return NewLazyProvider(func() (Provider, error) {
			return NewHFProvider(HFConfig{
				Model:      cfg.Model,
				BaseURL:    cfg.BaseURL,
				APIKey:     cfg.APIKey,
				Dimensions: dim,
			})
		}, dim), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// detectDimension resolves the configured dimension, falling back to the
// model's known dimension.
func detectDimension(cfg ProviderConfig) int {
	if cfg.Dimensions > 0 {
		return cfg.Dimensions
	}
	if dim, ok := fastEmbedModelDimension(cfg.Model); ok {
		return dim
	}
	// Common model naming patterns.
	switch {
	case strings.Contains(cfg.Model, "large"):
		return 1024
	case strings.Contains(cfg.Model, "base"):
		return 768
	default:
		return 384
	}
}

// validateDimension checks a produced vector against the expected
// dimension. A mismatch is an invariant violation, not a recoverable
// condition.
func validateDimension(vec []float32, want int) error {
	if len(vec) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), want)
	}
	return nil
}
