package embeddings

import "errors"

// Sentinel errors for embedding operations. Callers match with errors.Is.
var (
	// ErrEmptyInput indicates the text to embed was empty or blank.
	ErrEmptyInput = errors.New("input text is empty")

	// ErrInvalidConfig indicates the provider configuration is unusable.
	ErrInvalidConfig = errors.New("invalid embeddings config")

	// ErrModelUnavailable indicates the model failed to load or the
	// inference endpoint could not be reached.
	ErrModelUnavailable = errors.New("embedding model unavailable")

	// ErrDimensionMismatch indicates a produced vector does not match the
	// configured dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
