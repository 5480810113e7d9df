package search

import "errors"

// Error taxonomy for the search pipeline. The HTTP layer maps these to
// status codes; everything else wraps one of them.
var (
	// ErrInvalidQuery indicates empty or malformed input. Recovered at
	// the boundary, never retried.
	ErrInvalidQuery = errors.New("invalid search query")

	// ErrEmbeddingFailed indicates the provider could not produce a
	// query vector. Model failures are not transient, so this is never
	// retried automatically.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrStoreUnavailable indicates the document store stayed
	// unreachable after bounded retries.
	ErrStoreUnavailable = errors.New("document store unavailable")

	// ErrDimensionMismatch indicates an embedding dimension invariant
	// violation. Always a bug signal: the request aborts and the error
	// is logged loudly, never coerced.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrTimeout indicates the request exceeded its time budget. Kept
	// distinct from ErrStoreUnavailable so callers can tell "slow" from
	// "down".
	ErrTimeout = errors.New("search timed out")
)
