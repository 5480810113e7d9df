package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultHFBaseURL = "https://api-inference.huggingface.co"

// HFConfig holds configuration for the HuggingFace Inference API provider.
type HFConfig struct {
	// Model is the feature-extraction model, e.g.
	// sentence-transformers/all-MiniLM-L6-v2 or BAAI/bge-large-en-v1.5.
	Model string

	// BaseURL is the inference API base URL. Defaults to the public
	// HuggingFace endpoint; point it at a self-hosted TEI instance to
	// keep inference local.
	BaseURL string

	// APIKey is the bearer token. Optional for self-hosted endpoints.
	APIKey string

	// Dimensions is the expected vector dimension.
	Dimensions int

	// Timeout bounds a single inference round trip. Defaults to 30s.
	Timeout time.Duration
}

// HFProvider generates embeddings via a remote feature-extraction
// endpoint. The endpoint applies mean pooling; unit normalization is
// not trusted from the server and happens in the lazy wrapper.
type HFProvider struct {
	config HFConfig
	client *http.Client
}

// NewHFProvider creates a new remote embedding provider.
func NewHFProvider(cfg HFConfig) (*HFProvider, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultHFBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &HFProvider{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// hfRequest is the request body for the feature-extraction endpoint.
type hfRequest struct {
	Inputs  interface{}    `json:"inputs"`
	Options map[string]any `json:"options,omitempty"`
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *HFProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: text %d is blank", ErrEmptyInput, i)
		}
	}

	body, err := p.post(ctx, texts)
	if err != nil {
		return nil, err
	}

	var vectors [][]float32
	if err := json.Unmarshal(body, &vectors); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrModelUnavailable, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrModelUnavailable, len(vectors), len(texts))
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *HFProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	body, err := p.post(ctx, text)
	if err != nil {
		return nil, err
	}

	// The endpoint returns a flat vector for a single input; some
	// deployments wrap it in a single-element batch.
	var vector []float32
	if err := json.Unmarshal(body, &vector); err == nil {
		return vector, nil
	}
	var vectors [][]float32
	if err := json.Unmarshal(body, &vectors); err != nil || len(vectors) == 0 {
		return nil, fmt.Errorf("%w: unexpected response shape", ErrModelUnavailable)
	}
	return vectors[0], nil
}

// post issues the inference request and returns the raw response body.
func (p *HFProvider) post(ctx context.Context, inputs interface{}) ([]byte, error) {
	req := hfRequest{
		Inputs:  inputs,
		Options: map[string]any{"wait_for_model": true},
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/pipeline/feature-extraction/%s", p.config.BaseURL, p.config.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrModelUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrModelUnavailable, resp.StatusCode, string(body))
	}
	return body, nil
}

// Dimension returns the configured embedding dimension.
func (p *HFProvider) Dimension() int {
	return p.config.Dimensions
}

// Close is a no-op for the HTTP provider.
func (p *HFProvider) Close() error {
	return nil
}
