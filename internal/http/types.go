package http

import (
	"time"

	"github.com/fathomlabs/fathomd/internal/ingest"
	"github.com/fathomlabs/fathomd/internal/search"
)

// SearchRequest is the request body for POST /api/v1/search. Dates
// accept YYYY-MM-DD or RFC 3339. The flat category and date fields are
// aliases for the nested filters object; the nested form wins when
// both are sent.
type SearchRequest struct {
	Query     string         `json:"query"`
	Page      int            `json:"page"`
	Filters   *SearchFilters `json:"filters"`
	Category  string         `json:"category"`
	DateStart string         `json:"dateStart"`
	DateEnd   string         `json:"dateEnd"`
}

// SearchFilters narrows a search to a category and a creation date
// range.
type SearchFilters struct {
	Category  string     `json:"category"`
	DateRange *DateRange `json:"dateRange"`
}

// DateRange bounds results by document creation date, inclusive.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// SearchResponse is the envelope for POST /api/v1/search, success and
// failure alike. Results is always present, never null.
type SearchResponse struct {
	Success  bool            `json:"success"`
	Error    string          `json:"error,omitempty"`
	Results  []search.Result `json:"results"`
	Metadata search.Metadata `json:"metadata"`
}

// IngestResponse is the response body for POST /api/v1/documents.
type IngestResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// IngestBatchRequest is the request body for POST /api/v1/documents/batch.
type IngestBatchRequest struct {
	Documents []ingest.Input `json:"documents"`
}

// IngestBatchResponse is the response body for POST /api/v1/documents/batch.
type IngestBatchResponse struct {
	Success bool     `json:"success"`
	IDs     []string `json:"ids"`
}

// DocumentResponse is the response body for GET /api/v1/documents/:id.
type DocumentResponse struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	Description  string         `json:"description,omitempty"`
	Category     string         `json:"category,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	SourceURL    string         `json:"sourceUrl,omitempty"`
	ThumbnailURL string         `json:"thumbnailUrl,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Embedded     bool           `json:"embedded"`
}

// DeleteResponse is the response body for DELETE /api/v1/documents/:id.
type DeleteResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse is the generic failure envelope for document endpoints.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
