package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fathomlabs/fathomd/internal/docstore"
	"github.com/fathomlabs/fathomd/internal/ingest"
	"github.com/fathomlabs/fathomd/internal/search"
)

// handleSearch runs a search query. Failures keep the envelope shape:
// success false, an error message, an empty result list and zeroed
// metadata, so clients never special-case the body.
func (s *Server) handleSearch(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid search request body", zap.Error(err))
		return searchFailure(c, http.StatusBadRequest, "invalid request body")
	}

	filters, err := parseFilters(req)
	if err != nil {
		return searchFailure(c, http.StatusBadRequest, err.Error())
	}

	resp, err := s.engine.Search(c.Request().Context(), search.Request{
		Query:   req.Query,
		Page:    req.Page,
		Filters: filters,
	})
	if err != nil {
		status := searchStatus(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("search failed", zap.Error(err))
		} else {
			s.logger.Warn("search rejected", zap.Int("status", status), zap.Error(err))
		}
		return searchFailure(c, status, err.Error())
	}

	results := resp.Results
	if results == nil {
		results = []search.Result{}
	}
	return c.JSON(http.StatusOK, SearchResponse{
		Success:  true,
		Results:  results,
		Metadata: resp.Metadata,
	})
}

// searchStatus maps engine errors to HTTP status codes.
func searchStatus(err error) int {
	switch {
	case errors.Is(err, search.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, search.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		// Embedding, store and dimension failures are all server-side.
		return http.StatusInternalServerError
	}
}

func searchFailure(c echo.Context, status int, message string) error {
	return c.JSON(status, SearchResponse{
		Success: false,
		Error:   message,
		Results: []search.Result{},
		Metadata: search.Metadata{
			QueryTime: "0ms",
		},
	})
}

// parseFilters merges the nested filters object with the flat aliases
// and validates the dates.
func parseFilters(req SearchRequest) (docstore.Filters, error) {
	category, dateStart, dateEnd := req.Category, req.DateStart, req.DateEnd
	if req.Filters != nil {
		if req.Filters.Category != "" {
			category = req.Filters.Category
		}
		if dr := req.Filters.DateRange; dr != nil {
			if dr.Start != "" {
				dateStart = dr.Start
			}
			if dr.End != "" {
				dateEnd = dr.End
			}
		}
	}

	f := docstore.Filters{Category: category}

	var err error
	if f.DateStart, err = parseDate(dateStart); err != nil {
		return f, fmt.Errorf("invalid dateStart: %q", dateStart)
	}
	if f.DateEnd, err = parseDate(dateEnd); err != nil {
		return f, fmt.Errorf("invalid dateEnd: %q", dateEnd)
	}
	if !f.DateStart.IsZero() && !f.DateEnd.IsZero() && f.DateEnd.Before(f.DateStart) {
		return f, fmt.Errorf("dateEnd precedes dateStart")
	}
	return f, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// handleIngest stores a single document.
func (s *Server) handleIngest(c echo.Context) error {
	var in ingest.Input
	if err := c.Bind(&in); err != nil {
		s.logger.Warn("invalid ingest request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	id, err := s.pipeline.Ingest(c.Request().Context(), in)
	if err != nil {
		return s.documentError(c, err)
	}
	return c.JSON(http.StatusCreated, IngestResponse{Success: true, ID: id})
}

// handleIngestBatch stores several documents with one embedding pass.
func (s *Server) handleIngestBatch(c echo.Context) error {
	var req IngestBatchRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid batch ingest request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if len(req.Documents) == 0 {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "documents field is required"})
	}

	ids, err := s.pipeline.IngestBatch(c.Request().Context(), req.Documents)
	if err != nil {
		return s.documentError(c, err)
	}
	return c.JSON(http.StatusCreated, IngestBatchResponse{Success: true, IDs: ids})
}

// handleGetDocument returns a stored document. The embedding itself
// never leaves the server; only its presence does.
func (s *Server) handleGetDocument(c echo.Context) error {
	doc, err := s.store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.documentError(c, err)
	}

	return c.JSON(http.StatusOK, DocumentResponse{
		ID:           doc.ID,
		Title:        doc.Title,
		Content:      doc.Content,
		Description:  doc.Description,
		Category:     doc.Category,
		CreatedAt:    doc.CreatedAt,
		SourceURL:    doc.SourceURL,
		ThumbnailURL: doc.ThumbnailURL,
		Metadata:     doc.Metadata,
		Embedded:     len(doc.Embedding) > 0,
	})
}

// handleDeleteDocument removes a document.
func (s *Server) handleDeleteDocument(c echo.Context) error {
	if err := s.pipeline.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return s.documentError(c, err)
	}
	return c.JSON(http.StatusOK, DeleteResponse{Success: true})
}

// documentError maps store errors to HTTP responses.
func (s *Server) documentError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "document not found"})
	case errors.Is(err, docstore.ErrInvalidDocument), errors.Is(err, docstore.ErrDimensionMismatch):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		s.logger.Error("document operation failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
