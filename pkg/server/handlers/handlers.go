// Package handlers implements the HTTP endpoints over the engine.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/anamnesis/pkg/oracle"
	"github.com/soundprediction/anamnesis/pkg/server/dto"
	"github.com/soundprediction/anamnesis/pkg/types"
)

// writeError maps engine errors onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, types.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "not_found", Message: err.Error()})
	case errors.Is(err, types.ErrInvalidArgument),
		errors.Is(err, types.ErrEmptyTenantID),
		errors.Is(err, types.ErrEmptyContent),
		errors.Is(err, types.ErrEmptyName):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
	case errors.Is(err, types.ErrConflict):
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: "conflict", Message: err.Error()})
	case errors.Is(err, types.ErrExtractionFailed):
		c.JSON(http.StatusBadGateway, dto.ErrorResponse{Error: "extraction_failed", Message: err.Error()})
	case oracle.IsTransient(err):
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "upstream_unavailable", Message: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal", Message: err.Error()})
	}
}

func factResults(results []types.SearchResult) []dto.FactResult {
	facts := make([]dto.FactResult, 0, len(results))
	for _, r := range results {
		id := r.EdgeID
		if id == "" {
			id = r.NodeID
		}
		fact := dto.FactResult{
			UUID:      id,
			Fact:      r.Fact,
			Score:     r.Score,
			InvalidAt: r.ValidUntil,
		}
		if !r.ValidFrom.IsZero() {
			validAt := r.ValidFrom
			fact.ValidAt = &validAt
		}
		facts = append(facts, fact)
	}
	return facts
}
