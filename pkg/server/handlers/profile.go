package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/anamnesis"
	"github.com/soundprediction/anamnesis/pkg/server/dto"
	"github.com/soundprediction/anamnesis/pkg/types"
)

// ProfileHandler answers queries against a user's graph.
type ProfileHandler struct {
	engine anamnesis.Engine
}

// NewProfileHandler creates a profile handler over the engine.
func NewProfileHandler(engine anamnesis.Engine) *ProfileHandler {
	return &ProfileHandler{engine: engine}
}

// Query handles POST /api/v1/profile/query.
func (h *ProfileHandler) Query(c *gin.Context) {
	var req dto.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	results, err := h.engine.Search(c.Request.Context(), req.UserID, req.Query, &types.SearchConfig{Limit: req.Limit})
	if err != nil {
		writeError(c, err)
		return
	}
	facts := factResults(results)
	c.JSON(http.StatusOK, dto.QueryResponse{Facts: facts, Total: len(facts)})
}

// CenterNodeQuery handles POST /api/v1/profile/center-node.
func (h *ProfileHandler) CenterNodeQuery(c *gin.Context) {
	var req dto.CenterNodeQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	cfg := &types.SearchConfig{Limit: req.Limit, CenterDepth: req.Depth}
	results, err := h.engine.CenterNodeSearch(c.Request.Context(), req.UserID, req.CenterNodeID, req.Query, cfg)
	if err != nil {
		writeError(c, err)
		return
	}
	facts := factResults(results)
	c.JSON(http.StatusOK, dto.QueryResponse{Facts: facts, Total: len(facts)})
}
