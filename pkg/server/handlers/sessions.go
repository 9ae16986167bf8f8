package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/anamnesis"
	"github.com/soundprediction/anamnesis/pkg/server/dto"
)

// SessionHandler ingests and lists session episodes.
type SessionHandler struct {
	engine anamnesis.Engine
}

// NewSessionHandler creates a session handler over the engine.
func NewSessionHandler(engine anamnesis.Engine) *SessionHandler {
	return &SessionHandler{engine: engine}
}

// Create handles POST /api/v1/sessions.
func (h *SessionHandler) Create(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	reference := time.Now().UTC()
	if req.Timestamp != nil {
		reference = *req.Timestamp
	}

	episode, err := h.engine.IngestEpisode(c.Request.Context(), req.UserID, req.UserID, req.Text, reference)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.SessionResponse{
		ID:            episode.ID,
		UserID:        episode.UserID,
		SessionNumber: episode.SessionNumber,
		Name:          episode.Name,
		CreatedAt:     episode.CreatedAt,
	})
}

// List handles GET /api/v1/sessions/:user_id.
func (h *SessionHandler) List(c *gin.Context) {
	userID := c.Param("user_id")
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: "limit must be an integer"})
			return
		}
		limit = parsed
	}

	episodes, err := h.engine.GetUserEpisodes(c.Request.Context(), userID, userID, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	sessions := make([]dto.SessionResponse, 0, len(episodes))
	for _, ep := range episodes {
		sessions = append(sessions, dto.SessionResponse{
			ID:            ep.ID,
			UserID:        ep.UserID,
			SessionNumber: ep.SessionNumber,
			Name:          ep.Name,
			CreatedAt:     ep.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "sessions": sessions, "total": len(sessions)})
}
