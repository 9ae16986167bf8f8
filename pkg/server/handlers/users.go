package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/anamnesis"
	"github.com/soundprediction/anamnesis/pkg/server/dto"
)

// UserHandler manages user lifecycle. Each user is their own tenant:
// the user id doubles as the tenant id, giving per-user isolation.
type UserHandler struct {
	engine anamnesis.Engine
}

// NewUserHandler creates a user handler over the engine.
func NewUserHandler(engine anamnesis.Engine) *UserHandler {
	return &UserHandler{engine: engine}
}

// Create handles POST /api/v1/users.
func (h *UserHandler) Create(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	node, err := h.engine.EnsureUser(c.Request.Context(), req.UserID, req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"user_id": req.UserID,
		"node_id": node.ID,
		"summary": node.Summary,
	})
}

// Delete handles DELETE /api/v1/users/:user_id. Removal is wholesale:
// every node, edge, and episode under the user's tenant goes at once.
func (h *UserHandler) Delete(c *gin.Context) {
	userID := c.Param("user_id")

	stats, err := h.engine.DeleteTenant(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DeleteUserResponse{
		Status:          "deleted",
		NodesDeleted:    stats.Nodes,
		EdgesDeleted:    stats.Edges,
		EpisodesDeleted: stats.Episodes,
	})
}
