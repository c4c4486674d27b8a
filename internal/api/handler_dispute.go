package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"freelancehub/internal/service"
)

type DisputeHandler struct {
	disputeService *service.DisputeService
}

func NewDisputeHandler(disputeService *service.DisputeService) *DisputeHandler {
	return &DisputeHandler{
		disputeService: disputeService,
	}
}

// Open handles POST /milestones/:id/disputes
func (h *DisputeHandler) Open(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	milestoneID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	dispute, err := h.disputeService.Open(c.Request.Context(), actor, milestoneID, req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dispute)
}

// Get handles GET /disputes/:id
func (h *DisputeHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	dispute, err := h.disputeService.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dispute)
}

// Resolve handles POST /disputes/:id/resolve
func (h *DisputeHandler) Resolve(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Resolution string `json:"resolution"`
		Outcome    string `json:"outcome"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	dispute, err := h.disputeService.Resolve(c.Request.Context(), actor, id, req.Resolution, req.Outcome)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dispute)
}
