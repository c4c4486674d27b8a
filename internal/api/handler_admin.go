package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"freelancehub/pkg/outbox"
)

// AdminHandler exposes operational endpoints, currently outbox replay.
// Access is restricted to admins by the router's permission middleware.
type AdminHandler struct {
	replay *outbox.ReplayService
}

func NewAdminHandler(replay *outbox.ReplayService) *AdminHandler {
	return &AdminHandler{
		replay: replay,
	}
}

// ReplayEvent handles POST /admin/outbox/:id/replay
func (h *AdminHandler) ReplayEvent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	if err := h.replay.ReplayEvent(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "replayed", "event_id": id})
}

// ReplayFailed handles POST /admin/outbox/replay-failed
func (h *AdminHandler) ReplayFailed(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	count, err := h.replay.ReplayFailedEvents(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"replayed": count})
}
