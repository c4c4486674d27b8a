package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"freelancehub/internal/model"
	"freelancehub/internal/service"
)

type MilestoneHandler struct {
	milestoneService   *service.MilestoneService
	deliverableService *service.DeliverableService
}

func NewMilestoneHandler(milestoneService *service.MilestoneService, deliverableService *service.DeliverableService) *MilestoneHandler {
	return &MilestoneHandler{
		milestoneService:   milestoneService,
		deliverableService: deliverableService,
	}
}

// Create handles POST /projects/:id/milestones
func (h *MilestoneHandler) Create(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Amount      string `json:"amount"`
		DueDate     string `json:"due_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	amount, err := model.ParseMoney(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}
	var dueDate *time.Time
	if req.DueDate != "" {
		t, err := time.Parse(time.RFC3339, req.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid due_date"})
			return
		}
		dueDate = &t
	}

	milestone, err := h.milestoneService.Create(c.Request.Context(), actor, projectID, service.CreateMilestoneInput{
		Title:       req.Title,
		Description: req.Description,
		Amount:      amount,
		DueDate:     dueDate,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, milestone)
}

// Get handles GET /milestones/:id
func (h *MilestoneHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	milestone, err := h.milestoneService.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, milestone)
}

// AmendAmount handles PATCH /milestones/:id/amount
func (h *MilestoneHandler) AmendAmount(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Amount string `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	amount, err := model.ParseMoney(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	milestone, err := h.milestoneService.AmendAmount(c.Request.Context(), actor, id, amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, milestone)
}

// Submit handles POST /milestones/:id/submit
func (h *MilestoneHandler) Submit(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	milestone, err := h.milestoneService.Submit(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, milestone)
}

// PostDeliverable handles POST /milestones/:id/deliverables
func (h *MilestoneHandler) PostDeliverable(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Link string `json:"link"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	deliverable, err := h.deliverableService.Post(c.Request.Context(), actor, id, req.Link)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, deliverable)
}

// ListDeliverables handles GET /milestones/:id/deliverables
func (h *MilestoneHandler) ListDeliverables(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	deliverables, err := h.deliverableService.ListByMilestone(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deliverables": deliverables})
}

// Review handles POST /milestones/:id/review
func (h *MilestoneHandler) Review(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Accept   bool   `json:"accept"`
		Feedback string `json:"feedback"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	milestone, err := h.deliverableService.Review(c.Request.Context(), actor, id, req.Accept, req.Feedback)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, milestone)
}
