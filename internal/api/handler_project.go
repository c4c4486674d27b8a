package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"freelancehub/internal/model"
	"freelancehub/internal/service"
)

type ProjectHandler struct {
	projectService     *service.ProjectService
	applicationService *service.ApplicationService
}

func NewProjectHandler(projectService *service.ProjectService, applicationService *service.ApplicationService) *ProjectHandler {
	return &ProjectHandler{
		projectService:     projectService,
		applicationService: applicationService,
	}
}

// Create handles POST /projects
func (h *ProjectHandler) Create(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Budget      string `json:"budget"`
		Deadline    string `json:"deadline"`
		Category    string `json:"category"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	budget, err := model.ParseMoney(req.Budget)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid budget"})
		return
	}
	deadline, err := parseDeadline(req.Deadline)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid deadline"})
		return
	}

	in := service.CreateProjectInput{
		Title:       req.Title,
		Description: req.Description,
		Budget:      budget,
		Deadline:    deadline,
		Category:    req.Category,
	}
	project, err := h.projectService.Create(c.Request.Context(), actor, in)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, project)
}

// Publish handles POST /projects/:id/publish
func (h *ProjectHandler) Publish(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	project, err := h.projectService.Publish(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// Cancel handles POST /projects/:id/cancel
func (h *ProjectHandler) Cancel(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	project, err := h.projectService.Cancel(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// Get handles GET /projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	project, err := h.projectService.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// List handles GET /projects (the caller's own projects)
func (h *ProjectHandler) List(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	projects, err := h.projectService.ListByClient(c.Request.Context(), actor.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// ListMilestones handles GET /projects/:id/milestones
func (h *ProjectHandler) ListMilestones(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	milestones, err := h.projectService.ListMilestones(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"milestones": milestones})
}

// Apply handles POST /projects/:id/applications
func (h *ProjectHandler) Apply(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Proposal  string `json:"proposal"`
		BidAmount string `json:"bid_amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	bid, err := model.ParseMoney(req.BidAmount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bid_amount"})
		return
	}

	application, err := h.applicationService.Apply(c.Request.Context(), actor, id, req.Proposal, bid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, application)
}

// ListApplications handles GET /projects/:id/applications
func (h *ProjectHandler) ListApplications(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	applications, err := h.applicationService.ListByProject(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": applications})
}

// Hire handles POST /projects/:id/hire
func (h *ProjectHandler) Hire(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req struct {
		ApplicationID int `json:"application_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ApplicationID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	project, err := h.applicationService.Hire(c.Request.Context(), actor, id, req.ApplicationID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// parseDeadline is tolerant of a missing deadline.
func parseDeadline(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
