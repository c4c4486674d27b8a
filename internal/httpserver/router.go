package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"freelancehub/internal/api"
	"freelancehub/pkg/rbac"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	authHandler *api.AuthHandler,
	projectHandler *api.ProjectHandler,
	milestoneHandler *api.MilestoneHandler,
	settlementHandler *api.SettlementHandler,
	disputeHandler *api.DisputeHandler,
	reviewHandler *api.ReviewHandler,
	notificationHandler *api.NotificationHandler,
	adminHandler *api.AdminHandler,
	jwtSecret string,
	webhookSecret string,
) *Router {
	r := gin.Default()
	r.Use(TraceMiddleware(), MetricsMiddleware())

	// Public
	r.POST("/register", authHandler.Register)
	r.POST("/login", authHandler.Login)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Gateway callbacks, authenticated by shared secret.
	webhooks := r.Group("/webhooks")
	webhooks.Use(WebhookAuthMiddleware(webhookSecret))
	{
		webhooks.POST("/payments", settlementHandler.ConfirmWebhook)
	}

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.POST("/projects", RequirePermission(rbac.PermissionCreateProject), projectHandler.Create)
		auth.GET("/projects", projectHandler.List)
		auth.GET("/projects/:id", projectHandler.Get)
		auth.POST("/projects/:id/publish", RequirePermission(rbac.PermissionManageProject), projectHandler.Publish)
		auth.POST("/projects/:id/cancel", RequirePermission(rbac.PermissionManageProject), projectHandler.Cancel)
		auth.POST("/projects/:id/applications", RequirePermission(rbac.PermissionApplyToProject), projectHandler.Apply)
		auth.GET("/projects/:id/applications", projectHandler.ListApplications)
		auth.POST("/projects/:id/hire", RequirePermission(rbac.PermissionManageProject), projectHandler.Hire)
		auth.POST("/projects/:id/milestones", RequirePermission(rbac.PermissionManageProject), milestoneHandler.Create)
		auth.GET("/projects/:id/milestones", projectHandler.ListMilestones)
		auth.POST("/projects/:id/reviews", RequirePermission(rbac.PermissionCreateReview), reviewHandler.Create)
		auth.GET("/projects/:id/reviews", reviewHandler.List)

		auth.GET("/milestones/:id", milestoneHandler.Get)
		auth.PATCH("/milestones/:id/amount", milestoneHandler.AmendAmount)
		auth.POST("/milestones/:id/submit", RequirePermission(rbac.PermissionSubmitWork), milestoneHandler.Submit)
		auth.POST("/milestones/:id/deliverables", RequirePermission(rbac.PermissionSubmitWork), milestoneHandler.PostDeliverable)
		auth.GET("/milestones/:id/deliverables", milestoneHandler.ListDeliverables)
		auth.POST("/milestones/:id/review", RequirePermission(rbac.PermissionReviewWork), milestoneHandler.Review)
		auth.POST("/milestones/:id/invoice", RequirePermission(rbac.PermissionGenerateInvoice), settlementHandler.GenerateInvoice)
		auth.POST("/milestones/:id/disputes", RequirePermission(rbac.PermissionOpenDispute), disputeHandler.Open)

		auth.GET("/invoices/:id", settlementHandler.GetInvoice)
		auth.POST("/invoices/:id/pay", RequirePermission(rbac.PermissionPayInvoice), settlementHandler.InitiatePayment)
		auth.GET("/payments/:id", settlementHandler.GetPayment)

		auth.GET("/disputes/:id", disputeHandler.Get)
		auth.POST("/disputes/:id/resolve", RequirePermission(rbac.PermissionResolveDispute), disputeHandler.Resolve)

		auth.GET("/notifications", notificationHandler.List)
		auth.POST("/notifications/:id/read", notificationHandler.MarkRead)

		admin := auth.Group("/admin")
		admin.Use(RequirePermission(rbac.PermissionReplayOutbox))
		{
			admin.POST("/outbox/:id/replay", adminHandler.ReplayEvent)
			admin.POST("/outbox/replay-failed", adminHandler.ReplayFailed)
		}
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
