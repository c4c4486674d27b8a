package main

import (
	"context"

	"go.uber.org/zap"

	"freelancehub/config"
	"freelancehub/internal/api"
	"freelancehub/internal/db"
	"freelancehub/internal/gateway"
	"freelancehub/internal/httpserver"
	"freelancehub/internal/repository"
	"freelancehub/internal/service"
	"freelancehub/pkg/logger"
	"freelancehub/pkg/mq"
	"freelancehub/pkg/outbox"
)

func main() {
	// Load config
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Init RabbitMQ publisher, used by the outbox dispatcher.
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Init Repositories
	userRepo := repository.NewUserRepository(dbConn)
	projectRepo := repository.NewProjectRepository(dbConn, log)
	milestoneRepo := repository.NewMilestoneRepository(dbConn, log)
	deliverableRepo := repository.NewDeliverableRepository(dbConn, log)
	invoiceRepo := repository.NewInvoiceRepository(dbConn, log)
	paymentRepo := repository.NewPaymentRepository(dbConn, log)
	disputeRepo := repository.NewDisputeRepository(dbConn, log)
	applicationRepo := repository.NewApplicationRepository(dbConn, log)
	reviewRepo := repository.NewReviewRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	outboxRepo := outbox.NewRepository(dbConn)

	// Init payment gateway client
	paymentGateway := gateway.NewPaymentGateway(cfg.Gateway, log)

	// Init Services
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, log)
	projectService := service.NewProjectService(dbConn, projectRepo, milestoneRepo, outboxRepo, log)
	applicationService := service.NewApplicationService(dbConn, projectRepo, applicationRepo, outboxRepo, log)
	milestoneService := service.NewMilestoneService(dbConn, projectRepo, milestoneRepo, outboxRepo, log)
	deliverableService := service.NewDeliverableService(dbConn, projectRepo, milestoneRepo, deliverableRepo, outboxRepo, log)
	settlementService := service.NewSettlementService(dbConn, projectRepo, milestoneRepo, invoiceRepo, paymentRepo, paymentGateway, outboxRepo, log)
	disputeService := service.NewDisputeService(dbConn, projectRepo, milestoneRepo, disputeRepo, invoiceRepo, outboxRepo, log)
	reviewService := service.NewReviewService(projectRepo, reviewRepo, log)
	notificationService := service.NewNotificationService(notificationRepo)
	replayService := outbox.NewReplayService(outboxRepo, publisher)

	// Start the outbox dispatcher alongside the API so committed events
	// reach the broker without a separate process.
	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, log)
	dispatcherCtx, stopDispatcher := context.WithCancel(context.Background())
	defer stopDispatcher()
	go dispatcher.Start(dispatcherCtx)

	// Init Handlers
	authHandler := api.NewAuthHandler(authService)
	projectHandler := api.NewProjectHandler(projectService, applicationService)
	milestoneHandler := api.NewMilestoneHandler(milestoneService, deliverableService)
	settlementHandler := api.NewSettlementHandler(settlementService)
	disputeHandler := api.NewDisputeHandler(disputeService)
	reviewHandler := api.NewReviewHandler(reviewService)
	notificationHandler := api.NewNotificationHandler(notificationService)
	adminHandler := api.NewAdminHandler(replayService)

	// Router
	router := httpserver.NewRouter(
		authHandler,
		projectHandler,
		milestoneHandler,
		settlementHandler,
		disputeHandler,
		reviewHandler,
		notificationHandler,
		adminHandler,
		cfg.JWT.Secret,
		cfg.Gateway.WebhookSecret,
	)

	// Start API server
	if err := router.Run(cfg.Server.Port); err != nil {
		log.Fatal("server start failed", zap.Error(err))
	}
}
