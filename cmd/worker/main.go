package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"freelancehub/config"
	"freelancehub/internal/db"
	"freelancehub/internal/gateway"
	"freelancehub/internal/mqhandler"
	redisclient "freelancehub/internal/redis"
	"freelancehub/internal/repository"
	"freelancehub/internal/service"
	"freelancehub/pkg/logger"
	"freelancehub/pkg/mq"
	"freelancehub/pkg/outbox"
	"freelancehub/pkg/util"
)

func main() {
	// Load config
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting worker service...")

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Init Redis
	rdb := redisclient.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	deduper := util.NewDeduperWithLogger(rdb, time.Hour, log)
	retryCounter := util.NewRetryCounter(rdb, time.Hour)

	// Publisher for DLQ routing from the handler.
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Init Repositories
	projectRepo := repository.NewProjectRepository(dbConn, log)
	milestoneRepo := repository.NewMilestoneRepository(dbConn, log)
	invoiceRepo := repository.NewInvoiceRepository(dbConn, log)
	paymentRepo := repository.NewPaymentRepository(dbConn, log)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	outboxRepo := outbox.NewRepository(dbConn)

	// Notification consumer over the whole engagement event stream.
	notifyHandler := mqhandler.NewEngagementNotificationHandler(
		notificationRepo, deduper, retryCounter, publisher, log,
	)

	log.Info("Initializing notification consumer", zap.String("queue", "engagement.notify.q"))
	consumer, err := mq.NewConsumer(cfg.MQ.URL, "engagement.notify.q", "#", log)
	if err != nil {
		log.Fatal("failed to init notification consumer", zap.Error(err))
	}
	consumer.SetHandler(notifyHandler.Handle)
	go func() {
		log.Info("Starting notification consumer")
		if err := consumer.StartConsuming(); err != nil {
			log.Fatal("notification consumer failed", zap.Error(err))
		}
	}()
	defer consumer.Close()

	// Settlement sweeps share the service with the API, minus the gateway
	// client, which the sweeps never call.
	paymentGateway := gateway.NewPaymentGateway(cfg.Gateway, log)
	settlementService := service.NewSettlementService(
		dbConn, projectRepo, milestoneRepo, invoiceRepo, paymentRepo,
		paymentGateway, outboxRepo, log,
	)

	go runSweeps(context.Background(), cfg, settlementService, log)

	log.Info("Worker is ready to process messages")

	// Keep worker running
	select {}
}

func runSweeps(ctx context.Context, cfg *config.Config, settlement *service.SettlementService, log *zap.Logger) {
	ticker := time.NewTicker(cfg.Worker.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := settlement.SweepStalePayments(ctx, cfg.Worker.PaymentPendingMax); err != nil {
				log.Error("Stale payment sweep failed", zap.Error(err))
			} else if n > 0 {
				log.Info("Stale payment sweep done", zap.Int("failed", n))
			}

			if n, err := settlement.SweepOverdueInvoices(ctx); err != nil {
				log.Error("Overdue invoice sweep failed", zap.Error(err))
			} else if n > 0 {
				log.Info("Overdue invoice sweep done", zap.Int("overdue", n))
			}
		}
	}
}
