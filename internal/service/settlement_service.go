package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	contracts "freelancehub/contracts/mq"
	"freelancehub/internal/gateway"
	"freelancehub/internal/model"
	"freelancehub/internal/repository"
	"freelancehub/pkg/logger"
	"freelancehub/pkg/metrics"
	"freelancehub/pkg/outbox"
)

// invoiceDueDays is how long the client has to pay a generated invoice
// before the sweep marks it overdue.
const invoiceDueDays = 14

// SettlementService owns the money path: invoice generation, payment
// initiation against the external gateway, and webhook confirmation. Every
// confirmation is a single transaction over rows locked in the canonical
// order project, milestone, invoice, payment.
type SettlementService struct {
	pool          *pgxpool.Pool
	projectRepo   *repository.ProjectRepository
	milestoneRepo *repository.MilestoneRepository
	invoiceRepo   *repository.InvoiceRepository
	paymentRepo   *repository.PaymentRepository
	gateway       *gateway.PaymentGateway
	outboxRepo    *outbox.Repository
	logger        *zap.Logger
}

func NewSettlementService(
	pool *pgxpool.Pool,
	projectRepo *repository.ProjectRepository,
	milestoneRepo *repository.MilestoneRepository,
	invoiceRepo *repository.InvoiceRepository,
	paymentRepo *repository.PaymentRepository,
	gw *gateway.PaymentGateway,
	outboxRepo *outbox.Repository,
	logger *zap.Logger,
) *SettlementService {
	return &SettlementService{
		pool:          pool,
		projectRepo:   projectRepo,
		milestoneRepo: milestoneRepo,
		invoiceRepo:   invoiceRepo,
		paymentRepo:   paymentRepo,
		gateway:       gw,
		outboxRepo:    outboxRepo,
		logger:        logger,
	}
}

// GenerateInvoice creates the invoice for an approved milestone. Calling
// it again returns the existing invoice unchanged; the unique index on
// milestone_id backs this up against concurrent generation.
func (s *SettlementService) GenerateInvoice(ctx context.Context, actor Actor, milestoneID int) (*model.Invoice, error) {
	var out *model.Invoice
	err := runTx(ctx, s.pool, func(tx pgx.Tx) error {
		m, err := s.milestoneRepo.FindByID(ctx, milestoneID)
		if err != nil {
			return mapStoreErr(err)
		}
		p, err := s.projectRepo.GetForUpdate(ctx, tx, m.ProjectID)
		if err != nil {
			return mapStoreErr(err)
		}
		if err := Authorize(actor, ActionGenerateInvoice, p); err != nil {
			return err
		}
		m, err = s.milestoneRepo.GetForUpdate(ctx, tx, milestoneID)
		if err != nil {
			return mapStoreErr(err)
		}

		existing, err := s.invoiceRepo.FindByMilestoneTx(ctx, tx, milestoneID)
		if err == nil && existing.Status != model.InvoiceVoid {
			metrics.InvoicesGenerated.WithLabelValues("existing").Inc()
			out = existing
			return nil
		}
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}

		if m.Status != model.MilestoneApproved {
			return invalidStatef("invoice requires an approved milestone, milestone is %s", m.Status)
		}

		due := time.Now().AddDate(0, 0, invoiceDueDays)

		// A voided invoice (dispute went the client's way, then the work was
		// approved again) goes back out instead of minting a second row.
		if existing != nil {
			if err := s.invoiceRepo.ReissueTx(ctx, tx, existing.ID, m.Amount, &due); err != nil {
				return err
			}
			existing.Status = model.InvoiceSent
			existing.Amount = m.Amount
			existing.DueDate = &due

			aggID := int64(existing.ID)
			if err := outbox.InsertEventInTx(ctx, tx, s.outboxRepo, "invoice", &aggID,
				contracts.RoutingInvoiceGenerated, invoicePayload(existing, p)); err != nil {
				return err
			}
			metrics.InvoicesGenerated.WithLabelValues("created").Inc()
			out = existing
			return nil
		}

		inv := &model.Invoice{
			MilestoneID:   m.ID,
			ProjectID:     p.ID,
			FreelancerID:  actor.UserID,
			Amount:        m.Amount,
			Status:        model.InvoiceSent,
			InvoiceNumber: invoiceNumber(time.Now(), m.ID),
			Description:   m.Title,
			DueDate:       &due,
		}
		if err := s.invoiceRepo.InsertTx(ctx, tx, inv); err != nil {
			return mapStoreErr(err)
		}

		aggID := int64(inv.ID)
		if err := outbox.InsertEventInTx(ctx, tx, s.outboxRepo, "invoice", &aggID,
			contracts.RoutingInvoiceGenerated, invoicePayload(inv, p)); err != nil {
			return err
		}

		metrics.InvoicesGenerated.WithLabelValues("created").Inc()
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type InitiatePaymentInput struct {
	InvoiceID      int
	Amount         model.Money
	Method         string
	IdempotencyKey string
}

// InitiatePayment charges the client for an invoice via the gateway and
// records a pending payment carrying the gateway transaction id. A retry
// with the same idempotency key returns the prior payment without a second
// charge. The gateway call happens before the transaction opens so no row
// stays locked across external I/O.
func (s *SettlementService) InitiatePayment(ctx context.Context, actor Actor, in InitiatePaymentInput) (*model.Payment, error) {
	if in.IdempotencyKey == "" {
		return nil, invalidStatef("idempotency key is required")
	}

	inv, err := s.invoiceRepo.FindByID(ctx, in.InvoiceID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	p, err := s.projectRepo.FindByID(ctx, inv.ProjectID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if err := Authorize(actor, ActionInitiatePayment, p); err != nil {
		return nil, err
	}

	if prior, err := s.paymentRepo.FindByIdempotencyKey(ctx, in.InvoiceID, in.IdempotencyKey); err == nil {
		return prior, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	if inv.Status == model.InvoicePaid {
		return nil, fmt.Errorf("%w: invoice %s", ErrAlreadyPaid, inv.InvoiceNumber)
	}
	if inv.Status != model.InvoiceSent && inv.Status != model.InvoiceOverdue {
		return nil, invalidStatef("invoice is %s and cannot be paid", inv.Status)
	}
	if in.Amount != inv.Amount {
		return nil, fmt.Errorf("%w: invoice %s is for %s, got %s",
			ErrAmountMismatch, inv.InvoiceNumber, inv.Amount, in.Amount)
	}

	// The milestone may have left approved since the invoice went out, for
	// example into disputed. Only approved work gets charged.
	m, err := s.milestoneRepo.FindByID(ctx, inv.MilestoneID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if m.Status != model.MilestoneApproved {
		return nil, invalidStatef("milestone %d is %s, only approved work can be paid", m.ID, m.Status)
	}

	charge, err := s.gateway.Charge(ctx, inv.Amount, in.Method, inv.InvoiceNumber, in.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("initiate charge: %w", err)
	}

	payment := &model.Payment{
		InvoiceID:      inv.ID,
		ProjectID:      inv.ProjectID,
		ClientID:       actor.UserID,
		Amount:         inv.Amount,
		Status:         model.PaymentPending,
		Method:         in.Method,
		TransactionID:  charge.TransactionID,
		IdempotencyKey: in.IdempotencyKey,
	}

	err = runTx(ctx, s.pool, func(tx pgx.Tx) error {
		locked, err := s.invoiceRepo.GetForUpdate(ctx, tx, inv.ID)
		if err != nil {
			return mapStoreErr(err)
		}
		if locked.Status == model.InvoicePaid {
			return fmt.Errorf("%w: invoice %s", ErrAlreadyPaid, locked.InvoiceNumber)
		}
		return mapStoreErr(s.paymentRepo.InsertTx(ctx, tx, payment))
	})
	if err != nil {
		// A duplicate idempotency key means a concurrent initiation won;
		// hand back its payment.
		if errors.Is(err, ErrConflict) {
			if prior, ferr := s.paymentRepo.FindByIdempotencyKey(ctx, in.InvoiceID, in.IdempotencyKey); ferr == nil {
				return prior, nil
			}
		}
		return nil, err
	}

	s.logger.Info("Payment initiated",
		zap.Int("payment_id", payment.ID),
		zap.Int("invoice_id", inv.ID),
		zap.String("transaction_id", payment.TransactionID),
	)
	return payment, nil
}

// ConfirmPayment applies the gateway's settlement verdict for a
// transaction. It is idempotent: a payment already in a terminal status is
// returned untouched. On success the payment, invoice and milestone all
// flip in the same transaction, and the project completes when its last
// milestone is paid.
func (s *SettlementService) ConfirmPayment(ctx context.Context, transactionID string, succeeded bool) (*model.Payment, error) {
	// Unlocked reads locate the rows; all locks are then taken in order.
	seed, err := s.paymentRepo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	seedInv, err := s.invoiceRepo.FindByID(ctx, seed.InvoiceID)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	var out *model.Payment
	err = runTx(ctx, s.pool, func(tx pgx.Tx) error {
		p, err := s.projectRepo.GetForUpdate(ctx, tx, seed.ProjectID)
		if err != nil {
			return mapStoreErr(err)
		}
		m, err := s.milestoneRepo.GetForUpdate(ctx, tx, seedInv.MilestoneID)
		if err != nil {
			return mapStoreErr(err)
		}
		inv, err := s.invoiceRepo.GetForUpdate(ctx, tx, seed.InvoiceID)
		if err != nil {
			return mapStoreErr(err)
		}
		payment, err := s.paymentRepo.GetByTransactionIDForUpdate(ctx, tx, transactionID)
		if err != nil {
			return mapStoreErr(err)
		}

		if payment.Terminal() {
			metrics.PaymentsSettled.WithLabelValues("duplicate").Inc()
			out = payment
			return nil
		}

		if !succeeded {
			if err := s.paymentRepo.SetStatusTx(ctx, tx, payment.ID, model.PaymentFailed); err != nil {
				return err
			}
			payment.Status = model.PaymentFailed

			aggID := int64(payment.ID)
			if err := outbox.InsertEventInTx(ctx, tx, s.outboxRepo, "payment", &aggID,
				contracts.RoutingPaymentFailed, paymentPayload(payment, inv, p)); err != nil {
				return err
			}

			metrics.PaymentsSettled.WithLabelValues("failed").Inc()
			out = payment
			return nil
		}

		if err := s.paymentRepo.SetStatusTx(ctx, tx, payment.ID, model.PaymentCompleted); err != nil {
			return err
		}
		payment.Status = model.PaymentCompleted

		settled, err := s.paymentRepo.SumCompletedForInvoiceTx(ctx, tx, inv.ID)
		if err != nil {
			return err
		}
		if settled >= inv.Amount && inv.Status != model.InvoicePaid {
			// The milestone can have moved since initiation: a dispute may
			// have opened, or been resolved against the freelancer. Funds
			// never settle onto work that is no longer approved; the
			// transaction rolls back and the webhook retries after the
			// dispute concludes.
			if err := requireMilestoneTransition(m.Status, model.MilestonePaid); err != nil {
				return fmt.Errorf("%w: milestone %d is %s and cannot settle", ErrConflict, m.ID, m.Status)
			}
			if err := s.invoiceRepo.MarkPaidTx(ctx, tx, inv.ID); err != nil {
				return err
			}
			if err := s.milestoneRepo.MarkPaidTx(ctx, tx, m.ID); err != nil {
				return err
			}

			unpaid, err := s.milestoneRepo.CountUnpaidTx(ctx, tx, p.ID)
			if err != nil {
				return err
			}
			if unpaid == 0 && p.Status == model.ProjectActive {
				if err := s.projectRepo.UpdateStatusTx(ctx, tx, p.ID, model.ProjectCompleted); err != nil {
					return err
				}
				p.Status = model.ProjectCompleted

				projAggID := int64(p.ID)
				freelancerID := 0
				if p.FreelancerID != nil {
					freelancerID = *p.FreelancerID
				}
				if err := outbox.InsertEventInTx(ctx, tx, s.outboxRepo, "project", &projAggID,
					contracts.RoutingProjectCompleted, contracts.ProjectEventPayload{
						ProjectID:    p.ID,
						ClientID:     p.ClientID,
						FreelancerID: freelancerID,
						Title:        p.Title,
						Status:       p.Status,
					}); err != nil {
					return err
				}
			}
		}

		aggID := int64(payment.ID)
		if err := outbox.InsertEventInTx(ctx, tx, s.outboxRepo, "payment", &aggID,
			contracts.RoutingPaymentCompleted, paymentPayload(payment, inv, p)); err != nil {
			return err
		}

		metrics.PaymentsSettled.WithLabelValues("completed").Inc()
		out = payment
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithTrace(ctx, s.logger).Info("Payment confirmed",
		zap.String("transaction_id", transactionID),
		zap.String("status", out.Status),
	)
	return out, nil
}

func (s *SettlementService) GetInvoice(ctx context.Context, invoiceID int) (*model.Invoice, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return inv, nil
}

func (s *SettlementService) GetPayment(ctx context.Context, paymentID int) (*model.Payment, error) {
	p, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return p, nil
}

// SweepStalePayments fails pending payments the gateway never confirmed
// and emits a failure event for each. Runs from the worker on a timer.
func (s *SettlementService) SweepStalePayments(ctx context.Context, maxAge time.Duration) (int, error) {
	stale, err := s.paymentRepo.SweepStalePending(ctx, maxAge)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	err = runTx(ctx, s.pool, func(tx pgx.Tx) error {
		for i := range stale {
			payment := &stale[i]
			inv, err := s.invoiceRepo.FindByID(ctx, payment.InvoiceID)
			if err != nil {
				return mapStoreErr(err)
			}
			p, err := s.projectRepo.FindByID(ctx, payment.ProjectID)
			if err != nil {
				return mapStoreErr(err)
			}
			aggID := int64(payment.ID)
			if err := outbox.InsertEventInTx(ctx, tx, s.outboxRepo, "payment", &aggID,
				contracts.RoutingPaymentFailed, paymentPayload(payment, inv, p)); err != nil {
				return err
			}
			metrics.PaymentsSettled.WithLabelValues("failed").Inc()
		}
		return nil
	})
	if err != nil {
		return len(stale), err
	}

	s.logger.Info("Swept stale payments", zap.Int("count", len(stale)))
	return len(stale), nil
}

// SweepOverdueInvoices flips sent invoices past due date to overdue and
// emits an event per invoice so the client gets nudged.
func (s *SettlementService) SweepOverdueInvoices(ctx context.Context) (int, error) {
	overdue, err := s.invoiceRepo.MarkOverdue(ctx)
	if err != nil {
		return 0, err
	}
	if len(overdue) == 0 {
		return 0, nil
	}

	err = runTx(ctx, s.pool, func(tx pgx.Tx) error {
		for i := range overdue {
			inv := &overdue[i]
			p, err := s.projectRepo.FindByID(ctx, inv.ProjectID)
			if err != nil {
				return mapStoreErr(err)
			}
			aggID := int64(inv.ID)
			if err := outbox.InsertEventInTx(ctx, tx, s.outboxRepo, "invoice", &aggID,
				contracts.RoutingInvoiceOverdue, invoicePayload(inv, p)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return len(overdue), err
	}

	s.logger.Info("Swept overdue invoices", zap.Int("count", len(overdue)))
	return len(overdue), nil
}

// invoiceNumber builds the stable human-readable number. It is a pure
// function of issue year and milestone, so regeneration attempts collide
// instead of minting a second number.
func invoiceNumber(at time.Time, milestoneID int) string {
	return fmt.Sprintf("INV-%d-M%d", at.Year(), milestoneID)
}

func invoicePayload(inv *model.Invoice, p *model.Project) contracts.InvoiceEventPayload {
	return contracts.InvoiceEventPayload{
		InvoiceID:     inv.ID,
		MilestoneID:   inv.MilestoneID,
		ProjectID:     inv.ProjectID,
		ClientID:      p.ClientID,
		FreelancerID:  inv.FreelancerID,
		InvoiceNumber: inv.InvoiceNumber,
		Amount:        inv.Amount,
		Status:        inv.Status,
	}
}

func paymentPayload(payment *model.Payment, inv *model.Invoice, p *model.Project) contracts.PaymentEventPayload {
	freelancerID := 0
	if p.FreelancerID != nil {
		freelancerID = *p.FreelancerID
	}
	processedAt := time.Now()
	if payment.ProcessedAt != nil {
		processedAt = *payment.ProcessedAt
	}
	return contracts.PaymentEventPayload{
		PaymentID:     payment.ID,
		InvoiceID:     inv.ID,
		MilestoneID:   inv.MilestoneID,
		ProjectID:     p.ID,
		ClientID:      p.ClientID,
		FreelancerID:  freelancerID,
		TransactionID: payment.TransactionID,
		Amount:        payment.Amount,
		Status:        payment.Status,
		ProcessedAt:   processedAt,
	}
}
