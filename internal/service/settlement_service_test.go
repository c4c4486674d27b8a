package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"freelancehub/config"
	"freelancehub/internal/gateway"
	"freelancehub/internal/model"
	"freelancehub/internal/repository"
	"freelancehub/pkg/outbox"
)

func TestInvoiceNumber(t *testing.T) {
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	got := invoiceNumber(at, 42)
	if got != "INV-2026-M42" {
		t.Fatalf("invoiceNumber = %q, want INV-2026-M42", got)
	}
	// Deterministic: a retry mints the same number.
	if again := invoiceNumber(at, 42); again != got {
		t.Fatalf("invoiceNumber not stable: %q vs %q", got, again)
	}
}

// The tests below run against a real database with the migrations applied.
// They skip unless TEST_DATABASE_URL is set.

type settlementFixture struct {
	pool         *pgxpool.Pool
	settlement   *SettlementService
	milestones   *MilestoneService
	deliverables *DeliverableService
	disputes     *DisputeService
	gatewaySrv   *httptest.Server

	client     Actor
	freelancer Actor
	admin      Actor
	project    *model.Project
	milestone  *model.Milestone
}

var txnSeq atomic.Int64

func setupSettlement(t *testing.T) *settlementFixture {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	logger := zap.NewNop()
	userRepo := repository.NewUserRepository(pool)
	projectRepo := repository.NewProjectRepository(pool, logger)
	milestoneRepo := repository.NewMilestoneRepository(pool, logger)
	invoiceRepo := repository.NewInvoiceRepository(pool, logger)
	paymentRepo := repository.NewPaymentRepository(pool, logger)
	outboxRepo := outbox.NewRepository(pool)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"transaction_id": fmt.Sprintf("txn-test-%d", txnSeq.Add(1)),
			"status":         "pending",
		})
	}))
	t.Cleanup(srv.Close)

	gw := gateway.NewPaymentGateway(config.GatewayConfig{
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
	}, logger)

	settlement := NewSettlementService(pool, projectRepo, milestoneRepo, invoiceRepo, paymentRepo, gw, outboxRepo, logger)
	milestones := NewMilestoneService(pool, projectRepo, milestoneRepo, outboxRepo, logger)
	deliverables := NewDeliverableService(pool, projectRepo, milestoneRepo, repository.NewDeliverableRepository(pool, logger), outboxRepo, logger)
	disputes := NewDisputeService(pool, projectRepo, milestoneRepo, repository.NewDisputeRepository(pool, logger), invoiceRepo, outboxRepo, logger)

	suffix := time.Now().UnixNano()
	clientUser := &model.User{
		Email:        fmt.Sprintf("client-%d@test.local", suffix),
		PasswordHash: "x",
		Role:         model.RoleClient,
	}
	if err := userRepo.CreateUser(ctx, clientUser); err != nil {
		t.Fatalf("create client: %v", err)
	}
	freelancerUser := &model.User{
		Email:        fmt.Sprintf("freelancer-%d@test.local", suffix),
		PasswordHash: "x",
		Role:         model.RoleFreelancer,
	}
	if err := userRepo.CreateUser(ctx, freelancerUser); err != nil {
		t.Fatalf("create freelancer: %v", err)
	}

	adminUser := &model.User{
		Email:        fmt.Sprintf("admin-%d@test.local", suffix),
		PasswordHash: "x",
		Role:         model.RoleAdmin,
	}
	if err := userRepo.CreateUser(ctx, adminUser); err != nil {
		t.Fatalf("create admin: %v", err)
	}

	client := Actor{UserID: clientUser.ID, Role: model.RoleClient}
	freelancer := Actor{UserID: freelancerUser.ID, Role: model.RoleFreelancer}
	admin := Actor{UserID: adminUser.ID, Role: model.RoleAdmin}

	project := &model.Project{
		Title:    "settlement fixture",
		Budget:   model.MustMoney("1000.00"),
		Status:   model.ProjectActive,
		ClientID: clientUser.ID,
	}
	if err := projectRepo.Insert(ctx, project); err != nil {
		t.Fatalf("create project: %v", err)
	}
	if _, err := pool.Exec(ctx,
		`UPDATE projects SET freelancer_id = $1 WHERE id = $2`,
		freelancerUser.ID, project.ID,
	); err != nil {
		t.Fatalf("assign freelancer: %v", err)
	}
	project.FreelancerID = &freelancerUser.ID

	m, err := milestones.Create(ctx, client, project.ID, CreateMilestoneInput{
		Title:  "phase one",
		Amount: model.MustMoney("400.00"),
	})
	if err != nil {
		t.Fatalf("create milestone: %v", err)
	}
	if _, err := deliverables.Post(ctx, freelancer, m.ID, "https://example.test/work"); err != nil {
		t.Fatalf("post deliverable: %v", err)
	}
	if _, err := deliverables.Review(ctx, client, m.ID, true, ""); err != nil {
		t.Fatalf("approve milestone: %v", err)
	}

	return &settlementFixture{
		pool:         pool,
		settlement:   settlement,
		milestones:   milestones,
		deliverables: deliverables,
		disputes:     disputes,
		gatewaySrv:   srv,
		client:       client,
		freelancer:   freelancer,
		admin:        admin,
		project:      project,
		milestone:    m,
	}
}

func TestGenerateInvoiceIdempotent(t *testing.T) {
	f := setupSettlement(t)
	ctx := context.Background()

	first, err := f.settlement.GenerateInvoice(ctx, f.freelancer, f.milestone.ID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if first.Status != model.InvoiceSent {
		t.Fatalf("invoice status = %s, want sent", first.Status)
	}

	second, err := f.settlement.GenerateInvoice(ctx, f.freelancer, f.milestone.ID)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if second.ID != first.ID || second.InvoiceNumber != first.InvoiceNumber {
		t.Fatalf("regeneration minted a new invoice: %d/%s vs %d/%s",
			first.ID, first.InvoiceNumber, second.ID, second.InvoiceNumber)
	}
}

func TestInitiatePaymentValidation(t *testing.T) {
	f := setupSettlement(t)
	ctx := context.Background()

	inv, err := f.settlement.GenerateInvoice(ctx, f.freelancer, f.milestone.ID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	_, err = f.settlement.InitiatePayment(ctx, f.client, InitiatePaymentInput{
		InvoiceID:      inv.ID,
		Amount:         model.MustMoney("399.99"),
		Method:         "card",
		IdempotencyKey: fmt.Sprintf("key-mismatch-%d", time.Now().UnixNano()),
	})
	if !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("expected ErrAmountMismatch, got %v", err)
	}

	_, err = f.settlement.InitiatePayment(ctx, f.freelancer, InitiatePaymentInput{
		InvoiceID:      inv.ID,
		Amount:         inv.Amount,
		Method:         "card",
		IdempotencyKey: fmt.Sprintf("key-role-%d", time.Now().UnixNano()),
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for freelancer, got %v", err)
	}
}

func TestInitiatePaymentIdempotencyKeyReplay(t *testing.T) {
	f := setupSettlement(t)
	ctx := context.Background()

	inv, err := f.settlement.GenerateInvoice(ctx, f.freelancer, f.milestone.ID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	key := fmt.Sprintf("key-replay-%d", time.Now().UnixNano())
	in := InitiatePaymentInput{
		InvoiceID:      inv.ID,
		Amount:         inv.Amount,
		Method:         "card",
		IdempotencyKey: key,
	}

	first, err := f.settlement.InitiatePayment(ctx, f.client, in)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	second, err := f.settlement.InitiatePayment(ctx, f.client, in)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if second.ID != first.ID || second.TransactionID != first.TransactionID {
		t.Fatalf("replay created a second payment: %d/%s vs %d/%s",
			first.ID, first.TransactionID, second.ID, second.TransactionID)
	}
}

func TestConfirmPaymentSettlesAndIsIdempotent(t *testing.T) {
	f := setupSettlement(t)
	ctx := context.Background()

	inv, err := f.settlement.GenerateInvoice(ctx, f.freelancer, f.milestone.ID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	payment, err := f.settlement.InitiatePayment(ctx, f.client, InitiatePaymentInput{
		InvoiceID:      inv.ID,
		Amount:         inv.Amount,
		Method:         "card",
		IdempotencyKey: fmt.Sprintf("key-confirm-%d", time.Now().UnixNano()),
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	confirmed, err := f.settlement.ConfirmPayment(ctx, payment.TransactionID, true)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != model.PaymentCompleted {
		t.Fatalf("payment status = %s, want completed", confirmed.Status)
	}

	gotInv, err := f.settlement.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if gotInv.Status != model.InvoicePaid {
		t.Fatalf("invoice status = %s, want paid", gotInv.Status)
	}

	m, err := f.milestones.Get(ctx, f.milestone.ID)
	if err != nil {
		t.Fatalf("get milestone: %v", err)
	}
	if m.Status != model.MilestonePaid {
		t.Fatalf("milestone status = %s, want paid", m.Status)
	}

	// The single milestone is paid, so the project completes in the same
	// confirmation transaction.
	var projectStatus string
	if err := f.pool.QueryRow(ctx,
		`SELECT status FROM projects WHERE id = $1`, f.project.ID,
	).Scan(&projectStatus); err != nil {
		t.Fatalf("read project: %v", err)
	}
	if projectStatus != model.ProjectCompleted {
		t.Fatalf("project status = %s, want completed", projectStatus)
	}

	// A duplicate webhook delivery changes nothing.
	again, err := f.settlement.ConfirmPayment(ctx, payment.TransactionID, true)
	if err != nil {
		t.Fatalf("duplicate confirm: %v", err)
	}
	if again.Status != model.PaymentCompleted {
		t.Fatalf("duplicate confirm status = %s, want completed", again.Status)
	}

	// Paying an already-paid invoice is refused at initiation.
	_, err = f.settlement.InitiatePayment(ctx, f.client, InitiatePaymentInput{
		InvoiceID:      inv.ID,
		Amount:         inv.Amount,
		Method:         "card",
		IdempotencyKey: fmt.Sprintf("key-after-%d", time.Now().UnixNano()),
	})
	if !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}
}

func TestConfirmPaymentFailure(t *testing.T) {
	f := setupSettlement(t)
	ctx := context.Background()

	inv, err := f.settlement.GenerateInvoice(ctx, f.freelancer, f.milestone.ID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	payment, err := f.settlement.InitiatePayment(ctx, f.client, InitiatePaymentInput{
		InvoiceID:      inv.ID,
		Amount:         inv.Amount,
		Method:         "card",
		IdempotencyKey: fmt.Sprintf("key-fail-%d", time.Now().UnixNano()),
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	confirmed, err := f.settlement.ConfirmPayment(ctx, payment.TransactionID, false)
	if err != nil {
		t.Fatalf("confirm failure: %v", err)
	}
	if confirmed.Status != model.PaymentFailed {
		t.Fatalf("payment status = %s, want failed", confirmed.Status)
	}

	gotInv, err := f.settlement.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if gotInv.Status != model.InvoiceSent {
		t.Fatalf("invoice status = %s after failed payment, want sent", gotInv.Status)
	}

	m, err := f.milestones.Get(ctx, f.milestone.ID)
	if err != nil {
		t.Fatalf("get milestone: %v", err)
	}
	if m.Status != model.MilestoneApproved {
		t.Fatalf("milestone status = %s after failed payment, want approved", m.Status)
	}
}

func TestInitiatePaymentRequiresApprovedMilestone(t *testing.T) {
	f := setupSettlement(t)
	ctx := context.Background()

	inv, err := f.settlement.GenerateInvoice(ctx, f.freelancer, f.milestone.ID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	// A dispute after invoicing moves the milestone out of approved.
	if _, err := f.disputes.Open(ctx, f.client, f.milestone.ID, "work not as agreed"); err != nil {
		t.Fatalf("open dispute: %v", err)
	}

	_, err = f.settlement.InitiatePayment(ctx, f.client, InitiatePaymentInput{
		InvoiceID:      inv.ID,
		Amount:         inv.Amount,
		Method:         "card",
		IdempotencyKey: fmt.Sprintf("key-disputed-%d", time.Now().UnixNano()),
	})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for disputed milestone, got %v", err)
	}
}

func TestConfirmPaymentBlockedAfterAdverseResolution(t *testing.T) {
	f := setupSettlement(t)
	ctx := context.Background()

	inv, err := f.settlement.GenerateInvoice(ctx, f.freelancer, f.milestone.ID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	payment, err := f.settlement.InitiatePayment(ctx, f.client, InitiatePaymentInput{
		InvoiceID:      inv.ID,
		Amount:         inv.Amount,
		Method:         "card",
		IdempotencyKey: fmt.Sprintf("key-adverse-%d", time.Now().UnixNano()),
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	// The dispute opens and resolves against the freelancer while the
	// charge is in flight.
	d, err := f.disputes.Open(ctx, f.client, f.milestone.ID, "deliverable broken")
	if err != nil {
		t.Fatalf("open dispute: %v", err)
	}
	if _, err := f.disputes.Resolve(ctx, f.admin, d.ID, "refund the client", model.OutcomeFavorClient); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	_, err = f.settlement.ConfirmPayment(ctx, payment.TransactionID, true)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	m, err := f.milestones.Get(ctx, f.milestone.ID)
	if err != nil {
		t.Fatalf("get milestone: %v", err)
	}
	if m.Status != model.MilestoneRejected {
		t.Fatalf("milestone status = %s, want rejected", m.Status)
	}

	// The resolution voided the invoice, so a fresh payment attempt is
	// refused as well.
	gotInv, err := f.settlement.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if gotInv.Status != model.InvoiceVoid {
		t.Fatalf("invoice status = %s, want void", gotInv.Status)
	}
	_, err = f.settlement.InitiatePayment(ctx, f.client, InitiatePaymentInput{
		InvoiceID:      inv.ID,
		Amount:         inv.Amount,
		Method:         "card",
		IdempotencyKey: fmt.Sprintf("key-void-%d", time.Now().UnixNano()),
	})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for void invoice, got %v", err)
	}
}

func TestGenerateInvoiceReissuesAfterVoid(t *testing.T) {
	f := setupSettlement(t)
	ctx := context.Background()

	inv, err := f.settlement.GenerateInvoice(ctx, f.freelancer, f.milestone.ID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	d, err := f.disputes.Open(ctx, f.client, f.milestone.ID, "missing pages")
	if err != nil {
		t.Fatalf("open dispute: %v", err)
	}
	if _, err := f.disputes.Resolve(ctx, f.admin, d.ID, "redo the work", model.OutcomeFavorClient); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// Rejected work goes around the loop again and gets approved.
	if _, err := f.deliverables.Post(ctx, f.freelancer, f.milestone.ID, "https://example.test/redo"); err != nil {
		t.Fatalf("repost deliverable: %v", err)
	}
	if _, err := f.deliverables.Review(ctx, f.client, f.milestone.ID, true, ""); err != nil {
		t.Fatalf("approve again: %v", err)
	}

	reissued, err := f.settlement.GenerateInvoice(ctx, f.freelancer, f.milestone.ID)
	if err != nil {
		t.Fatalf("reissue: %v", err)
	}
	if reissued.ID != inv.ID {
		t.Fatalf("reissue minted a new invoice: %d vs %d", reissued.ID, inv.ID)
	}
	if reissued.Status != model.InvoiceSent {
		t.Fatalf("reissued status = %s, want sent", reissued.Status)
	}
}
