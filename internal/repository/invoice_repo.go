package repository

import (
	"context"
	"time"

	"freelancehub/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const invoiceColumns = `id, milestone_id, project_id, freelancer_id, amount, status,
       invoice_number, description, due_date, sent_at, paid_at, created_at, updated_at`

type InvoiceRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewInvoiceRepository(db *pgxpool.Pool, logger *zap.Logger) *InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

func scanInvoice(row pgx.Row) (*model.Invoice, error) {
	var inv model.Invoice
	err := row.Scan(
		&inv.ID, &inv.MilestoneID, &inv.ProjectID, &inv.FreelancerID, &inv.Amount,
		&inv.Status, &inv.InvoiceNumber, &inv.Description, &inv.DueDate,
		&inv.SentAt, &inv.PaidAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// InsertTx creates the invoice. The unique index on milestone_id makes a
// concurrent double-generate fail at the storage layer.
func (r *InvoiceRepository) InsertTx(ctx context.Context, tx pgx.Tx, inv *model.Invoice) error {
	r.logger.Debug("Inserting invoice",
		zap.Int("milestone_id", inv.MilestoneID),
		zap.String("amount", inv.Amount.String()),
	)

	query := `
        INSERT INTO invoices (milestone_id, project_id, freelancer_id, amount, status,
                              invoice_number, description, due_date, sent_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
        RETURNING id, sent_at, created_at, updated_at
    `
	err := tx.QueryRow(ctx, query,
		inv.MilestoneID, inv.ProjectID, inv.FreelancerID, inv.Amount, inv.Status,
		inv.InvoiceNumber, inv.Description, inv.DueDate,
	).Scan(&inv.ID, &inv.SentAt, &inv.CreatedAt, &inv.UpdatedAt)

	if err != nil {
		r.logger.Error("Failed to insert invoice", zap.Error(err))
		return err
	}

	r.logger.Info("Invoice inserted",
		zap.Int("id", inv.ID),
		zap.String("invoice_number", inv.InvoiceNumber),
	)
	return nil
}

func (r *InvoiceRepository) FindByID(ctx context.Context, id int) (*model.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	return scanInvoice(r.db.QueryRow(ctx, query, id))
}

func (r *InvoiceRepository) FindByMilestoneTx(ctx context.Context, tx pgx.Tx, milestoneID int) (*model.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE milestone_id = $1`
	return scanInvoice(tx.QueryRow(ctx, query, milestoneID))
}

func (r *InvoiceRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id int) (*model.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 FOR UPDATE`
	return scanInvoice(tx.QueryRow(ctx, query, id))
}

func (r *InvoiceRepository) MarkPaidTx(ctx context.Context, tx pgx.Tx, id int) error {
	_, err := tx.Exec(ctx, `
        UPDATE invoices
        SET status = $1, paid_at = NOW(), updated_at = NOW()
        WHERE id = $2
    `, model.InvoicePaid, id)
	return err
}

// ReissueTx puts a voided invoice back in circulation with the current
// milestone amount and a fresh due date.
func (r *InvoiceRepository) ReissueTx(ctx context.Context, tx pgx.Tx, id int, amount model.Money, due *time.Time) error {
	_, err := tx.Exec(ctx, `
        UPDATE invoices
        SET status = $1, amount = $2, due_date = $3, sent_at = NOW(), updated_at = NOW()
        WHERE id = $4
    `, model.InvoiceSent, amount, due, id)
	return err
}

// VoidByMilestoneTx cancels a milestone's unpaid invoice, if one exists.
// Runs when a dispute resolution strips the milestone's approval.
func (r *InvoiceRepository) VoidByMilestoneTx(ctx context.Context, tx pgx.Tx, milestoneID int) error {
	_, err := tx.Exec(ctx, `
        UPDATE invoices
        SET status = $1, updated_at = NOW()
        WHERE milestone_id = $2 AND status IN ($3, $4)
    `, model.InvoiceVoid, milestoneID, model.InvoiceSent, model.InvoiceOverdue)
	return err
}

// MarkOverdue flips sent invoices past their due date to overdue and
// returns them for event emission. Runs from the worker sweep, not under
// any row lock.
func (r *InvoiceRepository) MarkOverdue(ctx context.Context) ([]model.Invoice, error) {
	query := `
        UPDATE invoices
        SET status = $1, updated_at = NOW()
        WHERE status = $2 AND due_date IS NOT NULL AND due_date < NOW()
        RETURNING ` + invoiceColumns
	rows, err := r.db.Query(ctx, query, model.InvoiceOverdue, model.InvoiceSent)
	if err != nil {
		r.logger.Error("Failed to mark overdue invoices", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}
