package repository

import (
	"context"
	"time"

	"freelancehub/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const paymentColumns = `id, invoice_id, project_id, client_id, amount, status, method,
       transaction_id, idempotency_key, processed_at, created_at, updated_at`

type PaymentRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPaymentRepository(db *pgxpool.Pool, logger *zap.Logger) *PaymentRepository {
	return &PaymentRepository{
		db:     db,
		logger: logger,
	}
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(
		&p.ID, &p.InvoiceID, &p.ProjectID, &p.ClientID, &p.Amount, &p.Status,
		&p.Method, &p.TransactionID, &p.IdempotencyKey, &p.ProcessedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// InsertTx creates a pending payment. Unique indexes on transaction_id and
// idempotency_key reject duplicates at the storage layer regardless of
// application-level locking.
func (r *PaymentRepository) InsertTx(ctx context.Context, tx pgx.Tx, p *model.Payment) error {
	r.logger.Debug("Inserting payment",
		zap.Int("invoice_id", p.InvoiceID),
		zap.String("transaction_id", p.TransactionID),
	)

	query := `
        INSERT INTO payments (invoice_id, project_id, client_id, amount, status,
                              method, transaction_id, idempotency_key)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, created_at, updated_at
    `
	err := tx.QueryRow(ctx, query,
		p.InvoiceID, p.ProjectID, p.ClientID, p.Amount, p.Status,
		p.Method, p.TransactionID, p.IdempotencyKey,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		r.logger.Error("Failed to insert payment", zap.Error(err))
		return err
	}

	r.logger.Info("Payment inserted",
		zap.Int("id", p.ID),
		zap.String("transaction_id", p.TransactionID),
	)
	return nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id int) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return scanPayment(r.db.QueryRow(ctx, query, id))
}

// FindByIdempotencyKey returns the prior result of a retried initiation.
func (r *PaymentRepository) FindByIdempotencyKey(ctx context.Context, invoiceID int, key string) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE invoice_id = $1 AND idempotency_key = $2`
	return scanPayment(r.db.QueryRow(ctx, query, invoiceID, key))
}

// FindByTransactionID is the unlocked read used to locate the rows a
// confirmation must lock, before any lock is taken.
func (r *PaymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_id = $1`
	return scanPayment(r.db.QueryRow(ctx, query, transactionID))
}

// GetByTransactionIDForUpdate locks the payment row for confirmation.
func (r *PaymentRepository) GetByTransactionIDForUpdate(ctx context.Context, tx pgx.Tx, transactionID string) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_id = $1 FOR UPDATE`
	return scanPayment(tx.QueryRow(ctx, query, transactionID))
}

func (r *PaymentRepository) SetStatusTx(ctx context.Context, tx pgx.Tx, id int, status string) error {
	_, err := tx.Exec(ctx, `
        UPDATE payments
        SET status = $1, processed_at = NOW(), updated_at = NOW()
        WHERE id = $2
    `, status, id)
	return err
}

// SumCompletedForInvoiceTx totals completed payments for an invoice,
// re-checked before marking the invoice paid.
func (r *PaymentRepository) SumCompletedForInvoiceTx(ctx context.Context, tx pgx.Tx, invoiceID int) (model.Money, error) {
	var total int64
	err := tx.QueryRow(ctx, `
        SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id = $1 AND status = $2
    `, invoiceID, model.PaymentCompleted).Scan(&total)
	return model.Money(total), err
}

// SweepStalePending marks pending payments older than maxAge as failed and
// returns them. Every payment reaches a terminal status eventually.
func (r *PaymentRepository) SweepStalePending(ctx context.Context, maxAge time.Duration) ([]model.Payment, error) {
	query := `
        UPDATE payments
        SET status = $1, processed_at = NOW(), updated_at = NOW()
        WHERE status = $2 AND created_at < NOW() - make_interval(secs => $3)
        RETURNING ` + paymentColumns
	rows, err := r.db.Query(ctx, query, model.PaymentFailed, model.PaymentPending, maxAge.Seconds())
	if err != nil {
		r.logger.Error("Failed to sweep stale payments", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var out []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
