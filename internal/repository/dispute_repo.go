package repository

import (
	"context"

	"freelancehub/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const disputeColumns = `id, milestone_id, raised_by, description, status, resolution,
       outcome, created_at, resolved_at`

type DisputeRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewDisputeRepository(db *pgxpool.Pool, logger *zap.Logger) *DisputeRepository {
	return &DisputeRepository{
		db:     db,
		logger: logger,
	}
}

func scanDispute(row pgx.Row) (*model.Dispute, error) {
	var d model.Dispute
	err := row.Scan(
		&d.ID, &d.MilestoneID, &d.RaisedBy, &d.Description, &d.Status,
		&d.Resolution, &d.Outcome, &d.CreatedAt, &d.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// InsertTx creates an open dispute. A partial unique index on
// (milestone_id) WHERE status = 'open' rejects a concurrent second open.
func (r *DisputeRepository) InsertTx(ctx context.Context, tx pgx.Tx, d *model.Dispute) error {
	query := `
        INSERT INTO disputes (milestone_id, raised_by, description, status)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at
    `
	err := tx.QueryRow(ctx, query, d.MilestoneID, d.RaisedBy, d.Description, d.Status).
		Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert dispute", zap.Error(err))
		return err
	}

	r.logger.Info("Dispute opened",
		zap.Int("id", d.ID),
		zap.Int("milestone_id", d.MilestoneID),
	)
	return nil
}

func (r *DisputeRepository) FindByID(ctx context.Context, id int) (*model.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1`
	return scanDispute(r.db.QueryRow(ctx, query, id))
}

func (r *DisputeRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id int) (*model.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1 FOR UPDATE`
	return scanDispute(tx.QueryRow(ctx, query, id))
}

// HasOpenByMilestoneTx reports whether the milestone already has an open
// dispute, checked under the milestone row lock.
func (r *DisputeRepository) HasOpenByMilestoneTx(ctx context.Context, tx pgx.Tx, milestoneID int) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
        SELECT EXISTS(SELECT 1 FROM disputes WHERE milestone_id = $1 AND status = $2)
    `, milestoneID, model.DisputeOpen).Scan(&exists)
	return exists, err
}

// ResolveTx stamps the terminal resolution.
func (r *DisputeRepository) ResolveTx(ctx context.Context, tx pgx.Tx, id int, resolution, outcome string) error {
	_, err := tx.Exec(ctx, `
        UPDATE disputes
        SET status = $1, resolution = $2, outcome = $3, resolved_at = NOW()
        WHERE id = $4
    `, model.DisputeResolved, resolution, outcome, id)
	return err
}
