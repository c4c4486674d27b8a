package repository

import (
	"context"

	"freelancehub/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const deliverableColumns = `id, milestone_id, link, status, feedback, submitted_at`

type DeliverableRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewDeliverableRepository(db *pgxpool.Pool, logger *zap.Logger) *DeliverableRepository {
	return &DeliverableRepository{
		db:     db,
		logger: logger,
	}
}

func scanDeliverable(row pgx.Row) (*model.Deliverable, error) {
	var d model.Deliverable
	err := row.Scan(&d.ID, &d.MilestoneID, &d.Link, &d.Status, &d.Feedback, &d.SubmittedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// InsertTx always creates a new row; resubmission history is never
// overwritten.
func (r *DeliverableRepository) InsertTx(ctx context.Context, tx pgx.Tx, d *model.Deliverable) error {
	query := `
        INSERT INTO deliverables (milestone_id, link, status)
        VALUES ($1, $2, $3)
        RETURNING id, submitted_at
    `
	err := tx.QueryRow(ctx, query, d.MilestoneID, d.Link, d.Status).
		Scan(&d.ID, &d.SubmittedAt)
	if err != nil {
		r.logger.Error("Failed to insert deliverable", zap.Error(err))
		return err
	}

	r.logger.Info("Deliverable inserted",
		zap.Int("id", d.ID),
		zap.Int("milestone_id", d.MilestoneID),
	)
	return nil
}

// SetLatestStatusTx carries the review verdict onto the most recent
// deliverable of the milestone. A milestone submitted without a
// deliverable row has nothing to update, which is fine.
func (r *DeliverableRepository) SetLatestStatusTx(ctx context.Context, tx pgx.Tx, milestoneID int, status, feedback string) error {
	_, err := tx.Exec(ctx, `
        UPDATE deliverables SET status = $1, feedback = $2
        WHERE id = (
            SELECT id FROM deliverables
            WHERE milestone_id = $3
            ORDER BY submitted_at DESC
            LIMIT 1
        )
    `, status, feedback, milestoneID)
	return err
}

func (r *DeliverableRepository) FindByMilestoneID(ctx context.Context, milestoneID int) ([]model.Deliverable, error) {
	query := `SELECT ` + deliverableColumns + ` FROM deliverables WHERE milestone_id = $1 ORDER BY submitted_at ASC`
	rows, err := r.db.Query(ctx, query, milestoneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Deliverable
	for rows.Next() {
		d, err := scanDeliverable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}
