package repository

import (
	"context"

	"freelancehub/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const applicationColumns = `id, project_id, freelancer_id, proposal, bid_amount, status, applied_at`

type ApplicationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewApplicationRepository(db *pgxpool.Pool, logger *zap.Logger) *ApplicationRepository {
	return &ApplicationRepository{
		db:     db,
		logger: logger,
	}
}

func scanApplication(row pgx.Row) (*model.Application, error) {
	var a model.Application
	err := row.Scan(
		&a.ID, &a.ProjectID, &a.FreelancerID, &a.Proposal, &a.BidAmount,
		&a.Status, &a.AppliedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ApplicationRepository) Insert(ctx context.Context, a *model.Application) error {
	query := `
        INSERT INTO applications (project_id, freelancer_id, proposal, bid_amount, status)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, applied_at
    `
	err := r.db.QueryRow(ctx, query,
		a.ProjectID, a.FreelancerID, a.Proposal, a.BidAmount, a.Status,
	).Scan(&a.ID, &a.AppliedAt)
	if err != nil {
		r.logger.Error("Failed to insert application", zap.Error(err))
		return err
	}
	return nil
}

func (r *ApplicationRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id int) (*model.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1 FOR UPDATE`
	return scanApplication(tx.QueryRow(ctx, query, id))
}

// AcceptTx accepts one application and rejects every other pending one on
// the project in the same transaction.
func (r *ApplicationRepository) AcceptTx(ctx context.Context, tx pgx.Tx, id, projectID int) error {
	if _, err := tx.Exec(ctx, `
        UPDATE applications SET status = $1 WHERE id = $2
    `, model.ApplicationAccepted, id); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `
        UPDATE applications SET status = $1 WHERE project_id = $2 AND id <> $3 AND status = $4
    `, model.ApplicationRejected, projectID, id, model.ApplicationPending)
	return err
}

func (r *ApplicationRepository) ListByProject(ctx context.Context, projectID int) ([]model.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE project_id = $1 ORDER BY applied_at ASC`
	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
