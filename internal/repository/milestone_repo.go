package repository

import (
	"context"

	"freelancehub/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const milestoneColumns = `id, project_id, title, description, amount, status, due_date,
       feedback, submitted_at, approved_at, paid_at, created_at, updated_at`

type MilestoneRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewMilestoneRepository(db *pgxpool.Pool, logger *zap.Logger) *MilestoneRepository {
	return &MilestoneRepository{
		db:     db,
		logger: logger,
	}
}

func scanMilestone(row pgx.Row) (*model.Milestone, error) {
	var m model.Milestone
	err := row.Scan(
		&m.ID, &m.ProjectID, &m.Title, &m.Description, &m.Amount, &m.Status,
		&m.DueDate, &m.Feedback, &m.SubmittedAt, &m.ApprovedAt, &m.PaidAt,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MilestoneRepository) InsertTx(ctx context.Context, tx pgx.Tx, m *model.Milestone) error {
	r.logger.Debug("Inserting milestone",
		zap.Int("project_id", m.ProjectID),
		zap.String("title", m.Title),
		zap.String("amount", m.Amount.String()),
	)

	query := `
        INSERT INTO milestones (project_id, title, description, amount, status, due_date)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at
    `
	err := tx.QueryRow(ctx, query,
		m.ProjectID, m.Title, m.Description, m.Amount, m.Status, m.DueDate,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)

	if err != nil {
		r.logger.Error("Failed to insert milestone", zap.Error(err))
		return err
	}

	r.logger.Info("Milestone inserted",
		zap.Int("id", m.ID),
		zap.Int("project_id", m.ProjectID),
	)
	return nil
}

func (r *MilestoneRepository) FindByID(ctx context.Context, id int) (*model.Milestone, error) {
	query := `SELECT ` + milestoneColumns + ` FROM milestones WHERE id = $1`
	return scanMilestone(r.db.QueryRow(ctx, query, id))
}

// GetForUpdate locks the milestone row; the loser of two concurrent
// transitions sees the updated status after the winner commits.
func (r *MilestoneRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id int) (*model.Milestone, error) {
	query := `SELECT ` + milestoneColumns + ` FROM milestones WHERE id = $1 FOR UPDATE`
	return scanMilestone(tx.QueryRow(ctx, query, id))
}

func (r *MilestoneRepository) FindByProjectID(ctx context.Context, projectID int) ([]model.Milestone, error) {
	return r.listByProject(ctx, r.db, projectID)
}

// ListByProjectTx reads the project's milestones inside the transaction,
// used for the budget check while the project row is locked.
func (r *MilestoneRepository) ListByProjectTx(ctx context.Context, tx pgx.Tx, projectID int) ([]model.Milestone, error) {
	return r.listByProject(ctx, tx, projectID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *MilestoneRepository) listByProject(ctx context.Context, q querier, projectID int) ([]model.Milestone, error) {
	query := `SELECT ` + milestoneColumns + ` FROM milestones WHERE project_id = $1 ORDER BY created_at ASC`
	rows, err := q.Query(ctx, query, projectID)
	if err != nil {
		r.logger.Error("Failed to list milestones", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var milestones []model.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		milestones = append(milestones, *m)
	}
	return milestones, rows.Err()
}

func (r *MilestoneRepository) SubmitTx(ctx context.Context, tx pgx.Tx, id int) error {
	_, err := tx.Exec(ctx, `
        UPDATE milestones
        SET status = $1, submitted_at = NOW(), updated_at = NOW()
        WHERE id = $2
    `, model.MilestoneSubmitted, id)
	return err
}

func (r *MilestoneRepository) ApproveTx(ctx context.Context, tx pgx.Tx, id int) error {
	_, err := tx.Exec(ctx, `
        UPDATE milestones
        SET status = $1, approved_at = NOW(), updated_at = NOW()
        WHERE id = $2
    `, model.MilestoneApproved, id)
	return err
}

func (r *MilestoneRepository) RejectTx(ctx context.Context, tx pgx.Tx, id int, feedback string) error {
	_, err := tx.Exec(ctx, `
        UPDATE milestones
        SET status = $1, feedback = $2, updated_at = NOW()
        WHERE id = $3
    `, model.MilestoneRejected, feedback, id)
	return err
}

func (r *MilestoneRepository) DisputeTx(ctx context.Context, tx pgx.Tx, id int) error {
	_, err := tx.Exec(ctx, `
        UPDATE milestones
        SET status = $1, updated_at = NOW()
        WHERE id = $2
    `, model.MilestoneDisputed, id)
	return err
}

func (r *MilestoneRepository) MarkPaidTx(ctx context.Context, tx pgx.Tx, id int) error {
	_, err := tx.Exec(ctx, `
        UPDATE milestones
        SET status = $1, paid_at = NOW(), updated_at = NOW()
        WHERE id = $2
    `, model.MilestonePaid, id)
	return err
}

func (r *MilestoneRepository) UpdateAmountTx(ctx context.Context, tx pgx.Tx, id int, amount model.Money) error {
	_, err := tx.Exec(ctx, `
        UPDATE milestones
        SET amount = $1, updated_at = NOW()
        WHERE id = $2
    `, amount, id)
	return err
}

// CountUnpaidTx counts milestones of the project not yet paid, used to
// decide project completion after a settlement.
func (r *MilestoneRepository) CountUnpaidTx(ctx context.Context, tx pgx.Tx, projectID int) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
        SELECT COUNT(*) FROM milestones WHERE project_id = $1 AND status <> $2
    `, projectID, model.MilestonePaid).Scan(&n)
	return n, err
}

// CountPaidTx counts paid milestones, used by the cancellation guard.
func (r *MilestoneRepository) CountPaidTx(ctx context.Context, tx pgx.Tx, projectID int) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
        SELECT COUNT(*) FROM milestones WHERE project_id = $1 AND status = $2
    `, projectID, model.MilestonePaid).Scan(&n)
	return n, err
}
