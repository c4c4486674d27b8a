package repository

import (
	"context"

	"freelancehub/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const projectColumns = `id, title, description, budget, status, client_id, freelancer_id,
       deadline, category, created_at, updated_at`

type ProjectRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProjectRepository(db *pgxpool.Pool, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{
		db:     db,
		logger: logger,
	}
}

func scanProject(row pgx.Row) (*model.Project, error) {
	var p model.Project
	err := row.Scan(
		&p.ID, &p.Title, &p.Description, &p.Budget, &p.Status, &p.ClientID,
		&p.FreelancerID, &p.Deadline, &p.Category, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepository) Insert(ctx context.Context, p *model.Project) error {
	r.logger.Debug("Inserting project",
		zap.Int("client_id", p.ClientID),
		zap.String("title", p.Title),
	)

	query := `
        INSERT INTO projects (title, description, budget, status, client_id, deadline, category)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		p.Title, p.Description, p.Budget, p.Status, p.ClientID, p.Deadline, p.Category,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		r.logger.Error("Failed to insert project", zap.Error(err))
		return err
	}

	r.logger.Info("Project inserted",
		zap.Int("id", p.ID),
		zap.Int("client_id", p.ClientID),
	)
	return nil
}

func (r *ProjectRepository) FindByID(ctx context.Context, id int) (*model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	return scanProject(r.db.QueryRow(ctx, query, id))
}

// GetForUpdate locks the project row for the remainder of the transaction.
// Every multi-step project transition goes through this lock so concurrent
// requests serialize instead of racing.
func (r *ProjectRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id int) (*model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1 FOR UPDATE`
	return scanProject(tx.QueryRow(ctx, query, id))
}

func (r *ProjectRepository) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id int, status string) error {
	_, err := tx.Exec(ctx,
		`UPDATE projects SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	return err
}

// SetFreelancerTx records the hire: freelancer_id is written exactly once,
// together with the move to active.
func (r *ProjectRepository) SetFreelancerTx(ctx context.Context, tx pgx.Tx, id, freelancerID int) error {
	_, err := tx.Exec(ctx, `
        UPDATE projects
        SET freelancer_id = $1, status = $2, updated_at = NOW()
        WHERE id = $3 AND freelancer_id IS NULL
    `, freelancerID, model.ProjectActive, id)
	return err
}

func (r *ProjectRepository) ListByClient(ctx context.Context, clientID int) ([]model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE client_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, clientID)
	if err != nil {
		r.logger.Error("Failed to list projects", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}
