package repository

import (
	"context"

	"freelancehub/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ReviewRepository struct {
	db *pgxpool.Pool
}

func NewReviewRepository(db *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func (r *ReviewRepository) Insert(ctx context.Context, rv *model.Review) error {
	query := `
        INSERT INTO reviews (project_id, reviewer_id, rating, comment)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at
    `
	return r.db.QueryRow(ctx, query, rv.ProjectID, rv.ReviewerID, rv.Rating, rv.Comment).
		Scan(&rv.ID, &rv.CreatedAt)
}

func (r *ReviewRepository) ExistsForProject(ctx context.Context, projectID, reviewerID int) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
        SELECT EXISTS(SELECT 1 FROM reviews WHERE project_id = $1 AND reviewer_id = $2)
    `, projectID, reviewerID).Scan(&exists)
	return exists, err
}

func (r *ReviewRepository) ListByProject(ctx context.Context, projectID int) ([]model.Review, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, project_id, reviewer_id, rating, comment, created_at
        FROM reviews
        WHERE project_id = $1
        ORDER BY created_at DESC
    `, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Review
	for rows.Next() {
		var rv model.Review
		if err := rows.Scan(&rv.ID, &rv.ProjectID, &rv.ReviewerID, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}
