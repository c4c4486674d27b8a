package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"freelancehub/internal/model"
	"freelancehub/internal/repository"
)

type ReviewService struct {
	projectRepo *repository.ProjectRepository
	reviewRepo  *repository.ReviewRepository
	logger      *zap.Logger
}

func NewReviewService(
	projectRepo *repository.ProjectRepository,
	reviewRepo *repository.ReviewRepository,
	logger *zap.Logger,
) *ReviewService {
	return &ReviewService{
		projectRepo: projectRepo,
		reviewRepo:  reviewRepo,
		logger:      logger,
	}
}

// Create records the client's rating for a completed project. One review
// per project; duplicates are refused.
func (s *ReviewService) Create(ctx context.Context, actor Actor, projectID, rating int, comment string) (*model.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, invalidStatef("rating must be between 1 and 5")
	}

	p, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if p.Status != model.ProjectCompleted {
		return nil, invalidStatef("reviews are only accepted on completed projects, project is %s", p.Status)
	}

	if err := Authorize(actor, ActionCreateReview, p); err != nil {
		return nil, err
	}

	exists, err := s.reviewRepo.ExistsForProject(ctx, projectID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: review already exists for project %d", ErrConflict, projectID)
	}

	review := &model.Review{
		ProjectID:  projectID,
		ReviewerID: actor.UserID,
		Rating:     rating,
		Comment:    comment,
	}
	if err := s.reviewRepo.Insert(ctx, review); err != nil {
		return nil, mapStoreErr(err)
	}

	s.logger.Info("Review created",
		zap.Int("project_id", projectID),
		zap.Int("reviewer_id", actor.UserID),
	)
	return review, nil
}

func (s *ReviewService) ListByProject(ctx context.Context, projectID int) ([]model.Review, error) {
	if _, err := s.projectRepo.FindByID(ctx, projectID); err != nil {
		return nil, mapStoreErr(err)
	}
	return s.reviewRepo.ListByProject(ctx, projectID)
}
