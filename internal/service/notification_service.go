package service

import (
	"context"

	"freelancehub/internal/model"
	"freelancehub/internal/repository"
)

// NotificationService is the read side; the worker writes notifications as
// it consumes engagement events.
type NotificationService struct {
	repo *repository.NotificationRepository
}

func NewNotificationService(repo *repository.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

func (s *NotificationService) ListForUser(ctx context.Context, userID, limit int) ([]model.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

func (s *NotificationService) MarkRead(ctx context.Context, id, userID int) error {
	return mapStoreErr(s.repo.MarkRead(ctx, id, userID))
}
