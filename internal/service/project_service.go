package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	contracts "freelancehub/contracts/mq"
	"freelancehub/internal/model"
	"freelancehub/internal/repository"
	"freelancehub/pkg/outbox"
)

type ProjectService struct {
	pool          *pgxpool.Pool
	projectRepo   *repository.ProjectRepository
	milestoneRepo *repository.MilestoneRepository
	outboxRepo    *outbox.Repository
	logger        *zap.Logger
}

func NewProjectService(
	pool *pgxpool.Pool,
	projectRepo *repository.ProjectRepository,
	milestoneRepo *repository.MilestoneRepository,
	outboxRepo *outbox.Repository,
	logger *zap.Logger,
) *ProjectService {
	return &ProjectService{
		pool:          pool,
		projectRepo:   projectRepo,
		milestoneRepo: milestoneRepo,
		outboxRepo:    outboxRepo,
		logger:        logger,
	}
}

type CreateProjectInput struct {
	Title       string
	Description string
	Budget      model.Money
	Deadline    *time.Time
	Category    string
}

// Create opens a new project in draft for the acting client.
func (s *ProjectService) Create(ctx context.Context, actor Actor, in CreateProjectInput) (*model.Project, error) {
	if actor.Role != model.RoleClient {
		return nil, forbiddenf("only clients may create projects")
	}
	if in.Title == "" {
		return nil, invalidStatef("title is required")
	}
	if in.Budget <= 0 {
		return nil, invalidStatef("budget must be positive")
	}

	p := &model.Project{
		Title:       in.Title,
		Description: in.Description,
		Budget:      in.Budget,
		Status:      model.ProjectDraft,
		ClientID:    actor.UserID,
		Deadline:    in.Deadline,
		Category:    in.Category,
	}
	if err := s.projectRepo.Insert(ctx, p); err != nil {
		return nil, mapStoreErr(err)
	}
	return p, nil
}

// Publish moves a draft to posted, making it visible for applications.
func (s *ProjectService) Publish(ctx context.Context, actor Actor, projectID int) (*model.Project, error) {
	var out *model.Project
	err := runTx(ctx, s.pool, func(tx pgx.Tx) error {
		p, err := s.projectRepo.GetForUpdate(ctx, tx, projectID)
		if err != nil {
			return mapStoreErr(err)
		}
		if err := Authorize(actor, ActionPublishProject, p); err != nil {
			return err
		}
		if err := requireProjectTransition(p.Status, model.ProjectPosted); err != nil {
			return err
		}

		if err := s.projectRepo.UpdateStatusTx(ctx, tx, p.ID, model.ProjectPosted); err != nil {
			return err
		}
		p.Status = model.ProjectPosted

		aggID := int64(p.ID)
		if err := outbox.InsertEventInTx(ctx, tx, s.outboxRepo, "project", &aggID,
			contracts.RoutingProjectPosted, contracts.ProjectEventPayload{
				ProjectID: p.ID,
				ClientID:  p.ClientID,
				Title:     p.Title,
				Status:    p.Status,
			}); err != nil {
			return err
		}

		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Project published", zap.Int("project_id", out.ID))
	return out, nil
}

// Cancel terminates a project from any non-terminal status. It is refused
// once any milestone has been paid; resolved engagements end through
// completion, not cancellation.
func (s *ProjectService) Cancel(ctx context.Context, actor Actor, projectID int) (*model.Project, error) {
	var out *model.Project
	err := runTx(ctx, s.pool, func(tx pgx.Tx) error {
		p, err := s.projectRepo.GetForUpdate(ctx, tx, projectID)
		if err != nil {
			return mapStoreErr(err)
		}
		if err := Authorize(actor, ActionCancelProject, p); err != nil {
			return err
		}
		if err := requireProjectTransition(p.Status, model.ProjectCancelled); err != nil {
			return err
		}

		paid, err := s.milestoneRepo.CountPaidTx(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if paid > 0 {
			return invalidStatef("project has %d paid milestones and cannot be cancelled", paid)
		}

		if err := s.projectRepo.UpdateStatusTx(ctx, tx, p.ID, model.ProjectCancelled); err != nil {
			return err
		}
		p.Status = model.ProjectCancelled

		freelancerID := 0
		if p.FreelancerID != nil {
			freelancerID = *p.FreelancerID
		}
		aggID := int64(p.ID)
		if err := outbox.InsertEventInTx(ctx, tx, s.outboxRepo, "project", &aggID,
			contracts.RoutingProjectCancelled, contracts.ProjectEventPayload{
				ProjectID:    p.ID,
				ClientID:     p.ClientID,
				FreelancerID: freelancerID,
				Title:        p.Title,
				Status:       p.Status,
			}); err != nil {
			return err
		}

		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Project cancelled", zap.Int("project_id", out.ID))
	return out, nil
}

func (s *ProjectService) Get(ctx context.Context, projectID int) (*model.Project, error) {
	p, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return p, nil
}

func (s *ProjectService) ListByClient(ctx context.Context, clientID int) ([]model.Project, error) {
	return s.projectRepo.ListByClient(ctx, clientID)
}

func (s *ProjectService) ListMilestones(ctx context.Context, projectID int) ([]model.Milestone, error) {
	if _, err := s.projectRepo.FindByID(ctx, projectID); err != nil {
		return nil, mapStoreErr(err)
	}
	return s.milestoneRepo.FindByProjectID(ctx, projectID)
}
