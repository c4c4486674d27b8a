package service

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	contracts "freelancehub/contracts/mq"
	"freelancehub/internal/model"
	"freelancehub/internal/repository"
	"freelancehub/pkg/outbox"
)

type ApplicationService struct {
	pool            *pgxpool.Pool
	projectRepo     *repository.ProjectRepository
	applicationRepo *repository.ApplicationRepository
	outboxRepo      *outbox.Repository
	logger          *zap.Logger
}

func NewApplicationService(
	pool *pgxpool.Pool,
	projectRepo *repository.ProjectRepository,
	applicationRepo *repository.ApplicationRepository,
	outboxRepo *outbox.Repository,
	logger *zap.Logger,
) *ApplicationService {
	return &ApplicationService{
		pool:            pool,
		projectRepo:     projectRepo,
		applicationRepo: applicationRepo,
		outboxRepo:      outboxRepo,
		logger:          logger,
	}
}

// Apply records a freelancer's bid on a posted project.
func (s *ApplicationService) Apply(ctx context.Context, actor Actor, projectID int, proposal string, bid model.Money) (*model.Application, error) {
	p, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if err := Authorize(actor, ActionApplyToProject, p); err != nil {
		return nil, err
	}
	if p.Status != model.ProjectPosted {
		return nil, invalidStatef("project is %s, applications are only accepted while posted", p.Status)
	}
	if bid <= 0 {
		return nil, invalidStatef("bid amount must be positive")
	}

	a := &model.Application{
		ProjectID:    projectID,
		FreelancerID: actor.UserID,
		Proposal:     proposal,
		BidAmount:    bid,
		Status:       model.ApplicationPending,
	}
	if err := s.applicationRepo.Insert(ctx, a); err != nil {
		return nil, mapStoreErr(err)
	}
	return a, nil
}

// Hire accepts one application: the project gains its freelancer and goes
// active, the winning application is accepted and every other pending one
// is rejected, all in one transaction.
func (s *ApplicationService) Hire(ctx context.Context, actor Actor, projectID, applicationID int) (*model.Project, error) {
	var out *model.Project
	err := runTx(ctx, s.pool, func(tx pgx.Tx) error {
		p, err := s.projectRepo.GetForUpdate(ctx, tx, projectID)
		if err != nil {
			return mapStoreErr(err)
		}
		if err := Authorize(actor, ActionHireFreelancer, p); err != nil {
			return err
		}
		if err := requireProjectTransition(p.Status, model.ProjectActive); err != nil {
			return err
		}
		if p.FreelancerID != nil {
			return invalidStatef("project already has a freelancer")
		}

		a, err := s.applicationRepo.GetForUpdate(ctx, tx, applicationID)
		if err != nil {
			return mapStoreErr(err)
		}
		if a.ProjectID != projectID {
			return invalidStatef("application does not belong to this project")
		}
		if a.Status != model.ApplicationPending {
			return invalidStatef("application is already %s", a.Status)
		}

		if err := s.applicationRepo.AcceptTx(ctx, tx, a.ID, projectID); err != nil {
			return err
		}
		if err := s.projectRepo.SetFreelancerTx(ctx, tx, projectID, a.FreelancerID); err != nil {
			return err
		}
		p.FreelancerID = &a.FreelancerID
		p.Status = model.ProjectActive

		aggID := int64(p.ID)
		if err := outbox.InsertEventInTx(ctx, tx, s.outboxRepo, "project", &aggID,
			contracts.RoutingProjectHired, contracts.ProjectEventPayload{
				ProjectID:    p.ID,
				ClientID:     p.ClientID,
				FreelancerID: a.FreelancerID,
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

	s.logger.Info("Freelancer hired",
		zap.Int("project_id", out.ID),
		zap.Int("freelancer_id", *out.FreelancerID),
	)
	return out, nil
}

// ListByProject returns the applications on a project, visible only to the
// owning client.
func (s *ApplicationService) ListByProject(ctx context.Context, actor Actor, projectID int) ([]model.Application, error) {
	p, err := s.projectRepo.FindByID(ctx, projectID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if actor.Role != model.RoleAdmin && !(actor.Role == model.RoleClient && p.ClientID == actor.UserID) {
		return nil, forbiddenf("only the project client may list applications")
	}
	return s.applicationRepo.ListByProject(ctx, projectID)
}
