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

type MilestoneService struct {
	pool          *pgxpool.Pool
	projectRepo   *repository.ProjectRepository
	milestoneRepo *repository.MilestoneRepository
	outboxRepo    *outbox.Repository
	logger        *zap.Logger
}

func NewMilestoneService(
	pool *pgxpool.Pool,
	projectRepo *repository.ProjectRepository,
	milestoneRepo *repository.MilestoneRepository,
	outboxRepo *outbox.Repository,
	logger *zap.Logger,
) *MilestoneService {
	return &MilestoneService{
		pool:          pool,
		projectRepo:   projectRepo,
		milestoneRepo: milestoneRepo,
		outboxRepo:    outboxRepo,
		logger:        logger,
	}
}

type CreateMilestoneInput struct {
	Title       string
	Description string
	Amount      model.Money
	DueDate     *time.Time
}

// Create adds a milestone to a posted or active project; clients may scope
// the work before a freelancer is hired. The budget ceiling is checked
// under the project row lock so two concurrent creates cannot both slip
// under it.
func (s *MilestoneService) Create(ctx context.Context, actor Actor, projectID int, in CreateMilestoneInput) (*model.Milestone, error) {
	if in.Title == "" {
		return nil, invalidStatef("title is required")
	}
	if in.Amount <= 0 {
		return nil, invalidStatef("amount must be positive")
	}

	var out *model.Milestone
	err := runTx(ctx, s.pool, func(tx pgx.Tx) error {
		p, err := s.projectRepo.GetForUpdate(ctx, tx, projectID)
		if err != nil {
			return mapStoreErr(err)
		}
		if err := Authorize(actor, ActionCreateMilestone, p); err != nil {
			return err
		}
		if p.Status != model.ProjectPosted && p.Status != model.ProjectActive {
			return invalidStatef("milestones can only be added to a posted or active project, project is %s", p.Status)
		}

		existing, err := s.milestoneRepo.ListByProjectTx(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if err := CheckBudget(p.Budget, existing, 0, in.Amount); err != nil {
			return err
		}

		m := &model.Milestone{
			ProjectID:   projectID,
			Title:       in.Title,
			Description: in.Description,
			Amount:      in.Amount,
			Status:      model.MilestonePending,
			DueDate:     in.DueDate,
		}
		if err := s.milestoneRepo.InsertTx(ctx, tx, m); err != nil {
			return mapStoreErr(err)
		}

		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AmendAmount changes a milestone's amount before it is paid. The new
// amount is re-checked against the budget with the milestone's current
// amount excluded from the sum.
func (s *MilestoneService) AmendAmount(ctx context.Context, actor Actor, milestoneID int, amount model.Money) (*model.Milestone, error) {
	if amount <= 0 {
		return nil, invalidStatef("amount must be positive")
	}

	var out *model.Milestone
	err := runTx(ctx, s.pool, func(tx pgx.Tx) error {
		m, p, err := s.lockMilestoneWithProject(ctx, tx, milestoneID)
		if err != nil {
			return err
		}
		if err := Authorize(actor, ActionAmendMilestone, p); err != nil {
			return err
		}
		switch m.Status {
		case model.MilestonePaid, model.MilestoneApproved, model.MilestoneDisputed:
			return invalidStatef("milestone amount is frozen while %s", m.Status)
		}

		existing, err := s.milestoneRepo.ListByProjectTx(ctx, tx, m.ProjectID)
		if err != nil {
			return err
		}
		if err := CheckBudget(p.Budget, existing, m.ID, amount); err != nil {
			return err
		}

		if err := s.milestoneRepo.UpdateAmountTx(ctx, tx, m.ID, amount); err != nil {
			return err
		}
		m.Amount = amount

		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Milestone amount amended",
		zap.Int("milestone_id", out.ID),
		zap.String("amount", out.Amount.String()),
	)
	return out, nil
}

// Submit marks the milestone as delivered and awaiting client review.
func (s *MilestoneService) Submit(ctx context.Context, actor Actor, milestoneID int) (*model.Milestone, error) {
	var out *model.Milestone
	err := runTx(ctx, s.pool, func(tx pgx.Tx) error {
		m, p, err := s.lockMilestoneWithProject(ctx, tx, milestoneID)
		if err != nil {
			return err
		}
		if err := Authorize(actor, ActionSubmitMilestone, p); err != nil {
			return err
		}
		if err := requireMilestoneTransition(m.Status, model.MilestoneSubmitted); err != nil {
			return err
		}

		if err := s.milestoneRepo.SubmitTx(ctx, tx, m.ID); err != nil {
			return err
		}
		m.Status = model.MilestoneSubmitted

		aggID := int64(m.ID)
		if err := outbox.InsertEventInTx(ctx, tx, s.outboxRepo, "milestone", &aggID,
			contracts.RoutingMilestoneSubmitted, milestonePayload(m, p)); err != nil {
			return err
		}

		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Milestone submitted", zap.Int("milestone_id", out.ID))
	return out, nil
}

// Get returns a milestone visible to either party of the engagement.
func (s *MilestoneService) Get(ctx context.Context, milestoneID int) (*model.Milestone, error) {
	m, err := s.milestoneRepo.FindByID(ctx, milestoneID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return m, nil
}

// lockMilestoneWithProject locks project first, then milestone, matching
// every other flow so concurrent transactions cannot deadlock.
func (s *MilestoneService) lockMilestoneWithProject(ctx context.Context, tx pgx.Tx, milestoneID int) (*model.Milestone, *model.Project, error) {
	m, err := s.milestoneRepo.FindByID(ctx, milestoneID)
	if err != nil {
		return nil, nil, mapStoreErr(err)
	}

	p, err := s.projectRepo.GetForUpdate(ctx, tx, m.ProjectID)
	if err != nil {
		return nil, nil, mapStoreErr(err)
	}

	// Re-read under the lock; the unlocked read only located the project.
	m, err = s.milestoneRepo.GetForUpdate(ctx, tx, milestoneID)
	if err != nil {
		return nil, nil, mapStoreErr(err)
	}
	return m, p, nil
}

func milestonePayload(m *model.Milestone, p *model.Project) contracts.MilestoneEventPayload {
	freelancerID := 0
	if p.FreelancerID != nil {
		freelancerID = *p.FreelancerID
	}
	return contracts.MilestoneEventPayload{
		MilestoneID:  m.ID,
		ProjectID:    p.ID,
		ClientID:     p.ClientID,
		FreelancerID: freelancerID,
		Title:        m.Title,
		Amount:       m.Amount,
		Status:       m.Status,
		Feedback:     m.Feedback,
	}
}
