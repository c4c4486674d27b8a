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

type DeliverableService struct {
	pool            *pgxpool.Pool
	projectRepo     *repository.ProjectRepository
	milestoneRepo   *repository.MilestoneRepository
	deliverableRepo *repository.DeliverableRepository
	outboxRepo      *outbox.Repository
	logger          *zap.Logger
}

func NewDeliverableService(
	pool *pgxpool.Pool,
	projectRepo *repository.ProjectRepository,
	milestoneRepo *repository.MilestoneRepository,
	deliverableRepo *repository.DeliverableRepository,
	outboxRepo *outbox.Repository,
	logger *zap.Logger,
) *DeliverableService {
	return &DeliverableService{
		pool:            pool,
		projectRepo:     projectRepo,
		milestoneRepo:   milestoneRepo,
		deliverableRepo: deliverableRepo,
		outboxRepo:      outboxRepo,
		logger:          logger,
	}
}

// Post attaches a deliverable to a milestone and submits the milestone for
// review in the same transaction. A resubmission after rejection creates a
// fresh deliverable row; prior ones keep their history. Posting while the
// milestone is already submitted just adds the deliverable.
func (s *DeliverableService) Post(ctx context.Context, actor Actor, milestoneID int, link string) (*model.Deliverable, error) {
	if link == "" {
		return nil, invalidStatef("deliverable link is required")
	}

	var out *model.Deliverable
	err := runTx(ctx, s.pool, func(tx pgx.Tx) error {
		m, p, err := s.lockMilestoneWithProject(ctx, tx, milestoneID)
		if err != nil {
			return err
		}
		if err := Authorize(actor, ActionPostDeliverable, p); err != nil {
			return err
		}
		alreadySubmitted := m.Status == model.MilestoneSubmitted
		if !alreadySubmitted {
			if err := requireMilestoneTransition(m.Status, model.MilestoneSubmitted); err != nil {
				return err
			}
		}

		d := &model.Deliverable{
			MilestoneID: m.ID,
			Link:        link,
			Status:      model.DeliverableSubmitted,
		}
		if err := s.deliverableRepo.InsertTx(ctx, tx, d); err != nil {
			return err
		}
		if !alreadySubmitted {
			if err := s.milestoneRepo.SubmitTx(ctx, tx, m.ID); err != nil {
				return err
			}
			m.Status = model.MilestoneSubmitted

			aggID := int64(m.ID)
			if err := outbox.InsertEventInTx(ctx, tx, s.outboxRepo, "milestone", &aggID,
				contracts.RoutingMilestoneSubmitted, milestonePayload(m, p)); err != nil {
				return err
			}
		}

		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Deliverable posted",
		zap.Int("deliverable_id", out.ID),
		zap.Int("milestone_id", out.MilestoneID),
	)
	return out, nil
}

// Review is the client's verdict on a submitted milestone. Acceptance
// approves the milestone; rejection requires feedback and sends it back to
// the freelancer for resubmission.
func (s *DeliverableService) Review(ctx context.Context, actor Actor, milestoneID int, accept bool, feedback string) (*model.Milestone, error) {
	if !accept && feedback == "" {
		return nil, invalidStatef("rejection requires feedback")
	}

	var out *model.Milestone
	err := runTx(ctx, s.pool, func(tx pgx.Tx) error {
		m, p, err := s.lockMilestoneWithProject(ctx, tx, milestoneID)
		if err != nil {
			return err
		}
		if err := Authorize(actor, ActionReviewMilestone, p); err != nil {
			return err
		}

		target := model.MilestoneRejected
		routing := contracts.RoutingMilestoneRejected
		deliverableStatus := model.DeliverableRejected
		if accept {
			target = model.MilestoneApproved
			routing = contracts.RoutingMilestoneApproved
			deliverableStatus = model.DeliverableAccepted
		}
		if err := requireMilestoneTransition(m.Status, target); err != nil {
			return err
		}

		if accept {
			if err := s.milestoneRepo.ApproveTx(ctx, tx, m.ID); err != nil {
				return err
			}
		} else {
			if err := s.milestoneRepo.RejectTx(ctx, tx, m.ID, feedback); err != nil {
				return err
			}
		}
		m.Status = target
		m.Feedback = feedback

		if err := s.deliverableRepo.SetLatestStatusTx(ctx, tx, m.ID, deliverableStatus, feedback); err != nil {
			return err
		}

		aggID := int64(m.ID)
		if err := outbox.InsertEventInTx(ctx, tx, s.outboxRepo, "milestone", &aggID,
			routing, milestonePayload(m, p)); err != nil {
			return err
		}

		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Milestone reviewed",
		zap.Int("milestone_id", out.ID),
		zap.String("status", out.Status),
	)
	return out, nil
}

func (s *DeliverableService) ListByMilestone(ctx context.Context, milestoneID int) ([]model.Deliverable, error) {
	if _, err := s.milestoneRepo.FindByID(ctx, milestoneID); err != nil {
		return nil, mapStoreErr(err)
	}
	return s.deliverableRepo.FindByMilestoneID(ctx, milestoneID)
}

// lockMilestoneWithProject duplicates the milestone service's lock order,
// project before milestone.
func (s *DeliverableService) lockMilestoneWithProject(ctx context.Context, tx pgx.Tx, milestoneID int) (*model.Milestone, *model.Project, error) {
	m, err := s.milestoneRepo.FindByID(ctx, milestoneID)
	if err != nil {
		return nil, nil, mapStoreErr(err)
	}
	p, err := s.projectRepo.GetForUpdate(ctx, tx, m.ProjectID)
	if err != nil {
		return nil, nil, mapStoreErr(err)
	}
	m, err = s.milestoneRepo.GetForUpdate(ctx, tx, milestoneID)
	if err != nil {
		return nil, nil, mapStoreErr(err)
	}
	return m, p, nil
}
