package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	contracts "freelancehub/contracts/mq"
	"freelancehub/internal/model"
	"freelancehub/internal/repository"
	"freelancehub/pkg/metrics"
	"freelancehub/pkg/outbox"
)

type DisputeService struct {
	pool          *pgxpool.Pool
	projectRepo   *repository.ProjectRepository
	milestoneRepo *repository.MilestoneRepository
	disputeRepo   *repository.DisputeRepository
	invoiceRepo   *repository.InvoiceRepository
	outboxRepo    *outbox.Repository
	logger        *zap.Logger
}

func NewDisputeService(
	pool *pgxpool.Pool,
	projectRepo *repository.ProjectRepository,
	milestoneRepo *repository.MilestoneRepository,
	disputeRepo *repository.DisputeRepository,
	invoiceRepo *repository.InvoiceRepository,
	outboxRepo *outbox.Repository,
	logger *zap.Logger,
) *DisputeService {
	return &DisputeService{
		pool:          pool,
		projectRepo:   projectRepo,
		milestoneRepo: milestoneRepo,
		disputeRepo:   disputeRepo,
		invoiceRepo:   invoiceRepo,
		outboxRepo:    outboxRepo,
		logger:        logger,
	}
}

// Open raises a dispute on a submitted or approved milestone. A milestone
// holds at most one open dispute; the partial unique index backs the
// in-transaction check against races.
func (s *DisputeService) Open(ctx context.Context, actor Actor, milestoneID int, description string) (*model.Dispute, error) {
	if description == "" {
		return nil, invalidStatef("dispute description is required")
	}

	var out *model.Dispute
	err := runTx(ctx, s.pool, func(tx pgx.Tx) error {
		m, err := s.milestoneRepo.FindByID(ctx, milestoneID)
		if err != nil {
			return mapStoreErr(err)
		}
		p, err := s.projectRepo.GetForUpdate(ctx, tx, m.ProjectID)
		if err != nil {
			return mapStoreErr(err)
		}
		if err := Authorize(actor, ActionOpenDispute, p); err != nil {
			return err
		}
		m, err = s.milestoneRepo.GetForUpdate(ctx, tx, milestoneID)
		if err != nil {
			return mapStoreErr(err)
		}
		if err := requireMilestoneTransition(m.Status, model.MilestoneDisputed); err != nil {
			return err
		}

		open, err := s.disputeRepo.HasOpenByMilestoneTx(ctx, tx, milestoneID)
		if err != nil {
			return err
		}
		if open {
			return fmt.Errorf("%w: milestone %d already has an open dispute", ErrConflict, milestoneID)
		}

		d := &model.Dispute{
			MilestoneID: milestoneID,
			RaisedBy:    actor.UserID,
			Description: description,
			Status:      model.DisputeOpen,
		}
		if err := s.disputeRepo.InsertTx(ctx, tx, d); err != nil {
			return mapStoreErr(err)
		}
		if err := s.milestoneRepo.DisputeTx(ctx, tx, milestoneID); err != nil {
			return err
		}
		m.Status = model.MilestoneDisputed

		aggID := int64(d.ID)
		if err := outbox.InsertEventInTx(ctx, tx, s.outboxRepo, "dispute", &aggID,
			contracts.RoutingDisputeOpened, disputePayload(d, m, p)); err != nil {
			return err
		}

		metrics.DisputesTotal.WithLabelValues("opened").Inc()
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Dispute opened",
		zap.Int("dispute_id", out.ID),
		zap.Int("milestone_id", out.MilestoneID),
	)
	return out, nil
}

// Resolve is the admin verdict on an open dispute. The outcome forces the
// milestone: favor_freelancer approves it, favor_client rejects it back to
// the freelancer.
func (s *DisputeService) Resolve(ctx context.Context, actor Actor, disputeID int, resolution, outcome string) (*model.Dispute, error) {
	if resolution == "" {
		return nil, invalidStatef("resolution text is required")
	}
	if outcome != model.OutcomeFavorFreelancer && outcome != model.OutcomeFavorClient {
		return nil, invalidStatef("outcome must be %s or %s", model.OutcomeFavorFreelancer, model.OutcomeFavorClient)
	}

	var out *model.Dispute
	err := runTx(ctx, s.pool, func(tx pgx.Tx) error {
		d, err := s.disputeRepo.FindByID(ctx, disputeID)
		if err != nil {
			return mapStoreErr(err)
		}
		m, err := s.milestoneRepo.FindByID(ctx, d.MilestoneID)
		if err != nil {
			return mapStoreErr(err)
		}
		p, err := s.projectRepo.GetForUpdate(ctx, tx, m.ProjectID)
		if err != nil {
			return mapStoreErr(err)
		}
		if err := Authorize(actor, ActionResolveDispute, p); err != nil {
			return err
		}
		m, err = s.milestoneRepo.GetForUpdate(ctx, tx, d.MilestoneID)
		if err != nil {
			return mapStoreErr(err)
		}
		d, err = s.disputeRepo.GetForUpdate(ctx, tx, disputeID)
		if err != nil {
			return mapStoreErr(err)
		}
		if d.Status == model.DisputeResolved {
			return fmt.Errorf("%w: dispute %d", ErrAlreadyResolved, d.ID)
		}

		target := model.MilestoneRejected
		if outcome == model.OutcomeFavorFreelancer {
			target = model.MilestoneApproved
		}
		if err := requireMilestoneTransition(m.Status, target); err != nil {
			return err
		}

		if err := s.disputeRepo.ResolveTx(ctx, tx, d.ID, resolution, outcome); err != nil {
			return err
		}
		d.Status = model.DisputeResolved
		d.Resolution = resolution
		d.Outcome = outcome

		if target == model.MilestoneApproved {
			err = s.milestoneRepo.ApproveTx(ctx, tx, m.ID)
		} else {
			err = s.milestoneRepo.RejectTx(ctx, tx, m.ID, resolution)
		}
		if err != nil {
			return err
		}
		m.Status = target

		// A rejection strips the approval the invoice was based on; void
		// any unpaid invoice so it cannot be charged later.
		if target == model.MilestoneRejected {
			if err := s.invoiceRepo.VoidByMilestoneTx(ctx, tx, m.ID); err != nil {
				return err
			}
		}

		aggID := int64(d.ID)
		if err := outbox.InsertEventInTx(ctx, tx, s.outboxRepo, "dispute", &aggID,
			contracts.RoutingDisputeResolved, disputePayload(d, m, p)); err != nil {
			return err
		}

		metrics.DisputesTotal.WithLabelValues("resolved").Inc()
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Dispute resolved",
		zap.Int("dispute_id", out.ID),
		zap.String("outcome", out.Outcome),
	)
	return out, nil
}

func (s *DisputeService) Get(ctx context.Context, disputeID int) (*model.Dispute, error) {
	d, err := s.disputeRepo.FindByID(ctx, disputeID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return d, nil
}

func disputePayload(d *model.Dispute, m *model.Milestone, p *model.Project) contracts.DisputeEventPayload {
	freelancerID := 0
	if p.FreelancerID != nil {
		freelancerID = *p.FreelancerID
	}
	return contracts.DisputeEventPayload{
		DisputeID:    d.ID,
		MilestoneID:  m.ID,
		ProjectID:    p.ID,
		ClientID:     p.ClientID,
		FreelancerID: freelancerID,
		RaisedBy:     d.RaisedBy,
		Outcome:      d.Outcome,
		Status:       d.Status,
	}
}
