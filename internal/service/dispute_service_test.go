package service

import (
	"context"
	"errors"
	"testing"

	"freelancehub/internal/model"
)

// These run against a real database; see settlement_service_test.go for
// the fixture. They skip unless TEST_DATABASE_URL is set.

func TestDisputeLifecycle(t *testing.T) {
	f := setupSettlement(t)
	ctx := context.Background()

	if _, err := f.disputes.Open(ctx, f.client, f.milestone.ID, ""); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for empty description, got %v", err)
	}

	d, err := f.disputes.Open(ctx, f.client, f.milestone.ID, "scope creep")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if d.Status != model.DisputeOpen {
		t.Fatalf("dispute status = %s, want open", d.Status)
	}

	m, err := f.milestones.Get(ctx, f.milestone.ID)
	if err != nil {
		t.Fatalf("get milestone: %v", err)
	}
	if m.Status != model.MilestoneDisputed {
		t.Fatalf("milestone status = %s, want disputed", m.Status)
	}

	// A milestone holds one dispute at a time.
	if _, err := f.disputes.Open(ctx, f.freelancer, f.milestone.ID, "counter claim"); err == nil {
		t.Fatal("expected error opening a second dispute")
	}

	// Resolution is admin-only.
	if _, err := f.disputes.Resolve(ctx, f.client, d.ID, "I win", model.OutcomeFavorClient); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for client resolve, got %v", err)
	}
	if _, err := f.disputes.Resolve(ctx, f.admin, d.ID, "work meets the brief", "split"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for unknown outcome, got %v", err)
	}

	resolved, err := f.disputes.Resolve(ctx, f.admin, d.ID, "work meets the brief", model.OutcomeFavorFreelancer)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != model.DisputeResolved || resolved.Outcome != model.OutcomeFavorFreelancer {
		t.Fatalf("resolved = %s/%s", resolved.Status, resolved.Outcome)
	}

	m, err = f.milestones.Get(ctx, f.milestone.ID)
	if err != nil {
		t.Fatalf("get milestone: %v", err)
	}
	if m.Status != model.MilestoneApproved {
		t.Fatalf("milestone status = %s after favor_freelancer, want approved", m.Status)
	}

	// A second verdict bounces and the first resolution stands.
	if _, err := f.disputes.Resolve(ctx, f.admin, d.ID, "changed my mind", model.OutcomeFavorClient); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
	got, err := f.disputes.Get(ctx, d.ID)
	if err != nil {
		t.Fatalf("get dispute: %v", err)
	}
	if got.Resolution != "work meets the brief" || got.Outcome != model.OutcomeFavorFreelancer {
		t.Fatalf("resolution changed after second resolve: %q/%s", got.Resolution, got.Outcome)
	}
}

func TestDisputeResolveFavorClientRejectsMilestone(t *testing.T) {
	f := setupSettlement(t)
	ctx := context.Background()

	d, err := f.disputes.Open(ctx, f.freelancer, f.milestone.ID, "client withholding approval")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.disputes.Resolve(ctx, f.admin, d.ID, "deliverable incomplete", model.OutcomeFavorClient); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	m, err := f.milestones.Get(ctx, f.milestone.ID)
	if err != nil {
		t.Fatalf("get milestone: %v", err)
	}
	if m.Status != model.MilestoneRejected {
		t.Fatalf("milestone status = %s after favor_client, want rejected", m.Status)
	}
}
