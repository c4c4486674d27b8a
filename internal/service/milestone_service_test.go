package service

import (
	"context"
	"errors"
	"testing"

	"freelancehub/internal/model"
)

// Database-backed; see settlement_service_test.go for the fixture.

func TestCreateMilestoneOnPostedProject(t *testing.T) {
	f := setupSettlement(t)
	ctx := context.Background()

	// Clients scope milestones on a posted project before anyone is hired.
	var postedID int
	if err := f.pool.QueryRow(ctx,
		`INSERT INTO projects (title, budget, status, client_id) VALUES ($1, $2, $3, $4) RETURNING id`,
		"posted project", model.MustMoney("500.00"), model.ProjectPosted, f.client.UserID,
	).Scan(&postedID); err != nil {
		t.Fatalf("insert posted project: %v", err)
	}

	m, err := f.milestones.Create(ctx, f.client, postedID, CreateMilestoneInput{
		Title:  "scoping",
		Amount: model.MustMoney("200.00"),
	})
	if err != nil {
		t.Fatalf("create on posted project: %v", err)
	}
	if m.Status != model.MilestonePending {
		t.Fatalf("milestone status = %s, want pending", m.Status)
	}

	var draftID int
	if err := f.pool.QueryRow(ctx,
		`INSERT INTO projects (title, budget, status, client_id) VALUES ($1, $2, $3, $4) RETURNING id`,
		"draft project", model.MustMoney("500.00"), model.ProjectDraft, f.client.UserID,
	).Scan(&draftID); err != nil {
		t.Fatalf("insert draft project: %v", err)
	}
	if _, err := f.milestones.Create(ctx, f.client, draftID, CreateMilestoneInput{
		Title:  "too early",
		Amount: model.MustMoney("100.00"),
	}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on draft project, got %v", err)
	}
}

func TestPostDeliverableWhileSubmitted(t *testing.T) {
	f := setupSettlement(t)
	ctx := context.Background()

	m, err := f.milestones.Create(ctx, f.client, f.project.ID, CreateMilestoneInput{
		Title:  "phase two",
		Amount: model.MustMoney("300.00"),
	})
	if err != nil {
		t.Fatalf("create milestone: %v", err)
	}

	if _, err := f.deliverables.Post(ctx, f.freelancer, m.ID, "https://example.test/v1"); err != nil {
		t.Fatalf("first post: %v", err)
	}
	// A follow-up artifact lands on the already-submitted milestone.
	if _, err := f.deliverables.Post(ctx, f.freelancer, m.ID, "https://example.test/v2"); err != nil {
		t.Fatalf("second post while submitted: %v", err)
	}

	got, err := f.milestones.Get(ctx, m.ID)
	if err != nil {
		t.Fatalf("get milestone: %v", err)
	}
	if got.Status != model.MilestoneSubmitted {
		t.Fatalf("milestone status = %s, want submitted", got.Status)
	}

	list, err := f.deliverables.ListByMilestone(ctx, m.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("deliverable count = %d, want 2", len(list))
	}
}
