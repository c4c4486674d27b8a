package service

import (
	"errors"
	"math/rand"
	"testing"

	"freelancehub/internal/model"
)

func TestProjectTransitions(t *testing.T) {
	tests := []struct {
		from, to string
		ok       bool
	}{
		{model.ProjectDraft, model.ProjectPosted, true},
		{model.ProjectDraft, model.ProjectCancelled, true},
		{model.ProjectDraft, model.ProjectActive, false},
		{model.ProjectPosted, model.ProjectActive, true},
		{model.ProjectPosted, model.ProjectCompleted, false},
		{model.ProjectActive, model.ProjectCompleted, true},
		{model.ProjectActive, model.ProjectCancelled, true},
		{model.ProjectActive, model.ProjectPosted, false},
		{model.ProjectCompleted, model.ProjectCancelled, false},
		{model.ProjectCancelled, model.ProjectPosted, false},
	}
	for _, tt := range tests {
		if got := CanProjectTransition(tt.from, tt.to); got != tt.ok {
			t.Errorf("CanProjectTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestMilestoneTransitions(t *testing.T) {
	tests := []struct {
		from, to string
		ok       bool
	}{
		{model.MilestonePending, model.MilestoneSubmitted, true},
		{model.MilestonePending, model.MilestoneApproved, false},
		{model.MilestoneSubmitted, model.MilestoneApproved, true},
		{model.MilestoneSubmitted, model.MilestoneRejected, true},
		{model.MilestoneSubmitted, model.MilestoneDisputed, true},
		{model.MilestoneSubmitted, model.MilestonePaid, false},
		{model.MilestoneApproved, model.MilestonePaid, true},
		{model.MilestoneApproved, model.MilestoneDisputed, true},
		{model.MilestoneApproved, model.MilestoneSubmitted, false},
		{model.MilestoneRejected, model.MilestoneSubmitted, true},
		{model.MilestoneRejected, model.MilestonePaid, false},
		{model.MilestoneDisputed, model.MilestoneApproved, true},
		{model.MilestoneDisputed, model.MilestoneRejected, true},
		{model.MilestoneDisputed, model.MilestonePaid, false},
		{model.MilestonePaid, model.MilestoneSubmitted, false},
		{model.MilestonePaid, model.MilestoneDisputed, false},
	}
	for _, tt := range tests {
		if got := CanMilestoneTransition(tt.from, tt.to); got != tt.ok {
			t.Errorf("CanMilestoneTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestCheckBudget(t *testing.T) {
	budget := model.MustMoney("1000.00")
	milestones := []model.Milestone{
		{ID: 1, Amount: model.MustMoney("600.00"), Status: model.MilestonePaid},
	}

	if err := CheckBudget(budget, milestones, 0, model.MustMoney("400.00")); err != nil {
		t.Fatalf("600 paid + 400 candidate should fit a 1000 budget: %v", err)
	}
	if err := CheckBudget(budget, milestones, 0, model.MustMoney("500.00")); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("600 paid + 500 candidate must exceed a 1000 budget, got %v", err)
	}
	// One cent over the line.
	if err := CheckBudget(budget, milestones, 0, model.MustMoney("400.01")); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded at one cent over, got %v", err)
	}
}

func TestCheckBudgetRejectedExcluded(t *testing.T) {
	budget := model.MustMoney("1000.00")
	milestones := []model.Milestone{
		{ID: 1, Amount: model.MustMoney("600.00"), Status: model.MilestoneRejected},
		{ID: 2, Amount: model.MustMoney("300.00"), Status: model.MilestoneApproved},
	}

	// The rejected milestone releases its amount back to the budget.
	if err := CheckBudget(budget, milestones, 0, model.MustMoney("700.00")); err != nil {
		t.Fatalf("rejected milestone should not count: %v", err)
	}
	if err := CheckBudget(budget, milestones, 0, model.MustMoney("700.01")); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
}

func TestCheckBudgetAmendExcludesSelf(t *testing.T) {
	budget := model.MustMoney("1000.00")
	milestones := []model.Milestone{
		{ID: 1, Amount: model.MustMoney("600.00"), Status: model.MilestonePending},
		{ID: 2, Amount: model.MustMoney("300.00"), Status: model.MilestonePending},
	}

	// Amending milestone 1 frees its current 600 before checking.
	if err := CheckBudget(budget, milestones, 1, model.MustMoney("700.00")); err != nil {
		t.Fatalf("amend within budget rejected: %v", err)
	}
	if err := CheckBudget(budget, milestones, 1, model.MustMoney("700.01")); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
}

// Random sequences of creates and amends must never leave the active total
// above the budget when every step passes the check.
func TestCheckBudgetNeverExceeded(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	budget := model.Money(100_000) // 1000.00

	for round := 0; round < 200; round++ {
		var milestones []model.Milestone
		nextID := 1

		for step := 0; step < 30; step++ {
			amount := model.Money(rng.Int63n(60_000) + 1)

			if len(milestones) > 0 && rng.Intn(2) == 0 {
				idx := rng.Intn(len(milestones))
				target := &milestones[idx]
				if err := CheckBudget(budget, milestones, target.ID, amount); err == nil {
					target.Amount = amount
				}
			} else {
				if err := CheckBudget(budget, milestones, 0, amount); err == nil {
					milestones = append(milestones, model.Milestone{
						ID:     nextID,
						Amount: amount,
						Status: model.MilestonePending,
					})
					nextID++
				}
			}

			var total model.Money
			for _, m := range milestones {
				if m.CountsAgainstBudget() {
					total += m.Amount
				}
			}
			if total > budget {
				t.Fatalf("round %d step %d: active total %s exceeds budget %s", round, step, total, budget)
			}
		}
	}
}
