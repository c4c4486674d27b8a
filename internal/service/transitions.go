package service

import (
	"freelancehub/internal/model"
)

// Transition tables for the engagement state machines. Keeping them as
// data makes the legal moves reviewable in one place and lets tests
// enumerate every pair.

var projectTransitions = map[string][]string{
	model.ProjectDraft:  {model.ProjectPosted, model.ProjectCancelled},
	model.ProjectPosted: {model.ProjectActive, model.ProjectCancelled},
	model.ProjectActive: {model.ProjectCompleted, model.ProjectCancelled},
	// completed and cancelled are terminal
}

var milestoneTransitions = map[string][]string{
	model.MilestonePending:   {model.MilestoneSubmitted},
	model.MilestoneSubmitted: {model.MilestoneApproved, model.MilestoneRejected, model.MilestoneDisputed},
	model.MilestoneApproved:  {model.MilestoneDisputed, model.MilestonePaid},
	model.MilestoneRejected:  {model.MilestoneSubmitted},
	model.MilestoneDisputed:  {model.MilestoneApproved, model.MilestoneRejected},
	// paid is terminal
}

func canTransition(table map[string][]string, from, to string) bool {
	for _, s := range table[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanProjectTransition reports whether a project may move from one status
// to another.
func CanProjectTransition(from, to string) bool {
	return canTransition(projectTransitions, from, to)
}

// CanMilestoneTransition reports whether a milestone may move from one
// status to another. Note there is no edge into paid except from approved.
func CanMilestoneTransition(from, to string) bool {
	return canTransition(milestoneTransitions, from, to)
}

func requireMilestoneTransition(from, to string) error {
	if !CanMilestoneTransition(from, to) {
		return invalidStatef("milestone cannot move from %s to %s", from, to)
	}
	return nil
}

func requireProjectTransition(from, to string) error {
	if !CanProjectTransition(from, to) {
		return invalidStatef("project cannot move from %s to %s", from, to)
	}
	return nil
}

// CheckBudget enforces the project budget ceiling: the sum of amounts over
// milestones still counting against the budget, plus the candidate amount,
// must not exceed the budget.
func CheckBudget(budget model.Money, existing []model.Milestone, excludeID int, candidate model.Money) error {
	total := candidate
	for _, m := range existing {
		if m.ID == excludeID {
			continue
		}
		if m.CountsAgainstBudget() {
			total += m.Amount
		}
	}
	if total > budget {
		return budgetExceededf("active milestones would total %s against a budget of %s", total, budget)
	}
	return nil
}
