package model

import "time"

// Milestone statuses. "paid" is terminal and reachable only through
// approved -> invoice -> completed payment.
const (
	MilestonePending   = "pending"
	MilestoneSubmitted = "submitted"
	MilestoneApproved  = "approved"
	MilestoneRejected  = "rejected"
	MilestoneDisputed  = "disputed"
	MilestonePaid      = "paid"
)

type Milestone struct {
	ID          int        `json:"id"`
	ProjectID   int        `json:"project_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Amount      Money      `json:"amount"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Feedback    string     `json:"feedback,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CountsAgainstBudget reports whether the milestone amount is part of the
// project budget ceiling. Rejected milestones are the only exclusion.
func (m *Milestone) CountsAgainstBudget() bool {
	return m.Status != MilestoneRejected
}
