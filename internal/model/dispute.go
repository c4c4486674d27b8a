package model

import "time"

// Dispute statuses. resolved is terminal.
const (
	DisputeOpen     = "open"
	DisputeResolved = "resolved"
)

// Dispute resolution outcomes.
const (
	OutcomeFavorFreelancer = "favor_freelancer"
	OutcomeFavorClient     = "favor_client"
)

type Dispute struct {
	ID          int        `json:"id"`
	MilestoneID int        `json:"milestone_id"`
	RaisedBy    int        `json:"raised_by"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Resolution  string     `json:"resolution,omitempty"`
	Outcome     string     `json:"outcome,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}
