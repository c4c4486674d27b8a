package model

import "time"

// Application statuses.
const (
	ApplicationPending  = "pending"
	ApplicationAccepted = "accepted"
	ApplicationRejected = "rejected"
)

// Application is a freelancer's bid on a posted project. Accepting one is
// the hire action; the rest are rejected in the same transaction.
type Application struct {
	ID           int       `json:"id"`
	ProjectID    int       `json:"project_id"`
	FreelancerID int       `json:"freelancer_id"`
	Proposal     string    `json:"proposal"`
	BidAmount    Money     `json:"bid_amount"`
	Status       string    `json:"status"`
	AppliedAt    time.Time `json:"applied_at"`
}
