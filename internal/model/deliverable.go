package model

import "time"

// Deliverable statuses.
const (
	DeliverableSubmitted   = "submitted"
	DeliverableUnderReview = "under_review"
	DeliverableAccepted    = "accepted"
	DeliverableRejected    = "rejected"
)

// Deliverable is one submission against a milestone. Resubmissions always
// create a new row so the full history survives for dispute evidence.
type Deliverable struct {
	ID          int       `json:"id"`
	MilestoneID int       `json:"milestone_id"`
	Link        string    `json:"link"`
	Status      string    `json:"status"`
	Feedback    string    `json:"feedback,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}
