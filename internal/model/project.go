package model

import "time"

// Project statuses.
const (
	ProjectDraft     = "draft"
	ProjectPosted    = "posted"
	ProjectActive    = "active"
	ProjectCompleted = "completed"
	ProjectCancelled = "cancelled"
)

type Project struct {
	ID           int        `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Budget       Money      `json:"budget"`
	Status       string     `json:"status"`
	ClientID     int        `json:"client_id"`
	FreelancerID *int       `json:"freelancer_id,omitempty"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	Category     string     `json:"category,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
