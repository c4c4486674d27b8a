package model

import "time"

type Review struct {
	ID         int       `json:"id"`
	ProjectID  int       `json:"project_id"`
	ReviewerID int       `json:"reviewer_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
