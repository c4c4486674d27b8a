package model

import "time"

// Invoice statuses.
const (
	InvoicePending = "pending"
	InvoiceSent    = "sent"
	InvoicePaid    = "paid"
	InvoiceOverdue = "overdue"
	InvoiceVoid    = "void"
)

type Invoice struct {
	ID            int        `json:"id"`
	MilestoneID   int        `json:"milestone_id"`
	ProjectID     int        `json:"project_id"`
	FreelancerID  int        `json:"freelancer_id"`
	Amount        Money      `json:"amount"`
	Status        string     `json:"status"`
	InvoiceNumber string     `json:"invoice_number"`
	Description   string     `json:"description,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
