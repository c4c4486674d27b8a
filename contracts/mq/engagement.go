package mq

import (
	"time"

	"freelancehub/internal/model"
)

// Routing keys for engagement lifecycle events published via the outbox.
const (
	RoutingProjectPosted      = "project.posted"
	RoutingProjectHired       = "project.hired"
	RoutingProjectCompleted   = "project.completed"
	RoutingProjectCancelled   = "project.cancelled"
	RoutingMilestoneSubmitted = "milestone.submitted"
	RoutingMilestoneApproved  = "milestone.approved"
	RoutingMilestoneRejected  = "milestone.rejected"
	RoutingInvoiceGenerated   = "invoice.generated"
	RoutingInvoiceOverdue     = "invoice.overdue"
	RoutingPaymentCompleted   = "payment.completed"
	RoutingPaymentFailed      = "payment.failed"
	RoutingDisputeOpened      = "dispute.opened"
	RoutingDisputeResolved    = "dispute.resolved"
)

type ProjectEventPayload struct {
	ProjectID    int    `json:"project_id"`
	ClientID     int    `json:"client_id"`
	FreelancerID int    `json:"freelancer_id,omitempty"`
	Title        string `json:"title"`
	Status       string `json:"status"`
}

type MilestoneEventPayload struct {
	MilestoneID  int         `json:"milestone_id"`
	ProjectID    int         `json:"project_id"`
	ClientID     int         `json:"client_id"`
	FreelancerID int         `json:"freelancer_id"`
	Title        string      `json:"title"`
	Amount       model.Money `json:"amount"`
	Status       string      `json:"status"`
	Feedback     string      `json:"feedback,omitempty"`
}

type InvoiceEventPayload struct {
	InvoiceID     int         `json:"invoice_id"`
	MilestoneID   int         `json:"milestone_id"`
	ProjectID     int         `json:"project_id"`
	ClientID      int         `json:"client_id"`
	FreelancerID  int         `json:"freelancer_id"`
	InvoiceNumber string      `json:"invoice_number"`
	Amount        model.Money `json:"amount"`
	Status        string      `json:"status"`
}

type PaymentEventPayload struct {
	PaymentID     int         `json:"payment_id"`
	InvoiceID     int         `json:"invoice_id"`
	MilestoneID   int         `json:"milestone_id"`
	ProjectID     int         `json:"project_id"`
	ClientID      int         `json:"client_id"`
	FreelancerID  int         `json:"freelancer_id"`
	TransactionID string      `json:"transaction_id"`
	Amount        model.Money `json:"amount"`
	Status        string      `json:"status"`
	ProcessedAt   time.Time   `json:"processed_at"`
}

type DisputeEventPayload struct {
	DisputeID    int    `json:"dispute_id"`
	MilestoneID  int    `json:"milestone_id"`
	ProjectID    int    `json:"project_id"`
	ClientID     int    `json:"client_id"`
	FreelancerID int    `json:"freelancer_id"`
	RaisedBy     int    `json:"raised_by,omitempty"`
	Outcome      string `json:"outcome,omitempty"`
	Status       string `json:"status"`
}
