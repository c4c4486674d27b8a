package model

import "time"

// Payment statuses. completed, failed and refunded are terminal.
const (
	PaymentPending    = "pending"
	PaymentProcessing = "processing"
	PaymentCompleted  = "completed"
	PaymentFailed     = "failed"
	PaymentRefunded   = "refunded"
)

type Payment struct {
	ID             int        `json:"id"`
	InvoiceID      int        `json:"invoice_id"`
	ProjectID      int        `json:"project_id"`
	ClientID       int        `json:"client_id"`
	Amount         Money      `json:"amount"`
	Status         string     `json:"status"`
	Method         string     `json:"method,omitempty"`
	TransactionID  string     `json:"transaction_id"`
	IdempotencyKey string     `json:"idempotency_key"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Terminal reports whether the payment can no longer change status.
func (p *Payment) Terminal() bool {
	switch p.Status {
	case PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}
