package model

import "time"

// Notification is a worker-written record of an engagement event addressed
// to a user. Delivery (email, push) happens outside this service.
type Notification struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
