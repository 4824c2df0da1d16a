package domain

import "time"

// Job is a scheduled unit of field work for a customer.
type Job struct {
	JobID        string     `json:"job_id"`
	BusinessID   string     `json:"business_id"`
	CustomerID   string     `json:"customer_id"`
	Title        string     `json:"title"`
	Status       string     `json:"status"` // pending, scheduled, completed
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Invoice bills a customer for a completed job.
type Invoice struct {
	InvoiceID   string    `json:"invoice_id"`
	BusinessID  string    `json:"business_id"`
	JobID       string    `json:"job_id"`
	CustomerID  string    `json:"customer_id"`
	AmountCents int64     `json:"amount_cents"`
	Status      string    `json:"status"` // draft, sent, paid, void
	CreatedAt   time.Time `json:"created_at"`
}

// Quote is a priced proposal sent to a customer before work is booked.
type Quote struct {
	QuoteID     string    `json:"quote_id"`
	BusinessID  string    `json:"business_id"`
	CustomerID  string    `json:"customer_id"`
	Title       string    `json:"title"`
	AmountCents int64     `json:"amount_cents"`
	Status      string    `json:"status"` // open, accepted, declined
	CreatedAt   time.Time `json:"created_at"`
}

// Reminder is an outbound message queued for delivery by the messaging worker.
type Reminder struct {
	ReminderID string    `json:"reminder_id"`
	BusinessID string    `json:"business_id"`
	CustomerID string    `json:"customer_id"`
	Channel    string    `json:"channel"` // email or sms
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChatMessage is one persisted turn of the assistant conversation.
type ChatMessage struct {
	MessageID  string    `json:"message_id"`
	BusinessID string    `json:"business_id"`
	UserID     string    `json:"user_id"`
	Role       string    `json:"role"` // user or assistant
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// APIToken maps a bearer token to its user and tenant.
type APIToken struct {
	Token      string    `json:"-"`
	UserID     string    `json:"user_id"`
	BusinessID string    `json:"business_id"`
	CreatedAt  time.Time `json:"created_at"`
}
