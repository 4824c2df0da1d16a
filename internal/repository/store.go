// Package store defines the storage interface and implementations.
package store

import (
	"context"
	"time"

	"github.com/fieldline/assistant/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// Auth operations
	CreateAPIToken(ctx context.Context, token *domain.APIToken) error
	GetAPIToken(ctx context.Context, token string) (*domain.APIToken, error)

	// Chat transcript operations
	CreateChatMessage(ctx context.Context, msg *domain.ChatMessage) error
	GetChatMessages(ctx context.Context, businessID, userID string, limit int) ([]domain.ChatMessage, error)

	// Job operations. Per-id reads and writes are tenant scoped: an id
	// belonging to another business behaves as not found.
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, businessID, jobID string) (*domain.Job, error)
	ListCompletedJobs(ctx context.Context, businessID string, since time.Time) ([]domain.Job, error)
	UpdateJobSchedule(ctx context.Context, businessID, jobID string, scheduledFor *time.Time) (bool, error)

	// Invoice operations
	CreateInvoice(ctx context.Context, invoice *domain.Invoice) error
	GetInvoice(ctx context.Context, businessID, invoiceID string) (*domain.Invoice, error)
	UpdateInvoiceStatus(ctx context.Context, businessID, invoiceID, status string) (bool, error)

	// Quote operations
	CreateQuote(ctx context.Context, quote *domain.Quote) error
	GetQuote(ctx context.Context, businessID, quoteID string) (*domain.Quote, error)
	DeleteQuote(ctx context.Context, businessID, quoteID string) (bool, error)
	ListOpenQuotes(ctx context.Context, businessID string) ([]domain.Quote, error)

	// Reminder operations
	CreateReminder(ctx context.Context, reminder *domain.Reminder) error

	// Audit log operations
	CreateAuditRecord(ctx context.Context, record *domain.AuditRecord) error

	// Pending plan operations (durable tier of the plan store)
	CreatePendingPlan(ctx context.Context, record *domain.PendingPlanRecord) error
	GetPendingPlan(ctx context.Context, planID string) (*domain.PendingPlanRecord, error)
	GetMostRecentPendingPlan(ctx context.Context, ownerUserID string) (*domain.PendingPlanRecord, error)
	// DeletePendingPlan removes the row and reports whether this caller
	// removed it. A false return means the plan was already resolved or
	// belongs to a different owner.
	DeletePendingPlan(ctx context.Context, planID, ownerUserID string) (bool, error)
	DeleteExpiredPendingPlans(ctx context.Context, olderThan time.Time) (int64, error)

	// Lifecycle
	Close() error
}
