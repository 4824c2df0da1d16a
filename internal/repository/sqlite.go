package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fieldline/assistant/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS api_tokens (
			token TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			business_id TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			message_id TEXT PRIMARY KEY,
			business_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_user ON chat_messages(business_id, user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS jobs (
			job_id TEXT PRIMARY KEY,
			business_id TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			title TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			scheduled_for DATETIME,
			completed_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_business_status ON jobs(business_id, status, completed_at)`,
		`CREATE TABLE IF NOT EXISTS invoices (
			invoice_id TEXT PRIMARY KEY,
			business_id TEXT NOT NULL,
			job_id TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			amount_cents INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'draft',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (job_id) REFERENCES jobs(job_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_business ON invoices(business_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS quotes (
			quote_id TEXT PRIMARY KEY,
			business_id TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			title TEXT NOT NULL,
			amount_cents INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'open',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_quotes_business_status ON quotes(business_id, status)`,
		`CREATE TABLE IF NOT EXISTS reminders (
			reminder_id TEXT PRIMARY KEY,
			business_id TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			channel TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			audit_id TEXT PRIMARY KEY,
			business_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			activity_type TEXT NOT NULL,
			description TEXT NOT NULL,
			metadata TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_business ON audit_log(business_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS pending_plans (
			plan_id TEXT PRIMARY KEY,
			owner_user_id TEXT NOT NULL,
			business_id TEXT NOT NULL,
			pattern_id TEXT NOT NULL,
			plan TEXT NOT NULL,
			entities TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_plans_owner ON pending_plans(owner_user_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateAPIToken inserts an API token row.
func (s *SQLiteStore) CreateAPIToken(ctx context.Context, token *domain.APIToken) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_tokens (token, user_id, business_id, created_at) VALUES (?, ?, ?, ?)`,
		token.Token, token.UserID, token.BusinessID, token.CreatedAt)
	return err
}

// GetAPIToken resolves a bearer token to its user and tenant.
func (s *SQLiteStore) GetAPIToken(ctx context.Context, token string) (*domain.APIToken, error) {
	var t domain.APIToken
	err := s.db.QueryRowContext(ctx,
		`SELECT token, user_id, business_id, created_at FROM api_tokens WHERE token = ?`,
		token).Scan(&t.Token, &t.UserID, &t.BusinessID, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateChatMessage persists one conversation turn.
func (s *SQLiteStore) CreateChatMessage(ctx context.Context, msg *domain.ChatMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (message_id, business_id, user_id, role, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.MessageID, msg.BusinessID, msg.UserID, msg.Role, msg.Content, msg.CreatedAt)
	return err
}

// GetChatMessages retrieves the most recent conversation turns for a user,
// returned oldest first.
func (s *SQLiteStore) GetChatMessages(ctx context.Context, businessID, userID string, limit int) ([]domain.ChatMessage, error) {
	query := `SELECT message_id, business_id, user_id, role, content, created_at FROM chat_messages
		WHERE business_id = ? AND user_id = ? ORDER BY created_at ASC`
	if limit > 0 {
		query = fmt.Sprintf(`SELECT * FROM (
			SELECT message_id, business_id, user_id, role, content, created_at FROM chat_messages
			WHERE business_id = ? AND user_id = ?
			ORDER BY created_at DESC, message_id DESC LIMIT %d
		) ORDER BY created_at ASC, message_id ASC`, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, businessID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		if err := rows.Scan(&msg.MessageID, &msg.BusinessID, &msg.UserID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// CreateJob creates a new job.
func (s *SQLiteStore) CreateJob(ctx context.Context, job *domain.Job) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (job_id, business_id, customer_id, title, status, scheduled_for, completed_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.JobID, job.BusinessID, job.CustomerID, job.Title, job.Status, nullTime(job.ScheduledFor), nullTime(job.CompletedAt), job.CreatedAt)
	return err
}

// GetJob retrieves a job by ID within a business. Ids from other tenants
// come back as not found.
func (s *SQLiteStore) GetJob(ctx context.Context, businessID, jobID string) (*domain.Job, error) {
	var job domain.Job
	var scheduledFor, completedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT job_id, business_id, customer_id, title, status, scheduled_for, completed_at, created_at FROM jobs WHERE business_id = ? AND job_id = ?`,
		businessID, jobID).Scan(&job.JobID, &job.BusinessID, &job.CustomerID, &job.Title, &job.Status, &scheduledFor, &completedAt, &job.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if scheduledFor.Valid {
		job.ScheduledFor = &scheduledFor.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return &job, nil
}

// ListCompletedJobs lists jobs completed at or after the given time.
func (s *SQLiteStore) ListCompletedJobs(ctx context.Context, businessID string, since time.Time) ([]domain.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, business_id, customer_id, title, status, scheduled_for, completed_at, created_at FROM jobs
		 WHERE business_id = ? AND status = 'completed' AND completed_at >= ? ORDER BY completed_at ASC`,
		businessID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		var job domain.Job
		var scheduledFor, completedAt sql.NullTime
		if err := rows.Scan(&job.JobID, &job.BusinessID, &job.CustomerID, &job.Title, &job.Status, &scheduledFor, &completedAt, &job.CreatedAt); err != nil {
			return nil, err
		}
		if scheduledFor.Valid {
			job.ScheduledFor = &scheduledFor.Time
		}
		if completedAt.Valid {
			job.CompletedAt = &completedAt.Time
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateJobSchedule sets or clears a job's scheduled time. A nil time reverts
// the job to pending. Completed jobs are never rescheduled.
func (s *SQLiteStore) UpdateJobSchedule(ctx context.Context, businessID, jobID string, scheduledFor *time.Time) (bool, error) {
	status := "scheduled"
	if scheduledFor == nil {
		status = "pending"
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET scheduled_for = ?, status = ? WHERE business_id = ? AND job_id = ? AND status != 'completed'`,
		nullTime(scheduledFor), status, businessID, jobID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// CreateInvoice creates a new invoice.
func (s *SQLiteStore) CreateInvoice(ctx context.Context, invoice *domain.Invoice) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invoices (invoice_id, business_id, job_id, customer_id, amount_cents, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		invoice.InvoiceID, invoice.BusinessID, invoice.JobID, invoice.CustomerID, invoice.AmountCents, invoice.Status, invoice.CreatedAt)
	return err
}

// GetInvoice retrieves an invoice by ID.
func (s *SQLiteStore) GetInvoice(ctx context.Context, businessID, invoiceID string) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := s.db.QueryRowContext(ctx,
		`SELECT invoice_id, business_id, job_id, customer_id, amount_cents, status, created_at FROM invoices WHERE business_id = ? AND invoice_id = ?`,
		businessID, invoiceID).Scan(&inv.InvoiceID, &inv.BusinessID, &inv.JobID, &inv.CustomerID, &inv.AmountCents, &inv.Status, &inv.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// UpdateInvoiceStatus updates the status of an invoice.
func (s *SQLiteStore) UpdateInvoiceStatus(ctx context.Context, businessID, invoiceID, status string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE invoices SET status = ? WHERE business_id = ? AND invoice_id = ?`,
		status, businessID, invoiceID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// CreateQuote creates a new quote.
func (s *SQLiteStore) CreateQuote(ctx context.Context, quote *domain.Quote) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quotes (quote_id, business_id, customer_id, title, amount_cents, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		quote.QuoteID, quote.BusinessID, quote.CustomerID, quote.Title, quote.AmountCents, quote.Status, quote.CreatedAt)
	return err
}

// GetQuote retrieves a quote by ID.
func (s *SQLiteStore) GetQuote(ctx context.Context, businessID, quoteID string) (*domain.Quote, error) {
	var q domain.Quote
	err := s.db.QueryRowContext(ctx,
		`SELECT quote_id, business_id, customer_id, title, amount_cents, status, created_at FROM quotes WHERE business_id = ? AND quote_id = ?`,
		businessID, quoteID).Scan(&q.QuoteID, &q.BusinessID, &q.CustomerID, &q.Title, &q.AmountCents, &q.Status, &q.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// DeleteQuote removes a quote.
func (s *SQLiteStore) DeleteQuote(ctx context.Context, businessID, quoteID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quotes WHERE business_id = ? AND quote_id = ?`, businessID, quoteID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListOpenQuotes lists open quotes for a business.
func (s *SQLiteStore) ListOpenQuotes(ctx context.Context, businessID string) ([]domain.Quote, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT quote_id, business_id, customer_id, title, amount_cents, status, created_at FROM quotes
		 WHERE business_id = ? AND status = 'open' ORDER BY created_at ASC`,
		businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quotes []domain.Quote
	for rows.Next() {
		var q domain.Quote
		if err := rows.Scan(&q.QuoteID, &q.BusinessID, &q.CustomerID, &q.Title, &q.AmountCents, &q.Status, &q.CreatedAt); err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

// CreateReminder queues an outbound reminder.
func (s *SQLiteStore) CreateReminder(ctx context.Context, reminder *domain.Reminder) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders (reminder_id, business_id, customer_id, channel, body, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		reminder.ReminderID, reminder.BusinessID, reminder.CustomerID, reminder.Channel, reminder.Body, reminder.CreatedAt)
	return err
}

// CreateAuditRecord writes one audit-log entry.
func (s *SQLiteStore) CreateAuditRecord(ctx context.Context, record *domain.AuditRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (audit_id, business_id, user_id, activity_type, description, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.AuditID, record.BusinessID, record.UserID, record.ActivityType, record.Description, nullStringBytes(record.Metadata), record.CreatedAt)
	return err
}

// CreatePendingPlan persists a plan awaiting approval.
func (s *SQLiteStore) CreatePendingPlan(ctx context.Context, record *domain.PendingPlanRecord) error {
	plan, err := json.Marshal(record.Plan)
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}
	entities, _ := json.Marshal(record.Entities)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pending_plans (plan_id, owner_user_id, business_id, pattern_id, plan, entities, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.Plan.PlanID, record.OwnerUserID, record.BusinessID, record.PatternID, string(plan), string(entities), record.CreatedAt)
	return err
}

// GetPendingPlan retrieves a pending plan by plan ID.
func (s *SQLiteStore) GetPendingPlan(ctx context.Context, planID string) (*domain.PendingPlanRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT owner_user_id, business_id, pattern_id, plan, entities, created_at FROM pending_plans WHERE plan_id = ?`,
		planID)
	return scanPendingPlan(row)
}

// GetMostRecentPendingPlan retrieves the newest pending plan for a user.
func (s *SQLiteStore) GetMostRecentPendingPlan(ctx context.Context, ownerUserID string) (*domain.PendingPlanRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT owner_user_id, business_id, pattern_id, plan, entities, created_at FROM pending_plans
		 WHERE owner_user_id = ? ORDER BY created_at DESC, plan_id DESC LIMIT 1`,
		ownerUserID)
	return scanPendingPlan(row)
}

// DeletePendingPlan removes a pending plan. The RowsAffected check makes
// resolution exclusive: only the caller that actually removed the row may
// act on the plan. The owner predicate keeps one user's decision from
// consuming another user's plan.
func (s *SQLiteStore) DeletePendingPlan(ctx context.Context, planID, ownerUserID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pending_plans WHERE plan_id = ? AND owner_user_id = ?`, planID, ownerUserID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// DeleteExpiredPendingPlans sweeps pending plans created before the cutoff.
func (s *SQLiteStore) DeleteExpiredPendingPlans(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pending_plans WHERE created_at < ?`, olderThan)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPendingPlan(row rowScanner) (*domain.PendingPlanRecord, error) {
	var rec domain.PendingPlanRecord
	var planData string
	var entities sql.NullString
	err := row.Scan(&rec.OwnerUserID, &rec.BusinessID, &rec.PatternID, &planData, &entities, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(planData), &rec.Plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plan: %w", err)
	}
	if entities.Valid && entities.String != "" && entities.String != "null" {
		if err := json.Unmarshal([]byte(entities.String), &rec.Entities); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entities: %w", err)
		}
	}
	return &rec, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullStringBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
