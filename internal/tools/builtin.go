package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldline/assistant/internal/domain"
	"github.com/fieldline/assistant/internal/planner"
)

// RegisterBuiltins installs the field-service tool set on the registry.
func RegisterBuiltins(r *planner.Registry) {
	r.MustRegister(listCompletedJobsTool())
	r.MustRegister(createInvoiceTool())
	r.MustRegister(voidInvoiceTool())
	r.MustRegister(scheduleJobTool())
	r.MustRegister(unscheduleJobTool())
	r.MustRegister(createQuoteTool())
	r.MustRegister(deleteQuoteTool())
	r.MustRegister(sendReminderTool())
}

func listCompletedJobsTool() *planner.Tool {
	return &planner.Tool{
		Name:        "list_completed_jobs",
		Description: "List jobs completed within the last N days that may need invoicing.",
		Schema: domain.ParameterSchema{
			Type: "object",
			Properties: map[string]domain.PropertySchema{
				"days": {Type: "integer", Description: "Look-back window in days, defaults to 30."},
			},
		},
		Execute: func(ctx context.Context, ec planner.ExecContext, args json.RawMessage) (json.RawMessage, error) {
			var in struct {
				Days int `json:"days"`
			}
			if len(args) > 0 {
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, fmt.Errorf("decode arguments: %w", err)
				}
			}
			if in.Days <= 0 {
				in.Days = 30
			}
			since := time.Now().AddDate(0, 0, -in.Days)
			jobs, err := ec.Store.ListCompletedJobs(ctx, ec.BusinessID, since)
			if err != nil {
				return nil, err
			}
			return json.Marshal(map[string]any{"jobs": jobs, "count": len(jobs)})
		},
	}
}

func createInvoiceTool() *planner.Tool {
	return &planner.Tool{
		Name:        "create_invoice",
		Description: "Create a draft invoice for a completed job.",
		Schema: domain.ParameterSchema{
			Type: "object",
			Properties: map[string]domain.PropertySchema{
				"job_id":       {Type: "string", Description: "Job to invoice."},
				"amount_cents": {Type: "integer", Description: "Invoice amount in cents."},
			},
			Required: []string{"job_id", "amount_cents"},
		},
		Execute: func(ctx context.Context, ec planner.ExecContext, args json.RawMessage) (json.RawMessage, error) {
			var in struct {
				JobID       string `json:"job_id"`
				AmountCents int64  `json:"amount_cents"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, fmt.Errorf("decode arguments: %w", err)
			}
			job, err := ec.Store.GetJob(ctx, ec.BusinessID, in.JobID)
			if err != nil {
				return nil, err
			}
			if job == nil {
				return nil, fmt.Errorf("job %s not found", in.JobID)
			}
			inv := &domain.Invoice{
				InvoiceID:   "inv_" + uuid.New().String()[:8],
				BusinessID:  ec.BusinessID,
				JobID:       in.JobID,
				CustomerID:  job.CustomerID,
				AmountCents: in.AmountCents,
				Status:      "draft",
				CreatedAt:   time.Now(),
			}
			if err := ec.Store.CreateInvoice(ctx, inv); err != nil {
				return nil, err
			}
			audit(ctx, ec, "invoice_created", fmt.Sprintf("Created invoice %s for job %s", inv.InvoiceID, in.JobID), args)
			return json.Marshal(map[string]any{"invoice_id": inv.InvoiceID, "job_id": in.JobID})
		},
	}
}

func voidInvoiceTool() *planner.Tool {
	return &planner.Tool{
		Name:        "void_invoice",
		Description: "Void an existing invoice.",
		Schema: domain.ParameterSchema{
			Type: "object",
			Properties: map[string]domain.PropertySchema{
				"invoice_id": {Type: "string", Description: "Invoice to void."},
			},
			Required: []string{"invoice_id"},
		},
		Execute: func(ctx context.Context, ec planner.ExecContext, args json.RawMessage) (json.RawMessage, error) {
			var in struct {
				InvoiceID string `json:"invoice_id"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, fmt.Errorf("decode arguments: %w", err)
			}
			changed, err := ec.Store.UpdateInvoiceStatus(ctx, ec.BusinessID, in.InvoiceID, "void")
			if err != nil {
				return nil, err
			}
			if !changed {
				return nil, fmt.Errorf("invoice %s not found", in.InvoiceID)
			}
			audit(ctx, ec, "invoice_voided", fmt.Sprintf("Voided invoice %s", in.InvoiceID), args)
			return json.Marshal(map[string]any{"invoice_id": in.InvoiceID, "status": "void"})
		},
	}
}

func scheduleJobTool() *planner.Tool {
	return &planner.Tool{
		Name:        "schedule_job",
		Description: "Schedule a job for a specific date.",
		Schema: domain.ParameterSchema{
			Type: "object",
			Properties: map[string]domain.PropertySchema{
				"job_id": {Type: "string", Description: "Job to schedule."},
				"date":   {Type: "string", Description: "Target date, RFC 3339 or YYYY-MM-DD."},
			},
			Required: []string{"job_id", "date"},
		},
		Execute: func(ctx context.Context, ec planner.ExecContext, args json.RawMessage) (json.RawMessage, error) {
			var in struct {
				JobID string `json:"job_id"`
				Date  string `json:"date"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, fmt.Errorf("decode arguments: %w", err)
			}
			when, err := parseDate(in.Date)
			if err != nil {
				return nil, err
			}
			changed, err := ec.Store.UpdateJobSchedule(ctx, ec.BusinessID, in.JobID, &when)
			if err != nil {
				return nil, err
			}
			if !changed {
				return nil, fmt.Errorf("job %s not found", in.JobID)
			}
			audit(ctx, ec, "job_scheduled", fmt.Sprintf("Scheduled job %s for %s", in.JobID, in.Date), args)
			return json.Marshal(map[string]any{"job_id": in.JobID, "scheduled_for": when.Format(time.RFC3339)})
		},
	}
}

func unscheduleJobTool() *planner.Tool {
	return &planner.Tool{
		Name:        "unschedule_job",
		Description: "Clear a job's scheduled date.",
		Schema: domain.ParameterSchema{
			Type: "object",
			Properties: map[string]domain.PropertySchema{
				"job_id": {Type: "string", Description: "Job to unschedule."},
			},
			Required: []string{"job_id"},
		},
		Execute: func(ctx context.Context, ec planner.ExecContext, args json.RawMessage) (json.RawMessage, error) {
			var in struct {
				JobID string `json:"job_id"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, fmt.Errorf("decode arguments: %w", err)
			}
			changed, err := ec.Store.UpdateJobSchedule(ctx, ec.BusinessID, in.JobID, nil)
			if err != nil {
				return nil, err
			}
			if !changed {
				return nil, fmt.Errorf("job %s not found", in.JobID)
			}
			audit(ctx, ec, "job_unscheduled", fmt.Sprintf("Unscheduled job %s", in.JobID), args)
			return json.Marshal(map[string]any{"job_id": in.JobID})
		},
	}
}

func createQuoteTool() *planner.Tool {
	return &planner.Tool{
		Name:        "create_quote",
		Description: "Create an open quote for a customer.",
		Schema: domain.ParameterSchema{
			Type: "object",
			Properties: map[string]domain.PropertySchema{
				"customer_id":  {Type: "string", Description: "Customer the quote is for."},
				"amount_cents": {Type: "integer", Description: "Quoted amount in cents."},
			},
			Required: []string{"customer_id", "amount_cents"},
		},
		Execute: func(ctx context.Context, ec planner.ExecContext, args json.RawMessage) (json.RawMessage, error) {
			var in struct {
				CustomerID  string `json:"customer_id"`
				AmountCents int64  `json:"amount_cents"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, fmt.Errorf("decode arguments: %w", err)
			}
			q := &domain.Quote{
				QuoteID:     "quo_" + uuid.New().String()[:8],
				BusinessID:  ec.BusinessID,
				CustomerID:  in.CustomerID,
				AmountCents: in.AmountCents,
				Status:      "open",
				CreatedAt:   time.Now(),
			}
			if err := ec.Store.CreateQuote(ctx, q); err != nil {
				return nil, err
			}
			audit(ctx, ec, "quote_created", fmt.Sprintf("Created quote %s for customer %s", q.QuoteID, in.CustomerID), args)
			return json.Marshal(map[string]any{"quote_id": q.QuoteID, "customer_id": in.CustomerID})
		},
	}
}

func deleteQuoteTool() *planner.Tool {
	return &planner.Tool{
		Name:        "delete_quote",
		Description: "Delete an open quote.",
		Schema: domain.ParameterSchema{
			Type: "object",
			Properties: map[string]domain.PropertySchema{
				"quote_id": {Type: "string", Description: "Quote to delete."},
			},
			Required: []string{"quote_id"},
		},
		Execute: func(ctx context.Context, ec planner.ExecContext, args json.RawMessage) (json.RawMessage, error) {
			var in struct {
				QuoteID string `json:"quote_id"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, fmt.Errorf("decode arguments: %w", err)
			}
			removed, err := ec.Store.DeleteQuote(ctx, ec.BusinessID, in.QuoteID)
			if err != nil {
				return nil, err
			}
			if !removed {
				return nil, fmt.Errorf("quote %s not found", in.QuoteID)
			}
			audit(ctx, ec, "quote_deleted", fmt.Sprintf("Deleted quote %s", in.QuoteID), args)
			return json.Marshal(map[string]any{"quote_id": in.QuoteID})
		},
	}
}

func sendReminderTool() *planner.Tool {
	return &planner.Tool{
		Name:        "send_reminder",
		Description: "Send a reminder to a customer over email or sms.",
		Schema: domain.ParameterSchema{
			Type: "object",
			Properties: map[string]domain.PropertySchema{
				"customer_id": {Type: "string", Description: "Customer to remind."},
				"channel":     {Type: "string", Description: "Delivery channel, email or sms."},
				"body":        {Type: "string", Description: "Message body."},
			},
			Required: []string{"customer_id", "channel", "body"},
		},
		Execute: func(ctx context.Context, ec planner.ExecContext, args json.RawMessage) (json.RawMessage, error) {
			var in struct {
				CustomerID string `json:"customer_id"`
				Channel    string `json:"channel"`
				Body       string `json:"body"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, fmt.Errorf("decode arguments: %w", err)
			}
			if in.Channel != "email" && in.Channel != "sms" {
				return nil, fmt.Errorf("unsupported channel %q", in.Channel)
			}
			rem := &domain.Reminder{
				ReminderID: "rem_" + uuid.New().String()[:8],
				BusinessID: ec.BusinessID,
				CustomerID: in.CustomerID,
				Channel:    in.Channel,
				Body:       in.Body,
				CreatedAt:  time.Now(),
			}
			if err := ec.Store.CreateReminder(ctx, rem); err != nil {
				return nil, err
			}
			audit(ctx, ec, "reminder_sent", fmt.Sprintf("Sent %s reminder %s to customer %s", in.Channel, rem.ReminderID, in.CustomerID), args)
			return json.Marshal(map[string]any{"reminder_id": rem.ReminderID, "customer_id": in.CustomerID})
		},
	}
}

// audit records tool activity. Audit failures are logged, not surfaced;
// they must not fail the business operation.
func audit(ctx context.Context, ec planner.ExecContext, activity, description string, metadata json.RawMessage) {
	rec := &domain.AuditRecord{
		AuditID:      "aud_" + uuid.New().String()[:8],
		BusinessID:   ec.BusinessID,
		UserID:       ec.UserID,
		ActivityType: activity,
		Description:  description,
		Metadata:     metadata,
		CreatedAt:    time.Now(),
	}
	if err := ec.Store.CreateAuditRecord(ctx, rec); err != nil && ec.Log != nil {
		ec.Log.Warnw("audit write failed", "activity", activity, "error", err)
	}
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}
