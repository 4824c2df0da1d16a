package tools

import (
	"encoding/json"
	"fmt"

	"github.com/fieldline/assistant/internal/domain"
	"github.com/fieldline/assistant/internal/planner"
)

// DefaultPatterns returns the built-in multi-step task patterns in
// registration order. Order matters: the first matching pattern wins.
func DefaultPatterns() []*planner.TaskPattern {
	return []*planner.TaskPattern{
		batchInvoicePattern(),
		batchSchedulePattern(),
		quoteAndSendPattern(),
	}
}

// batchInvoicePattern drafts one invoice per completed job. Voiding the
// invoice compensates a created one if a later step fails.
func batchInvoicePattern() *planner.TaskPattern {
	return &planner.TaskPattern{
		ID:   "batch_invoice",
		Name: "Invoice completed jobs",
		Triggers: []string{
			"invoice all", "invoice the completed", "invoice everything",
			"bill all", "create invoices for",
		},
		RequiredEntities: []string{"jobs"},
		Steps: []planner.StepTemplate{
			{
				Name:                 "Create invoice for job",
				ToolName:             "create_invoice",
				CompensationToolName: "void_invoice",
				ForEachEntity:        "jobs",
				BindArgs: func(entities map[string]any, item any) (json.RawMessage, error) {
					job, ok := item.(map[string]any)
					if !ok {
						return nil, fmt.Errorf("jobs entry is not an object")
					}
					jobID, _ := job["job_id"].(string)
					if jobID == "" {
						return nil, fmt.Errorf("jobs entry missing job_id")
					}
					amount, ok := numberField(job, "amount_cents")
					if !ok {
						return nil, fmt.Errorf("jobs entry missing amount_cents")
					}
					return json.Marshal(map[string]any{
						"job_id":       jobID,
						"amount_cents": amount,
					})
				},
				// create_invoice returns {"invoice_id", "job_id"}, which is
				// exactly what void_invoice accepts. Default compensation
				// args (the step result) work as is.
			},
		},
	}
}

// batchSchedulePattern books a set of jobs onto one date, clearing the
// schedule again for any job booked before a failure.
func batchSchedulePattern() *planner.TaskPattern {
	return &planner.TaskPattern{
		ID:   "batch_schedule",
		Name: "Schedule jobs",
		Triggers: []string{
			"schedule all", "schedule these jobs", "book all", "book these jobs",
		},
		RequiredEntities: []string{"jobs", "date"},
		Steps: []planner.StepTemplate{
			{
				Name:                 "Schedule job",
				ToolName:             "schedule_job",
				CompensationToolName: "unschedule_job",
				ForEachEntity:        "jobs",
				BindArgs: func(entities map[string]any, item any) (json.RawMessage, error) {
					jobID, err := jobIDFromItem(item)
					if err != nil {
						return nil, err
					}
					date, _ := entities["date"].(string)
					if date == "" {
						return nil, fmt.Errorf("date entity missing")
					}
					return json.Marshal(map[string]any{
						"job_id": jobID,
						"date":   date,
					})
				},
				CompensationArgs: func(step *domain.PlanStep) (json.RawMessage, error) {
					return pickFields(step.Args, "job_id")
				},
			},
		},
	}
}

// quoteAndSendPattern creates a quote and then notifies the customer. The
// reminder step binds the quote id from the first step's result, so its
// arguments stay unresolved until execution.
func quoteAndSendPattern() *planner.TaskPattern {
	return &planner.TaskPattern{
		ID:   "quote_and_send",
		Name: "Quote and notify customer",
		Triggers: []string{
			"quote and send", "send a quote", "create a quote and",
			"quote the customer",
		},
		RequiredEntities: []string{"customer_id", "amount_cents"},
		Steps: []planner.StepTemplate{
			{
				Name:                 "Create quote",
				ToolName:             "create_quote",
				CompensationToolName: "delete_quote",
				BindArgs: func(entities map[string]any, _ any) (json.RawMessage, error) {
					customerID, _ := entities["customer_id"].(string)
					if customerID == "" {
						return nil, fmt.Errorf("customer_id entity missing")
					}
					amount, ok := numberField(entities, "amount_cents")
					if !ok {
						return nil, fmt.Errorf("amount_cents entity missing")
					}
					return json.Marshal(map[string]any{
						"customer_id":  customerID,
						"amount_cents": amount,
					})
				},
				CompensationArgs: func(step *domain.PlanStep) (json.RawMessage, error) {
					return pickFields(json.RawMessage(step.Result), "quote_id")
				},
			},
			{
				Name:     "Notify customer",
				ToolName: "send_reminder",
				BindFromPrior: func(prior []*domain.PlanStep, entities map[string]any) (json.RawMessage, error) {
					quoteID, err := resultField(prior, "create_quote", "quote_id")
					if err != nil {
						return nil, err
					}
					customerID, _ := entities["customer_id"].(string)
					channel, _ := entities["channel"].(string)
					if channel == "" {
						channel = "email"
					}
					return json.Marshal(map[string]any{
						"customer_id": customerID,
						"channel":     channel,
						"body":        fmt.Sprintf("A new quote %s is ready for your review.", quoteID),
					})
				},
			},
		},
	}
}

// resultField pulls a field out of the result of the most recent completed
// step that ran the named tool.
func resultField(steps []*domain.PlanStep, toolName, field string) (string, error) {
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if step.ToolName != toolName || step.Status != domain.StepStatusCompleted {
			continue
		}
		var result map[string]any
		if err := json.Unmarshal([]byte(step.Result), &result); err != nil {
			return "", fmt.Errorf("decode %s result: %w", toolName, err)
		}
		value, _ := result[field].(string)
		if value == "" {
			return "", fmt.Errorf("%s result missing %s", toolName, field)
		}
		return value, nil
	}
	return "", fmt.Errorf("no completed %s step to bind from", toolName)
}

// pickFields projects a subset of fields from a JSON object.
func pickFields(raw json.RawMessage, fields ...string) (json.RawMessage, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("decode step payload: %w", err)
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := obj[f]; ok {
			out[f] = v
		}
	}
	return json.Marshal(out)
}

func jobIDFromItem(item any) (string, error) {
	switch v := item.(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case map[string]any:
		if id, _ := v["job_id"].(string); id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("jobs entry missing job_id")
}

// numberField reads an integer-valued entity that may arrive as a JSON
// number (float64) or a native int.
func numberField(obj map[string]any, key string) (int64, bool) {
	switch v := obj[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}
