// Package policy evaluates tool-execution guardrails with OPA.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.tool_policy.decision"),
		rego.Module("tool_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate checks the tool policy.
// Input should be a map with keys: tool_name, args, user_id, business_id.
// Returns: decision (allow or block), reason (optional), error.
func (e *Engine) Evaluate(ctx context.Context, input interface{}) (string, string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return "allow", "default", nil
	}

	val := results[0].Expressions[0].Value
	if s, ok := val.(string); ok {
		return s, "", nil
	}
	return "allow", "unexpected return type", nil
}

// DefaultPolicy is the default guardrail set: it refuses obviously bad writes
// that a confused plan binding could otherwise push through.
const DefaultPolicy = `
package tool_policy

default decision = "allow"

# Never invoice a negative amount
decision = "block" {
	input.tool_name == "create_invoice"
	input.args.amount_cents < 0
}

# Invoices over $50k require a human, not the assistant
decision = "block" {
	input.tool_name == "create_invoice"
	input.args.amount_cents > 5000000
}

# Reminders go out on known channels only
decision = "block" {
	input.tool_name == "send_reminder"
	input.args.channel != "email"
	input.args.channel != "sms"
}
`
