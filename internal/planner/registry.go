// Package planner implements the multi-step task planner: tool registry,
// pattern matching, plan building, approval detection, and plan execution.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/fieldline/assistant/internal/domain"
	"github.com/fieldline/assistant/internal/policy"
	store "github.com/fieldline/assistant/internal/repository"
)

// ExecContext carries the tenant identity and capabilities a tool body needs.
type ExecContext struct {
	UserID     string
	BusinessID string
	Store      store.Store
	Log        *zap.SugaredLogger
}

// ToolFunc is the body of a tool. It performs its own data-store operations
// and writes one audit-log record describing what changed.
type ToolFunc func(ctx context.Context, ec ExecContext, args json.RawMessage) (json.RawMessage, error)

// Tool is one registered domain operation.
type Tool struct {
	Name        string
	Description string
	Schema      domain.ParameterSchema
	Execute     ToolFunc
}

// ErrToolNotFound is returned when a tool name has no registration.
var ErrToolNotFound = fmt.Errorf("tool not found")

// Registry maps tool names to their descriptors and executors. Tools are
// registered once at process start. Every execution passes through the
// policy engine when one is attached.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Tool
	policy *policy.Engine
}

// NewRegistry creates an empty tool registry. The policy engine may be nil,
// in which case all executions are allowed.
func NewRegistry(policyEngine *policy.Engine) *Registry {
	return &Registry{
		tools:  make(map[string]*Tool),
		policy: policyEngine,
	}
}

// Register adds a tool. Duplicate names are rejected.
func (r *Registry) Register(tool *Tool) error {
	if tool == nil || tool.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if tool.Execute == nil {
		return fmt.Errorf("tool %s: executor is required", tool.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool already registered for %s", tool.Name)
	}
	r.tools[tool.Name] = tool
	return nil
}

// MustRegister adds a tool or panics.
func (r *Registry) MustRegister(tool *Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns the descriptors of all registered tools sorted by name.
// This is exactly what gets serialized into LLM tool-calling requests.
func (r *Registry) List() []domain.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	descriptors := make([]domain.ToolDescriptor, 0, len(r.tools))
	for _, tool := range r.tools {
		descriptors = append(descriptors, domain.ToolDescriptor{
			Name:        tool.Name,
			Description: tool.Description,
			Schema:      tool.Schema,
		})
	}
	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].Name < descriptors[j].Name })
	return descriptors
}

// Execute validates args against the tool's parameter schema, consults the
// policy engine, and invokes the tool body. Tool panics and errors are
// wrapped as ToolExecutionFailedError; tools are assumed non-idempotent and
// are never retried.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage, ec ExecContext) (result json.RawMessage, err error) {
	tool, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	if violations := validateArgs(tool.Schema, args); len(violations) > 0 {
		return nil, &domain.InvalidArgumentsError{ToolName: name, Violations: violations}
	}

	if r.policy != nil {
		decision, reason, perr := r.policy.Evaluate(ctx, policyInput(name, args, ec))
		if perr != nil {
			return nil, &domain.ToolExecutionFailedError{ToolName: name, Cause: perr}
		}
		if decision == "block" {
			return nil, &domain.ToolExecutionFailedError{
				ToolName: name,
				Cause:    fmt.Errorf("blocked by policy: %s", reason),
			}
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = &domain.ToolExecutionFailedError{ToolName: name, Cause: fmt.Errorf("panic: %v", rec)}
		}
	}()

	result, err = tool.Execute(ctx, ec, args)
	if err != nil {
		return nil, &domain.ToolExecutionFailedError{ToolName: name, Cause: err}
	}
	return result, nil
}

func policyInput(name string, args json.RawMessage, ec ExecContext) map[string]interface{} {
	input := map[string]interface{}{
		"tool_name":   name,
		"user_id":     ec.UserID,
		"business_id": ec.BusinessID,
		"args":        map[string]interface{}{},
	}
	var argsMap map[string]interface{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &argsMap); err == nil {
			input["args"] = argsMap
		}
	}
	return input
}

// validateArgs checks required fields and declared types. Unknown fields are
// tolerated; nested schemas are not supported.
func validateArgs(schema domain.ParameterSchema, args json.RawMessage) []string {
	var argsMap map[string]interface{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &argsMap); err != nil {
			return []string{fmt.Sprintf("arguments are not a JSON object: %v", err)}
		}
	}

	var violations []string
	for _, required := range schema.Required {
		if _, ok := argsMap[required]; !ok {
			violations = append(violations, fmt.Sprintf("missing required field %q", required))
		}
	}
	for field, prop := range schema.Properties {
		value, ok := argsMap[field]
		if !ok || value == nil {
			continue
		}
		if !typeMatches(prop.Type, value) {
			violations = append(violations, fmt.Sprintf("field %q: expected %s", field, prop.Type))
		}
	}
	sort.Strings(violations)
	return violations
}

func typeMatches(schemaType string, value interface{}) bool {
	switch schemaType {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		_, ok := value.(float64)
		return ok
	case "integer":
		f, ok := value.(float64)
		return ok && f == float64(int64(f))
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]interface{})
		return ok
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	}
	return true
}
