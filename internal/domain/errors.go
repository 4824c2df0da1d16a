package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnauthorized is returned when the auth context is missing or invalid.
// Surfaced as HTTP 401 at the boundary; never reaches the planner.
var ErrUnauthorized = errors.New("unauthorized")

// ErrPlanNotFound is returned when an approval or rejection references a plan
// that is missing or already resolved.
var ErrPlanNotFound = errors.New("plan not found")

// ErrStepTimeout marks a step that exceeded the configured per-step timeout.
var ErrStepTimeout = errors.New("step timed out")

// InvalidArgumentsError is returned when tool arguments fail schema validation.
type InvalidArgumentsError struct {
	ToolName   string
	Violations []string
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %s: %s", e.ToolName, strings.Join(e.Violations, "; "))
}

// ToolExecutionFailedError wraps an error raised by a tool body. Tools are
// assumed non-idempotent, so execution is never retried.
type ToolExecutionFailedError struct {
	ToolName string
	Cause    error
}

func (e *ToolExecutionFailedError) Error() string {
	return fmt.Sprintf("tool %s execution failed: %v", e.ToolName, e.Cause)
}

func (e *ToolExecutionFailedError) Unwrap() error {
	return e.Cause
}

// PatternBindingError is returned when the plan builder cannot resolve a
// required entity after a pattern already matched. This indicates a builder
// bug, not a user error.
type PatternBindingError struct {
	PatternID string
	Entity    string
}

func (e *PatternBindingError) Error() string {
	return fmt.Sprintf("pattern %s: required entity %q is missing", e.PatternID, e.Entity)
}
