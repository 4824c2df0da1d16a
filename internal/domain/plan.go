package domain

import (
	"encoding/json"
	"time"
)

// ExecutionPlan is an ordered, materialized sequence of tool invocations built
// from a matched task pattern. It is mutated in place by the executor as steps
// progress.
type ExecutionPlan struct {
	PlanID          string         `json:"plan_id"`
	Name            string         `json:"name"`
	Steps           []*PlanStep    `json:"steps"`
	Status          PlanStatus     `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	TotalDurationMs int64          `json:"total_duration_ms,omitempty"`
	RollbackSteps   []RollbackStep `json:"rollback_steps,omitempty"`
}

// PlanStep is one unit of work within a plan, bound to exactly one tool.
// Args may be empty until the executor resolves them just before the step runs.
type PlanStep struct {
	StepID string `json:"step_id"`
	Name   string `json:"name"`
	// TemplateIndex points back at the pattern step template this step was
	// expanded from, so deferred bindings survive (de)serialization.
	TemplateIndex    int             `json:"template_index"`
	ToolName         string          `json:"tool_name"`
	CompensationTool string          `json:"compensation_tool,omitempty"`
	Args             json.RawMessage `json:"args,omitempty"`
	Status           StepStatus      `json:"status"`
	Result           json.RawMessage `json:"result,omitempty"`
	Error            string          `json:"error,omitempty"`
	StartedAt        *time.Time      `json:"started_at,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

// RollbackStep records one compensation attempt made after a step failure.
type RollbackStep struct {
	StepID      string         `json:"step_id"`
	ToolName    string         `json:"tool_name"`
	Status      RollbackStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	AttemptedAt time.Time      `json:"attempted_at"`
}

// PendingPlanRecord is a plan awaiting user approval. It lives in the
// in-process cache and in the durable pending_plans table; the pattern is
// referenced by id because its binding functions cannot be serialized.
type PendingPlanRecord struct {
	Plan        *ExecutionPlan `json:"plan"`
	PatternID   string         `json:"pattern_id"`
	Entities    map[string]any `json:"entities,omitempty"`
	OwnerUserID string         `json:"owner_user_id"`
	BusinessID  string         `json:"business_id"`
	CreatedAt   time.Time      `json:"created_at"`
}

// StepInfo is the compact step view carried inside step_progress events.
type StepInfo struct {
	StepID string     `json:"step_id"`
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`
}

// StreamEvent is one newline-delimited JSON progress event sent to the caller.
type StreamEvent struct {
	Type       EventType      `json:"type"`
	Ts         int64          `json:"ts"`
	Plan       *ExecutionPlan `json:"plan,omitempty"`
	PlanID     string         `json:"plan_id,omitempty"`
	StepIndex  int            `json:"step_index,omitempty"`
	TotalSteps int            `json:"total_steps,omitempty"`
	Step       *StepInfo      `json:"step,omitempty"`
	Message    string         `json:"message,omitempty"`
	Code       string         `json:"code,omitempty"`
}

// NewStreamEvent stamps an event with the current time.
func NewStreamEvent(eventType EventType) StreamEvent {
	return StreamEvent{Type: eventType, Ts: time.Now().UnixMilli()}
}
