// Package domain defines the core domain models for the assistant planner.
package domain

// PlanStatus represents the lifecycle status of an execution plan.
type PlanStatus string

const (
	PlanStatusPending   PlanStatus = "pending"
	PlanStatusRunning   PlanStatus = "running"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusFailed    PlanStatus = "failed"
	PlanStatusCancelled PlanStatus = "cancelled"
)

// StepStatus represents the status of a single plan step.
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// EventType represents the type of a streamed progress event.
type EventType string

const (
	EventTypePlanPreview   EventType = "plan_preview"
	EventTypeStepProgress  EventType = "step_progress"
	EventTypeStepComplete  EventType = "step_complete"
	EventTypeStepFailed    EventType = "step_failed"
	EventTypePlanComplete  EventType = "plan_complete"
	EventTypePlanFailed    EventType = "plan_failed"
	EventTypePlanCancelled EventType = "plan_cancelled"

	// Single-turn chat events
	EventTypeMessage EventType = "message"
	EventTypeError   EventType = "error"
)

// RollbackStatus represents the outcome of one compensation attempt.
type RollbackStatus string

const (
	RollbackStatusCompleted RollbackStatus = "completed"
	RollbackStatusFailed    RollbackStatus = "failed"
)
