package domain

import (
	"encoding/json"
	"time"
)

// ParameterSchema is a JSON-schema-like description of a tool's arguments.
// It is serialized verbatim into LLM tool-calling requests and used for
// runtime validation before a tool body runs.
type ParameterSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties,omitempty"`
	Required   []string                  `json:"required,omitempty"`
}

// PropertySchema describes one tool argument.
type PropertySchema struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// ToolDescriptor is the public view of a registered tool: exactly what gets
// serialized into the LLM tool-calling request.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      ParameterSchema `json:"parameters"`
}

// AuditRecord is one audit-log entry written by a tool execution. Consumed by
// separate reporting surfaces, never read back by the planner.
type AuditRecord struct {
	AuditID      string          `json:"audit_id"`
	BusinessID   string          `json:"business_id"`
	UserID       string          `json:"user_id"`
	ActivityType string          `json:"activity_type"`
	Description  string          `json:"description"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
