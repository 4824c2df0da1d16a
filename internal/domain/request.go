package domain

// ChatRequest is the inbound chat turn from the client. Entities were
// extracted upstream from the conversation context and are bound into plan
// arguments by the matcher and builder.
type ChatRequest struct {
	Message  string         `json:"message"`
	Entities map[string]any `json:"entities,omitempty"`
}

// PlanDecisionRequest is an explicit approve/reject for a pending plan,
// used by non-chat UI surfaces.
type PlanDecisionRequest struct {
	Decision string `json:"decision"` // approve or reject
}

// PendingPlanResponse is the API view of a stored pending plan.
type PendingPlanResponse struct {
	Plan      *ExecutionPlan `json:"plan"`
	PatternID string         `json:"pattern_id"`
	CreatedAt int64          `json:"created_at"`
}
