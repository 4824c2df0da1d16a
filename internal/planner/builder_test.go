package planner

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldline/assistant/internal/domain"
)

func TestBuildExecutionPlanExpandsListEntities(t *testing.T) {
	pattern := &TaskPattern{
		ID:   "batch",
		Name: "Batch work",
		Steps: []StepTemplate{
			{
				Name:                 "Process job",
				ToolName:             "process",
				CompensationToolName: "undo",
				ForEachEntity:        "jobs",
				BindArgs: func(entities map[string]any, item any) (json.RawMessage, error) {
					return json.Marshal(map[string]any{"job_id": item})
				},
			},
		},
	}
	entities := map[string]any{"jobs": []any{"j1", "j2", "j3"}}

	plan, err := BuildExecutionPlan(pattern, entities)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 3)

	assert.Equal(t, domain.PlanStatusPending, plan.Status)
	assert.Regexp(t, `^plan_[0-9a-f]{8}$`, plan.PlanID)

	seen := map[string]bool{}
	for i, step := range plan.Steps {
		assert.Regexp(t, `^step_[0-9a-f]{8}$`, step.StepID)
		assert.False(t, seen[step.StepID], "step ids must be unique")
		seen[step.StepID] = true

		assert.Equal(t, 0, step.TemplateIndex)
		assert.Equal(t, "process", step.ToolName)
		assert.Equal(t, "undo", step.CompensationTool)
		assert.Equal(t, domain.StepStatusPending, step.Status)
		assert.JSONEq(t, fmt.Sprintf(`{"job_id":"j%d"}`, i+1), string(step.Args))
	}
	assert.Equal(t, "Process job j1", plan.Steps[0].Name)
}

func TestBuildExecutionPlanDefersPriorBindings(t *testing.T) {
	pattern := &TaskPattern{
		ID:   "two_step",
		Name: "Two step",
		Steps: []StepTemplate{
			{
				Name:     "Create",
				ToolName: "create",
				BindArgs: func(entities map[string]any, _ any) (json.RawMessage, error) {
					return json.RawMessage(`{"x":1}`), nil
				},
			},
			{
				Name:     "Notify",
				ToolName: "notify",
				BindFromPrior: func(prior []*domain.PlanStep, entities map[string]any) (json.RawMessage, error) {
					return json.RawMessage(`{}`), nil
				},
			},
		},
	}

	plan, err := BuildExecutionPlan(pattern, nil)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)

	assert.NotEmpty(t, plan.Steps[0].Args)
	// Deferred until execution.
	assert.Empty(t, plan.Steps[1].Args)
	assert.Equal(t, 1, plan.Steps[1].TemplateIndex)
}

func TestBuildExecutionPlanMissingListEntity(t *testing.T) {
	pattern := &TaskPattern{
		ID:   "batch",
		Name: "Batch work",
		Steps: []StepTemplate{
			{Name: "Process", ToolName: "process", ForEachEntity: "jobs"},
		},
	}

	_, err := BuildExecutionPlan(pattern, map[string]any{})
	var bindErr *domain.PatternBindingError
	require.ErrorAs(t, err, &bindErr)
	assert.Equal(t, "batch", bindErr.PatternID)
}

func TestBuildExecutionPlanBindFailure(t *testing.T) {
	pattern := &TaskPattern{
		ID:   "strict",
		Name: "Strict",
		Steps: []StepTemplate{
			{
				Name:     "Check",
				ToolName: "check",
				BindArgs: func(entities map[string]any, _ any) (json.RawMessage, error) {
					return nil, fmt.Errorf("customer_id entity missing")
				},
			},
		},
	}

	_, err := BuildExecutionPlan(pattern, nil)
	var bindErr *domain.PatternBindingError
	require.ErrorAs(t, err, &bindErr)
}
