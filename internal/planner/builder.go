package planner

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldline/assistant/internal/domain"
)

// BuildExecutionPlan expands a matched pattern into an ordered plan. Step
// identities are fully materialized up front; arguments for steps that
// depend on prior step output stay empty until the executor resolves them.
func BuildExecutionPlan(pattern *TaskPattern, entities map[string]any) (*domain.ExecutionPlan, error) {
	plan := &domain.ExecutionPlan{
		PlanID:    "plan_" + uuid.New().String()[:8],
		Name:      pattern.Name,
		Status:    domain.PlanStatusPending,
		CreatedAt: time.Now(),
	}

	for idx, tpl := range pattern.Steps {
		if tpl.ForEachEntity != "" {
			items, ok := entityList(entities, tpl.ForEachEntity)
			if !ok {
				return nil, &domain.PatternBindingError{PatternID: pattern.ID, Entity: tpl.ForEachEntity}
			}
			for _, item := range items {
				step, err := instantiateStep(pattern, idx, entities, item)
				if err != nil {
					return nil, err
				}
				plan.Steps = append(plan.Steps, step)
			}
			continue
		}

		step, err := instantiateStep(pattern, idx, entities, nil)
		if err != nil {
			return nil, err
		}
		plan.Steps = append(plan.Steps, step)
	}

	return plan, nil
}

func instantiateStep(pattern *TaskPattern, templateIndex int, entities map[string]any, item any) (*domain.PlanStep, error) {
	tpl := pattern.Steps[templateIndex]
	step := &domain.PlanStep{
		StepID:           "step_" + uuid.New().String()[:8],
		Name:             stepName(tpl.Name, item),
		TemplateIndex:    templateIndex,
		ToolName:         tpl.ToolName,
		CompensationTool: tpl.CompensationToolName,
		Status:           domain.StepStatusPending,
	}

	// Deferred bindings are resolved by the executor just before the step runs.
	if tpl.BindFromPrior != nil {
		return step, nil
	}

	if tpl.BindArgs != nil {
		args, err := tpl.BindArgs(entities, item)
		if err != nil {
			return nil, &domain.PatternBindingError{PatternID: pattern.ID, Entity: err.Error()}
		}
		step.Args = args
	}
	return step, nil
}

func stepName(base string, item any) string {
	ref := itemRef(item)
	if ref == "" {
		return base
	}
	return fmt.Sprintf("%s %s", base, ref)
}

// itemRef extracts a short display reference from a fan-out item.
func itemRef(item any) string {
	switch v := item.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		for _, key := range []string{"job_id", "quote_id", "invoice_id", "customer_id", "id"} {
			if s, ok := v[key].(string); ok {
				return s
			}
		}
	}
	return fmt.Sprintf("%v", item)
}

func entityList(entities map[string]any, name string) ([]any, bool) {
	value, ok := entities[name]
	if !ok || value == nil {
		return nil, false
	}
	list, ok := value.([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	return list, true
}
