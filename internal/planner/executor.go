package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fieldline/assistant/internal/domain"
)

// ProgressFunc receives events as the executor advances through a plan.
type ProgressFunc func(domain.StreamEvent)

// Executor runs approved plans step by step, compensating completed work
// when a later step fails.
type Executor struct {
	registry    *Registry
	stepTimeout time.Duration
	log         *zap.SugaredLogger
}

func NewExecutor(registry *Registry, stepTimeout time.Duration, log *zap.SugaredLogger) *Executor {
	return &Executor{
		registry:    registry,
		stepTimeout: stepTimeout,
		log:         log,
	}
}

// ExecutePlan runs the plan's steps in order. On any step failure the
// already-completed steps are rolled back in reverse order and the plan is
// marked failed. The returned plan carries final step state either way.
func (e *Executor) ExecutePlan(ctx context.Context, plan *domain.ExecutionPlan, ec ExecContext, entities map[string]any, pattern *TaskPattern, onProgress ProgressFunc) *domain.ExecutionPlan {
	emit := func(ev domain.StreamEvent) {
		if onProgress != nil {
			onProgress(ev)
		}
	}

	started := time.Now()
	plan.Status = domain.PlanStatusRunning
	total := len(plan.Steps)

	for i, step := range plan.Steps {
		now := time.Now()
		step.Status = domain.StepStatusRunning
		step.StartedAt = &now

		ev := domain.NewStreamEvent(domain.EventTypeStepProgress)
		ev.PlanID = plan.PlanID
		ev.StepIndex = i
		ev.TotalSteps = total
		ev.Step = stepInfo(step)
		emit(ev)

		if err := e.resolveDeferredArgs(plan, step, entities, pattern); err != nil {
			e.failStep(step, err)

			fe := domain.NewStreamEvent(domain.EventTypeStepFailed)
			fe.PlanID = plan.PlanID
			fe.StepIndex = i
			fe.TotalSteps = total
			fe.Step = stepInfo(step)
			fe.Message = err.Error()
			emit(fe)

			e.finishFailed(ctx, plan, ec, pattern, i, err, started, emit)
			return plan
		}

		result, err := e.executeStep(ctx, step, ec)
		completed := time.Now()
		step.CompletedAt = &completed
		if err != nil {
			e.failStep(step, err)

			fe := domain.NewStreamEvent(domain.EventTypeStepFailed)
			fe.PlanID = plan.PlanID
			fe.StepIndex = i
			fe.TotalSteps = total
			fe.Step = stepInfo(step)
			fe.Message = err.Error()
			emit(fe)

			e.finishFailed(ctx, plan, ec, pattern, i, err, started, emit)
			return plan
		}

		step.Status = domain.StepStatusCompleted
		step.Result = result

		ce := domain.NewStreamEvent(domain.EventTypeStepComplete)
		ce.PlanID = plan.PlanID
		ce.StepIndex = i
		ce.TotalSteps = total
		ce.Step = stepInfo(step)
		emit(ce)
	}

	plan.Status = domain.PlanStatusCompleted
	plan.TotalDurationMs = time.Since(started).Milliseconds()

	done := domain.NewStreamEvent(domain.EventTypePlanComplete)
	done.PlanID = plan.PlanID
	done.Plan = plan
	done.Message = fmt.Sprintf("Completed %d step(s) in %dms.", total, plan.TotalDurationMs)
	emit(done)
	return plan
}

// resolveDeferredArgs fills in arguments for steps that bind from prior step
// output. Bindings live on the pattern templates because functions do not
// survive plan serialization.
func (e *Executor) resolveDeferredArgs(plan *domain.ExecutionPlan, step *domain.PlanStep, entities map[string]any, pattern *TaskPattern) error {
	if step.Args != nil || pattern == nil {
		return nil
	}
	if step.TemplateIndex < 0 || step.TemplateIndex >= len(pattern.Steps) {
		return nil
	}
	tpl := pattern.Steps[step.TemplateIndex]
	if tpl.BindFromPrior == nil {
		return nil
	}
	args, err := tpl.BindFromPrior(plan.Steps, entities)
	if err != nil {
		return fmt.Errorf("bind step arguments: %w", err)
	}
	step.Args = args
	return nil
}

// executeStep runs a single tool call under the per-step deadline.
func (e *Executor) executeStep(ctx context.Context, step *domain.PlanStep, ec ExecContext) (json.RawMessage, error) {
	stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()

	type outcome struct {
		result json.RawMessage
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		result, err := e.registry.Execute(stepCtx, step.ToolName, step.Args, ec)
		ch <- outcome{result: result, err: err}
	}()

	select {
	case out := <-ch:
		return out.result, out.err
	case <-stepCtx.Done():
		if errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
			return nil, domain.ErrStepTimeout
		}
		return nil, stepCtx.Err()
	}
}

func (e *Executor) failStep(step *domain.PlanStep, err error) {
	step.Status = domain.StepStatusFailed
	step.Error = err.Error()
	if step.CompletedAt == nil {
		now := time.Now()
		step.CompletedAt = &now
	}
}

func (e *Executor) finishFailed(ctx context.Context, plan *domain.ExecutionPlan, ec ExecContext, pattern *TaskPattern, failedIndex int, cause error, started time.Time, emit ProgressFunc) {
	for _, step := range plan.Steps[failedIndex+1:] {
		step.Status = domain.StepStatusSkipped
	}

	rolledBack := e.rollback(ctx, plan, ec, pattern, failedIndex)

	plan.Status = domain.PlanStatusFailed
	plan.TotalDurationMs = time.Since(started).Milliseconds()

	ev := domain.NewStreamEvent(domain.EventTypePlanFailed)
	ev.PlanID = plan.PlanID
	ev.Plan = plan
	ev.Message = failureSummary(plan.Steps[failedIndex], cause, rolledBack)
	emit(ev)
}

// rollback compensates completed steps in reverse order. Compensation is
// best effort: a failed compensation is recorded and the sweep continues.
// The sweep runs detached from request cancellation so partial work is
// still unwound when the caller goes away.
func (e *Executor) rollback(ctx context.Context, plan *domain.ExecutionPlan, ec ExecContext, pattern *TaskPattern, failedIndex int) int {
	rbCtx := context.WithoutCancel(ctx)
	rolledBack := 0

	for i := failedIndex - 1; i >= 0; i-- {
		step := plan.Steps[i]
		if step.Status != domain.StepStatusCompleted || step.CompensationTool == "" {
			continue
		}

		args, err := e.compensationArgs(step, pattern)
		rb := domain.RollbackStep{
			StepID:      step.StepID,
			ToolName:    step.CompensationTool,
			AttemptedAt: time.Now(),
		}
		if err == nil {
			_, err = e.registry.Execute(rbCtx, step.CompensationTool, args, ec)
		}
		if err != nil {
			rb.Status = domain.RollbackStatusFailed
			rb.Error = err.Error()
			e.log.Warnw("rollback step failed",
				"plan_id", plan.PlanID,
				"step_id", step.StepID,
				"tool", step.CompensationTool,
				"error", err)
		} else {
			rb.Status = domain.RollbackStatusCompleted
			rolledBack++
		}
		plan.RollbackSteps = append(plan.RollbackSteps, rb)
	}
	return rolledBack
}

// compensationArgs derives the compensation payload for a completed step.
// Templates may supply an explicit mapping; the default hands the step's
// result straight to the compensation tool.
func (e *Executor) compensationArgs(step *domain.PlanStep, pattern *TaskPattern) (json.RawMessage, error) {
	if pattern != nil && step.TemplateIndex >= 0 && step.TemplateIndex < len(pattern.Steps) {
		tpl := pattern.Steps[step.TemplateIndex]
		if tpl.CompensationArgs != nil {
			return tpl.CompensationArgs(step)
		}
	}
	if len(step.Result) == 0 {
		return json.RawMessage(`{}`), nil
	}
	return step.Result, nil
}

func failureSummary(failed *domain.PlanStep, cause error, rolledBack int) string {
	msg := fmt.Sprintf("Step %q failed: %v.", failed.Name, cause)
	if rolledBack > 0 {
		msg += fmt.Sprintf(" Rolled back %d step(s).", rolledBack)
	}
	return msg
}

func stepInfo(step *domain.PlanStep) *domain.StepInfo {
	return &domain.StepInfo{
		StepID: step.StepID,
		Name:   step.Name,
		Status: step.Status,
	}
}
