package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldline/assistant/internal/domain"
	"github.com/fieldline/assistant/internal/planner"
)

// Identity is the authenticated caller of a chat turn.
type Identity struct {
	UserID     string
	BusinessID string
}

// HandleChatTurn processes one inbound chat message and emits progress
// events through emit as the turn unfolds. The routing order is fixed:
// approval detection first, then pattern matching, then the single-turn
// LLM fallback.
func (s *Service) HandleChatTurn(ctx context.Context, id Identity, req *domain.ChatRequest, emit planner.ProgressFunc) {
	s.sweepExpiredPlans()

	send := s.fanout(id, emit)

	s.persistMessage(ctx, id, "user", req.Message)

	signal := planner.DetectPlanApproval(req.Message)
	if signal.IsApproval || signal.IsRejection {
		handled := s.handleDecisionMessage(ctx, id, signal, send)
		if handled {
			return
		}
	}

	if pattern, ok := s.matcher.DetectMultiStepTask(req.Message, req.Entities); ok {
		s.proposePlan(ctx, id, pattern, req.Entities, send)
		return
	}

	s.singleTurn(ctx, id, req.Message, send)
}

// sweepExpiredPlans runs TTL cleanup in the background. A sweep failure
// only costs storage, never the turn.
func (s *Service) sweepExpiredPlans() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if removed, err := s.plans.Cleanup(ctx); err != nil {
			s.log.Warnw("pending plan sweep failed", "error", err)
		} else if removed > 0 {
			s.log.Infow("swept expired pending plans", "removed", removed)
		}
	}()
}

// fanout wraps the caller's emit function so every event also reaches the
// user's event bus channel (the WebSocket feed).
func (s *Service) fanout(id Identity, emit planner.ProgressFunc) planner.ProgressFunc {
	return func(ev domain.StreamEvent) {
		if emit != nil {
			emit(ev)
		}
		evCopy := ev
		s.bus.Publish("user:"+id.UserID, &evCopy)
	}
}

// handleDecisionMessage resolves an approval or rejection expressed in
// chat. It reports false when the message should fall through to the other
// routes: an approval-looking message with no plan id and nothing pending
// is most likely ordinary conversation.
func (s *Service) handleDecisionMessage(ctx context.Context, id Identity, signal planner.ApprovalSignal, send planner.ProgressFunc) bool {
	planID := signal.PlanID
	if planID == "" {
		rec, err := s.plans.MostRecentPending(ctx, id.UserID)
		if err != nil {
			s.sendError(send, "plan_lookup_failed", err.Error())
			return true
		}
		if rec == nil {
			return false
		}
		planID = rec.Plan.PlanID
	}

	rec, err := s.plans.Resolve(ctx, planID, id.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrPlanNotFound) {
			s.sendError(send, "plan_not_found", fmt.Sprintf("Plan %s is no longer pending.", planID))
		} else {
			s.sendError(send, "plan_lookup_failed", err.Error())
		}
		return true
	}

	if signal.IsRejection {
		s.cancelPlan(ctx, id, rec, send)
		return true
	}
	s.runPlan(ctx, id, rec, send)
	return true
}

// DecidePlan is the explicit approve/reject entrypoint used by non-chat
// surfaces. The plan id is always explicit here.
func (s *Service) DecidePlan(ctx context.Context, id Identity, planID, decision string, emit planner.ProgressFunc) error {
	if decision != "approve" && decision != "reject" {
		return fmt.Errorf("invalid decision %q", decision)
	}
	send := s.fanout(id, emit)

	rec, err := s.plans.Resolve(ctx, planID, id.UserID)
	if err != nil {
		return err
	}

	if decision == "reject" {
		s.cancelPlan(ctx, id, rec, send)
		return nil
	}
	s.runPlan(ctx, id, rec, send)
	return nil
}

// PendingPlanForUser returns the user's newest pending plan, or nil.
func (s *Service) PendingPlanForUser(ctx context.Context, id Identity) (*domain.PendingPlanResponse, error) {
	rec, err := s.plans.MostRecentPending(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.OwnerUserID != id.UserID {
		return nil, nil
	}
	return &domain.PendingPlanResponse{
		Plan:      rec.Plan,
		PatternID: rec.PatternID,
		CreatedAt: rec.CreatedAt.UnixMilli(),
	}, nil
}

// proposePlan builds a plan from the matched pattern and parks it for
// approval. Nothing executes on this turn.
func (s *Service) proposePlan(ctx context.Context, id Identity, pattern *planner.TaskPattern, entities map[string]any, send planner.ProgressFunc) {
	plan, err := planner.BuildExecutionPlan(pattern, entities)
	if err != nil {
		var bindErr *domain.PatternBindingError
		if errors.As(err, &bindErr) {
			s.sendError(send, "plan_build_failed", fmt.Sprintf("I can't build that plan: %v.", err))
		} else {
			s.sendError(send, "plan_build_failed", err.Error())
		}
		return
	}

	rec := &domain.PendingPlanRecord{
		Plan:        plan,
		PatternID:   pattern.ID,
		Entities:    entities,
		OwnerUserID: id.UserID,
		BusinessID:  id.BusinessID,
		CreatedAt:   time.Now(),
	}
	s.plans.StorePending(ctx, rec)

	ev := domain.NewStreamEvent(domain.EventTypePlanPreview)
	ev.PlanID = plan.PlanID
	ev.Plan = plan
	ev.Message = fmt.Sprintf("I've prepared %q with %d step(s). Reply yes to run it or no to discard (plan id %s).",
		plan.Name, len(plan.Steps), plan.PlanID)
	send(ev)

	s.persistMessage(ctx, id, "assistant", ev.Message)
}

func (s *Service) runPlan(ctx context.Context, id Identity, rec *domain.PendingPlanRecord, send planner.ProgressFunc) {
	pattern, ok := s.matcher.Pattern(rec.PatternID)
	if !ok {
		s.sendError(send, "pattern_missing", fmt.Sprintf("Plan %s references an unknown pattern.", rec.Plan.PlanID))
		return
	}

	ec := planner.ExecContext{
		UserID:     rec.OwnerUserID,
		BusinessID: rec.BusinessID,
		Store:      s.store,
		Log:        s.log,
	}
	plan := s.executor.ExecutePlan(ctx, rec.Plan, ec, rec.Entities, pattern, send)

	summary := planSummary(plan)
	s.persistMessage(ctx, id, "assistant", summary)
}

func (s *Service) cancelPlan(ctx context.Context, id Identity, rec *domain.PendingPlanRecord, send planner.ProgressFunc) {
	rec.Plan.Status = domain.PlanStatusCancelled

	ev := domain.NewStreamEvent(domain.EventTypePlanCancelled)
	ev.PlanID = rec.Plan.PlanID
	ev.Plan = rec.Plan
	ev.Message = fmt.Sprintf("Discarded plan %s. Nothing was executed.", rec.Plan.PlanID)
	send(ev)

	s.persistMessage(ctx, id, "assistant", ev.Message)
}

// singleTurn answers via the LLM with the tool catalog attached. Tool calls
// requested by the model run immediately; their results feed one follow-up
// completion whose text closes the turn.
func (s *Service) singleTurn(ctx context.Context, id Identity, message string, send planner.ProgressFunc) {
	messages, err := s.buildLLMMessages(ctx, id, message)
	if err != nil {
		s.sendError(send, "history_load_failed", err.Error())
		return
	}

	resp, err := s.complete(ctx, messages)
	if err != nil {
		s.sendError(send, "llm_failed", err.Error())
		return
	}

	choice := firstChoice(resp)
	if choice == nil {
		s.sendError(send, "llm_failed", "the model returned no choices")
		return
	}

	if len(choice.ToolCalls) > 0 {
		messages = append(messages, *choice)
		ec := planner.ExecContext{UserID: id.UserID, BusinessID: id.BusinessID, Store: s.store, Log: s.log}
		for _, call := range choice.ToolCalls {
			messages = append(messages, s.runToolCall(ctx, ec, call))
		}
		resp, err = s.complete(ctx, messages)
		if err != nil {
			s.sendError(send, "llm_failed", err.Error())
			return
		}
		choice = firstChoice(resp)
		if choice == nil {
			s.sendError(send, "llm_failed", "the model returned no choices")
			return
		}
	}

	ev := domain.NewStreamEvent(domain.EventTypeMessage)
	ev.Message = choice.Content
	send(ev)

	s.persistMessage(ctx, id, "assistant", choice.Content)
}

func (s *Service) persistMessage(ctx context.Context, id Identity, role, content string) {
	if content == "" {
		return
	}
	msg := &domain.ChatMessage{
		MessageID:  "msg_" + uuid.New().String()[:8],
		BusinessID: id.BusinessID,
		UserID:     id.UserID,
		Role:       role,
		Content:    content,
		CreatedAt:  time.Now(),
	}
	if err := s.store.CreateChatMessage(ctx, msg); err != nil {
		s.log.Warnw("persist chat message failed", "role", role, "error", err)
	}
}

func (s *Service) sendError(send planner.ProgressFunc, code, message string) {
	ev := domain.NewStreamEvent(domain.EventTypeError)
	ev.Code = code
	ev.Message = message
	send(ev)
}

func planSummary(plan *domain.ExecutionPlan) string {
	switch plan.Status {
	case domain.PlanStatusCompleted:
		return fmt.Sprintf("Plan %s completed: %d step(s) in %dms.", plan.PlanID, len(plan.Steps), plan.TotalDurationMs)
	case domain.PlanStatusFailed:
		rolledBack := 0
		for _, rb := range plan.RollbackSteps {
			if rb.Status == domain.RollbackStatusCompleted {
				rolledBack++
			}
		}
		return fmt.Sprintf("Plan %s failed; rolled back %d step(s).", plan.PlanID, rolledBack)
	default:
		return fmt.Sprintf("Plan %s finished with status %s.", plan.PlanID, plan.Status)
	}
}
