package v1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fieldline/assistant/internal/domain"
)

// GetPendingPlan returns the caller's most recent pending plan.
// GET /v1/plans/pending
func (h *Handler) GetPendingPlan(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}

	pending, err := h.service.PendingPlanForUser(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if pending == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no pending plan"})
	}
	return c.JSON(http.StatusOK, pending)
}

// DecidePlan applies an explicit approve or reject to a pending plan and
// streams progress events for an approval.
// POST /v1/plans/:plan_id/decide
func (h *Handler) DecidePlan(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}

	planID := c.Param("plan_id")
	var req domain.PlanDecisionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "application/x-ndjson")

	started := false
	enc := json.NewEncoder(resp)
	emit := func(ev domain.StreamEvent) {
		if !started {
			resp.WriteHeader(http.StatusOK)
			started = true
		}
		if err := enc.Encode(ev); err != nil {
			return
		}
		resp.Flush()
	}

	err := h.service.DecidePlan(c.Request().Context(), id, planID, req.Decision, emit)
	if err != nil && !started {
		if errors.Is(err, domain.ErrPlanNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "plan not found"})
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return nil
}
