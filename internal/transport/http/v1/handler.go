// Package v1 provides the versioned HTTP handlers for the assistant API.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fieldline/assistant/internal/auth"
	"github.com/fieldline/assistant/internal/event"
	"github.com/fieldline/assistant/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
	bus     *event.Bus
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service, bus *event.Bus) *Handler {
	return &Handler{
		service: service,
		bus:     bus,
	}
}

// RegisterRoutes registers the authenticated routes on the group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	// Chat API
	g.POST("/chat", h.PostChat)
	g.GET("/events", h.StreamEvents)

	// Plan API (non-chat surfaces)
	g.GET("/plans/pending", h.GetPendingPlan)
	g.POST("/plans/:plan_id/decide", h.DecidePlan)

	// Tool catalog
	g.GET("/tools", h.ListTools)
}

// ListTools returns the registered tool descriptors.
// GET /v1/tools
func (h *Handler) ListTools(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tools": h.service.Tools(),
	})
}

// identity pulls the authenticated caller off the request.
func identity(c echo.Context) (service.Identity, bool) {
	authCtx, ok := auth.FromEchoContext(c)
	if !ok {
		return service.Identity{}, false
	}
	return service.Identity{UserID: authCtx.UserID, BusinessID: authCtx.BusinessID}, true
}
