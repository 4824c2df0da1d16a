package v1

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fieldline/assistant/internal/domain"
)

// PostChat handles one chat turn and streams progress events back as
// newline-delimited JSON.
// POST /v1/chat
func (h *Handler) PostChat(c echo.Context) error {
	id, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}

	var req domain.ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Message == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "message is required"})
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "application/x-ndjson")
	resp.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(resp)
	emit := func(ev domain.StreamEvent) {
		if err := enc.Encode(ev); err != nil {
			return
		}
		resp.Flush()
	}

	h.service.HandleChatTurn(c.Request().Context(), id, &req, emit)
	return nil
}
