// Package http provides the HTTP server for the assistant.
package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/fieldline/assistant/internal/auth"
	"github.com/fieldline/assistant/internal/event"
	store "github.com/fieldline/assistant/internal/repository"
	"github.com/fieldline/assistant/internal/service"
	v1 "github.com/fieldline/assistant/internal/transport/http/v1"
)

// NewServer creates and configures the HTTP server. Everything under /v1
// requires a bearer token; /health does not.
func NewServer(svc *service.Service, st store.Store, bus *event.Bus) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"version": "0.1.0",
		})
	})

	// Handlers
	handler := v1.NewHandler(svc, bus)
	handler.RegisterRoutes(e.Group("/v1", auth.Middleware(st)))

	return e
}
