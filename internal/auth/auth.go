// Package auth resolves bearer tokens to the tenant identity carried
// through the request.
package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	store "github.com/fieldline/assistant/internal/repository"
)

const contextKey = "auth"

// Context is the authenticated caller attached to an echo request.
type Context struct {
	UserID     string
	BusinessID string
}

// Middleware authenticates requests with a bearer token from the api_tokens
// table. Requests without a valid token get a 401.
func Middleware(st store.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c.Request())
			if token == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			}
			rec, err := st.GetAPIToken(c.Request().Context(), token)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "auth lookup failed"})
			}
			if rec == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			}
			c.Set(contextKey, Context{UserID: rec.UserID, BusinessID: rec.BusinessID})
			return next(c)
		}
	}
}

// FromEchoContext returns the identity attached by Middleware.
func FromEchoContext(c echo.Context) (Context, bool) {
	auth, ok := c.Get(contextKey).(Context)
	return auth, ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}
