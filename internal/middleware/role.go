package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/smartplate/smartplate-api/internal/model"
)

// RequireRole admits an authenticated caller whose role is one of roles.
// It must run after Authenticate; a request without identity gets 401 and a
// caller with another role gets 403.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityOf(c)
			if !ok {
				return unauthorized(c)
			}
			if !allowed[id.Role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "Forbidden"})
			}
			return next(c)
		}
	}
}
