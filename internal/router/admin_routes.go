package router

import (
	"github.com/labstack/echo/v4"

	"github.com/smartplate/smartplate-api/internal/handler"
	"github.com/smartplate/smartplate-api/internal/middleware"
	"github.com/smartplate/smartplate-api/internal/model"
)

// RegisterAdmin registers the coach's endpoints.  /api/admin/login is open;
// everything else requires the admin role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, a *handler.AuthHandler, auth echo.MiddlewareFunc) {
	e.POST("/api/admin/login", a.AdminLogin)

	g := e.Group("/api/admin", auth, middleware.RequireRole(model.RoleAdmin))
	g.GET("/dashboard", h.Dashboard)

	// static export path wins over :id
	g.GET("/users/export.xlsx", h.ExportUsers)
	g.POST("/users", h.CreateUser)
	g.GET("/users/:id", h.UserDetails)
	g.PATCH("/users/:id/plan", h.UpdatePlan)
	g.DELETE("/users/:id", h.DeleteUser)
}
