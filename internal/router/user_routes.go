package router

import (
	"github.com/labstack/echo/v4"

	"github.com/smartplate/smartplate-api/internal/handler"
	"github.com/smartplate/smartplate-api/internal/middleware"
	"github.com/smartplate/smartplate-api/internal/model"
)

// RegisterUser registers client-scoped endpoints under /api/user.
func RegisterUser(e *echo.Echo, h *handler.UserHandler, auth echo.MiddlewareFunc) {
	g := e.Group("/api/user", auth, middleware.RequireRole(model.RoleUser))
	g.GET("/plan", h.Plan)
	g.GET("/questionnaire", h.GetQuestionnaire)
	g.POST("/questionnaire", h.SubmitQuestionnaire)
}
