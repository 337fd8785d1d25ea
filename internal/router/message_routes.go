package router

import (
	"github.com/labstack/echo/v4"

	"github.com/smartplate/smartplate-api/internal/handler"
	"github.com/smartplate/smartplate-api/internal/middleware"
	"github.com/smartplate/smartplate-api/internal/model"
)

// RegisterMessages registers messaging endpoints for both roles.
func RegisterMessages(e *echo.Echo, h *handler.MessageHandler, auth echo.MiddlewareFunc) {
	g := e.Group("/api/messages", auth, middleware.RequireRole(model.RoleUser, model.RoleAdmin))
	g.GET("/my-admin", h.MyAdmin, middleware.RequireRole(model.RoleUser))
	g.GET("/threads", h.Threads)
	g.GET("/conversation/:otherId", h.Conversation)
	g.POST("/:otherId", h.Send)
}
