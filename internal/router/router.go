package router

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/smartplate/smartplate-api/internal/config"
	"github.com/smartplate/smartplate-api/internal/handler"
	"github.com/smartplate/smartplate-api/internal/middleware"
	"github.com/smartplate/smartplate-api/internal/model"
)

// Handlers groups every handler the API serves.
type Handlers struct {
	Health   *handler.HealthHandler
	Auth     *handler.AuthHandler
	User     *handler.UserHandler
	Admin    *handler.AdminHandler
	Messages *handler.MessageHandler
}

// New builds the echo instance with logging, recovery, CORS and all routes.
func New(cfg config.Config, log *slog.Logger, v middleware.TokenVerifier, h Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("err", v.Error.Error()))
			}
			log.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
			return nil
		},
	}))
	e.Use(echomw.Recover())
	if cfg.FrontendOrigin != "" {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:     []string{cfg.FrontendOrigin},
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
			AllowCredentials: true,
		}))
	}

	session := middleware.SessionConfig{
		AccessCookie:    cfg.AccessCookieName,
		RefreshCookie:   cfg.RefreshCookieName,
		RefreshFallback: cfg.RefreshCookieFallback,
	}
	auth := middleware.Authenticate(v, session)

	RegisterRoutes(e, h.Health)
	RegisterAuth(e, h.Auth, auth)
	RegisterUser(e, h.User, auth)
	RegisterAdmin(e, h.Admin, h.Auth, auth)
	RegisterMessages(e, h.Messages, auth)
	return e
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/api/health", h.Health)
}

// RegisterAuth registers the session endpoints.  Login, refresh and logout
// work without an access token; the rest need one.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, auth echo.MiddlewareFunc) {
	g := e.Group("/api/auth")
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	g.POST("/change-password", a.ChangePassword, auth, middleware.RequireRole(model.RoleUser, model.RoleAdmin))
	g.GET("/me", a.Me, auth, middleware.RequireRole(model.RoleUser, model.RoleAdmin))
}
