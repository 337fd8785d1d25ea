package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/smartplate/smartplate-api/internal/config"
	"github.com/smartplate/smartplate-api/internal/middleware"
	"github.com/smartplate/smartplate-api/internal/model"
	"github.com/smartplate/smartplate-api/internal/service"
	"github.com/smartplate/smartplate-api/pkg/apperr"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg  config.Config
	Auth *service.AuthService
	Log  *slog.Logger
}

func NewAuthHandler(cfg config.Config, a *service.AuthService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Auth: a, Log: log}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordReq struct {
	NewPassword string `json:"newPassword"`
}

type loginResp struct {
	AccessToken string              `json:"accessToken"`
	User        service.AccountView `json:"user"`
}

type tokenResp struct {
	AccessToken string `json:"accessToken"`
}

// Login signs a client in.
func (h *AuthHandler) Login(c echo.Context) error {
	return h.login(c, model.RoleUser)
}

// AdminLogin signs the coach in.
func (h *AuthHandler) AdminLogin(c echo.Context) error {
	return h.login(c, model.RoleAdmin)
}

func (h *AuthHandler) login(c echo.Context, role model.Role) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	email := model.NormalizeEmail(req.Email)
	fields := map[string]string{}
	if email == "" {
		fields["email"] = "required"
	}
	if req.Password == "" {
		fields["password"] = "required"
	}
	if len(fields) > 0 {
		return respondError(c, h.Log, apperr.Validation("Invalid email or password", fields))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Auth.Login(ctx, email, req.Password, role)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	h.setSession(c, s)
	return c.JSON(http.StatusOK, loginResp{AccessToken: s.Access.Token, User: service.NewAccountView(s.Account)})
}

// Refresh rotates the refresh cookie and returns a new access token.  Any
// failure clears the cookies.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var raw string
	if ck, err := c.Cookie(h.Cfg.RefreshCookieName); err == nil {
		raw = strings.TrimSpace(ck.Value)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Auth.Refresh(ctx, raw)
	if err != nil {
		h.clearSession(c)
		return respondError(c, h.Log, err)
	}
	h.setSession(c, s)
	return c.JSON(http.StatusOK, tokenResp{AccessToken: s.Access.Token})
}

// Logout revokes the presented refresh token and clears the cookies.
func (h *AuthHandler) Logout(c echo.Context) error {
	if ck, err := c.Cookie(h.Cfg.RefreshCookieName); err == nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		h.Auth.Logout(ctx, ck.Value)
	}
	h.clearSession(c)
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// ChangePassword sets a new password for the caller and starts a fresh
// session.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	id, ok := middleware.IdentityOf(c)
	if !ok {
		return respondError(c, h.Log, apperr.ErrUnauthorized)
	}
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Auth.ChangePassword(ctx, id.ID, req.NewPassword)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	h.setSession(c, s)
	return c.JSON(http.StatusOK, tokenResp{AccessToken: s.Access.Token})
}

// Me echoes the identity of the caller.
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := middleware.IdentityOf(c)
	if !ok {
		return respondError(c, h.Log, apperr.ErrUnauthorized)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":                 id.ID,
		"role":               id.Role,
		"firstLogin":         id.FirstLogin,
		"mustChangePassword": id.MustChangePassword,
	})
}

func (h *AuthHandler) setSession(c echo.Context, s service.Session) {
	c.SetCookie(h.cookie(h.Cfg.RefreshCookieName, s.Refresh.Token, h.Cfg.RefreshTTL()))
	if h.Cfg.AccessCookieName != "" {
		c.SetCookie(h.cookie(h.Cfg.AccessCookieName, s.Access.Token, h.Cfg.AccessTTL()))
	}
}

func (h *AuthHandler) clearSession(c echo.Context) {
	for _, name := range []string{h.Cfg.RefreshCookieName, h.Cfg.AccessCookieName} {
		if name == "" {
			continue
		}
		ck := h.cookie(name, "", 0)
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
		c.SetCookie(ck)
	}
}

func (h *AuthHandler) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
