package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/smartplate/smartplate-api/internal/service"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdminHandler serves the coach's dashboard and client management.
type AdminHandler struct {
	Accounts *service.AccountService
	Log      *slog.Logger
}

func NewAdminHandler(a *service.AccountService, log *slog.Logger) *AdminHandler {
	return &AdminHandler{Accounts: a, Log: log}
}

// Dashboard lists all clients.
func (h *AdminHandler) Dashboard(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	users, err := h.Accounts.Dashboard(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"users": users})
}

// UserDetails returns one client with questionnaire, plan and BMI.
func (h *AdminHandler) UserDetails(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	d, err := h.Accounts.UserDetails(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, d)
}

// CreateUser registers a new client.
func (h *AdminHandler) CreateUser(c echo.Context) error {
	var in service.CreateUserInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, err := h.Accounts.CreateUser(ctx, in)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"user": service.NewAccountView(a)})
}

// UpdatePlan changes a client's plan dates or duration.
func (h *AdminHandler) UpdatePlan(c echo.Context) error {
	var in service.UpdatePlanInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, err := h.Accounts.UpdatePlan(ctx, c.Param("id"), in)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": service.NewAccountView(a)})
}

// DeleteUser removes a client.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Accounts.DeleteUser(ctx, c.Param("id")); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// ExportUsers streams the client roster as an .xlsx attachment.
func (h *AdminHandler) ExportUsers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	var buf bytes.Buffer
	if err := h.Accounts.ExportXLSX(ctx, &buf); err != nil {
		return respondError(c, h.Log, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="users.xlsx"`)
	return c.Blob(http.StatusOK, xlsxMIME, buf.Bytes())
}
