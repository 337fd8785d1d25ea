package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/smartplate/smartplate-api/internal/middleware"
	"github.com/smartplate/smartplate-api/internal/service"
	"github.com/smartplate/smartplate-api/pkg/apperr"
)

// UserHandler serves the client's own plan and intake form.
type UserHandler struct {
	Plans          *service.PlanService
	Questionnaires *service.QuestionnaireService
	Log            *slog.Logger
}

func NewUserHandler(p *service.PlanService, q *service.QuestionnaireService, log *slog.Logger) *UserHandler {
	return &UserHandler{Plans: p, Questionnaires: q, Log: log}
}

// Plan returns the caller's plan window for today.
func (h *UserHandler) Plan(c echo.Context) error {
	id, ok := middleware.IdentityOf(c)
	if !ok {
		return respondError(c, h.Log, apperr.ErrUnauthorized)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	v, err := h.Plans.PlanFor(ctx, id.ID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, v)
}

// GetQuestionnaire returns {exists:false} or {exists:true, data}.
func (h *UserHandler) GetQuestionnaire(c echo.Context) error {
	id, ok := middleware.IdentityOf(c)
	if !ok {
		return respondError(c, h.Log, apperr.ErrUnauthorized)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	q, exists, err := h.Questionnaires.Get(ctx, id.ID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	if !exists {
		return c.JSON(http.StatusOK, echo.Map{"exists": false})
	}
	return c.JSON(http.StatusOK, echo.Map{"exists": true, "data": q})
}

// SubmitQuestionnaire replaces the caller's intake form.
func (h *UserHandler) SubmitQuestionnaire(c echo.Context) error {
	id, ok := middleware.IdentityOf(c)
	if !ok {
		return respondError(c, h.Log, apperr.ErrUnauthorized)
	}
	var in service.QuestionnaireInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Questionnaires.Submit(ctx, id.ID, in); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
