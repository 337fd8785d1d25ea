package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/smartplate/smartplate-api/internal/middleware"
	"github.com/smartplate/smartplate-api/internal/service"
	"github.com/smartplate/smartplate-api/pkg/apperr"
)

// MessageHandler serves direct messaging between the coach and clients.
type MessageHandler struct {
	Messages *service.MessageService
	Log      *slog.Logger
}

func NewMessageHandler(m *service.MessageService, log *slog.Logger) *MessageHandler {
	return &MessageHandler{Messages: m, Log: log}
}

type sendReq struct {
	Body string `json:"body"`
}

// MyAdmin tells a client which admin to write to.
func (h *MessageHandler) MyAdmin(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Messages.MyAdmin(ctx)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"adminId": id})
}

// Threads lists the caller's inbox.
func (h *MessageHandler) Threads(c echo.Context) error {
	me, ok := middleware.IdentityOf(c)
	if !ok {
		return respondError(c, h.Log, apperr.ErrUnauthorized)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	threads, err := h.Messages.Threads(ctx, me.ID, me.Role)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"threads": threads})
}

// Conversation returns a page of messages with :otherId.  ?before takes an
// RFC 3339 instant, ?limit a page size.
func (h *MessageHandler) Conversation(c echo.Context) error {
	me, ok := middleware.IdentityOf(c)
	if !ok {
		return respondError(c, h.Log, apperr.ErrUnauthorized)
	}
	var before *time.Time
	if s := c.QueryParam("before"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return respondError(c, h.Log, apperr.Validation("Invalid before", map[string]string{"before": "must be an RFC 3339 timestamp"}))
		}
		before = &t
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	msgs, err := h.Messages.Conversation(ctx, me.ID, c.Param("otherId"), before, limit)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": msgs})
}

// Send posts a message to :otherId.
func (h *MessageHandler) Send(c echo.Context) error {
	me, ok := middleware.IdentityOf(c)
	if !ok {
		return respondError(c, h.Log, apperr.ErrUnauthorized)
	}
	var req sendReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	m, err := h.Messages.Send(ctx, me.ID, me.Role, c.Param("otherId"), req.Body)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": m})
}
