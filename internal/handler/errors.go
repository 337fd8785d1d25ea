package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/smartplate/smartplate-api/pkg/apperr"
)

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Error  string            `json:"error"`
	Code   apperr.Code       `json:"code,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// respondError maps err onto its HTTP status.  Internal failures are logged
// and answered with a generic message.
func respondError(c echo.Context, log *slog.Logger, err error) error {
	ae, ok := apperr.As(err)
	if !ok || apperr.HTTPStatus(ae.Code) >= http.StatusInternalServerError {
		log.Error("request failed",
			slog.String("method", c.Request().Method),
			slog.String("path", c.Path()),
			slog.Any("err", err))
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "Internal server error", Code: apperr.CodeInternal})
	}
	return c.JSON(apperr.HTTPStatus(ae.Code), errorBody{Error: ae.Message, Code: ae.Code, Fields: ae.Fields})
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, errorBody{Error: "Invalid payload", Code: apperr.CodeInvalidArgument})
}
