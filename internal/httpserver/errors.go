package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/school_canteen/internal/search"
	"github.com/Skotchmaster/school_canteen/internal/service"
	"github.com/Skotchmaster/school_canteen/internal/transport"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrInvalidPromo),
		errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, service.ErrInsufficientUserBalance),
		errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, search.ErrDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError logs err and renders the stable error body. Store failures are
// reported without detail.
func writeError(c echo.Context, l *slog.Logger, event string, err error) error {
	status := statusFor(err)
	code := service.Code(err)
	msg := err.Error()

	if status >= http.StatusInternalServerError {
		l.Error(event, "status", status, "reason", code, "error", err)
		msg = "internal error"
	} else {
		l.Warn(event, "status", status, "reason", code, "error", err)
	}
	return c.JSON(status, transport.ErrorResponse{Status: "error", Code: code, Message: msg})
}

func badRequest(c echo.Context, l *slog.Logger, event string, err error) error {
	l.Warn(event, "status", http.StatusBadRequest, "reason", "invalid_body", "error", err)
	return c.JSON(http.StatusBadRequest, transport.ErrorResponse{
		Status:  "error",
		Code:    "validation_error",
		Message: err.Error(),
	})
}

func unauthorized(c echo.Context, l *slog.Logger, event string, err error) error {
	l.Warn(event, "status", http.StatusUnauthorized, "error", err)
	return c.JSON(http.StatusUnauthorized, transport.ErrorResponse{
		Status:  "error",
		Code:    "unauthorized",
		Message: "unauthorized",
	})
}

// bind decodes and validates the request body into req.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	return c.Validate(req)
}
