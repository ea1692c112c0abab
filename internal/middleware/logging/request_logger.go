// Package loggingmw attaches a request-scoped logger and writes one access
// log line per request.
package loggingmw

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/school_canteen/internal/logging"
)

func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rid := req.Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = c.Response().Header().Get(echo.HeaderXRequestID)
			}

			l := base.With("method", req.Method, "path", c.Path(), "remote_ip", c.RealIP())
			if rid != "" {
				l = l.With("request_id", rid)
				c.Response().Header().Set(echo.HeaderXRequestID, rid)
			}
			c.SetRequest(req.WithContext(logging.IntoContext(req.Context(), l)))

			start := time.Now()
			err := next(c)
			if err != nil {
				// render now so the logged status is the one the client sees
				c.Error(err)
			}

			status := c.Response().Status
			attrs := []any{
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"bytes", c.Response().Size,
			}
			if uid, ok := c.Get("user_id").(uint); ok {
				attrs = append(attrs, "user_id", uid)
			}
			if err != nil {
				attrs = append(attrs, "error", err.Error())
			}
			l.Log(req.Context(), levelFor(status), "request completed", attrs...)
			return nil
		}
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}
