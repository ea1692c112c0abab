package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/school_canteen/internal/logging"
	authmw "github.com/Skotchmaster/school_canteen/internal/middleware/auth"
	"github.com/Skotchmaster/school_canteen/internal/service"
	"github.com/Skotchmaster/school_canteen/internal/transport"
)

type AuthHTTP struct {
	Svc *service.AuthService
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.register")

	var req transport.RegisterRequest
	if err := bind(c, &req); err != nil {
		return badRequest(c, l, "register_error", err)
	}

	user, err := h.Svc.Register(ctx, service.RegisterInput{
		Username:    req.Username,
		Password:    req.Password,
		FullName:    req.FullName,
		ClassName:   req.ClassName,
		Age:         req.Age,
		ParentNames: req.ParentNames,
	})
	if err != nil {
		return writeError(c, l, "register_error", err)
	}

	return c.JSON(http.StatusCreated, map[string]any{"id": user.ID, "username": user.Username})
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req transport.LoginRequest
	if err := bind(c, &req); err != nil {
		return badRequest(c, l, "login_error", err)
	}

	pair, err := h.Svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		return writeError(c, l, "login_error", err)
	}

	authmw.SetAuthCookies(c, pair)
	return c.JSON(http.StatusOK, pair)
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.refresh")

	var req transport.RefreshRequest
	_ = c.Bind(&req)
	token := req.RefreshToken
	if token == "" {
		if ck, err := c.Cookie(authmw.RefreshCookie); err == nil {
			token = ck.Value
		}
	}
	if token == "" {
		return unauthorized(c, l, "refresh_error", service.ErrUnauthorized)
	}

	pair, err := h.Svc.Refresh(ctx, token)
	if err != nil {
		authmw.ClearAuthCookies(c)
		return writeError(c, l, "refresh_error", err)
	}

	authmw.SetAuthCookies(c, pair)
	return c.JSON(http.StatusOK, pair)
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.logout")

	var req transport.RefreshRequest
	_ = c.Bind(&req)
	token := req.RefreshToken
	if token == "" {
		if ck, err := c.Cookie(authmw.RefreshCookie); err == nil {
			token = ck.Value
		}
	}

	if err := h.Svc.Logout(ctx, token); err != nil {
		return writeError(c, l, "logout_error", err)
	}
	authmw.ClearAuthCookies(c)
	return c.NoContent(http.StatusNoContent)
}
