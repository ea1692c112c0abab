package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/school_canteen/internal/logging"
	authmw "github.com/Skotchmaster/school_canteen/internal/middleware/auth"
	"github.com/Skotchmaster/school_canteen/internal/service"
	"github.com/Skotchmaster/school_canteen/internal/transport"
)

type ProfileHTTP struct {
	Svc *service.ProfileService
}

func (h *ProfileHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "profile.get")

	userID, err := authmw.UserID(c)
	if err != nil {
		return unauthorized(c, l, "get_profile_error", err)
	}

	view, err := h.Svc.Get(ctx, userID)
	if err != nil {
		return writeError(c, l, "get_profile_error", err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *ProfileHTTP) Patch(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "profile.patch")

	userID, err := authmw.UserID(c)
	if err != nil {
		return unauthorized(c, l, "patch_profile_error", err)
	}

	var req transport.ProfilePatch
	if err := bind(c, &req); err != nil {
		return badRequest(c, l, "patch_profile_error", err)
	}

	view, err := h.Svc.Update(ctx, userID, service.ProfileInput{
		FullName:    req.FullName,
		ClassName:   req.ClassName,
		Age:         req.Age,
		ParentNames: req.ParentNames,
	})
	if err != nil {
		return writeError(c, l, "patch_profile_error", err)
	}
	return c.JSON(http.StatusOK, view)
}
