package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/school_canteen/internal/logging"
	"github.com/Skotchmaster/school_canteen/internal/service"
	"github.com/Skotchmaster/school_canteen/internal/util"
)

type MenuHTTP struct {
	Svc *service.MenuService
}

func parseID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return uint(id), nil
}

func (h *MenuHTTP) Menu(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "menu.list")

	sections, err := h.Svc.Menu(ctx)
	if err != nil {
		return writeError(c, l, "menu_error", err)
	}
	return c.JSON(http.StatusOK, sections)
}

func (h *MenuHTTP) Categories(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "menu.categories")

	cats, err := h.Svc.Categories(ctx)
	if err != nil {
		return writeError(c, l, "categories_error", err)
	}
	return c.JSON(http.StatusOK, cats)
}

func (h *MenuHTTP) Meal(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "menu.meal")

	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, l, "meal_error", err)
	}
	meal, err := h.Svc.Meal(ctx, id)
	if err != nil {
		return writeError(c, l, "meal_error", err)
	}
	return c.JSON(http.StatusOK, meal)
}

func (h *MenuHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "menu.search")

	from, size := util.PageFromQuery(c)
	res, err := h.Svc.Search(ctx, c.QueryParam("q"), from, size)
	if err != nil {
		return writeError(c, l, "search_error", err)
	}
	return c.JSON(http.StatusOK, res)
}
