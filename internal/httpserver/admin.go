package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/school_canteen/internal/logging"
	"github.com/Skotchmaster/school_canteen/internal/service"
	"github.com/Skotchmaster/school_canteen/internal/transport"
	"github.com/Skotchmaster/school_canteen/internal/util"
)

type AdminHTTP struct {
	Svc  *service.AdminService
	Menu *service.MenuService
}

func (h *AdminHTTP) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.stats")

	st, err := h.Svc.Dashboard(ctx)
	if err != nil {
		return writeError(c, l, "stats_error", err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *AdminHTTP) Users(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.users")

	from, size := util.PageFromQuery(c)
	page, err := h.Svc.Users(ctx, from, size)
	if err != nil {
		return writeError(c, l, "users_error", err)
	}
	return c.JSON(http.StatusOK, page)
}

func mealInput(req transport.MealRequest) service.MealInput {
	return service.MealInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		CategoryID:  req.CategoryID,
		Available:   req.Available,
		Calories:    req.Calories,
		Proteins:    req.Proteins,
		Fats:        req.Fats,
		Carbs:       req.Carbs,
		ImageURL:    req.ImageURL,
	}
}

func (h *AdminHTTP) Meals(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.meals")

	meals, err := h.Menu.AllMeals(ctx)
	if err != nil {
		return writeError(c, l, "meals_error", err)
	}
	return c.JSON(http.StatusOK, meals)
}

func (h *AdminHTTP) CreateMeal(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.meal.create")

	var req transport.MealRequest
	if err := bind(c, &req); err != nil {
		return badRequest(c, l, "create_meal_error", err)
	}
	meal, err := h.Menu.CreateMeal(ctx, mealInput(req))
	if err != nil {
		return writeError(c, l, "create_meal_error", err)
	}

	l.Info("meal_created", "meal_id", meal.ID)
	return c.JSON(http.StatusCreated, meal)
}

func (h *AdminHTTP) UpdateMeal(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.meal.update")

	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, l, "update_meal_error", err)
	}
	var req transport.MealRequest
	if err := bind(c, &req); err != nil {
		return badRequest(c, l, "update_meal_error", err)
	}
	meal, err := h.Menu.UpdateMeal(ctx, id, mealInput(req))
	if err != nil {
		return writeError(c, l, "update_meal_error", err)
	}
	return c.JSON(http.StatusOK, meal)
}

func (h *AdminHTTP) SetAvailability(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.meal.availability")

	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, l, "meal_availability_error", err)
	}
	var req transport.AvailabilityRequest
	if err := bind(c, &req); err != nil {
		return badRequest(c, l, "meal_availability_error", err)
	}
	meal, err := h.Menu.SetAvailability(ctx, id, req.Available)
	if err != nil {
		return writeError(c, l, "meal_availability_error", err)
	}
	return c.JSON(http.StatusOK, meal)
}

func (h *AdminHTTP) DeleteMeal(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.meal.delete")

	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, l, "delete_meal_error", err)
	}
	if err := h.Menu.DeleteMeal(ctx, id); err != nil {
		return writeError(c, l, "delete_meal_error", err)
	}

	l.Info("meal_deleted", "meal_id", id)
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHTTP) CreateCategory(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.category.create")

	var req transport.CategoryRequest
	if err := bind(c, &req); err != nil {
		return badRequest(c, l, "create_category_error", err)
	}
	cat, err := h.Menu.CreateCategory(ctx, service.CategoryInput{Name: req.Name, SortOrder: req.SortOrder})
	if err != nil {
		return writeError(c, l, "create_category_error", err)
	}
	return c.JSON(http.StatusCreated, cat)
}

func (h *AdminHTTP) UpdateCategory(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.category.update")

	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, l, "update_category_error", err)
	}
	var req transport.CategoryRequest
	if err := bind(c, &req); err != nil {
		return badRequest(c, l, "update_category_error", err)
	}
	cat, err := h.Menu.UpdateCategory(ctx, id, service.CategoryInput{Name: req.Name, SortOrder: req.SortOrder})
	if err != nil {
		return writeError(c, l, "update_category_error", err)
	}
	return c.JSON(http.StatusOK, cat)
}

func (h *AdminHTTP) DeleteCategory(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.category.delete")

	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, l, "delete_category_error", err)
	}
	if err := h.Menu.DeleteCategory(ctx, id); err != nil {
		return writeError(c, l, "delete_category_error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHTTP) Reindex(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.reindex")

	n, err := h.Menu.Reindex(ctx)
	if err != nil {
		return writeError(c, l, "reindex_error", err)
	}
	return c.JSON(http.StatusOK, map[string]int{"indexed": n})
}
