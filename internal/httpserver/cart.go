package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/school_canteen/internal/logging"
	authmw "github.com/Skotchmaster/school_canteen/internal/middleware/auth"
	"github.com/Skotchmaster/school_canteen/internal/service"
	"github.com/Skotchmaster/school_canteen/internal/transport"
)

type CartHTTP struct {
	Svc *service.CartService
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "get.cart")

	userID, err := authmw.UserID(c)
	if err != nil {
		return unauthorized(c, l, "get_cart_error", err)
	}

	view, err := h.Svc.Get(ctx, userID)
	if err != nil {
		return writeError(c, l, "get_cart_error", err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *CartHTTP) AddToCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "add.cart")

	userID, err := authmw.UserID(c)
	if err != nil {
		return unauthorized(c, l, "add_to_cart_error", err)
	}

	var req transport.CartAddRequest
	if err := bind(c, &req); err != nil {
		return badRequest(c, l, "add_to_cart_error", err)
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	item, err := h.Svc.Add(ctx, userID, req.MealID, req.Quantity)
	if err != nil {
		return writeError(c, l, "add_to_cart_error", err)
	}

	l.Info("cart_item_added", "meal_id", req.MealID)
	return c.JSON(http.StatusCreated, item)
}

func (h *CartHTTP) DeleteOneFromCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "delete.one.from.cart")

	userID, err := authmw.UserID(c)
	if err != nil {
		return unauthorized(c, l, "delete_one_from_cart_error", err)
	}

	mealID, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, l, "delete_one_from_cart_error", err)
	}

	item, err := h.Svc.RemoveOne(ctx, userID, mealID)
	if err != nil {
		return writeError(c, l, "delete_one_from_cart_error", err)
	}

	resp := transport.CartRemoveResponse{MealID: mealID, Deleted: item == nil}
	if item != nil {
		resp.Quantity = item.Quantity
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *CartHTTP) DeleteAllFromCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "delete.all.from.cart")

	userID, err := authmw.UserID(c)
	if err != nil {
		return unauthorized(c, l, "delete_all_from_cart_error", err)
	}

	if err := h.Svc.Clear(ctx, userID); err != nil {
		return writeError(c, l, "delete_all_from_cart_error", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHTTP) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.checkout")

	userID, err := authmw.UserID(c)
	if err != nil {
		return unauthorized(c, l, "checkout_error", err)
	}

	var req transport.CheckoutRequest
	if err := bind(c, &req); err != nil {
		return badRequest(c, l, "checkout_error", err)
	}

	order, err := h.Svc.Checkout(ctx, userID, req.PromoCode)
	if err != nil {
		return writeError(c, l, "checkout_error", err)
	}
	return c.JSON(http.StatusCreated, order)
}
