package httpserver

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/school_canteen/internal/logging"
	authmw "github.com/Skotchmaster/school_canteen/internal/middleware/auth"
	"github.com/Skotchmaster/school_canteen/internal/models"
	"github.com/Skotchmaster/school_canteen/internal/service"
	"github.com/Skotchmaster/school_canteen/internal/transport"
	"github.com/Skotchmaster/school_canteen/internal/util"
)

type OrderHTTP struct {
	Svc    *service.OrderService
	Promos *service.PromoService
}

// Place orders the lines sent by the client. An optional promo code is
// resolved first.
func (h *OrderHTTP) Place(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.place")

	userID, err := authmw.UserID(c)
	if err != nil {
		return unauthorized(c, l, "place_order_error", err)
	}

	var req transport.PlaceOrderRequest
	if err := bind(c, &req); err != nil {
		return badRequest(c, l, "place_order_error", err)
	}

	var promoID *uint
	if strings.TrimSpace(req.PromoCode) != "" {
		promo, err := h.Promos.Validate(ctx, req.PromoCode)
		if err != nil {
			return writeError(c, l, "place_order_error", err)
		}
		promoID = &promo.ID
	}

	lines := make([]service.OrderLine, len(req.Items))
	for i, it := range req.Items {
		lines[i] = service.OrderLine{MealID: it.MealID, Quantity: it.Quantity}
	}

	order, err := h.Svc.PlaceOrder(ctx, userID, lines, promoID)
	if err != nil {
		return writeError(c, l, "place_order_error", err)
	}
	return c.JSON(http.StatusCreated, order)
}

func (h *OrderHTTP) History(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.history")

	userID, err := authmw.UserID(c)
	if err != nil {
		return unauthorized(c, l, "order_history_error", err)
	}

	orders, err := h.Svc.History(ctx, userID)
	if err != nil {
		return writeError(c, l, "order_history_error", err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get")

	userID, err := authmw.UserID(c)
	if err != nil {
		return unauthorized(c, l, "get_order_error", err)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, l, "get_order_error", err)
	}

	order, err := h.Svc.Get(ctx, userID, id)
	if err != nil {
		return writeError(c, l, "get_order_error", err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) AdminList(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.orders")

	from, size := util.PageFromQuery(c)
	page, err := h.Svc.List(ctx, models.OrderStatus(c.QueryParam("status")), from, size)
	if err != nil {
		return writeError(c, l, "admin_orders_error", err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *OrderHTTP) AdminSetStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.order.status")

	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, l, "order_status_error", err)
	}
	var req transport.StatusRequest
	if err := bind(c, &req); err != nil {
		return badRequest(c, l, "order_status_error", err)
	}

	order, err := h.Svc.UpdateStatus(ctx, id, models.OrderStatus(strings.ToLower(req.Status)))
	if err != nil {
		return writeError(c, l, "order_status_error", err)
	}
	l.Info("order_status_changed", "order_id", id, "status", order.Status)
	return c.JSON(http.StatusOK, order)
}
