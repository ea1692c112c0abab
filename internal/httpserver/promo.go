package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/school_canteen/internal/logging"
	"github.com/Skotchmaster/school_canteen/internal/service"
	"github.com/Skotchmaster/school_canteen/internal/transport"
)

type PromoHTTP struct {
	Svc *service.PromoService
}

// Validate reports the discount a code would give on the supplied total.
func (h *PromoHTTP) Validate(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "promo.validate")

	var req transport.PromoValidateRequest
	if err := bind(c, &req); err != nil {
		return badRequest(c, l, "promo_validate_error", err)
	}

	promo, err := h.Svc.Validate(ctx, req.Code)
	if err != nil {
		return writeError(c, l, "promo_validate_error", err)
	}

	d := service.DiscountOf(promo)
	discount := d.Apply(req.Total)
	return c.JSON(http.StatusOK, transport.PromoValidateResponse{
		Code:            promo.Code,
		Kind:            kindName(d.Kind),
		DiscountPercent: d.Percent,
		DiscountAmount:  d.Amount,
		Discount:        discount,
		Final:           req.Total - discount,
	})
}

func kindName(k service.DiscountKind) string {
	switch k {
	case service.DiscountPercentage:
		return "percentage"
	case service.DiscountFixedAmount:
		return "fixed_amount"
	}
	return "none"
}

func promoInput(req transport.PromoRequest) service.PromoInput {
	return service.PromoInput{
		Code:            req.Code,
		DiscountPercent: req.DiscountPercent,
		DiscountAmount:  req.DiscountAmount,
		Active:          req.Active,
		ExpiresAt:       req.ExpiresAt,
		MaxUses:         req.MaxUses,
	}
}

func (h *PromoHTTP) AdminList(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.promos")

	promos, err := h.Svc.List(ctx)
	if err != nil {
		return writeError(c, l, "promo_list_error", err)
	}
	return c.JSON(http.StatusOK, promos)
}

func (h *PromoHTTP) AdminCreate(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.promo.create")

	var req transport.PromoRequest
	if err := bind(c, &req); err != nil {
		return badRequest(c, l, "promo_create_error", err)
	}
	promo, err := h.Svc.Create(ctx, promoInput(req))
	if err != nil {
		return writeError(c, l, "promo_create_error", err)
	}
	l.Info("promo_created", "promo_id", promo.ID, "code", promo.Code)
	return c.JSON(http.StatusCreated, promo)
}

func (h *PromoHTTP) AdminUpdate(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.promo.update")

	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, l, "promo_update_error", err)
	}
	var req transport.PromoRequest
	if err := bind(c, &req); err != nil {
		return badRequest(c, l, "promo_update_error", err)
	}
	promo, err := h.Svc.Update(ctx, id, promoInput(req))
	if err != nil {
		return writeError(c, l, "promo_update_error", err)
	}
	return c.JSON(http.StatusOK, promo)
}

func (h *PromoHTTP) AdminDeactivate(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.promo.deactivate")

	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, l, "promo_deactivate_error", err)
	}
	promo, err := h.Svc.Deactivate(ctx, id)
	if err != nil {
		return writeError(c, l, "promo_deactivate_error", err)
	}
	return c.JSON(http.StatusOK, promo)
}
