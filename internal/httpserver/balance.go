package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/school_canteen/internal/logging"
	authmw "github.com/Skotchmaster/school_canteen/internal/middleware/auth"
	"github.com/Skotchmaster/school_canteen/internal/service"
	"github.com/Skotchmaster/school_canteen/internal/transport"
)

type BalanceHTTP struct {
	Svc *service.BalanceService
}

func (h *BalanceHTTP) Balance(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "balance.get")

	userID, err := authmw.UserID(c)
	if err != nil {
		return unauthorized(c, l, "get_balance_error", err)
	}

	balance, err := h.Svc.Balance(ctx, userID)
	if err != nil {
		return writeError(c, l, "get_balance_error", err)
	}
	return c.JSON(http.StatusOK, transport.BalanceResponse{Balance: balance})
}

func (h *BalanceHTTP) Fees(c echo.Context) error {
	return c.JSON(http.StatusOK, service.Fees())
}

// TopUp takes the gross payment, keeps the method fee and credits the rest.
func (h *BalanceHTTP) TopUp(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "balance.topup")

	userID, err := authmw.UserID(c)
	if err != nil {
		return unauthorized(c, l, "topup_error", err)
	}

	var req transport.TopUpRequest
	if err := bind(c, &req); err != nil {
		return badRequest(c, l, "topup_error", err)
	}

	credit, fee, err := service.ApplyTopUpFee(req.Amount, req.Method)
	if err != nil {
		return writeError(c, l, "topup_error", err)
	}
	balance, err := h.Svc.TopUp(ctx, userID, credit, fee, req.Method)
	if err != nil {
		return writeError(c, l, "topup_error", err)
	}

	return c.JSON(http.StatusOK, transport.TopUpResponse{Credited: credit, Fee: fee, Balance: balance})
}

func (h *BalanceHTTP) Payments(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "balance.payments")

	userID, err := authmw.UserID(c)
	if err != nil {
		return unauthorized(c, l, "payments_error", err)
	}

	payments, err := h.Svc.Payments(ctx, userID)
	if err != nil {
		return writeError(c, l, "payments_error", err)
	}
	return c.JSON(http.StatusOK, payments)
}
