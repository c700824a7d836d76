package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	mwauth "github.com/Skotchmaster/storefront/internal/middleware/auth"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/service/order"
)

type OrderHandler struct {
	Svc *order.OrderService
}

func (h *OrderHandler) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.checkout")

	userID, err := mwauth.UserID(c)
	if err != nil {
		return err
	}

	o, err := h.Svc.Checkout(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrValidation):
			l.Warn("checkout_failed", "status", 400, "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, "cart is empty")
		case errors.Is(err, order.ErrConflict):
			l.Warn("checkout_failed", "status", 409, "error", err)
			return echo.NewHTTPError(http.StatusConflict, "insufficient stock")
		}
		return internalError(l, "checkout_failed", err)
	}

	l.Info("checkout_success", "order_id", o.ID, "total", o.TotalPrice)
	return c.JSON(http.StatusCreated, o)
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list")

	userID, err := mwauth.UserID(c)
	if err != nil {
		return err
	}
	page, size := pageParams(c)
	res, err := h.Svc.ListOrders(ctx, userID, page, size)
	if err != nil {
		return internalError(l, "list_orders_failed", err)
	}
	return c.JSON(http.StatusOK, struct {
		Data []models.Order `json:"data"`
		Meta pageMeta       `json:"meta"`
	}{res.Orders, newPageMeta(res.Page, res.Size, res.Total)})
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get")

	userID, err := mwauth.UserID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	o, err := h.Svc.GetOrder(ctx, userID, id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return internalError(l, "get_order_failed", err)
	}
	return c.JSON(http.StatusOK, o)
}
