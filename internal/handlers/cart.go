package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	mwauth "github.com/Skotchmaster/storefront/internal/middleware/auth"
	"github.com/Skotchmaster/storefront/internal/service/cart"
)

type CartHandler struct {
	Svc *cart.CartService
}

type deleteOneResponse struct {
	ProductID uint `json:"product_id"`
	Deleted   bool `json:"deleted"`
	Quantity  uint `json:"quantity"`
}

func (h *CartHandler) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get")

	userID, err := mwauth.UserID(c)
	if err != nil {
		return err
	}
	items, err := h.Svc.GetCart(ctx, userID)
	if err != nil {
		return internalError(l, "get_cart_failed", err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *CartHandler) AddToCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add")

	userID, err := mwauth.UserID(c)
	if err != nil {
		return err
	}
	var req struct {
		ProductID uint `json:"product_id"`
		Quantity  uint `json:"quantity"`
	}
	if err := bindBody(c, &req); err != nil {
		return badBody(l, "add_to_cart_failed", err)
	}

	item, err := h.Svc.AddToCart(ctx, userID, req.ProductID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, cart.ErrValidation):
			l.Warn("add_to_cart_failed", "status", 400, "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, "quantity>0 and product_id required")
		case errors.Is(err, cart.ErrProductNotFound):
			l.Warn("add_to_cart_failed", "status", 404, "product_id", req.ProductID)
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return internalError(l, "add_to_cart_failed", err)
	}

	l.Info("add_to_cart_success", "product_id", item.ProductID)
	return c.JSON(http.StatusCreated, item)
}

func (h *CartHandler) DeleteOneFromCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.delete_one")

	userID, err := mwauth.UserID(c)
	if err != nil {
		return err
	}
	productID, err := pathID(c, "product_id")
	if err != nil {
		return err
	}

	deleted, item, err := h.Svc.DeleteOneFromCart(ctx, userID, productID)
	if err != nil {
		if errors.Is(err, cart.ErrNotFound) {
			l.Warn("delete_one_from_cart_failed", "status", 404, "product_id", productID)
			return echo.NewHTTPError(http.StatusNotFound, "item not found")
		}
		return internalError(l, "delete_one_from_cart_failed", err)
	}

	resp := deleteOneResponse{ProductID: productID, Deleted: deleted}
	if item != nil {
		resp.Quantity = item.Quantity
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *CartHandler) DeleteAllFromCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.delete_all")

	userID, err := mwauth.UserID(c)
	if err != nil {
		return err
	}
	if err := h.Svc.DeleteAllFromCart(ctx, userID); err != nil {
		return internalError(l, "delete_all_from_cart_failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}
