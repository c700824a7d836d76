package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/logging"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/service/catalog"
)

type ProductHandler struct {
	Svc *catalog.Service
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get_product")

	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	product, err := h.Svc.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			l.Warn("get_product_failed", "status", 404, "product_id", id)
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return internalError(l, "get_product_failed", err)
	}
	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) GetProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get_products")

	page, size := pageParams(c)
	res, err := h.Svc.GetProducts(ctx, page, size)
	if err != nil {
		return internalError(l, "get_products_failed", err)
	}
	return c.JSON(http.StatusOK, struct {
		Data []models.Product `json:"data"`
		Meta pageMeta         `json:"meta"`
	}{res.Items, newPageMeta(res.Page, res.Size, res.Total)})
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.create_product")

	var req catalog.CreateProductInput
	if err := bindBody(c, &req); err != nil {
		return badBody(l, "create_product_failed", err)
	}

	prod, err := h.Svc.CreateProduct(ctx, req)
	if err != nil {
		if herr := invalidInput(l, "create_product_failed", err); herr != nil {
			return herr
		}
		return internalError(l, "create_product_failed", err)
	}

	l.Info("create_product_success", "product_id", prod.ID)
	return c.JSON(http.StatusCreated, prod)
}

func (h *ProductHandler) PatchProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.patch_product")

	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req catalog.PatchProductInput
	if err := bindBody(c, &req); err != nil {
		return badBody(l, "patch_product_failed", err)
	}

	prod, err := h.Svc.PatchProduct(ctx, id, req)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			l.Warn("patch_product_failed", "status", 404, "product_id", id)
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		if herr := invalidInput(l, "patch_product_failed", err); herr != nil {
			return herr
		}
		return internalError(l, "patch_product_failed", err)
	}

	l.Info("patch_product_success", "product_id", prod.ID)
	return c.JSON(http.StatusOK, prod)
}

func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.delete_product")

	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Svc.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			l.Warn("delete_product_failed", "status", 404, "product_id", id)
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return internalError(l, "delete_product_failed", err)
	}

	l.Info("delete_product_success", "product_id", id)
	return c.NoContent(http.StatusNoContent)
}
